package services

import (
	"context"
	"log"

	"github.com/anbudportalen/tender-service/internal/models"
)

// Notifier is the outbound port for award notifications. Delivery is an
// external concern; failures are logged by callers and never fail the award.
type Notifier interface {
	NotifyAward(ctx context.Context, tender *models.Tender, bid *models.Bid) error
}

// LogNotifier writes notifications to the application log. It stands in for
// the real delivery channel in local and test setups.
type LogNotifier struct {
	Logger *log.Logger
}

// NewLogNotifier creates a new LogNotifier.
func NewLogNotifier(logger *log.Logger) *LogNotifier {
	return &LogNotifier{Logger: logger}
}

// NotifyAward logs the award.
func (n *LogNotifier) NotifyAward(_ context.Context, tender *models.Tender, bid *models.Bid) error {
	n.Logger.Printf("award notification: tender %s awarded to %s (bid %s)", tender.ID, bid.CompanyName, bid.ID)
	return nil
}
