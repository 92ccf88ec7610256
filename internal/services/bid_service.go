package services

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/anbudportalen/tender-service/internal/models"
	"github.com/anbudportalen/tender-service/internal/repository"
)

type BidService struct {
	Repo           repository.BidRepository
	Tenders        repository.TenderRepository
	Notifier       Notifier
	Logger         *log.Logger
	StandstillDays int
	now            func() time.Time
}

// NewBidService creates a new BidService. standstillDays <= 0 falls back to
// the statutory default.
func NewBidService(repo repository.BidRepository, tenders repository.TenderRepository, notifier Notifier, logger *log.Logger, standstillDays int) *BidService {
	if standstillDays <= 0 {
		standstillDays = models.StandstillPeriodDays
	}
	return &BidService{
		Repo:           repo,
		Tenders:        tenders,
		Notifier:       notifier,
		Logger:         logger,
		StandstillDays: standstillDays,
		now:            time.Now,
	}
}

// ValidateBid checks the submission payload field by field.
func ValidateBid(req models.BidRequest) models.ValidationErrors {
	errs := models.ValidationErrors{}

	if strings.TrimSpace(req.CompanyName) == "" {
		errs["companyName"] = "firmanavn er påkrevd"
	}
	if req.Price <= 0 {
		errs["price"] = "pris må være større enn 0"
	}
	if req.PriceStructure == "" {
		errs["priceStructure"] = "prisstruktur er påkrevd"
	} else if !models.ValidPriceStructure(req.PriceStructure) {
		errs["priceStructure"] = "ugyldig prisstruktur"
	}
	if req.PriceStructure == models.TimePris {
		if req.HourlyRate <= 0 {
			errs["hourlyRate"] = "timesats er påkrevd for timepris"
		}
		if req.EstimatedHours <= 0 {
			errs["estimatedHours"] = "estimerte timer er påkrevd for timepris"
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// eligible reports whether the actor may submit this bid: an invited
// supplier (matched by normalized email or supplier id) or the sender
// itself, registering a bid administratively.
func eligible(tender *models.Tender, req models.BidRequest, actor models.Actor) bool {
	if actor.IsSender() {
		return true
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	for _, inv := range tender.InvitedSuppliers {
		if inv.SupplierID != "" && inv.SupplierID == req.SupplierID {
			return true
		}
		if email != "" && strings.ToLower(strings.TrimSpace(inv.Email)) == email {
			return true
		}
	}
	return false
}

// SubmitBid records a supplier's bid. No record is created when any check
// fails; in particular a bid after the deadline never reaches the store.
func (s *BidService) SubmitBid(ctx context.Context, tenderID string, req models.BidRequest, actor models.Actor) (*models.Bid, error) {
	tender, err := s.Tenders.GetTender(ctx, tenderID)
	if err != nil {
		return nil, err
	}

	if tender.Status != models.OpenTender {
		return nil, models.NewErrorResponse(http.StatusConflict, "anbudet er ikke åpent for tilbud")
	}
	if !s.now().Before(tender.Deadline) {
		return nil, models.NewErrorResponse(http.StatusConflict, "tilbudsfristen er utløpt")
	}
	if errs := ValidateBid(req); errs != nil {
		return nil, errs
	}
	if !eligible(tender, req, actor) {
		return nil, models.NewErrorResponse(http.StatusForbidden, "leverandøren er ikke invitert til dette anbudet")
	}

	return s.Repo.CreateBid(ctx, tenderID, req, s.now())
}

// AwardBid selects the winning bid and starts the standstill period. Only
// the owning sender may award; the repository serializes concurrent award
// attempts so at most one wins.
func (s *BidService) AwardBid(ctx context.Context, tenderID, bidID string, actor models.Actor) (*models.Tender, error) {
	tender, err := s.Tenders.GetTender(ctx, tenderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsSender() || tender.CreatedBy != actor.ID {
		return nil, models.NewErrorResponse(http.StatusForbidden, "du har ikke tilgang til dette anbudet")
	}
	if tender.Status == models.DraftTender {
		return nil, models.NewErrorResponse(http.StatusConflict, "anbudet er ikke publisert")
	}

	// The standstill period starts the moment of award, set exactly once.
	awardedAt := s.now()
	standstillEnd := awardedAt.AddDate(0, 0, s.StandstillDays)

	awarded, err := s.Repo.AwardBid(ctx, tenderID, bidID, actor, awardedAt, standstillEnd)
	if err != nil {
		return nil, err
	}

	if bid, err := s.Repo.GetBid(ctx, bidID); err != nil {
		s.Logger.Printf("could not load awarded bid %s for notification: %v", bidID, err)
	} else if err := s.Notifier.NotifyAward(ctx, awarded, bid); err != nil {
		s.Logger.Printf("award notification for tender %s failed: %v", tenderID, err)
	}

	return awarded, nil
}

// ScoreBid applies the sender's score and notes to a submitted bid.
func (s *BidService) ScoreBid(ctx context.Context, bidID string, upd models.BidScoreUpdate, actor models.Actor) (*models.Bid, error) {
	bid, err := s.Repo.GetBid(ctx, bidID)
	if err != nil {
		return nil, err
	}
	tender, err := s.Tenders.GetTender(ctx, bid.TenderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsSender() || tender.CreatedBy != actor.ID {
		return nil, models.NewErrorResponse(http.StatusForbidden, "du har ikke tilgang til dette anbudet")
	}
	if upd.Score != nil && (*upd.Score < 0 || *upd.Score > 100) {
		return nil, models.NewErrorResponse(http.StatusBadRequest, "poengsum må være mellom 0 og 100")
	}
	return s.Repo.UpdateScore(ctx, bidID, upd)
}

// GetBid loads a single bid.
func (s *BidService) GetBid(ctx context.Context, bidID string) (*models.Bid, error) {
	return s.Repo.GetBid(ctx, bidID)
}

// GetTenderBids lists the bids on a tender for its owning sender.
func (s *BidService) GetTenderBids(ctx context.Context, tenderID string, actor models.Actor, limit, offset int) ([]models.Bid, error) {
	tender, err := s.Tenders.GetTender(ctx, tenderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsSender() || tender.CreatedBy != actor.ID {
		return nil, models.NewErrorResponse(http.StatusForbidden, "du har ikke tilgang til dette anbudet")
	}
	return s.Repo.GetTenderBids(ctx, tenderID, limit, offset)
}

// IsStandstillPeriodEnded reports whether the tender's standstill period is
// over. A tender that has not been awarded has no standstill to wait for.
func (s *BidService) IsStandstillPeriodEnded(tender *models.Tender) bool {
	if tender.StandstillEndDate == nil {
		return false
	}
	return StandstillEnded(s.now(), *tender.StandstillEndDate)
}

// GetRemainingStandstillDays returns the whole days left of the standstill
// period, zero when it has ended or was never started.
func (s *BidService) GetRemainingStandstillDays(tender *models.Tender) int {
	if tender.StandstillEndDate == nil {
		return 0
	}
	return RemainingStandstillDays(s.now(), *tender.StandstillEndDate)
}
