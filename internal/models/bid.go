package models

import "time"

type (
	BidStatus      string // Status of a submitted bid
	PriceStructure string // How the bid price is structured
)

const (
	FastPris PriceStructure = "fastpris" // fixed price
	TimePris PriceStructure = "timepris" // hourly rate with estimated hours
	Estimat  PriceStructure = "estimat"  // non-binding estimate

	SubmittedBid BidStatus = "submitted"
	AwardedBid   BidStatus = "awarded"
	RejectedBid  BidStatus = "rejected"
)

// ValidPriceStructure reports whether p is a known price structure.
func ValidPriceStructure(p PriceStructure) bool {
	switch p {
	case FastPris, TimePris, Estimat:
		return true
	default:
		return false
	}
}

// Bid is a supplier's priced response to a tender. Price is immutable after
// submission; only Score and Notes may change, and only through the sender.
type Bid struct {
	ID             string         `json:"id"`
	TenderID       string         `json:"tenderId"`
	SupplierID     string         `json:"supplierId"`
	CompanyName    string         `json:"companyName"`
	Price          float64        `json:"price"`
	PriceStructure PriceStructure `json:"priceStructure"`
	HourlyRate     float64        `json:"hourlyRate,omitempty"`
	EstimatedHours float64        `json:"estimatedHours,omitempty"`
	SubmittedAt    time.Time      `json:"submittedAt"`
	Score          int            `json:"score,omitempty"`
	Notes          string         `json:"notes,omitempty"`
	Status         BidStatus      `json:"status"`
}

// BidRequest is the payload for submitting a bid.
type BidRequest struct {
	SupplierID     string         `json:"supplierId"`
	CompanyName    string         `json:"companyName"`
	Email          string         `json:"email"`
	Price          float64        `json:"price"`
	PriceStructure PriceStructure `json:"priceStructure"`
	HourlyRate     float64        `json:"hourlyRate,omitempty"`
	EstimatedHours float64        `json:"estimatedHours,omitempty"`
}

// BidScoreUpdate is the sender-side patch for scoring a submitted bid.
type BidScoreUpdate struct {
	Score *int    `json:"score,omitempty"`
	Notes *string `json:"notes,omitempty"`
}
