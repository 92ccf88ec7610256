package models

import "time"

type (
	ContractStandard string // Norwegian standard contract governing the tender
	TenderStatus     string // Lifecycle status of a tender
)

const (
	NS8405 ContractStandard = "NS8405" // utførelsesentreprise
	NS8406 ContractStandard = "NS8406" // forenklet utførelsesentreprise
	NS8407 ContractStandard = "NS8407" // totalentreprise

	DraftTender   TenderStatus = "draft"   // visible to the sender only
	OpenTender    TenderStatus = "open"    // published, accepting bids
	ClosedTender  TenderStatus = "closed"  // bidding closed, may be reopened
	AwardedTender TenderStatus = "awarded" // a winning bid has been selected
)

// StandstillPeriodDays is the statutory waiting period, in calendar days,
// between award and the earliest point a contract may be finalized.
const StandstillPeriodDays = 10

// ValidContractStandard reports whether s is a known contract standard.
func ValidContractStandard(s ContractStandard) bool {
	switch s {
	case NS8405, NS8406, NS8407:
		return true
	default:
		return false
	}
}

// ValidTenderStatus reports whether s is a known tender status.
func ValidTenderStatus(s TenderStatus) bool {
	switch s {
	case DraftTender, OpenTender, ClosedTender, AwardedTender:
		return true
	default:
		return false
	}
}

// Tender is the aggregate root for a procurement case.
type Tender struct {
	ID               string           `json:"id"`
	Title            string           `json:"title"`
	Description      string           `json:"description"`
	ContractStandard ContractStandard `json:"contractStandard"`
	Status           TenderStatus     `json:"status"`
	Price            float64          `json:"price"`
	PublishDate      *time.Time       `json:"publishDate,omitempty"`
	QuestionDeadline *time.Time       `json:"questionDeadline,omitempty"`
	Deadline         time.Time        `json:"deadline"`
	CreatedAt        time.Time        `json:"createdAt"`
	CreatedBy        string           `json:"createdBy"`
	CreatedByName    string           `json:"createdByName"`
	ProjectID        string           `json:"projectId"`

	Bids             []Bid             `json:"bids,omitempty"`
	InvitedSuppliers []InvitedSupplier `json:"invitedSuppliers,omitempty"`
	QA               []QAEntry         `json:"qa,omitempty"`

	AwardedBidID        string     `json:"awardedBidId,omitempty"`
	AwardedAt           *time.Time `json:"awardedAt,omitempty"`
	StandstillStartDate *time.Time `json:"standstillStartDate,omitempty"`
	StandstillEndDate   *time.Time `json:"standstillEndDate,omitempty"`
}

// TenderRequest is the payload for creating a tender.
type TenderRequest struct {
	Title            string           `json:"title"`
	Description      string           `json:"description"`
	ContractStandard ContractStandard `json:"contractStandard"`
	Status           TenderStatus     `json:"status"`
	Price            float64          `json:"price"`
	PublishDate      *time.Time       `json:"publishDate,omitempty"`
	QuestionDeadline *time.Time       `json:"questionDeadline,omitempty"`
	Deadline         time.Time        `json:"deadline"`
	ProjectID        string           `json:"projectId"`
}

// TenderUpdate is a typed patch for tender fields the sender may edit.
// Nil fields are left unchanged.
type TenderUpdate struct {
	Title            *string           `json:"title,omitempty"`
	Description      *string           `json:"description,omitempty"`
	ContractStandard *ContractStandard `json:"contractStandard,omitempty"`
	Price            *float64          `json:"price,omitempty"`
	PublishDate      *time.Time        `json:"publishDate,omitempty"`
	QuestionDeadline *time.Time        `json:"questionDeadline,omitempty"`
	Deadline         *time.Time        `json:"deadline,omitempty"`
}

// InvitedSupplier is an entry on the tender's invitation list.
type InvitedSupplier struct {
	ID          string    `json:"id"`
	TenderID    string    `json:"-"`
	SupplierID  string    `json:"supplierId,omitempty"`
	CompanyName string    `json:"companyName"`
	Email       string    `json:"email"`
	InvitedAt   time.Time `json:"invitedAt"`
}

// QAEntry is a question from a supplier with the sender's answer.
type QAEntry struct {
	ID         string     `json:"id"`
	TenderID   string     `json:"-"`
	Question   string     `json:"question"`
	Answer     string     `json:"answer,omitempty"`
	AskedBy    string     `json:"askedBy"`
	AskedAt    time.Time  `json:"askedAt"`
	AnsweredAt *time.Time `json:"answeredAt,omitempty"`
}

// TenderEvent is one append-only history entry on the aggregate.
type TenderEvent struct {
	ID        string    `json:"id"`
	TenderID  string    `json:"-"`
	Action    string    `json:"action"`
	ActorID   string    `json:"actorId"`
	ActorName string    `json:"actorName"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
