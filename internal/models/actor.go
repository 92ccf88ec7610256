package models

// Role of an actor.
type Role string

const (
	SenderRole   Role = "sender"   // buyer publishing tenders
	SupplierRole Role = "supplier" // company submitting bids
)

// Actor is the principal performing an operation. Every mutating call takes
// it explicitly; nothing in the core reads ambient session state.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// IsSender reports whether the actor holds the sender role.
func (a Actor) IsSender() bool {
	return a.Role == SenderRole
}
