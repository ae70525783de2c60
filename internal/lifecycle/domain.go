package lifecycle

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Borrowing statuses. The first three are open (non-terminal); the rest
// are terminal and retained for history.
const (
	StatusRequested       Status = "requested"
	StatusConfirmed       Status = "confirmed"
	StatusReturnRequested Status = "return_requested"
	StatusReturned        Status = "returned"
	StatusRejected        Status = "rejected"
	StatusCancelled       Status = "cancelled"
)

// Status is the enumerated borrowing state. Derived views consume this
// enum; nothing re-parses status strings.
type Status string

// Terminal reports whether no further transitions are legal from s.
func (s Status) Terminal() bool {
	return s == StatusReturned || s == StatusRejected || s == StatusCancelled
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusRequested, StatusConfirmed, StatusReturnRequested,
		StatusReturned, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// Lifecycle events. EventRequest creates a borrowing; the others fire on
// an existing one.
const (
	EventRequest       Event = "request"
	EventConfirm       Event = "confirm"
	EventReject        Event = "reject"
	EventCancel        Event = "cancel"
	EventRequestReturn Event = "request_return"
	EventConfirmReturn Event = "confirm_return"
)

// Event names a lifecycle transition.
type Event string

// Role identifies which party of a borrowing may fire an event.
type Role int

const (
	RoleLender Role = iota
	RoleBorrower
)

var (
	ErrNotFound          = errors.New("borrowing not found")
	ErrItemUnavailable   = errors.New("item is not available")
	ErrUnauthorized      = errors.New("caller is not authorized for this action")
	ErrInvalidTransition = errors.New("transition not legal from current state")
	ErrConflict          = errors.New("concurrent transition conflict, retry the operation")
	ErrInvalidPeriod     = errors.New("due must not precede start")
)

// Borrowing is a single loan of an item between two residents.
type Borrowing struct {
	ID         uuid.UUID `json:"id"`
	ItemID     uuid.UUID `json:"item_id"`
	LenderID   uuid.UUID `json:"lender_id"`
	BorrowerID uuid.UUID `json:"borrower_id"`
	Start      time.Time `json:"start"`
	Due        time.Time `json:"due"`
	Status     Status    `json:"status"`
	Version    int       `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (b *Borrowing) actor(role Role) uuid.UUID {
	if role == RoleLender {
		return b.LenderID
	}
	return b.BorrowerID
}

type transition struct {
	from Status
	to   Status
	role Role
}

// The transition table. EventRequest is absent: it has no source state
// and is handled by RequestBorrowing directly.
var transitions = map[Event]transition{
	EventConfirm:       {from: StatusRequested, to: StatusConfirmed, role: RoleLender},
	EventReject:        {from: StatusRequested, to: StatusRejected, role: RoleLender},
	EventCancel:        {from: StatusRequested, to: StatusCancelled, role: RoleBorrower},
	EventRequestReturn: {from: StatusConfirmed, to: StatusReturnRequested, role: RoleBorrower},
	EventConfirmReturn: {from: StatusReturnRequested, to: StatusReturned, role: RoleLender},
}

// NextStatus decides the outcome of firing event on b by caller. It
// returns the target status and whether the call is an idempotent no-op
// (b is already in the target state, so a retried request must succeed
// without side effects). Authorization is checked before legality, so an
// imposter is always told ErrUnauthorized regardless of state.
func NextStatus(b *Borrowing, event Event, caller uuid.UUID) (Status, bool, error) {
	t, ok := transitions[event]
	if !ok {
		return "", false, ErrInvalidTransition
	}
	if caller != b.actor(t.role) {
		return "", false, ErrUnauthorized
	}
	if b.Status == t.to {
		return t.to, true, nil
	}
	if b.Status != t.from {
		return "", false, ErrInvalidTransition
	}
	return t.to, false, nil
}

// TransitionEvent is one audit record of a borrowing's history.
type TransitionEvent struct {
	BorrowingID uuid.UUID `json:"borrowing_id"`
	Event       Event     `json:"event"`
	ActorID     uuid.UUID `json:"actor_id"`
	From        Status    `json:"from,omitempty"`
	To          Status    `json:"to"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
}
