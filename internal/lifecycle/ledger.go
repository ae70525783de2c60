package lifecycle

import (
	"context"

	"github.com/google/uuid"
)

// TransitionRecord describes a transition for the ledger to persist
// alongside the updated borrowing.
type TransitionRecord struct {
	Event   Event
	ActorID uuid.UUID
	From    Status
	To      Status
}

// Ledger stores borrowings and enforces the single open-borrowing-per-item
// invariant. Implementations must make Create and Update atomic: Create
// fails with ErrItemUnavailable when another open borrowing already claims
// the item, and Update fails with ErrConflict unless the stored version
// equals expectedVersion.
type Ledger interface {
	// Create inserts b (status requested) and appends its request event.
	Create(ctx context.Context, b *Borrowing) error

	// Get returns the borrowing by id, ErrNotFound if absent.
	Get(ctx context.Context, id uuid.UUID) (*Borrowing, error)

	// Update persists b's new status under a version check and appends
	// the transition to the audit history.
	Update(ctx context.Context, b *Borrowing, expectedVersion int, rec TransitionRecord) (*Borrowing, error)

	// OpenByItem returns the open (non-terminal) borrowing claiming the
	// item, or nil when there is none.
	OpenByItem(ctx context.Context, itemID uuid.UUID) (*Borrowing, error)

	// ListByUser returns every borrowing where the user is lender or
	// borrower, ordered by start ascending.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Borrowing, error)

	// List returns all borrowings, ordered by start ascending.
	List(ctx context.Context) ([]*Borrowing, error)

	// Events returns the audit history of a borrowing, oldest first.
	Events(ctx context.Context, borrowingID uuid.UUID) ([]TransitionEvent, error)
}
