package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Service defines the interface for the borrowing lifecycle.
type Service interface {
	// Operations. Each wraps one ledger transition with registry side
	// effects and returns the updated borrowing.
	RequestBorrowing(ctx context.Context, itemID, borrowerID uuid.UUID, start, due time.Time) (*Borrowing, error)
	ConfirmBorrowing(ctx context.Context, borrowingID, lenderID uuid.UUID) (*Borrowing, error)
	RejectBorrowing(ctx context.Context, borrowingID, lenderID uuid.UUID) (*Borrowing, error)
	CancelBorrowing(ctx context.Context, borrowingID, borrowerID uuid.UUID) (*Borrowing, error)
	RequestReturn(ctx context.Context, borrowingID, borrowerID uuid.UUID) (*Borrowing, error)
	ConfirmReturn(ctx context.Context, borrowingID, lenderID uuid.UUID) (*Borrowing, error)

	// Reads.
	GetBorrowing(ctx context.Context, id uuid.UUID) (*Borrowing, error)
	History(ctx context.Context, id uuid.UUID) ([]TransitionEvent, error)

	// Query views, recomputed on demand, sorted by start ascending.
	PendingForLender(ctx context.Context, residentID uuid.UUID) ([]*Borrowing, error)
	PendingReturnsForLender(ctx context.Context, residentID uuid.UUID) ([]*Borrowing, error)
	ActiveForBorrower(ctx context.Context, residentID uuid.UUID) ([]*Borrowing, error)
	ActiveForLender(ctx context.Context, residentID uuid.UUID) ([]*Borrowing, error)
	ListForUser(ctx context.Context, residentID uuid.UUID) (asLender, asBorrower []*Borrowing, err error)

	// StaleRequests reports open requests older than the configured TTL.
	// With no TTL configured it returns nothing; nothing expires
	// automatically either way.
	StaleRequests(ctx context.Context) ([]*Borrowing, error)
}
