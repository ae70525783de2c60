package registry

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the interface for the item registry.
//
// SetStatus is reserved for the borrowing lifecycle, which is the sole
// writer of borrow-driven status flips. Owner edits go through UpdateItem.
type Service interface {
	AddItem(ctx context.Context, ownerID uuid.UUID, name, description string, tags []string, riskLevel string) (*Item, error)
	GetItem(ctx context.Context, id uuid.UUID) (*Item, error)
	ListItems(ctx context.Context) ([]*Item, error)
	UpdateItem(ctx context.Context, id, callerID uuid.UUID, update ItemUpdate) (*Item, error)
	RemoveItem(ctx context.Context, id, callerID uuid.UUID) error
	SetStatus(ctx context.Context, id uuid.UUID, status string) (*Item, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// ReferenceChecker reports whether an item is still claimed by an open
// borrowing. The lifecycle ledger provides it; RemoveItem consults it so
// an item cannot vanish from under a pending or active loan.
type ReferenceChecker interface {
	ItemReferenced(ctx context.Context, itemID uuid.UUID) (bool, error)
}
