package residents

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the interface for the resident directory.
type Service interface {
	AddResident(ctx context.Context, name string, floor int, flat, contact string) (*Resident, error)
	GetResident(ctx context.Context, id uuid.UUID) (*Resident, error)
	ListResidents(ctx context.Context) ([]*Resident, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}
