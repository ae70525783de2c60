package registry

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Item statuses. An item is "borrowed" exactly while a confirmed
// borrowing references it; "unavailable" is an owner-set state
// (archived, under repair, lent outside the building).
const (
	StatusAvailable   = "available"
	StatusBorrowed    = "borrowed"
	StatusUnavailable = "unavailable"
)

// Risk levels, advisory only.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

var (
	ErrNotFound        = errors.New("item not found")
	ErrNotOwner        = errors.New("caller is not the item owner")
	ErrItemReferenced  = errors.New("item is referenced by an open borrowing")
	ErrVersionConflict = errors.New("item version conflict")
	ErrInvalidField    = errors.New("invalid field value")
)

// Item represents a thing a resident offers for borrowing.
type Item struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	OwnerID     uuid.UUID `json:"owner_id"`
	Status      string    `json:"status"`
	RiskLevel   string    `json:"risk_level,omitempty"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ValidStatus reports whether s is one of the item statuses.
func ValidStatus(s string) bool {
	return s == StatusAvailable || s == StatusBorrowed || s == StatusUnavailable
}

// ValidRiskLevel reports whether s is a known risk level. Empty means unset.
func ValidRiskLevel(s string) bool {
	return s == "" || s == RiskLow || s == RiskMedium || s == RiskHigh
}

// ItemUpdate carries the owner-editable fields. Nil fields are left as is.
type ItemUpdate struct {
	Name        *string
	Description *string
	Tags        *[]string
	Status      *string
	RiskLevel   *string
}
