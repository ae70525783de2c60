package residents

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("resident not found")

// Resident is a building resident. The lifecycle core only reads this
// data for authorization checks; display fields ride along for the
// directory endpoints.
type Resident struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Floor     int       `json:"floor"`
	Flat      string    `json:"flat,omitempty"`
	Contact   string    `json:"contact,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
