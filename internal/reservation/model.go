package reservation

import (
	"time"

	"github.com/google/uuid"
)

// Reservation is a time-boxed, single-owner hold on one exact slot instant
// pair. A reservation past ReleaseAt is treated as absent everywhere.
type Reservation struct {
	ID          uuid.UUID
	EventTypeID int64
	SlotStart   time.Time
	SlotEnd     time.Time
	OwnerUID    string
	ReleaseAt   time.Time
	CreatedAt   time.Time
}

// Expired reports whether the hold is past its release instant.
func (r Reservation) Expired(now time.Time) bool {
	return !r.ReleaseAt.After(now)
}
