package reservation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrReservationNotFound = errors.New("reservation not found")
	ErrReservationConflict = errors.New("slot is reserved by another booker")
)

// Repository contains all storage interactions for the ledger. Every
// operation that compares against "now" takes it as a parameter; the store
// itself never reads the clock.
type Repository interface {
	// Reserve creates or renews a hold on the exact slot triple. The store's
	// uniqueness constraint on (event_type_id, slot_start_utc, slot_end_utc)
	// is the arbiter under races: when another owner holds a live
	// reservation for the triple, Reserve returns ErrReservationConflict.
	// An owner re-reserving their own slot renews the hold instead.
	Reserve(ctx context.Context, eventTypeID int64, slotStart, slotEnd time.Time, ownerUID string, releaseAt, now time.Time) (*Reservation, error)

	// IsReservedByOther reports whether a live reservation for the exact
	// triple exists whose owner is not callerUID. Expired rows are invisible.
	IsReservedByOther(ctx context.Context, eventTypeID int64, slotStart, slotEnd time.Time, callerUID string, now time.Time) (bool, error)

	// Release deletes a hold by id. Releasing an absent, expired or already
	// released reservation is a no-op.
	Release(ctx context.Context, id uuid.UUID) error

	// DeleteExpired removes rows past their release instant. Storage hygiene
	// only; correctness never depends on it.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
