package reservation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/openmeet/scheduling/internal/redis"
)

var (
	ErrSlotBeingReserved = errors.New("slot is currently being reserved, please retry")
)

// Service is the reservation ledger consumed by the booking/checkout flow.
// The check-then-create sequence is guarded by a distributed per-slot lock,
// but the repository's uniqueness constraint remains the true arbiter: if
// two bookers race past the check, exactly one Reserve wins and the loser
// gets ErrReservationConflict.
type Service struct {
	repo       Repository
	locker     redisclient.Locker
	defaultTTL time.Duration
	clock      Clock
}

func NewService(repo Repository, locker redisclient.Locker, defaultTTL time.Duration, clock Clock) *Service {
	if clock == nil {
		clock = SystemClock()
	}
	return &Service{
		repo:       repo,
		locker:     locker,
		defaultTTL: defaultTTL,
		clock:      clock,
	}
}

// IsReservedByOther reports whether someone other than callerUID holds a
// live reservation on the exact slot. The caller's own hold never blocks.
func (s *Service) IsReservedByOther(ctx context.Context, eventTypeID int64, slotStart, slotEnd time.Time, callerUID string) (bool, error) {
	return s.repo.IsReservedByOther(ctx, eventTypeID, slotStart, slotEnd, callerUID, s.clock.Now())
}

// Reserve creates or renews a hold on the slot for ownerUID. A zero ttl uses
// the service default. Re-reserving one's own slot extends the hold; a live
// hold by another owner yields ErrReservationConflict.
func (s *Service) Reserve(ctx context.Context, eventTypeID int64, slotStart, slotEnd time.Time, ownerUID string, ttl time.Duration) (*Reservation, error) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	var created *Reservation

	err := s.locker.WithSlotLock(ctx, eventTypeID, slotStart, slotEnd, func(lockCtx context.Context) error {
		now := s.clock.Now()

		reserved, err := s.repo.IsReservedByOther(lockCtx, eventTypeID, slotStart, slotEnd, ownerUID, now)
		if err != nil {
			return fmt.Errorf("check reservation: %w", err)
		}
		if reserved {
			return ErrReservationConflict
		}

		res, err := s.repo.Reserve(lockCtx, eventTypeID, slotStart, slotEnd, ownerUID, now.Add(ttl), now)
		if err != nil {
			return err
		}

		created = res
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingReserved
		}
		return nil, err
	}

	log.Printf("slot reserved event_type=%d start=%s owner=%s release_at=%s",
		eventTypeID, created.SlotStart.Format(time.RFC3339), ownerUID, created.ReleaseAt.Format(time.RFC3339))

	return created, nil
}

// Release drops a hold. Idempotent: releasing an absent or expired
// reservation is a no-op, not an error.
func (s *Service) Release(ctx context.Context, id uuid.UUID) error {
	return s.repo.Release(ctx, id)
}

// ReapExpired deletes reservations past their release instant. Intended for
// the periodic worker; expiry correctness never depends on it because reads
// already treat expired rows as absent.
func (s *Service) ReapExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.clock.Now())
}
