package reservation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable time source so expiry can be simulated without
// sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// memRepository mirrors the Postgres arbiter semantics in memory: one row per
// slot triple, updates allowed only for the same owner or an expired hold.
type memRepository struct {
	mu   sync.Mutex
	rows map[[3]int64]*Reservation
}

func newMemRepository() *memRepository {
	return &memRepository{rows: make(map[[3]int64]*Reservation)}
}

func tripleKey(eventTypeID int64, slotStart, slotEnd time.Time) [3]int64 {
	return [3]int64{eventTypeID, slotStart.UTC().Unix(), slotEnd.UTC().Unix()}
}

func (m *memRepository) Reserve(ctx context.Context, eventTypeID int64, slotStart, slotEnd time.Time, ownerUID string, releaseAt, now time.Time) (*Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := tripleKey(eventTypeID, slotStart, slotEnd)
	if existing, ok := m.rows[key]; ok {
		if existing.OwnerUID != ownerUID && !existing.Expired(now) {
			return nil, ErrReservationConflict
		}
		existing.OwnerUID = ownerUID
		existing.ReleaseAt = releaseAt
		out := *existing
		return &out, nil
	}

	res := &Reservation{
		ID:          uuid.New(),
		EventTypeID: eventTypeID,
		SlotStart:   slotStart.UTC(),
		SlotEnd:     slotEnd.UTC(),
		OwnerUID:    ownerUID,
		ReleaseAt:   releaseAt,
		CreatedAt:   now,
	}
	m.rows[key] = res
	out := *res
	return &out, nil
}

func (m *memRepository) IsReservedByOther(ctx context.Context, eventTypeID int64, slotStart, slotEnd time.Time, callerUID string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.rows[tripleKey(eventTypeID, slotStart, slotEnd)]
	if !ok {
		return false, nil
	}
	return existing.OwnerUID != callerUID && !existing.Expired(now), nil
}

func (m *memRepository) Release(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, res := range m.rows {
		if res.ID == id {
			delete(m.rows, key)
			return nil
		}
	}
	return nil
}

func (m *memRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for key, res := range m.rows {
		if res.Expired(now) {
			delete(m.rows, key)
			n++
		}
	}
	return n, nil
}

// passthroughLocker runs the critical section without any distributed lock,
// leaving the repository arbiter as the only protection, which is exactly the
// race the exclusivity test exercises.
type passthroughLocker struct{}

func (passthroughLocker) WithSlotLock(ctx context.Context, eventTypeID int64, slotStart, slotEnd time.Time, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var (
	slotStart = time.Date(2026, 4, 6, 10, 0, 0, 0, time.UTC)
	slotEnd   = slotStart.Add(30 * time.Minute)
)

func newTestService(clock Clock) (*Service, *memRepository) {
	repo := newMemRepository()
	svc := NewService(repo, passthroughLocker{}, 10*time.Minute, clock)
	return svc, repo
}

func TestReserveAndCheck(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC))
	svc, _ := newTestService(clock)
	ctx := context.Background()

	res, err := svc.Reserve(ctx, 1, slotStart, slotEnd, "alice", 0)
	require.NoError(t, err)
	assert.Equal(t, "alice", res.OwnerUID)
	assert.Equal(t, clock.Now().Add(10*time.Minute), res.ReleaseAt)

	// Someone else sees the slot as taken.
	reserved, err := svc.IsReservedByOther(ctx, 1, slotStart, slotEnd, "bob")
	require.NoError(t, err)
	assert.True(t, reserved)
}

func TestIsReservedSelfExclusion(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC))
	svc, _ := newTestService(clock)
	ctx := context.Background()

	_, err := svc.Reserve(ctx, 1, slotStart, slotEnd, "alice", 0)
	require.NoError(t, err)

	// The holder's own reservation never blocks them.
	reserved, err := svc.IsReservedByOther(ctx, 1, slotStart, slotEnd, "alice")
	require.NoError(t, err)
	assert.False(t, reserved)
}

func TestReserveConflictBetweenOwners(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC))
	svc, _ := newTestService(clock)
	ctx := context.Background()

	_, err := svc.Reserve(ctx, 1, slotStart, slotEnd, "alice", 0)
	require.NoError(t, err)

	_, err = svc.Reserve(ctx, 1, slotStart, slotEnd, "bob", 0)
	assert.ErrorIs(t, err, ErrReservationConflict)

	// A different slot triple is unaffected.
	_, err = svc.Reserve(ctx, 1, slotEnd, slotEnd.Add(30*time.Minute), "bob", 0)
	assert.NoError(t, err)
}

func TestReserveRenewsOwnHold(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC))
	svc, _ := newTestService(clock)
	ctx := context.Background()

	first, err := svc.Reserve(ctx, 1, slotStart, slotEnd, "alice", 0)
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)

	renewed, err := svc.Reserve(ctx, 1, slotStart, slotEnd, "alice", 0)
	require.NoError(t, err)
	assert.True(t, renewed.ReleaseAt.After(first.ReleaseAt), "re-reserving must extend the hold")
}

func TestExpiredReservationIsInvisible(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC))
	svc, _ := newTestService(clock)
	ctx := context.Background()

	_, err := svc.Reserve(ctx, 1, slotStart, slotEnd, "alice", 0)
	require.NoError(t, err)

	clock.Advance(11 * time.Minute)

	reserved, err := svc.IsReservedByOther(ctx, 1, slotStart, slotEnd, "bob")
	require.NoError(t, err)
	assert.False(t, reserved, "expired hold must be treated as absent")

	// And the slot can be taken over.
	res, err := svc.Reserve(ctx, 1, slotStart, slotEnd, "bob", 0)
	require.NoError(t, err)
	assert.Equal(t, "bob", res.OwnerUID)
}

func TestReleaseIsIdempotent(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC))
	svc, _ := newTestService(clock)
	ctx := context.Background()

	res, err := svc.Reserve(ctx, 1, slotStart, slotEnd, "alice", 0)
	require.NoError(t, err)

	require.NoError(t, svc.Release(ctx, res.ID))
	require.NoError(t, svc.Release(ctx, res.ID), "double release is a no-op")
	require.NoError(t, svc.Release(ctx, uuid.New()), "releasing an unknown id is a no-op")

	reserved, err := svc.IsReservedByOther(ctx, 1, slotStart, slotEnd, "bob")
	require.NoError(t, err)
	assert.False(t, reserved)
}

func TestConcurrentReserveExactlyOneWins(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC))
	svc, _ := newTestService(clock)
	ctx := context.Background()

	const bookers = 32

	var wg sync.WaitGroup
	errs := make([]error, bookers)
	for i := 0; i < bookers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Reserve(ctx, 42, slotStart, slotEnd, uuid.NewString(), 0)
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		default:
			require.ErrorIs(t, err, ErrReservationConflict)
			conflicts++
		}
	}

	assert.Equal(t, 1, wins, "exactly one concurrent reserve must win")
	assert.Equal(t, bookers-1, conflicts)
}

func TestReapExpired(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC))
	svc, repo := newTestService(clock)
	ctx := context.Background()

	_, err := svc.Reserve(ctx, 1, slotStart, slotEnd, "alice", 5*time.Minute)
	require.NoError(t, err)
	_, err = svc.Reserve(ctx, 2, slotStart, slotEnd, "bob", time.Hour)
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)

	reaped, err := svc.ReapExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, reaped)
	assert.Len(t, repo.rows, 1)
}

func TestDefaultTTLApplied(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC))
	svc, _ := newTestService(clock)

	res, err := svc.Reserve(context.Background(), 1, slotStart, slotEnd, "alice", 0)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(10*time.Minute), res.ReleaseAt)

	res2, err := svc.Reserve(context.Background(), 1, slotStart, slotEnd, "alice", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(time.Minute), res2.ReleaseAt)
}
