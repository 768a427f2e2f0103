package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanReservation(row pgx.Row) (*Reservation, error) {
	var r Reservation

	err := row.Scan(
		&r.ID,
		&r.EventTypeID,
		&r.SlotStart,
		&r.SlotEnd,
		&r.OwnerUID,
		&r.ReleaseAt,
		&r.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}

	return &r, nil
}

// Reserve upserts against the unique index on the slot triple. The update
// arm only fires when the existing row belongs to the same owner or has
// expired; a live hold by someone else produces no row, which maps to
// ErrReservationConflict. This single statement is the true arbiter when two
// bookers race past the advisory check.
func (r *PgRepository) Reserve(ctx context.Context, eventTypeID int64, slotStart, slotEnd time.Time, ownerUID string, releaseAt, now time.Time) (*Reservation, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO slot_reservations (id, event_type_id, slot_start_utc, slot_end_utc, owner_uid, release_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_type_id, slot_start_utc, slot_end_utc) DO UPDATE
		SET owner_uid  = EXCLUDED.owner_uid,
		    release_at = EXCLUDED.release_at
		WHERE slot_reservations.owner_uid = EXCLUDED.owner_uid
		   OR slot_reservations.release_at <= $8
		RETURNING id, event_type_id, slot_start_utc, slot_end_utc, owner_uid, release_at, created_at
	`, id, eventTypeID, slotStart.UTC(), slotEnd.UTC(), ownerUID, releaseAt.UTC(), now.UTC(), now.UTC())

	res, err := scanReservation(row)
	if err != nil {
		if errors.Is(err, ErrReservationNotFound) {
			return nil, ErrReservationConflict
		}
		return nil, fmt.Errorf("reserve slot: %w", err)
	}

	return res, nil
}

func (r *PgRepository) IsReservedByOther(ctx context.Context, eventTypeID int64, slotStart, slotEnd time.Time, callerUID string, now time.Time) (bool, error) {
	var reserved bool

	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM slot_reservations
			WHERE event_type_id = $1
			  AND slot_start_utc = $2
			  AND slot_end_utc = $3
			  AND owner_uid <> $4
			  AND release_at > $5
		)
	`, eventTypeID, slotStart.UTC(), slotEnd.UTC(), callerUID, now.UTC()).Scan(&reserved)
	if err != nil {
		return false, fmt.Errorf("check slot reservation: %w", err)
	}

	return reserved, nil
}

func (r *PgRepository) Release(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM slot_reservations
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("release reservation: %w", err)
	}
	return nil
}

func (r *PgRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM slot_reservations
		WHERE release_at <= $1
	`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired reservations: %w", err)
	}
	return tag.RowsAffected(), nil
}
