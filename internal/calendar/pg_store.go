package calendar

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrCredentialNotFound = errors.New("credential not found")
)

// PgStore loads stored integration credentials and calendar selections.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func scanCredential(row pgx.Row) (*Credential, error) {
	var c Credential
	var userID *int64

	err := row.Scan(
		&c.ID,
		&userID,
		&c.Type,
		&c.AppID,
		&c.IsInvalid,
		&c.IsDelegated,
		&c.Key,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCredentialNotFound
		}
		return nil, err
	}

	c.UserID = userID
	return &c, nil
}

// CredentialsForUser returns every credential attached to a user, including
// invalid ones; filtering happens at aggregation time.
func (s *PgStore) CredentialsForUser(ctx context.Context, userID int64) ([]Credential, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, type, app_id, is_invalid, is_delegated, key
		FROM credentials
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query credentials: %w", err)
	}
	defer rows.Close()

	var result []Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// GetCredentialByID loads a single credential.
func (s *PgStore) GetCredentialByID(ctx context.Context, id int64) (*Credential, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, type, app_id, is_invalid, is_delegated, key
		FROM credentials
		WHERE id = $1
	`, id)
	return scanCredential(row)
}

// SelectedCalendarsForUser returns the user's externally chosen calendars.
func (s *PgStore) SelectedCalendarsForUser(ctx context.Context, userID int64) ([]SelectedCalendar, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT integration, external_id
		FROM selected_calendars
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query selected calendars: %w", err)
	}
	defer rows.Close()

	var result []SelectedCalendar
	for rows.Next() {
		var sc SelectedCalendar
		if err := rows.Scan(&sc.Integration, &sc.ExternalID); err != nil {
			return nil, err
		}
		result = append(result, sc)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// UpsertSelectedCalendar records a calendar choice, idempotently.
func (s *PgStore) UpsertSelectedCalendar(ctx context.Context, userID int64, sc SelectedCalendar) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO selected_calendars (user_id, integration, external_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, integration, external_id) DO NOTHING
	`, userID, sc.Integration, sc.ExternalID)
	if err != nil {
		return fmt.Errorf("upsert selected calendar: %w", err)
	}
	return nil
}

// MarkCredentialInvalid flags a credential so aggregation stops querying it.
// Callers use this when an upstream rejects the stored key permanently.
func (s *PgStore) MarkCredentialInvalid(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE credentials
		SET is_invalid = TRUE
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("mark credential invalid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCredentialNotFound
	}
	return nil
}
