package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrScheduleNotFound = errors.New("schedule not found")
)

// PgStore loads weekly schedules. Rules and override windows are stored as
// minute-of-day pairs; an override row with null minutes marks the whole date
// unavailable.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// ScheduleForOwner loads the owner's schedule with all rules and overrides.
func (s *PgStore) ScheduleForOwner(ctx context.Context, ownerUID string) (*WeeklySchedule, error) {
	var scheduleID int64
	var tz string

	err := s.pool.QueryRow(ctx, `
		SELECT id, timezone
		FROM schedules
		WHERE owner_uid = $1
	`, ownerUID).Scan(&scheduleID, &tz)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScheduleNotFound
		}
		return nil, fmt.Errorf("query schedule: %w", err)
	}

	schedule := &WeeklySchedule{TimeZone: tz}

	rules, err := s.loadRules(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	schedule.Rules = rules

	overrides, err := s.loadOverrides(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	schedule.Overrides = overrides

	return schedule, nil
}

func (s *PgStore) loadRules(ctx context.Context, scheduleID int64) ([]WindowRule, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT weekday, start_minute, end_minute
		FROM schedule_rules
		WHERE schedule_id = $1
		ORDER BY weekday, start_minute
	`, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("query schedule rules: %w", err)
	}
	defer rows.Close()

	var rules []WindowRule
	for rows.Next() {
		var weekday, startMin, endMin int
		if err := rows.Scan(&weekday, &startMin, &endMin); err != nil {
			return nil, err
		}
		rules = append(rules, WindowRule{
			Weekday: time.Weekday(weekday),
			Window:  windowFromMinutes(startMin, endMin),
		})
	}

	return rules, rows.Err()
}

func (s *PgStore) loadOverrides(ctx context.Context, scheduleID int64) ([]DateOverride, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT date, start_minute, end_minute
		FROM schedule_overrides
		WHERE schedule_id = $1
		ORDER BY date, start_minute NULLS FIRST
	`, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("query schedule overrides: %w", err)
	}
	defer rows.Close()

	// Multiple windows for the same date collapse into one override entry.
	byDate := make(map[string]int)
	var overrides []DateOverride

	for rows.Next() {
		var date string
		var startMin, endMin *int
		if err := rows.Scan(&date, &startMin, &endMin); err != nil {
			return nil, err
		}

		idx, seen := byDate[date]
		if !seen {
			overrides = append(overrides, DateOverride{Date: date})
			idx = len(overrides) - 1
			byDate[date] = idx
		}

		if startMin == nil || endMin == nil {
			overrides[idx].Unavailable = true
			continue
		}
		overrides[idx].Windows = append(overrides[idx].Windows, windowFromMinutes(*startMin, *endMin))
	}

	return overrides, rows.Err()
}

func windowFromMinutes(startMin, endMin int) Window {
	return Window{
		Start: TimeOfDay{Hour: startMin / 60, Minute: startMin % 60},
		End:   TimeOfDay{Hour: endMin / 60, Minute: endMin % 60},
	}
}
