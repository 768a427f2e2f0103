package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openmeet/scheduling/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := createTables(context.Background(), pool); err != nil {
		log.Fatalf("create tables: %v", err)
	}
	if err := seedUsers(context.Background(), pool, 200); err != nil {
		log.Fatalf("seed users: %v", err)
	}

	log.Println("seed complete")
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS credentials (
		id           BIGSERIAL PRIMARY KEY,
		user_id      BIGINT,
		type         TEXT NOT NULL,
		app_id       TEXT NOT NULL,
		is_invalid   BOOLEAN NOT NULL DEFAULT FALSE,
		is_delegated BOOLEAN NOT NULL DEFAULT FALSE,
		key          BYTEA
	)`,
	`CREATE TABLE IF NOT EXISTS selected_calendars (
		user_id     BIGINT NOT NULL,
		integration TEXT NOT NULL,
		external_id TEXT NOT NULL,
		UNIQUE (user_id, integration, external_id)
	)`,
	`CREATE TABLE IF NOT EXISTS schedules (
		id        BIGSERIAL PRIMARY KEY,
		owner_uid TEXT NOT NULL UNIQUE,
		timezone  TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS schedule_rules (
		schedule_id  BIGINT NOT NULL REFERENCES schedules(id),
		weekday      SMALLINT NOT NULL,
		start_minute INT NOT NULL,
		end_minute   INT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS schedule_overrides (
		schedule_id  BIGINT NOT NULL REFERENCES schedules(id),
		date         TEXT NOT NULL,
		start_minute INT,
		end_minute   INT
	)`,
	`CREATE TABLE IF NOT EXISTS slot_reservations (
		id             UUID PRIMARY KEY,
		event_type_id  BIGINT NOT NULL,
		slot_start_utc TIMESTAMPTZ NOT NULL,
		slot_end_utc   TIMESTAMPTZ NOT NULL,
		owner_uid      TEXT NOT NULL,
		release_at     TIMESTAMPTZ NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (event_type_id, slot_start_utc, slot_end_utc)
	)`,
}

func createTables(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

var integrations = []struct {
	typ   string
	appID string
}{
	{"google_calendar", "google-calendar"},
	{"office365_calendar", "office365-calendar"},
	{"caldav_calendar", "caldav-calendar"},
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d users with credentials and schedules", count)

	timezones := []string{
		"UTC",
		"America/New_York",
		"Europe/London",
		"Europe/Berlin",
		"Asia/Tokyo",
		"Australia/Sydney",
	}

	for userID := int64(1); userID <= int64(count); userID++ {
		// One or two calendar credentials per user, occasionally invalid or
		// delegated, plus the odd non-calendar credential that aggregation
		// must ignore.
		numCreds := gofakeit.Number(1, 2)
		for c := 0; c < numCreds; c++ {
			integ := integrations[gofakeit.Number(0, len(integrations)-1)]

			var credID int64
			err := pool.QueryRow(ctx, `
				INSERT INTO credentials (user_id, type, app_id, is_invalid, is_delegated, key)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING id
			`, userID, integ.typ, integ.appID,
				gofakeit.Number(0, 9) == 0, // ~10% invalid
				gofakeit.Number(0, 19) == 0, // ~5% delegated
				[]byte(gofakeit.UUID()),
			).Scan(&credID)
			if err != nil {
				return fmt.Errorf("insert credential: %w", err)
			}

			numSelected := gofakeit.Number(0, 3)
			for s := 0; s < numSelected; s++ {
				externalID := gofakeit.Email()
				_, err := pool.Exec(ctx, `
					INSERT INTO selected_calendars (user_id, integration, external_id)
					VALUES ($1, $2, $3)
					ON CONFLICT DO NOTHING
				`, userID, integ.typ, externalID)
				if err != nil {
					return fmt.Errorf("insert selected calendar: %w", err)
				}
			}
		}

		if gofakeit.Number(0, 4) == 0 {
			_, err := pool.Exec(ctx, `
				INSERT INTO credentials (user_id, type, app_id, is_invalid, is_delegated, key)
				VALUES ($1, 'zoom_video', 'zoom', FALSE, FALSE, $2)
			`, userID, []byte(gofakeit.UUID()))
			if err != nil {
				return fmt.Errorf("insert non-calendar credential: %w", err)
			}
		}

		if err := seedSchedule(ctx, pool, fmt.Sprintf("user-%d", userID), timezones[gofakeit.Number(0, len(timezones)-1)]); err != nil {
			return err
		}

		if userID%50 == 0 {
			log.Printf("seeded %d/%d users", userID, count)
		}
	}

	return nil
}

func seedSchedule(ctx context.Context, pool *pgxpool.Pool, ownerUID, tz string) error {
	var scheduleID int64
	err := pool.QueryRow(ctx, `
		INSERT INTO schedules (owner_uid, timezone)
		VALUES ($1, $2)
		ON CONFLICT (owner_uid) DO UPDATE SET timezone = EXCLUDED.timezone
		RETURNING id
	`, ownerUID, tz).Scan(&scheduleID)
	if err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}

	// Mon-Fri working hours with a little jitter.
	startMin := 8*60 + gofakeit.Number(0, 2)*30
	endMin := 16*60 + gofakeit.Number(0, 4)*30
	for weekday := 1; weekday <= 5; weekday++ {
		_, err := pool.Exec(ctx, `
			INSERT INTO schedule_rules (schedule_id, weekday, start_minute, end_minute)
			VALUES ($1, $2, $3, $4)
		`, scheduleID, weekday, startMin, endMin)
		if err != nil {
			return fmt.Errorf("insert schedule rule: %w", err)
		}
	}

	// Occasional day off in the next month.
	if gofakeit.Number(0, 3) == 0 {
		offDate := time.Now().AddDate(0, 0, gofakeit.Number(1, 30)).Format("2006-01-02")
		_, err := pool.Exec(ctx, `
			INSERT INTO schedule_overrides (schedule_id, date, start_minute, end_minute)
			VALUES ($1, $2, NULL, NULL)
		`, scheduleID, offDate)
		if err != nil {
			return fmt.Errorf("insert schedule override: %w", err)
		}
	}

	return nil
}
