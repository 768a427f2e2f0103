package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type RouterConfig struct {
	Handlers *Handlers
	PgPool   *pgxpool.Pool
	Redis    *redis.Client
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Availability
	r.Post("/slots/compute", cfg.Handlers.computeSlots)
	r.Get("/users/{id}/busy", cfg.Handlers.getBusyIntervals)

	// Reservation ledger
	r.Post("/reservations", cfg.Handlers.reserveSlot)
	r.Get("/reservations/check", cfg.Handlers.isReserved)
	r.Delete("/reservations/{id}", cfg.Handlers.releaseReservation)

	return r
}
