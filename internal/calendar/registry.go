package calendar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrProviderNotFound = errors.New("no calendar provider registered for integration type")
)

// Service is the capability every calendar integration implements. Busy
// intervals are fetched for the externally selected calendar ids only; an
// empty selection means the implementation may fall back to the account's
// primary calendar.
type Service interface {
	GetAvailability(ctx context.Context, from, to time.Time, selected []SelectedCalendar, serveCache bool) ([]BusyInterval, error)
}

// TimeZoneService is implemented by providers that report per-calendar
// timezone metadata alongside busy intervals.
type TimeZoneService interface {
	GetAvailabilityWithTimeZones(ctx context.Context, from, to time.Time, selected []SelectedCalendar) ([]BusyIntervalTZ, error)
}

// Factory builds a calendar service from a stored credential. Factories are
// registered per integration type.
type Factory func(cred Credential) (Service, error)

// Registry maps integration types to calendar service factories. Safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register installs a factory for an integration type, replacing any previous
// registration.
func (r *Registry) Register(integrationType string, f Factory) {
	r.mu.Lock()
	r.factories[integrationType] = f
	r.mu.Unlock()
}

// Resolve builds a calendar service for the credential. An unregistered type
// or a failing factory is a per-credential error, never a panic.
func (r *Registry) Resolve(cred Credential) (Service, error) {
	r.mu.RLock()
	f, ok := r.factories[cred.Type]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, cred.Type)
	}

	svc, err := f(cred)
	if err != nil {
		return nil, fmt.Errorf("init %s service for credential %d: %w", cred.Type, cred.ID, err)
	}
	return svc, nil
}
