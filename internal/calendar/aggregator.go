package calendar

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

var (
	ErrNoTimeZoneSupport = errors.New("calendar service does not report timezones")
)

// CredentialFailure records a per-credential resolution or fetch error.
// Failures are a side channel: aggregation always returns whatever intervals
// the healthy credentials produced.
type CredentialFailure struct {
	CredentialID int64
	AppID        string
	Err          error
}

// Aggregator fans busy-interval fetches out across all of a user's calendar
// credentials and flattens the results.
type Aggregator struct {
	registry *Registry
}

func NewAggregator(registry *Registry) *Aggregator {
	return &Aggregator{registry: registry}
}

// GetBusyIntervals fetches busy intervals over [from, to] for every valid
// calendar credential, restricted to the externally selected calendars.
//
// Each credential only sees the selected calendars matching its integration
// type, sorted by external id so any cache keyed on the calendar-id list is
// stable regardless of input order. A non-delegated credential with zero
// selected calendars is skipped entirely: no calendars chosen means no
// constraint, not "fully busy". Delegated credentials are queried anyway and
// the service is expected to fall back to the primary calendar.
//
// One credential failing never fails the batch; failures come back separately
// and the caller decides whether partial busy data is acceptable. Ordering of
// the returned intervals is unspecified.
func (a *Aggregator) GetBusyIntervals(ctx context.Context, creds []Credential, from, to time.Time, selected []SelectedCalendar, serveCache bool) ([]BusyInterval, []CredentialFailure) {
	calCreds := CalendarCredentials(creds)
	services, failures := resolveAll(a.registry, calCreds)

	perCred := make([][]BusyInterval, len(services))
	fetchErrs := make([]error, len(services))

	var wg sync.WaitGroup
	for i, rs := range services {
		passed := filterSelected(selected, rs.cred.Type)

		if len(passed) == 0 && !rs.cred.IsDelegated {
			log.Printf("no selected calendars for credential_id=%d type=%s, skipping fetch", rs.cred.ID, rs.cred.Type)
			continue
		}

		wg.Add(1)
		go func(i int, rs resolved, passed []SelectedCalendar) {
			defer wg.Done()
			intervals, err := rs.svc.GetAvailability(ctx, from, to, passed, serveCache)
			if err != nil {
				fetchErrs[i] = err
				return
			}
			tagged := make([]BusyInterval, len(intervals))
			for j, iv := range intervals {
				iv.Source = rs.cred.AppID
				tagged[j] = iv
			}
			perCred[i] = tagged
		}(i, rs, passed)
	}
	wg.Wait()

	var flat []BusyInterval
	for i, rs := range services {
		if err := fetchErrs[i]; err != nil {
			log.Printf("busy fetch failed credential_id=%d app=%s err=%v", rs.cred.ID, rs.cred.AppID, err)
			failures = append(failures, CredentialFailure{
				CredentialID: rs.cred.ID,
				AppID:        rs.cred.AppID,
				Err:          fmt.Errorf("fetch busy intervals: %w", err),
			})
			continue
		}
		flat = append(flat, perCred[i]...)
	}

	return flat, failures
}

// GetBusyIntervalsWithTimeZones is the timezone-annotated variant, restricted
// to the google_calendar provider. Services resolved for other types, or ones
// that do not implement TimeZoneService, are reported as failures.
func (a *Aggregator) GetBusyIntervalsWithTimeZones(ctx context.Context, creds []Credential, from, to time.Time, selected []SelectedCalendar) ([]BusyIntervalTZ, []CredentialFailure) {
	calCreds := GoogleCredentials(creds)
	services, failures := resolveAll(a.registry, calCreds)

	perCred := make([][]BusyIntervalTZ, len(services))
	fetchErrs := make([]error, len(services))

	var wg sync.WaitGroup
	for i, rs := range services {
		tzSvc, ok := rs.svc.(TimeZoneService)
		if !ok {
			fetchErrs[i] = ErrNoTimeZoneSupport
			continue
		}

		passed := filterSelected(selected, rs.cred.Type)
		if len(passed) == 0 && !rs.cred.IsDelegated {
			continue
		}

		wg.Add(1)
		go func(i int, rs resolved, tzSvc TimeZoneService, passed []SelectedCalendar) {
			defer wg.Done()
			intervals, err := tzSvc.GetAvailabilityWithTimeZones(ctx, from, to, passed)
			if err != nil {
				fetchErrs[i] = err
				return
			}
			tagged := make([]BusyIntervalTZ, len(intervals))
			for j, iv := range intervals {
				iv.Source = rs.cred.AppID
				tagged[j] = iv
			}
			perCred[i] = tagged
		}(i, rs, tzSvc, passed)
	}
	wg.Wait()

	var flat []BusyIntervalTZ
	for i, rs := range services {
		if err := fetchErrs[i]; err != nil {
			failures = append(failures, CredentialFailure{
				CredentialID: rs.cred.ID,
				AppID:        rs.cred.AppID,
				Err:          fmt.Errorf("fetch busy intervals with timezones: %w", err),
			})
			continue
		}
		flat = append(flat, perCred[i]...)
	}

	return flat, failures
}
