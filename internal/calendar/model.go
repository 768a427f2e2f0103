package calendar

import (
	"sort"
	"strings"
	"time"
)

// CalendarTypeSuffix is the naming convention shared by every calendar
// integration type, e.g. "google_calendar", "office365_calendar".
const CalendarTypeSuffix = "_calendar"

// GoogleCalendarType is the only integration that reports per-calendar
// timezone metadata.
const GoogleCalendarType = "google_calendar"

// Credential is a stored integration credential attached to a user or team.
type Credential struct {
	ID          int64
	UserID      *int64
	Type        string // integration type, e.g. "google_calendar"
	AppID       string // application identifier used to tag busy intervals
	IsInvalid   bool   // invalid credentials are excluded from aggregation
	IsDelegated bool   // granted at organization level, not per-user
	Key         []byte // opaque provider payload (tokens etc.)
}

// IsCalendar reports whether the credential's integration type denotes a
// calendar service.
func (c Credential) IsCalendar() bool {
	return strings.HasSuffix(c.Type, CalendarTypeSuffix)
}

// SelectedCalendar associates an integration type with one externally chosen
// calendar id.
type SelectedCalendar struct {
	Integration string
	ExternalID  string
}

// BusyInterval is a half-open [Start, End) range during which the source
// calendar is unavailable. Source carries the originating credential's AppID.
type BusyInterval struct {
	Start  time.Time
	End    time.Time
	Source string
}

// Overlaps reports whether the interval has nonzero overlap with [start, end).
// Touching endpoints do not count.
func (b BusyInterval) Overlaps(start, end time.Time) bool {
	return start.Before(b.End) && b.Start.Before(end)
}

// BusyIntervalTZ is a busy interval annotated with the timezone the source
// calendar reports, for callers rendering in the calendar's native zone.
type BusyIntervalTZ struct {
	BusyInterval
	TimeZone string
}

// filterSelected returns the selected calendars matching the given integration
// type, sorted by external id. The sort stabilizes cache keys built from the
// selected set downstream; it does not order aggregator output.
func filterSelected(selected []SelectedCalendar, integration string) []SelectedCalendar {
	var matched []SelectedCalendar
	for _, sc := range selected {
		if sc.Integration == integration {
			matched = append(matched, sc)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ExternalID < matched[j].ExternalID
	})
	return matched
}
