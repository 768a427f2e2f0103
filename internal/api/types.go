package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/openmeet/scheduling/internal/availability"
)

// ScheduleInput mirrors availability.WeeklySchedule for JSON transport.
type ScheduleInput struct {
	TimeZone  string          `json:"timezone"`
	Rules     []RuleInput     `json:"rules"`
	Overrides []OverrideInput `json:"overrides,omitempty"`
}

type RuleInput struct {
	Weekday int    `json:"weekday"` // 0 = Sunday, matching time.Weekday
	Start   string `json:"start"`   // "09:00"
	End     string `json:"end"`     // "17:00"
}

type OverrideInput struct {
	Date        string      `json:"date"` // "2006-01-02"
	Windows     [][2]string `json:"windows,omitempty"`
	Unavailable bool        `json:"unavailable,omitempty"`
}

type ComputeSlotsRequest struct {
	OwnerUID            string         `json:"owner_uid,omitempty"` // schedule looked up when set
	Schedule            *ScheduleInput `json:"schedule,omitempty"`  // inline schedule otherwise
	UserID              *int64         `json:"user_id,omitempty"`   // busy intervals pulled from this user's calendars
	DateFrom            time.Time      `json:"date_from"`
	DateTo              time.Time      `json:"date_to"`
	SlotDurationMinutes int            `json:"slot_duration_minutes"`
	SeatsPerSlot        int            `json:"seats_per_slot,omitempty"`
	AttendeeCounts      map[int64]int  `json:"attendee_counts,omitempty"` // slot start unix -> confirmed attendees
}

type SlotResponse struct {
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	SeatsRemaining *int      `json:"seats_remaining,omitempty"`
}

type DaySlotsResponse struct {
	Date  string         `json:"date"`
	Slots []SlotResponse `json:"slots"`
}

type ComputeSlotsResponse struct {
	Days          []DaySlotsResponse `json:"days"`
	FailedSources []FailedSource     `json:"failed_sources,omitempty"`
}

type BusyIntervalResponse struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Source string    `json:"source"`
}

type FailedSource struct {
	CredentialID int64  `json:"credential_id"`
	AppID        string `json:"app_id,omitempty"`
	Error        string `json:"error"`
}

type BusyIntervalsResponse struct {
	Busy          []BusyIntervalResponse `json:"busy"`
	FailedSources []FailedSource         `json:"failed_sources,omitempty"`
}

type ReserveSlotRequest struct {
	EventTypeID int64     `json:"event_type_id"`
	SlotStart   time.Time `json:"slot_start"`
	SlotEnd     time.Time `json:"slot_end"`
	OwnerUID    string    `json:"owner_uid"`
	TTLSeconds  int       `json:"ttl_seconds,omitempty"`
}

type ReservationResponse struct {
	ID          uuid.UUID `json:"id"`
	EventTypeID int64     `json:"event_type_id"`
	SlotStart   time.Time `json:"slot_start"`
	SlotEnd     time.Time `json:"slot_end"`
	OwnerUID    string    `json:"owner_uid"`
	ReleaseAt   time.Time `json:"release_at"`
}

type IsReservedResponse struct {
	Reserved bool `json:"reserved"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func daysToResponse(days []availability.DaySlots) []DaySlotsResponse {
	out := make([]DaySlotsResponse, len(days))
	for i, d := range days {
		slots := make([]SlotResponse, len(d.Slots))
		for j, s := range d.Slots {
			slots[j] = SlotResponse{Start: s.Start, End: s.End, SeatsRemaining: s.SeatsRemaining}
		}
		out[i] = DaySlotsResponse{Date: d.Date, Slots: slots}
	}
	return out
}
