package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/openmeet/scheduling/internal/availability"
	"github.com/openmeet/scheduling/internal/calendar"
	"github.com/openmeet/scheduling/internal/reservation"
)

// Handlers bundles the core services behind the HTTP surface.
type Handlers struct {
	schedules    *availability.PgStore
	calendars    *calendar.PgStore
	aggregator   *calendar.Aggregator
	reservations *reservation.Service
}

func NewHandlers(schedules *availability.PgStore, calendars *calendar.PgStore, aggregator *calendar.Aggregator, reservations *reservation.Service) *Handlers {
	return &Handlers{
		schedules:    schedules,
		calendars:    calendars,
		aggregator:   aggregator,
		reservations: reservations,
	}
}

func (h *Handlers) computeSlots(w http.ResponseWriter, r *http.Request) {
	var req ComputeSlotsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	if req.SlotDurationMinutes <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_slot_duration", "slot_duration_minutes must be positive")
		return
	}

	schedule, err := h.resolveSchedule(r, &req)
	if err != nil {
		handleScheduleError(w, err)
		return
	}

	var busy []calendar.BusyInterval
	var failures []calendar.CredentialFailure
	if req.UserID != nil {
		busy, failures, err = h.busyForUser(r, *req.UserID, req.DateFrom, req.DateTo)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
	}

	var seats *availability.SeatOptions
	if req.SeatsPerSlot > 0 {
		seats = &availability.SeatOptions{
			SeatsPerSlot:   req.SeatsPerSlot,
			AttendeeCounts: req.AttendeeCounts,
		}
	}

	days, err := availability.ComputeSlots(
		*schedule,
		busy,
		req.DateFrom,
		req.DateTo,
		time.Duration(req.SlotDurationMinutes)*time.Minute,
		seats,
	)
	if err != nil {
		handleScheduleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ComputeSlotsResponse{
		Days:          daysToResponse(days),
		FailedSources: failuresToResponse(failures),
	})
}

func (h *Handlers) resolveSchedule(r *http.Request, req *ComputeSlotsRequest) (*availability.WeeklySchedule, error) {
	if req.Schedule != nil {
		return scheduleFromInput(req.Schedule)
	}
	if req.OwnerUID == "" {
		return nil, fmt.Errorf("%w: schedule or owner_uid is required", availability.ErrInvalidSchedule)
	}
	return h.schedules.ScheduleForOwner(r.Context(), req.OwnerUID)
}

func (h *Handlers) busyForUser(r *http.Request, userID int64, from, to time.Time) ([]calendar.BusyInterval, []calendar.CredentialFailure, error) {
	creds, err := h.calendars.CredentialsForUser(r.Context(), userID)
	if err != nil {
		return nil, nil, fmt.Errorf("load credentials: %w", err)
	}
	selected, err := h.calendars.SelectedCalendarsForUser(r.Context(), userID)
	if err != nil {
		return nil, nil, fmt.Errorf("load selected calendars: %w", err)
	}

	busy, failures := h.aggregator.GetBusyIntervals(r.Context(), creds, from, to, selected, true)
	return busy, failures, nil
}

func (h *Handlers) getBusyIntervals(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_user_id", "id must be an integer")
		return
	}

	from, to, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_range", err.Error())
		return
	}

	busy, failures, err := h.busyForUser(r, userID, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	resp := BusyIntervalsResponse{FailedSources: failuresToResponse(failures)}
	resp.Busy = make([]BusyIntervalResponse, len(busy))
	for i, b := range busy {
		resp.Busy[i] = BusyIntervalResponse{Start: b.Start, End: b.End, Source: b.Source}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) reserveSlot(w http.ResponseWriter, r *http.Request) {
	var req ReserveSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	if req.OwnerUID == "" {
		writeError(w, http.StatusBadRequest, "invalid_owner_uid", "owner_uid is required")
		return
	}
	if !req.SlotEnd.After(req.SlotStart) {
		writeError(w, http.StatusBadRequest, "invalid_slot", "slot_end must be after slot_start")
		return
	}

	res, err := h.reservations.Reserve(
		r.Context(),
		req.EventTypeID,
		req.SlotStart,
		req.SlotEnd,
		req.OwnerUID,
		time.Duration(req.TTLSeconds)*time.Second,
	)
	if err != nil {
		handleReserveError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ReservationResponse{
		ID:          res.ID,
		EventTypeID: res.EventTypeID,
		SlotStart:   res.SlotStart,
		SlotEnd:     res.SlotEnd,
		OwnerUID:    res.OwnerUID,
		ReleaseAt:   res.ReleaseAt,
	})
}

func (h *Handlers) isReserved(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	eventTypeID, err := strconv.ParseInt(q.Get("event_type_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_event_type_id", "event_type_id must be an integer")
		return
	}
	slotStart, err := time.Parse(time.RFC3339, q.Get("slot_start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_slot_start", "slot_start must be RFC3339")
		return
	}
	slotEnd, err := time.Parse(time.RFC3339, q.Get("slot_end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_slot_end", "slot_end must be RFC3339")
		return
	}
	callerUID := q.Get("uid")

	reserved, err := h.reservations.IsReservedByOther(r.Context(), eventTypeID, slotStart, slotEnd, callerUID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, IsReservedResponse{Reserved: reserved})
}

func (h *Handlers) releaseReservation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_reservation_id", "id must be a valid UUID")
		return
	}

	if err := h.reservations.Release(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func handleScheduleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, availability.ErrInvalidSchedule):
		writeError(w, http.StatusUnprocessableEntity, "invalid_schedule", err.Error())
	case errors.Is(err, availability.ErrScheduleNotFound):
		writeError(w, http.StatusNotFound, "schedule_not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleReserveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, reservation.ErrReservationConflict):
		writeError(w, http.StatusConflict, "slot_reserved", "slot no longer available")
	case errors.Is(err, reservation.ErrSlotBeingReserved):
		writeError(w, http.StatusConflict, "slot_being_reserved", "slot is currently being reserved, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func parseRange(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()

	from, err := time.Parse(time.RFC3339, q.Get("from"))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("from must be RFC3339")
	}
	to, err := time.Parse(time.RFC3339, q.Get("to"))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("to must be RFC3339")
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("to must not be before from")
	}

	return from, to, nil
}

func failuresToResponse(failures []calendar.CredentialFailure) []FailedSource {
	if len(failures) == 0 {
		return nil
	}
	out := make([]FailedSource, len(failures))
	for i, f := range failures {
		out[i] = FailedSource{CredentialID: f.CredentialID, AppID: f.AppID, Error: f.Err.Error()}
	}
	return out
}

func scheduleFromInput(in *ScheduleInput) (*availability.WeeklySchedule, error) {
	s := &availability.WeeklySchedule{TimeZone: in.TimeZone}

	for _, r := range in.Rules {
		start, err := parseTimeOfDay(r.Start)
		if err != nil {
			return nil, fmt.Errorf("%w: rule start %q", availability.ErrInvalidSchedule, r.Start)
		}
		end, err := parseTimeOfDay(r.End)
		if err != nil {
			return nil, fmt.Errorf("%w: rule end %q", availability.ErrInvalidSchedule, r.End)
		}
		s.Rules = append(s.Rules, availability.WindowRule{
			Weekday: time.Weekday(r.Weekday),
			Window:  availability.Window{Start: start, End: end},
		})
	}

	for _, o := range in.Overrides {
		override := availability.DateOverride{Date: o.Date, Unavailable: o.Unavailable}
		for _, w := range o.Windows {
			start, err := parseTimeOfDay(w[0])
			if err != nil {
				return nil, fmt.Errorf("%w: override start %q", availability.ErrInvalidSchedule, w[0])
			}
			end, err := parseTimeOfDay(w[1])
			if err != nil {
				return nil, fmt.Errorf("%w: override end %q", availability.ErrInvalidSchedule, w[1])
			}
			override.Windows = append(override.Windows, availability.Window{Start: start, End: end})
		}
		s.Overrides = append(s.Overrides, override)
	}

	return s, nil
}

func parseTimeOfDay(s string) (availability.TimeOfDay, error) {
	// "24:00" marks end-of-day windows and is valid in a schedule.
	if s == "24:00" {
		return availability.TimeOfDay{Hour: 24}, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return availability.TimeOfDay{}, err
	}
	return availability.TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}
