package availability

import (
	"fmt"
	"time"

	"github.com/openmeet/scheduling/internal/calendar"
)

// Slot is one bookable candidate, a half-open [Start, End) instant pair.
// SeatsRemaining is set only in seat-limited mode.
type Slot struct {
	Start          time.Time
	End            time.Time
	SeatsRemaining *int
}

// DaySlots groups the slots of one calendar date (civil date in the
// schedule's timezone). A date with zero slots is a valid outcome, not an
// error.
type DaySlots struct {
	Date  string
	Slots []Slot
}

// SeatOptions enables seat-limited mode. AttendeeCounts maps a slot's start
// instant (Unix seconds) to the number of confirmed attendees already booked
// for that exact slot. The engine only annotates remaining capacity; it never
// discards a slot for being full — capacity gating is layered on by the
// caller, this engine only guarantees no conflict with calendar busy time.
type SeatOptions struct {
	SeatsPerSlot   int
	AttendeeCounts map[int64]int
}

// ComputeSlots tiles the schedule's availability windows over [from, to] into
// slots of slotDuration and removes any slot overlapping a busy interval.
//
// Window boundaries are wall-clock times in the schedule's timezone and are
// converted to absolute instants before any comparison; the engine never
// produces display strings. Slots are anchored at window starts (no drift
// across window boundaries) and kept only when fully contained in both the
// window and [from, to]. Boundary-touching busy intervals do not conflict.
//
// Pure and synchronous: identical inputs yield identical output.
func ComputeSlots(schedule WeeklySchedule, busy []calendar.BusyInterval, from, to time.Time, slotDuration time.Duration, seats *SeatOptions) ([]DaySlots, error) {
	if err := schedule.Validate(); err != nil {
		return nil, err
	}
	if slotDuration <= 0 {
		return nil, fmt.Errorf("%w: slot duration %s must be positive", ErrInvalidSchedule, slotDuration)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: range end %s before start %s", ErrInvalidSchedule, to, from)
	}

	loc, err := time.LoadLocation(schedule.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q", ErrInvalidSchedule, schedule.TimeZone)
	}

	var days []DaySlots

	first := from.In(loc)
	last := to.In(loc)
	for y, m, d := first.Date(); ; {
		day := time.Date(y, m, d, 0, 0, 0, 0, loc)
		if day.After(last) {
			break
		}

		slots := slotsForDay(schedule, day, busy, from, to, slotDuration, seats)
		days = append(days, DaySlots{
			Date:  day.Format("2006-01-02"),
			Slots: slots,
		})

		y, m, d = day.AddDate(0, 0, 1).Date()
	}

	return days, nil
}

func slotsForDay(schedule WeeklySchedule, day time.Time, busy []calendar.BusyInterval, from, to time.Time, slotDuration time.Duration, seats *SeatOptions) []Slot {
	var slots []Slot

	y, m, d := day.Date()
	for _, w := range schedule.windowsFor(day) {
		winStart := time.Date(y, m, d, w.Start.Hour, w.Start.Minute, 0, 0, day.Location())
		winEnd := time.Date(y, m, d, w.End.Hour, w.End.Minute, 0, 0, day.Location())

		for start := winStart; !start.Add(slotDuration).After(winEnd); start = start.Add(slotDuration) {
			end := start.Add(slotDuration)
			if start.Before(from) || end.After(to) {
				continue
			}
			if conflictsWithBusy(start, end, busy) {
				continue
			}

			slot := Slot{Start: start, End: end}
			if seats != nil && seats.SeatsPerSlot > 0 {
				remaining := seats.SeatsPerSlot - seats.AttendeeCounts[start.Unix()]
				if remaining < 0 {
					remaining = 0
				}
				slot.SeatsRemaining = &remaining
			}
			slots = append(slots, slot)
		}
	}

	return slots
}

// conflictsWithBusy reports whether [start, end) has nonzero overlap with any
// busy interval. A slot ending exactly when a busy interval starts (or vice
// versa) is not a conflict.
func conflictsWithBusy(start, end time.Time, busy []calendar.BusyInterval) bool {
	for _, b := range busy {
		if b.Overlaps(start, end) {
			return true
		}
	}
	return false
}
