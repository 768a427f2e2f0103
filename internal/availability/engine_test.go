package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmeet/scheduling/internal/calendar"
)

func weekdaySchedule(tz string) WeeklySchedule {
	s := WeeklySchedule{TimeZone: tz}
	for wd := time.Monday; wd <= time.Friday; wd++ {
		s.Rules = append(s.Rules, WindowRule{
			Weekday: wd,
			Window: Window{
				Start: TimeOfDay{Hour: 9},
				End:   TimeOfDay{Hour: 17},
			},
		})
	}
	return s
}

// Monday 2026-01-05 in UTC.
var (
	monday     = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	nextMonday = monday.AddDate(0, 0, 7)
	thirtyMin  = 30 * time.Minute
)

func slotStarts(day DaySlots) []string {
	out := make([]string, len(day.Slots))
	for i, s := range day.Slots {
		out[i] = s.Start.UTC().Format("15:04")
	}
	return out
}

func TestComputeSlotsBusyIntervalExcluded(t *testing.T) {
	busy := []calendar.BusyInterval{
		{
			Start: time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 1, 5, 10, 30, 0, 0, time.UTC),
		},
	}

	days, err := ComputeSlots(weekdaySchedule("UTC"), busy, monday, monday.AddDate(0, 0, 1), thirtyMin, nil)
	require.NoError(t, err)
	require.NotEmpty(t, days)
	require.Equal(t, "2026-01-05", days[0].Date)

	starts := slotStarts(days[0])

	// 09:00-17:00 tiles into 16 half-hour slots; the busy 10:00-10:30 removes
	// exactly one.
	assert.Len(t, starts, 15)
	assert.NotContains(t, starts, "10:00")
	assert.Contains(t, starts, "09:00")
	assert.Contains(t, starts, "09:30")
	assert.Contains(t, starts, "10:30")
	assert.Contains(t, starts, "16:30")

	// Last slot must end exactly at the window end, never past it.
	last := days[0].Slots[len(days[0].Slots)-1]
	assert.Equal(t, time.Date(2026, 1, 5, 17, 0, 0, 0, time.UTC), last.End.UTC())
}

func TestComputeSlotsBoundaryTouchIsNotConflict(t *testing.T) {
	// Busy interval ends exactly when the 09:00 slot starts and another
	// starts exactly when the 16:30 slot ends.
	busy := []calendar.BusyInterval{
		{
			Start: time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
		},
		{
			Start: time.Date(2026, 1, 5, 17, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 1, 5, 18, 0, 0, 0, time.UTC),
		},
	}

	days, err := ComputeSlots(weekdaySchedule("UTC"), busy, monday, monday.AddDate(0, 0, 1), thirtyMin, nil)
	require.NoError(t, err)

	starts := slotStarts(days[0])
	assert.Len(t, starts, 16)
	assert.Contains(t, starts, "09:00")
	assert.Contains(t, starts, "16:30")
}

func TestComputeSlotsStrictOverlapExcluded(t *testing.T) {
	// One minute of overlap into the 09:00-09:30 slot is enough to exclude it.
	busy := []calendar.BusyInterval{
		{
			Start: time.Date(2026, 1, 5, 9, 29, 0, 0, time.UTC),
			End:   time.Date(2026, 1, 5, 9, 31, 0, 0, time.UTC),
		},
	}

	days, err := ComputeSlots(weekdaySchedule("UTC"), busy, monday, monday.AddDate(0, 0, 1), thirtyMin, nil)
	require.NoError(t, err)

	starts := slotStarts(days[0])
	assert.NotContains(t, starts, "09:00")
	assert.NotContains(t, starts, "09:30")
	assert.Contains(t, starts, "10:00")
}

func TestComputeSlotsUnavailableOverride(t *testing.T) {
	schedule := weekdaySchedule("UTC")
	// Wednesday 2026-01-07 marked off despite the weekly pattern.
	schedule.Overrides = []DateOverride{
		{Date: "2026-01-07", Unavailable: true},
	}

	days, err := ComputeSlots(schedule, nil, monday, nextMonday, thirtyMin, nil)
	require.NoError(t, err)

	byDate := make(map[string]DaySlots)
	for _, d := range days {
		byDate[d.Date] = d
	}

	assert.Empty(t, byDate["2026-01-07"].Slots)
	assert.NotEmpty(t, byDate["2026-01-06"].Slots)
	assert.NotEmpty(t, byDate["2026-01-08"].Slots)
}

func TestComputeSlotsOverrideWindowsReplaceWeeklyPattern(t *testing.T) {
	schedule := weekdaySchedule("UTC")
	schedule.Overrides = []DateOverride{
		{
			Date: "2026-01-05",
			Windows: []Window{
				{Start: TimeOfDay{Hour: 13}, End: TimeOfDay{Hour: 14}},
			},
		},
	}

	days, err := ComputeSlots(schedule, nil, monday, monday.AddDate(0, 0, 1), thirtyMin, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"13:00", "13:30"}, slotStarts(days[0]))
}

func TestComputeSlotsWeekendHasNoSlots(t *testing.T) {
	days, err := ComputeSlots(weekdaySchedule("UTC"), nil, monday, nextMonday, thirtyMin, nil)
	require.NoError(t, err)

	byDate := make(map[string][]Slot)
	for _, d := range days {
		byDate[d.Date] = d.Slots
	}

	assert.Empty(t, byDate["2026-01-10"]) // Saturday
	assert.Empty(t, byDate["2026-01-11"]) // Sunday
}

func TestComputeSlotsTimezoneConversion(t *testing.T) {
	// 09:00 in New York is 14:00 UTC on 2026-01-05 (EST, UTC-5).
	days, err := ComputeSlots(weekdaySchedule("America/New_York"), nil,
		monday, monday.AddDate(0, 0, 1), thirtyMin, nil)
	require.NoError(t, err)
	require.NotEmpty(t, days)
	require.NotEmpty(t, days[0].Slots)

	first := days[0].Slots[0]
	assert.Equal(t, time.Date(2026, 1, 5, 14, 0, 0, 0, time.UTC), first.Start.UTC())
}

func TestComputeSlotsSlotMustFitWindow(t *testing.T) {
	schedule := WeeklySchedule{
		TimeZone: "UTC",
		Rules: []WindowRule{
			{
				Weekday: time.Monday,
				// 50 minutes only fits one 30-minute slot.
				Window: Window{Start: TimeOfDay{Hour: 9}, End: TimeOfDay{Hour: 9, Minute: 50}},
			},
		},
	}

	days, err := ComputeSlots(schedule, nil, monday, monday.AddDate(0, 0, 1), thirtyMin, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"09:00"}, slotStarts(days[0]))
}

func TestComputeSlotsIdempotent(t *testing.T) {
	busy := []calendar.BusyInterval{
		{
			Start: time.Date(2026, 1, 6, 11, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 1, 6, 12, 15, 0, 0, time.UTC),
		},
	}

	first, err := ComputeSlots(weekdaySchedule("UTC"), busy, monday, nextMonday, thirtyMin, nil)
	require.NoError(t, err)
	second, err := ComputeSlots(weekdaySchedule("UTC"), busy, monday, nextMonday, thirtyMin, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestComputeSlotsSeatLimitedNeverDiscards(t *testing.T) {
	ten := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	seats := &SeatOptions{
		SeatsPerSlot: 2,
		AttendeeCounts: map[int64]int{
			ten.Unix(): 3, // overbooked; still not the engine's call to drop
		},
	}

	days, err := ComputeSlots(weekdaySchedule("UTC"), nil, monday, monday.AddDate(0, 0, 1), thirtyMin, seats)
	require.NoError(t, err)

	var tenSlot *Slot
	for i := range days[0].Slots {
		if days[0].Slots[i].Start.Equal(ten) {
			tenSlot = &days[0].Slots[i]
		}
	}

	require.NotNil(t, tenSlot, "full slot must still be present")
	require.NotNil(t, tenSlot.SeatsRemaining)
	assert.Equal(t, 0, *tenSlot.SeatsRemaining)

	// Untouched slots report full capacity.
	first := days[0].Slots[0]
	require.NotNil(t, first.SeatsRemaining)
	assert.Equal(t, 2, *first.SeatsRemaining)
}

func TestComputeSlotsRangeClamping(t *testing.T) {
	// Range starts mid-morning; earlier slots are out of bounds.
	from := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)

	days, err := ComputeSlots(weekdaySchedule("UTC"), nil, from, to, thirtyMin, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"10:00", "10:30", "11:00", "11:30"}, slotStarts(days[0]))
}

func TestComputeSlotsInvalidInputs(t *testing.T) {
	_, err := ComputeSlots(weekdaySchedule("UTC"), nil, monday, monday.AddDate(0, 0, 1), 0, nil)
	assert.ErrorIs(t, err, ErrInvalidSchedule)

	_, err = ComputeSlots(weekdaySchedule("UTC"), nil, nextMonday, monday, thirtyMin, nil)
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}
