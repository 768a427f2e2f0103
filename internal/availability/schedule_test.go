package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateSchedule(t *testing.T) {
	valid := WeeklySchedule{
		TimeZone: "Europe/Berlin",
		Rules: []WindowRule{
			{Weekday: time.Monday, Window: Window{Start: TimeOfDay{Hour: 9}, End: TimeOfDay{Hour: 17}}},
		},
		Overrides: []DateOverride{
			{Date: "2026-03-02", Windows: []Window{{Start: TimeOfDay{Hour: 10}, End: TimeOfDay{Hour: 12}}}},
			{Date: "2026-03-03", Unavailable: true},
		},
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*WeeklySchedule)
	}{
		{"missing timezone", func(s *WeeklySchedule) { s.TimeZone = "" }},
		{"unknown timezone", func(s *WeeklySchedule) { s.TimeZone = "Mars/Olympus_Mons" }},
		{"rule end before start", func(s *WeeklySchedule) {
			s.Rules[0].Window = Window{Start: TimeOfDay{Hour: 17}, End: TimeOfDay{Hour: 9}}
		}},
		{"zero length rule", func(s *WeeklySchedule) {
			s.Rules[0].Window = Window{Start: TimeOfDay{Hour: 9}, End: TimeOfDay{Hour: 9}}
		}},
		{"impossible override date", func(s *WeeklySchedule) { s.Overrides[0].Date = "2026-02-30" }},
		{"malformed override date", func(s *WeeklySchedule) { s.Overrides[0].Date = "02/03/2026" }},
		{"unavailable override with windows", func(s *WeeklySchedule) {
			s.Overrides[1].Windows = []Window{{Start: TimeOfDay{Hour: 9}, End: TimeOfDay{Hour: 10}}}
		}},
		{"out of range window", func(s *WeeklySchedule) {
			s.Rules[0].Window = Window{Start: TimeOfDay{Hour: 9}, End: TimeOfDay{Hour: 25}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			s.Rules = append([]WindowRule(nil), valid.Rules...)
			s.Overrides = append([]DateOverride(nil), valid.Overrides...)
			tt.mutate(&s)
			assert.ErrorIs(t, s.Validate(), ErrInvalidSchedule)
		})
	}
}

func TestValidateScheduleAcceptsEndOfDay(t *testing.T) {
	s := WeeklySchedule{
		TimeZone: "UTC",
		Rules: []WindowRule{
			{Weekday: time.Friday, Window: Window{Start: TimeOfDay{Hour: 22}, End: TimeOfDay{Hour: 24}}},
		},
	}
	assert.NoError(t, s.Validate())
}
