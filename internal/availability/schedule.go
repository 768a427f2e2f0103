package availability

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidSchedule = errors.New("invalid schedule")
)

// TimeOfDay is a wall-clock time within the schedule's timezone.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) valid() bool {
	return t.Hour >= 0 && t.Hour <= 24 && t.Minute >= 0 && t.Minute < 60 && t.minutes() <= 24*60
}

// Window is a single bookable wall-clock range on some day.
type Window struct {
	Start TimeOfDay
	End   TimeOfDay
}

// WindowRule is a recurring weekly availability window.
type WindowRule struct {
	Weekday time.Weekday
	Window
}

// DateOverride replaces the weekly pattern for one calendar date. Either a
// set of windows, or Unavailable which yields zero windows for the day.
type DateOverride struct {
	Date        string // civil date, "2006-01-02"
	Windows     []Window
	Unavailable bool
}

// WeeklySchedule defines a user's recurring bookable windows, all interpreted
// in TimeZone. Overrides win over the weekly pattern for their date.
type WeeklySchedule struct {
	TimeZone  string
	Rules     []WindowRule
	Overrides []DateOverride
}

// Validate fails fast on caller configuration defects: a schedule with no or
// unknown timezone, a window that ends before it starts, or an override
// referencing an impossible date. Silently coercing any of these risks
// producing wrong bookable windows.
func (s WeeklySchedule) Validate() error {
	if s.TimeZone == "" {
		return fmt.Errorf("%w: missing timezone", ErrInvalidSchedule)
	}
	if _, err := time.LoadLocation(s.TimeZone); err != nil {
		return fmt.Errorf("%w: unknown timezone %q", ErrInvalidSchedule, s.TimeZone)
	}

	for _, r := range s.Rules {
		if err := validateWindow(r.Window); err != nil {
			return fmt.Errorf("%w: rule for %s: %v", ErrInvalidSchedule, r.Weekday, err)
		}
	}

	for _, o := range s.Overrides {
		parsed, err := time.Parse("2006-01-02", o.Date)
		if err != nil || parsed.Format("2006-01-02") != o.Date {
			return fmt.Errorf("%w: override date %q is not a valid calendar date", ErrInvalidSchedule, o.Date)
		}
		if o.Unavailable && len(o.Windows) > 0 {
			return fmt.Errorf("%w: override for %s is unavailable but has windows", ErrInvalidSchedule, o.Date)
		}
		for _, w := range o.Windows {
			if err := validateWindow(w); err != nil {
				return fmt.Errorf("%w: override for %s: %v", ErrInvalidSchedule, o.Date, err)
			}
		}
	}

	return nil
}

func validateWindow(w Window) error {
	if !w.Start.valid() || !w.End.valid() {
		return fmt.Errorf("window %02d:%02d-%02d:%02d out of range", w.Start.Hour, w.Start.Minute, w.End.Hour, w.End.Minute)
	}
	if w.End.minutes() <= w.Start.minutes() {
		return fmt.Errorf("window end %02d:%02d not after start %02d:%02d", w.End.Hour, w.End.Minute, w.Start.Hour, w.Start.Minute)
	}
	return nil
}

// windowsFor resolves the availability windows for one calendar date: the
// override for that date if present, otherwise the weekly rules matching the
// date's weekday.
func (s WeeklySchedule) windowsFor(date time.Time) []Window {
	civil := date.Format("2006-01-02")
	for _, o := range s.Overrides {
		if o.Date != civil {
			continue
		}
		if o.Unavailable {
			return nil
		}
		return o.Windows
	}

	var windows []Window
	for _, r := range s.Rules {
		if r.Weekday == date.Weekday() {
			windows = append(windows, r.Window)
		}
	}
	return windows
}
