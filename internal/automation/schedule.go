package automation

import (
	"fmt"
	"time"

	"relayengine/internal/models"
)

// SpecificTimeTolerance is how close to a specific_time the clock must be
const SpecificTimeTolerance = 60 * time.Second

// EvaluateSchedule evaluates a schedule trigger at now (in now's location)
func EvaluateSchedule(t models.Trigger, now time.Time) (bool, error) {
	for _, d := range t.ActiveDays {
		if models.NormalizeDay(d) == "" {
			return false, fmt.Errorf("active_days: %w %q", models.ErrUnknownDay, d)
		}
	}
	if !DayActive(t.ActiveDays, now.Weekday()) {
		return false, nil
	}

	switch t.ScheduleType {
	case models.ScheduleDaily:
		return true, nil
	case models.ScheduleTimeRange:
		start, err := models.ParseClock(t.StartTime)
		if err != nil {
			return false, fmt.Errorf("start_time: %w", err)
		}
		end, err := models.ParseClock(t.EndTime)
		if err != nil {
			return false, fmt.Errorf("end_time: %w", err)
		}
		return InTimeRange(start, end, now), nil
	case models.ScheduleSpecificTime:
		at, err := models.ParseClock(t.SpecificTime)
		if err != nil {
			return false, fmt.Errorf("specific_time: %w", err)
		}
		target := time.Date(now.Year(), now.Month(), now.Day(), at.Hour, at.Minute, 0, 0, now.Location())
		d := now.Sub(target)
		if d < 0 {
			d = -d
		}
		return d <= SpecificTimeTolerance, nil
	default:
		return false, fmt.Errorf("%w %q", models.ErrUnknownScheduleType, t.ScheduleType)
	}
}

// DayActive reports whether day is listed; an empty list means every day
func DayActive(days []string, day time.Weekday) bool {
	if len(days) == 0 {
		return true
	}
	want := models.Weekdays[day]
	for _, d := range days {
		if models.NormalizeDay(d) == want {
			return true
		}
	}
	return false
}

// InTimeRange reports whether now's minute of day lies in [start, end].
// start > end denotes an overnight window.
func InTimeRange(start, end models.Clock, now time.Time) bool {
	cur := now.Hour()*60 + now.Minute()
	s, e := start.Minutes(), end.Minutes()
	if s <= e {
		return cur >= s && cur <= e
	}
	return cur >= s || cur <= e
}
