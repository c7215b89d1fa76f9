package dues

import (
	"fmt"
	"math"
	"time"
)

const periodLayout = "2006-01"

// CalendarDate returns the calendar date of t, read in t's own location, as
// midnight UTC. Due and paid dates are stored in this form.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the calendar date of now in loc.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return CalendarDate(now.In(loc))
}

// PeriodOf returns the year-month token for t in t's own location.
func PeriodOf(t time.Time) string {
	return t.Format(periodLayout)
}

func ParsePeriod(period string) (time.Time, error) {
	start, err := time.Parse(periodLayout, period)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid period %q: %w", period, err)
	}
	return start, nil
}

// DueDateFor returns the due date inside period on the given day of month,
// clamped to the month length.
func DueDateFor(period string, day int) (time.Time, error) {
	start, err := ParsePeriod(period)
	if err != nil {
		return time.Time{}, err
	}
	if day < 1 {
		day = 1
	}
	lastDay := start.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(start.Year(), start.Month(), day, 0, 0, 0, 0, time.UTC), nil
}

func wallClockUTC(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func ceilDays(d time.Duration) int {
	return int(math.Ceil(d.Hours() / 24))
}
