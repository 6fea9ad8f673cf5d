package util

import (
	"time"

	"vantage/internal/domain"
)

// Calendar stamps consecutive calendar dates for daily series. Every day
// counts; weekends and holidays are not skipped.
type Calendar struct {
	loc *time.Location
	now func() time.Time
}

// NewCalendar creates a Calendar that resolves "today" in loc using now.
// A nil loc means UTC and a nil now means time.Now.
func NewCalendar(loc *time.Location, now func() time.Time) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Calendar{loc: loc, now: now}
}

// Today returns midnight of the current day in the calendar's location.
func (c *Calendar) Today() time.Time {
	t := c.now().In(c.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc)
}

// DatesEndingToday returns n consecutive dates, oldest first, the last one
// being today.
func (c *Calendar) DatesEndingToday(n int) []string {
	if n <= 0 {
		return nil
	}
	start := c.Today().AddDate(0, 0, -(n - 1))
	out := make([]string, n)
	for i := range out {
		out[i] = start.AddDate(0, 0, i).Format(domain.DateLayout)
	}
	return out
}
