package scheduler

import (
	"time"

	"github.com/dmitrijs2005/addonkeeper/internal/timex"
)

// Cadence computes run times for one interval.
//
// Intervals that are a whole number of days run at local midnight: the
// next run is the midnight that starts the day N days after now's day.
// Shorter intervals run at now+interval moved by a uniform random offset
// in [-Jitter, +Jitter].
type Cadence struct {
	Interval time.Duration
	Jitter   time.Duration
	Location *time.Location
}

// Daily reports whether the cadence is anchored to midnight.
func (c Cadence) Daily() bool {
	return c.Interval >= timex.Day && c.Interval%timex.Day == 0
}

// Next returns the run time following now. randN returns a uniform value
// in [0, n).
func (c Cadence) Next(now time.Time, randN func(n int64) int64) time.Time {
	if c.Daily() {
		loc := c.Location
		if loc == nil {
			loc = time.Local
		}
		local := now.In(loc)
		midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
		return midnight.AddDate(0, 0, int(c.Interval/timex.Day))
	}

	next := now.Add(c.Interval)
	if c.Jitter > 0 && randN != nil {
		next = next.Add(time.Duration(randN(int64(2*c.Jitter)+1)) - c.Jitter)
	}
	if !next.After(now) {
		next = now.Add(c.Interval)
	}
	return next
}
