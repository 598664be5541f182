// Package clock provides an injectable time source so that scheduling code
// can be driven deterministically in tests.
//
// Production code holds a Clock field set to Real(); tests use Fake and
// move time forward with Advance:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	s := scheduler.New(c, ...)
//	go s.Run(ctx)
//	c.WaitForWaiters(1)
//	c.Advance(time.Minute)
package clock

import "time"

// Clock abstracts the parts of the time package the scheduler uses.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once d has
	// elapsed. If d <= 0 the channel receives immediately.
	After(d time.Duration) <-chan time.Time
}

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
