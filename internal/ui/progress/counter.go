// Package progress implements periodic progress reporting: a counter that
// accumulates a value against a (possibly still growing) total and invokes a
// report callback on a fixed interval plus once more, marked final, when
// done.
package progress

import (
	"sync/atomic"
	"time"
)

// Counter tracks a monotonically increasing value against a total and calls
// report on a timer. A nil *Counter is valid and every method is a no-op,
// so callers can pass a nil counter when progress reporting is disabled.
type Counter struct {
	value atomic.Uint64
	total atomic.Uint64

	report func(value, total uint64, d time.Duration, final bool)

	start time.Time
	stop  chan struct{}
	done  chan struct{}
}

// NewCounter starts a new Counter that calls report every interval until
// Done is called, at which point report is called one last time with
// final set to true.
func NewCounter(interval time.Duration, total uint64, report func(value, total uint64, d time.Duration, final bool)) *Counter {
	c := &Counter{
		report: report,
		start:  time.Now(),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	c.total.Store(total)

	go c.run(interval)

	return c
}

func (c *Counter) run(interval time.Duration) {
	defer close(c.done)

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			c.report(c.value.Load(), c.total.Load(), time.Since(c.start), false)
		case <-c.stop:
			c.report(c.value.Load(), c.total.Load(), time.Since(c.start), true)
			return
		}
	}
}

// Add increments the counter's value by n.
func (c *Counter) Add(n uint64) {
	if c == nil {
		return
	}
	c.value.Add(n)
}

// SetMax sets the total.
func (c *Counter) SetMax(max uint64) {
	if c == nil {
		return
	}
	c.total.Store(max)
}

// Done stops the counter and blocks until the final report has been made.
func (c *Counter) Done() {
	if c == nil {
		return
	}
	close(c.stop)
	<-c.done
}
