package ui

import "time"

// CountTo tracks progress towards a fixed total and estimates the time
// remaining from the average rate observed so far.
type CountTo struct {
	start time.Time
	total uint64
	done  uint64
}

// StartCountTo begins tracking progress towards total, with elapsed time
// measured from start.
func StartCountTo(start time.Time, total uint64) *CountTo {
	return &CountTo{start: start, total: total}
}

// Add records n more units of progress.
func (c *CountTo) Add(n uint64) {
	c.done += n
}

// ETA estimates the remaining duration as of now, extrapolating linearly
// from the rate observed between start and now. It returns 0 if no
// progress has been made yet.
func (c *CountTo) ETA(now time.Time) time.Duration {
	if c.done == 0 || c.done >= c.total {
		return 0
	}

	elapsed := now.Sub(c.start)
	remaining := c.total - c.done
	return time.Duration(float64(elapsed) * float64(remaining) / float64(c.done))
}
