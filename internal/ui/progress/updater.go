package progress

import "time"

// Updater calls report on a fixed interval until Done is called, at which
// point report is called one final time with final set to true. Unlike
// Counter it carries no value/total, for callers that only need a
// heartbeat (elapsed time) rather than a count.
type Updater struct {
	report func(d time.Duration, final bool)

	start time.Time
	stop  chan struct{}
	done  chan struct{}
}

// NewUpdater starts a new Updater. An interval of 0 disables the
// periodic tick; only the final report on Done is made.
func NewUpdater(interval time.Duration, report func(d time.Duration, final bool)) *Updater {
	u := &Updater{
		report: report,
		start:  time.Now(),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	go u.run(interval)

	return u
}

func (u *Updater) run(interval time.Duration) {
	defer close(u.done)

	if interval <= 0 {
		<-u.stop
		u.report(time.Since(u.start), true)
		return
	}

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			u.report(time.Since(u.start), false)
		case <-u.stop:
			u.report(time.Since(u.start), true)
			return
		}
	}
}

// Done stops the updater and blocks until the final report has been made.
// It is safe to call more than once.
func (u *Updater) Done() {
	select {
	case <-u.stop:
		<-u.done
		return
	default:
	}
	close(u.stop)
	<-u.done
}
