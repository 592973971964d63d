// Package schedule runs callbacks at a fixed local wall-clock time every day.
package schedule

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mephdrac/powergroup/clock"
	"github.com/mephdrac/powergroup/log"
)

// TimeOfDay is a local wall-clock time. It implements fmt.Stringer.
type TimeOfDay struct {
	Hour, Minute, Second int
}

// Midnight is the start of the local day.
var Midnight = TimeOfDay{}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// ParseTimeOfDay parses "15:04" or "15:04:05".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{time.TimeOnly, "15:04"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			return TimeOfDay{Hour: parsed.Hour(), Minute: parsed.Minute(), Second: parsed.Second()}, nil
		}
	}

	return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
}

// Next returns the first occurrence of t in loc strictly after now. On days where t does not exist because of a DST
// jump, the normalized time from time.Date is used.
func (t TimeOfDay) Next(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), t.Hour, t.Minute, t.Second, 0, loc)
	for !next.After(local) {
		local = local.AddDate(0, 0, 1)
		next = time.Date(local.Year(), local.Month(), local.Day(), t.Hour, t.Minute, t.Second, 0, loc)
	}

	return next
}

// StartOfDay returns local midnight of the day containing now.
func StartOfDay(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// Job is a scheduled daily callback. Stop it when it is no longer needed.
type Job struct {
	clock clock.Clock
	at    TimeOfDay
	loc   *time.Location
	fn    func(time.Time)

	mu      sync.Mutex
	timer   clock.Timer
	stopped bool

	log *slog.Logger
}

// Daily calls fn every day at the next occurrence of at in loc, passing the scheduled time. fn runs in the timer's
// goroutine and must not block.
func Daily(c clock.Clock, at TimeOfDay, loc *time.Location, fn func(time.Time)) *Job {
	if loc == nil {
		loc = time.Local
	}

	j := &Job{
		clock: c,
		at:    at,
		loc:   loc,
		fn:    fn,

		log: log.ForComponent("schedule").With(slog.String("at", at.String()), slog.String("location", loc.String())),
	}

	j.mu.Lock()
	j.arm()
	j.mu.Unlock()

	return j
}

// arm must be called with mu held.
func (j *Job) arm() {
	next := j.at.Next(j.clock.Now(), j.loc)
	j.log.With(slog.Time("next", next)).Debug("Scheduling daily job")

	j.timer = j.clock.AfterFunc(next.Sub(j.clock.Now()), func() {
		j.fire(next)
	})
}

func (j *Job) fire(scheduled time.Time) {
	j.mu.Lock()
	if j.stopped {
		j.mu.Unlock()
		return
	}
	j.mu.Unlock()

	j.fn(scheduled)

	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.stopped {
		j.arm()
	}
}

// Stop prevents any further invocation, including one whose timer is already firing but has not called fn yet. It is
// safe to call more than once.
func (j *Job) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.stopped {
		return
	}

	j.stopped = true
	if j.timer != nil {
		j.timer.Stop()
	}
}
