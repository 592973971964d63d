// Package clock abstracts wall-clock time so that daily resets and integration can be driven by a Fake in tests.
package clock

import (
	"slices"
	"sync"
	"time"
)

// Timer is the part of *time.Timer used by this module.
type Timer interface {
	// Stop prevents the Timer from firing. It returns false if the timer already fired or was stopped.
	Stop() bool
}

// Clock tells the time and runs functions after a delay.
type Clock interface {
	Now() time.Time
	// AfterFunc calls f in its own goroutine once d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

// Real is the Clock backed by the time package.
type Real struct{}

var _ Clock = Real{}

func (Real) Now() time.Time {
	return time.Now()
}

func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Fake is a Clock that only moves when told to. Timers fire synchronously, in deadline order, from Advance and Set.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

var _ Clock = &Fake{}

// NewFake constructs a Fake starting at now.
func NewFake(now time.Time) *Fake {
	return &Fake{now: now}
}

func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *Fake) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)

	return t
}

// Advance moves the clock forward by d, firing every timer that becomes due.
func (c *Fake) Advance(d time.Duration) {
	c.Set(c.Now().Add(d))
}

// Set moves the clock to now, firing every timer due at or before it. Timers scheduled by fired callbacks also fire if
// they are due.
func (c *Fake) Set(now time.Time) {
	for {
		c.mu.Lock()
		next := c.nextDue(now)
		if next == nil {
			c.now = now
			c.mu.Unlock()
			return
		}

		c.now = next.at
		c.remove(next)
		c.mu.Unlock()

		next.f()
	}
}

// Pending returns the number of timers that have not fired or been stopped.
func (c *Fake) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.timers)
}

func (c *Fake) nextDue(now time.Time) *fakeTimer {
	var next *fakeTimer
	for _, t := range c.timers {
		if t.at.After(now) {
			continue
		}

		if next == nil || t.at.Before(next.at) {
			next = t
		}
	}

	return next
}

func (c *Fake) remove(t *fakeTimer) bool {
	n := len(c.timers)
	c.timers = slices.DeleteFunc(c.timers, func(o *fakeTimer) bool { return o == t })

	return len(c.timers) != n
}

type fakeTimer struct {
	clock *Fake
	at    time.Time
	f     func()
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	return t.clock.remove(t)
}
