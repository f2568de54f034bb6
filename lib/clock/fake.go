// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake returns a FakeClock set to initial. Time stands still until
// Advance is called.
func Fake(initial time.Time) *FakeClock {
	clock := &FakeClock{current: initial}
	clock.changed = sync.NewCond(&clock.mu)
	return clock
}

// FakeClock is a deterministic Clock for tests. It is safe for
// concurrent use.
//
// AfterFunc callbacks run synchronously during Advance, in deadline
// order. A callback may register new timers; those fire within the
// same Advance call if their deadline is not after the target time.
// Never call Advance from inside a callback.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	pending []*fakeTimer
	changed *sync.Cond
}

type fakeTimer struct {
	deadline time.Time

	// Exactly one of channel and callback is set.
	channel  chan time.Time
	callback func()

	// interval is non-zero for tickers.
	interval time.Duration

	done bool
}

// Now returns the fake current time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After returns a channel that receives once the clock has been
// advanced by d.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	if d <= 0 {
		channel <- c.current
		return channel
	}
	c.addLocked(&fakeTimer{deadline: c.current.Add(d), channel: channel})
	return channel
}

// AfterFunc schedules f to run during the Advance call that crosses
// the deadline. If d <= 0, f runs before AfterFunc returns.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	if d <= 0 {
		f()
		return &Timer{stop: func() bool { return false }}
	}

	c.mu.Lock()
	timer := &fakeTimer{deadline: c.current.Add(d), callback: f}
	c.addLocked(timer)
	c.mu.Unlock()

	return &Timer{stop: func() bool { return c.cancel(timer) }}
}

// NewTicker returns a Ticker that fires once per elapsed interval.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}

	c.mu.Lock()
	channel := make(chan time.Time, 1)
	timer := &fakeTimer{deadline: c.current.Add(d), channel: channel, interval: d}
	c.addLocked(timer)
	c.mu.Unlock()

	return &Ticker{C: channel, stop: func() { c.cancel(timer) }}
}

// Advance moves the clock forward by d, firing every timer whose
// deadline falls at or before the new time. Tickers fire once per
// elapsed interval; ticks that do not fit the channel buffer are
// dropped.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.current.Add(d)
	c.mu.Unlock()

	for {
		timer, ok := c.popNext(target)
		if !ok {
			break
		}
		if timer.callback != nil {
			timer.callback()
			continue
		}
		select {
		case timer.channel <- timer.deadline:
		default:
		}
	}

	c.mu.Lock()
	c.current = target
	c.mu.Unlock()
}

// WaitForTimers blocks until at least n timers or tickers are pending.
// Use it to synchronize with a goroutine that is about to block on
// After or a Ticker before calling Advance.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.pending) < n {
		c.changed.Wait()
	}
}

// PendingCount returns the number of timers and tickers that have not
// fired or been stopped.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *FakeClock) addLocked(timer *fakeTimer) {
	c.pending = append(c.pending, timer)
	c.changed.Broadcast()
}

// popNext removes the earliest timer due at or before target and
// moves the clock to its deadline so that timers registered by its
// callback are scheduled relative to the firing time. Tickers are
// rescheduled rather than removed.
func (c *FakeClock) popNext(target time.Time) (*fakeTimer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pending) == 0 {
		return nil, false
	}
	sort.SliceStable(c.pending, func(i, j int) bool {
		return c.pending[i].deadline.Before(c.pending[j].deadline)
	})
	next := c.pending[0]
	if next.deadline.After(target) {
		return nil, false
	}

	if next.deadline.After(c.current) {
		c.current = next.deadline
	}

	fired := *next
	if next.interval > 0 {
		next.deadline = next.deadline.Add(next.interval)
	} else {
		next.done = true
		c.pending = c.pending[1:]
	}
	return &fired, true
}

func (c *FakeClock) cancel(timer *fakeTimer) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if timer.done {
		return false
	}
	timer.done = true
	for i, candidate := range c.pending {
		if candidate == timer {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			break
		}
	}
	return true
}
