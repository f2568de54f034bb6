// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package violation

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bureau-foundation/proctor/lib/clock"
)

// Coalescer absorbs bursts of reports. The first offer opens a window
// and is accepted; offers inside the window merge their reason into a
// single pending slot and are rejected. When the window closes the
// merged reason is passed to the flush callback.
type Coalescer struct {
	clock  clock.Clock
	window time.Duration
	flush  func(reason string)

	mu      sync.Mutex
	open    bool
	reasons []string
	timer   *clock.Timer
}

// NewCoalescer returns a coalescer with the given window. flush may be
// nil.
func NewCoalescer(c clock.Clock, window time.Duration, flush func(reason string)) *Coalescer {
	return &Coalescer{clock: c, window: window, flush: flush}
}

// Offer submits reason. Returns true if it opened a new window and
// should be counted, false if it was merged into the pending one. A
// non-positive window accepts every offer.
func (c *Coalescer) Offer(reason string) bool {
	if c.window <= 0 {
		if c.flush != nil {
			c.flush(reason)
		}
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.open {
		if !slices.Contains(c.reasons, reason) {
			c.reasons = append(c.reasons, reason)
		}
		return false
	}
	c.open = true
	c.reasons = []string{reason}
	c.timer = c.clock.AfterFunc(c.window, c.fire)
	return true
}

// Pending returns the merged reason of the open window.
func (c *Coalescer) Pending() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return "", false
	}
	return MergeReasons(c.reasons), true
}

// Stop closes any open window without flushing.
func (c *Coalescer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.open = false
	c.reasons = nil
}

func (c *Coalescer) fire() {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return
	}
	reason := MergeReasons(c.reasons)
	c.open = false
	c.reasons = nil
	c.timer = nil
	flush := c.flush
	c.mu.Unlock()

	if flush != nil {
		flush(reason)
	}
}

// MergeReasons joins reasons as "A and B", or "A, B and C".
func MergeReasons(reasons []string) string {
	switch len(reasons) {
	case 0:
		return ""
	case 1:
		return reasons[0]
	}
	last := len(reasons) - 1
	return strings.Join(reasons[:last], ", ") + " and " + reasons[last]
}
