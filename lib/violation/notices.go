// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package violation

import (
	"context"
	"fmt"
	"time"

	"github.com/bureau-foundation/proctor/lib/clock"
	"github.com/bureau-foundation/proctor/lib/notify"
)

// Notices emits the informational monitoring countdown: a notice
// every Interval counting down Steps intervals to the next scan,
// then a scan notice, repeating. It has no effect on the machine.
type Notices struct {
	Clock    clock.Clock
	Notifier notify.Notifier
	Interval time.Duration
	Steps    int
}

// Run emits notices until ctx is done.
func (n *Notices) Run(ctx context.Context) error {
	interval := n.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	steps := n.Steps
	if steps <= 0 {
		steps = 4
	}

	ticker := n.Clock.NewTicker(interval)
	defer ticker.Stop()

	remaining := steps
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		remaining--
		if remaining > 0 {
			n.Notifier.Notify(notify.Notification{
				Title:       "AI monitoring",
				Description: fmt.Sprintf("Next behaviour scan in %s.", time.Duration(remaining)*interval),
				Level:       notify.LevelInfo,
			})
			continue
		}
		n.Notifier.Notify(notify.Notification{
			Title:       "AI monitoring",
			Description: "Behaviour scan in progress. Keep working as normal.",
			Level:       notify.LevelInfo,
		})
		remaining = steps
	}
}
