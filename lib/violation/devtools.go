// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package violation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/proctor/lib/clock"
)

const (
	DefaultDevtoolsInterval  = time.Second
	DefaultDevtoolsThreshold = 160
)

// WindowMetrics are the outer (frame) and inner (viewport) window
// dimensions in CSS pixels.
type WindowMetrics struct {
	OuterWidth  int
	OuterHeight int
	InnerWidth  int
	InnerHeight int
}

// DevtoolsOpen reports whether the frame-to-viewport gap on either
// axis exceeds threshold, the signature of a docked inspector.
func (m WindowMetrics) DevtoolsOpen(threshold int) bool {
	return m.OuterWidth-m.InnerWidth > threshold || m.OuterHeight-m.InnerHeight > threshold
}

// MetricsSource reads current window metrics from the host.
type MetricsSource interface {
	WindowMetrics(ctx context.Context) (WindowMetrics, error)
}

// DevtoolsWatch polls window metrics and reports a soft violation
// each time the inspector heuristic goes from closed to open. An
// inspector already open when monitoring begins is reported then.
type DevtoolsWatch struct {
	Clock     clock.Clock
	Source    MetricsSource
	Reporter  Reporter
	Logger    *slog.Logger
	Interval  time.Duration
	Threshold int
}

// Run polls until ctx is done. Polls while the reporter is inactive
// are skipped. A failing poll is logged and treated as no change.
func (w *DevtoolsWatch) Run(ctx context.Context) error {
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultDevtoolsInterval
	}
	threshold := w.Threshold
	if threshold <= 0 {
		threshold = DefaultDevtoolsThreshold
	}
	logger := w.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ticker := w.Clock.NewTicker(interval)
	defer ticker.Stop()

	wasOpen := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if !w.Reporter.Active() {
			wasOpen = false
			continue
		}
		metrics, err := w.poll(ctx)
		if err != nil {
			logger.Debug("window metrics unavailable", "error", err)
			continue
		}
		open := metrics.DevtoolsOpen(threshold)
		if open && !wasOpen && !w.Reporter.Report("Developer tools opened", false) && !counting(w.Reporter) {
			// Discarded before monitoring began: report it again next poll.
			continue
		}
		wasOpen = open
	}
}

// counting reports whether reporter is counting violations. A report
// it refused while counting was coalesced, not discarded.
func counting(reporter Reporter) bool {
	if c, ok := reporter.(interface{ Counting() bool }); ok {
		return c.Counting()
	}
	return true
}

func (w *DevtoolsWatch) poll(ctx context.Context) (metrics WindowMetrics, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("metrics source panicked: %v", recovered)
		}
	}()
	return w.Source.WindowMetrics(ctx)
}
