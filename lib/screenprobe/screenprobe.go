// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package screenprobe checks whether the candidate has more than one
// active display. A failing probe never produces a signal.
package screenprobe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/proctor/lib/clock"
)

// Layout is the host's view of the attached displays.
type Layout struct {
	// Count is the number of active displays.
	Count int

	// Extended is set when the host reports the desktop spans more
	// than one screen even if Count is unavailable.
	Extended bool
}

// Multiple reports whether the layout has more than one display.
func (l Layout) Multiple() bool {
	return l.Count > 1 || l.Extended
}

// DisplaySource reads the current display layout.
type DisplaySource interface {
	Layout(ctx context.Context) (Layout, error)
}

// Reason is the violation reason for a multi-display layout.
const Reason = "Multiple displays detected"

// Probe checks a DisplaySource.
type Probe struct {
	Source DisplaySource
	Clock  clock.Clock
	Logger *slog.Logger
}

// Check reads the layout once. ok is false when the probe failed, in
// which case layout is meaningless.
func (p *Probe) Check(ctx context.Context) (layout Layout, ok bool) {
	defer func() {
		if recovered := recover(); recovered != nil {
			p.logger().Warn("display probe panicked", "panic", recovered)
			layout, ok = Layout{}, false
		}
	}()
	layout, err := p.Source.Layout(ctx)
	if err != nil {
		p.logger().Debug("display probe failed", "error", err)
		return Layout{}, false
	}
	return layout, true
}

// Watch checks every interval until ctx is done and calls onMultiple
// each time the layout changes from single to multiple displays.
// onMultiple returns whether the change was taken; while it returns
// false the change stays pending and is offered again on the next
// check that still sees multiple displays.
func (p *Probe) Watch(ctx context.Context, interval time.Duration, onMultiple func(Layout) bool) error {
	if interval <= 0 {
		return fmt.Errorf("screenprobe: non-positive watch interval %v", interval)
	}
	ticker := p.Clock.NewTicker(interval)
	defer ticker.Stop()

	multiple := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		layout, ok := p.Check(ctx)
		if !ok {
			continue
		}
		if layout.Multiple() && !multiple && !onMultiple(layout) {
			continue
		}
		multiple = layout.Multiple()
	}
}

func (p *Probe) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.Logger
}

// StaticSource is a DisplaySource returning a fixed layout or error.
type StaticSource struct {
	Value Layout
	Err   error
}

func (s StaticSource) Layout(context.Context) (Layout, error) {
	return s.Value, s.Err
}
