// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package proctor

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/bureau-foundation/proctor/lib/device"
	"github.com/bureau-foundation/proctor/lib/notify"
	"github.com/bureau-foundation/proctor/lib/screenprobe"
	"github.com/bureau-foundation/proctor/lib/violation"
)

// ActivateMonitoring begins the attempt: the session starts, the
// violation machine enters its grace period, and the background
// detectors start. ctx bounds the background tasks. Returns false if
// monitoring is already running or the attempt was terminated and not
// restarted.
func (p *Proctor) ActivateMonitoring(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopWatchers != nil {
		return false
	}
	p.session.Begin(p.clock.Now())
	if !p.machine.Activate() {
		return false
	}
	p.detector.Reset()

	watchCtx, cancel := context.WithCancel(ctx)
	p.stopWatchers = cancel
	p.startWatchersLocked(watchCtx)
	p.watchCameraLocked()
	return true
}

// DeactivateMonitoring stops the machine and every background
// detector, and waits for them to exit. Capture is not affected.
func (p *Proctor) DeactivateMonitoring() {
	p.mu.Lock()
	cancel := p.stopWatchers
	p.stopWatchers = nil
	stopCamera := p.stopCamera
	p.stopCamera = nil
	p.mu.Unlock()

	p.machine.Deactivate()
	if cancel != nil {
		cancel()
	}
	if stopCamera != nil {
		stopCamera()
	}
	p.watchers.Wait()
}

// StartCapture acquires devices and starts recording. A nil return
// means recording is running. On error no device is held and the form
// must block until the candidate retries; Classify tells it why.
//
// Losing the screen or microphone afterwards is a hard violation:
// the machine terminates and onHardStop (optional) is called once
// with a *device.LostError.
func (p *Proctor) StartCapture(ctx context.Context, onHardStop func(error)) error {
	err := p.capture.Start(ctx, func(err error) {
		var lost *device.LostError
		if errors.As(err, &lost) {
			reason, hard := violation.LossViolation(lost)
			p.machine.Report(reason, hard)
		}
		if onHardStop != nil {
			onHardStop(err)
		}
	})
	if err != nil {
		kind := Classify(err)
		p.logger.Warn("capture could not start", "failure", kind, "error", err)
		p.notifier.Notify(notify.Notification{
			Title:       "Recording could not start",
			Description: captureFailureAdvice(kind),
			Level:       notify.LevelWarning,
		})
		return err
	}

	p.mu.Lock()
	if p.stopWatchers != nil {
		p.watchCameraLocked()
	}
	p.mu.Unlock()
	return nil
}

func captureFailureAdvice(kind FailureKind) string {
	switch kind {
	case FailurePermissionDenied:
		return "Allow camera, microphone and screen access, then try again."
	case FailureDeviceUnavailable:
		return "A camera, microphone or screen could not be opened. Check your devices and try again."
	default:
		return "Try again."
	}
}

// watchCameraLocked subscribes the machine to camera loss when the
// camera is held. Camera loss is a soft violation.
func (p *Proctor) watchCameraLocked() {
	if p.stopCamera != nil {
		return
	}
	if stream, ok := p.devices.Stream(device.Camera); ok {
		p.stopCamera = p.machine.WatchDevice(stream)
	}
}

func (p *Proctor) startWatchersLocked(ctx context.Context) {
	logger := p.logger.With("component", "watchers")

	if p.metrics != nil {
		watch := &violation.DevtoolsWatch{
			Clock:     p.clock,
			Source:    p.metrics,
			Reporter:  p.machine,
			Logger:    logger,
			Interval:  p.settings.DevtoolsInterval,
			Threshold: p.settings.DevtoolsThreshold,
		}
		p.watchers.Go(func() { watch.Run(ctx) })
	}

	if p.displays != nil {
		p.watchers.Go(func() { p.watchDisplays(ctx) })
	}

	if p.settings.NoticeInterval > 0 {
		notices := &violation.Notices{
			Clock:    p.clock,
			Notifier: p.notifier,
			Interval: p.settings.NoticeInterval,
		}
		p.watchers.Go(func() { notices.Run(ctx) })
	}

	if len(p.probes) > 0 {
		p.watchers.Go(func() { p.runProbes(ctx) })
	}
}

// watchDisplays warns immediately about extra displays (the machine is
// still in its grace period, so this is advice) and then reports each
// change to multiple displays as a soft violation. Displays already
// connected during the grace period are reported once it ends.
func (p *Proctor) watchDisplays(ctx context.Context) {
	if layout, ok := p.displays.Check(ctx); ok && layout.Multiple() {
		p.notifier.Notify(notify.Notification{
			Title:       "Multiple displays detected",
			Description: fmt.Sprintf("Disconnect %d extra display(s) before monitoring begins.", max(layout.Count-1, 1)),
			Level:       notify.LevelWarning,
		})
	}
	if p.settings.DisplayInterval <= 0 {
		return
	}
	p.displays.Watch(ctx, p.settings.DisplayInterval, func(screenprobe.Layout) bool {
		return p.machine.Report(screenprobe.Reason, false) || p.machine.Counting()
	})
}

func (p *Proctor) runProbes(ctx context.Context) {
	names := make([]string, 0, len(p.probes))
	for name := range p.probes {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if ctx.Err() != nil {
			return
		}
		if notice, ok := violation.RunProbe(ctx, name, p.probes[name], p.logger); ok {
			p.notifier.Notify(notify.Notification{
				Title:       "Environment check",
				Description: notice,
				Level:       notify.LevelInfo,
			})
		}
	}
}
