// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package proctor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/proctor/lib/capture"
	"github.com/bureau-foundation/proctor/lib/clock"
	"github.com/bureau-foundation/proctor/lib/device"
	"github.com/bureau-foundation/proctor/lib/localcache"
	"github.com/bureau-foundation/proctor/lib/notify"
	"github.com/bureau-foundation/proctor/lib/screenprobe"
	"github.com/bureau-foundation/proctor/lib/session"
	"github.com/bureau-foundation/proctor/lib/upload"
	"github.com/bureau-foundation/proctor/lib/violation"
)

// Config wires a Proctor. Source, Recorder and Transport are
// required.
type Config struct {
	Source    device.Source
	Recorder  capture.Recorder
	Transport upload.Transport

	// Cache mirrors the recording for crash and failed-upload
	// recovery. Optional.
	Cache *localcache.RecordingCache

	// Notifier is the candidate-facing sink. Defaults to discarding.
	Notifier notify.Notifier

	// Session is the attempt record. A new one is created if nil.
	Session *session.Session

	// Metrics feeds the developer-tools heuristic. Optional.
	Metrics violation.MetricsSource

	// Displays feeds the multiple-display check. Optional.
	Displays screenprobe.DisplaySource

	// Probes run once per activation. A notice they return is shown as
	// an informational toast.
	Probes map[string]violation.Probe

	Clock    clock.Clock
	Logger   *slog.Logger
	Settings Settings
}

// Proctor implements the monitored-session lifecycle for one
// candidate. Safe for concurrent use.
type Proctor struct {
	clock    clock.Clock
	logger   *slog.Logger
	notifier notify.Notifier
	settings Settings

	session  *session.Session
	devices  *device.Manager
	machine  *violation.Machine
	detector *violation.Detector
	capture  *capture.Manager
	pipeline *upload.Pipeline
	cache    *localcache.RecordingCache

	metrics  violation.MetricsSource
	displays *screenprobe.Probe
	probes   map[string]violation.Probe

	mu           sync.Mutex
	stopWatchers context.CancelFunc
	watchers     sync.WaitGroup
	stopCamera   func()
}

// New builds a Proctor and its components.
func New(config Config) *Proctor {
	if config.Source == nil || config.Recorder == nil || config.Transport == nil {
		panic("proctor: Config.Source, Config.Recorder and Config.Transport are required")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	if config.Notifier == nil {
		config.Notifier = notify.Discard
	}
	if config.Session == nil {
		config.Session = session.New()
	}
	settings := config.Settings

	p := &Proctor{
		clock:    config.Clock,
		logger:   config.Logger,
		notifier: config.Notifier,
		settings: settings,
		session:  config.Session,
		cache:    config.Cache,
		metrics:  config.Metrics,
		probes:   config.Probes,
	}

	p.devices = device.NewManager(device.ManagerConfig{
		Source: config.Source,
		Logger: config.Logger.With("component", "device"),
	})
	p.machine = violation.NewMachine(violation.Config{
		Clock:          config.Clock,
		Logger:         config.Logger.With("component", "violation"),
		Session:        config.Session,
		GracePeriod:    settings.GracePeriod,
		DebounceWindow: settings.DebounceWindow,
		MaxViolations:  settings.MaxViolations,
	})
	p.detector = violation.NewDetector(p.machine, config.Logger.With("component", "detector"))

	captureConfig := capture.Config{
		Devices:       p.devices,
		Recorder:      config.Recorder,
		Clock:         config.Clock,
		Logger:        config.Logger.With("component", "capture"),
		RequireCamera: settings.RequireCamera,
		MimeHint:      settings.MimeHint,
		Timeslice:     settings.Timeslice,
		MaxDuration:   settings.MaxDuration,
	}
	uploadConfig := upload.Config{
		Transport:      config.Transport,
		Clock:          config.Clock,
		Logger:         config.Logger.With("component", "upload"),
		MinSizeBytes:   settings.MinUploadBytes,
		MaxAttempts:    settings.UploadAttempts,
		AttemptTimeout: settings.AttemptTimeout,
		InitialBackoff: settings.InitialBackoff,
		WaitBound:      settings.UploadWait,
	}
	// Assigned only when set: a nil *RecordingCache in an interface
	// would not compare equal to nil.
	if config.Cache != nil {
		captureConfig.Mirror = config.Cache
		uploadConfig.Cache = config.Cache
	}
	p.capture = capture.NewManager(captureConfig)
	p.pipeline = upload.NewPipeline(uploadConfig)

	if config.Displays != nil {
		p.displays = &screenprobe.Probe{
			Source: config.Displays,
			Clock:  config.Clock,
			Logger: config.Logger.With("component", "screenprobe"),
		}
	}

	p.machine.OnWarning(p.announceWarning)
	p.machine.OnTermination(p.announceTermination)
	return p
}

// OnWarning registers a listener for soft violations below the
// threshold. Returns a function that removes it.
func (p *Proctor) OnWarning(fn func(violation.Warning)) (remove func()) {
	return p.machine.OnWarning(fn)
}

// OnTermination registers a listener for the end of the attempt.
func (p *Proctor) OnTermination(fn func(violation.Termination)) (remove func()) {
	return p.machine.OnTermination(fn)
}

// HandleSignal forwards a host signal to the side-channel detectors
// and returns what the host should do with it.
func (p *Proctor) HandleSignal(signal violation.Signal) violation.Decision {
	return p.detector.Handle(signal)
}

// Session returns a snapshot of the attempt record.
func (p *Proctor) Session() session.Snapshot {
	return p.session.Snapshot()
}

// MonitoringState returns the violation machine state.
func (p *Proctor) MonitoringState() violation.State {
	return p.machine.State()
}

// CaptureState returns the capture manager state.
func (p *Proctor) CaptureState() capture.State {
	return p.capture.State()
}

// Recording is the "recording active" indicator shown to the
// candidate.
func (p *Proctor) Recording() bool {
	return p.capture.Recording()
}

// UploadProgress registers fn for upload progress as a percentage
// (0 to 100). Returns a function that removes it.
func (p *Proctor) UploadProgress(fn func(percent float64)) (remove func()) {
	return p.pipeline.OnProgress(func(percent int) { fn(float64(percent)) })
}

// Restart abandons the current attempt: monitoring stops, the machine
// and session reset, and capture releases its devices. The cached
// recording is kept until the next StartCapture opens a new attempt.
func (p *Proctor) Restart(ctx context.Context) {
	p.DeactivateMonitoring()
	p.machine.Reset()
	p.detector.Reset()
	p.capture.Reset(ctx)
	p.logger.Info("attempt restarted")
}

// Close stops background tasks and releases every device.
func (p *Proctor) Close(ctx context.Context) {
	p.DeactivateMonitoring()
	p.capture.Reset(ctx)
	p.devices.ReleaseAll()
}

func (p *Proctor) announceWarning(warning violation.Warning) {
	p.notifier.Notify(WarningNotification(warning))
}

func (p *Proctor) announceTermination(termination violation.Termination) {
	// Listeners may run on a watcher goroutine, so cancel without
	// waiting.
	p.mu.Lock()
	if p.stopWatchers != nil {
		p.stopWatchers()
	}
	p.mu.Unlock()

	p.notifier.Notify(TerminationNotification(termination))
}

// WarningNotification is the toast shown for a counted violation that
// did not end the session.
func WarningNotification(warning violation.Warning) notify.Notification {
	return notify.Notification{
		Title: fmt.Sprintf("Warning %d of %d", warning.Count, warning.Max),
		Description: fmt.Sprintf("%s. %d more and the assessment ends.",
			warning.Reason, warning.Remaining()),
		Level: notify.LevelWarning,
	}
}

// TerminationNotification is the takeover shown when the session ends.
func TerminationNotification(termination violation.Termination) notify.Notification {
	return notify.Notification{
		Title:       "Assessment terminated",
		Description: termination.Reason + ". Your recording will be submitted for review.",
		Level:       notify.LevelCritical,
	}
}
