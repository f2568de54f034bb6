// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package proctor

import (
	"time"

	"github.com/bureau-foundation/proctor/lib/config"
)

// Settings are the tunable timings and thresholds. Zero values take
// each component's default, except NoticeInterval and DisplayInterval
// where zero disables the task.
type Settings struct {
	GracePeriod    time.Duration
	DebounceWindow time.Duration
	MaxViolations  int

	DevtoolsInterval  time.Duration
	DevtoolsThreshold int
	DisplayInterval   time.Duration
	NoticeInterval    time.Duration

	RequireCamera bool
	MimeHint      string
	Timeslice     time.Duration
	MaxDuration   time.Duration

	MinUploadBytes int64
	UploadAttempts int
	AttemptTimeout time.Duration
	InitialBackoff time.Duration
	UploadWait     time.Duration
}

// SettingsFromConfig maps the loaded configuration file onto Settings.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		GracePeriod:       cfg.Monitoring.GracePeriod.Std(),
		DebounceWindow:    cfg.Monitoring.DebounceWindow.Std(),
		MaxViolations:     cfg.Monitoring.MaxViolations,
		DevtoolsInterval:  cfg.Monitoring.DevtoolsInterval.Std(),
		DevtoolsThreshold: cfg.Monitoring.DevtoolsThreshold,
		DisplayInterval:   cfg.Monitoring.DisplayInterval.Std(),
		NoticeInterval:    cfg.Monitoring.NoticeInterval.Std(),
		RequireCamera:     cfg.Capture.RequireCamera,
		MimeHint:          cfg.Capture.MimeHint,
		Timeslice:         cfg.Capture.Timeslice.Std(),
		MaxDuration:       cfg.Capture.MaxDuration.Std(),
		MinUploadBytes:    cfg.Upload.MinSizeBytes,
		UploadAttempts:    cfg.Upload.MaxAttempts,
		AttemptTimeout:    cfg.Upload.AttemptTimeout.Std(),
		InitialBackoff:    cfg.Upload.InitialBackoff.Std(),
		UploadWait:        cfg.Upload.WaitBound.Std(),
	}
}
