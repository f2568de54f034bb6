// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package proctor

import (
	"testing"
	"time"

	"github.com/bureau-foundation/proctor/lib/capture"
	"github.com/bureau-foundation/proctor/lib/config"
	"github.com/bureau-foundation/proctor/lib/upload"
	"github.com/bureau-foundation/proctor/lib/violation"
)

// The default configuration must agree with the component defaults,
// so a config file that sets nothing behaves like a zero Settings.
func TestDefaultConfigMatchesComponentDefaults(t *testing.T) {
	settings := SettingsFromConfig(config.Default())

	durations := []struct {
		name      string
		got, want time.Duration
	}{
		{"grace period", settings.GracePeriod, violation.DefaultGracePeriod},
		{"debounce window", settings.DebounceWindow, violation.DefaultDebounceWindow},
		{"devtools interval", settings.DevtoolsInterval, violation.DefaultDevtoolsInterval},
		{"timeslice", settings.Timeslice, capture.DefaultTimeslice},
		{"max duration", settings.MaxDuration, capture.DefaultMaxDuration},
		{"attempt timeout", settings.AttemptTimeout, upload.DefaultAttemptTimeout},
		{"initial backoff", settings.InitialBackoff, upload.DefaultInitialBackoff},
		{"upload wait", settings.UploadWait, upload.DefaultWaitBound},
	}
	for _, d := range durations {
		if d.got != d.want {
			t.Errorf("%s = %s, want %s", d.name, d.got, d.want)
		}
	}

	if settings.MaxViolations != violation.DefaultMaxViolations {
		t.Errorf("max violations = %d", settings.MaxViolations)
	}
	if settings.DevtoolsThreshold != violation.DefaultDevtoolsThreshold {
		t.Errorf("devtools threshold = %d", settings.DevtoolsThreshold)
	}
	if settings.MimeHint != capture.DefaultMimeHint {
		t.Errorf("mime hint = %q", settings.MimeHint)
	}
	if settings.MinUploadBytes != upload.DefaultMinSizeBytes || settings.UploadAttempts != upload.DefaultMaxAttempts {
		t.Errorf("upload limits = %d bytes, %d attempts", settings.MinUploadBytes, settings.UploadAttempts)
	}
	if settings.DisplayInterval <= 0 || settings.NoticeInterval <= 0 {
		t.Errorf("watch intervals = %s, %s; want both enabled", settings.DisplayInterval, settings.NoticeInterval)
	}
}
