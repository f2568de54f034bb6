// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package proctor

import (
	"errors"
	"fmt"
	"testing"

	"github.com/bureau-foundation/proctor/lib/capture"
	"github.com/bureau-foundation/proctor/lib/device"
	"github.com/bureau-foundation/proctor/lib/upload"
	"github.com/bureau-foundation/proctor/lib/violation"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		want     FailureKind
		blocking bool
	}{
		{"nil", nil, FailureNone, false},
		{"permission denied", fmt.Errorf("acquiring camera: %w", device.ErrPermissionDenied), FailurePermissionDenied, true},
		{"unavailable", device.ErrDeviceUnavailable, FailureDeviceUnavailable, true},
		{"lost", &device.LostError{Track: device.TrackRef{Kind: device.Screen}, Event: device.EventEnded}, FailureDeviceLost, false},
		{"too small", upload.ErrCaptureTooSmall, FailureCaptureTooSmall, false},
		{"no recording", capture.ErrNoRecording, FailureCaptureTooSmall, false},
		{"nothing to retry", upload.ErrNothingToRetry, FailureCaptureTooSmall, false},
		{"transfer", &upload.TransferError{Attempts: 5, Err: errors.New("connection reset")}, FailureTransferFailed, false},
		{"wait timeout", upload.ErrWaitTimeout, FailureTransferFailed, false},
		{"violation", fmt.Errorf("stopped: %w", violation.Violation{Reason: "Microphone muted", Hard: true}), FailureEnvironmentViolation, false},
		{"other", errors.New("disk full"), FailureUnknown, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			kind := Classify(test.err)
			if kind != test.want {
				t.Fatalf("Classify(%v) = %s, want %s", test.err, kind, test.want)
			}
			if kind.Blocking() != test.blocking {
				t.Fatalf("%s.Blocking() = %v, want %v", kind, kind.Blocking(), test.blocking)
			}
		})
	}
}
