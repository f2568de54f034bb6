// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package proctor

import (
	"errors"

	"github.com/bureau-foundation/proctor/lib/capture"
	"github.com/bureau-foundation/proctor/lib/device"
	"github.com/bureau-foundation/proctor/lib/upload"
	"github.com/bureau-foundation/proctor/lib/violation"
)

// FailureKind is the user-facing category of an error, which decides
// how the form layer presents it.
type FailureKind int

const (
	FailureNone FailureKind = iota

	// FailurePermissionDenied: the candidate declined a device. Show a
	// blocking retry affordance.
	FailurePermissionDenied

	// FailureDeviceLost: a granted device stopped.
	FailureDeviceLost

	// FailureDeviceUnavailable: no device, or the platform failed.
	// Blocking, like a denial.
	FailureDeviceUnavailable

	// FailureCaptureTooSmall: nothing viable was recorded. Not
	// retryable; the candidate must record again.
	FailureCaptureTooSmall

	// FailureTransferFailed: upload failed. Offer manual retry.
	FailureTransferFailed

	// FailureEnvironmentViolation: a policy breach.
	FailureEnvironmentViolation

	FailureUnknown
)

var failureNames = [...]string{
	FailureNone:                 "none",
	FailurePermissionDenied:     "permission-denied",
	FailureDeviceLost:           "device-lost",
	FailureDeviceUnavailable:    "device-unavailable",
	FailureCaptureTooSmall:      "capture-too-small",
	FailureTransferFailed:       "transfer-failed",
	FailureEnvironmentViolation: "environment-violation",
	FailureUnknown:              "unknown",
}

func (k FailureKind) String() string {
	if k >= 0 && int(k) < len(failureNames) {
		return failureNames[k]
	}
	return "unknown"
}

// Blocking reports whether the form must stop the candidate from
// proceeding until the failure is resolved.
func (k FailureKind) Blocking() bool {
	return k == FailurePermissionDenied || k == FailureDeviceUnavailable
}

// Classify maps any error returned by this module onto a FailureKind.
func Classify(err error) FailureKind {
	var violationErr violation.Violation
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, device.ErrPermissionDenied):
		return FailurePermissionDenied
	case errors.Is(err, device.ErrDeviceLost):
		return FailureDeviceLost
	case errors.Is(err, device.ErrDeviceUnavailable):
		return FailureDeviceUnavailable
	case errors.Is(err, upload.ErrCaptureTooSmall),
		errors.Is(err, capture.ErrNoRecording),
		errors.Is(err, upload.ErrNothingToRetry):
		return FailureCaptureTooSmall
	case errors.Is(err, upload.ErrTransferFailed), errors.Is(err, upload.ErrWaitTimeout):
		return FailureTransferFailed
	case errors.As(err, &violationErr):
		return FailureEnvironmentViolation
	}
	return FailureUnknown
}
