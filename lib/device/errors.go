// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied means the user declined the capture prompt.
	// Recoverable by asking again.
	ErrPermissionDenied = errors.New("device: permission denied")

	// ErrDeviceUnavailable means the request could not be satisfied:
	// no such device, device busy, or the host failed.
	ErrDeviceUnavailable = errors.New("device: unavailable")

	// ErrDeviceLost means a granted device stopped unexpectedly.
	ErrDeviceLost = errors.New("device: lost")
)

// AcquireError reports which kind failed to acquire. It unwraps to
// ErrPermissionDenied or ErrDeviceUnavailable.
type AcquireError struct {
	Kind Kind
	Err  error
}

func (e *AcquireError) Error() string {
	return fmt.Sprintf("acquiring %s: %v", e.Kind, e.Err)
}

func (e *AcquireError) Unwrap() error { return e.Err }

// LostError describes a device loss. It matches ErrDeviceLost with
// errors.Is.
type LostError struct {
	Track TrackRef
	Event Event
}

func (e *LostError) Error() string {
	return fmt.Sprintf("device: %s track %s", e.Track.Kind, e.Event)
}

func (e *LostError) Is(target error) bool { return target == ErrDeviceLost }
