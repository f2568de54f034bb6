// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package violation

import (
	"github.com/bureau-foundation/proctor/lib/device"
)

// LossViolation maps a device loss to a violation. Screen and
// microphone loss are hard; camera loss counts toward the ladder.
func LossViolation(lost *device.LostError) (reason string, hard bool) {
	switch lost.Track.Kind {
	case device.Screen:
		return "Screen sharing stopped", true
	case device.Microphone:
		if lost.Event == device.EventMuted {
			return "Microphone muted", true
		}
		return "Microphone disconnected", true
	case device.Camera:
		if lost.Event == device.EventMuted {
			return "Camera covered or muted", false
		}
		return "Camera disconnected", false
	default:
		return "Capture device lost", true
	}
}

// WatchDevice reports ended and muted events of stream as device-loss
// violations. The returned function stops watching.
func (m *Machine) WatchDevice(stream *device.Stream) (stop func()) {
	return stream.Subscribe(func(event device.Event, ref device.TrackRef) {
		if event == device.EventUnmuted {
			return
		}
		reason, hard := LossViolation(&device.LostError{Track: ref, Event: event})
		m.Report(reason, hard)
	})
}
