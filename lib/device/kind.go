// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"fmt"

	"github.com/pion/webrtc/v4"
)

// Kind identifies a capture device class.
type Kind int

const (
	Camera Kind = iota + 1
	Microphone
	Screen
)

// Kinds lists every device kind in acquisition order.
var Kinds = []Kind{Camera, Microphone, Screen}

func (k Kind) String() string {
	switch k {
	case Camera:
		return "camera"
	case Microphone:
		return "microphone"
	case Screen:
		return "screen"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// CodecType is the primary media type a stream of this kind carries.
// A screen stream may additionally carry a system-audio track.
func (k Kind) CodecType() webrtc.RTPCodecType {
	if k == Microphone {
		return webrtc.RTPCodecTypeAudio
	}
	return webrtc.RTPCodecTypeVideo
}

// Event is a track lifecycle notification.
type Event int

const (
	EventEnded Event = iota + 1
	EventMuted
	EventUnmuted
)

func (e Event) String() string {
	switch e {
	case EventEnded:
		return "ended"
	case EventMuted:
		return "muted"
	case EventUnmuted:
		return "unmuted"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// TrackRef is a read-only description of a live track.
type TrackRef struct {
	ID    string
	Kind  Kind
	Media webrtc.RTPCodecType
	Label string

	// SystemAudio marks the audio track a screen share carries when
	// the user shares tab or system audio.
	SystemAudio bool
}

func (r TrackRef) String() string {
	return fmt.Sprintf("%s/%s(%s)", r.Kind, r.Media, r.ID)
}
