// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
)

// MemorySource is an in-process Source. Every request is granted
// unless a failure was configured for the kind. Tests use it to fire
// track events and to count prompts and stops.
type MemorySource struct {
	mu          sync.Mutex
	failures    map[Kind]error
	requests    map[Kind]int
	granted     map[Kind][]*MemoryTrack
	systemAudio bool
	gate        <-chan struct{}
	sequence    int
}

var _ Source = (*MemorySource)(nil)

// NewMemorySource returns a source that grants every kind.
func NewMemorySource() *MemorySource {
	return &MemorySource{
		failures: make(map[Kind]error),
		requests: make(map[Kind]int),
		granted:  make(map[Kind][]*MemoryTrack),
	}
}

// Fail makes later requests for kind return err. A nil err clears the
// failure.
func (s *MemorySource) Fail(kind Kind, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, kind)
		return
	}
	s.failures[kind] = err
}

// SetSystemAudio controls whether granted screen streams carry a
// system-audio track.
func (s *MemorySource) SetSystemAudio(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.systemAudio = enabled
}

// SetGate makes Request block until gate is closed or the request
// context is done. Nil removes the gate.
func (s *MemorySource) SetGate(gate <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate = gate
}

// Request implements Source.
func (s *MemorySource) Request(ctx context.Context, kind Kind) ([]PlatformTrack, error) {
	s.mu.Lock()
	s.requests[kind]++
	gate := s.gate
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures[kind]; err != nil {
		return nil, err
	}

	var tracks []*MemoryTrack
	switch kind {
	case Camera:
		tracks = append(tracks, s.newTrackLocked(kind, webrtc.RTPCodecTypeVideo, "Integrated Camera", false))
	case Microphone:
		tracks = append(tracks, s.newTrackLocked(kind, webrtc.RTPCodecTypeAudio, "Default Microphone", false))
	case Screen:
		tracks = append(tracks, s.newTrackLocked(kind, webrtc.RTPCodecTypeVideo, "screen:0", false))
		if s.systemAudio {
			tracks = append(tracks, s.newTrackLocked(kind, webrtc.RTPCodecTypeAudio, "System Audio", true))
		}
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrDeviceUnavailable, int(kind))
	}
	s.granted[kind] = tracks

	platform := make([]PlatformTrack, len(tracks))
	for i, track := range tracks {
		platform[i] = track
	}
	return platform, nil
}

func (s *MemorySource) newTrackLocked(kind Kind, media webrtc.RTPCodecType, label string, systemAudio bool) *MemoryTrack {
	s.sequence++
	return &MemoryTrack{
		id:          fmt.Sprintf("%s-%d", kind, s.sequence),
		media:       media,
		label:       label,
		systemAudio: systemAudio,
	}
}

// Requests returns how many times kind was requested.
func (s *MemorySource) Requests(kind Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[kind]
}

// Tracks returns the tracks of the most recent grant for kind.
func (s *MemorySource) Tracks(kind Kind) []*MemoryTrack {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*MemoryTrack(nil), s.granted[kind]...)
}

// Live returns how many granted tracks have not been stopped, across
// the most recent grant of every kind.
func (s *MemorySource) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	live := 0
	for _, tracks := range s.granted {
		for _, track := range tracks {
			if !track.Stopped() {
				live++
			}
		}
	}
	return live
}

// MemoryTrack is a PlatformTrack produced by MemorySource.
type MemoryTrack struct {
	id          string
	media       webrtc.RTPCodecType
	label       string
	systemAudio bool

	mu      sync.Mutex
	handler func(Event)
	stops   int
}

var _ PlatformTrack = (*MemoryTrack)(nil)

func (t *MemoryTrack) ID() string { return t.id }
func (t *MemoryTrack) Media() webrtc.RTPCodecType { return t.media }
func (t *MemoryTrack) Label() string { return t.label }
func (t *MemoryTrack) SystemAudio() bool { return t.systemAudio }

func (t *MemoryTrack) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stops++
}

func (t *MemoryTrack) SetEventHandler(handler func(Event)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = handler
}

// Fire delivers event as if the host emitted it.
func (t *MemoryTrack) Fire(event Event) {
	t.mu.Lock()
	handler := t.handler
	t.mu.Unlock()
	if handler != nil {
		handler(event)
	}
}

// Stops returns how many times Stop was called.
func (t *MemoryTrack) Stops() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stops
}

// Stopped reports whether Stop was called.
func (t *MemoryTrack) Stopped() bool { return t.Stops() > 0 }
