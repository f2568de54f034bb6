// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/pion/webrtc/v4"
)

// PlatformTrack is one live media track handed out by the host.
type PlatformTrack interface {
	ID() string
	Media() webrtc.RTPCodecType
	Label() string
	SystemAudio() bool

	// Stop ends the track. Hosts do not deliver EventEnded for tracks
	// stopped this way.
	Stop()

	// SetEventHandler installs the single host-level callback for
	// track events. The stream fans it out to subscribers.
	SetEventHandler(func(Event))
}

// Source grants device streams. Request shows at most one permission
// prompt and returns every track of the granted stream, or an error
// matching ErrPermissionDenied or ErrDeviceUnavailable.
type Source interface {
	Request(ctx context.Context, kind Kind) ([]PlatformTrack, error)
}

// Handler receives track events of a stream.
type Handler func(Event, TrackRef)

// Stream is a held device stream. It exposes track descriptions and
// event subscriptions; only the Manager can stop it.
type Stream struct {
	kind   Kind
	tracks []PlatformTrack
	refs   []TrackRef
	logger *slog.Logger

	mu       sync.Mutex
	nextID   int
	handlers map[int]Handler
	released bool
}

func newStream(kind Kind, tracks []PlatformTrack, logger *slog.Logger) *Stream {
	stream := &Stream{
		kind:     kind,
		tracks:   tracks,
		logger:   logger,
		handlers: make(map[int]Handler),
	}
	for _, track := range tracks {
		ref := TrackRef{
			ID:          track.ID(),
			Kind:        kind,
			Media:       track.Media(),
			Label:       track.Label(),
			SystemAudio: track.SystemAudio(),
		}
		stream.refs = append(stream.refs, ref)
		track.SetEventHandler(func(event Event) { stream.dispatch(event, ref) })
	}
	return stream
}

// Kind returns the device kind of the stream.
func (s *Stream) Kind() Kind { return s.kind }

// Tracks returns descriptions of every track in the stream.
func (s *Stream) Tracks() []TrackRef {
	return append([]TrackRef(nil), s.refs...)
}

// Track returns the first track carrying media, excluding system
// audio.
func (s *Stream) Track(media webrtc.RTPCodecType) (TrackRef, bool) {
	for _, ref := range s.refs {
		if ref.Media == media && !ref.SystemAudio {
			return ref, true
		}
	}
	return TrackRef{}, false
}

// SystemAudioTrack returns the system-audio track of a screen stream,
// if the host supplied one.
func (s *Stream) SystemAudioTrack() (TrackRef, bool) {
	for _, ref := range s.refs {
		if ref.SystemAudio {
			return ref, true
		}
	}
	return TrackRef{}, false
}

// Subscribe registers handler for every event on every track of the
// stream. Handlers run in subscription order on the goroutine that
// delivered the host event. The returned function removes the
// subscription and is safe to call more than once.
func (s *Stream) Subscribe(handler Handler) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.handlers[id] = handler
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.handlers, id)
		s.mu.Unlock()
	}
}

// OnEnded subscribes fn to EventEnded.
func (s *Stream) OnEnded(fn func(TrackRef)) (unsubscribe func()) {
	return s.on(EventEnded, fn)
}

// OnMuted subscribes fn to EventMuted.
func (s *Stream) OnMuted(fn func(TrackRef)) (unsubscribe func()) {
	return s.on(EventMuted, fn)
}

// OnUnmuted subscribes fn to EventUnmuted.
func (s *Stream) OnUnmuted(fn func(TrackRef)) (unsubscribe func()) {
	return s.on(EventUnmuted, fn)
}

func (s *Stream) on(want Event, fn func(TrackRef)) func() {
	return s.Subscribe(func(event Event, ref TrackRef) {
		if event == want {
			fn(ref)
		}
	})
}

// Released reports whether the Manager has released the stream.
func (s *Stream) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

func (s *Stream) dispatch(event Event, ref TrackRef) {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	ids := make([]int, 0, len(s.handlers))
	for id := range s.handlers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	handlers := make([]Handler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, s.handlers[id])
	}
	s.mu.Unlock()

	s.logger.Debug("track event", "kind", s.kind, "track", ref.ID, "event", event)
	for _, handler := range handlers {
		s.invoke(handler, event, ref)
	}
}

func (s *Stream) invoke(handler Handler, event Event, ref TrackRef) {
	defer func() {
		if recovered := recover(); recovered != nil {
			s.logger.Error("track event handler panicked",
				"kind", s.kind, "event", event, "panic", recovered)
		}
	}()
	handler(event, ref)
}

// release marks the stream released, then stops every track. The
// flag is set first so that any event a host emits while stopping is
// dropped. Returns false if already released.
func (s *Stream) release() bool {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return false
	}
	s.released = true
	s.handlers = make(map[int]Handler)
	s.mu.Unlock()

	for _, track := range s.tracks {
		track.Stop()
	}
	return true
}
