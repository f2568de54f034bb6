// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ManagerConfig holds the dependencies of a Manager.
type ManagerConfig struct {
	Source Source

	// Logger receives acquisition and release records. Nil discards.
	Logger *slog.Logger
}

// Manager holds at most one stream per Kind.
type Manager struct {
	source Source
	logger *slog.Logger

	mu      sync.Mutex
	held    map[Kind]*Stream
	pending map[Kind]*acquisition
}

type acquisition struct {
	done   chan struct{}
	stream *Stream
	err    error
}

// NewManager returns a Manager that requests streams from
// config.Source.
func NewManager(config ManagerConfig) *Manager {
	if config.Source == nil {
		panic("device: ManagerConfig.Source is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		source:  config.Source,
		logger:  logger,
		held:    make(map[Kind]*Stream),
		pending: make(map[Kind]*acquisition),
	}
}

// Acquire returns the held stream of kind, requesting one from the
// source if none is held. Concurrent calls for the same kind share a
// single request. Errors are *AcquireError values matching
// ErrPermissionDenied or ErrDeviceUnavailable.
func (m *Manager) Acquire(ctx context.Context, kind Kind) (*Stream, error) {
	m.mu.Lock()
	if stream, ok := m.held[kind]; ok {
		m.mu.Unlock()
		return stream, nil
	}
	if inflight, ok := m.pending[kind]; ok {
		m.mu.Unlock()
		select {
		case <-inflight.done:
			return inflight.stream, inflight.err
		case <-ctx.Done():
			return nil, &AcquireError{Kind: kind, Err: fmt.Errorf("%w: %w", ErrDeviceUnavailable, ctx.Err())}
		}
	}
	inflight := &acquisition{done: make(chan struct{})}
	m.pending[kind] = inflight
	m.mu.Unlock()

	tracks, err := m.request(ctx, kind)

	m.mu.Lock()
	delete(m.pending, kind)
	if err != nil {
		inflight.err = &AcquireError{Kind: kind, Err: classify(err)}
	} else {
		inflight.stream = newStream(kind, tracks, m.logger)
		m.held[kind] = inflight.stream
	}
	m.mu.Unlock()
	close(inflight.done)

	if inflight.err != nil {
		m.logger.Warn("device acquisition failed", "kind", kind, "error", inflight.err)
	} else {
		m.logger.Info("device acquired", "kind", kind, "tracks", len(tracks))
	}
	return inflight.stream, inflight.err
}

func (m *Manager) request(ctx context.Context, kind Kind) (tracks []PlatformTrack, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			tracks = nil
			err = fmt.Errorf("source panicked: %v", recovered)
		}
	}()
	tracks, err = m.source.Request(ctx, kind)
	if err == nil && len(tracks) == 0 {
		err = errors.New("source granted no tracks")
	}
	return tracks, err
}

func classify(err error) error {
	if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrDeviceUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
}

// Release stops every track of the held stream of kind. Returns false
// if nothing of that kind was held.
func (m *Manager) Release(kind Kind) bool {
	m.mu.Lock()
	stream, ok := m.held[kind]
	delete(m.held, kind)
	m.mu.Unlock()

	if !ok || !stream.release() {
		return false
	}
	m.logger.Info("device released", "kind", kind)
	return true
}

// ReleaseAll releases every held stream and returns how many were
// released.
func (m *Manager) ReleaseAll() int {
	released := 0
	for _, kind := range Kinds {
		if m.Release(kind) {
			released++
		}
	}
	return released
}

// Held reports whether a stream of kind is held.
func (m *Manager) Held(kind Kind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.held[kind]
	return ok
}

// Stream returns the held stream of kind.
func (m *Manager) Stream(kind Kind) (*Stream, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stream, ok := m.held[kind]
	return stream, ok
}

// HeldCount returns the number of held streams.
func (m *Manager) HeldCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.held)
}
