// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pion/webrtc/v4/pkg/media"

	"github.com/bureau-foundation/proctor/lib/device"
	"github.com/bureau-foundation/proctor/lib/recording"
)

// Recorder is the host recording primitive.
type Recorder interface {
	// Start records tracks and delivers a flushed segment to sink every
	// timeslice. sink may be called from any goroutine.
	Start(tracks []device.TrackRef, mimeHint string, timeslice time.Duration, sink func(media.Sample)) error

	// Stop ends the recording. Every remaining segment has been
	// delivered to sink when Stop returns.
	Stop(ctx context.Context) error
}

// Mirror receives durable copies of recording data. Begin is called
// once per Start with a fresh, time-ordered attempt identifier; the
// checkpoints that follow carry it.
type Mirror interface {
	Begin(ctx context.Context, attempt string) error
	Checkpoint(ctx context.Context, attempt string, sequence int, data []byte, mimeHint string) error
	Store(ctx context.Context, artifact *recording.Artifact) error
}

// MemoryRecorder is an in-process Recorder. Tests emit segments
// explicitly; Stop delivers the configured tail segment.
type MemoryRecorder struct {
	mu       sync.Mutex
	sink     func(media.Sample)
	running  bool
	tracks   []device.TrackRef
	mimeHint string
	tail     []byte
	starts   int
	stops    int
	startErr error
}

var _ Recorder = (*MemoryRecorder)(nil)

// FailStart makes the next Start calls return err.
func (r *MemoryRecorder) FailStart(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startErr = err
}

// SetTail sets the segment Stop flushes.
func (r *MemoryRecorder) SetTail(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tail = data
}

func (r *MemoryRecorder) Start(tracks []device.TrackRef, mimeHint string, _ time.Duration, sink func(media.Sample)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return r.startErr
	}
	if r.running {
		return errors.New("recorder already running")
	}
	r.running = true
	r.sink = sink
	r.tracks = append([]device.TrackRef(nil), tracks...)
	r.mimeHint = mimeHint
	r.starts++
	return nil
}

func (r *MemoryRecorder) Stop(context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return errors.New("recorder not running")
	}
	r.running = false
	r.stops++
	sink, tail := r.sink, r.tail
	r.tail = nil
	r.mu.Unlock()

	if len(tail) > 0 {
		sink(media.Sample{Data: tail})
	}
	return nil
}

// Emit delivers one segment if the recorder is running. Returns
// whether it was delivered.
func (r *MemoryRecorder) Emit(data []byte, duration time.Duration) bool {
	r.mu.Lock()
	sink, running := r.sink, r.running
	r.mu.Unlock()
	if !running {
		return false
	}
	sink(media.Sample{Data: data, Duration: duration})
	return true
}

// Running reports whether the recorder is between Start and Stop.
func (r *MemoryRecorder) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Tracks returns the tracks passed to the last Start.
func (r *MemoryRecorder) Tracks() []device.TrackRef {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]device.TrackRef(nil), r.tracks...)
}

// Counts returns how many times Start and Stop succeeded.
func (r *MemoryRecorder) Counts() (starts, stops int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts, r.stops
}
