// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package recording

import (
	"bytes"
	"sync"
	"time"

	"github.com/pion/webrtc/v4/pkg/media"
)

// Buffer accumulates flushed recording segments. Safe for concurrent
// use: the recording primitive appends from its own goroutine while
// the capture manager materializes.
type Buffer struct {
	mu       sync.Mutex
	segments [][]byte
	size     int64
	duration time.Duration
}

// Append adds one flushed segment and returns its sequence number
// (zero-based). Empty samples are ignored and return -1. The data is
// copied; the caller may reuse its buffer.
func (b *Buffer) Append(sample media.Sample) int {
	if len(sample.Data) == 0 {
		return -1
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.segments = append(b.segments, bytes.Clone(sample.Data))
	b.size += int64(len(sample.Data))
	b.duration += sample.Duration
	return len(b.segments) - 1
}

// Len returns the number of buffered segments.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.segments)
}

// Size returns the total buffered bytes.
func (b *Buffer) Size() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Duration returns the summed duration of buffered segments.
func (b *Buffer) Duration() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.duration
}

// Drain materializes the buffered segments into an artifact and
// empties the buffer. Returns nil when nothing was buffered.
func (b *Buffer) Drain(mimeHint string, capturedAt time.Time) *Artifact {
	b.mu.Lock()
	segments := b.segments
	size := b.size
	b.segments = nil
	b.size = 0
	b.duration = 0
	b.mu.Unlock()

	if len(segments) == 0 {
		return nil
	}
	return New(Concatenate(segments, size), mimeHint, capturedAt)
}

// Concatenate joins segments in order. sizeHint may be zero.
func Concatenate(segments [][]byte, sizeHint int64) []byte {
	if sizeHint <= 0 {
		for _, segment := range segments {
			sizeHint += int64(len(segment))
		}
	}
	data := make([]byte, 0, sizeHint)
	for _, segment := range segments {
		data = append(data, segment...)
	}
	return data
}
