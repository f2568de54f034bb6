// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package localcache

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bureau-foundation/proctor/lib/recording"
)

const (
	recordingPrefix = "recording/"
	currentKey      = recordingPrefix + "current"
	segmentPrefix   = recordingPrefix + "segment/"
)

// RecordingCache persists the session's recording. It holds at most
// one current artifact plus the segments checkpointed since capture
// started. Segments are keyed by attempt so that a restarted attempt
// never reassembles with an earlier one.
type RecordingCache struct {
	store *Store
}

// NewRecordingCache returns a RecordingCache over store.
func NewRecordingCache(store *Store) *RecordingCache {
	return &RecordingCache{store: store}
}

// Begin opens a new attempt. Whatever an earlier attempt left behind,
// current artifact or segments, is dropped.
func (c *RecordingCache) Begin(ctx context.Context, attempt string) error {
	if attempt == "" || strings.Contains(attempt, "/") {
		return fmt.Errorf("localcache: invalid attempt %q", attempt)
	}
	_, err := c.store.DeletePrefix(ctx, recordingPrefix)
	return err
}

// Checkpoint persists one flushed segment of attempt. Sequence numbers
// order segments on reassembly.
func (c *RecordingCache) Checkpoint(ctx context.Context, attempt string, sequence int, data []byte, mimeHint string) error {
	key := fmt.Sprintf("%s%s/%08d", segmentPrefix, attempt, sequence)
	return c.store.Put(ctx, key, data, Meta{MimeHint: mimeHint})
}

// Store persists artifact as the current recording and drops the
// segments it supersedes.
func (c *RecordingCache) Store(ctx context.Context, artifact *recording.Artifact) error {
	err := c.store.Put(ctx, currentKey, artifact.Data, Meta{
		MimeHint: artifact.MimeHint,
		Label:    artifact.Digest.String(),
	})
	if err != nil {
		return err
	}
	if _, err := c.store.DeletePrefix(ctx, segmentPrefix); err != nil {
		return err
	}
	return nil
}

// Load returns the cached recording: the current artifact if one was
// stored, otherwise the latest attempt's segments joined in order.
// Returns nil and no error when nothing is cached.
func (c *RecordingCache) Load(ctx context.Context) (*recording.Artifact, error) {
	data, entry, err := c.store.Get(ctx, currentKey)
	switch {
	case err == nil:
		digest, err := recording.ParseDigest(entry.Label)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, currentKey, err)
		}
		artifact := &recording.Artifact{
			Data:       data,
			SizeBytes:  int64(len(data)),
			MimeHint:   entry.MimeHint,
			Digest:     digest,
			CapturedAt: entry.WrittenAt,
		}
		if err := artifact.Verify(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return artifact, nil
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	entries, err := c.store.List(ctx, segmentPrefix)
	if err != nil {
		return nil, err
	}
	entries = latestAttempt(entries)
	if len(entries) == 0 {
		return nil, nil
	}
	segments := make([][]byte, 0, len(entries))
	var size int64
	for _, segment := range entries {
		data, _, err := c.store.Get(ctx, segment.Key)
		if err != nil {
			return nil, err
		}
		segments = append(segments, data)
		size += int64(len(data))
	}
	last := entries[len(entries)-1]
	return recording.New(recording.Concatenate(segments, size), last.MimeHint, last.WrittenAt), nil
}

// latestAttempt keeps the segments of the attempt that sorts last.
// Attempt identifiers are time ordered; entries arrive sorted by key.
func latestAttempt(entries []Entry) []Entry {
	if len(entries) == 0 {
		return nil
	}
	attempt, _, _ := strings.Cut(strings.TrimPrefix(entries[len(entries)-1].Key, segmentPrefix), "/")
	prefix := segmentPrefix + attempt + "/"
	first := len(entries) - 1
	for first > 0 && strings.HasPrefix(entries[first-1].Key, prefix) {
		first--
	}
	return entries[first:]
}

// Entries lists every cached recording entry.
func (c *RecordingCache) Entries(ctx context.Context) ([]Entry, error) {
	return c.store.List(ctx, recordingPrefix)
}

// Clear removes the current artifact and all segments.
func (c *RecordingCache) Clear(ctx context.Context) error {
	_, err := c.store.DeletePrefix(ctx, recordingPrefix)
	return err
}
