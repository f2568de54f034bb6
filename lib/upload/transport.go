// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package upload

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bureau-foundation/proctor/lib/recording"
)

// Transport moves one artifact to remote storage and returns the URL
// it is reachable under. progress receives the fraction of the
// payload sent (0 to 1) and may be called from any goroutine.
// Implementations must return promptly once ctx is cancelled.
type Transport interface {
	Upload(ctx context.Context, artifact *recording.Artifact, progress func(fraction float64)) (string, error)
}

// StorageError is a non-2xx response from the storage service.
type StorageError struct {
	StatusCode int
	Message    string
}

func (e *StorageError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upload: storage returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("upload: storage returned %d: %s", e.StatusCode, e.Message)
}

// Permanent reports whether retrying the same request cannot succeed.
func (e *StorageError) Permanent() bool {
	switch {
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return false
	case e.StatusCode >= 400 && e.StatusCode < 500:
		return true
	}
	return false
}

// LocalError is a failure to build the request, before anything was
// sent: sealing, form encoding, or an unusable endpoint. Another
// attempt with the same artifact fails the same way.
type LocalError struct {
	Op  string
	Err error
}

func (e *LocalError) Error() string {
	return fmt.Sprintf("upload: %s: %v", e.Op, e.Err)
}

func (e *LocalError) Unwrap() error { return e.Err }

// isTransient returns true for failures worth another attempt:
// connection errors, attempt timeouts, rate limiting, and 5xx. Client
// errors other than 408 and 429 are permanent, as are local failures.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var localErr *LocalError
	if errors.As(err, &localErr) {
		return false
	}
	var storageErr *StorageError
	if errors.As(err, &storageErr) {
		return !storageErr.Permanent()
	}
	return true
}

// MemoryTransport is an in-process Transport. Each Upload consumes the
// next scripted result; once the script is exhausted every upload
// succeeds with a URL derived from the artifact digest.
type MemoryTransport struct {
	results chan memoryResult
	gate    <-chan struct{}
	calls   chan *recording.Artifact
}

type memoryResult struct {
	url string
	err error
}

var _ Transport = (*MemoryTransport)(nil)

// NewMemoryTransport returns a transport with room for 64 scripted
// results.
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{
		results: make(chan memoryResult, 64),
		calls:   make(chan *recording.Artifact, 64),
	}
}

// Fail scripts the next upload to return err.
func (m *MemoryTransport) Fail(err error) { m.results <- memoryResult{err: err} }

// Succeed scripts the next upload to return url.
func (m *MemoryTransport) Succeed(url string) { m.results <- memoryResult{url: url} }

// SetGate makes every upload block until gate is closed or the upload
// context ends. Call before the first upload.
func (m *MemoryTransport) SetGate(gate <-chan struct{}) { m.gate = gate }

// Calls returns the channel that receives every uploaded artifact.
func (m *MemoryTransport) Calls() <-chan *recording.Artifact { return m.calls }

func (m *MemoryTransport) Upload(ctx context.Context, artifact *recording.Artifact, progress func(float64)) (string, error) {
	select {
	case m.calls <- artifact:
	default:
	}
	if m.gate != nil {
		select {
		case <-m.gate:
		case <-ctx.Done():
			return "", context.Cause(ctx)
		}
	}
	progress(0.5)
	select {
	case result := <-m.results:
		if result.err != nil {
			return "", result.err
		}
		progress(1)
		return result.url, nil
	default:
	}
	progress(1)
	return "memory://" + artifact.FileName(), nil
}
