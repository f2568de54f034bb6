// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/bureau-foundation/proctor/lib/clock"
	"github.com/bureau-foundation/proctor/lib/recording"
)

const (
	DefaultMinSizeBytes   = 1024
	DefaultMaxAttempts    = 5
	DefaultAttemptTimeout = 2 * time.Minute
	DefaultInitialBackoff = 2 * time.Second
	DefaultWaitBound      = 3 * time.Minute
)

var (
	// ErrCaptureTooSmall means the artifact is below the configured
	// minimum and was not sent. Usually the recorder never produced
	// real media.
	ErrCaptureTooSmall = errors.New("upload: recording too small to be a real capture")

	// ErrTransferFailed is matched by every *TransferError.
	ErrTransferFailed = errors.New("upload: transfer failed")

	// ErrNothingToRetry is returned by Retry when no failed artifact is
	// held.
	ErrNothingToRetry = errors.New("upload: nothing to retry")

	// ErrWaitTimeout means a Submit gave up waiting for the transfer
	// already in flight.
	ErrWaitTimeout = errors.New("upload: timed out waiting for in-flight transfer")

	errAttemptTimeout = errors.New("upload: attempt timed out")
)

// TransferError is returned when every attempt failed or a permanent
// error stopped the series. The artifact is retained for Retry.
type TransferError struct {
	Attempts int
	Err      error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("upload: transfer failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

func (e *TransferError) Is(target error) bool { return target == ErrTransferFailed }

// Outcome is the result of one attempt.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeSuccess
	OutcomeRetryable
	OutcomePermanent
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable-failure"
	case OutcomePermanent:
		return "permanent-failure"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Attempt records one transfer attempt.
type Attempt struct {
	Number    int
	StartedAt time.Time
	Outcome   Outcome
	Err       error
}

// Cache is the durable copy the pipeline clears after a confirmed
// delivery.
type Cache interface {
	Clear(ctx context.Context) error
}

// Config configures a Pipeline. Zero durations and counts take the
// package defaults.
type Config struct {
	Transport Transport
	Cache     Cache
	Clock     clock.Clock
	Logger    *slog.Logger

	MinSizeBytes   int64
	MaxAttempts    int
	AttemptTimeout time.Duration
	InitialBackoff time.Duration

	// WaitBound caps how long a concurrent Submit waits for the
	// in-flight transfer.
	WaitBound time.Duration
}

// Pipeline delivers artifacts with at most one transfer in flight.
type Pipeline struct {
	transport Transport
	cache     Cache
	clock     clock.Clock
	logger    *slog.Logger

	minSize        int64
	maxAttempts    int
	attemptTimeout time.Duration
	initialBackoff time.Duration
	waitBound      time.Duration

	mu        sync.Mutex
	inflight  *flight
	pending   *recording.Artifact
	attempts  []Attempt
	delivered map[recording.Digest]string
	lastURL   string

	progressMu      sync.Mutex
	progressNext    int
	progressHandler map[int]func(percent int)
}

type flight struct {
	done chan struct{}
	url  string
	err  error
}

// NewPipeline creates a pipeline. Transport is required.
func NewPipeline(config Config) *Pipeline {
	if config.Transport == nil {
		panic("upload: Config.Transport is required")
	}
	pipeline := &Pipeline{
		transport:       config.Transport,
		cache:           config.Cache,
		clock:           config.Clock,
		logger:          config.Logger,
		minSize:         config.MinSizeBytes,
		maxAttempts:     config.MaxAttempts,
		attemptTimeout:  config.AttemptTimeout,
		initialBackoff:  config.InitialBackoff,
		waitBound:       config.WaitBound,
		delivered:       make(map[recording.Digest]string),
		progressHandler: make(map[int]func(int)),
	}
	if pipeline.clock == nil {
		pipeline.clock = clock.Real()
	}
	if pipeline.logger == nil {
		pipeline.logger = slog.New(slog.DiscardHandler)
	}
	if pipeline.minSize <= 0 {
		pipeline.minSize = DefaultMinSizeBytes
	}
	if pipeline.maxAttempts <= 0 {
		pipeline.maxAttempts = DefaultMaxAttempts
	}
	if pipeline.attemptTimeout <= 0 {
		pipeline.attemptTimeout = DefaultAttemptTimeout
	}
	if pipeline.initialBackoff <= 0 {
		pipeline.initialBackoff = DefaultInitialBackoff
	}
	if pipeline.waitBound <= 0 {
		pipeline.waitBound = DefaultWaitBound
	}
	return pipeline
}

// OnProgress registers handler for transfer progress in whole percent
// (0 to 100). Returns a function that removes it.
func (p *Pipeline) OnProgress(handler func(percent int)) func() {
	p.progressMu.Lock()
	id := p.progressNext
	p.progressNext++
	p.progressHandler[id] = handler
	p.progressMu.Unlock()
	return func() {
		p.progressMu.Lock()
		delete(p.progressHandler, id)
		p.progressMu.Unlock()
	}
}

func (p *Pipeline) emitProgress(percent int) {
	p.progressMu.Lock()
	ids := make([]int, 0, len(p.progressHandler))
	for id := range p.progressHandler {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	handlers := make([]func(int), 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, p.progressHandler[id])
	}
	p.progressMu.Unlock()

	for _, handler := range handlers {
		func() {
			defer func() {
				if recovered := recover(); recovered != nil {
					p.logger.Error("upload progress handler panicked", "panic", recovered)
				}
			}()
			handler(percent)
		}()
	}
}

// Admit reports whether artifact passes the size gate Submit applies.
// It returns ErrCaptureTooSmall for nil or undersized artifacts.
func (p *Pipeline) Admit(artifact *recording.Artifact) error {
	if artifact == nil || artifact.SizeBytes < p.minSize {
		return ErrCaptureTooSmall
	}
	return nil
}

// Submit delivers artifact and returns its storage URL.
//
// If the artifact's digest was already delivered the recorded URL is
// returned without a transfer. If another transfer is in flight,
// Submit waits for it (bounded by WaitBound) and returns its result.
func (p *Pipeline) Submit(ctx context.Context, artifact *recording.Artifact) (string, error) {
	if err := p.Admit(artifact); err != nil {
		return "", err
	}

	p.mu.Lock()
	if url, ok := p.delivered[artifact.Digest]; ok {
		p.mu.Unlock()
		p.logger.Info("recording already delivered", "recording", artifact.Digest.ShortDigest())
		return url, nil
	}
	if current := p.inflight; current != nil {
		p.mu.Unlock()
		return p.wait(ctx, current)
	}
	current := &flight{done: make(chan struct{})}
	p.inflight = current
	p.pending = artifact
	p.attempts = nil
	p.mu.Unlock()

	url, err := p.transfer(ctx, artifact)

	p.mu.Lock()
	if err == nil {
		p.delivered[artifact.Digest] = url
		p.lastURL = url
		p.pending = nil
	}
	p.inflight = nil
	p.mu.Unlock()

	current.url, current.err = url, err
	close(current.done)
	return url, err
}

// Retry resubmits the artifact held from the last failed transfer.
func (p *Pipeline) Retry(ctx context.Context) (string, error) {
	p.mu.Lock()
	artifact := p.pending
	p.mu.Unlock()
	if artifact == nil {
		return "", ErrNothingToRetry
	}
	return p.Submit(ctx, artifact)
}

func (p *Pipeline) wait(ctx context.Context, current *flight) (string, error) {
	p.logger.Info("waiting for in-flight upload")
	select {
	case <-current.done:
		return current.url, current.err
	case <-p.clock.After(p.waitBound):
		return "", ErrWaitTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (p *Pipeline) transfer(ctx context.Context, artifact *recording.Artifact) (string, error) {
	logger := p.logger.With("recording", artifact.Digest.ShortDigest(), "size_bytes", artifact.SizeBytes)

	var lastError error
	for number := 1; number <= p.maxAttempts; number++ {
		if number > 1 {
			backoff := p.initialBackoff << (number - 2)
			select {
			case <-ctx.Done():
				return "", &TransferError{Attempts: number - 1, Err: ctx.Err()}
			case <-p.clock.After(backoff):
			}
		}

		index := p.recordAttempt(Attempt{Number: number, StartedAt: p.clock.Now(), Outcome: OutcomePending})
		p.emitProgress(0)

		url, err := p.attempt(ctx, artifact)
		if err == nil {
			p.finishAttempt(index, OutcomeSuccess, nil)
			p.clearCache(ctx, logger)
			p.emitProgress(100)
			logger.Info("recording delivered", "attempt", number, "url", url)
			return url, nil
		}
		lastError = err

		if ctx.Err() != nil {
			p.finishAttempt(index, OutcomeRetryable, err)
			return "", &TransferError{Attempts: number, Err: ctx.Err()}
		}
		if !isTransient(err) {
			p.finishAttempt(index, OutcomePermanent, err)
			logger.Error("permanent upload failure", "attempt", number, "error", err)
			return "", &TransferError{Attempts: number, Err: err}
		}
		p.finishAttempt(index, OutcomeRetryable, err)
		logger.Warn("transient upload failure, retrying",
			"attempt", number,
			"max_attempts", p.maxAttempts,
			"error", err,
		)
	}
	return "", &TransferError{Attempts: p.maxAttempts, Err: lastError}
}

// attempt runs one Upload call bounded by the attempt timeout.
func (p *Pipeline) attempt(ctx context.Context, artifact *recording.Artifact) (string, error) {
	attemptCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	timer := p.clock.AfterFunc(p.attemptTimeout, func() { cancel(errAttemptTimeout) })
	defer timer.Stop()

	url, err := p.transport.Upload(attemptCtx, artifact, func(fraction float64) {
		p.emitProgress(int(min(max(fraction, 0), 1) * 100))
	})
	if err != nil {
		if cause := context.Cause(attemptCtx); errors.Is(cause, errAttemptTimeout) {
			return "", fmt.Errorf("%w after %s: %w", errAttemptTimeout, p.attemptTimeout, err)
		}
		return "", err
	}
	if url == "" {
		return "", fmt.Errorf("upload: storage response carried no URL")
	}
	return url, nil
}

func (p *Pipeline) clearCache(ctx context.Context, logger *slog.Logger) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Clear(ctx); err != nil {
		logger.Warn("clearing recording cache after delivery", "error", err)
	}
}

func (p *Pipeline) recordAttempt(attempt Attempt) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts = append(p.attempts, attempt)
	return len(p.attempts) - 1
}

func (p *Pipeline) finishAttempt(index int, outcome Outcome, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts[index].Outcome = outcome
	p.attempts[index].Err = err
}

// Pending returns the artifact held for Retry, or nil.
func (p *Pipeline) Pending() *recording.Artifact {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}

// InFlight reports whether a transfer is running.
func (p *Pipeline) InFlight() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inflight != nil
}

// Attempts returns the attempts of the current or most recent
// transfer.
func (p *Pipeline) Attempts() []Attempt {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.attempts)
}

// LastURL returns the URL of the most recent successful delivery.
func (p *Pipeline) LastURL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastURL
}
