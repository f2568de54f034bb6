// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package proctor

import (
	"context"
	"errors"
	"fmt"

	"github.com/bureau-foundation/proctor/lib/capture"
	"github.com/bureau-foundation/proctor/lib/notify"
	"github.com/bureau-foundation/proctor/lib/recording"
	"github.com/bureau-foundation/proctor/lib/upload"
)

// FinalizeAndUpload stops capture, delivers the recording, and
// returns its storage URL. On success the attempt is over: monitoring
// stops, the session resets and the cache is cleared.
//
// The recording is taken from the live capture if one is active, then
// from memory (a finalized or failed-upload artifact), then from the
// durable cache.
func (p *Proctor) FinalizeAndUpload(ctx context.Context) (string, error) {
	artifact, err := p.resolveArtifact(ctx)
	if err != nil {
		return "", err
	}
	return p.deliver(ctx, artifact, p.pipeline.Submit)
}

// RetryUpload resends the recording after a failed FinalizeAndUpload.
// If the pipeline holds nothing (for example after a restart of the
// process) the cached copy is used.
func (p *Proctor) RetryUpload(ctx context.Context) (string, error) {
	if p.pipeline.Pending() != nil {
		return p.deliver(ctx, nil, func(ctx context.Context, _ *recording.Artifact) (string, error) {
			return p.pipeline.Retry(ctx)
		})
	}
	artifact, err := p.loadCached(ctx)
	if err != nil {
		return "", err
	}
	if artifact == nil {
		return "", upload.ErrNothingToRetry
	}
	return p.deliver(ctx, artifact, p.pipeline.Submit)
}

func (p *Proctor) resolveArtifact(ctx context.Context) (*recording.Artifact, error) {
	if p.capture.Active() {
		artifact, err := p.capture.Finalize(ctx)
		if err == nil {
			return artifact, nil
		}
		if !errors.Is(err, capture.ErrNoRecording) {
			return nil, err
		}
	}
	if artifact := p.capture.Artifact(); artifact != nil {
		return artifact, nil
	}
	if artifact := p.pipeline.Pending(); artifact != nil {
		return artifact, nil
	}
	return p.loadCached(ctx)
}

func (p *Proctor) loadCached(ctx context.Context) (*recording.Artifact, error) {
	if p.cache == nil {
		return nil, nil
	}
	artifact, err := p.cache.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading cached recording: %w", err)
	}
	if artifact != nil {
		p.logger.Info("recovered recording from cache", "recording", artifact.Digest.ShortDigest())
	}
	return artifact, nil
}

type submitFunc func(ctx context.Context, artifact *recording.Artifact) (string, error)

func (p *Proctor) deliver(ctx context.Context, artifact *recording.Artifact, submit submitFunc) (string, error) {
	url, err := submit(ctx, artifact)
	if err != nil {
		kind := Classify(err)
		p.logger.Warn("recording upload failed", "failure", kind, "error", err)
		notification := notify.Notification{Title: "Upload failed", Level: notify.LevelWarning}
		switch kind {
		case FailureCaptureTooSmall:
			notification.Description = "The recording is empty. Start the recording again."
		default:
			notification.Description = "Your recording is saved on this device. Check your connection and retry."
		}
		p.notifier.Notify(notification)
		return "", err
	}

	p.DeactivateMonitoring()
	p.machine.Reset()
	p.capture.Reset(ctx)
	p.notifier.Notify(notify.Notification{
		Title:       "Recording submitted",
		Description: "Your recording was delivered for review.",
		Level:       notify.LevelInfo,
	})
	return url, nil
}
