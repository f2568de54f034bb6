// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/proctor/lib/cli"
	"github.com/bureau-foundation/proctor/lib/clock"
	"github.com/bureau-foundation/proctor/lib/localcache"
	"github.com/bureau-foundation/proctor/lib/recording"
	"github.com/bureau-foundation/proctor/lib/sealed"
	"github.com/bureau-foundation/proctor/lib/upload"
)

func uploadCommand(stdout, stderr io.Writer) *cli.Command {
	var configPath, filePath, mimeHint string
	return &cli.Command{
		Name:    "upload",
		Summary: "Upload a recording to review storage",
		Description: `Upload a recording file through the delivery pipeline.

The recording is first stored in the local cache, so an upload that
fails after every retry can be resumed with 'proctor upload' and no
--file (the cached copy is sent). The cache is cleared once storage
confirms receipt. When upload.recipients is configured the recording
is sealed to the reviewer keys before it leaves the machine.`,
		Usage: "proctor upload [--file PATH] [--mime TYPE] [--config PATH]",
		Examples: []cli.Example{
			{Description: "Upload a recording", Command: "proctor upload --file attempt.webm"},
			{Description: "Resend the cached recording", Command: "proctor upload"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("upload", pflag.ContinueOnError)
			configFlag(flagSet, &configPath)
			flagSet.StringVarP(&filePath, "file", "f", "", "recording file to upload")
			flagSet.StringVar(&mimeHint, "mime", "", "container type (default: capture.mime_hint)")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			logger, err := commandLogger(stderr, cfg)
			if err != nil {
				return err
			}
			if cfg.Upload.Endpoint == "" {
				return fmt.Errorf("upload.endpoint is not configured")
			}
			if mimeHint == "" {
				mimeHint = cfg.Capture.MimeHint
			}

			store, err := openCache(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()
			cache := localcache.NewRecordingCache(store)

			transport := &upload.HTTPTransport{
				Endpoint: cfg.Upload.Endpoint,
				Preset:   cfg.Upload.Preset,
				Logger:   logger,
			}
			if len(cfg.Upload.Recipients) > 0 {
				transport.Recipients, err = sealed.ParseRecipients(cfg.Upload.Recipients)
				if err != nil {
					return fmt.Errorf("upload.recipients: %w", err)
				}
			}

			pipeline := upload.NewPipeline(upload.Config{
				Transport:      transport,
				Cache:          cache,
				Clock:          clock.Real(),
				Logger:         logger,
				MinSizeBytes:   cfg.Upload.MinSizeBytes,
				MaxAttempts:    cfg.Upload.MaxAttempts,
				AttemptTimeout: cfg.Upload.AttemptTimeout.Std(),
				InitialBackoff: cfg.Upload.InitialBackoff.Std(),
				WaitBound:      cfg.Upload.WaitBound.Std(),
			})
			remove := pipeline.OnProgress(progressLogger(logger))
			defer remove()

			artifact, err := resolveUploadArtifact(ctx, cache, pipeline, filePath, mimeHint)
			if err != nil {
				return err
			}

			url, err := pipeline.Submit(ctx, artifact)
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, url)
			return nil
		},
	}
}

// resolveUploadArtifact reads path into the cache, or loads the cached
// recording when path is empty. A file the pipeline would refuse is
// rejected before it can replace a cached recording.
func resolveUploadArtifact(ctx context.Context, cache *localcache.RecordingCache, pipeline *upload.Pipeline, path, mimeHint string) (*recording.Artifact, error) {
	if path == "" {
		artifact, err := cache.Load(ctx)
		if err != nil {
			return nil, err
		}
		if artifact == nil {
			return nil, errors.New("no --file given and the cache holds no recording")
		}
		return artifact, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	artifact := recording.New(data, mimeHint, info.ModTime())
	if err := pipeline.Admit(artifact); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := cache.Store(ctx, artifact); err != nil {
		return nil, fmt.Errorf("caching recording: %w", err)
	}
	return artifact, nil
}

// progressLogger logs each quarter of upload progress.
func progressLogger(logger *slog.Logger) func(percent int) {
	next := 0
	return func(percent int) {
		if percent == 0 {
			next = 25
			return
		}
		if percent >= next {
			logger.Info("upload progress", "percent", percent)
			for next <= percent {
				next += 25
			}
		}
	}
}
