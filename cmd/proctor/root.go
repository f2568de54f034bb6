// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/proctor/lib/cli"
	"github.com/bureau-foundation/proctor/lib/clock"
	"github.com/bureau-foundation/proctor/lib/config"
	"github.com/bureau-foundation/proctor/lib/localcache"
	"github.com/bureau-foundation/proctor/lib/secret"
	"github.com/bureau-foundation/proctor/lib/version"
)

func rootCommand(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name: "proctor",
		Description: `Proctor: browser assessment proctoring core.

Upload recordings to review storage, replay violation scripts,
inspect the local recording cache, and check the host environment.`,
		Output: stderr,
		Subcommands: []*cli.Command{
			uploadCommand(stdout, stderr),
			replayCommand(stdout, stderr),
			cacheCommand(stdout, stderr),
			checkCommand(stdout, stderr),
			versionCommand(stdout),
		},
	}
}

func versionCommand(stdout io.Writer) *cli.Command {
	var showDigest bool
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("version", pflag.ContinueOnError)
			flagSet.BoolVar(&showDigest, "digest", false, "also print the BLAKE3 digest of this binary")
			return flagSet
		},
		Run: func(_ context.Context, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			fmt.Fprintf(stdout, "proctor %s\n", version.Full())
			if showDigest {
				digest, path, err := version.SelfDigest()
				if err != nil {
					return err
				}
				fmt.Fprintf(stdout, "%s  %s\n", digest, path)
			}
			return nil
		},
	}
}

// configFlag registers --config on flagSet.
func configFlag(flagSet *pflag.FlagSet, path *string) {
	flagSet.StringVar(path, "config", "", "config file (default: $PROCTOR_CONFIG, else built-in defaults)")
}

// loadConfig reads path, or PROCTOR_CONFIG when path is empty. With
// neither, the built-in development defaults are used.
func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case path != "":
		cfg, err = config.LoadFile(path)
	case os.Getenv("PROCTOR_CONFIG") != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func commandLogger(stderr io.Writer, cfg *config.Config) (*slog.Logger, error) {
	return cli.NewLogger(stderr, cfg.Log.Level, cfg.Log.Format)
}

// openCache opens the configured cache store, sealed when a key file
// is configured.
func openCache(cfg *config.Config, logger *slog.Logger) (*localcache.Store, error) {
	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}
	var key *secret.Buffer
	if cfg.Cache.KeyFile != "" {
		var err error
		key, err = secret.ReadHexKey(cfg.Cache.KeyFile, localcache.KeySize)
		if err != nil {
			return nil, fmt.Errorf("reading cache key: %w", err)
		}
	}
	store, err := localcache.Open(localcache.Config{
		Path:   cfg.Cache.Path,
		Key:    key,
		Clock:  clock.Real(),
		Logger: logger,
	})
	if err != nil {
		if key != nil {
			key.Close()
		}
		return nil, err
	}
	return store, nil
}
