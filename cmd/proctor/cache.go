// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/proctor/lib/cli"
	"github.com/bureau-foundation/proctor/lib/codec"
	"github.com/bureau-foundation/proctor/lib/localcache"
)

func cacheCommand(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "cache",
		Summary: "Inspect or clear the local recording cache",
		Description: `Inspect or clear the local recording cache.

The cache holds at most one recording awaiting upload, either as the
finalized artifact or as the segments checkpointed while recording.`,
		Subcommands: []*cli.Command{
			cacheShowCommand(stdout, stderr),
			cacheClearCommand(stdout, stderr),
		},
	}
}

func cacheShowCommand(stdout, stderr io.Writer) *cli.Command {
	var (
		configPath string
		headers    bool
	)
	return &cli.Command{
		Name:    "show",
		Summary: "List cached entries",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("show", pflag.ContinueOnError)
			configFlag(flagSet, &configPath)
			flagSet.BoolVar(&headers, "headers", false, "print each entry's CBOR header in diagnostic notation")
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
			store, err := openCache(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()
			return showCache(ctx, store, stdout, headers)
		},
	}
}

func showCache(ctx context.Context, store *localcache.Store, out io.Writer, headers bool) error {
	entries, err := store.List(ctx, "")
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "cache is empty")
		return nil
	}

	table := tabwriter.NewWriter(out, 2, 0, 3, ' ', 0)
	fmt.Fprintf(table, "KEY\tSIZE\tSTORED\tCOMPRESSION\tSEALED\tWRITTEN\n")
	for _, entry := range entries {
		fmt.Fprintf(table, "%s\t%d\t%d\t%s\t%t\t%s\n",
			entry.Key, entry.Size, entry.StoredSize, entry.Compression, entry.Sealed,
			entry.WrittenAt.UTC().Format(time.RFC3339))
	}
	if err := table.Flush(); err != nil {
		return err
	}

	if !headers {
		return nil
	}
	for _, entry := range entries {
		raw, err := store.RawHeader(ctx, entry.Key)
		if err != nil {
			return err
		}
		diagnostic, err := codec.Diagnose(raw)
		if err != nil {
			return fmt.Errorf("header of %s: %w", entry.Key, err)
		}
		fmt.Fprintf(out, "\n%s:\n  %s\n", entry.Key, diagnostic)
	}
	return nil
}

func cacheClearCommand(stdout, stderr io.Writer) *cli.Command {
	var configPath string
	return &cli.Command{
		Name:    "clear",
		Summary: "Delete the cached recording",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("clear", pflag.ContinueOnError)
			configFlag(flagSet, &configPath)
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
			store, err := openCache(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := localcache.NewRecordingCache(store).Clear(ctx); err != nil {
				return err
			}
			fmt.Fprintln(stdout, "cache cleared")
			return nil
		},
	}
}
