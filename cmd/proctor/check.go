// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/proctor/lib/cli"
	"github.com/bureau-foundation/proctor/lib/clock"
	"github.com/bureau-foundation/proctor/lib/hwinfo"
	"github.com/bureau-foundation/proctor/lib/notify"
	"github.com/bureau-foundation/proctor/lib/screenprobe"
	"github.com/bureau-foundation/proctor/lib/violation"
)

func checkCommand(stdout, stderr io.Writer) *cli.Command {
	var (
		sysRoot  string
		logLevel string
	)
	return &cli.Command{
		Name:    "check",
		Summary: "Run the host environment checks",
		Description: `Run the environment checks on this Linux host: connected displays
(from DRM connectors), the graphics driver, and the DMI board identity.

Multiple displays are a warning; a virtual graphics adapter or virtual
machine is an informational notice for the reviewer. A check that
cannot read its sysfs files reports nothing.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("check", pflag.ContinueOnError)
			flagSet.StringVar(&sysRoot, "sysfs", hwinfo.DefaultSysRoot, "sysfs root")
			flagSet.StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			logger, err := cli.NewLogger(stderr, logLevel, "auto")
			if err != nil {
				return err
			}
			terminal := notify.NewTerminal(notify.TerminalConfig{Writer: stdout})
			checkHost(ctx, sysRoot, terminal, logger)
			return nil
		},
	}
}

func checkHost(ctx context.Context, sysRoot string, notifier notify.Notifier, logger *slog.Logger) {
	probe := &screenprobe.Probe{
		Source: hwinfo.Displays{SysRoot: sysRoot},
		Clock:  clock.Real(),
		Logger: logger,
	}
	if layout, ok := probe.Check(ctx); ok {
		notification := notify.Notification{
			Title:       "Displays",
			Description: fmt.Sprintf("%d connected.", layout.Count),
			Level:       notify.LevelInfo,
		}
		if layout.Multiple() {
			notification.Title = screenprobe.Reason
			notification.Description = fmt.Sprintf("%d connected. Disconnect all but one before the assessment.", layout.Count)
			notification.Level = notify.LevelWarning
		}
		notifier.Notify(notification)
	}

	probes := []struct {
		name  string
		probe violation.Probe
	}{
		{"graphics", hwinfo.RendererProbe(sysRoot)},
		{"hypervisor", hwinfo.HypervisorProbe(sysRoot)},
	}
	for _, entry := range probes {
		if notice, ok := violation.RunProbe(ctx, entry.name, entry.probe, logger); ok {
			notifier.Notify(notify.Notification{
				Title:       "Environment check",
				Description: notice,
				Level:       notify.LevelInfo,
			})
		}
	}
}
