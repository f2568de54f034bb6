// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/proctor/lib/cli"
	"github.com/bureau-foundation/proctor/lib/clock"
	"github.com/bureau-foundation/proctor/lib/notify"
	"github.com/bureau-foundation/proctor/lib/proctor"
	"github.com/bureau-foundation/proctor/lib/session"
	"github.com/bureau-foundation/proctor/lib/violation"
)

// replayExitTerminated is the exit status of a replay that ended in
// termination.
const replayExitTerminated = 2

// replayScript is the JSONC replay file. Durations are Go duration
// strings; event times are offsets from activation.
type replayScript struct {
	GracePeriod    string        `json:"grace_period"`
	DebounceWindow string        `json:"debounce_window"`
	MaxViolations  int           `json:"max_violations"`
	Events         []replayEvent `json:"events"`
}

// replayEvent is either a host signal or a direct violation report.
type replayEvent struct {
	At string `json:"at"`

	Signal      string          `json:"signal,omitempty"`
	Chord       violation.Chord `json:"chord,omitempty"`
	InsideInput bool            `json:"inside_input,omitempty"`

	Violation string `json:"violation,omitempty"`
	Hard      bool   `json:"hard,omitempty"`
}

func replayCommand(stdout, stderr io.Writer) *cli.Command {
	var (
		scriptPath string
		color      bool
		width      int
		logLevel   string
	)
	return &cli.Command{
		Name:    "replay",
		Summary: "Replay a signal script against the violation machine",
		Description: `Replay a JSONC script of host signals and violation reports against
the violation machine on a simulated clock, rendering each warning and
the termination takeover as the candidate would see them.

Exits 2 when the script ends the session.`,
		Usage: "proctor replay --script PATH [flags]",
		Examples: []cli.Example{
			{
				Description: "Check that three tab switches end the session",
				Command:     "proctor replay --script testdata/tab-switching.jsonc",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("replay", pflag.ContinueOnError)
			flagSet.StringVarP(&scriptPath, "script", "s", "", "replay script (JSONC)")
			flagSet.BoolVar(&color, "color", false, "render notifications in color")
			flagSet.IntVar(&width, "width", 80, "terminal width for the termination takeover")
			flagSet.StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
			return flagSet
		},
		Run: func(_ context.Context, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			if scriptPath == "" {
				return fmt.Errorf("--script is required")
			}
			logger, err := cli.NewLogger(stderr, logLevel, "auto")
			if err != nil {
				return err
			}
			script, err := readReplayScript(scriptPath)
			if err != nil {
				return err
			}
			terminal := notify.NewTerminal(notify.TerminalConfig{Writer: stdout, Width: width, Color: color})
			terminated, err := replay(script, terminal, stdout, logger)
			if err != nil {
				return err
			}
			if terminated {
				return &cli.ExitError{Code: replayExitTerminated}
			}
			return nil
		},
	}
}

func readReplayScript(path string) (*replayScript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var script replayScript
	if err := json.Unmarshal(jsonc.ToJSON(data), &script); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &script, nil
}

func parseOptionalDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if duration < 0 {
		return 0, fmt.Errorf("%s: negative duration %s", field, value)
	}
	return duration, nil
}

// replay runs script on a fake clock and reports whether the session
// was terminated. Events must be in time order.
func replay(script *replayScript, notifier notify.Notifier, out io.Writer, logger *slog.Logger) (terminated bool, err error) {
	grace, err := parseOptionalDuration("grace_period", script.GracePeriod)
	if err != nil {
		return false, err
	}
	debounce, err := parseOptionalDuration("debounce_window", script.DebounceWindow)
	if err != nil {
		return false, err
	}

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fake := clock.Fake(start)
	candidate := session.New()
	machine := violation.NewMachine(violation.Config{
		Clock:          fake,
		Logger:         logger,
		Session:        candidate,
		GracePeriod:    grace,
		DebounceWindow: debounce,
		MaxViolations:  script.MaxViolations,
	})
	machine.OnWarning(func(warning violation.Warning) {
		notifier.Notify(proctor.WarningNotification(warning))
	})
	machine.OnTermination(func(termination violation.Termination) {
		notifier.Notify(proctor.TerminationNotification(termination))
	})
	detector := violation.NewDetector(machine, logger)

	candidate.Begin(fake.Now())
	machine.Activate()

	var elapsed time.Duration
	for index, event := range script.Events {
		at, err := parseOptionalDuration(fmt.Sprintf("events[%d].at", index), event.At)
		if err != nil {
			return false, err
		}
		if at < elapsed {
			return false, fmt.Errorf("events[%d]: at %s is before the previous event (%s)", index, at, elapsed)
		}
		fake.Advance(at - elapsed)
		elapsed = at

		switch {
		case event.Violation != "":
			counted := machine.Report(event.Violation, event.Hard)
			fmt.Fprintf(out, "%8s  report %q hard=%t: counted=%t\n", at, event.Violation, event.Hard, counted)
		case event.Signal != "":
			kind, err := violation.ParseSignalKind(event.Signal)
			if err != nil {
				return false, fmt.Errorf("events[%d]: %w", index, err)
			}
			decision := detector.Handle(violation.Signal{Kind: kind, Chord: event.Chord, InsideInput: event.InsideInput})
			fmt.Fprintf(out, "%8s  %s: %s\n", at, kind, describeDecision(decision))
		default:
			return false, fmt.Errorf("events[%d]: neither signal nor violation set", index)
		}
		if machine.State() == violation.Terminated {
			break
		}
	}

	// Let any open debounce window close.
	fake.Advance(max(debounce, violation.DefaultDebounceWindow))

	snapshot := candidate.Snapshot()
	fmt.Fprintf(out, "state %s, %d violation(s)\n", machine.State(), snapshot.ViolationCount)
	return snapshot.Terminated, nil
}

func describeDecision(decision violation.Decision) string {
	switch {
	case decision.Reason != "" && decision.PreventDefault:
		return fmt.Sprintf("reported %q (blocked)", decision.Reason)
	case decision.Reason != "":
		return fmt.Sprintf("reported %q", decision.Reason)
	case decision.PreventDefault:
		return "blocked"
	default:
		return "ignored"
	}
}
