// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/bureau-foundation/proctor/lib/cli"
)

// walkCommands visits every command in the tree with its path.
func walkCommands(command *cli.Command, path []string, visit func(*cli.Command, []string)) {
	current := append(append([]string(nil), path...), command.Name)
	visit(command, current)
	for _, sub := range command.Subcommands {
		walkCommands(sub, current, visit)
	}
}

func TestCommandTreeSummaries(t *testing.T) {
	root := rootCommand(io.Discard, io.Discard)
	walkCommands(root, nil, func(command *cli.Command, path []string) {
		if len(path) > 1 && command.Summary == "" {
			t.Errorf("%s: missing Summary", strings.Join(path, " "))
		}
		if command.Run == nil && len(command.Subcommands) == 0 {
			t.Errorf("%s: neither Run nor Subcommands", strings.Join(path, " "))
		}
	})
}

func TestRunUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"uplod"}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), `did you mean "upload"`) {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestRunHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"--help"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	for _, name := range []string{"upload", "replay", "cache", "check", "version"} {
		if !strings.Contains(stderr.String(), name) {
			t.Errorf("help does not list %q:\n%s", name, stderr.String())
		}
	}
}

func TestVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"version"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr.String())
	}
	if !strings.HasPrefix(stdout.String(), "proctor ") {
		t.Fatalf("stdout = %q", stdout.String())
	}
}
