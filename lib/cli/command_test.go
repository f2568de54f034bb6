// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func testTree(called *string, file *string) *Command {
	return &Command{
		Name:   "proctor",
		Output: &bytes.Buffer{},
		Subcommands: []*Command{
			{
				Name:    "upload",
				Summary: "Upload a recording",
				Flags: func() *pflag.FlagSet {
					flagSet := pflag.NewFlagSet("upload", pflag.ContinueOnError)
					flagSet.StringVar(file, "file", "", "recording file")
					flagSet.String("mime", "video/webm", "MIME hint")
					return flagSet
				},
				Run: func(_ context.Context, args []string) error {
					*called = "upload"
					return nil
				},
			},
			{
				Name:    "cache",
				Summary: "Inspect the local cache",
				Subcommands: []*Command{
					{
						Name: "show",
						Run: func(_ context.Context, args []string) error {
							*called = "cache show " + strings.Join(args, ",")
							return nil
						},
					},
				},
			},
		},
	}
}

func TestExecuteDispatchesNestedSubcommand(t *testing.T) {
	var called, file string
	root := testTree(&called, &file)

	if err := root.Execute(context.Background(), []string{"cache", "show", "recording/current"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if called != "cache show recording/current" {
		t.Errorf("called = %q", called)
	}
}

func TestExecuteParsesFlags(t *testing.T) {
	var called, file string
	root := testTree(&called, &file)

	if err := root.Execute(context.Background(), []string{"upload", "--file", "/tmp/r.webm"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if called != "upload" || file != "/tmp/r.webm" {
		t.Errorf("called = %q, file = %q", called, file)
	}
}

func TestExecuteSuggestsCommand(t *testing.T) {
	var called, file string
	root := testTree(&called, &file)

	err := root.Execute(context.Background(), []string{"uplod"})
	if err == nil || !strings.Contains(err.Error(), `did you mean "upload"`) {
		t.Fatalf("Execute(uplod) = %v", err)
	}
}

func TestExecuteSuggestsFlag(t *testing.T) {
	var called, file string
	root := testTree(&called, &file)

	err := root.Execute(context.Background(), []string{"upload", "--fiel", "x"})
	if err == nil || !strings.Contains(err.Error(), "did you mean --file?") {
		t.Fatalf("Execute(--fiel) = %v", err)
	}
	if called != "" {
		t.Error("Run called despite parse error")
	}
}

func TestExecuteGroupWithoutSubcommand(t *testing.T) {
	var called, file string
	root := testTree(&called, &file)

	err := root.Execute(context.Background(), []string{"cache"})
	if err == nil || !strings.Contains(err.Error(), "subcommand required") {
		t.Fatalf("Execute(cache) = %v", err)
	}
	help := root.Output.(*bytes.Buffer).String()
	if !strings.Contains(help, "proctor cache <command>") {
		t.Errorf("help output missing usage line:\n%s", help)
	}
}

func TestPrintHelp(t *testing.T) {
	var called, file string
	root := testTree(&called, &file)

	var out bytes.Buffer
	root.Subcommands[0].parent = root
	root.Subcommands[0].Examples = []Example{{Description: "Upload a saved recording", Command: "proctor upload --file r.webm"}}
	root.Subcommands[0].PrintHelp(&out)

	help := out.String()
	for _, want := range []string{"Upload a recording", "proctor upload [flags]", "--file", "--mime", "# Upload a saved recording"} {
		if !strings.Contains(help, want) {
			t.Errorf("help missing %q:\n%s", want, help)
		}
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err       error
		wantCode  int
		wantPrint bool
	}{
		{nil, 0, false},
		{&ExitError{Code: 2}, 2, false},
		{fmt.Errorf("replay: %w", &ExitError{Code: 2}), 2, false},
		{errors.New("boom"), 1, true},
	}
	for _, test := range tests {
		code, shouldPrint := ExitCode(test.err)
		if code != test.wantCode || shouldPrint != test.wantPrint {
			t.Errorf("ExitCode(%v) = (%d, %v), want (%d, %v)", test.err, code, shouldPrint, test.wantCode, test.wantPrint)
		}
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "abc", 3},
		{"cache", "cache", 0},
		{"cahce", "cache", 2},
		{"replay", "repaly", 2},
		{"version", "verison", 2},
		{"upload", "uplod", 1},
	}
	for _, test := range tests {
		if got := levenshtein(test.a, test.b); got != test.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", test.a, test.b, got, test.want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	var out bytes.Buffer
	logger, err := NewLogger(&out, "warn", "auto")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "recording", "rec-0123456789ab")
	if strings.Contains(out.String(), "hidden") {
		t.Error("info record passed a warn-level logger")
	}
	// A buffer is not a terminal, so auto selects JSON.
	if !strings.HasPrefix(out.String(), "{") {
		t.Errorf("expected JSON output, got %q", out.String())
	}

	if _, err := NewLogger(&out, "loud", "text"); err == nil {
		t.Error("bad level accepted")
	}
	if _, err := NewLogger(&out, "info", "xml"); err == nil {
		t.Error("bad format accepted")
	}
}
