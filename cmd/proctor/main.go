// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Proctor is the operator tool for the proctoring core: it uploads
// recordings through the delivery pipeline, replays signal scripts
// against the violation machine, and inspects the local recording
// cache.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/proctor/lib/cli"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCommand(stdout, stderr).Execute(ctx, args)
	code, report := cli.ExitCode(err)
	if report {
		fmt.Fprintf(stderr, "error: %v\n", err)
	}
	return code
}
