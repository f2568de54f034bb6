// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command tree behind the proctor binary.
//
// A [Command] either runs or dispatches to a subcommand named by the
// first positional argument. Flags are pflag sets built lazily, so
// help output and typo suggestions ("did you mean --file?") work
// without running anything. Handlers that want a specific exit status
// without an extra error line return [ExitError].
package cli
