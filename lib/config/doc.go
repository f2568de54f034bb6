// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for proctor.
//
// Configuration is loaded from a single file specified by either the
// PROCTOR_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no discovery and no search path; the file
// an operator names is the file that is read.
//
// The file may carry development, staging and production sections
// that override base values when [Config].Environment matches.
// Production without an explicit section keeps recordings sealed and
// the camera mandatory.
//
// After loading, ${HOME}, ${PROCTOR_ROOT} and ${VAR:-default} patterns
// are expanded in path and endpoint fields. Durations are written as
// Go duration strings ("5s", "2m").
//
// This package depends on no other proctor packages.
package config
