// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build information for the proctor binary.
//
// [GitCommit], [GitDirty], [BuildTime] and [Version] are injected with
// -ldflags -X and default to "unknown" / "0.1.0-dev" in development
// builds and tests. [SelfDigest] identifies the exact binary running,
// which reviewers compare against release manifests when a recording's
// provenance is questioned.
package version
