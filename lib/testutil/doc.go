// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for proctor packages.
//
// [RequireReceive], [RequireClosed], and [RequireNoReceive] wrap the
// timeout safety valve (select with a wall-clock fallback) so that
// individual tests never call time.After directly. Everything else in
// the suite runs on a fake clock.
//
// [Payload] produces deterministic recording bytes and [DatabasePath]
// a throwaway SQLite cache file.
//
// All helpers call t.Fatalf on failure.
package testutil
