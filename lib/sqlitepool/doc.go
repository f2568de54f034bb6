// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool wraps zombiezen.com/go/sqlite/sqlitex.Pool with
// the pragmas and schema bootstrap proctor's durable cache needs. The
// cache is single-writer and latency-insensitive, so the pool favors
// durability (synchronous=FULL) over throughput.
package sqlitepool
