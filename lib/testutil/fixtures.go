// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"path/filepath"
	"testing"
)

// Payload returns size deterministic bytes derived from seed. Distinct
// seeds give distinct payloads, and the output compresses poorly
// enough to exercise the raw storage path.
func Payload(size int, seed byte) []byte {
	data := make([]byte, size)
	state := uint32(seed)*2654435761 + 1
	for i := range data {
		state ^= state << 13
		state ^= state >> 17
		state ^= state << 5
		data[i] = byte(state)
	}
	return data
}

// DatabasePath returns a path for a SQLite database inside a
// directory removed at test end.
func DatabasePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "proctor.db")
}
