// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
)

// ReadHexKey reads a hex-encoded key of exactly size bytes from path.
// Surrounding whitespace is ignored. Every intermediate copy is
// zeroed before returning.
func ReadHexKey(path string, size int) (*Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("secret: reading %s: %w", path, err)
	}
	defer Zero(data)

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("secret: %s is empty", path)
	}

	decoded := make([]byte, hex.DecodedLen(len(trimmed)))
	written, err := hex.Decode(decoded, trimmed)
	if err != nil {
		Zero(decoded)
		return nil, fmt.Errorf("secret: %s is not hex: %w", path, err)
	}
	if written != size {
		Zero(decoded)
		return nil, fmt.Errorf("secret: %s holds %d bytes, want %d", path, written, size)
	}
	return NewFromBytes(decoded[:written])
}
