// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package recording

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/zeebo/blake3"
)

// Digest is a 32-byte keyed BLAKE3 digest of an artifact's bytes.
type Digest [32]byte

// digestKey is the BLAKE3 key for recording digests: the ASCII domain
// name zero-padded to 32 bytes. Changing it changes every digest.
var digestKey = [32]byte{
	'p', 'r', 'o', 'c', 't', 'o', 'r', '.', 'r', 'e', 'c', 'o', 'r', 'd', 'i', 'n',
	'g', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// HashBytes computes the recording-domain digest of data.
func HashBytes(data []byte) Digest {
	hasher, err := blake3.NewKeyed(digestKey[:])
	if err != nil {
		panic("recording: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest
}

// String returns the full hex digest.
func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// IsZero reports whether d is the zero digest.
func (d Digest) IsZero() bool { return d == Digest{} }

// ShortDigest returns "rec-" plus the first 12 hex characters.
func (d Digest) ShortDigest() string { return "rec-" + hex.EncodeToString(d[:6]) }

// ParseDigest parses a 64-character hex digest.
func ParseDigest(value string) (Digest, error) {
	var digest Digest
	decoded, err := hex.DecodeString(value)
	if err != nil {
		return digest, fmt.Errorf("parsing recording digest: %w", err)
	}
	if len(decoded) != len(digest) {
		return digest, fmt.Errorf("recording digest is %d bytes, want %d", len(decoded), len(digest))
	}
	copy(digest[:], decoded)
	return digest, nil
}

// Artifact is a finalized recording ready for transfer. Data must not
// be modified after construction.
type Artifact struct {
	Data       []byte
	SizeBytes  int64
	MimeHint   string
	Digest     Digest
	CapturedAt time.Time
}

// New builds an artifact over data. data is retained, not copied.
func New(data []byte, mimeHint string, capturedAt time.Time) *Artifact {
	return &Artifact{
		Data:       data,
		SizeBytes:  int64(len(data)),
		MimeHint:   mimeHint,
		Digest:     HashBytes(data),
		CapturedAt: capturedAt,
	}
}

// Verify checks that Data still matches SizeBytes and Digest. The
// durable cache calls it on every artifact it reads back.
func (a *Artifact) Verify() error {
	if int64(len(a.Data)) != a.SizeBytes {
		return fmt.Errorf("recording %s: size %d does not match recorded %d",
			a.Digest.ShortDigest(), len(a.Data), a.SizeBytes)
	}
	if HashBytes(a.Data) != a.Digest {
		return fmt.Errorf("recording %s: digest mismatch", a.Digest.ShortDigest())
	}
	return nil
}

// FileName returns the name the artifact is uploaded under.
func (a *Artifact) FileName() string {
	return a.Digest.ShortDigest() + extensionFor(a.MimeHint)
}

func extensionFor(mimeHint string) string {
	switch {
	case strings.HasPrefix(mimeHint, "video/webm"), strings.HasPrefix(mimeHint, "audio/webm"):
		return ".webm"
	case strings.HasPrefix(mimeHint, "video/mp4"):
		return ".mp4"
	default:
		return ".bin"
	}
}
