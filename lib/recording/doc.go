// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package recording defines the captured evidence artifact and the
// segment buffer it is materialized from.
//
// An [Artifact] is immutable once built: the binary, its size, a MIME
// hint for the storage endpoint, and a BLAKE3 digest. The digest is
// computed in a keyed, domain-separated mode so recording digests never
// collide with other BLAKE3 values proctor computes (cache integrity
// tags, sealing key bindings). [ShortDigest] renders the "rec-" form
// used in logs and notifications.
//
// A [Buffer] accumulates the segments a recording primitive flushes
// every timeslice. Materializing the buffer concatenates segments in
// arrival order; container formats produced by the recording
// primitive (WebM clusters) are designed to be appended this way.
package recording
