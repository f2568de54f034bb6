// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package localcache is the durable on-disk safety net for captured
// evidence.
//
// [Store] is a keyed byte store in a single SQLite database. Each
// entry row holds a CBOR header and a payload. The header records the
// compression algorithm (none, LZ4, or zstd, chosen per entry), the
// uncompressed size, a keyed BLAKE3 digest of the plaintext checked on
// every read, and whether the payload is sealed. With a cache key
// configured, payloads are sealed with XChaCha20-Poly1305 under a
// subkey derived per entry key.
//
// [RecordingCache] layers the recording lifecycle on top: periodic
// segment checkpoints while capture runs, one "current" artifact
// written at rotation or halt, reassembly on load, and a clear once
// the upload is confirmed.
package localcache
