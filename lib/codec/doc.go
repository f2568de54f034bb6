// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is proctor's binary encoding: CBOR (RFC 8949) with
// Core Deterministic Encoding, via fxamacker/cbor. It encodes the
// durable cache entry headers and session snapshots. Struct types use
// json tags; fxamacker/cbor falls back to them, so the same types
// serialize with both encoders.
package codec
