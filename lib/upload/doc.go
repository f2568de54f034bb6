// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package upload delivers finalized recordings to remote object
// storage.
//
// A [Pipeline] owns at most one transfer at a time. Each transfer is
// a bounded series of attempts against a [Transport], with a
// per-attempt timeout and doubling backoff between attempts, all
// driven by an injected clock so tests run without waiting. Errors
// the storage service reports as permanent (4xx other than 408 and
// 429) end the series early.
//
// On success the pipeline records the returned URL against the
// artifact digest and clears the local recording cache. On failure the
// artifact stays in the pipeline (and in the cache) so [Pipeline.Retry]
// can resume without the caller holding onto the bytes.
//
// [HTTPTransport] is the production transport: a multipart POST of the
// recording under a named preset, optionally sealed to reviewer age
// recipients first.
package upload
