// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package capture drives the screen and microphone recording of an
// assessment attempt.
//
// [Manager] acquires the devices (camera when configured, microphone,
// then screen), composes the screen video, microphone audio, and any
// system-audio track into one recording, and starts the host
// [Recorder] with a periodic flush. Every flushed segment is
// checkpointed to a [Mirror] so that a crash loses at most one flush
// interval.
//
// After the maximum duration the recorder is stopped and its output
// materialized without releasing devices and without changing the
// externally visible recording indicator: a silent rotation. Loss of
// the screen or microphone halts capture and fires the caller's hard
// stop callback once.
//
// Rotation, halt, and finalize are serialized by one operation lock,
// so a rotation in progress always completes its cache write before
// Finalize can materialize anything.
package capture
