// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package device owns the camera, microphone, and screen-capture
// streams of an assessment attempt.
//
// [Manager] is the only holder of the stop capability. It grants at
// most one stream per [Kind]: acquiring a kind that is already held
// returns the existing handle without a second permission prompt, and
// concurrent acquires of the same kind share one prompt. Release is
// all-or-nothing per kind.
//
// Everyone else sees a [Stream]: read-only [TrackRef] values plus a
// publish/subscribe surface for the ended, muted, and unmuted track
// events. Multiple listeners coexist (the violation machine watches
// the camera while the capture manager watches the screen and
// microphone), and each subscription is removed independently.
//
// Events a track emits after its stream was released are dropped, so
// stopping our own tracks never looks like a device loss.
//
// The host platform plugs in through [Source] and [PlatformTrack].
// [MemorySource] is an in-process implementation for tests and
// replays.
package device
