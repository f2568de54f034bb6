// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package violation detects assessment policy violations and escalates
// them along a warning-to-termination ladder.
//
// The [Machine] moves through Inactive, GracePeriod, Monitoring, and
// Terminated. Reports are discarded outside Monitoring. Soft reports
// are debounced by a [Coalescer] and counted on the injected
// session; reaching the configured maximum terminates. Hard reports
// terminate immediately regardless of count.
//
// Signal sources feed the machine through [Detector] (host window and
// keyboard signals), [DevtoolsWatch] (window-metric polling), device
// stream subscriptions ([Machine.WatchDevice]), and environment
// probes ([RunProbe]). None of them propagate failures: a probe that
// errors or panics yields no signal.
//
// Every timer and poll runs on an injected clock.Clock.
package violation
