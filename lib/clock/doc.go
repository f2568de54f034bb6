// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time source used by every
// timed behavior in proctor: the violation grace period, the debounce
// window, the devtools poll, the capture duration cap, upload attempt
// timeouts, and retry backoff.
//
// Production code holds a Clock field and never calls time.Now,
// time.After, time.AfterFunc, or time.NewTicker directly:
//
//	machine := violation.NewMachine(violation.Config{Clock: clock.Real()})
//
// Tests inject a FakeClock and drive it explicitly:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	machine := violation.NewMachine(violation.Config{Clock: fake})
//	machine.Activate()
//	fake.Advance(5 * time.Second) // grace period elapses, synchronously
//
// # FakeClock synchronization
//
// AfterFunc callbacks run synchronously inside Advance, so state
// transitions driven by timers are complete when Advance returns. When
// a goroutine blocks on After or a Ticker, use WaitForTimers to wait
// until it has registered before advancing.
package clock
