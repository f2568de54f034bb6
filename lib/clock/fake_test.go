// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClockNow(t *testing.T) {
	clock := Fake(epoch)
	if got := clock.Now(); !got.Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", got, epoch)
	}
	clock.Advance(5 * time.Second)
	if got := Since(clock, epoch); got != 5*time.Second {
		t.Fatalf("Since(epoch) = %v, want 5s", got)
	}
}

func TestFakeClockAfterFiresAtDeadline(t *testing.T) {
	clock := Fake(epoch)
	channel := clock.After(5 * time.Second)

	clock.Advance(3 * time.Second)
	select {
	case <-channel:
		t.Fatal("After fired before deadline")
	default:
	}

	clock.Advance(2 * time.Second)
	select {
	case <-channel:
	default:
		t.Fatal("After did not fire at deadline")
	}
}

func TestFakeClockAfterZeroDuration(t *testing.T) {
	clock := Fake(epoch)
	select {
	case <-clock.After(0):
	default:
		t.Fatal("After(0) should fire immediately")
	}
}

func TestFakeClockAfterFuncOrderAndNow(t *testing.T) {
	clock := Fake(epoch)
	var fired []time.Duration

	clock.AfterFunc(2*time.Second, func() { fired = append(fired, Since(clock, epoch)) })
	clock.AfterFunc(1*time.Second, func() { fired = append(fired, Since(clock, epoch)) })

	clock.Advance(10 * time.Second)

	if len(fired) != 2 || fired[0] != time.Second || fired[1] != 2*time.Second {
		t.Fatalf("fired = %v, want [1s 2s]", fired)
	}
	if got := Since(clock, epoch); got != 10*time.Second {
		t.Fatalf("clock after Advance = %v, want 10s", got)
	}
}

func TestFakeClockAfterFuncChained(t *testing.T) {
	clock := Fake(epoch)
	count := 0
	var schedule func()
	schedule = func() {
		clock.AfterFunc(time.Second, func() {
			count++
			schedule()
		})
	}
	schedule()

	clock.Advance(3 * time.Second)
	if count != 3 {
		t.Fatalf("chained callbacks fired %d times, want 3", count)
	}
}

func TestFakeClockTimerStop(t *testing.T) {
	clock := Fake(epoch)
	fired := false
	timer := clock.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Fatal("Stop on pending timer returned false")
	}
	if timer.Stop() {
		t.Fatal("second Stop returned true")
	}
	clock.Advance(time.Minute)
	if fired {
		t.Fatal("stopped timer fired")
	}
	if clock.PendingCount() != 0 {
		t.Fatalf("PendingCount = %d, want 0", clock.PendingCount())
	}
}

func TestFakeClockTicker(t *testing.T) {
	clock := Fake(epoch)
	ticker := clock.NewTicker(time.Second)
	defer ticker.Stop()

	clock.Advance(time.Second)
	select {
	case <-ticker.C:
	default:
		t.Fatal("ticker did not fire after one interval")
	}

	// Three intervals in one advance: buffer of one, extra ticks dropped.
	clock.Advance(3 * time.Second)
	select {
	case <-ticker.C:
	default:
		t.Fatal("ticker did not fire after three intervals")
	}
	select {
	case <-ticker.C:
		t.Fatal("ticker buffered more than one tick")
	default:
	}
}

func TestFakeClockWaitForTimers(t *testing.T) {
	clock := Fake(epoch)
	done := make(chan struct{})
	go func() {
		<-clock.After(time.Second)
		close(done)
	}()

	clock.WaitForTimers(1)
	clock.Advance(time.Second)
	<-done
}
