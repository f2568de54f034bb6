// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package screenprobe

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bureau-foundation/proctor/lib/clock"
	"github.com/bureau-foundation/proctor/lib/testutil"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name     string
		source   DisplaySource
		ok       bool
		multiple bool
	}{
		{"single", StaticSource{Value: Layout{Count: 1}}, true, false},
		{"dual", StaticSource{Value: Layout{Count: 2}}, true, true},
		{"extended", StaticSource{Value: Layout{Extended: true}}, true, true},
		{"error", StaticSource{Err: errors.New("permission prompt dismissed")}, false, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			probe := &Probe{Source: test.source}
			layout, ok := probe.Check(context.Background())
			if ok != test.ok || layout.Multiple() != test.multiple {
				t.Fatalf("Check = %+v, %v", layout, ok)
			}
		})
	}
}

type panicSource struct{}

func (panicSource) Layout(context.Context) (Layout, error) { panic("host API missing") }

func TestCheckRecoversPanic(t *testing.T) {
	if _, ok := (&Probe{Source: panicSource{}}).Check(context.Background()); ok {
		t.Fatal("panicking source reported ok")
	}
}

type steppedSource struct {
	mu     sync.Mutex
	layout Layout
	polls  chan struct{}
}

func (s *steppedSource) Layout(context.Context) (Layout, error) {
	s.mu.Lock()
	layout := s.layout
	s.mu.Unlock()
	s.polls <- struct{}{}
	return layout, nil
}

func (s *steppedSource) set(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layout = Layout{Count: count}
}

func TestWatchReportsRisingEdge(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	source := &steppedSource{layout: Layout{Count: 1}, polls: make(chan struct{})}
	probe := &Probe{Source: source, Clock: fake}

	var mu sync.Mutex
	reports := 0
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- probe.Watch(ctx, 2*time.Second, func(Layout) bool {
			mu.Lock()
			reports++
			mu.Unlock()
			return true
		})
	}()
	fake.WaitForTimers(1)

	for _, count := range []int{1, 2, 2, 1, 3} {
		source.set(count)
		fake.Advance(2 * time.Second)
		testutil.RequireReceive(t, source.polls, 5*time.Second, "waiting for poll")
	}
	cancel()
	testutil.RequireReceive(t, done, 5*time.Second, "watch exit")

	mu.Lock()
	defer mu.Unlock()
	if reports != 2 {
		t.Fatalf("reports = %d, want 2", reports)
	}
}

func TestWatchOffersRefusedChangeAgain(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	source := &steppedSource{layout: Layout{Count: 2}, polls: make(chan struct{})}
	probe := &Probe{Source: source, Clock: fake}

	var accepting atomic.Bool
	offered := make(chan bool)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- probe.Watch(ctx, 2*time.Second, func(Layout) bool {
			accept := accepting.Load()
			offered <- accept
			return accept
		})
	}()
	fake.WaitForTimers(1)

	poll := func() {
		fake.Advance(2 * time.Second)
		testutil.RequireReceive(t, source.polls, 5*time.Second, "waiting for poll")
	}
	// Two displays from the start, refused while the caller is not
	// counting yet.
	for range 2 {
		poll()
		if testutil.RequireReceive(t, offered, 5*time.Second, "refused offer") {
			t.Fatal("offer accepted before accepting")
		}
	}
	accepting.Store(true)
	poll()
	if !testutil.RequireReceive(t, offered, 5*time.Second, "accepted offer") {
		t.Fatal("offer refused after accepting")
	}
	// Still two displays: no further offers.
	poll()
	poll()
	cancel()
	testutil.RequireReceive(t, done, 5*time.Second, "watch exit")
}
