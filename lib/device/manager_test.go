// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/bureau-foundation/proctor/lib/testutil"
)

func newTestManager(t *testing.T) (*Manager, *MemorySource) {
	t.Helper()
	source := NewMemorySource()
	return NewManager(ManagerConfig{Source: source}), source
}

func TestAcquireHeldIsNoOp(t *testing.T) {
	manager, source := newTestManager(t)
	ctx := context.Background()

	first, err := manager.Acquire(ctx, Camera)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	second, err := manager.Acquire(ctx, Camera)
	if err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if first != second {
		t.Fatal("second Acquire returned a different stream")
	}
	if got := source.Requests(Camera); got != 1 {
		t.Fatalf("camera requests = %d, want 1", got)
	}
}

func TestAcquireAfterReleaseRequestsAgain(t *testing.T) {
	manager, source := newTestManager(t)
	ctx := context.Background()

	if _, err := manager.Acquire(ctx, Microphone); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !manager.Release(Microphone) {
		t.Fatal("Release returned false for held stream")
	}
	if manager.Release(Microphone) {
		t.Fatal("second Release returned true")
	}
	if _, err := manager.Acquire(ctx, Microphone); err != nil {
		t.Fatalf("re-Acquire: %v", err)
	}
	if got := source.Requests(Microphone); got != 2 {
		t.Fatalf("microphone requests = %d, want 2", got)
	}
}

func TestAcquireErrors(t *testing.T) {
	tests := []struct {
		name    string
		failure error
		want    error
	}{
		{"denied", ErrPermissionDenied, ErrPermissionDenied},
		{"unavailable", ErrDeviceUnavailable, ErrDeviceUnavailable},
		{"arbitrary host error", errors.New("NotReadableError"), ErrDeviceUnavailable},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			manager, source := newTestManager(t)
			source.Fail(Screen, test.failure)

			stream, err := manager.Acquire(context.Background(), Screen)
			if stream != nil {
				t.Fatal("failed Acquire returned a stream")
			}
			if !errors.Is(err, test.want) {
				t.Fatalf("error = %v, want %v", err, test.want)
			}
			var acquireErr *AcquireError
			if !errors.As(err, &acquireErr) || acquireErr.Kind != Screen {
				t.Fatalf("error %v is not an *AcquireError for screen", err)
			}
			if manager.HeldCount() != 0 {
				t.Fatalf("HeldCount = %d after failure", manager.HeldCount())
			}
		})
	}
}

type panickingSource struct{}

func (panickingSource) Request(context.Context, Kind) ([]PlatformTrack, error) {
	panic("host exploded")
}

func TestAcquireRecoversSourcePanic(t *testing.T) {
	manager := NewManager(ManagerConfig{Source: panickingSource{}})
	_, err := manager.Acquire(context.Background(), Camera)
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("error = %v, want ErrDeviceUnavailable", err)
	}
}

func TestConcurrentAcquireSharesOneRequest(t *testing.T) {
	manager, source := newTestManager(t)
	gate := make(chan struct{})
	source.SetGate(gate)

	const callers = 4
	streams := make(chan *Stream, callers)
	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stream, err := manager.Acquire(context.Background(), Screen)
			if err != nil {
				t.Errorf("Acquire: %v", err)
			}
			streams <- stream
		}()
	}

	// Let every caller reach the manager before granting.
	for source.Requests(Screen) == 0 {
		time.Sleep(time.Millisecond)
	}
	close(gate)
	wg.Wait()
	close(streams)

	var first *Stream
	for stream := range streams {
		if first == nil {
			first = stream
		} else if stream != first {
			t.Fatal("concurrent callers received different streams")
		}
	}
	if got := source.Requests(Screen); got != 1 {
		t.Fatalf("screen requests = %d, want 1", got)
	}
}

func TestReleaseStopsEveryTrack(t *testing.T) {
	manager, source := newTestManager(t)
	source.SetSystemAudio(true)

	stream, err := manager.Acquire(context.Background(), Screen)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if len(stream.Tracks()) != 2 {
		t.Fatalf("screen stream has %d tracks, want 2", len(stream.Tracks()))
	}
	if _, ok := stream.SystemAudioTrack(); !ok {
		t.Fatal("no system audio track")
	}
	if ref, ok := stream.Track(webrtc.RTPCodecTypeVideo); !ok || ref.Kind != Screen {
		t.Fatalf("video track = %+v, %v", ref, ok)
	}

	manager.Release(Screen)
	for _, track := range source.Tracks(Screen) {
		if track.Stops() != 1 {
			t.Fatalf("track %s stopped %d times, want 1", track.ID(), track.Stops())
		}
	}
	if !stream.Released() {
		t.Fatal("stream not marked released")
	}
}

func TestReleaseAll(t *testing.T) {
	manager, source := newTestManager(t)
	ctx := context.Background()
	for _, kind := range Kinds {
		if _, err := manager.Acquire(ctx, kind); err != nil {
			t.Fatalf("Acquire(%s): %v", kind, err)
		}
	}
	if got := manager.ReleaseAll(); got != 3 {
		t.Fatalf("ReleaseAll = %d, want 3", got)
	}
	if manager.HeldCount() != 0 || source.Live() != 0 {
		t.Fatalf("after ReleaseAll: held=%d live=%d", manager.HeldCount(), source.Live())
	}
	if got := manager.ReleaseAll(); got != 0 {
		t.Fatalf("second ReleaseAll = %d, want 0", got)
	}
}

func TestAcquireContextCancelledWhileWaiting(t *testing.T) {
	manager, source := newTestManager(t)
	gate := make(chan struct{})
	source.SetGate(gate)
	defer close(gate)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		_, err := manager.Acquire(ctx, Camera)
		result <- err
	}()
	for source.Requests(Camera) == 0 {
		time.Sleep(time.Millisecond)
	}
	cancel()

	err := testutil.RequireReceive(t, result, 5*time.Second, "acquire to return")
	if !errors.Is(err, ErrDeviceUnavailable) || !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want unavailable wrapping context.Canceled", err)
	}
}
