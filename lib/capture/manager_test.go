// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/bureau-foundation/proctor/lib/clock"
	"github.com/bureau-foundation/proctor/lib/device"
	"github.com/bureau-foundation/proctor/lib/recording"
	"github.com/bureau-foundation/proctor/lib/testutil"
)

var epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type memoryMirror struct {
	mu          sync.Mutex
	attempts    []string
	checkpoints []int
	stored      []*recording.Artifact
}

func (m *memoryMirror) Begin(_ context.Context, attempt string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, attempt)
	m.checkpoints = nil
	return nil
}

func (m *memoryMirror) Checkpoint(_ context.Context, attempt string, sequence int, _ []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.attempts) == 0 || m.attempts[len(m.attempts)-1] != attempt {
		return errors.New("checkpoint outside the open attempt")
	}
	m.checkpoints = append(m.checkpoints, sequence)
	return nil
}

func (m *memoryMirror) Store(_ context.Context, artifact *recording.Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = append(m.stored, artifact)
	return nil
}

type fixture struct {
	clock    *clock.FakeClock
	source   *device.MemorySource
	devices  *device.Manager
	recorder *MemoryRecorder
	mirror   *memoryMirror
	manager  *Manager
	hardStop []error
}

func newFixture(t *testing.T, requireCamera bool) *fixture {
	t.Helper()
	f := &fixture{
		clock:    clock.Fake(epoch),
		source:   device.NewMemorySource(),
		recorder: &MemoryRecorder{},
		mirror:   &memoryMirror{},
	}
	f.devices = device.NewManager(device.ManagerConfig{Source: f.source})
	f.manager = NewManager(Config{
		Devices:       f.devices,
		Recorder:      f.recorder,
		Mirror:        f.mirror,
		Clock:         f.clock,
		RequireCamera: requireCamera,
	})
	return f
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	err := f.manager.Start(context.Background(), func(err error) { f.hardStop = append(f.hardStop, err) })
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func (f *fixture) stopCounts() (total int) {
	for _, kind := range device.Kinds {
		for _, track := range f.source.Tracks(kind) {
			total += track.Stops()
		}
	}
	return total
}

func TestStartComposesTracks(t *testing.T) {
	f := newFixture(t, true)
	f.source.SetSystemAudio(true)
	f.start(t)

	if f.manager.State() != Recording || !f.manager.Recording() {
		t.Fatalf("state = %s, indicator = %v", f.manager.State(), f.manager.Recording())
	}
	tracks := f.recorder.Tracks()
	if len(tracks) != 3 {
		t.Fatalf("recorded %d tracks, want screen video, mic audio, system audio", len(tracks))
	}
	if tracks[0].Kind != device.Screen || tracks[0].Media != webrtc.RTPCodecTypeVideo ||
		tracks[1].Kind != device.Microphone || !tracks[2].SystemAudio {
		t.Fatalf("tracks = %v", tracks)
	}
	if f.devices.HeldCount() != 3 {
		t.Fatalf("held = %d, want camera, mic, screen", f.devices.HeldCount())
	}
	if err := f.manager.Start(context.Background(), nil); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second Start = %v, want ErrInvalidState", err)
	}
}

func TestStartFailureReleasesEverything(t *testing.T) {
	tests := []struct {
		name          string
		requireCamera bool
		fail          device.Kind
		err           error
	}{
		{"camera ok, microphone denied", true, device.Microphone, device.ErrPermissionDenied},
		{"microphone ok, screen denied", false, device.Screen, device.ErrPermissionDenied},
		{"camera and microphone ok, screen unavailable", true, device.Screen, device.ErrDeviceUnavailable},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f := newFixture(t, test.requireCamera)
			f.source.Fail(test.fail, test.err)

			err := f.manager.Start(context.Background(), nil)
			if !errors.Is(err, test.err) {
				t.Fatalf("Start = %v, want %v", err, test.err)
			}
			if f.manager.State() != Idle {
				t.Fatalf("state = %s, want idle", f.manager.State())
			}
			if f.devices.HeldCount() != 0 || f.source.Live() != 0 {
				t.Fatalf("held=%d live=%d after failed start", f.devices.HeldCount(), f.source.Live())
			}
			if f.source.Requests(device.Screen) > 0 && test.fail == device.Microphone {
				t.Fatal("screen requested after microphone failed")
			}
		})
	}
}

func TestRecorderStartFailure(t *testing.T) {
	f := newFixture(t, false)
	f.recorder.FailStart(errors.New("NotSupportedError"))
	if err := f.manager.Start(context.Background(), nil); !errors.Is(err, device.ErrDeviceUnavailable) {
		t.Fatalf("Start = %v", err)
	}
	if f.devices.HeldCount() != 0 {
		t.Fatal("devices held after recorder failure")
	}
}

func TestSegmentsCheckpointed(t *testing.T) {
	f := newFixture(t, false)
	f.start(t)
	f.recorder.Emit([]byte("one"), DefaultTimeslice)
	f.recorder.Emit(nil, DefaultTimeslice)
	f.recorder.Emit([]byte("two"), DefaultTimeslice)
	if got := f.mirror.checkpoints; len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Fatalf("checkpoints = %v, want [0 1]", got)
	}
}

func TestEachStartOpensNewAttempt(t *testing.T) {
	f := newFixture(t, false)
	f.start(t)
	f.recorder.Emit([]byte("first"), DefaultTimeslice)
	f.recorder.Emit([]byte("first again"), DefaultTimeslice)
	f.manager.Reset(context.Background())

	f.start(t)
	f.recorder.Emit([]byte("second"), DefaultTimeslice)

	if len(f.mirror.attempts) != 2 || f.mirror.attempts[0] == f.mirror.attempts[1] {
		t.Fatalf("attempts = %v, want two distinct", f.mirror.attempts)
	}
	if f.mirror.attempts[0] >= f.mirror.attempts[1] {
		t.Fatalf("attempt ids not time ordered: %v", f.mirror.attempts)
	}
	if got := f.mirror.checkpoints; len(got) != 1 || got[0] != 0 {
		t.Fatalf("checkpoints = %v, want [0] for the second attempt", got)
	}
}

func TestFinalizeTwiceReturnsSameArtifactAndReleasesOnce(t *testing.T) {
	f := newFixture(t, true)
	f.start(t)
	f.recorder.Emit(testutil.Payload(4096, 1), DefaultTimeslice)
	f.recorder.SetTail(testutil.Payload(1024, 2))

	first, err := f.manager.Finalize(context.Background())
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	second, err := f.manager.Finalize(context.Background())
	if err != nil {
		t.Fatalf("second Finalize: %v", err)
	}
	if first != second || !bytes.Equal(first.Data, second.Data) {
		t.Fatal("Finalize returned different artifacts")
	}
	if first.SizeBytes != 5120 {
		t.Fatalf("artifact size = %d, want emitted segment plus tail", first.SizeBytes)
	}
	if got := f.stopCounts(); got != 3 {
		t.Fatalf("track stops = %d, want exactly one per track", got)
	}
	if f.manager.State() != Finalizing || f.manager.Recording() {
		t.Fatal("not finalizing after Finalize")
	}
	if _, stops := f.recorder.Counts(); stops != 1 {
		t.Fatalf("recorder stopped %d times", stops)
	}
}

func TestFinalizeWithoutStart(t *testing.T) {
	f := newFixture(t, false)
	if _, err := f.manager.Finalize(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("Finalize = %v, want ErrInvalidState", err)
	}
}

func TestFinalizeEmptyRecording(t *testing.T) {
	f := newFixture(t, false)
	f.start(t)
	artifact, err := f.manager.Finalize(context.Background())
	if artifact != nil || !errors.Is(err, ErrNoRecording) {
		t.Fatalf("Finalize = %v, %v", artifact, err)
	}
	if f.devices.HeldCount() != 0 {
		t.Fatal("devices held after finalizing an empty recording")
	}
}

func TestSilentRotationKeepsIndicatorAndDevices(t *testing.T) {
	f := newFixture(t, false)
	f.start(t)
	f.recorder.Emit(testutil.Payload(2048, 3), DefaultTimeslice)

	f.clock.Advance(DefaultMaxDuration - time.Second)
	if f.manager.State() != Recording {
		t.Fatal("rotated before the duration cap")
	}
	f.clock.Advance(time.Second)

	if f.manager.State() != SilentlyStopped {
		t.Fatalf("state = %s, want silently-stopped", f.manager.State())
	}
	if !f.manager.Recording() {
		t.Fatal("indicator flickered off during rotation")
	}
	if f.devices.HeldCount() != 2 || f.source.Live() != 2 {
		t.Fatal("devices released during rotation")
	}
	rotated := f.manager.Artifact()
	if rotated == nil || rotated.SizeBytes != 2048 {
		t.Fatalf("rotation artifact = %+v", rotated)
	}
	if len(f.mirror.stored) != 1 || f.mirror.stored[0] != rotated {
		t.Fatal("rotation artifact not mirrored")
	}
	if f.recorder.Emit([]byte("late"), DefaultTimeslice) {
		t.Fatal("recorder still running after rotation")
	}

	final, err := f.manager.Finalize(context.Background())
	if err != nil || final != rotated {
		t.Fatalf("Finalize = %v, %v; want the rotation artifact", final, err)
	}
	if _, stops := f.recorder.Counts(); stops != 1 {
		t.Fatalf("recorder stopped %d times, want 1", stops)
	}
	if f.source.Live() != 0 {
		t.Fatal("devices not released by Finalize")
	}
}

func TestHardStopOnScreenEnded(t *testing.T) {
	f := newFixture(t, false)
	f.start(t)
	f.recorder.Emit(testutil.Payload(512, 4), DefaultTimeslice)

	screen := f.source.Tracks(device.Screen)[0]
	screen.Fire(device.EventEnded)
	screen.Fire(device.EventEnded)

	if len(f.hardStop) != 1 {
		t.Fatalf("onHardStop called %d times, want 1", len(f.hardStop))
	}
	var lost *device.LostError
	if !errors.As(f.hardStop[0], &lost) || lost.Track.Kind != device.Screen || !errors.Is(lost, device.ErrDeviceLost) {
		t.Fatalf("hard stop error = %v", f.hardStop[0])
	}
	if f.manager.State() != Halted || f.manager.Recording() {
		t.Fatalf("state = %s indicator = %v", f.manager.State(), f.manager.Recording())
	}
	if f.manager.Artifact() == nil || len(f.mirror.stored) != 1 {
		t.Fatal("halt did not materialize and mirror the artifact")
	}

	final, err := f.manager.Finalize(context.Background())
	if err != nil || final.SizeBytes != 512 {
		t.Fatalf("Finalize after halt = %v, %v", final, err)
	}
}

func TestHardStopOnMicrophoneMuted(t *testing.T) {
	f := newFixture(t, true)
	f.start(t)

	f.source.Tracks(device.Camera)[0].Fire(device.EventEnded)
	if len(f.hardStop) != 0 {
		t.Fatal("camera loss halted capture")
	}
	f.source.Tracks(device.Microphone)[0].Fire(device.EventMuted)
	if len(f.hardStop) != 1 || f.manager.State() != Halted {
		t.Fatalf("microphone mute: hardStop=%d state=%s", len(f.hardStop), f.manager.State())
	}
}

func TestResetReturnsToIdle(t *testing.T) {
	f := newFixture(t, false)
	f.start(t)
	f.recorder.Emit([]byte("x"), DefaultTimeslice)
	f.manager.Reset(context.Background())

	if f.manager.State() != Idle || f.manager.Artifact() != nil || f.devices.HeldCount() != 0 {
		t.Fatal("Reset left state behind")
	}
	f.clock.Advance(DefaultMaxDuration)
	if f.manager.State() != Idle {
		t.Fatal("rotation timer survived Reset")
	}
	f.start(t)
}
