// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"

	"github.com/bureau-foundation/proctor/lib/clock"
	"github.com/bureau-foundation/proctor/lib/device"
	"github.com/bureau-foundation/proctor/lib/recording"
)

const (
	DefaultTimeslice   = 5 * time.Second
	DefaultMaxDuration = 25 * time.Minute
	DefaultMimeHint    = "video/webm;codecs=vp8,opus"
)

var (
	// ErrInvalidState is returned for an operation the current state
	// does not allow.
	ErrInvalidState = errors.New("capture: invalid state")

	// ErrNoRecording is returned by Finalize when nothing was
	// recorded.
	ErrNoRecording = errors.New("capture: nothing recorded")
)

// State is the capture lifecycle state.
type State int

const (
	Idle State = iota
	Acquiring
	Recording
	SilentlyStopped
	Halted
	Finalizing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Acquiring:
		return "acquiring"
	case Recording:
		return "recording"
	case SilentlyStopped:
		return "silently-stopped"
	case Halted:
		return "halted"
	case Finalizing:
		return "finalizing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config configures a Manager.
type Config struct {
	Devices  *device.Manager
	Recorder Recorder

	// Mirror receives segment checkpoints and materialized artifacts.
	// Optional.
	Mirror Mirror

	Clock  clock.Clock
	Logger *slog.Logger

	// RequireCamera acquires the camera before the microphone.
	RequireCamera bool

	MimeHint    string
	Timeslice   time.Duration
	MaxDuration time.Duration
}

// Manager owns one recording at a time. Safe for concurrent use.
type Manager struct {
	devices  *device.Manager
	recorder Recorder
	mirror   Mirror
	clock    clock.Clock
	logger   *slog.Logger

	requireCamera bool
	mimeHint      string
	timeslice     time.Duration
	maxDuration   time.Duration

	buffer recording.Buffer

	// operation serializes rotation, halt, finalize, and reset.
	operation sync.Mutex

	mu            sync.Mutex
	state         State
	attempt       string
	indicator     bool
	startedAt     time.Time
	acquired      []device.Kind
	unsubscribe   []func()
	rotationTimer *clock.Timer
	onHardStop    func(error)
	hardStopped   bool
	rotated       *recording.Artifact
	final         *recording.Artifact
	finalErr      error
}

// NewManager returns an Idle manager.
func NewManager(config Config) *Manager {
	if config.Devices == nil || config.Recorder == nil {
		panic("capture: Config.Devices and Config.Recorder are required")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	if config.MimeHint == "" {
		config.MimeHint = DefaultMimeHint
	}
	if config.Timeslice <= 0 {
		config.Timeslice = DefaultTimeslice
	}
	if config.MaxDuration <= 0 {
		config.MaxDuration = DefaultMaxDuration
	}
	return &Manager{
		devices:       config.Devices,
		recorder:      config.Recorder,
		mirror:        config.Mirror,
		clock:         config.Clock,
		logger:        config.Logger,
		requireCamera: config.RequireCamera,
		mimeHint:      config.MimeHint,
		timeslice:     config.Timeslice,
		maxDuration:   config.MaxDuration,
	}
}

// Start acquires devices and begins recording. On any failure every
// device acquired so far is released, the manager returns to Idle,
// and the error is returned. onHardStop is called at most once, with
// a *device.LostError, if the screen or microphone is lost.
func (m *Manager) Start(ctx context.Context, onHardStop func(error)) error {
	m.mu.Lock()
	if m.state != Idle {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: start from %s", ErrInvalidState, state)
	}
	m.state = Acquiring
	m.mu.Unlock()

	kinds := []device.Kind{device.Microphone, device.Screen}
	if m.requireCamera {
		kinds = append([]device.Kind{device.Camera}, kinds...)
	}

	streams := make(map[device.Kind]*device.Stream, len(kinds))
	var acquired []device.Kind
	fail := func(err error) error {
		for _, kind := range acquired {
			m.devices.Release(kind)
		}
		m.mu.Lock()
		m.state = Idle
		m.mu.Unlock()
		m.logger.Warn("capture start failed", "error", err, "released", len(acquired))
		return err
	}

	for _, kind := range kinds {
		stream, err := m.devices.Acquire(ctx, kind)
		if err != nil {
			return fail(err)
		}
		streams[kind] = stream
		acquired = append(acquired, kind)
	}

	screen, microphone := streams[device.Screen], streams[device.Microphone]
	tracks, err := composeTracks(screen, microphone)
	if err != nil {
		return fail(err)
	}

	attempt, err := uuid.NewV7()
	if err != nil {
		return fail(fmt.Errorf("capture: attempt id: %w", err))
	}
	m.mu.Lock()
	m.attempt = attempt.String()
	m.mu.Unlock()
	if m.mirror != nil {
		if err := m.mirror.Begin(ctx, attempt.String()); err != nil {
			m.logger.Error("opening cache attempt failed", "attempt", attempt, "error", err)
		}
	}

	if err := m.recorder.Start(tracks, m.mimeHint, m.timeslice, m.onSegment); err != nil {
		return fail(fmt.Errorf("%w: starting recorder: %w", device.ErrDeviceUnavailable, err))
	}

	lost := func(event device.Event) func(device.TrackRef) {
		return func(ref device.TrackRef) {
			m.hardStop(&device.LostError{Track: ref, Event: event})
		}
	}

	m.mu.Lock()
	m.acquired = acquired
	m.onHardStop = onHardStop
	m.hardStopped = false
	m.unsubscribe = []func(){
		screen.OnEnded(lost(device.EventEnded)),
		microphone.OnEnded(lost(device.EventEnded)),
		microphone.OnMuted(lost(device.EventMuted)),
	}
	m.startedAt = m.clock.Now()
	m.state = Recording
	m.indicator = true
	m.rotationTimer = m.clock.AfterFunc(m.maxDuration, m.rotate)
	m.mu.Unlock()

	m.logger.Info("capture started", "tracks", len(tracks), "mime", m.mimeHint,
		"max_duration", m.maxDuration)
	return nil
}

// composeTracks builds the recorded track list: screen video,
// microphone audio, then system audio if the screen share has it.
func composeTracks(screen, microphone *device.Stream) ([]device.TrackRef, error) {
	video, ok := screen.Track(webrtc.RTPCodecTypeVideo)
	if !ok {
		return nil, fmt.Errorf("%w: screen stream has no video track", device.ErrDeviceUnavailable)
	}
	audio, ok := microphone.Track(webrtc.RTPCodecTypeAudio)
	if !ok {
		return nil, fmt.Errorf("%w: microphone stream has no audio track", device.ErrDeviceUnavailable)
	}
	tracks := []device.TrackRef{video, audio}
	if system, ok := screen.SystemAudioTrack(); ok {
		tracks = append(tracks, system)
	}
	return tracks, nil
}

func (m *Manager) onSegment(sample media.Sample) {
	sequence := m.buffer.Append(sample)
	if sequence < 0 || m.mirror == nil {
		return
	}
	m.mu.Lock()
	attempt := m.attempt
	m.mu.Unlock()
	if err := m.mirror.Checkpoint(context.Background(), attempt, sequence, sample.Data, m.mimeHint); err != nil {
		m.logger.Error("segment checkpoint failed", "sequence", sequence, "error", err)
	}
}

// rotate performs the silent rotation at the duration cap.
func (m *Manager) rotate() {
	m.operation.Lock()
	defer m.operation.Unlock()

	m.mu.Lock()
	if m.state != Recording {
		m.mu.Unlock()
		return
	}
	m.rotationTimer = nil
	m.mu.Unlock()

	artifact := m.stopRecorder(context.Background())

	m.mu.Lock()
	m.rotated = artifact
	m.state = SilentlyStopped
	m.mu.Unlock()

	m.store(artifact)
	m.logger.Info("capture rotated at duration cap", "bytes", artifactSize(artifact))
}

// hardStop halts capture after a device loss and notifies the caller
// once.
func (m *Manager) hardStop(lost *device.LostError) {
	m.operation.Lock()
	m.mu.Lock()
	if m.hardStopped || (m.state != Recording && m.state != SilentlyStopped) {
		m.mu.Unlock()
		m.operation.Unlock()
		return
	}
	m.hardStopped = true
	wasRecording := m.state == Recording
	m.stopRotationLocked()
	callback := m.onHardStop
	m.mu.Unlock()

	if wasRecording {
		artifact := m.stopRecorder(context.Background())
		m.mu.Lock()
		m.rotated = artifact
		m.mu.Unlock()
		m.store(artifact)
	}

	m.mu.Lock()
	m.state = Halted
	m.indicator = false
	m.mu.Unlock()
	m.operation.Unlock()

	m.logger.Warn("capture halted by device loss", "kind", lost.Track.Kind, "event", lost.Event)
	if callback != nil {
		callback(lost)
	}
}

// Finalize stops recording if needed, releases every device, and
// returns the artifact. A silent-rotation or halt artifact already in
// hand is preferred. Later calls return the same result without
// touching devices again.
func (m *Manager) Finalize(ctx context.Context) (*recording.Artifact, error) {
	m.operation.Lock()
	defer m.operation.Unlock()

	m.mu.Lock()
	state := m.state
	switch state {
	case Finalizing:
		final, err := m.final, m.finalErr
		m.mu.Unlock()
		return final, err
	case Recording, SilentlyStopped, Halted:
	default:
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: finalize from %s", ErrInvalidState, state)
	}
	m.stopRotationLocked()
	artifact := m.rotated
	m.mu.Unlock()

	if state == Recording {
		artifact = m.stopRecorder(ctx)
		m.store(artifact)
	}

	m.mu.Lock()
	m.detachLocked()
	m.state = Finalizing
	m.indicator = false
	m.final = artifact
	m.finalErr = nil
	if artifact == nil {
		m.finalErr = ErrNoRecording
	}
	final, err := m.final, m.finalErr
	m.mu.Unlock()

	m.logger.Info("capture finalized", "from", state, "bytes", artifactSize(artifact))
	return final, err
}

// Reset abandons any recording, releases devices, and returns to
// Idle. Used after a confirmed upload or to restart an attempt.
func (m *Manager) Reset(ctx context.Context) {
	m.operation.Lock()
	defer m.operation.Unlock()

	m.mu.Lock()
	wasRecording := m.state == Recording
	m.stopRotationLocked()
	m.mu.Unlock()

	if wasRecording {
		if err := m.recorder.Stop(ctx); err != nil {
			m.logger.Warn("recorder stop failed during reset", "error", err)
		}
	}
	m.buffer.Drain("", time.Time{})

	m.mu.Lock()
	m.detachLocked()
	m.state = Idle
	m.indicator = false
	m.rotated = nil
	m.final = nil
	m.finalErr = nil
	m.onHardStop = nil
	m.mu.Unlock()
}

// stopRecorder stops the primitive and materializes what it recorded.
func (m *Manager) stopRecorder(ctx context.Context) *recording.Artifact {
	if err := m.recorder.Stop(ctx); err != nil {
		m.logger.Warn("recorder stop failed", "error", err)
	}
	return m.buffer.Drain(m.mimeHint, m.clock.Now())
}

func (m *Manager) store(artifact *recording.Artifact) {
	if artifact == nil || m.mirror == nil {
		return
	}
	if err := m.mirror.Store(context.Background(), artifact); err != nil {
		m.logger.Error("mirroring artifact failed", "digest", artifact.Digest.ShortDigest(), "error", err)
	}
}

func (m *Manager) stopRotationLocked() {
	if m.rotationTimer != nil {
		m.rotationTimer.Stop()
		m.rotationTimer = nil
	}
}

// detachLocked drops event subscriptions and releases every acquired
// device exactly once.
func (m *Manager) detachLocked() {
	for _, unsubscribe := range m.unsubscribe {
		unsubscribe()
	}
	m.unsubscribe = nil
	for _, kind := range m.acquired {
		m.devices.Release(kind)
	}
	m.acquired = nil
}

// State returns the lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Recording is the externally visible "recording active" indicator.
// It stays true across a silent rotation.
func (m *Manager) Recording() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.indicator
}

// Active reports whether there is a recording Finalize can
// materialize.
func (m *Manager) Active() bool {
	switch m.State() {
	case Recording, SilentlyStopped, Halted:
		return true
	}
	return false
}

// Artifact returns the in-memory artifact, if one has been
// materialized by rotation, halt, or finalize.
func (m *Manager) Artifact() *recording.Artifact {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.final != nil {
		return m.final
	}
	return m.rotated
}

// StartedAt returns when the current recording started.
func (m *Manager) StartedAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startedAt
}

func artifactSize(artifact *recording.Artifact) int64 {
	if artifact == nil {
		return 0
	}
	return artifact.SizeBytes
}
