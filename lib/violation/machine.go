// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package violation

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/proctor/lib/clock"
	"github.com/bureau-foundation/proctor/lib/session"
)

const (
	DefaultGracePeriod    = 5 * time.Second
	DefaultDebounceWindow = 1000 * time.Millisecond
	DefaultMaxViolations  = 3
)

// State is the machine's lifecycle state.
type State int

const (
	Inactive State = iota
	GracePeriod
	Monitoring
	Terminated
)

func (s State) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case GracePeriod:
		return "grace-period"
	case Monitoring:
		return "monitoring"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Violation is one observed policy breach. Violations are counted,
// never stored.
type Violation struct {
	Reason     string
	ObservedAt time.Time
	Hard       bool
}

func (v Violation) Error() string {
	if v.Hard {
		return "hard violation: " + v.Reason
	}
	return "violation: " + v.Reason
}

// Warning is delivered for each counted soft violation below the
// termination threshold.
type Warning struct {
	Violation
	Count int
	Max   int
}

// Remaining returns how many more violations terminate the session.
func (w Warning) Remaining() int { return w.Max - w.Count }

// Termination is delivered once when the session terminates.
type Termination struct {
	Violation
	Count int
}

// Config configures a Machine. Zero durations and counts take the
// package defaults.
type Config struct {
	Clock   clock.Clock
	Logger  *slog.Logger
	Session *session.Session

	GracePeriod    time.Duration
	DebounceWindow time.Duration
	MaxViolations  int
}

// Machine is the violation ladder. Safe for concurrent use; listeners
// run outside the machine lock.
type Machine struct {
	clock   clock.Clock
	logger  *slog.Logger
	session *session.Session

	gracePeriod   time.Duration
	maxViolations int
	coalescer     *Coalescer

	warnings     listeners[Warning]
	terminations listeners[Termination]

	mu         sync.Mutex
	state      State
	graceTimer *clock.Timer
}

// NewMachine returns an Inactive machine.
func NewMachine(config Config) *Machine {
	if config.Session == nil {
		panic("violation: Config.Session is required")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	if config.GracePeriod <= 0 {
		config.GracePeriod = DefaultGracePeriod
	}
	if config.DebounceWindow <= 0 {
		config.DebounceWindow = DefaultDebounceWindow
	}
	if config.MaxViolations <= 0 {
		config.MaxViolations = DefaultMaxViolations
	}

	machine := &Machine{
		clock:         config.Clock,
		logger:        config.Logger,
		session:       config.Session,
		gracePeriod:   config.GracePeriod,
		maxViolations: config.MaxViolations,
	}
	machine.coalescer = NewCoalescer(config.Clock, config.DebounceWindow, config.Session.SetLastViolation)
	return machine
}

// OnWarning registers fn for warnings. The returned function removes
// the registration.
func (m *Machine) OnWarning(fn func(Warning)) (remove func()) {
	return m.warnings.add(fn)
}

// OnTermination registers fn for the termination event.
func (m *Machine) OnTermination(fn func(Termination)) (remove func()) {
	return m.terminations.add(fn)
}

// Activate moves Inactive to GracePeriod and arms the grace timer.
// Returns false in any other state.
func (m *Machine) Activate() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Inactive {
		return false
	}
	m.state = GracePeriod
	m.graceTimer = m.clock.AfterFunc(m.gracePeriod, m.endGrace)
	m.logger.Info("violation monitoring activated", "grace_period", m.gracePeriod)
	return true
}

func (m *Machine) endGrace() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != GracePeriod {
		return
	}
	m.state = Monitoring
	m.graceTimer = nil
	m.logger.Info("violation monitoring armed")
}

// Deactivate stops timers and returns to Inactive. A terminated
// machine stays Terminated.
func (m *Machine) Deactivate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopTimersLocked()
	if m.state != Terminated {
		m.state = Inactive
	}
}

// Reset returns to Inactive from any state and resets the session.
func (m *Machine) Reset() {
	m.mu.Lock()
	m.stopTimersLocked()
	m.state = Inactive
	m.mu.Unlock()
	m.session.Reset()
}

func (m *Machine) stopTimersLocked() {
	if m.graceTimer != nil {
		m.graceTimer.Stop()
		m.graceTimer = nil
	}
	m.coalescer.Stop()
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Active reports whether detectors feeding the machine should run:
// true in GracePeriod and Monitoring.
func (m *Machine) Active() bool {
	state := m.State()
	return state == GracePeriod || state == Monitoring
}

// Counting reports whether violations are being counted, that is
// whether the machine is in Monitoring.
func (m *Machine) Counting() bool {
	return m.State() == Monitoring
}

// Report submits a violation. Returns true if it was counted or
// terminated the session; false if it was discarded (wrong state) or
// coalesced into a pending one.
func (m *Machine) Report(reason string, hard bool) bool {
	violation := Violation{Reason: reason, ObservedAt: m.clock.Now(), Hard: hard}

	m.mu.Lock()
	if m.state != Monitoring {
		state := m.state
		m.mu.Unlock()
		m.logger.Debug("violation discarded", "reason", reason, "state", state)
		return false
	}

	if hard {
		m.terminateLocked()
		m.mu.Unlock()
		m.session.Terminate(reason)
		m.logger.Warn("hard violation, terminating", "reason", reason)
		m.terminations.emit(m.logger, "termination", Termination{
			Violation: violation,
			Count:     m.session.ViolationCount(),
		})
		return true
	}

	if !m.coalescer.Offer(reason) {
		m.mu.Unlock()
		m.logger.Debug("violation coalesced", "reason", reason)
		return false
	}

	count := m.session.RecordViolation(reason)
	if count >= m.maxViolations {
		m.terminateLocked()
		m.mu.Unlock()
		m.session.Terminate(reason)
		m.logger.Warn("violation limit reached, terminating", "reason", reason, "count", count)
		m.terminations.emit(m.logger, "termination", Termination{Violation: violation, Count: count})
		return true
	}
	m.mu.Unlock()

	m.logger.Info("violation warning", "reason", reason, "count", count, "max", m.maxViolations)
	m.warnings.emit(m.logger, "warning", Warning{Violation: violation, Count: count, Max: m.maxViolations})
	return true
}

func (m *Machine) terminateLocked() {
	m.stopTimersLocked()
	m.state = Terminated
}
