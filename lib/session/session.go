// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package session holds the state of one assessment attempt. A
// Session is created by the orchestrator and injected into every
// component that reads or mutates attempt state; all mutation goes
// through its methods.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/bureau-foundation/proctor/lib/codec"
)

// Snapshot is an immutable copy of session state.
type Snapshot struct {
	ID                string    `json:"id"`
	Active            bool      `json:"active"`
	StartedAt         time.Time `json:"started_at"`
	ViolationCount    int       `json:"violation_count"`
	Terminated        bool      `json:"terminated"`
	TerminationReason string    `json:"termination_reason,omitempty"`
	LastViolation     string    `json:"last_violation,omitempty"`
}

// Encode returns the CBOR encoding of the snapshot.
func (s Snapshot) Encode() ([]byte, error) {
	return codec.Marshal(s)
}

// DecodeSnapshot parses a snapshot produced by Encode.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var snapshot Snapshot
	err := codec.Unmarshal(data, &snapshot)
	return snapshot, err
}

// Session is safe for concurrent use.
type Session struct {
	mu    sync.Mutex
	state Snapshot
}

// New returns an inactive session.
func New() *Session {
	return &Session{}
}

// Begin starts a new attempt at now with a fresh ID. Beginning an
// already active session is a no-op and returns false.
func (s *Session) Begin(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Active {
		return false
	}
	s.state = Snapshot{
		ID:        newID(),
		Active:    true,
		StartedAt: now,
	}
	return true
}

// RecordViolation increments the violation count and records reason
// as the most recent violation. Returns the new count.
func (s *Session) RecordViolation(reason string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ViolationCount++
	s.state.LastViolation = reason
	return s.state.ViolationCount
}

// SetLastViolation replaces the most recent violation reason without
// counting, used when later signals are coalesced into it.
func (s *Session) SetLastViolation(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.LastViolation = reason
}

// Terminate marks the session terminated. Only the first call has an
// effect and returns true.
func (s *Session) Terminate(reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminated {
		return false
	}
	s.state.Terminated = true
	s.state.TerminationReason = reason
	return true
}

// Reset discards all attempt state.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Snapshot{}
}

// ViolationCount returns the current count.
func (s *Session) ViolationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ViolationCount
}

// Terminated reports whether the session has been terminated.
func (s *Session) Terminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Terminated
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func newID() string {
	var raw [8]byte
	if _, err := rand.Read(raw[:]); err != nil {
		panic("session: reading random ID: " + err.Error())
	}
	return "ses-" + hex.EncodeToString(raw[:])
}
