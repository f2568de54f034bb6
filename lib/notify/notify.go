// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package notify is the one-way sink for human-readable alerts. The
// core never consults a return value and never depends on a notifier
// working: [Async] isolates callers from slow or panicking sinks.
package notify

import (
	"fmt"
	"sync"
)

// Level is the severity of a notification.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelCritical:
		return "critical"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Notification is one alert.
type Notification struct {
	Title       string
	Description string
	Level       Level
}

// Notifier delivers notifications. Implementations must not block
// for long; wrap slow sinks in Async.
type Notifier interface {
	Notify(Notification)
}

// Func adapts a function to Notifier.
type Func func(Notification)

func (f Func) Notify(n Notification) { f(n) }

// Discard drops every notification.
var Discard Notifier = Func(func(Notification) {})

// Multi fans out to every notifier in order.
func Multi(notifiers ...Notifier) Notifier {
	return Func(func(n Notification) {
		for _, notifier := range notifiers {
			notifier.Notify(n)
		}
	})
}

// Memory records notifications. Safe for concurrent use.
type Memory struct {
	mu   sync.Mutex
	sent []Notification
}

func (m *Memory) Notify(n Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
}

// Sent returns a copy of every notification received so far.
func (m *Memory) Sent() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Notification(nil), m.sent...)
}
