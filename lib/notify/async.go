// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"log/slog"
	"sync"
)

// DefaultQueueSize is the Async queue capacity when none is given.
const DefaultQueueSize = 32

// Async delivers notifications to an inner Notifier on a dedicated
// goroutine. Notify never blocks: when the queue is full the
// notification is dropped and logged. A panicking inner notifier is
// recovered.
type Async struct {
	inner  Notifier
	logger *slog.Logger
	queue  chan Notification
	done   chan struct{}

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewAsync starts the delivery goroutine. Call Close to stop it.
func NewAsync(inner Notifier, queueSize int, logger *slog.Logger) *Async {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	async := &Async{
		inner:  inner,
		logger: logger,
		queue:  make(chan Notification, queueSize),
		done:   make(chan struct{}),
	}
	go async.run()
	return async
}

func (a *Async) Notify(n Notification) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	select {
	case a.queue <- n:
	default:
		a.logger.Warn("notification dropped, queue full", "title", n.Title)
	}
}

// Close stops accepting notifications, delivers what is queued, and
// waits for the delivery goroutine to exit.
func (a *Async) Close() {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		close(a.queue)
		a.mu.Unlock()
	})
	<-a.done
}

func (a *Async) run() {
	defer close(a.done)
	for n := range a.queue {
		a.deliver(n)
	}
}

func (a *Async) deliver(n Notification) {
	defer func() {
		if recovered := recover(); recovered != nil {
			a.logger.Error("notifier panicked", "title", n.Title, "panic", recovered)
		}
	}()
	a.inner.Notify(n)
}
