// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package violation

import (
	"log/slog"
	"sync"
)

// listeners is a registry of callbacks that are invoked outside any
// caller lock. A panicking callback is logged and skipped.
type listeners[T any] struct {
	mu     sync.Mutex
	nextID int
	ids    []int
	funcs  map[int]func(T)
}

func (l *listeners[T]) add(fn func(T)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.funcs == nil {
		l.funcs = make(map[int]func(T))
	}
	id := l.nextID
	l.nextID++
	l.ids = append(l.ids, id)
	l.funcs[id] = fn
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.funcs, id)
	}
}

func (l *listeners[T]) snapshot() []func(T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	result := make([]func(T), 0, len(l.funcs))
	live := l.ids[:0]
	for _, id := range l.ids {
		if fn, ok := l.funcs[id]; ok {
			result = append(result, fn)
			live = append(live, id)
		}
	}
	l.ids = live
	return result
}

func (l *listeners[T]) emit(logger *slog.Logger, name string, value T) {
	for _, fn := range l.snapshot() {
		func() {
			defer func() {
				if recovered := recover(); recovered != nil {
					logger.Error("violation listener panicked", "listener", name, "panic", recovered)
				}
			}()
			fn(value)
		}()
	}
}
