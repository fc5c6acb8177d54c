// Copyright 2026 The SchemaRepl Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

// Package syncutil is a thin sync.Mutex/sync.RWMutex shim that exists so
// call sites can assert lock-holding invariants where it matters (such as
// recovery's per-table lock ordering) without depending on the race
// detector.
package syncutil

import "sync"

// A Mutex is a mutual exclusion lock that additionally tracks whether it is
// currently held, so AssertHeld can catch a caller that forgot to acquire
// it.
type Mutex struct {
	mu     sync.Mutex
	held   bool
	heldMu sync.Mutex
}

// Lock acquires the mutex.
func (m *Mutex) Lock() {
	m.mu.Lock()
	m.heldMu.Lock()
	m.held = true
	m.heldMu.Unlock()
}

// Unlock releases the mutex.
func (m *Mutex) Unlock() {
	m.heldMu.Lock()
	m.held = false
	m.heldMu.Unlock()
	m.mu.Unlock()
}

// AssertHeld panics if the mutex is not currently locked by some goroutine.
// It does not check that the calling goroutine is the holder, only that
// somebody holds it.
func (m *Mutex) AssertHeld() {
	m.heldMu.Lock()
	defer m.heldMu.Unlock()
	if !m.held {
		panic("syncutil: mutex is not held")
	}
}

// An RWMutex is a reader/writer mutual exclusion lock.
type RWMutex struct {
	sync.RWMutex
}
