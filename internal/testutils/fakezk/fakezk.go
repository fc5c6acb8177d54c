// Copyright 2026 The SchemaRepl Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

// Package fakezk is an in-memory coordination store implementing
// zkc.Client, including sequential counters, ephemeral node expiry on
// session close, and cversion/version tracking. It backs every property and
// scenario test in this module so they run deterministically without a real
// ZooKeeper ensemble.
package fakezk

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/replikadb/schemarepl/pkg/ddlerr"
	"github.com/replikadb/schemarepl/pkg/zkc"
)

type node struct {
	data      []byte
	version   int32
	cversion  int32
	ephemeral bool
	seq       bool
	owner     *Session
	watchers  []chan struct{}
}

// Store is the shared in-memory tree. Multiple Sessions (separate process
// identities, e.g. two replicas) Dial against the same Store to simulate a
// real ensemble that outlives any one client's connection.
type Store struct {
	mu      sync.Mutex
	nodes   map[string]*node
	seqCtr  map[string]int64 // per-parent sequential counters
}

// NewStore creates an empty coordination-store tree with just the root.
func NewStore() *Store {
	s := &Store{nodes: map[string]*node{}, seqCtr: map[string]int64{}}
	s.nodes["/"] = &node{}
	return s
}

// Session is one client connection against a Store; closing it drops every
// ephemeral node it owns, the way a real ZooKeeper session expiring does.
type Session struct {
	store  *Store
	closed bool
	mu     sync.Mutex
}

// Dial returns a new Session bound to store. It implements zkc.Client.
func Dial(store *Store) zkc.Client {
	return &Session{store: store}
}

var _ zkc.Client = (*Session)(nil)

func parent(path string) string {
	i := strings.LastIndex(path, "/")
	if i <= 0 {
		return "/"
	}
	return path[:i]
}

func (s *Session) Create(_ context.Context, path string, data []byte, flags int32) (string, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	seq := flags&zkc.FlagSequence != 0
	eph := flags&zkc.FlagEphemeral != 0

	actualPath := path
	if seq {
		p := parent(path)
		s.store.seqCtr[p]++
		actualPath = path + seqSuffix(s.store.seqCtr[p])
	}
	if _, ok := s.store.nodes[actualPath]; ok {
		return "", zkc.ErrNodeExists
	}
	p := parent(actualPath)
	pn, ok := s.store.nodes[p]
	if !ok {
		return "", zkc.ErrNoNode
	}
	owner := s
	if !eph {
		owner = nil
	}
	s.store.nodes[actualPath] = &node{data: append([]byte(nil), data...), ephemeral: eph, seq: seq, owner: owner}
	pn.cversion++
	s.fireWatchersLocked(p)
	return actualPath, nil
}

func seqSuffix(n int64) string {
	const digits = "0123456789"
	out := make([]byte, 10)
	for i := 9; i >= 0; i-- {
		out[i] = digits[n%10]
		n /= 10
	}
	return string(out)
}

func (s *Session) Get(_ context.Context, path string) ([]byte, zkc.Stat, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	n, ok := s.store.nodes[path]
	if !ok {
		return nil, zkc.Stat{}, zkc.ErrNoNode
	}
	return append([]byte(nil), n.data...), zkc.Stat{Version: n.version, CVersion: n.cversion}, nil
}

func (s *Session) Children(_ context.Context, path string) ([]string, zkc.Stat, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	n, ok := s.store.nodes[path]
	if !ok {
		return nil, zkc.Stat{}, zkc.ErrNoNode
	}
	return s.childrenLocked(path), zkc.Stat{Version: n.version, CVersion: n.cversion}, nil
}

func (s *Session) ChildrenW(ctx context.Context, path string) ([]string, zkc.Stat, <-chan struct{}, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	n, ok := s.store.nodes[path]
	if !ok {
		return nil, zkc.Stat{}, nil, zkc.ErrNoNode
	}
	ch := make(chan struct{})
	n.watchers = append(n.watchers, ch)
	return s.childrenLocked(path), zkc.Stat{Version: n.version, CVersion: n.cversion}, ch, nil
}

func (s *Session) childrenLocked(path string) []string {
	prefix := path
	if prefix != "/" {
		prefix += "/"
	}
	var out []string
	for p := range s.store.nodes {
		if p == path || !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := strings.TrimPrefix(p, prefix)
		if !strings.Contains(rest, "/") {
			out = append(out, rest)
		}
	}
	sort.Strings(out)
	return out
}

func (s *Session) Exists(_ context.Context, path string) (bool, zkc.Stat, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	n, ok := s.store.nodes[path]
	if !ok {
		return false, zkc.Stat{}, nil
	}
	return true, zkc.Stat{Version: n.version, CVersion: n.cversion}, nil
}

func (s *Session) Delete(_ context.Context, path string, version int32) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	return s.deleteLocked(path, version)
}

func (s *Session) deleteLocked(path string, version int32) error {
	n, ok := s.store.nodes[path]
	if !ok {
		return zkc.ErrNoNode
	}
	if version != -1 && n.version != version {
		return ddlerr.Logical(zkc.ErrNoNode)
	}
	if len(s.childrenLocked(path)) > 0 {
		return ddlerr.BadArgument("cannot delete %s: has children", path)
	}
	delete(s.store.nodes, path)
	if pn, ok := s.store.nodes[parent(path)]; ok {
		pn.cversion++
		s.fireWatchersLocked(parent(path))
	}
	return nil
}

func (s *Session) Multi(_ context.Context, ops ...zkc.Op) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	// Two-pass: validate every op's target (a create's path must be free, a
	// set's or delete's path must exist at the expected version), then
	// apply all. Deleting a node that still has children is not checked
	// here. This gives
	// the all-or-nothing semantics a multi-op transaction relies on without
	// a real rollback log, since validation never observes a half-applied
	// transaction.
	tentative := map[string]bool{}
	for _, op := range ops {
		if err := s.validateOpLocked(op, tentative); err != nil {
			return err
		}
	}
	touched := map[string]bool{}
	for _, op := range ops {
		s.applyOpLocked(op, touched)
	}
	for p := range touched {
		s.fireWatchersLocked(p)
	}
	return nil
}

// validateOpLocked checks op against the store as it would look after every
// preceding op in the same Multi has applied, tracked via tentative (path ->
// exists) so e.g. an EXCHANGE's delete-then-create pair on the same path
// validates correctly without the delete and create racing against a
// snapshot of the pre-transaction store.
func (s *Session) validateOpLocked(op zkc.Op, tentative map[string]bool) error {
	switch {
	case op.IsCreate():
		path, _, _ := op.CreateArgs()
		exists, tracked := tentative[path]
		if !tracked {
			_, exists = s.store.nodes[path]
		}
		if exists {
			return zkc.ErrNodeExists
		}
		tentative[path] = true
	case op.IsSet(), op.IsDelete():
		path, version := op.Path(), int32(-1)
		if op.IsSet() {
			_, _, version = op.SetArgs()
		} else {
			_, version = op.DeleteArgs()
		}
		exists, tracked := tentative[path]
		n, inStore := s.store.nodes[path]
		if !tracked {
			exists = inStore
		}
		if !exists {
			return zkc.ErrNoNode
		}
		if version != -1 && !tracked && n.version != version {
			return ddlerr.Logical(zkc.ErrNoNode)
		}
		if op.IsDelete() {
			tentative[path] = false
		}
	}
	return nil
}

func (s *Session) applyOpLocked(op zkc.Op, touched map[string]bool) {
	// A minimal re-dispatch through the same primitives used outside Multi,
	// mirroring how the op was constructed in pkg/zkc.
	switch {
	case op.IsCreate():
		path, data, flags := op.CreateArgs()
		eph := flags&zkc.FlagEphemeral != 0
		owner := s
		if !eph {
			owner = nil
		}
		if _, exists := s.store.nodes[path]; !exists {
			s.store.nodes[path] = &node{data: append([]byte(nil), data...), ephemeral: eph, owner: owner}
			if pn, ok := s.store.nodes[parent(path)]; ok {
				pn.cversion++
				touched[parent(path)] = true
			}
		}
	case op.IsSet():
		path, data, _ := op.SetArgs()
		if n, ok := s.store.nodes[path]; ok {
			n.data = append([]byte(nil), data...)
			n.version++
			touched[path] = true
		}
	case op.IsDelete():
		path, version := op.DeleteArgs()
		_ = s.deleteLocked(path, version)
		touched[parent(path)] = true
	}
}

func (s *Session) fireWatchersLocked(path string) {
	n, ok := s.store.nodes[path]
	if !ok {
		return
	}
	for _, ch := range n.watchers {
		close(ch)
	}
	n.watchers = nil
}

// Close expires the session: every ephemeral node it owns is removed, the
// way a real ZooKeeper session timing out releases its ephemerals.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	for path, n := range s.store.nodes {
		if n.ephemeral && n.owner == s {
			delete(s.store.nodes, path)
			if pn, ok := s.store.nodes[parent(path)]; ok {
				pn.cversion++
				s.fireWatchersLocked(parent(path))
			}
		}
	}
}
