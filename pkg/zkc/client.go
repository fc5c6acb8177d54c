// Copyright 2026 The SchemaRepl Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

// Package zkc is the narrow coordination-store client this module talks
// to. It wraps github.com/go-zookeeper/zk behind an interface (Client) so
// that everything above it — replica, ddl, catalog, snapshot, recovery — is
// testable against internal/testutils/fakezk without a real ZooKeeper
// ensemble.
package zkc

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-zookeeper/zk"

	"github.com/replikadb/schemarepl/pkg/ddlerr"
)

// Flags mirror the subset of zk node flags this module needs.
const (
	FlagPersistent = int32(0)
	FlagEphemeral  = int32(zk.FlagEphemeral)
	FlagSequence   = int32(zk.FlagSequence)
)

// ErrNoNode reports that a znode does not exist. Wraps zk.ErrNoNode so
// callers can errors.Is against either.
var ErrNoNode = zk.ErrNoNode

// ErrNodeExists reports that a create raced with an existing znode. Wraps
// zk.ErrNodeExists.
var ErrNodeExists = zk.ErrNodeExists

// Stat is the subset of a znode's coordination-store metadata this module
// consults: its data version (for optimistic set/delete) and its children
// version (for retry-until-stable reads over a listing).
type Stat struct {
	Version  int32
	CVersion int32
}

// Client is everything this module needs from a ZooKeeper-class
// coordination store: persistent/ephemeral/sequential creates, reads with
// version stamps, atomic multi-op transactions, and child-list watches.
type Client interface {
	// Create makes a znode at path with the given flags, returning the
	// actual path created (which differs from path when FlagSequence is
	// set).
	Create(ctx context.Context, path string, data []byte, flags int32) (string, error)
	// Get returns a znode's data and version.
	Get(ctx context.Context, path string) ([]byte, Stat, error)
	// Children lists a znode's children and returns the parent's stat (for
	// its CVersion, used by retry-until-stable reads).
	Children(ctx context.Context, path string) ([]string, Stat, error)
	// ChildrenW is like Children but also returns a channel that fires
	// (closes) when the child list changes, used by the propose status
	// stream to wait for replica acks.
	ChildrenW(ctx context.Context, path string) ([]string, Stat, <-chan struct{}, error)
	// Delete removes a znode. version == -1 skips the version check.
	Delete(ctx context.Context, path string, version int32) error
	// Exists reports whether a znode exists.
	Exists(ctx context.Context, path string) (bool, Stat, error)
	// Multi executes ops atomically: either every op applies or none do.
	Multi(ctx context.Context, ops ...Op) error
	// Close releases the underlying session. Any ephemeral nodes this
	// session owns are removed by the store.
	Close()
}

// Dial connects to a ZooKeeper-class ensemble and returns a Client. The
// returned Client owns the connection; call Close when done.
func Dial(servers []string, sessionTimeout time.Duration) (Client, error) {
	conn, events, err := zk.Connect(servers, sessionTimeout)
	if err != nil {
		return nil, ddlerr.CoordinationUnavailable(err)
	}
	c := &client{conn: conn}
	go c.drainEvents(events)
	return c, nil
}

type client struct {
	conn *zk.Conn
}

func (c *client) drainEvents(events <-chan zk.Event) {
	// A slow or absent consumer of the event channel must never block the
	// driver's internal event loop, so this drains it unconditionally.
	for range events {
	}
}

func (c *client) Create(_ context.Context, path string, data []byte, flags int32) (string, error) {
	p, err := c.conn.Create(path, data, flags, zk.WorldACL(zk.PermAll))
	if err != nil {
		return "", errors.Wrapf(err, "creating %s", path)
	}
	return p, nil
}

func (c *client) Get(_ context.Context, path string) ([]byte, Stat, error) {
	data, st, err := c.conn.Get(path)
	if err != nil {
		return nil, Stat{}, errors.Wrapf(err, "getting %s", path)
	}
	return data, Stat{Version: st.Version, CVersion: st.Cversion}, nil
}

func (c *client) Children(_ context.Context, path string) ([]string, Stat, error) {
	children, st, err := c.conn.Children(path)
	if err != nil {
		return nil, Stat{}, errors.Wrapf(err, "listing children of %s", path)
	}
	return children, Stat{Version: st.Version, CVersion: st.Cversion}, nil
}

func (c *client) ChildrenW(_ context.Context, path string) ([]string, Stat, <-chan struct{}, error) {
	children, st, events, err := c.conn.ChildrenW(path)
	if err != nil {
		return nil, Stat{}, nil, errors.Wrapf(err, "watching children of %s", path)
	}
	fired := make(chan struct{})
	go func() {
		<-events
		close(fired)
	}()
	return children, Stat{Version: st.Version, CVersion: st.Cversion}, fired, nil
}

func (c *client) Exists(_ context.Context, path string) (bool, Stat, error) {
	ok, st, err := c.conn.Exists(path)
	if err != nil {
		return false, Stat{}, errors.Wrapf(err, "checking existence of %s", path)
	}
	return ok, Stat{Version: st.Version, CVersion: st.Cversion}, nil
}

func (c *client) Delete(_ context.Context, path string, version int32) error {
	if err := c.conn.Delete(path, version); err != nil {
		return errors.Wrapf(err, "deleting %s", path)
	}
	return nil
}

func (c *client) Multi(_ context.Context, ops ...Op) error {
	zkOps := make([]interface{}, len(ops))
	for i, op := range ops {
		zkOps[i] = op.toZK()
	}
	if _, err := c.conn.Multi(zkOps...); err != nil {
		return errors.Wrap(err, "executing multi-op transaction")
	}
	return nil
}

func (c *client) Close() { c.conn.Close() }
