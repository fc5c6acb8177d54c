// Copyright 2026 The SchemaRepl Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

// Package snapshot implements a consistent metadata snapshot: a
// (max_log_ptr, table -> CREATE-statement) pair describing the
// authoritative catalog at one point in the log order, safe to read even
// while other replicas are concurrently creating and dropping tables.
package snapshot

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/replikadb/schemarepl/pkg/ddlerr"
	"github.com/replikadb/schemarepl/pkg/dsettings"
	"github.com/replikadb/schemarepl/pkg/schema"
	"github.com/replikadb/schemarepl/pkg/zkc"
)

// Snapshot is the authoritative catalog as of MaxLogPtr: every table
// currently registered under R/metadata, keyed by its unescaped name, with
// its raw (still database-placeholder-bearing) CREATE text as the value.
type Snapshot struct {
	MaxLogPtr schema.LogPointer
	Tables    map[string]string
}

// Consistent takes a retry-until-stable snapshot: it fails with a
// ReplicationFailed error after dsettings.SnapshotRetryCap attempts if
// R/metadata never stops changing out from under it. Every snapshot it
// does return reflects the state of R/metadata at its own MaxLogPtr.
func Consistent(ctx context.Context, client zkc.Client, group schema.GroupPath) (Snapshot, error) {
	maxAttempts := dsettings.SnapshotRetryCap.Value()
	result, err := zkc.RetryUntilStable(ctx, "metadata snapshot", maxAttempts, func(ctx context.Context) (Snapshot, int64, bool, error) {
		snap, raced, err := fetchOnce(ctx, client, group)
		if err != nil {
			return Snapshot{}, 0, false, err
		}
		return snap, int64(snap.MaxLogPtr), raced, nil
	})
	if err != nil {
		if ddlerr.IsConnectionTriesExhausted(err) {
			return Snapshot{}, ddlerr.ReplicationFailed("metadata snapshot did not stabilize after %d attempts", maxAttempts)
		}
		return Snapshot{}, err
	}
	return result, nil
}

// fetchOnce is one iteration of the read: list R/metadata, fetch every
// child in parallel, then re-read R/max_log_ptr. raced reports whether any
// child fetch failed (e.g. a concurrent drop deleted it between the
// listing and the fetch).
func fetchOnce(ctx context.Context, client zkc.Client, group schema.GroupPath) (Snapshot, bool, error) {
	children, _, err := client.Children(ctx, group.Metadata())
	if err != nil {
		return Snapshot{}, false, err
	}

	tables := make(map[string]string, len(children))
	var mu sync.Mutex
	raced := false

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(16)
	for _, escaped := range children {
		escaped := escaped
		g.Go(func() error {
			data, _, err := client.Get(gctx, group.Metadata()+"/"+escaped)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				raced = true
				return nil // a missing child is a race to retry, not a fatal error
			}
			name, uerr := schema.UnescapeName(escaped)
			if uerr != nil {
				return ddlerr.Logical(uerr)
			}
			tables[name] = string(data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Snapshot{}, false, err
	}

	maxData, _, err := client.Get(ctx, group.MaxLogPtr())
	if err != nil {
		return Snapshot{}, false, err
	}
	maxPtr, err := schema.ParseLogPointer(string(maxData))
	if err != nil {
		return Snapshot{}, false, ddlerr.Logical(err)
	}

	return Snapshot{MaxLogPtr: maxPtr, Tables: tables}, raced, nil
}
