// Copyright 2026 The SchemaRepl Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

package zkc

import (
	"context"

	"github.com/replikadb/schemarepl/pkg/ddlerr"
)

// StableRead is one attempt at a "read + version fingerprint" pass. It
// returns the value read, a fingerprint that changes iff the underlying
// data changed since the previous attempt, and whether the read itself
// observed a transient race (e.g. a child disappeared between listing and
// fetching) that should trigger a retry regardless of fingerprint.
type StableRead[T any] func(ctx context.Context) (value T, fingerprint int64, racedInternally bool, err error)

// RetryUntilStable drives a StableRead attempt up to maxAttempts times,
// returning the value from the first attempt whose fingerprint matches the
// *next* attempt's fingerprint and which did not race internally. This is
// the shared machinery behind snapshot.Consistent and clustertopo.Materialize:
// both are "list + parallel-fetch + re-check-version" loops that differ only
// in what they read.
func RetryUntilStable[T any](ctx context.Context, what string, maxAttempts int, read StableRead[T]) (T, error) {
	var zero T
	value, fingerprint, raced, err := read(ctx)
	if err != nil {
		return zero, err
	}
	for attempt := 1; attempt < maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		nextValue, nextFingerprint, nextRaced, err := read(ctx)
		if err != nil {
			return zero, err
		}
		if !raced && !nextRaced && fingerprint == nextFingerprint {
			return value, nil
		}
		value, fingerprint, raced = nextValue, nextFingerprint, nextRaced
	}
	return zero, ddlerr.ConnectionTriesExhausted(what, maxAttempts)
}
