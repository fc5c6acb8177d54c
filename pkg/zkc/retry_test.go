// Copyright 2026 The SchemaRepl Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

package zkc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryUntilStableReturnsOnFirstMatchingPair(t *testing.T) {
	calls := 0
	read := func(ctx context.Context) (string, int64, bool, error) {
		calls++
		return "value", 7, false, nil
	}
	got, err := RetryUntilStable(context.Background(), "test", 5, read)
	require.NoError(t, err)
	assert.Equal(t, "value", got)
	assert.Equal(t, 2, calls, "should read twice: once for the initial attempt, once to confirm stability")
}

func TestRetryUntilStableRetriesUntilFingerprintSettles(t *testing.T) {
	fingerprints := []int64{1, 2, 3, 3}
	i := 0
	read := func(ctx context.Context) (int, int64, bool, error) {
		f := fingerprints[i]
		v := i
		i++
		return v, f, false, nil
	}
	got, err := RetryUntilStable(context.Background(), "test", 10, read)
	require.NoError(t, err)
	assert.Equal(t, 2, got) // value from the attempt whose fingerprint (3) matched the next attempt's
}

func TestRetryUntilStableGivesUpAfterMaxAttempts(t *testing.T) {
	n := int64(0)
	read := func(ctx context.Context) (int, int64, bool, error) {
		n++
		return 0, n, false, nil // fingerprint changes every time: never stabilizes
	}
	_, err := RetryUntilStable(context.Background(), "never stable", 4, read)
	require.Error(t, err)
}

func TestRetryUntilStableTreatsInternalRaceAsUnstable(t *testing.T) {
	calls := 0
	read := func(ctx context.Context) (int, int64, bool, error) {
		calls++
		raced := calls <= 2
		return calls, 1, raced, nil
	}
	got, err := RetryUntilStable(context.Background(), "test", 10, read)
	require.NoError(t, err)
	assert.Equal(t, 3, got)
}

func TestRetryUntilStablePropagatesReadError(t *testing.T) {
	boom := assertErr{"boom"}
	read := func(ctx context.Context) (int, int64, bool, error) {
		return 0, 0, false, boom
	}
	_, err := RetryUntilStable(context.Background(), "test", 5, read)
	assert.ErrorIs(t, err, boom)
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }
