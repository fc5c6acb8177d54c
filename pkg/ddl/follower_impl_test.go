// Copyright 2026 The SchemaRepl Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

package ddl

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replikadb/schemarepl/internal/testutils/fakezk"
	"github.com/replikadb/schemarepl/pkg/schema"
)

func TestFollowerPullOnceAppliesPendingEntriesInOrder(t *testing.T) {
	store := fakezk.NewStore()
	writerClient := fakezk.Dial(store)
	defer writerClient.Close()
	followerClient := fakezk.Dial(store)
	defer followerClient.Close()

	group := schema.GroupPath("/r")
	ctx := context.Background()
	require.NoError(t, bootstrapGroupForTest(ctx, writerClient, group))
	_, err := writerClient.Create(ctx, group.Replicas(), nil, 0)
	require.NoError(t, err)
	_, err = writerClient.Create(ctx, group.Replica("s1|r2"), []byte("h2"), 0)
	require.NoError(t, err)
	_, err = writerClient.Create(ctx, group.ReplicaLogPtr("s1|r2"), schema.LogPointer(0).Bytes(), 0)
	require.NoError(t, err)
	_, err = writerClient.Create(ctx, group.LogsToKeep(), schema.LogPointer(1000).Bytes(), 0)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := Enqueue(ctx, writerClient, group, schema.LogEntry{Query: "stmt"})
		require.NoError(t, err)
	}

	exec := &recordingExecutor{}
	f := &follower{cfg: Config{
		Group: group, Self: schema.ReplicaName{Shard: "s1", Replica: "r2"}, HostID: "h2",
		Client: followerClient, Executor: exec,
	}}
	f.pullOnce(ctx)

	assert.Len(t, exec.applied, 3)
	assert.EqualValues(t, 3, f.currentLogPtr())
}

func TestFollowerTriggersRecoveryWhenLaggedBeyondRetention(t *testing.T) {
	store := fakezk.NewStore()
	writerClient := fakezk.Dial(store)
	defer writerClient.Close()
	followerClient := fakezk.Dial(store)
	defer followerClient.Close()

	group := schema.GroupPath("/r")
	ctx := context.Background()
	require.NoError(t, bootstrapGroupForTest(ctx, writerClient, group))
	_, err := writerClient.Create(ctx, group.Replicas(), nil, 0)
	require.NoError(t, err)
	_, err = writerClient.Create(ctx, group.Replica("s1|r2"), []byte("h2"), 0)
	require.NoError(t, err)
	_, err = writerClient.Create(ctx, group.ReplicaLogPtr("s1|r2"), schema.LogPointer(0).Bytes(), 0)
	require.NoError(t, err)
	_, err = writerClient.Create(ctx, group.LogsToKeep(), schema.LogPointer(2).Bytes(), 0)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := Enqueue(ctx, writerClient, group, schema.LogEntry{Query: "stmt"})
		require.NoError(t, err)
	}

	recovered := false
	exec := &recordingExecutor{}
	f := &follower{cfg: Config{
		Group: group, Self: schema.ReplicaName{Shard: "s1", Replica: "r2"}, HostID: "h2",
		Client: followerClient, Executor: exec,
		Recover: func(ctx context.Context) error {
			recovered = true
			return nil
		},
	}}
	f.pullOnce(ctx)

	assert.True(t, recovered)
}

func TestFollowerStartupLoadsPersistedLogPtr(t *testing.T) {
	store := fakezk.NewStore()
	client := fakezk.Dial(store)
	defer client.Close()

	group := schema.GroupPath("/r")
	ctx := context.Background()
	require.NoError(t, bootstrapGroupForTest(ctx, client, group))
	_, err := client.Create(ctx, group.Replicas(), nil, 0)
	require.NoError(t, err)
	_, err = client.Create(ctx, group.Replica("s1|r1"), []byte("h1"), 0)
	require.NoError(t, err)
	_, err = client.Create(ctx, group.ReplicaLogPtr("s1|r1"), schema.LogPointer(7).Bytes(), 0)
	require.NoError(t, err)

	f := NewFollower(Config{
		Group: group, Self: schema.ReplicaName{Shard: "s1", Replica: "r1"}, HostID: "h1",
		Client: client, Executor: &recordingExecutor{}, PollInterval: time.Hour,
	})
	require.NoError(t, f.Startup(ctx))
	defer f.Shutdown()

	impl := f.(*follower)
	assert.EqualValues(t, 7, impl.currentLogPtr())
}

func TestSetLogPtrLockedPanicsWithoutHoldingLock(t *testing.T) {
	f := &follower{}
	assert.Panics(t, func() {
		f.setLogPtrLocked(schema.LogPointer(1))
	})
}
