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
	"github.com/replikadb/schemarepl/pkg/zkc"
)

func TestStatusStreamWaitReturnsImmediatelyWhenAllAcked(t *testing.T) {
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

	nodePath, err := Enqueue(ctx, client, group, schema.LogEntry{Query: "SELECT 1"})
	require.NoError(t, err)

	ack := nodePath + "/ack-s1|r1"
	_, err = client.Create(ctx, ack, nil, zkc.FlagPersistent)
	require.NoError(t, err)

	stream := newStatusStream(client, group, nodePath, time.Second)
	statuses, err := stream.Wait(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, "s1|r1", statuses[0].FullName)
	assert.True(t, statuses[0].Acked)
}

func TestStatusStreamWaitTimesOutWithPartialAcks(t *testing.T) {
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
	_, err = client.Create(ctx, group.Replica("s1|r2"), []byte("h2"), 0)
	require.NoError(t, err)

	nodePath, err := Enqueue(ctx, client, group, schema.LogEntry{Query: "SELECT 1"})
	require.NoError(t, err)

	stream := newStatusStream(client, group, nodePath, 50*time.Millisecond)
	statuses, err := stream.Wait(ctx)
	require.NoError(t, err, "a timed-out wait abandons waiting, not the commit, so it is not itself an error")
	assert.Len(t, statuses, 2)
	for _, s := range statuses {
		assert.False(t, s.Acked)
	}
}
