// Copyright 2026 The SchemaRepl Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

package snapshot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replikadb/schemarepl/internal/testutils/fakezk"
	"github.com/replikadb/schemarepl/pkg/schema"
)

func TestConsistentReadsEveryTableAtCurrentMaxLogPtr(t *testing.T) {
	store := fakezk.NewStore()
	client := fakezk.Dial(store)
	defer client.Close()

	group := schema.GroupPath("/r")
	ctx := context.Background()
	_, err := client.Create(ctx, group.String(), nil, 0)
	require.NoError(t, err)
	_, err = client.Create(ctx, group.Metadata(), nil, 0)
	require.NoError(t, err)
	_, err = client.Create(ctx, group.MaxLogPtr(), schema.LogPointer(42).Bytes(), 0)
	require.NoError(t, err)
	_, err = client.Create(ctx, group.MetadataEntry("orders"), []byte("CREATE TABLE orders (...) ENGINE = Memory"), 0)
	require.NoError(t, err)
	_, err = client.Create(ctx, group.MetadataEntry("a/b"), []byte("CREATE TABLE `a/b` (...) ENGINE = Memory"), 0)
	require.NoError(t, err)

	snap, err := Consistent(ctx, client, group)
	require.NoError(t, err)
	assert.EqualValues(t, 42, snap.MaxLogPtr)
	assert.Len(t, snap.Tables, 2)
	assert.Equal(t, "CREATE TABLE orders (...) ENGINE = Memory", snap.Tables["orders"])
	assert.Equal(t, "CREATE TABLE `a/b` (...) ENGINE = Memory", snap.Tables["a/b"])
}

func TestConsistentReturnsEmptySnapshotForEmptyGroup(t *testing.T) {
	store := fakezk.NewStore()
	client := fakezk.Dial(store)
	defer client.Close()

	group := schema.GroupPath("/r")
	ctx := context.Background()
	_, err := client.Create(ctx, group.String(), nil, 0)
	require.NoError(t, err)
	_, err = client.Create(ctx, group.Metadata(), nil, 0)
	require.NoError(t, err)
	_, err = client.Create(ctx, group.MaxLogPtr(), schema.LogPointer(0).Bytes(), 0)
	require.NoError(t, err)

	snap, err := Consistent(ctx, client, group)
	require.NoError(t, err)
	assert.Empty(t, snap.Tables)
}
