// Copyright 2026 The SchemaRepl Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

package replica

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replikadb/schemarepl/internal/testutils/fakezk"
	"github.com/replikadb/schemarepl/pkg/catalog"
	"github.com/replikadb/schemarepl/pkg/ddl"
	"github.com/replikadb/schemarepl/pkg/ddlerr"
	"github.com/replikadb/schemarepl/pkg/schema"
)

type noopLocalCatalog struct{ tables []catalog.TableInfo }

func (c *noopLocalCatalog) ListTables(ctx context.Context) ([]catalog.TableInfo, error) {
	return c.tables, nil
}
func (c *noopLocalCatalog) TableStatement(ctx context.Context, name string) (string, bool, error) {
	return "", false, nil
}
func (c *noopLocalCatalog) CreateTable(ctx context.Context, name, statement string, isDictionary bool) error {
	return nil
}
func (c *noopLocalCatalog) DropTable(ctx context.Context, name string, isDictionary bool) error {
	return nil
}
func (c *noopLocalCatalog) DetachPermanently(ctx context.Context, name string) error { return nil }
func (c *noopLocalCatalog) RenameTable(ctx context.Context, oldName, newName string, exchange bool) error {
	return nil
}
func (c *noopLocalCatalog) AlterTable(ctx context.Context, name, newStatement string) error {
	return nil
}
func (c *noopLocalCatalog) EnsureQuarantineDatabase(ctx context.Context, name string) error {
	return nil
}
func (c *noopLocalCatalog) MoveToQuarantine(ctx context.Context, name, quarantineDB, newName string) error {
	return nil
}
func (c *noopLocalCatalog) ShutdownAndDrop(ctx context.Context, name string) error { return nil }
func (c *noopLocalCatalog) WaitForUUIDReaped(ctx context.Context, uuid string) error { return nil }
func (c *noopLocalCatalog) LockTables(ctx context.Context, names ...string) (func(), error) {
	return func() {}, nil
}

type noopExecutor struct{}

func (noopExecutor) Execute(ctx context.Context, entry schema.LogEntry, txn *catalog.Transaction) error {
	return nil
}

func TestJoinBootstrapsGroupOnFirstReplica(t *testing.T) {
	store := fakezk.NewStore()
	client := fakezk.Dial(store)
	defer client.Close()

	group := schema.GroupPath("/r")
	ctx := context.Background()
	id, err := NewIdentity("shard1", "replica1", "node1", 9000)
	require.NoError(t, err)

	r, err := Join(ctx, client, group, id, &noopLocalCatalog{}, noopExecutor{}, nil)
	require.NoError(t, err)
	assert.Equal(t, id, r.Identity)

	exists, _, err := client.Exists(ctx, group.Replica("shard1|replica1"))
	require.NoError(t, err)
	assert.True(t, exists)

	children, _, err := client.Children(ctx, group.Log())
	require.NoError(t, err)
	require.Len(t, children, 1, "the first join must produce exactly one heartbeat log entry")
	assert.Equal(t, "query-0000000001", children[0])
}

func TestJoinSecondReplicaDoesNotReBootstrap(t *testing.T) {
	store := fakezk.NewStore()
	client1 := fakezk.Dial(store)
	defer client1.Close()
	client2 := fakezk.Dial(store)
	defer client2.Close()

	group := schema.GroupPath("/r")
	ctx := context.Background()

	id1, err := NewIdentity("shard1", "replica1", "node1", 9000)
	require.NoError(t, err)
	_, err = Join(ctx, client1, group, id1, &noopLocalCatalog{}, noopExecutor{}, nil)
	require.NoError(t, err)

	id2, err := NewIdentity("shard1", "replica2", "node2", 9000)
	require.NoError(t, err)
	r2, err := Join(ctx, client2, group, id2, &noopLocalCatalog{}, noopExecutor{}, nil)
	require.NoError(t, err)
	assert.Equal(t, id2, r2.Identity)
}

func TestJoinSameCoordinatesDifferentHostIDCollides(t *testing.T) {
	store := fakezk.NewStore()
	client1 := fakezk.Dial(store)
	defer client1.Close()
	client2 := fakezk.Dial(store)
	defer client2.Close()

	group := schema.GroupPath("/r")
	ctx := context.Background()

	id1, err := NewIdentity("shard1", "replica1", "node1", 9000)
	require.NoError(t, err)
	_, err = Join(ctx, client1, group, id1, &noopLocalCatalog{}, noopExecutor{}, nil)
	require.NoError(t, err)

	id2, err := NewIdentity("shard1", "replica1", "node2", 9001)
	require.NoError(t, err)
	_, err = Join(ctx, client2, group, id2, &noopLocalCatalog{}, noopExecutor{}, nil)
	require.Error(t, err)
	assert.True(t, ddlerr.IsReplicaAlreadyExist(err))
}

func TestJoinSameCoordinatesSameHostIDIsARestart(t *testing.T) {
	store := fakezk.NewStore()
	client1 := fakezk.Dial(store)
	defer client1.Close()
	client2 := fakezk.Dial(store)
	defer client2.Close()

	group := schema.GroupPath("/r")
	ctx := context.Background()

	id, err := NewIdentity("shard1", "replica1", "node1", 9000)
	require.NoError(t, err)
	_, err = Join(ctx, client1, group, id, &noopLocalCatalog{}, noopExecutor{}, nil)
	require.NoError(t, err)

	r2, err := Join(ctx, client2, group, id, &noopLocalCatalog{}, noopExecutor{}, nil)
	require.NoError(t, err)
	assert.Equal(t, id, r2.Identity)
}

func TestDropRemovesGroupRootWhenLastReplicaLeaves(t *testing.T) {
	store := fakezk.NewStore()
	client := fakezk.Dial(store)
	defer client.Close()

	group := schema.GroupPath("/r")
	ctx := context.Background()
	id, err := NewIdentity("shard1", "replica1", "node1", 9000)
	require.NoError(t, err)

	r, err := Join(ctx, client, group, id, &noopLocalCatalog{}, noopExecutor{}, nil)
	require.NoError(t, err)

	require.NoError(t, r.Drop(ctx))

	exists, _, err := client.Exists(ctx, group.String())
	require.NoError(t, err)
	assert.False(t, exists, "the group root must be removed once its last replica drops")
}

func TestDropLeavesGroupRootWhenSiblingsRemain(t *testing.T) {
	store := fakezk.NewStore()
	client1 := fakezk.Dial(store)
	defer client1.Close()
	client2 := fakezk.Dial(store)
	defer client2.Close()

	group := schema.GroupPath("/r")
	ctx := context.Background()

	id1, err := NewIdentity("shard1", "replica1", "node1", 9000)
	require.NoError(t, err)
	r1, err := Join(ctx, client1, group, id1, &noopLocalCatalog{}, noopExecutor{}, nil)
	require.NoError(t, err)

	id2, err := NewIdentity("shard1", "replica2", "node2", 9000)
	require.NoError(t, err)
	_, err = Join(ctx, client2, group, id2, &noopLocalCatalog{}, noopExecutor{}, nil)
	require.NoError(t, err)

	require.NoError(t, r1.Drop(ctx))

	exists, _, err := client1.Exists(ctx, group.String())
	require.NoError(t, err)
	assert.True(t, exists)

	existsReplica, _, err := client1.Exists(ctx, group.Replica("shard1|replica1"))
	require.NoError(t, err)
	assert.False(t, existsReplica)
}

func TestShutdownStopsAndReleasesFollower(t *testing.T) {
	store := fakezk.NewStore()
	client := fakezk.Dial(store)

	group := schema.GroupPath("/r")
	ctx := context.Background()
	id, err := NewIdentity("shard1", "replica1", "node1", 9000)
	require.NoError(t, err)

	r, err := Join(ctx, client, group, id, &noopLocalCatalog{}, noopExecutor{}, nil)
	require.NoError(t, err)
	require.NoError(t, r.Startup(ctx))

	r.Shutdown(ctx)
	assert.Nil(t, r.Follower)
}

var _ ddl.Executor = noopExecutor{}
