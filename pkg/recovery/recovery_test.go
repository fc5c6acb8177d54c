// Copyright 2026 The SchemaRepl Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

package recovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replikadb/schemarepl/internal/testutils/fakezk"
	"github.com/replikadb/schemarepl/pkg/catalog"
	"github.com/replikadb/schemarepl/pkg/schema"
	"github.com/replikadb/schemarepl/pkg/snapshot"
)

func TestClassifyKeepsTablesThatMatchTheSnapshot(t *testing.T) {
	snap := snapshot.Snapshot{MaxLogPtr: 10, Tables: map[string]string{
		"orders": "CREATE TABLE orders (id Int64) ENGINE = MergeTree ORDER BY id",
	}}
	local := []catalog.TableInfo{
		{Name: "orders", Statement: "CREATE TABLE orders (id Int64) ENGINE = MergeTree ORDER BY id"},
	}
	plan := Classify(snap, local)
	require.Len(t, plan.Actions, 1)
	assert.Equal(t, ActionKeep, plan.Actions[0].Action)
	assert.Zero(t, plan.QuarantineCount())
}

func TestClassifyQuarantinesDivergentTables(t *testing.T) {
	snap := snapshot.Snapshot{MaxLogPtr: 10, Tables: map[string]string{
		"orders": "CREATE TABLE orders (id Int64, total Float64) ENGINE = MergeTree ORDER BY id",
	}}
	local := []catalog.TableInfo{
		{Name: "orders", Statement: "CREATE TABLE orders (id Int64) ENGINE = MergeTree ORDER BY id", UUID: "u1", StoresDataOnDisk: true},
	}
	plan := Classify(snap, local)
	require.Len(t, plan.Actions, 2)
	byAction := map[Action]TableAction{}
	for _, a := range plan.Actions {
		byAction[a.Action] = a
	}
	quarantine, ok := byAction[ActionQuarantine]
	require.True(t, ok)
	assert.Equal(t, "u1", quarantine.LocalUUID)
	recreate, ok := byAction[ActionRecreate]
	require.True(t, ok)
	assert.Equal(t, snap.Tables["orders"], recreate.CanonicalStatement)
}

func TestClassifyDropsDirectTablesWithNoOnDiskData(t *testing.T) {
	snap := snapshot.Snapshot{MaxLogPtr: 10, Tables: map[string]string{}}
	local := []catalog.TableInfo{
		{Name: "v1", Statement: "CREATE VIEW v1 AS SELECT 1", StoresDataOnDisk: false},
	}
	plan := Classify(snap, local)
	require.Len(t, plan.Actions, 1)
	assert.Equal(t, ActionDropDirect, plan.Actions[0].Action)
}

func TestClassifyQuarantinesOrphanedTableWithOnDiskData(t *testing.T) {
	snap := snapshot.Snapshot{MaxLogPtr: 10, Tables: map[string]string{}}
	local := []catalog.TableInfo{
		{Name: "orders", Statement: "CREATE TABLE orders (id Int64) ENGINE = MergeTree ORDER BY id", UUID: "u2", StoresDataOnDisk: true},
	}
	plan := Classify(snap, local)
	require.Len(t, plan.Actions, 1)
	assert.Equal(t, ActionQuarantine, plan.Actions[0].Action)
}

func TestClassifyRecreatesTablesMissingLocallyButPresentInSnapshot(t *testing.T) {
	snap := snapshot.Snapshot{MaxLogPtr: 10, Tables: map[string]string{
		"new_table": "CREATE TABLE new_table (x Int32) ENGINE = Memory",
	}}
	plan := Classify(snap, nil)
	require.Len(t, plan.Actions, 1)
	assert.Equal(t, ActionRecreate, plan.Actions[0].Action)
	assert.Equal(t, "new_table", plan.Actions[0].Name)
}

func TestClassifyNeverDropsOrQuarantinesATableAbsentLocally(t *testing.T) {
	// The historical bug this prevents: a name absent from the snapshot
	// must never be classified as drop/quarantine unless it is actually
	// present in the local listing.
	snap := snapshot.Snapshot{MaxLogPtr: 10, Tables: map[string]string{}}
	local := []catalog.TableInfo{}
	plan := Classify(snap, local)
	assert.Empty(t, plan.Actions)
}

func TestClassifyKeepsReplicatedMergeTreeTablesDespiteDivergentText(t *testing.T) {
	snap := snapshot.Snapshot{MaxLogPtr: 10, Tables: map[string]string{
		"events": "CREATE TABLE events (...) ENGINE = ReplicatedMergeTree(...)",
	}}
	local := []catalog.TableInfo{
		{Name: "events", Statement: "CREATE TABLE events (different) ENGINE = ReplicatedMergeTree(...)",
			ReplicatedMergeTreeUUID: "engine-uuid-1", StoresDataOnDisk: true},
	}
	plan := Classify(snap, local)
	require.Len(t, plan.Actions, 1)
	assert.Equal(t, ActionKeep, plan.Actions[0].Action)
}

type fakeLocalCatalog struct {
	quarantined          map[string]string
	quarantinedDatabases []string
	dropped              []string
	created              map[string]string
	lockedNames          []string
}

func newFakeLocalCatalog() *fakeLocalCatalog {
	return &fakeLocalCatalog{quarantined: map[string]string{}, created: map[string]string{}}
}

func (f *fakeLocalCatalog) ListTables(ctx context.Context) ([]catalog.TableInfo, error) { return nil, nil }
func (f *fakeLocalCatalog) TableStatement(ctx context.Context, name string) (string, bool, error) {
	return "", false, nil
}
func (f *fakeLocalCatalog) CreateTable(ctx context.Context, name, statement string, isDictionary bool) error {
	f.created[name] = statement
	return nil
}
func (f *fakeLocalCatalog) DropTable(ctx context.Context, name string, isDictionary bool) error {
	f.dropped = append(f.dropped, name)
	return nil
}
func (f *fakeLocalCatalog) DetachPermanently(ctx context.Context, name string) error { return nil }
func (f *fakeLocalCatalog) RenameTable(ctx context.Context, oldName, newName string, exchange bool) error {
	return nil
}
func (f *fakeLocalCatalog) AlterTable(ctx context.Context, name, newStatement string) error {
	return nil
}
func (f *fakeLocalCatalog) EnsureQuarantineDatabase(ctx context.Context, name string) error {
	f.quarantinedDatabases = append(f.quarantinedDatabases, name)
	return nil
}
func (f *fakeLocalCatalog) MoveToQuarantine(ctx context.Context, name, quarantineDB, newName string) error {
	f.quarantined[name] = newName
	return nil
}
func (f *fakeLocalCatalog) ShutdownAndDrop(ctx context.Context, name string) error {
	f.dropped = append(f.dropped, name)
	return nil
}
func (f *fakeLocalCatalog) WaitForUUIDReaped(ctx context.Context, uuid string) error { return nil }
func (f *fakeLocalCatalog) LockTables(ctx context.Context, names ...string) (func(), error) {
	f.lockedNames = append(f.lockedNames, names...)
	return func() {}, nil
}

func TestExecuteQuarantinesAndRecreatesThenAdvancesLogPtr(t *testing.T) {
	store := fakezk.NewStore()
	client := fakezk.Dial(store)
	defer client.Close()

	group := schema.GroupPath("/r")
	ctx := context.Background()
	_, err := client.Create(ctx, group.String(), nil, 0)
	require.NoError(t, err)
	_, err = client.Create(ctx, group.Replicas(), nil, 0)
	require.NoError(t, err)
	_, err = client.Create(ctx, group.Replica("s1|r1"), []byte("h1"), 0)
	require.NoError(t, err)
	_, err = client.Create(ctx, group.ReplicaLogPtr("s1|r1"), schema.LogPointer(0).Bytes(), 0)
	require.NoError(t, err)

	plan := Plan{
		MaxLogPtr: 9,
		Actions: []TableAction{
			{Name: "orders", Action: ActionQuarantine, Database: "mydb", LocalUUID: "u1", StoresDataOnDisk: true},
			{Name: "orders", Action: ActionRecreate, Database: "mydb", CanonicalStatement: "CREATE TABLE orders (...) ENGINE = MergeTree ORDER BY id"},
			{Name: "customers", Action: ActionKeep, Database: "mydb"},
			{Name: "products", Action: ActionKeep, Database: "mydb"},
		},
	}

	local := newFakeLocalCatalog()
	self := schema.ReplicaName{Shard: "s1", Replica: "r1"}
	require.NoError(t, Execute(ctx, local, client, group, self, plan))

	assert.Contains(t, local.quarantined, "orders")
	assert.Equal(t, "CREATE TABLE orders (...) ENGINE = MergeTree ORDER BY id", local.created["orders"])
	assert.Equal(t, []string{"mydb", "mydb_broken_tables"}, local.lockedNames[:2],
		"the source database must be locked before its quarantine sibling, in sorted order")
	assert.Contains(t, local.quarantinedDatabases, "mydb_broken_tables")

	data, _, err := client.Get(ctx, group.ReplicaLogPtr("s1|r1"))
	require.NoError(t, err)
	ptr, err := schema.ParseLogPointer(string(data))
	require.NoError(t, err)
	assert.EqualValues(t, 9, ptr)
}

func TestExecuteRefusesPlanExceedingSafetyThreshold(t *testing.T) {
	store := fakezk.NewStore()
	client := fakezk.Dial(store)
	defer client.Close()

	group := schema.GroupPath("/r")
	ctx := context.Background()
	_, err := client.Create(ctx, group.String(), nil, 0)
	require.NoError(t, err)
	_, err = client.Create(ctx, group.Replicas(), nil, 0)
	require.NoError(t, err)
	_, err = client.Create(ctx, group.Replica("s1|r1"), []byte("h1"), 0)
	require.NoError(t, err)
	_, err = client.Create(ctx, group.ReplicaLogPtr("s1|r1"), schema.LogPointer(0).Bytes(), 0)
	require.NoError(t, err)

	plan := Plan{
		MaxLogPtr: 9,
		Actions: []TableAction{
			{Name: "t1", Action: ActionQuarantine, LocalUUID: "u1", StoresDataOnDisk: true},
			{Name: "t2", Action: ActionQuarantine, LocalUUID: "u2", StoresDataOnDisk: true},
			{Name: "t3", Action: ActionKeep},
		},
	}

	local := newFakeLocalCatalog()
	self := schema.ReplicaName{Shard: "s1", Replica: "r1"}
	err = Execute(ctx, local, client, group, self, plan)
	require.Error(t, err)
	assert.Empty(t, local.quarantined, "the safety brake must trip before any local mutation happens")
}

func TestQuarantineNameHasNameAndLogPtrPrefix(t *testing.T) {
	a := quarantineName("orders", schema.LogPointer(5))
	b := quarantineName("orders", schema.LogPointer(5))
	assert.Contains(t, a, "orders_5_")
	assert.Contains(t, b, "orders_5_")
}

func TestDedupSortedRemovesDuplicatesAndSorts(t *testing.T) {
	out := dedupSorted([]string{"b", "a", "b", "c", "a"})
	assert.Equal(t, []string{"a", "b", "c"}, out)
}
