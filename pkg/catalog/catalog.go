// Copyright 2026 The SchemaRepl Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

// Package catalog describes the local catalog this module mutates in
// lockstep with the coordination store, and the metadata-transaction
// machinery that keeps the two in agreement. The SQL parser, AST, and
// statement interpreter that actually perform local mutations belong to the
// surrounding database engine; this package only names the narrow surface
// this subsystem drives.
package catalog

import "context"

// TableInfo is everything recovery and the metadata transaction need to
// know about one locally existing table or dictionary.
type TableInfo struct {
	Name       string
	// Database is the local database this table lives in, used by
	// recovery to derive the per-database quarantine sibling it moves a
	// divergent table into.
	Database   string
	UUID       string
	Statement  string // canonical CREATE text, as cached in local metadata
	IsDatabase bool   // true for a sibling database entry, never a table
	IsDictionary bool
	// StoresDataOnDisk is false for engines (e.g. pure views, or
	// dictionaries backed entirely by an external source) that own no
	// on-disk data of their own; recovery can drop these without a
	// reaping wait.
	StoresDataOnDisk bool
	// ReplicatedMergeTreeUUID is set when the table's storage engine is a
	// ReplicatedMergeTree-family engine carrying its own UUID-keyed
	// replication identity, used by recovery's divergence check to skip
	// quarantining tables whose storage layer will reconcile itself.
	ReplicatedMergeTreeUUID string
}

// DDLKind is the tagged variant of replicated DDL this subsystem supports: a
// closed set of statement shapes, each with its own op-list builder. An
// unsupported kind (e.g. a data-manipulating ALTER command) is simply
// absent from this set rather than a runtime exception path.
type DDLKind int

const (
	DDLCreateTable DDLKind = iota
	DDLCreateDictionary
	DDLDropTable
	DDLDropDictionary
	DDLDetachPermanent
	DDLRenameTable
	DDLAlterTable
)

// LocalCatalog is the narrow surface this module needs from the engine's
// transactional catalog: enough to enumerate what exists locally, to read
// back a table's cached canonical statement (needed by rename), and to
// apply each of the seven DDL kinds above. Mutations are expected to run
// inside whatever local transaction/DDL-guard machinery the host engine
// already provides; this module's only extra requirement is that they
// compose atomically with the coordination-store Transaction commit.
type LocalCatalog interface {
	// ListTables returns every table/dictionary currently registered in
	// the local catalog's default database, used by recovery's
	// classification pass, by the follower's join-time emptiness check, and
	// by replica drop.
	ListTables(ctx context.Context) ([]TableInfo, error)
	// TableStatement returns the locally cached canonical CREATE text for
	// name, or ok=false if name does not exist locally.
	TableStatement(ctx context.Context, name string) (stmt string, ok bool, err error)

	CreateTable(ctx context.Context, name, statement string, isDictionary bool) error
	DropTable(ctx context.Context, name string, isDictionary bool) error
	DetachPermanently(ctx context.Context, name string) error
	// RenameTable renames oldName to newName. If exchange is true both
	// names must already exist and their definitions are swapped
	// atomically.
	RenameTable(ctx context.Context, oldName, newName string, exchange bool) error
	AlterTable(ctx context.Context, name, newStatement string) error

	// EnsureQuarantineDatabase creates, idempotently, the named sibling
	// database recovery moves a divergent table into. Callers derive name
	// per source database, so this may be invoked more than once per
	// recovery pass with different names.
	EnsureQuarantineDatabase(ctx context.Context, name string) error
	// MoveToQuarantine renames name into the quarantine database under
	// newName, for tables recovery must not destroy outright.
	MoveToQuarantine(ctx context.Context, name, quarantineDB, newName string) error
	// ShutdownAndDrop drops a table that owns no on-disk data of its own.
	ShutdownAndDrop(ctx context.Context, name string) error
	// WaitForUUIDReaped blocks until uuid's storage has been fully torn
	// down after a drop, so a later recreate can reuse the table's name.
	WaitForUUIDReaped(ctx context.Context, uuid string) error

	// LockTables acquires per-table DDL guards in the order given by the
	// caller; callers are responsible for presenting names in sorted
	// order so lock ordering is consistent across every call site that
	// takes more than one table lock at once.
	LockTables(ctx context.Context, names ...string) (unlock func(), err error)
}
