// Copyright 2026 The SchemaRepl Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

package catalog

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/replikadb/schemarepl/pkg/ddlerr"
	"github.com/replikadb/schemarepl/pkg/schema"
	"github.com/replikadb/schemarepl/pkg/zkc"
)

// Transaction bundles the coordination-store side effects of one DDL
// statement. A query handler appends exactly one of Create/Alter/Remove/
// Rename to it, and the caller commits it as a single multi-op transaction
// before the local catalog mutation is made durable, so a coordination-store
// failure never leaves a local change with no authoritative counterpart.
type Transaction struct {
	Group          schema.GroupPath
	IsInitialQuery bool

	ops []zkc.Op
}

// NewTransaction starts an empty metadata transaction for group. Only
// initial queries append anything; a secondary query (the log-follower
// applying an already-committed entry) constructs a Transaction with
// IsInitialQuery=false and never calls the Append* methods, since the
// coordination-store side effect was already committed by whichever
// replica executed the statement as its initial query.
func NewTransaction(group schema.GroupPath, isInitialQuery bool) *Transaction {
	return &Transaction{Group: group, IsInitialQuery: isInitialQuery}
}

// AppendCreateTable records the coordination-store effect of CREATE
// TABLE/DICTIONARY: the metadata znode must not already exist, protecting
// against duplicate names inside the group.
func (t *Transaction) AppendCreateTable(name, canonicalStatement string) {
	if !t.IsInitialQuery {
		return
	}
	t.ops = append(t.ops, zkc.CreateOp(t.Group.MetadataEntry(name), []byte(canonicalStatement), zkc.FlagPersistent))
}

// AppendAlterTable records the coordination-store effect of an ALTER:
// overwrite the metadata znode with version=-1, since the log order (not
// the znode's own version counter) is the authority here.
func (t *Transaction) AppendAlterTable(name, newCanonicalStatement string) {
	if !t.IsInitialQuery {
		return
	}
	t.ops = append(t.ops, zkc.SetOp(t.Group.MetadataEntry(name), []byte(newCanonicalStatement), -1))
}

// AppendDrop records the coordination-store effect of DROP, permanent
// DETACH, or DROP DICTIONARY: remove the metadata znode.
func (t *Transaction) AppendDrop(name string) {
	if !t.IsInitialQuery {
		return
	}
	t.ops = append(t.ops, zkc.DeleteOp(t.Group.MetadataEntry(name), -1))
}

// AppendRename records the coordination-store effect of RENAME within the
// same group: remove the old metadata znode and create the new one with
// the same statement text. An exchange rename uses AppendExchange instead,
// since newName already exists in that case.
func (t *Transaction) AppendRename(oldName, newName, statement string) {
	if !t.IsInitialQuery {
		return
	}
	t.ops = append(t.ops,
		zkc.DeleteOp(t.Group.MetadataEntry(oldName), -1),
		zkc.CreateOp(t.Group.MetadataEntry(newName), []byte(statement), zkc.FlagPersistent),
	)
}

// AppendExchange records the coordination-store effect of EXCHANGE TABLES
// a, b: both metadata znodes are removed and recreated with the other's
// statement text.
func (t *Transaction) AppendExchange(nameA, stmtA, nameB, stmtB string) {
	if !t.IsInitialQuery {
		return
	}
	t.ops = append(t.ops,
		zkc.DeleteOp(t.Group.MetadataEntry(nameA), -1),
		zkc.DeleteOp(t.Group.MetadataEntry(nameB), -1),
		zkc.CreateOp(t.Group.MetadataEntry(nameA), []byte(stmtB), zkc.FlagPersistent),
		zkc.CreateOp(t.Group.MetadataEntry(nameB), []byte(stmtA), zkc.FlagPersistent),
	)
}

// Empty reports whether no coordination-store ops were ever appended
// (true for every secondary-query transaction, and for an initial query
// whose DDL kind has no coordination-store side effect).
func (t *Transaction) Empty() bool { return len(t.ops) == 0 }

// Commit executes every appended op as one atomic multi-op transaction.
// This must happen *before* the local catalog mutation is made durable: if
// Commit succeeds but the caller's subsequent local mutation fails, the
// log-follower will reprocess the entry later and re-apply the local
// change (eventual agreement between the coordination store and the local
// catalog); if Commit itself fails, the caller must not touch the local
// catalog at all.
func (t *Transaction) Commit(ctx context.Context, client zkc.Client) error {
	if t.Empty() {
		return nil
	}
	if err := client.Multi(ctx, t.ops...); err != nil {
		if errors.Is(err, zkc.ErrNodeExists) {
			return ddlerr.BadArgument("a table or dictionary with that name already exists in the replication group")
		}
		return err
	}
	return nil
}
