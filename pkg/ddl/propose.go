// Copyright 2026 The SchemaRepl Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

package ddl

import (
	"context"
	"time"

	"github.com/replikadb/schemarepl/pkg/ddlerr"
	"github.com/replikadb/schemarepl/pkg/schema"
	"github.com/replikadb/schemarepl/pkg/zkc"
)

// AlterCommandKind tags one command inside a (possibly multi-command)
// ALTER statement. Only the schema/TTL subset is replicable;
// physical data-manipulation commands are rejected.
type AlterCommandKind int

const (
	AlterAddColumn AlterCommandKind = iota
	AlterDropColumn
	AlterModifyColumn
	AlterRenameColumn
	AlterModifyTTL
	AlterAddIndex
	AlterDropIndex
	AlterAttachPartition     // data-manipulation, unsupported
	AlterDetachPartition     // data-manipulation, unsupported
	AlterFreezePartition     // data-manipulation, unsupported
	AlterUpdateInPlace       // data-manipulation, unsupported
)

var supportedAlterCommands = map[AlterCommandKind]bool{
	AlterAddColumn:     true,
	AlterDropColumn:    true,
	AlterModifyColumn:  true,
	AlterRenameColumn:  true,
	AlterModifyTTL:     true,
	AlterAddIndex:      true,
	AlterDropIndex:     true,
}

// IsSupportedAlterCommand reports whether kind may be replicated: schema
// and TTL alterations are allowed, physical data-manipulation alterations
// are rejected.
func IsSupportedAlterCommand(kind AlterCommandKind) bool { return supportedAlterCommands[kind] }

// Query is one DDL statement a client asked this replica to execute.
type Query struct {
	// IsInitialQuery must be true: propose rejects a query relayed from
	// another node.
	IsInitialQuery bool
	// OnCluster must be false: the replication group already is the
	// cluster.
	OnCluster bool
	// Kind and AlterCommands are only consulted when Kind indicates an
	// ALTER statement.
	Kind          DDLStatementKind
	AlterCommands []AlterCommandKind

	// Database is the name the client's local session resolved the
	// statement's target database to. Propose does not read it and does
	// not rewrite CanonicalText.
	Database string
	// CanonicalText is the statement text Propose logs, unchanged; every
	// replica rebinds its own local database name only if this text carries
	// no database name.
	CanonicalText string

	// Wait and TaskTimeout control the returned status stream and its
	// cancellation semantics. TaskTimeout == 0 means "don't wait; let the
	// follower finish in the background."
	Wait        bool
	TaskTimeout time.Duration
}

// DDLStatementKind is the subset of catalog.DDLKind relevant to proposal
// validation (ALTER is the only kind with internal structure propose must
// inspect).
type DDLStatementKind int

const (
	StatementAlter DDLStatementKind = iota
	StatementOther
)

// Writer proposes client DDL into the replication log.
type Writer struct {
	Group    schema.GroupPath
	Client   zkc.Client
	Follower Follower
}

// Propose validates q and hands q.CanonicalText, as given, to the
// follower's enqueue-and-execute path; it does not strip a database name
// from the text. It returns a StatusStream the caller may wait on, or nil
// if the caller asked not to wait.
func (w *Writer) Propose(ctx context.Context, q Query) (*StatusStream, error) {
	if !q.IsInitialQuery {
		return nil, ddlerr.BadArgument("propose only accepts initial queries, not ones relayed from another replica")
	}
	if q.OnCluster {
		return nil, ddlerr.UnsupportedDDL("ON CLUSTER is redundant inside a replicated database: the replication group is already the cluster")
	}
	if q.Kind == StatementAlter {
		for _, cmd := range q.AlterCommands {
			if !IsSupportedAlterCommand(cmd) {
				return nil, ddlerr.UnsupportedDDL("ALTER command kind %v is not implemented for replicated databases", cmd)
			}
		}
	}

	entry := schema.LogEntry{
		Query:     q.CanonicalText,
		Initiator: w.Follower.CommonHostID(),
	}

	nodePath, err := w.Follower.TryEnqueueAndExecuteEntry(ctx, entry)
	if err != nil {
		return nil, err
	}

	if !q.Wait || q.TaskTimeout == 0 {
		return nil, nil
	}
	return newStatusStream(w.Client, w.Group, nodePath, q.TaskTimeout), nil
}
