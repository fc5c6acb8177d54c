// Copyright 2026 The SchemaRepl Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

// Package ddl implements the log-writer half of the replication log and
// states the log-follower's contract as a Go interface plus a reference
// implementation. The follower's *internal scheduling* — exactly when it
// wakes up to pull new entries — is a separate concern from its contract;
// what this package owns is the shape every follower implementation must
// have so Propose and the per-statement transactional pipeline can depend
// on it without caring how it is scheduled.
package ddl

import (
	"context"

	"github.com/replikadb/schemarepl/pkg/schema"
)

// Follower is the minimal contract a log-follower must satisfy: pull
// entries from R/log in strictly increasing order, execute them through a
// secondary-query metadata transaction, advance log_ptr on success, and
// hand off to recovery when the replica has fallen outside the retention
// window.
type Follower interface {
	// IsCurrentlyActive reports whether Startup has ever completed, used
	// by callers deciding whether it is safe to Propose yet.
	IsCurrentlyActive() bool
	// CommonHostID is the stable identifier this replica uses as a log
	// entry's Initiator field.
	CommonHostID() schema.HostID
	// TryEnqueueAndExecuteEntry allocates a monotone log suffix for entry
	// via the ephemeral-sequential counter trick, writes it to R/log, and —
	// for the replica that originated it — executes it as an initial query.
	// It returns the created log node's path, used by the status stream to
	// watch for replica acks.
	TryEnqueueAndExecuteEntry(ctx context.Context, entry schema.LogEntry) (nodePath string, err error)
	// Startup begins the follower's pull loop. It blocks until the
	// initial catch-up (if any) is scheduled, not until it completes.
	Startup(ctx context.Context) error
	// Shutdown stops the pull loop between entries and waits for it to
	// exit. It does not cancel an entry already being applied.
	Shutdown()
}
