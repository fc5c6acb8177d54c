// Copyright 2026 The SchemaRepl Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

package replica

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/replikadb/schemarepl/pkg/ddlerr"
	"github.com/replikadb/schemarepl/pkg/dsettings"
	"github.com/replikadb/schemarepl/pkg/schema"
	"github.com/replikadb/schemarepl/pkg/zkc"
)

// ensureGroupSchema creates R and its fixed children in one atomic
// multi-op. Exactly one concurrent creator wins; every other caller
// observes ErrNodeExists on the root create and treats that as the benign
// "group already exists" outcome.
//
// created reports whether this call is the one that created the group.
func ensureGroupSchema(ctx context.Context, client zkc.Client, group schema.GroupPath) (created bool, err error) {
	ops := []zkc.Op{
		zkc.CreateOp(group.String(), nil, zkc.FlagPersistent),
		zkc.CreateOp(group.Log(), nil, zkc.FlagPersistent),
		zkc.CreateOp(group.Replicas(), nil, zkc.FlagPersistent),
		zkc.CreateOp(group.Counter(), nil, zkc.FlagPersistent),
		// A throwaway, literal (non-sequential) node at exactly the
		// sequence prefix itself: created and deleted here, inside the
		// same transaction, so R/counter's child numbering is primed
		// before any real ephemeral-sequential allocation happens.
		zkc.CreateOp(group.CounterPrefix(), nil, zkc.FlagPersistent),
		zkc.DeleteOp(group.CounterPrefix(), -1),
		zkc.CreateOp(group.Metadata(), nil, zkc.FlagPersistent),
		zkc.CreateOp(group.MaxLogPtr(), []byte("1"), zkc.FlagPersistent),
		zkc.CreateOp(group.LogsToKeep(), schema.LogPointer(dsettings.LogsToKeep.Value()).Bytes(), zkc.FlagPersistent),
	}
	err = client.Multi(ctx, ops...)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, zkc.ErrNodeExists):
		return false, nil
	default:
		return false, ddlerr.CoordinationUnavailable(err)
	}
}

// joinWithHeartbeat registers R/replicas/<self> and, in the same atomic
// transaction, writes an empty heartbeat entry into R/log via the
// ephemeral-sequential counter trick. It returns the created log entry's
// path.
func joinWithHeartbeat(ctx context.Context, client zkc.Client, group schema.GroupPath, self schema.ReplicaName, hostID schema.HostID) (logNodePath string, err error) {
	counterPath, err := client.Create(ctx, group.CounterPrefix(), nil, zkc.FlagEphemeral|zkc.FlagSequence)
	if err != nil {
		return "", errors.Wrap(err, "allocating join heartbeat sequence")
	}
	suffix, err := parseCounterSuffix(counterPath, group.CounterPrefix())
	if err != nil {
		return "", ddlerr.Logical(err)
	}

	heartbeat := schema.LogEntry{Initiator: hostID}
	payload, err := schema.EncodeEntry(heartbeat)
	if err != nil {
		return "", err
	}

	logPath := group.LogEntry(suffix)
	replicaPath := group.Replica(self.FullName())
	err = client.Multi(ctx,
		zkc.CreateOp(replicaPath, []byte(hostID.String()), zkc.FlagPersistent),
		zkc.CreateOp(group.ReplicaLogPtr(self.FullName()), schema.LogPointer(0).Bytes(), zkc.FlagPersistent),
		zkc.CreateOp(logPath, payload, zkc.FlagPersistent),
		zkc.DeleteOp(counterPath, -1),
	)
	if err != nil {
		return "", errors.Wrap(err, "registering replica and join heartbeat")
	}
	return logPath, nil
}

func parseCounterSuffix(counterPath, prefix string) (int64, error) {
	if len(counterPath) < len(prefix) {
		return 0, errors.Newf("counter node %q shorter than its own prefix %q", counterPath, prefix)
	}
	return schema.ParseLogSuffix(schema.LogEntryPrefix + counterPath[len(prefix):])
}
