// Copyright 2026 The SchemaRepl Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

package ddl

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/replikadb/schemarepl/pkg/ddlerr"
	"github.com/replikadb/schemarepl/pkg/schema"
	"github.com/replikadb/schemarepl/pkg/zkc"
)

// Enqueue implements the atomic enqueue protocol: it
// allocates a strictly-increasing log suffix by racing an
// ephemeral-sequential create against R/counter, then commits a single
// multi-op that creates the persistent log entry and deletes the counter
// node. Either both halves become visible, or neither does, and a failed
// commit deletes the counter node so no orphan is left behind. The suffix
// allocated for a failed enqueue is not reused, so R/log skips that number.
//
// Every proposed DDL statement goes through this routine. The join-time
// heartbeat (joinWithHeartbeat in pkg/replica) uses the same counter
// protocol with its own multi-op, which also registers the replica.
func Enqueue(ctx context.Context, client zkc.Client, group schema.GroupPath, entry schema.LogEntry) (nodePath string, err error) {
	payload, err := schema.EncodeEntry(entry)
	if err != nil {
		return "", err
	}

	counterPath, err := client.Create(ctx, group.CounterPrefix(), nil, zkc.FlagEphemeral|zkc.FlagSequence)
	if err != nil {
		return "", errors.Wrap(err, "allocating log sequence counter")
	}
	suffix, err := counterSuffix(counterPath, group.CounterPrefix())
	if err != nil {
		return "", ddlerr.Logical(err)
	}

	target := group.LogEntry(suffix)
	err = client.Multi(ctx,
		zkc.CreateOp(target, payload, zkc.FlagPersistent),
		zkc.DeleteOp(counterPath, -1),
	)
	if err != nil {
		_ = client.Delete(ctx, counterPath, -1)
		return "", errors.Wrapf(err, "committing log entry %s", target)
	}

	if err := bumpMaxLogPtr(ctx, client, group, suffix); err != nil {
		// max_log_ptr is advisory bookkeeping consumed by snapshot/recovery
		// retry-until-stable reads; the entry itself is already durable, so
		// the path is returned alongside the error and the caller logs it
		// rather than failing the proposal.
		return target, err
	}
	return target, nil
}

// counterSuffix extracts the 10-digit sequence ZooKeeper appended to
// prefix when creating counterPath.
func counterSuffix(counterPath, prefix string) (int64, error) {
	if !strings.HasPrefix(counterPath, prefix) {
		return 0, errors.Newf("counter node %q does not have expected prefix %q", counterPath, prefix)
	}
	suffix := strings.TrimPrefix(counterPath, prefix)
	return schema.ParseLogSuffix(schema.LogEntryPrefix + suffix)
}

// bumpMaxLogPtr advances R/max_log_ptr to suffix if suffix is larger than
// the currently stored value, retrying on a concurrent writer's version
// bump (optimistic, since multiple replicas may enqueue concurrently).
func bumpMaxLogPtr(ctx context.Context, client zkc.Client, group schema.GroupPath, suffix int64) error {
	const maxAttempts = 10
	for attempt := 0; attempt < maxAttempts; attempt++ {
		data, stat, err := client.Get(ctx, group.MaxLogPtr())
		if err != nil {
			return errors.Wrap(err, "reading max_log_ptr")
		}
		current, err := schema.ParseLogPointer(string(data))
		if err != nil {
			return ddlerr.Logical(err)
		}
		if int64(current) >= suffix {
			return nil
		}
		err = client.Multi(ctx, zkc.SetOp(group.MaxLogPtr(), schema.LogPointer(suffix).Bytes(), stat.Version))
		if err == nil {
			return nil
		}
	}
	return ddlerr.ConnectionTriesExhausted("advancing max_log_ptr", maxAttempts)
}
