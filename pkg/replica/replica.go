// Copyright 2026 The SchemaRepl Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

package replica

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/replikadb/schemarepl/pkg/catalog"
	"github.com/replikadb/schemarepl/pkg/ddl"
	"github.com/replikadb/schemarepl/pkg/ddlerr"
	"github.com/replikadb/schemarepl/pkg/ddlmetric"
	"github.com/replikadb/schemarepl/pkg/logutil"
	"github.com/replikadb/schemarepl/pkg/recovery"
	"github.com/replikadb/schemarepl/pkg/schema"
	"github.com/replikadb/schemarepl/pkg/snapshot"
	"github.com/replikadb/schemarepl/pkg/zkc"
)

// Replica is one node's membership in a replication group: its identity,
// its coordination-store client, its log-follower, and the local catalog
// it keeps in agreement with the group's authoritative metadata. It
// exclusively owns its own R/replicas/<self> subtree and its local on-disk
// metadata.
type Replica struct {
	Group    schema.GroupPath
	Identity Identity
	Client   zkc.Client
	Local    catalog.LocalCatalog
	Follower ddl.Follower
	Writer   *ddl.Writer
	metrics  *ddlmetric.Registry
}

// Join bootstraps the group schema if this is the first node, then
// registers (or validates) this replica's identity, then wires up its
// follower. The caller still must call Startup on the returned Replica's
// Follower to begin pulling log entries (kept separate from construction
// so tests can inspect a freshly joined Replica before its background
// loop starts).
func Join(ctx context.Context, client zkc.Client, group schema.GroupPath, id Identity, local catalog.LocalCatalog, executor ddl.Executor, metrics *ddlmetric.Registry) (*Replica, error) {
	if _, err := ensureGroupSchema(ctx, client, group); err != nil {
		return nil, err
	}

	fullName := id.Name.FullName()
	existing, _, err := client.Get(ctx, group.Replica(fullName))
	switch {
	case err == nil:
		if schema.HostID(existing) != id.HostID {
			return nil, ddlerr.ReplicaAlreadyExist(fullName)
		}
		// Same host-id: this is a restart of the same node, not a
		// collision. Fall through without re-registering.
	case errors.Is(err, zkc.ErrNoNode):
		if _, joinErr := joinWithHeartbeat(ctx, client, group, id.Name, id.HostID); joinErr != nil {
			return nil, joinErr
		}
	default:
		return nil, err
	}

	follower := ddl.NewFollower(ddl.Config{
		Group:    group,
		Self:     id.Name,
		HostID:   id.HostID,
		Client:   client,
		Executor: executor,
		Metrics:  metrics,
		LocalCatalogNonEmpty: func(ctx context.Context) (bool, error) {
			tables, err := local.ListTables(ctx)
			if err != nil {
				return false, err
			}
			return len(tables) > 0, nil
		},
		Recover: func(ctx context.Context) error {
			return runRecovery(ctx, client, group, id.Name, local, metrics)
		},
	})

	r := &Replica{
		Group:    group,
		Identity: id,
		Client:   client,
		Local:    local,
		Follower: follower,
		metrics:  metrics,
	}
	r.Writer = &ddl.Writer{Group: group, Client: client, Follower: follower}
	return r, nil
}

// runRecovery takes a consistent snapshot, classifies this replica's local
// catalog against it, and executes the resulting plan. It is the follower's
// RecoveryFunc: invoked when the pull loop finds itself too far behind
// R/log's retention window, or joining with local data the group has no
// record of.
func runRecovery(ctx context.Context, client zkc.Client, group schema.GroupPath, self schema.ReplicaName, local catalog.LocalCatalog, metrics *ddlmetric.Registry) error {
	snap, err := snapshot.Consistent(ctx, client, group)
	if err != nil {
		return errors.Wrap(err, "taking metadata snapshot for recovery")
	}
	tables, err := local.ListTables(ctx)
	if err != nil {
		return errors.Wrap(err, "listing local tables for recovery")
	}
	plan := recovery.Classify(snap, tables)
	if err := recovery.Execute(ctx, local, client, group, self, plan); err != nil {
		return err
	}
	if metrics != nil {
		quarantined := 0
		for _, a := range plan.Actions {
			if a.Action == recovery.ActionQuarantine && a.StoresDataOnDisk {
				quarantined++
			}
		}
		metrics.QuarantinedTables.Add(float64(quarantined))
	}
	return nil
}

// Startup begins the replica's follower loop.
func (r *Replica) Startup(ctx context.Context) error {
	return r.Follower.Startup(ctx)
}

// Drop marks this replica's registration DROPPED, drops it from the local
// catalog, removes its own subtree, and — only if this happens to be the
// last replica standing — removes the group root entirely.
//
// The last-replica race here is deliberately not closed: if this replica
// crashes between removing R/replicas/<self> and the R/replicas emptiness
// check, R is left behind with no replicas in it. That is a known
// limitation to be addressed by a separate reaper, not by this core.
func (r *Replica) Drop(ctx context.Context) error {
	fullName := r.Identity.Name.FullName()
	replicaPath := r.Group.Replica(fullName)

	if err := r.Client.Multi(ctx, zkc.SetOp(replicaPath, []byte(schema.DroppedMarker), -1)); err != nil {
		return errors.Wrap(err, "marking replica dropped")
	}

	if err := r.dropLocalTables(ctx); err != nil {
		logutil.Errorf(ctx, "dropping local tables during replica drop: %v", err)
	}

	if err := removeRecursive(ctx, r.Client, replicaPath); err != nil {
		return errors.Wrapf(err, "removing %s", replicaPath)
	}

	if err := r.Client.Delete(ctx, r.Group.Replicas(), -1); err != nil {
		// Non-empty R/replicas (other live siblings) or a benign race:
		// either way, we are not the last replica out, so R stays.
		return nil
	}
	if err := removeRecursive(ctx, r.Client, r.Group.String()); err != nil {
		logutil.Errorf(ctx, "removing group root %s after last replica dropped: %v", r.Group, err)
	}
	return nil
}

func (r *Replica) dropLocalTables(ctx context.Context) error {
	tables, err := r.Local.ListTables(ctx)
	if err != nil {
		return err
	}
	for _, t := range tables {
		if err := r.Local.DropTable(ctx, t.Name, t.IsDictionary); err != nil {
			return err
		}
	}
	return nil
}

// removeRecursive deletes path and every descendant, children first.
func removeRecursive(ctx context.Context, client zkc.Client, path string) error {
	children, _, err := client.Children(ctx, path)
	if err != nil {
		if errors.Is(err, zkc.ErrNoNode) {
			return nil
		}
		return err
	}
	for _, c := range children {
		if err := removeRecursive(ctx, client, path+"/"+c); err != nil {
			return err
		}
	}
	return client.Delete(ctx, path, -1)
}

// Shutdown stops the follower, releases it, then closes the
// coordination-store session. Delegating to the local catalog's own
// shutdown is the owning process's responsibility — this only tears down
// what pkg/replica itself owns. The cyclic replica/follower reference is
// resolved by this ordering: the follower is stopped and dropped before
// anything that might outlive this Replica value tries to use it again.
func (r *Replica) Shutdown(ctx context.Context) {
	if r.Follower != nil {
		r.Follower.Shutdown()
		r.Follower = nil
	}
	r.Client.Close()
}
