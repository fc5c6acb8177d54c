// Copyright 2026 The SchemaRepl Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

// Package recovery implements quarantine-and-recreate recovery for a
// replica that has fallen behind its group's log retention window or
// joined with a local catalog the group has no record of. Classification
// (what to do with each table) is a pure function of a snapshot and a
// local listing; execution (the actual renames, drops, and recreates) is
// the only side-effecting half, so the two can be tested independently.
package recovery

import (
	"context"
	"math/rand"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/replikadb/schemarepl/pkg/catalog"
	"github.com/replikadb/schemarepl/pkg/ddlerr"
	"github.com/replikadb/schemarepl/pkg/dsettings"
	"github.com/replikadb/schemarepl/pkg/schema"
	"github.com/replikadb/schemarepl/pkg/snapshot"
	"github.com/replikadb/schemarepl/pkg/zkc"
)

// Action is what recovery decided to do with one locally-known or
// snapshot-known table name.
type Action int

const (
	// ActionKeep means the local definition already matches the group's
	// authoritative statement (or the table's own storage engine carries
	// its own replication identity and will reconcile itself).
	ActionKeep Action = iota
	// ActionDropDirect means the local table is not in the snapshot and
	// owns no on-disk data, so it is simply dropped.
	ActionDropDirect
	// ActionQuarantine means the local table disagrees with the group, or
	// is absent from it and owns on-disk data. Execute renames it aside
	// rather than destroying it when it owns on-disk data, and drops it
	// otherwise.
	ActionQuarantine
	// ActionRecreate means a table the snapshot names does not exist
	// locally under that name (either it was never created here, or it was
	// just quarantined) and must be created fresh from the snapshot text.
	ActionRecreate
)

// TableAction is one line item of a Plan.
type TableAction struct {
	Name               string
	Action             Action
	// Database is the local database the table was found in, set
	// whenever a local catalog.TableInfo produced this action (ActionKeep,
	// ActionDropDirect, ActionQuarantine, and the ActionRecreate that
	// follows a quarantine). It is empty for an ActionRecreate synthesized
	// purely from a snapshot entry with no local counterpart.
	Database           string
	CanonicalStatement string // snapshot text, set when Action == ActionRecreate
	LocalUUID          string // set when Action is ActionDropDirect or ActionQuarantine
	LocalIsDictionary  bool
	StoresDataOnDisk   bool
}

// Plan is the full classification result for one recovery pass.
type Plan struct {
	MaxLogPtr schema.LogPointer
	Actions   []TableAction
}

// QuarantineCount reports how many local tables this plan would quarantine
// or drop outright, the numerator of the safety-brake ratio in Execute.
func (p Plan) QuarantineCount() int {
	n := 0
	for _, a := range p.Actions {
		if a.Action == ActionQuarantine || a.Action == ActionDropDirect {
			n++
		}
	}
	return n
}

// Classify compares a consistent metadata snapshot against the replica's
// current local catalog listing and decides, per table, what recovery must
// do. It makes no coordination-store or local-catalog calls: every input is
// already in hand, which is what makes it independently testable against a
// fabricated snapshot and a fabricated table list.
//
// The historical bug this corrects: a table absent from the snapshot was
// once assumed local-only and dropped without first confirming it actually
// existed locally under that name. Here the local listing is the only
// thing ever iterated to produce a drop or quarantine action, so a name
// that isn't locally present can never be classified at all.
func Classify(snap snapshot.Snapshot, local []catalog.TableInfo) Plan {
	localByName := make(map[string]catalog.TableInfo, len(local))
	for _, t := range local {
		localByName[t.Name] = t
	}

	var actions []TableAction
	for _, t := range local {
		stmt, inSnapshot := snap.Tables[t.Name]
		switch {
		case inSnapshot && stmt == t.Statement:
			actions = append(actions, TableAction{Name: t.Name, Action: ActionKeep, Database: t.Database})
		case inSnapshot && t.ReplicatedMergeTreeUUID != "":
			// The storage engine itself carries replication identity and
			// will converge its own data independently of this metadata
			// layer; forcing a quarantine here would just destroy and
			// recreate a table that was already going to fix itself.
			actions = append(actions, TableAction{Name: t.Name, Action: ActionKeep, Database: t.Database})
		case inSnapshot:
			actions = append(actions, TableAction{
				Name: t.Name, Action: ActionQuarantine, Database: t.Database,
				LocalUUID: t.UUID, LocalIsDictionary: t.IsDictionary,
				StoresDataOnDisk: t.StoresDataOnDisk,
			})
			actions = append(actions, TableAction{Name: t.Name, Action: ActionRecreate, Database: t.Database, CanonicalStatement: stmt, LocalIsDictionary: t.IsDictionary})
		case t.StoresDataOnDisk:
			actions = append(actions, TableAction{
				Name: t.Name, Action: ActionQuarantine, Database: t.Database,
				LocalUUID: t.UUID, LocalIsDictionary: t.IsDictionary,
				StoresDataOnDisk: true,
			})
		default:
			actions = append(actions, TableAction{Name: t.Name, Action: ActionDropDirect, Database: t.Database, LocalUUID: t.UUID, LocalIsDictionary: t.IsDictionary})
		}
	}

	for name, stmt := range snap.Tables {
		if _, exists := localByName[name]; exists {
			continue
		}
		actions = append(actions, TableAction{Name: name, Action: ActionRecreate, CanonicalStatement: stmt})
	}

	sort.Slice(actions, func(i, j int) bool {
		if actions[i].Name != actions[j].Name {
			return actions[i].Name < actions[j].Name
		}
		return actions[i].Action < actions[j].Action
	})

	return Plan{MaxLogPtr: snap.MaxLogPtr, Actions: actions}
}

// brokenTablesSuffix names the per-database quarantine sibling every
// divergent or orphaned table is renamed into, rather than being destroyed
// outright: database "db" quarantines into "db_broken_tables". The suffix
// form guarantees the quarantine database's name always sorts after its
// source database's name, which is what makes locking the two in sorted
// order below an actual deadlock-avoidance guarantee rather than an
// arbitrary convention.
const brokenTablesSuffix = "_broken_tables"

func quarantineDatabaseFor(sourceDB string) string { return sourceDB + brokenTablesSuffix }

// Execute carries out plan against the local catalog and advances this
// replica's own log_ptr to plan.MaxLogPtr once every action has succeeded.
// It refuses to run if more than half of the locally known tables would be
// quarantined or dropped: a plan that extreme is far more likely to be the
// symptom of a snapshot read gone wrong (or a genuinely catastrophic
// divergence that needs an operator's eyes) than something safe to act on
// unattended.
func Execute(ctx context.Context, local catalog.LocalCatalog, client zkc.Client, group schema.GroupPath, self schema.ReplicaName, plan Plan) error {
	localCount := 0
	for _, a := range plan.Actions {
		if a.Action == ActionKeep || a.Action == ActionQuarantine || a.Action == ActionDropDirect {
			localCount++
		}
	}
	if localCount > 0 && plan.QuarantineCount()*2 > localCount {
		return ddlerr.ReplicationFailed("recovery plan would quarantine or drop %d of %d local tables, exceeding the safety threshold", plan.QuarantineCount(), localCount)
	}

	dbNames := make([]string, 0)
	for _, a := range plan.Actions {
		if a.Action == ActionQuarantine && a.StoresDataOnDisk && a.Database != "" {
			dbNames = append(dbNames, a.Database, quarantineDatabaseFor(a.Database))
		}
	}
	dbNames = dedupSorted(dbNames)
	if len(dbNames) > 0 {
		unlockDBs, err := local.LockTables(ctx, dbNames...)
		if err != nil {
			return errors.Wrap(err, "locking source and quarantine databases for recovery")
		}
		defer unlockDBs()
	}

	names := make([]string, 0, len(plan.Actions))
	for _, a := range plan.Actions {
		names = append(names, a.Name)
	}
	names = dedupSorted(names)
	unlock, err := local.LockTables(ctx, names...)
	if err != nil {
		return errors.Wrap(err, "locking tables for recovery")
	}
	defer unlock()

	for _, a := range plan.Actions {
		switch a.Action {
		case ActionKeep:
			continue
		case ActionDropDirect:
			if err := local.ShutdownAndDrop(ctx, a.Name); err != nil {
				return errors.Wrapf(err, "dropping %q", a.Name)
			}
		case ActionQuarantine:
			if !a.StoresDataOnDisk {
				if err := local.ShutdownAndDrop(ctx, a.Name); err != nil {
					return errors.Wrapf(err, "dropping dataless %q", a.Name)
				}
				continue
			}
			quarantineDB := quarantineDatabaseFor(a.Database)
			if err := local.EnsureQuarantineDatabase(ctx, quarantineDB); err != nil {
				return errors.Wrapf(err, "ensuring quarantine database %q", quarantineDB)
			}
			newName := quarantineName(a.Name, plan.MaxLogPtr)
			if err := local.MoveToQuarantine(ctx, a.Name, quarantineDB, newName); err != nil {
				return errors.Wrapf(err, "quarantining %q", a.Name)
			}
			if a.LocalUUID != "" {
				if err := local.WaitForUUIDReaped(ctx, a.LocalUUID); err != nil {
					return errors.Wrapf(err, "waiting for %q to be reaped out of quarantine", a.Name)
				}
			}
		case ActionRecreate:
			if err := local.CreateTable(ctx, a.Name, a.CanonicalStatement, a.LocalIsDictionary); err != nil {
				return errors.Wrapf(err, "recreating %q from snapshot", a.Name)
			}
		}
	}

	ptrPath := group.ReplicaLogPtr(self.FullName())
	if err := client.Multi(ctx, zkc.SetOp(ptrPath, plan.MaxLogPtr.Bytes(), -1)); err != nil {
		return errors.Wrap(err, "advancing log_ptr after recovery")
	}
	return nil
}

// quarantineName builds "<name>_<max_log_ptr>_<rand>" so a table quarantined
// more than once (e.g. across repeated recoveries before an operator
// intervenes) never collides with an earlier quarantined copy of itself.
func quarantineName(name string, maxLogPtr schema.LogPointer) string {
	digits := dsettings.RecoveryRandSuffixDigits.Value()
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('_')
	b.WriteString(maxLogPtr.String())
	b.WriteByte('_')
	for i := 0; i < digits; i++ {
		b.WriteByte(base36[rand.Intn(len(base36))])
	}
	return b.String()
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

func dedupSorted(names []string) []string {
	sort.Strings(names)
	out := names[:0]
	var prev string
	first := true
	for _, n := range names {
		if !first && n == prev {
			continue
		}
		out = append(out, n)
		prev = n
		first = false
	}
	return out
}
