// Copyright 2026 The SchemaRepl Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

package ddl

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/replikadb/schemarepl/pkg/catalog"
	"github.com/replikadb/schemarepl/pkg/ddlmetric"
	"github.com/replikadb/schemarepl/pkg/dsettings"
	"github.com/replikadb/schemarepl/pkg/logutil"
	"github.com/replikadb/schemarepl/pkg/schema"
	"github.com/replikadb/schemarepl/pkg/syncutil"
	"github.com/replikadb/schemarepl/pkg/zkc"
)

// Executor is the statement interpreter's entry point: given a decoded log
// entry and the metadata transaction it must participate in, apply the
// statement to the local catalog. The follower calls it once per entry with
// IsInitialQuery=false; TryEnqueueAndExecuteEntry, on the proposing query's
// own goroutine, calls the same Executor with IsInitialQuery=true.
type Executor interface {
	Execute(ctx context.Context, entry schema.LogEntry, txn *catalog.Transaction) error
}

// RecoveryFunc triggers lost-replica recovery. It is injected rather than
// imported directly so pkg/ddl does not depend on pkg/recovery (which
// itself depends on pkg/snapshot and pkg/catalog) — the follower only needs
// to know recovery is *triggerable*, not how it works.
type RecoveryFunc func(ctx context.Context) error

// Config wires a follower to its replica's identity, its coordination
// client, and the external collaborators it drives.
type Config struct {
	Group    schema.GroupPath
	Self     schema.ReplicaName
	HostID   schema.HostID
	Client   zkc.Client
	Executor Executor
	Recover  RecoveryFunc
	Metrics  *ddlmetric.Registry
	// PollInterval bounds how long the pull loop sleeps between checks of
	// R/log when it has caught up to max_log_ptr.
	PollInterval time.Duration
	// LocalCatalogNonEmpty reports whether this replica's local catalog
	// already has tables in it, used to decide whether a fresh join with
	// log_ptr == 0 actually needs recovery instead of being a genuinely
	// empty new node. A nil func is treated as "always empty" (a brand-new
	// node joining a brand-new group, the common case).
	LocalCatalogNonEmpty func(ctx context.Context) (bool, error)
}

type follower struct {
	cfg Config

	active int32 // atomic bool, set once Startup's loop goroutine is running

	cancel context.CancelFunc
	done   chan struct{}

	mu     syncutil.Mutex
	logPtr schema.LogPointer
}

// NewFollower constructs a reference Follower implementation. It does not
// start the pull loop; call Startup for that.
func NewFollower(cfg Config) Follower {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	return &follower{cfg: cfg}
}

func (f *follower) IsCurrentlyActive() bool { return atomic.LoadInt32(&f.active) == 1 }

func (f *follower) CommonHostID() schema.HostID { return f.cfg.HostID }

func (f *follower) TryEnqueueAndExecuteEntry(ctx context.Context, entry schema.LogEntry) (string, error) {
	nodePath, err := Enqueue(ctx, f.cfg.Client, f.cfg.Group, entry)
	if err != nil && nodePath != "" {
		// The entry is committed; only the max_log_ptr bump failed.
		logutil.Warningf(ctx, "log entry %s committed but max_log_ptr was not advanced: %v", nodePath, err)
		err = nil
	}
	if err != nil {
		if f.cfg.Metrics != nil {
			f.cfg.Metrics.ProposalFailures.Inc()
		}
		return "", err
	}
	if f.cfg.Metrics != nil {
		f.cfg.Metrics.ProposalsTotal.Inc()
	}
	if entry.IsHeartbeat() {
		return nodePath, nil
	}
	// The initiating replica executes its own proposal as an initial
	// query immediately rather than waiting to observe it come back
	// through the pull loop: this keeps the proposing session's own view
	// of the catalog consistent with what it just wrote without an extra
	// round trip through R/log.
	txn := catalog.NewTransaction(f.cfg.Group, true /* isInitialQuery */)
	if err := f.cfg.Executor.Execute(ctx, entry, txn); err != nil {
		if f.cfg.Metrics != nil {
			f.cfg.Metrics.ProposalFailures.Inc()
		}
		return nodePath, err
	}
	suffix, perr := schema.ParseLogSuffix(nodePath[len(f.cfg.Group.Log())+1:])
	if perr == nil {
		f.advanceLogPtr(ctx, schema.LogPointer(suffix))
		f.ack(ctx, suffix)
	}
	return nodePath, nil
}

// ack records that this replica has applied the entry at suffix, so a
// status stream watching that entry's children sees this replica as done.
func (f *follower) ack(ctx context.Context, suffix int64) {
	path := f.cfg.Group.LogEntryAck(suffix, f.cfg.Self.FullName())
	if _, err := f.cfg.Client.Create(ctx, path, nil, zkc.FlagPersistent); err != nil && err != zkc.ErrNodeExists {
		logutil.Errorf(ctx, "recording ack for entry %d: %v", suffix, err)
	}
}

func (f *follower) Startup(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.done = make(chan struct{})

	data, _, err := f.cfg.Client.Get(runCtx, f.cfg.Group.ReplicaLogPtr(f.cfg.Self.FullName()))
	if err == nil {
		if ptr, perr := schema.ParseLogPointer(string(data)); perr == nil {
			f.mu.Lock()
			f.setLogPtrLocked(ptr)
			f.mu.Unlock()
		}
	}

	atomic.StoreInt32(&f.active, 1)
	go f.loop(runCtx)
	return nil
}

func (f *follower) Shutdown() {
	if f.cancel != nil {
		f.cancel()
	}
	if f.done != nil {
		<-f.done
	}
}

func (f *follower) loop(ctx context.Context) {
	defer close(f.done)
	ticker := time.NewTicker(f.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.pullOnce(ctx)
		}
	}
}

// pullOnce pulls and applies every entry strictly after the current
// log_ptr, in increasing suffix order.
func (f *follower) pullOnce(ctx context.Context) {
	entries, _, err := f.cfg.Client.Children(ctx, f.cfg.Group.Log())
	if err != nil {
		logutil.Errorf(ctx, "listing %s: %v", f.cfg.Group.Log(), err)
		return
	}
	maxData, _, err := f.cfg.Client.Get(ctx, f.cfg.Group.MaxLogPtr())
	var maxPtr schema.LogPointer
	if err == nil {
		maxPtr, _ = schema.ParseLogPointer(string(maxData))
	}
	keepData, _, err := f.cfg.Client.Get(ctx, f.cfg.Group.LogsToKeep())
	logsToKeep := dsettings.LogsToKeep.Value()
	if err == nil {
		if n, perr := schema.ParseLogPointer(string(keepData)); perr == nil {
			logsToKeep = int64(n)
		}
	}

	current := f.currentLogPtr()
	if f.cfg.Metrics != nil {
		f.cfg.Metrics.FollowerLag.Set(float64(int64(maxPtr) - int64(current)))
	}

	if current == 0 && f.needsRecoveryOnEmptyJoin(ctx) {
		f.triggerRecovery(ctx)
		return
	}

	pending := pendingSuffixes(entries, current)
	for _, suffix := range pending {
		if ctx.Err() != nil {
			// Shutdown: stop between entries.
			return
		}
		if int64(maxPtr)-logsToKeep > int64(suffix) {
			f.triggerRecovery(ctx)
			return
		}
		// An entry that has started applying is not cancelled by Shutdown.
		if !f.applyEntry(context.WithoutCancel(ctx), suffix) {
			return
		}
	}
}

// needsRecoveryOnEmptyJoin reports the join-time recovery trigger: log_ptr
// == 0 on a non-empty local catalog means this replica has data the group
// has no record of it having caught up on.
func (f *follower) needsRecoveryOnEmptyJoin(ctx context.Context) bool {
	if f.cfg.LocalCatalogNonEmpty == nil {
		return false
	}
	nonEmpty, err := f.cfg.LocalCatalogNonEmpty(ctx)
	if err != nil {
		logutil.Errorf(ctx, "checking local catalog emptiness: %v", err)
		return false
	}
	return nonEmpty
}

func (f *follower) triggerRecovery(ctx context.Context) {
	if f.cfg.Recover == nil {
		logutil.Warningf(ctx, "replica fell outside retention but no recovery hook is configured")
		return
	}
	if f.cfg.Metrics != nil {
		f.cfg.Metrics.RecoveriesTotal.Inc()
	}
	if err := f.cfg.Recover(ctx); err != nil {
		logutil.Errorf(ctx, "recovery failed: %v", err)
		return
	}
	data, _, err := f.cfg.Client.Get(ctx, f.cfg.Group.MaxLogPtr())
	if err != nil {
		return
	}
	if ptr, perr := schema.ParseLogPointer(string(data)); perr == nil {
		f.mu.Lock()
		f.setLogPtrLocked(ptr)
		f.mu.Unlock()
	}
}

func (f *follower) applyEntry(ctx context.Context, suffix int64) bool {
	data, _, err := f.cfg.Client.Get(ctx, f.cfg.Group.LogEntry(suffix))
	if err != nil {
		logutil.Errorf(ctx, "reading log entry %d: %v", suffix, err)
		return false
	}
	entry, err := schema.DecodeEntry(data)
	if err != nil {
		logutil.Errorf(ctx, "decoding log entry %d: %v", suffix, err)
		return false
	}
	if !entry.IsHeartbeat() {
		txn := catalog.NewTransaction(f.cfg.Group, false /* isInitialQuery */)
		if err := f.cfg.Executor.Execute(ctx, entry, txn); err != nil {
			// Log and leave log_ptr unchanged so this entry is retried on
			// the next pull.
			logutil.Errorf(ctx, "applying log entry %d: %v", suffix, err)
			return false
		}
	}
	f.advanceLogPtr(ctx, schema.LogPointer(suffix))
	f.ack(ctx, suffix)
	if f.cfg.Metrics != nil {
		f.cfg.Metrics.EntriesApplied.Inc()
	}
	return true
}

func (f *follower) advanceLogPtr(ctx context.Context, ptr schema.LogPointer) {
	if err := f.cfg.Client.Multi(ctx, zkc.SetOp(f.cfg.Group.ReplicaLogPtr(f.cfg.Self.FullName()), ptr.Bytes(), -1)); err != nil {
		logutil.Errorf(ctx, "advancing log_ptr to %d: %v", ptr, err)
		return
	}
	f.mu.Lock()
	f.setLogPtrLocked(ptr)
	f.mu.Unlock()
}

// currentLogPtr reads logPtr under lock.
func (f *follower) currentLogPtr() schema.LogPointer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logPtr
}

// setLogPtrLocked requires the caller to already hold f.mu.
func (f *follower) setLogPtrLocked(ptr schema.LogPointer) {
	f.mu.AssertHeld()
	f.logPtr = ptr
}

// pendingSuffixes parses every "query-NNNN" child name, keeps the ones
// strictly greater than after, and returns them sorted ascending.
func pendingSuffixes(children []string, after schema.LogPointer) []int64 {
	var out []int64
	for _, name := range children {
		suffix, err := schema.ParseLogSuffix(name)
		if err != nil {
			continue
		}
		if suffix > int64(after) {
			out = append(out, suffix)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
