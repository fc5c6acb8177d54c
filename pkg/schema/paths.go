// Copyright 2026 The SchemaRepl Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

// Package schema describes the znode layout of a replication group inside
// the coordination store, and the escaping/encoding rules used to name and
// serialize the objects that live there.
package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/replikadb/schemarepl/pkg/ddlerr"
)

// GroupPath is a validated coordination-store path identifying a
// replication group root R: non-empty, rooted at "/", trailing slash
// stripped.
type GroupPath string

// NewGroupPath validates and normalizes a candidate group root.
func NewGroupPath(raw string) (GroupPath, error) {
	if raw == "" {
		return "", ddlerr.BadArgument("replication group path must not be empty")
	}
	if !strings.HasPrefix(raw, "/") {
		return "", ddlerr.BadArgument("replication group path %q must be rooted at /", raw)
	}
	trimmed := strings.TrimRight(raw, "/")
	if trimmed == "" {
		// raw was exactly "/" or a run of slashes; the root itself is not a
		// valid group path since every group needs its own subtree.
		return "", ddlerr.BadArgument("replication group path %q must not be the store root", raw)
	}
	return GroupPath(trimmed), nil
}

func (r GroupPath) String() string { return string(r) }

// Log is R/log, the ordered sequence of executable entries.
func (r GroupPath) Log() string { return string(r) + "/log" }

// LogEntry is R/log/query-NNNNNNNNNN for the given numeric suffix.
func (r GroupPath) LogEntry(suffix int64) string {
	return fmt.Sprintf("%s/query-%010d", r.Log(), suffix)
}

// LogEntryAck is the per-replica ack marker a follower creates under a log
// entry once it has applied it, watched by the propose status stream.
func (r GroupPath) LogEntryAck(suffix int64, fullReplicaName string) string {
	return r.LogEntry(suffix) + "/ack-" + fullReplicaName
}

// LogEntryPrefix is the prefix every log entry name starts with, used to
// parse a suffix back out of a znode name returned by a children listing.
const LogEntryPrefix = "query-"

// ParseLogSuffix extracts the numeric suffix from a bare log entry name
// (e.g. "query-0000000042" -> 42, nil).
func ParseLogSuffix(name string) (int64, error) {
	if !strings.HasPrefix(name, LogEntryPrefix) {
		return 0, errors.Newf("log entry name %q missing %q prefix", name, LogEntryPrefix)
	}
	n, err := strconv.ParseInt(strings.TrimPrefix(name, LogEntryPrefix), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing log entry suffix from %q", name)
	}
	return n, nil
}

// Replicas is R/replicas, the parent of every replica registration.
func (r GroupPath) Replicas() string { return string(r) + "/replicas" }

// Replica is R/replicas/<shard>|<replica> for a given full replica name.
func (r GroupPath) Replica(fullName string) string {
	return r.Replicas() + "/" + fullName
}

// ReplicaLogPtr is the log_ptr child of a replica's registration node.
func (r GroupPath) ReplicaLogPtr(fullName string) string {
	return r.Replica(fullName) + "/log_ptr"
}

// Counter is R/counter, the ephemeral-sequential allocator parent.
func (r GroupPath) Counter() string { return string(r) + "/counter" }

// CounterPrefix is R/counter/cnt-, the sequential node prefix. Bootstrap
// also creates and immediately deletes a plain (non-sequential) node at
// exactly this literal path, in the same transaction that creates
// R/counter itself, so the parent's cversion is primed and the first real
// sequential child allocated afterward comes out numbered 1.
func (r GroupPath) CounterPrefix() string { return r.Counter() + "/cnt-" }

// Metadata is R/metadata, the parent of every authoritative CREATE
// statement.
func (r GroupPath) Metadata() string { return string(r) + "/metadata" }

// MetadataEntry is R/metadata/<escaped-name> for a given unescaped table or
// dictionary name.
func (r GroupPath) MetadataEntry(name string) string {
	return r.Metadata() + "/" + EscapeName(name)
}

// MaxLogPtr is R/max_log_ptr.
func (r GroupPath) MaxLogPtr() string { return string(r) + "/max_log_ptr" }

// LogsToKeep is R/logs_to_keep.
func (r GroupPath) LogsToKeep() string { return string(r) + "/logs_to_keep" }

// DroppedMarker is the sentinel value a replica's registration node is set
// to when the replica (or the whole group) is dropped.
const DroppedMarker = "DROPPED"

// LogPointer is a replica-local cursor into R/log: the numeric suffix of
// the last entry this replica has applied. Zero means "nothing applied
// yet".
type LogPointer int64

// ParseLogPointer decodes the decimal string stored at a log_ptr znode or
// at R/max_log_ptr.
func ParseLogPointer(s string) (LogPointer, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing log pointer %q", s)
	}
	if n < 0 {
		return 0, ddlerr.Logical(errors.Newf("log pointer %q must not be negative", s))
	}
	return LogPointer(n), nil
}

func (p LogPointer) String() string { return strconv.FormatInt(int64(p), 10) }

// Bytes is a convenience for znode payloads, which are always plain bytes.
func (p LogPointer) Bytes() []byte { return []byte(p.String()) }
