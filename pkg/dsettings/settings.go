// Copyright 2026 The SchemaRepl Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

// Package dsettings holds the cluster-wide tunables of the replication
// subsystem: each setting is declared once, with a default and a short
// doc string, rather than scattered magic numbers.
package dsettings

import (
	"fmt"
	"time"
)

// Setting is the minimal typed-value contract every tunable below
// implements; it exists so a config-file loader can walk a registry
// generically instead of special-casing each field.
type Setting[T any] struct {
	Name    string
	Doc     string
	Default T
	value   T
	set     bool
}

// Value returns the configured value, or the default if unset.
func (s *Setting[T]) Value() T {
	if s.set {
		return s.value
	}
	return s.Default
}

// Override sets an explicit value, e.g. from a loaded config file or CLI
// flag.
func (s *Setting[T]) Override(v T) {
	s.value = v
	s.set = true
}

// LogsToKeep is R/logs_to_keep's default and the in-process mirror used by
// the follower to decide when a replica has fallen outside the retention
// window. The coordination-store value (settable per group) always wins
// once a group exists; this is only the value written on group creation.
var LogsToKeep = &Setting[int64]{
	Name:    "schemarepl.log.retention_entries",
	Doc:     "number of trailing log entries a group retains before a lagging replica must recover from a snapshot instead of replaying",
	Default: 1000,
}

// DistributedDDLTaskTimeout bounds how long propose's status stream waits
// for replica acks before returning to the client early. A value of zero
// means "do not wait; let the follower finish in the background."
var DistributedDDLTaskTimeout = &Setting[time.Duration]{
	Name:    "schemarepl.ddl.task_timeout",
	Doc:     "how long propose's status stream waits for replica acknowledgements before returning",
	Default: 180 * time.Second,
}

// SnapshotRetryCap bounds both snapshot.Consistent and clustertopo.Materialize's
// retry-until-stable loops. When the cap is hit, snapshot.Consistent fails
// with a replication-failed error and clustertopo.Materialize with a
// connection-tries-exhausted error.
var SnapshotRetryCap = &Setting[int]{
	Name:    "schemarepl.snapshot.retry_attempts",
	Doc:     "max attempts of a retry-until-stable coordination read before it gives up",
	Default: 10,
}

// ClusterUser, ClusterPassword and ClusterPort make cluster materialization
// configurable instead of hardcoding "default"/no password/the local port.
var (
	ClusterUser = &Setting[string]{
		Name:    "schemarepl.cluster.default_user",
		Doc:     "username assigned to every host in the materialized cluster topology",
		Default: "default",
	}
	ClusterPassword = &Setting[string]{
		Name:    "schemarepl.cluster.default_password",
		Doc:     "password assigned to every host in the materialized cluster topology",
		Default: "",
	}
	ClusterPort = &Setting[int]{
		Name:    "schemarepl.cluster.default_port",
		Doc:     "TCP port assigned to every host in the materialized cluster topology; 0 means use each replica's own host-id port",
		Default: 0,
	}
)

// RecoveryRandSuffixDigits controls the width of the "<rand3>" suffix used
// when renaming a quarantined table: "<name>_<max_log_ptr>_<rand3>".
var RecoveryRandSuffixDigits = &Setting[int]{
	Name:    "schemarepl.recovery.rand_suffix_digits",
	Doc:     "number of random base-36 digits appended to a quarantined table's new name",
	Default: 3,
}

// String renders a setting for diagnostic dumps (e.g. `schemareplctl settings`).
func String[T any](s *Setting[T]) string {
	return fmt.Sprintf("%s = %v (default %v)", s.Name, s.Value(), s.Default)
}
