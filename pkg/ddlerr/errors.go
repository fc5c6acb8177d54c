// Copyright 2026 The SchemaRepl Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

// Package ddlerr defines the closed error taxonomy surfaced by this
// module: a small set of kinds, each satisfying errors.Is against a
// package-level marker so callers can branch on kind without string
// matching.
package ddlerr

import (
	"github.com/cockroachdb/errors"
)

// Kind markers. Each is a distinct sentinel; wrapped errors remain
// errors.Is-comparable to the marker that produced them.
var (
	kindCoordinationUnavailable = errors.New("coordination store unavailable")
	kindBadArgument             = errors.New("bad argument")
	kindReplicaAlreadyExists    = errors.New("replica already exists")
	kindUnsupportedDDL          = errors.New("unsupported ddl")
	kindLogical                 = errors.New("logical error")
	kindReplicationFailed       = errors.New("replication failed")
	kindConnectionTriesExhausted = errors.New("connection tries exhausted")
)

// CoordinationUnavailable wraps err as a fatal construction-time failure to
// reach or configure the coordination store.
func CoordinationUnavailable(err error) error {
	return errors.Mark(errors.Wrap(err, "coordination store unavailable"), kindCoordinationUnavailable)
}

// IsCoordinationUnavailable reports whether err is (or wraps) a
// CoordinationUnavailable error.
func IsCoordinationUnavailable(err error) bool { return errors.Is(err, kindCoordinationUnavailable) }

// BadArgument reports an illegal/empty caller-supplied name or value.
func BadArgument(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), kindBadArgument)
}

// IsBadArgument reports whether err is (or wraps) a BadArgument error.
func IsBadArgument(err error) bool { return errors.Is(err, kindBadArgument) }

// ReplicaAlreadyExist reports that shard|replica is already registered
// under a different host-id. Named to match ClickHouse's historical
// REPLICA_IS_ALREADY_EXIST error code.
func ReplicaAlreadyExist(fullName string) error {
	return errors.Mark(errors.Newf("replica %q is already registered under a different host-id", fullName), kindReplicaAlreadyExists)
}

// IsReplicaAlreadyExist reports whether err is a replica-identity-collision
// error.
func IsReplicaAlreadyExist(err error) bool { return errors.Is(err, kindReplicaAlreadyExists) }

// UnsupportedDDL reports a caller-visible rejection of a DDL statement this
// subsystem cannot replicate (ON CLUSTER on a replicated DB, an
// out-of-scope ALTER command kind, a cross-group RENAME).
func UnsupportedDDL(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), kindUnsupportedDDL)
}

// IsUnsupportedDDL reports whether err is an UnsupportedDDL error.
func IsUnsupportedDDL(err error) bool { return errors.Is(err, kindUnsupportedDDL) }

// Logical wraps an internal invariant violation: a bug signal, never
// expected to be caller-correctable.
func Logical(err error) error {
	return errors.Mark(errors.WithStack(err), kindLogical)
}

// IsLogical reports whether err is a Logical error.
func IsLogical(err error) bool { return errors.Is(err, kindLogical) }

// ReplicationFailed reports that the operator must intervene: a snapshot
// never stabilized, or recovery's safety brake tripped.
func ReplicationFailed(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), kindReplicationFailed)
}

// IsReplicationFailed reports whether err is a ReplicationFailed error.
func IsReplicationFailed(err error) bool { return errors.Is(err, kindReplicationFailed) }

// ConnectionTriesExhausted reports that a retry-until-stable read could not
// settle within its retry budget; the caller may retry the whole operation.
func ConnectionTriesExhausted(what string, attempts int) error {
	return errors.Mark(errors.Newf("%s did not stabilize after %d attempts", what, attempts), kindConnectionTriesExhausted)
}

// IsConnectionTriesExhausted reports whether err is a
// ConnectionTriesExhausted error.
func IsConnectionTriesExhausted(err error) bool {
	return errors.Is(err, kindConnectionTriesExhausted)
}
