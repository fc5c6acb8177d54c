// Copyright 2026 The SchemaRepl Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

package schema

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/replikadb/schemarepl/pkg/ddlerr"
)

// HostID is the textual concatenation FQDN:TCP_PORT:DATABASE_UUID used to
// detect two replicas registering under the same shard|replica name.
type HostID string

// NewHostID builds a HostID from its parts.
func NewHostID(fqdn string, port int, dbUUID string) HostID {
	return HostID(fmt.Sprintf("%s:%d:%s", fqdn, port, dbUUID))
}

func (h HostID) String() string { return string(h) }

// Port extracts the TCP port embedded in the host-id, or 0 if the host-id
// is malformed. Used by clustertopo when ClusterPort is left at its
// zero-value default.
func (h HostID) Port() int {
	parts := strings.Split(string(h), ":")
	if len(parts) != 3 {
		return 0
	}
	var port int
	if _, err := fmt.Sscanf(parts[1], "%d", &port); err != nil {
		return 0
	}
	return port
}

// FQDN extracts the hostname embedded in the host-id, or "" if malformed.
func (h HostID) FQDN() string {
	parts := strings.Split(string(h), ":")
	if len(parts) != 3 {
		return ""
	}
	return parts[0]
}

// ReplicaName validates and holds a shard/replica coordinate pair: neither
// half may be empty or contain '/' or '|'.
type ReplicaName struct {
	Shard   string
	Replica string
}

// NewReplicaName validates shard and replica.
func NewReplicaName(shard, replica string) (ReplicaName, error) {
	if err := validateNamePart("shard", shard); err != nil {
		return ReplicaName{}, err
	}
	if err := validateNamePart("replica", replica); err != nil {
		return ReplicaName{}, err
	}
	return ReplicaName{Shard: shard, Replica: replica}, nil
}

func validateNamePart(label, v string) error {
	if v == "" {
		return ddlerr.BadArgument("%s name must not be empty", label)
	}
	if strings.ContainsAny(v, "/|") {
		return ddlerr.BadArgument("%s name %q must not contain '/' or '|'", label, v)
	}
	return nil
}

// FullName is the shard|replica coordinate used as the znode name under
// R/replicas.
func (n ReplicaName) FullName() string { return n.Shard + "|" + n.Replica }

func (n ReplicaName) String() string { return n.FullName() }

// LogEntry is the payload of a single R/log/query-NNNN znode. An entry
// with an empty Query and no Hosts is a heartbeat/join marker: it triggers
// follower work (e.g. a cluster-topology refresh) without mutating any
// schema.
type LogEntry struct {
	Version   int      `yaml:"version"`
	Query     string   `yaml:"query"`
	Initiator HostID   `yaml:"initiator"`
	Hosts     []HostID `yaml:"hosts"`
}

// EntryWireVersion is the current on-the-wire format version written into
// every new entry.
const EntryWireVersion = 1

// IsHeartbeat reports whether the entry is a schema-inert marker.
func (e LogEntry) IsHeartbeat() bool { return e.Query == "" && len(e.Hosts) == 0 }

// EncodeEntry serializes e to its on-the-wire text form. YAML is used
// (rather than JSON) because it is comfortably human-readable in a znode
// dump while still being machine-parsed; an unrecognized future field is
// simply an extra map key a decoder ignores, giving forward compatibility
// for free.
func EncodeEntry(e LogEntry) ([]byte, error) {
	if e.Version == 0 {
		e.Version = EntryWireVersion
	}
	b, err := yaml.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, "encoding log entry")
	}
	return b, nil
}

// DecodeEntry parses an on-the-wire log entry, tolerating unknown fields
// (a plain struct-shaped yaml.Unmarshal already does this; there is no
// KnownFields(true) call anywhere in this codec).
func DecodeEntry(data []byte) (LogEntry, error) {
	var e LogEntry
	if err := yaml.Unmarshal(data, &e); err != nil {
		return LogEntry{}, ddlerr.Logical(errors.Wrap(err, "decoding log entry"))
	}
	return e, nil
}
