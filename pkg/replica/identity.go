// Copyright 2026 The SchemaRepl Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

// Package replica implements the membership and identity protocol: name
// validation, group bootstrap, collision detection, and the replica
// lifecycle (join through drop/shutdown).
package replica

import (
	"github.com/google/uuid"

	"github.com/replikadb/schemarepl/pkg/schema"
)

// Identity is everything a node needs to present itself to a replication
// group: its shard/replica coordinates and the host-id that disambiguates
// it from any other node that might claim the same coordinates.
type Identity struct {
	Name   schema.ReplicaName
	HostID schema.HostID
}

// NewIdentity validates shard/replica and builds a fresh host-id from the
// node's address and a freshly generated database UUID, mirroring how a
// brand-new local catalog would mint its own instance UUID on first boot.
func NewIdentity(shard, replicaName, fqdn string, port int) (Identity, error) {
	name, err := schema.NewReplicaName(shard, replicaName)
	if err != nil {
		return Identity{}, err
	}
	return Identity{
		Name:   name,
		HostID: schema.NewHostID(fqdn, port, uuid.NewString()),
	}, nil
}

// NewIdentityWithHostID is like NewIdentity but binds to an already-known
// host-id, e.g. one loaded from a persisted local catalog's own instance
// UUID across a process restart, so a restarted node presents the *same*
// host-id and is recognized as itself rather than tripping the collision
// check.
func NewIdentityWithHostID(shard, replicaName string, hostID schema.HostID) (Identity, error) {
	name, err := schema.NewReplicaName(shard, replicaName)
	if err != nil {
		return Identity{}, err
	}
	return Identity{Name: name, HostID: hostID}, nil
}
