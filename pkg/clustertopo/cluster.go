// Copyright 2026 The SchemaRepl Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

// Package clustertopo builds a runtime cluster topology — shards, each a
// list of host addresses — from a replication group's replica
// registrations. Credentials and port are configurable settings, not
// hardcoded constants.
package clustertopo

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/replikadb/schemarepl/pkg/dsettings"
	"github.com/replikadb/schemarepl/pkg/schema"
	"github.com/replikadb/schemarepl/pkg/zkc"
)

// Host is one reachable member of a shard.
type Host struct {
	ReplicaName string // shard|replica full name
	Address     string // fqdn:port
	User        string
	Password    string
}

// Shard groups the replicas that hold the same data.
type Shard struct {
	Name  string
	Hosts []Host
}

// Topology is the materialized cluster: every shard, each with its hosts,
// ordered deterministically by shard then by replica name so repeated
// materializations produce a stable host order for callers that hash or
// index into it.
type Topology struct {
	Shards []Shard
}

// Materialize builds a Topology from R/replicas's current registrations,
// using the same retry-until-stable combinator as pkg/snapshot. If the
// listing never stabilizes within dsettings.SnapshotRetryCap attempts it
// fails with the combinator's ConnectionTriesExhausted error.
func Materialize(ctx context.Context, client zkc.Client, group schema.GroupPath) (Topology, error) {
	maxAttempts := dsettings.SnapshotRetryCap.Value()
	topo, err := zkc.RetryUntilStable(ctx, "cluster topology", maxAttempts, func(ctx context.Context) (Topology, int64, bool, error) {
		return fetchOnce(ctx, client, group)
	})
	if err != nil {
		return Topology{}, err
	}
	return topo, nil
}

func fetchOnce(ctx context.Context, client zkc.Client, group schema.GroupPath) (Topology, int64, bool, error) {
	names, stat, err := client.Children(ctx, group.Replicas())
	if err != nil {
		return Topology{}, 0, false, err
	}

	shardOf := make(map[string]*Shard)
	var order []string
	var mu sync.Mutex
	raced := false

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(16)
	for _, full := range names {
		full := full
		g.Go(func() error {
			data, _, err := client.Get(gctx, group.Replica(full))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				raced = true
				return nil
			}
			hostID := string(data)
			if hostID == schema.DroppedMarker {
				return nil
			}
			shardName, _, ok := splitFullName(full)
			if !ok {
				raced = true
				return nil
			}
			s, exists := shardOf[shardName]
			if !exists {
				s = &Shard{Name: shardName}
				shardOf[shardName] = s
				order = append(order, shardName)
			}
			s.Hosts = append(s.Hosts, Host{
				ReplicaName: full,
				Address:     resolveAddress(schema.HostID(hostID)),
				User:        dsettings.ClusterUser.Value(),
				Password:    dsettings.ClusterPassword.Value(),
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Topology{}, 0, false, err
	}

	sort.Strings(order)
	shards := make([]Shard, 0, len(order))
	for _, name := range order {
		s := shardOf[name]
		sort.Slice(s.Hosts, func(i, j int) bool { return s.Hosts[i].ReplicaName < s.Hosts[j].ReplicaName })
		shards = append(shards, *s)
	}

	return Topology{Shards: shards}, int64(stat.CVersion), raced, nil
}

func splitFullName(full string) (shard, replica string, ok bool) {
	i := strings.Index(full, "|")
	if i < 0 {
		return "", "", false
	}
	return full[:i], full[i+1:], true
}

func resolveAddress(hostID schema.HostID) string {
	port := dsettings.ClusterPort.Value()
	if port == 0 {
		port = hostID.Port()
	}
	fqdn := hostID.FQDN()
	return strings.TrimSuffix(fqdn, ":") + ":" + strconv.Itoa(port)
}
