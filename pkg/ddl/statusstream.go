// Copyright 2026 The SchemaRepl Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

package ddl

import (
	"context"
	"strings"
	"time"

	"github.com/replikadb/schemarepl/pkg/schema"
	"github.com/replikadb/schemarepl/pkg/zkc"
)

// ReplicaStatus is one replica's acknowledgement state for a proposed
// entry.
type ReplicaStatus struct {
	FullName string
	Acked    bool
}

// StatusStream watches a log entry's ack children and reports, per
// currently-registered replica, whether it has applied the entry. A
// client-initiated DDL may time out waiting on this stream; that only
// abandons the wait, the entry itself is already durable in the log and
// will converge regardless.
type StatusStream struct {
	client   zkc.Client
	group    schema.GroupPath
	nodePath string
	timeout  time.Duration
}

func newStatusStream(client zkc.Client, group schema.GroupPath, nodePath string, timeout time.Duration) *StatusStream {
	return &StatusStream{client: client, group: group, nodePath: nodePath, timeout: timeout}
}

// Wait blocks until every replica registered at the time of the call has
// acked, the timeout elapses, or ctx is cancelled, whichever comes first.
// It always returns the status observed for every replica it knew about,
// even on timeout — callers render this as a partial-completion report
// rather than treating it as an error: the wait is abandoned, not the
// commit.
func (s *StatusStream) Wait(ctx context.Context) ([]ReplicaStatus, error) {
	replicaNames, _, err := s.client.Children(ctx, s.group.Replicas())
	if err != nil {
		return nil, err
	}
	if _, err := schema.ParseLogSuffix(s.nodePath[len(s.group.Log())+1:]); err != nil {
		return nil, err
	}

	waitCtx := ctx
	var cancel context.CancelFunc
	if s.timeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	statuses := make(map[string]bool, len(replicaNames))
	for _, name := range replicaNames {
		statuses[name] = false
	}

	for {
		acked, _, changed, err := s.client.ChildrenW(waitCtx, s.nodePath)
		if err != nil {
			return render(statuses), err
		}
		for _, name := range replicaNames {
			if ackedBy(acked, name) {
				statuses[name] = true
			}
		}
		if allAcked(statuses) {
			return render(statuses), nil
		}
		select {
		case <-waitCtx.Done():
			return render(statuses), nil
		case <-changed:
		}
	}
}

func ackedBy(children []string, fullName string) bool {
	for _, c := range children {
		if strings.TrimPrefix(c, "ack-") == fullName && strings.HasPrefix(c, "ack-") {
			return true
		}
	}
	return false
}

func allAcked(statuses map[string]bool) bool {
	for _, acked := range statuses {
		if !acked {
			return false
		}
	}
	return true
}

func render(statuses map[string]bool) []ReplicaStatus {
	out := make([]ReplicaStatus, 0, len(statuses))
	for name, acked := range statuses {
		out = append(out, ReplicaStatus{FullName: name, Acked: acked})
	}
	return out
}
