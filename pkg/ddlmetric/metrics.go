// Copyright 2026 The SchemaRepl Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

// Package ddlmetric exposes the Prometheus counters/gauges this subsystem
// emits, grouped into one struct registered as a unit.
package ddlmetric

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles every metric this module exports. A process wires one
// instance into its prometheus.Registerer at startup.
type Registry struct {
	ProposalsTotal    prometheus.Counter
	ProposalFailures  prometheus.Counter
	FollowerLag       prometheus.Gauge
	EntriesApplied    prometheus.Counter
	RecoveriesTotal   prometheus.Counter
	QuarantinedTables prometheus.Counter
}

// NewRegistry constructs a Registry whose metrics are namespaced under
// "schemarepl_<subsystem>", matching cockroach's convention of a fixed
// namespace plus a descriptive metric name.
func NewRegistry(replicaLabel string) *Registry {
	constLabels := prometheus.Labels{"replica": replicaLabel}
	return &Registry{
		ProposalsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "schemarepl",
			Subsystem:   "ddl",
			Name:        "proposals_total",
			Help:        "Total number of DDL statements proposed via this replica's log writer.",
			ConstLabels: constLabels,
		}),
		ProposalFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "schemarepl",
			Subsystem:   "ddl",
			Name:        "proposal_failures_total",
			Help:        "Total number of proposals that failed, either before a log entry was created or while the initiating replica executed it locally.",
			ConstLabels: constLabels,
		}),
		FollowerLag: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "schemarepl",
			Subsystem:   "follower",
			Name:        "log_lag",
			Help:        "max_log_ptr minus this replica's log_ptr.",
			ConstLabels: constLabels,
		}),
		EntriesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "schemarepl",
			Subsystem:   "follower",
			Name:        "entries_applied_total",
			Help:        "Total number of log entries this replica has executed.",
			ConstLabels: constLabels,
		}),
		RecoveriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "schemarepl",
			Subsystem:   "recovery",
			Name:        "runs_total",
			Help:        "Total number of times this replica entered lost-replica recovery.",
			ConstLabels: constLabels,
		}),
		QuarantinedTables: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "schemarepl",
			Subsystem:   "recovery",
			Name:        "quarantined_tables_total",
			Help:        "Total number of local tables moved into a *_broken_tables database by recovery.",
			ConstLabels: constLabels,
		}),
	}
}

// MustRegister registers every metric in r with reg, panicking on
// duplicate registration (a programmer error, never expected at runtime).
func (r *Registry) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		r.ProposalsTotal,
		r.ProposalFailures,
		r.FollowerLag,
		r.EntriesApplied,
		r.RecoveriesTotal,
		r.QuarantinedTables,
	)
}
