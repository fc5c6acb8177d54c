// Copyright 2026 The SchemaRepl Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

// Command schemareplctl is an operator control-plane client for a
// replication group: it can bootstrap/join, propose a raw DDL statement and
// wait for replica acknowledgements, drop a replica's registration, and dump
// the effective settings. It talks to the coordination store directly and
// carries no local catalog of its own — the statement interpreter that
// actually mutates an engine's tables lives in the database process itself,
// out of scope here, so every command this binary runs is a no-op against
// that half of the pipeline (see noopExecutor and noopCatalog below).
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/replikadb/schemarepl/pkg/catalog"
	"github.com/replikadb/schemarepl/pkg/ddl"
	"github.com/replikadb/schemarepl/pkg/ddlmetric"
	"github.com/replikadb/schemarepl/pkg/dsettings"
	"github.com/replikadb/schemarepl/pkg/replica"
	"github.com/replikadb/schemarepl/pkg/schema"
	"github.com/replikadb/schemarepl/pkg/zkc"
)

var (
	flagServers string
	flagTimeout time.Duration
)

func main() {
	root := &cobra.Command{
		Use:   "schemareplctl",
		Short: "operator client for a replicated schema-management group",
	}
	root.PersistentFlags().StringVar(&flagServers, "servers", "127.0.0.1:2181", "comma-separated coordination-store ensemble addresses")
	root.PersistentFlags().DurationVar(&flagTimeout, "session-timeout", 10*time.Second, "coordination-store session timeout")

	root.AddCommand(
		newJoinCmd(),
		newProposeCmd(),
		newStatusCmd(),
		newDropCmd(),
		newSettingsCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func dial() (zkc.Client, error) {
	servers := strings.Split(flagServers, ",")
	return zkc.Dial(servers, flagTimeout)
}

func newJoinCmd() *cobra.Command {
	var shard, replicaName, fqdn string
	var port int
	cmd := &cobra.Command{
		Use:   "join <group-path>",
		Short: "register this node's shard|replica identity with a group, bootstrapping it if necessary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			group, err := schema.NewGroupPath(args[0])
			if err != nil {
				return err
			}
			client, err := dial()
			if err != nil {
				return err
			}
			defer client.Close()

			id, err := replica.NewIdentity(shard, replicaName, fqdn, port)
			if err != nil {
				return err
			}

			if _, err := replica.Join(cmd.Context(), client, group, id, noopCatalog{}, noopExecutor{}, ddlmetric.NewRegistry(id.Name.FullName())); err != nil {
				return err
			}
			fmt.Printf("joined %s as %s (host-id %s)\n", group, id.Name, id.HostID)
			return nil
		},
	}
	cmd.Flags().StringVar(&shard, "shard", "", "shard name")
	cmd.Flags().StringVar(&replicaName, "replica", "", "replica name")
	cmd.Flags().StringVar(&fqdn, "fqdn", "", "this node's externally reachable hostname")
	cmd.Flags().IntVar(&port, "port", 9000, "this node's externally reachable port")
	_ = cmd.MarkFlagRequired("shard")
	_ = cmd.MarkFlagRequired("replica")
	_ = cmd.MarkFlagRequired("fqdn")
	return cmd
}

func newProposeCmd() *cobra.Command {
	var shard, replicaName, fqdn string
	var port int
	var wait bool
	cmd := &cobra.Command{
		Use:   "propose <group-path> <statement-text>",
		Short: "enqueue a DDL statement into the group's replication log",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			group, err := schema.NewGroupPath(args[0])
			if err != nil {
				return err
			}
			client, err := dial()
			if err != nil {
				return err
			}
			defer client.Close()

			id, err := replica.NewIdentity(shard, replicaName, fqdn, port)
			if err != nil {
				return err
			}
			follower := ddl.NewFollower(ddl.Config{
				Group:    group,
				Self:     id.Name,
				HostID:   id.HostID,
				Client:   client,
				Executor: noopExecutor{},
			})
			writer := &ddl.Writer{Group: group, Client: client, Follower: follower}

			stream, err := writer.Propose(cmd.Context(), ddl.Query{
				IsInitialQuery: true,
				Kind:           ddl.StatementOther,
				CanonicalText:  args[1],
				Wait:           wait,
				TaskTimeout:    dsettings.DistributedDDLTaskTimeout.Value(),
			})
			if err != nil {
				return err
			}
			if stream == nil {
				fmt.Println("proposed (not waiting for acknowledgements)")
				return nil
			}
			statuses, err := stream.Wait(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range statuses {
				fmt.Printf("%s: acked=%v\n", s.FullName, s.Acked)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&shard, "shard", "", "proposing node's shard name")
	cmd.Flags().StringVar(&replicaName, "replica", "", "proposing node's replica name")
	cmd.Flags().StringVar(&fqdn, "fqdn", "", "proposing node's externally reachable hostname")
	cmd.Flags().IntVar(&port, "port", 9000, "proposing node's externally reachable port")
	cmd.Flags().BoolVar(&wait, "wait", true, "wait for every registered replica to acknowledge")
	_ = cmd.MarkFlagRequired("shard")
	_ = cmd.MarkFlagRequired("replica")
	_ = cmd.MarkFlagRequired("fqdn")
	return cmd
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <group-path>",
		Short: "list current replica registrations and their log positions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			group, err := schema.NewGroupPath(args[0])
			if err != nil {
				return err
			}
			client, err := dial()
			if err != nil {
				return err
			}
			defer client.Close()

			names, _, err := client.Children(cmd.Context(), group.Replicas())
			if err != nil {
				return err
			}
			for _, name := range names {
				hostID, _, err := client.Get(cmd.Context(), group.Replica(name))
				if err != nil {
					fmt.Printf("%s: error reading host-id: %v\n", name, err)
					continue
				}
				ptrData, _, err := client.Get(cmd.Context(), group.ReplicaLogPtr(name))
				ptr := "?"
				if err == nil {
					ptr = string(ptrData)
				}
				fmt.Printf("%s\thost=%s\tlog_ptr=%s\n", name, hostID, ptr)
			}
			return nil
		},
	}
	return cmd
}

func newDropCmd() *cobra.Command {
	var shard, replicaName string
	var hostID string
	cmd := &cobra.Command{
		Use:   "drop <group-path>",
		Short: "remove a replica's registration and, if it is the last one, the group itself",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			group, err := schema.NewGroupPath(args[0])
			if err != nil {
				return err
			}
			client, err := dial()
			if err != nil {
				return err
			}
			defer client.Close()

			id, err := replica.NewIdentityWithHostID(shard, replicaName, schema.HostID(hostID))
			if err != nil {
				return err
			}
			r := &replica.Replica{Group: group, Identity: id, Client: client, Local: noopCatalog{}}
			if err := r.Drop(cmd.Context()); err != nil {
				return err
			}
			fmt.Printf("dropped %s\n", id.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&shard, "shard", "", "shard name")
	cmd.Flags().StringVar(&replicaName, "replica", "", "replica name")
	cmd.Flags().StringVar(&hostID, "host-id", "", "the replica's registered host-id, as printed by `status`")
	_ = cmd.MarkFlagRequired("shard")
	_ = cmd.MarkFlagRequired("replica")
	_ = cmd.MarkFlagRequired("host-id")
	return cmd
}

func newSettingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "settings",
		Short: "print the effective value of every registered tunable",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(dsettings.String(dsettings.LogsToKeep))
			fmt.Println(dsettings.String(dsettings.DistributedDDLTaskTimeout))
			fmt.Println(dsettings.String(dsettings.SnapshotRetryCap))
			fmt.Println(dsettings.String(dsettings.ClusterUser))
			fmt.Println(dsettings.String(dsettings.ClusterPassword))
			fmt.Println(dsettings.String(dsettings.ClusterPort))
			fmt.Println(dsettings.String(dsettings.RecoveryRandSuffixDigits))
			return nil
		},
	}
}

// noopExecutor is the Executor this control-plane binary hands to the
// follower/writer machinery it constructs. It never mutates anything; the
// real statement interpreter lives in the database process that actually
// owns a local catalog.
type noopExecutor struct{}

func (noopExecutor) Execute(ctx context.Context, entry schema.LogEntry, txn *catalog.Transaction) error {
	return nil
}

// noopCatalog is the LocalCatalog this binary presents to replica.Join and
// replica.Drop, which only need it to answer "what's here" — always nothing,
// since this process holds no tables of its own.
type noopCatalog struct{}

func (noopCatalog) ListTables(ctx context.Context) ([]catalog.TableInfo, error) { return nil, nil }
func (noopCatalog) TableStatement(ctx context.Context, name string) (string, bool, error) {
	return "", false, nil
}
func (noopCatalog) CreateTable(ctx context.Context, name, statement string, isDictionary bool) error {
	return nil
}
func (noopCatalog) DropTable(ctx context.Context, name string, isDictionary bool) error { return nil }
func (noopCatalog) DetachPermanently(ctx context.Context, name string) error            { return nil }
func (noopCatalog) RenameTable(ctx context.Context, oldName, newName string, exchange bool) error {
	return nil
}
func (noopCatalog) AlterTable(ctx context.Context, name, newStatement string) error { return nil }
func (noopCatalog) EnsureQuarantineDatabase(ctx context.Context, name string) error { return nil }
func (noopCatalog) MoveToQuarantine(ctx context.Context, name, quarantineDB, newName string) error {
	return nil
}
func (noopCatalog) ShutdownAndDrop(ctx context.Context, name string) error   { return nil }
func (noopCatalog) WaitForUUIDReaped(ctx context.Context, uuid string) error { return nil }
func (noopCatalog) LockTables(ctx context.Context, names ...string) (func(), error) {
	return func() {}, nil
}
