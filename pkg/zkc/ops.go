// Copyright 2026 The SchemaRepl Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

package zkc

import "github.com/go-zookeeper/zk"

// Op is one step of a Multi transaction. Construct instances with
// CreateOp/SetOp/DeleteOp/CheckVersionOp; the zero value is not valid.
type Op struct {
	kind    opKind
	path    string
	data    []byte
	flags   int32
	version int32
}

type opKind int

const (
	opCreate opKind = iota
	opSet
	opDelete
	opCheckVersion
)

// CreateOp creates a znode as part of a Multi transaction.
func CreateOp(path string, data []byte, flags int32) Op {
	return Op{kind: opCreate, path: path, data: data, flags: flags}
}

// SetOp overwrites a znode's data as part of a Multi transaction. version
// == -1 disables the optimistic-concurrency check; an ALTER's metadata
// write uses version=-1 because log order, not znode version, is the
// authority.
func SetOp(path string, data []byte, version int32) Op {
	return Op{kind: opSet, path: path, data: data, version: version}
}

// DeleteOp removes a znode as part of a Multi transaction.
func DeleteOp(path string, version int32) Op {
	return Op{kind: opDelete, path: path, version: version}
}

// CheckVersionOp asserts a znode's version without mutating it, used to
// fail a whole transaction if something else raced with a read this
// transaction depends on.
func CheckVersionOp(path string, version int32) Op {
	return Op{kind: opCheckVersion, path: path, version: version}
}

// Path returns the target path of the op, for logging/diagnostics.
func (o Op) Path() string { return o.path }

// IsCreate, IsSet and IsDelete let a test double (internal/testutils/fakezk)
// re-dispatch a Multi transaction's ops without reaching into Op's private
// fields directly.
func (o Op) IsCreate() bool { return o.kind == opCreate }
func (o Op) IsSet() bool    { return o.kind == opSet }
func (o Op) IsDelete() bool { return o.kind == opDelete }

// CreateArgs returns the arguments a CreateOp was built from.
func (o Op) CreateArgs() (path string, data []byte, flags int32) { return o.path, o.data, o.flags }

// SetArgs returns the arguments a SetOp was built from.
func (o Op) SetArgs() (path string, data []byte, version int32) { return o.path, o.data, o.version }

// DeleteArgs returns the arguments a DeleteOp was built from.
func (o Op) DeleteArgs() (path string, version int32) { return o.path, o.version }

func (o Op) toZK() interface{} {
	switch o.kind {
	case opCreate:
		return &zk.CreateRequest{Path: o.path, Data: o.data, Acl: zk.WorldACL(zk.PermAll), Flags: o.flags}
	case opSet:
		return &zk.SetDataRequest{Path: o.path, Data: o.data, Version: o.version}
	case opDelete:
		return &zk.DeleteRequest{Path: o.path, Version: o.version}
	case opCheckVersion:
		return &zk.CheckVersionRequest{Path: o.path, Version: o.version}
	default:
		panic("zkc: invalid op kind")
	}
}
