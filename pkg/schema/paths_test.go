// Copyright 2026 The SchemaRepl Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGroupPathNormalizesTrailingSlash(t *testing.T) {
	p, err := NewGroupPath("/clickhouse/replicated/db1/")
	require.NoError(t, err)
	assert.Equal(t, GroupPath("/clickhouse/replicated/db1"), p)
}

func TestNewGroupPathRejectsEmptyAndUnrooted(t *testing.T) {
	_, err := NewGroupPath("")
	assert.Error(t, err)

	_, err = NewGroupPath("relative/path")
	assert.Error(t, err)

	_, err = NewGroupPath("/")
	assert.Error(t, err)

	_, err = NewGroupPath("///")
	assert.Error(t, err)
}

func TestLogEntrySuffixRoundTrip(t *testing.T) {
	group := GroupPath("/r")
	path := group.LogEntry(42)
	assert.Equal(t, "/r/log/query-0000000042", path)

	suffix, err := ParseLogSuffix("query-0000000042")
	require.NoError(t, err)
	assert.EqualValues(t, 42, suffix)
}

func TestParseLogSuffixRejectsWrongPrefix(t *testing.T) {
	_, err := ParseLogSuffix("cnt-0000000042")
	assert.Error(t, err)
}

func TestParseLogPointerRejectsNegative(t *testing.T) {
	_, err := ParseLogPointer("-1")
	assert.Error(t, err)
}

func TestLogPointerBytesRoundTrip(t *testing.T) {
	p := LogPointer(1234)
	parsed, err := ParseLogPointer(string(p.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, p, parsed)
}
