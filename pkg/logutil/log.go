// Copyright 2026 The SchemaRepl Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

// Package logutil is a small structured-logging facade: severity-leveled
// calls taking a context, formatted with fmt.Sprintf and written without
// redaction markers, plus a Safe helper that marks a value as safe to log
// unredacted for a redaction-aware sink.
package logutil

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/cockroachdb/redact"
)

// Severity mirrors the handful of levels this subsystem actually emits.
// There is no Fatal: a replica that cannot continue returns an error to its
// owner instead of killing the process.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "WARN"
	case SeverityError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// std is replaced in tests that want to capture output; production wiring
// leaves it as the default writer to stderr.
var std = log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)

// Infof logs at SeverityInfo.
func Infof(ctx context.Context, format string, args ...interface{}) { emit(ctx, SeverityInfo, format, args) }

// Warningf logs at SeverityWarning.
func Warningf(ctx context.Context, format string, args ...interface{}) {
	emit(ctx, SeverityWarning, format, args)
}

// Errorf logs at SeverityError. A secondary query's failure is logged here
// rather than escalated, so the follower simply retries the entry on its
// next pass instead of killing the pull loop.
func Errorf(ctx context.Context, format string, args ...interface{}) {
	emit(ctx, SeverityError, format, args)
}

func emit(ctx context.Context, sev Severity, format string, args []interface{}) {
	_ = ctx // reserved for trace-span correlation once tracing is wired in
	std.Printf("%s %s", sev, fmt.Sprintf(format, args...))
}

// Safe wraps a value as a redact.SafeValue, which a redaction-aware sink
// renders as-is instead of scrubbing it.
func Safe(v interface{}) redact.SafeValue {
	if sv, ok := v.(redact.SafeValue); ok {
		return sv
	}
	return redact.Safe(fmt.Sprint(v))
}
