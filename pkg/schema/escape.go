// Copyright 2026 The SchemaRepl Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

package schema

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// safeByte reports whether b needs no escaping in a znode/file name: ASCII
// letters, digits, and underscore. Everything else (including '/', '|',
// '.', and non-ASCII bytes) is escaped, mirroring the on-disk filename
// escaping a local storage engine already applies to the same names.
func safeByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}

const hexDigits = "0123456789ABCDEF"

// EscapeName encodes name so the result contains only characters legal in
// both a coordination-store znode name and a filesystem path component. An
// unsafe byte b is replaced with "%XX" (uppercase hex); '%' is itself
// escaped so the encoding round-trips unambiguously.
func EscapeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if safeByte(c) && c != '%' {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hexDigits[c>>4])
		b.WriteByte(hexDigits[c&0xF])
	}
	return b.String()
}

// UnescapeName reverses EscapeName. It returns an error on malformed
// percent-sequences rather than silently truncating, since a corrupt
// R/metadata child name is a bug signal, not a caller mistake.
func UnescapeName(escaped string) (string, error) {
	var b strings.Builder
	b.Grow(len(escaped))
	for i := 0; i < len(escaped); i++ {
		c := escaped[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		if i+2 >= len(escaped) {
			return "", errors.Newf("truncated escape sequence in %q", escaped)
		}
		hi, err := hexVal(escaped[i+1])
		if err != nil {
			return "", errors.Wrapf(err, "in %q", escaped)
		}
		lo, err := hexVal(escaped[i+2])
		if err != nil {
			return "", errors.Wrapf(err, "in %q", escaped)
		}
		b.WriteByte(hi<<4 | lo)
		i += 2
	}
	return b.String(), nil
}

func hexVal(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	default:
		return 0, errors.Newf("invalid hex digit %q", c)
	}
}
