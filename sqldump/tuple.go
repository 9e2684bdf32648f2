// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package sqldump

import (
	"strconv"

	"github.com/featurebasedb/wiki2qid/errors"
	"golang.org/x/text/unicode/norm"
)

// Field is one decoded literal of a tuple. Strings are unescaped; numbers
// keep their textual form.
type Field struct {
	Value string
	Null  bool
}

// Tuple is one parenthesized row of an INSERT statement.
type Tuple []Field

// String returns field i as written in the dump.
func (t Tuple) String(i int) string {
	return t[i].Value
}

// Title returns field i in Unicode normalization form C, which is the form
// titles are keyed by.
func (t Tuple) Title(i int) string {
	return NormalizeTitle(t[i].Value)
}

// Uint32 parses field i as an unsigned 32-bit integer. A single leading
// non-digit marker, such as the Q of a Wikidata item id, is stripped first.
func (t Tuple) Uint32(i int) (uint32, error) {
	f := t[i]
	if f.Null {
		return 0, errors.Newf(errors.ErrMalformedRecord, "field %d is NULL, want an integer", i)
	}
	s := StripMarker(f.Value)
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, errors.Newf(errors.ErrMalformedRecord, "field %d: %q is not an unsigned 32-bit integer", i, f.Value)
	}
	return uint32(v), nil
}

// StripMarker removes one leading marker character from s. Digits and signs
// are not markers.
func StripMarker(s string) string {
	if len(s) > 0 && (s[0] < '0' || s[0] > '9') && s[0] != '-' && s[0] != '+' {
		return s[1:]
	}
	return s
}

// NormalizeTitle returns s in Unicode normalization form C.
func NormalizeTitle(s string) string {
	return norm.NFC.String(s)
}
