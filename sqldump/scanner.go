// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package sqldump

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/featurebasedb/wiki2qid/errors"
)

// ScanStats counts what a Scan saw.
type ScanStats struct {
	Lines   int // all lines, matching or not
	Matched int // lines which matched the statement
	Tuples  int // tuples handed to the callback
}

// Scan walks the lines of an in-memory dump and calls fn with every tuple of
// every line that matches s. Lines which don't match are skipped. Invalid
// UTF-8 is replaced with U+FFFD before matching. The first error, whether
// from decoding or from fn, stops the scan.
func (s Statement) Scan(data []byte, fn func(Tuple) error) (ScanStats, error) {
	var stats ScanStats
	prefix := []byte(s.prefix)
	for len(data) > 0 {
		var line []byte
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			line, data = data[:i], data[i+1:]
		} else {
			line, data = data, nil
		}
		stats.Lines++

		if !bytes.HasPrefix(line, prefix) {
			continue
		}
		stats.Matched++

		text := string(line)
		if !utf8.ValidString(text) {
			text = strings.ToValidUTF8(text, "\uFFFD")
		}
		tuples, err := s.Parse(text)
		if err != nil {
			return stats, errors.Wrapf(err, "line %d", stats.Lines)
		}
		for _, t := range tuples {
			stats.Tuples++
			if err := fn(t); err != nil {
				return stats, errors.Wrapf(err, "line %d", stats.Lines)
			}
		}
	}
	return stats, nil
}
