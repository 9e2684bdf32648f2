// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestFileWriterAppends makes sure an existing log file is appended to
// rather than truncated.
func TestFileWriterAppends(t *testing.T) {
	name := filepath.Join(t.TempDir(), "wiki2qid.log")
	if err := os.WriteFile(name, []byte("line1\n"), 0600); err != nil {
		t.Fatalf("writing log file: %v", err)
	}

	fw, err := NewFileWriter(name)
	if err != nil {
		t.Fatalf("opening log file: %v", err)
	}
	l := NewStandardLogger(fw)
	l.Infof("line%d", 2)
	l.Debugf("hidden")
	if err := fw.Close(); err != nil {
		t.Fatalf("closing: %v", err)
	}

	buf, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(buf)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf)
	}
	if lines[0] != "line1" {
		t.Fatalf("first line overwritten: %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "INFO:  line2") {
		t.Fatalf("unexpected second line: %q", lines[1])
	}
}

func TestLoggerVerbosityAndPrefix(t *testing.T) {
	var sb strings.Builder
	l := NewVerboseLogger(&sb).WithPrefix("[page] ")
	l.Debugf("tuples=%d", 3)
	if got := sb.String(); !strings.Contains(got, "[page] DEBUG: tuples=3") {
		t.Fatalf("unexpected output: %q", got)
	}

	buf := NewBufferLogger()
	buf.Warnf("skipped %s", "x")
	if got := buf.String(); got != "WARN:  skipped x\n" {
		t.Fatalf("unexpected buffer: %q", got)
	}
}
