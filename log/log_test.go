// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package log

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestLoggerWritesKeyValuePairs(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(io.Discard)
	useColor = false

	l := New("module", "test")
	l.Info("hello", "x", 1)

	out := buf.String()
	if !strings.Contains(out, "hello") || !strings.Contains(out, "module=test") || !strings.Contains(out, "x=1") {
		t.Fatalf("unexpected log line: %q", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(io.Discard)
	SetLevel(LvlWarn)
	defer SetLevel(LvlInfo)

	Info("should not appear")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be filtered at warn level, got %q", buf.String())
	}
}
