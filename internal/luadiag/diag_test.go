// Copyright 2026 The luac51 Authors
// SPDX-License-Identifier: MIT

package luadiag

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
)

type fakeError struct {
	line int
	msg  string
}

func (e *fakeError) Error() string   { return fmt.Sprintf("%d: %s", e.line, e.msg) }
func (e *fakeError) SourceLine() int { return e.line }

func TestPrintNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	err := &fakeError{line: 12, msg: "unexpected symbol near 'end'"}
	// ^uintptr(0) is not an open file descriptor, so it is never a
	// terminal, and this exercises the plain, unstyled branch.
	Print(&buf, ^uintptr(0), "chunk.lua", err)
	got := buf.String()
	if !strings.Contains(got, "chunk.lua:12:") {
		t.Errorf("Print output = %q, want it to contain \"chunk.lua:12:\"", got)
	}
	if !strings.Contains(got, "unexpected symbol near 'end'") {
		t.Errorf("Print output = %q, want the message", got)
	}
	if strings.Contains(got, "\x1b[") {
		t.Errorf("Print output = %q, want no ANSI escapes for a non-terminal fd", got)
	}
}

func TestStripPrefixRemovesLineNumber(t *testing.T) {
	err := &fakeError{line: 7, msg: "'=' expected"}
	got := stripPrefix(err)
	if got != "'=' expected" {
		t.Errorf("stripPrefix = %q, want %q", got, "'=' expected")
	}
}

func TestStripPrefixLeavesUnrelatedTextAlone(t *testing.T) {
	err := &fakeError{line: 7, msg: "message without the usual prefix repeated"}
	got := stripPrefix(err)
	if got != err.msg {
		t.Errorf("stripPrefix = %q, want %q", got, err.msg)
	}
}
