// Copyright 2026 The luac51 Authors
// SPDX-License-Identifier: MIT

// Package luadiag formats compiler diagnostics for the CLI and HTTP
// surfaces, sharing one presentation across the three pipeline stages
// that can fail: [lualex.Error], [luaparse.Error], and
// [luacode.Error].
package luadiag

import (
	"fmt"
	"io"

	"golang.org/x/term"
)

// SourceError is implemented by every error the compiler pipeline can
// return that carries a source line: [lualex.Error], luaparse.Error,
// and luacode.Error. The accessor is named SourceLine, not Line,
// because each concrete type also has an exported Line field and Go
// does not allow a method and a field of the same name.
type SourceError interface {
	error
	SourceLine() int
}

// Print writes a one-line diagnostic to w in "chunkName:line: message"
// form, bolding the "chunkName:line:" prefix with ANSI escapes when
// fd names a terminal (checked with [term.IsTerminal], the same way
// the teacher's CLI decides whether to color output).
func Print(w io.Writer, fd uintptr, chunkName string, err SourceError) {
	prefix := fmt.Sprintf("%s:%d:", chunkName, err.SourceLine())
	if term.IsTerminal(int(fd)) {
		fmt.Fprintf(w, "\x1b[1m%s\x1b[0m %s\n", prefix, stripPrefix(err))
	} else {
		fmt.Fprintf(w, "%s %s\n", prefix, stripPrefix(err))
	}
}

// stripPrefix returns just the message portion of err, since every
// [SourceError] implementation's Error() already includes its own
// "line: message" rendering that would otherwise be duplicated
// alongside Print's own prefix.
func stripPrefix(err SourceError) string {
	full := err.Error()
	want := fmt.Sprintf("%d: ", err.SourceLine())
	if len(full) > len(want) && full[:len(want)] == want {
		return full[len(want):]
	}
	return full
}
