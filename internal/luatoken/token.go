// Copyright 2026 The luac51 Authors
// SPDX-License-Identifier: MIT

//go:generate go tool stringer -type=Kind -linecomment -output=kind_string.go

// Package luatoken defines the shared token representation produced by
// the tokenizer and consumed by the parser: a tag drawn from a closed
// set, an optional value, and a source line number.
package luatoken

import "fmt"

// Token is a single lexical element of a Lua 5.1 source file.
type Token struct {
	Kind Kind
	// Value holds the text of an Identifier, the parsed contents of a
	// String, the literal digits of a Number, or the exact spelling of
	// a Keyword or Operator (e.g. "local", "+", "..", "=="). It is
	// empty for EOF.
	Value string
	// Line is the 1-based line the token started on.
	Line int
}

// String formats the token approximately as it appeared in source,
// for use in error messages.
func (tok Token) String() string {
	switch tok.Kind {
	case EOF:
		return "<eof>"
	case String:
		return quote(tok.Value)
	case Identifier, Number, Keyword, Operator:
		return tok.Value
	default:
		return tok.Kind.String()
	}
}

// Kind is an enumeration of the closed set of token tags described by
// the language grammar. The zero value is [Identifier].
type Kind int

// Token kinds.
const (
	// Identifier is a name that is not a reserved word.
	Identifier Kind = iota // identifier
	// Keyword is one of Lua 5.1's reserved words; Value holds the
	// exact spelling ("and", "break", ...).
	Keyword // keyword
	// Number is a numeric literal; Value holds the literal text as it
	// appeared in source (decimal or hexadecimal).
	Number // number
	// String is a (short or long bracketed) string literal; Value
	// holds the decoded byte contents, escapes already resolved.
	String // string
	// Operator is one of Lua's punctuation/operator tokens.
	Operator // operator
	// Character is a single-character punctuation token that does not
	// fit the Operator set as commonly grouped (kept distinct from
	// Operator per the token model in spec.md so callers can special
	// case delimiters; in practice this compiler assigns every
	// punctuation spelling a distinct Operator value, so Character is
	// unused by the tokenizer but is part of the closed set consumers
	// may switch over).
	Character // character
	// EOF marks the end of input.
	EOF // eof
)

// keywords is the closed set of Lua 5.1 reserved words.
var keywords = map[string]struct{}{
	"and": {}, "break": {}, "do": {}, "else": {}, "elseif": {},
	"end": {}, "false": {}, "for": {}, "function": {}, "if": {},
	"in": {}, "local": {}, "nil": {}, "not": {}, "or": {},
	"repeat": {}, "return": {}, "then": {}, "true": {}, "until": {},
	"while": {},
}

// IsKeyword reports whether name is one of Lua 5.1's reserved words.
func IsKeyword(name string) bool {
	_, ok := keywords[name]
	return ok
}

func quote(s string) string {
	return fmt.Sprintf("%q", s)
}
