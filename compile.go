// Copyright 2026 The luac51 Authors
// SPDX-License-Identifier: MIT

// Package compile glues the tokenizer, parser, code generator, and
// binary emitter into the single convenience entry point described in
// spec.md §6: source bytes in, a Lua 5.1 binary chunk out.
package compile

import (
	"fmt"

	"github.com/lua51c/luac51/internal/luacode"
	"github.com/lua51c/luac51/internal/luaparse"
	"github.com/lua51c/luac51/internal/lualex"
)

// DefaultMaxNestingDepth bounds how deeply nested blocks, expressions,
// and function literals may be (spec.md §5). The parser applies it to
// all three; the code generator applies the same value to nested
// function literals.
const DefaultMaxNestingDepth = luaparse.DefaultMaxNestingDepth

// Options configures [Compile].
type Options struct {
	// ChunkName is recorded as the compiled chunk's Source field.
	// Conventionally "@" followed by a file
	// path, or "=" followed by an arbitrary name for non-file chunks,
	// matching the reference implementation's convention.
	ChunkName string

	// MaxNestingDepth overrides [DefaultMaxNestingDepth] when non-zero.
	MaxNestingDepth int
}

// Compile tokenizes, parses, and generates bytecode for source,
// returning the binary chunk from [luacode.Prototype.MarshalBinary].
// It returns the first error encountered unchanged, with no partial
// bytecode produced, per spec.md §5: a lex error is a [lualex.Error],
// a syntax error a [luaparse.Error], and a static code-generation
// violation (too many locals, break outside a loop, ...) a
// [luacode.Error].
func Compile(source []byte, opts Options) ([]byte, error) {
	maxDepth := opts.MaxNestingDepth
	if maxDepth == 0 {
		maxDepth = DefaultMaxNestingDepth
	}

	tokens, err := lualex.Tokenize(source)
	if err != nil {
		return nil, err
	}
	block, err := luaparse.Parse(tokens, maxDepth)
	if err != nil {
		return nil, err
	}
	proto, err := luacode.Generate(opts.ChunkName, block, maxDepth)
	if err != nil {
		return nil, err
	}
	chunk, err := proto.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	return chunk, nil
}
