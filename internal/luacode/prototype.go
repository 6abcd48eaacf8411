// Copyright (C) 1994-2024 Lua.org, PUC-Rio.
// SPDX-License-Identifier: MIT

package luacode

// Prototype is a compiled function template, produced by [Generate]
// (spec.md §3, §4.3) and serialized by [Prototype.MarshalBinary]
// (spec.md §4.4). It holds no closure state (upvalues are bound at
// runtime by the loader that instantiates it) — only the static
// information every activation of the function shares.
type Prototype struct {
	// Source is the chunk name this function was defined in, used only
	// for the top-level Prototype (nested functions leave it empty and
	// inherit the parent's when the whole chunk is written out).
	Source string

	// LineDefined and LastLineDefined bound the function's source
	// range; LineDefined is 0 for the implicit top-level chunk.
	LineDefined     int32
	LastLineDefined int32

	NumParams uint8
	IsVararg  bool

	// MaxStackSize is the number of registers this function needs,
	// computed by the register allocator in internal/luacode/funcstate.go.
	MaxStackSize uint8

	// Code is the instruction stream.
	Code []Instruction
	// Lines holds one source line per entry of Code, per spec.md §3's
	// "parallel line-number list" requirement — unlike Lua 5.4's
	// delta-encoded line info, this is a flat lookup table matching
	// what the Lua 5.1 binary format itself stores.
	Lines []int32

	Constants []Value
	Upvalues  []UpvalueDescriptor
	Locals    []LocalVariable
	Prototypes []*Prototype

	// UpvalueNames are debug names for Upvalues, parallel to it. Lua
	// 5.1's binary format stores these separately from the upvalue
	// descriptors themselves.
	UpvalueNames []string
}

// UpvalueDescriptor says where a closure should find the value to bind
// to one of a nested function's upvalues (spec.md §4.3's upvalue
// resolution): either a register of the immediately enclosing
// function's stack frame (InStack true), or one of the enclosing
// function's own upvalues (InStack false).
type UpvalueDescriptor struct {
	InStack bool
	Index   uint8
}

// LocalVariable is one entry of a Prototype's local-variable debug
// table: the name a register held between the two program counters
// [StartPC, EndPC) (spec.md §3).
type LocalVariable struct {
	Name    string
	StartPC int32
	EndPC   int32
}
