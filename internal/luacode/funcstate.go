// Copyright (C) 1994-2024 Lua.org, PUC-Rio.
// SPDX-License-Identifier: MIT

package luacode

import (
	"github.com/lua51c/luac51/internal/xslices"
)

// maxStackSize is the largest register index a Lua 5.1 function may
// use, per the reference implementation's LUAI_MAXCCALLS-independent
// MAXSTACK constant.
const maxStackSize = 250

// localVar is one entry of a [funcState]'s active-local stack: the
// name currently bound to a register, and the register itself.
type localVar struct {
	name string
	reg  uint8
}

// blockScope tracks one nested block for break-target patching and
// local-variable scoping (spec.md §4.3.6, §4.3.7).
type blockScope struct {
	localBase  int // len(fs.actives) on entry to the block
	isLoop     bool
	breakJumps []int // pending JMP instruction indices to patch to the loop's exit
	hasUpval   bool  // a local in this block was captured by a nested closure
}

// funcState is the code generator's per-function compilation state,
// grounded on the teacher's funcState/expDesc-driven register allocator
// (spec.md §4.3.1-§4.3.3) but simplified for Lua 5.1's flatter
// instruction set: no k-flag bookkeeping, no separate expDesc value
// kind for integer vs float constants.
type funcState struct {
	proto  *Prototype
	parent *funcState

	freeReg uint8 // index of the first unused register

	actives []localVar
	blocks  []*blockScope

	// localStartPC records the program counter each active local's
	// register became live at, so closeLocals can emit an accurate
	// [LocalVariable] debug entry when the local goes out of scope.
	localStartPC map[uint8]int32

	// upvalIndex memoizes name -> upvalue index for this function, so
	// resolving the same free variable twice returns the same slot
	// (spec.md §4.3.3's upvalue resolution).
	upvalIndex map[string]int
}

func newFuncState(parent *funcState, source string, lineDefined int32) *funcState {
	return &funcState{
		proto: &Prototype{
			Source:      source,
			LineDefined: lineDefined,
		},
		parent:     parent,
		upvalIndex: make(map[string]int),
	}
}

// emit appends an instruction at the given source line and returns its
// program counter.
func (fs *funcState) emit(instr Instruction, line int32) int {
	fs.proto.Code = append(fs.proto.Code, instr)
	fs.proto.Lines = append(fs.proto.Lines, line)
	return len(fs.proto.Code) - 1
}

func (fs *funcState) pc() int { return len(fs.proto.Code) }

// reserveRegs allocates n consecutive registers starting at freeReg and
// returns the base, bumping MaxStackSize as needed.
func (fs *funcState) reserveRegs(n int) uint8 {
	base := fs.freeReg
	fs.freeReg += uint8(n)
	if int(fs.freeReg) > maxStackSize {
		panic(&Error{Line: int(fs.proto.LineDefined), Msg: "function or expression needs too many registers"})
	}
	if fs.freeReg > fs.proto.MaxStackSize {
		fs.proto.MaxStackSize = fs.freeReg
	}
	return base
}

// freeToReg discards temporary registers down to (and including) reg,
// implementing the LIFO temporary-register free list of spec.md
// §4.3.1: only registers above the last active local can be freed this
// way, mirroring xslices.Pop/Last's stack discipline.
func (fs *funcState) freeToReg(reg uint8) {
	if reg >= uint8(len(fs.actives)) && reg < fs.freeReg {
		fs.freeReg = reg
	}
}

func (fs *funcState) freeReg1() {
	if fs.freeReg > 0 && int(fs.freeReg) > len(fs.actives) {
		fs.freeReg--
	}
}

// addConstant interns v into the constant pool, returning its index.
func (fs *funcState) addConstant(v Value) int {
	for i, c := range fs.proto.Constants {
		if c.Equal(v) {
			return i
		}
	}
	fs.proto.Constants = append(fs.proto.Constants, v)
	return len(fs.proto.Constants) - 1
}

// pushBlock begins a new lexical block. isLoop marks a block whose
// break statements should target its exit.
func (fs *funcState) pushBlock(isLoop bool) *blockScope {
	b := &blockScope{localBase: len(fs.actives), isLoop: isLoop}
	fs.blocks = append(fs.blocks, b)
	return b
}

// pushLoopBlock is [funcState.pushBlock] with isLoop set, for the
// control-flow constructs that are break targets.
func (fs *funcState) pushLoopBlock() *blockScope { return fs.pushBlock(true) }

// innermostLoop returns the nearest enclosing loop block, or nil if
// there is none (a break outside any loop).
func (fs *funcState) innermostLoop() *blockScope {
	for i := len(fs.blocks) - 1; i >= 0; i-- {
		if fs.blocks[i].isLoop {
			return fs.blocks[i]
		}
	}
	return nil
}

// anyCapturedSince reports whether any block at or above localBase has
// had a local captured by a nested closure, meaning a break jumping out
// through it needs an explicit CLOSE first.
func (fs *funcState) anyCapturedSince(localBase int) bool {
	for i := len(fs.blocks) - 1; i >= 0 && fs.blocks[i].localBase >= localBase; i-- {
		if fs.blocks[i].hasUpval {
			return true
		}
	}
	return false
}

// popBlock closes the innermost block, emitting a CLOSE instruction if
// any of its locals were captured by a nested closure (spec.md's CLOSE
// semantics), and returns the block so callers can patch its pending
// break jumps.
func (fs *funcState) popBlock(line int32) *blockScope {
	b := xslices.Last(fs.blocks)
	fs.blocks = xslices.Pop(fs.blocks, 1)
	if b.hasUpval {
		fs.emit(ABCInstruction(OpClose, uint32(b.localBase), 0, 0), line)
	}
	fs.closeLocals(b.localBase, line)
	return b
}

// closeLocals removes active locals down to base, marking their
// registers free.
func (fs *funcState) closeLocals(base int, line int32) {
	for len(fs.actives) > base {
		last := xslices.Last(fs.actives)
		end := int32(fs.pc())
		fs.proto.Locals = append(fs.proto.Locals, LocalVariable{
			Name: last.name, StartPC: fs.localStartPC[last.reg], EndPC: end,
		})
		fs.actives = xslices.Pop(fs.actives, 1)
	}
	fs.freeReg = 0
	if len(fs.actives) > 0 {
		fs.freeReg = xslices.Last(fs.actives).reg + 1
	}
}

// declareLocal reserves a fresh register and binds name to it, active
// from the current program counter.
func (fs *funcState) declareLocal(name string, line int32) uint8 {
	reg := fs.reserveRegs(1)
	fs.bindLocal(name, reg, line)
	return reg
}

// bindLocal binds name to an already-reserved register, without
// allocating a new one. Used when a register was reserved as part of a
// larger group (e.g. a `local a, b = ...` list, or a for-loop's control
// variables) before the names that occupy it are known.
func (fs *funcState) bindLocal(name string, reg uint8, line int32) {
	if fs.localStartPC == nil {
		fs.localStartPC = make(map[uint8]int32)
	}
	fs.localStartPC[reg] = int32(fs.pc())
	fs.actives = append(fs.actives, localVar{name: name, reg: reg})
}

// resolveLocal looks up name among this function's own active locals,
// most-recently-declared first (so shadowing resolves to the inner
// binding, per SPEC_FULL.md's supplemented shadowing rule).
func (fs *funcState) resolveLocal(name string) (reg uint8, ok bool) {
	for i := len(fs.actives) - 1; i >= 0; i-- {
		if fs.actives[i].name == name {
			return fs.actives[i].reg, true
		}
	}
	return 0, false
}

// resolveUpvalue resolves name to an upvalue index, walking the
// enclosing-function chain and memoizing the result (spec.md §4.3.3).
// It marks the owning function's local as captured so CLOSE gets
// emitted when that local's block exits.
func (fs *funcState) resolveUpvalue(name string) (idx int, ok bool) {
	if fs.parent == nil {
		return 0, false
	}
	if i, cached := fs.upvalIndex[name]; cached {
		return i, true
	}
	if reg, found := fs.parent.resolveLocal(name); found {
		fs.parent.markBlockHasUpval(reg)
		idx = fs.addUpvalue(name, UpvalueDescriptor{InStack: true, Index: reg})
		return idx, true
	}
	if pidx, found := fs.parent.resolveUpvalue(name); found {
		idx = fs.addUpvalue(name, UpvalueDescriptor{InStack: false, Index: uint8(pidx)})
		return idx, true
	}
	return 0, false
}

func (fs *funcState) markBlockHasUpval(reg uint8) {
	for i := len(fs.blocks) - 1; i >= 0; i-- {
		if int(reg) >= fs.blocks[i].localBase {
			fs.blocks[i].hasUpval = true
			return
		}
	}
}

func (fs *funcState) addUpvalue(name string, desc UpvalueDescriptor) int {
	fs.proto.Upvalues = append(fs.proto.Upvalues, desc)
	fs.proto.UpvalueNames = append(fs.proto.UpvalueNames, name)
	idx := len(fs.proto.Upvalues) - 1
	fs.upvalIndex[name] = idx
	return idx
}

// jump emits an unconditional JMP with a placeholder offset and
// returns its program counter for later patching via [funcState.patch].
func (fs *funcState) jump(line int32) int {
	return fs.emit(AsBxInstruction(OpJmp, 0, 0), line)
}

// patch fixes the jump at pc (a JMP or FORPREP) to target dest,
// keeping its opcode and A operand.
func (fs *funcState) patch(pc, dest int) {
	sbx := int32(dest - pc - 1)
	instr := fs.proto.Code[pc]
	fs.proto.Code[pc] = AsBxInstruction(instr.OpCode(), instr.ArgA(), sbx)
}

// patchToHere patches pc to jump to the current program counter.
func (fs *funcState) patchToHere(pc int) { fs.patch(pc, fs.pc()) }

// patchList patches every jump in pcs to dest.
func (fs *funcState) patchList(pcs []int, dest int) {
	for _, pc := range pcs {
		fs.patch(pc, dest)
	}
}

// testAndJump emits a TEST/JMP pair that jumps when reg's truthiness
// equals jumpIfTrue, and returns the JMP's program counter for later
// patching. This is the primitive spec.md §4.3's short-circuit "and"/
// "or" and conditional statements are built from.
func (fs *funcState) testAndJump(reg uint8, jumpIfTrue bool, line int32) int {
	var c uint32
	if jumpIfTrue {
		c = 1
	}
	fs.emit(ABCInstruction(OpTest, uint32(reg), 0, c), line)
	return fs.jump(line)
}
