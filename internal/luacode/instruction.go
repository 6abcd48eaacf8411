// Copyright (C) 1994-2024 Lua.org, PUC-Rio.
// SPDX-License-Identifier: MIT

package luacode

import "fmt"

// Instruction is a single Lua 5.1 virtual machine instruction, encoded
// per spec.md §4.4's classic 32-bit layout: a 6-bit opcode, an 8-bit A
// argument, and either a 9-bit B and 9-bit C, or an 18-bit Bx/sBx in
// their place. Unlike Lua 5.4, there is no k flag and no separate
// OP_EXTRAARG instruction.
type Instruction uint32

const (
	sizeOp = 6
	sizeA  = 8
	sizeB  = 9
	sizeC  = 9
	sizeBx = sizeB + sizeC

	posOp = 0
	posA  = posOp + sizeOp
	posC  = posA + sizeA
	posB  = posC + sizeC
	posBx = posC

	maxArgA  = 1<<sizeA - 1
	maxArgB  = 1<<sizeB - 1
	maxArgC  = 1<<sizeC - 1
	maxArgBx = 1<<sizeBx - 1
	maxArgSBx = maxArgBx >> 1
)

// BitRK marks a B or C argument as referring to the constant table
// instead of a register (spec.md §4.3's RK-operand encoding).
const BitRK = 1 << (sizeB - 1)

// IsConstant reports whether an RK-encoded argument refers to the
// constant table rather than a register.
func IsConstant(rk uint32) bool { return rk&BitRK != 0 }

// ConstantIndex extracts the constant-table index from an RK-encoded
// argument for which [IsConstant] is true.
func ConstantIndex(rk uint32) int { return int(rk &^ BitRK) }

// RKAsConstant encodes a constant-table index as an RK argument.
func RKAsConstant(index int) uint32 { return uint32(index) | BitRK }

// MaxIndexRK is the largest constant index that still fits in an RK
// argument alongside the BitRK marker bit.
const MaxIndexRK = maxArgC - BitRK

// ABCInstruction builds an [OpModeABC] instruction. It panics if op is
// not an ABC-mode opcode or an argument overflows its field.
func ABCInstruction(op OpCode, a, b, c uint32) Instruction {
	if op.OpMode() != OpModeABC {
		panic("ABCInstruction with non-ABC opcode")
	}
	if a > maxArgA || b > maxArgB || c > maxArgC {
		panic("ABCInstruction argument out of range")
	}
	return Instruction(op)<<posOp | Instruction(a)<<posA | Instruction(b)<<posB | Instruction(c)<<posC
}

// ABxInstruction builds an [OpModeABx] instruction with an unsigned Bx
// argument, used by LOADK, GETGLOBAL, SETGLOBAL, and CLOSURE.
func ABxInstruction(op OpCode, a uint32, bx uint32) Instruction {
	if op.OpMode() != OpModeABx {
		panic("ABxInstruction with non-ABx opcode")
	}
	if a > maxArgA || bx > maxArgBx {
		panic("ABxInstruction argument out of range")
	}
	return Instruction(op)<<posOp | Instruction(a)<<posA | Instruction(bx)<<posBx
}

// AsBxInstruction builds an [OpModeAsBx] instruction with a signed sBx
// argument, used by JMP, FORLOOP, and FORPREP.
func AsBxInstruction(op OpCode, a uint32, sbx int32) Instruction {
	if op.OpMode() != OpModeAsBx {
		panic("AsBxInstruction with non-AsBx opcode")
	}
	if a > maxArgA || sbx < -maxArgSBx || sbx > maxArgSBx {
		panic("AsBxInstruction argument out of range")
	}
	return Instruction(op)<<posOp | Instruction(a)<<posA | Instruction(sbx+maxArgSBx)<<posBx
}

// OpCode returns the instruction's opcode.
func (i Instruction) OpCode() OpCode {
	return OpCode(i >> posOp & (1<<sizeOp - 1))
}

// ArgA returns the A argument, present on every instruction.
func (i Instruction) ArgA() uint32 { return uint32(i>>posA) & maxArgA }

// ArgB returns the B argument of an [OpModeABC] instruction.
func (i Instruction) ArgB() uint32 { return uint32(i>>posB) & maxArgB }

// ArgC returns the C argument of an [OpModeABC] instruction.
func (i Instruction) ArgC() uint32 { return uint32(i>>posC) & maxArgC }

// ArgBx returns the unsigned Bx argument of an [OpModeABx] instruction.
func (i Instruction) ArgBx() uint32 { return uint32(i>>posBx) & maxArgBx }

// ArgSBx returns the signed sBx argument of an [OpModeAsBx] instruction.
func (i Instruction) ArgSBx() int32 { return int32(i.ArgBx()) - maxArgSBx }

func (i Instruction) String() string {
	op := i.OpCode()
	switch op.OpMode() {
	case OpModeABC:
		return fmt.Sprintf("%-10s %d %d %d", op, i.ArgA(), i.ArgB(), i.ArgC())
	case OpModeABx:
		return fmt.Sprintf("%-10s %d %d", op, i.ArgA(), i.ArgBx())
	case OpModeAsBx:
		return fmt.Sprintf("%-10s %d %d", op, i.ArgA(), i.ArgSBx())
	default:
		return fmt.Sprintf("Instruction(%#08x)", uint32(i))
	}
}

// OpCode enumerates the Lua 5.1 opcode set (spec.md §4.3), in the exact
// numeric order the reference lopcodes.h assigns them — required, since
// the binary chunk format encodes opcodes as raw numbers with no name
// table.
type OpCode uint8

const (
	OpMove OpCode = iota
	OpLoadK
	OpLoadBool
	OpLoadNil
	OpGetUpval
	OpGetGlobal
	OpGetTable
	OpSetGlobal
	OpSetUpval
	OpSetTable
	OpNewTable
	OpSelf
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpUnm
	OpNot
	OpLen
	OpConcat
	OpJmp
	OpEq
	OpLt
	OpLe
	OpTest
	OpTestSet
	OpCall
	OpTailCall
	OpReturn
	OpForLoop
	OpForPrep
	OpTForLoop
	OpSetList
	OpClose
	OpClosure
	OpVararg

	opCodeCount
)

// OpMode is the instruction encoding an [OpCode] uses.
type OpMode int

const (
	OpModeABC OpMode = iota
	OpModeABx
	OpModeAsBx
)

var opModes = [opCodeCount]OpMode{
	OpMove: OpModeABC, OpLoadK: OpModeABx, OpLoadBool: OpModeABC, OpLoadNil: OpModeABC,
	OpGetUpval: OpModeABC, OpGetGlobal: OpModeABx, OpGetTable: OpModeABC,
	OpSetGlobal: OpModeABx, OpSetUpval: OpModeABC, OpSetTable: OpModeABC,
	OpNewTable: OpModeABC, OpSelf: OpModeABC,
	OpAdd: OpModeABC, OpSub: OpModeABC, OpMul: OpModeABC, OpDiv: OpModeABC,
	OpMod: OpModeABC, OpPow: OpModeABC, OpUnm: OpModeABC, OpNot: OpModeABC, OpLen: OpModeABC,
	OpConcat: OpModeABC, OpJmp: OpModeAsBx,
	OpEq: OpModeABC, OpLt: OpModeABC, OpLe: OpModeABC,
	OpTest: OpModeABC, OpTestSet: OpModeABC,
	OpCall: OpModeABC, OpTailCall: OpModeABC, OpReturn: OpModeABC,
	OpForLoop: OpModeAsBx, OpForPrep: OpModeAsBx, OpTForLoop: OpModeABC,
	OpSetList: OpModeABC, OpClose: OpModeABC, OpClosure: OpModeABx, OpVararg: OpModeABC,
}

// IsValid reports whether op is one of the known Lua 5.1 opcodes.
func (op OpCode) IsValid() bool { return op < opCodeCount }

// OpMode returns the instruction format op uses.
func (op OpCode) OpMode() OpMode {
	if !op.IsValid() {
		return OpModeABC
	}
	return opModes[op]
}

var opCodeNames = [opCodeCount]string{
	OpMove: "MOVE", OpLoadK: "LOADK", OpLoadBool: "LOADBOOL", OpLoadNil: "LOADNIL",
	OpGetUpval: "GETUPVAL", OpGetGlobal: "GETGLOBAL", OpGetTable: "GETTABLE",
	OpSetGlobal: "SETGLOBAL", OpSetUpval: "SETUPVAL", OpSetTable: "SETTABLE",
	OpNewTable: "NEWTABLE", OpSelf: "SELF",
	OpAdd: "ADD", OpSub: "SUB", OpMul: "MUL", OpDiv: "DIV", OpMod: "MOD", OpPow: "POW",
	OpUnm: "UNM", OpNot: "NOT", OpLen: "LEN", OpConcat: "CONCAT", OpJmp: "JMP",
	OpEq: "EQ", OpLt: "LT", OpLe: "LE", OpTest: "TEST", OpTestSet: "TESTSET",
	OpCall: "CALL", OpTailCall: "TAILCALL", OpReturn: "RETURN",
	OpForLoop: "FORLOOP", OpForPrep: "FORPREP", OpTForLoop: "TFORLOOP",
	OpSetList: "SETLIST", OpClose: "CLOSE", OpClosure: "CLOSURE", OpVararg: "VARARG",
}

func (op OpCode) String() string {
	if !op.IsValid() {
		return fmt.Sprintf("OpCode(%d)", uint8(op))
	}
	return opCodeNames[op]
}
