// Copyright 2026 The luac51 Authors
// SPDX-License-Identifier: MIT

package luacode

import (
	"testing"

	"github.com/lua51c/luac51/internal/luaparse"
	"github.com/lua51c/luac51/internal/lualex"
)

// compileChunk runs the tokenizer and parser and returns the generated
// top-level prototype, failing the test on any pipeline error.
func compileChunk(t *testing.T, src string) *Prototype {
	t.Helper()
	tokens, err := lualex.Tokenize([]byte(src))
	if err != nil {
		t.Fatalf("Tokenize(%q): %v", src, err)
	}
	block, err := luaparse.Parse(tokens, 0)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	proto, err := Generate("=test", block, 0)
	if err != nil {
		t.Fatalf("Generate(%q): %v", src, err)
	}
	return proto
}

func opcodes(p *Prototype) []OpCode {
	ops := make([]OpCode, len(p.Code))
	for i, instr := range p.Code {
		ops[i] = instr.OpCode()
	}
	return ops
}

func TestGenerateReturnEmptyChunk(t *testing.T) {
	p := compileChunk(t, "")
	if len(p.Code) == 0 || p.Code[len(p.Code)-1].OpCode() != OpReturn {
		t.Errorf("empty chunk code = %v, want to end in RETURN", opcodes(p))
	}
	if !p.IsVararg {
		t.Error("top-level chunk IsVararg = false, want true")
	}
}

func TestGenerateLocalAssignment(t *testing.T) {
	p := compileChunk(t, "local x = 1")
	want := []OpCode{OpLoadK, OpReturn}
	if got := opcodes(p); !equalOps(got, want) {
		t.Errorf("opcodes = %v, want %v", got, want)
	}
}

func TestGenerateArithmeticConstantFolds(t *testing.T) {
	p := compileChunk(t, "local x = 1 + 2")
	for _, instr := range p.Code {
		if instr.OpCode() == OpAdd {
			t.Fatalf("code = %v, want the ADD folded away at compile time", opcodes(p))
		}
	}
	if len(p.Constants) != 1 || !p.Constants[0].IsNumber() || p.Constants[0].Number() != 3 {
		t.Errorf("Constants = %v, want a single constant 3", p.Constants)
	}
}

func TestGenerateStringConcatFolds(t *testing.T) {
	p := compileChunk(t, `local x = "a" .. "b"`)
	for _, instr := range p.Code {
		if instr.OpCode() == OpConcat {
			t.Fatalf("code = %v, want the CONCAT folded away at compile time", opcodes(p))
		}
	}
	if len(p.Constants) != 1 || p.Constants[0].String() != "ab" {
		t.Errorf("Constants = %v, want a single constant \"ab\"", p.Constants)
	}
}

func TestGenerateConcatAcrossVariablesNotFolded(t *testing.T) {
	p := compileChunk(t, "local a, b = 1, 2\nlocal c = a .. b")
	found := false
	for _, instr := range p.Code {
		if instr.OpCode() == OpConcat {
			found = true
		}
	}
	if !found {
		t.Errorf("code = %v, want a CONCAT instruction (folding must not cross variables)", opcodes(p))
	}
}

func TestGenerateIfEmitsTestAndJump(t *testing.T) {
	p := compileChunk(t, "if x then y = 1 end")
	hasTest, hasJmp := false, false
	for _, instr := range p.Code {
		switch instr.OpCode() {
		case OpTest, OpTestSet:
			hasTest = true
		case OpJmp:
			hasJmp = true
		}
	}
	if !hasTest || !hasJmp {
		t.Errorf("code = %v, want a TEST/TESTSET and a JMP", opcodes(p))
	}
}

func TestGenerateNumericForUsesForPrepForLoop(t *testing.T) {
	p := compileChunk(t, "for i = 1, 10 do end")
	ops := opcodes(p)
	hasPrep, hasLoop := false, false
	for _, op := range ops {
		if op == OpForPrep {
			hasPrep = true
		}
		if op == OpForLoop {
			hasLoop = true
		}
	}
	if !hasPrep || !hasLoop {
		t.Errorf("opcodes = %v, want FORPREP and FORLOOP", ops)
	}
}

func TestGenerateBreakOutsideLoopIsError(t *testing.T) {
	tokens, err := lualex.Tokenize([]byte("do break end"))
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	block, err := luaparse.Parse(tokens, 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := Generate("=test", block, 0); err == nil {
		t.Fatal("Generate(break outside loop) = nil error, want an error")
	} else if ce, ok := err.(*Error); !ok || ce.Msg != "break outside a loop" {
		t.Errorf("Generate error = %v, want \"break outside a loop\"", err)
	}
}

func TestGenerateMethodCallEmitsSelf(t *testing.T) {
	p := compileChunk(t, "obj:method(1, 2)")
	found := false
	for _, instr := range p.Code {
		if instr.OpCode() == OpSelf {
			found = true
		}
	}
	if !found {
		t.Errorf("code = %v, want a SELF instruction for the method call", opcodes(p))
	}
}

func TestGenerateFunctionNestingDepthLimit(t *testing.T) {
	src := ""
	for i := 0; i < 5; i++ {
		src += "local f = function()\n"
	}
	for i := 0; i < 5; i++ {
		src += "end\n"
	}
	tokens, err := lualex.Tokenize([]byte(src))
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	block, err := luaparse.Parse(tokens, 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := Generate("=test", block, 3); err == nil {
		t.Fatal("Generate with maxDepth=3 on 5-deep nesting = nil error, want an error")
	}
}

func TestGenerateTableConstructorSetList(t *testing.T) {
	p := compileChunk(t, "local t = {1, 2, 3}")
	hasNewTable, hasSetList := false, false
	for _, instr := range p.Code {
		switch instr.OpCode() {
		case OpNewTable:
			hasNewTable = true
		case OpSetList:
			hasSetList = true
		}
	}
	if !hasNewTable || !hasSetList {
		t.Errorf("code = %v, want NEWTABLE and SETLIST", opcodes(p))
	}
}

func TestGenerateTableConstructorMultretTailEmitsSingleSetList(t *testing.T) {
	// {1, 2, f()} must flush the pending array entries and the open
	// call results with exactly one "to top" SETLIST; a second SETLIST
	// would read the stack after the first already reset it.
	p := compileChunk(t, "local t = {1, 2, f()}")
	count := 0
	for _, instr := range p.Code {
		if instr.OpCode() == OpSetList {
			count++
			if instr.ArgB() != 0 {
				t.Errorf("SETLIST B = %d, want 0 (to top)", instr.ArgB())
			}
		}
	}
	if count != 1 {
		t.Errorf("code = %v, want exactly one SETLIST, got %d", opcodes(p), count)
	}
}

func TestGenerateMultipleAssignmentStoresInReverseLValueOrder(t *testing.T) {
	// i, t[i] = 2, 99 must SETTABLE using the original i (captured
	// before any store runs) before i itself is overwritten, so the
	// SETTABLE has to precede the MOVE that stores the new i into i's
	// register (register 0: i is the first local declared).
	p := compileChunk(t, "local i, t\ni, t[i] = 2, 99")
	settleIdx, storeToIIdx := -1, -1
	for idx, instr := range p.Code {
		switch {
		case instr.OpCode() == OpSetTable:
			settleIdx = idx
		case instr.OpCode() == OpMove && instr.ArgA() == 0:
			storeToIIdx = idx
		}
	}
	if settleIdx == -1 {
		t.Fatalf("code = %v, want a SETTABLE instruction", opcodes(p))
	}
	if storeToIIdx == -1 {
		t.Fatalf("code = %v, want a MOVE into register 0 (i)", opcodes(p))
	}
	if settleIdx > storeToIIdx {
		t.Errorf("SETTABLE at %d executes after the store to i at %d, want it first", settleIdx, storeToIIdx)
	}
}

func TestGenerateComparisonEvaluatesOperandsInSourceOrder(t *testing.T) {
	// f() > g() compiles to LT with swapped register operands, but f
	// must still be compiled (and its global reference interned) before
	// g regardless of the swap, since either call can have side effects.
	p := compileChunk(t, "if f() > g() then end")
	if len(p.Constants) < 2 {
		t.Fatalf("Constants = %v, want at least f and g", p.Constants)
	}
	if p.Constants[0].String() != "f" || p.Constants[1].String() != "g" {
		t.Errorf("Constants = %v, want [f g] in source order", p.Constants)
	}
	found := false
	for _, instr := range p.Code {
		if instr.OpCode() == OpLt {
			found = true
		}
	}
	if !found {
		t.Errorf("code = %v, want a LT instruction for f() > g()", opcodes(p))
	}
}

func TestGenerateTableConstructorSizesNewTable(t *testing.T) {
	p := compileChunk(t, `local t = {1, 2, 3, x = 1, y = 2}`)
	for _, instr := range p.Code {
		if instr.OpCode() == OpNewTable {
			if instr.ArgB() != 3 {
				t.Errorf("NEWTABLE array-size hint = %d, want 3", instr.ArgB())
			}
			if instr.ArgC() != 2 {
				t.Errorf("NEWTABLE hash-size hint = %d, want 2", instr.ArgC())
			}
			return
		}
	}
	t.Fatalf("code = %v, want a NEWTABLE instruction", opcodes(p))
}

func equalOps(a, b []OpCode) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
