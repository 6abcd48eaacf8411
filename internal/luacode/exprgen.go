// Copyright (C) 1994-2024 Lua.org, PUC-Rio.
// SPDX-License-Identifier: MIT

package luacode

import "github.com/lua51c/luac51/internal/luaast"

// compileExprToNextReg reserves the next free register and compiles e
// into it as a single value.
func (g *generator) compileExprToNextReg(fs *funcState, e luaast.Expr) uint8 {
	reg := fs.reserveRegs(1)
	g.compileExprInto(fs, e, reg, int32(e.Pos()))
	return reg
}

// exprToAnyReg compiles e into whichever register already holds it
// (for a bare local reference) or a freshly reserved one, avoiding a
// redundant MOVE when e is already sitting in a register.
func (g *generator) exprToAnyReg(fs *funcState, e luaast.Expr) uint8 {
	if id, ok := e.(*luaast.Identifier); ok {
		if reg, ok := fs.resolveLocal(id.Name); ok {
			return reg
		}
	}
	return g.compileExprToNextReg(fs, e)
}

// exprToRK compiles e to an RK operand: a constant-table reference
// when e is a literal number or string (spec.md §4.3's RK-operand
// encoding), or a register otherwise.
func (g *generator) exprToRK(fs *funcState, e luaast.Expr) uint32 {
	switch v := e.(type) {
	case *luaast.Number:
		if k := fs.addConstant(NumberValue(v.Value)); k <= MaxIndexRK {
			return RKAsConstant(k)
		}
	case *luaast.String:
		if k := fs.addConstant(StringValue(v.Value)); k <= MaxIndexRK {
			return RKAsConstant(k)
		}
	}
	return uint32(g.exprToAnyReg(fs, e))
}

// captureToRK is like exprToRK but never returns a register aliasing an
// existing local: it copies a non-literal operand into a freshly
// reserved register. Used when capturing an lvalue's key ahead of a
// multiple assignment's stores, since a sibling lvalue's store may
// overwrite the original local before this key is used.
func (g *generator) captureToRK(fs *funcState, e luaast.Expr) uint32 {
	switch v := e.(type) {
	case *luaast.Number:
		if k := fs.addConstant(NumberValue(v.Value)); k <= MaxIndexRK {
			return RKAsConstant(k)
		}
	case *luaast.String:
		if k := fs.addConstant(StringValue(v.Value)); k <= MaxIndexRK {
			return RKAsConstant(k)
		}
	}
	return uint32(g.compileExprToNextReg(fs, e))
}

// compileExprList compiles exprs into want consecutive registers
// starting at the current freeReg, per spec.md §4.3's multi-value
// assignment rules: excess expressions are evaluated and discarded,
// missing ones are padded with nil, and if the last expression is a
// call or vararg it expands to fill the remaining slots. want == -1
// requests "as many results as the last expression produces"
// (multret), used for return statements, call arguments, and the open
// array part of a table constructor.
func (g *generator) compileExprList(fs *funcState, exprs []luaast.Expr, want int, line int32) {
	if len(exprs) == 0 {
		if want > 0 {
			base := fs.reserveRegs(want)
			fs.emit(ABCInstruction(OpLoadNil, uint32(base), uint32(int(base)+want-1), 0), line)
		}
		return
	}
	base := fs.freeReg
	for _, e := range exprs[:len(exprs)-1] {
		g.compileExprToNextReg(fs, e)
	}
	last := exprs[len(exprs)-1]
	have := len(exprs) - 1
	if want < 0 {
		g.compileExprMultRet(fs, last)
		return
	}
	need := want - have
	if need <= 0 {
		g.compileExprToNextReg(fs, last)
		fs.freeReg = base + uint8(want)
		return
	}
	g.compileExprFixedMultRet(fs, last, need)
	fs.freeReg = base + uint8(want)
}

// compileExprMultRet compiles e in "multret" position: if it's a call
// or vararg, it's left open (B/C == 0) so the VM fills the stack up to
// its current top; otherwise it behaves like a single-value compile.
func (g *generator) compileExprMultRet(fs *funcState, e luaast.Expr) {
	line := int32(e.Pos())
	switch v := e.(type) {
	case *luaast.FunctionCall:
		g.call(fs, v, -1, line)
	case *luaast.Vararg:
		fs.emit(ABCInstruction(OpVararg, uint32(fs.freeReg), 0, 0), line)
	default:
		g.compileExprToNextReg(fs, e)
	}
}

// compileExprFixedMultRet expands e, a call or vararg in tail position
// of an expression list, to produce exactly need values starting at
// the current freeReg.
func (g *generator) compileExprFixedMultRet(fs *funcState, e luaast.Expr, need int) {
	line := int32(e.Pos())
	switch v := e.(type) {
	case *luaast.FunctionCall:
		g.call(fs, v, need, line)
	case *luaast.Vararg:
		base := fs.reserveRegs(need)
		fs.emit(ABCInstruction(OpVararg, uint32(base), uint32(need+1), 0), line)
	default:
		base := fs.reserveRegs(1)
		g.compileExprInto(fs, e, base, line)
		if need > 1 {
			rest := fs.reserveRegs(need - 1)
			fs.emit(ABCInstruction(OpLoadNil, uint32(rest), uint32(int(rest)+need-2), 0), line)
		}
	}
}

// call compiles a function or method call, landing nresults return
// values at the call's base register. nresults == -1 leaves the
// result count open (multret, C == 0 in the emitted CALL); the last
// argument is likewise left open when it is itself a call or vararg,
// per spec.md §4.3's argument-expansion rule.
func (g *generator) call(fs *funcState, fc *luaast.FunctionCall, nresults int, line int32) {
	var base uint8
	if fc.IsMethod {
		base = fs.reserveRegs(2)
		g.compileExprInto(fs, fc.Callee, base, line)
		key := fs.addConstant(StringValue(fc.MethodName))
		fs.emit(ABCInstruction(OpSelf, uint32(base), uint32(base), RKAsConstant(key)), line)
	} else {
		base = fs.reserveRegs(1)
		g.compileExprInto(fs, fc.Callee, base, line)
	}
	openArgs := len(fc.Args) > 0 && isMultretExpr(fc.Args[len(fc.Args)-1])
	if openArgs {
		g.compileExprList(fs, fc.Args, -1, line)
	} else {
		g.compileExprList(fs, fc.Args, len(fc.Args), line)
	}
	b := uint32(0)
	if !openArgs {
		b = uint32(int(fs.freeReg)-int(base))
	}
	c := uint32(0)
	if nresults >= 0 {
		c = uint32(nresults + 1)
	}
	fs.emit(ABCInstruction(OpCall, uint32(base), b, c), line)
	if nresults >= 0 {
		fs.freeReg = base + uint8(nresults)
	} else {
		fs.freeReg = base + 1
	}
}

// compileCondition compiles cond so that control falls through when it
// is true, and returns the list of pending jumps to patch to wherever
// execution should continue when it is false.
func (g *generator) compileCondition(fs *funcState, cond luaast.Expr, line int32) []int {
	if b, ok := directBoolConstant(cond); ok {
		// A constant condition never needs the value materialized: a
		// constant false becomes an unconditional jump, and a constant
		// true falls through with no jump to patch.
		if b {
			return nil
		}
		return []int{fs.jump(line)}
	}
	reg := fs.freeReg
	fs.reserveRegs(1)
	g.compileExprInto(fs, cond, reg, line)
	pc := fs.testAndJump(reg, false, line)
	fs.freeToReg(reg)
	return []int{pc}
}

func directBoolConstant(e luaast.Expr) (bool, bool) {
	switch v := e.(type) {
	case *luaast.Boolean:
		return v.Value, true
	case *luaast.Nil:
		return false, true
	default:
		return false, false
	}
}

// compileExprInto compiles e so its value ends up in reg.
func (g *generator) compileExprInto(fs *funcState, e luaast.Expr, reg uint8, line int32) {
	switch v := e.(type) {
	case *luaast.Nil:
		fs.emit(ABCInstruction(OpLoadNil, uint32(reg), uint32(reg), 0), line)
	case *luaast.Boolean:
		b := uint32(0)
		if v.Value {
			b = 1
		}
		fs.emit(ABCInstruction(OpLoadBool, uint32(reg), b, 0), line)
	case *luaast.Number:
		k := fs.addConstant(NumberValue(v.Value))
		fs.emit(ABxInstruction(OpLoadK, uint32(reg), uint32(k)), line)
	case *luaast.String:
		k := fs.addConstant(StringValue(v.Value))
		fs.emit(ABxInstruction(OpLoadK, uint32(reg), uint32(k)), line)
	case *luaast.Vararg:
		fs.emit(ABCInstruction(OpVararg, uint32(reg), 2, 0), line)
	case *luaast.Identifier:
		g.loadIdentifier(fs, v, reg, line)
	case *luaast.Index:
		obj := g.exprToAnyReg(fs, v.Object)
		key := g.exprToRK(fs, v.Key)
		fs.emit(ABCInstruction(OpGetTable, uint32(reg), uint32(obj), key), line)
	case *luaast.Field:
		obj := g.exprToAnyReg(fs, v.Object)
		k := fs.addConstant(StringValue(v.Name))
		fs.emit(ABCInstruction(OpGetTable, uint32(reg), uint32(obj), RKAsConstant(k)), line)
	case *luaast.Paren:
		g.compileExprInto(fs, v.Inner, reg, line)
	case *luaast.UnaryOp:
		g.compileUnary(fs, v, reg, line)
	case *luaast.BinaryOp:
		g.compileBinary(fs, v, reg, line)
	case *luaast.FunctionCall:
		g.compileCallInto(fs, v, reg, line)
	case *luaast.Function:
		g.closure(fs, v, reg, line)
	case *luaast.Table:
		g.compileTable(fs, v, reg, line)
	default:
		panic(&Error{Line: int(line), Msg: "unsupported expression"})
	}
}

// compileCallInto compiles a call expression for exactly one result,
// landing it in reg.
func (g *generator) compileCallInto(fs *funcState, call *luaast.FunctionCall, reg uint8, line int32) {
	base := fs.freeReg
	if base != reg {
		// The caller already committed reg; evaluate the call at the
		// current top of stack and move the single result down.
		g.call(fs, call, 1, line)
		fs.emit(ABCInstruction(OpMove, uint32(reg), uint32(base), 0), line)
		fs.freeToReg(base)
		return
	}
	fs.reserveRegs(1)
	fs.freeReg = base
	g.call(fs, call, 1, line)
}

func (g *generator) loadIdentifier(fs *funcState, id *luaast.Identifier, reg uint8, line int32) {
	if local, ok := fs.resolveLocal(id.Name); ok {
		if local != reg {
			fs.emit(ABCInstruction(OpMove, uint32(reg), uint32(local), 0), line)
		}
		return
	}
	if idx, ok := fs.resolveUpvalue(id.Name); ok {
		fs.emit(ABCInstruction(OpGetUpval, uint32(reg), uint32(idx), 0), line)
		return
	}
	k := fs.addConstant(StringValue(id.Name))
	fs.emit(ABxInstruction(OpGetGlobal, uint32(reg), uint32(k)), line)
}

func (g *generator) compileUnary(fs *funcState, v *luaast.UnaryOp, reg uint8, line int32) {
	if lit, ok := v.Operand.(*luaast.Number); ok {
		if folded, ok := foldUnaryConstant(v.Op, NumberValue(lit.Value)); ok {
			g.compileExprInto(fs, foldedExpr(folded, line), reg, line)
			return
		}
	}
	operand := g.exprToAnyReg(fs, v.Operand)
	op := unaryOp[v.Op]
	fs.emit(ABCInstruction(op, uint32(reg), uint32(operand), 0), line)
}

func (g *generator) compileBinary(fs *funcState, v *luaast.BinaryOp, reg uint8, line int32) {
	switch v.Op {
	case "and":
		g.compileExprInto(fs, v.Left, reg, line)
		falseJump := fs.testAndJump(reg, false, line)
		g.compileExprInto(fs, v.Right, reg, line)
		fs.patchToHere(falseJump)
		return
	case "or":
		g.compileExprInto(fs, v.Left, reg, line)
		trueJump := fs.testAndJump(reg, true, line)
		g.compileExprInto(fs, v.Right, reg, line)
		fs.patchToHere(trueJump)
		return
	case "..":
		if lv, ok := literalValue(v.Left); ok {
			if rv, ok := literalValue(v.Right); ok {
				if folded, ok := foldConcat(lv, rv); ok {
					g.compileExprInto(fs, foldedExpr(folded, line), reg, line)
					return
				}
			}
		}
		g.compileConcat(fs, v, reg, line)
		return
	}
	if code, cond, swap, ok := compareOp(v.Op); ok {
		g.compileCompare(fs, v, reg, code, cond, swap, line)
		return
	}
	if ln, ok := v.Left.(*luaast.Number); ok {
		if rn, ok := v.Right.(*luaast.Number); ok {
			if folded, ok := foldConstant(v.Op, NumberValue(ln.Value), NumberValue(rn.Value)); ok {
				g.compileExprInto(fs, foldedExpr(folded, line), reg, line)
				return
			}
		}
	}
	left := g.exprToRK(fs, v.Left)
	right := g.exprToRK(fs, v.Right)
	op, ok := arithOp[v.Op]
	if !ok {
		panic(&Error{Line: int(line), Msg: "unsupported operator " + v.Op})
	}
	fs.emit(ABCInstruction(op, uint32(reg), left, right), line)
}

// compileConcat flattens a right-associative chain of ".." operators
// into a single CONCAT instruction over consecutive registers, the way
// the reference compiler does, instead of nesting one CONCAT per "..".
func (g *generator) compileConcat(fs *funcState, v *luaast.BinaryOp, reg uint8, line int32) {
	base := fs.freeReg
	var operands []luaast.Expr
	flattenConcat(v, &operands)
	for _, e := range operands {
		g.compileExprToNextReg(fs, e)
	}
	fs.emit(ABCInstruction(OpConcat, uint32(reg), uint32(base), uint32(base)+uint32(len(operands))-1), line)
	fs.freeToReg(base)
}

func flattenConcat(e luaast.Expr, out *[]luaast.Expr) {
	if b, ok := e.(*luaast.BinaryOp); ok && b.Op == ".." {
		flattenConcat(b.Left, out)
		flattenConcat(b.Right, out)
		return
	}
	*out = append(*out, e)
}

// compileCompare emits a comparison. v.Left and v.Right are always
// compiled in source order, since either may have side effects; swap
// only changes which compiled operand feeds the LT/LE instruction's B
// and C arguments, matching the reference compiler's codecomp (there is
// no native GT/GE opcode, so `a > b` runs as `b < a`, but `a` and `b`
// are still evaluated left to right).
func (g *generator) compileCompare(fs *funcState, v *luaast.BinaryOp, reg uint8, code OpCode, cond, swap bool, line int32) {
	a := g.exprToRK(fs, v.Left)
	b := g.exprToRK(fs, v.Right)
	if swap {
		a, b = b, a
	}
	c := uint32(0)
	if cond {
		c = 1
	}
	fs.emit(ABCInstruction(code, c, a, b), line)
	fs.emit(AsBxInstruction(OpJmp, 0, 1), line)
	fs.emit(ABCInstruction(OpLoadBool, uint32(reg), 0, 1), line)
	fs.emit(ABCInstruction(OpLoadBool, uint32(reg), 1, 0), line)
}

// literalValue extracts the compile-time constant a bare number or
// string literal expression represents, for the benefit of constant
// folding at sites (like concatenation) that need to inspect both
// operands before deciding whether to fold.
func literalValue(e luaast.Expr) (Value, bool) {
	switch v := e.(type) {
	case *luaast.Number:
		return NumberValue(v.Value), true
	case *luaast.String:
		return StringValue(v.Value), true
	default:
		return Value{}, false
	}
}

func foldedExpr(v Value, line int32) luaast.Expr {
	switch {
	case v.IsNumber():
		return &luaast.Number{ExprBase: luaast.ExprBase{Line: int(line)}, Value: v.Number()}
	case v.IsBool():
		return &luaast.Boolean{ExprBase: luaast.ExprBase{Line: int(line)}, Value: v.Bool()}
	case v.IsString():
		return &luaast.String{ExprBase: luaast.ExprBase{Line: int(line)}, Value: v.String()}
	default:
		return &luaast.Nil{ExprBase: luaast.ExprBase{Line: int(line)}}
	}
}

// lfieldsPerFlush is the batch size for SETLIST array-part flushes,
// matching the reference implementation's LFIELDS_PER_FLUSH.
const lfieldsPerFlush = 50

// int2fb encodes x as an 8-bit "floating point byte": exact for x < 8,
// otherwise a mantissa/exponent pair rounded up to cover x, matching
// the reference compiler's luaO_int2fb. NEWTABLE's B and C operands use
// this encoding for their array- and hash-size hints.
func int2fb(x int) uint32 {
	e := 0
	for x >= 16 {
		x = (x + 1) >> 1
		e++
	}
	if x < 8 {
		return uint32(x)
	}
	return uint32(((e + 1) << 3) | (x - 8))
}

// compileTable compiles a table constructor into reg, per spec.md
// §4.3's table-constructor handling: positional entries fill the array
// part via batched SETLIST instructions, named and computed-key
// entries are set one at a time with SETTABLE. The initial NEWTABLE's
// array- and hash-size hints are set from the constructor's own field
// counts, per spec.md §4.3.8.
func (g *generator) compileTable(fs *funcState, t *luaast.Table, reg uint8, line int32) {
	arrayCount, hashCount := 0, 0
	for _, entry := range t.Entries {
		if entry.Key != nil || entry.NameKey != "" {
			hashCount++
		} else {
			arrayCount++
		}
	}
	fs.emit(ABCInstruction(OpNewTable, uint32(reg), int2fb(arrayCount), int2fb(hashCount)), line)
	base := fs.freeReg
	pending := 0
	flushed := 0 // count of array entries already written by a prior SETLIST
	flush := func() {
		if pending == 0 {
			return
		}
		b := uint32(pending)
		blockNum := flushed/lfieldsPerFlush + 1
		fs.emit(ABCInstruction(OpSetList, uint32(reg), b, uint32(blockNum)), line)
		fs.freeToReg(base)
		flushed += pending
		pending = 0
	}
	for i, entry := range t.Entries {
		switch {
		case entry.Key != nil:
			flush()
			key := g.exprToRK(fs, entry.Key)
			val := g.exprToAnyReg(fs, entry.Value)
			fs.emit(ABCInstruction(OpSetTable, uint32(reg), key, uint32(val)), line)
			fs.freeToReg(base)
		case entry.NameKey != "":
			flush()
			k := fs.addConstant(StringValue(entry.NameKey))
			val := g.exprToAnyReg(fs, entry.Value)
			fs.emit(ABCInstruction(OpSetTable, uint32(reg), RKAsConstant(k), uint32(val)), line)
			fs.freeToReg(base)
		default:
			last := i == len(t.Entries)-1
			if last && isMultretExpr(entry.Value) {
				g.compileExprMultRet(fs, entry.Value)
				blockNum := flushed/lfieldsPerFlush + 1
				fs.emit(ABCInstruction(OpSetList, uint32(reg), 0, uint32(blockNum)), line)
				fs.freeToReg(base)
				// This SETLIST already consumed pending's registers plus
				// the open call/vararg results and reset the stack top;
				// the trailing flush below must not fire again.
				flushed += pending
				pending = 0
				continue
			}
			g.compileExprToNextReg(fs, entry.Value)
			pending++
			if pending == lfieldsPerFlush {
				flush()
			}
		}
	}
	flush()
}
