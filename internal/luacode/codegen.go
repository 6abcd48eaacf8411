// Copyright (C) 1994-2024 Lua.org, PUC-Rio.
// SPDX-License-Identifier: MIT

package luacode

import (
	"fmt"

	"github.com/lua51c/luac51/internal/luaast"
)

// Error is a code-generation failure: a construct the parser accepted
// but that violates a static constraint of the bytecode format, such
// as exceeding the register limit or breaking outside a loop.
type Error struct {
	Line int
	Msg  string
}

func (e *Error) Error() string { return fmt.Sprintf("%d: %s", e.Line, e.Msg) }

// SourceLine implements the diagnostic interface shared with
// [lualex.Error] and luaparse.Error.
func (e *Error) SourceLine() int { return e.Line }

// DefaultMaxNestingDepth is the generator's nesting-depth cap, mirrored
// from luaparse.DefaultMaxNestingDepth so a chunk that parsed within
// budget cannot blow the generator's own recursion budget instead.
const DefaultMaxNestingDepth = 200

// Generate compiles a parsed chunk into its top-level [Prototype], per
// spec.md §4.3. The main chunk is always a vararg function of zero
// parameters, matching the Lua 5.1 reference compiler. maxDepth caps
// nested function-literal recursion (spec.md §5); pass 0 to disable it.
func Generate(source string, block *luaast.Block, maxDepth int) (proto *Prototype, err error) {
	if maxDepth <= 0 {
		maxDepth = 1 << 30
	}
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(*Error); ok {
				err = e
				return
			}
			panic(r)
		}
	}()
	fs := newFuncState(nil, source, 0)
	fs.proto.IsVararg = true
	g := &generator{maxDepth: maxDepth}
	g.block(fs, block)
	g.finish(fs, block.Line)
	return fs.proto, nil
}

type generator struct {
	depth    int
	maxDepth int
}

// finish appends the implicit `return` every Lua chunk or function ends
// with if control falls off the end of its body.
func (g *generator) finish(fs *funcState, line int) {
	fs.emit(ABCInstruction(OpReturn, 0, 1, 0), int32(line))
}

func (g *generator) block(fs *funcState, b *luaast.Block) {
	scope := fs.pushBlock(false)
	for _, stmt := range b.Stmts {
		g.statement(fs, stmt)
	}
	fs.popBlock(int32(b.Line))
	_ = scope
}

func (g *generator) statement(fs *funcState, stmt luaast.Stmt) {
	line := int32(stmt.Pos())
	switch s := stmt.(type) {
	case *luaast.LocalAssign:
		base := fs.freeReg
		g.compileExprList(fs, s.Exprs, len(s.Names), line)
		for i, name := range s.Names {
			fs.bindLocal(name, base+uint8(i), line)
		}
	case *luaast.Assign:
		g.assign(fs, s, line)
	case *luaast.If:
		g.ifStmt(fs, s)
	case *luaast.While:
		g.whileStmt(fs, s)
	case *luaast.Repeat:
		g.repeatStmt(fs, s)
	case *luaast.NumericFor:
		g.numericFor(fs, s)
	case *luaast.GenericFor:
		g.genericFor(fs, s)
	case *luaast.Return:
		g.returnStmt(fs, s)
	case *luaast.Break:
		g.breakStmt(fs, s)
	case *luaast.Do:
		g.block(fs, s.Body)
	case *luaast.FunctionCallStmt:
		base := fs.freeReg
		g.call(fs, s.Call, 0, line)
		fs.freeReg = base
	case *luaast.LocalFunction:
		reg := fs.declareLocal(s.Name, line)
		g.closure(fs, s.Fn, reg, line)
	case *luaast.FunctionDecl:
		g.functionDecl(fs, s, line)
	default:
		panic(&Error{Line: int(line), Msg: fmt.Sprintf("unsupported statement %T", stmt)})
	}
}

// lvalueTarget is an assignment target captured before any store runs,
// per spec.md §4.3.7: a bare identifier resolves lazily at store time
// (name resolution has no runtime side effect), but a table lvalue's
// object and key are evaluated into fixed registers up front, since a
// sibling lvalue in the same assignment may overwrite the local or
// register they read before this target's own store executes.
type lvalueTarget struct {
	ident *luaast.Identifier // set for a bare identifier target
	obj   uint8              // valid when ident == nil
	key   uint32             // RK-encoded, valid when ident == nil
}

// assign compiles `lvalues = exprs`. Every lvalue's object/key is
// captured left-to-right before the right-hand side is evaluated, and
// the stores are then issued in reverse lvalue order, matching the
// reference compiler's `restassign`: `i, t[i] = 2, 99` stores `t[i]`
// using the original `i` first, then overwrites `i` last.
func (g *generator) assign(fs *funcState, s *luaast.Assign, line int32) {
	base := fs.freeReg
	targets := make([]lvalueTarget, len(s.LValues))
	for i, lv := range s.LValues {
		targets[i] = g.captureLValue(fs, lv, line)
	}

	rhsBase := fs.freeReg
	g.compileExprList(fs, s.Exprs, len(s.LValues), line)

	for i := len(targets) - 1; i >= 0; i-- {
		g.storeTarget(fs, targets[i], rhsBase+uint8(i), line)
	}
	fs.freeReg = base
}

// captureLValue evaluates lvalue's object/key, if any, into freshly
// reserved registers so a later store remains correct regardless of
// what other stores in the same assignment do first.
func (g *generator) captureLValue(fs *funcState, lvalue luaast.Expr, line int32) lvalueTarget {
	switch e := lvalue.(type) {
	case *luaast.Identifier:
		return lvalueTarget{ident: e}
	case *luaast.Index:
		obj := g.compileExprToNextReg(fs, e.Object)
		key := g.captureToRK(fs, e.Key)
		return lvalueTarget{obj: obj, key: key}
	case *luaast.Field:
		obj := g.compileExprToNextReg(fs, e.Object)
		key := RKAsConstant(fs.addConstant(StringValue(e.Name)))
		return lvalueTarget{obj: obj, key: key}
	default:
		panic(&Error{Line: int(line), Msg: "cannot assign to this expression"})
	}
}

// storeTarget writes src to the location target names.
func (g *generator) storeTarget(fs *funcState, target lvalueTarget, src uint8, line int32) {
	if target.ident == nil {
		fs.emit(ABCInstruction(OpSetTable, uint32(target.obj), target.key, uint32(src)), line)
		return
	}
	g.store(fs, target.ident, src, line)
}

// store writes the value in src to the location named by lvalue. It is
// only safe to call directly when lvalue is the sole target being
// stored to (e.g. a function declaration's name); an [Assign] with
// several lvalues must go through [generator.captureLValue] and
// [generator.storeTarget] instead, since store's own object/key
// sub-expressions are evaluated at call time.
func (g *generator) store(fs *funcState, lvalue luaast.Expr, src uint8, line int32) {
	switch e := lvalue.(type) {
	case *luaast.Identifier:
		if reg, ok := fs.resolveLocal(e.Name); ok {
			if reg != src {
				fs.emit(ABCInstruction(OpMove, uint32(reg), uint32(src), 0), line)
			}
			return
		}
		if idx, ok := fs.resolveUpvalue(e.Name); ok {
			fs.emit(ABCInstruction(OpSetUpval, uint32(src), uint32(idx), 0), line)
			return
		}
		k := fs.addConstant(StringValue(e.Name))
		fs.emit(ABxInstruction(OpSetGlobal, uint32(src), uint32(k)), line)
	case *luaast.Index:
		obj := g.exprToAnyReg(fs, e.Object)
		key := g.exprToRK(fs, e.Key)
		fs.emit(ABCInstruction(OpSetTable, uint32(obj), key, uint32(src)), line)
	case *luaast.Field:
		obj := g.exprToAnyReg(fs, e.Object)
		key := fs.addConstant(StringValue(e.Name))
		fs.emit(ABCInstruction(OpSetTable, uint32(obj), RKAsConstant(key), uint32(src)), line)
	default:
		panic(&Error{Line: int(line), Msg: "cannot assign to this expression"})
	}
}

func (g *generator) ifStmt(fs *funcState, s *luaast.If) {
	var endJumps []int
	for _, clause := range s.Clauses {
		falseJumps := g.compileCondition(fs, clause.Cond, int32(clause.Cond.Pos()))
		g.block(fs, clause.Body)
		if s.ElseBody != nil || clauseHasMore(s, clause) {
			endJumps = append(endJumps, fs.jump(int32(s.Pos())))
		}
		fs.patchList(falseJumps, fs.pc())
	}
	if s.ElseBody != nil {
		g.block(fs, s.ElseBody)
	}
	fs.patchList(endJumps, fs.pc())
}

func clauseHasMore(s *luaast.If, clause luaast.IfClause) bool {
	for i, c := range s.Clauses {
		if c.Cond == clause.Cond && i < len(s.Clauses)-1 {
			return true
		}
	}
	return false
}

func (g *generator) whileStmt(fs *funcState, s *luaast.While) {
	loopStart := fs.pc()
	falseJumps := g.compileCondition(fs, s.Cond, int32(s.Pos()))
	block := fs.pushLoopBlock()
	for _, stmt := range s.Body.Stmts {
		g.statement(fs, stmt)
	}
	fs.popBlock(int32(s.Pos()))
	back := fs.jump(int32(s.Pos()))
	fs.patch(back, loopStart)
	fs.patchList(falseJumps, fs.pc())
	fs.patchList(block.breakJumps, fs.pc())
}

func (g *generator) repeatStmt(fs *funcState, s *luaast.Repeat) {
	loopStart := fs.pc()
	block := fs.pushLoopBlock()
	for _, stmt := range s.Body.Stmts {
		g.statement(fs, stmt)
	}
	// The until-condition is compiled inside the loop's own scope, so
	// it may reference locals declared in the body.
	falseJumps := g.compileCondition(fs, s.Cond, int32(s.Pos()))
	fs.patchList(falseJumps, loopStart)
	fs.popBlock(int32(s.Pos()))
	fs.patchList(block.breakJumps, fs.pc())
}

func (g *generator) numericFor(fs *funcState, s *luaast.NumericFor) {
	line := int32(s.Pos())
	base := fs.reserveRegs(3)
	g.compileExprInto(fs, s.Start, base, line)
	g.compileExprInto(fs, s.Stop, base+1, line)
	if s.Step != nil {
		g.compileExprInto(fs, s.Step, base+2, line)
	} else {
		k := fs.addConstant(NumberValue(1))
		fs.emit(ABxInstruction(OpLoadK, uint32(base+2), uint32(k)), line)
	}
	prepPC := fs.emit(AsBxInstruction(OpForPrep, uint32(base), 0), line)
	loopVar := fs.reserveRegs(1)
	block := fs.pushLoopBlock()
	fs.bindLocal(s.Name, loopVar, line)
	for _, stmt := range s.Body.Stmts {
		g.statement(fs, stmt)
	}
	fs.popBlock(line)
	bodyStart := prepPC + 1
	forLoopPC := fs.pc()
	fs.emit(AsBxInstruction(OpForLoop, uint32(base), int32(bodyStart-forLoopPC-1)), line)
	fs.patch(prepPC, forLoopPC)
	fs.patchList(block.breakJumps, fs.pc())
	fs.freeToReg(base)
}

func (g *generator) genericFor(fs *funcState, s *luaast.GenericFor) {
	line := int32(s.Pos())
	base := fs.freeReg
	g.compileExprList(fs, s.Exprs, 3, line)
	loopVarsBase := fs.reserveRegs(len(s.Names))
	skip := fs.jump(line)
	bodyStart := fs.pc()
	block := fs.pushLoopBlock()
	for i, name := range s.Names {
		fs.bindLocal(name, loopVarsBase+uint8(i), line)
	}
	for _, stmt := range s.Body.Stmts {
		g.statement(fs, stmt)
	}
	fs.popBlock(line)
	fs.patchToHere(skip)
	fs.emit(ABCInstruction(OpTForLoop, uint32(base), 0, uint32(len(s.Names))), line)
	back := fs.pc()
	fs.emit(AsBxInstruction(OpJmp, 0, int32(bodyStart-back-1)), line)
	fs.patchList(block.breakJumps, fs.pc())
	fs.freeToReg(base)
}

func (g *generator) returnStmt(fs *funcState, s *luaast.Return) {
	line := int32(s.Pos())
	base := fs.freeReg
	if n := len(s.Exprs); n > 0 && isMultretExpr(s.Exprs[n-1]) {
		g.compileExprList(fs, s.Exprs, -1, line)
		fs.emit(ABCInstruction(OpReturn, uint32(base), 0, 0), line)
		return
	}
	g.compileExprList(fs, s.Exprs, len(s.Exprs), line)
	fs.emit(ABCInstruction(OpReturn, uint32(base), uint32(len(s.Exprs)+1), 0), line)
}

func (g *generator) breakStmt(fs *funcState, s *luaast.Break) {
	line := int32(s.Pos())
	block := fs.innermostLoop()
	if block == nil {
		panic(&Error{Line: int(line), Msg: "break outside a loop"})
	}
	if fs.anyCapturedSince(block.localBase) {
		fs.emit(ABCInstruction(OpClose, uint32(block.localBase), 0, 0), line)
	}
	pc := fs.jump(line)
	block.breakJumps = append(block.breakJumps, pc)
}

func (g *generator) functionDecl(fs *funcState, s *luaast.FunctionDecl, line int32) {
	if len(s.Path) == 1 {
		g.store(fs, &luaast.Identifier{Name: s.Path[0]}, g.closureToNextReg(fs, s.Fn, line), line)
		fs.freeReg1()
		return
	}
	var obj luaast.Expr = &luaast.Identifier{Name: s.Path[0]}
	for _, name := range s.Path[1 : len(s.Path)-1] {
		obj = &luaast.Field{Object: obj, Name: name}
	}
	target := &luaast.Field{Object: obj, Name: s.Path[len(s.Path)-1]}
	reg := g.closureToNextReg(fs, s.Fn, line)
	g.store(fs, target, reg, line)
	fs.freeReg1()
}

func (g *generator) closureToNextReg(fs *funcState, fn *luaast.Function, line int32) uint8 {
	reg := fs.reserveRegs(1)
	g.closure(fs, fn, reg, line)
	return reg
}

// closure compiles a function literal into a child [Prototype] and
// emits the CLOSURE instruction (plus the MOVE/GETUPVAL pseudo-
// instructions the Lua 5.1 loader expects immediately afterward, one
// per upvalue) that instantiates it into dst.
func (g *generator) closure(fs *funcState, fn *luaast.Function, dst uint8, line int32) {
	g.depth++
	if g.depth > g.maxDepth {
		panic(&Error{Line: int(line), Msg: "functions nested too deeply"})
	}
	defer func() { g.depth-- }()

	child := newFuncState(fs, "", line)
	child.proto.NumParams = uint8(len(fn.Params))
	child.proto.IsVararg = fn.IsVararg
	child.proto.LastLineDefined = int32(fn.EndLine)
	for _, p := range fn.Params {
		child.declareLocal(p, line)
	}
	g.block(child, fn.Body)
	g.finish(child, fn.EndLine)

	idx := len(fs.proto.Prototypes)
	fs.proto.Prototypes = append(fs.proto.Prototypes, child.proto)
	fs.emit(ABxInstruction(OpClosure, uint32(dst), uint32(idx)), line)
	for _, desc := range child.proto.Upvalues {
		if desc.InStack {
			fs.emit(ABCInstruction(OpMove, 0, uint32(desc.Index), 0), line)
		} else {
			fs.emit(ABCInstruction(OpGetUpval, 0, uint32(desc.Index), 0), line)
		}
	}
}

// isMultretExpr reports whether e can produce more than one value when
// it appears in tail position of an expression list (spec.md §4.3's
// "call or vararg in the last position expands" rule). Parenthesizing
// an expression always forces it to a single value.
func isMultretExpr(e luaast.Expr) bool {
	switch e.(type) {
	case *luaast.FunctionCall, *luaast.Vararg:
		return true
	default:
		return false
	}
}
