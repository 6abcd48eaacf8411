// Copyright 2026 The luac51 Authors
// SPDX-License-Identifier: MIT

// Package luaast defines the abstract syntax tree produced by
// [luaparse.Parse] and consumed by [luacode.Generate], per spec.md §3.
// Each node type is a distinct Go struct implementing either [Expr] or
// [Stmt]; there is no single tagged-union node type, since Go
// interfaces already give exhaustive, compiler-checked variant
// dispatch without a runtime tag field.
package luaast

// Block is a sequence of statements, the body of a chunk, function, or
// control-flow construct.
type Block struct {
	Stmts []Stmt
	// Line is the line the block's first token appeared on, used for
	// diagnostics when a block is empty.
	Line int
}

// Node is implemented by every AST node so callers can recover a
// representative source line for diagnostics without a type switch.
type Node interface {
	Pos() int
}

// Expr is implemented by every expression node.
type Expr interface {
	Node
	exprNode()
}

// Stmt is implemented by every statement node.
type Stmt interface {
	Node
	stmtNode()
}

// ExprBase is embedded in every [Expr] implementation to supply Pos()
// and the source line. It is exported so [luaparse.Parse] can build
// node literals directly.
type ExprBase struct{ Line int }

func (e ExprBase) Pos() int { return e.Line }
func (ExprBase) exprNode()  {}

// StmtBase is the [Stmt] analog of [ExprBase].
type StmtBase struct{ Line int }

func (s StmtBase) Pos() int { return s.Line }
func (StmtBase) stmtNode()  {}

// Expression variants (spec.md §3).

// Number is a numeric literal, already parsed to its double value.
type Number struct {
	ExprBase
	Value float64
}

// String is a string literal, escapes already resolved to raw bytes.
type String struct {
	ExprBase
	Value string
}

// Boolean is a `true` or `false` literal.
type Boolean struct {
	ExprBase
	Value bool
}

// Nil is the `nil` literal.
type Nil struct{ ExprBase }

// Vararg is the `...` expression, valid only inside a vararg function.
type Vararg struct{ ExprBase }

// Identifier is a bare name; resolution to local, upvalue, or global is
// deferred to code generation (spec.md §3).
type Identifier struct {
	ExprBase
	Name string
}

// Index is `Object[Key]`.
type Index struct {
	ExprBase
	Object Expr
	Key    Expr
}

// Field is `Object.Name`, sugar for [Index] with a string key.
type Field struct {
	ExprBase
	Object Expr
	Name   string
}

// BinaryOp is a binary operator application. Op is the operator's exact
// source spelling ("+", "..", "and", "==", ...).
type BinaryOp struct {
	ExprBase
	Op          string
	Left, Right Expr
}

// UnaryOp is a unary operator application ("-", "not", "#").
type UnaryOp struct {
	ExprBase
	Op      string
	Operand Expr
}

// FunctionCall is `Callee(Args...)` or, when IsMethod is set,
// `Callee:MethodName(Args...)` (spec.md §3, §4.3 SELF).
type FunctionCall struct {
	ExprBase
	Callee     Expr
	MethodName string // set only when IsMethod
	IsMethod   bool
	Args       []Expr
	// Paren is not set by luaparse: a parenthesized call such as
	// `(f())` is parsed as a [Paren] node wrapping the call, and that
	// node is what limits the result to exactly one value.
	Paren bool
}

// Function is a function literal: `function(Params...) Body end`.
type Function struct {
	ExprBase
	Params    []string
	IsVararg  bool
	Body      *Block
	EndLine   int
}

// TableEntry is one entry of a [Table] constructor.
type TableEntry struct {
	// Key is nil for a positional array entry. Otherwise the entry is
	// either an explicit `[Key] = Value` or a named `Name = Value`
	// (NameKey set instead of Key in that case).
	Key     Expr
	NameKey string
	Value   Expr
}

// Table is a table constructor `{ ... }`.
type Table struct {
	ExprBase
	Entries []TableEntry
}

// Paren wraps an expression written in parentheses. Per spec.md §4.2 a
// parenthesized expression is semantically equivalent to its operand
// except that it adjusts a multi-value producer ([FunctionCall],
// [Vararg]) down to exactly one result.
type Paren struct {
	ExprBase
	Inner Expr
}

// Statement variants (spec.md §3).

// LocalAssign is `local Names = Exprs`.
type LocalAssign struct {
	StmtBase
	Names []string
	Exprs []Expr
}

// LValue is anything that can appear on the left of an [Assign]:
// [Identifier], [Index], or [Field].
type LValue = Expr

// Assign is `LValues = Exprs`.
type Assign struct {
	StmtBase
	LValues []LValue
	Exprs   []Expr
}

// IfClause is one `if`/`elseif` arm of an [If] statement.
type IfClause struct {
	Cond Expr
	Body *Block
}

// If is `if ... then ... {elseif ... then ...} [else ...] end`.
type If struct {
	StmtBase
	Clauses  []IfClause
	ElseBody *Block // nil if there is no else clause
}

// While is `while Cond do Body end`.
type While struct {
	StmtBase
	Cond Expr
	Body *Block
}

// Repeat is `repeat Body until Cond`. Cond can reference locals
// declared in Body (spec.md §4.3.7).
type Repeat struct {
	StmtBase
	Body *Block
	Cond Expr
}

// NumericFor is `for Name = Start, Stop [, Step] do Body end`.
type NumericFor struct {
	StmtBase
	Name              string
	Start, Stop, Step Expr // Step is nil if omitted
	Body              *Block
}

// GenericFor is `for Names in Exprs do Body end`.
type GenericFor struct {
	StmtBase
	Names []string
	Exprs []Expr
	Body  *Block
}

// Return is `return [Exprs]`.
type Return struct {
	StmtBase
	Exprs []Expr
}

// Break is `break`.
type Break struct{ StmtBase }

// Do is `do Body end`.
type Do struct {
	StmtBase
	Body *Block
}

// FunctionCallStmt is an expression statement whose expression is a
// [FunctionCall] (the only expression allowed as a statement).
type FunctionCallStmt struct {
	StmtBase
	Call *FunctionCall
}

// LocalFunction is `local function Name(...) ... end`. Unlike
// `local Name = function() ... end`, Name is declared and active
// before the function body is compiled, so the body may call Name
// recursively (spec.md's *LocalFunction* variant, made explicit in
// SPEC_FULL.md).
type LocalFunction struct {
	StmtBase
	Name string
	Fn   *Function
}

// FunctionDecl is `function Name.a.b[:m](...) ... end`. Path is the
// dotted name components; if IsMethod, the last component is the
// method name introduced with `:` and the function gains an implicit
// leading `self` parameter.
type FunctionDecl struct {
	StmtBase
	Path     []string
	IsMethod bool
	Fn       *Function
}
