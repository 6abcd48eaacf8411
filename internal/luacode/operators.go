// Copyright (C) 1994-2024 Lua.org, PUC-Rio.
// SPDX-License-Identifier: MIT

package luacode

import "math"

// arithOp maps an arithmetic [luaast.BinaryOp] spelling to its opcode.
// "and", "or", and the comparison/concat operators are handled
// separately by the code generator since they need control flow or a
// different operand-count convention, not a plain three-register ABC
// instruction.
var arithOp = map[string]OpCode{
	"+": OpAdd, "-": OpSub, "*": OpMul, "/": OpDiv, "%": OpMod, "^": OpPow,
}

var unaryOp = map[string]OpCode{
	"-": OpUnm, "not": OpNot, "#": OpLen,
}

// compareOp maps a comparison spelling to the opcode and the sense bit
// it should be emitted with (spec.md §4.3's EQ/LT/LE convention: the
// instruction's A argument, called "cond" in the reference VM, selects
// whether the following JMP fires on match or mismatch).
func compareOp(op string) (code OpCode, cond bool, swap bool, ok bool) {
	switch op {
	case "==":
		return OpEq, true, false, true
	case "~=":
		return OpEq, false, false, true
	case "<":
		return OpLt, true, false, true
	case "<=":
		return OpLe, true, false, true
	case ">":
		return OpLt, true, true, true
	case ">=":
		return OpLe, true, true, true
	default:
		return 0, false, false, false
	}
}

// foldConstant evaluates a constant binary arithmetic expression at
// compile time, per SPEC_FULL.md's supplemented constant-folding rule.
// Folding is intentionally limited to the arithmetic operators on two
// number constants: string coercion, concatenation, and comparisons are
// left to the VM so the compiler never has to reimplement Lua's
// string-to-number coercion or locale-sensitive formatting rules.
func foldConstant(op string, a, b Value) (Value, bool) {
	if !a.IsNumber() || !b.IsNumber() {
		return Value{}, false
	}
	x, y := a.Number(), b.Number()
	switch op {
	case "+":
		return NumberValue(x + y), true
	case "-":
		return NumberValue(x - y), true
	case "*":
		return NumberValue(x * y), true
	case "/":
		return NumberValue(x / y), true
	case "%":
		return NumberValue(x - math.Floor(x/y)*y), true
	case "^":
		return NumberValue(math.Pow(x, y)), true
	default:
		return Value{}, false
	}
}

// foldConcat evaluates a constant `..` of two string/number literals at
// compile time (SPEC_FULL.md's supplemented constant-folding rule,
// extending the reference compiler's arithmetic-only luaK_constfolding
// to the one string case it also documents). Numbers are formatted the
// same way [Value.String] would, matching Lua's implicit
// number-to-string coercion.
func foldConcat(a, b Value) (Value, bool) {
	if !concatable(a) || !concatable(b) {
		return Value{}, false
	}
	return StringValue(a.String() + b.String()), true
}

func concatable(v Value) bool { return v.IsString() || v.IsNumber() }

// foldUnaryConstant evaluates a constant unary arithmetic expression at
// compile time.
func foldUnaryConstant(op string, a Value) (Value, bool) {
	switch op {
	case "-":
		if a.IsNumber() {
			return NumberValue(-a.Number()), true
		}
	case "not":
		return BoolValue(!truthy(a)), true
	}
	return Value{}, false
}

// truthy reports whether a compile-time constant is true by Lua's
// rules: everything except nil and false.
func truthy(v Value) bool {
	if v.IsNil() {
		return false
	}
	if v.IsBool() {
		return v.Bool()
	}
	return true
}
