// Copyright 2026 The luac51 Authors
// SPDX-License-Identifier: MIT

package luacode

import "testing"

func TestFoldConstant(t *testing.T) {
	tests := []struct {
		op   string
		a, b float64
		want float64
	}{
		{"+", 1, 2, 3},
		{"-", 5, 2, 3},
		{"*", 3, 4, 12},
		{"/", 10, 4, 2.5},
		{"%", 5, 3, 2},
		{"^", 2, 10, 1024},
	}
	for _, test := range tests {
		got, ok := foldConstant(test.op, NumberValue(test.a), NumberValue(test.b))
		if !ok {
			t.Errorf("foldConstant(%q, %v, %v) not ok", test.op, test.a, test.b)
			continue
		}
		if got.Number() != test.want {
			t.Errorf("foldConstant(%q, %v, %v) = %v, want %v", test.op, test.a, test.b, got.Number(), test.want)
		}
	}
}

func TestFoldConstantRejectsNonNumbers(t *testing.T) {
	if _, ok := foldConstant("+", StringValue("1"), NumberValue(2)); ok {
		t.Error("foldConstant(\"+\", \"1\", 2) unexpectedly ok; folding must never cross string coercion")
	}
}

func TestFoldConcat(t *testing.T) {
	tests := []struct {
		a, b Value
		want string
	}{
		{StringValue("a"), StringValue("b"), "ab"},
		{StringValue("x = "), NumberValue(5), "x = 5"},
		{NumberValue(1), NumberValue(2), "12"},
	}
	for _, test := range tests {
		got, ok := foldConcat(test.a, test.b)
		if !ok {
			t.Errorf("foldConcat(%v, %v) not ok", test.a, test.b)
			continue
		}
		if got.String() != test.want {
			t.Errorf("foldConcat(%v, %v) = %q, want %q", test.a, test.b, got.String(), test.want)
		}
	}
}

func TestFoldConcatRejectsNonConcatable(t *testing.T) {
	if _, ok := foldConcat(BoolValue(true), StringValue("x")); ok {
		t.Error("foldConcat(true, \"x\") unexpectedly ok")
	}
	if _, ok := foldConcat(Value{}, StringValue("x")); ok {
		t.Error("foldConcat(nil, \"x\") unexpectedly ok")
	}
}

func TestFoldUnaryConstant(t *testing.T) {
	if got, ok := foldUnaryConstant("-", NumberValue(5)); !ok || got.Number() != -5 {
		t.Errorf("foldUnaryConstant(\"-\", 5) = %v, %v", got, ok)
	}
	if got, ok := foldUnaryConstant("not", BoolValue(false)); !ok || got.Bool() != true {
		t.Errorf("foldUnaryConstant(\"not\", false) = %v, %v", got, ok)
	}
	if got, ok := foldUnaryConstant("not", Value{}); !ok || got.Bool() != true {
		t.Errorf("foldUnaryConstant(\"not\", nil) = %v, %v", got, ok)
	}
	if _, ok := foldUnaryConstant("-", StringValue("x")); ok {
		t.Error("foldUnaryConstant(\"-\", \"x\") unexpectedly ok")
	}
}

func TestCompareOp(t *testing.T) {
	tests := []struct {
		op       string
		wantCode OpCode
		wantCond bool
		wantSwap bool
	}{
		{"==", OpEq, true, false},
		{"~=", OpEq, false, false},
		{"<", OpLt, true, false},
		{"<=", OpLe, true, false},
		{">", OpLt, true, true},
		{">=", OpLe, true, true},
	}
	for _, test := range tests {
		code, cond, swap, ok := compareOp(test.op)
		if !ok || code != test.wantCode || cond != test.wantCond || swap != test.wantSwap {
			t.Errorf("compareOp(%q) = (%v, %v, %v, %v), want (%v, %v, %v, true)",
				test.op, code, cond, swap, ok, test.wantCode, test.wantCond, test.wantSwap)
		}
	}
	if _, _, _, ok := compareOp("&"); ok {
		t.Error("compareOp(\"&\") unexpectedly ok")
	}
}

func TestTruthy(t *testing.T) {
	if truthy(Value{}) {
		t.Error("truthy(nil) = true, want false")
	}
	if truthy(BoolValue(false)) {
		t.Error("truthy(false) = true, want false")
	}
	if !truthy(BoolValue(true)) {
		t.Error("truthy(true) = false, want true")
	}
	if !truthy(NumberValue(0)) {
		t.Error("truthy(0) = false, want true (unlike C, Lua's 0 is truthy)")
	}
	if !truthy(StringValue("")) {
		t.Error("truthy(\"\") = false, want true")
	}
}
