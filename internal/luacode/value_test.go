// Copyright 2026 The luac51 Authors
// SPDX-License-Identifier: MIT

package luacode

import "testing"

func TestValueConstructors(t *testing.T) {
	if v := (Value{}); !v.IsNil() {
		t.Error("zero Value.IsNil() = false, want true")
	}
	if v := BoolValue(true); !v.IsBool() || v.Bool() != true {
		t.Errorf("BoolValue(true) = %+v", v)
	}
	if v := BoolValue(false); !v.IsBool() || v.Bool() != false {
		t.Errorf("BoolValue(false) = %+v", v)
	}
	if v := NumberValue(3.5); !v.IsNumber() || v.Number() != 3.5 {
		t.Errorf("NumberValue(3.5) = %+v", v)
	}
	if v := StringValue("abc"); !v.IsString() || v.String() != "abc" {
		t.Errorf("StringValue(\"abc\") = %+v", v)
	}
}

func TestValueStringFormatsNumbers(t *testing.T) {
	tests := []struct {
		n    float64
		want string
	}{
		{0, "0"},
		{3, "3"},
		{3.5, "3.5"},
		{-2, "-2"},
	}
	for _, test := range tests {
		got := NumberValue(test.n).String()
		if got != test.want {
			t.Errorf("NumberValue(%v).String() = %q, want %q", test.n, got, test.want)
		}
	}
}

func TestValueEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"nil equals nil", Value{}, Value{}, true},
		{"different kinds", NumberValue(0), StringValue(""), false},
		{"same number", NumberValue(1), NumberValue(1), true},
		{"different number", NumberValue(1), NumberValue(2), false},
		{"same string", StringValue("a"), StringValue("a"), true},
		{"different string", StringValue("a"), StringValue("b"), false},
		{"same bool", BoolValue(true), BoolValue(true), true},
		{"different bool", BoolValue(true), BoolValue(false), false},
	}
	for _, test := range tests {
		if got := test.a.Equal(test.b); got != test.want {
			t.Errorf("%s: (%v).Equal(%v) = %v, want %v", test.name, test.a, test.b, got, test.want)
		}
	}
}

func TestValueBoolPanicsOnNonBool(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Bool() on a number Value did not panic")
		}
	}()
	NumberValue(1).Bool()
}

func TestValueNumberPanicsOnNonNumber(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Number() on a string Value did not panic")
		}
	}()
	StringValue("x").Number()
}
