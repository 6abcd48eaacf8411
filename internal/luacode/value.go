// Copyright (C) 1994-2024 Lua.org, PUC-Rio.
// SPDX-License-Identifier: MIT

package luacode

import (
	"fmt"
	"math"
)

// Value is a compile-time constant, as stored in a [Prototype]'s
// constant pool (spec.md §3, §4.4). Lua 5.1 has four constant kinds:
// nil, boolean, number (always a double — there is no separate integer
// subtype), and string. The zero Value is nil.
type Value struct {
	kind kind
	num  float64
	str  string
}

type kind int

const (
	kindNil kind = iota
	kindBool
	kindNumber
	kindString
)

// BoolValue returns the constant boolean b.
func BoolValue(b bool) Value {
	v := Value{kind: kindBool}
	if b {
		v.num = 1
	}
	return v
}

// NumberValue returns the constant number n.
func NumberValue(n float64) Value {
	return Value{kind: kindNumber, num: n}
}

// StringValue returns the constant string s.
func StringValue(s string) Value {
	return Value{kind: kindString, str: s}
}

// IsNil reports whether v is the nil constant.
func (v Value) IsNil() bool { return v.kind == kindNil }

// IsBool reports whether v is a boolean constant.
func (v Value) IsBool() bool { return v.kind == kindBool }

// Bool returns v's boolean value. It panics if !v.IsBool().
func (v Value) Bool() bool {
	if v.kind != kindBool {
		panic("Value is not a boolean")
	}
	return v.num != 0
}

// IsNumber reports whether v is a number constant.
func (v Value) IsNumber() bool { return v.kind == kindNumber }

// Number returns v's numeric value. It panics if !v.IsNumber().
func (v Value) Number() float64 {
	if v.kind != kindNumber {
		panic("Value is not a number")
	}
	return v.num
}

// IsString reports whether v is a string constant.
func (v Value) IsString() bool { return v.kind == kindString }

// String returns v's string value if v.IsString(), or a debug
// representation otherwise ("nil" for the zero value, "true"/"false",
// or the number in %.14g form).
func (v Value) String() string {
	switch v.kind {
	case kindNil:
		return "nil"
	case kindBool:
		return fmt.Sprint(v.Bool())
	case kindNumber:
		return formatNumber(v.num)
	case kindString:
		return v.str
	default:
		return "<invalid>"
	}
}

func formatNumber(n float64) string {
	if math.IsInf(n, 1) {
		return "inf"
	}
	if math.IsInf(n, -1) {
		return "-inf"
	}
	if math.IsNaN(n) {
		return "nan"
	}
	return fmt.Sprintf("%.14g", n)
}

// Equal reports whether v and other are the same constant, used by
// [funcState.addConstant]'s constant-pool interning (spec.md §4.3's
// constant-pool sharing requirement).
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case kindNil:
		return true
	case kindBool, kindNumber:
		return v.num == other.num
	case kindString:
		return v.str == other.str
	default:
		return false
	}
}
