// Copyright 2026 The luac51 Authors
// SPDX-License-Identifier: MIT

package lualex

import (
	"strconv"
	"strings"
)

// ParseNumber converts the literal text of a [luatoken.Number] token to
// its IEEE-754 double value, per spec.md §4.1: decimal numbers may have
// a fractional part and a signed exponent; hexadecimal numbers
// (0x/0X-prefixed) are integer-only and always denote an integer value
// reinterpreted as a double, with no fractional or exponent part.
// Unlike Lua 5.4, Lua 5.1 has no separate integer subtype: every
// numeral, decimal or hex, becomes a float64.
func ParseNumber(s string) (float64, error) {
	if rest, ok := cutHexPrefix(s); ok {
		if rest == "" {
			return 0, &strconv.NumError{Func: "ParseNumber", Num: s, Err: strconv.ErrSyntax}
		}
		x, err := strconv.ParseUint(rest, 16, 64)
		if err != nil {
			ne := err.(*strconv.NumError)
			ne.Func = "ParseNumber"
			ne.Num = s
			return 0, ne
		}
		return float64(x), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return f, nil
		}
		return 0, err
	}
	return f, nil
}

func cutHexPrefix(s string) (rest string, hex bool) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s[2:], true
	}
	return s, false
}
