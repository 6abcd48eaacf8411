// Copyright 2026 The luac51 Authors
// SPDX-License-Identifier: MIT

package lualex

import "testing"

func TestParseNumber(t *testing.T) {
	tests := []struct {
		s    string
		want float64
		bad  bool
	}{
		{s: "0", want: 0},
		{s: "345", want: 345},
		{s: "3.0", want: 3},
		{s: ".5", want: 0.5},
		{s: "3.1416", want: 3.1416},
		{s: "314.16e-2", want: 3.1416},
		{s: "0.31416E1", want: 3.1416},
		{s: "0xff", want: 255},
		{s: "0xBEBADA", want: 0xBEBADA},
		{s: "0x1p4", bad: true}, // hex floats are not part of Lua 5.1
	}
	for _, test := range tests {
		got, err := ParseNumber(test.s)
		if test.bad {
			if err == nil {
				t.Errorf("ParseNumber(%q) = %v, nil; want error", test.s, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseNumber(%q): %v", test.s, err)
			continue
		}
		if got != test.want {
			t.Errorf("ParseNumber(%q) = %v; want %v", test.s, got, test.want)
		}
	}
}
