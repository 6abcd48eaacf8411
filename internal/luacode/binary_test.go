// Copyright 2026 The luac51 Authors
// SPDX-License-Identifier: MIT

package luacode

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// samplePrototype exercises every field MarshalBinary/UnmarshalBinary
// round-trips: instructions, all four constant kinds, a nested
// prototype, line info, locals, and upvalue names.
func samplePrototype() *Prototype {
	return &Prototype{
		Source:          "@sample.lua",
		LineDefined:     0,
		LastLineDefined: 10,
		NumParams:       1,
		IsVararg:        true,
		MaxStackSize:    4,
		Code: []Instruction{
			ABCInstruction(OpLoadNil, 0, 1, 0),
			AsBxInstruction(OpJmp, 0, 3),
			ABxInstruction(OpLoadK, 1, 0),
			ABCInstruction(OpReturn, 0, 1, 0),
		},
		Lines: []int32{1, 2, 3, 10},
		Constants: []Value{
			{},
			BoolValue(true),
			NumberValue(3.5),
			StringValue("hello"),
			StringValue(""),
		},
		Prototypes: []*Prototype{
			{
				Source:          "",
				LineDefined:     5,
				LastLineDefined: 6,
				NumParams:       0,
				MaxStackSize:    2,
				Code:            []Instruction{ABCInstruction(OpReturn, 0, 1, 0)},
				Lines:           []int32{6},
				Upvalues:        []UpvalueDescriptor{{InStack: true, Index: 0}},
				UpvalueNames:    []string{"x"},
			},
		},
		Locals: []LocalVariable{
			{Name: "a", StartPC: 0, EndPC: 4},
		},
		UpvalueNames: []string{},
	}
}

func TestPrototypeBinaryRoundTrip(t *testing.T) {
	p := samplePrototype()
	data, err := p.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	if len(data) < len(header) || string(data[:len(header)]) != string(header[:]) {
		t.Fatalf("MarshalBinary output does not start with the chunk header")
	}

	var got Prototype
	if err := got.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}

	// Upvalues (the InStack/Index descriptor slice, as opposed to
	// UpvalueNames) is never part of the on-disk format, so a decoded
	// Prototype always has it nil regardless of what was encoded.
	diff := cmp.Diff(p, &got,
		cmpopts.EquateEmpty(),
		cmpopts.IgnoreFields(Prototype{}, "Upvalues"),
		cmp.AllowUnexported(Value{}),
	)
	if diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestUnmarshalBinaryRejectsBadHeader(t *testing.T) {
	var p Prototype
	err := p.UnmarshalBinary([]byte("not a chunk at all"))
	if err == nil {
		t.Fatal("UnmarshalBinary on garbage data returned nil error")
	}
}

func TestUnmarshalBinaryRejectsTruncatedData(t *testing.T) {
	p := samplePrototype()
	data, err := p.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	var got Prototype
	if err := got.UnmarshalBinary(data[:len(data)-4]); err == nil {
		t.Fatal("UnmarshalBinary on truncated data returned nil error")
	}
}

func TestWriteStringEmptyIsZeroLength(t *testing.T) {
	p := &Prototype{Source: ""}
	data, err := p.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	// Source string comes immediately after the 12-byte header, as a
	// 4-byte little-endian length prefix.
	length := data[len(header)]
	if length != 0 {
		t.Errorf("empty source's length prefix = %d, want 0", length)
	}
}
