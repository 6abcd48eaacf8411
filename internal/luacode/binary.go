// Copyright (C) 1994-2024 Lua.org, PUC-Rio.
// SPDX-License-Identifier: MIT

package luacode

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/lua51c/luac51/internal/bytewriter"
)

// sizeOfSizeT is the header's declared size_t width. Fixed at 4 for
// portability rather than the host's actual size_t, per spec.md §9's
// decision to keep this a named constant (not a hardcoded literal) so
// a future 64-bit-loader flag has one place to change.
const sizeOfSizeT = 4

// header is the 12-byte Lua 5.1 binary chunk signature (spec.md §4.4),
// fixed for a little-endian build with 4-byte int/size_t and 8-byte
// double lua_Number: no other combination is produced or accepted.
var header = [12]byte{
	0x1B, 'L', 'u', 'a', // signature
	0x51, // version 5.1
	0x00, // official format
	0x01, // little-endian
	4,    // sizeof(int)
	sizeOfSizeT,
	4, // sizeof(Instruction)
	8, // sizeof(lua_Number)
	0, // integral flag: 0 means lua_Number is a floating-point type
}

const (
	tagNil     = 0
	tagBoolean = 1
	tagNumber  = 3
	tagString  = 4
)

// MarshalBinary encodes the prototype and everything it references as
// a Lua 5.1 binary chunk in the layout an unmodified reference
// lua_dump/luaU_dump produces and luaU_undump reads (spec.md §4.4).
func (p *Prototype) MarshalBinary() ([]byte, error) {
	buf := bytewriter.New(nil)
	w := &binaryWriter{w: buf}
	w.write(header[:])
	w.writeFunction(p)
	if w.err != nil {
		return nil, w.err
	}
	out := make([]byte, buf.Size())
	if _, err := buf.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(buf, out); err != nil {
		return nil, err
	}
	return out, nil
}

// binaryWriter accumulates the first error it encounters so the
// recursive writeFunction/writeConstant/... methods don't need to
// thread an error return through every call, mirroring the
// panic-free, sticky-error style of the reference implementation's
// DumpXXX family (which aborts the whole dump on the first I/O error).
type binaryWriter struct {
	w   io.Writer
	err error
}

func (w *binaryWriter) write(p []byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.Write(p)
}

func (w *binaryWriter) writeByte(b byte) { w.write([]byte{b}) }

func (w *binaryWriter) writeBool(b bool) {
	if b {
		w.writeByte(1)
	} else {
		w.writeByte(0)
	}
}

func (w *binaryWriter) writeUint32(n uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], n)
	w.write(buf[:])
}

func (w *binaryWriter) writeInt32(n int32) { w.writeUint32(uint32(n)) }

func (w *binaryWriter) writeFloat64(f float64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
	w.write(buf[:])
}

// writeString writes a length-prefixed string per spec.md §4.4: the
// length includes the trailing NUL the reference writer appends. The
// empty string is written as length 0 with no bytes, the reference
// encoding of an absent string (a nested function's source, which the
// loader then takes from the enclosing function).
func (w *binaryWriter) writeString(s string) {
	if s == "" {
		w.writeUint32(0)
		return
	}
	w.writeUint32(uint32(len(s) + 1))
	w.write([]byte(s))
	w.writeByte(0)
}

func (w *binaryWriter) writeFunction(p *Prototype) {
	w.writeString(p.Source)
	w.writeInt32(p.LineDefined)
	w.writeInt32(p.LastLineDefined)
	w.writeByte(byte(len(p.Upvalues)))
	w.writeByte(p.NumParams)
	// The reference is_vararg flag for a vararg function is
	// VARARG_ISVARARG (2); bit 1 (VARARG_HASARG) is not set.
	if p.IsVararg {
		w.writeByte(2)
	} else {
		w.writeByte(0)
	}
	w.writeByte(p.MaxStackSize)

	w.writeUint32(uint32(len(p.Code)))
	for _, instr := range p.Code {
		w.writeUint32(uint32(instr))
	}

	w.writeUint32(uint32(len(p.Constants)))
	for _, c := range p.Constants {
		w.writeConstant(c)
	}

	w.writeUint32(uint32(len(p.Prototypes)))
	for _, child := range p.Prototypes {
		w.writeFunction(child)
	}

	// Debug info: line numbers, then locals, then upvalue names.
	w.writeUint32(uint32(len(p.Lines)))
	for _, line := range p.Lines {
		w.writeInt32(line)
	}
	w.writeUint32(uint32(len(p.Locals)))
	for _, local := range p.Locals {
		w.writeString(local.Name)
		w.writeInt32(local.StartPC)
		w.writeInt32(local.EndPC)
	}
	w.writeUint32(uint32(len(p.UpvalueNames)))
	for _, name := range p.UpvalueNames {
		w.writeString(name)
	}
}

func (w *binaryWriter) writeConstant(v Value) {
	switch {
	case v.IsNil():
		w.writeByte(tagNil)
	case v.IsBool():
		w.writeByte(tagBoolean)
		w.writeBool(v.Bool())
	case v.IsNumber():
		w.writeByte(tagNumber)
		w.writeFloat64(v.Number())
	case v.IsString():
		// A string constant always carries its NUL, so "" is written as
		// length 1 and is not read back as an absent string.
		w.writeByte(tagString)
		s := v.String()
		w.writeUint32(uint32(len(s) + 1))
		w.write([]byte(s))
		w.writeByte(0)
	default:
		w.err = fmt.Errorf("luacode: cannot encode constant %v", v)
	}
}

// UnmarshalBinary decodes a Lua 5.1 binary chunk produced by
// [Prototype.MarshalBinary] (or the reference implementation), for
// round-trip testing and for tooling that inspects compiled chunks.
// It rejects any header that doesn't match the fixed
// little-endian/4-byte/8-byte-double combination this package emits.
func (p *Prototype) UnmarshalBinary(data []byte) error {
	r := &binaryReader{r: bytewriter.New(data)}
	var got [12]byte
	r.read(got[:])
	if r.err != nil {
		return r.err
	}
	if got != header {
		return fmt.Errorf("luacode: not a recognized Lua 5.1 chunk (or wrong header profile)")
	}
	fn, err := r.readFunction()
	if err != nil {
		return err
	}
	*p = *fn
	return nil
}

type binaryReader struct {
	r   io.Reader
	err error
}

func (r *binaryReader) read(p []byte) {
	if r.err != nil {
		return
	}
	_, r.err = io.ReadFull(r.r, p)
}

func (r *binaryReader) readByte() byte {
	var b [1]byte
	r.read(b[:])
	return b[0]
}

func (r *binaryReader) readBool() bool { return r.readByte() != 0 }

func (r *binaryReader) readUint32() uint32 {
	var buf [4]byte
	r.read(buf[:])
	return binary.LittleEndian.Uint32(buf[:])
}

func (r *binaryReader) readInt32() int32 { return int32(r.readUint32()) }

func (r *binaryReader) readFloat64() float64 {
	var buf [8]byte
	r.read(buf[:])
	return math.Float64frombits(binary.LittleEndian.Uint64(buf[:]))
}

func (r *binaryReader) readString() string {
	n := r.readUint32()
	if n == 0 {
		return ""
	}
	buf := make([]byte, n)
	r.read(buf)
	if r.err != nil {
		return ""
	}
	return string(buf[:n-1]) // drop the trailing NUL
}

func (r *binaryReader) readFunction() (*Prototype, error) {
	p := &Prototype{}
	p.Source = r.readString()
	p.LineDefined = r.readInt32()
	p.LastLineDefined = r.readInt32()
	numUpvalues := int(r.readByte())
	p.NumParams = r.readByte()
	p.IsVararg = r.readBool()
	p.MaxStackSize = r.readByte()

	n := r.readUint32()
	p.Code = make([]Instruction, n)
	for i := range p.Code {
		p.Code[i] = Instruction(r.readUint32())
	}

	n = r.readUint32()
	p.Constants = make([]Value, n)
	for i := range p.Constants {
		v, err := r.readConstant()
		if err != nil {
			return nil, err
		}
		p.Constants[i] = v
	}

	n = r.readUint32()
	p.Prototypes = make([]*Prototype, n)
	for i := range p.Prototypes {
		child, err := r.readFunction()
		if err != nil {
			return nil, err
		}
		p.Prototypes[i] = child
	}

	n = r.readUint32()
	p.Lines = make([]int32, n)
	for i := range p.Lines {
		p.Lines[i] = r.readInt32()
	}

	n = r.readUint32()
	p.Locals = make([]LocalVariable, n)
	for i := range p.Locals {
		p.Locals[i].Name = r.readString()
		p.Locals[i].StartPC = r.readInt32()
		p.Locals[i].EndPC = r.readInt32()
	}

	n = r.readUint32()
	p.UpvalueNames = make([]string, n)
	for i := range p.UpvalueNames {
		p.UpvalueNames[i] = r.readString()
	}
	// The upvalue descriptors themselves (InStack/Index) aren't part of
	// the on-disk format: the reference loader recomputes them while
	// resolving each nested CLOSURE's pseudo-instructions, so a decoded
	// Prototype carries the debug names but empty Upvalues, matching
	// what fresh-loaded bytecode actually contains before a closure
	// instantiates it. Callers that need to re-emit the pseudo-
	// instructions should keep the Prototype the generator produced.
	if len(p.UpvalueNames) != numUpvalues {
		return nil, fmt.Errorf("luacode: corrupt chunk: %d upvalues declared, %d names read", numUpvalues, len(p.UpvalueNames))
	}
	if r.err != nil {
		return nil, r.err
	}
	return p, nil
}

func (r *binaryReader) readConstant() (Value, error) {
	switch tag := r.readByte(); tag {
	case tagNil:
		return Value{}, nil
	case tagBoolean:
		return BoolValue(r.readBool()), nil
	case tagNumber:
		return NumberValue(r.readFloat64()), nil
	case tagString:
		return StringValue(r.readString()), nil
	default:
		return Value{}, fmt.Errorf("luacode: unknown constant tag %d", tag)
	}
}
