// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package wasm

import "encoding/binary"

// Encode produces the binary representation of the given module. Modules
// produced by Decode are encoded to equivalent binaries, custom sections
// excluded.
func Encode(m *Module) []byte {
	res := append([]byte(magic), 0, 0, 0, 0)
	binary.LittleEndian.PutUint32(res[4:], version)

	section := func(id byte, count int, entry func(buf []byte, i int) []byte) {
		if count == 0 {
			return
		}
		content := AppendUnsigned(nil, uint64(count))
		for i := 0; i < count; i++ {
			content = entry(content, i)
		}
		res = append(res, id)
		res = AppendUnsigned(res, uint64(len(content)))
		res = append(res, content...)
	}

	section(sectionType, len(m.Types), func(buf []byte, i int) []byte {
		buf = append(buf, 0x60)
		buf = appendValTypes(buf, m.Types[i].Params)
		return appendValTypes(buf, m.Types[i].Results)
	})
	section(sectionImport, len(m.Imports), func(buf []byte, i int) []byte {
		imp := m.Imports[i]
		buf = appendName(buf, imp.Module)
		buf = appendName(buf, imp.Name)
		buf = append(buf, byte(imp.Kind))
		switch imp.Kind {
		case ExternFunc:
			buf = AppendUnsigned(buf, uint64(imp.Type))
		case ExternTable:
			buf = append(buf, byte(FuncRef))
			buf = appendLimits(buf, imp.Limits)
		case ExternMemory:
			buf = appendLimits(buf, imp.Limits)
		case ExternGlobal:
			buf = appendGlobalType(buf, imp.Global)
		}
		return buf
	})
	section(sectionFunction, len(m.Functions), func(buf []byte, i int) []byte {
		return AppendUnsigned(buf, uint64(m.Functions[i].Type))
	})
	section(sectionTable, len(m.Tables), func(buf []byte, i int) []byte {
		return appendLimits(append(buf, byte(FuncRef)), m.Tables[i])
	})
	section(sectionMemory, len(m.Memories), func(buf []byte, i int) []byte {
		return appendLimits(buf, m.Memories[i])
	})
	section(sectionGlobal, len(m.Globals), func(buf []byte, i int) []byte {
		buf = appendGlobalType(buf, m.Globals[i].GlobalType)
		return appendConstExpr(buf, m.Globals[i].Init)
	})
	section(sectionExport, len(m.Exports), func(buf []byte, i int) []byte {
		buf = appendName(buf, m.Exports[i].Name)
		buf = append(buf, byte(m.Exports[i].Kind))
		return AppendUnsigned(buf, uint64(m.Exports[i].Index))
	})
	if m.Start != nil {
		res = append(res, sectionStart)
		start := AppendUnsigned(nil, uint64(*m.Start))
		res = AppendUnsigned(res, uint64(len(start)))
		res = append(res, start...)
	}
	section(sectionElement, len(m.Elements), func(buf []byte, i int) []byte {
		buf = append(buf, 0)
		buf = appendConstExpr(buf, m.Elements[i].Offset)
		buf = AppendUnsigned(buf, uint64(len(m.Elements[i].Functions)))
		for _, f := range m.Elements[i].Functions {
			buf = AppendUnsigned(buf, uint64(f))
		}
		return buf
	})
	section(sectionCode, len(m.Functions), func(buf []byte, i int) []byte {
		body := appendLocals(nil, m.Functions[i].Locals)
		body = append(body, m.Functions[i].Body...)
		buf = AppendUnsigned(buf, uint64(len(body)))
		return append(buf, body...)
	})
	section(sectionData, len(m.Data), func(buf []byte, i int) []byte {
		buf = append(buf, 0)
		buf = appendConstExpr(buf, m.Data[i].Offset)
		buf = AppendUnsigned(buf, uint64(len(m.Data[i].Init)))
		return append(buf, m.Data[i].Init...)
	})
	return res
}

func appendName(buf []byte, name string) []byte {
	buf = AppendUnsigned(buf, uint64(len(name)))
	return append(buf, name...)
}

func appendValTypes(buf []byte, types []ValType) []byte {
	buf = AppendUnsigned(buf, uint64(len(types)))
	for _, t := range types {
		buf = append(buf, byte(t))
	}
	return buf
}

// appendLocals groups consecutive locals of equal type.
func appendLocals(buf []byte, locals []ValType) []byte {
	var groups [][2]int
	for i, t := range locals {
		if i > 0 && locals[i-1] == t {
			groups[len(groups)-1][0]++
			continue
		}
		groups = append(groups, [2]int{1, int(t)})
	}
	buf = AppendUnsigned(buf, uint64(len(groups)))
	for _, g := range groups {
		buf = AppendUnsigned(buf, uint64(g[0]))
		buf = append(buf, byte(g[1]))
	}
	return buf
}

func appendLimits(buf []byte, limits Limits) []byte {
	if !limits.HasMax {
		return AppendUnsigned(append(buf, 0), uint64(limits.Min))
	}
	buf = AppendUnsigned(append(buf, 1), uint64(limits.Min))
	return AppendUnsigned(buf, uint64(limits.Max))
}

func appendGlobalType(buf []byte, t GlobalType) []byte {
	mut := byte(0)
	if t.Mutable {
		mut = 1
	}
	return append(buf, byte(t.Type), mut)
}

func appendConstExpr(buf []byte, expr ConstExpr) []byte {
	buf = append(buf, byte(expr.Op))
	switch expr.Op {
	case I32Const:
		buf = AppendSigned(buf, int64(int32(expr.Value)))
	case I64Const:
		buf = AppendSigned(buf, int64(expr.Value))
	default:
		buf = AppendUnsigned(buf, expr.Value)
	}
	return append(buf, byte(End))
}

// Code assembles the instruction sequence of a function body.
//
// Example usage:
//
//	var code wasm.Code
//	code.LocalGet(0).I32Const(1).Op(wasm.I32Add)
//	body := code.Body()
type Code struct {
	buf []byte
}

// Op appends instructions without immediates.
func (c *Code) Op(ops ...Opcode) *Code {
	for _, op := range ops {
		c.buf = append(c.buf, byte(op))
	}
	return c
}

func (c *Code) I32Const(v int32) *Code {
	c.buf = AppendSigned(append(c.buf, byte(I32Const)), int64(v))
	return c
}

func (c *Code) I64Const(v int64) *Code {
	c.buf = AppendSigned(append(c.buf, byte(I64Const)), v)
	return c
}

func (c *Code) index(op Opcode, index uint32) *Code {
	c.buf = AppendUnsigned(append(c.buf, byte(op)), uint64(index))
	return c
}

func (c *Code) LocalGet(i uint32) *Code  { return c.index(LocalGet, i) }
func (c *Code) LocalSet(i uint32) *Code  { return c.index(LocalSet, i) }
func (c *Code) LocalTee(i uint32) *Code  { return c.index(LocalTee, i) }
func (c *Code) GlobalGet(i uint32) *Code { return c.index(GlobalGet, i) }
func (c *Code) GlobalSet(i uint32) *Code { return c.index(GlobalSet, i) }
func (c *Code) Call(f uint32) *Code      { return c.index(Call, f) }
func (c *Code) Br(depth uint32) *Code    { return c.index(Br, depth) }
func (c *Code) BrIf(depth uint32) *Code  { return c.index(BrIf, depth) }

func (c *Code) BrTable(targets []uint32, defaultTarget uint32) *Code {
	c.buf = AppendUnsigned(append(c.buf, byte(BrTable)), uint64(len(targets)))
	for _, t := range targets {
		c.buf = AppendUnsigned(c.buf, uint64(t))
	}
	c.buf = AppendUnsigned(c.buf, uint64(defaultTarget))
	return c
}

func (c *Code) CallIndirect(typ uint32) *Code {
	c.buf = AppendUnsigned(append(c.buf, byte(CallIndirect)), uint64(typ))
	c.buf = append(c.buf, 0)
	return c
}

func (c *Code) Block(t BlockType) *Code { c.buf = append(c.buf, byte(Block), byte(t)); return c }
func (c *Code) Loop(t BlockType) *Code  { c.buf = append(c.buf, byte(Loop), byte(t)); return c }
func (c *Code) If(t BlockType) *Code    { c.buf = append(c.buf, byte(If), byte(t)); return c }
func (c *Code) Else() *Code             { return c.Op(Else) }
func (c *Code) End() *Code              { return c.Op(End) }

// Memory appends a load or store instruction with the given static offset.
// The natural alignment of the access is used as alignment hint.
func (c *Code) Memory(op Opcode, offset uint32) *Code {
	align := 0
	for size := op.AccessSize(); size > 1; size >>= 1 {
		align++
	}
	c.buf = AppendUnsigned(append(c.buf, byte(op)), uint64(align))
	c.buf = AppendUnsigned(c.buf, uint64(offset))
	return c
}

func (c *Code) MemorySize() *Code { c.buf = append(c.buf, byte(MemorySize), 0); return c }
func (c *Code) MemoryGrow() *Code { c.buf = append(c.buf, byte(MemoryGrow), 0); return c }

// Body returns the assembled instructions terminated by an end instruction.
func (c *Code) Body() []byte {
	res := make([]byte, 0, len(c.buf)+1)
	res = append(res, c.buf...)
	return append(res, byte(End))
}
