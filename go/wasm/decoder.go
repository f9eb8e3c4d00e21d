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

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

const (
	sectionCustom   = 0
	sectionType     = 1
	sectionImport   = 2
	sectionFunction = 3
	sectionTable    = 4
	sectionMemory   = 5
	sectionGlobal   = 6
	sectionExport   = 7
	sectionStart    = 8
	sectionElement  = 9
	sectionCode     = 10
	sectionData     = 11
	sectionCount    = 12
)

// maxLocals bounds the number of locals of a single function.
const maxLocals = 1 << 16

// Decode parses a binary module. Function bodies are not validated.
func Decode(data []byte) (*Module, error) {
	r := &reader{data: data}
	header, err := r.bytes(8)
	if err != nil {
		return nil, err
	}
	if string(header[:4]) != magic {
		return nil, fmt.Errorf("%w: invalid magic number", ErrInvalidModule)
	}
	if v := binary.LittleEndian.Uint32(header[4:]); v != version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidModule, v)
	}

	module := &Module{}
	var functionTypes []uint32
	last := 0
	for !r.done() {
		id, err := r.byte()
		if err != nil {
			return nil, err
		}
		size, err := r.u32()
		if err != nil {
			return nil, err
		}
		content, err := r.bytes(int(size))
		if err != nil {
			return nil, err
		}
		if id == sectionCustom {
			continue
		}
		rank := sectionRank(id)
		if rank <= last {
			return nil, fmt.Errorf("%w: section %d out of order", ErrInvalidModule, id)
		}
		last = rank

		s := &reader{data: content}
		switch id {
		case sectionType:
			err = s.vec(func() error {
				t, err := s.funcType()
				module.Types = append(module.Types, t)
				return err
			})
		case sectionImport:
			err = s.vec(func() error {
				imp, err := s.importEntry()
				module.Imports = append(module.Imports, imp)
				return err
			})
		case sectionFunction:
			err = s.vec(func() error {
				t, err := s.u32()
				functionTypes = append(functionTypes, t)
				return err
			})
		case sectionTable:
			err = s.vec(func() error {
				limits, err := s.tableType()
				module.Tables = append(module.Tables, limits)
				return err
			})
		case sectionMemory:
			err = s.vec(func() error {
				limits, err := s.limits()
				module.Memories = append(module.Memories, limits)
				return err
			})
		case sectionGlobal:
			err = s.vec(func() error {
				global, err := s.global()
				module.Globals = append(module.Globals, global)
				return err
			})
		case sectionExport:
			err = s.vec(func() error {
				export, err := s.export()
				module.Exports = append(module.Exports, export)
				return err
			})
		case sectionStart:
			var start uint32
			start, err = s.u32()
			module.Start = &start
		case sectionElement:
			err = s.vec(func() error {
				element, err := s.element()
				module.Elements = append(module.Elements, element)
				return err
			})
		case sectionCode:
			err = s.vec(func() error {
				function, err := s.code()
				module.Functions = append(module.Functions, function)
				return err
			})
		case sectionData:
			err = s.vec(func() error {
				data, err := s.dataSegment()
				module.Data = append(module.Data, data)
				return err
			})
		case sectionCount:
			_, err = s.u32()
		default:
			return nil, fmt.Errorf("%w: unknown section %d", ErrInvalidModule, id)
		}
		if err != nil {
			return nil, err
		}
		if !s.done() {
			return nil, fmt.Errorf("%w: trailing bytes in section %d", ErrInvalidModule, id)
		}
	}

	if len(functionTypes) != len(module.Functions) {
		return nil, fmt.Errorf("%w: %d function declarations but %d bodies",
			ErrInvalidModule, len(functionTypes), len(module.Functions))
	}
	for i, t := range functionTypes {
		if int(t) >= len(module.Types) {
			return nil, fmt.Errorf("%w: unknown type %d of function %d", ErrInvalidModule, t, i)
		}
		module.Functions[i].Type = t
	}
	for _, imp := range module.Imports {
		if imp.Kind == ExternFunc && int(imp.Type) >= len(module.Types) {
			return nil, fmt.Errorf("%w: unknown type %d of import %s.%s", ErrInvalidModule, imp.Type, imp.Module, imp.Name)
		}
	}
	if len(module.Memories)+len(module.imports(ExternMemory)) > 1 {
		return nil, fmt.Errorf("%w: multiple memories", ErrUnsupported)
	}
	return module, nil
}

// sectionRank returns the position of a known section in the required
// section order. The data count section precedes the code section.
func sectionRank(id byte) int {
	if id == sectionCount {
		return 2*sectionElement + 1
	}
	return 2 * int(id)
}

type reader struct {
	data []byte
	pos  int
}

func (r *reader) done() bool {
	return r.pos >= len(r.data)
}

func (r *reader) byte() (byte, error) {
	if r.done() {
		return 0, fmt.Errorf("%w: unexpected end of data", ErrInvalidModule)
	}
	r.pos++
	return r.data[r.pos-1], nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || len(r.data)-r.pos < n {
		return nil, fmt.Errorf("%w: unexpected end of data", ErrInvalidModule)
	}
	r.pos += n
	return r.data[r.pos-n : r.pos], nil
}

func (r *reader) u32() (uint32, error) {
	v, n, err := ReadUint32(r.data[r.pos:])
	r.pos += n
	return v, err
}

func (r *reader) i32() (int32, error) {
	v, n, err := ReadInt32(r.data[r.pos:])
	r.pos += n
	return v, err
}

func (r *reader) i64() (int64, error) {
	v, n, err := ReadInt64(r.data[r.pos:])
	r.pos += n
	return v, err
}

func (r *reader) vec(element func() error) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	// Every element occupies at least one byte.
	if int(n) > len(r.data)-r.pos {
		return fmt.Errorf("%w: vector length %d exceeds section", ErrInvalidModule, n)
	}
	for i := uint32(0); i < n; i++ {
		if err := element(); err != nil {
			return err
		}
	}
	return nil
}

func (r *reader) name() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	data, err := r.bytes(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: name is not valid UTF-8", ErrInvalidModule)
	}
	return string(data), nil
}

func (r *reader) valType() (ValType, error) {
	b, err := r.byte()
	if err != nil {
		return 0, err
	}
	switch t := ValType(b); t {
	case I32, I64:
		return t, nil
	case F32, F64:
		return 0, fmt.Errorf("%w: value type %v", ErrUnsupported, t)
	default:
		return 0, fmt.Errorf("%w: invalid value type 0x%02x", ErrInvalidModule, b)
	}
}

func (r *reader) valTypes() ([]ValType, error) {
	var res []ValType
	err := r.vec(func() error {
		t, err := r.valType()
		res = append(res, t)
		return err
	})
	return res, err
}

func (r *reader) funcType() (FuncType, error) {
	form, err := r.byte()
	if err != nil {
		return FuncType{}, err
	}
	if form != 0x60 {
		return FuncType{}, fmt.Errorf("%w: invalid function type form 0x%02x", ErrInvalidModule, form)
	}
	params, err := r.valTypes()
	if err != nil {
		return FuncType{}, err
	}
	results, err := r.valTypes()
	if err != nil {
		return FuncType{}, err
	}
	return FuncType{Params: params, Results: results}, nil
}

func (r *reader) limits() (Limits, error) {
	flag, err := r.byte()
	if err != nil {
		return Limits{}, err
	}
	if flag > 1 {
		return Limits{}, fmt.Errorf("%w: limits flag 0x%02x", ErrUnsupported, flag)
	}
	min, err := r.u32()
	if err != nil {
		return Limits{}, err
	}
	res := Limits{Min: min}
	if flag == 1 {
		if res.Max, err = r.u32(); err != nil {
			return Limits{}, err
		}
		res.HasMax = true
		if res.Max < res.Min {
			return Limits{}, fmt.Errorf("%w: maximum below minimum", ErrInvalidModule)
		}
	}
	return res, nil
}

func (r *reader) tableType() (Limits, error) {
	t, err := r.byte()
	if err != nil {
		return Limits{}, err
	}
	if ValType(t) != FuncRef {
		return Limits{}, fmt.Errorf("%w: table element type 0x%02x", ErrUnsupported, t)
	}
	return r.limits()
}

func (r *reader) globalType() (GlobalType, error) {
	t, err := r.valType()
	if err != nil {
		return GlobalType{}, err
	}
	mut, err := r.byte()
	if err != nil {
		return GlobalType{}, err
	}
	if mut > 1 {
		return GlobalType{}, fmt.Errorf("%w: invalid mutability 0x%02x", ErrInvalidModule, mut)
	}
	return GlobalType{Type: t, Mutable: mut == 1}, nil
}

func (r *reader) importEntry() (Import, error) {
	module, err := r.name()
	if err != nil {
		return Import{}, err
	}
	name, err := r.name()
	if err != nil {
		return Import{}, err
	}
	kind, err := r.byte()
	if err != nil {
		return Import{}, err
	}
	res := Import{Module: module, Name: name, Kind: ExternKind(kind)}
	switch res.Kind {
	case ExternFunc:
		res.Type, err = r.u32()
	case ExternTable:
		res.Limits, err = r.tableType()
	case ExternMemory:
		res.Limits, err = r.limits()
	case ExternGlobal:
		res.Global, err = r.globalType()
	default:
		err = fmt.Errorf("%w: invalid import kind 0x%02x", ErrInvalidModule, kind)
	}
	return res, err
}

func (r *reader) constExpr() (ConstExpr, error) {
	b, err := r.byte()
	if err != nil {
		return ConstExpr{}, err
	}
	res := ConstExpr{Op: Opcode(b)}
	switch res.Op {
	case I32Const:
		var v int32
		v, err = r.i32()
		res.Value = uint64(int64(v))
	case I64Const:
		var v int64
		v, err = r.i64()
		res.Value = uint64(v)
	case GlobalGet:
		var v uint32
		v, err = r.u32()
		res.Value = uint64(v)
	default:
		return ConstExpr{}, fmt.Errorf("%w: constant expression %v", ErrUnsupported, res.Op)
	}
	if err != nil {
		return ConstExpr{}, err
	}
	if end, err := r.byte(); err != nil || Opcode(end) != End {
		return ConstExpr{}, fmt.Errorf("%w: unterminated constant expression", ErrInvalidModule)
	}
	return res, nil
}

func (r *reader) global() (Global, error) {
	t, err := r.globalType()
	if err != nil {
		return Global{}, err
	}
	init, err := r.constExpr()
	if err != nil {
		return Global{}, err
	}
	return Global{GlobalType: t, Init: init}, nil
}

func (r *reader) export() (Export, error) {
	name, err := r.name()
	if err != nil {
		return Export{}, err
	}
	kind, err := r.byte()
	if err != nil {
		return Export{}, err
	}
	if kind > byte(ExternGlobal) {
		return Export{}, fmt.Errorf("%w: invalid export kind 0x%02x", ErrInvalidModule, kind)
	}
	index, err := r.u32()
	if err != nil {
		return Export{}, err
	}
	return Export{Name: name, Kind: ExternKind(kind), Index: index}, nil
}

func (r *reader) element() (Element, error) {
	flags, err := r.u32()
	if err != nil {
		return Element{}, err
	}
	if flags != 0 {
		return Element{}, fmt.Errorf("%w: element segment flags %d", ErrUnsupported, flags)
	}
	offset, err := r.constExpr()
	if err != nil {
		return Element{}, err
	}
	res := Element{Offset: offset}
	err = r.vec(func() error {
		index, err := r.u32()
		res.Functions = append(res.Functions, index)
		return err
	})
	return res, err
}

func (r *reader) code() (Function, error) {
	size, err := r.u32()
	if err != nil {
		return Function{}, err
	}
	content, err := r.bytes(int(size))
	if err != nil {
		return Function{}, err
	}
	c := &reader{data: content}
	var locals []ValType
	err = c.vec(func() error {
		count, err := c.u32()
		if err != nil {
			return err
		}
		if len(locals)+int(count) > maxLocals {
			return fmt.Errorf("%w: too many locals", ErrInvalidModule)
		}
		t, err := c.valType()
		for i := uint32(0); i < count; i++ {
			locals = append(locals, t)
		}
		return err
	})
	if err != nil {
		return Function{}, err
	}
	body := content[c.pos:]
	if len(body) == 0 || Opcode(body[len(body)-1]) != End {
		return Function{}, fmt.Errorf("%w: function body not terminated", ErrInvalidModule)
	}
	return Function{Locals: locals, Body: body}, nil
}

func (r *reader) dataSegment() (Data, error) {
	flags, err := r.u32()
	if err != nil {
		return Data{}, err
	}
	if flags != 0 {
		return Data{}, fmt.Errorf("%w: data segment flags %d", ErrUnsupported, flags)
	}
	offset, err := r.constExpr()
	if err != nil {
		return Data{}, err
	}
	n, err := r.u32()
	if err != nil {
		return Data{}, err
	}
	init, err := r.bytes(int(n))
	if err != nil {
		return Data{}, err
	}
	return Data{Offset: offset, Init: init}, nil
}
