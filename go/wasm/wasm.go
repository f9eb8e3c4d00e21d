// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package wasm provides the binary format of WebAssembly modules as far as
// it is required for executing instrumented actor programs: a decoder, an
// encoder, and the opcode tables of the integer subset of the MVP
// instruction set. It does not validate function bodies.
package wasm

import (
	"fmt"
	"slices"

	"github.com/Fantom-foundation/Sable/go/sable"
)

const (
	// ErrInvalidModule is reported for malformed binary modules.
	ErrInvalidModule = sable.ConstError("invalid wasm module")
	// ErrUnsupported is reported for well-formed modules using features not
	// supported by this package, e.g. floating point types.
	ErrUnsupported = sable.ConstError("unsupported wasm feature")
)

const (
	magic   = "\x00asm"
	version = 1
)

// ValType is a WASM value type.
type ValType byte

const (
	I32     ValType = 0x7f
	I64     ValType = 0x7e
	F32     ValType = 0x7d
	F64     ValType = 0x7c
	FuncRef ValType = 0x70
)

func (t ValType) String() string {
	switch t {
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	case FuncRef:
		return "funcref"
	default:
		return fmt.Sprintf("ValType(0x%02x)", byte(t))
	}
}

// BlockType is the type annotation of structured control instructions. Only
// empty and single-result blocks are supported.
type BlockType byte

const BlockEmpty BlockType = 0x40

// Arity returns the number of results of a block of this type.
func (t BlockType) Arity() int {
	if t == BlockEmpty {
		return 0
	}
	return 1
}

// ExternKind is the kind of an imported or exported entity.
type ExternKind byte

const (
	ExternFunc   ExternKind = 0
	ExternTable  ExternKind = 1
	ExternMemory ExternKind = 2
	ExternGlobal ExternKind = 3
)

// FuncType is the signature of a function.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

func (t FuncType) Equal(o FuncType) bool {
	return slices.Equal(t.Params, o.Params) && slices.Equal(t.Results, o.Results)
}

func (t FuncType) String() string {
	return fmt.Sprintf("%v -> %v", t.Params, t.Results)
}

// Limits bound the size of memories and tables.
type Limits struct {
	Min    uint32
	Max    uint32
	HasMax bool
}

// GlobalType describes the type of a global variable.
type GlobalType struct {
	Type    ValType
	Mutable bool
}

// ConstExpr is a constant initializer expression. Value holds the constant
// (sign-extended for i32) or the index of the referenced global.
type ConstExpr struct {
	Op    Opcode
	Value uint64
}

// Import is an imported entity. Depending on the kind, Type, Limits or
// Global describe it.
type Import struct {
	Module string
	Name   string
	Kind   ExternKind
	Type   uint32
	Limits Limits
	Global GlobalType
}

type Export struct {
	Name  string
	Kind  ExternKind
	Index uint32
}

// Function is a function defined by a module. Body holds the instruction
// sequence including the terminating end instruction.
type Function struct {
	Type   uint32
	Locals []ValType
	Body   []byte
}

type Global struct {
	GlobalType
	Init ConstExpr
}

// Element is an active element segment initializing table 0.
type Element struct {
	Offset    ConstExpr
	Functions []uint32
}

// Data is an active data segment initializing memory 0.
type Data struct {
	Offset ConstExpr
	Init   []byte
}

// Module is the in-memory representation of a binary module.
type Module struct {
	Types     []FuncType
	Imports   []Import
	Functions []Function
	Tables    []Limits
	Memories  []Limits
	Globals   []Global
	Exports   []Export
	Start     *uint32
	Elements  []Element
	Data      []Data
}

// ImportedFunctions returns the function imports in index order.
func (m *Module) ImportedFunctions() []Import {
	return m.imports(ExternFunc)
}

// ImportedGlobals returns the global imports in index order.
func (m *Module) ImportedGlobals() []Import {
	return m.imports(ExternGlobal)
}

func (m *Module) imports(kind ExternKind) []Import {
	var res []Import
	for _, imp := range m.Imports {
		if imp.Kind == kind {
			res = append(res, imp)
		}
	}
	return res
}

// FunctionType returns the signature of the function with the given index
// in the function index space, which lists imports before definitions.
func (m *Module) FunctionType(index uint32) (FuncType, bool) {
	imported := m.ImportedFunctions()
	var typ uint32
	if int(index) < len(imported) {
		typ = imported[index].Type
	} else if i := int(index) - len(imported); i < len(m.Functions) {
		typ = m.Functions[i].Type
	} else {
		return FuncType{}, false
	}
	if int(typ) >= len(m.Types) {
		return FuncType{}, false
	}
	return m.Types[typ], true
}

// Export looks up an export by name and kind.
func (m *Module) Export(name string, kind ExternKind) (Export, bool) {
	for _, export := range m.Exports {
		if export.Name == name && export.Kind == kind {
			return export, true
		}
	}
	return Export{}, false
}

// Memory returns the limits of the module's memory, whether imported or
// defined.
func (m *Module) Memory() (Limits, bool) {
	for _, imp := range m.Imports {
		if imp.Kind == ExternMemory {
			return imp.Limits, true
		}
	}
	if len(m.Memories) > 0 {
		return m.Memories[0], true
	}
	return Limits{}, false
}

// AddType registers the given signature and returns its index. Existing
// equal signatures are reused.
func (m *Module) AddType(t FuncType) uint32 {
	for i, cur := range m.Types {
		if cur.Equal(t) {
			return uint32(i)
		}
	}
	m.Types = append(m.Types, t)
	return uint32(len(m.Types) - 1)
}

// ImportFunction adds a function import and returns its function index. All
// function imports have to be added before the first function is defined.
func (m *Module) ImportFunction(module, name string, t FuncType) uint32 {
	index := uint32(len(m.ImportedFunctions()))
	m.Imports = append(m.Imports, Import{
		Module: module,
		Name:   name,
		Kind:   ExternFunc,
		Type:   m.AddType(t),
	})
	return index
}

// ImportMemory adds a memory import with the given limits.
func (m *Module) ImportMemory(module, name string, limits Limits) {
	m.Imports = append(m.Imports, Import{
		Module: module,
		Name:   name,
		Kind:   ExternMemory,
		Limits: limits,
	})
}

// AddFunction defines a new function and returns its function index.
func (m *Module) AddFunction(t FuncType, locals []ValType, body []byte) uint32 {
	m.Functions = append(m.Functions, Function{
		Type:   m.AddType(t),
		Locals: locals,
		Body:   body,
	})
	return uint32(len(m.ImportedFunctions()) + len(m.Functions) - 1)
}

// ExportFunction exports the function with the given index.
func (m *Module) ExportFunction(name string, index uint32) {
	m.Exports = append(m.Exports, Export{Name: name, Kind: ExternFunc, Index: index})
}
