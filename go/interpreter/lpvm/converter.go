// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package lpvm

import (
	"errors"
	"fmt"

	"github.com/Fantom-foundation/Sable/go/hostabi"
	"github.com/Fantom-foundation/Sable/go/sable"
	"github.com/Fantom-foundation/Sable/go/wasm"
	lru "github.com/hashicorp/golang-lru/v2"
)

// errInvalidCode is reported for code that can not be converted. Such code
// is never executed.
const errInvalidCode = sable.ConstError("invalid code")

// errForbiddenFunction is reported for code importing functions the host
// does not provide.
const errForbiddenFunction = sable.ConstError("forbidden function")

// ConversionConfig contains a set of configuration options for the code
// conversion.
type ConversionConfig struct {
	// CacheSize is the maximum number of converted programs retained in the
	// cache. If set to 0, a default size is used. If negative, no cache is
	// used.
	CacheSize int
}

// instruction is a decoded WASM instruction with resolved branch targets.
type instruction struct {
	op    wasm.Opcode
	arity uint8    // < result arity of blocks
	arg   uint64   // < index, constant, memory offset, branch depth, or else target
	jump  uint32   // < position following the matching end of blocks
	table []uint32 // < br_table depths, the default depth last
}

type function struct {
	typ       wasm.FuncType
	numLocals int // < locals excluding parameters
	maxStack  int // < maximum height of the value stack within the function
	code      []instruction
	host      *hostabi.Function
}

// program is a module converted into executable form. Programs are
// immutable and may be shared between concurrent runs.
type program struct {
	types     []wasm.FuncType
	functions []*function
	globals   []wasm.Global
	table     []int64 // < function index per table slot, -1 if undefined
	memory    *wasm.Limits
	data      []wasm.Data
	exports   map[string]uint32
	start     *uint32
}

type conversion struct {
	program *program
	err     error
}

// Converter converts WASM modules into programs.
type Converter struct {
	cache *lru.Cache[sable.CodeId, conversion]
}

// NewConverter creates a new code converter with the provided configuration.
func NewConverter(config ConversionConfig) (*Converter, error) {
	if config.CacheSize == 0 {
		config.CacheSize = 1 << 10
	}
	var cache *lru.Cache[sable.CodeId, conversion]
	if config.CacheSize > 0 {
		var err error
		cache, err = lru.New[sable.CodeId, conversion](config.CacheSize)
		if err != nil {
			return nil, err
		}
	}
	return &Converter{cache: cache}, nil
}

// Convert converts the given code. The code id is assumed to be the hash of
// the code and is used to cache the result, including conversion failures.
func (c *Converter) Convert(code []byte, id sable.CodeId) (*program, error) {
	if c.cache == nil {
		return convert(code)
	}
	if res, found := c.cache.Get(id); found {
		return res.program, res.err
	}
	program, err := convert(code)
	if err != nil && !errors.Is(err, errInvalidCode) {
		return nil, err
	}
	c.cache.Add(id, conversion{program: program, err: err})
	return program, err
}

func convert(code []byte) (*program, error) {
	module, err := wasm.Decode(code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidCode, err)
	}
	res := &program{
		types:   module.Types,
		globals: module.Globals,
		data:    module.Data,
		exports: map[string]uint32{},
		start:   module.Start,
	}

	for _, imp := range module.Imports {
		switch {
		case imp.Kind == wasm.ExternMemory && imp.Module == hostabi.Module && imp.Name == hostabi.MemoryName:
			limits := imp.Limits
			res.memory = &limits
		case imp.Kind == wasm.ExternFunc && imp.Module == hostabi.Module:
			host, found := hostabi.Lookup(imp.Name)
			if !found {
				return nil, fmt.Errorf("%w: %w: %s", errInvalidCode, errForbiddenFunction, imp.Name)
			}
			if !host.Type().Equal(module.Types[imp.Type]) {
				return nil, fmt.Errorf("%w: invalid signature of host function %s", errInvalidCode, imp.Name)
			}
			res.functions = append(res.functions, &function{typ: host.Type(), host: host})
		default:
			return nil, fmt.Errorf("%w: %w: %s.%s", errInvalidCode, errForbiddenFunction, imp.Module, imp.Name)
		}
	}
	if len(module.Memories) > 0 {
		res.memory = &module.Memories[0]
	}
	for _, f := range module.Functions {
		res.functions = append(res.functions, &function{
			typ:       module.Types[f.Type],
			numLocals: len(f.Locals),
		})
	}

	for i, global := range module.Globals {
		if global.Init.Op == wasm.GlobalGet && global.Init.Value >= uint64(i) {
			return nil, fmt.Errorf("%w: invalid initializer of global %d", errInvalidCode, i)
		}
	}

	if len(module.Tables) > 0 {
		res.table = make([]int64, module.Tables[0].Min)
		for i := range res.table {
			res.table[i] = -1
		}
	}
	for _, element := range module.Elements {
		if element.Offset.Op != wasm.I32Const {
			return nil, fmt.Errorf("%w: unsupported element offset", errInvalidCode)
		}
		offset := uint64(uint32(element.Offset.Value))
		if offset+uint64(len(element.Functions)) > uint64(len(res.table)) {
			return nil, fmt.Errorf("%w: element segment out of bounds", errInvalidCode)
		}
		for i, f := range element.Functions {
			if int(f) >= len(res.functions) {
				return nil, fmt.Errorf("%w: unknown function %d in element segment", errInvalidCode, f)
			}
			res.table[offset+uint64(i)] = int64(f)
		}
	}

	for _, export := range module.Exports {
		if export.Kind != wasm.ExternFunc {
			continue
		}
		if int(export.Index) >= len(res.functions) {
			return nil, fmt.Errorf("%w: export of unknown function %d", errInvalidCode, export.Index)
		}
		res.exports[export.Name] = export.Index
	}
	if start := res.start; start != nil {
		if int(*start) >= len(res.functions) {
			return nil, fmt.Errorf("%w: unknown start function", errInvalidCode)
		}
		if typ := res.functions[*start].typ; len(typ.Params) != 0 || len(typ.Results) != 0 {
			return nil, fmt.Errorf("%w: invalid signature of start function", errInvalidCode)
		}
	}

	imported := len(module.ImportedFunctions())
	for i, f := range module.Functions {
		fn := res.functions[imported+i]
		if err := convertBody(res, fn, f.Body); err != nil {
			return nil, fmt.Errorf("%w: function %d: %w", errInvalidCode, imported+i, err)
		}
	}
	return res, nil
}

// frame is a control structure tracked while converting a function body.
type frame struct {
	op          wasm.Opcode
	start       int  // < position of the block instruction
	elsePos     int  // < position of the else instruction of an if, 0 if none
	height      int  // < stack height at entry
	arity       int  // < number of results
	unreachable bool // < the rest of the block is dead code
}

// converter translates a single function body and tracks the stack usage
// of every instruction. The stack usage analysis guarantees that valid
// programs never underflow the value stack at runtime.
type converter struct {
	program *program
	fn      *function
	frames  []frame
	height  int
	code    []instruction
}

func convertBody(p *program, fn *function, body []byte) error {
	c := &converter{
		program: p,
		fn:      fn,
		frames:  []frame{{op: wasm.Block, arity: len(fn.typ.Results)}},
	}
	for pos := 0; pos < len(body); {
		if len(c.frames) == 0 {
			return fmt.Errorf("instructions after end of function")
		}
		in, n, err := decodeInstruction(body[pos:])
		if err != nil {
			return err
		}
		pos += n
		if err := c.append(in); err != nil {
			return fmt.Errorf("%v: %w", in.op, err)
		}
	}
	if len(c.frames) != 0 {
		return fmt.Errorf("unterminated function body")
	}
	fn.code = c.code
	return nil
}

func decodeInstruction(data []byte) (instruction, int, error) {
	op := wasm.Opcode(data[0])
	if !op.IsValid() {
		return instruction{}, 0, fmt.Errorf("unsupported instruction %v", op)
	}
	in := instruction{op: op}
	pos := 1
	next := func() (uint32, error) {
		v, n, err := wasm.ReadUint32(data[pos:])
		pos += n
		return v, err
	}
	var err error
	switch op.Immediate() {
	case wasm.ImmBlockType:
		if pos >= len(data) {
			return instruction{}, 0, fmt.Errorf("missing block type")
		}
		switch t := wasm.BlockType(data[pos]); {
		case t == wasm.BlockEmpty:
		case wasm.ValType(t) == wasm.I32 || wasm.ValType(t) == wasm.I64:
			in.arity = 1
		default:
			return instruction{}, 0, fmt.Errorf("unsupported block type 0x%02x", byte(t))
		}
		pos++
	case wasm.ImmIndex:
		var v uint32
		v, err = next()
		in.arg = uint64(v)
	case wasm.ImmBrTable:
		var count uint32
		if count, err = next(); err != nil {
			break
		}
		if int(count) > len(data) {
			return instruction{}, 0, fmt.Errorf("branch table too large")
		}
		in.table = make([]uint32, 0, count+1)
		for i := uint32(0); i <= count && err == nil; i++ {
			var depth uint32
			depth, err = next()
			in.table = append(in.table, depth)
		}
	case wasm.ImmCallIndirect:
		var v uint32
		if v, err = next(); err != nil {
			break
		}
		in.arg = uint64(v)
		if pos >= len(data) || data[pos] != 0 {
			return instruction{}, 0, fmt.Errorf("invalid table index")
		}
		pos++
	case wasm.ImmMemArg:
		if _, err = next(); err != nil {
			break
		}
		var offset uint32
		offset, err = next()
		in.arg = uint64(offset)
	case wasm.ImmReserved:
		if pos >= len(data) || data[pos] != 0 {
			return instruction{}, 0, fmt.Errorf("invalid memory index")
		}
		pos++
	case wasm.ImmI32:
		var v int32
		var n int
		v, n, err = wasm.ReadInt32(data[pos:])
		pos += n
		in.arg = uint64(uint32(v))
	case wasm.ImmI64:
		var v int64
		var n int
		v, n, err = wasm.ReadInt64(data[pos:])
		pos += n
		in.arg = uint64(v)
	}
	if err != nil {
		return instruction{}, 0, err
	}
	return in, pos, nil
}

func (c *converter) top() *frame {
	return &c.frames[len(c.frames)-1]
}

// pop removes n values from the stack of the current block.
func (c *converter) pop(n int) error {
	f := c.top()
	if c.height-n < f.height {
		if !f.unreachable {
			return fmt.Errorf("stack underflow")
		}
		c.height = f.height
		return nil
	}
	c.height -= n
	return nil
}

func (c *converter) push(n int) {
	c.height += n
	if c.height > c.fn.maxStack {
		c.fn.maxStack = c.height
	}
}

func (c *converter) markUnreachable() {
	f := c.top()
	c.height = f.height
	f.unreachable = true
}

// labelArity returns the number of values a branch to the given depth
// transfers.
func (c *converter) labelArity(depth uint64) (int, error) {
	if depth >= uint64(len(c.frames)) {
		return 0, fmt.Errorf("invalid branch depth %d", depth)
	}
	f := c.frames[len(c.frames)-1-int(depth)]
	if f.op == wasm.Loop {
		return 0, nil
	}
	return f.arity, nil
}

// closeBlock checks the results of the current block and removes it.
func (c *converter) closeBlock() (frame, error) {
	f := c.top()
	if !f.unreachable && c.height != f.height+f.arity {
		return frame{}, fmt.Errorf("block leaves %d values, expected %d", c.height-f.height, f.arity)
	}
	closed := *f
	c.frames = c.frames[:len(c.frames)-1]
	c.height = closed.height
	return closed, nil
}

func (c *converter) numLocals() uint64 {
	return uint64(len(c.fn.typ.Params) + c.fn.numLocals)
}

func (c *converter) append(in instruction) error {
	pos := len(c.code)
	c.code = append(c.code, in)

	op := in.op
	switch {
	case op == wasm.Unreachable:
		c.markUnreachable()
	case op == wasm.Nop:
	case op == wasm.Block || op == wasm.Loop || op == wasm.If:
		if op == wasm.If {
			if err := c.pop(1); err != nil {
				return err
			}
		}
		c.frames = append(c.frames, frame{op: op, start: pos, height: c.height, arity: int(in.arity)})
	case op == wasm.Else:
		f := c.top()
		if f.op != wasm.If {
			return fmt.Errorf("else without if")
		}
		if !f.unreachable && c.height != f.height+f.arity {
			return fmt.Errorf("branch leaves %d values, expected %d", c.height-f.height, f.arity)
		}
		if f.elsePos != 0 {
			return fmt.Errorf("duplicate else")
		}
		c.code[f.start].arg = uint64(pos + 1)
		f.elsePos = pos
		f.unreachable = false
		c.height = f.height
	case op == wasm.End:
		f, err := c.closeBlock()
		if err != nil {
			return err
		}
		if f.op == wasm.If && f.elsePos == 0 && f.arity > 0 {
			return fmt.Errorf("if without else must not produce results")
		}
		if len(c.frames) > 0 {
			c.code[f.start].jump = uint32(pos + 1)
			if f.elsePos != 0 {
				c.code[f.elsePos].jump = uint32(pos + 1)
			}
		}
		c.push(f.arity)
	case op == wasm.Br:
		arity, err := c.labelArity(in.arg)
		if err != nil {
			return err
		}
		if err := c.pop(arity); err != nil {
			return err
		}
		c.markUnreachable()
	case op == wasm.BrIf:
		if err := c.pop(1); err != nil {
			return err
		}
		arity, err := c.labelArity(in.arg)
		if err != nil {
			return err
		}
		if err := c.pop(arity); err != nil {
			return err
		}
		c.push(arity)
	case op == wasm.BrTable:
		if err := c.pop(1); err != nil {
			return err
		}
		arity := -1
		for _, depth := range in.table {
			a, err := c.labelArity(uint64(depth))
			if err != nil {
				return err
			}
			if arity >= 0 && a != arity {
				return fmt.Errorf("inconsistent branch table arity")
			}
			arity = a
		}
		if err := c.pop(arity); err != nil {
			return err
		}
		c.markUnreachable()
	case op == wasm.Return:
		if err := c.pop(len(c.fn.typ.Results)); err != nil {
			return err
		}
		c.markUnreachable()
	case op == wasm.Call:
		if in.arg >= uint64(len(c.program.functions)) {
			return fmt.Errorf("unknown function %d", in.arg)
		}
		typ := c.program.functions[in.arg].typ
		if err := c.pop(len(typ.Params)); err != nil {
			return err
		}
		c.push(len(typ.Results))
	case op == wasm.CallIndirect:
		if c.program.table == nil {
			return fmt.Errorf("missing table")
		}
		if in.arg >= uint64(len(c.program.types)) {
			return fmt.Errorf("unknown type %d", in.arg)
		}
		typ := c.program.types[in.arg]
		if err := c.pop(1 + len(typ.Params)); err != nil {
			return err
		}
		c.push(len(typ.Results))
	case op == wasm.Drop:
		return c.pop(1)
	case op == wasm.Select:
		if err := c.pop(3); err != nil {
			return err
		}
		c.push(1)
	case op == wasm.LocalGet || op == wasm.LocalSet || op == wasm.LocalTee:
		if in.arg >= c.numLocals() {
			return fmt.Errorf("unknown local %d", in.arg)
		}
		if op != wasm.LocalGet {
			if err := c.pop(1); err != nil {
				return err
			}
		}
		if op != wasm.LocalSet {
			c.push(1)
		}
	case op == wasm.GlobalGet:
		if in.arg >= uint64(len(c.program.globals)) {
			return fmt.Errorf("unknown global %d", in.arg)
		}
		c.push(1)
	case op == wasm.GlobalSet:
		if in.arg >= uint64(len(c.program.globals)) || !c.program.globals[in.arg].Mutable {
			return fmt.Errorf("invalid global %d", in.arg)
		}
		return c.pop(1)
	case op.AccessSize() > 0:
		if c.program.memory == nil {
			return fmt.Errorf("missing memory")
		}
		if isStore(op) {
			return c.pop(2)
		}
		if err := c.pop(1); err != nil {
			return err
		}
		c.push(1)
	case op == wasm.MemorySize || op == wasm.MemoryGrow:
		if c.program.memory == nil {
			return fmt.Errorf("missing memory")
		}
		if op == wasm.MemoryGrow {
			if err := c.pop(1); err != nil {
				return err
			}
		}
		c.push(1)
	case op == wasm.I32Const || op == wasm.I64Const:
		c.push(1)
	case isUnary(op):
		if err := c.pop(1); err != nil {
			return err
		}
		c.push(1)
	default:
		// all remaining instructions are binary operators
		if err := c.pop(2); err != nil {
			return err
		}
		c.push(1)
	}
	return nil
}

func isStore(op wasm.Opcode) bool {
	return op >= wasm.I32Store && op <= wasm.I64Store32
}

func isUnary(op wasm.Opcode) bool {
	switch op {
	case wasm.I32Eqz, wasm.I64Eqz,
		wasm.I32Clz, wasm.I32Ctz, wasm.I32Popcnt,
		wasm.I64Clz, wasm.I64Ctz, wasm.I64Popcnt,
		wasm.I32WrapI64, wasm.I64ExtendI32S, wasm.I64ExtendI32U,
		wasm.I32Extend8S, wasm.I32Extend16S,
		wasm.I64Extend8S, wasm.I64Extend16S, wasm.I64Extend32S:
		return true
	}
	return false
}
