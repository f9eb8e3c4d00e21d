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
	"encoding/binary"
	"errors"
	"math"
	"math/bits"

	"github.com/Fantom-foundation/Sable/go/hostabi"
	"github.com/Fantom-foundation/Sable/go/sable"
	"github.com/Fantom-foundation/Sable/go/wasm"
)

// label is the runtime representation of an entered block.
type label struct {
	height int // < value stack height at block entry
	arity  int // < number of values transferred by a branch to this label
	cont   int // < position to continue at after a branch to this label
}

// machine is the execution state of a single run. A new machine is created
// for every execution.
type machine struct {
	program *program
	config  Config
	env     hostabi.Env
	memory  sable.Memory
	globals []uint64
	stack   []uint64
	labels  []label
	depth   int
}

func run(config Config, params sable.Parameters, program *program) (sable.Result, error) {
	entry, found := program.exports[params.EntryPoint]
	if !found {
		return trapped(sable.TrapInvalidEntryPoint, params.EntryPoint), nil
	}
	if typ := program.functions[entry].typ; len(typ.Params) != 0 || len(typ.Results) != 0 {
		return trapped(sable.TrapInvalidEntryPoint, "invalid signature of "+params.EntryPoint), nil
	}

	m := &machine{
		program: program,
		config:  config,
		env:     hostabi.Env{Context: params.Context, Memory: params.Memory},
		memory:  params.Memory,
		stack:   make([]uint64, 0, 64),
	}
	err := m.instantiate(params.Kind == sable.Init)
	if err == nil && program.start != nil {
		err = m.call(*program.start)
	}
	if err == nil {
		err = m.call(entry)
	}
	if err == nil {
		return sable.Result{Termination: sable.TerminationReason{Kind: sable.TerminationSuccess}}, nil
	}
	if reason, ok := sable.TerminationFromError(err); ok {
		return sable.Result{Termination: reason}, nil
	}
	return sable.Result{}, sable.Fatal(err)
}

// instantiate prepares globals and memory. Data segments are only applied
// when initializing a program since afterwards the memory is persisted.
func (m *machine) instantiate(initializing bool) error {
	m.globals = make([]uint64, len(m.program.globals))
	for i, global := range m.program.globals {
		m.globals[i] = m.constant(global.Init)
	}
	if limits := m.program.memory; limits != nil {
		if size := m.memory.Size(); size < sable.WasmPageNumber(limits.Min) {
			if _, err := m.memory.Grow(sable.WasmPageNumber(limits.Min) - size); err != nil {
				if errors.Is(err, sable.ErrGrowLimitExceeded) {
					return sable.HaltWithTrap(sable.TrapMemoryLimitExceeded, err.Error())
				}
				return err
			}
		}
	}
	if initializing {
		for _, data := range m.program.data {
			if err := m.memory.Write(uint32(m.constant(data.Offset)), data.Init); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *machine) constant(expr wasm.ConstExpr) uint64 {
	switch expr.Op {
	case wasm.I32Const:
		return uint64(uint32(expr.Value))
	case wasm.GlobalGet:
		return m.globals[expr.Value]
	default:
		return expr.Value
	}
}

func (m *machine) pop() uint64 {
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v
}

func (m *machine) pop32() uint32 {
	return uint32(m.pop())
}

func (m *machine) push(v uint64) {
	m.stack = append(m.stack, v)
}

func (m *machine) push32(v uint32) {
	m.stack = append(m.stack, uint64(v))
}

func (m *machine) pushBool(b bool) {
	if b {
		m.push(1)
	} else {
		m.push(0)
	}
}

// unwind truncates the value stack to the given height while keeping the
// topmost arity values.
func (m *machine) unwind(height, arity int) {
	copy(m.stack[height:], m.stack[len(m.stack)-arity:])
	m.stack = m.stack[:height+arity]
}

func (m *machine) call(index uint32) error {
	fn := m.program.functions[index]
	if fn.host != nil {
		return m.callHost(fn.host)
	}
	if m.depth >= m.config.MaxCallDepth {
		return sable.HaltWithTrap(sable.TrapStackOverflow, "call depth exceeded")
	}
	if len(m.stack)+fn.maxStack > m.config.MaxStackSize {
		return sable.HaltWithTrap(sable.TrapStackOverflow, "value stack exceeded")
	}
	numParams := len(fn.typ.Params)
	locals := make([]uint64, numParams+fn.numLocals)
	copy(locals, m.stack[len(m.stack)-numParams:])
	m.stack = m.stack[:len(m.stack)-numParams]

	m.depth++
	err := m.execute(fn, locals)
	m.depth--
	return err
}

func (m *machine) callHost(f *hostabi.Function) error {
	numParams := len(f.Params)
	args := make([]uint64, max(numParams, len(f.Results)))
	copy(args, m.stack[len(m.stack)-numParams:])
	m.stack = m.stack[:len(m.stack)-numParams]
	if err := f.Call(&m.env, args); err != nil {
		return err
	}
	m.stack = append(m.stack, args[:len(f.Results)]...)
	return nil
}

// branch transfers control to the label with the given depth. It reports
// whether the branch targets the function itself, which is a return.
func (m *machine) branch(depth int, labelBase int) (int, bool) {
	if depth == len(m.labels)-labelBase {
		m.labels = m.labels[:labelBase]
		return 0, true
	}
	target := m.labels[len(m.labels)-1-depth]
	m.unwind(target.height, target.arity)
	m.labels = m.labels[:len(m.labels)-1-depth]
	return target.cont, false
}

func (m *machine) address(in *instruction) (uint32, error) {
	addr := uint64(m.pop32()) + in.arg
	if addr+uint64(in.op.AccessSize()) > math.MaxUint32 {
		return 0, sable.ErrOutOfBounds
	}
	return uint32(addr), nil
}

func (m *machine) load(in *instruction) error {
	addr, err := m.address(in)
	if err != nil {
		return err
	}
	var buf [8]byte
	if err := m.memory.Read(addr, buf[:in.op.AccessSize()]); err != nil {
		return err
	}
	v := binary.LittleEndian.Uint64(buf[:])
	switch in.op {
	case wasm.I32Load, wasm.I64Load32U:
		v = uint64(uint32(v))
	case wasm.I32Load8S:
		v = uint64(uint32(int32(int8(v))))
	case wasm.I32Load8U, wasm.I64Load8U:
		v = uint64(uint8(v))
	case wasm.I32Load16S:
		v = uint64(uint32(int32(int16(v))))
	case wasm.I32Load16U, wasm.I64Load16U:
		v = uint64(uint16(v))
	case wasm.I64Load8S:
		v = uint64(int64(int8(v)))
	case wasm.I64Load16S:
		v = uint64(int64(int16(v)))
	case wasm.I64Load32S:
		v = uint64(int64(int32(v)))
	}
	m.push(v)
	return nil
}

func (m *machine) store(in *instruction) error {
	v := m.pop()
	addr, err := m.address(in)
	if err != nil {
		return err
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return m.memory.Write(addr, buf[:in.op.AccessSize()])
}

func (m *machine) grow() error {
	delta := m.pop32()
	size := m.memory.Size()
	if limits := m.program.memory; limits.HasMax && uint64(size)+uint64(delta) > uint64(limits.Max) {
		m.push32(math.MaxUint32)
		return nil
	}
	previous, err := m.memory.Grow(sable.WasmPageNumber(delta))
	if errors.Is(err, sable.ErrGrowLimitExceeded) {
		m.push32(math.MaxUint32)
		return nil
	}
	if err != nil {
		return err
	}
	m.push32(uint32(previous))
	return nil
}

func (m *machine) callIndirect(in *instruction) error {
	slot := uint64(m.pop32())
	table := m.program.table
	if slot >= uint64(len(table)) || table[slot] < 0 {
		return sable.HaltWithTrap(sable.TrapIllegalInstruction, "undefined table element")
	}
	index := uint32(table[slot])
	if !m.program.functions[index].typ.Equal(m.program.types[in.arg]) {
		return sable.HaltWithTrap(sable.TrapIllegalInstruction, "indirect call signature mismatch")
	}
	return m.call(index)
}

func trap(kind sable.TrapKind, message string) error {
	return sable.HaltWithTrap(kind, message)
}

var (
	errDivideByZero    = trap(sable.TrapArithmetic, "integer divide by zero")
	errIntegerOverflow = trap(sable.TrapArithmetic, "integer overflow")
)

// execute runs the given function until it returns. On return, the results
// of the function are on top of the value stack.
func (m *machine) execute(fn *function, locals []uint64) error {
	base := len(m.stack)
	labelBase := len(m.labels)
	results := len(fn.typ.Results)
	code := fn.code

	for pc := 0; ; {
		in := &code[pc]
		pc++
		switch in.op {
		case wasm.Unreachable:
			return trap(sable.TrapUnreachable, "unreachable instruction executed")
		case wasm.Nop:
		case wasm.Block:
			m.labels = append(m.labels, label{height: len(m.stack), arity: int(in.arity), cont: int(in.jump)})
		case wasm.Loop:
			m.labels = append(m.labels, label{height: len(m.stack), cont: pc - 1})
		case wasm.If:
			if m.pop32() != 0 {
				m.labels = append(m.labels, label{height: len(m.stack), arity: int(in.arity), cont: int(in.jump)})
			} else if in.arg != 0 {
				m.labels = append(m.labels, label{height: len(m.stack), arity: int(in.arity), cont: int(in.jump)})
				pc = int(in.arg)
			} else {
				pc = int(in.jump)
			}
		case wasm.Else:
			m.labels = m.labels[:len(m.labels)-1]
			pc = int(in.jump)
		case wasm.End:
			if len(m.labels) == labelBase {
				m.unwind(base, results)
				return nil
			}
			m.labels = m.labels[:len(m.labels)-1]
		case wasm.Br:
			next, done := m.branch(int(in.arg), labelBase)
			if done {
				m.unwind(base, results)
				return nil
			}
			pc = next
		case wasm.BrIf:
			if m.pop32() == 0 {
				break
			}
			next, done := m.branch(int(in.arg), labelBase)
			if done {
				m.unwind(base, results)
				return nil
			}
			pc = next
		case wasm.BrTable:
			i := uint64(m.pop32())
			depth := in.table[len(in.table)-1]
			if i < uint64(len(in.table)-1) {
				depth = in.table[i]
			}
			next, done := m.branch(int(depth), labelBase)
			if done {
				m.unwind(base, results)
				return nil
			}
			pc = next
		case wasm.Return:
			m.unwind(base, results)
			m.labels = m.labels[:labelBase]
			return nil
		case wasm.Call:
			if err := m.call(uint32(in.arg)); err != nil {
				return err
			}
		case wasm.CallIndirect:
			if err := m.callIndirect(in); err != nil {
				return err
			}

		case wasm.Drop:
			m.pop()
		case wasm.Select:
			c := m.pop32()
			b := m.pop()
			a := m.pop()
			if c != 0 {
				m.push(a)
			} else {
				m.push(b)
			}

		case wasm.LocalGet:
			m.push(locals[in.arg])
		case wasm.LocalSet:
			locals[in.arg] = m.pop()
		case wasm.LocalTee:
			locals[in.arg] = m.stack[len(m.stack)-1]
		case wasm.GlobalGet:
			m.push(m.globals[in.arg])
		case wasm.GlobalSet:
			m.globals[in.arg] = m.pop()

		case wasm.MemorySize:
			m.push32(uint32(m.memory.Size()))
		case wasm.MemoryGrow:
			if err := m.grow(); err != nil {
				return err
			}
		case wasm.I32Const, wasm.I64Const:
			m.push(in.arg)

		default:
			var err error
			switch {
			case in.op.AccessSize() > 0 && isStore(in.op):
				err = m.store(in)
			case in.op.AccessSize() > 0:
				err = m.load(in)
			case in.op <= wasm.I64GeU:
				m.compare(in.op)
			case in.op <= wasm.I32Rotr:
				err = m.arithmetic32(in.op)
			case in.op <= wasm.I64Rotr:
				err = m.arithmetic64(in.op)
			default:
				m.convert(in.op)
			}
			if err != nil {
				return err
			}
		}
	}
}

func (m *machine) compare(op wasm.Opcode) {
	if op == wasm.I32Eqz {
		m.pushBool(m.pop32() == 0)
		return
	}
	if op == wasm.I64Eqz {
		m.pushBool(m.pop() == 0)
		return
	}
	b, a := m.pop(), m.pop()
	if op < wasm.I64Eqz {
		a32, b32 := uint32(a), uint32(b)
		switch op {
		case wasm.I32Eq:
			m.pushBool(a32 == b32)
		case wasm.I32Ne:
			m.pushBool(a32 != b32)
		case wasm.I32LtS:
			m.pushBool(int32(a32) < int32(b32))
		case wasm.I32LtU:
			m.pushBool(a32 < b32)
		case wasm.I32GtS:
			m.pushBool(int32(a32) > int32(b32))
		case wasm.I32GtU:
			m.pushBool(a32 > b32)
		case wasm.I32LeS:
			m.pushBool(int32(a32) <= int32(b32))
		case wasm.I32LeU:
			m.pushBool(a32 <= b32)
		case wasm.I32GeS:
			m.pushBool(int32(a32) >= int32(b32))
		case wasm.I32GeU:
			m.pushBool(a32 >= b32)
		}
		return
	}
	switch op {
	case wasm.I64Eq:
		m.pushBool(a == b)
	case wasm.I64Ne:
		m.pushBool(a != b)
	case wasm.I64LtS:
		m.pushBool(int64(a) < int64(b))
	case wasm.I64LtU:
		m.pushBool(a < b)
	case wasm.I64GtS:
		m.pushBool(int64(a) > int64(b))
	case wasm.I64GtU:
		m.pushBool(a > b)
	case wasm.I64LeS:
		m.pushBool(int64(a) <= int64(b))
	case wasm.I64LeU:
		m.pushBool(a <= b)
	case wasm.I64GeS:
		m.pushBool(int64(a) >= int64(b))
	case wasm.I64GeU:
		m.pushBool(a >= b)
	}
}

func (m *machine) arithmetic32(op wasm.Opcode) error {
	switch op {
	case wasm.I32Clz:
		m.push32(uint32(bits.LeadingZeros32(m.pop32())))
		return nil
	case wasm.I32Ctz:
		m.push32(uint32(bits.TrailingZeros32(m.pop32())))
		return nil
	case wasm.I32Popcnt:
		m.push32(uint32(bits.OnesCount32(m.pop32())))
		return nil
	}
	b, a := m.pop32(), m.pop32()
	var r uint32
	switch op {
	case wasm.I32Add:
		r = a + b
	case wasm.I32Sub:
		r = a - b
	case wasm.I32Mul:
		r = a * b
	case wasm.I32DivS:
		if b == 0 {
			return errDivideByZero
		}
		if int32(a) == math.MinInt32 && int32(b) == -1 {
			return errIntegerOverflow
		}
		r = uint32(int32(a) / int32(b))
	case wasm.I32DivU:
		if b == 0 {
			return errDivideByZero
		}
		r = a / b
	case wasm.I32RemS:
		if b == 0 {
			return errDivideByZero
		}
		if int32(b) == -1 {
			r = 0
		} else {
			r = uint32(int32(a) % int32(b))
		}
	case wasm.I32RemU:
		if b == 0 {
			return errDivideByZero
		}
		r = a % b
	case wasm.I32And:
		r = a & b
	case wasm.I32Or:
		r = a | b
	case wasm.I32Xor:
		r = a ^ b
	case wasm.I32Shl:
		r = a << (b & 31)
	case wasm.I32ShrS:
		r = uint32(int32(a) >> (b & 31))
	case wasm.I32ShrU:
		r = a >> (b & 31)
	case wasm.I32Rotl:
		r = bits.RotateLeft32(a, int(b&31))
	case wasm.I32Rotr:
		r = bits.RotateLeft32(a, -int(b&31))
	}
	m.push32(r)
	return nil
}

func (m *machine) arithmetic64(op wasm.Opcode) error {
	switch op {
	case wasm.I64Clz:
		m.push(uint64(bits.LeadingZeros64(m.pop())))
		return nil
	case wasm.I64Ctz:
		m.push(uint64(bits.TrailingZeros64(m.pop())))
		return nil
	case wasm.I64Popcnt:
		m.push(uint64(bits.OnesCount64(m.pop())))
		return nil
	}
	b, a := m.pop(), m.pop()
	var r uint64
	switch op {
	case wasm.I64Add:
		r = a + b
	case wasm.I64Sub:
		r = a - b
	case wasm.I64Mul:
		r = a * b
	case wasm.I64DivS:
		if b == 0 {
			return errDivideByZero
		}
		if int64(a) == math.MinInt64 && int64(b) == -1 {
			return errIntegerOverflow
		}
		r = uint64(int64(a) / int64(b))
	case wasm.I64DivU:
		if b == 0 {
			return errDivideByZero
		}
		r = a / b
	case wasm.I64RemS:
		if b == 0 {
			return errDivideByZero
		}
		if int64(b) == -1 {
			r = 0
		} else {
			r = uint64(int64(a) % int64(b))
		}
	case wasm.I64RemU:
		if b == 0 {
			return errDivideByZero
		}
		r = a % b
	case wasm.I64And:
		r = a & b
	case wasm.I64Or:
		r = a | b
	case wasm.I64Xor:
		r = a ^ b
	case wasm.I64Shl:
		r = a << (b & 63)
	case wasm.I64ShrS:
		r = uint64(int64(a) >> (b & 63))
	case wasm.I64ShrU:
		r = a >> (b & 63)
	case wasm.I64Rotl:
		r = bits.RotateLeft64(a, int(b&63))
	case wasm.I64Rotr:
		r = bits.RotateLeft64(a, -int(b&63))
	}
	m.push(r)
	return nil
}

func (m *machine) convert(op wasm.Opcode) {
	v := m.pop()
	switch op {
	case wasm.I32WrapI64:
		v = uint64(uint32(v))
	case wasm.I64ExtendI32S:
		v = uint64(int64(int32(v)))
	case wasm.I64ExtendI32U:
		v = uint64(uint32(v))
	case wasm.I32Extend8S:
		v = uint64(uint32(int32(int8(v))))
	case wasm.I32Extend16S:
		v = uint64(uint32(int32(int16(v))))
	case wasm.I64Extend8S:
		v = uint64(int64(int8(v)))
	case wasm.I64Extend16S:
		v = uint64(int64(int16(v)))
	case wasm.I64Extend32S:
		v = uint64(int64(int32(v)))
	}
	m.push(v)
}
