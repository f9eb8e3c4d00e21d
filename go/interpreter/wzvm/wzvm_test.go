// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package wzvm

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/Fantom-foundation/Sable/go/gas"
	"github.com/Fantom-foundation/Sable/go/interpreter/lpvm"
	"github.com/Fantom-foundation/Sable/go/lazypages"
	"github.com/Fantom-foundation/Sable/go/sable"
	"github.com/Fantom-foundation/Sable/go/wasm"
	gomock "go.uber.org/mock/gomock"
)

var (
	none = wasm.BlockEmpty
	i64  = wasm.BlockType(wasm.I64)
)

type memoryStore map[sable.PageNumber][]byte

func (s memoryStore) ReadPage(_ sable.ActorId, page sable.PageNumber) ([]byte, bool, error) {
	data, found := s[page]
	return data, found, nil
}

const maxPages = 8

func newMemory(size sable.WasmPageNumber, store memoryStore) *lazypages.Manager {
	allocations := []sable.WasmPageNumber{}
	for p := sable.WasmPageNumber(0); p < size; p++ {
		allocations = append(allocations, p)
	}
	return lazypages.NewManager(sable.ActorId{1}, size, allocations, store, gas.NewCounter(math.MaxUint32), lazypages.Config{MaxPages: maxPages})
}

// newModule creates a module importing a single page of memory with a handle
// entry point running the given code.
func newModule(code *wasm.Code) *wasm.Module {
	m := &wasm.Module{}
	m.ImportMemory("env", "memory", wasm.Limits{Min: 1, Max: 4, HasMax: true})
	handle := m.AddFunction(wasm.FuncType{}, []wasm.ValType{wasm.I64, wasm.I64}, code.Body())
	m.ExportFunction("handle", handle)
	return m
}

func runOn(t *testing.T, interpreter sable.Interpreter, m *wasm.Module, kind sable.DispatchKind, ctx sable.RunContext, memory sable.Memory) sable.Result {
	t.Helper()
	code := wasm.Encode(m)
	res, err := interpreter.Run(sable.Parameters{
		Context:    ctx,
		Memory:     memory,
		Kind:       kind,
		CodeId:     sable.GenerateCodeId(code),
		Code:       code,
		EntryPoint: kind.EntryPoint(),
		MaxPages:   maxPages,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return res
}

func runModule(t *testing.T, m *wasm.Module, kind sable.DispatchKind, ctx sable.RunContext, memory sable.Memory) sable.Result {
	t.Helper()
	interpreter, err := NewInterpreter(Config{})
	if err != nil {
		t.Fatalf("failed to create interpreter: %v", err)
	}
	return runOn(t, interpreter, m, kind, ctx, memory)
}

func readUint64(t *testing.T, memory sable.Memory, addr uint32) uint64 {
	t.Helper()
	var buf [8]byte
	if err := memory.Read(addr, buf[:]); err != nil {
		t.Fatalf("failed to read memory: %v", err)
	}
	return binary.LittleEndian.Uint64(buf[:])
}

func TestInterpreter_IsRegistered(t *testing.T) {
	interpreter, err := sable.NewInterpreter("wzvm")
	if err != nil || interpreter == nil {
		t.Fatalf("wzvm is not registered: %v", err)
	}
	if _, err := sable.NewInterpreter("wzvm", 12); err == nil {
		t.Errorf("invalid configuration should be rejected")
	}
}

func TestInterpreter_ComputesResults(t *testing.T) {
	tests := map[string]struct {
		code func(*wasm.Code)
		want uint64
	}{
		"arithmetic": {
			code: func(c *wasm.Code) { c.I64Const(6).I64Const(7).Op(wasm.I64Mul) },
			want: 42,
		},
		"loop": {
			code: func(c *wasm.Code) {
				c.I64Const(10).LocalSet(0)
				c.Loop(none)
				c.LocalGet(1).LocalGet(0).Op(wasm.I64Add).LocalSet(1)
				c.LocalGet(0).I64Const(1).Op(wasm.I64Sub).LocalTee(0)
				c.Op(wasm.I64Eqz, wasm.I32Eqz).BrIf(0)
				c.End()
				c.LocalGet(1)
			},
			want: 55,
		},
		"if": {
			code: func(c *wasm.Code) { c.I32Const(0).If(i64).I64Const(10).Else().I64Const(20).End() },
			want: 20,
		},
		"memory": {
			code: func(c *wasm.Code) {
				c.I32Const(4096).I64Const(-1).Memory(wasm.I64Store, 0)
				c.I32Const(4096).Memory(wasm.I64Load16S, 0)
			},
			want: math.MaxUint64,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			var code wasm.Code
			code.I32Const(0)
			test.code(&code)
			code.Memory(wasm.I64Store, 0)

			memory := newMemory(0, memoryStore{})
			res := runModule(t, newModule(&code), sable.Handle, nil, memory)
			if res.Termination.Kind != sable.TerminationSuccess {
				t.Fatalf("unexpected termination %v", res.Termination)
			}
			if want, got := test.want, readUint64(t, memory, 0); want != got {
				t.Errorf("unexpected result, want %d, got %d", want, got)
			}
		})
	}
}

func TestInterpreter_Traps(t *testing.T) {
	tests := map[string]struct {
		code func(*wasm.Code)
		want sable.TrapKind
	}{
		"unreachable": {
			code: func(c *wasm.Code) { c.Op(wasm.Unreachable) },
			want: sable.TrapUnreachable,
		},
		"division by zero": {
			code: func(c *wasm.Code) { c.I32Const(1).I32Const(0).Op(wasm.I32DivU, wasm.Drop) },
			want: sable.TrapArithmetic,
		},
		"division overflow": {
			code: func(c *wasm.Code) { c.I64Const(math.MinInt64).I64Const(-1).Op(wasm.I64DivS, wasm.Drop) },
			want: sable.TrapArithmetic,
		},
		"load beyond memory": {
			code: func(c *wasm.Code) { c.I32Const(sable.WasmPageSize - 2).Memory(wasm.I32Load, 0).Op(wasm.Drop) },
			want: sable.TrapMemoryAccess,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			var code wasm.Code
			test.code(&code)
			res := runModule(t, newModule(&code), sable.Handle, nil, newMemory(0, memoryStore{}))
			if want, got := sable.TerminationTrap, res.Termination.Kind; want != got {
				t.Fatalf("unexpected termination, want %v, got %v", want, got)
			}
			if want, got := test.want, res.Termination.Trap.Kind; want != got {
				t.Errorf("unexpected trap, want %v, got %v", want, got)
			}
		})
	}
}

func TestInterpreter_InvalidProgramsAreTrapped(t *testing.T) {
	withUnknownImport := newModule(&wasm.Code{})
	withUnknownImport.ImportFunction("env", "unknown", wasm.FuncType{})

	m := newModule(&wasm.Code{})
	tests := map[string]struct {
		kind sable.DispatchKind
		code []byte
		want sable.TrapKind
	}{
		"not a module":        {kind: sable.Handle, code: []byte{0, 'a', 's'}, want: sable.TrapIllegalInstruction},
		"unknown import":      {kind: sable.Handle, code: wasm.Encode(withUnknownImport), want: sable.TrapForbiddenFunction},
		"missing entry point": {kind: sable.Reply, code: wasm.Encode(m), want: sable.TrapInvalidEntryPoint},
	}

	interpreter, err := NewInterpreter(Config{})
	if err != nil {
		t.Fatalf("failed to create interpreter: %v", err)
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			res, err := interpreter.Run(sable.Parameters{
				Memory:     newMemory(0, memoryStore{}),
				Kind:       test.kind,
				CodeId:     sable.GenerateCodeId(test.code),
				Code:       test.code,
				EntryPoint: test.kind.EntryPoint(),
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if want, got := test.want, res.Termination.Trap.Kind; res.Termination.Kind != sable.TerminationTrap || want != got {
				t.Errorf("unexpected termination, want trap %v, got %v", want, res.Termination)
			}
		})
	}
}

func TestInterpreter_OnlyModifiedPagesAreWrittenBack(t *testing.T) {
	store := memoryStore{
		0: bytes.Repeat([]byte{1}, sable.PageSize),
		3: bytes.Repeat([]byte{3}, sable.PageSize),
	}
	var code wasm.Code
	code.I32Const(3*sable.PageSize + 8).I32Const(7).Memory(wasm.I32Store8, 0)
	code.I32Const(sable.PageSize).I32Const(0).Memory(wasm.I32Store8, 0) // < writes the present value

	memory := newMemory(1, store)
	if res := runModule(t, newModule(&code), sable.Handle, nil, memory); res.Termination.Kind != sable.TerminationSuccess {
		t.Fatalf("unexpected termination %v", res.Termination)
	}
	deltas := memory.IntoDeltas()
	if want, got := 1, len(deltas.Dirty); want != got {
		t.Fatalf("unexpected number of dirty pages, want %d, got %d", want, got)
	}
	update := deltas.Dirty[0]
	if want, got := sable.PageNumber(3), update.Page; want != got {
		t.Errorf("unexpected dirty page, want %v, got %v", want, got)
	}
	if update.Data[8] != 7 || update.Data[9] != 3 {
		t.Errorf("unexpected content of dirty page: %v", update.Data[:16])
	}
}

func TestInterpreter_TrappedExecutionsDoNotWriteBack(t *testing.T) {
	var code wasm.Code
	code.I32Const(0).I32Const(7).Memory(wasm.I32Store8, 0).Op(wasm.Unreachable)

	memory := newMemory(1, memoryStore{})
	if res := runModule(t, newModule(&code), sable.Handle, nil, memory); res.Termination.Kind != sable.TerminationTrap {
		t.Fatalf("unexpected termination %v", res.Termination)
	}
	if deltas := memory.IntoDeltas(); len(deltas.Dirty) != 0 {
		t.Errorf("trapped execution should not modify pages, got %v", deltas.Dirty)
	}
}

func TestInterpreter_HaltsKeepMemoryChanges(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := sable.NewMockRunContext(ctrl)
	ctx.EXPECT().ChargeHostCall(0).Return(nil)
	ctx.EXPECT().Wait(sable.WaitDefault, uint32(0)).Return(&sable.Halt{Reason: sable.TerminationReason{Kind: sable.TerminationWait}})

	m := &wasm.Module{}
	wait := m.ImportFunction("env", "wait", wasm.FuncType{})
	m.ImportMemory("env", "memory", wasm.Limits{Min: 1})
	var code wasm.Code
	code.I32Const(0).I32Const(7).Memory(wasm.I32Store8, 0).Call(wait).Op(wasm.Unreachable)
	m.ExportFunction("handle", m.AddFunction(wasm.FuncType{}, nil, code.Body()))

	memory := newMemory(1, memoryStore{})
	res := runModule(t, m, sable.Handle, ctx, memory)
	if want, got := sable.TerminationWait, res.Termination.Kind; want != got {
		t.Fatalf("unexpected termination, want %v, got %v", want, got)
	}
	if deltas := memory.IntoDeltas(); len(deltas.Dirty) != 1 || deltas.Dirty[0].Data[0] != 7 {
		t.Errorf("memory changes should be kept, got %v", deltas.Dirty)
	}
}

func TestInterpreter_GrowingIsReflectedInBackingMemory(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := sable.NewMockRunContext(ctrl)
	ctx.EXPECT().ChargeHostCall(0).Return(nil)

	m := &wasm.Module{}
	alloc := m.ImportFunction("env", "alloc", wasm.FuncType{Params: []wasm.ValType{wasm.I32}, Results: []wasm.ValType{wasm.I32}})
	m.ImportMemory("env", "memory", wasm.Limits{Min: 1})
	var code wasm.Code
	code.I32Const(1).Call(alloc).Op(wasm.Drop)
	code.I32Const(2).MemoryGrow().Op(wasm.Drop)
	code.I32Const(3*sable.WasmPageSize).I32Const(1).Memory(wasm.I32Store8, 0)
	m.ExportFunction("handle", m.AddFunction(wasm.FuncType{}, nil, code.Body()))

	memory := newMemory(0, memoryStore{})
	if res := runModule(t, m, sable.Handle, ctx, memory); res.Termination.Kind != sable.TerminationSuccess {
		t.Fatalf("unexpected termination %v", res.Termination)
	}
	if want, got := sable.WasmPageNumber(4), memory.Size(); want != got {
		t.Errorf("unexpected memory size, want %d, got %d", want, got)
	}
}

func TestInterpreter_GrowingBeyondLimitIsReportedToProgram(t *testing.T) {
	tests := map[string]uint32{
		"far beyond limit":  16,
		"just beyond limit": maxPages,
	}
	for name, delta := range tests {
		t.Run(name, func(t *testing.T) {
			m := &wasm.Module{}
			m.ImportMemory("env", "memory", wasm.Limits{Min: 1})
			var code wasm.Code
			code.I32Const(0).I32Const(int32(delta)).MemoryGrow().Memory(wasm.I32Store, 0)
			m.ExportFunction("handle", m.AddFunction(wasm.FuncType{}, nil, code.Body()))

			memory := newMemory(0, memoryStore{})
			res := runModule(t, m, sable.Handle, nil, memory)
			if res.Termination.Kind != sable.TerminationSuccess {
				t.Fatalf("unexpected termination %v", res.Termination)
			}
			if want, got := uint64(math.MaxUint32), readUint64(t, memory, 0)&math.MaxUint32; want != got {
				t.Errorf("unexpected grow result, want %d, got %d", want, got)
			}
			if want, got := sable.WasmPageNumber(1), memory.Size(); want != got {
				t.Errorf("unexpected memory size, want %d, got %d", want, got)
			}
		})
	}
}

func TestInterpreter_GrowingUpToLimitSucceeds(t *testing.T) {
	m := &wasm.Module{}
	m.ImportMemory("env", "memory", wasm.Limits{Min: 1})
	var code wasm.Code
	code.I32Const(0).I32Const(maxPages - 1).MemoryGrow().Memory(wasm.I32Store, 0)
	m.ExportFunction("handle", m.AddFunction(wasm.FuncType{}, nil, code.Body()))

	memory := newMemory(0, memoryStore{})
	if res := runModule(t, m, sable.Handle, nil, memory); res.Termination.Kind != sable.TerminationSuccess {
		t.Fatalf("unexpected termination %v", res.Termination)
	}
	if want, got := uint64(1), readUint64(t, memory, 0)&math.MaxUint32; want != got {
		t.Errorf("unexpected grow result, want %d, got %d", want, got)
	}
	if want, got := sable.WasmPageNumber(maxPages), memory.Size(); want != got {
		t.Errorf("unexpected memory size, want %d, got %d", want, got)
	}
}

func TestInterpreter_DataIsOnlyAppliedOnInit(t *testing.T) {
	m := newModule(&wasm.Code{})
	m.ExportFunction("init", m.AddFunction(wasm.FuncType{}, nil, (&wasm.Code{}).Body()))
	m.Data = append(m.Data, wasm.Data{Offset: wasm.ConstExpr{Op: wasm.I32Const, Value: 16}, Init: []byte("ping")})

	for _, kind := range []sable.DispatchKind{sable.Init, sable.Handle} {
		memory := newMemory(0, memoryStore{})
		if res := runModule(t, m, kind, nil, memory); res.Termination.Kind != sable.TerminationSuccess {
			t.Fatalf("unexpected termination %v", res.Termination)
		}
		buf := make([]byte, 4)
		if err := memory.Read(16, buf); err != nil {
			t.Fatalf("failed to read memory: %v", err)
		}
		want := "\x00\x00\x00\x00"
		if kind == sable.Init {
			want = "ping"
		}
		if got := string(buf); want != got {
			t.Errorf("unexpected memory content after %v, want %q, got %q", kind, want, got)
		}
	}
}

func TestInterpreter_DefinedMemoryIsSupported(t *testing.T) {
	m := &wasm.Module{}
	m.Memories = append(m.Memories, wasm.Limits{Min: 2})
	var code wasm.Code
	code.I32Const(sable.WasmPageSize).I64Const(5).Memory(wasm.I64Store, 0)
	m.ExportFunction("handle", m.AddFunction(wasm.FuncType{}, nil, code.Body()))

	memory := newMemory(0, memoryStore{})
	if res := runModule(t, m, sable.Handle, nil, memory); res.Termination.Kind != sable.TerminationSuccess {
		t.Fatalf("unexpected termination %v", res.Termination)
	}
	if want, got := uint64(5), readUint64(t, memory, sable.WasmPageSize); want != got {
		t.Errorf("unexpected memory content, want %d, got %d", want, got)
	}
}

func TestInterpreter_AgreesWithLazyPagedInterpreter(t *testing.T) {
	reference, err := lpvm.NewInterpreter(lpvm.Config{})
	if err != nil {
		t.Fatalf("failed to create reference interpreter: %v", err)
	}
	interpreter, err := NewInterpreter(Config{})
	if err != nil {
		t.Fatalf("failed to create interpreter: %v", err)
	}

	programs := map[string]func(*wasm.Code){
		"success": func(c *wasm.Code) {
			c.I32Const(64).I64Const(0x0102030405060708).Memory(wasm.I64Store, 0)
			c.I32Const(72).I32Const(64).Memory(wasm.I32Load8U, 3).Memory(wasm.I32Store, 0)
		},
		"trap after write": func(c *wasm.Code) {
			c.I32Const(64).I32Const(1).Memory(wasm.I32Store, 0)
			c.I32Const(1).I32Const(0).Op(wasm.I32RemU, wasm.Drop)
		},
		"out of bounds": func(c *wasm.Code) {
			c.I32Const(-4).Memory(wasm.I32Load, 0).Op(wasm.Drop)
		},
	}

	for name, program := range programs {
		t.Run(name, func(t *testing.T) {
			var code wasm.Code
			program(&code)
			m := newModule(&code)

			want := newMemory(0, memoryStore{})
			got := newMemory(0, memoryStore{})
			wantRes := runOn(t, reference, m, sable.Handle, nil, want)
			gotRes := runOn(t, interpreter, m, sable.Handle, nil, got)
			if wantRes.Termination.Kind != gotRes.Termination.Kind || wantRes.Termination.Trap.Kind != gotRes.Termination.Trap.Kind {
				t.Fatalf("unexpected termination, want %v, got %v", wantRes.Termination, gotRes.Termination)
			}
			if wantRes.Termination.Kind != sable.TerminationSuccess {
				return
			}
			for addr := uint32(64); addr < 80; addr += 8 {
				if want, got := readUint64(t, want, addr), readUint64(t, got, addr); want != got {
					t.Errorf("unexpected memory content at %d, want %x, got %x", addr, want, got)
				}
			}
		})
	}
}
