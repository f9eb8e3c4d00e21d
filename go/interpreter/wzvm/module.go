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
	"fmt"
	"strings"

	"github.com/Fantom-foundation/Sable/go/hostabi"
	"github.com/Fantom-foundation/Sable/go/sable"
	"github.com/Fantom-foundation/Sable/go/wasm"
)

const errForbiddenFunction = sable.ConstError("forbidden function")

// checkImports verifies that a module only imports host functions with
// their expected signatures and the environment memory.
func checkImports(m *wasm.Module) error {
	for _, imp := range m.Imports {
		switch {
		case imp.Module != hostabi.Module:
			return fmt.Errorf("%w: %s.%s", errForbiddenFunction, imp.Module, imp.Name)
		case imp.Kind == wasm.ExternMemory && imp.Name == hostabi.MemoryName:
		case imp.Kind == wasm.ExternFunc:
			f, found := hostabi.Lookup(imp.Name)
			if !found {
				return fmt.Errorf("%w: %s", errForbiddenFunction, imp.Name)
			}
			if !f.Type().Equal(m.Types[imp.Type]) {
				return fmt.Errorf("invalid signature of host function %s", imp.Name)
			}
		default:
			return fmt.Errorf("%w: %s.%s", errForbiddenFunction, imp.Module, imp.Name)
		}
	}
	return nil
}

// normalize produces the variant of a module linked by the runtime. The
// memory of the program is always imported from the environment such that
// it can be filled before the module is instantiated. Data segments are
// dropped unless the program gets initialized.
func normalize(m *wasm.Module, initializing bool) *wasm.Module {
	res := *m
	if len(m.Memories) > 0 {
		res.Imports = append(append([]wasm.Import{}, m.Imports...), wasm.Import{
			Module: hostabi.Module,
			Name:   hostabi.MemoryName,
			Kind:   wasm.ExternMemory,
			Limits: m.Memories[0],
		})
		res.Memories = nil
	}
	if !initializing {
		res.Data = nil
	}
	return &res
}

// environment builds the module linked under the name of the host module.
// It re-exports the host functions and defines the memory of the program
// with the given current size.
func environment(declared wasm.Limits, size, limit sable.WasmPageNumber) []byte {
	m := &wasm.Module{}
	for _, f := range hostabi.Functions() {
		index := m.ImportFunction(hostModule, f.Name, f.Type())
		m.ExportFunction(f.Name, index)
	}
	// The maximum makes memory.grow fail within the program instead of
	// trapping once the backing memory is synced.
	limits := wasm.Limits{Min: uint32(size), Max: maxWasmPages, HasMax: true}
	if limit > 0 && uint32(limit) < limits.Max {
		limits.Max = uint32(limit)
	}
	if declared.HasMax && declared.Max < limits.Max {
		limits.Max = declared.Max
	}
	limits.Max = max(limits.Max, limits.Min)
	m.Memories = append(m.Memories, limits)
	m.Exports = append(m.Exports, wasm.Export{Name: hostabi.MemoryName, Kind: wasm.ExternMemory})
	return wasm.Encode(m)
}

const maxWasmPages = 1 << 16

const outOfBounds = "out of bounds memory access"

// runtimeErrors maps the runtime errors reported by wazero to traps.
var runtimeErrors = []struct {
	message string
	kind    sable.TrapKind
}{
	{"unreachable", sable.TrapUnreachable},
	{"integer divide by zero", sable.TrapArithmetic},
	{"integer overflow", sable.TrapArithmetic},
	{outOfBounds, sable.TrapMemoryAccess},
	{"invalid table access", sable.TrapIllegalInstruction},
	{"indirect call type mismatch", sable.TrapIllegalInstruction},
	{"stack overflow", sable.TrapStackOverflow},
}

// classify determines the termination implied by an error of an execution.
// The result is false for internal errors.
func classify(err error) (sable.TerminationReason, bool) {
	if reason, ok := sable.TerminationFromError(err); ok {
		return reason, true
	}
	message := err.Error()
	if strings.Contains(message, "data[") && strings.HasSuffix(message, outOfBounds) {
		// data segments exceeding the memory fail the instantiation
		return trap(sable.TrapMemoryAccess, message), true
	}
	const prefix = "wasm error: "
	if !strings.HasPrefix(message, prefix) {
		return sable.TerminationReason{}, false
	}
	message, _, _ = strings.Cut(message[len(prefix):], "\n")
	for _, e := range runtimeErrors {
		if message == e.message {
			return trap(e.kind, message), true
		}
	}
	return trap(sable.TrapUnknown, message), true
}

func trap(kind sable.TrapKind, message string) sable.TerminationReason {
	return sable.TerminationReason{
		Kind: sable.TerminationTrap,
		Trap: sable.TrapExplanation{Kind: kind, Message: message},
	}
}
