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

import "testing"

func TestOpcode_NamesAreUnique(t *testing.T) {
	seen := map[string]Opcode{}
	for i := 0; i < 256; i++ {
		op := Opcode(i)
		if !op.IsValid() {
			continue
		}
		if prev, found := seen[op.String()]; found {
			t.Errorf("opcodes %d and %d share name %v", prev, op, op.String())
		}
		seen[op.String()] = op
	}
}

func TestOpcode_FloatingPointInstructionsAreNotSupported(t *testing.T) {
	for _, op := range []Opcode{0x2a, 0x2b, 0x38, 0x39, 0x43, 0x44, 0x5b, 0x92, 0xa8, 0xb2} {
		if op.IsValid() {
			t.Errorf("opcode %v should not be supported", op)
		}
	}
}

func TestOpcode_AccessSizeOfMemoryInstructions(t *testing.T) {
	tests := map[Opcode]int{
		I32Load:    4,
		I64Load:    8,
		I32Load8U:  1,
		I64Load16S: 2,
		I64Load32U: 4,
		I32Store16: 2,
		I64Store:   8,
		I32Add:     0,
		MemoryGrow: 0,
	}
	for op, want := range tests {
		if got := op.AccessSize(); got != want {
			t.Errorf("unexpected access size of %v, want %d, got %d", op, want, got)
		}
	}
}

func TestOpcode_MemoryInstructionsTakeMemArgs(t *testing.T) {
	for i := 0; i < 256; i++ {
		op := Opcode(i)
		if !op.IsValid() {
			continue
		}
		if want, got := op.AccessSize() > 0, op.Immediate() == ImmMemArg; want != got {
			t.Errorf("inconsistent immediate of %v", op)
		}
	}
}
