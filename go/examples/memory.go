// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package examples

import "github.com/Fantom-foundation/Sable/go/wasm"

// GetOutOfBoundsExample provides a program writing beyond the end of its
// single page of memory.
func GetOutOfBoundsExample() Example {
	p := newProgram()
	var code wasm.Code
	code.I32Const(-16).I32Const(1).Memory(wasm.I32Store, 0)
	p.entry("handle", 0, &code)
	return exampleSpec{
		Name: "out_of_bounds",
		Code: p.build(),
	}.build()
}

// GetGrowerExample provides a program allocating as many pages as given by
// the argument. The result is the previous memory size, or -1 if the
// allocation failed.
func GetGrowerExample() Example {
	p := newProgram("size", "read", "reply", "alloc")
	var code wasm.Code
	p.readArgument(&code).Call(p.host("alloc"))
	p.replyWith(&code)
	p.entry("handle", 1, &code)
	return exampleSpec{
		Name:      "grower",
		Code:      p.build(),
		reference: grow,
	}.build()
}

// GetMemoryGrowExample provides a program growing its memory by as many
// pages as given by the argument using the memory.grow instruction. The
// result is the same as for the grower example.
func GetMemoryGrowExample() Example {
	p := newProgram("size", "read", "reply")
	var code wasm.Code
	p.readArgument(&code).MemoryGrow()
	p.replyWith(&code)
	p.entry("handle", 1, &code)
	return exampleSpec{
		Name:      "memory_grow",
		Code:      p.build(),
		reference: grow,
	}.build()
}

// grow assumes the default limit of 512 pages.
func grow(pages int) int {
	if pages < 0 || pages > 511 {
		return -1
	}
	return 1
}

// GetCounterExample provides a program counting the messages it handled.
// The result is the number of messages handled so far.
func GetCounterExample() Example {
	p := newProgram("reply")
	var code wasm.Code
	code.I32Const(stateAt).
		I32Const(stateAt).Memory(wasm.I32Load, 0).I32Const(1).Op(wasm.I32Add).
		Memory(wasm.I32Store, 0)
	code.I32Const(stateAt).Memory(wasm.I32Load, 0)
	p.replyWith(&code)
	p.entry("handle", 1, &code)
	return exampleSpec{
		Name:      "counter",
		Code:      p.build(),
		reference: func(int) int { return 1 },
	}.build()
}
