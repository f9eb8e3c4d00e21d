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

import (
	"math"

	"github.com/Fantom-foundation/Sable/go/wasm"
)

func GetArithmeticExample() Example {
	// Locals: 0 = temporary, 1 = n, 2 = i, 3 = result.
	p := newProgram("gas", "size", "read", "reply")
	var code wasm.Code
	p.readArgument(&code).LocalSet(1)
	code.I32Const(1).LocalSet(2)
	code.Block(wasm.BlockEmpty).Loop(wasm.BlockEmpty)
	code.LocalGet(2).LocalGet(1).Op(wasm.I32GtU).BrIf(1)
	p.burn(&code, 20)
	code.LocalGet(3).LocalGet(2).Op(wasm.I32Add).LocalSet(3)
	code.LocalGet(3).LocalGet(2).Op(wasm.I32Mul).LocalSet(3)
	code.LocalGet(3).LocalGet(2).LocalGet(2).Op(wasm.I32Mul, wasm.I32Add).LocalSet(3)
	code.LocalGet(3).LocalGet(2).Op(wasm.I32Sub).LocalSet(3)
	code.LocalGet(3).LocalGet(2).Op(wasm.I32DivU).LocalSet(3)
	code.LocalGet(3).LocalGet(2).I32Const(3).Op(wasm.I32RemU).I32Const(1).Op(wasm.I32Add, wasm.I32Mul).LocalSet(3)
	code.LocalGet(3).LocalGet(2).LocalGet(2).Op(wasm.I32Mul).LocalGet(2).Op(wasm.I32Mul, wasm.I32Add).LocalSet(3)
	code.LocalGet(2).I32Const(1).Op(wasm.I32Add).LocalSet(2)
	code.Br(0).End().End()
	code.LocalGet(3).I32Const(math.MaxInt32).Op(wasm.I32RemU)
	p.replyWith(&code)
	p.entry("handle", 4, &code)

	return exampleSpec{
		Name:      "arithmetic",
		Code:      p.build(),
		reference: arithmetic,
	}.build()
}

func arithmetic(n int) int {
	var result uint32
	for i := uint32(1); i <= uint32(n); i++ {
		result += i
		result *= i
		result += i * i
		result -= i
		result /= i
		result *= i%3 + 1
		result += i * i * i
	}
	return int(result % math.MaxInt32)
}
