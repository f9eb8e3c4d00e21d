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

// GetGasBurnerExample provides an example program for tests and benchmarks
// that runs a loop burning 1000 units of gas per iteration. The argument is
// the number of iterations; it is also the result. Negative arguments burn
// gas until the gas limit is exceeded.
func GetGasBurnerExample() Example {
	// Locals: 0 = temporary, 1 = remaining iterations.
	p := newProgram("gas", "size", "read", "reply")
	var code wasm.Code
	p.readArgument(&code).LocalSet(1)
	code.Block(wasm.BlockEmpty).Loop(wasm.BlockEmpty)
	code.LocalGet(1).Op(wasm.I32Eqz).BrIf(1)
	p.burn(&code, 1000)
	code.LocalGet(1).I32Const(1).Op(wasm.I32Sub).LocalSet(1)
	code.Br(0).End().End()
	p.readArgument(&code)
	p.replyWith(&code)
	p.entry("handle", 2, &code)

	return exampleSpec{
		Name:      "gas_burner",
		Code:      p.build(),
		reference: burnGas,
	}.build()
}

func burnGas(x int) int {
	return x
}
