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

// This example tries to represent the worst case for very short programs.
// It touches every part of the processing pipeline with as little work as
// possible:
// - reading the payload loads a memory page and marks it dirty
// - replying produces an outgoing message
func GetStaticOverheadExample() Example {
	p := newProgram("size", "read", "reply")
	var code wasm.Code
	p.readArgument(&code)
	p.replyWith(&code)
	p.entry("handle", 1, &code)

	return exampleSpec{
		Name:      "static_overhead",
		Code:      p.build(),
		reference: StaticOverheadRef,
	}.build()
}

func StaticOverheadRef(x int) int {
	return x
}
