// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package sable

//go:generate mockgen -source processor.go -destination processor_mock.go -package sable

// Processor is an interface for a component capable of processing dispatches.
// Implementations drive a single execution from a dispatch to its outcome:
// they prepare the sandbox, charge gas, run the program using an interpreter,
// classify the termination, and summarize all effects in a journal.
type Processor interface {
	// Process executes the given dispatch on the given actor. The page store
	// provides the actor's persisted memory and the allowance is the gas
	// remaining in the current block. User errors and traps are reported
	// through the journal. A non-nil error is fatal; the block being processed
	// must be discarded.
	Process(
		block BlockInfo,
		dispatch IncomingDispatch,
		actor ActorState,
		store PageStore,
		allowance Gas,
	) (Journal, error)
}
