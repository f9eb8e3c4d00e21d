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

//go:generate mockgen -source interpreter.go -destination interpreter_mock.go -package sable

// Interpreter is a component capable of executing instrumented WASM programs.
// To obtain an Interpreter instance, client code should use NewInterpreter()
// provided by the registry file in this package.
type Interpreter interface {
	// Run executes the entry point of the code provided by the parameters and
	// returns the reason the execution terminated. The resulting error is nil
	// whenever the code was correctly executed, even if the execution was
	// aborted due to a trap. The error is not nil if some problem within the
	// interpreter or its environment caused the execution to fail. Such errors
	// are fatal for the processing of the current block.
	// Interpreters are required to be thread-safe. Thus, multiple runs may be
	// conducted in parallel.
	Run(Parameters) (Result, error)
}

// Parameters summarizes the list of input parameters required for executing
// a program.
type Parameters struct {
	Context    RunContext
	Memory     Memory
	Kind       DispatchKind
	CodeId     CodeId
	Code       []byte
	EntryPoint string
	MaxPages   WasmPageNumber // < limit of the memory size, zero if only the module limits it
}

// Result summarizes the result of an execution.
type Result struct {
	Termination TerminationReason
}

// Memory is the linear memory of an executing actor. Accesses beyond the
// current size fail with ErrOutOfBounds.
type Memory interface {
	// Size returns the current size of the memory in WASM pages.
	Size() WasmPageNumber
	// Read fills the given buffer with the memory content starting at addr.
	Read(addr uint32, buf []byte) error
	// Write copies the given data to the memory starting at addr.
	Write(addr uint32, data []byte) error
	// Grow extends the memory by delta pages and returns the previous size.
	// ErrGrowLimitExceeded is returned if the configured maximum would be
	// exceeded; in this case the memory is not modified.
	Grow(delta WasmPageNumber) (WasmPageNumber, error)
	// Free releases a dynamically allocated page. ErrInvalidFree is returned
	// for pages that are not allocated.
	Free(page WasmPageNumber) error
}

// RunContext is the host surface of an execution. Programs reach it through
// the imported host functions. Operations ending the execution (wait, exit,
// leave, panic, gas exhaustion) return a *Halt error. Other errors are either
// user errors to be reported to the program or fatal errors.
type RunContext interface {
	// ChargeGas charges the given amount of gas before an effect takes place.
	ChargeGas(amount Gas) error
	// ChargeHostCall charges the cost of a host call moving the given number
	// of bytes across the host boundary.
	ChargeHostCall(bytes int) error
	// GasAvailable returns the gas left for the current execution.
	GasAvailable() Gas

	MessageId() MessageId
	Source() ActorId
	ProgramId() ActorId
	Payload() Payload
	Value() Value
	ValueAvailable() Value
	// ReplyDetails returns the details of the message being processed if it
	// is a reply, nil otherwise.
	ReplyDetails() *ReplyDetails
	Block() BlockInfo

	Send(packet Packet) (MessageId, error)
	SendInit() (uint32, error)
	SendPush(handle uint32, data []byte) error
	SendCommit(handle uint32, packet Packet) (MessageId, error)
	Reply(packet ReplyPacket) (MessageId, error)
	ReplyPush(data []byte) error
	ReplyCommit(packet ReplyPacket) (MessageId, error)
	CreateProgram(packet InitPacket) (ActorId, MessageId, error)
	Wake(id MessageId) error

	Wait(kind WaitKind, duration uint32) error
	Exit(inheritor ActorId) error
	Leave() error
	Panic(message string) error

	// Random returns a deterministic random value derived from the block's
	// seed and the given subject, along with the height of the seed's block.
	Random(subject []byte) ([32]byte, uint64)
	// Debug records a debug message of the program.
	Debug(message string)
}
