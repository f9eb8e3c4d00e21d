// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package examples provides WASM programs for tests, benchmarks, and the
// driver. Programs are assembled from instructions and import their memory
// and host functions from the env module.
package examples

import (
	"encoding/binary"
	"fmt"

	"github.com/Fantom-foundation/Sable/go/hostabi"
	"github.com/Fantom-foundation/Sable/go/sable"
	"github.com/Fantom-foundation/Sable/go/wasm"
)

// Memory layout shared by all examples.
const (
	scratch   = 0    // < 64 bytes of temporary data
	outPtr    = 64   // < ids and handles returned by host functions
	stateAt   = 1024 // < persistent state of the program
	waitingAt = 1056 // < id of a waiting message
	constPtr  = 2048 // < constants written by the program itself
)

// Example is an executable description of a program and an entry point with
// a (int)->int signature. The argument is passed as the little-endian
// encoded payload of a handle message, the result is the payload of the
// reply.
type Example struct {
	exampleSpec
	codeId sable.CodeId // the id of the code
}

// exampleSpec specifies a program and a reference computing its result.
type exampleSpec struct {
	Name      string
	Code      []byte
	reference func(int) int // a reference function computing the same function, may be nil
}

func (s exampleSpec) build() Example {
	return Example{
		exampleSpec: s,
		codeId:      sable.GenerateCodeId(s.Code),
	}
}

// CodeId returns the id of the example's code.
func (e *Example) CodeId() sable.CodeId {
	return e.codeId
}

// ProgramId returns the id of a program running this example created with
// the given salt.
func (e *Example) ProgramId(salt []byte) sable.ActorId {
	return sable.GenerateProgramId(e.codeId, salt)
}

// Actor returns the state of a fresh, initialized instance of this example.
func (e *Example) Actor() sable.ActorState {
	return sable.ActorState{
		Id:          e.ProgramId([]byte(e.Name)),
		CodeId:      e.codeId,
		Code:        e.Code,
		Initialized: true,
	}
}

type Result struct {
	Result  int
	UsedGas sable.Gas
	Journal sable.Journal
}

// RunOn processes a handle message carrying the given argument on a fresh
// instance of this example using the given processor.
func (e *Example) RunOn(processor sable.Processor, argument int) (Result, error) {
	const gasLimit = 1 << 40
	actor := e.Actor()
	dispatch := sable.IncomingDispatch{
		Dispatch: sable.Dispatch{
			Kind: sable.Handle,
			Message: sable.Message{
				Id:          sable.GenerateOutgoing(sable.MessageId{}, uint32(argument)),
				Source:      sable.ActorId{1},
				Destination: actor.Id,
				Payload:     EncodeArgument(argument),
			},
		},
		GasLimit: gasLimit,
	}
	journal, err := processor.Process(sable.BlockInfo{Height: 1}, dispatch, actor, emptyStore{}, gasLimit)
	if err != nil {
		return Result{}, err
	}

	res := Result{Journal: journal}
	for _, note := range journal {
		switch note := note.(type) {
		case sable.GasBurned:
			res.UsedGas = note.Amount
		case sable.ProgramTrapped:
			return res, fmt.Errorf("execution trapped: %v", note.Trap)
		case sable.DispatchSent:
			if note.Dispatch.Kind != sable.Reply {
				continue
			}
			result, err := DecodeResult(note.Dispatch.Message.Payload)
			if err != nil {
				return res, err
			}
			res.Result = result
		}
	}
	return res, nil
}

// HasReference reports whether the example provides a reference function
// for its results.
func (e *Example) HasReference() bool {
	return e.reference != nil
}

// RunReference runs the reference function of this example to produce the
// expected result. Examples without a reference return the argument.
func (e *Example) RunReference(argument int) int {
	if e.reference == nil {
		return argument
	}
	return e.reference(argument)
}

func EncodeArgument(arg int) []byte {
	return binary.LittleEndian.AppendUint32(nil, uint32(arg))
}

func DecodeResult(payload []byte) (int, error) {
	if len(payload) != 4 {
		return 0, fmt.Errorf("unexpected length of output; wanted 4, got %d", len(payload))
	}
	return int(int32(binary.LittleEndian.Uint32(payload))), nil
}

// emptyStore is a page store of programs that never persisted a page.
type emptyStore struct{}

func (emptyStore) ReadPage(sable.ActorId, sable.PageNumber) ([]byte, bool, error) {
	return nil, false, nil
}

// program assembles a module. Host functions are imported on first use, so
// all imports have to be requested before the first function is defined.
type program struct {
	module  wasm.Module
	imports map[string]uint32
}

func newProgram(hostFunctions ...string) *program {
	res := &program{imports: map[string]uint32{}}
	res.module.ImportMemory(hostabi.Module, hostabi.MemoryName, wasm.Limits{Min: 1})
	for _, name := range hostFunctions {
		function, found := hostabi.Lookup(name)
		if !found {
			panic("unknown host function " + name)
		}
		res.imports[name] = res.module.ImportFunction(hostabi.Module, name, function.Type())
	}
	return res
}

// host returns the index of an imported host function.
func (p *program) host(name string) uint32 {
	index, found := p.imports[name]
	if !found {
		panic("host function not imported: " + name)
	}
	return index
}

// entry defines an exported entry point with the given number of i32
// locals. Local 0 is used as temporary by the helpers below.
func (p *program) entry(name string, locals int, code *wasm.Code) {
	types := make([]wasm.ValType, max(locals, 1))
	for i := range types {
		types[i] = wasm.I32
	}
	index := p.module.AddFunction(wasm.FuncType{}, types, code.Body())
	p.module.ExportFunction(name, index)
}

// build completes the module. Programs without an init entry point get an
// empty one.
func (p *program) build() []byte {
	if _, found := p.module.Export(sable.Init.EntryPoint(), wasm.ExternFunc); !found {
		p.entry(sable.Init.EntryPoint(), 0, &wasm.Code{})
	}
	return wasm.Encode(&p.module)
}

// storeBytes appends instructions writing the given data to memory.
func storeBytes(code *wasm.Code, addr uint32, data []byte) *wasm.Code {
	for i, b := range data {
		code.I32Const(int32(addr) + int32(i)).I32Const(int32(b)).Memory(wasm.I32Store8, 0)
	}
	return code
}

// reply appends instructions replying with length bytes starting at ptr.
// The resulting error code is dropped.
func (p *program) reply(code *wasm.Code, ptr, length uint32) *wasm.Code {
	return code.
		I32Const(int32(ptr)).
		I32Const(int32(length)).
		I32Const(-1). // no value
		I32Const(outPtr).
		Call(p.host("reply")).
		Op(wasm.Drop)
}

// readArgument appends instructions pushing the i32 argument of the current
// message. Messages without an argument yield zero.
func (p *program) readArgument(code *wasm.Code) *wasm.Code {
	return code.
		I32Const(scratch).I32Const(0).Memory(wasm.I32Store, 0).
		Call(p.host("size")).I32Const(4).Op(wasm.I32GeU).
		If(wasm.BlockEmpty).
		I32Const(0).I32Const(4).I32Const(scratch).Call(p.host("read")).Op(wasm.Drop).
		End().
		I32Const(scratch).Memory(wasm.I32Load, 0)
}

// replyWith appends instructions replying with the i32 on top of the stack.
func (p *program) replyWith(code *wasm.Code) *wasm.Code {
	code.LocalSet(0).I32Const(scratch).LocalGet(0).Memory(wasm.I32Store, 0)
	return p.reply(code, scratch, 4)
}

// burn appends instructions charging the given amount of gas, the way
// instrumented code does.
func (p *program) burn(code *wasm.Code, amount int64) *wasm.Code {
	return code.I64Const(amount).Call(p.host("gas"))
}

// All returns all examples, ordered by name.
func All() []Example {
	res := []Example{
		GetArithmeticExample(),
		GetCounterExample(),
		GetExiterExample(),
		GetGasBurnerExample(),
		GetGrowerExample(),
		GetMemoryGrowExample(),
		GetOutOfBoundsExample(),
		GetPanickerExample(),
		GetPingExample(),
		GetRelayExample(),
		GetSleeperExample(),
		GetSpawnerExample(),
		GetStaticOverheadExample(),
		GetWaiterExample(),
	}
	return res
}
