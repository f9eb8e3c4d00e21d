// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package hostabi defines the functions actor programs import from the
// execution environment. Each function charges its cost through the run
// context before performing any effect. Interpreters bind the functions
// listed here and must not define host functions of their own.
package hostabi

import (
	"encoding/binary"
	"math"
	"slices"
	"strings"

	"github.com/Fantom-foundation/Sable/go/sable"
	"github.com/Fantom-foundation/Sable/go/wasm"
)

const (
	// Module is the name of the module all host functions are imported from.
	Module = "env"
	// MemoryName is the name under which programs import their memory.
	MemoryName = "memory"
)

// NoValue can be passed instead of a pointer to a value to transfer no value.
const NoValue = math.MaxUint32

// Env is the environment a host function operates on.
type Env struct {
	Context sable.RunContext
	Memory  sable.Memory
}

// Function is a host function importable by programs.
type Function struct {
	Name    string
	Params  []wasm.ValType
	Results []wasm.ValType
	call    func(env *Env, stack []uint64) error
}

// Type returns the signature of the function.
func (f *Function) Type() wasm.FuncType {
	return wasm.FuncType{Params: f.Params, Results: f.Results}
}

// Call invokes the function. Parameters are taken from the given stack and
// results are written to it starting at index 0. The stack has to hold at
// least max(len(Params), len(Results)) elements. Errors are either halts,
// out-of-bounds memory accesses, or fatal errors.
func (f *Function) Call(env *Env, stack []uint64) error {
	return f.call(env, stack)
}

// Lookup returns the host function with the given name.
func Lookup(name string) (*Function, bool) {
	f, found := functions[name]
	return f, found
}

// Functions returns all host functions ordered by name.
func Functions() []*Function {
	res := make([]*Function, 0, len(functions))
	for _, f := range functions {
		res = append(res, f)
	}
	slices.SortFunc(res, func(a, b *Function) int {
		return strings.Compare(a.Name, b.Name)
	})
	return res
}

var functions = map[string]*Function{}

const (
	i32 = wasm.I32
	i64 = wasm.I64
)

func register(name string, params, results []wasm.ValType, call func(*Env, []uint64) error) {
	if _, found := functions[name]; found {
		panic("duplicate host function " + name)
	}
	functions[name] = &Function{Name: name, Params: params, Results: results, call: call}
}

func types(t ...wasm.ValType) []wasm.ValType {
	return t
}

// --- memory helpers ---

// read copies a range of the memory. The range is checked before a buffer
// is allocated, so the size of a copy is bounded by the size of the memory.
func (e *Env) read(ptr, length uint32) ([]byte, error) {
	if uint64(ptr)+uint64(length) > e.Memory.Size().Bytes() {
		return nil, sable.ErrOutOfBounds
	}
	buf := make([]byte, length)
	if err := e.Memory.Read(ptr, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (e *Env) readHash(ptr uint32) ([32]byte, error) {
	var res [32]byte
	err := e.Memory.Read(ptr, res[:])
	return res, err
}

func (e *Env) readValue(ptr uint32) (sable.Value, error) {
	if ptr == NoValue {
		return sable.Value{}, nil
	}
	return e.readHash(ptr)
}

func (e *Env) charge(bytes int) error {
	return e.Context.ChargeHostCall(bytes)
}

func arg32(stack []uint64, i int) uint32 {
	return uint32(stack[i])
}

func gasArg(stack []uint64, i int) *sable.Gas {
	limit := sable.Gas(stack[i])
	return &limit
}

func init() {
	register("gas", types(i64), nil, func(e *Env, s []uint64) error {
		return e.Context.ChargeGas(sable.Gas(s[0]))
	})

	// --- sending ---

	send := func(e *Env, s []uint64, limit *sable.Gas, out uint32) error {
		dest, payloadPtr, length, valuePtr := arg32(s, 0), arg32(s, 1), arg32(s, 2), arg32(s, 3)
		if err := e.charge(int(length) + 64); err != nil {
			return err
		}
		destination, err := e.readHash(dest)
		if err != nil {
			return err
		}
		payload, err := e.read(payloadPtr, length)
		if err != nil {
			return err
		}
		value, err := e.readValue(valuePtr)
		if err != nil {
			return err
		}
		id, err := e.Context.Send(sable.Packet{
			Destination: destination,
			Payload:     payload,
			Value:       value,
			GasLimit:    limit,
		})
		return e.finish(s, err, out, id[:])
	}
	register("send", types(i32, i32, i32, i32, i32), types(i32), func(e *Env, s []uint64) error {
		return send(e, s, nil, arg32(s, 4))
	})
	register("send_wgas", types(i32, i32, i32, i32, i64, i32), types(i32), func(e *Env, s []uint64) error {
		return send(e, s, gasArg(s, 4), arg32(s, 5))
	})
	register("send_init", types(i32), types(i32), func(e *Env, s []uint64) error {
		if err := e.charge(4); err != nil {
			return err
		}
		handle, err := e.Context.SendInit()
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], handle)
		return e.finish(s, err, arg32(s, 0), buf[:])
	})
	register("send_push", types(i32, i32, i32), types(i32), func(e *Env, s []uint64) error {
		handle, ptr, length := arg32(s, 0), arg32(s, 1), arg32(s, 2)
		if err := e.charge(int(length)); err != nil {
			return err
		}
		data, err := e.read(ptr, length)
		if err != nil {
			return err
		}
		return e.finish(s, e.Context.SendPush(handle, data), 0, nil)
	})
	sendCommit := func(e *Env, s []uint64, limit *sable.Gas, out uint32) error {
		handle, dest, valuePtr := arg32(s, 0), arg32(s, 1), arg32(s, 2)
		if err := e.charge(64); err != nil {
			return err
		}
		destination, err := e.readHash(dest)
		if err != nil {
			return err
		}
		value, err := e.readValue(valuePtr)
		if err != nil {
			return err
		}
		id, err := e.Context.SendCommit(handle, sable.Packet{
			Destination: destination,
			Value:       value,
			GasLimit:    limit,
		})
		return e.finish(s, err, out, id[:])
	}
	register("send_commit", types(i32, i32, i32, i32), types(i32), func(e *Env, s []uint64) error {
		return sendCommit(e, s, nil, arg32(s, 3))
	})
	register("send_commit_wgas", types(i32, i32, i32, i64, i32), types(i32), func(e *Env, s []uint64) error {
		return sendCommit(e, s, gasArg(s, 3), arg32(s, 4))
	})

	// --- replying ---

	reply := func(e *Env, s []uint64, limit *sable.Gas, out uint32) error {
		payloadPtr, length, valuePtr := arg32(s, 0), arg32(s, 1), arg32(s, 2)
		if err := e.charge(int(length) + 32); err != nil {
			return err
		}
		payload, err := e.read(payloadPtr, length)
		if err != nil {
			return err
		}
		value, err := e.readValue(valuePtr)
		if err != nil {
			return err
		}
		id, err := e.Context.Reply(sable.ReplyPacket{
			Payload:  payload,
			Value:    value,
			GasLimit: limit,
		})
		return e.finish(s, err, out, id[:])
	}
	register("reply", types(i32, i32, i32, i32), types(i32), func(e *Env, s []uint64) error {
		return reply(e, s, nil, arg32(s, 3))
	})
	register("reply_wgas", types(i32, i32, i32, i64, i32), types(i32), func(e *Env, s []uint64) error {
		return reply(e, s, gasArg(s, 3), arg32(s, 4))
	})
	register("reply_push", types(i32, i32), types(i32), func(e *Env, s []uint64) error {
		ptr, length := arg32(s, 0), arg32(s, 1)
		if err := e.charge(int(length)); err != nil {
			return err
		}
		data, err := e.read(ptr, length)
		if err != nil {
			return err
		}
		return e.finish(s, e.Context.ReplyPush(data), 0, nil)
	})
	register("reply_commit", types(i32, i32), types(i32), func(e *Env, s []uint64) error {
		valuePtr, out := arg32(s, 0), arg32(s, 1)
		if err := e.charge(32); err != nil {
			return err
		}
		value, err := e.readValue(valuePtr)
		if err != nil {
			return err
		}
		id, err := e.Context.ReplyCommit(sable.ReplyPacket{Value: value})
		return e.finish(s, err, out, id[:])
	})
	register("reply_to", types(i32), types(i32), func(e *Env, s []uint64) error {
		if err := e.charge(32); err != nil {
			return err
		}
		details := e.Context.ReplyDetails()
		if details == nil {
			return e.finish(s, ErrNoReplyContext, 0, nil)
		}
		return e.finish(s, nil, arg32(s, 0), details.ReplyTo[:])
	})
	register("exit_code", types(i32), types(i32), func(e *Env, s []uint64) error {
		if err := e.charge(4); err != nil {
			return err
		}
		details := e.Context.ReplyDetails()
		if details == nil {
			return e.finish(s, ErrNoReplyContext, 0, nil)
		}
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(details.ExitCode))
		return e.finish(s, nil, arg32(s, 0), buf[:])
	})

	// --- message and environment information ---

	register("read", types(i32, i32, i32), types(i32), func(e *Env, s []uint64) error {
		at, length, ptr := arg32(s, 0), arg32(s, 1), arg32(s, 2)
		if err := e.charge(int(length)); err != nil {
			return err
		}
		payload := e.Context.Payload()
		if uint64(at)+uint64(length) > uint64(len(payload)) {
			return e.finish(s, ErrPayloadOutOfRange, 0, nil)
		}
		return e.finish(s, nil, ptr, payload[at:at+length])
	})
	register("size", nil, types(i32), func(e *Env, s []uint64) error {
		if err := e.charge(0); err != nil {
			return err
		}
		s[0] = uint64(len(e.Context.Payload()))
		return nil
	})
	hash := func(name string, get func(sable.RunContext) [32]byte) {
		register(name, types(i32), nil, func(e *Env, s []uint64) error {
			if err := e.charge(32); err != nil {
				return err
			}
			data := get(e.Context)
			return e.Memory.Write(arg32(s, 0), data[:])
		})
	}
	hash("msg_id", func(c sable.RunContext) [32]byte { return c.MessageId() })
	hash("source", func(c sable.RunContext) [32]byte { return c.Source() })
	hash("program_id", func(c sable.RunContext) [32]byte { return c.ProgramId() })
	hash("value", func(c sable.RunContext) [32]byte { return c.Value() })
	hash("value_available", func(c sable.RunContext) [32]byte { return c.ValueAvailable() })

	number := func(name string, get func(sable.RunContext) uint64) {
		register(name, nil, types(i64), func(e *Env, s []uint64) error {
			if err := e.charge(0); err != nil {
				return err
			}
			s[0] = get(e.Context)
			return nil
		})
	}
	number("gas_available", func(c sable.RunContext) uint64 { return uint64(c.GasAvailable()) })
	number("block_height", func(c sable.RunContext) uint64 { return c.Block().Height })
	number("block_timestamp", func(c sable.RunContext) uint64 { return c.Block().Timestamp })

	register("random", types(i32, i32, i32), nil, func(e *Env, s []uint64) error {
		subjectPtr, length, out := arg32(s, 0), arg32(s, 1), arg32(s, 2)
		if err := e.charge(int(length) + 40); err != nil {
			return err
		}
		subject, err := e.read(subjectPtr, length)
		if err != nil {
			return err
		}
		random, height := e.Context.Random(subject)
		var buf [40]byte
		copy(buf[:], random[:])
		binary.LittleEndian.PutUint64(buf[32:], height)
		return e.Memory.Write(out, buf[:])
	})
	register("debug", types(i32, i32), nil, func(e *Env, s []uint64) error {
		ptr, length := arg32(s, 0), arg32(s, 1)
		if err := e.charge(int(length)); err != nil {
			return err
		}
		data, err := e.read(ptr, length)
		if err != nil {
			return err
		}
		e.Context.Debug(string(data))
		return nil
	})

	// --- memory management ---

	register("alloc", types(i32), types(i32), func(e *Env, s []uint64) error {
		if err := e.charge(0); err != nil {
			return err
		}
		previous, err := e.Memory.Grow(sable.WasmPageNumber(arg32(s, 0)))
		if err != nil {
			if _, ok := ErrorCodeOf(err); !ok {
				return err
			}
			s[0] = math.MaxUint32
			return nil
		}
		s[0] = uint64(previous)
		return nil
	})
	register("free", types(i32), types(i32), func(e *Env, s []uint64) error {
		if err := e.charge(0); err != nil {
			return err
		}
		return e.finish(s, e.Memory.Free(sable.WasmPageNumber(arg32(s, 0))), 0, nil)
	})

	// --- control flow ---

	register("wait", nil, nil, func(e *Env, s []uint64) error {
		if err := e.charge(0); err != nil {
			return err
		}
		return e.Context.Wait(sable.WaitDefault, 0)
	})
	register("wait_for", types(i32), nil, func(e *Env, s []uint64) error {
		if err := e.charge(0); err != nil {
			return err
		}
		return e.Context.Wait(sable.WaitFor, arg32(s, 0))
	})
	register("wait_up_to", types(i32), nil, func(e *Env, s []uint64) error {
		if err := e.charge(0); err != nil {
			return err
		}
		return e.Context.Wait(sable.WaitUpTo, arg32(s, 0))
	})
	register("wake", types(i32), types(i32), func(e *Env, s []uint64) error {
		if err := e.charge(32); err != nil {
			return err
		}
		id, err := e.readHash(arg32(s, 0))
		if err != nil {
			return err
		}
		return e.finish(s, e.Context.Wake(id), 0, nil)
	})
	register("exit", types(i32), nil, func(e *Env, s []uint64) error {
		if err := e.charge(32); err != nil {
			return err
		}
		inheritor, err := e.readHash(arg32(s, 0))
		if err != nil {
			return err
		}
		return e.Context.Exit(inheritor)
	})
	register("leave", nil, nil, func(e *Env, s []uint64) error {
		if err := e.charge(0); err != nil {
			return err
		}
		return e.Context.Leave()
	})
	register("panic", types(i32, i32), nil, func(e *Env, s []uint64) error {
		ptr, length := arg32(s, 0), arg32(s, 1)
		if err := e.charge(int(length)); err != nil {
			return err
		}
		data, err := e.read(ptr, length)
		if err != nil {
			return err
		}
		return e.Context.Panic(string(data))
	})

	// --- program creation ---

	create := func(e *Env, s []uint64, limit *sable.Gas, out uint32) error {
		codePtr, saltPtr, saltLen := arg32(s, 0), arg32(s, 1), arg32(s, 2)
		payloadPtr, payloadLen, valuePtr := arg32(s, 3), arg32(s, 4), arg32(s, 5)
		if err := e.charge(int(saltLen) + int(payloadLen) + 128); err != nil {
			return err
		}
		code, err := e.readHash(codePtr)
		if err != nil {
			return err
		}
		salt, err := e.read(saltPtr, saltLen)
		if err != nil {
			return err
		}
		payload, err := e.read(payloadPtr, payloadLen)
		if err != nil {
			return err
		}
		value, err := e.readValue(valuePtr)
		if err != nil {
			return err
		}
		program, id, err := e.Context.CreateProgram(sable.InitPacket{
			CodeId:   code,
			Salt:     salt,
			Payload:  payload,
			Value:    value,
			GasLimit: limit,
		})
		return e.finish(s, err, out, append(program[:], id[:]...))
	}
	register("create_program", types(i32, i32, i32, i32, i32, i32, i32), types(i32), func(e *Env, s []uint64) error {
		return create(e, s, nil, arg32(s, 6))
	})
	register("create_program_wgas", types(i32, i32, i32, i32, i32, i32, i64, i32), types(i32), func(e *Env, s []uint64) error {
		return create(e, s, gasArg(s, 6), arg32(s, 7))
	})
}

// finish completes a host call returning an error code. On success, the
// given data is written to out. User errors are converted to codes, other
// errors abort the call.
func (e *Env) finish(s []uint64, err error, out uint32, data []byte) error {
	code, err := status(err)
	if err != nil {
		return err
	}
	if code == uint64(CodeOk) && len(data) > 0 {
		if err := e.Memory.Write(out, data); err != nil {
			return err
		}
	}
	s[0] = code
	return nil
}
