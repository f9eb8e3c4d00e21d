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
	"encoding/binary"

	"github.com/Fantom-foundation/Sable/go/wasm"
)

// GetPingExample provides a program replying "pong" to every message.
func GetPingExample() Example {
	p := newProgram("reply")
	var code wasm.Code
	storeBytes(&code, constPtr, []byte("pong"))
	p.reply(&code, constPtr, 4)
	p.entry("handle", 0, &code)
	return exampleSpec{
		Name:      "ping",
		Code:      p.build(),
		reference: pong,
	}.build()
}

func pong(int) int {
	return int(int32(binary.LittleEndian.Uint32([]byte("pong"))))
}

// GetWaiterExample provides a program waiting on every message.
func GetWaiterExample() Example {
	p := newProgram("wait")
	var code wasm.Code
	code.Call(p.host("wait"))
	p.entry("handle", 0, &code)
	return exampleSpec{
		Name: "waiter",
		Code: p.build(),
	}.build()
}

// GetRelayExample provides a program that sends "ping" to the source of the
// first message it handles and waits. Once woken, it sends "again" and
// replies "done". Replies are acknowledged by sending "ack" to their source
// and wake the waiting message.
func GetRelayExample() Example {
	p := newProgram("source", "send", "wait", "reply", "msg_id", "wake")
	send := func(code *wasm.Code, text string) {
		code.I32Const(scratch).Call(p.host("source"))
		storeBytes(code, constPtr, []byte(text))
		code.I32Const(scratch).I32Const(constPtr).I32Const(int32(len(text))).I32Const(-1).I32Const(outPtr).
			Call(p.host("send")).Op(wasm.Drop)
	}

	var handle wasm.Code
	handle.I32Const(stateAt).Memory(wasm.I32Load, 0).Op(wasm.I32Eqz).If(wasm.BlockEmpty)
	handle.I32Const(stateAt).I32Const(1).Memory(wasm.I32Store, 0)
	handle.I32Const(waitingAt).Call(p.host("msg_id"))
	send(&handle, "ping")
	handle.Call(p.host("wait"))
	handle.Else()
	send(&handle, "again")
	storeBytes(&handle, constPtr, []byte("done"))
	p.reply(&handle, constPtr, 4)
	handle.End()
	p.entry("handle", 0, &handle)

	var reply wasm.Code
	reply.I32Const(waitingAt).Call(p.host("wake")).Op(wasm.Drop)
	send(&reply, "ack")
	p.entry("handle_reply", 0, &reply)

	return exampleSpec{
		Name: "relay",
		Code: p.build(),
	}.build()
}

// GetSleeperExample provides a program that waits for the first message it
// handles and replies "awake" once this message gets woken. Messages with a
// 32 byte payload wake the message with the given id.
func GetSleeperExample() Example {
	p := newProgram("size", "read", "wake", "wait", "reply")
	var code wasm.Code
	code.Call(p.host("size")).I32Const(32).Op(wasm.I32Eq).If(wasm.BlockEmpty)
	code.I32Const(0).I32Const(32).I32Const(scratch).Call(p.host("read")).Op(wasm.Drop)
	code.I32Const(scratch).Call(p.host("wake")).Op(wasm.Drop)
	code.Else()
	code.I32Const(stateAt).Memory(wasm.I32Load, 0).Op(wasm.I32Eqz).If(wasm.BlockEmpty)
	code.I32Const(stateAt).I32Const(1).Memory(wasm.I32Store, 0)
	code.Call(p.host("wait"))
	code.End()
	code.I32Const(stateAt).I32Const(0).Memory(wasm.I32Store, 0)
	storeBytes(&code, constPtr, []byte("awake"))
	p.reply(&code, constPtr, 5)
	code.End()
	p.entry("handle", 0, &code)
	return exampleSpec{
		Name: "sleeper",
		Code: p.build(),
	}.build()
}

// GetSpawnerExample provides a program creating a program from the code id
// given as payload. The id of the current message is used as salt.
func GetSpawnerExample() Example {
	p := newProgram("read", "msg_id", "create_program")
	var code wasm.Code
	code.I32Const(0).I32Const(32).I32Const(scratch).Call(p.host("read")).Op(wasm.Drop)
	code.I32Const(constPtr).Call(p.host("msg_id"))
	code.I32Const(scratch).I32Const(constPtr).I32Const(32).
		I32Const(0).I32Const(0).I32Const(-1).I32Const(outPtr).
		Call(p.host("create_program")).Op(wasm.Drop)
	p.entry("handle", 0, &code)
	return exampleSpec{
		Name: "spawner",
		Code: p.build(),
	}.build()
}

// GetExiterExample provides a program terminating itself in favor of the
// source of the message it handles.
func GetExiterExample() Example {
	p := newProgram("source", "exit")
	var code wasm.Code
	code.I32Const(scratch).Call(p.host("source"))
	code.I32Const(scratch).Call(p.host("exit"))
	p.entry("handle", 0, &code)
	return exampleSpec{
		Name: "exiter",
		Code: p.build(),
	}.build()
}

// GetPanickerExample provides a program panicking with message "boom".
func GetPanickerExample() Example {
	p := newProgram("panic")
	var code wasm.Code
	storeBytes(&code, constPtr, []byte("boom"))
	code.I32Const(constPtr).I32Const(4).Call(p.host("panic"))
	p.entry("handle", 0, &code)
	return exampleSpec{
		Name: "panicker",
		Code: p.build(),
	}.build()
}
