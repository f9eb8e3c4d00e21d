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

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"
)

// Gas represents the type used to represent gas values.
type Gas uint64

// Payload is the data carried by a message.
type Payload []byte

// ReplyDetails marks a message as a reply to another message.
type ReplyDetails struct {
	ReplyTo  MessageId
	ExitCode int32
}

// Message is an immutable message exchanged between actors. Payload slices
// must not be modified once a message has been constructed.
type Message struct {
	Id          MessageId
	Source      ActorId
	Destination ActorId
	Payload     Payload
	Value       Value
	GasLimit    *Gas          // < nil if the sender did not specify a limit
	Reply       *ReplyDetails // < nil if this is not a reply
}

// IsReply reports whether this message is a reply to another message.
func (m *Message) IsReply() bool {
	return m.Reply != nil
}

// Clone creates a deep copy of the message.
func (m Message) Clone() Message {
	res := m
	res.Payload = bytes.Clone(m.Payload)
	if m.GasLimit != nil {
		gas := *m.GasLimit
		res.GasLimit = &gas
	}
	if m.Reply != nil {
		details := *m.Reply
		res.Reply = &details
	}
	return res
}

// EncodeRLP writes a canonical encoding of the message. Optional fields are
// prefixed by a presence flag to keep the encoding unambiguous.
func (m Message) EncodeRLP(w io.Writer) error {
	var gas Gas
	if m.GasLimit != nil {
		gas = *m.GasLimit
	}
	var reply ReplyDetails
	if m.Reply != nil {
		reply = *m.Reply
	}
	return rlp.Encode(w, []any{
		m.Id, m.Source, m.Destination, []byte(m.Payload), m.Value,
		m.GasLimit != nil, uint64(gas),
		m.Reply != nil, reply.ReplyTo, uint32(reply.ExitCode),
	})
}

// DispatchKind is an enum of the entry points a message may be delivered to.
type DispatchKind byte

const (
	Init DispatchKind = iota
	Handle
	Reply
	Signal
	numDispatchKinds int = iota
)

// EntryPoint returns the name of the exported function of a program handling
// dispatches of this kind.
func (k DispatchKind) EntryPoint() string {
	switch k {
	case Init:
		return "init"
	case Handle:
		return "handle"
	case Reply:
		return "handle_reply"
	case Signal:
		return "handle_signal"
	default:
		return ""
	}
}

func (k DispatchKind) String() string {
	switch k {
	case Init:
		return "init"
	case Handle:
		return "handle"
	case Reply:
		return "reply"
	case Signal:
		return "signal"
	default:
		return fmt.Sprintf("DispatchKind(%d)", byte(k))
	}
}

func (k DispatchKind) MarshalJSON() ([]byte, error) {
	if int(k) >= numDispatchKinds {
		return nil, fmt.Errorf("invalid dispatch kind: %v", k)
	}
	return json.Marshal(k.String())
}

func (k *DispatchKind) UnmarshalJSON(data []byte) error {
	var kind string
	if err := json.Unmarshal(data, &kind); err != nil {
		return err
	}
	for i := 0; i < numDispatchKinds; i++ {
		if DispatchKind(i).String() == strings.ToLower(kind) {
			*k = DispatchKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown dispatch kind: %s", kind)
}

// Dispatch is a message paired with the kind of entry point it should invoke.
type Dispatch struct {
	Kind    DispatchKind
	Message Message
}

// StoredDispatch is the durable form of a dispatch. Dispatches suspended by
// a wait carry the context store required to resume their execution.
type StoredDispatch struct {
	Dispatch
	Context *ContextStore `rlp:"nil"`
}

// IncomingDispatch is the form of a dispatch handed to one execution.
type IncomingDispatch struct {
	Dispatch
	GasLimit Gas
	Context  *ContextStore // < nil unless resuming a waiting execution
}

// ToStored converts the incoming dispatch into its durable form using the
// given context store.
func (d IncomingDispatch) ToStored(store *ContextStore) StoredDispatch {
	return StoredDispatch{Dispatch: d.Dispatch, Context: store}
}

// Packet summarizes the parameters of a message sent by a program.
type Packet struct {
	Destination ActorId
	Payload     Payload
	Value       Value
	GasLimit    *Gas
}

// ReplyPacket summarizes the parameters of a reply sent by a program.
type ReplyPacket struct {
	Payload  Payload
	Value    Value
	ExitCode int32
	GasLimit *Gas
}

// InitPacket summarizes the parameters of a program creation request.
type InitPacket struct {
	CodeId   CodeId
	Salt     []byte
	Payload  Payload
	Value    Value
	GasLimit *Gas
}

// ProgramCandidate is a program requested to be created by an execution.
type ProgramCandidate struct {
	CodeId      CodeId
	Program     ActorId
	InitMessage MessageId
}

// ActorState is the snapshot of an actor's state handed to an execution.
type ActorState struct {
	Id          ActorId
	CodeId      CodeId
	Code        []byte
	MemoryPages WasmPageNumber   // < declared size of the actor's memory
	Allocations []WasmPageNumber // < dynamically allocated pages
	Balance     Value
	Initialized bool
	Terminated  bool
}

// BlockInfo describes the block a dispatch is processed in.
type BlockInfo struct {
	Height     uint64
	Timestamp  uint64
	RandomSeed [32]byte
}
