// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package message implements the message context of an execution. It is the
// only place where a program's outgoing messages are recorded. Nothing sent
// through a context becomes visible before the processor commits the
// context's outcome, which keeps every effect of an execution revocable.
package message

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/Fantom-foundation/Sable/go/sable"
)

const (
	ErrLimitExceeded      = sable.ConstError("outgoing messages limit exceeded")
	ErrDuplicateReply     = sable.ConstError("duplicate reply message")
	ErrDuplicateWaking    = sable.ConstError("duplicate waking message")
	ErrLateAccess         = sable.ConstError("access to committed message handle")
	ErrOutOfBounds        = sable.ConstError("unknown message handle")
	ErrDuplicateInit      = sable.ConstError("duplicate program initialization")
	ErrNotEnoughValue     = sable.ConstError("not enough value to send")
	ErrInsufficientValue  = sable.ConstError("message value below existential deposit")
	ErrReplyForbidden     = sable.ConstError("replies are not allowed for this dispatch")
	ErrInvalidDestination = sable.ConstError("invalid message destination")
)

// DefaultOutgoingLimit is the maximum number of outgoing messages a single
// dispatch may produce, including those sent before any waits.
const DefaultOutgoingLimit = 1024

// Settings configure the limits enforced by a context.
type Settings struct {
	// OutgoingLimit is the maximum number of outgoing messages.
	OutgoingLimit uint32
	// MaxPayloadSize is the maximum payload size of a single message.
	MaxPayloadSize uint32
	// MaxTotalPayload is the maximum cumulative payload size of all messages
	// sent while processing a dispatch.
	MaxTotalPayload uint64
	// ValueAvailable is the balance the program may transfer.
	ValueAvailable sable.Value
	// ExistentialDeposit is the minimum non-zero value of a message.
	ExistentialDeposit sable.Value
}

// DefaultSettings returns the settings used if nothing else is configured.
func DefaultSettings() Settings {
	return Settings{
		OutgoingLimit:   DefaultOutgoingLimit,
		MaxPayloadSize:  1 << 20,
		MaxTotalPayload: 1 << 24,
	}
}

// Context records the messages emitted by one execution.
type Context struct {
	kind     sable.DispatchKind
	current  sable.Message
	program  sable.ActorId
	settings Settings
	store    sable.ContextStore

	valueSent sable.Value
	outcome   sable.ContextOutcome
}

// NewContext creates a context for processing the given dispatch by the given
// program. If the dispatch resumes a waiting execution, the context continues
// with the state captured in the dispatch's context store.
func NewContext(dispatch sable.IncomingDispatch, program sable.ActorId, settings Settings) *Context {
	res := &Context{
		kind:     dispatch.Kind,
		current:  dispatch.Message,
		program:  program,
		settings: settings,
	}
	if dispatch.Context != nil {
		res.store = *dispatch.Context.Clone()
	}
	return res
}

// CurrentMessageId returns the id of the message being processed.
func (c *Context) CurrentMessageId() sable.MessageId {
	return c.current.Id
}

// Current returns the message being processed.
func (c *Context) Current() *sable.Message {
	return &c.current
}

// Kind returns the kind of dispatch being processed.
func (c *Context) Kind() sable.DispatchKind {
	return c.kind
}

// ValueAvailable returns the value the program may still send.
func (c *Context) ValueAvailable() sable.Value {
	res, _ := sable.Sub(c.settings.ValueAvailable, c.valueSent)
	return res
}

// Send sends a complete message. The id of the new message is derived from
// the id of the current message and a nonce that is never reused for this
// dispatch, even across waits.
func (c *Context) Send(packet sable.Packet) (sable.MessageId, error) {
	if err := c.checkPacket(packet.Destination, len(packet.Payload), packet.Value); err != nil {
		return sable.MessageId{}, err
	}
	handle, err := c.SendInit()
	if err != nil {
		return sable.MessageId{}, err
	}
	return c.SendCommit(handle, packet)
}

// SendInit starts a message to be completed by SendPush and SendCommit.
func (c *Context) SendInit() (uint32, error) {
	if uint64(len(c.store.Outgoing)) >= uint64(c.settings.OutgoingLimit) {
		return 0, ErrLimitExceeded
	}
	handle := c.store.Nonce
	c.store.Nonce++
	c.store.Outgoing = append(c.store.Outgoing, sable.OutgoingEntry{Handle: handle})
	return handle, nil
}

// SendPush appends data to the payload of an unfinished message.
func (c *Context) SendPush(handle uint32, data []byte) error {
	entry, err := c.pending(handle)
	if err != nil {
		return err
	}
	if size := len(entry.Payload) + len(data); size > int(c.settings.MaxPayloadSize) {
		return fmt.Errorf("%w: payload of %d bytes exceeds limit of %d", ErrLimitExceeded, size, c.settings.MaxPayloadSize)
	}
	entry.Payload = append(entry.Payload, data...)
	return nil
}

// SendCommit finishes a message started by SendInit. The pushed data is
// prepended to the packet's payload.
func (c *Context) SendCommit(handle uint32, packet sable.Packet) (sable.MessageId, error) {
	entry, err := c.pending(handle)
	if err != nil {
		return sable.MessageId{}, err
	}
	size := len(entry.Payload) + len(packet.Payload)
	if err := c.checkPacket(packet.Destination, size, packet.Value); err != nil {
		return sable.MessageId{}, err
	}
	payload := make([]byte, 0, size)
	payload = append(append(payload, entry.Payload...), packet.Payload...)

	id := sable.GenerateOutgoing(c.current.Id, handle)
	c.emit(sable.Handle, sable.Message{
		Id:          id,
		Source:      c.program,
		Destination: packet.Destination,
		Payload:     payload,
		Value:       packet.Value,
		GasLimit:    copyGas(packet.GasLimit),
	})
	entry.Payload = nil
	entry.Committed = true
	return id, nil
}

// Reply sends the reply to the current message. Data pushed by ReplyPush is
// prepended to the packet's payload. Only one reply may be sent per
// dispatch.
func (c *Context) Reply(packet sable.ReplyPacket) (sable.MessageId, error) {
	if err := c.checkReply(); err != nil {
		return sable.MessageId{}, err
	}
	size := len(c.store.ReplyPayload) + len(packet.Payload)
	if err := c.checkPacket(c.current.Source, size, packet.Value); err != nil {
		return sable.MessageId{}, err
	}
	payload := make([]byte, 0, size)
	payload = append(append(payload, c.store.ReplyPayload...), packet.Payload...)

	id := sable.GenerateReply(c.current.Id, packet.ExitCode)
	c.emit(sable.Reply, sable.Message{
		Id:          id,
		Source:      c.program,
		Destination: c.current.Source,
		Payload:     payload,
		Value:       packet.Value,
		GasLimit:    copyGas(packet.GasLimit),
		Reply:       &sable.ReplyDetails{ReplyTo: c.current.Id, ExitCode: packet.ExitCode},
	})
	c.store.ReplySent = true
	c.store.ReplyPayload = nil
	return id, nil
}

// ReplyPush appends data to the payload of the reply.
func (c *Context) ReplyPush(data []byte) error {
	if err := c.checkReply(); err != nil {
		return err
	}
	if size := len(c.store.ReplyPayload) + len(data); size > int(c.settings.MaxPayloadSize) {
		return fmt.Errorf("%w: payload of %d bytes exceeds limit of %d", ErrLimitExceeded, size, c.settings.MaxPayloadSize)
	}
	c.store.ReplyPayload = append(c.store.ReplyPayload, data...)
	return nil
}

// InitProgram requests the creation of a program from the given code. The
// init message of the new program counts as an outgoing message.
func (c *Context) InitProgram(packet sable.InitPacket) (sable.ActorId, sable.MessageId, error) {
	program := sable.GenerateProgramId(packet.CodeId, packet.Salt)
	if slices.Contains(c.store.Initialized, program) {
		return sable.ActorId{}, sable.MessageId{}, ErrDuplicateInit
	}
	if err := c.checkPacket(program, len(packet.Payload), packet.Value); err != nil {
		return sable.ActorId{}, sable.MessageId{}, err
	}
	handle, err := c.SendInit()
	if err != nil {
		return sable.ActorId{}, sable.MessageId{}, err
	}
	entry, _ := c.pending(handle)
	entry.Committed = true

	id := sable.GenerateOutgoing(c.current.Id, handle)
	c.emit(sable.Init, sable.Message{
		Id:          id,
		Source:      c.program,
		Destination: program,
		Payload:     bytes.Clone(packet.Payload),
		Value:       packet.Value,
		GasLimit:    copyGas(packet.GasLimit),
	})
	c.store.Initialized = append(c.store.Initialized, program)
	c.outcome.NewPrograms = append(c.outcome.NewPrograms, sable.ProgramCandidate{
		CodeId:      packet.CodeId,
		Program:     program,
		InitMessage: id,
	})
	return program, id, nil
}

// Wake requests the given waiting message to be woken.
func (c *Context) Wake(id sable.MessageId) error {
	if slices.Contains(c.store.Awaken, id) {
		return ErrDuplicateWaking
	}
	c.store.Awaken = append(c.store.Awaken, id)
	c.outcome.Awakening = append(c.outcome.Awakening, id)
	return nil
}

// ToOutcome drains the context. It returns the messages generated by the
// execution in emission order and the store to be used when resuming the
// execution after a wait. The context must not be used afterwards.
func (c *Context) ToOutcome() (sable.ContextOutcome, *sable.ContextStore) {
	outcome, store := c.outcome, c.store
	c.outcome = sable.ContextOutcome{}
	c.store = sable.ContextStore{}
	return outcome, &store
}

func (c *Context) pending(handle uint32) (*sable.OutgoingEntry, error) {
	pos, found := slices.BinarySearchFunc(c.store.Outgoing, handle, func(e sable.OutgoingEntry, h uint32) int {
		switch {
		case e.Handle < h:
			return -1
		case e.Handle > h:
			return 1
		}
		return 0
	})
	if !found {
		return nil, ErrOutOfBounds
	}
	entry := &c.store.Outgoing[pos]
	if entry.Committed {
		return nil, ErrLateAccess
	}
	return entry, nil
}

func (c *Context) checkReply() error {
	if c.kind == sable.Reply || c.kind == sable.Signal {
		return ErrReplyForbidden
	}
	if c.store.ReplySent {
		return ErrDuplicateReply
	}
	return nil
}

// checkPacket validates a message before any state is modified.
func (c *Context) checkPacket(destination sable.ActorId, size int, value sable.Value) error {
	if destination.IsZero() {
		return ErrInvalidDestination
	}
	if size > int(c.settings.MaxPayloadSize) {
		return fmt.Errorf("%w: payload of %d bytes exceeds limit of %d", ErrLimitExceeded, size, c.settings.MaxPayloadSize)
	}
	if total := c.store.SentBytes + uint64(size); total > c.settings.MaxTotalPayload {
		return fmt.Errorf("%w: %d bytes sent in total exceed limit of %d", ErrLimitExceeded, total, c.settings.MaxTotalPayload)
	}
	if value.IsZero() {
		return nil
	}
	if value.Cmp(c.settings.ExistentialDeposit) < 0 {
		return fmt.Errorf("%w: value %v, existential deposit %v", ErrInsufficientValue, value, c.settings.ExistentialDeposit)
	}
	sent, overflow := sable.Add(c.valueSent, value)
	if overflow || sent.Cmp(c.settings.ValueAvailable) > 0 {
		return fmt.Errorf("%w: value %v, available %v", ErrNotEnoughValue, value, c.ValueAvailable())
	}
	return nil
}

func (c *Context) emit(kind sable.DispatchKind, message sable.Message) {
	c.store.SentBytes += uint64(len(message.Payload))
	c.valueSent, _ = sable.Add(c.valueSent, message.Value)
	c.outcome.Generated = append(c.outcome.Generated, sable.Dispatch{Kind: kind, Message: message})
}

func copyGas(gas *sable.Gas) *sable.Gas {
	if gas == nil {
		return nil
	}
	res := *gas
	return &res
}
