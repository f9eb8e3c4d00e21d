// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package heron

import (
	"github.com/Fantom-foundation/Sable/go/gas"
	"github.com/Fantom-foundation/Sable/go/message"
	"github.com/Fantom-foundation/Sable/go/sable"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

// runContext is the host surface of a single execution. It binds the
// message context, the gas meter, and the block the dispatch is processed
// in.
type runContext struct {
	block   sable.BlockInfo
	program sable.ActorId
	meter   *gas.Meter
	costs   gas.Costs
	context *message.Context
	logger  *zap.Logger
}

func (c *runContext) ChargeGas(amount sable.Gas) error {
	return gas.ToHalt(c.meter.Charge(amount))
}

func (c *runContext) ChargeHostCall(bytes int) error {
	return c.ChargeGas(c.costs.HostCallCost(bytes))
}

func (c *runContext) GasAvailable() sable.Gas {
	return c.meter.Left()
}

func (c *runContext) MessageId() sable.MessageId {
	return c.context.CurrentMessageId()
}

func (c *runContext) Source() sable.ActorId {
	return c.context.Current().Source
}

func (c *runContext) ProgramId() sable.ActorId {
	return c.program
}

func (c *runContext) Payload() sable.Payload {
	return c.context.Current().Payload
}

func (c *runContext) Value() sable.Value {
	return c.context.Current().Value
}

func (c *runContext) ValueAvailable() sable.Value {
	return c.context.ValueAvailable()
}

func (c *runContext) ReplyDetails() *sable.ReplyDetails {
	return c.context.Current().Reply
}

func (c *runContext) Block() sable.BlockInfo {
	return c.block
}

func (c *runContext) Send(packet sable.Packet) (sable.MessageId, error) {
	if err := c.checkGasLimit(packet.GasLimit); err != nil {
		return sable.MessageId{}, err
	}
	id, err := c.context.Send(packet)
	if err != nil {
		return sable.MessageId{}, err
	}
	return id, c.reduce(packet.GasLimit)
}

func (c *runContext) SendInit() (uint32, error) {
	return c.context.SendInit()
}

func (c *runContext) SendPush(handle uint32, data []byte) error {
	return c.context.SendPush(handle, data)
}

func (c *runContext) SendCommit(handle uint32, packet sable.Packet) (sable.MessageId, error) {
	if err := c.checkGasLimit(packet.GasLimit); err != nil {
		return sable.MessageId{}, err
	}
	id, err := c.context.SendCommit(handle, packet)
	if err != nil {
		return sable.MessageId{}, err
	}
	return id, c.reduce(packet.GasLimit)
}

func (c *runContext) Reply(packet sable.ReplyPacket) (sable.MessageId, error) {
	if err := c.checkGasLimit(packet.GasLimit); err != nil {
		return sable.MessageId{}, err
	}
	id, err := c.context.Reply(packet)
	if err != nil {
		return sable.MessageId{}, err
	}
	return id, c.reduce(packet.GasLimit)
}

func (c *runContext) ReplyPush(data []byte) error {
	return c.context.ReplyPush(data)
}

// ReplyCommit sends the reply composed of pushed data. The context prepends
// pushed data to any reply, so this is the same as Reply.
func (c *runContext) ReplyCommit(packet sable.ReplyPacket) (sable.MessageId, error) {
	return c.Reply(packet)
}

func (c *runContext) CreateProgram(packet sable.InitPacket) (sable.ActorId, sable.MessageId, error) {
	if err := c.checkGasLimit(packet.GasLimit); err != nil {
		return sable.ActorId{}, sable.MessageId{}, err
	}
	program, id, err := c.context.InitProgram(packet)
	if err != nil {
		return sable.ActorId{}, sable.MessageId{}, err
	}
	return program, id, c.reduce(packet.GasLimit)
}

func (c *runContext) Wake(id sable.MessageId) error {
	return c.context.Wake(id)
}

func (c *runContext) Wait(kind sable.WaitKind, duration uint32) error {
	if k := c.context.Kind(); k == sable.Reply || k == sable.Signal {
		return sable.HaltWithTrap(sable.TrapForbiddenFunction, "wait while processing a "+k.String())
	}
	return &sable.Halt{Reason: sable.TerminationReason{
		Kind:     sable.TerminationWait,
		Wait:     kind,
		Duration: duration,
	}}
}

func (c *runContext) Exit(inheritor sable.ActorId) error {
	return &sable.Halt{Reason: sable.TerminationReason{
		Kind:      sable.TerminationExit,
		Inheritor: inheritor,
	}}
}

func (c *runContext) Leave() error {
	return &sable.Halt{Reason: sable.TerminationReason{Kind: sable.TerminationLeave}}
}

func (c *runContext) Panic(message string) error {
	return sable.HaltWithTrap(sable.TrapPanic, message)
}

func (c *runContext) Random(subject []byte) ([32]byte, uint64) {
	hasher, _ := blake2b.New256(nil)
	hasher.Write(c.block.RandomSeed[:])
	hasher.Write(subject)
	var res [32]byte
	hasher.Sum(res[:0])
	return res, c.block.Height
}

func (c *runContext) Debug(message string) {
	c.logger.Debug("program debug message", zap.String("text", message))
}

// checkGasLimit makes sure the gas handed to an outgoing message is
// available before the message gets recorded.
func (c *runContext) checkGasLimit(limit *sable.Gas) error {
	if limit != nil && *limit > c.meter.Left() {
		return gas.ErrGasExceeded
	}
	return nil
}

func (c *runContext) reduce(limit *sable.Gas) error {
	if limit == nil {
		return nil
	}
	return c.meter.Reduce(*limit)
}
