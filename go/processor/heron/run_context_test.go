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
	"errors"
	"testing"

	"github.com/Fantom-foundation/Sable/go/gas"
	"github.com/Fantom-foundation/Sable/go/message"
	"github.com/Fantom-foundation/Sable/go/sable"
	"go.uber.org/zap"
)

func newRunContext(kind sable.DispatchKind, limit, allowance sable.Gas) *runContext {
	dispatch := sable.IncomingDispatch{
		Dispatch: sable.Dispatch{
			Kind: kind,
			Message: sable.Message{
				Id:          sable.MessageId{1},
				Source:      source,
				Destination: sable.ActorId{2},
			},
		},
		GasLimit: limit,
	}
	return &runContext{
		block:   block,
		program: sable.ActorId{2},
		meter:   gas.NewMeter(limit, allowance),
		costs:   gas.DefaultCosts(),
		context: message.NewContext(dispatch, sable.ActorId{2}, message.DefaultSettings()),
		logger:  zap.NewNop(),
	}
}

func checkTermination(t *testing.T, err error, want sable.TerminationReason) {
	t.Helper()
	got, ok := sable.TerminationFromError(err)
	if !ok {
		t.Fatalf("unexpected error, wanted termination, got %v", err)
	}
	if want != got {
		t.Errorf("unexpected termination, want %v, got %v", want, got)
	}
}

func TestRunContext_ChargingErrorsEndTheExecution(t *testing.T) {
	tests := map[string]struct {
		limit     sable.Gas
		allowance sable.Gas
		want      sable.TerminationReason
	}{
		"gas limit": {
			limit:     10,
			allowance: 100,
			want: sable.TerminationReason{
				Kind: sable.TerminationTrap,
				Trap: sable.TrapExplanation{Kind: sable.TrapGasLimitExceeded},
			},
		},
		"allowance": {
			limit:     100,
			allowance: 10,
			want:      sable.TerminationReason{Kind: sable.TerminationAllowanceExceeded},
		},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ctx := newRunContext(sable.Handle, test.limit, test.allowance)
			checkTermination(t, ctx.ChargeGas(20), test.want)
			if want, got := test.limit, ctx.GasAvailable(); want != got {
				t.Errorf("failed charge modified gas, want %d, got %d", want, got)
			}
		})
	}
}

func TestRunContext_HostCallsAreChargedByCostSchedule(t *testing.T) {
	ctx := newRunContext(sable.Handle, 10_000, 10_000)
	if err := ctx.ChargeHostCall(10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := sable.Gas(10_000)-ctx.costs.HostCallCost(10), ctx.GasAvailable(); want != got {
		t.Errorf("unexpected gas left, want %d, got %d", want, got)
	}
}

func TestRunContext_GasOfOutgoingMessagesIsReserved(t *testing.T) {
	ctx := newRunContext(sable.Handle, 1000, 1000)
	limit := sable.Gas(400)
	if _, err := ctx.Send(sable.Packet{Destination: source, GasLimit: &limit}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := sable.Gas(600), ctx.GasAvailable(); want != got {
		t.Errorf("unexpected gas left, want %d, got %d", want, got)
	}
	if want, got := sable.Gas(0), ctx.meter.Burnt(); want != got {
		t.Errorf("reserved gas must not be burnt, want %d, got %d", want, got)
	}
}

func TestRunContext_MessagesExceedingAvailableGasAreRejected(t *testing.T) {
	limit := sable.Gas(2000)
	tests := map[string]func(*runContext) error{
		"send": func(c *runContext) error {
			_, err := c.Send(sable.Packet{Destination: source, GasLimit: &limit})
			return err
		},
		"send commit": func(c *runContext) error {
			handle, err := c.SendInit()
			if err != nil {
				return err
			}
			_, err = c.SendCommit(handle, sable.Packet{Destination: source, GasLimit: &limit})
			return err
		},
		"reply": func(c *runContext) error {
			_, err := c.Reply(sable.ReplyPacket{GasLimit: &limit})
			return err
		},
		"create program": func(c *runContext) error {
			_, _, err := c.CreateProgram(sable.InitPacket{GasLimit: &limit})
			return err
		},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ctx := newRunContext(sable.Handle, 1000, 1000)
			if err := test(ctx); !errors.Is(err, gas.ErrGasExceeded) {
				t.Errorf("unexpected error, want %v, got %v", gas.ErrGasExceeded, err)
			}
			if want, got := sable.Gas(1000), ctx.GasAvailable(); want != got {
				t.Errorf("unexpected gas left, want %d, got %d", want, got)
			}
			if outcome, _ := ctx.context.ToOutcome(); len(outcome.Generated) != 0 {
				t.Errorf("rejected message was recorded: %v", outcome.Generated)
			}
		})
	}
}

func TestRunContext_WaitIsForbiddenWhileProcessingReplies(t *testing.T) {
	tests := map[sable.DispatchKind]bool{
		sable.Init:   true,
		sable.Handle: true,
		sable.Reply:  false,
		sable.Signal: false,
	}
	for kind, allowed := range tests {
		t.Run(kind.String(), func(t *testing.T) {
			ctx := newRunContext(kind, 1000, 1000)
			got, ok := sable.TerminationFromError(ctx.Wait(sable.WaitFor, 5))
			if !ok {
				t.Fatalf("wait did not end the execution")
			}
			if allowed {
				want := sable.TerminationReason{Kind: sable.TerminationWait, Wait: sable.WaitFor, Duration: 5}
				if want != got {
					t.Errorf("unexpected termination, want %v, got %v", want, got)
				}
			} else if got.Kind != sable.TerminationTrap || got.Trap.Kind != sable.TrapForbiddenFunction {
				t.Errorf("unexpected termination, want forbidden function trap, got %v", got)
			}
		})
	}
}

func TestRunContext_ControlFlowOperationsEndTheExecution(t *testing.T) {
	ctx := newRunContext(sable.Handle, 1000, 1000)
	checkTermination(t, ctx.Exit(source), sable.TerminationReason{Kind: sable.TerminationExit, Inheritor: source})
	checkTermination(t, ctx.Leave(), sable.TerminationReason{Kind: sable.TerminationLeave})
	checkTermination(t, ctx.Panic("oops"), sable.TerminationReason{
		Kind: sable.TerminationTrap,
		Trap: sable.TrapExplanation{Kind: sable.TrapPanic, Message: "oops"},
	})
}

func TestRunContext_RandomIsDerivedFromSeedAndSubject(t *testing.T) {
	ctx := newRunContext(sable.Handle, 1000, 1000)
	a, height := ctx.Random([]byte("a"))
	if want, got := block.Height, height; want != got {
		t.Errorf("unexpected height, want %d, got %d", want, got)
	}
	if again, _ := ctx.Random([]byte("a")); a != again {
		t.Errorf("random values of equal subjects differ")
	}
	if b, _ := ctx.Random([]byte("b")); a == b {
		t.Errorf("random values of different subjects are equal")
	}
	ctx.block.RandomSeed[0]++
	if other, _ := ctx.Random([]byte("a")); a == other {
		t.Errorf("random values of different seeds are equal")
	}
}

func TestRunContext_MessageDetailsAreProvided(t *testing.T) {
	ctx := newRunContext(sable.Handle, 1000, 1000)
	if want, got := (sable.MessageId{1}), ctx.MessageId(); want != got {
		t.Errorf("unexpected message id, want %v, got %v", want, got)
	}
	if want, got := source, ctx.Source(); want != got {
		t.Errorf("unexpected source, want %v, got %v", want, got)
	}
	if want, got := (sable.ActorId{2}), ctx.ProgramId(); want != got {
		t.Errorf("unexpected program, want %v, got %v", want, got)
	}
	if ctx.ReplyDetails() != nil {
		t.Errorf("unexpected reply details for handle dispatch")
	}
	if want, got := block, ctx.Block(); want != got {
		t.Errorf("unexpected block, want %v, got %v", want, got)
	}
}
