// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package heron provides a processor driving a single dispatch from its
// arrival at an actor to the journal summarizing its effects.
package heron

import (
	"errors"
	"fmt"

	"github.com/Fantom-foundation/Sable/go/gas"
	"github.com/Fantom-foundation/Sable/go/lazypages"
	"github.com/Fantom-foundation/Sable/go/message"
	"github.com/Fantom-foundation/Sable/go/sable"
	"go.uber.org/zap"
)

const (
	// ErrMissingCode is reported for executable actors without code.
	ErrMissingCode = sable.ConstError("actor has no code")
	// ErrBalanceOverflow is reported if the value available to a program
	// can not be represented.
	ErrBalanceOverflow = sable.ConstError("balance overflow")
)

// ErrorReplyCode is the exit code of replies generated for messages whose
// processing failed.
const ErrorReplyCode = 1

func init() {
	sable.MustRegisterProcessorFactory("heron", func(interpreter sable.Interpreter) sable.Processor {
		return NewProcessor(interpreter, DefaultConfig())
	})
}

// NewProcessor creates a processor running programs on the given
// interpreter.
func NewProcessor(interpreter sable.Interpreter, config Config) *processor {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &processor{
		interpreter: interpreter,
		config:      config,
		logger:      logger,
		metrics:     newMetrics(config.Registerer),
	}
}

type processor struct {
	interpreter sable.Interpreter
	config      Config
	logger      *zap.Logger
	metrics     *metrics
}

func (p *processor) Process(
	block sable.BlockInfo,
	dispatch sable.IncomingDispatch,
	actor sable.ActorState,
	store sable.PageStore,
	allowance sable.Gas,
) (sable.Journal, error) {
	logger := p.logger.With(
		zap.Stringer("message", dispatch.Message.Id),
		zap.Stringer("kind", dispatch.Kind),
		zap.Stringer("program", actor.Id),
	)
	journal, err := p.process(logger, block, dispatch, actor, store, allowance)
	if err != nil {
		logger.Warn("processing failed", zap.Error(err))
		return nil, sable.Fatal(err)
	}
	p.metrics.observe(journal)
	return journal, nil
}

func (p *processor) process(
	logger *zap.Logger,
	block sable.BlockInfo,
	dispatch sable.IncomingDispatch,
	actor sable.ActorState,
	store sable.PageStore,
	allowance sable.Gas,
) (sable.Journal, error) {
	if reason, executable := isExecutable(dispatch, actor); !executable {
		logger.Debug("dispatch not executable", zap.String("reason", reason))
		return p.notExecuted(dispatch, actor, reason), nil
	}

	meter := gas.NewMeter(dispatch.GasLimit, allowance)
	if err := meter.Charge(p.config.Costs.Preparation); err != nil {
		if errors.Is(err, gas.ErrAllowanceExceeded) {
			return stopped(dispatch), nil
		}
		// Everything left is burnt; the allowance covers it since it exceeds
		// the preparation charge.
		if err := meter.Charge(meter.Left()); err != nil {
			return nil, err
		}
		trap := sable.TrapExplanation{Kind: sable.TrapGasLimitExceeded, Message: "preparation"}
		return p.trapped(dispatch, actor, meter.Burnt(), trap), nil
	}

	if actor.MemoryPages > p.config.MaxPages {
		trap := sable.TrapExplanation{
			Kind:    sable.TrapMemoryLimitExceeded,
			Message: fmt.Sprintf("memory of %d pages exceeds limit of %d", actor.MemoryPages, p.config.MaxPages),
		}
		return p.trapped(dispatch, actor, meter.Burnt(), trap), nil
	}
	if len(actor.Code) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrMissingCode, actor.Id)
	}

	available := actor.Balance
	if dispatch.Context == nil {
		var overflow bool
		available, overflow = sable.Add(actor.Balance, dispatch.Message.Value)
		if overflow {
			return nil, fmt.Errorf("%w: program %v", ErrBalanceOverflow, actor.Id)
		}
	}

	memory := lazypages.NewManager(actor.Id, actor.MemoryPages, actor.Allocations, store, charger{meter}, lazypages.Config{
		MaxPages:  p.config.MaxPages,
		LoadPage:  p.config.Costs.LoadPage,
		WritePage: p.config.Costs.WritePage,
		GrowPage:  p.config.Costs.GrowPage,
	})
	context := &runContext{
		block:   block,
		program: actor.Id,
		meter:   meter,
		costs:   p.config.Costs,
		context: message.NewContext(dispatch, actor.Id, p.config.settings(available)),
		logger:  logger,
	}

	logger.Debug("executing dispatch", zap.Uint64("gasLimit", uint64(dispatch.GasLimit)))
	result, err := p.interpreter.Run(sable.Parameters{
		Context:    context,
		Memory:     memory,
		Kind:       dispatch.Kind,
		CodeId:     actor.CodeId,
		Code:       actor.Code,
		EntryPoint: dispatch.Kind.EntryPoint(),
		MaxPages:   p.config.MaxPages,
	})
	if err != nil {
		return nil, err
	}

	termination := result.Termination
	logger.Debug("execution terminated",
		zap.Stringer("termination", termination),
		zap.Uint64("gasBurnt", uint64(meter.Burnt())),
	)
	switch termination.Kind {
	case sable.TerminationAllowanceExceeded:
		return stopped(dispatch), nil
	case sable.TerminationTrap:
		return p.trapped(dispatch, actor, meter.Burnt(), termination.Trap), nil
	}

	deltas := memory.IntoDeltas()
	outcome, contextStore := context.context.ToOutcome()
	return p.committed(block, dispatch, actor, meter.Burnt(), termination, outcome, contextStore, &deltas), nil
}

// isExecutable checks whether the given dispatch can be handled by the
// given actor. If not, a reason is provided.
func isExecutable(dispatch sable.IncomingDispatch, actor sable.ActorState) (string, bool) {
	switch {
	case actor.Terminated:
		return "program terminated", false
	case dispatch.Kind == sable.Init && actor.Initialized:
		return "program already initialized", false
	case dispatch.Kind == sable.Handle && !actor.Initialized:
		return "program not initialized", false
	}
	return "", true
}

// stopped produces the journal of a dispatch interrupted by the exhaustion
// of the block's allowance. The dispatch is neither charged nor consumed.
func stopped(dispatch sable.IncomingDispatch) sable.Journal {
	return sable.Journal{sable.ProcessingStopped{MessageId: dispatch.Message.Id}}
}

func (p *processor) notExecuted(dispatch sable.IncomingDispatch, actor sable.ActorState, reason string) sable.Journal {
	var journal sable.Journal
	journal = p.returnValue(journal, dispatch)
	journal = p.errorReply(journal, dispatch, actor, reason)
	return finish(journal, dispatch, actor, sable.OutcomeNoExecution)
}

func (p *processor) trapped(dispatch sable.IncomingDispatch, actor sable.ActorState, burnt sable.Gas, trap sable.TrapExplanation) sable.Journal {
	msg := &dispatch.Message
	journal := sable.Journal{
		sable.GasBurned{MessageId: msg.Id, Amount: burnt},
		sable.ProgramTrapped{Program: actor.Id, MessageId: msg.Id, Trap: trap},
	}
	journal = p.returnValue(journal, dispatch)
	journal = p.errorReply(journal, dispatch, actor, trap.String())
	outcome := sable.OutcomeTrap
	if dispatch.Kind == sable.Init {
		outcome = sable.OutcomeInitFailure
	}
	return finish(journal, dispatch, actor, outcome)
}

func (p *processor) committed(
	block sable.BlockInfo,
	dispatch sable.IncomingDispatch,
	actor sable.ActorState,
	burnt sable.Gas,
	termination sable.TerminationReason,
	outcome sable.ContextOutcome,
	store *sable.ContextStore,
	deltas *lazypages.Deltas,
) sable.Journal {
	msg := &dispatch.Message
	journal := sable.Journal{sable.GasBurned{MessageId: msg.Id, Amount: burnt}}
	for _, generated := range outcome.Generated {
		journal = append(journal, sable.DispatchSent{Origin: msg.Id, Dispatch: generated})
	}
	for _, id := range outcome.Awakening {
		journal = append(journal, sable.MessageWoken{Origin: msg.Id, Program: actor.Id, Awakening: id})
	}
	if len(outcome.NewPrograms) > 0 {
		journal = append(journal, sable.ProgramsCreated{Origin: msg.Id, Candidates: outcome.NewPrograms})
	}

	if len(deltas.Dirty) > 0 || len(deltas.Removed) > 0 {
		journal = append(journal, sable.PagesUpdated{
			Program: actor.Id,
			Updates: deltas.Dirty,
			Removed: deltas.Removed,
		})
	}
	if deltas.AllocationsChanged() || deltas.Size != actor.MemoryPages {
		journal = append(journal, sable.AllocationsUpdated{
			Program:     actor.Id,
			MemoryPages: deltas.Size,
			Allocations: deltas.Allocations,
		})
	}

	// The value of a message is handed over with the first committed
	// execution. Resumed executions received it before waiting.
	if !msg.Value.IsZero() && dispatch.Context == nil {
		journal = append(journal, sable.ValueSent{From: msg.Source, To: actor.Id, Value: msg.Value})
	}

	if termination.Kind == sable.TerminationWait {
		duration := termination.Duration
		if termination.Wait == sable.WaitDefault {
			duration = p.config.WaitTimeout
		}
		return append(journal, sable.WaitlistInserted{
			Dispatch:     dispatch.ToStored(store),
			ExpiresAt:    block.Height + uint64(max(duration, 1)),
			WakeOnExpiry: termination.Wait == sable.WaitUpTo,
		})
	}

	result := sable.OutcomeSuccess
	switch {
	case termination.Kind == sable.TerminationExit:
		journal = append(journal, sable.ProgramExited{Program: actor.Id, Inheritor: termination.Inheritor})
		result = sable.OutcomeExit
	case dispatch.Kind == sable.Init:
		journal = append(journal, sable.ProgramInitialized{Program: actor.Id})
		result = sable.OutcomeInitSuccess
	}
	return finish(journal, dispatch, actor, result)
}

// returnValue gives the value attached to a message back to its source
// unless it was handed over to the program before a wait.
func (p *processor) returnValue(journal sable.Journal, dispatch sable.IncomingDispatch) sable.Journal {
	msg := &dispatch.Message
	if msg.Value.IsZero() || dispatch.Context != nil {
		return journal
	}
	return append(journal, sable.ValueSent{From: msg.Source, To: msg.Source, Value: msg.Value})
}

// errorReply notifies the source of a message about a failed processing.
// Replies and signals never get answered, and neither do messages which got
// their reply before waiting.
func (p *processor) errorReply(journal sable.Journal, dispatch sable.IncomingDispatch, actor sable.ActorState, reason string) sable.Journal {
	if !p.config.ErrorReplies || dispatch.Kind == sable.Reply || dispatch.Kind == sable.Signal {
		return journal
	}
	if dispatch.Context != nil && dispatch.Context.ReplySent {
		return journal
	}
	msg := &dispatch.Message
	return append(journal, sable.DispatchSent{
		Origin: msg.Id,
		Dispatch: sable.Dispatch{
			Kind: sable.Reply,
			Message: sable.Message{
				Id:          sable.GenerateReply(msg.Id, ErrorReplyCode),
				Source:      actor.Id,
				Destination: msg.Source,
				Payload:     sable.Payload(reason),
				Reply:       &sable.ReplyDetails{ReplyTo: msg.Id, ExitCode: ErrorReplyCode},
			},
		},
	})
}

func finish(journal sable.Journal, dispatch sable.IncomingDispatch, actor sable.ActorState, outcome sable.DispatchOutcome) sable.Journal {
	msg := &dispatch.Message
	return append(journal,
		sable.MessageDispatched{
			MessageId: msg.Id,
			Source:    msg.Source,
			Program:   actor.Id,
			Outcome:   outcome,
		},
		sable.MessageConsumed{MessageId: msg.Id},
	)
}

// charger makes page costs terminate the execution like any other charge.
type charger struct {
	meter *gas.Meter
}

func (c charger) Charge(amount sable.Gas) error {
	return gas.ToHalt(c.meter.Charge(amount))
}
