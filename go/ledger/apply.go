// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package ledger

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/Fantom-foundation/Sable/go/sable"
	"github.com/Fantom-foundation/Sable/go/scheduler"
	"go.uber.org/zap"
)

// apply performs the state transitions described by the journal of a
// single dispatch.
//
// Values of sent messages are taken from their source when the message is
// sent. ValueSent notes hand such values over and thus only credit their
// receiver. Credits are settled before debits so a program may forward the
// value it receives.
func (l *Ledger) apply(block sable.BlockInfo, journal sable.Journal, undo *undoLog) (DispatchResult, error) {
	var result DispatchResult
	var credits, debits []transfer
	var exits []sable.ProgramExited
	for _, note := range journal {
		switch note := note.(type) {
		case sable.MessageDispatched:
			result.MessageId = note.MessageId
			result.Program = note.Program
			result.Outcome = note.Outcome
			if note.Outcome == sable.OutcomeInitFailure {
				if err := l.updateProgram(note.Program, undo, func(p *Program) { p.Terminated = true }); err != nil {
					return result, err
				}
			}

		case sable.GasBurned:
			result.MessageId = note.MessageId
			result.GasBurned += note.Amount

		case sable.MessageConsumed:

		case sable.DispatchSent:
			message := note.Dispatch.Message
			debits = append(debits, transfer{actor: message.Source, value: message.Value})
			l.enqueue(sable.StoredDispatch{Dispatch: note.Dispatch}, undo)

		case sable.WaitlistInserted:
			if err := l.insertWaiting(note, undo); err != nil {
				return result, err
			}
			result.MessageId = note.Dispatch.Message.Id
			result.Program = note.Dispatch.Message.Destination
			result.Waiting = true

		case sable.MessageWoken:
			l.wake(note.Program, note.Awakening, undo)

		case sable.PagesUpdated:
			for _, update := range note.Updates {
				if err := l.writePage(note.Program, update.Page, update.Data, undo); err != nil {
					return result, err
				}
			}
			for _, page := range note.Removed {
				if err := l.removePage(note.Program, page, undo); err != nil {
					return result, err
				}
			}

		case sable.AllocationsUpdated:
			err := l.updateProgram(note.Program, undo, func(p *Program) {
				p.MemoryPages = note.MemoryPages
				p.Allocations = slices.Clone(note.Allocations)
			})
			if err != nil {
				return result, err
			}

		case sable.ValueSent:
			credits = append(credits, transfer{actor: note.To, value: note.Value})

		case sable.ProgramTrapped:
			trap := note.Trap
			result.Trap = &trap

		case sable.ProgramExited:
			exits = append(exits, note)

		case sable.ProgramInitialized:
			if err := l.updateProgram(note.Program, undo, func(p *Program) { p.Initialized = true }); err != nil {
				return result, err
			}

		case sable.ProgramsCreated:
			for _, candidate := range note.Candidates {
				l.createProgram(candidate, undo)
			}

		default:
			return result, fmt.Errorf("%w: unexpected note %v", ErrInvalidJournal, note.Kind())
		}
	}

	for _, credit := range credits {
		if err := l.credit(credit.actor, credit.value, undo); err != nil {
			return result, err
		}
	}
	for _, debit := range debits {
		if err := l.debit(debit.actor, debit.value, undo); err != nil {
			return result, err
		}
	}
	for _, exit := range exits {
		if err := l.exit(exit, undo); err != nil {
			return result, err
		}
	}
	return result, nil
}

type transfer struct {
	actor sable.ActorId
	value sable.Value
}

func (l *Ledger) credit(actor sable.ActorId, value sable.Value, undo *undoLog) error {
	if value.IsZero() {
		return nil
	}
	balance, overflow := sable.Add(l.balances[actor], value)
	if overflow {
		return fmt.Errorf("%w: crediting %v to %v", ErrBalanceOverflow, value, actor)
	}
	setEntry(l.balances, actor, balance, undo)
	return nil
}

func (l *Ledger) debit(actor sable.ActorId, value sable.Value, undo *undoLog) error {
	if value.IsZero() {
		return nil
	}
	balance, underflow := sable.Sub(l.balances[actor], value)
	if underflow {
		return fmt.Errorf("%w: %v can not pay %v", ErrInsufficientBalance, actor, value)
	}
	setEntry(l.balances, actor, balance, undo)
	return nil
}

// exit terminates a program and moves its balance to the inheritor.
func (l *Ledger) exit(exit sable.ProgramExited, undo *undoLog) error {
	balance := l.balances[exit.Program]
	if err := l.debit(exit.Program, balance, undo); err != nil {
		return err
	}
	if err := l.credit(exit.Inheritor, balance, undo); err != nil {
		return err
	}
	return l.updateProgram(exit.Program, undo, func(p *Program) { p.Terminated = true })
}

func (l *Ledger) updateProgram(id sable.ActorId, undo *undoLog, update func(*Program)) error {
	program, found := l.programs[id]
	if !found {
		return fmt.Errorf("%w: unknown program %v", ErrInvalidJournal, id)
	}
	update(&program)
	setEntry(l.programs, id, program, undo)
	return nil
}

// createProgram registers a program created by another program. Programs
// with unknown code are registered as terminated so that their init
// message fails. Existing programs are left untouched.
func (l *Ledger) createProgram(candidate sable.ProgramCandidate, undo *undoLog) {
	if _, found := l.programs[candidate.Program]; found {
		l.logger.Debug("program already exists", zap.Stringer("program", candidate.Program))
		return
	}
	code, found := l.codes[candidate.CodeId]
	setEntry(l.programs, candidate.Program, Program{
		CodeId:      candidate.CodeId,
		MemoryPages: code.memoryPages,
		Terminated:  !found,
	}, undo)
}

func (l *Ledger) enqueue(dispatch sable.StoredDispatch, undo *undoLog) {
	l.queue.PushBack(dispatch)
	undo.recordFunc(func() { l.queue.PopBack() })
}

func (l *Ledger) insertWaiting(note sable.WaitlistInserted, undo *undoLog) error {
	dispatch := note.Dispatch
	id := dispatch.Message.Id
	if _, found := l.waitlist[id]; found {
		return fmt.Errorf("%w: message %v is already waiting", ErrInvalidJournal, id)
	}
	setEntry(l.waitlist, id, dispatch, undo)
	kind := scheduler.RemoveFromWaitlist
	if note.WakeOnExpiry {
		kind = scheduler.WakeMessage
	}
	return l.tasks.Add(note.ExpiresAt, scheduler.Task{Kind: kind, Actor: dispatch.Message.Destination, Message: id})
}

// wake moves a waiting message of the given program back to the queue.
// Waking messages which are not waiting has no effect.
func (l *Ledger) wake(program sable.ActorId, id sable.MessageId, undo *undoLog) {
	dispatch, found := l.waitlist[id]
	if !found || dispatch.Message.Destination != program {
		return
	}
	deleteEntry(l.waitlist, id, undo)
	for _, kind := range []scheduler.TaskKind{scheduler.WakeMessage, scheduler.RemoveFromWaitlist} {
		l.tasks.Cancel(scheduler.Task{Kind: kind, Actor: program, Message: id})
	}
	l.enqueue(dispatch, undo)
}

func (l *Ledger) runTask(block sable.BlockInfo, task scheduler.Task, summary *BlockSummary, undo *undoLog) error {
	l.logger.Debug("running task", zap.Stringer("task", task), zap.Uint64("height", block.Height))
	switch task.Kind {
	case scheduler.WakeMessage:
		l.wake(task.Actor, task.Message, undo)
	case scheduler.RemoveFromWaitlist:
		if l.expire(task.Message, undo) {
			summary.Expired = append(summary.Expired, task.Message)
		}
	case scheduler.RemoveFromMailbox:
		l.removeFromMailbox(task.Actor, task.Message, undo)
	case scheduler.PauseProgram:
		// Programs are never paused by this ledger.
	default:
		return fmt.Errorf("unknown task kind %v", task.Kind)
	}
	return nil
}

// expire removes a message from the waitlist. Unless the program has
// already replied, the source of the message gets an error reply.
func (l *Ledger) expire(id sable.MessageId, undo *undoLog) bool {
	dispatch, found := l.waitlist[id]
	if !found {
		return false
	}
	deleteEntry(l.waitlist, id, undo)
	if dispatch.Context != nil && dispatch.Context.ReplySent {
		return true
	}
	if dispatch.Kind == sable.Reply || dispatch.Kind == sable.Signal {
		return true
	}
	l.enqueue(sable.StoredDispatch{Dispatch: sable.Dispatch{
		Kind: sable.Reply,
		Message: sable.Message{
			Id:          sable.GenerateReply(id, TimeoutReplyCode),
			Source:      dispatch.Message.Destination,
			Destination: dispatch.Message.Source,
			Payload:     sable.Payload("removed from waitlist"),
			Reply:       &sable.ReplyDetails{ReplyTo: id, ExitCode: TimeoutReplyCode},
		},
	}}, undo)
	return true
}

// deliver moves a message addressed to a user into the user's mailbox.
func (l *Ledger) deliver(block sable.BlockInfo, message sable.Message, undo *undoLog) error {
	user := message.Destination
	if err := l.credit(user, message.Value, undo); err != nil {
		return err
	}
	setEntry(l.mailbox, user, append(slices.Clone(l.mailbox[user]), message), undo)
	task := scheduler.Task{Kind: scheduler.RemoveFromMailbox, Actor: user, Message: message.Id}
	return l.tasks.Add(block.Height+uint64(l.config.MailboxTimeout), task)
}

func (l *Ledger) removeFromMailbox(user sable.ActorId, id sable.MessageId, undo *undoLog) {
	messages := l.mailbox[user]
	pos := slices.IndexFunc(messages, func(m sable.Message) bool { return m.Id == id })
	if pos < 0 {
		return
	}
	rest := slices.Delete(slices.Clone(messages), pos, pos+1)
	if len(rest) == 0 {
		deleteEntry(l.mailbox, user, undo)
	} else {
		setEntry(l.mailbox, user, rest, undo)
	}
}

func (l *Ledger) writePage(actor sable.ActorId, page sable.PageNumber, data []byte, undo *undoLog) error {
	if err := l.recordPage(actor, page, undo); err != nil {
		return err
	}
	return l.pages.WritePage(actor, page, data)
}

func (l *Ledger) removePage(actor sable.ActorId, page sable.PageNumber, undo *undoLog) error {
	if err := l.recordPage(actor, page, undo); err != nil {
		return err
	}
	return l.pages.RemovePage(actor, page)
}

// recordPage registers the restoration of the current content of a page.
func (l *Ledger) recordPage(actor sable.ActorId, page sable.PageNumber, undo *undoLog) error {
	old, found, err := l.pages.ReadPage(actor, page)
	if err != nil {
		return err
	}
	old = bytes.Clone(old)
	undo.record(func() error {
		if found {
			return l.pages.WritePage(actor, page, old)
		}
		return l.pages.RemovePage(actor, page)
	})
	return nil
}
