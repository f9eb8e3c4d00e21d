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
	"bytes"
	"errors"
	"slices"
	"testing"

	"github.com/Fantom-foundation/Sable/go/examples"
	"github.com/Fantom-foundation/Sable/go/interpreter/lpvm"
	"github.com/Fantom-foundation/Sable/go/sable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	gomock "go.uber.org/mock/gomock"
	"pgregory.net/rand"
)

type memoryStore map[sable.PageNumber][]byte

func (s memoryStore) ReadPage(_ sable.ActorId, page sable.PageNumber) ([]byte, bool, error) {
	data, found := s[page]
	return data, found, nil
}

const gasLimit = 1 << 30

var (
	source = sable.ActorId{1}
	block  = sable.BlockInfo{Height: 42, Timestamp: 1234, RandomSeed: [32]byte{7}}
)

func newTestProcessor(t *testing.T, config Config) *processor {
	t.Helper()
	interpreter, err := lpvm.NewInterpreter(lpvm.Config{})
	if err != nil {
		t.Fatalf("failed to create interpreter: %v", err)
	}
	return NewProcessor(interpreter, config)
}

// actorOf returns an initialized instance of the given example with a
// memory of one page.
func actorOf(example examples.Example) sable.ActorState {
	actor := example.Actor()
	actor.MemoryPages = 1
	return actor
}

func newDispatch(kind sable.DispatchKind, actor sable.ActorState, payload []byte) sable.IncomingDispatch {
	return sable.IncomingDispatch{
		Dispatch: sable.Dispatch{
			Kind: kind,
			Message: sable.Message{
				Id:          sable.GenerateOutgoing(sable.MessageId{1}, 0),
				Source:      source,
				Destination: actor.Id,
				Payload:     payload,
			},
		},
		GasLimit: gasLimit,
	}
}

func process(t *testing.T, p *processor, dispatch sable.IncomingDispatch, actor sable.ActorState) sable.Journal {
	t.Helper()
	journal, err := p.Process(block, dispatch, actor, memoryStore{}, gasLimit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return journal
}

func kinds(journal sable.Journal) []sable.NoteKind {
	res := make([]sable.NoteKind, 0, len(journal))
	for _, note := range journal {
		res = append(res, note.Kind())
	}
	return res
}

func checkKinds(t *testing.T, journal sable.Journal, want ...sable.NoteKind) {
	t.Helper()
	if got := kinds(journal); !slices.Equal(want, got) {
		t.Fatalf("unexpected journal, want %v, got %v", want, got)
	}
}

func outcomeOf(t *testing.T, journal sable.Journal) sable.DispatchOutcome {
	t.Helper()
	notes := journal.Filter(sable.NoteMessageDispatched)
	if len(notes) != 1 {
		t.Fatalf("unexpected number of dispatch results, want 1, got %d", len(notes))
	}
	return notes[0].(sable.MessageDispatched).Outcome
}

func TestProcessor_IsRegistered(t *testing.T) {
	processor, err := sable.NewProcessor("heron", sable.NewMockInterpreter(gomock.NewController(t)))
	if err != nil {
		t.Fatalf("heron processor is not registered: %v", err)
	}
	if processor == nil {
		t.Errorf("factory produced no processor")
	}
}

func TestProcessor_HandleWithReplyProducesSingleReply(t *testing.T) {
	p := newTestProcessor(t, DefaultConfig())
	actor := actorOf(examples.GetPingExample())
	dispatch := newDispatch(sable.Handle, actor, nil)
	journal := process(t, p, dispatch, actor)

	checkKinds(t, journal,
		sable.NoteGasBurned,
		sable.NoteDispatchSent,
		sable.NotePagesUpdated,
		sable.NoteMessageDispatched,
		sable.NoteMessageConsumed,
	)
	sent := journal.Filter(sable.NoteDispatchSent)[0].(sable.DispatchSent)
	if want, got := sable.Reply, sent.Dispatch.Kind; want != got {
		t.Errorf("unexpected kind of generated dispatch, want %v, got %v", want, got)
	}
	reply := sent.Dispatch.Message
	if want, got := sable.GenerateReply(dispatch.Message.Id, 0), reply.Id; want != got {
		t.Errorf("unexpected reply id, want %v, got %v", want, got)
	}
	if want, got := source, reply.Destination; want != got {
		t.Errorf("unexpected reply destination, want %v, got %v", want, got)
	}
	if want, got := "pong", string(reply.Payload); want != got {
		t.Errorf("unexpected reply payload, want %q, got %q", want, got)
	}
	if want, got := sable.OutcomeSuccess, outcomeOf(t, journal); want != got {
		t.Errorf("unexpected outcome, want %v, got %v", want, got)
	}
	burnt := journal[0].(sable.GasBurned).Amount
	if burnt <= DefaultConfig().Costs.Preparation {
		t.Errorf("unexpected amount of burnt gas: %d", burnt)
	}
}

func TestProcessor_OutOfBoundsWriteIsTrappedWithoutMessages(t *testing.T) {
	config := DefaultConfig()
	config.ErrorReplies = false
	p := newTestProcessor(t, config)
	actor := actorOf(examples.GetOutOfBoundsExample())
	journal := process(t, p, newDispatch(sable.Handle, actor, nil), actor)

	checkKinds(t, journal,
		sable.NoteGasBurned,
		sable.NoteProgramTrapped,
		sable.NoteMessageDispatched,
		sable.NoteMessageConsumed,
	)
	trap := journal[1].(sable.ProgramTrapped).Trap
	if want, got := sable.TrapMemoryAccess, trap.Kind; want != got {
		t.Errorf("unexpected trap, want %v, got %v", want, got)
	}
	if want, got := sable.OutcomeTrap, outcomeOf(t, journal); want != got {
		t.Errorf("unexpected outcome, want %v, got %v", want, got)
	}
}

func TestProcessor_TrapsProduceErrorReplies(t *testing.T) {
	p := newTestProcessor(t, DefaultConfig())
	actor := actorOf(examples.GetPanickerExample())
	dispatch := newDispatch(sable.Handle, actor, nil)
	journal := process(t, p, dispatch, actor)

	checkKinds(t, journal,
		sable.NoteGasBurned,
		sable.NoteProgramTrapped,
		sable.NoteDispatchSent,
		sable.NoteMessageDispatched,
		sable.NoteMessageConsumed,
	)
	reply := journal[2].(sable.DispatchSent).Dispatch.Message
	if want, got := sable.GenerateReply(dispatch.Message.Id, ErrorReplyCode), reply.Id; want != got {
		t.Errorf("unexpected reply id, want %v, got %v", want, got)
	}
	if reply.Reply == nil || reply.Reply.ExitCode != ErrorReplyCode {
		t.Errorf("unexpected reply details: %v", reply.Reply)
	}
	if want, got := "panic: boom", string(reply.Payload); want != got {
		t.Errorf("unexpected reply payload, want %q, got %q", want, got)
	}
}

func TestProcessor_RepliesAreNeverAnsweredWithErrors(t *testing.T) {
	p := newTestProcessor(t, DefaultConfig())
	actor := actorOf(examples.GetPanickerExample())
	dispatch := newDispatch(sable.Reply, actor, nil)
	dispatch.Message.Reply = &sable.ReplyDetails{ReplyTo: sable.MessageId{2}}
	journal := process(t, p, dispatch, actor)

	if len(journal.Filter(sable.NoteDispatchSent)) != 0 {
		t.Errorf("unexpected error reply in %v", kinds(journal))
	}
	trap := journal.Filter(sable.NoteProgramTrapped)[0].(sable.ProgramTrapped).Trap
	if want, got := sable.TrapInvalidEntryPoint, trap.Kind; want != got {
		t.Errorf("unexpected trap, want %v, got %v", want, got)
	}
}

func TestProcessor_ResumedMessagesWithReplyAreNotAnsweredAgain(t *testing.T) {
	p := newTestProcessor(t, DefaultConfig())
	actor := actorOf(examples.GetPanickerExample())
	dispatch := newDispatch(sable.Handle, actor, nil)
	dispatch.Context = &sable.ContextStore{ReplySent: true}
	journal := process(t, p, dispatch, actor)

	checkKinds(t, journal,
		sable.NoteGasBurned,
		sable.NoteProgramTrapped,
		sable.NoteMessageDispatched,
		sable.NoteMessageConsumed,
	)
	if want, got := sable.OutcomeTrap, outcomeOf(t, journal); want != got {
		t.Errorf("unexpected outcome, want %v, got %v", want, got)
	}
}

func TestProcessor_WaitCapturesContext(t *testing.T) {
	config := DefaultConfig()
	p := newTestProcessor(t, config)
	actor := actorOf(examples.GetWaiterExample())
	dispatch := newDispatch(sable.Handle, actor, nil)
	journal := process(t, p, dispatch, actor)

	checkKinds(t, journal,
		sable.NoteGasBurned,
		sable.NoteWaitlistInserted,
	)
	inserted := journal[1].(sable.WaitlistInserted)
	if want, got := block.Height+uint64(config.WaitTimeout), inserted.ExpiresAt; want != got {
		t.Errorf("unexpected expiration, want %d, got %d", want, got)
	}
	if inserted.WakeOnExpiry {
		t.Errorf("default waits must not wake on expiry")
	}
	if want, got := dispatch.Message.Id, inserted.Dispatch.Message.Id; want != got {
		t.Errorf("unexpected waiting message, want %v, got %v", want, got)
	}
	store := inserted.Dispatch.Context
	if store == nil {
		t.Fatalf("waiting dispatch has no context store")
	}
	if store.Nonce != 0 || len(store.Outgoing) != 0 {
		t.Errorf("unexpected messages in context store: %+v", store)
	}
}

func TestProcessor_ResumedContextContinuesNumbering(t *testing.T) {
	p := newTestProcessor(t, DefaultConfig())
	actor := actorOf(examples.GetRelayExample())
	dispatch := newDispatch(sable.Handle, actor, nil)
	journal := process(t, p, dispatch, actor)

	checkKinds(t, journal,
		sable.NoteGasBurned,
		sable.NoteDispatchSent,
		sable.NotePagesUpdated,
		sable.NoteWaitlistInserted,
	)
	first := journal[1].(sable.DispatchSent).Dispatch.Message
	if want, got := sable.GenerateOutgoing(dispatch.Message.Id, 0), first.Id; want != got {
		t.Errorf("unexpected id of first message, want %v, got %v", want, got)
	}
	store := journal[3].(sable.WaitlistInserted).Dispatch.Context
	if want, got := uint32(1), store.Nonce; want != got {
		t.Fatalf("unexpected nonce in context store, want %d, got %d", want, got)
	}

	reply := newDispatch(sable.Reply, actor, []byte("pong"))
	reply.Message.Reply = &sable.ReplyDetails{ReplyTo: first.Id}
	reply.Context = store
	journal = process(t, p, reply, actor)

	sent := journal.Filter(sable.NoteDispatchSent)
	if len(sent) != 1 {
		t.Fatalf("unexpected number of sent messages, want 1, got %d", len(sent))
	}
	second := sent[0].(sable.DispatchSent).Dispatch.Message
	if want, got := sable.GenerateOutgoing(dispatch.Message.Id, 1), second.Id; want != got {
		t.Errorf("unexpected id of resumed message, want %v, got %v", want, got)
	}
	if want, got := "ack", string(second.Payload); want != got {
		t.Errorf("unexpected payload, want %q, got %q", want, got)
	}
}

func TestProcessor_GrowBeyondLimitIsReportedToProgram(t *testing.T) {
	p := newTestProcessor(t, DefaultConfig())
	actor := actorOf(examples.GetGrowerExample())
	journal := process(t, p, newDispatch(sable.Handle, actor, examples.EncodeArgument(1000)), actor)

	if want, got := sable.OutcomeSuccess, outcomeOf(t, journal); want != got {
		t.Fatalf("unexpected outcome, want %v, got %v", want, got)
	}
	sent := journal.Filter(sable.NoteDispatchSent)
	if len(sent) != 1 {
		t.Fatalf("unexpected number of sent messages, want 1, got %d", len(sent))
	}
	if want, got := examples.EncodeArgument(-1), sent[0].(sable.DispatchSent).Dispatch.Message.Payload; !bytes.Equal(want, got) {
		t.Errorf("unexpected reply, want %x, got %x", want, got)
	}
	if len(journal.Filter(sable.NoteAllocationsUpdated)) != 0 {
		t.Errorf("failed grow must not modify allocations")
	}
}

func TestProcessor_AllowanceExhaustionStopsProcessing(t *testing.T) {
	tests := map[string]sable.Gas{
		"before preparation": 10,
		"during execution":   50_000,
	}
	p := newTestProcessor(t, DefaultConfig())
	actor := actorOf(examples.GetGasBurnerExample())
	for name, allowance := range tests {
		t.Run(name, func(t *testing.T) {
			dispatch := newDispatch(sable.Handle, actor, examples.EncodeArgument(100))
			journal, err := p.Process(block, dispatch, actor, memoryStore{}, allowance)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			want := sable.Journal{sable.ProcessingStopped{MessageId: dispatch.Message.Id}}
			if !slices.Equal(want, journal) {
				t.Errorf("unexpected journal, want %v, got %v", want, journal)
			}
		})
	}
}

func TestProcessor_GasLimitWithinAllowanceTrapsInsteadOfStopping(t *testing.T) {
	p := newTestProcessor(t, DefaultConfig())
	actor := actorOf(examples.GetGasBurnerExample())
	dispatch := newDispatch(sable.Handle, actor, examples.EncodeArgument(-1))
	dispatch.GasLimit = 100_000
	journal, err := p.Process(block, dispatch, actor, memoryStore{}, dispatch.GasLimit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(journal.Filter(sable.NoteProcessingStopped)) != 0 {
		t.Fatalf("unexpected stop, journal %v", kinds(journal))
	}
	trap := journal.Filter(sable.NoteProgramTrapped)[0].(sable.ProgramTrapped).Trap
	if want, got := sable.TrapGasLimitExceeded, trap.Kind; want != got {
		t.Errorf("unexpected trap, want %v, got %v", want, got)
	}
}

func TestProcessor_GasLimitExhaustionTraps(t *testing.T) {
	tests := map[string]sable.Gas{
		"before preparation": 10,
		"during execution":   50_000,
	}
	p := newTestProcessor(t, DefaultConfig())
	actor := actorOf(examples.GetGasBurnerExample())
	for name, limit := range tests {
		t.Run(name, func(t *testing.T) {
			dispatch := newDispatch(sable.Handle, actor, examples.EncodeArgument(-1))
			dispatch.GasLimit = limit
			journal := process(t, p, dispatch, actor)

			burnt := journal[0].(sable.GasBurned).Amount
			if burnt > limit {
				t.Errorf("burnt more gas than available, limit %d, burnt %d", limit, burnt)
			}
			trap := journal.Filter(sable.NoteProgramTrapped)[0].(sable.ProgramTrapped).Trap
			if want, got := sable.TrapGasLimitExceeded, trap.Kind; want != got {
				t.Errorf("unexpected trap, want %v, got %v", want, got)
			}
		})
	}
}

func TestProcessor_NonExecutableDispatchesAreConsumed(t *testing.T) {
	example := examples.GetPingExample()
	tests := map[string]struct {
		kind   sable.DispatchKind
		modify func(*sable.ActorState)
	}{
		"terminated program": {
			kind:   sable.Handle,
			modify: func(a *sable.ActorState) { a.Terminated = true },
		},
		"repeated initialization": {
			kind:   sable.Init,
			modify: func(a *sable.ActorState) {},
		},
		"uninitialized program": {
			kind:   sable.Handle,
			modify: func(a *sable.ActorState) { a.Initialized = false },
		},
	}
	p := newTestProcessor(t, DefaultConfig())
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			actor := actorOf(example)
			test.modify(&actor)
			dispatch := newDispatch(test.kind, actor, nil)
			dispatch.Message.Value = sable.NewValue(5)
			journal := process(t, p, dispatch, actor)

			checkKinds(t, journal,
				sable.NoteValueSent,
				sable.NoteDispatchSent,
				sable.NoteMessageDispatched,
				sable.NoteMessageConsumed,
			)
			want := sable.ValueSent{From: source, To: source, Value: sable.NewValue(5)}
			if got := journal[0]; want != got {
				t.Errorf("unexpected value transfer, want %v, got %v", want, got)
			}
			if want, got := sable.OutcomeNoExecution, outcomeOf(t, journal); want != got {
				t.Errorf("unexpected outcome, want %v, got %v", want, got)
			}
		})
	}
}

func TestProcessor_ValueIsTransferredOnSuccessAndReturnedOnTrap(t *testing.T) {
	tests := map[string]struct {
		example examples.Example
		to      func(sable.ActorState) sable.ActorId
	}{
		"success": {
			example: examples.GetPingExample(),
			to:      func(a sable.ActorState) sable.ActorId { return a.Id },
		},
		"trap": {
			example: examples.GetOutOfBoundsExample(),
			to:      func(sable.ActorState) sable.ActorId { return source },
		},
	}
	p := newTestProcessor(t, DefaultConfig())
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			actor := actorOf(test.example)
			dispatch := newDispatch(sable.Handle, actor, nil)
			dispatch.Message.Value = sable.NewValue(7)
			journal := process(t, p, dispatch, actor)

			transfers := journal.Filter(sable.NoteValueSent)
			if len(transfers) != 1 {
				t.Fatalf("unexpected number of transfers, want 1, got %d", len(transfers))
			}
			want := sable.ValueSent{From: source, To: test.to(actor), Value: sable.NewValue(7)}
			if got := transfers[0]; want != got {
				t.Errorf("unexpected transfer, want %v, got %v", want, got)
			}
		})
	}
}

func TestProcessor_ExitTerminatesProgram(t *testing.T) {
	p := newTestProcessor(t, DefaultConfig())
	actor := actorOf(examples.GetExiterExample())
	journal := process(t, p, newDispatch(sable.Handle, actor, nil), actor)

	exits := journal.Filter(sable.NoteProgramExited)
	if len(exits) != 1 {
		t.Fatalf("unexpected number of exits, want 1, got %d", len(exits))
	}
	want := sable.ProgramExited{Program: actor.Id, Inheritor: source}
	if got := exits[0]; want != got {
		t.Errorf("unexpected exit, want %v, got %v", want, got)
	}
	if want, got := sable.OutcomeExit, outcomeOf(t, journal); want != got {
		t.Errorf("unexpected outcome, want %v, got %v", want, got)
	}
}

func TestProcessor_InitializationIsReported(t *testing.T) {
	p := newTestProcessor(t, DefaultConfig())
	ping := examples.GetPingExample()
	actor := ping.Actor()
	actor.Initialized = false
	journal := process(t, p, newDispatch(sable.Init, actor, nil), actor)

	checkKinds(t, journal,
		sable.NoteGasBurned,
		sable.NoteAllocationsUpdated,
		sable.NoteProgramInitialized,
		sable.NoteMessageDispatched,
		sable.NoteMessageConsumed,
	)
	allocations := journal[1].(sable.AllocationsUpdated)
	if want, got := sable.WasmPageNumber(1), allocations.MemoryPages; want != got {
		t.Errorf("unexpected memory size, want %d, got %d", want, got)
	}
	if want, got := sable.OutcomeInitSuccess, outcomeOf(t, journal); want != got {
		t.Errorf("unexpected outcome, want %v, got %v", want, got)
	}
}

func TestProcessor_FailedInitializationIsReported(t *testing.T) {
	p := newTestProcessor(t, DefaultConfig())
	actor := actorOf(examples.GetPanickerExample())
	actor.Initialized = false
	dispatch := newDispatch(sable.Init, actor, nil)
	// The panicker has an empty init function, so a gas limit below the
	// preparation costs is used to make the initialization fail.
	dispatch.GasLimit = 1
	journal := process(t, p, dispatch, actor)

	if want, got := sable.OutcomeInitFailure, outcomeOf(t, journal); want != got {
		t.Errorf("unexpected outcome, want %v, got %v", want, got)
	}
	if len(journal.Filter(sable.NoteProgramInitialized)) != 0 {
		t.Errorf("failed initialization must not mark program initialized")
	}
}

func TestProcessor_ProgramCreationIsReported(t *testing.T) {
	p := newTestProcessor(t, DefaultConfig())
	child := examples.GetPingExample()
	actor := actorOf(examples.GetSpawnerExample())
	codeId := child.CodeId()
	dispatch := newDispatch(sable.Handle, actor, codeId[:])
	journal := process(t, p, dispatch, actor)

	created := journal.Filter(sable.NoteProgramsCreated)
	if len(created) != 1 {
		t.Fatalf("unexpected number of creation notes, want 1, got %d", len(created))
	}
	candidates := created[0].(sable.ProgramsCreated).Candidates
	if len(candidates) != 1 {
		t.Fatalf("unexpected number of candidates, want 1, got %d", len(candidates))
	}
	wantProgram := sable.GenerateProgramId(codeId, dispatch.Message.Id[:])
	if want, got := wantProgram, candidates[0].Program; want != got {
		t.Errorf("unexpected program id, want %v, got %v", want, got)
	}
	sent := journal.Filter(sable.NoteDispatchSent)[0].(sable.DispatchSent).Dispatch
	if sent.Kind != sable.Init || sent.Message.Destination != wantProgram {
		t.Errorf("unexpected init dispatch: %v", sent)
	}
}

func TestProcessor_ModifiedPagesArePersisted(t *testing.T) {
	p := newTestProcessor(t, DefaultConfig())
	actor := actorOf(examples.GetCounterExample())
	store := memoryStore{}
	for i := 1; i <= 3; i++ {
		journal, err := p.Process(block, newDispatch(sable.Handle, actor, nil), actor, store, gasLimit)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		reply := journal.Filter(sable.NoteDispatchSent)[0].(sable.DispatchSent).Dispatch.Message
		if want, got := examples.EncodeArgument(i), reply.Payload; !bytes.Equal(want, got) {
			t.Errorf("unexpected count, want %x, got %x", want, got)
		}
		for _, note := range journal.Filter(sable.NotePagesUpdated) {
			for _, update := range note.(sable.PagesUpdated).Updates {
				store[update.Page] = update.Data
			}
		}
	}
}

func TestProcessor_OversizedMemoryIsTrapped(t *testing.T) {
	config := DefaultConfig()
	p := newTestProcessor(t, config)
	actor := actorOf(examples.GetPingExample())
	actor.MemoryPages = config.MaxPages + 1
	journal := process(t, p, newDispatch(sable.Handle, actor, nil), actor)

	trap := journal.Filter(sable.NoteProgramTrapped)[0].(sable.ProgramTrapped).Trap
	if want, got := sable.TrapMemoryLimitExceeded, trap.Kind; want != got {
		t.Errorf("unexpected trap, want %v, got %v", want, got)
	}
	if want, got := config.Costs.Preparation, journal[0].(sable.GasBurned).Amount; want != got {
		t.Errorf("unexpected burnt gas, want %d, got %d", want, got)
	}
}

func TestProcessor_MissingCodeIsFatal(t *testing.T) {
	p := newTestProcessor(t, DefaultConfig())
	actor := actorOf(examples.GetPingExample())
	actor.Code = nil
	_, err := p.Process(block, newDispatch(sable.Handle, actor, nil), actor, memoryStore{}, gasLimit)
	if !errors.Is(err, ErrMissingCode) || !sable.IsFatal(err) {
		t.Errorf("unexpected error, want fatal %v, got %v", ErrMissingCode, err)
	}
}

func TestProcessor_InterpreterErrorsAreFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	interpreter := sable.NewMockInterpreter(ctrl)
	injected := errors.New("injected")
	interpreter.EXPECT().Run(gomock.Any()).Return(sable.Result{}, injected)

	p := NewProcessor(interpreter, DefaultConfig())
	actor := actorOf(examples.GetPingExample())
	_, err := p.Process(block, newDispatch(sable.Handle, actor, nil), actor, memoryStore{}, gasLimit)
	if !errors.Is(err, injected) || !sable.IsFatal(err) {
		t.Errorf("unexpected error, want fatal %v, got %v", injected, err)
	}
}

func TestProcessor_InterpreterReceivesDispatchDetails(t *testing.T) {
	ctrl := gomock.NewController(t)
	interpreter := sable.NewMockInterpreter(ctrl)
	actor := actorOf(examples.GetPingExample())
	dispatch := newDispatch(sable.Handle, actor, []byte("hello"))

	interpreter.EXPECT().Run(gomock.Any()).DoAndReturn(func(params sable.Parameters) (sable.Result, error) {
		if want, got := "handle", params.EntryPoint; want != got {
			t.Errorf("unexpected entry point, want %s, got %s", want, got)
		}
		if want, got := actor.CodeId, params.CodeId; want != got {
			t.Errorf("unexpected code id, want %v, got %v", want, got)
		}
		if want, got := "hello", string(params.Context.Payload()); want != got {
			t.Errorf("unexpected payload, want %s, got %s", want, got)
		}
		if want, got := actor.Id, params.Context.ProgramId(); want != got {
			t.Errorf("unexpected program, want %v, got %v", want, got)
		}
		if want, got := actor.MemoryPages, params.Memory.Size(); want != got {
			t.Errorf("unexpected memory size, want %d, got %d", want, got)
		}
		return sable.Result{Termination: sable.TerminationReason{Kind: sable.TerminationLeave}}, nil
	})

	p := NewProcessor(interpreter, DefaultConfig())
	journal := process(t, p, dispatch, actor)
	if want, got := sable.OutcomeSuccess, outcomeOf(t, journal); want != got {
		t.Errorf("unexpected outcome, want %v, got %v", want, got)
	}
}

func TestProcessor_JournalsAreDeterministic(t *testing.T) {
	p := newTestProcessor(t, DefaultConfig())
	example := examples.GetArithmeticExample()
	actor := actorOf(example)
	r := rand.New(42)
	for i := 0; i < 10; i++ {
		dispatch := newDispatch(sable.Handle, actor, examples.EncodeArgument(r.Intn(100)))
		first, err := process(t, p, dispatch, actor).Hash()
		if err != nil {
			t.Fatalf("failed to hash journal: %v", err)
		}
		second, err := process(t, p, dispatch, actor).Hash()
		if err != nil {
			t.Fatalf("failed to hash journal: %v", err)
		}
		if first != second {
			t.Errorf("journals of equal dispatches differ: %x vs %x", first, second)
		}
	}
}

func TestProcessor_MetricsAreCollected(t *testing.T) {
	registry := prometheus.NewRegistry()
	config := DefaultConfig()
	config.Registerer = registry
	p := newTestProcessor(t, config)
	// A second processor shares the collectors of the first one.
	q := newTestProcessor(t, config)

	ping := actorOf(examples.GetPingExample())
	process(t, p, newDispatch(sable.Handle, ping, nil), ping)
	process(t, q, newDispatch(sable.Handle, ping, nil), ping)
	panicker := actorOf(examples.GetPanickerExample())
	process(t, p, newDispatch(sable.Handle, panicker, nil), panicker)

	if want, got := 2.0, testutil.ToFloat64(p.metrics.dispatches.WithLabelValues("success")); want != got {
		t.Errorf("unexpected number of successful dispatches, want %v, got %v", want, got)
	}
	if want, got := 1.0, testutil.ToFloat64(p.metrics.traps.WithLabelValues(sable.TrapPanic.String())); want != got {
		t.Errorf("unexpected number of traps, want %v, got %v", want, got)
	}
	if testutil.ToFloat64(p.metrics.gasBurned) == 0 {
		t.Errorf("burnt gas is not recorded")
	}
}

func TestProcessor_ValueIsHandedOverBeforeWaiting(t *testing.T) {
	p := newTestProcessor(t, DefaultConfig())
	actor := actorOf(examples.GetWaiterExample())
	dispatch := newDispatch(sable.Handle, actor, nil)
	dispatch.Message.Value = sable.NewValue(3)
	journal := process(t, p, dispatch, actor)

	checkKinds(t, journal,
		sable.NoteGasBurned,
		sable.NoteValueSent,
		sable.NoteWaitlistInserted,
	)

	// The resumed execution traps since the waiter has no reply handler.
	// The value stays with the program.
	resumed := journal[2].(sable.WaitlistInserted).Dispatch
	incoming := sable.IncomingDispatch{Dispatch: resumed.Dispatch, GasLimit: gasLimit, Context: resumed.Context}
	incoming.Kind = sable.Reply
	journal = process(t, p, incoming, actor)
	if len(journal.Filter(sable.NoteValueSent)) != 0 {
		t.Errorf("value of resumed message must not be transferred again: %v", kinds(journal))
	}
}
