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
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"golang.org/x/crypto/blake2b"
)

// Journal is the ordered list of state transition notes produced by one
// execution. It is the only channel through which an execution affects the
// ledger, which applies all notes of a journal atomically and in order.
type Journal []Note

// Note is a single state transition request of a journal. The set of notes
// is closed; all implementations are defined in this package.
type Note interface {
	Kind() NoteKind
	isNote()
}

// NoteKind enumerates the note variants.
type NoteKind byte

const (
	NoteMessageDispatched NoteKind = iota
	NoteGasBurned
	NoteMessageConsumed
	NoteDispatchSent
	NoteWaitlistInserted
	NoteMessageWoken
	NotePagesUpdated
	NoteAllocationsUpdated
	NoteValueSent
	NoteProgramTrapped
	NoteProgramExited
	NoteProgramInitialized
	NoteProgramsCreated
	NoteProcessingStopped
)

func (k NoteKind) String() string {
	switch k {
	case NoteMessageDispatched:
		return "MessageDispatched"
	case NoteGasBurned:
		return "GasBurned"
	case NoteMessageConsumed:
		return "MessageConsumed"
	case NoteDispatchSent:
		return "DispatchSent"
	case NoteWaitlistInserted:
		return "WaitlistInserted"
	case NoteMessageWoken:
		return "MessageWoken"
	case NotePagesUpdated:
		return "PagesUpdated"
	case NoteAllocationsUpdated:
		return "AllocationsUpdated"
	case NoteValueSent:
		return "ValueSent"
	case NoteProgramTrapped:
		return "ProgramTrapped"
	case NoteProgramExited:
		return "ProgramExited"
	case NoteProgramInitialized:
		return "ProgramInitialized"
	case NoteProgramsCreated:
		return "ProgramsCreated"
	case NoteProcessingStopped:
		return "ProcessingStopped"
	default:
		return fmt.Sprintf("NoteKind(%d)", byte(k))
	}
}

// DispatchOutcome summarizes the result of processing a dispatch.
type DispatchOutcome byte

const (
	OutcomeSuccess DispatchOutcome = iota
	OutcomeInitSuccess
	OutcomeInitFailure
	OutcomeTrap
	OutcomeExit
	OutcomeNoExecution
)

func (o DispatchOutcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeInitSuccess:
		return "init success"
	case OutcomeInitFailure:
		return "init failure"
	case OutcomeTrap:
		return "trap"
	case OutcomeExit:
		return "exit"
	case OutcomeNoExecution:
		return "no execution"
	default:
		return fmt.Sprintf("DispatchOutcome(%d)", byte(o))
	}
}

// MessageDispatched reports that a dispatch has been processed.
type MessageDispatched struct {
	MessageId MessageId
	Source    ActorId
	Program   ActorId
	Outcome   DispatchOutcome
}

// GasBurned reports the gas consumed by processing a message.
type GasBurned struct {
	MessageId MessageId
	Amount    Gas
}

// MessageConsumed retires a message. It is never reported for messages
// moved to the waitlist.
type MessageConsumed struct {
	MessageId MessageId
}

// DispatchSent enqueues a dispatch generated while processing a message.
type DispatchSent struct {
	Origin   MessageId
	Dispatch Dispatch
}

// WaitlistInserted suspends a dispatch until it is woken or expires. The
// ledger has to arm a scheduler task due at ExpiresAt.
type WaitlistInserted struct {
	Dispatch     StoredDispatch
	ExpiresAt    uint64
	WakeOnExpiry bool // < wake on expiry instead of removing the dispatch
}

// MessageWoken moves a message from the program's waitlist back to the queue.
type MessageWoken struct {
	Origin    MessageId
	Program   ActorId
	Awakening MessageId
}

// PagesUpdated persists modified pages and removes freed pages.
type PagesUpdated struct {
	Program ActorId
	Updates []PageUpdate // < sorted by page number
	Removed []PageNumber // < sorted
}

// AllocationsUpdated replaces the set of dynamically allocated pages and the
// size of a program's memory.
type AllocationsUpdated struct {
	Program     ActorId
	MemoryPages WasmPageNumber
	Allocations []WasmPageNumber // < sorted
}

// ValueSent transfers value between actors.
type ValueSent struct {
	From  ActorId
	To    ActorId
	Value Value
}

// ProgramTrapped reports a trap raised while processing a message.
type ProgramTrapped struct {
	Program   ActorId
	MessageId MessageId
	Trap      TrapExplanation
}

// ProgramExited terminates a program and transfers its balance to the
// inheritor.
type ProgramExited struct {
	Program   ActorId
	Inheritor ActorId
}

// ProgramInitialized marks a program as successfully initialized.
type ProgramInitialized struct {
	Program ActorId
}

// ProgramsCreated requests the creation of new programs. Their init
// messages are part of the same journal.
type ProgramsCreated struct {
	Origin     MessageId
	Candidates []ProgramCandidate
}

// ProcessingStopped reports that the block's gas allowance was exhausted.
// The dispatch has to be put back to the head of the queue unconsumed and
// no further dispatches should be processed in this block.
type ProcessingStopped struct {
	MessageId MessageId
}

func (MessageDispatched) Kind() NoteKind  { return NoteMessageDispatched }
func (GasBurned) Kind() NoteKind          { return NoteGasBurned }
func (MessageConsumed) Kind() NoteKind    { return NoteMessageConsumed }
func (DispatchSent) Kind() NoteKind       { return NoteDispatchSent }
func (WaitlistInserted) Kind() NoteKind   { return NoteWaitlistInserted }
func (MessageWoken) Kind() NoteKind       { return NoteMessageWoken }
func (PagesUpdated) Kind() NoteKind       { return NotePagesUpdated }
func (AllocationsUpdated) Kind() NoteKind { return NoteAllocationsUpdated }
func (ValueSent) Kind() NoteKind          { return NoteValueSent }
func (ProgramTrapped) Kind() NoteKind     { return NoteProgramTrapped }
func (ProgramExited) Kind() NoteKind      { return NoteProgramExited }
func (ProgramInitialized) Kind() NoteKind { return NoteProgramInitialized }
func (ProgramsCreated) Kind() NoteKind    { return NoteProgramsCreated }
func (ProcessingStopped) Kind() NoteKind  { return NoteProcessingStopped }

func (MessageDispatched) isNote()  {}
func (GasBurned) isNote()          {}
func (MessageConsumed) isNote()    {}
func (DispatchSent) isNote()       {}
func (WaitlistInserted) isNote()   {}
func (MessageWoken) isNote()       {}
func (PagesUpdated) isNote()       {}
func (AllocationsUpdated) isNote() {}
func (ValueSent) isNote()          {}
func (ProgramTrapped) isNote()     {}
func (ProgramExited) isNote()      {}
func (ProgramInitialized) isNote() {}
func (ProgramsCreated) isNote()    {}
func (ProcessingStopped) isNote()  {}

// Encode produces the canonical binary encoding of the journal. Equal
// journals have equal encodings.
func (j Journal) Encode() ([]byte, error) {
	entries := make([]any, 0, len(j))
	for i, note := range j {
		if note == nil {
			return nil, fmt.Errorf("nil note at position %d", i)
		}
		entries = append(entries, []any{uint8(note.Kind()), note})
	}
	return rlp.EncodeToBytes(entries)
}

// Hash computes the digest of the journal's canonical encoding.
func (j Journal) Hash() ([32]byte, error) {
	data, err := j.Encode()
	if err != nil {
		return [32]byte{}, err
	}
	return blake2b.Sum256(data), nil
}

// Filter returns all notes of the given kind in journal order.
func (j Journal) Filter(kind NoteKind) Journal {
	var res Journal
	for _, note := range j {
		if note.Kind() == kind {
			res = append(res, note)
		}
	}
	return res
}

func (j Journal) MarshalJSON() ([]byte, error) {
	type entry struct {
		Kind string `json:"kind"`
		Note Note   `json:"note"`
	}
	entries := make([]entry, 0, len(j))
	for _, note := range j {
		entries = append(entries, entry{Kind: note.Kind().String(), Note: note})
	}
	return json.Marshal(entries)
}
