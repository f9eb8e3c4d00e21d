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
	"strings"
	"testing"
)

func exampleJournal() Journal {
	gas := Gas(1000)
	return Journal{
		GasBurned{MessageId: MessageId{1}, Amount: 300},
		DispatchSent{
			Origin: MessageId{1},
			Dispatch: Dispatch{
				Kind: Reply,
				Message: Message{
					Id:          GenerateReply(MessageId{1}, 0),
					Source:      ActorId{2},
					Destination: ActorId{3},
					Payload:     Payload("pong"),
					GasLimit:    &gas,
					Reply:       &ReplyDetails{ReplyTo: MessageId{1}, ExitCode: -1},
				},
			},
		},
		WaitlistInserted{
			Dispatch: StoredDispatch{
				Dispatch: Dispatch{Kind: Handle, Message: Message{Id: MessageId{1}}},
				Context:  &ContextStore{Nonce: 2, Outgoing: []OutgoingEntry{{Handle: 1, Committed: true}}},
			},
			ExpiresAt: 42,
		},
		PagesUpdated{Program: ActorId{2}, Updates: []PageUpdate{{Page: 3, Data: []byte{1, 2}}}},
		ProgramTrapped{Program: ActorId{2}, MessageId: MessageId{1}, Trap: TrapExplanation{Kind: TrapPanic, Message: "oops"}},
		MessageDispatched{MessageId: MessageId{1}, Outcome: OutcomeTrap},
		MessageConsumed{MessageId: MessageId{1}},
	}
}

func TestJournal_EncodingIsDeterministic(t *testing.T) {
	a, err := exampleJournal().Encode()
	if err != nil {
		t.Fatalf("failed to encode journal: %v", err)
	}
	b, err := exampleJournal().Encode()
	if err != nil {
		t.Fatalf("failed to encode journal: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("encodings of equal journals differ")
	}
}

func TestJournal_EncodingDistinguishesJournals(t *testing.T) {
	base := exampleJournal()
	tests := map[string]func(Journal) Journal{
		"reordered": func(j Journal) Journal {
			j[0], j[1] = j[1], j[0]
			return j
		},
		"missing gas limit": func(j Journal) Journal {
			sent := j[1].(DispatchSent)
			sent.Dispatch.Message.GasLimit = nil
			j[1] = sent
			return j
		},
		"zero gas limit": func(j Journal) Journal {
			sent := j[1].(DispatchSent)
			zero := Gas(0)
			sent.Dispatch.Message.GasLimit = &zero
			j[1] = sent
			return j
		},
		"different exit code": func(j Journal) Journal {
			sent := j[1].(DispatchSent)
			sent.Dispatch.Message.Reply = &ReplyDetails{ReplyTo: MessageId{1}, ExitCode: 1}
			j[1] = sent
			return j
		},
		"without context": func(j Journal) Journal {
			inserted := j[2].(WaitlistInserted)
			inserted.Dispatch.Context = nil
			j[2] = inserted
			return j
		},
	}

	want, err := base.Hash()
	if err != nil {
		t.Fatalf("failed to hash journal: %v", err)
	}
	for name, modify := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := modify(exampleJournal()).Hash()
			if err != nil {
				t.Fatalf("failed to hash journal: %v", err)
			}
			if want == got {
				t.Errorf("modified journal has the same hash as the original")
			}
		})
	}
}

func TestJournal_EncodeRejectsNilNotes(t *testing.T) {
	if _, err := (Journal{nil}).Encode(); err == nil {
		t.Errorf("expected error for nil note")
	}
}

func TestJournal_Filter(t *testing.T) {
	journal := exampleJournal()
	if want, got := 1, len(journal.Filter(NoteDispatchSent)); want != got {
		t.Errorf("unexpected number of notes, want %d, got %d", want, got)
	}
	if got := journal.Filter(NoteProgramExited); len(got) != 0 {
		t.Errorf("unexpected notes: %v", got)
	}
}

func TestJournal_JsonContainsNoteKinds(t *testing.T) {
	data, err := json.Marshal(exampleJournal())
	if err != nil {
		t.Fatalf("failed to marshal journal: %v", err)
	}
	for _, kind := range []string{"GasBurned", "DispatchSent", "WaitlistInserted", "MessageConsumed"} {
		if !strings.Contains(string(data), kind) {
			t.Errorf("missing %s in %s", kind, data)
		}
	}
}
