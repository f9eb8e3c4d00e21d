// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package processor

import (
	"bytes"
	"encoding/binary"
	"slices"
	"testing"

	"github.com/Fantom-foundation/Sable/go/examples"
	"github.com/Fantom-foundation/Sable/go/ledger"
	"github.com/Fantom-foundation/Sable/go/sable"
)

// Scenario represents a test scenario for a dispatch processor. A scenario
// consists of a program and its persisted pages, a dispatch to be processed,
// and the expected effects reported by the journal.
type Scenario struct {
	Program       examples.Example
	Uninitialized bool
	Pages         map[sable.PageNumber][]byte
	Kind          sable.DispatchKind
	Payload       []byte
	Value         sable.Value
	GasLimit      sable.Gas // < zero for the default of the scenario
	Allowance     sable.Gas // < zero for an unlimited allowance

	Outcome *sable.DispatchOutcome // < nil if no dispatch is expected to complete
	Waiting bool
	Stopped bool
	Trap    *sable.TrapKind
	Sent    [][]byte // < prefixes of the payloads of sent dispatches
	Values  []sable.ValueSent
}

const defaultGasLimit = sable.Gas(1 << 34)

var source = sable.ActorId{1}

func (s *Scenario) Run(t *testing.T, processor sable.Processor) {
	t.Helper()
	actor := s.Program.Actor()
	actor.Initialized = !s.Uninitialized

	store := ledger.NewMemoryPageStore()
	for page, data := range s.Pages {
		if err := store.WritePage(actor.Id, page, data); err != nil {
			t.Fatalf("failed to prepare page %d: %v", page, err)
		}
	}

	gasLimit := s.GasLimit
	if gasLimit == 0 {
		gasLimit = defaultGasLimit
	}
	allowance := s.Allowance
	if allowance == 0 {
		allowance = sable.Gas(1 << 62)
	}
	dispatch := sable.IncomingDispatch{
		Dispatch: sable.Dispatch{
			Kind: s.Kind,
			Message: sable.Message{
				Id:          sable.GenerateOutgoing(sable.MessageId(source), 0),
				Source:      source,
				Destination: actor.Id,
				Payload:     s.Payload,
				Value:       s.Value,
			},
		},
		GasLimit: gasLimit,
	}
	if s.Kind == sable.Reply || s.Kind == sable.Signal {
		dispatch.Message.Reply = &sable.ReplyDetails{ReplyTo: sable.MessageId{42}}
	}

	journal, err := processor.Process(sable.BlockInfo{Height: 1}, dispatch, actor, store, allowance)
	if err != nil {
		t.Fatalf("failed to process dispatch: %v", err)
	}

	var (
		outcome *sable.DispatchOutcome
		trap    *sable.TrapKind
		waiting bool
		stopped bool
		sent    [][]byte
		values  []sable.ValueSent
		burned  sable.Gas
	)
	for _, note := range journal {
		switch note := note.(type) {
		case sable.MessageDispatched:
			outcome = &note.Outcome
		case sable.ProgramTrapped:
			trap = &note.Trap.Kind
		case sable.WaitlistInserted:
			waiting = true
		case sable.ProcessingStopped:
			stopped = true
		case sable.DispatchSent:
			sent = append(sent, note.Dispatch.Message.Payload)
		case sable.ValueSent:
			values = append(values, note)
		case sable.GasBurned:
			burned += note.Amount
		}
	}

	if want, got := s.Outcome, outcome; (want == nil) != (got == nil) || (want != nil && *want != *got) {
		t.Errorf("unexpected outcome, want %v, got %v", describe(want), describe(got))
	}
	if want, got := s.Trap, trap; (want == nil) != (got == nil) || (want != nil && *want != *got) {
		t.Errorf("unexpected trap, want %v, got %v", describe(want), describe(got))
	}
	if want, got := s.Waiting, waiting; want != got {
		t.Errorf("unexpected waiting state, want %t, got %t", want, got)
	}
	if want, got := s.Stopped, stopped; want != got {
		t.Errorf("unexpected stop, want %t, got %t", want, got)
	}
	if want, got := s.Sent, sent; !slices.EqualFunc(want, got, isPrefix) {
		t.Errorf("unexpected sent payloads, want %q, got %q", want, got)
	}
	if want, got := s.Values, values; !slices.Equal(want, got) {
		t.Errorf("unexpected value transfers, want %v, got %v", want, got)
	}
	if burned > gasLimit {
		t.Errorf("gas burned exceeds limit, limit %d, burned %d", gasLimit, burned)
	}
	if !stopped && burned > allowance {
		t.Errorf("gas burned exceeds allowance, allowance %d, burned %d", allowance, burned)
	}
}

func isPrefix(prefix, payload []byte) bool {
	return bytes.HasPrefix(payload, prefix)
}

func describe[T any](value *T) any {
	if value == nil {
		return "none"
	}
	return *value
}

// page creates the content of a storage page holding the given little-endian
// encoded word at the given offset.
func page(offset int, word uint32) []byte {
	res := make([]byte, sable.PageSize)
	binary.LittleEndian.PutUint32(res[offset:], word)
	return res
}
