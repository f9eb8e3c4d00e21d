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
	"slices"
)

// ContextStore captures the state of a message context across a wait. A
// resumed execution continues numbering and budget accounting of outgoing
// messages where the suspended one left off.
type ContextStore struct {
	Nonce        uint32          // < next handle for outgoing messages
	Outgoing     []OutgoingEntry // < ordered by handle
	ReplyPayload []byte          // < partial reply payload
	ReplySent    bool
	Initialized  []ActorId   // < programs created by this dispatch
	Awaken       []MessageId // < messages woken by this dispatch
	SentBytes    uint64      // < cumulative payload size of sent messages
}

// OutgoingEntry tracks an outgoing message handle. Pending entries collect
// payload fragments until they get committed.
type OutgoingEntry struct {
	Handle    uint32
	Payload   []byte
	Committed bool
}

// Clone creates a deep copy of the store.
func (s *ContextStore) Clone() *ContextStore {
	if s == nil {
		return nil
	}
	res := &ContextStore{
		Nonce:        s.Nonce,
		Outgoing:     make([]OutgoingEntry, len(s.Outgoing)),
		ReplyPayload: bytes.Clone(s.ReplyPayload),
		ReplySent:    s.ReplySent,
		Initialized:  slices.Clone(s.Initialized),
		Awaken:       slices.Clone(s.Awaken),
		SentBytes:    s.SentBytes,
	}
	for i, entry := range s.Outgoing {
		res.Outgoing[i] = OutgoingEntry{
			Handle:    entry.Handle,
			Payload:   bytes.Clone(entry.Payload),
			Committed: entry.Committed,
		}
	}
	return res
}

// ContextOutcome is the read-only result of a message context handed to the
// processor once an execution has ended.
type ContextOutcome struct {
	Generated   []Dispatch // < in emission order
	Awakening   []MessageId
	NewPrograms []ProgramCandidate
}
