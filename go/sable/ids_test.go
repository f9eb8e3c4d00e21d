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
	"testing"
)

func TestGenerateOutgoing_IsDeterministicAndNonceSensitive(t *testing.T) {
	origin := MessageId{1, 2, 3}
	if GenerateOutgoing(origin, 7) != GenerateOutgoing(origin, 7) {
		t.Errorf("message id generation is not deterministic")
	}
	seen := map[MessageId]bool{}
	for nonce := uint32(0); nonce < 100; nonce++ {
		id := GenerateOutgoing(origin, nonce)
		if seen[id] {
			t.Fatalf("duplicate message id for nonce %d", nonce)
		}
		seen[id] = true
	}
	if GenerateOutgoing(origin, 0) == GenerateOutgoing(MessageId{4}, 0) {
		t.Errorf("different origins should produce different ids")
	}
}

func TestGenerateReply_DiffersFromOutgoing(t *testing.T) {
	origin := MessageId{1}
	if GenerateReply(origin, 0) == GenerateOutgoing(origin, 0) {
		t.Errorf("reply and outgoing ids must be distinct")
	}
	if GenerateReply(origin, 0) == GenerateReply(origin, 1) {
		t.Errorf("reply ids should depend on the exit code")
	}
}

func TestGenerateProgramId_DependsOnCodeAndSalt(t *testing.T) {
	code := GenerateCodeId([]byte{0, 'a', 's', 'm'})
	a := GenerateProgramId(code, []byte("salt"))
	b := GenerateProgramId(code, []byte("pepper"))
	if a == b {
		t.Errorf("salt should affect program ids")
	}
	if a != GenerateProgramId(code, []byte("salt")) {
		t.Errorf("program id generation is not deterministic")
	}
}

func TestActorId_TextRoundTrip(t *testing.T) {
	id := ActorId{0xAB, 0xCD}
	data, err := json.Marshal(id)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	var restored ActorId
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if restored != id {
		t.Errorf("unexpected id, want %v, got %v", id, restored)
	}
}

func TestActorId_UnmarshalRejectsInvalidInput(t *testing.T) {
	tests := map[string]string{
		"missing prefix": "abcd",
		"invalid hex":    "0xzz",
		"too short":      "0x0102",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			var id ActorId
			if err := id.UnmarshalText([]byte(input)); err == nil {
				t.Errorf("expected error for %q", input)
			}
		})
	}
}

func TestIds_AreTotallyOrdered(t *testing.T) {
	a, b := ActorId{1}, ActorId{2}
	if !a.Less(b) || b.Less(a) || a.Less(a) {
		t.Errorf("unexpected order of actor ids")
	}
	m, n := MessageId{0, 1}, MessageId{1, 0}
	if !m.Less(n) || n.Less(m) {
		t.Errorf("unexpected order of message ids")
	}
}
