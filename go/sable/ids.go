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
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// ActorId identifies a deployed program or an external user account.
type ActorId [32]byte

// MessageId identifies a single message. Ids of messages produced by programs
// are derived deterministically from the id of the message being processed.
type MessageId [32]byte

// CodeId is the content hash of a program's code.
type CodeId [32]byte

// Domain separators for derived identifiers.
const (
	outgoingSalt = "outgoing"
	replySalt    = "reply"
	programSalt  = "program"
)

// GenerateOutgoing derives the id of the nonce-th message sent while
// processing the message with the given origin id.
func GenerateOutgoing(origin MessageId, nonce uint32) MessageId {
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], nonce)
	return MessageId(hash([]byte(outgoingSalt), origin[:], n[:]))
}

// GenerateReply derives the id of the reply to the message with the given
// origin id. At most one reply exists per message.
func GenerateReply(origin MessageId, exitCode int32) MessageId {
	var c [4]byte
	binary.LittleEndian.PutUint32(c[:], uint32(exitCode))
	return MessageId(hash([]byte(replySalt), origin[:], c[:]))
}

// GenerateProgramId derives the id of a program created from the given code
// using the given salt.
func GenerateProgramId(code CodeId, salt []byte) ActorId {
	return ActorId(hash([]byte(programSalt), code[:], salt))
}

// GenerateCodeId computes the id of the given code.
func GenerateCodeId(code []byte) CodeId {
	return CodeId(blake2b.Sum256(code))
}

func hash(parts ...[]byte) [32]byte {
	hasher, _ := blake2b.New256(nil) // only fails for invalid keys
	for _, part := range parts {
		hasher.Write(part)
	}
	var res [32]byte
	copy(res[:], hasher.Sum(nil))
	return res
}

func (a ActorId) String() string {
	return fmt.Sprintf("0x%x", a[:])
}

func (a ActorId) IsZero() bool {
	return a == ActorId{}
}

func (a ActorId) Less(o ActorId) bool {
	return bytes.Compare(a[:], o[:]) < 0
}

func (a ActorId) MarshalText() ([]byte, error) {
	return bytesToText(a[:])
}

func (a *ActorId) UnmarshalText(data []byte) error {
	return textToBytes(a[:], data)
}

func (m MessageId) String() string {
	return fmt.Sprintf("0x%x", m[:])
}

func (m MessageId) Less(o MessageId) bool {
	return bytes.Compare(m[:], o[:]) < 0
}

func (m MessageId) MarshalText() ([]byte, error) {
	return bytesToText(m[:])
}

func (m *MessageId) UnmarshalText(data []byte) error {
	return textToBytes(m[:], data)
}

func (c CodeId) String() string {
	return fmt.Sprintf("0x%x", c[:])
}

func (c CodeId) MarshalText() ([]byte, error) {
	return bytesToText(c[:])
}

func (c *CodeId) UnmarshalText(data []byte) error {
	return textToBytes(c[:], data)
}

func bytesToText(data []byte) ([]byte, error) {
	return []byte(fmt.Sprintf("0x%x", data)), nil
}

func textToBytes(trg []byte, data []byte) error {
	s := string(data)
	if !strings.HasPrefix(s, "0x") {
		return fmt.Errorf("invalid format, does not start with 0x: %v", s)
	}
	data, err := hex.DecodeString(s[2:])
	if err != nil {
		return err
	}
	if want, got := len(trg), len(data); want != got {
		return fmt.Errorf("invalid format, wanted %d bytes, got %d", want, got)
	}
	copy(trg[:], data)
	return nil
}
