// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package hostabi

import (
	"errors"

	"github.com/Fantom-foundation/Sable/go/gas"
	"github.com/Fantom-foundation/Sable/go/message"
	"github.com/Fantom-foundation/Sable/go/sable"
)

const (
	// ErrPayloadOutOfRange is reported when reading beyond the end of the
	// payload of the current message.
	ErrPayloadOutOfRange = sable.ConstError("read beyond end of payload")
	// ErrNoReplyContext is reported when requesting reply details while not
	// processing a reply.
	ErrNoReplyContext = sable.ConstError("not processing a reply")
)

// ErrorCode is the value returned to programs for failed host calls. Codes
// are part of the stable ABI and must never be renumbered.
type ErrorCode uint32

const (
	CodeOk ErrorCode = iota
	CodeLimitExceeded
	CodeDuplicateReply
	CodeDuplicateWaking
	CodeLateAccess
	CodeInvalidHandle
	CodeDuplicateInit
	CodeNotEnoughValue
	CodeInsufficientValue
	CodeReplyForbidden
	CodeInvalidDestination
	CodeGrowLimitExceeded
	CodeInvalidFree
	CodePayloadOutOfRange
	CodeNoReplyContext
	CodeNotEnoughGas
)

var errorCodes = []struct {
	err  error
	code ErrorCode
}{
	{message.ErrLimitExceeded, CodeLimitExceeded},
	{message.ErrDuplicateReply, CodeDuplicateReply},
	{message.ErrDuplicateWaking, CodeDuplicateWaking},
	{message.ErrLateAccess, CodeLateAccess},
	{message.ErrOutOfBounds, CodeInvalidHandle},
	{message.ErrDuplicateInit, CodeDuplicateInit},
	{message.ErrNotEnoughValue, CodeNotEnoughValue},
	{message.ErrInsufficientValue, CodeInsufficientValue},
	{message.ErrReplyForbidden, CodeReplyForbidden},
	{message.ErrInvalidDestination, CodeInvalidDestination},
	{sable.ErrGrowLimitExceeded, CodeGrowLimitExceeded},
	{sable.ErrInvalidFree, CodeInvalidFree},
	{ErrPayloadOutOfRange, CodePayloadOutOfRange},
	{ErrNoReplyContext, CodeNoReplyContext},
	{gas.ErrGasExceeded, CodeNotEnoughGas},
}

// ErrorCodeOf maps user errors to the code reported to the program. The
// second result is false if the given error is not a user error.
func ErrorCodeOf(err error) (ErrorCode, bool) {
	if err == nil {
		return CodeOk, true
	}
	// Halts and fatal errors wrap other errors but must never be reported
	// to the program.
	var halt *sable.Halt
	if errors.As(err, &halt) || sable.IsFatal(err) {
		return 0, false
	}
	for _, entry := range errorCodes {
		if errors.Is(err, entry.err) {
			return entry.code, true
		}
	}
	return 0, false
}

// status converts the outcome of an effect into the value returned to the
// program. Errors other than user errors are passed on.
func status(err error) (uint64, error) {
	code, ok := ErrorCodeOf(err)
	if !ok {
		return 0, err
	}
	return uint64(code), nil
}
