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
	"errors"
	"fmt"
)

// ConstError is a error type that can be used to define immutable
// error constants.
type ConstError string

func (e ConstError) Error() string {
	return string(e)
}

const (
	// ErrOutOfBounds is raised by memory accesses beyond the current size of
	// an actor's memory. It terminates the execution with a memory trap.
	ErrOutOfBounds = ConstError("memory access out of bounds")

	// ErrGrowLimitExceeded is returned to the program if a memory grow request
	// would exceed the configured maximum number of pages.
	ErrGrowLimitExceeded = ConstError("memory grow limit exceeded")

	// ErrInvalidFree is returned to the program when freeing a page that was
	// not dynamically allocated.
	ErrInvalidFree = ConstError("invalid free of memory page")
)

// Halt is an error signalling that an execution has to be stopped with the
// given termination reason. It is produced by host functions (exit, wait,
// out-of-gas, ...) and by interpreters encountering traps.
type Halt struct {
	Reason TerminationReason
}

func (h *Halt) Error() string {
	return fmt.Sprintf("execution halted: %v", h.Reason)
}

// HaltWithTrap creates a halt error terminating the execution with a trap of
// the given kind.
func HaltWithTrap(kind TrapKind, message string) *Halt {
	return &Halt{Reason: TerminationReason{
		Kind: TerminationTrap,
		Trap: TrapExplanation{Kind: kind, Message: message},
	}}
}

// TerminationFromError classifies an error raised during the execution of a
// program. The second result is false if the error does not describe a
// termination of the program but an internal issue that has to be reported
// as a fatal error.
func TerminationFromError(err error) (TerminationReason, bool) {
	var halt *Halt
	if errors.As(err, &halt) {
		return halt.Reason, true
	}
	if errors.Is(err, ErrOutOfBounds) {
		return TerminationReason{
			Kind: TerminationTrap,
			Trap: TrapExplanation{Kind: TrapMemoryAccess, Message: err.Error()},
		}, true
	}
	return TerminationReason{}, false
}

// FatalError marks errors that invalidate the processing of a whole block.
// They indicate that the execution model itself is unsound (gas accounting
// overflows, corrupted page data, missing code), not that an individual
// program misbehaved.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %v", e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal wraps the given error into a FatalError. Nil errors and errors that
// are already fatal are returned unchanged.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	var fatal *FatalError
	if errors.As(err, &fatal) {
		return err
	}
	return &FatalError{Err: err}
}

// IsFatal reports whether the given error is or wraps a FatalError.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}
