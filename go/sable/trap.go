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

import "fmt"

// TrapKind classifies the cause of a trapped execution.
type TrapKind byte

const (
	TrapUnknown TrapKind = iota
	TrapGasLimitExceeded
	TrapMemoryAccess
	TrapUnreachable
	TrapPanic
	TrapIllegalInstruction
	TrapStackOverflow
	TrapForbiddenFunction
	TrapInvalidEntryPoint
	TrapMemoryLimitExceeded
	TrapNotExecutable
	TrapArithmetic
	numTrapKinds int = iota
)

func (k TrapKind) String() string {
	switch k {
	case TrapUnknown:
		return "unknown"
	case TrapGasLimitExceeded:
		return "gas limit exceeded"
	case TrapMemoryAccess:
		return "memory access"
	case TrapUnreachable:
		return "unreachable"
	case TrapPanic:
		return "panic"
	case TrapIllegalInstruction:
		return "illegal instruction"
	case TrapStackOverflow:
		return "stack overflow"
	case TrapForbiddenFunction:
		return "forbidden function"
	case TrapInvalidEntryPoint:
		return "invalid entry point"
	case TrapMemoryLimitExceeded:
		return "memory limit exceeded"
	case TrapNotExecutable:
		return "not executable"
	case TrapArithmetic:
		return "arithmetic"
	default:
		return fmt.Sprintf("TrapKind(%d)", byte(k))
	}
}

// TrapExplanation describes why an execution was trapped.
type TrapExplanation struct {
	Kind    TrapKind
	Message string
}

func (t TrapExplanation) String() string {
	if t.Message == "" {
		return t.Kind.String()
	}
	return fmt.Sprintf("%v: %s", t.Kind, t.Message)
}

// TerminationKind is an enum of the ways an execution can end.
type TerminationKind byte

const (
	TerminationSuccess TerminationKind = iota
	TerminationExit
	TerminationLeave
	TerminationWait
	TerminationTrap
	TerminationAllowanceExceeded
)

func (k TerminationKind) String() string {
	switch k {
	case TerminationSuccess:
		return "success"
	case TerminationExit:
		return "exit"
	case TerminationLeave:
		return "leave"
	case TerminationWait:
		return "wait"
	case TerminationTrap:
		return "trap"
	case TerminationAllowanceExceeded:
		return "allowance exceeded"
	default:
		return fmt.Sprintf("TerminationKind(%d)", byte(k))
	}
}

// WaitKind distinguishes the wait requests a program can make.
type WaitKind byte

const (
	// WaitDefault suspends until woken, bounded by the default timeout.
	WaitDefault WaitKind = iota
	// WaitFor suspends until woken, bounded by an explicit timeout.
	WaitFor
	// WaitUpTo suspends at most for the given duration, after which the
	// message is woken even if nobody else woke it.
	WaitUpTo
)

// TerminationReason describes how an execution ended.
type TerminationReason struct {
	Kind      TerminationKind
	Inheritor ActorId         // < only for TerminationExit
	Wait      WaitKind        // < only for TerminationWait
	Duration  uint32          // < only for TerminationWait, in blocks
	Trap      TrapExplanation // < only for TerminationTrap
}

func (r TerminationReason) String() string {
	switch r.Kind {
	case TerminationExit:
		return fmt.Sprintf("exit(%v)", r.Inheritor)
	case TerminationWait:
		return fmt.Sprintf("wait(%d)", r.Duration)
	case TerminationTrap:
		return fmt.Sprintf("trap(%v)", r.Trap)
	default:
		return r.Kind.String()
	}
}
