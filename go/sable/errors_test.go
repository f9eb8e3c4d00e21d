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
	"testing"
)

func TestConstError_Error(t *testing.T) {
	const myError = ConstError("this is a constant error")

	if myError.Error() != "this is a constant error" {
		t.Errorf("expected 'this is a constant error', got '%s'", myError.Error())
	}
	if !errors.Is(myError, ConstError("this is a constant error")) {
		t.Errorf("expected true, got false")
	}
}

func TestTerminationFromError_ClassifiesErrors(t *testing.T) {
	tests := map[string]struct {
		err      error
		expected TerminationReason
		ok       bool
	}{
		"halt": {
			err:      &Halt{Reason: TerminationReason{Kind: TerminationLeave}},
			expected: TerminationReason{Kind: TerminationLeave},
			ok:       true,
		},
		"wrapped halt": {
			err:      fmt.Errorf("in host call: %w", HaltWithTrap(TrapPanic, "boom")),
			expected: TerminationReason{Kind: TerminationTrap, Trap: TrapExplanation{Kind: TrapPanic, Message: "boom"}},
			ok:       true,
		},
		"out of bounds": {
			err:      ErrOutOfBounds,
			expected: TerminationReason{Kind: TerminationTrap, Trap: TrapExplanation{Kind: TrapMemoryAccess, Message: ErrOutOfBounds.Error()}},
			ok:       true,
		},
		"other": {
			err: fmt.Errorf("disk on fire"),
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got, ok := TerminationFromError(test.err)
			if want, got := test.ok, ok; want != got {
				t.Fatalf("unexpected classification result, want %t, got %t", want, got)
			}
			if !ok {
				return
			}
			if want := test.expected; want != got {
				t.Errorf("unexpected termination, want %v, got %v", want, got)
			}
		})
	}
}

func TestFatal_WrapsOnlyOnce(t *testing.T) {
	const cause = ConstError("cause")
	err := Fatal(cause)
	if !IsFatal(err) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("fatal error does not wrap its cause")
	}
	again := Fatal(fmt.Errorf("context: %w", err))
	var fatal *FatalError
	if !errors.As(again, &fatal) {
		t.Fatalf("expected fatal error, got %v", again)
	}
	if _, nested := fatal.Err.(*FatalError); nested {
		t.Errorf("fatal errors should not be nested")
	}
	if Fatal(nil) != nil {
		t.Errorf("nil errors should stay nil")
	}
}
