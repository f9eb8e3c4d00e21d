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
	"slices"
	"testing"

	"golang.org/x/exp/maps"
)

func TestInterpreterRegistry_RegisteredFactoriesCanBeRetrieved(t *testing.T) {
	const name = "interpreter-registry-test"
	var config any
	factory := func(c any) (Interpreter, error) {
		config = c
		return nil, nil
	}
	if err := RegisterInterpreterFactory(name, factory); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := NewInterpreter("Interpreter-Registry-Test", 12); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := 12, config; want != got {
		t.Errorf("unexpected configuration, want %v, got %v", want, got)
	}
	if !slices.Contains(maps.Keys(GetAllRegisteredInterpreters()), name) {
		t.Errorf("%v not listed in registry", name)
	}
}

func TestInterpreterRegistry_FactoryErrorsAreForwarded(t *testing.T) {
	const name = "interpreter-registry-failing"
	injected := errors.New("injected")
	MustRegisterInterpreterFactory(name, func(any) (Interpreter, error) {
		return nil, injected
	})
	if _, err := NewInterpreter(name); !errors.Is(err, injected) {
		t.Errorf("unexpected error, want %v, got %v", injected, err)
	}
}

func TestInterpreterRegistry_UnknownInterpreterProducesError(t *testing.T) {
	if _, err := NewInterpreter("something-unknown"); err == nil {
		t.Errorf("expected error, got nil")
	}
}

func TestInterpreterRegistry_TooManyConfigurationsAreRejected(t *testing.T) {
	if _, err := NewInterpreter("anything", 1, 2); err == nil {
		t.Errorf("expected error, got nil")
	}
}

func TestInterpreterRegistry_MultipleRegistrationsCauseAnError(t *testing.T) {
	const name = "interpreter-registry-twice"
	factory := func(any) (Interpreter, error) { return nil, nil }
	if err := RegisterInterpreterFactory(name, factory); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := RegisterInterpreterFactory(name, factory); err == nil {
		t.Fatalf("expected error, got nil")
	}
}

func TestInterpreterRegistry_NilFactoriesAreRejected(t *testing.T) {
	const name = "something"
	if err := RegisterInterpreterFactory(name, nil); err == nil {
		t.Fatalf("expected error, got nil")
	}
}
