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

	"go.uber.org/mock/gomock"
)

func TestProcessorRegistry_RegisteredProcessorsAreListedInOrder(t *testing.T) {
	factory := func(Interpreter) Processor { return nil }
	for _, name := range []string{"registry_b", "registry_a"} {
		if err := RegisterProcessorFactory(name, factory); err != nil {
			t.Fatalf("failed to register %s: %v", name, err)
		}
	}
	names := ProcessorNames()
	if !slices.IsSorted(names) {
		t.Errorf("names are not sorted: %v", names)
	}
	for _, name := range []string{"registry_a", "registry_b"} {
		if !slices.Contains(names, name) {
			t.Errorf("%v not found in %v", name, names)
		}
		if _, found := GetAllRegisteredProcessorFactories()[name]; !found {
			t.Errorf("%v has no factory", name)
		}
	}
}

func TestProcessorRegistry_NewProcessorUsesFactoryWithInterpreter(t *testing.T) {
	ctrl := gomock.NewController(t)
	interpreter := NewMockInterpreter(ctrl)
	processor := NewMockProcessor(ctrl)

	MustRegisterProcessorFactory("registry_mock", func(i Interpreter) Processor {
		if i != interpreter {
			t.Fatalf("unexpected interpreter passed to factory")
		}
		return processor
	})

	got, err := NewProcessor("Registry_Mock", interpreter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != processor {
		t.Errorf("unexpected processor, want %v, got %v", processor, got)
	}
}

func TestProcessorRegistry_UnknownNamesAreReported(t *testing.T) {
	if _, err := NewProcessor("something odd", nil); !errors.Is(err, ErrUnknownProcessor) {
		t.Errorf("unexpected error, want %v, got %v", ErrUnknownProcessor, err)
	}
	if _, err := NewConfiguration("something odd", "also odd"); err == nil {
		t.Errorf("expected an error for an unknown configuration")
	}
}

func TestProcessorRegistry_InvalidRegistrationsAreRejected(t *testing.T) {
	factory := func(Interpreter) Processor { return nil }
	if err := RegisterProcessorFactory("registry_twice", factory); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	tests := map[string]struct {
		name    string
		factory ProcessorFactory
	}{
		"nil factory":       {"registry_nil", nil},
		"empty name":        {"", factory},
		"separator in name": {"a/b", factory},
		"duplicate name":    {"REGISTRY_TWICE", factory},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			if err := RegisterProcessorFactory(test.name, test.factory); err == nil {
				t.Errorf("expected registration of %q to fail", test.name)
			}
		})
	}
}

func TestProcessorRegistry_MustRegisterPanicsOnFailure(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("expected panic, got nil")
		}
	}()
	MustRegisterProcessorFactory("", nil)
}
