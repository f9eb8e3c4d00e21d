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
	"fmt"
	"slices"
	"strings"
	"sync"

	"golang.org/x/exp/maps"
)

// ErrUnknownProcessor is returned when resolving a processor name nobody
// registered a factory for.
const ErrUnknownProcessor = ConstError("unknown processor")

// ProcessorFactory creates a processor executing programs on the given
// interpreter. Processor packages register their factories in init code,
// so a processor becomes available by importing its package.
type ProcessorFactory func(Interpreter) Processor

var processors = struct {
	sync.RWMutex
	factories map[string]ProcessorFactory
}{factories: map[string]ProcessorFactory{}}

// NewProcessor creates an instance of the processor registered under the
// given name (case-insensitive) running on the given interpreter.
func NewProcessor(name string, interpreter Interpreter) (Processor, error) {
	processors.RLock()
	factory := processors.factories[strings.ToLower(name)]
	processors.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProcessor, name)
	}
	return factory(interpreter), nil
}

// NewConfiguration creates the processor registered under the given name
// running on a default instance of the named interpreter. Tools address
// such combinations as "<processor>/<interpreter>".
func NewConfiguration(processor, interpreter string) (Processor, error) {
	vm, err := NewInterpreter(interpreter)
	if err != nil {
		return nil, err
	}
	return NewProcessor(processor, vm)
}

// ProcessorNames lists the names of all registered processors in order.
func ProcessorNames() []string {
	processors.RLock()
	defer processors.RUnlock()
	res := maps.Keys(processors.factories)
	slices.Sort(res)
	return res
}

// GetAllRegisteredProcessorFactories returns a copy of the registry.
func GetAllRegisteredProcessorFactories() map[string]ProcessorFactory {
	processors.RLock()
	defer processors.RUnlock()
	return maps.Clone(processors.factories)
}

// RegisterProcessorFactory adds a processor to the registry. Names are
// case-insensitive, must not be empty and must not contain a '/', which
// separates processor and interpreter names in configurations.
func RegisterProcessorFactory(name string, factory ProcessorFactory) error {
	key := strings.ToLower(name)
	switch {
	case key == "" || strings.Contains(key, "/"):
		return fmt.Errorf("invalid processor name %q", name)
	case factory == nil:
		return fmt.Errorf("nil factory for processor %q", key)
	}
	processors.Lock()
	defer processors.Unlock()
	if _, found := processors.factories[key]; found {
		return fmt.Errorf("processor %q registered twice", key)
	}
	processors.factories[key] = factory
	return nil
}

// MustRegisterProcessorFactory is RegisterProcessorFactory for init code.
func MustRegisterProcessorFactory(name string, factory ProcessorFactory) {
	if err := RegisterProcessorFactory(name, factory); err != nil {
		panic(err)
	}
}
