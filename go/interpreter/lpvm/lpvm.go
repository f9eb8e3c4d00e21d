// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package lpvm implements an interpreter for instrumented WASM programs
// operating directly on lazily paged memory. Every load and store of a
// program is resolved through the page manager of the execution, so only
// the pages a program touches are loaded and charged.
package lpvm

import (
	"errors"
	"fmt"

	"github.com/Fantom-foundation/Sable/go/sable"
)

// Registers the lazy-paged VM as a possible interpreter implementation.
func init() {
	sable.MustRegisterInterpreterFactory("lpvm", func(config any) (sable.Interpreter, error) {
		if config == nil {
			return NewInterpreter(Config{})
		}
		c, ok := config.(Config)
		if !ok {
			return nil, fmt.Errorf("invalid lpvm configuration: %T", config)
		}
		return NewInterpreter(c)
	})
}

type Config struct {
	ConversionConfig
	// MaxCallDepth limits the nesting of function calls. If set to 0, a
	// default limit is used.
	MaxCallDepth int
	// MaxStackSize limits the number of values on the value stack. If set to
	// 0, a default limit is used.
	MaxStackSize int
}

const (
	defaultMaxCallDepth = 256
	defaultMaxStackSize = 1 << 16
)

type lpvm struct {
	config    Config
	converter *Converter
}

func NewInterpreter(config Config) (*lpvm, error) {
	if config.MaxCallDepth == 0 {
		config.MaxCallDepth = defaultMaxCallDepth
	}
	if config.MaxStackSize == 0 {
		config.MaxStackSize = defaultMaxStackSize
	}
	converter, err := NewConverter(config.ConversionConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create converter: %v", err)
	}
	return &lpvm{config: config, converter: converter}, nil
}

func (v *lpvm) Run(params sable.Parameters) (sable.Result, error) {
	program, err := v.converter.Convert(params.Code, params.CodeId)
	if err != nil {
		if errors.Is(err, errForbiddenFunction) {
			return trapped(sable.TrapForbiddenFunction, err.Error()), nil
		}
		if errors.Is(err, errInvalidCode) {
			return trapped(sable.TrapIllegalInstruction, err.Error()), nil
		}
		return sable.Result{}, sable.Fatal(err)
	}
	return run(v.config, params, program)
}

func trapped(kind sable.TrapKind, message string) sable.Result {
	return sable.Result{Termination: sable.TerminationReason{
		Kind: sable.TerminationTrap,
		Trap: sable.TrapExplanation{Kind: kind, Message: message},
	}}
}
