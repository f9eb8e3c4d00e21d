// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package wzvm runs programs on the wazero WebAssembly runtime. Since wazero
// owns the linear memory of an instance, the memory of a program is loaded
// from its page manager before the execution and the modified pages are
// written back afterwards.
package wzvm

import (
	"context"
	"errors"
	"fmt"

	"github.com/Fantom-foundation/Sable/go/hostabi"
	"github.com/Fantom-foundation/Sable/go/sable"
	"github.com/Fantom-foundation/Sable/go/wasm"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

func init() {
	sable.MustRegisterInterpreterFactory("wzvm", func(config any) (sable.Interpreter, error) {
		if config == nil {
			return NewInterpreter(Config{})
		}
		c, ok := config.(Config)
		if !ok {
			return nil, fmt.Errorf("invalid wzvm configuration: %T", config)
		}
		return NewInterpreter(c)
	})
}

type Config struct {
	// CacheSize is the maximum number of decoded modules retained. If set to
	// 0, a default size is used.
	CacheSize int
}

// hostModule is the name of the module providing the host functions to the
// environment module the programs are linked against.
const hostModule = "sable_host"

type decoded struct {
	module *wasm.Module
	err    error
}

type wzvm struct {
	modules     *lru.Cache[sable.CodeId, decoded]
	compilation wazero.CompilationCache
}

func NewInterpreter(config Config) (*wzvm, error) {
	if config.CacheSize <= 0 {
		config.CacheSize = 1 << 10
	}
	modules, err := lru.New[sable.CodeId, decoded](config.CacheSize)
	if err != nil {
		return nil, err
	}
	return &wzvm{
		modules:     modules,
		compilation: wazero.NewCompilationCache(),
	}, nil
}

func (v *wzvm) decode(code []byte, id sable.CodeId) (*wasm.Module, error) {
	if res, found := v.modules.Get(id); found {
		return res.module, res.err
	}
	module, err := wasm.Decode(code)
	if err == nil {
		err = checkImports(module)
	}
	v.modules.Add(id, decoded{module: module, err: err})
	return module, err
}

func (v *wzvm) Run(params sable.Parameters) (sable.Result, error) {
	module, err := v.decode(params.Code, params.CodeId)
	if err != nil {
		if errors.Is(err, errForbiddenFunction) {
			return trapped(sable.TrapForbiddenFunction, err.Error()), nil
		}
		return trapped(sable.TrapIllegalInstruction, err.Error()), nil
	}
	if export, found := module.Export(params.EntryPoint, wasm.ExternFunc); !found {
		return trapped(sable.TrapInvalidEntryPoint, params.EntryPoint), nil
	} else if typ, _ := module.FunctionType(export.Index); len(typ.Params) != 0 || len(typ.Results) != 0 {
		return trapped(sable.TrapInvalidEntryPoint, "invalid signature of "+params.EntryPoint), nil
	}

	ctx := context.Background()
	runtime := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter().
		WithCompilationCache(v.compilation).
		WithCloseOnContextDone(false))
	defer runtime.Close(ctx)

	err = v.execute(ctx, runtime, params, module)
	if err == nil {
		return sable.Result{Termination: sable.TerminationReason{Kind: sable.TerminationSuccess}}, nil
	}
	if reason, ok := classify(err); ok {
		return sable.Result{Termination: reason}, nil
	}
	return sable.Result{}, sable.Fatal(err)
}

func (v *wzvm) execute(ctx context.Context, runtime wazero.Runtime, params sable.Parameters, module *wasm.Module) error {
	declared, _ := module.Memory()
	if size := params.Memory.Size(); size < sable.WasmPageNumber(declared.Min) {
		if _, err := params.Memory.Grow(sable.WasmPageNumber(declared.Min) - size); err != nil {
			if errors.Is(err, sable.ErrGrowLimitExceeded) {
				return sable.HaltWithTrap(sable.TrapMemoryLimitExceeded, err.Error())
			}
			return err
		}
	}

	env := &hostabi.Env{Context: params.Context}
	if err := instantiateHost(ctx, runtime, env); err != nil {
		return err
	}
	shim, err := runtime.InstantiateWithConfig(ctx, environment(declared, params.Memory.Size(), params.MaxPages), wazero.NewModuleConfig().WithName(hostabi.Module))
	if err != nil {
		return err
	}
	memory, err := load(params.Memory, shim.ExportedMemory(hostabi.MemoryName))
	if err != nil {
		return err
	}
	env.Memory = memory

	compiled, err := runtime.CompileModule(ctx, wasm.Encode(normalize(module, params.Kind == sable.Init)))
	if err != nil {
		return sable.HaltWithTrap(sable.TrapIllegalInstruction, err.Error())
	}
	instance, err := runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName("").WithStartFunctions())
	if err != nil {
		return err
	}
	if _, err := instance.ExportedFunction(params.EntryPoint).Call(ctx); err != nil {
		// Exits and waits keep the effects of the execution.
		if reason, ok := classify(err); ok && reason.Kind != sable.TerminationTrap {
			if err := memory.store(); err != nil {
				return err
			}
		}
		return err
	}
	return memory.store()
}

// instantiateHost makes the host functions operating on the given
// environment available to the runtime.
func instantiateHost(ctx context.Context, runtime wazero.Runtime, env *hostabi.Env) error {
	builder := runtime.NewHostModuleBuilder(hostModule)
	for _, f := range hostabi.Functions() {
		call := api.GoModuleFunc(func(_ context.Context, _ api.Module, stack []uint64) {
			if err := f.Call(env, stack); err != nil {
				panic(err)
			}
		})
		builder.NewFunctionBuilder().
			WithGoModuleFunction(call, valueTypes(f.Params), valueTypes(f.Results)).
			Export(f.Name)
	}
	_, err := builder.Instantiate(ctx)
	return err
}

func valueTypes(types []wasm.ValType) []api.ValueType {
	res := make([]api.ValueType, len(types))
	for i, t := range types {
		switch t {
		case wasm.I32:
			res[i] = api.ValueTypeI32
		case wasm.I64:
			res[i] = api.ValueTypeI64
		default:
			panic(fmt.Sprintf("unsupported host value type %v", t))
		}
	}
	return res
}

func trapped(kind sable.TrapKind, message string) sable.Result {
	return sable.Result{Termination: sable.TerminationReason{
		Kind: sable.TerminationTrap,
		Trap: sable.TrapExplanation{Kind: kind, Message: message},
	}}
}
