// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package processor

import (
	"fmt"
	"slices"
	"testing"

	"github.com/Fantom-foundation/Sable/go/examples"
	"github.com/Fantom-foundation/Sable/go/sable"
	"golang.org/x/exp/maps"

	_ "github.com/Fantom-foundation/Sable/go/interpreter/lpvm"
	_ "github.com/Fantom-foundation/Sable/go/interpreter/wzvm"
	_ "github.com/Fantom-foundation/Sable/go/processor/heron"
)

func ptr[T any](value T) *T {
	return &value
}

func getScenarios() map[string]Scenario {
	ping := examples.GetPingExample()
	pingId := ping.Actor().Id
	panicker := examples.GetPanickerExample()
	exiter := examples.GetExiterExample()
	counter := examples.GetCounterExample()

	return map[string]Scenario{
		"ping replies pong": {
			Program: ping,
			Kind:    sable.Handle,
			Outcome: ptr(sable.OutcomeSuccess),
			Sent:    [][]byte{[]byte("pong")},
		},
		"value is kept on success": {
			Program: ping,
			Kind:    sable.Handle,
			Value:   sable.NewValue(5),
			Outcome: ptr(sable.OutcomeSuccess),
			Sent:    [][]byte{[]byte("pong")},
			Values:  []sable.ValueSent{{From: source, To: pingId, Value: sable.NewValue(5)}},
		},
		"panic is answered with an error reply": {
			Program: panicker,
			Kind:    sable.Handle,
			Value:   sable.NewValue(3),
			Outcome: ptr(sable.OutcomeTrap),
			Trap:    ptr(sable.TrapPanic),
			Sent:    [][]byte{[]byte("panic: boom")},
			Values:  []sable.ValueSent{{From: source, To: source, Value: sable.NewValue(3)}},
		},
		"out of bounds access traps": {
			Program: examples.GetOutOfBoundsExample(),
			Kind:    sable.Handle,
			Outcome: ptr(sable.OutcomeTrap),
			Trap:    ptr(sable.TrapMemoryAccess),
			Sent:    [][]byte{[]byte("memory access")},
		},
		"exhausted gas limit traps": {
			Program:  examples.GetGasBurnerExample(),
			Kind:     sable.Handle,
			Payload:  examples.EncodeArgument(-1),
			GasLimit: 100_000,
			Outcome:  ptr(sable.OutcomeTrap),
			Trap:     ptr(sable.TrapGasLimitExceeded),
			Sent:     [][]byte{[]byte("gas limit exceeded")},
		},
		"exhausted allowance stops processing": {
			Program:   examples.GetGasBurnerExample(),
			Kind:      sable.Handle,
			Payload:   examples.EncodeArgument(1000),
			Allowance: 100_000,
			Stopped:   true,
		},
		"failed allocations are reported to the program": {
			Program: examples.GetGrowerExample(),
			Kind:    sable.Handle,
			Payload: examples.EncodeArgument(1000),
			Outcome: ptr(sable.OutcomeSuccess),
			Sent:    [][]byte{examples.EncodeArgument(-1)},
		},
		"failed memory.grow instructions are reported to the program": {
			Program: examples.GetMemoryGrowExample(),
			Kind:    sable.Handle,
			Payload: examples.EncodeArgument(1000),
			Outcome: ptr(sable.OutcomeSuccess),
			Sent:    [][]byte{examples.EncodeArgument(-1)},
		},
		"memory.grow within the limit succeeds": {
			Program: examples.GetMemoryGrowExample(),
			Kind:    sable.Handle,
			Payload: examples.EncodeArgument(3),
			Outcome: ptr(sable.OutcomeSuccess),
			Sent:    [][]byte{examples.EncodeArgument(1)},
		},
		"persisted pages are visible to the program": {
			Program: counter,
			Kind:    sable.Handle,
			Pages:   map[sable.PageNumber][]byte{0: page(1024, 41)},
			Outcome: ptr(sable.OutcomeSuccess),
			Sent:    [][]byte{examples.EncodeArgument(42)},
		},
		"waiting messages are put on the waitlist": {
			Program: examples.GetWaiterExample(),
			Kind:    sable.Handle,
			Waiting: true,
		},
		"exit terminates the program": {
			Program: exiter,
			Kind:    sable.Handle,
			Outcome: ptr(sable.OutcomeExit),
		},
		"initialization succeeds": {
			Program:       ping,
			Uninitialized: true,
			Kind:          sable.Init,
			Outcome:       ptr(sable.OutcomeInitSuccess),
		},
		"missing reply handler traps without error reply": {
			Program: ping,
			Kind:    sable.Reply,
			Outcome: ptr(sable.OutcomeTrap),
			Trap:    ptr(sable.TrapInvalidEntryPoint),
		},
	}
}

func TestProcessor_Scenarios(t *testing.T) {
	for name, scenario := range getScenarios() {
		t.Run(name, func(t *testing.T) {
			for processorName, processor := range getProcessors() {
				t.Run(processorName, func(t *testing.T) {
					scenario.Run(t, processor)
				})
			}
		})
	}
}

func TestProcessor_ExamplesMatchReferences(t *testing.T) {
	for _, example := range examples.All() {
		if !example.HasReference() {
			continue
		}
		t.Run(example.Name, func(t *testing.T) {
			for processorName, processor := range getProcessors() {
				t.Run(processorName, func(t *testing.T) {
					for _, argument := range []int{0, 1, 7} {
						res, err := example.RunOn(processor, argument)
						if err != nil {
							t.Fatalf("failed to run example with argument %d: %v", argument, err)
						}
						if want, got := example.RunReference(argument), res.Result; want != got {
							t.Errorf("unexpected result for argument %d, want %d, got %d", argument, want, got)
						}
					}
				})
			}
		})
	}
}

func TestProcessor_JournalsHaveSameShapeOnAllInterpreters(t *testing.T) {
	processors := getProcessors()
	names := maps.Keys(processors)
	slices.Sort(names)
	for _, example := range examples.All() {
		t.Run(example.Name, func(t *testing.T) {
			var want []sable.NoteKind
			for _, name := range names {
				res, _ := example.RunOn(processors[name], 3)
				got := kinds(res.Journal)
				if want == nil {
					want = got
					continue
				}
				if !slices.Equal(want, got) {
					t.Errorf("unexpected journal on %s, want %v, got %v", name, want, got)
				}
			}
		})
	}
}

func kinds(journal sable.Journal) []sable.NoteKind {
	res := make([]sable.NoteKind, 0, len(journal))
	for _, note := range journal {
		res = append(res, note.Kind())
	}
	return res
}

// getProcessors returns all registered processors, each combined with every
// registered interpreter.
func getProcessors() map[string]sable.Processor {
	res := map[string]sable.Processor{}
	for _, processorName := range sable.ProcessorNames() {
		for interpreterName := range sable.GetAllRegisteredInterpreters() {
			processor, err := sable.NewConfiguration(processorName, interpreterName)
			if err != nil {
				panic(fmt.Sprintf("failed to load %s/%s: %v", processorName, interpreterName, err))
			}
			res[fmt.Sprintf("%s/%s", processorName, interpreterName)] = processor
		}
	}
	return res
}

func TestGetProcessors_ContainsMainConfigurations(t *testing.T) {
	all := maps.Keys(getProcessors())
	for _, n := range []string{"heron/lpvm", "heron/wzvm"} {
		if !slices.Contains(all, n) {
			t.Errorf("Configuration %q is not registered, got %v", n, all)
		}
	}
}
