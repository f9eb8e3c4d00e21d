// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	cliUtils "github.com/Fantom-foundation/Sable/go/driver/cli"
	"github.com/Fantom-foundation/Sable/go/examples"
	"github.com/Fantom-foundation/Sable/go/ledger"
	"github.com/Fantom-foundation/Sable/go/processor/heron"
	"github.com/Fantom-foundation/Sable/go/sable"
	"github.com/urfave/cli/v2"
	"golang.org/x/exp/maps"

	_ "github.com/Fantom-foundation/Sable/go/interpreter/lpvm"
	_ "github.com/Fantom-foundation/Sable/go/interpreter/wzvm"
)

// config is the content of a driver configuration file. Missing fields
// keep their default values.
type config struct {
	Processor heron.Config  `json:"processor"`
	Ledger    ledger.Config `json:"ledger"`
}

func defaultConfig() config {
	return config{
		Processor: heron.DefaultConfig(),
		Ledger:    ledger.DefaultConfig(),
	}
}

func loadConfig(path string) (config, error) {
	res := defaultConfig()
	if path == "" {
		return res, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return res, err
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return res, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return res, nil
}

// fetchConfig loads the configuration selected by the command line.
func fetchConfig(context *cli.Context) (config, error) {
	config, err := loadConfig(cliUtils.ConfigFlag.Fetch(context))
	if err != nil {
		return config, err
	}
	if interpreter := cliUtils.InterpreterFlag.Fetch(context); interpreter != "" {
		config.Processor.Interpreter = interpreter
	}
	logger, err := cliUtils.VerboseFlag.Fetch(context)
	if err != nil {
		return config, err
	}
	config.Processor.Logger = logger
	config.Ledger.Logger = logger
	return config, nil
}

func newProcessor(config heron.Config) (sable.Processor, error) {
	interpreter, err := sable.NewInterpreter(config.Interpreter)
	if err != nil {
		return nil, fmt.Errorf("invalid interpreter %q, use one of %v: %w", config.Interpreter, interpreterNames(), err)
	}
	return heron.NewProcessor(interpreter, config), nil
}

func interpreterNames() []string {
	names := maps.Keys(sable.GetAllRegisteredInterpreters())
	sort.Strings(names)
	return names
}

func getExample(name string) (examples.Example, error) {
	var names []string
	for _, example := range examples.All() {
		if example.Name == name {
			return example, nil
		}
		names = append(names, example.Name)
	}
	return examples.Example{}, fmt.Errorf("unknown example %q, use one of: %v", name, names)
}
