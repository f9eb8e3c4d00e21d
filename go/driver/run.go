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
	"strconv"
	"time"

	cliUtils "github.com/Fantom-foundation/Sable/go/driver/cli"
	"github.com/dsnet/golib/unitconv"
	"github.com/urfave/cli/v2"
)

var RunCmd = cliUtils.AddCommonFlags(cli.Command{
	Action:    doRun,
	Name:      "run",
	Usage:     "Run an example program with the given argument",
	ArgsUsage: "<example> <argument>",
	Flags: []cli.Flag{
		cliUtils.InterpreterFlag,
		cliUtils.ConfigFlag,
		cliUtils.VerboseFlag,
		&cli.BoolFlag{
			Name:  "journal",
			Usage: "print the journal of the execution",
		},
	},
})

func doRun(context *cli.Context) error {
	if context.Args().Len() != 2 {
		return fmt.Errorf("expected example and argument, got %d arguments", context.Args().Len())
	}
	example, err := getExample(context.Args().Get(0))
	if err != nil {
		return err
	}
	argument, err := strconv.Atoi(context.Args().Get(1))
	if err != nil {
		return fmt.Errorf("invalid argument: %w", err)
	}

	config, err := fetchConfig(context)
	if err != nil {
		return err
	}
	defer config.Processor.Logger.Sync()
	processor, err := newProcessor(config.Processor)
	if err != nil {
		return err
	}

	start := time.Now()
	result, runErr := example.RunOn(processor, argument)
	duration := time.Since(start)

	out := context.App.Writer
	if context.Bool("journal") && result.Journal != nil {
		data, err := json.MarshalIndent(result.Journal, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n", data)
	}
	if runErr != nil {
		return runErr
	}
	fmt.Fprintf(out, "Result:   %d\n", result.Result)
	fmt.Fprintf(out, "Expected: %d\n", example.RunReference(argument))
	fmt.Fprintf(out, "Gas used: %s\n", unitconv.FormatPrefix(float64(result.UsedGas), unitconv.SI, 2))
	fmt.Fprintf(out, "Time:     %v\n", duration)
	return nil
}
