// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package cliUtils

import (
	"fmt"
	"os"
	"regexp"
	"runtime"
	"runtime/pprof"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

type filterFlagType struct {
	cli.StringFlag
}

var FilterFlag = &filterFlagType{
	cli.StringFlag{
		Name:    "filter",
		Aliases: []string{"f"},
		Usage:   "use only examples which name matches the given regex",
		Value:   ".*",
	},
}

func (f *filterFlagType) Fetch(context *cli.Context) (*regexp.Regexp, error) {
	return regexp.Compile(context.String(f.Name))
}

type interpreterFlagType struct {
	cli.StringFlag
}

var InterpreterFlag = &interpreterFlagType{
	cli.StringFlag{
		Name:    "interpreter",
		Aliases: []string{"i"},
		Usage:   "the interpreter executing programs, overrides the config file",
	},
}

func (f *interpreterFlagType) Fetch(context *cli.Context) string {
	return context.String(f.Name)
}

type configFlagType struct {
	cli.StringFlag
}

var ConfigFlag = &configFlagType{
	cli.StringFlag{
		Name:      "config",
		Aliases:   []string{"c"},
		Usage:     "JSON file with processor and ledger configuration",
		TakesFile: true,
	},
}

func (f *configFlagType) Fetch(context *cli.Context) string {
	return context.String(f.Name)
}

type jobsFlagType struct {
	cli.IntFlag
}

var JobsFlag = &jobsFlagType{
	cli.IntFlag{
		Name:    "jobs",
		Aliases: []string{"j"},
		Usage:   "number of jobs run simultaneously",
		Value:   runtime.NumCPU(),
	},
}

func (f *jobsFlagType) Fetch(context *cli.Context) int {
	if jobs := context.Int(f.Name); jobs > 0 {
		return jobs
	}
	return runtime.NumCPU()
}

type seedFlagType struct {
	cli.Uint64Flag
}

var SeedFlag = &seedFlagType{
	cli.Uint64Flag{
		Name:    "seed",
		Aliases: []string{"s"},
		Usage:   "seed for the random number generator",
	},
}

func (f *seedFlagType) Fetch(context *cli.Context) uint64 {
	return context.Uint64(f.Name)
}

type blocksFlagType struct {
	cli.IntFlag
}

var BlocksFlag = &blocksFlagType{
	cli.IntFlag{
		Name:    "blocks",
		Aliases: []string{"b"},
		Usage:   "number of blocks to run",
		Value:   100,
	},
}

func (f *blocksFlagType) Fetch(context *cli.Context) int {
	return context.Int(f.Name)
}

type pagesFlagType struct {
	cli.StringFlag
}

var PagesFlag = &pagesFlagType{
	cli.StringFlag{
		Name:      "pages",
		Usage:     "directory of a LevelDB database keeping program memory, memory only if empty",
		TakesFile: true,
	},
}

func (f *pagesFlagType) Fetch(context *cli.Context) string {
	return context.String(f.Name)
}

type verboseFlagType struct {
	cli.BoolFlag
}

var VerboseFlag = &verboseFlagType{
	cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "log processing details to stderr",
	},
}

// Fetch creates the logger selected by the flag.
func (f *verboseFlagType) Fetch(context *cli.Context) (*zap.Logger, error) {
	if !context.Bool(f.Name) {
		return zap.NewNop(), nil
	}
	return zap.NewDevelopment()
}

var cpuProfileFlag = &cli.StringFlag{
	Name:      "cpuprofile",
	Usage:     "store CPU profile in the provided filename",
	TakesFile: true,
}

// AddCommonFlags adds flags shared by all commands to the given command.
func AddCommonFlags(command cli.Command) cli.Command {
	command.Flags = append(command.Flags, cpuProfileFlag)

	action := command.Action
	command.Action = func(ctx *cli.Context) (err error) {
		if cpuprofileFilename := ctx.String(cpuProfileFlag.Name); cpuprofileFilename != "" {
			f, err := os.Create(cpuprofileFilename)
			if err != nil {
				return fmt.Errorf("could not create CPU profile: %w", err)
			}
			if err := pprof.StartCPUProfile(f); err != nil {
				return fmt.Errorf("could not start CPU profile: %w", err)
			}
			defer pprof.StopCPUProfile()
		}
		return action(ctx)
	}
	return command
}
