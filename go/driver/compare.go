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
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	cliUtils "github.com/Fantom-foundation/Sable/go/driver/cli"
	"github.com/Fantom-foundation/Sable/go/examples"
	"github.com/Fantom-foundation/Sable/go/sable"
	"github.com/dsnet/golib/unitconv"
	"github.com/urfave/cli/v2"
	"golang.org/x/exp/maps"
	"pgregory.net/rand"
)

var CompareCmd = cliUtils.AddCommonFlags(cli.Command{
	Action: doCompare,
	Name:   "compare",
	Usage:  "Run examples with random arguments on all interpreters and compare the results with their references",
	Flags: []cli.Flag{
		cliUtils.FilterFlag,
		cliUtils.JobsFlag,
		cliUtils.SeedFlag,
		cliUtils.ConfigFlag,
		&cli.IntFlag{
			Name:  "runs",
			Usage: "number of random arguments per example",
			Value: 100,
		},
		&cli.IntFlag{
			Name:  "max-argument",
			Usage: "exclusive upper bound of random arguments",
			Value: 1024,
		},
	},
})

type comparison struct {
	example  examples.Example
	argument int
}

func doCompare(context *cli.Context) error {
	filter, err := cliUtils.FilterFlag.Fetch(context)
	if err != nil {
		return err
	}
	config, err := fetchConfig(context)
	if err != nil {
		return err
	}
	processors := map[string]sable.Processor{}
	for _, name := range interpreterNames() {
		processorConfig := config.Processor
		processorConfig.Interpreter = name
		processor, err := newProcessor(processorConfig)
		if err != nil {
			return err
		}
		processors[name] = processor
	}

	runs := context.Int("runs")
	maxArgument := context.Int("max-argument")
	if maxArgument <= 0 {
		return fmt.Errorf("invalid upper bound of arguments: %d", maxArgument)
	}
	seed := cliUtils.SeedFlag.Fetch(context)
	jobCount := cliUtils.JobsFlag.Fetch(context)
	out := context.App.Writer

	rnd := rand.New(seed)
	var work []comparison
	for _, example := range examples.All() {
		if !filter.MatchString(example.Name) || !example.HasReference() {
			continue
		}
		for i := 0; i < runs; i++ {
			work = append(work, comparison{example, rnd.Intn(maxArgument)})
		}
	}

	fmt.Fprintf(out, "Comparing %d executions on %v with seed %d using %d jobs ...\n", len(work), interpreterNames(), seed, jobCount)

	issues := cliUtils.IssuesCollector{}
	var done atomic.Int64
	start := time.Now()
	queue := make(chan comparison)
	var wg sync.WaitGroup
	wg.Add(jobCount)
	for i := 0; i < jobCount; i++ {
		go func() {
			defer wg.Done()
			for item := range queue {
				compare(item, processors, &issues)
				done.Add(1)
			}
		}()
	}
	for _, item := range work {
		queue <- item
	}
	close(queue)
	wg.Wait()

	elapsed := time.Since(start)
	rate := float64(done.Load()) / elapsed.Seconds()
	fmt.Fprintf(out, "Processed %d comparisons in %v, ~%s per second\n",
		done.Load(), elapsed.Round(time.Millisecond), unitconv.FormatPrefix(rate, unitconv.SI, 0))

	if issues.NumIssues() == 0 {
		fmt.Fprintf(out, "All interpreters agree!\n")
		return nil
	}
	if err := issues.ExportIssues(out); err != nil {
		return err
	}
	return fmt.Errorf("found %d diverging executions", issues.NumIssues())
}

// compare runs an example on all processors and records disagreements with
// the reference result or between the outcomes of the executions.
func compare(item comparison, processors map[string]sable.Processor, issues *cliUtils.IssuesCollector) {
	type outcome struct {
		result  int
		trapped bool
	}
	want := item.example.RunReference(item.argument)
	outcomes := map[string]outcome{}
	names := maps.Keys(processors)
	sort.Strings(names)
	for _, name := range names {
		processor := processors[name]
		input := cliUtils.Input{Example: item.example.Name, Argument: item.argument, Interpreter: name}
		res, err := item.example.RunOn(processor, item.argument)
		if sable.IsFatal(err) {
			issues.AddIssue(input, fmt.Errorf("%s failed on %s(%d): %w", name, item.example.Name, item.argument, err))
			continue
		}
		trapped := len(res.Journal.Filter(sable.NoteProgramTrapped)) > 0
		outcomes[name] = outcome{res.Result, trapped}
		if !trapped && res.Result != want {
			issues.AddIssue(input, fmt.Errorf("%s computed %s(%d) = %d, expected %d", name, item.example.Name, item.argument, res.Result, want))
		}
	}
	var reference string
	for _, name := range names {
		got, found := outcomes[name]
		if !found {
			continue
		}
		if reference == "" {
			reference = name
			continue
		}
		if outcomes[reference] != got {
			input := cliUtils.Input{Example: item.example.Name, Argument: item.argument, Interpreter: name}
			issues.AddIssue(input, fmt.Errorf("%s and %s disagree on %s(%d): %+v vs %+v",
				reference, name, item.example.Name, item.argument, outcomes[reference], got))
		}
	}
}
