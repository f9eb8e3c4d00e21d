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
	"time"

	cliUtils "github.com/Fantom-foundation/Sable/go/driver/cli"
	"github.com/Fantom-foundation/Sable/go/examples"
	"github.com/Fantom-foundation/Sable/go/ledger"
	"github.com/Fantom-foundation/Sable/go/sable"
	"github.com/dsnet/golib/unitconv"
	"github.com/urfave/cli/v2"
	"pgregory.net/rand"
)

var SimulateCmd = cliUtils.AddCommonFlags(cli.Command{
	Action: doSimulate,
	Name:   "simulate",
	Usage:  "Run random traffic against example programs on a reference ledger",
	Flags: []cli.Flag{
		cliUtils.FilterFlag,
		cliUtils.InterpreterFlag,
		cliUtils.ConfigFlag,
		cliUtils.SeedFlag,
		cliUtils.BlocksFlag,
		cliUtils.PagesFlag,
		cliUtils.VerboseFlag,
		&cli.IntFlag{
			Name:  "messages",
			Usage: "maximum number of messages submitted per block",
			Value: 10,
		},
		&cli.IntFlag{
			Name:  "users",
			Usage: "number of users sending messages",
			Value: 4,
		},
	},
})

func doSimulate(context *cli.Context) error {
	filter, err := cliUtils.FilterFlag.Fetch(context)
	if err != nil {
		return err
	}
	config, err := fetchConfig(context)
	if err != nil {
		return err
	}
	defer config.Ledger.Logger.Sync()
	processor, err := newProcessor(config.Processor)
	if err != nil {
		return err
	}
	pages, closePages, err := openPages(cliUtils.PagesFlag.Fetch(context))
	if err != nil {
		return err
	}
	defer closePages()

	sim := &simulation{
		ledger: ledger.New(processor, pages, config.Ledger),
		rnd:    rand.New(cliUtils.SeedFlag.Fetch(context)),
	}
	if err := sim.setup(context.Int("users"), filter.MatchString); err != nil {
		return err
	}

	out := context.App.Writer
	fmt.Fprintf(out, "Simulating %d blocks with %d programs on %s ...\n",
		cliUtils.BlocksFlag.Fetch(context), len(sim.programs), config.Processor.Interpreter)

	var total struct {
		dispatches, traps, delivered int
		gas                          sable.Gas
	}
	start := time.Now()
	for i := 0; i < cliUtils.BlocksFlag.Fetch(context); i++ {
		if err := sim.submit(context.Int("messages")); err != nil {
			return err
		}
		summary, err := sim.ledger.RunBlock()
		if err != nil {
			return err
		}
		traps := 0
		for _, result := range summary.Dispatches {
			if result.Trap != nil {
				traps++
			}
		}
		total.dispatches += len(summary.Dispatches)
		total.traps += traps
		total.delivered += len(summary.Delivered)
		total.gas += summary.GasBurned
		fmt.Fprintf(out, "[block %5d] dispatches %3d, traps %2d, delivered %3d, expired %2d, gas %8s, queue %3d\n",
			summary.Height, len(summary.Dispatches), traps, len(summary.Delivered), len(summary.Expired),
			unitconv.FormatPrefix(float64(summary.GasBurned), unitconv.SI, 1), len(sim.ledger.Queue()),
		)
	}
	elapsed := time.Since(start)

	supply, err := sim.ledger.Supply()
	if err != nil {
		return err
	}
	if supply != sim.minted {
		return fmt.Errorf("value was not conserved, minted %v, found %v", sim.minted, supply)
	}
	fmt.Fprintf(out, "Processed %d dispatches (%d traps), delivered %d messages, %d messages waiting\n",
		total.dispatches, total.traps, total.delivered, len(sim.ledger.Waitlist()))
	fmt.Fprintf(out, "Burned %s gas in %v, ~%s gas per second\n",
		unitconv.FormatPrefix(float64(total.gas), unitconv.SI, 2),
		elapsed.Round(time.Millisecond),
		unitconv.FormatPrefix(float64(total.gas)/elapsed.Seconds(), unitconv.SI, 1),
	)
	return nil
}

func openPages(path string) (ledger.PageStore, func(), error) {
	if path == "" {
		return ledger.NewMemoryPageStore(), func() {}, nil
	}
	store, err := ledger.OpenLevelDBPageStore(path)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { store.Close() }, nil
}

// simulation submits random messages from a set of users to example
// programs deployed on a ledger.
type simulation struct {
	ledger   *ledger.Ledger
	rnd      *rand.Rand
	users    []sable.ActorId
	programs []simulatedProgram
	codes    []sable.CodeId
	minted   sable.Value
}

type simulatedProgram struct {
	id      sable.ActorId
	example examples.Example
}

const initialBalance = 1_000_000

func (s *simulation) setup(users int, include func(string) bool) error {
	for i := 0; i < users; i++ {
		user := sable.ActorId{0xFF, byte(i >> 8), byte(i)}
		if err := s.ledger.Mint(user, sable.NewValue(initialBalance)); err != nil {
			return err
		}
		s.users = append(s.users, user)
		s.minted, _ = sable.Add(s.minted, sable.NewValue(initialBalance))
	}
	if len(s.users) == 0 {
		return fmt.Errorf("at least one user is required")
	}
	for _, example := range examples.All() {
		if !include(example.Name) {
			continue
		}
		codeId, err := s.ledger.UploadCode(example.Code)
		if err != nil {
			return fmt.Errorf("failed to upload %s: %w", example.Name, err)
		}
		s.codes = append(s.codes, codeId)
		id, _, err := s.ledger.CreateProgram(s.users[0], codeId, []byte(example.Name), nil, sable.Value{}, nil)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", example.Name, err)
		}
		s.programs = append(s.programs, simulatedProgram{id: id, example: example})
	}
	if len(s.programs) == 0 {
		return fmt.Errorf("no example matches the filter")
	}
	_, err := s.ledger.RunUntilIdle(10)
	return err
}

// submit sends up to the given number of messages. Some users answer a
// message of their mailbox instead.
func (s *simulation) submit(messages int) error {
	for i := s.rnd.Intn(messages + 1); i > 0; i-- {
		user := s.users[s.rnd.Intn(len(s.users))]
		value := sable.NewValue(uint64(s.rnd.Intn(100)))
		if mailbox := s.ledger.Mailbox(user); len(mailbox) > 0 && s.rnd.Intn(4) == 0 {
			message := mailbox[s.rnd.Intn(len(mailbox))]
			if !message.IsReply() {
				if _, err := s.ledger.SendReply(user, message.Id, []byte("pong"), value, nil); err != nil {
					return err
				}
				continue
			}
		}
		program := s.programs[s.rnd.Intn(len(s.programs))]
		if _, err := s.ledger.Send(user, program.id, s.payloadFor(program.example), value, nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *simulation) payloadFor(example examples.Example) []byte {
	switch example.Name {
	case examples.GetSpawnerExample().Name:
		code := s.codes[s.rnd.Intn(len(s.codes))]
		return code[:]
	case examples.GetSleeperExample().Name:
		if waiting := s.ledger.Waitlist(); len(waiting) > 0 && s.rnd.Intn(2) == 0 {
			id := waiting[s.rnd.Intn(len(waiting))]
			return id[:]
		}
	}
	return examples.EncodeArgument(s.rnd.Intn(64))
}
