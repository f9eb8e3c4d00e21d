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

	cliUtils "github.com/Fantom-foundation/Sable/go/driver/cli"
	"github.com/Fantom-foundation/Sable/go/examples"
	"github.com/dsnet/golib/unitconv"
	"github.com/urfave/cli/v2"
)

var ListCmd = cli.Command{
	Action: doList,
	Name:   "list",
	Usage:  "List all example programs",
	Flags: []cli.Flag{
		cliUtils.FilterFlag,
	},
}

func doList(context *cli.Context) error {
	filter, err := cliUtils.FilterFlag.Fetch(context)
	if err != nil {
		return err
	}

	all := examples.All()
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	for _, example := range all {
		if !filter.MatchString(example.Name) {
			continue
		}
		fmt.Fprintf(context.App.Writer, "%-16s %8sB  %v\n",
			example.Name,
			unitconv.FormatPrefix(float64(len(example.Code)), unitconv.IEC, 1),
			example.CodeId(),
		)
	}
	return nil
}
