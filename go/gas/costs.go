// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package gas

import "github.com/Fantom-foundation/Sable/go/sable"

// Costs is the schedule of gas charged by the execution core itself. Gas for
// executed instructions is charged by the instrumented program through the
// gas host function.
type Costs struct {
	// Preparation is charged for every dispatch before execution starts.
	Preparation sable.Gas `json:"preparation"`
	// HostCall is the base cost of every host function call.
	HostCall sable.Gas `json:"hostCall"`
	// PerByte is charged for every byte moved across the host boundary.
	PerByte sable.Gas `json:"perByte"`
	// LoadPage is charged once per page loaded during an execution.
	LoadPage sable.Gas `json:"loadPage"`
	// WritePage is charged once per page modified during an execution.
	WritePage sable.Gas `json:"writePage"`
	// GrowPage is charged for every WASM page added to the memory.
	GrowPage sable.Gas `json:"growPage"`
}

// DefaultCosts returns the cost schedule used if nothing else is configured.
func DefaultCosts() Costs {
	return Costs{
		Preparation: 1_000,
		HostCall:    100,
		PerByte:     1,
		LoadPage:    1_500,
		WritePage:   2_000,
		GrowPage:    3_000,
	}
}

// HostCallCost returns the cost of a host call moving the given number of
// bytes across the host boundary.
func (c Costs) HostCallCost(bytes int) sable.Gas {
	return c.HostCall + c.PerByte*sable.Gas(bytes)
}
