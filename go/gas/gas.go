// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package gas implements the gas accounting of a single execution. A Counter
// tracks the gas limit of the dispatch being processed, an Allowance tracks
// the block-level gas shared by all dispatches of a block.
package gas

import (
	"fmt"
	"math"

	"github.com/Fantom-foundation/Sable/go/sable"
)

const (
	// ErrGasExceeded is returned when charging more gas than left.
	ErrGasExceeded = sable.ConstError("gas limit exceeded")
	// ErrAllowanceExceeded is returned when the block's allowance is exhausted.
	ErrAllowanceExceeded = sable.ConstError("gas allowance exceeded")
	// ErrTooManyGasAdded is returned when refunding more gas than burnt.
	ErrTooManyGasAdded = sable.ConstError("refund exceeds burnt gas")
	// ErrGasOverflow signals an arithmetic overflow in gas accounting. It is
	// an internal invariant violation and always fatal.
	ErrGasOverflow = sable.ConstError("gas accounting overflow")
)

// Counter tracks the gas left and burnt by an execution. The sum of left and
// burnt gas is constant for charges; only refunds and reductions change it.
type Counter struct {
	left  sable.Gas
	burnt sable.Gas
}

// NewCounter creates a counter for an execution with the given gas limit.
func NewCounter(limit sable.Gas) *Counter {
	return &Counter{left: limit}
}

// Charge burns the given amount of gas. If less gas is left, the counter is
// not modified and ErrGasExceeded is returned.
func (c *Counter) Charge(amount sable.Gas) error {
	if amount > c.left {
		return ErrGasExceeded
	}
	if c.burnt > math.MaxUint64-amount {
		return sable.Fatal(fmt.Errorf("%w: burnt %d, charged %d", ErrGasOverflow, c.burnt, amount))
	}
	c.left -= amount
	c.burnt += amount
	return nil
}

// Refund gives back previously burnt gas.
func (c *Counter) Refund(amount sable.Gas) error {
	if amount > c.burnt {
		return ErrTooManyGasAdded
	}
	if c.left > math.MaxUint64-amount {
		return sable.Fatal(fmt.Errorf("%w: left %d, refunded %d", ErrGasOverflow, c.left, amount))
	}
	c.left += amount
	c.burnt -= amount
	return nil
}

// Reduce hands the given amount of gas over to another party, e.g. as the
// gas limit of an outgoing message. Reduced gas is neither left nor burnt.
func (c *Counter) Reduce(amount sable.Gas) error {
	if amount > c.left {
		return ErrGasExceeded
	}
	c.left -= amount
	return nil
}

// Left returns the gas still available.
func (c *Counter) Left() sable.Gas {
	return c.left
}

// Burnt returns the gas consumed so far.
func (c *Counter) Burnt() sable.Gas {
	return c.burnt
}

func (c *Counter) String() string {
	return fmt.Sprintf("gas{left: %d, burnt: %d}", c.left, c.burnt)
}

// Allowance tracks the gas remaining in the current block.
type Allowance struct {
	left sable.Gas
}

// NewAllowance creates an allowance counter with the given ceiling.
func NewAllowance(limit sable.Gas) *Allowance {
	return &Allowance{left: limit}
}

// Charge consumes the given amount of the allowance. If the allowance is not
// sufficient, it is not modified and ErrAllowanceExceeded is returned.
func (a *Allowance) Charge(amount sable.Gas) error {
	if amount > a.left {
		return ErrAllowanceExceeded
	}
	a.left -= amount
	return nil
}

// Refund returns unused gas to the allowance.
func (a *Allowance) Refund(amount sable.Gas) error {
	if a.left > math.MaxUint64-amount {
		return sable.Fatal(fmt.Errorf("%w: allowance %d, refunded %d", ErrGasOverflow, a.left, amount))
	}
	a.left += amount
	return nil
}

// Left returns the remaining allowance.
func (a *Allowance) Left() sable.Gas {
	return a.left
}
