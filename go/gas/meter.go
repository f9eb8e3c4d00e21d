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

import (
	"errors"

	"github.com/Fantom-foundation/Sable/go/sable"
)

// Meter charges gas against both the gas limit of an execution and the
// allowance of the block it is running in. A charge exceeding both is
// attributed to the tighter bound: the allowance only stops an execution
// which could have continued with a larger allowance.
type Meter struct {
	counter   *Counter
	allowance *Allowance
}

// NewMeter creates a meter for an execution with the given gas limit in a
// block with the given remaining allowance.
func NewMeter(limit, allowance sable.Gas) *Meter {
	return &Meter{
		counter:   NewCounter(limit),
		allowance: NewAllowance(allowance),
	}
}

// Charge consumes the given amount of gas. It fails without modifying any
// state with ErrAllowanceExceeded or ErrGasExceeded.
func (m *Meter) Charge(amount sable.Gas) error {
	if amount > m.allowance.Left() && m.allowance.Left() < m.counter.Left() {
		return ErrAllowanceExceeded
	}
	if err := m.counter.Charge(amount); err != nil {
		return err
	}
	// Can not fail since the amount is within the tighter bound.
	return m.allowance.Charge(amount)
}

// Reduce hands gas over to an outgoing message. Since the reduced gas will
// be charged when the message gets executed, it only affects the counter.
func (m *Meter) Reduce(amount sable.Gas) error {
	return m.counter.Reduce(amount)
}

// Refund gives back previously burnt gas to the counter and the allowance.
func (m *Meter) Refund(amount sable.Gas) error {
	if err := m.counter.Refund(amount); err != nil {
		return err
	}
	return m.allowance.Refund(amount)
}

func (m *Meter) Left() sable.Gas {
	return m.counter.Left()
}

func (m *Meter) Burnt() sable.Gas {
	return m.counter.Burnt()
}

func (m *Meter) AllowanceLeft() sable.Gas {
	return m.allowance.Left()
}

// ToHalt converts charging errors into the termination of the execution
// they imply. Other errors are returned unchanged.
func ToHalt(err error) error {
	switch {
	case errors.Is(err, ErrAllowanceExceeded):
		return &sable.Halt{Reason: sable.TerminationReason{Kind: sable.TerminationAllowanceExceeded}}
	case errors.Is(err, ErrGasExceeded):
		return sable.HaltWithTrap(sable.TrapGasLimitExceeded, "")
	default:
		return err
	}
}
