// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package heron

import (
	"github.com/Fantom-foundation/Sable/go/gas"
	"github.com/Fantom-foundation/Sable/go/message"
	"github.com/Fantom-foundation/Sable/go/sable"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Config summarizes the limits and costs applied by a processor.
type Config struct {
	// Interpreter names the interpreter processors are built with by tools
	// creating them from a configuration file.
	Interpreter string `json:"interpreter"`
	// Costs is the schedule of gas charged by the processor itself.
	Costs gas.Costs `json:"costs"`
	// MaxPages is the maximum size of a program's memory in WASM pages.
	MaxPages sable.WasmPageNumber `json:"maxPages"`
	// WaitTimeout is the number of blocks a message waits if the program
	// did not specify a duration.
	WaitTimeout uint32 `json:"waitTimeout"`

	OutgoingLimit      uint32      `json:"outgoingLimit"`
	MaxPayloadSize     uint32      `json:"maxPayloadSize"`
	MaxTotalPayload    uint64      `json:"maxTotalPayload"`
	ExistentialDeposit sable.Value `json:"existentialDeposit"`

	// ErrorReplies enables replies with a non-zero exit code for messages
	// whose processing trapped or which could not be executed.
	ErrorReplies bool `json:"errorReplies"`

	// Logger receives debug and diagnostic output. Nil disables logging.
	Logger *zap.Logger `json:"-"`
	// Registerer is used for publishing metrics. Nil disables publishing.
	Registerer prometheus.Registerer `json:"-"`
}

// DefaultConfig returns the configuration used for processors obtained
// through the processor registry.
func DefaultConfig() Config {
	settings := message.DefaultSettings()
	return Config{
		Interpreter:     "lpvm",
		Costs:           gas.DefaultCosts(),
		MaxPages:        512,
		WaitTimeout:     100,
		OutgoingLimit:   settings.OutgoingLimit,
		MaxPayloadSize:  settings.MaxPayloadSize,
		MaxTotalPayload: settings.MaxTotalPayload,
		ErrorReplies:    true,
	}
}

func (c *Config) settings(available sable.Value) message.Settings {
	return message.Settings{
		OutgoingLimit:      c.OutgoingLimit,
		MaxPayloadSize:     c.MaxPayloadSize,
		MaxTotalPayload:    c.MaxTotalPayload,
		ValueAvailable:     available,
		ExistentialDeposit: c.ExistentialDeposit,
	}
}
