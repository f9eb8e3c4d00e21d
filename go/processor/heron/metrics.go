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
	"errors"

	"github.com/Fantom-foundation/Sable/go/sable"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	dispatches *prometheus.CounterVec
	traps      *prometheus.CounterVec
	gasBurned  prometheus.Counter
	stopped    prometheus.Counter
}

func newMetrics(registerer prometheus.Registerer) *metrics {
	return &metrics{
		dispatches: register(registerer, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sable",
				Subsystem: "processor",
				Name:      "dispatches_total",
				Help:      "Number of processed dispatches by outcome.",
			},
			[]string{"outcome"},
		)),
		traps: register(registerer, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sable",
				Subsystem: "processor",
				Name:      "traps_total",
				Help:      "Number of trapped executions by trap kind.",
			},
			[]string{"kind"},
		)),
		gasBurned: register(registerer, prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "sable",
				Subsystem: "processor",
				Name:      "gas_burned_total",
				Help:      "Gas burned by all processed dispatches.",
			},
		)),
		stopped: register(registerer, prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "sable",
				Subsystem: "processor",
				Name:      "allowance_exceeded_total",
				Help:      "Number of dispatches stopped by the exhaustion of the block allowance.",
			},
		)),
	}
}

// register publishes the given collector. If an equal collector has been
// registered before, for instance by another processor, it is reused.
func register[C prometheus.Collector](registerer prometheus.Registerer, collector C) C {
	if registerer == nil {
		return collector
	}
	if err := registerer.Register(collector); err != nil {
		var registered prometheus.AlreadyRegisteredError
		if errors.As(err, &registered) {
			if existing, ok := registered.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return collector
}

func (m *metrics) observe(journal sable.Journal) {
	for _, note := range journal {
		switch note := note.(type) {
		case sable.MessageDispatched:
			m.dispatches.WithLabelValues(note.Outcome.String()).Inc()
		case sable.GasBurned:
			m.gasBurned.Add(float64(note.Amount))
		case sable.ProgramTrapped:
			m.traps.WithLabelValues(note.Trap.Kind.String()).Inc()
		case sable.ProcessingStopped:
			m.stopped.Inc()
		}
	}
}
