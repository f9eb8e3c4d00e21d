// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package ledger

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	height    prometheus.Gauge
	queue     prometheus.Gauge
	waitlist  prometheus.Gauge
	tasks     prometheus.Gauge
	blocks    prometheus.Counter
	rollbacks prometheus.Counter
	delivered prometheus.Counter
	expired   prometheus.Counter
}

func newMetrics(registerer prometheus.Registerer) *metrics {
	gauge := func(name, help string) prometheus.Gauge {
		return register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sable",
			Subsystem: "ledger",
			Name:      name,
			Help:      help,
		}))
	}
	counter := func(name, help string) prometheus.Counter {
		return register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sable",
			Subsystem: "ledger",
			Name:      name,
			Help:      help,
		}))
	}
	return &metrics{
		height:    gauge("height", "Height of the last processed block."),
		queue:     gauge("queue_length", "Number of queued dispatches."),
		waitlist:  gauge("waitlist_length", "Number of waiting messages."),
		tasks:     gauge("scheduled_tasks", "Number of pending scheduler tasks."),
		blocks:    counter("blocks_total", "Number of processed blocks."),
		rollbacks: counter("rollbacks_total", "Number of discarded blocks."),
		delivered: counter("delivered_total", "Number of messages delivered to mailboxes."),
		expired:   counter("expired_total", "Number of messages removed from the waitlist on expiry."),
	}
}

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

func (m *metrics) observe(l *Ledger, summary BlockSummary) {
	m.blocks.Inc()
	m.delivered.Add(float64(len(summary.Delivered)))
	m.expired.Add(float64(len(summary.Expired)))
	m.height.Set(float64(summary.Height))
	m.queue.Set(float64(l.queue.Len()))
	m.waitlist.Set(float64(len(l.waitlist)))
	m.tasks.Set(float64(l.tasks.Len()))
}
