// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package updates

import (
	"github.com/luxfi/metric"
)

type workerMetrics struct {
	numMonitored       metric.Gauge
	notifications      metric.Counter
	staleNotifications metric.Counter
}

func newWorkerMetrics(registerer metric.Registerer) (*workerMetrics, error) {
	m := &workerMetrics{
		numMonitored: metric.NewGauge(metric.GaugeOpts{
			Name: "updates_monitored_accounts",
			Help: "Number of accounts with an active update subscription",
		}),
		notifications: metric.NewCounter(metric.CounterOpts{
			Name: "updates_notifications",
			Help: "Number of account change notifications applied",
		}),
		staleNotifications: metric.NewCounter(metric.CounterOpts{
			Name: "updates_stale_notifications",
			Help: "Number of out-of-order notifications discarded",
		}),
	}

	if err := registerer.Register(metric.AsCollector(m.numMonitored)); err != nil {
		return nil, err
	}
	if err := registerer.Register(metric.AsCollector(m.notifications)); err != nil {
		return nil, err
	}
	if err := registerer.Register(metric.AsCollector(m.staleNotifications)); err != nil {
		return nil, err
	}
	return m, nil
}
