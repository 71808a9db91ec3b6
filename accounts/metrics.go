// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package accounts

import (
	"github.com/luxfi/metric"
)

type managerMetrics struct {
	prepared           metric.Counter
	preparationErrors  metric.Counter
	validationFailures metric.Counter
	evictions          metric.Counter
	numDelegated       metric.Gauge
}

func newManagerMetrics(registerer metric.Registerer) (*managerMetrics, error) {
	m := &managerMetrics{
		prepared: metric.NewCounter(metric.CounterOpts{
			Name: "prepared",
			Help: "Number of transactions whose accounts were ensured",
		}),
		preparationErrors: metric.NewCounter(metric.CounterOpts{
			Name: "preparation_errors",
			Help: "Number of transactions whose preparation failed",
		}),
		validationFailures: metric.NewCounter(metric.CounterOpts{
			Name: "validation_failures",
			Help: "Number of writable accounts rejected for missing delegation",
		}),
		evictions: metric.NewCounter(metric.CounterOpts{
			Name: "evictions",
			Help: "Number of accounts evicted from local state",
		}),
		numDelegated: metric.NewGauge(metric.GaugeOpts{
			Name: "delegated",
			Help: "Number of accounts currently delegated to this validator",
		}),
	}
	for _, c := range []metric.Counter{
		m.prepared,
		m.preparationErrors,
		m.validationFailures,
		m.evictions,
	} {
		if err := registerer.Register(metric.AsCollector(c)); err != nil {
			return nil, err
		}
	}
	if err := registerer.Register(metric.AsCollector(m.numDelegated)); err != nil {
		return nil, err
	}
	return m, nil
}
