// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package committer

import (
	"github.com/luxfi/metric"
)

type processorMetrics struct {
	submitted    metric.Counter
	confirmed    metric.Counter
	acknowledged metric.Counter
	failures     metric.Counter
	retries      metric.Counter
}

func newProcessorMetrics(registerer metric.Registerer) (*processorMetrics, error) {
	m := &processorMetrics{
		submitted: metric.NewCounter(metric.CounterOpts{
			Name: "submitted",
			Help: "Number of commit transactions sent to the base chain",
		}),
		confirmed: metric.NewCounter(metric.CounterOpts{
			Name: "confirmed",
			Help: "Number of commit transactions the base chain confirmed",
		}),
		acknowledged: metric.NewCounter(metric.CounterOpts{
			Name: "acknowledged",
			Help: "Number of commits fully acknowledged locally",
		}),
		failures: metric.NewCounter(metric.CounterOpts{
			Name: "failures",
			Help: "Number of commits that failed submission or confirmation",
		}),
		retries: metric.NewCounter(metric.CounterOpts{
			Name: "retries",
			Help: "Number of failed submission attempts, including retried ones",
		}),
	}
	for _, c := range []metric.Counter{
		m.submitted,
		m.confirmed,
		m.acknowledged,
		m.failures,
		m.retries,
	} {
		if err := registerer.Register(metric.AsCollector(c)); err != nil {
			return nil, err
		}
	}
	return m, nil
}
