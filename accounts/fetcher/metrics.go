// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fetcher

import (
	"github.com/luxfi/metric"
)

type workerMetrics struct {
	fetches   metric.Counter
	dedupHits metric.Counter
	failures  metric.Counter
}

func newWorkerMetrics(registerer metric.Registerer) (*workerMetrics, error) {
	m := &workerMetrics{
		fetches: metric.NewCounter(metric.CounterOpts{
			Name: "fetcher_remote_fetches",
			Help: "Number of remote account fetches issued",
		}),
		dedupHits: metric.NewCounter(metric.CounterOpts{
			Name: "fetcher_dedup_hits",
			Help: "Number of fetch requests served by an already in-flight fetch",
		}),
		failures: metric.NewCounter(metric.CounterOpts{
			Name: "fetcher_failures",
			Help: "Number of remote account fetches that failed",
		}),
	}

	for _, collector := range []metric.Counter{m.fetches, m.dedupHits, m.failures} {
		if err := registerer.Register(metric.AsCollector(collector)); err != nil {
			return nil, err
		}
	}
	return m, nil
}
