// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cloner

import (
	"github.com/luxfi/metric"
)

type clonerMetrics struct {
	clones      metric.Counter
	staleClones metric.Counter
	cacheHits   metric.Counter
}

func newClonerMetrics(registerer metric.Registerer) (*clonerMetrics, error) {
	m := &clonerMetrics{
		clones: metric.NewCounter(metric.CounterOpts{
			Name: "clones",
			Help: "Number of snapshots applied to local state",
		}),
		staleClones: metric.NewCounter(metric.CounterOpts{
			Name: "stale_clones",
			Help: "Number of snapshots dropped because a newer clone already landed",
		}),
		cacheHits: metric.NewCounter(metric.CounterOpts{
			Name: "cache_hits",
			Help: "Number of clones answered from the output cache",
		}),
	}
	for _, c := range []metric.Counter{m.clones, m.staleClones, m.cacheHits} {
		if err := registerer.Register(metric.AsCollector(c)); err != nil {
			return nil, err
		}
	}
	return m, nil
}
