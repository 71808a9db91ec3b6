// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/metric"
)

func TestMakeAndRegisterPrefixesMetrics(t *testing.T) {
	require := require.New(t)

	gatherer := NewMultiGatherer()

	reg, err := MakeAndRegister(gatherer, "fetcher")
	require.NoError(err)

	counter := metric.NewCounter(metric.CounterOpts{
		Name: "fetches",
		Help: "help",
	})
	require.NoError(reg.Register(metric.AsCollector(counter)))
	counter.Inc()

	families, err := gatherer.Gather()
	require.NoError(err)
	require.Len(families, 1)
	require.Equal("fetcher_fetches", families[0].GetName())
}

func TestRegisterRejectsOverlappingPrefixes(t *testing.T) {
	require := require.New(t)

	gatherer := NewMultiGatherer()
	_, err := MakeAndRegister(gatherer, "commits")
	require.NoError(err)

	_, err = MakeAndRegister(gatherer, "commits")
	require.ErrorIs(err, errOverlappingNamespaces)

	_, err = MakeAndRegister(gatherer, "commits_pending")
	require.ErrorIs(err, errOverlappingNamespaces)

	// A shared prefix without a namespace boundary is fine.
	_, err = MakeAndRegister(gatherer, "commitsextra")
	require.NoError(err)
}

func TestDeregisterFreesPrefix(t *testing.T) {
	require := require.New(t)

	gatherer := NewMultiGatherer()
	_, err := MakeAndRegister(gatherer, "cloner")
	require.NoError(err)

	require.True(gatherer.Deregister("cloner"))
	require.False(gatherer.Deregister("cloner"))

	_, err = MakeAndRegister(gatherer, "cloner")
	require.NoError(err)
}
