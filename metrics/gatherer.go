// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics merges per-component metric registries into one gatherer,
// namespacing each component's metrics by its registered prefix.
package metrics

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/luxfi/metric"
	"google.golang.org/protobuf/proto"
)

var (
	_ MultiGatherer = (*prefixGatherer)(nil)

	errOverlappingNamespaces = errors.New("prefix could create overlapping namespaces")
)

// MultiGatherer extends the Gatherer interface by allowing additional
// gatherers to be registered under a name.
type MultiGatherer interface {
	metric.Gatherer

	// Register adds the outputs of gatherer to the results of future
	// calls to Gather, prefixed with name.
	Register(name string, gatherer metric.Gatherer) error

	// Deregister removes the gatherer registered under name. Returns
	// true if one was found.
	Deregister(name string) bool
}

// NewMultiGatherer returns a MultiGatherer that merges metrics by adding a
// prefix to their names.
func NewMultiGatherer() MultiGatherer {
	return &prefixGatherer{}
}

// MakeAndRegister creates a fresh registry and registers it with gatherer
// under name. Each component of the validator gets its own registry this
// way, so components never collide on metric names.
func MakeAndRegister(gatherer MultiGatherer, name string) (metric.Registry, error) {
	reg := metric.NewRegistry()
	if err := gatherer.Register(name, reg); err != nil {
		return nil, fmt.Errorf("couldn't register %q metrics: %w", name, err)
	}
	return reg, nil
}

type prefixGatherer struct {
	lock      sync.RWMutex
	names     []string
	gatherers []metric.Gatherer
}

func (g *prefixGatherer) Gather() ([]*metric.MetricFamily, error) {
	g.lock.RLock()
	defer g.lock.RUnlock()

	var allFamilies []*metric.MetricFamily
	for _, gatherer := range g.gatherers {
		families, err := gatherer.Gather()
		if err != nil {
			return allFamilies, err
		}
		allFamilies = append(allFamilies, families...)
	}

	sort.Slice(allFamilies, func(i, j int) bool {
		return allFamilies[i].GetName() < allFamilies[j].GetName()
	})
	return allFamilies, nil
}

func (g *prefixGatherer) Register(prefix string, gatherer metric.Gatherer) error {
	g.lock.Lock()
	defer g.lock.Unlock()

	for _, existingPrefix := range g.names {
		if eitherIsPrefix(prefix, existingPrefix) {
			return fmt.Errorf("%w: %q conflicts with %q",
				errOverlappingNamespaces,
				prefix,
				existingPrefix,
			)
		}
	}

	g.names = append(g.names, prefix)
	g.gatherers = append(g.gatherers, &prefixedGatherer{
		prefix:   prefix,
		gatherer: gatherer,
	})
	return nil
}

func (g *prefixGatherer) Deregister(prefix string) bool {
	g.lock.Lock()
	defer g.lock.Unlock()

	index := slices.Index(g.names, prefix)
	if index == -1 {
		return false
	}
	g.names = append(g.names[:index], g.names[index+1:]...)
	g.gatherers = append(g.gatherers[:index], g.gatherers[index+1:]...)
	return true
}

type prefixedGatherer struct {
	prefix   string
	gatherer metric.Gatherer
}

func (g *prefixedGatherer) Gather() ([]*metric.MetricFamily, error) {
	// Gather returns partially filled metrics on error, so the renaming
	// still has to happen before returning.
	metricFamilies, err := g.gatherer.Gather()
	for _, metricFamily := range metricFamilies {
		originalName := metricFamily.GetName()
		if originalName == "" {
			metricFamily.Name = proto.String(g.prefix)
			continue
		}
		metricFamily.Name = proto.String(metric.AppendNamespace(
			g.prefix,
			originalName,
		))
	}
	return metricFamilies, err
}

// eitherIsPrefix returns true if either name is a prefix of the other,
// respecting the "_" namespace boundary. "hello" is not considered a prefix
// of "helloworld", but it is a prefix of "hello_world".
func eitherIsPrefix(a, b string) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	return a == b[:len(a)] &&
		(len(a) == 0 ||
			len(a) == len(b) ||
			b[len(a)] == '_')
}
