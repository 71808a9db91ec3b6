// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package updates

import (
	"context"
	"sync"

	"github.com/luxfi/ids"
	"github.com/luxfi/math/set"
)

var _ Monitor = (*Stub)(nil)

// Stub is a deterministic Monitor for tests.
type Stub struct {
	mu         sync.RWMutex
	slot       uint64
	monitoring set.Set[ids.ID]
	first      map[ids.ID]uint64
	last       map[ids.ID]uint64
	ensureErr  error
}

func NewStub() *Stub {
	return &Stub{
		monitoring: make(set.Set[ids.ID]),
		first:      make(map[ids.ID]uint64),
		last:       make(map[ids.ID]uint64),
	}
}

// SetCurrentSlot sets the slot recorded as first-subscribed for keys
// monitored from now on.
func (s *Stub) SetCurrentSlot(slot uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slot = slot
}

// SetKnownUpdateSlot records an observed change for key, keeping the
// recorded slot monotonic.
func (s *Stub) SetKnownUpdateSlot(key ids.ID, slot uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.last[key]; ok && slot < last {
		return
	}
	s.last[key] = slot
}

// SetEnsureError makes every EnsureMonitoring call fail with err.
func (s *Stub) SetEnsureError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureErr = err
}

// IsMonitoring reports whether key is tracked.
func (s *Stub) IsMonitoring(key ids.ID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.monitoring.Contains(key)
}

func (s *Stub) EnsureMonitoring(_ context.Context, key ids.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensureErr != nil {
		return s.ensureErr
	}
	if !s.monitoring.Contains(key) {
		s.monitoring.Add(key)
		s.first[key] = s.slot
	}
	return nil
}

func (s *Stub) StopMonitoring(key ids.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monitoring.Remove(key)
	delete(s.first, key)
	delete(s.last, key)
}

func (s *Stub) FirstSubscribedSlot(key ids.ID) (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slot, ok := s.first[key]
	return slot, ok
}

func (s *Stub) LastKnownUpdateSlot(key ids.ID) (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slot, ok := s.last[key]
	return slot, ok
}
