// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cloner

import (
	"context"
	"sync"

	"github.com/luxfi/ids"
	"github.com/luxfi/math/set"

	"github.com/luxfi/ephemeral/components/account"
)

var _ Cloner = (*Stub)(nil)

// Stub is a Cloner for tests. It records the snapshots it was asked to
// apply without touching any account provider.
type Stub struct {
	mu       sync.Mutex
	clonedAt map[ids.ID]uint64
	cloned   []ids.ID
	err      error
}

func NewStub() *Stub {
	return &Stub{clonedAt: make(map[ids.ID]uint64)}
}

// SetError makes every subsequent clone fail with err.
func (s *Stub) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Cloned returns the keys cloned so far, in order.
func (s *Stub) Cloned() []ids.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ids.ID(nil), s.cloned...)
}

func (s *Stub) CloneIntoLocal(_ context.Context, snapshot *account.ChainSnapshot) (set.Set[ids.ID], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if slot, ok := s.clonedAt[snapshot.Key]; ok && snapshot.ObservedSlot < slot {
		return nil, nil
	}
	s.clonedAt[snapshot.Key] = snapshot.ObservedSlot
	s.cloned = append(s.cloned, snapshot.Key)
	return set.Of(snapshot.Key), nil
}

func (s *Stub) ClonedAtSlot(key ids.ID) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.clonedAt[key]
	return slot, ok
}

func (s *Stub) Forget(key ids.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clonedAt, key)
}
