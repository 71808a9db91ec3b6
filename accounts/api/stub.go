// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"sync"

	"github.com/luxfi/ids"

	"github.com/luxfi/ephemeral/components/account"
)

var _ InternalAccountProvider = (*Stub)(nil)

// Stub is a deterministic in-memory InternalAccountProvider for tests.
type Stub struct {
	mu       sync.RWMutex
	slot     uint64
	accounts map[ids.ID]*account.Account
	removed  []ids.ID
}

func NewStub() *Stub {
	return &Stub{
		accounts: make(map[ids.ID]*account.Account),
	}
}

func (s *Stub) SetSlot(slot uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slot = slot
}

func (s *Stub) HasAccount(key ids.ID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.accounts[key]
	return ok
}

func (s *Stub) GetAccount(key ids.ID) (*account.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[key]
	return acct, ok
}

func (s *Stub) SetAccount(key ids.ID, acct *account.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[key] = acct
}

func (s *Stub) RemoveAccount(key ids.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, key)
	s.removed = append(s.removed, key)
}

func (s *Stub) GetSlot() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slot
}

// Removed reports every key removed so far, in removal order.
func (s *Stub) Removed() []ids.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	removed := make([]ids.ID, len(s.removed))
	copy(removed, s.removed)
	return removed
}
