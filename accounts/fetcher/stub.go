// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fetcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/luxfi/ids"

	"github.com/luxfi/ephemeral/components/account"
	"github.com/luxfi/ephemeral/components/program"
)

var _ Fetcher = (*Stub)(nil)

// Stub is a deterministic Fetcher for tests. Snapshots are configured up
// front; every fetch is counted.
type Stub struct {
	mu        sync.Mutex
	snapshots map[ids.ID]*account.ChainSnapshot
	errs      map[ids.ID]error
	fetches   map[ids.ID]int
}

func NewStub() *Stub {
	return &Stub{
		snapshots: make(map[ids.ID]*account.ChainSnapshot),
		errs:      make(map[ids.ID]error),
		fetches:   make(map[ids.ID]int),
	}
}

// SetDelegatedAccount configures key as delegated to this validator at slot.
func (s *Stub) SetDelegatedAccount(key ids.ID, slot uint64, owner ids.ID) {
	s.SetSnapshot(&account.ChainSnapshot{
		Key:          key,
		ObservedSlot: slot,
		Exists:       true,
		Account: account.Account{
			Lamports: 1,
			Owner:    program.DelegationID,
		},
		Delegated:      true,
		DelegatedOwner: owner,
	})
}

// SetUndelegatedAccount configures key as existing on chain but owned by
// owner, not the delegation program.
func (s *Stub) SetUndelegatedAccount(key ids.ID, slot uint64, owner ids.ID) {
	s.SetSnapshot(&account.ChainSnapshot{
		Key:          key,
		ObservedSlot: slot,
		Exists:       true,
		Account: account.Account{
			Lamports: 1,
			Owner:    owner,
		},
	})
}

// SetExecutableAccount configures key as a program account, along with the
// derived program-data account holding its bytecode.
func (s *Stub) SetExecutableAccount(key ids.ID, slot uint64) {
	s.SetSnapshot(&account.ChainSnapshot{
		Key:          key,
		ObservedSlot: slot,
		Exists:       true,
		Account: account.Account{
			Lamports:   1,
			Data:       []byte{0x7f, 0x45, 0x4c, 0x46},
			Executable: true,
		},
	})
	s.SetSnapshot(&account.ChainSnapshot{
		Key:          program.ProgramDataAddress(key),
		ObservedSlot: slot,
		Exists:       true,
		Account: account.Account{
			Lamports: 1,
			Data:     []byte{0x7f, 0x45, 0x4c, 0x46, 0x02},
		},
	})
}

func (s *Stub) SetSnapshot(snapshot *account.ChainSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshot.Key] = snapshot
}

func (s *Stub) SetError(key ids.ID, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[key] = err
}

// FetchCount reports how many times key has been fetched.
func (s *Stub) FetchCount(key ids.ID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches[key]
}

func (s *Stub) FetchSnapshot(_ context.Context, key ids.ID, minSlot uint64) (*account.ChainSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fetches[key]++
	if err, ok := s.errs[key]; ok {
		return nil, err
	}
	snapshot, ok := s.snapshots[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if minSlot != 0 && snapshot.ObservedSlot < minSlot {
		return nil, fmt.Errorf("%w: %s observed at slot %d, need at least %d",
			ErrFailedToFetch,
			key,
			snapshot.ObservedSlot,
			minSlot,
		)
	}
	return snapshot.Copy(), nil
}
