// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package account

import (
	"github.com/luxfi/ids"
)

// Account is the local representation of a base-chain account.
type Account struct {
	Lamports   uint64 `serialize:"true"`
	Owner      ids.ID `serialize:"true"`
	Data       []byte `serialize:"true"`
	Executable bool   `serialize:"true"`
	RentEpoch  uint64 `serialize:"true"`
}

// ChainSnapshot is a point-in-time read of an account's base-chain state,
// tagged with the slot at which it was observed.
type ChainSnapshot struct {
	Key          ids.ID
	ObservedSlot uint64
	Account      Account

	// Exists is false when the base chain definitively reported that the
	// account does not exist at the observed slot.
	Exists bool

	// Delegated is true when the account's on-chain owner is the delegation
	// program, granting this validator authority to mutate it locally.
	Delegated bool

	// DelegatedOwner is the original owner recorded by the delegation
	// program. Only meaningful when Delegated is true.
	DelegatedOwner ids.ID
}

// IsNew reports whether the account does not exist on the base chain.
func (s *ChainSnapshot) IsNew() bool {
	return !s.Exists
}

// IsPayer reports whether the account is a plain system-owned wallet, the
// kind used to pay transaction fees.
func (s *ChainSnapshot) IsPayer() bool {
	return s.Exists &&
		!s.Delegated &&
		!s.Account.Executable &&
		s.Account.Owner == ids.Empty &&
		len(s.Account.Data) == 0
}

// Copy returns a deep copy of the snapshot. Snapshots are fanned out to
// every waiter of a deduplicated fetch, so waiters must not share data
// slices.
func (s *ChainSnapshot) Copy() *ChainSnapshot {
	snapshot := *s
	snapshot.Account.Data = make([]byte, len(s.Account.Data))
	copy(snapshot.Account.Data, s.Account.Data)
	return &snapshot
}
