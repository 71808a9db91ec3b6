// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package api declares the capability interface through which the
// synchronization core reads and writes local account state. The execution
// engine owns the actual storage.
package api

import (
	"github.com/luxfi/ids"

	"github.com/luxfi/ephemeral/components/account"
)

// InternalAccountProvider reads and writes accounts resident in the local
// execution environment. Mutations are serialized by the caller: the core
// never mutates local state concurrently with itself.
type InternalAccountProvider interface {
	HasAccount(key ids.ID) bool
	GetAccount(key ids.ID) (*account.Account, bool)
	SetAccount(key ids.ID, acct *account.Account)
	RemoveAccount(key ids.ID)

	// GetSlot returns the local environment's current slot.
	GetSlot() uint64
}
