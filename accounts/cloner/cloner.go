// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package cloner materializes base-chain account snapshots inside the local
// execution environment.
package cloner

import (
	"context"
	"errors"
	"fmt"

	"github.com/luxfi/ids"
	"github.com/luxfi/math/set"

	"github.com/luxfi/ephemeral/components/account"
)

var (
	// ErrCloneNotAllowed is returned when the configured permissions
	// forbid cloning the snapshot's kind of account.
	ErrCloneNotAllowed = errors.New("cloning not allowed")

	// ErrProgramDataNotFound is returned when an executable account's
	// bytecode account does not exist on chain.
	ErrProgramDataNotFound = errors.New("program data account not found")
)

// UnclonableReason explains why a snapshot was refused.
type UnclonableReason uint8

const (
	ReasonNewAccountsDisallowed UnclonableReason = iota + 1
	ReasonPayerAccountsDisallowed
	ReasonPDAAccountsDisallowed
	ReasonDelegatedAccountsDisallowed
	ReasonProgramAccountsDisallowed
)

func (r UnclonableReason) String() string {
	switch r {
	case ReasonNewAccountsDisallowed:
		return "new accounts disallowed"
	case ReasonPayerAccountsDisallowed:
		return "payer accounts disallowed"
	case ReasonPDAAccountsDisallowed:
		return "pda accounts disallowed"
	case ReasonDelegatedAccountsDisallowed:
		return "delegated accounts disallowed"
	case ReasonProgramAccountsDisallowed:
		return "program accounts disallowed"
	default:
		return "unknown"
	}
}

func reasonErr(reason UnclonableReason, key ids.ID) error {
	return fmt.Errorf("%w: %s: %s", ErrCloneNotAllowed, key, reason)
}

// AllowedActions is the permission set deciding which kinds of accounts may
// be materialized locally.
type AllowedActions struct {
	AllowNewAccounts       bool
	AllowPayerAccounts     bool
	AllowPDAAccounts       bool
	AllowDelegatedAccounts bool
	AllowProgramAccounts   bool
	AllowRefresh           bool
}

// Cloner writes fetched snapshots into local account state. A snapshot
// older than the slot already recorded for its key is a no-op: the newer of
// any two competing clones wins, regardless of arrival order.
type Cloner interface {
	// CloneIntoLocal materializes snapshot in local state and returns the
	// set of keys actually changed. A stale snapshot returns an empty set
	// and no error.
	CloneIntoLocal(ctx context.Context, snapshot *account.ChainSnapshot) (set.Set[ids.ID], error)

	// ClonedAtSlot returns the slot of the snapshot last applied for key.
	ClonedAtSlot(key ids.ID) (uint64, bool)

	// Forget drops the clone bookkeeping for key, typically after the
	// account was evicted from local state.
	Forget(key ids.ID)
}
