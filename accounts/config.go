// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package accounts

import (
	"github.com/luxfi/ids"
	"github.com/luxfi/math/set"

	"github.com/luxfi/ephemeral/accounts/cloner"
	"github.com/luxfi/ephemeral/accounts/committer"
)

// LifecycleMode decides which kinds of base-chain accounts the validator
// materializes locally.
type LifecycleMode uint8

const (
	// ModeEphemeral clones everything, including brand new accounts.
	// This is the normal operating mode.
	ModeEphemeral LifecycleMode = iota

	// ModeReplica mirrors existing chain state but refuses to create
	// accounts that do not exist on chain.
	ModeReplica

	// ModeProgramsReplica mirrors programs only.
	ModeProgramsReplica

	// ModeOffline clones nothing.
	ModeOffline
)

func (m LifecycleMode) String() string {
	switch m {
	case ModeEphemeral:
		return "ephemeral"
	case ModeReplica:
		return "replica"
	case ModeProgramsReplica:
		return "programs-replica"
	case ModeOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Permissions maps the mode to the cloner's permission set.
func (m LifecycleMode) Permissions() cloner.AllowedActions {
	switch m {
	case ModeEphemeral:
		return cloner.AllowedActions{
			AllowNewAccounts:       true,
			AllowPayerAccounts:     true,
			AllowPDAAccounts:       true,
			AllowDelegatedAccounts: true,
			AllowProgramAccounts:   true,
			AllowRefresh:           true,
		}
	case ModeReplica:
		return cloner.AllowedActions{
			AllowPayerAccounts:     true,
			AllowPDAAccounts:       true,
			AllowDelegatedAccounts: true,
			AllowProgramAccounts:   true,
			AllowRefresh:           true,
		}
	case ModeProgramsReplica:
		return cloner.AllowedActions{
			AllowProgramAccounts: true,
			AllowRefresh:         true,
		}
	default:
		return cloner.AllowedActions{}
	}
}

type Config struct {
	Mode LifecycleMode

	// Blacklist lists accounts that are never fetched, cloned, or
	// monitored, typically chain-internal accounts that change every
	// slot.
	Blacklist set.Set[ids.ID]

	// PayerInitLamports is granted to payer accounts on first clone so
	// locally signed transactions can cover fees.
	PayerInitLamports uint64

	Commit committer.Config
}

func DefaultConfig() Config {
	return Config{
		Mode:              ModeEphemeral,
		PayerInitLamports: 1_000_000_000,
		Commit:            committer.DefaultConfig(),
	}
}
