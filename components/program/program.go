// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package program holds the well-known base-chain program identifiers the
// synchronization core depends on.
package program

import (
	"crypto/sha256"

	"github.com/luxfi/ids"
	"github.com/mr-tron/base58"
)

var (
	// DelegationID is the delegation program. An account whose on-chain
	// owner is this program is delegated to an ephemeral validator.
	DelegationID = mustParse("DELeGGvXpWV2fqJUhqcF5ZSYMS4JTLjteaAMARRSaeSh")

	// MagicID is the local program that schedules commits.
	MagicID = mustParse("Magic11111111111111111111111111111111111111")

	// MagicContextID is the account holding the scheduled-commit outbox.
	MagicContextID = mustParse("MagicContext1111111111111111111111111111111")

	// SystemID owns plain wallet (fee payer) accounts.
	SystemID = ids.Empty
)

func mustParse(address string) ids.ID {
	raw, err := base58.Decode(address)
	if err != nil {
		panic(err)
	}
	id, err := ids.ToID(raw)
	if err != nil {
		panic(err)
	}
	return id
}

const (
	anchorIDLSeed = "anchor:idl"
	shankIDLSeed  = "shank:idl"
)

// IDLAddresses derives the deterministic seed addresses at which a program's
// IDL-description accounts may live, in lookup order.
func IDLAddresses(programID ids.ID) []ids.ID {
	return []ids.ID{
		createWithSeed(programID, anchorIDLSeed),
		createWithSeed(programID, shankIDLSeed),
	}
}

// ProgramDataAddress derives the address of the account holding a program's
// executable bytecode.
func ProgramDataAddress(programID ids.ID) ids.ID {
	return createWithSeed(programID, "program:data")
}

func createWithSeed(base ids.ID, seed string) ids.ID {
	h := sha256.New()
	h.Write(base[:])
	h.Write([]byte(seed))
	id, _ := ids.ToID(h.Sum(nil))
	return id
}
