// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package accounts

import (
	"github.com/luxfi/ids"
	"github.com/luxfi/math/set"

	"github.com/luxfi/ephemeral/components/account"
	"github.com/luxfi/ephemeral/components/program"
)

// Extractor decides which of a transaction's referenced accounts are
// foreign, meaning they live on the base chain and must be validated and
// materialized before the transaction can execute.
type Extractor interface {
	// ExtractForeignAccounts returns the foreign keys referenced by tx,
	// split by requested access. The payer is always writable. Keys are
	// deduplicated; a key requested both ways counts as writable.
	ExtractForeignAccounts(tx *account.Transaction) (readonly []ids.ID, writable []ids.ID)
}

var _ Extractor = (*TransactionExtractor)(nil)

// TransactionExtractor filters out the validator's own program accounts
// and any blacklisted keys.
type TransactionExtractor struct {
	skip set.Set[ids.ID]
}

func NewTransactionExtractor(blacklist set.Set[ids.ID]) *TransactionExtractor {
	skip := set.Of(
		program.SystemID,
		program.DelegationID,
		program.MagicID,
		program.MagicContextID,
	)
	skip = skip.Union(blacklist)
	return &TransactionExtractor{skip: skip}
}

func (e *TransactionExtractor) ExtractForeignAccounts(tx *account.Transaction) ([]ids.ID, []ids.ID) {
	var (
		seen     = make(set.Set[ids.ID])
		writable []ids.ID
		readonly []ids.ID
	)

	for _, key := range append([]ids.ID{tx.Payer}, tx.Writable...) {
		if e.skip.Contains(key) || seen.Contains(key) {
			continue
		}
		seen.Add(key)
		writable = append(writable, key)
	}
	for _, key := range tx.Readonly {
		if e.skip.Contains(key) || seen.Contains(key) {
			continue
		}
		seen.Add(key)
		readonly = append(readonly, key)
	}
	return readonly, writable
}
