// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cloner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/cache"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/math/set"
	"github.com/luxfi/metric"

	"github.com/luxfi/ephemeral/accounts/api"
	"github.com/luxfi/ephemeral/accounts/fetcher"
	"github.com/luxfi/ephemeral/components/account"
	"github.com/luxfi/ephemeral/components/program"
)

const outputCacheSize = 512

var _ Cloner = (*StateCloner)(nil)

type cloneOutput struct {
	slot    uint64
	changed []ids.ID
}

// StateCloner applies chain snapshots to the local account provider,
// enforcing the configured permissions and materializing the supporting
// accounts (program data, IDLs) executables need.
type StateCloner struct {
	log         log.Logger
	metrics     *clonerMetrics
	fetcher     fetcher.Fetcher
	provider    api.InternalAccountProvider
	permissions AllowedActions

	// Lamports granted to a payer on its first clone so locally signed
	// transactions can cover fees.
	payerInitLamports uint64

	mu       sync.Mutex
	clonedAt map[ids.ID]uint64
	outputs  *cache.LRU[ids.ID, cloneOutput]
}

func NewStateCloner(
	logger log.Logger,
	registerer metric.Registerer,
	f fetcher.Fetcher,
	provider api.InternalAccountProvider,
	permissions AllowedActions,
	payerInitLamports uint64,
) (*StateCloner, error) {
	m, err := newClonerMetrics(registerer)
	if err != nil {
		return nil, err
	}
	return &StateCloner{
		log:               logger,
		metrics:           m,
		fetcher:           f,
		provider:          provider,
		permissions:       permissions,
		payerInitLamports: payerInitLamports,
		clonedAt:          make(map[ids.ID]uint64),
		outputs:           &cache.LRU[ids.ID, cloneOutput]{Size: outputCacheSize},
	}, nil
}

func (c *StateCloner) CloneIntoLocal(ctx context.Context, snapshot *account.ChainSnapshot) (set.Set[ids.ID], error) {
	key := snapshot.Key

	c.mu.Lock()
	if slot, ok := c.clonedAt[key]; ok {
		if snapshot.ObservedSlot < slot {
			// Stale snapshot. A newer clone already landed, drop this
			// one regardless of arrival order.
			c.mu.Unlock()
			c.metrics.staleClones.Inc()
			return nil, nil
		}
		if snapshot.ObservedSlot == slot {
			if out, ok := c.outputs.Get(key); ok && out.slot == slot {
				c.mu.Unlock()
				c.metrics.cacheHits.Inc()
				return set.Of(out.changed...), nil
			}
		}
	}
	c.mu.Unlock()

	supporting, err := c.fetchSupportingAccounts(ctx, snapshot)
	if err != nil {
		return nil, err
	}

	// The provider writes happen under the lock, after the staleness
	// re-check, so a slow clone can never overwrite a newer one.
	c.mu.Lock()
	defer c.mu.Unlock()
	if slot, ok := c.clonedAt[key]; ok && snapshot.ObservedSlot < slot {
		// A newer clone raced us while the supporting accounts were
		// being fetched. Its state stands; report ours as a no-op.
		c.metrics.staleClones.Inc()
		return nil, nil
	}
	changed, err := c.apply(snapshot, supporting)
	if err != nil {
		return nil, err
	}
	c.clonedAt[key] = snapshot.ObservedSlot
	c.outputs.Put(key, cloneOutput{
		slot:    snapshot.ObservedSlot,
		changed: changed.List(),
	})
	c.metrics.clones.Inc()
	return changed, nil
}

func (c *StateCloner) apply(snapshot *account.ChainSnapshot, supporting []supportingAccount) (set.Set[ids.ID], error) {
	key := snapshot.Key
	changed := set.Of(key)

	switch {
	case snapshot.IsNew():
		if !c.permissions.AllowNewAccounts {
			return nil, reasonErr(ReasonNewAccountsDisallowed, key)
		}
		c.provider.SetAccount(key, &account.Account{
			Lamports: c.payerInitLamports,
			Owner:    program.SystemID,
		})
		c.log.Debug("cloned new account",
			log.Stringer("key", key),
			log.Uint64("lamports", c.payerInitLamports),
		)

	case snapshot.IsPayer():
		if !c.permissions.AllowPayerAccounts {
			return nil, reasonErr(ReasonPayerAccountsDisallowed, key)
		}
		acct := snapshot.Account
		acct.Lamports += c.payerInitLamports
		c.provider.SetAccount(key, &acct)
		c.log.Debug("cloned payer account",
			log.Stringer("key", key),
			log.Uint64("lamports", acct.Lamports),
		)

	case snapshot.Delegated:
		if !c.permissions.AllowDelegatedAccounts {
			return nil, reasonErr(ReasonDelegatedAccountsDisallowed, key)
		}
		// The chain holds the account under the delegation program. The
		// local copy restores the original owner so programs see the
		// account as their own.
		acct := snapshot.Account
		acct.Owner = snapshot.DelegatedOwner
		c.provider.SetAccount(key, &acct)
		c.log.Debug("cloned delegated account",
			log.Stringer("key", key),
			log.Stringer("owner", acct.Owner),
			log.Uint64("slot", snapshot.ObservedSlot),
		)

	case snapshot.Account.Executable:
		if !c.permissions.AllowProgramAccounts {
			return nil, reasonErr(ReasonProgramAccountsDisallowed, key)
		}
		acct := snapshot.Account
		c.provider.SetAccount(key, &acct)
		for _, sup := range supporting {
			supAcct := sup.acct
			c.provider.SetAccount(sup.key, &supAcct)
			changed.Add(sup.key)
		}
		c.log.Debug("cloned program account",
			log.Stringer("key", key),
			log.Int("supportingAccounts", len(supporting)),
		)

	default:
		if !c.permissions.AllowPDAAccounts {
			return nil, reasonErr(ReasonPDAAccountsDisallowed, key)
		}
		acct := snapshot.Account
		c.provider.SetAccount(key, &acct)
	}

	return changed, nil
}

type supportingAccount struct {
	key  ids.ID
	acct account.Account
}

// fetchSupportingAccounts resolves the extra accounts a program clone
// needs: the bytecode account (required) and any IDL accounts (best
// effort). It runs before the lock is taken, so the fetches never stall
// other clones.
func (c *StateCloner) fetchSupportingAccounts(ctx context.Context, snapshot *account.ChainSnapshot) ([]supportingAccount, error) {
	if snapshot.IsNew() || snapshot.IsPayer() || snapshot.Delegated || !snapshot.Account.Executable {
		return nil, nil
	}
	if !c.permissions.AllowProgramAccounts {
		return nil, reasonErr(ReasonProgramAccountsDisallowed, snapshot.Key)
	}

	dataKey := program.ProgramDataAddress(snapshot.Key)
	dataSnap, err := c.fetcher.FetchSnapshot(ctx, dataKey, snapshot.ObservedSlot)
	switch {
	case errors.Is(err, fetcher.ErrNotFound):
		return nil, fmt.Errorf("%w: program %s", ErrProgramDataNotFound, snapshot.Key)
	case err != nil:
		return nil, fmt.Errorf("fetching program data for %s: %w", snapshot.Key, err)
	}
	supporting := []supportingAccount{{key: dataKey, acct: dataSnap.Account}}

	for _, idlKey := range program.IDLAddresses(snapshot.Key) {
		idlSnap, err := c.fetcher.FetchSnapshot(ctx, idlKey, 0)
		if err != nil {
			// IDLs only serve tooling, a program runs fine without one.
			c.log.Debug("idl account unavailable",
				log.Stringer("program", snapshot.Key),
				log.Stringer("idl", idlKey),
				log.Err(err),
			)
			continue
		}
		supporting = append(supporting, supportingAccount{key: idlKey, acct: idlSnap.Account})
	}
	return supporting, nil
}

func (c *StateCloner) ClonedAtSlot(key ids.ID) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	slot, ok := c.clonedAt[key]
	return slot, ok
}

func (c *StateCloner) Forget(key ids.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.clonedAt, key)
	c.outputs.Evict(key)
}
