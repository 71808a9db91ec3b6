// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package magic implements the commit-scheduling program and its outbox.
// Local programs ask it to commit delegated accounts back to the base
// chain; the scheduled-commits processor drains the requests and reports
// back once the base chain confirmed them.
package magic

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/ephemeral/accounts/api"
	"github.com/luxfi/ephemeral/components/account"
	"github.com/luxfi/ephemeral/components/program"
)

// ScheduleCommitCost is the lamport fee charged to the payer per scheduled
// commit. It funds the base-chain transaction the validator submits.
const ScheduleCommitCost uint64 = 10_000

// DelegationRegistry reports whether an account resident in local state is
// delegated to this validator.
type DelegationRegistry interface {
	IsDelegated(key ids.ID) bool
}

type payerLock struct {
	owner ids.ID
	count int
}

// Program handles the commit-scheduling instructions. Payers stay locked
// from schedule time until the matching ScheduledCommitSent arrives, so a
// payer cannot be mutated locally while it still has to sign on the base
// chain.
type Program struct {
	log         log.Logger
	provider    api.InternalAccountProvider
	delegations DelegationRegistry
	context     *Context

	commitID atomic.Uint64

	mu           sync.Mutex
	sent         map[uint64]*ScheduledCommit
	lockedPayers map[ids.ID]*payerLock
}

func NewProgram(
	logger log.Logger,
	provider api.InternalAccountProvider,
	delegations DelegationRegistry,
	context *Context,
) *Program {
	return &Program{
		log:          logger,
		provider:     provider,
		delegations:  delegations,
		context:      context,
		sent:         make(map[uint64]*ScheduledCommit),
		lockedPayers: make(map[ids.ID]*payerLock),
	}
}

// Context returns the outbox this program appends to.
func (p *Program) Context() *Context {
	return p.context
}

// ScheduleCommit enqueues a commit of keys' current local state.
func (p *Program) ScheduleCommit(payer ids.ID, keys []ids.ID) (uint64, error) {
	return p.schedule(payer, keys, false)
}

// ScheduleCommitAndUndelegate enqueues a commit that also returns keys to
// base-chain control once it lands.
func (p *Program) ScheduleCommitAndUndelegate(payer ids.ID, keys []ids.ID) (uint64, error) {
	return p.schedule(payer, keys, true)
}

func (p *Program) schedule(payer ids.ID, keys []ids.ID, undelegate bool) (uint64, error) {
	if len(keys) > MaxCommitAccounts {
		return 0, fmt.Errorf("%w: %d > %d", ErrTooManyAccounts, len(keys), MaxCommitAccounts)
	}

	payerAcct, ok := p.provider.GetAccount(payer)
	if !ok {
		return 0, fmt.Errorf("%w: payer %s", ErrFailedToTransferCommitCost, payer)
	}
	if payerAcct.Executable {
		return 0, fmt.Errorf("%w: %s", ErrPayerIsProgram, payer)
	}
	if payerAcct.Lamports < ScheduleCommitCost {
		return 0, fmt.Errorf("%w: payer %s holds %d lamports, needs %d",
			ErrFailedToTransferCommitCost,
			payer,
			payerAcct.Lamports,
			ScheduleCommitCost,
		)
	}

	commit := &ScheduledCommit{
		Slot:       p.provider.GetSlot(),
		Payer:      payer,
		Accounts:   make([]account.Modification, 0, len(keys)),
		Undelegate: undelegate,
	}
	for _, key := range keys {
		if !p.delegations.IsDelegated(key) {
			return 0, fmt.Errorf("%w: %s", ErrAccountNotDelegated, key)
		}
		acct, ok := p.provider.GetAccount(key)
		if !ok {
			return 0, fmt.Errorf("%w: %s not resident", ErrAccountNotDelegated, key)
		}
		commit.Accounts = append(commit.Accounts, account.ModificationFromAccount(key, acct))
	}

	payerAcct.Lamports -= ScheduleCommitCost
	p.provider.SetAccount(payer, payerAcct)
	p.lockPayer(payer, payerAcct)

	commit.ID = p.commitID.Add(1)
	if err := p.context.Append(commit); err != nil {
		// Unwind the fee and the lock so a full outbox leaves no trace.
		payerAcct.Lamports += ScheduleCommitCost
		p.provider.SetAccount(payer, payerAcct)
		p.unlockPayer(payer)
		return 0, err
	}

	p.log.Debug("scheduled commit",
		log.Uint64("commitID", commit.ID),
		log.Uint64("slot", commit.Slot),
		log.Stringer("payer", payer),
		log.Int("accounts", len(keys)),
		log.Bool("undelegate", undelegate),
	)
	return commit.ID, nil
}

// RegisterSentCommit records a drained commit so the follow-up
// ScheduledCommitSent instruction can find it. Called by the processor
// before it submits the base-chain transaction.
func (p *Program) RegisterSentCommit(commit *ScheduledCommit) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent[commit.ID] = commit
}

// SentCommit looks up a registered commit by id.
func (p *Program) SentCommit(id uint64) (*ScheduledCommit, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	commit, ok := p.sent[id]
	return commit, ok
}

// ScheduledCommitSent consumes the registered commit with the given id and
// releases its payer lock. It is the only acknowledgment path: until it
// runs, the payer stays locked.
func (p *Program) ScheduledCommitSent(id uint64) error {
	p.mu.Lock()
	commit, ok := p.sent[id]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("%w: id %d", ErrCommitNotFound, id)
	}
	delete(p.sent, id)
	p.mu.Unlock()

	if err := p.unlockPayer(commit.Payer); err != nil {
		return err
	}

	p.log.Debug("commit acknowledged",
		log.Uint64("commitID", id),
		log.Stringer("payer", commit.Payer),
	)
	return nil
}

// IsPayerLocked reports whether key currently backs an unacknowledged
// commit.
func (p *Program) IsPayerLocked(key ids.ID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.lockedPayers[key]
	return ok
}

func (p *Program) lockPayer(payer ids.ID, acct *account.Account) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if lock, ok := p.lockedPayers[payer]; ok {
		lock.count++
		return
	}
	p.lockedPayers[payer] = &payerLock{
		owner: acct.Owner,
		count: 1,
	}
	acct.Owner = program.DelegationID
	p.provider.SetAccount(payer, acct)
}

func (p *Program) unlockPayer(payer ids.ID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	lock, ok := p.lockedPayers[payer]
	if !ok {
		return fmt.Errorf("%w: payer %s is not locked", ErrUnableToUnlockSentCommits, payer)
	}
	lock.count--
	if lock.count > 0 {
		return nil
	}
	delete(p.lockedPayers, payer)

	acct, ok := p.provider.GetAccount(payer)
	if !ok {
		return fmt.Errorf("%w: payer %s is not resident", ErrUnableToUnlockSentCommits, payer)
	}
	acct.Owner = lock.owner
	p.provider.SetAccount(payer, acct)
	return nil
}
