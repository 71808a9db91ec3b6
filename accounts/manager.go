// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package accounts orchestrates account synchronization between the base
// chain and local execution state. Before a transaction runs, the manager
// makes sure every foreign account it references is fetched, validated,
// cloned, and monitored; at slot boundaries it drives the scheduled-commits
// pipeline and evicts undelegated accounts.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/math/set"

	"github.com/luxfi/ephemeral/accounts/api"
	"github.com/luxfi/ephemeral/accounts/cloner"
	"github.com/luxfi/ephemeral/accounts/committer"
	"github.com/luxfi/ephemeral/accounts/fetcher"
	"github.com/luxfi/ephemeral/accounts/remover"
	"github.com/luxfi/ephemeral/accounts/updates"
	"github.com/luxfi/ephemeral/components/account"
	"github.com/luxfi/ephemeral/ledger"
	"github.com/luxfi/ephemeral/magic"
	"github.com/luxfi/ephemeral/metrics"
)

// An account whose clone raced a concurrent base-chain update is refetched
// at most this many times per preparation.
const maxEnsureIterations = 2

var _ magic.DelegationRegistry = (*Manager)(nil)

// Manager wires the fetcher, update monitor, cloner, remover, and
// commit-scheduling pipeline together.
type Manager struct {
	log       log.Logger
	metrics   *managerMetrics
	config    Config
	provider  api.InternalAccountProvider
	fetcher   fetcher.Fetcher
	monitor   updates.Monitor
	cloner    cloner.Cloner
	remover   remover.Remover
	extractor Extractor
	program   *magic.Program
	scheduler *magic.TransactionScheduler
	processor *committer.Processor

	mu        sync.RWMutex
	delegated set.Set[ids.ID]
}

// NewManager builds the full pipeline. The fetcher and update monitor run
// their own workers and are supplied by the caller; everything downstream
// of them is constructed here.
func NewManager(
	logger log.Logger,
	gatherer metrics.MultiGatherer,
	config Config,
	provider api.InternalAccountProvider,
	f fetcher.Fetcher,
	monitor updates.Monitor,
	chain committer.Committer,
	db database.Database,
) (*Manager, error) {
	m := &Manager{
		log:       logger,
		config:    config,
		provider:  provider,
		fetcher:   f,
		monitor:   monitor,
		remover:   remover.NewAccountRemover(logger),
		extractor: NewTransactionExtractor(config.Blacklist),
		scheduler: magic.NewTransactionScheduler(),
		delegated: make(set.Set[ids.ID]),
	}

	clonerReg, err := metrics.MakeAndRegister(gatherer, "cloner")
	if err != nil {
		return nil, err
	}
	m.cloner, err = cloner.NewStateCloner(
		logger,
		clonerReg,
		f,
		provider,
		config.Mode.Permissions(),
		config.PayerInitLamports,
	)
	if err != nil {
		return nil, err
	}

	m.program = magic.NewProgram(logger, provider, m, magic.NewContext(provider))

	committerReg, err := metrics.MakeAndRegister(gatherer, "committer")
	if err != nil {
		return nil, err
	}
	m.processor, err = committer.NewProcessor(
		logger,
		committerReg,
		config.Commit,
		m.program,
		m.scheduler,
		chain,
		ledger.NewCommitStore(db),
		m.remover,
	)
	if err != nil {
		return nil, err
	}

	managerReg, err := metrics.MakeAndRegister(gatherer, "manager")
	if err != nil {
		return nil, err
	}
	m.metrics, err = newManagerMetrics(managerReg)
	if err != nil {
		return nil, err
	}

	logger.Info("accounts manager initialized",
		log.Stringer("mode", config.Mode),
		log.Int("blacklisted", config.Blacklist.Len()),
	)
	return m, nil
}

// Program returns the commit-scheduling program backed by this manager's
// delegation records.
func (m *Manager) Program() *magic.Program {
	return m.program
}

// IsDelegated reports whether key was cloned as delegated to this
// validator.
func (m *Manager) IsDelegated(key ids.ID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.delegated.Contains(key)
}

type fetchRequest struct {
	key      ids.ID
	writable bool
	minSlot  uint64
}

// EnsureAccounts makes every foreign account tx references resident and
// monitored. Failure aborts preparation of this transaction only; local
// state keeps whatever accounts were already cloned.
func (m *Manager) EnsureAccounts(ctx context.Context, tx *account.Transaction) error {
	if err := m.ensure(ctx, tx); err != nil {
		m.metrics.preparationErrors.Inc()
		return err
	}
	m.metrics.prepared.Inc()
	return nil
}

func (m *Manager) ensure(ctx context.Context, tx *account.Transaction) error {
	readonly, writable := m.extractor.ExtractForeignAccounts(tx)

	for iteration := 0; iteration < maxEnsureIterations; iteration++ {
		var pending []fetchRequest
		for _, key := range writable {
			if req, ok := m.needsFetch(key); ok {
				pending = append(pending, fetchRequest{key: key, writable: true, minSlot: req})
			}
		}
		for _, key := range readonly {
			if req, ok := m.needsFetch(key); ok {
				pending = append(pending, fetchRequest{key: key, minSlot: req})
			}
		}
		if len(pending) == 0 {
			return nil
		}

		snapshots, err := m.fetchAll(ctx, pending)
		if err != nil {
			return err
		}

		for i, snapshot := range snapshots {
			if pending[i].writable && !writableAllowed(snapshot) {
				m.metrics.validationFailures.Inc()
				return fmt.Errorf("%w: %s", ErrWritableNotDelegated, snapshot.Key)
			}
			if _, err := m.cloner.CloneIntoLocal(ctx, snapshot); err != nil {
				return fmt.Errorf("cloning %s: %w", snapshot.Key, err)
			}
			m.recordDelegation(snapshot)
			if err := m.monitor.EnsureMonitoring(ctx, snapshot.Key); err != nil {
				return fmt.Errorf("monitoring %s: %w", snapshot.Key, err)
			}
		}
	}
	return nil
}

// needsFetch reports whether key must be (re)fetched, and at which minimum
// slot. A resident clone is trusted unless the monitor has seen a newer
// update.
func (m *Manager) needsFetch(key ids.ID) (uint64, bool) {
	var minSlot uint64
	if last, ok := m.monitor.LastKnownUpdateSlot(key); ok {
		minSlot = last
	}
	if !m.provider.HasAccount(key) {
		return minSlot, true
	}
	clonedAt, ok := m.cloner.ClonedAtSlot(key)
	if !ok || clonedAt < minSlot {
		return minSlot, true
	}
	// The monitor cannot vouch for changes that happened before it
	// subscribed; a clone older than the subscription must be refreshed.
	if first, ok := m.monitor.FirstSubscribedSlot(key); ok && clonedAt < first {
		return max(minSlot, first), true
	}
	return 0, false
}

func (m *Manager) fetchAll(ctx context.Context, pending []fetchRequest) ([]*account.ChainSnapshot, error) {
	snapshots := make([]*account.ChainSnapshot, len(pending))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, req := range pending {
		eg.Go(func() error {
			snapshot, err := m.fetcher.FetchSnapshot(egCtx, req.key, req.minSlot)
			switch {
			case errors.Is(err, fetcher.ErrNotFound):
				// Not on chain: a brand new account, typically a
				// wallet the user has not funded yet.
				snapshots[i] = &account.ChainSnapshot{
					Key:          req.key,
					ObservedSlot: m.provider.GetSlot(),
				}
				return nil
			case err != nil:
				return fmt.Errorf("fetching %s: %w", req.key, err)
			}
			snapshots[i] = snapshot
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return snapshots, nil
}

// writableAllowed checks a transaction's write claim against chain state.
// New accounts and plain payer wallets are writable without delegation.
func writableAllowed(snapshot *account.ChainSnapshot) bool {
	return snapshot.Delegated || snapshot.IsNew() || snapshot.IsPayer()
}

func (m *Manager) recordDelegation(snapshot *account.ChainSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if snapshot.Delegated {
		m.delegated.Add(snapshot.Key)
	} else {
		m.delegated.Remove(snapshot.Key)
	}
	m.metrics.numDelegated.Set(float64(m.delegated.Len()))
}

// ProcessScheduledCommits drives the commit pipeline once: it drains the
// outbox, submits and confirms commits, executes the queued follow-up
// instructions, and finally evicts accounts pending removal. It is the safe
// point at which no transaction holds references into local state.
func (m *Manager) ProcessScheduledCommits(ctx context.Context) error {
	if err := m.processor.Process(ctx); err != nil {
		return err
	}

	for _, tx := range m.scheduler.Take() {
		instr, err := magic.UnmarshalInstruction(tx.Instruction)
		if err != nil {
			m.log.Error("dropping malformed follow-up instruction", log.Err(err))
			continue
		}
		if _, err := m.program.ExecuteInstruction(instr); err != nil {
			m.log.Warn("follow-up instruction failed",
				log.Stringer("payer", tx.Payer),
				log.Err(err),
			)
			continue
		}
		if sent, ok := instr.(*magic.ScheduledCommitSentInstruction); ok {
			if err := m.processor.Acknowledge(sent.CommitID); err != nil {
				m.log.Warn("failed to finalize commit",
					log.Uint64("commitID", sent.CommitID),
					log.Err(err),
				)
			}
		}
	}

	m.evictPending()
	return nil
}

// PendingCommits lists the commits drained from the outbox but not yet
// acknowledged, including failed ones awaiting RetryCommit. Their payers
// stay locked until the commit lands.
func (m *Manager) PendingCommits() ([]*ledger.CommitRecord, error) {
	return m.processor.Pending()
}

// RetryCommit resubmits a failed commit.
func (m *Manager) RetryCommit(ctx context.Context, commitID uint64) error {
	return m.processor.Retry(ctx, commitID)
}

func (m *Manager) evictPending() {
	for _, key := range m.remover.PendingRemoval().List() {
		m.provider.RemoveAccount(key)
		m.monitor.StopMonitoring(key)
		m.cloner.Forget(key)

		m.mu.Lock()
		m.delegated.Remove(key)
		m.metrics.numDelegated.Set(float64(m.delegated.Len()))
		m.mu.Unlock()

		m.remover.RemovalDone(key)
		m.metrics.evictions.Inc()
		m.log.Debug("evicted account", log.Stringer("key", key))
	}
}
