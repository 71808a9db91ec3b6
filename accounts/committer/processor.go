// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package committer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/math/set"
	"github.com/luxfi/metric"

	"github.com/luxfi/ephemeral/accounts/remover"
	"github.com/luxfi/ephemeral/ledger"
	"github.com/luxfi/ephemeral/magic"
)

const (
	// A commit is submitted at most this many times before it is marked
	// failed. Failed commits stay in the ledger until Retry resubmits
	// them.
	defaultMaxSubmitAttempts = 3

	defaultRetryDelay = 500 * time.Millisecond
)

type Config struct {
	MaxSubmitAttempts uint32
	RetryDelay        time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxSubmitAttempts: defaultMaxSubmitAttempts,
		RetryDelay:        defaultRetryDelay,
	}
}

// Processor drains the outbox and walks every commit through submission,
// confirmation, and acknowledgment scheduling. Invoking it with an empty
// outbox is a no-op, and invoking it twice over the same drained set does
// not submit anything twice.
type Processor struct {
	log       log.Logger
	metrics   *processorMetrics
	config    Config
	program   *magic.Program
	scheduler *magic.TransactionScheduler
	committer Committer
	store     *ledger.CommitStore
	remover   remover.Remover

	mu sync.Mutex
	// Commit ids drained but not yet acknowledged or failed. Entries
	// here are never re-submitted.
	inFlight set.Set[uint64]
}

func NewProcessor(
	logger log.Logger,
	registerer metric.Registerer,
	config Config,
	program *magic.Program,
	scheduler *magic.TransactionScheduler,
	committer Committer,
	store *ledger.CommitStore,
	rem remover.Remover,
) (*Processor, error) {
	m, err := newProcessorMetrics(registerer)
	if err != nil {
		return nil, err
	}
	return &Processor{
		log:       logger,
		metrics:   m,
		config:    config,
		program:   program,
		scheduler: scheduler,
		committer: committer,
		store:     store,
		remover:   rem,
		inFlight:  make(set.Set[uint64]),
	}, nil
}

// Process drains the outbox and processes every commit in append order.
// Submission failures mark the commit failed and move on; they never abort
// the remaining commits.
func (p *Processor) Process(ctx context.Context) error {
	commits, err := p.program.Context().Take()
	if err != nil {
		return fmt.Errorf("draining outbox: %w", err)
	}

	fresh := make([]*magic.ScheduledCommit, 0, len(commits))
	for _, commit := range commits {
		drained, err := p.recordDrained(commit)
		if err != nil {
			return err
		}
		if drained {
			fresh = append(fresh, commit)
		}
	}

	for _, commit := range fresh {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.processCommit(ctx, commit)
	}
	return nil
}

// recordDrained registers commit for acknowledgment and persists it.
// Commits already in flight report false and are not reprocessed.
func (p *Processor) recordDrained(commit *magic.ScheduledCommit) (bool, error) {
	p.mu.Lock()
	alreadyInFlight := p.inFlight.Contains(commit.ID)
	if !alreadyInFlight {
		p.inFlight.Add(commit.ID)
	}
	p.mu.Unlock()
	if alreadyInFlight {
		return false, nil
	}

	p.program.RegisterSentCommit(commit)
	return true, p.store.Put(&ledger.CommitRecord{
		CommitID:   commit.ID,
		Slot:       commit.Slot,
		Payer:      commit.Payer,
		Keys:       commit.Keys(),
		Undelegate: commit.Undelegate,
		Status:     ledger.StatusDrained,
	})
}

func (p *Processor) processCommit(ctx context.Context, commit *magic.ScheduledCommit) {
	signature, attempts, err := p.submit(ctx, commit)
	if err != nil {
		p.fail(commit, fmt.Errorf("%w: %w", ErrSubmitFailed, err))
		return
	}

	record, err := p.store.Transition(commit.ID, ledger.StatusSubmitted)
	if err != nil {
		p.log.Error("failed to persist submission",
			log.Uint64("commitID", commit.ID),
			log.Err(err),
		)
	} else {
		record.Signature = signature
		record.Attempts = attempts
		if err := p.store.Put(record); err != nil {
			p.log.Error("failed to persist submission",
				log.Uint64("commitID", commit.ID),
				log.Err(err),
			)
		}
	}
	p.metrics.submitted.Inc()

	if err := p.committer.ConfirmTransaction(ctx, signature); err != nil {
		p.fail(commit, fmt.Errorf("%w: %w", ErrConfirmFailed, err))
		return
	}
	if _, err := p.store.Transition(commit.ID, ledger.StatusConfirmed); err != nil {
		p.log.Error("failed to persist confirmation",
			log.Uint64("commitID", commit.ID),
			log.Err(err),
		)
	}
	p.metrics.confirmed.Inc()

	p.scheduleAcknowledgment(commit)

	p.log.Info("commit confirmed",
		log.Uint64("commitID", commit.ID),
		log.Stringer("signature", signature),
		log.Uint64("slot", commit.Slot),
		log.Bool("undelegate", commit.Undelegate),
	)
}

func (p *Processor) submit(ctx context.Context, commit *magic.ScheduledCommit) (ids.ID, uint32, error) {
	var (
		signature ids.ID
		attempts  uint32
	)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.config.RetryDelay
	err := backoff.Retry(
		func() error {
			attempts++
			var err error
			signature, err = p.committer.SendTransaction(ctx, commit)
			if err != nil {
				p.metrics.retries.Inc()
			}
			return err
		},
		backoff.WithContext(backoff.WithMaxRetries(bo, uint64(p.config.MaxSubmitAttempts-1)), ctx),
	)
	return signature, attempts, err
}

func (p *Processor) fail(commit *magic.ScheduledCommit, err error) {
	p.log.Warn("commit failed",
		log.Uint64("commitID", commit.ID),
		log.Err(err),
	)
	p.metrics.failures.Inc()

	if _, err := p.store.Transition(commit.ID, ledger.StatusFailed); err != nil {
		p.log.Error("failed to persist failure",
			log.Uint64("commitID", commit.ID),
			log.Err(err),
		)
	}

	p.mu.Lock()
	p.inFlight.Remove(commit.ID)
	p.mu.Unlock()
}

// scheduleAcknowledgment queues the follow-up instruction that releases the
// payer lock once executed.
func (p *Processor) scheduleAcknowledgment(commit *magic.ScheduledCommit) {
	raw, err := magic.MarshalInstruction(&magic.ScheduledCommitSentInstruction{
		CommitID: commit.ID,
	})
	if err != nil {
		p.log.Error("failed to build acknowledgment",
			log.Uint64("commitID", commit.ID),
			log.Err(err),
		)
		return
	}
	p.scheduler.Schedule(magic.ScheduledTransaction{
		Payer:       commit.Payer,
		Instruction: raw,
	})
}

// Acknowledge finalizes a commit after its follow-up instruction executed.
// Undelegating commits hand their keys to the remover here.
func (p *Processor) Acknowledge(commitID uint64) error {
	record, err := p.store.Transition(commitID, ledger.StatusAcknowledged)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.inFlight.Remove(commitID)
	p.mu.Unlock()
	p.metrics.acknowledged.Inc()

	if record.Undelegate {
		p.remover.RequestRemoval(remover.ReasonUndelegated, record.Keys...)
	}
	return nil
}

// Retry resubmits a failed commit. The payload is recovered from the
// program's sent registry, where it stays until acknowledged, and the
// ledger record re-enters the lifecycle at Drained.
func (p *Processor) Retry(ctx context.Context, commitID uint64) error {
	commit, ok := p.program.SentCommit(commitID)
	if !ok {
		return fmt.Errorf("%w: id %d", magic.ErrCommitNotFound, commitID)
	}
	if _, err := p.store.Transition(commitID, ledger.StatusDrained); err != nil {
		return err
	}

	p.mu.Lock()
	p.inFlight.Add(commitID)
	p.mu.Unlock()

	p.processCommit(ctx, commit)
	return nil
}

// Pending lists the commits drained from the outbox but not yet
// acknowledged, failed ones included. Each record names the payer whose
// lock it holds.
func (p *Processor) Pending() ([]*ledger.CommitRecord, error) {
	return p.store.Pending()
}

// InFlight reports how many commits are drained but not yet acknowledged.
func (p *Processor) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight.Len()
}
