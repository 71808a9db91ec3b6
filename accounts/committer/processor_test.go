// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package committer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"

	"github.com/luxfi/ephemeral/accounts/api"
	"github.com/luxfi/ephemeral/accounts/remover"
	"github.com/luxfi/ephemeral/components/account"
	"github.com/luxfi/ephemeral/components/program"
	"github.com/luxfi/ephemeral/ledger"
	"github.com/luxfi/ephemeral/magic"
)

type allDelegated struct{}

func (allDelegated) IsDelegated(ids.ID) bool { return true }

type processorTest struct {
	provider  *api.Stub
	program   *magic.Program
	scheduler *magic.TransactionScheduler
	committer *Stub
	store     *ledger.CommitStore
	remover   *remover.AccountRemover
	processor *Processor

	payer     ids.ID
	delegated ids.ID
}

func newProcessorTest(t *testing.T) *processorTest {
	t.Helper()
	require := require.New(t)

	pt := &processorTest{
		provider:  api.NewStub(),
		scheduler: magic.NewTransactionScheduler(),
		committer: NewStub(),
		store:     ledger.NewCommitStore(memdb.New()),
		remover:   remover.NewAccountRemover(log.NoLog{}),
		payer:     ids.GenerateTestID(),
		delegated: ids.GenerateTestID(),
	}
	pt.provider.SetSlot(100)
	pt.provider.SetAccount(pt.payer, &account.Account{
		Lamports: 1_000_000,
		Owner:    program.SystemID,
	})
	pt.provider.SetAccount(pt.delegated, &account.Account{
		Lamports: 500,
		Owner:    ids.GenerateTestID(),
	})
	pt.program = magic.NewProgram(log.NoLog{}, pt.provider, allDelegated{}, magic.NewContext(pt.provider))

	var err error
	pt.processor, err = NewProcessor(
		log.NoLog{},
		metric.NewRegistry(),
		Config{MaxSubmitAttempts: 3, RetryDelay: time.Millisecond},
		pt.program,
		pt.scheduler,
		pt.committer,
		pt.store,
		pt.remover,
	)
	require.NoError(err)
	return pt
}

func (pt *processorTest) schedule(t *testing.T, undelegate bool) uint64 {
	t.Helper()

	var (
		id  uint64
		err error
	)
	if undelegate {
		id, err = pt.program.ScheduleCommitAndUndelegate(pt.payer, []ids.ID{pt.delegated})
	} else {
		id, err = pt.program.ScheduleCommit(pt.payer, []ids.ID{pt.delegated})
	}
	require.NoError(t, err)
	return id
}

// acknowledge runs the queued follow-up instructions the way the
// orchestrator would.
func (pt *processorTest) acknowledge(t *testing.T) {
	t.Helper()
	for _, tx := range pt.scheduler.Take() {
		_, err := pt.program.Execute(tx.Instruction)
		require.NoError(t, err)

		instr, err := magic.UnmarshalInstruction(tx.Instruction)
		require.NoError(t, err)
		sent, ok := instr.(*magic.ScheduledCommitSentInstruction)
		require.True(t, ok)
		require.NoError(t, pt.processor.Acknowledge(sent.CommitID))
	}
}

func TestProcessEmptyOutboxIsNoOp(t *testing.T) {
	require := require.New(t)
	pt := newProcessorTest(t)

	require.NoError(pt.processor.Process(context.Background()))
	require.Empty(pt.committer.Sent())
	require.Zero(pt.processor.InFlight())
}

func TestProcessSubmitsConfirmsAndAcknowledges(t *testing.T) {
	require := require.New(t)
	pt := newProcessorTest(t)

	id := pt.schedule(t, false)
	require.NoError(pt.processor.Process(context.Background()))

	require.Len(pt.committer.Sent(), 1)
	require.Len(pt.committer.Confirmed(), 1)
	require.Equal(1, pt.processor.InFlight())
	require.Equal(1, pt.scheduler.Len())

	record, err := pt.store.Get(id)
	require.NoError(err)
	require.Equal(ledger.StatusConfirmed, record.Status)
	require.NotEqual(ids.Empty, record.Signature)
	require.Equal(uint32(1), record.Attempts)

	// The payer stays locked until the follow-up instruction runs.
	require.True(pt.program.IsPayerLocked(pt.payer))

	pt.acknowledge(t)
	require.False(pt.program.IsPayerLocked(pt.payer))
	require.Zero(pt.processor.InFlight())

	record, err = pt.store.Get(id)
	require.NoError(err)
	require.Equal(ledger.StatusAcknowledged, record.Status)
}

func TestProcessDrainsInAppendOrder(t *testing.T) {
	require := require.New(t)
	pt := newProcessorTest(t)

	first := pt.schedule(t, false)
	second := pt.schedule(t, false)

	require.NoError(pt.processor.Process(context.Background()))

	sent := pt.committer.Sent()
	require.Len(sent, 2)
	require.Equal(first, sent[0].ID)
	require.Equal(second, sent[1].ID)
}

func TestProcessTwiceDoesNotResubmit(t *testing.T) {
	require := require.New(t)
	pt := newProcessorTest(t)

	pt.schedule(t, false)
	require.NoError(pt.processor.Process(context.Background()))
	require.Len(pt.committer.Sent(), 1)

	// Nothing new arrived, so reprocessing must be a no-op.
	require.NoError(pt.processor.Process(context.Background()))
	require.Len(pt.committer.Sent(), 1)
}

func TestProcessSkipsCommitsStillInFlight(t *testing.T) {
	require := require.New(t)
	pt := newProcessorTest(t)

	pt.schedule(t, false)
	require.NoError(pt.processor.Process(context.Background()))

	sent := pt.committer.Sent()
	require.Len(sent, 1)

	// The same drained commit showing up again must not double-spend
	// the payer.
	require.NoError(pt.program.Context().Append(sent[0]))
	require.NoError(pt.processor.Process(context.Background()))
	require.Len(pt.committer.Sent(), 1)
}

func TestProcessRetriesTransientSubmitFailures(t *testing.T) {
	require := require.New(t)
	pt := newProcessorTest(t)

	pt.committer.FailSends(errors.New("connection reset"))

	id := pt.schedule(t, false)
	require.NoError(pt.processor.Process(context.Background()))

	require.Len(pt.committer.Sent(), 1)

	record, err := pt.store.Get(id)
	require.NoError(err)
	require.Equal(ledger.StatusConfirmed, record.Status)
	require.Equal(uint32(2), record.Attempts)
}

func TestProcessMarksFailedAfterMaxAttempts(t *testing.T) {
	require := require.New(t)
	pt := newProcessorTest(t)

	transportErr := errors.New("connection reset")
	pt.committer.FailSends(transportErr, transportErr, transportErr)

	id := pt.schedule(t, false)
	require.NoError(pt.processor.Process(context.Background()))

	require.Empty(pt.committer.Sent())
	require.Zero(pt.processor.InFlight())

	record, err := pt.store.Get(id)
	require.NoError(err)
	require.Equal(ledger.StatusFailed, record.Status)
}

func TestRetryResubmitsFailedCommit(t *testing.T) {
	require := require.New(t)
	pt := newProcessorTest(t)

	transportErr := errors.New("connection reset")
	pt.committer.FailSends(transportErr, transportErr, transportErr)

	id := pt.schedule(t, false)
	require.NoError(pt.processor.Process(context.Background()))

	// The failed commit stays enumerable, its payer still locked.
	pending, err := pt.processor.Pending()
	require.NoError(err)
	require.Len(pending, 1)
	require.Equal(id, pending[0].CommitID)
	require.Equal(ledger.StatusFailed, pending[0].Status)
	require.Equal(pt.payer, pending[0].Payer)
	require.True(pt.program.IsPayerLocked(pt.payer))

	// The chain recovered, so the retry lands.
	require.NoError(pt.processor.Retry(context.Background(), id))

	require.Len(pt.committer.Sent(), 1)
	record, err := pt.store.Get(id)
	require.NoError(err)
	require.Equal(ledger.StatusConfirmed, record.Status)

	pt.acknowledge(t)
	require.False(pt.program.IsPayerLocked(pt.payer))

	record, err = pt.store.Get(id)
	require.NoError(err)
	require.Equal(ledger.StatusAcknowledged, record.Status)
}

func TestRetryRejectsUnknownAndUnfailedCommits(t *testing.T) {
	require := require.New(t)
	pt := newProcessorTest(t)

	err := pt.processor.Retry(context.Background(), 42)
	require.ErrorIs(err, magic.ErrCommitNotFound)

	id := pt.schedule(t, false)
	require.NoError(pt.processor.Process(context.Background()))

	// A confirmed commit is not retryable.
	err = pt.processor.Retry(context.Background(), id)
	require.ErrorIs(err, ledger.ErrInvalidTransition)
}

func TestProcessConfirmationFailureMarksFailed(t *testing.T) {
	require := require.New(t)
	pt := newProcessorTest(t)

	pt.committer.FailConfirmations(errors.New("transaction dropped"))

	id := pt.schedule(t, false)
	require.NoError(pt.processor.Process(context.Background()))

	record, err := pt.store.Get(id)
	require.NoError(err)
	require.Equal(ledger.StatusFailed, record.Status)

	// No acknowledgment is queued for a failed commit.
	require.Zero(pt.scheduler.Len())
}

func TestAcknowledgeUndelegateRequestsRemoval(t *testing.T) {
	require := require.New(t)
	pt := newProcessorTest(t)

	pt.schedule(t, true)
	require.NoError(pt.processor.Process(context.Background()))
	pt.acknowledge(t)

	pending := pt.remover.PendingRemoval()
	require.True(pending.Contains(pt.delegated))

	reason, ok := pt.remover.RemovalReason(pt.delegated)
	require.True(ok)
	require.Equal(remover.ReasonUndelegated, reason)
}
