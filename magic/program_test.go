// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package magic

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/math/set"

	"github.com/luxfi/ephemeral/accounts/api"
	"github.com/luxfi/ephemeral/components/account"
	"github.com/luxfi/ephemeral/components/program"
)

type delegationStub struct {
	mu   sync.Mutex
	keys set.Set[ids.ID]
}

func (d *delegationStub) add(keys ...ids.ID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keys.Add(keys...)
}

func (d *delegationStub) IsDelegated(key ids.ID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.keys.Contains(key)
}

type programTest struct {
	provider    *api.Stub
	delegations *delegationStub
	program     *Program

	payer     ids.ID
	delegated ids.ID
	owner     ids.ID
}

func newProgramTest(t *testing.T) *programTest {
	t.Helper()

	pt := &programTest{
		provider:    api.NewStub(),
		delegations: &delegationStub{keys: make(set.Set[ids.ID])},
		payer:       ids.GenerateTestID(),
		delegated:   ids.GenerateTestID(),
		owner:       ids.GenerateTestID(),
	}
	pt.provider.SetSlot(100)
	pt.provider.SetAccount(pt.payer, &account.Account{
		Lamports: 1_000_000,
		Owner:    program.SystemID,
	})
	pt.provider.SetAccount(pt.delegated, &account.Account{
		Lamports: 500,
		Owner:    pt.owner,
		Data:     []byte{1, 2, 3},
	})
	pt.delegations.add(pt.delegated)

	pt.program = NewProgram(log.NoLog{}, pt.provider, pt.delegations, NewContext(pt.provider))
	return pt
}

func TestScheduleCommitAppendsAndLocksPayer(t *testing.T) {
	require := require.New(t)
	pt := newProgramTest(t)

	id, err := pt.program.ScheduleCommit(pt.payer, []ids.ID{pt.delegated})
	require.NoError(err)
	require.Equal(uint64(1), id)

	payerAcct, ok := pt.provider.GetAccount(pt.payer)
	require.True(ok)
	require.Equal(1_000_000-ScheduleCommitCost, payerAcct.Lamports)
	require.Equal(program.DelegationID, payerAcct.Owner)
	require.True(pt.program.IsPayerLocked(pt.payer))

	commits, err := pt.program.Context().Take()
	require.NoError(err)
	require.Len(commits, 1)

	commit := commits[0]
	require.Equal(uint64(1), commit.ID)
	require.Equal(uint64(100), commit.Slot)
	require.Equal(pt.payer, commit.Payer)
	require.False(commit.Undelegate)
	require.Len(commit.Accounts, 1)

	mod := commit.Accounts[0]
	require.Equal(pt.delegated, mod.Key)
	require.Equal(uint64(500), *mod.Lamports)
	require.Equal(pt.owner, *mod.Owner)
	require.Equal([]byte{1, 2, 3}, mod.Data)
}

func TestScheduleCommitAndUndelegateMarksCommit(t *testing.T) {
	require := require.New(t)
	pt := newProgramTest(t)

	_, err := pt.program.ScheduleCommitAndUndelegate(pt.payer, []ids.ID{pt.delegated})
	require.NoError(err)

	commits, err := pt.program.Context().Take()
	require.NoError(err)
	require.Len(commits, 1)
	require.True(commits[0].Undelegate)
}

func TestScheduleCommitAssignsIncreasingIDs(t *testing.T) {
	require := require.New(t)
	pt := newProgramTest(t)

	first, err := pt.program.ScheduleCommit(pt.payer, []ids.ID{pt.delegated})
	require.NoError(err)
	second, err := pt.program.ScheduleCommit(pt.payer, []ids.ID{pt.delegated})
	require.NoError(err)
	require.Equal(first+1, second)
}

func TestScheduleCommitRejectsUndelegatedAccount(t *testing.T) {
	require := require.New(t)
	pt := newProgramTest(t)

	foreign := ids.GenerateTestID()
	pt.provider.SetAccount(foreign, &account.Account{Lamports: 1})

	_, err := pt.program.ScheduleCommit(pt.payer, []ids.ID{foreign})
	require.ErrorIs(err, ErrAccountNotDelegated)

	code, ok := ErrorCode(err)
	require.True(ok)
	require.Equal(CodeAccountNotDelegated, code)

	// Nothing was charged, locked, or enqueued.
	payerAcct, _ := pt.provider.GetAccount(pt.payer)
	require.Equal(uint64(1_000_000), payerAcct.Lamports)
	require.False(pt.program.IsPayerLocked(pt.payer))

	n, err := pt.program.Context().Len()
	require.NoError(err)
	require.Zero(n)
}

func TestScheduleCommitRejectsProgramPayer(t *testing.T) {
	require := require.New(t)
	pt := newProgramTest(t)

	programPayer := ids.GenerateTestID()
	pt.provider.SetAccount(programPayer, &account.Account{
		Lamports:   1_000_000,
		Executable: true,
	})

	_, err := pt.program.ScheduleCommit(programPayer, []ids.ID{pt.delegated})
	require.ErrorIs(err, ErrPayerIsProgram)
}

func TestScheduleCommitRejectsPoorPayer(t *testing.T) {
	require := require.New(t)
	pt := newProgramTest(t)

	poor := ids.GenerateTestID()
	pt.provider.SetAccount(poor, &account.Account{Lamports: ScheduleCommitCost - 1})

	_, err := pt.program.ScheduleCommit(poor, []ids.ID{pt.delegated})
	require.ErrorIs(err, ErrFailedToTransferCommitCost)

	code, ok := ErrorCode(err)
	require.True(ok)
	require.Equal(CodeFailedToTransferCommitCost, code)
}

func TestScheduleCommitRejectsTooManyAccounts(t *testing.T) {
	require := require.New(t)
	pt := newProgramTest(t)

	keys := make([]ids.ID, MaxCommitAccounts+1)
	for i := range keys {
		keys[i] = ids.GenerateTestID()
	}

	_, err := pt.program.ScheduleCommit(pt.payer, keys)
	require.ErrorIs(err, ErrTooManyAccounts)
}

func TestScheduleCommitFullContextLeavesNoTrace(t *testing.T) {
	require := require.New(t)
	pt := newProgramTest(t)

	// Fill the arena so the next schedule cannot fit.
	require.NoError(pt.program.Context().Append(testCommit(999, ContextSize-4096)))

	_, err := pt.program.ScheduleCommit(pt.payer, []ids.ID{pt.delegated})
	require.ErrorIs(err, ErrContextFull)

	code, ok := ErrorCode(err)
	require.True(ok)
	require.Equal(CodeContextFull, code)

	payerAcct, _ := pt.provider.GetAccount(pt.payer)
	require.Equal(uint64(1_000_000), payerAcct.Lamports)
	require.Equal(program.SystemID, payerAcct.Owner)
	require.False(pt.program.IsPayerLocked(pt.payer))

	n, err := pt.program.Context().Len()
	require.NoError(err)
	require.Equal(1, n)
}

func TestScheduledCommitSentUnlocksPayer(t *testing.T) {
	require := require.New(t)
	pt := newProgramTest(t)

	id, err := pt.program.ScheduleCommit(pt.payer, []ids.ID{pt.delegated})
	require.NoError(err)

	commits, err := pt.program.Context().Take()
	require.NoError(err)
	require.Len(commits, 1)
	pt.program.RegisterSentCommit(commits[0])

	require.NoError(pt.program.ScheduledCommitSent(id))

	payerAcct, _ := pt.provider.GetAccount(pt.payer)
	require.Equal(program.SystemID, payerAcct.Owner)
	require.False(pt.program.IsPayerLocked(pt.payer))

	// Acknowledging twice must fail: the commit was consumed.
	err = pt.program.ScheduledCommitSent(id)
	require.ErrorIs(err, ErrCommitNotFound)

	code, ok := ErrorCode(err)
	require.True(ok)
	require.Equal(CodeCommitNotFound, code)
}

func TestScheduledCommitSentUnknownID(t *testing.T) {
	require := require.New(t)
	pt := newProgramTest(t)

	err := pt.program.ScheduledCommitSent(42)
	require.ErrorIs(err, ErrCommitNotFound)
}

func TestScheduledCommitSentWithoutLockFails(t *testing.T) {
	require := require.New(t)
	pt := newProgramTest(t)

	// A registered commit whose payer was never locked cannot release
	// anything.
	pt.program.RegisterSentCommit(&ScheduledCommit{ID: 7, Payer: ids.GenerateTestID()})

	err := pt.program.ScheduledCommitSent(7)
	require.ErrorIs(err, ErrUnableToUnlockSentCommits)

	code, ok := ErrorCode(err)
	require.True(ok)
	require.Equal(CodeUnableToUnlockSentCommits, code)
}

func TestPayerStaysLockedAcrossOverlappingCommits(t *testing.T) {
	require := require.New(t)
	pt := newProgramTest(t)

	first, err := pt.program.ScheduleCommit(pt.payer, []ids.ID{pt.delegated})
	require.NoError(err)
	second, err := pt.program.ScheduleCommit(pt.payer, []ids.ID{pt.delegated})
	require.NoError(err)

	commits, err := pt.program.Context().Take()
	require.NoError(err)
	require.Len(commits, 2)
	for _, commit := range commits {
		pt.program.RegisterSentCommit(commit)
	}

	require.NoError(pt.program.ScheduledCommitSent(first))
	require.True(pt.program.IsPayerLocked(pt.payer))

	require.NoError(pt.program.ScheduledCommitSent(second))
	require.False(pt.program.IsPayerLocked(pt.payer))

	payerAcct, _ := pt.provider.GetAccount(pt.payer)
	require.Equal(program.SystemID, payerAcct.Owner)
}

func TestExecuteDispatchesInstructions(t *testing.T) {
	require := require.New(t)
	pt := newProgramTest(t)

	raw, err := MarshalInstruction(&ScheduleCommitInstruction{
		Payer:      pt.payer,
		Keys:       []ids.ID{pt.delegated},
		Undelegate: true,
	})
	require.NoError(err)

	id, err := pt.program.Execute(raw)
	require.NoError(err)
	require.Equal(uint64(1), id)

	commits, err := pt.program.Context().Take()
	require.NoError(err)
	require.Len(commits, 1)
	require.True(commits[0].Undelegate)
	pt.program.RegisterSentCommit(commits[0])

	raw, err = MarshalInstruction(&ScheduledCommitSentInstruction{CommitID: id})
	require.NoError(err)

	_, err = pt.program.Execute(raw)
	require.NoError(err)
	require.False(pt.program.IsPayerLocked(pt.payer))
}

// Decoded instructions dispatch directly, without a marshalling round
// trip.
func TestExecuteInstructionDispatchesDecoded(t *testing.T) {
	require := require.New(t)
	pt := newProgramTest(t)

	id, err := pt.program.ExecuteInstruction(&ScheduleCommitInstruction{
		Payer: pt.payer,
		Keys:  []ids.ID{pt.delegated},
	})
	require.NoError(err)
	require.Equal(uint64(1), id)

	commits, err := pt.program.Context().Take()
	require.NoError(err)
	require.Len(commits, 1)
	pt.program.RegisterSentCommit(commits[0])

	_, err = pt.program.ExecuteInstruction(&ScheduledCommitSentInstruction{CommitID: id})
	require.NoError(err)
	require.False(pt.program.IsPayerLocked(pt.payer))
}
