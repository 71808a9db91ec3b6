// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package magic

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/ids"

	"github.com/luxfi/ephemeral/accounts/api"
	"github.com/luxfi/ephemeral/components/account"
	"github.com/luxfi/ephemeral/components/program"
)

func testCommit(id uint64, dataLen int) *ScheduledCommit {
	lamports := uint64(500)
	owner := ids.GenerateTestID()
	return &ScheduledCommit{
		ID:    id,
		Slot:  id * 10,
		Payer: ids.GenerateTestID(),
		Accounts: []account.Modification{
			{
				Key:      ids.GenerateTestID(),
				Lamports: &lamports,
				Owner:    &owner,
				Data:     make([]byte, dataLen),
			},
			{
				Key: ids.GenerateTestID(),
			},
		},
		Undelegate: id%2 == 0,
	}
}

func TestContextAppendTakePreservesOrderAndContent(t *testing.T) {
	require := require.New(t)

	ctx := NewContext(api.NewStub())

	commits := []*ScheduledCommit{
		testCommit(1, 16),
		testCommit(2, 0),
		testCommit(3, 1024),
	}
	for _, commit := range commits {
		require.NoError(ctx.Append(commit))
	}

	n, err := ctx.Len()
	require.NoError(err)
	require.Equal(3, n)

	has, err := ctx.HasScheduledCommits()
	require.NoError(err)
	require.True(has)

	drained, err := ctx.Take()
	require.NoError(err)
	require.Equal(commits, drained)

	n, err = ctx.Len()
	require.NoError(err)
	require.Zero(n)
}

func TestContextDoubleTakeYieldsNothing(t *testing.T) {
	require := require.New(t)

	ctx := NewContext(api.NewStub())
	require.NoError(ctx.Append(testCommit(1, 8)))

	first, err := ctx.Take()
	require.NoError(err)
	require.Len(first, 1)

	second, err := ctx.Take()
	require.NoError(err)
	require.Empty(second)
}

func TestContextTakeEmptyIsNoOp(t *testing.T) {
	require := require.New(t)

	ctx := NewContext(api.NewStub())
	drained, err := ctx.Take()
	require.NoError(err)
	require.Empty(drained)
}

func TestContextAppendRejectsWhenFull(t *testing.T) {
	require := require.New(t)

	ctx := NewContext(api.NewStub())

	// One record close to capacity, then any further append must fail
	// and leave the arena unchanged.
	require.NoError(ctx.Append(testCommit(1, ContextSize-4096)))
	err := ctx.Append(testCommit(2, 8))
	require.ErrorIs(err, ErrContextFull)

	code, ok := ErrorCode(err)
	require.True(ok)
	require.Equal(CodeContextFull, code)

	n, err := ctx.Len()
	require.NoError(err)
	require.Equal(1, n)
}

func TestContextAppendRejectsOversizedRecord(t *testing.T) {
	require := require.New(t)

	ctx := NewContext(api.NewStub())
	err := ctx.Append(testCommit(1, ContextSize))
	require.ErrorIs(err, ErrContextFull)

	n, err := ctx.Len()
	require.NoError(err)
	require.Zero(n)
}

func TestContextRejectsMalformedData(t *testing.T) {
	require := require.New(t)

	provider := api.NewStub()
	ctx := NewContext(provider)
	require.NoError(ctx.Append(testCommit(1, 8)))

	// Truncating the arena must surface as malformed, not panic.
	acct, ok := provider.GetAccount(program.MagicContextID)
	require.True(ok)
	acct.Data = acct.Data[:8]
	provider.SetAccount(program.MagicContextID, acct)

	_, err := ctx.Take()
	require.ErrorIs(err, ErrMalformedContext)
}
