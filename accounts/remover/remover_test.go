// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package remover

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
)

func TestRequestRemovalAccumulates(t *testing.T) {
	require := require.New(t)

	r := NewAccountRemover(log.NoLog{})
	a := ids.GenerateTestID()
	b := ids.GenerateTestID()

	r.RequestRemoval(ReasonUndelegated, a)
	r.RequestRemoval(ReasonBlacklisted, b)

	pending := r.PendingRemoval()
	require.Equal(2, pending.Len())
	require.True(pending.Contains(a))
	require.True(pending.Contains(b))

	reason, ok := r.RemovalReason(a)
	require.True(ok)
	require.Equal(ReasonUndelegated, reason)
}

func TestRequestRemovalIdempotent(t *testing.T) {
	require := require.New(t)

	r := NewAccountRemover(log.NoLog{})
	key := ids.GenerateTestID()

	r.RequestRemoval(ReasonUndelegated, key)
	r.RequestRemoval(ReasonUndelegated, key)

	require.Equal(1, r.PendingRemoval().Len())
}

func TestRemovalDoneClearsOnlyGivenKeys(t *testing.T) {
	require := require.New(t)

	r := NewAccountRemover(log.NoLog{})
	a := ids.GenerateTestID()
	b := ids.GenerateTestID()
	r.RequestRemoval(ReasonUndelegated, a, b)

	r.RemovalDone(a)

	pending := r.PendingRemoval()
	require.Equal(1, pending.Len())
	require.True(pending.Contains(b))

	_, ok := r.RemovalReason(a)
	require.False(ok)
}
