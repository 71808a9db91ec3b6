// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package magic

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/ids"
)

func TestSchedulerDrainsInOrder(t *testing.T) {
	require := require.New(t)

	s := NewTransactionScheduler()
	require.Zero(s.Len())

	first := ScheduledTransaction{Payer: ids.GenerateTestID(), Instruction: []byte{1}}
	second := ScheduledTransaction{Payer: ids.GenerateTestID(), Instruction: []byte{2}}
	s.Schedule(first)
	s.Schedule(second)
	require.Equal(2, s.Len())

	require.Equal([]ScheduledTransaction{first, second}, s.Take())
	require.Zero(s.Len())
	require.Empty(s.Take())
}
