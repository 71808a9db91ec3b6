// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package account

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/ids"
)

func TestSnapshotCopyIsDeep(t *testing.T) {
	require := require.New(t)

	snapshot := &ChainSnapshot{
		Key:          ids.GenerateTestID(),
		ObservedSlot: 7,
		Exists:       true,
		Account: Account{
			Lamports: 10,
			Data:     []byte{1, 2, 3},
		},
	}

	cp := snapshot.Copy()
	cp.Account.Data[0] = 9

	require.Equal(byte(1), snapshot.Account.Data[0])
	require.Equal(snapshot.Key, cp.Key)
	require.Equal(snapshot.ObservedSlot, cp.ObservedSlot)
}

func TestSnapshotClassification(t *testing.T) {
	require := require.New(t)

	missing := &ChainSnapshot{Key: ids.GenerateTestID()}
	require.True(missing.IsNew())
	require.False(missing.IsPayer())

	wallet := &ChainSnapshot{
		Key:     ids.GenerateTestID(),
		Exists:  true,
		Account: Account{Lamports: 100},
	}
	require.False(wallet.IsNew())
	require.True(wallet.IsPayer())

	pda := &ChainSnapshot{
		Key:    ids.GenerateTestID(),
		Exists: true,
		Account: Account{
			Lamports: 100,
			Owner:    ids.GenerateTestID(),
			Data:     []byte{1},
		},
	}
	require.False(pda.IsNew())
	require.False(pda.IsPayer())
}

func TestModificationApplyToOverridesOnlySetFields(t *testing.T) {
	require := require.New(t)

	owner := ids.GenerateTestID()
	acct := &Account{
		Lamports: 100,
		Owner:    owner,
		Data:     []byte{1, 2},
	}

	lamports := uint64(500)
	mod := Modification{
		Key:      ids.GenerateTestID(),
		Lamports: &lamports,
	}
	mod.ApplyTo(acct)

	require.Equal(uint64(500), acct.Lamports)
	require.Equal(owner, acct.Owner)
	require.Equal([]byte{1, 2}, acct.Data)
}

func TestModificationFromAccountCapturesEverything(t *testing.T) {
	require := require.New(t)

	key := ids.GenerateTestID()
	acct := &Account{
		Lamports:   7,
		Owner:      ids.GenerateTestID(),
		Data:       []byte{3},
		Executable: true,
		RentEpoch:  2,
	}

	mod := ModificationFromAccount(key, acct)
	require.Equal(key, mod.Key)
	require.Equal(acct.Lamports, *mod.Lamports)
	require.Equal(acct.Owner, *mod.Owner)
	require.Equal(acct.Data, mod.Data)
	require.Equal(acct.Executable, *mod.Executable)
	require.Equal(acct.RentEpoch, *mod.RentEpoch)

	// Applying the captured modification to a zero account reproduces
	// the original.
	restored := &Account{}
	mod.ApplyTo(restored)
	require.Equal(acct, restored)
}
