// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package program

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/ids"
)

func TestWellKnownIDsAreDistinct(t *testing.T) {
	require := require.New(t)

	require.NotEqual(DelegationID, MagicID)
	require.NotEqual(DelegationID, MagicContextID)
	require.NotEqual(MagicID, MagicContextID)
	require.NotEqual(ids.Empty, DelegationID)
	require.NotEqual(ids.Empty, MagicID)
	require.NotEqual(ids.Empty, MagicContextID)
	require.Equal(ids.Empty, SystemID)
}

func TestDerivedAddressesAreDeterministic(t *testing.T) {
	require := require.New(t)

	programID := ids.GenerateTestID()

	idls := IDLAddresses(programID)
	require.Len(idls, 2)
	require.NotEqual(idls[0], idls[1])
	require.Equal(idls, IDLAddresses(programID))

	data := ProgramDataAddress(programID)
	require.Equal(data, ProgramDataAddress(programID))
	require.NotEqual(programID, data)
	require.NotContains(idls, data)

	// A different program derives different addresses.
	other := ids.GenerateTestID()
	require.NotEqual(data, ProgramDataAddress(other))
	require.NotEqual(idls, IDLAddresses(other))
}
