// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package account

import (
	"github.com/luxfi/ids"
)

// Modification is a sparse override of an account's fields. Unset fields
// mean "leave unchanged".
type Modification struct {
	Key        ids.ID
	Lamports   *uint64
	Owner      *ids.ID
	Data       []byte
	Executable *bool
	RentEpoch  *uint64
}

// ModificationFromAccount captures every field of acct as an override,
// producing a modification that fully replaces the target.
func ModificationFromAccount(key ids.ID, acct *Account) Modification {
	lamports := acct.Lamports
	owner := acct.Owner
	executable := acct.Executable
	rentEpoch := acct.RentEpoch
	data := make([]byte, len(acct.Data))
	copy(data, acct.Data)
	return Modification{
		Key:        key,
		Lamports:   &lamports,
		Owner:      &owner,
		Data:       data,
		Executable: &executable,
		RentEpoch:  &rentEpoch,
	}
}

// ApplyTo overrides the set fields of m on acct.
func (m *Modification) ApplyTo(acct *Account) {
	if m.Lamports != nil {
		acct.Lamports = *m.Lamports
	}
	if m.Owner != nil {
		acct.Owner = *m.Owner
	}
	if m.Data != nil {
		acct.Data = make([]byte, len(m.Data))
		copy(acct.Data, m.Data)
	}
	if m.Executable != nil {
		acct.Executable = *m.Executable
	}
	if m.RentEpoch != nil {
		acct.RentEpoch = *m.RentEpoch
	}
}
