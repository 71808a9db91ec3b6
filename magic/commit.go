// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package magic

import (
	"github.com/luxfi/ids"

	"github.com/luxfi/ephemeral/components/account"
	"github.com/luxfi/ephemeral/utils/wrappers"
)

// MaxCommitAccounts bounds how many accounts a single scheduled commit may
// carry.
const MaxCommitAccounts = 64

// ScheduledCommit is one outbox entry: a request by a local program to
// write the recorded account modifications back to the base chain.
type ScheduledCommit struct {
	// ID is assigned at schedule time from a monotonically increasing
	// counter. Wrapping after 2^64 entries is accepted.
	ID uint64

	// Slot is the local slot at which the commit was scheduled.
	Slot uint64

	// Payer funds the base-chain transaction and stays locked until the
	// commit is acknowledged.
	Payer ids.ID

	// Accounts lists the modifications to apply on the base chain, in
	// the order the instruction named them.
	Accounts []account.Modification

	// Undelegate requests that the committed accounts be returned to
	// base-chain control once the commit lands.
	Undelegate bool
}

// Keys returns the committed account keys in commit order.
func (c *ScheduledCommit) Keys() []ids.ID {
	keys := make([]ids.ID, len(c.Accounts))
	for i, mod := range c.Accounts {
		keys[i] = mod.Key
	}
	return keys
}

func (c *ScheduledCommit) pack(p *wrappers.Packer) {
	p.PackLong(c.ID)
	p.PackLong(c.Slot)
	p.PackID(c.Payer)
	p.PackBool(c.Undelegate)
	p.PackInt(uint32(len(c.Accounts)))
	for _, mod := range c.Accounts {
		packModification(p, mod)
	}
}

func (c *ScheduledCommit) unpack(p *wrappers.Packer) {
	c.ID = p.UnpackLong()
	c.Slot = p.UnpackLong()
	c.Payer = p.UnpackID()
	c.Undelegate = p.UnpackBool()
	numAccounts := p.UnpackInt()
	if p.Errored() || numAccounts > MaxCommitAccounts {
		p.Add(ErrMalformedContext)
		return
	}
	c.Accounts = make([]account.Modification, numAccounts)
	for i := range c.Accounts {
		c.Accounts[i] = unpackModification(p)
	}
}

// Modifications are sparse, so every optional field is written as a
// presence flag followed by the value when present.
func packModification(p *wrappers.Packer, mod account.Modification) {
	p.PackID(mod.Key)

	p.PackBool(mod.Lamports != nil)
	if mod.Lamports != nil {
		p.PackLong(*mod.Lamports)
	}

	p.PackBool(mod.Owner != nil)
	if mod.Owner != nil {
		p.PackID(*mod.Owner)
	}

	p.PackBool(mod.Data != nil)
	if mod.Data != nil {
		p.PackBytes(mod.Data)
	}

	p.PackBool(mod.Executable != nil)
	if mod.Executable != nil {
		p.PackBool(*mod.Executable)
	}

	p.PackBool(mod.RentEpoch != nil)
	if mod.RentEpoch != nil {
		p.PackLong(*mod.RentEpoch)
	}
}

func unpackModification(p *wrappers.Packer) account.Modification {
	mod := account.Modification{
		Key: p.UnpackID(),
	}
	if p.UnpackBool() {
		lamports := p.UnpackLong()
		mod.Lamports = &lamports
	}
	if p.UnpackBool() {
		owner := p.UnpackID()
		mod.Owner = &owner
	}
	if p.UnpackBool() {
		// Copied out so the modification stays valid after the arena
		// region it was read from is reused.
		mod.Data = append([]byte{}, p.UnpackLimitedBytes(maxRecordSize)...)
	}
	if p.UnpackBool() {
		executable := p.UnpackBool()
		mod.Executable = &executable
	}
	if p.UnpackBool() {
		rentEpoch := p.UnpackLong()
		mod.RentEpoch = &rentEpoch
	}
	return mod
}
