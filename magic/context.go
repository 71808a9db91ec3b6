// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package magic

import (
	"encoding/binary"
	"sync"

	"github.com/luxfi/ephemeral/accounts/api"
	"github.com/luxfi/ephemeral/components/account"
	"github.com/luxfi/ephemeral/components/program"
	"github.com/luxfi/ephemeral/utils/wrappers"
)

const (
	// ContextSize is the fixed capacity of the outbox account's data.
	ContextSize = 5 * 1024 * 1024

	// The header holds the next-free offset and the record count.
	headerLen = wrappers.LongLen + wrappers.IntLen

	maxRecordSize = ContextSize - headerLen
)

// Context is the fixed-capacity outbox living inside the magic context
// account's data. Records are appended by instruction processing and
// drained by the scheduled-commits processor; the arena never grows.
type Context struct {
	mu       sync.Mutex
	provider api.InternalAccountProvider
}

func NewContext(provider api.InternalAccountProvider) *Context {
	return &Context{provider: provider}
}

// InitialContextData returns an empty, fully allocated outbox arena.
func InitialContextData() []byte {
	data := make([]byte, ContextSize)
	binary.BigEndian.PutUint64(data[:wrappers.LongLen], headerLen)
	return data
}

func (c *Context) contextAccount() *account.Account {
	acct, ok := c.provider.GetAccount(program.MagicContextID)
	if !ok {
		acct = &account.Account{
			Lamports: 1,
			Owner:    program.MagicID,
			Data:     InitialContextData(),
		}
		c.provider.SetAccount(program.MagicContextID, acct)
	}
	return acct
}

func readHeader(data []byte) (int, uint32, error) {
	if len(data) != ContextSize {
		return 0, 0, ErrMalformedContext
	}
	next := binary.BigEndian.Uint64(data[:wrappers.LongLen])
	count := binary.BigEndian.Uint32(data[wrappers.LongLen:headerLen])
	if next < headerLen || next > ContextSize {
		return 0, 0, ErrMalformedContext
	}
	return int(next), count, nil
}

func writeHeader(data []byte, next int, count uint32) {
	binary.BigEndian.PutUint64(data[:wrappers.LongLen], uint64(next))
	binary.BigEndian.PutUint32(data[wrappers.LongLen:headerLen], count)
}

// Append packs commit into the arena. It fails with ErrContextFull when the
// record does not fit; the arena is left unchanged in that case.
func (c *Context) Append(commit *ScheduledCommit) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	acct := c.contextAccount()
	next, count, err := readHeader(acct.Data)
	if err != nil {
		return err
	}

	p := wrappers.Packer{MaxSize: maxRecordSize}
	commit.pack(&p)
	if p.Errored() {
		return ErrContextFull
	}
	record := p.Bytes
	if next+wrappers.IntLen+len(record) > ContextSize {
		return ErrContextFull
	}

	binary.BigEndian.PutUint32(acct.Data[next:], uint32(len(record)))
	copy(acct.Data[next+wrappers.IntLen:], record)
	writeHeader(acct.Data, next+wrappers.IntLen+len(record), count+1)
	c.provider.SetAccount(program.MagicContextID, acct)
	return nil
}

// Take drains every record in append order and resets the arena. Draining
// an empty arena returns no commits and no error.
func (c *Context) Take() ([]*ScheduledCommit, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	acct := c.contextAccount()
	next, count, err := readHeader(acct.Data)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}

	commits := make([]*ScheduledCommit, 0, count)
	offset := headerLen
	for i := uint32(0); i < count; i++ {
		if offset+wrappers.IntLen > next {
			return nil, ErrMalformedContext
		}
		recordLen := int(binary.BigEndian.Uint32(acct.Data[offset:]))
		offset += wrappers.IntLen
		if offset+recordLen > next {
			return nil, ErrMalformedContext
		}

		p := wrappers.Packer{
			MaxSize: maxRecordSize,
			Bytes:   acct.Data[offset : offset+recordLen],
		}
		commit := &ScheduledCommit{}
		commit.unpack(&p)
		if p.Errored() {
			return nil, ErrMalformedContext
		}
		commits = append(commits, commit)
		offset += recordLen
	}

	writeHeader(acct.Data, headerLen, 0)
	c.provider.SetAccount(program.MagicContextID, acct)
	return commits, nil
}

// Len reports the number of records currently in the arena.
func (c *Context) Len() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	acct := c.contextAccount()
	_, count, err := readHeader(acct.Data)
	return int(count), err
}

// HasScheduledCommits reports whether a drain would yield any records.
func (c *Context) HasScheduledCommits() (bool, error) {
	n, err := c.Len()
	return n > 0, err
}
