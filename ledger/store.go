// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"encoding/binary"
	"fmt"

	"github.com/luxfi/database"
	"github.com/luxfi/database/prefixdb"
)

var commitPrefix = []byte("commit")

// CommitStore persists commit records keyed by commit id. Keys are
// big-endian, so iteration yields records in id order.
type CommitStore struct {
	db database.Database
}

func NewCommitStore(db database.Database) *CommitStore {
	return &CommitStore{
		db: prefixdb.New(commitPrefix, db),
	}
}

func commitKey(id uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, id)
	return key
}

func (s *CommitStore) Put(record *CommitRecord) error {
	raw, err := record.bytes()
	if err != nil {
		return fmt.Errorf("serializing commit %d: %w", record.CommitID, err)
	}
	return s.db.Put(commitKey(record.CommitID), raw)
}

// Get returns database.ErrNotFound when no record exists for id.
func (s *CommitStore) Get(id uint64) (*CommitRecord, error) {
	raw, err := s.db.Get(commitKey(id))
	if err != nil {
		return nil, err
	}
	return parseRecord(raw)
}

// Transition verifies and applies a status change, persisting the result.
func (s *CommitStore) Transition(id uint64, next Status) (*CommitRecord, error) {
	record, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if err := record.Status.Verify(next); err != nil {
		return nil, fmt.Errorf("commit %d: %w", id, err)
	}
	record.Status = next
	if err := s.Put(record); err != nil {
		return nil, err
	}
	return record, nil
}

// Pending returns every unacknowledged record in commit id order. A
// restarted validator resumes these; failed records stay listed, holding
// their payer lock, until a retry lands them.
func (s *CommitStore) Pending() ([]*CommitRecord, error) {
	it := s.db.NewIterator()
	defer it.Release()

	var pending []*CommitRecord
	for it.Next() {
		record, err := parseRecord(it.Value())
		if err != nil {
			return nil, err
		}
		if !record.Status.Terminal() {
			pending = append(pending, record)
		}
	}
	return pending, it.Error()
}

// Prune deletes acknowledged records older than the given slot. Failed
// records are never pruned; they still need a retry.
func (s *CommitStore) Prune(beforeSlot uint64) error {
	it := s.db.NewIterator()
	defer it.Release()

	var toDelete [][]byte
	for it.Next() {
		record, err := parseRecord(it.Value())
		if err != nil {
			return err
		}
		if record.Status.Terminal() && record.Slot < beforeSlot {
			toDelete = append(toDelete, append([]byte(nil), it.Key()...))
		}
	}
	if err := it.Error(); err != nil {
		return err
	}
	for _, key := range toDelete {
		if err := s.db.Delete(key); err != nil {
			return err
		}
	}
	return nil
}
