// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ledger persists commit lifecycle records so a restarted
// validator can resume commits that were in flight when it stopped.
package ledger

import (
	"errors"
	"math"

	"github.com/luxfi/codec"
	"github.com/luxfi/codec/linearcodec"
	"github.com/luxfi/ids"
)

const codecVersion = 0

var recordCodec codec.Manager

func init() {
	recordCodec = codec.NewManager(math.MaxInt)
	lc := linearcodec.NewDefault()

	err := errors.Join(
		lc.RegisterType(&CommitRecord{}),
		recordCodec.RegisterCodec(codecVersion, lc),
	)
	if err != nil {
		panic(err)
	}
}

// CommitRecord is the durable view of one scheduled commit.
type CommitRecord struct {
	CommitID   uint64   `serialize:"true"`
	Slot       uint64   `serialize:"true"`
	Payer      ids.ID   `serialize:"true"`
	Keys       []ids.ID `serialize:"true"`
	Undelegate bool     `serialize:"true"`
	Status     Status   `serialize:"true"`

	// Signature is the base-chain transaction id, set once submitted.
	Signature ids.ID `serialize:"true"`

	// Attempts counts base-chain submissions, including retries.
	Attempts uint32 `serialize:"true"`
}

func (r *CommitRecord) bytes() ([]byte, error) {
	return recordCodec.Marshal(codecVersion, r)
}

func parseRecord(raw []byte) (*CommitRecord, error) {
	record := &CommitRecord{}
	if _, err := recordCodec.Unmarshal(raw, record); err != nil {
		return nil, err
	}
	return record, nil
}
