// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package fetcher retrieves point-in-time snapshots of account state from
// the base chain, deduplicating concurrent requests for the same key.
package fetcher

import (
	"context"
	"errors"

	"github.com/luxfi/ids"

	"github.com/luxfi/ephemeral/components/account"
)

var (
	// ErrClosed is returned when the fetcher shut down before a request
	// could be resolved. Transport failure, retriable by the caller.
	ErrClosed = errors.New("fetcher closed")

	// ErrNotFound is returned when the base chain definitively reported
	// that the account does not exist. Not retriable.
	ErrNotFound = errors.New("account not found on chain")

	// ErrFailedToFetch is returned when a snapshot could be produced but
	// did not satisfy the request, e.g. it is older than the requested
	// minimum slot.
	ErrFailedToFetch = errors.New("failed to fetch account")
)

// Fetcher retrieves a snapshot of an account's base-chain state. If minSlot
// is non-zero the returned snapshot is observed at or after that slot, or
// the fetch fails with ErrFailedToFetch.
type Fetcher interface {
	FetchSnapshot(ctx context.Context, key ids.ID, minSlot uint64) (*account.ChainSnapshot, error)
}

// ChainReader is the remote capability the fetcher is built on. GetAccount
// returns the account's state and the slot at which it was observed, or
// database.ErrNotFound when the account does not exist on chain.
type ChainReader interface {
	GetAccount(ctx context.Context, key ids.ID) (*account.ChainSnapshot, error)
}
