// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package remover tracks accounts scheduled for eviction from local state.
// Eviction itself happens at a safe point between transactions, never while
// an account may still be referenced by running execution.
package remover

import (
	"sync"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/math/set"
)

// Reason records why an account was scheduled for removal.
type Reason uint8

const (
	ReasonUndelegated Reason = iota + 1
	ReasonBlacklisted
)

func (r Reason) String() string {
	switch r {
	case ReasonUndelegated:
		return "undelegated"
	case ReasonBlacklisted:
		return "blacklisted"
	default:
		return "unknown"
	}
}

// Remover collects removal requests until the orchestrator performs them.
type Remover interface {
	// RequestRemoval schedules keys for eviction.
	RequestRemoval(reason Reason, keys ...ids.ID)

	// PendingRemoval returns the keys currently scheduled, without
	// clearing them.
	PendingRemoval() set.Set[ids.ID]

	// RemovalDone clears keys after the orchestrator evicted them.
	RemovalDone(keys ...ids.ID)
}

var _ Remover = (*AccountRemover)(nil)

type AccountRemover struct {
	log log.Logger

	mu      sync.Mutex
	pending map[ids.ID]Reason
}

func NewAccountRemover(logger log.Logger) *AccountRemover {
	return &AccountRemover{
		log:     logger,
		pending: make(map[ids.ID]Reason),
	}
}

func (r *AccountRemover) RequestRemoval(reason Reason, keys ...ids.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range keys {
		r.pending[key] = reason
		r.log.Debug("removal requested",
			log.Stringer("key", key),
			log.Stringer("reason", reason),
		)
	}
}

func (r *AccountRemover) PendingRemoval() set.Set[ids.ID] {
	r.mu.Lock()
	defer r.mu.Unlock()
	pending := set.NewSet[ids.ID](len(r.pending))
	for key := range r.pending {
		pending.Add(key)
	}
	return pending
}

// RemovalReason reports why key is pending removal.
func (r *AccountRemover) RemovalReason(key ids.ID) (Reason, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reason, ok := r.pending[key]
	return reason, ok
}

func (r *AccountRemover) RemovalDone(keys ...ids.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range keys {
		delete(r.pending, key)
	}
}
