// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package updates tracks base-chain change notifications for a set of
// monitored account keys.
package updates

import (
	"context"
	"errors"

	"github.com/luxfi/ids"
)

var (
	// ErrClosed is returned when the monitor shut down before a request
	// could be served.
	ErrClosed = errors.New("update monitor closed")

	// ErrSubscribe is returned when the subscription transport failed.
	// Monitoring for the key is left unestablished; the caller may retry.
	ErrSubscribe = errors.New("failed to subscribe to account updates")
)

// Monitor tracks which base-chain slots accounts were last changed at.
type Monitor interface {
	// EnsureMonitoring begins tracking key. Idempotent.
	EnsureMonitoring(ctx context.Context, key ids.ID) error

	// StopMonitoring cancels any subscription resources held for key
	// without affecting other keys. Idempotent.
	StopMonitoring(key ids.ID)

	// FirstSubscribedSlot returns the base-chain slot at which monitoring
	// of key began, or false if key is untracked.
	FirstSubscribedSlot(key ids.ID) (uint64, bool)

	// LastKnownUpdateSlot returns the slot of the most recently observed
	// change to key, or false if untracked or unchanged since
	// subscription.
	LastKnownUpdateSlot(key ids.ID) (uint64, bool)
}

// Notification reports that an account changed at a base-chain slot.
type Notification struct {
	Key  ids.ID
	Slot uint64
}

// ChainSubscriber is the remote capability the monitor is built on.
type ChainSubscriber interface {
	// SubscribeAccount starts streaming change notifications for key.
	// The returned cancel func releases the subscription; the stream is
	// closed afterwards.
	SubscribeAccount(ctx context.Context, key ids.ID) (<-chan Notification, func(), error)

	// CurrentSlot returns the base chain's current slot.
	CurrentSlot(ctx context.Context) (uint64, error)
}
