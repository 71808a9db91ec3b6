// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package committer forwards scheduled commits to the base chain.
package committer

import (
	"context"
	"errors"

	"github.com/luxfi/ids"

	"github.com/luxfi/ephemeral/magic"
)

var (
	ErrSubmitFailed  = errors.New("failed to submit commit transaction")
	ErrConfirmFailed = errors.New("commit transaction was not confirmed")
)

// Committer submits commit transactions to the base chain. A single
// submission attempt either lands or errors; retry policy belongs to the
// caller.
type Committer interface {
	// SendTransaction builds and sends the base-chain transaction for
	// commit, signed by the commit's payer. It returns the transaction
	// signature.
	SendTransaction(ctx context.Context, commit *magic.ScheduledCommit) (ids.ID, error)

	// ConfirmTransaction blocks until the base chain confirms or
	// rejects the transaction.
	ConfirmTransaction(ctx context.Context, signature ids.ID) error
}
