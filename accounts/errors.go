// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package accounts

import "errors"

var (
	// ErrWritableNotDelegated is returned when a transaction claims
	// write access to an account the base chain has not delegated to
	// this validator.
	ErrWritableNotDelegated = errors.New("writable account is not delegated to this validator")
)
