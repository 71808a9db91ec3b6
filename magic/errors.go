// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package magic

import (
	"errors"
	"fmt"
)

// Error codes cross the VM boundary, so they are stable small integers
// that external tooling can match on without string parsing.
const (
	CodeFailedToTransferCommitCost uint32 = 10000
	CodeUnableToUnlockSentCommits  uint32 = 10001
	CodeCommitNotFound             uint32 = 10002

	CodeAccountNotDelegated uint32 = 10100
	CodeTooManyAccounts     uint32 = 10101
	CodePayerIsProgram      uint32 = 10102
	CodeContextFull         uint32 = 10103
	CodeMalformedContext    uint32 = 10104
)

// InstructionError is a program-level failure surfaced synchronously to the
// instruction that triggered it.
type InstructionError struct {
	Code    uint32
	Message string
}

func (e *InstructionError) Error() string {
	return fmt.Sprintf("%s (%d)", e.Message, e.Code)
}

// Is matches instruction errors by code.
func (e *InstructionError) Is(target error) bool {
	other, ok := target.(*InstructionError)
	return ok && other.Code == e.Code
}

var (
	ErrFailedToTransferCommitCost = &InstructionError{
		Code:    CodeFailedToTransferCommitCost,
		Message: "failed to transfer schedule commit cost",
	}
	ErrUnableToUnlockSentCommits = &InstructionError{
		Code:    CodeUnableToUnlockSentCommits,
		Message: "unable to unlock sent commits",
	}
	ErrCommitNotFound = &InstructionError{
		Code:    CodeCommitNotFound,
		Message: "cannot find scheduled commit",
	}
	ErrAccountNotDelegated = &InstructionError{
		Code:    CodeAccountNotDelegated,
		Message: "account is not delegated",
	}
	ErrTooManyAccounts = &InstructionError{
		Code:    CodeTooManyAccounts,
		Message: "too many accounts in scheduled commit",
	}
	ErrPayerIsProgram = &InstructionError{
		Code:    CodePayerIsProgram,
		Message: "payer must not be a program account",
	}
	ErrContextFull = &InstructionError{
		Code:    CodeContextFull,
		Message: "scheduled commit context is full",
	}
	ErrMalformedContext = &InstructionError{
		Code:    CodeMalformedContext,
		Message: "scheduled commit context is malformed",
	}
)

// ErrorCode extracts the stable numeric code from err, if it carries one.
func ErrorCode(err error) (uint32, bool) {
	var ie *InstructionError
	if errors.As(err, &ie) {
		return ie.Code, true
	}
	return 0, false
}
