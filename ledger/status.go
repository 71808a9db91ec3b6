// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"errors"
	"fmt"
)

var ErrInvalidTransition = errors.New("invalid commit status transition")

// Status tracks a commit through its lifecycle. Only Acknowledged is
// terminal: a failed commit can be drained again for resubmission.
type Status uint8

const (
	// StatusDrained is the first recorded state: the commit left the
	// outbox and the processor owns it.
	StatusDrained Status = iota + 1
	StatusSubmitted
	StatusConfirmed
	StatusAcknowledged
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDrained:
		return "drained"
	case StatusSubmitted:
		return "submitted"
	case StatusConfirmed:
		return "confirmed"
	case StatusAcknowledged:
		return "acknowledged"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown status %d", s)
	}
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusAcknowledged
}

// Verify checks that moving from s to next is a legal lifecycle step.
func (s Status) Verify(next Status) error {
	var ok bool
	switch s {
	case StatusDrained:
		ok = next == StatusSubmitted || next == StatusFailed
	case StatusSubmitted:
		ok = next == StatusConfirmed || next == StatusFailed
	case StatusConfirmed:
		ok = next == StatusAcknowledged || next == StatusFailed
	case StatusFailed:
		ok = next == StatusDrained
	case StatusAcknowledged:
		ok = false
	}
	if !ok {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, s, next)
	}
	return nil
}
