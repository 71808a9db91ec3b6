// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package committer

import (
	"context"
	"sync"

	"github.com/luxfi/ids"

	"github.com/luxfi/ephemeral/magic"
)

var _ Committer = (*Stub)(nil)

// Stub is a deterministic Committer for tests. Every successful send is
// recorded; failures can be injected per call.
type Stub struct {
	mu          sync.Mutex
	sent        []*magic.ScheduledCommit
	sendErrs    []error
	confirmErr  error
	confirmed   []ids.ID
	nextSigSeed byte
}

func NewStub() *Stub {
	return &Stub{}
}

// FailSends queues errs to be returned by the next sends, in order. Once
// the queue is exhausted, sends succeed again.
func (s *Stub) FailSends(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendErrs = append(s.sendErrs, errs...)
}

// FailConfirmations makes every confirmation fail with err until reset with
// nil.
func (s *Stub) FailConfirmations(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmErr = err
}

// Sent returns every successfully sent commit, in submission order.
func (s *Stub) Sent() []*magic.ScheduledCommit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*magic.ScheduledCommit(nil), s.sent...)
}

// Confirmed returns every confirmed signature, in confirmation order.
func (s *Stub) Confirmed() []ids.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ids.ID(nil), s.confirmed...)
}

func (s *Stub) SendTransaction(_ context.Context, commit *magic.ScheduledCommit) (ids.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sendErrs) > 0 {
		err := s.sendErrs[0]
		s.sendErrs = s.sendErrs[1:]
		if err != nil {
			return ids.Empty, err
		}
	}

	s.sent = append(s.sent, commit)
	s.nextSigSeed++
	return ids.ID{s.nextSigSeed}, nil
}

func (s *Stub) ConfirmTransaction(_ context.Context, signature ids.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.confirmErr != nil {
		return s.confirmErr
	}
	s.confirmed = append(s.confirmed, signature)
	return nil
}
