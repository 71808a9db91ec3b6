// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package magic

import (
	"sync"

	"github.com/luxfi/ids"
)

// ScheduledTransaction is a local follow-up transaction queued for
// execution at the next slot boundary. Instruction holds the marshalled
// instruction bytes.
type ScheduledTransaction struct {
	Payer       ids.ID
	Instruction []byte
}

// TransactionScheduler queues follow-up transactions in FIFO order. The
// processor enqueues acknowledgments here; the orchestrator drains and
// executes them between transactions.
type TransactionScheduler struct {
	mu    sync.Mutex
	queue []ScheduledTransaction
}

func NewTransactionScheduler() *TransactionScheduler {
	return &TransactionScheduler{}
}

func (s *TransactionScheduler) Schedule(tx ScheduledTransaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, tx)
}

// Take drains every queued transaction in the order it was scheduled.
func (s *TransactionScheduler) Take() []ScheduledTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	queue := s.queue
	s.queue = nil
	return queue
}

func (s *TransactionScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}
