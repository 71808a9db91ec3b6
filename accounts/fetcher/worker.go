// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"

	"github.com/luxfi/ephemeral/components/account"
)

var _ Fetcher = (*Worker)(nil)

const defaultFetchTimeout = 30 * time.Second

type result struct {
	snapshot *account.ChainSnapshot
	err      error
}

type request struct {
	key  ids.ID
	resp chan result
}

type completion struct {
	key ids.ID
	result
}

// Worker funnels all fetch requests through a single goroutine that owns
// the in-flight map: a request for a key with a fetch already in flight is
// registered as an additional waiter instead of issuing a second remote
// call, and every waiter receives the resolved result in registration
// order.
type Worker struct {
	log     log.Logger
	reader  ChainReader
	metrics *workerMetrics
	timeout time.Duration

	requests    chan request
	completions chan completion

	// fetchCtx parents every remote call so Shutdown cancels in-flight
	// network requests.
	fetchCtx    context.Context
	fetchCancel context.CancelFunc

	startOnce sync.Once
	closeOnce sync.Once
	quit      chan struct{}
	done      chan struct{}
}

func NewWorker(
	logger log.Logger,
	reader ChainReader,
	registerer metric.Registerer,
) (*Worker, error) {
	metrics, err := newWorkerMetrics(registerer)
	if err != nil {
		return nil, err
	}
	fetchCtx, fetchCancel := context.WithCancel(context.Background())
	return &Worker{
		log:         logger,
		reader:      reader,
		metrics:     metrics,
		timeout:     defaultFetchTimeout,
		requests:    make(chan request),
		completions: make(chan completion),
		fetchCtx:    fetchCtx,
		fetchCancel: fetchCancel,
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
	}, nil
}

// Start launches the request-processing loop.
func (w *Worker) Start() {
	w.startOnce.Do(func() {
		go w.run()
	})
}

// Shutdown stops the worker. Every pending waiter is resolved with
// ErrClosed rather than being left pending forever.
func (w *Worker) Shutdown() {
	w.closeOnce.Do(func() {
		w.fetchCancel()
		close(w.quit)
	})
	<-w.done
}

func (w *Worker) run() {
	defer close(w.done)

	// listeners is owned exclusively by this goroutine. At most one fetch
	// is in flight per key; the slice holds its waiters in registration
	// order.
	listeners := make(map[ids.ID][]chan result)

	for {
		select {
		case req := <-w.requests:
			if waiting, ok := listeners[req.key]; ok {
				listeners[req.key] = append(waiting, req.resp)
				w.metrics.dedupHits.Inc()
				continue
			}
			listeners[req.key] = []chan result{req.resp}
			w.metrics.fetches.Inc()
			go w.doFetch(req.key)

		case c := <-w.completions:
			waiting, ok := listeners[c.key]
			if !ok {
				w.log.Error("fetch listeners were discarded improperly",
					log.Stringer("key", c.key),
				)
				continue
			}
			delete(listeners, c.key)
			if c.err != nil {
				w.metrics.failures.Inc()
			}
			for _, resp := range waiting {
				resp <- c.result
			}

		case <-w.quit:
			for _, waiting := range listeners {
				for _, resp := range waiting {
					resp <- result{err: ErrClosed}
				}
			}
			return
		}
	}
}

func (w *Worker) doFetch(key ids.ID) {
	ctx, cancel := context.WithTimeout(w.fetchCtx, w.timeout)
	defer cancel()

	snapshot, err := w.reader.GetAccount(ctx, key)
	if w.fetchCtx.Err() != nil {
		// Shutting down. The run loop resolves every waiter with
		// ErrClosed; don't race it with a canceled result.
		return
	}
	switch {
	case errors.Is(err, database.ErrNotFound):
		err = fmt.Errorf("%w: %s", ErrNotFound, key)
	case err != nil:
		w.log.Warn("failed to fetch account",
			log.Stringer("key", key),
			log.Err(err),
		)
		err = fmt.Errorf("%w: %s: %s", ErrFailedToFetch, key, err)
	}

	select {
	case w.completions <- completion{key: key, result: result{snapshot: snapshot, err: err}}:
	case <-w.quit:
	}
}

// FetchSnapshot implements Fetcher. Concurrent calls for the same key share
// a single remote request.
func (w *Worker) FetchSnapshot(ctx context.Context, key ids.ID, minSlot uint64) (*account.ChainSnapshot, error) {
	// Buffered so the run loop never blocks delivering to an abandoned
	// waiter.
	resp := make(chan result, 1)

	select {
	case w.requests <- request{key: key, resp: resp}:
	case <-w.quit:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-resp:
		if res.err != nil {
			return nil, res.err
		}
		if minSlot != 0 && res.snapshot.ObservedSlot < minSlot {
			return nil, fmt.Errorf("%w: %s observed at slot %d, need at least %d",
				ErrFailedToFetch,
				key,
				res.snapshot.ObservedSlot,
				minSlot,
			)
		}
		return res.snapshot.Copy(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
