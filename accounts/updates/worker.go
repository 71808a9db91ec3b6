// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package updates

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"
)

var _ Monitor = (*Worker)(nil)

const defaultSubscribeTimeout = 30 * time.Second

type commandKind uint8

const (
	ensureCmd commandKind = iota
	stopCmd
	firstSlotCmd
	lastSlotCmd
)

type slotAnswer struct {
	slot uint64
	ok   bool
}

type command struct {
	kind     commandKind
	key      ids.ID
	errResp  chan error
	slotResp chan slotAnswer
	doneResp chan struct{}
}

type subscribed struct {
	key         ids.ID
	slot        uint64
	stream      <-chan Notification
	unsubscribe func()
	err         error
}

// entry is the monitoring state for one key. Owned exclusively by the run
// loop.
type entry struct {
	firstSubscribedSlot uint64
	lastUpdateSlot      uint64
	hasUpdate           bool
	unsubscribe         func()
}

// Worker owns the monitor-entry map: all reads and writes go through its
// run loop, so entries are never reached by shared mutable access.
type Worker struct {
	log        log.Logger
	subscriber ChainSubscriber
	metrics    *workerMetrics
	timeout    time.Duration

	commands      chan command
	subscriptions chan subscribed
	notifications chan Notification

	subCtx    context.Context
	subCancel context.CancelFunc

	forwarders sync.WaitGroup
	startOnce  sync.Once
	closeOnce  sync.Once
	quit       chan struct{}
	done       chan struct{}
}

func NewWorker(
	logger log.Logger,
	subscriber ChainSubscriber,
	registerer metric.Registerer,
) (*Worker, error) {
	metrics, err := newWorkerMetrics(registerer)
	if err != nil {
		return nil, err
	}
	subCtx, subCancel := context.WithCancel(context.Background())
	return &Worker{
		log:           logger,
		subscriber:    subscriber,
		metrics:       metrics,
		timeout:       defaultSubscribeTimeout,
		commands:      make(chan command),
		subscriptions: make(chan subscribed),
		notifications: make(chan Notification),
		subCtx:        subCtx,
		subCancel:     subCancel,
		quit:          make(chan struct{}),
		done:          make(chan struct{}),
	}, nil
}

func (w *Worker) Start() {
	w.startOnce.Do(func() {
		go w.run()
	})
}

// Shutdown cancels every subscription and stops the worker.
func (w *Worker) Shutdown() {
	w.closeOnce.Do(func() {
		w.subCancel()
		close(w.quit)
	})
	<-w.done
}

func (w *Worker) run() {
	defer close(w.done)

	entries := make(map[ids.ID]*entry)
	// Waiters for subscriptions still being established, per key.
	pending := make(map[ids.ID][]chan error)

	for {
		select {
		case cmd := <-w.commands:
			switch cmd.kind {
			case ensureCmd:
				if _, ok := entries[cmd.key]; ok {
					cmd.errResp <- nil
					continue
				}
				if waiting, ok := pending[cmd.key]; ok {
					pending[cmd.key] = append(waiting, cmd.errResp)
					continue
				}
				pending[cmd.key] = []chan error{cmd.errResp}
				go w.subscribe(cmd.key)

			case stopCmd:
				if e, ok := entries[cmd.key]; ok {
					e.unsubscribe()
					delete(entries, cmd.key)
					w.metrics.numMonitored.Set(float64(len(entries)))
				}
				cmd.doneResp <- struct{}{}

			case firstSlotCmd:
				if e, ok := entries[cmd.key]; ok {
					cmd.slotResp <- slotAnswer{slot: e.firstSubscribedSlot, ok: true}
				} else {
					cmd.slotResp <- slotAnswer{}
				}

			case lastSlotCmd:
				if e, ok := entries[cmd.key]; ok && e.hasUpdate {
					cmd.slotResp <- slotAnswer{slot: e.lastUpdateSlot, ok: true}
				} else {
					cmd.slotResp <- slotAnswer{}
				}
			}

		case sub := <-w.subscriptions:
			waiting := pending[sub.key]
			delete(pending, sub.key)
			if sub.err != nil {
				// Leave the key unestablished so callers can retry.
				err := fmt.Errorf("%w: %s: %s", ErrSubscribe, sub.key, sub.err)
				for _, resp := range waiting {
					resp <- err
				}
				continue
			}
			entries[sub.key] = &entry{
				firstSubscribedSlot: sub.slot,
				unsubscribe:         sub.unsubscribe,
			}
			w.metrics.numMonitored.Set(float64(len(entries)))
			w.forward(sub.stream)
			for _, resp := range waiting {
				resp <- nil
			}

		case note := <-w.notifications:
			e, ok := entries[note.Key]
			if !ok {
				continue
			}
			// Notifications can arrive out of order; the recorded slot
			// never decreases.
			if e.hasUpdate && note.Slot < e.lastUpdateSlot {
				w.metrics.staleNotifications.Inc()
				continue
			}
			e.lastUpdateSlot = note.Slot
			e.hasUpdate = true
			w.metrics.notifications.Inc()

		case <-w.quit:
			for key, e := range entries {
				e.unsubscribe()
				delete(entries, key)
			}
			for key, waiting := range pending {
				delete(pending, key)
				for _, resp := range waiting {
					resp <- ErrClosed
				}
			}
			w.forwarders.Wait()
			return
		}
	}
}

func (w *Worker) subscribe(key ids.ID) {
	ctx, cancel := context.WithTimeout(w.subCtx, w.timeout)
	defer cancel()

	sub := subscribed{key: key}
	sub.slot, sub.err = w.subscriber.CurrentSlot(ctx)
	if sub.err == nil {
		sub.stream, sub.unsubscribe, sub.err = w.subscriber.SubscribeAccount(ctx, key)
	}

	select {
	case w.subscriptions <- sub:
	case <-w.quit:
		if sub.err == nil {
			sub.unsubscribe()
		}
	}
}

// forward pumps one subscription stream into the run loop.
func (w *Worker) forward(stream <-chan Notification) {
	w.forwarders.Add(1)
	go func() {
		defer w.forwarders.Done()
		for {
			select {
			case note, ok := <-stream:
				if !ok {
					return
				}
				select {
				case w.notifications <- note:
				case <-w.quit:
					return
				}
			case <-w.quit:
				return
			}
		}
	}()
}

func (w *Worker) EnsureMonitoring(ctx context.Context, key ids.ID) error {
	resp := make(chan error, 1)
	select {
	case w.commands <- command{kind: ensureCmd, key: key, errResp: resp}:
	case <-w.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) StopMonitoring(key ids.ID) {
	resp := make(chan struct{}, 1)
	select {
	case w.commands <- command{kind: stopCmd, key: key, doneResp: resp}:
	case <-w.quit:
		return
	}
	select {
	case <-resp:
	case <-w.quit:
	}
}

func (w *Worker) FirstSubscribedSlot(key ids.ID) (uint64, bool) {
	return w.readSlot(command{kind: firstSlotCmd, key: key})
}

func (w *Worker) LastKnownUpdateSlot(key ids.ID) (uint64, bool) {
	return w.readSlot(command{kind: lastSlotCmd, key: key})
}

func (w *Worker) readSlot(cmd command) (uint64, bool) {
	cmd.slotResp = make(chan slotAnswer, 1)
	select {
	case w.commands <- cmd:
	case <-w.quit:
		return 0, false
	}
	select {
	case answer := <-cmd.slotResp:
		return answer.slot, answer.ok
	case <-w.quit:
		return 0, false
	}
}
