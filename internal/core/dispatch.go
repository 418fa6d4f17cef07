package core

import (
	"context"
	"errors"
	"sync"

	"homecare-visit-bot/internal/pkg/logger"
	"homecare-visit-bot/pkg"
)

// ErrDispatcherClosed is returned by Submit after Close.
var ErrDispatcherClosed = errors.New("dispatcher closed")

// Handler processes one event to completion.
type Handler interface {
	Handle(ctx context.Context, ev pkg.Event) error
}

// Dispatcher gives every sender identity its own FIFO mailbox.  One
// goroutine drains a mailbox at a time and exits once it is empty, so events
// of a user are handled in submission order and never concurrently.
type Dispatcher struct {
	handler Handler
	log     logger.ILogger
	ctx     context.Context

	mu        sync.Mutex
	mailboxes map[string][]pkg.Event
	closed    bool
	wg        sync.WaitGroup
}

// NewDispatcher creates a dispatcher whose handlers run with ctx's values.
// Cancelling ctx does not abort queued events: a shutdown stops intake with
// Close, and pending events, hand-offs included, still run to completion
// under their own timeouts.
func NewDispatcher(ctx context.Context, handler Handler, log logger.ILogger) *Dispatcher {
	return &Dispatcher{
		handler:   handler,
		log:       log,
		ctx:       context.WithoutCancel(ctx),
		mailboxes: make(map[string][]pkg.Event),
	}
}

// Submit queues ev behind any pending events of the same sender.
func (d *Dispatcher) Submit(ev pkg.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	if queue, busy := d.mailboxes[ev.SenderID]; busy {
		d.mailboxes[ev.SenderID] = append(queue, ev)
		return nil
	}
	d.mailboxes[ev.SenderID] = []pkg.Event{}
	d.wg.Add(1)
	go d.drain(ev)
	return nil
}

func (d *Dispatcher) drain(first pkg.Event) {
	defer d.wg.Done()
	id := first.SenderID
	ev := first
	for {
		if err := d.handler.Handle(d.ctx, ev); err != nil {
			d.log.Warn("dispatcher", "Event handled with error", map[string]interface{}{
				"user": id, "message_id": ev.MessageID, "error": err,
			})
		}

		d.mu.Lock()
		queue := d.mailboxes[id]
		if len(queue) == 0 {
			delete(d.mailboxes, id)
			d.mu.Unlock()
			return
		}
		ev = queue[0]
		d.mailboxes[id] = queue[1:]
		d.mu.Unlock()
	}
}

// Close rejects further events and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}
