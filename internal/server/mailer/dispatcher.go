package mailer

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/contactkeeper/internal/logging"
)

const sendTimeout = 30 * time.Second

// Dispatcher is a fire-and-forget front for a Sender. Messages are queued on
// a bounded channel; when the queue is full the message is dropped and
// logged. Delivery failures are logged, never returned.
type Dispatcher struct {
	sender  Sender
	queue   chan Message
	workers int
	logger  logging.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(sender Sender, workers, queueSize int, l logging.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Dispatcher{
		sender:  sender,
		queue:   make(chan Message, queueSize),
		workers: workers,
		logger:  l.With("module", "mailer"),
	}
}

// Start launches the workers. ctx bounds every delivery attempt.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work(ctx)
	}
}

func (d *Dispatcher) work(ctx context.Context) {
	defer d.wg.Done()

	for msg := range d.queue {
		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		if err := d.sender.Send(sendCtx, msg); err != nil {
			d.logger.Error(ctx, "email delivery failed", "to", msg.To, "error", err)
		} else {
			d.logger.Info(ctx, "email delivered", "to", msg.To)
		}
		cancel()
	}
}

// Send queues a message without blocking.
func (d *Dispatcher) Send(to, subject, body string) {
	d.Enqueue(Message{To: to, Subject: subject, Body: body})
}

// Enqueue is Send for a prepared Message. It reports whether the message was
// accepted.
func (d *Dispatcher) Enqueue(msg Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn(context.Background(), "email dropped, dispatcher closed", "to", msg.To)
		return false
	}

	select {
	case d.queue <- msg:
		return true
	default:
		d.logger.Warn(context.Background(), "email dropped, queue full", "to", msg.To)
		return false
	}
}

// Close stops accepting messages, lets the workers drain the queue and waits
// for them to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	d.wg.Wait()
}
