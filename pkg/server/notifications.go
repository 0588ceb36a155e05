package server

import (
	"math/rand"
	"sync"
	"time"

	"github.com/decred/slog"
)

// Emitter delivers one event to one connection. The gateway implements it.
type Emitter interface {
	Emit(target, event string, payload interface{})
}

// NotificationQueue is the process-wide FIFO for bot-driven notifications.
// Many handler and worker goroutines enqueue; a single consumer drains and
// emits, injecting human-like pacing on bot events. A nil record is the
// shutdown sentinel.
type NotificationQueue struct {
	ch     chan *Notification
	mu     sync.Mutex
	closed bool
}

// NewNotificationQueue creates a queue with the given buffer size.
func NewNotificationQueue(size int) *NotificationQueue {
	return &NotificationQueue{ch: make(chan *Notification, size)}
}

// Enqueue appends one notification. Enqueueing after Close is a no-op.
func (q *NotificationQueue) Enqueue(n Notification) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.ch <- &n
}

// EnqueueAll appends notifications preserving order.
func (q *NotificationQueue) EnqueueAll(ns []Notification) {
	for _, n := range ns {
		q.Enqueue(n)
	}
}

// Close sends the shutdown sentinel to the consumer.
func (q *NotificationQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.ch <- nil
}

// Consumer drains the notification queue on its own goroutine so pacing
// sleeps never stall socket dispatch.
type Consumer struct {
	queue   *NotificationQueue
	emitter Emitter
	log     slog.Logger

	// sleep is swappable for tests.
	sleep func(d time.Duration)
}

// NewConsumer creates a consumer over the queue and emitter.
func NewConsumer(queue *NotificationQueue, emitter Emitter, log slog.Logger) *Consumer {
	return &Consumer{queue: queue, emitter: emitter, log: log, sleep: time.Sleep}
}

// Run processes records until the shutdown sentinel arrives. Call on its
// own goroutine.
func (c *Consumer) Run() {
	c.log.Infof("notification consumer started")
	for n := range c.queue.ch {
		if n == nil {
			c.log.Infof("notification consumer stopping")
			return
		}
		if n.Event == "" || n.Target == "" {
			c.log.Warnf("skipping invalid notification: %+v", n)
			continue
		}

		c.emitter.Emit(n.Target, n.Event, n.Payload)
		c.pace(n)
	}
}

// pace sleeps after bot events to approximate human play rhythm.
func (c *Consumer) pace(n *Notification) {
	switch n.Event {
	case EventBotDiceRollResult:
		c.sleep(uniformDuration(500*time.Millisecond, 1500*time.Millisecond))
	case EventOnOpponentStepExecuted:
		if p, ok := n.Payload.(OpponentStepPayload); ok && p.IsBotMove {
			c.sleep(uniformDuration(750*time.Millisecond, 2000*time.Millisecond))
		}
	}
}

func uniformDuration(min, max time.Duration) time.Duration {
	return min + time.Duration(rand.Int63n(int64(max-min)))
}
