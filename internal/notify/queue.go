package notify

import (
	"go.uber.org/zap"
)

// Queue decouples event handlers from delivery: handlers enqueue and return
// immediately, so notification work never blocks whoever holds a ticket or
// reporter lock.
type Queue struct {
	ch     chan Notification
	logger *zap.Logger
}

// NewQueue creates a buffered notification queue.
func NewQueue(size int, logger *zap.Logger) *Queue {
	if size <= 0 {
		size = 256
	}
	return &Queue{ch: make(chan Notification, size), logger: logger}
}

// Enqueue adds a notification without blocking. A full queue drops the
// notification with a warning; delivery retries are the gateway's concern.
func (q *Queue) Enqueue(n Notification) {
	select {
	case q.ch <- n:
	default:
		q.logger.Warn("notification queue full, dropping",
			zap.String("ticket_code", n.TicketCode),
			zap.String("event_type", n.EventType))
	}
}

// C exposes the drain side of the queue.
func (q *Queue) C() <-chan Notification {
	return q.ch
}

// Close stops the queue; the drain worker exits after the buffer empties.
func (q *Queue) Close() {
	close(q.ch)
}
