package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/fincaops/incident-service/internal/notify"
	"github.com/fincaops/incident-service/internal/observability"
)

// NotificationWorker drains the notification queue and hands each item to
// the sender, at most once per committed ticket event.
type NotificationWorker struct {
	queue   *notify.Queue
	deduper notify.Deduper
	sender  notify.Sender
	metrics *observability.Metrics
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewNotificationWorker constructs the worker.
func NewNotificationWorker(queue *notify.Queue, deduper notify.Deduper, sender notify.Sender, metrics *observability.Metrics, logger *zap.Logger) *NotificationWorker {
	return &NotificationWorker{
		queue:   queue,
		deduper: deduper,
		sender:  sender,
		metrics: metrics,
		logger:  logger,
	}
}

// Start launches the drain goroutine. It exits once the queue closes and
// the buffer empties.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for n := range w.queue.C() {
			w.dispatch(ctx, n)
		}
	}()
}

// Wait blocks until the drain goroutine has finished. Call after closing
// the queue.
func (w *NotificationWorker) Wait() {
	w.wg.Wait()
}

func (w *NotificationWorker) dispatch(ctx context.Context, n notify.Notification) {
	if n.DedupKey != "" && !w.deduper.FirstSeen(ctx, n.DedupKey) {
		w.logger.Debug("notification already sent for event",
			zap.String("ticket_code", n.TicketCode),
			zap.String("dedup_key", n.DedupKey))
		return
	}
	if err := w.sender.Send(ctx, n); err != nil {
		// delivery retries belong to the external gateway
		w.logger.Error("notification send failed",
			zap.String("ticket_code", n.TicketCode),
			zap.String("event_type", n.EventType),
			zap.Error(err))
		return
	}
	w.metrics.RecordNotification(n.EventType)
}
