package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fincaops/incident-service/internal/observability"
	"github.com/fincaops/incident-service/internal/service"
)

// EscalationWorker periodically escalates URGENT tickets that breached the
// dispatch SLA.
type EscalationWorker struct {
	tickets  *service.TicketService
	interval time.Duration
	metrics  *observability.Metrics
	logger   *zap.Logger
	stop     chan struct{}
	done     chan struct{}
}

// NewEscalationWorker constructs the worker.
func NewEscalationWorker(tickets *service.TicketService, interval time.Duration, metrics *observability.Metrics, logger *zap.Logger) *EscalationWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &EscalationWorker{
		tickets:  tickets,
		interval: interval,
		metrics:  metrics,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop.
func (w *EscalationWorker) Start(ctx context.Context) {
	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.sweep(ctx)
			case <-w.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the loop and waits for it to exit.
func (w *EscalationWorker) Stop() {
	close(w.stop)
	<-w.done
}

func (w *EscalationWorker) sweep(ctx context.Context) {
	count, err := w.tickets.CheckEscalations(ctx)
	if err != nil {
		w.logger.Warn("escalation sweep failed", zap.Error(err))
		return
	}
	for i := 0; i < count; i++ {
		w.metrics.RecordEscalation()
	}
	if count > 0 {
		w.logger.Info("escalation sweep", zap.Int("escalated", count))
	}
}
