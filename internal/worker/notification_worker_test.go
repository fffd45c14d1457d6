package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/fincaops/incident-service/internal/notify"
	"github.com/fincaops/incident-service/internal/observability"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type captureSender struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (s *captureSender) Send(_ context.Context, n notify.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return nil
}

func (s *captureSender) all() []notify.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.Notification{}, s.sent...)
}

func TestWorkerSendsEachDedupKeyOnce(t *testing.T) {
	logger := zap.NewNop()
	queue := notify.NewQueue(16, logger)
	sender := &captureSender{}
	worker := NewNotificationWorker(queue, notify.NewMemoryDeduper(), sender, observability.NewMetrics(), logger)
	worker.Start(context.Background())

	first := notify.Notification{TicketCode: "INC-AAAAAA", EventType: "ticket_created", Handle: "+34600", DedupKey: "evt-1"}
	queue.Enqueue(first)
	queue.Enqueue(first) // reprocessed event, same audit id
	queue.Enqueue(notify.Notification{TicketCode: "INC-AAAAAA", EventType: "ticket_resolved", Handle: "+34600", DedupKey: "evt-2"})

	queue.Close()
	worker.Wait()

	sent := sender.all()
	assert.Len(t, sent, 2)
	keys := map[string]int{}
	for _, n := range sent {
		keys[n.DedupKey]++
	}
	assert.Equal(t, 1, keys["evt-1"])
	assert.Equal(t, 1, keys["evt-2"])
}

func TestWorkerDrainsBufferAfterClose(t *testing.T) {
	logger := zap.NewNop()
	queue := notify.NewQueue(64, logger)
	sender := &captureSender{}
	worker := NewNotificationWorker(queue, notify.NewMemoryDeduper(), sender, observability.NewMetrics(), logger)

	for i := 0; i < 10; i++ {
		queue.Enqueue(notify.Notification{DedupKey: string(rune('a' + i))})
	}
	queue.Close()

	// started after close: everything buffered must still go out
	worker.Start(context.Background())
	worker.Wait()
	assert.Len(t, sender.all(), 10)
}

func TestWorkerSendsWhenDedupKeyMissing(t *testing.T) {
	logger := zap.NewNop()
	queue := notify.NewQueue(16, logger)
	sender := &captureSender{}
	worker := NewNotificationWorker(queue, notify.NewMemoryDeduper(), sender, observability.NewMetrics(), logger)
	worker.Start(context.Background())

	queue.Enqueue(notify.Notification{TicketCode: "INC-AAAAAA"})
	queue.Enqueue(notify.Notification{TicketCode: "INC-BBBBBB"})
	queue.Close()
	worker.Wait()

	assert.Len(t, sender.all(), 2)
}

func TestEscalationWorkerStops(t *testing.T) {
	logger := zap.NewNop()
	worker := NewEscalationWorker(nil, time.Hour, observability.NewMetrics(), logger)
	worker.Start(context.Background())
	worker.Stop()
}
