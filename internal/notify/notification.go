package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/fincaops/incident-service/internal/domain"
)

// Notification is one outbound message keyed to a committed ticket event.
// DedupKey is the audit event id; the pipeline guarantees at most one send
// per key. Delivery and retries belong to the external messaging gateway.
type Notification struct {
	TicketID   string
	TicketCode string
	EventType  string
	Channel    domain.Channel
	Handle     string
	Body       string
	DedupKey   string
}

// Sender hands a notification to the outbound transport for the channel.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// LogSender records outbound notifications in the log. It stands in for the
// external delivery gateway in development and tests.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender constructs the sender.
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, n Notification) error {
	s.logger.Info("outbound notification",
		zap.String("ticket_code", n.TicketCode),
		zap.String("event_type", n.EventType),
		zap.String("channel", string(n.Channel)),
		zap.String("handle", n.Handle))
	return nil
}
