package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fincaops/incident-service/internal/config"
	"github.com/fincaops/incident-service/internal/events"
	"github.com/fincaops/incident-service/internal/notify"
)

// NotificationService turns committed ticket events into outbound
// notifications for the reporter, routed over the channel the incident
// arrived on. It only enqueues; the drain worker sends.
type NotificationService struct {
	dispatcher events.Dispatcher
	queue      *notify.Queue
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, queue *notify.Queue, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		queue:      queue,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to the ticket events that notify reporters.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handle)
	n.dispatcher.Subscribe(events.EventTicketNeedsInfo, n.handle)
	n.dispatcher.Subscribe(events.EventTicketResolved, n.handle)
	n.dispatcher.Subscribe(events.EventTicketEscalated, n.handle)
	n.dispatcher.Subscribe(events.EventFollowUpCreated, n.handle)
	n.dispatcher.Subscribe(events.EventStatusReport, n.handle)
}

func (n *NotificationService) handle(_ context.Context, event events.Event) error {
	if event.Handle == "" {
		n.logger.Warn("event without reporter handle, skipping notification",
			zap.String("ticket_code", event.TicketCode),
			zap.String("event_type", string(event.Type)))
		return nil
	}
	n.queue.Enqueue(notify.Notification{
		TicketID:   event.TicketID,
		TicketCode: event.TicketCode,
		EventType:  string(event.Type),
		Channel:    event.Channel,
		Handle:     event.Handle,
		Body:       n.bodyFor(event),
		DedupKey:   event.AuditEventID,
	})
	return nil
}

func (n *NotificationService) bodyFor(event events.Event) string {
	switch event.Type {
	case events.EventTicketCreated:
		return fmt.Sprintf("Hemos registrado su incidencia %s. Le informaremos de cualquier novedad.", event.TicketCode)
	case events.EventTicketNeedsInfo:
		return fmt.Sprintf("Hemos registrado su incidencia %s, pero necesitamos más información para procesarla.", event.TicketCode)
	case events.EventTicketResolved:
		return fmt.Sprintf("Su incidencia %s ha sido resuelta. Si el problema persiste, responda a este mensaje.", event.TicketCode)
	case events.EventTicketEscalated:
		return fmt.Sprintf("Su incidencia %s ha sido escalada y está siendo atendida con prioridad.", event.TicketCode)
	case events.EventFollowUpCreated:
		if payload, ok := event.Payload.(events.FollowUpCreatedPayload); ok {
			return fmt.Sprintf("Hemos abierto la incidencia %s como seguimiento de %s.", payload.FollowUpCode, payload.OriginalCode)
		}
		return fmt.Sprintf("Hemos abierto la incidencia de seguimiento %s.", event.TicketCode)
	case events.EventStatusReport:
		if payload, ok := event.Payload.(events.StatusReportPayload); ok {
			if len(payload.Tickets) == 0 {
				return "No tiene incidencias abiertas en este momento."
			}
			body := "Estado de sus incidencias:"
			for _, line := range payload.Tickets {
				body += fmt.Sprintf("\n%s - %s (%s)", line.Code, line.Summary, line.Status)
			}
			return body
		}
	}
	return fmt.Sprintf("Novedades en su incidencia %s.", event.TicketCode)
}
