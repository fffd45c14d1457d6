package events

import (
	"time"

	"github.com/fincaops/incident-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketNeedsInfo     EventType = "ticket_needs_info"
	EventTicketContinued     EventType = "ticket_continued"
	EventTicketEscalated     EventType = "ticket_escalated"
	EventTicketResolved      EventType = "ticket_resolved"
	EventFollowUpCreated     EventType = "follow_up_created"
	EventStatusReport        EventType = "status_report"
)

// Event represents a domain event emitted after a committed ticket mutation.
// AuditEventID is the id of the TicketEvent row the mutation appended; the
// notification path dedupes on it so reprocessing never re-notifies.
type Event struct {
	ID           string         `json:"id"`
	Type         EventType      `json:"type"`
	TicketID     string         `json:"ticket_id"`
	TicketCode   string         `json:"ticket_code"`
	AuditEventID string         `json:"audit_event_id"`
	Channel      domain.Channel `json:"channel"`
	Handle       string         `json:"handle"`
	Timestamp    time.Time      `json:"timestamp"`
	Payload      interface{}    `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Category      domain.Category `json:"category"`
	Urgency       domain.Urgency  `json:"urgency"`
	Summary       string          `json:"summary"`
	MissingFields []string        `json:"missing_fields,omitempty"`
}

// StatusChangedPayload payload.
type StatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Trigger   string              `json:"trigger,omitempty"`
}

// ContinuedPayload payload.
type ContinuedPayload struct {
	TextPreview string `json:"text_preview"`
}

// StatusReportPayload payload for status-query replies.
type StatusReportPayload struct {
	Tickets []StatusReportLine `json:"tickets"`
}

// StatusReportLine is one open ticket in a status report.
type StatusReportLine struct {
	Code    string              `json:"code"`
	Summary string              `json:"summary"`
	Status  domain.TicketStatus `json:"status"`
}

// FollowUpCreatedPayload payload.
type FollowUpCreatedPayload struct {
	OriginalCode string `json:"original_code"`
	FollowUpCode string `json:"follow_up_code"`
}
