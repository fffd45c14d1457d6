package domain

import "time"

// TicketEventType captures what a ticket event records.
type TicketEventType string

const (
	EventTypeTicketCreated   TicketEventType = "TICKET_CREATED"
	EventTypeStatusChanged   TicketEventType = "STATUS_CHANGED"
	EventTypeMessageAppended TicketEventType = "MESSAGE_APPENDED"
	EventTypeInfoApplied     TicketEventType = "INFO_APPLIED"
	EventTypeEscalated       TicketEventType = "ESCALATED"
	EventTypeResumed         TicketEventType = "RESUMED"
	EventTypeFollowUpCreated TicketEventType = "FOLLOW_UP_CREATED"
	EventTypeReviewFlagged   TicketEventType = "REVIEW_FLAGGED"
)

// TicketEvent is an immutable audit trail entry. Every status transition
// appends exactly one; the notification pipeline dedupes on the event ID.
type TicketEvent struct {
	ID          string
	TicketID    string
	Type        TicketEventType
	FromStatus  *TicketStatus
	ToStatus    *TicketStatus
	Trigger     string
	Description string
	Payload     map[string]any
	Actor       string
	CreatedAt   time.Time
}
