package dto

import (
	"time"

	"github.com/fincaops/incident-service/internal/domain"
)

// TicketResponse is the API shape of a ticket.
type TicketResponse struct {
	ID               string     `json:"id"`
	Code             string     `json:"code"`
	ReporterID       string     `json:"reporter_id"`
	Channel          string     `json:"channel"`
	Category         string     `json:"category,omitempty"`
	Urgency          string     `json:"urgency,omitempty"`
	Summary          string     `json:"summary,omitempty"`
	Description      string     `json:"description,omitempty"`
	Address          string     `json:"address,omitempty"`
	Unit             string     `json:"unit,omitempty"`
	Status           string     `json:"status"`
	EscalatedFrom    *string    `json:"escalated_from,omitempty"`
	FollowUpOfID     *string    `json:"follow_up_of_id,omitempty"`
	AssignedProvider *string    `json:"assigned_provider,omitempty"`
	NeedsReview      bool       `json:"needs_review"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	LastActivityAt   time.Time  `json:"last_activity_at"`
	ClosedAt         *time.Time `json:"closed_at,omitempty"`
}

// TicketEventResponse is the API shape of an audit event.
type TicketEventResponse struct {
	ID          string         `json:"id"`
	TicketID    string         `json:"ticket_id"`
	Type        string         `json:"type"`
	FromStatus  *string        `json:"from_status,omitempty"`
	ToStatus    *string        `json:"to_status,omitempty"`
	Trigger     string         `json:"trigger,omitempty"`
	Description string         `json:"description,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
	Actor       string         `json:"actor,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// TransitionRequest asks for a ticket status change.
type TransitionRequest struct {
	To     string `json:"to"`
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

// NewTicketResponse maps a domain ticket to its API shape.
func NewTicketResponse(t *domain.Ticket) *TicketResponse {
	if t == nil {
		return nil
	}
	resp := &TicketResponse{
		ID:               t.ID,
		Code:             t.Code,
		ReporterID:       t.ReporterID,
		Channel:          string(t.Channel),
		Category:         string(t.Category),
		Urgency:          string(t.Urgency),
		Summary:          t.Summary,
		Description:      t.Description,
		Address:          t.Address,
		Unit:             t.Unit,
		Status:           string(t.Status),
		FollowUpOfID:     t.FollowUpOfID,
		AssignedProvider: t.AssignedProvider,
		NeedsReview:      t.NeedsReview,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
		LastActivityAt:   t.LastActivityAt,
		ClosedAt:         t.ClosedAt,
	}
	if t.EscalatedFrom != nil {
		from := string(*t.EscalatedFrom)
		resp.EscalatedFrom = &from
	}
	return resp
}

// NewTicketEventResponse maps a domain audit event to its API shape.
func NewTicketEventResponse(e *domain.TicketEvent) *TicketEventResponse {
	if e == nil {
		return nil
	}
	resp := &TicketEventResponse{
		ID:          e.ID,
		TicketID:    e.TicketID,
		Type:        string(e.Type),
		Trigger:     e.Trigger,
		Description: e.Description,
		Payload:     e.Payload,
		Actor:       e.Actor,
		CreatedAt:   e.CreatedAt,
	}
	if e.FromStatus != nil {
		from := string(*e.FromStatus)
		resp.FromStatus = &from
	}
	if e.ToStatus != nil {
		to := string(*e.ToStatus)
		resp.ToStatus = &to
	}
	return resp
}

// NewTicketEventResponses maps a slice of audit events.
func NewTicketEventResponses(events []*domain.TicketEvent) []*TicketEventResponse {
	out := make([]*TicketEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, NewTicketEventResponse(e))
	}
	return out
}
