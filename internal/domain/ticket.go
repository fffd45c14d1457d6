package domain

import "time"

// TicketStatus enumerates lifecycle states for incident tickets.
type TicketStatus string

const (
	TicketStatusNew               TicketStatus = "NEW"
	TicketStatusNeedsInfo         TicketStatus = "NEEDS_INFO"
	TicketStatusValidating        TicketStatus = "VALIDATING"
	TicketStatusDispatched        TicketStatus = "DISPATCHED"
	TicketStatusScheduled         TicketStatus = "SCHEDULED"
	TicketStatusInProgress        TicketStatus = "IN_PROGRESS"
	TicketStatusNeedsConfirmation TicketStatus = "NEEDS_CONFIRMATION"
	TicketStatusWaitingInvoice    TicketStatus = "WAITING_INVOICE"
	TicketStatusClosed            TicketStatus = "CLOSED"
	TicketStatusEscalated         TicketStatus = "ESCALATED"
)

// Valid reports whether the value is one of the known lifecycle states.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusNew, TicketStatusNeedsInfo, TicketStatusValidating,
		TicketStatusDispatched, TicketStatusScheduled, TicketStatusInProgress,
		TicketStatusNeedsConfirmation, TicketStatusWaitingInvoice,
		TicketStatusClosed, TicketStatusEscalated:
		return true
	}
	return false
}

// IsTerminal reports whether the status accepts no further transitions.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusClosed
}

// Category enumerates incident categories.
type Category string

const (
	CategoryWater       Category = "WATER"
	CategoryElevator    Category = "ELEVATOR"
	CategoryElectricity Category = "ELECTRICITY"
	CategoryGarageDoor  Category = "GARAGE_DOOR"
	CategoryCleaning    Category = "CLEANING"
	CategorySecurity    Category = "SECURITY"
	CategoryOther       Category = "OTHER"
)

// Urgency enumerates SLA urgency levels.
type Urgency string

const (
	UrgencyUrgent Urgency = "URGENT"
	UrgencyHigh   Urgency = "HIGH"
	UrgencyMedium Urgency = "MEDIUM"
	UrgencyLow    Urgency = "LOW"
)

// Ticket is the aggregate for one reported incident.
type Ticket struct {
	ID               string
	Code             string
	ReporterID       string
	Channel          Channel
	Category         Category
	Urgency          Urgency
	Summary          string
	Description      string
	Address          string
	Unit             string
	Status           TicketStatus
	EscalatedFrom    *TicketStatus
	FollowUpOfID     *string
	AssignedProvider *string
	NeedsReview      bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
	LastActivityAt   time.Time
	ClosedAt         *time.Time
}

// IsComplete reports whether the ticket carries every field required to
// leave NEEDS_INFO: a summary, a category, and both location fields.
func (t *Ticket) IsComplete() bool {
	return t.Summary != "" && t.Category != "" && t.Address != "" && t.Unit != ""
}

// MissingFields lists the required fields still absent.
func (t *Ticket) MissingFields() []string {
	var missing []string
	if t.Summary == "" {
		missing = append(missing, "summary")
	}
	if t.Category == "" {
		missing = append(missing, "category")
	}
	if t.Address == "" {
		missing = append(missing, "address")
	}
	if t.Unit == "" {
		missing = append(missing, "unit")
	}
	return missing
}
