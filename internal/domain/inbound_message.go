package domain

import "time"

// InboundMessage is the canonical unit produced by channel normalizers and
// consumed by the resolver. It is ephemeral: audit trails live on the ticket
// as TicketEvents, not here.
type InboundMessage struct {
	Channel            Channel
	Handle             string
	DisplayName        string
	Text               string
	ReceivedAt         time.Time
	ExplicitTicketCode string
}
