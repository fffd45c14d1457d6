package dto

// MessagingInboundRequest carries a message forwarded by the messaging
// provider webhook. Field names follow the provider's form encoding.
type MessagingInboundRequest struct {
	From        string `form:"From" json:"from"`
	ProfileName string `form:"ProfileName" json:"profile_name"`
	Body        string `form:"Body" json:"body"`
}

// EmailInboundRequest carries a parsed inbound email.
type EmailInboundRequest struct {
	From    string `json:"from"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// WebFormRequest carries a public incident form submission.
type WebFormRequest struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Address     string `json:"address"`
	Unit        string `json:"unit"`
	TicketCode  string `json:"ticket_code"`
}

// IntakeResponse reports the outcome of processing an inbound message.
type IntakeResponse struct {
	Outcome string          `json:"outcome"`
	Ticket  *TicketResponse `json:"ticket,omitempty"`
}
