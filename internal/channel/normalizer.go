package channel

import (
	"regexp"
	"strings"
	"time"

	"github.com/fincaops/incident-service/internal/domain"
)

// ticketCodeRe matches public ticket codes anywhere in a text.
var ticketCodeRe = regexp.MustCompile(`\bINC-[A-Z0-9]{6}\b`)

// MessagingPayload is the decoded inbound from the messaging gateway.
type MessagingPayload struct {
	From        string
	ProfileName string
	Body        string
	ReceivedAt  time.Time
}

// EmailPayload is the decoded inbound mail.
type EmailPayload struct {
	From       string
	FromName   string
	Subject    string
	Body       string
	ReceivedAt time.Time
}

// WebFormPayload is the public incident form submission.
type WebFormPayload struct {
	Email       string
	Name        string
	Description string
	Address     string
	Unit        string
	TicketCode  string
	ReceivedAt  time.Time
}

// FromMessaging normalizes a conversational-messaging inbound.
func FromMessaging(p MessagingPayload) domain.InboundMessage {
	return domain.InboundMessage{
		Channel:            domain.ChannelWhatsApp,
		Handle:             NormalizePhone(p.From),
		DisplayName:        strings.TrimSpace(p.ProfileName),
		Text:               strings.TrimSpace(p.Body),
		ReceivedAt:         receivedOrNow(p.ReceivedAt),
		ExplicitTicketCode: ExtractTicketCode(p.Body),
	}
}

// FromEmail normalizes an inbound mail. Subject and body are merged since
// reporters put the incident in either; a code in the subject (a reply to a
// notification) routes as a continuation.
func FromEmail(p EmailPayload) domain.InboundMessage {
	text := strings.TrimSpace(p.Subject)
	if body := strings.TrimSpace(p.Body); body != "" {
		if text != "" {
			text += "\n" + body
		} else {
			text = body
		}
	}
	code := ExtractTicketCode(p.Subject)
	if code == "" {
		code = ExtractTicketCode(p.Body)
	}
	return domain.InboundMessage{
		Channel:            domain.ChannelEmail,
		Handle:             NormalizeEmail(p.From),
		DisplayName:        strings.TrimSpace(p.FromName),
		Text:               text,
		ReceivedAt:         receivedOrNow(p.ReceivedAt),
		ExplicitTicketCode: code,
	}
}

// FromWebForm normalizes a public form submission. The form carries
// structured fields, so location data rides inside the text for extraction
// and the explicit code field wins over anything in the description.
func FromWebForm(p WebFormPayload) domain.InboundMessage {
	var parts []string
	if desc := strings.TrimSpace(p.Description); desc != "" {
		parts = append(parts, desc)
	}
	if addr := strings.TrimSpace(p.Address); addr != "" {
		parts = append(parts, "Dirección: "+addr)
	}
	if unit := strings.TrimSpace(p.Unit); unit != "" {
		parts = append(parts, "Piso/puerta: "+unit)
	}
	code := strings.ToUpper(strings.TrimSpace(p.TicketCode))
	if code == "" {
		code = ExtractTicketCode(p.Description)
	} else if !ticketCodeRe.MatchString(code) {
		code = ""
	}
	return domain.InboundMessage{
		Channel:            domain.ChannelWeb,
		Handle:             NormalizeEmail(p.Email),
		DisplayName:        strings.TrimSpace(p.Name),
		Text:               strings.Join(parts, "\n"),
		ReceivedAt:         receivedOrNow(p.ReceivedAt),
		ExplicitTicketCode: code,
	}
}

// NormalizePhone strips gateway prefixes and separators and ensures a
// leading plus, so one number always maps to one reporter handle.
func NormalizePhone(raw string) string {
	phone := strings.TrimSpace(raw)
	phone = strings.TrimPrefix(phone, "whatsapp:")
	phone = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(phone)
	if phone == "" {
		return ""
	}
	if !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}
	return phone
}

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ExtractTicketCode pulls the first ticket code out of free text.
func ExtractTicketCode(text string) string {
	return ticketCodeRe.FindString(strings.ToUpper(text))
}

func receivedOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
