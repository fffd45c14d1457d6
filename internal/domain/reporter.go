package domain

import "time"

// Channel enumerates inbound/outbound contact channels.
type Channel string

const (
	ChannelWhatsApp Channel = "WHATSAPP"
	ChannelEmail    Channel = "EMAIL"
	ChannelWeb      Channel = "WEB"
)

// Reporter is the stable identity behind incident reports, keyed by
// (channel, handle). At most one reporter exists per pair.
type Reporter struct {
	ID               string
	Channel          Channel
	Handle           string
	Name             string
	Address          string
	Unit             string
	PreferredContact Channel
	NeedsReview      bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ReporterProfile carries progressive profile updates. Empty fields are
// ignored on merge; an existing value is never overwritten by an empty one.
type ReporterProfile struct {
	Name    string
	Address string
	Unit    string
}
