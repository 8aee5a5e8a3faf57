package models

// Channel identifies a delivery channel
type Channel string

const (
	ChannelSMS  Channel = "SMS"
	ChannelChat Channel = "CHAT"
)

// DeliveryRequest describes one batch send. It is consumed once and never
// persisted.
type DeliveryRequest struct {
	Recipients       []string `json:"recipients"`
	Body             string   `json:"body"`
	PreferredChannel Channel  `json:"preferred_channel"`
	TemplateID       string   `json:"template_id,omitempty"`
	TemplateVars     []string `json:"template_vars,omitempty"`
}

// DeliveryResult is the per-recipient outcome of a batch send. Individual
// failures are data here, not errors.
type DeliveryResult struct {
	Recipient          string      `json:"recipient"`
	E164               string      `json:"e164,omitempty"`
	ChannelUsed        Channel     `json:"channel_used,omitempty"`
	Fallback           bool        `json:"fallback,omitempty"`
	Success            bool        `json:"success"`
	LowConfidencePhone bool        `json:"low_confidence_phone,omitempty"`
	ProviderMessageID  string      `json:"provider_message_id,omitempty"`
	RateLimited        bool        `json:"rate_limited,omitempty"`
	RetryAfterMs       int64       `json:"retry_after_ms,omitempty"`
	FailureKind        FailureKind `json:"failure_kind,omitempty"`
	Error              string      `json:"error,omitempty"`
}

// BatchResult aggregates one DeliveryResult per recipient.
type BatchResult struct {
	Results      []DeliveryResult `json:"results"`
	SuccessCount int              `json:"success_count"`
}
