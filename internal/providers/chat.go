package providers

import (
	"context"

	"github.com/malaeb-app/app-messaging/internal/logging"
	"github.com/malaeb-app/app-messaging/internal/models"
	"github.com/malaeb-app/app-messaging/internal/observability"
	"go.uber.org/zap"
)

// ChatConfig carries the chat-business gateway endpoint. Kept configurable
// even while the channel is routed through SMS, so a working chat integration
// only needs this adapter's Send rewritten.
type ChatConfig struct {
	BaseURL string
	Token   string
}

// ChatAdapter nominally targets the chat-business gateway. The integrated
// provider does not reliably deliver on that channel, so sends re-route
// through the SMS adapter and report ChannelSMS with Fallback set. Callers
// must assert on the reported channel, not the requested one.
type ChatAdapter struct {
	cfg ChatConfig
	sms *SMSAdapter
}

// NewChatAdapter creates a chat adapter that falls back to sms for delivery.
func NewChatAdapter(cfg ChatConfig, sms *SMSAdapter) *ChatAdapter {
	return &ChatAdapter{cfg: cfg, sms: sms}
}

// Channel returns the adapter's nominal channel.
func (a *ChatAdapter) Channel() models.Channel {
	return models.ChannelChat
}

// Send re-routes through SMS and marks the result as a fallback.
func (a *ChatAdapter) Send(ctx context.Context, recipient, body string) (*SendResult, error) {
	logging.Logger.Debug("chat channel unavailable, rerouting through SMS",
		zap.String("recipient", observability.MaskPhone(recipient)),
	)

	res, err := a.sms.Send(ctx, recipient, body)
	if err != nil {
		return nil, err
	}
	res.Fallback = true
	return res, nil
}
