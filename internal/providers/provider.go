package providers

import (
	"context"
	"fmt"

	"github.com/malaeb-app/app-messaging/internal/models"
)

// SendResult reports the outcome of one provider call. Channel is the channel
// the message actually left on, which may differ from the adapter's nominal
// channel when Fallback is set.
type SendResult struct {
	MessageID string
	Channel   models.Channel
	Fallback  bool
}

// Error is a classified provider failure. Adapters decode gateway responses
// into one of the models.FailureKind variants at the boundary so callers
// never re-inspect raw response shapes.
type Error struct {
	Kind       models.FailureKind
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider error (%s, status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider error (%s): %s", e.Kind, e.Message)
}

// Retryable reports whether the failure may succeed on a prompt retry.
func (e *Error) Retryable() bool {
	return e.Kind == models.FailureTransientNetwork
}

// Adapter wraps one remote messaging gateway. Implementations are stateless
// beyond configuration and safe for concurrent reuse.
type Adapter interface {
	// Send submits one message and returns the provider's receipt.
	Send(ctx context.Context, recipient, body string) (*SendResult, error)
	// Channel is the adapter's nominal channel.
	Channel() models.Channel
}
