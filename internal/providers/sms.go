package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/malaeb-app/app-messaging/internal/httpclient"
	"github.com/malaeb-app/app-messaging/internal/logging"
	"github.com/malaeb-app/app-messaging/internal/models"
	"github.com/malaeb-app/app-messaging/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// SMSConfig carries the SMS gateway endpoint and sender identity.
type SMSConfig struct {
	BaseURL    string
	Token      string
	SenderName string
	Language   string
	Timeout    time.Duration
}

// SMSAdapter sends messages through the SMS gateway's HTTP API.
type SMSAdapter struct {
	cfg  SMSConfig
	pool *httpclient.Pool
}

type smsRequest struct {
	Recipient  string `json:"recipient"`
	Body       string `json:"body"`
	SenderName string `json:"senderName"`
	Language   string `json:"language"`
}

type smsResponse struct {
	Status string `json:"status"`
	Data   *struct {
		MessageID string `json:"messageId"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewSMSAdapter creates an adapter over the given gateway configuration and
// client pool.
func NewSMSAdapter(cfg SMSConfig, pool *httpclient.Pool) *SMSAdapter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	return &SMSAdapter{cfg: cfg, pool: pool}
}

// Channel returns the adapter's nominal channel.
func (a *SMSAdapter) Channel() models.Channel {
	return models.ChannelSMS
}

// Send submits one message to the gateway. Failures are classified into
// typed provider errors; malformed response bodies map to an unknown
// provider error instead of propagating decode failures.
func (a *SMSAdapter) Send(ctx context.Context, recipient, body string) (*SendResult, error) {
	logger := logging.Logger.With(
		zap.String("recipient", observability.MaskPhone(recipient)),
		zap.String("channel", string(models.ChannelSMS)),
	)

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	ctx, span := otel.Tracer("providers").Start(ctx, "sms.send")
	span.SetAttributes(attribute.String("sms.gateway", a.cfg.BaseURL))
	defer span.End()

	jsonBody, err := json.Marshal(smsRequest{
		Recipient:  recipient,
		Body:       body,
		SenderName: a.cfg.SenderName,
		Language:   a.cfg.Language,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal send request: %w", err)
	}

	url := fmt.Sprintf("%s/messages", strings.TrimSuffix(a.cfg.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create send request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", a.cfg.Token))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("accept", "application/json")

	client := a.pool.Get()
	defer a.pool.Put(client)

	resp, err := client.Do(req)
	if err != nil {
		// Timeouts and connection resets are retryable
		logger.Warn("gateway request failed", zap.Error(err))
		return nil, &Error{Kind: models.FailureTransientNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Warn("failed to read gateway response", zap.Error(err))
		return nil, &Error{Kind: models.FailureTransientNetwork, Message: err.Error()}
	}

	var decoded smsResponse
	decodeErr := json.Unmarshal(respBody, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, a.classify(resp.StatusCode, &decoded, decodeErr)
	}

	if decodeErr != nil || decoded.Data == nil || decoded.Data.MessageID == "" {
		logger.Error("malformed gateway response",
			zap.Int("status_code", resp.StatusCode),
			zap.Error(decodeErr))
		return nil, &Error{
			Kind:       models.FailureUnknown,
			StatusCode: resp.StatusCode,
			Message:    "malformed gateway response",
		}
	}

	logger.Debug("message accepted by gateway", zap.String("message_id", decoded.Data.MessageID))
	return &SendResult{MessageID: decoded.Data.MessageID, Channel: models.ChannelSMS}, nil
}

// classify maps a non-2xx gateway response to a typed provider error.
func (a *SMSAdapter) classify(status int, decoded *smsResponse, decodeErr error) *Error {
	msg := fmt.Sprintf("gateway returned status %d", status)
	code := ""
	if decodeErr == nil && decoded.Error != nil {
		msg = decoded.Error.Message
		code = decoded.Error.Code
	}

	kind := models.FailureUnknown
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = models.FailureAuth
	case status == http.StatusTooManyRequests || code == "QUOTA_EXCEEDED":
		kind = models.FailureQuotaExceeded
	case code == "INVALID_RECIPIENT" || status == http.StatusUnprocessableEntity:
		kind = models.FailureInvalidRecipient
	case status >= 500:
		kind = models.FailureTransientNetwork
	}

	return &Error{Kind: kind, StatusCode: status, Message: msg}
}
