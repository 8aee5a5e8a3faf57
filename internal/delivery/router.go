package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/malaeb-app/app-messaging/internal/logging"
	"github.com/malaeb-app/app-messaging/internal/models"
	"github.com/malaeb-app/app-messaging/internal/observability"
	"github.com/malaeb-app/app-messaging/internal/phone"
	"github.com/malaeb-app/app-messaging/internal/providers"
	"github.com/malaeb-app/app-messaging/internal/ratelimit"
	"github.com/malaeb-app/app-messaging/internal/template"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 8

// Router orchestrates normalization, rate limiting, provider selection and
// batch fan-out. Per-recipient failures are recorded as result data; only
// malformed top-level input fails the call.
type Router struct {
	normalizer *phone.Normalizer
	limiter    *ratelimit.Limiter
	engine     *template.Engine
	adapters   map[models.Channel]providers.Adapter

	backoff     time.Duration
	concurrency int
	now         func() time.Time
}

// Option customizes a Router.
type Option func(*Router)

// WithClock injects a clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

// WithRetryBackoff sets the pause before the single transient-failure retry.
func WithRetryBackoff(d time.Duration) Option {
	return func(r *Router) { r.backoff = d }
}

// WithConcurrency bounds the batch fan-out.
func WithConcurrency(n int) Option {
	return func(r *Router) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// NewRouter wires the router over its collaborators. The adapter map must
// cover every channel callers may request.
func NewRouter(
	normalizer *phone.Normalizer,
	limiter *ratelimit.Limiter,
	engine *template.Engine,
	adapters map[models.Channel]providers.Adapter,
	opts ...Option,
) *Router {
	r := &Router{
		normalizer:  normalizer,
		limiter:     limiter,
		engine:      engine,
		adapters:    adapters,
		backoff:     500 * time.Millisecond,
		concurrency: defaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Send fans a request out to all recipients under the given rate policy and
// returns exactly one result per recipient, in request order.
func (r *Router) Send(ctx context.Context, req models.DeliveryRequest, policy ratelimit.Policy) (*models.BatchResult, error) {
	if len(req.Recipients) == 0 {
		return nil, models.ErrEmptyRecipients
	}
	if policy.Window <= 0 {
		return nil, ratelimit.ErrInvalidWindow
	}

	body := req.Body
	if req.TemplateID != "" {
		rendered, err := r.engine.RenderTemplate(req.TemplateID, req.TemplateVars)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", models.ErrUnknownTemplate, req.TemplateID)
		}
		body = rendered
	}
	if body == "" {
		return nil, models.ErrEmptyBody
	}

	channel := req.PreferredChannel
	if channel == "" {
		channel = models.ChannelSMS
	}
	adapter, ok := r.adapters[channel]
	if !ok {
		return nil, fmt.Errorf("unsupported channel %q", channel)
	}

	results := make([]models.DeliveryResult, len(req.Recipients))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, recipient := range req.Recipients {
		g.Go(func() error {
			results[i] = r.deliverOne(gctx, recipient, body, adapter, policy)
			return nil
		})
	}
	// Workers never return errors; recipient failures are data.
	_ = g.Wait()

	batch := &models.BatchResult{Results: results}
	for _, res := range results {
		if res.Success {
			batch.SuccessCount++
		}
	}
	return batch, nil
}

// deliverOne runs the full pipeline for a single recipient.
func (r *Router) deliverOne(ctx context.Context, recipient, body string, adapter providers.Adapter, policy ratelimit.Policy) models.DeliveryResult {
	result := models.DeliveryResult{Recipient: recipient}

	np := r.normalizer.Normalize(recipient)
	result.E164 = np.E164
	result.LowConfidencePhone = np.LowConfidence
	if np.LowConfidence {
		// Lenient by design: flag and proceed, never abort the batch
		logging.Logger.Warn("low-confidence phone normalization",
			zap.String("recipient", observability.MaskPhone(recipient)),
		)
	}

	decision, err := r.limiter.Check(np.E164, policy, r.now())
	if err != nil {
		result.FailureKind = models.FailureUnknown
		result.Error = err.Error()
		return result
	}
	if !decision.Allowed {
		observability.RateLimited.WithLabelValues(policy.Name).Inc()
		result.RateLimited = true
		result.RetryAfterMs = decision.RetryAfter.Milliseconds()
		return result
	}

	sent, err := r.sendWithRetry(ctx, adapter, np.E164, body)
	if err != nil {
		observability.Deliveries.WithLabelValues(string(adapter.Channel()), "failure").Inc()
		result.FailureKind = failureKind(err)
		result.Error = err.Error()
		return result
	}

	observability.Deliveries.WithLabelValues(string(sent.Channel), "success").Inc()
	result.Success = true
	result.ChannelUsed = sent.Channel
	result.Fallback = sent.Fallback
	result.ProviderMessageID = sent.MessageID
	return result
}

// sendWithRetry invokes the adapter, retrying exactly once after a short
// backoff when the failure is transient. Auth, quota and invalid-recipient
// failures are never retried.
func (r *Router) sendWithRetry(ctx context.Context, adapter providers.Adapter, recipient, body string) (*providers.SendResult, error) {
	sent, err := adapter.Send(ctx, recipient, body)
	if err == nil {
		return sent, nil
	}

	var provErr *providers.Error
	if !errors.As(err, &provErr) || !provErr.Retryable() {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, err
	case <-time.After(r.backoff):
	}

	observability.ProviderRetries.Inc()
	return adapter.Send(ctx, recipient, body)
}

func failureKind(err error) models.FailureKind {
	var provErr *providers.Error
	if errors.As(err, &provErr) {
		return provErr.Kind
	}
	return models.FailureUnknown
}
