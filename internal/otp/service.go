package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/malaeb-app/app-messaging/internal/delivery"
	"github.com/malaeb-app/app-messaging/internal/logging"
	"github.com/malaeb-app/app-messaging/internal/models"
	"github.com/malaeb-app/app-messaging/internal/observability"
	"github.com/malaeb-app/app-messaging/internal/ratelimit"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Config carries the runtime-tunable OTP parameters.
type Config struct {
	CodeLength  int
	TTL         time.Duration
	MaxAttempts int
	TemplateID  string
	RatePolicy  ratelimit.Policy
}

// SendReceipt is returned to the caller after a challenge is issued. The
// code itself never leaves the service.
type SendReceipt struct {
	ChallengeID string    `json:"challenge_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// VerifyResult reports a successful verification.
type VerifyResult struct {
	Verified          bool `json:"verified"`
	AttemptsRemaining int  `json:"attempts_remaining"`
}

// Service issues time-boxed passcodes and validates submitted codes. Expiry
// is computed lazily at verify time; there is no background expiry timer.
type Service struct {
	router *delivery.Router
	store  ChallengeStore
	cfg    Config

	// Serializes verify read-modify-write cycles. Process-local; the Redis
	// store still needs external coordination across instances.
	mu  sync.Mutex
	now func() time.Time
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithClock injects a clock, for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService wires the OTP service over the delivery router and a challenge
// store.
func NewService(router *delivery.Router, store ChallengeStore, cfg Config, opts ...ServiceOption) *Service {
	s := &Service{
		router: router,
		store:  store,
		cfg:    cfg,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send issues a new challenge for recipient and delivers the code under the
// OTP rate policy. A prior PENDING challenge for the same recipient is
// superseded. The stored challenge carries only a bcrypt hash of the code.
func (s *Service) Send(ctx context.Context, recipient, templateID string) (*SendReceipt, error) {
	if templateID == "" {
		templateID = s.cfg.TemplateID
	}

	code, err := generateCode(s.cfg.CodeLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate code: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash code: %w", err)
	}

	batch, err := s.router.Send(ctx, models.DeliveryRequest{
		Recipients:       []string{recipient},
		PreferredChannel: models.ChannelSMS,
		TemplateID:       templateID,
		TemplateVars:     []string{code},
	}, s.cfg.RatePolicy)
	if err != nil {
		return nil, err
	}

	res := batch.Results[0]
	if res.RateLimited {
		return nil, &models.RateLimitedError{RetryAfter: time.Duration(res.RetryAfterMs) * time.Millisecond}
	}
	if !res.Success {
		return nil, &models.DeliveryError{Kind: res.FailureKind, Message: res.Error}
	}

	now := s.now()
	ch := &models.OTPChallenge{
		ID:                uuid.NewString(),
		RecipientE164:     res.E164,
		CodeHash:          hash,
		ExpiresAt:         now.Add(s.cfg.TTL),
		AttemptsRemaining: s.cfg.MaxAttempts,
		Status:            models.ChallengePending,
		CreatedAt:         now,
	}

	superseded, err := s.store.Create(ctx, ch)
	if err != nil {
		return nil, fmt.Errorf("failed to store challenge: %w", err)
	}
	if superseded {
		observability.OTPChallenges.WithLabelValues("superseded").Inc()
	}
	observability.OTPChallenges.WithLabelValues("issued").Inc()

	logging.Logger.Info("otp challenge issued",
		zap.String("challenge_id", ch.ID),
		zap.String("recipient", observability.MaskPhone(ch.RecipientE164)),
		zap.Time("expires_at", ch.ExpiresAt),
	)

	return &SendReceipt{ChallengeID: ch.ID, ExpiresAt: ch.ExpiresAt}, nil
}

// Verify validates a submitted code. Successful verification happens exactly
// once per challenge; a repeat returns models.ErrAlreadyVerified so a replay
// is never mistaken for success.
func (s *Service) Verify(ctx context.Context, challengeID, code string) (*VerifyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, err := s.store.Get(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	switch ch.Status {
	case models.ChallengeVerified:
		return nil, models.ErrAlreadyVerified
	case models.ChallengeExpired:
		return nil, models.ErrChallengeExpired
	case models.ChallengeExhausted:
		return nil, models.ErrAttemptsExhausted
	}

	if s.now().After(ch.ExpiresAt) {
		ch.Status = models.ChallengeExpired
		if err := s.store.Update(ctx, ch); err != nil {
			return nil, fmt.Errorf("failed to expire challenge: %w", err)
		}
		observability.OTPChallenges.WithLabelValues("expired").Inc()
		return nil, models.ErrChallengeExpired
	}

	// bcrypt comparison is constant-time over the submitted code
	if bcrypt.CompareHashAndPassword(ch.CodeHash, []byte(code)) != nil {
		ch.AttemptsRemaining--
		if ch.AttemptsRemaining <= 0 {
			ch.AttemptsRemaining = 0
			ch.Status = models.ChallengeExhausted
			observability.OTPChallenges.WithLabelValues("exhausted").Inc()
		}
		if err := s.store.Update(ctx, ch); err != nil {
			return nil, fmt.Errorf("failed to record attempt: %w", err)
		}
		return nil, &models.InvalidCodeError{AttemptsRemaining: ch.AttemptsRemaining}
	}

	ch.Status = models.ChallengeVerified
	if err := s.store.Update(ctx, ch); err != nil {
		return nil, fmt.Errorf("failed to mark challenge verified: %w", err)
	}
	observability.OTPChallenges.WithLabelValues("verified").Inc()

	logging.Logger.Info("otp challenge verified",
		zap.String("challenge_id", ch.ID),
		zap.String("recipient", observability.MaskPhone(ch.RecipientE164)),
	)

	return &VerifyResult{Verified: true, AttemptsRemaining: ch.AttemptsRemaining}, nil
}

// generateCode draws a fixed-length numeric code from crypto/rand.
func generateCode(length int) (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", length, n), nil
}
