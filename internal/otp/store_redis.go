package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/malaeb-app/app-messaging/internal/models"
	"github.com/malaeb-app/app-messaging/internal/redisclient"
	"github.com/redis/go-redis/v9"
)

// settledRetention keeps terminal challenges around long enough for verify
// calls to report Expired or AlreadyVerified instead of NotFound.
const settledRetention = time.Hour

// RedisStore keeps challenges in a shared Redis, the option for multi-instance
// deployments. Challenge TTLs are enforced by Redis expiry on top of the
// lazy expiry check at verify time.
type RedisStore struct {
	client *redisclient.Client
}

// NewRedisStore creates a challenge store over the traced Redis client.
func NewRedisStore(client *redisclient.Client) *RedisStore {
	return &RedisStore{client: client}
}

func challengeKey(id string) string      { return "otp:challenge:" + id }
func pendingKey(recipient string) string { return "otp:pending:" + recipient }

// Create stores ch, expiring any prior pending challenge for the recipient.
func (s *RedisStore) Create(ctx context.Context, ch *models.OTPChallenge) (bool, error) {
	superseded := false
	priorID, err := s.client.GetDel(ctx, pendingKey(ch.RecipientE164)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("failed to read pending index: %w", err)
	}
	if err == nil && priorID != "" {
		if prior, getErr := s.Get(ctx, priorID); getErr == nil && prior.Status == models.ChallengePending {
			prior.Status = models.ChallengeExpired
			if setErr := s.set(ctx, prior, settledRetention); setErr != nil {
				return false, setErr
			}
			superseded = true
		}
	}

	ttl := time.Until(ch.ExpiresAt) + settledRetention
	if err := s.set(ctx, ch, ttl); err != nil {
		return false, err
	}
	if err := s.client.Set(ctx, pendingKey(ch.RecipientE164), ch.ID, ttl).Err(); err != nil {
		return false, fmt.Errorf("failed to write pending index: %w", err)
	}
	return superseded, nil
}

// Get returns the stored challenge or models.ErrChallengeNotFound.
func (s *RedisStore) Get(ctx context.Context, id string) (*models.OTPChallenge, error) {
	raw, err := s.client.Get(ctx, challengeKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, models.ErrChallengeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read challenge: %w", err)
	}

	var ch models.OTPChallenge
	if err := json.Unmarshal([]byte(raw), &ch); err != nil {
		return nil, fmt.Errorf("failed to decode challenge: %w", err)
	}
	return &ch, nil
}

// Update overwrites the stored challenge and clears the pending index once
// the challenge leaves PENDING.
func (s *RedisStore) Update(ctx context.Context, ch *models.OTPChallenge) error {
	ttl := time.Until(ch.ExpiresAt) + settledRetention
	if ch.Status != models.ChallengePending {
		ttl = settledRetention
	}
	if err := s.set(ctx, ch, ttl); err != nil {
		return err
	}

	if ch.Status != models.ChallengePending {
		current, err := s.client.Get(ctx, pendingKey(ch.RecipientE164)).Result()
		if err == nil && current == ch.ID {
			if err := s.client.Del(ctx, pendingKey(ch.RecipientE164)).Err(); err != nil {
				return fmt.Errorf("failed to clear pending index: %w", err)
			}
		}
	}
	return nil
}

func (s *RedisStore) set(ctx context.Context, ch *models.OTPChallenge, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = settledRetention
	}
	raw, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("failed to encode challenge: %w", err)
	}
	if err := s.client.Set(ctx, challengeKey(ch.ID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write challenge: %w", err)
	}
	return nil
}
