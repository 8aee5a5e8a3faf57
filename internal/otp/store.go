package otp

import (
	"context"

	"github.com/malaeb-app/app-messaging/internal/models"
)

// ChallengeStore persists OTP challenge state. Implementations must keep at
// most one PENDING challenge per recipient: Create supersedes any prior
// pending challenge for the same recipient.
type ChallengeStore interface {
	// Create stores a new challenge, expiring a prior PENDING challenge for
	// the same recipient. It reports whether one was superseded.
	Create(ctx context.Context, ch *models.OTPChallenge) (superseded bool, err error)
	// Get returns a challenge by ID or models.ErrChallengeNotFound.
	Get(ctx context.Context, id string) (*models.OTPChallenge, error)
	// Update persists a status or attempt-count change.
	Update(ctx context.Context, ch *models.OTPChallenge) error
}
