package otp

import (
	"context"
	"sync"

	"github.com/malaeb-app/app-messaging/internal/models"
)

// MemoryStore keeps challenges in process-local maps. It does not survive
// restarts and does not coordinate across instances; use the Redis store for
// horizontally scaled deployments.
type MemoryStore struct {
	mu         sync.Mutex
	challenges map[string]models.OTPChallenge
	pending    map[string]string // recipient E164 -> pending challenge ID
}

// NewMemoryStore creates an empty in-memory challenge store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		challenges: make(map[string]models.OTPChallenge),
		pending:    make(map[string]string),
	}
}

// Create stores ch, expiring any prior pending challenge for the recipient.
func (s *MemoryStore) Create(_ context.Context, ch *models.OTPChallenge) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	superseded := false
	if priorID, ok := s.pending[ch.RecipientE164]; ok {
		if prior, ok := s.challenges[priorID]; ok && prior.Status == models.ChallengePending {
			prior.Status = models.ChallengeExpired
			s.challenges[priorID] = prior
			superseded = true
		}
	}

	s.challenges[ch.ID] = *ch
	s.pending[ch.RecipientE164] = ch.ID
	return superseded, nil
}

// Get returns a copy of the stored challenge.
func (s *MemoryStore) Get(_ context.Context, id string) (*models.OTPChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.challenges[id]
	if !ok {
		return nil, models.ErrChallengeNotFound
	}
	return &ch, nil
}

// Update overwrites the stored challenge and clears the pending index once
// the challenge leaves PENDING.
func (s *MemoryStore) Update(_ context.Context, ch *models.OTPChallenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.challenges[ch.ID]; !ok {
		return models.ErrChallengeNotFound
	}
	s.challenges[ch.ID] = *ch

	if ch.Status != models.ChallengePending && s.pending[ch.RecipientE164] == ch.ID {
		delete(s.pending, ch.RecipientE164)
	}
	return nil
}
