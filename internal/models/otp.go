package models

import "time"

// ChallengeStatus is the lifecycle state of an OTP challenge. All states
// except PENDING are terminal.
type ChallengeStatus string

const (
	ChallengePending   ChallengeStatus = "PENDING"
	ChallengeVerified  ChallengeStatus = "VERIFIED"
	ChallengeExpired   ChallengeStatus = "EXPIRED"
	ChallengeExhausted ChallengeStatus = "EXHAUSTED"
)

// OTPChallenge represents one pending or settled verification. Only the code
// hash is stored, never the code itself.
type OTPChallenge struct {
	ID                string          `json:"id"`
	RecipientE164     string          `json:"recipient_e164"`
	CodeHash          []byte          `json:"code_hash"`
	ExpiresAt         time.Time       `json:"expires_at"`
	AttemptsRemaining int             `json:"attempts_remaining"`
	Status            ChallengeStatus `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
}

// OTPSendRequest is the request body for requesting a verification code
type OTPSendRequest struct {
	Recipient  string `json:"recipient" binding:"required"`
	TemplateID string `json:"template_id"`
}

// OTPVerifyRequest is the request body for submitting a verification code
type OTPVerifyRequest struct {
	ChallengeID string `json:"challenge_id" binding:"required"`
	Code        string `json:"code" binding:"required"`
}
