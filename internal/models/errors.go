package models

import (
	"errors"
	"fmt"
	"time"
)

// FailureKind classifies provider delivery failures
type FailureKind string

const (
	FailureAuth             FailureKind = "auth_failure"
	FailureQuotaExceeded    FailureKind = "quota_exceeded"
	FailureInvalidRecipient FailureKind = "invalid_recipient"
	FailureTransientNetwork FailureKind = "transient_network"
	FailureUnknown          FailureKind = "unknown_provider_error"
)

// Sentinel errors for batch-level and OTP failures
var (
	ErrEmptyRecipients    = errors.New("recipients must not be empty")
	ErrEmptyBody          = errors.New("message body must not be empty")
	ErrUnknownTemplate    = errors.New("unknown template id")
	ErrChallengeNotFound  = errors.New("challenge not found")
	ErrChallengeExpired   = errors.New("challenge expired")
	ErrAlreadyVerified    = errors.New("challenge already verified")
	ErrAttemptsExhausted  = errors.New("challenge attempts exhausted")
	ErrInvalidPhoneFormat = errors.New("invalid phone number format")
)

// RateLimitedError carries the wait time for UI countdowns.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// DeliveryError is a classified provider failure surfaced by the OTP flow.
type DeliveryError struct {
	Kind    FailureKind
	Message string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed (%s): %s", e.Kind, e.Message)
}

// InvalidCodeError carries the remaining attempt count after a mismatch.
type InvalidCodeError struct {
	AttemptsRemaining int
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("invalid code, %d attempts remaining", e.AttemptsRemaining)
}
