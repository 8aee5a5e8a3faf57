package handlers

// ErrorResponse is the standard error envelope
type ErrorResponse struct {
	Error             string `json:"error"`
	RetryAfterMs      int64  `json:"retry_after_ms,omitempty"`
	AttemptsRemaining *int   `json:"attempts_remaining,omitempty"`
}

// SuccessResponse is the standard confirmation envelope
type SuccessResponse struct {
	Message string `json:"message"`
}
