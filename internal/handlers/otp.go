package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/malaeb-app/app-messaging/internal/logging"
	"github.com/malaeb-app/app-messaging/internal/models"
	"go.uber.org/zap"
)

// SendOTP godoc
// @Summary Request a verification code
// @Description Issues a new OTP challenge for the recipient, superseding any pending one
// @Tags otp
// @Accept json
// @Produce json
// @Param data body models.OTPSendRequest true "Recipient phone"
// @Success 200 {object} otp.SendReceipt
// @Failure 400 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /otp [post]
func (h *Handler) SendOTP(c *gin.Context) {
	var req models.OTPSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body: " + err.Error(),
		})
		return
	}

	receipt, err := h.otp.Send(c.Request.Context(), req.Recipient, req.TemplateID)
	if err != nil {
		var rateErr *models.RateLimitedError
		var deliveryErr *models.DeliveryError
		switch {
		case errors.As(err, &rateErr):
			c.JSON(http.StatusTooManyRequests, ErrorResponse{
				Error:        "Too many verification requests, please wait",
				RetryAfterMs: rateErr.RetryAfter.Milliseconds(),
			})
		case errors.As(err, &deliveryErr):
			c.JSON(http.StatusBadGateway, ErrorResponse{
				Error: "Failed to deliver verification code",
			})
		case errors.Is(err, models.ErrUnknownTemplate):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		default:
			logging.Logger.Error("failed to issue otp challenge", zap.Error(err))
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error: "Failed to issue verification code",
			})
		}
		return
	}

	c.JSON(http.StatusOK, receipt)
}

// VerifyOTP godoc
// @Summary Verify a submitted code
// @Description Validates the code against the pending challenge; terminal states require requesting a new code
// @Tags otp
// @Accept json
// @Produce json
// @Param data body models.OTPVerifyRequest true "Challenge ID and code"
// @Success 200 {object} otp.VerifyResult
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /otp/verify [post]
func (h *Handler) VerifyOTP(c *gin.Context) {
	var req models.OTPVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body: " + err.Error(),
		})
		return
	}

	result, err := h.otp.Verify(c.Request.Context(), req.ChallengeID, req.Code)
	if err != nil {
		var invalidCode *models.InvalidCodeError
		switch {
		case errors.Is(err, models.ErrChallengeNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Unknown challenge"})
		case errors.Is(err, models.ErrChallengeExpired):
			c.JSON(http.StatusGone, ErrorResponse{Error: "Code expired, request a new one"})
		case errors.Is(err, models.ErrAttemptsExhausted):
			c.JSON(http.StatusGone, ErrorResponse{Error: "Attempts exhausted, request a new code"})
		case errors.Is(err, models.ErrAlreadyVerified):
			c.JSON(http.StatusConflict, ErrorResponse{Error: "Challenge already verified"})
		case errors.As(err, &invalidCode):
			c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
				Error:             "Invalid code",
				AttemptsRemaining: &invalidCode.AttemptsRemaining,
			})
		default:
			logging.Logger.Error("failed to verify otp challenge", zap.Error(err))
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error: "Failed to verify code",
			})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}
