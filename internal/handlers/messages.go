package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/malaeb-app/app-messaging/internal/delivery"
	"github.com/malaeb-app/app-messaging/internal/logging"
	"github.com/malaeb-app/app-messaging/internal/models"
	"github.com/malaeb-app/app-messaging/internal/otp"
	"github.com/malaeb-app/app-messaging/internal/ratelimit"
	"go.uber.org/zap"
)

// Handler exposes the messaging operations over HTTP. All state lives in the
// injected services; the handler itself is stateless.
type Handler struct {
	router       *delivery.Router
	otp          *otp.Service
	notifyPolicy ratelimit.Policy
}

// NewHandler wires the HTTP handlers over their services.
func NewHandler(router *delivery.Router, otpService *otp.Service, notifyPolicy ratelimit.Policy) *Handler {
	return &Handler{router: router, otp: otpService, notifyPolicy: notifyPolicy}
}

// SendMessage godoc
// @Summary Send a message batch
// @Description Delivers a message to multiple recipients over the preferred channel, one result per recipient
// @Tags messages
// @Accept json
// @Produce json
// @Param data body models.DeliveryRequest true "Recipients, body and channel"
// @Success 200 {object} models.BatchResult
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /messages [post]
func (h *Handler) SendMessage(c *gin.Context) {
	var req models.DeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body: " + err.Error(),
		})
		return
	}

	batch, err := h.router.Send(c.Request.Context(), req, h.notifyPolicy)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrEmptyRecipients),
			errors.Is(err, models.ErrEmptyBody),
			errors.Is(err, models.ErrUnknownTemplate):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		case errors.Is(err, ratelimit.ErrInvalidWindow):
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "rate limit misconfigured"})
		default:
			logging.Logger.Error("batch send failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to send messages"})
		}
		return
	}

	c.JSON(http.StatusOK, batch)
}

// HealthCheck godoc
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} SuccessResponse
// @Router /health [get]
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, SuccessResponse{Message: "ok"})
}
