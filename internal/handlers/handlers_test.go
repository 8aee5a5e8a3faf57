package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/malaeb-app/app-messaging/internal/delivery"
	"github.com/malaeb-app/app-messaging/internal/models"
	"github.com/malaeb-app/app-messaging/internal/otp"
	"github.com/malaeb-app/app-messaging/internal/phone"
	"github.com/malaeb-app/app-messaging/internal/providers"
	"github.com/malaeb-app/app-messaging/internal/ratelimit"
	"github.com/malaeb-app/app-messaging/internal/template"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAdapter is a scripted provider for exercising the full HTTP stack
// without a gateway.
type fakeAdapter struct {
	mu     sync.Mutex
	bodies []string
	err    error
}

func (a *fakeAdapter) Send(_ context.Context, _, body string) (*providers.SendResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	a.bodies = append(a.bodies, body)
	return &providers.SendResult{MessageID: "msg-1", Channel: models.ChannelSMS}, nil
}

func (a *fakeAdapter) Channel() models.Channel { return models.ChannelSMS }

func (a *fakeAdapter) lastCode(t *testing.T) string {
	t.Helper()
	a.mu.Lock()
	defer a.mu.Unlock()
	require.NotEmpty(t, a.bodies)
	return strings.TrimPrefix(a.bodies[len(a.bodies)-1], "Your verification code is ")
}

type testStack struct {
	engine  *gin.Engine
	adapter *fakeAdapter
}

func newTestStack(t *testing.T, otpPolicy ratelimit.Policy) *testStack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	adapter := &fakeAdapter{}
	limiter := ratelimit.NewLimiter(time.Hour)
	t.Cleanup(limiter.Close)

	router := delivery.NewRouter(
		phone.NewNormalizer("20"),
		limiter,
		template.NewEngine(map[string]string{"otp": "Your verification code is {{v1}}"}),
		map[models.Channel]providers.Adapter{models.ChannelSMS: adapter},
		delivery.WithRetryBackoff(time.Millisecond),
	)

	otpService := otp.NewService(router, otp.NewMemoryStore(), otp.Config{
		CodeLength:  6,
		TTL:         5 * time.Minute,
		MaxAttempts: 3,
		TemplateID:  "otp",
		RatePolicy:  otpPolicy,
	})

	h := NewHandler(router, otpService, ratelimit.Policy{Name: "notify", Window: time.Minute, Max: 100})

	engine := gin.New()
	v1 := engine.Group("/v1")
	{
		v1.POST("/messages", h.SendMessage)
		v1.POST("/otp", h.SendOTP)
		v1.POST("/otp/verify", h.VerifyOTP)
		v1.GET("/health", HealthCheck)
	}

	return &testStack{engine: engine, adapter: adapter}
}

func (s *testStack) post(t *testing.T, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func relaxedOTPPolicy() ratelimit.Policy {
	return ratelimit.Policy{Name: "otp", Window: time.Minute, Max: 100}
}

func TestSendMessageEndpoint(t *testing.T) {
	s := newTestStack(t, relaxedOTPPolicy())

	w := s.post(t, "/v1/messages", gin.H{
		"recipients": []string{"01017799580", "01017799581"},
		"body":       "Match starts at 8pm",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var batch models.BatchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &batch))
	require.Len(t, batch.Results, 2)
	assert.Equal(t, 2, batch.SuccessCount)
	assert.Equal(t, "+201017799580", batch.Results[0].E164)
	assert.True(t, batch.Results[0].Success)
}

func TestSendMessageValidation(t *testing.T) {
	s := newTestStack(t, relaxedOTPPolicy())

	w := s.post(t, "/v1/messages", gin.H{"recipients": []string{}, "body": "hi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.post(t, "/v1/messages", gin.H{"recipients": []string{"01017799580"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.post(t, "/v1/messages", gin.H{
		"recipients":  []string{"01017799580"},
		"template_id": "no-such-template",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendMessageProviderFailureIsPerRecipient(t *testing.T) {
	s := newTestStack(t, relaxedOTPPolicy())
	s.adapter.err = &providers.Error{Kind: models.FailureAuth, StatusCode: 401, Message: "bad token"}

	// Provider failures stay in the per-recipient results, not the status code
	w := s.post(t, "/v1/messages", gin.H{
		"recipients": []string{"01017799580"},
		"body":       "hi",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var batch models.BatchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &batch))
	require.Len(t, batch.Results, 1)
	assert.False(t, batch.Results[0].Success)
	assert.Equal(t, models.FailureAuth, batch.Results[0].FailureKind)
	assert.Equal(t, 0, batch.SuccessCount)
}

func TestOTPRoundTrip(t *testing.T) {
	s := newTestStack(t, relaxedOTPPolicy())

	w := s.post(t, "/v1/otp", gin.H{"recipient": "01017799580"})
	require.Equal(t, http.StatusOK, w.Code)

	var receipt otp.SendReceipt
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &receipt))
	require.NotEmpty(t, receipt.ChallengeID)

	code := s.adapter.lastCode(t)

	// Wrong code burns an attempt
	w = s.post(t, "/v1/otp/verify", gin.H{"challenge_id": receipt.ChallengeID, "code": "x" + code})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	require.NotNil(t, errResp.AttemptsRemaining)
	assert.Equal(t, 2, *errResp.AttemptsRemaining)

	// Correct code verifies
	w = s.post(t, "/v1/otp/verify", gin.H{"challenge_id": receipt.ChallengeID, "code": code})
	require.Equal(t, http.StatusOK, w.Code)
	var result otp.VerifyResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Verified)

	// Replays conflict instead of succeeding twice
	w = s.post(t, "/v1/otp/verify", gin.H{"challenge_id": receipt.ChallengeID, "code": code})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestOTPRateLimited(t *testing.T) {
	s := newTestStack(t, ratelimit.Policy{Name: "otp", Window: time.Minute, Max: 1})

	w := s.post(t, "/v1/otp", gin.H{"recipient": "01017799580"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.post(t, "/v1/otp", gin.H{"recipient": "01017799580"})
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Greater(t, errResp.RetryAfterMs, int64(0))
}

func TestOTPDeliveryFailure(t *testing.T) {
	s := newTestStack(t, relaxedOTPPolicy())
	s.adapter.err = &providers.Error{Kind: models.FailureTransientNetwork, StatusCode: 503, Message: "gateway down"}

	w := s.post(t, "/v1/otp", gin.H{"recipient": "01017799580"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestVerifyUnknownChallenge(t *testing.T) {
	s := newTestStack(t, relaxedOTPPolicy())

	w := s.post(t, "/v1/otp/verify", gin.H{"challenge_id": "no-such-id", "code": "123456"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVerifyMissingFields(t *testing.T) {
	s := newTestStack(t, relaxedOTPPolicy())

	w := s.post(t, "/v1/otp/verify", gin.H{"challenge_id": "abc"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthCheck(t *testing.T) {
	s := newTestStack(t, relaxedOTPPolicy())

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"ok"}`, w.Body.String())
}
