package otp

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/malaeb-app/app-messaging/internal/delivery"
	"github.com/malaeb-app/app-messaging/internal/models"
	"github.com/malaeb-app/app-messaging/internal/phone"
	"github.com/malaeb-app/app-messaging/internal/providers"
	"github.com/malaeb-app/app-messaging/internal/ratelimit"
	"github.com/malaeb-app/app-messaging/internal/template"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTemplateBody = "Your verification code is {{v1}}"

// captureAdapter records delivered bodies so tests can read back the issued
// code, which the service itself never exposes.
type captureAdapter struct {
	mu     sync.Mutex
	bodies []string
	err    error
}

func (a *captureAdapter) Send(_ context.Context, _, body string) (*providers.SendResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	a.bodies = append(a.bodies, body)
	return &providers.SendResult{MessageID: "msg-1", Channel: models.ChannelSMS}, nil
}

func (a *captureAdapter) Channel() models.Channel { return models.ChannelSMS }

func (a *captureAdapter) lastCode(t *testing.T) string {
	t.Helper()
	a.mu.Lock()
	defer a.mu.Unlock()
	require.NotEmpty(t, a.bodies)
	body := a.bodies[len(a.bodies)-1]
	code := strings.TrimPrefix(body, "Your verification code is ")
	require.NotEqual(t, body, code, "delivered body should use the otp template")
	return code
}

type serviceFixture struct {
	service *Service
	adapter *captureAdapter
	store   *MemoryStore
	limiter *ratelimit.Limiter
	now     *time.Time
}

func newServiceFixture(t *testing.T, policy ratelimit.Policy) *serviceFixture {
	t.Helper()

	adapter := &captureAdapter{}
	limiter := ratelimit.NewLimiter(time.Hour)
	t.Cleanup(limiter.Close)

	router := delivery.NewRouter(
		phone.NewNormalizer("20"),
		limiter,
		template.NewEngine(map[string]string{"otp": testTemplateBody}),
		map[models.Channel]providers.Adapter{models.ChannelSMS: adapter},
		delivery.WithRetryBackoff(time.Millisecond),
	)

	now := time.Now()
	store := NewMemoryStore()
	svc := NewService(router, store, Config{
		CodeLength:  6,
		TTL:         5 * time.Minute,
		MaxAttempts: 3,
		TemplateID:  "otp",
		RatePolicy:  policy,
	}, WithClock(func() time.Time { return now }))

	return &serviceFixture{service: svc, adapter: adapter, store: store, limiter: limiter, now: &now}
}

func relaxedPolicy() ratelimit.Policy {
	return ratelimit.Policy{Name: "otp", Window: time.Minute, Max: 100}
}

// wrongCode returns a code guaranteed to differ from the issued one.
func wrongCode(code string) string {
	if code == "000000" {
		return "000001"
	}
	return "000000"
}

func TestSendIssuesChallenge(t *testing.T) {
	f := newServiceFixture(t, relaxedPolicy())
	ctx := context.Background()

	receipt, err := f.service.Send(ctx, "01017799580", "")
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.ChallengeID)
	assert.Equal(t, f.now.Add(5*time.Minute), receipt.ExpiresAt)

	code := f.adapter.lastCode(t)
	assert.Len(t, code, 6)
	for _, r := range code {
		assert.True(t, r >= '0' && r <= '9', "code must be numeric, got %q", code)
	}

	// The stored challenge holds a hash, never the code, keyed by E164
	ch, err := f.store.Get(ctx, receipt.ChallengeID)
	require.NoError(t, err)
	assert.Equal(t, "+201017799580", ch.RecipientE164)
	assert.NotContains(t, string(ch.CodeHash), code)
	assert.Equal(t, 3, ch.AttemptsRemaining)
}

func TestVerifySucceedsExactlyOnce(t *testing.T) {
	f := newServiceFixture(t, relaxedPolicy())
	ctx := context.Background()

	receipt, err := f.service.Send(ctx, "01017799580", "")
	require.NoError(t, err)
	code := f.adapter.lastCode(t)

	result, err := f.service.Verify(ctx, receipt.ChallengeID, code)
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.Equal(t, 3, result.AttemptsRemaining)

	// A replay of the same code must not read as success
	_, err = f.service.Verify(ctx, receipt.ChallengeID, code)
	assert.ErrorIs(t, err, models.ErrAlreadyVerified)
}

func TestVerifyWrongCodeDecrementsAttempts(t *testing.T) {
	f := newServiceFixture(t, relaxedPolicy())
	ctx := context.Background()

	receipt, err := f.service.Send(ctx, "01017799580", "")
	require.NoError(t, err)
	code := f.adapter.lastCode(t)

	_, err = f.service.Verify(ctx, receipt.ChallengeID, wrongCode(code))
	var invalid *models.InvalidCodeError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, 2, invalid.AttemptsRemaining)

	// A correct code after a miss still works
	result, err := f.service.Verify(ctx, receipt.ChallengeID, code)
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.Equal(t, 2, result.AttemptsRemaining)
}

func TestVerifyExhaustsAfterMaxAttempts(t *testing.T) {
	f := newServiceFixture(t, relaxedPolicy())
	ctx := context.Background()

	receipt, err := f.service.Send(ctx, "01017799580", "")
	require.NoError(t, err)
	code := f.adapter.lastCode(t)

	for want := 2; want >= 0; want-- {
		_, err = f.service.Verify(ctx, receipt.ChallengeID, wrongCode(code))
		var invalid *models.InvalidCodeError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, want, invalid.AttemptsRemaining)
	}

	// Exhaustion is terminal even for the correct code
	_, err = f.service.Verify(ctx, receipt.ChallengeID, code)
	assert.ErrorIs(t, err, models.ErrAttemptsExhausted)
}

func TestVerifyExpiredChallenge(t *testing.T) {
	f := newServiceFixture(t, relaxedPolicy())
	ctx := context.Background()

	receipt, err := f.service.Send(ctx, "01017799580", "")
	require.NoError(t, err)
	code := f.adapter.lastCode(t)

	*f.now = f.now.Add(5*time.Minute + time.Second)

	_, err = f.service.Verify(ctx, receipt.ChallengeID, code)
	assert.ErrorIs(t, err, models.ErrChallengeExpired)

	// Expiry is sticky once recorded
	_, err = f.service.Verify(ctx, receipt.ChallengeID, code)
	assert.ErrorIs(t, err, models.ErrChallengeExpired)

	ch, err := f.store.Get(ctx, receipt.ChallengeID)
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeExpired, ch.Status)
}

func TestSendSupersedesPriorChallenge(t *testing.T) {
	f := newServiceFixture(t, relaxedPolicy())
	ctx := context.Background()

	first, err := f.service.Send(ctx, "01017799580", "")
	require.NoError(t, err)
	firstCode := f.adapter.lastCode(t)

	second, err := f.service.Send(ctx, "01017799580", "")
	require.NoError(t, err)
	secondCode := f.adapter.lastCode(t)

	// The old challenge is dead, the new one verifies
	_, err = f.service.Verify(ctx, first.ChallengeID, firstCode)
	assert.ErrorIs(t, err, models.ErrChallengeExpired)

	result, err := f.service.Verify(ctx, second.ChallengeID, secondCode)
	require.NoError(t, err)
	assert.True(t, result.Verified)
}

func TestVerifyUnknownChallenge(t *testing.T) {
	f := newServiceFixture(t, relaxedPolicy())

	_, err := f.service.Verify(context.Background(), "no-such-id", "123456")
	assert.ErrorIs(t, err, models.ErrChallengeNotFound)
}

func TestSendRateLimited(t *testing.T) {
	f := newServiceFixture(t, ratelimit.Policy{Name: "otp", Window: time.Minute, Max: 1})
	ctx := context.Background()

	_, err := f.service.Send(ctx, "01017799580", "")
	require.NoError(t, err)

	_, err = f.service.Send(ctx, "01017799580", "")
	var limited *models.RateLimitedError
	require.ErrorAs(t, err, &limited)
	assert.Greater(t, limited.RetryAfter, time.Duration(0))

	// No challenge is stored for a throttled send
	assert.Len(t, f.adapter.bodies, 1)
}

func TestSendDeliveryFailure(t *testing.T) {
	f := newServiceFixture(t, relaxedPolicy())
	f.adapter.err = &providers.Error{Kind: models.FailureAuth, StatusCode: 401, Message: "bad token"}

	_, err := f.service.Send(context.Background(), "01017799580", "")
	var delErr *models.DeliveryError
	require.ErrorAs(t, err, &delErr)
	assert.Equal(t, models.FailureAuth, delErr.Kind)
}

func TestGenerateCodePadsToLength(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := generateCode(6)
		require.NoError(t, err)
		require.Len(t, code, 6)
		for _, r := range code {
			require.True(t, r >= '0' && r <= '9')
		}
	}
}
