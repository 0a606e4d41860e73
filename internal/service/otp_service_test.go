package service

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"gallery-store/internal/models"
	"gallery-store/internal/ratelimit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOTPService(f *fixture, limiter Limiter, now *time.Time) *OTPService {
	s := NewOTPService(f.store, limiter, 5*time.Minute)
	if now != nil {
		s.now = func() time.Time { return *now }
	}
	return s
}

func TestGenerateCodeFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^[0-9]{6}$`)
	for i := 0; i < 200; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		assert.Regexp(t, pattern, code)
	}
}

func TestOTPVerifyIsSingleUse(t *testing.T) {
	f := newFixture(t)
	otps := newTestOTPService(f, nil, nil)
	ctx := context.Background()

	otp, err := otps.Issue(ctx, f.shopper.ID, models.OTPPurposeCheckout)
	require.NoError(t, err)
	assert.Len(t, otp.Code, 6)
	assert.False(t, otp.Used)

	ok, err := otps.Verify(ctx, f.shopper.ID, otp.Code, models.OTPPurposeCheckout)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = otps.Verify(ctx, f.shopper.ID, otp.Code, models.OTPPurposeCheckout)
	require.NoError(t, err)
	assert.False(t, ok, "second verification of the same code must fail")
}

func TestOTPVerifyRejects(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	otps := newTestOTPService(f, nil, &now)
	ctx := context.Background()

	otp, err := otps.Issue(ctx, f.shopper.ID, models.OTPPurposeCheckout)
	require.NoError(t, err)

	wrong := "000000"
	if otp.Code == wrong {
		wrong = "000001"
	}

	tests := []struct {
		name    string
		userID  int64
		code    string
		purpose string
	}{
		{"wrong code", f.shopper.ID, wrong, models.OTPPurposeCheckout},
		{"wrong purpose", f.shopper.ID, otp.Code, models.OTPPurposeRegistration},
		{"other user", f.admin.ID, otp.Code, models.OTPPurposeCheckout},
		{"malformed code", f.shopper.ID, "12ab56", models.OTPPurposeCheckout},
		{"unknown purpose", f.shopper.ID, otp.Code, "refund"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := otps.Verify(ctx, tt.userID, tt.code, tt.purpose)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}

	// still usable after the failed attempts
	ok, err := otps.Verify(ctx, f.shopper.ID, otp.Code, models.OTPPurposeCheckout)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOTPExpiry(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	otps := newTestOTPService(f, nil, &now)
	ctx := context.Background()

	otp, err := otps.Issue(ctx, f.shopper.ID, models.OTPPurposeCheckout)
	require.NoError(t, err)
	assert.Equal(t, now.Add(5*time.Minute), otp.ExpiresAt)

	now = now.Add(5 * time.Minute)
	ok, err := otps.Verify(ctx, f.shopper.ID, otp.Code, models.OTPPurposeCheckout)
	require.NoError(t, err)
	assert.False(t, ok, "a code is invalid at its expiry instant")
}

func TestOTPReissueKeepsEarlierCodesValid(t *testing.T) {
	f := newFixture(t)
	otps := newTestOTPService(f, nil, nil)
	ctx := context.Background()

	first, err := otps.Issue(ctx, f.shopper.ID, models.OTPPurposeCheckout)
	require.NoError(t, err)
	second, err := otps.Issue(ctx, f.shopper.ID, models.OTPPurposeCheckout)
	require.NoError(t, err)

	ok, err := otps.Verify(ctx, f.shopper.ID, first.Code, models.OTPPurposeCheckout)
	require.NoError(t, err)
	assert.True(t, ok)

	if second.Code != first.Code {
		ok, err = otps.Verify(ctx, f.shopper.ID, second.Code, models.OTPPurposeCheckout)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestOTPConcurrentVerifySucceedsOnce(t *testing.T) {
	f := newFixture(t)
	otps := newTestOTPService(f, nil, nil)
	ctx := context.Background()

	otp, err := otps.Issue(ctx, f.shopper.ID, models.OTPPurposeCheckout)
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := otps.Verify(ctx, f.shopper.ID, otp.Code, models.OTPPurposeCheckout)
			if err == nil && ok {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}

func TestOTPIssueRateLimited(t *testing.T) {
	f := newFixture(t)
	limiter := ratelimit.NewKeyedLimiter(ratelimit.PerWindow(2, 15*time.Minute))
	otps := newTestOTPService(f, limiter, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := otps.Issue(ctx, f.shopper.ID, models.OTPPurposeCheckout)
		require.NoError(t, err)
	}

	_, err := otps.Issue(ctx, f.shopper.ID, models.OTPPurposeCheckout)
	assert.ErrorIs(t, err, ErrRateLimited)

	// the limit is per purpose
	_, err = otps.Issue(ctx, f.shopper.ID, models.OTPPurposeRegistration)
	assert.NoError(t, err)
}

func TestOTPIssueRejectsUnknownPurpose(t *testing.T) {
	f := newFixture(t)
	otps := newTestOTPService(f, nil, nil)

	_, err := otps.Issue(context.Background(), f.shopper.ID, "refund")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
