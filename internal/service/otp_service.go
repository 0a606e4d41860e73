package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"gallery-store/internal/models"
	"gallery-store/internal/store"
	"gallery-store/internal/util"

	"go.uber.org/zap"
)

const otpDigits = 6

var otpSpace = big.NewInt(1000000)

// OTPService issues and verifies one-time codes
type OTPService struct {
	store   store.Store
	limiter Limiter
	ttl     time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewOTPService creates a new OTP service. A nil limiter disables issuance limits.
func NewOTPService(store store.Store, limiter Limiter, ttl time.Duration) *OTPService {
	return &OTPService{
		store:   store,
		limiter: limiter,
		ttl:     ttl,
		now:     time.Now,
		logger:  util.GetLogger(),
	}
}

// VerifyOTPRequest represents a request to verify a code
type VerifyOTPRequest struct {
	Code    string `json:"code" binding:"required,len=6,numeric"`
	Purpose string `json:"purpose" binding:"required,oneof=checkout registration"`
}

// Issue generates and stores a new code for (userID, purpose).
// Earlier outstanding codes stay valid until they expire or are used.
func (s *OTPService) Issue(ctx context.Context, userID int64, purpose string) (*models.OtpCode, error) {
	ctx, span := util.StartSpan(ctx, "OTPService.Issue")
	defer span.End()

	if !validPurpose(purpose) {
		return nil, invalidField("purpose", "must be checkout or registration")
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, fmt.Sprintf("%s:%d", purpose, userID))
		if err != nil {
			return nil, fmt.Errorf("failed to check otp rate limit: %w", err)
		}
		if !allowed {
			util.OTPRateLimitedTotal.Inc()
			s.logger.Warn("OTP issuance rate limited",
				zap.Int64("user_id", userID),
				zap.String("purpose", purpose))
			return nil, ErrRateLimited
		}
	}

	code, err := GenerateCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate otp: %w", err)
	}

	now := s.now().UTC()
	otp := &models.OtpCode{
		UserID:    userID,
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.store.CreateOTP(ctx, otp); err != nil {
		return nil, fmt.Errorf("failed to store otp: %w", err)
	}

	util.OTPIssuedTotal.WithLabelValues(purpose).Inc()
	s.logger.Info("OTP_ISSUED",
		zap.Int64("user_id", userID),
		zap.String("purpose", purpose),
		zap.Int64("otp_id", otp.ID),
		zap.Time("expires_at", otp.ExpiresAt))
	return otp, nil
}

// Verify consumes a matching unused, unexpired code. It returns false when there is none.
// Concurrent calls with the same code succeed at most once.
func (s *OTPService) Verify(ctx context.Context, userID int64, code, purpose string) (bool, error) {
	ctx, span := util.StartSpan(ctx, "OTPService.Verify")
	defer span.End()

	if !validPurpose(purpose) || !validCode(code) {
		util.OTPVerificationsTotal.WithLabelValues("rejected").Inc()
		return false, nil
	}

	now := s.now().UTC()
	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		_, err := tx.ConsumeOTP(ctx, userID, code, purpose, now)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		util.OTPVerificationsTotal.WithLabelValues("rejected").Inc()
		s.logger.Info("OTP verification failed",
			zap.Int64("user_id", userID),
			zap.String("purpose", purpose))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to verify otp: %w", err)
	}

	util.OTPVerificationsTotal.WithLabelValues("accepted").Inc()
	s.logger.Info("OTP verified",
		zap.Int64("user_id", userID),
		zap.String("purpose", purpose))
	return true, nil
}

// GenerateCode returns a uniformly random zero-padded six digit code
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

func validPurpose(purpose string) bool {
	return purpose == models.OTPPurposeCheckout || purpose == models.OTPPurposeRegistration
}

func validCode(code string) bool {
	if len(code) != otpDigits {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
