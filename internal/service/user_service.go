package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"
	"unicode/utf8"

	"gallery-store/internal/auth"
	"gallery-store/internal/models"
	"gallery-store/internal/store"
	"gallery-store/internal/util"

	"go.uber.org/zap"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,50}$`)

// bcrypt only hashes the first 72 bytes and refuses longer input
const maxPasswordBytes = 72

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < 6 {
		return invalidField("password", "must be at least 6 characters")
	}
	if len(password) > maxPasswordBytes {
		return invalidField("password", fmt.Sprintf("must be at most %d bytes", maxPasswordBytes))
	}
	return nil
}

// UserService handles accounts and sessions
type UserService struct {
	store   store.Store
	tokens  *auth.TokenManager
	revoked SessionRevoker
	logger  *zap.Logger
}

// NewUserService creates a new user service. Logged out sessions are remembered in
// process until SetSessionRevoker installs a shared store.
func NewUserService(store store.Store, tokens *auth.TokenManager) *UserService {
	return &UserService{
		store:   store,
		tokens:  tokens,
		revoked: auth.NewDenylist(),
		logger: util.GetLogger(),
	}
}

// CredentialsRequest is the body of register and login
type CredentialsRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

// Session is an issued session token
type Session struct {
	User      *models.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// Register creates a shopper account and opens a session for it
func (s *UserService) Register(ctx context.Context, username, password string) (*Session, error) {
	ctx, span := util.StartSpan(ctx, "UserService.Register")
	defer span.End()

	if !usernamePattern.MatchString(username) {
		return nil, invalidField("username", "must be 3-50 letters, digits, '_', '.' or '-'")
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{Username: username, Password: hash}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User registered", zap.Int64("user_id", user.ID), zap.String("username", username))
	return s.openSession(user)
}

// Login checks credentials and opens a session
func (s *UserService) Login(ctx context.Context, username, password string) (*Session, error) {
	ctx, span := util.StartSpan(ctx, "UserService.Login")
	defer span.End()

	user, err := s.store.GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if !auth.CheckPassword(user.Password, password) {
		s.logger.Info("Login rejected", zap.String("username", username))
		return nil, ErrInvalidCredentials
	}

	return s.openSession(user)
}

// SetSessionRevoker replaces the in-process record of logged out sessions
func (s *UserService) SetSessionRevoker(r SessionRevoker) {
	s.revoked = r
}

// Logout revokes the session behind token. Invalid or expired tokens have nothing
// left to revoke.
func (s *UserService) Logout(ctx context.Context, token string) error {
	ctx, span := util.StartSpan(ctx, "UserService.Logout")
	defer span.End()

	claims, err := s.tokens.ParseClaims(token)
	if err != nil {
		return nil
	}
	if err := s.revoked.RevokeSession(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	s.logger.Info("Session revoked", zap.String("subject", claims.Subject))
	return nil
}

// Authenticate resolves a session token to a user that still exists
func (s *UserService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.tokens.ParseClaims(token)
	if err != nil {
		return nil, err
	}

	revoked, err := s.revoked.IsSessionRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check session: %w", err)
	}
	if revoked {
		return nil, fmt.Errorf("%w: session was logged out", auth.ErrInvalidToken)
	}

	userID, err := claims.UserID()
	if err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: user %d no longer exists", auth.ErrInvalidToken, userID)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// EnsureAdmin creates the admin account or resets its password and flag
func (s *UserService) EnsureAdmin(ctx context.Context, username, password string) (*models.User, error) {
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.store.GetUserByUsername(ctx, username)
	switch {
	case errors.Is(err, store.ErrNotFound):
		user = &models.User{Username: username, Password: hash, IsAdmin: true}
		if err := s.store.CreateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to create admin: %w", err)
		}
		s.logger.Info("Admin account created", zap.String("username", username))
	case err != nil:
		return nil, fmt.Errorf("failed to load admin: %w", err)
	default:
		user.Password = hash
		user.IsAdmin = true
		if err := s.store.UpdateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to update admin: %w", err)
		}
		s.logger.Info("Admin account reset", zap.String("username", username))
	}
	return user, nil
}

func (s *UserService) openSession(user *models.User) (*Session, error) {
	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: token, ExpiresAt: expiresAt}, nil
}
