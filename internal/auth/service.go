package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/MaxymChyncha/house-security-system/internal/access"
	"github.com/MaxymChyncha/house-security-system/internal/staff"
	"github.com/MaxymChyncha/house-security-system/pkg/audit"
	"github.com/MaxymChyncha/house-security-system/pkg/cache"
	"github.com/MaxymChyncha/house-security-system/pkg/logger"
)

const revokedPrefix = "revoked:"

// UserStore is the part of the staff repository authentication needs
type UserStore interface {
	GetByID(ctx context.Context, id int64, filter access.Filter) (*staff.User, error)
	GetByUsername(ctx context.Context, username string) (*staff.User, error)
}

// LoginObserver counts login attempts by result. *metrics.Collector
// implements it.
type LoginObserver interface {
	ObserveLogin(result string)
}

// Service defines the auth service interface
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Logout(ctx context.Context, principal access.Principal, token string) error
	// Verify resolves a bearer token to its user. It satisfies
	// middleware.TokenVerifier.
	Verify(ctx context.Context, token string) (*access.Principal, error)
}

type service struct {
	users    UserStore
	tokens   *JWTService
	revoked  cache.Cache
	recorder audit.Recorder
	observer LoginObserver
	log      *logger.Logger
}

// NewService creates a new auth service. recorder and observer may be nil.
func NewService(users UserStore, tokens *JWTService, revoked cache.Cache, recorder audit.Recorder, observer LoginObserver, log *logger.Logger) Service {
	if recorder == nil {
		recorder = audit.Discard
	}
	return &service{
		users:    users,
		tokens:   tokens,
		revoked:  revoked,
		recorder: recorder,
		observer: observer,
		log:      log,
	}
}

// Login checks the credentials and issues a token
func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, staff.ErrUserNotFound) {
			s.log.WithField("username", req.Username).Warn("login attempt with unknown username")
			s.loginFailed(ctx, 0, req.Username, "", ErrInvalidCredentials)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.log.WithUserID(user.ID).Warn("invalid password attempt")
		s.loginFailed(ctx, user.ID, user.Username, user.Role.String(), ErrInvalidCredentials)
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		s.loginFailed(ctx, user.ID, user.Username, user.Role.String(), ErrUserInactive)
		return nil, ErrUserInactive
	}

	token, claims, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}

	s.observe(audit.ResultSuccess)
	s.record(ctx, audit.NewEventBuilder().
		WithEventType(audit.EventTypeUserLogin).
		WithActor(user.ID, user.Username, user.Role.String()).
		WithTarget(string(access.ResourceStaff), user.ID).
		WithAction("login"))

	s.log.WithUserID(user.ID).WithRole(user.Role.String()).Info("user logged in successfully")

	return &LoginResponse{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (s *service) loginFailed(ctx context.Context, userID int64, username, role string, reason error) {
	s.observe(audit.ResultFailure)
	s.record(ctx, audit.NewEventBuilder().
		WithEventType(audit.EventTypeUserLogin).
		WithActor(userID, username, role).
		WithTarget(string(access.ResourceStaff), userID).
		WithAction("login").
		WithError(reason))
}

// Logout revokes token until it would have expired anyway
func (s *service) Logout(ctx context.Context, principal access.Principal, token string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return err
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl > 0 {
		if err := s.revoked.Set(ctx, revokedPrefix+claims.ID, true, ttl); err != nil {
			return fmt.Errorf("failed to revoke token: %w", err)
		}
	}

	s.record(ctx, audit.NewEventBuilder().
		WithEventType(audit.EventTypeUserLogout).
		WithActor(principal.UserID, principal.Username, principal.Role.String()).
		WithTarget(string(access.ResourceStaff), principal.UserID).
		WithAction("logout"))

	return nil
}

// Verify parses token, rejects revoked tokens and reloads the user so a
// deleted or deactivated account loses access at once.
func (s *service) Verify(ctx context.Context, token string) (*access.Principal, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}

	var revoked bool
	err = s.revoked.Get(ctx, revokedPrefix+claims.ID, &revoked)
	switch {
	case err == nil && revoked:
		return nil, ErrTokenRevoked
	case err != nil && !errors.Is(err, cache.ErrCacheMiss):
		// revocation is best effort while the cache is unavailable
		s.log.WithField("error", err.Error()).Warn("revocation check skipped")
	}

	userID, err := claims.UserID()
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID, access.Unrestricted())
	if errors.Is(err, staff.ErrUserNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	return &access.Principal{UserID: user.ID, Username: user.Username, Role: user.Role}, nil
}

func (s *service) observe(result string) {
	if s.observer != nil {
		s.observer.ObserveLogin(result)
	}
}

func (s *service) record(ctx context.Context, event *audit.EventBuilder) {
	if err := s.recorder.Log(ctx, event.WithRequest(ctx).Build()); err != nil {
		s.log.Error("failed to write audit log", err)
	}
}
