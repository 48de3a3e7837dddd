package auth

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/access-management/internal"
	"github.com/frahmantamala/access-management/internal/session"
	"github.com/frahmantamala/access-management/internal/user"
)

// UserDirectory looks up and verifies accounts.
type UserDirectory interface {
	VerifyPassword(ctx context.Context, email, password string) (*user.User, error)
	GetByID(ctx context.Context, userID int64) (*user.User, error)
	MarkLogin(ctx context.Context, userID int64) error
}

// SessionTracker records the session behind every issued token pair.
type SessionTracker interface {
	CreateSession(ctx context.Context, userID int64, sessionKey, ipAddress, userAgent string) (*session.Session, error)
	IsSessionValid(ctx context.Context, sessionKey string) (bool, error)
	Touch(ctx context.Context, userID int64, sessionKey string) error
	Logout(ctx context.Context, userID int64, sessionKey string) error
}

// Service is the main auth service with dependencies
type Service struct {
	users    UserDirectory
	sessions SessionTracker
	tokens   TokenGenerator
	logger   *slog.Logger
}

func NewService(users UserDirectory, sessions SessionTracker, tokens TokenGenerator, logger *slog.Logger) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		logger:   logger,
	}
}

// Login verifies credentials, starts a tracked session and returns tokens
// bound to it.
func (s *Service) Login(ctx context.Context, dto LoginDTO, ipAddress, userAgent string) (AuthTokens, error) {
	if err := dto.Validate(); err != nil {
		return AuthTokens{}, err
	}

	u, err := s.users.VerifyPassword(ctx, dto.Email, dto.Password)
	if err != nil {
		return AuthTokens{}, err
	}

	sess, err := s.sessions.CreateSession(ctx, u.ID, "", ipAddress, userAgent)
	if err != nil {
		return AuthTokens{}, err
	}

	if err := s.users.MarkLogin(ctx, u.ID); err != nil {
		s.logger.Warn("failed to record last login", "user_id", u.ID, "error", err)
	}

	s.logger.Info("user logged in", "user_id", u.ID, "ip_address", ipAddress)
	return s.issue(u.ID, u.Email, sess.SessionKey)
}

// RefreshTokens exchanges a refresh token for a new pair on the same
// session. A revoked session or inactive account refuses the exchange.
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (AuthTokens, error) {
	claims, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		return AuthTokens{}, err
	}
	userID, err := claims.UserIDInt()
	if err != nil {
		return AuthTokens{}, internal.ErrInvalidToken
	}

	if err := s.checkSession(ctx, claims.SessionKey); err != nil {
		return AuthTokens{}, err
	}

	u, err := s.activeUser(ctx, userID)
	if err != nil {
		return AuthTokens{}, err
	}
	return s.issue(u.ID, u.Email, claims.SessionKey)
}

// Logout revokes the session the caller authenticated with.
func (s *Service) Logout(ctx context.Context, userID int64, sessionKey string) error {
	if sessionKey == "" {
		return nil
	}
	if err := s.sessions.Logout(ctx, userID, sessionKey); err != nil {
		return err
	}
	s.logger.Info("user logged out", "user_id", userID)
	return nil
}

// Authenticate resolves an access token to the caller and its session key,
// refreshing the session's last activity.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*internal.CurrentUser, string, error) {
	claims, err := s.tokens.ValidateAccessToken(accessToken)
	if err != nil {
		return nil, "", err
	}
	userID, err := claims.UserIDInt()
	if err != nil {
		return nil, "", internal.ErrInvalidToken
	}

	if err := s.checkSession(ctx, claims.SessionKey); err != nil {
		return nil, "", err
	}

	u, err := s.activeUser(ctx, userID)
	if err != nil {
		return nil, "", err
	}

	if claims.SessionKey != "" {
		if err := s.sessions.Touch(ctx, userID, claims.SessionKey); err != nil {
			s.logger.Warn("failed to refresh session activity", "user_id", userID, "error", err)
		}
	}

	return &internal.CurrentUser{ID: u.ID, Email: u.Email, IsAdmin: u.IsAdmin}, claims.SessionKey, nil
}

func (s *Service) checkSession(ctx context.Context, sessionKey string) error {
	if sessionKey == "" {
		return nil
	}
	valid, err := s.sessions.IsSessionValid(ctx, sessionKey)
	if err != nil {
		return internal.NewInternalError("failed to check session", err)
	}
	if !valid {
		return internal.ErrSessionRevoked
	}
	return nil
}

func (s *Service) activeUser(ctx context.Context, userID int64) (*user.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if internal.IsType(err, internal.ErrorTypeNotFound) {
			return nil, internal.ErrInvalidToken
		}
		return nil, err
	}
	if !u.IsActiveUser() {
		return nil, internal.ErrUserInactive
	}
	return u, nil
}

func (s *Service) issue(userID int64, email, sessionKey string) (AuthTokens, error) {
	accessToken, err := s.tokens.GenerateAccessToken(userID, email, sessionKey)
	if err != nil {
		return AuthTokens{}, internal.NewInternalError("failed to sign token", err)
	}
	refreshToken, err := s.tokens.GenerateRefreshToken(userID, email, sessionKey)
	if err != nil {
		return AuthTokens{}, internal.NewInternalError("failed to sign token", err)
	}
	return AuthTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}
