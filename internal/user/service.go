package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/access-management/internal"
	"github.com/frahmantamala/access-management/internal/core/db"
	"github.com/frahmantamala/access-management/internal/core/events"
	"github.com/frahmantamala/access-management/internal/permission"
	"github.com/frahmantamala/access-management/internal/session"
	"golang.org/x/crypto/bcrypt"
)

type Repository interface {
	GetByID(ctx context.Context, userID int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Exists(ctx context.Context, userID int64) (bool, error)
	Create(ctx context.Context, u *User) error
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
	UpdateLastLogin(ctx context.Context, userID int64, at time.Time) error
	Delete(ctx context.Context, userID int64) error
}

// PermissionCleaner is the part of the permission service an account
// deletion needs.
type PermissionCleaner interface {
	RemoveUser(ctx context.Context, userID int64) error
	ListRolesForUser(ctx context.Context, userID int64) ([]*permission.Role, error)
}

// SessionCleaner is the part of the session service an account deletion
// needs.
type SessionCleaner interface {
	RemoveUser(ctx context.Context, userID int64) ([]string, error)
	DropWebSessions(ctx context.Context, userID int64, keys []string)
	ListSessions(ctx context.Context, userID int64, activeOnly bool, currentKey string) ([]session.View, error)
}

type Service struct {
	repo        Repository
	tx          db.Transactor
	permissions PermissionCleaner
	sessions    SessionCleaner
	publisher   events.Publisher
	logger      *slog.Logger
	bcryptCost  int
}

func NewService(repo Repository, tx db.Transactor, permissions PermissionCleaner, sessions SessionCleaner, publisher events.Publisher, logger *slog.Logger, bcryptCost int) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		repo:        repo,
		tx:          tx,
		permissions: permissions,
		sessions:    sessions,
		publisher:   publisher,
		logger:      logger,
		bcryptCost:  bcryptCost,
	}
}

func (s *Service) GetByID(ctx context.Context, userID int64) (*User, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	if u == nil {
		return nil, internal.ErrUserNotFound
	}
	return u, nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	u, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	if u == nil {
		return nil, internal.ErrUserNotFound
	}
	return u, nil
}

func (s *Service) Exists(ctx context.Context, userID int64) (bool, error) {
	return s.repo.Exists(ctx, userID)
}

// VerifyPassword returns the active user owning email when password matches.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (s *Service) VerifyPassword(ctx context.Context, email, password string) (*User, error) {
	u, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	if u == nil {
		return nil, internal.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, internal.ErrInvalidCredentials
	}
	if !u.IsActiveUser() {
		return nil, internal.ErrUserInactive
	}
	return u, nil
}

func (s *Service) SetPassword(ctx context.Context, userID int64, password string) error {
	if password == "" {
		return internal.NewValidationFieldError("password", "password is required", internal.ErrCodeValidationFailed)
	}
	hash, err := s.HashPassword(password)
	if err != nil {
		return err
	}
	exists, err := s.repo.Exists(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}
	if !exists {
		return internal.ErrUserNotFound
	}
	return s.repo.UpdatePassword(ctx, userID, hash)
}

func (s *Service) MarkLogin(ctx context.Context, userID int64) error {
	return s.repo.UpdateLastLogin(ctx, userID, time.Now())
}

// Create stores a new active user with a hashed password.
func (s *Service) Create(ctx context.Context, email, name, password string, isAdmin bool) (*User, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, internal.NewValidationFieldError("email", "a valid email is required", internal.ErrCodeValidationFailed)
	}
	if password == "" {
		return nil, internal.NewValidationFieldError("password", "password is required", internal.ErrCodeValidationFailed)
	}

	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	u := &User{
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
		IsActive:     true,
		IsAdmin:      isAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.GetByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("failed to check email: %w", err)
		}
		if existing != nil {
			return internal.ErrEmailExists
		}
		return s.repo.Create(ctx, u)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user created", "user_id", u.ID, "email", u.Email)
	return u, nil
}

func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// ExportData collects the account's profile, role names and sessions.
func (s *Service) ExportData(ctx context.Context, userID int64, currentKey string) (*Export, error) {
	u, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	roles, err := s.permissions.ListRolesForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name)
	}

	sessions, err := s.sessions.ListSessions(ctx, userID, false, currentKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	s.logger.Info("user data exported", "user_id", userID)
	return &Export{
		Profile:    u,
		Roles:      names,
		Sessions:   sessions,
		ExportedAt: time.Now(),
	}, nil
}

// DeleteAccount removes the user with every session, grant and membership
// in one transaction. confirmation must equal the account email.
func (s *Service) DeleteAccount(ctx context.Context, userID int64, confirmation string) error {
	u, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if normalizeEmail(confirmation) != normalizeEmail(u.Email) {
		return internal.NewValidationFieldError("confirmation", "confirmation must match your email address", internal.ErrCodeConfirmationInvalid)
	}

	var keys []string
	err = s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.permissions.RemoveUser(ctx, userID); err != nil {
			return err
		}
		var err error
		if keys, err = s.sessions.RemoveUser(ctx, userID); err != nil {
			return err
		}
		return s.repo.Delete(ctx, userID)
	})
	if err != nil {
		s.logger.Error("failed to delete account", "user_id", userID, "error", err)
		return err
	}

	s.sessions.DropWebSessions(ctx, userID, keys)

	s.logger.Info("account deleted", "user_id", userID)
	event := events.NewAccountDeletedEvent(userID, u.Email)
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event", "event_type", event.EventType(), "error", err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
