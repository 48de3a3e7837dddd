package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/access-management/internal"
	sessionDatamodel "github.com/frahmantamala/access-management/internal/core/datamodel/session"
	"github.com/frahmantamala/access-management/internal/core/db"
	"github.com/frahmantamala/access-management/internal/core/events"
	"github.com/frahmantamala/access-management/pkg/metrics"
)

type RepositoryAPI interface {
	Upsert(ctx context.Context, row *sessionDatamodel.UserSession) error
	GetByKey(ctx context.Context, sessionKey string) (*sessionDatamodel.UserSession, error)
	ListForUser(ctx context.Context, userID int64, activeOnly bool) ([]*sessionDatamodel.UserSession, error)
	ActiveKeysForUser(ctx context.Context, userID int64, exceptKey string) ([]string, error)
	ActiveKeysIdleBefore(ctx context.Context, cutoff time.Time) ([]string, error)
	Deactivate(ctx context.Context, sessionKeys []string) (int64, error)
	TouchActivity(ctx context.Context, userID int64, sessionKey string, at time.Time) (int64, error)
	DeleteForUser(ctx context.Context, userID int64) error
}

// WebSessionStore is the underlying session mechanism that issues the keys
// and is the source of truth for whether a key can still authenticate.
type WebSessionStore interface {
	Create(ctx context.Context, userID int64) (string, error)
	Exists(ctx context.Context, sessionKey string) (bool, error)
	Delete(ctx context.Context, sessionKeys ...string) error
}

const (
	ReasonUserRevoked = "user_revoked"
	ReasonRevokeAll   = "revoke_all"
	ReasonExpired     = "expired"
	ReasonLogout      = "logout"
	ReasonDeleted     = "account_deleted"
)

type Service struct {
	repo      RepositoryAPI
	tx        db.Transactor
	store     WebSessionStore
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo RepositoryAPI, tx db.Transactor, store WebSessionStore, publisher events.Publisher, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		repo:      repo,
		tx:        tx,
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock replaces the time source; used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateSession records a login. An empty sessionKey mints a new web
// session first. Creating a session for an existing key re-binds it to
// userID, marks it active and refreshes its activity.
func (s *Service) CreateSession(ctx context.Context, userID int64, sessionKey, ipAddress, userAgent string) (*Session, error) {
	if sessionKey == "" {
		key, err := s.store.Create(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("create web session: %w", err)
		}
		sessionKey = key
	}

	var ip *string
	if ipAddress != "" {
		ip = &ipAddress
	}

	now := s.now()
	row := &sessionDatamodel.UserSession{
		SessionKey:   sessionKey,
		UserID:       userID,
		IPAddress:    ip,
		UserAgent:    userAgent,
		DeviceInfo:   DeviceLabel(userAgent),
		LastActivity: now,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var stored *sessionDatamodel.UserSession
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Upsert(ctx, row); err != nil {
			return fmt.Errorf("upsert session: %w", err)
		}
		var err error
		stored, err = s.repo.GetByKey(ctx, sessionKey)
		if err != nil {
			return fmt.Errorf("reload session: %w", err)
		}
		if stored == nil {
			return internal.ErrSessionNotFound
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to create session", "user_id", userID, "error", err)
		return nil, err
	}

	s.logger.Info("session created", "user_id", userID, "ip_address", ipAddress, "device_info", row.DeviceInfo)
	return FromDataModel(stored), nil
}

func (s *Service) GetSession(ctx context.Context, sessionKey string) (*Session, error) {
	row, err := s.repo.GetByKey(ctx, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if row == nil {
		return nil, internal.ErrSessionNotFound
	}
	return FromDataModel(row), nil
}

// RevokeSession deactivates one session owned by userID. The web session is
// deleted after the flag is committed; failures there are only logged.
func (s *Service) RevokeSession(ctx context.Context, userID int64, sessionKey string) error {
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		row, err := s.repo.GetByKey(ctx, sessionKey)
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		if row == nil {
			return internal.ErrSessionNotFound
		}
		if row.UserID != userID {
			return internal.ErrSessionNotOwned
		}
		_, err = s.repo.Deactivate(ctx, []string{sessionKey})
		return err
	})
	if err != nil {
		s.logger.Warn("failed to revoke session", "user_id", userID, "error", err)
		return err
	}

	s.dropWebSessions(ctx, userID, []string{sessionKey}, ReasonUserRevoked)
	s.logger.Info("session revoked", "user_id", userID)
	return nil
}

// RevokeAllSessions deactivates every active session of userID except
// exceptKey (when non-empty) and returns how many were revoked.
func (s *Service) RevokeAllSessions(ctx context.Context, userID int64, exceptKey string) (int64, error) {
	var (
		keys  []string
		count int64
	)
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		keys, err = s.repo.ActiveKeysForUser(ctx, userID, exceptKey)
		if err != nil {
			return fmt.Errorf("list active sessions: %w", err)
		}
		count, err = s.repo.Deactivate(ctx, keys)
		return err
	})
	if err != nil {
		s.logger.Error("failed to revoke all sessions", "user_id", userID, "error", err)
		return 0, err
	}

	s.dropWebSessions(ctx, userID, keys, ReasonRevokeAll)
	s.logger.Info("sessions revoked", "user_id", userID, "count", count, "kept_current", exceptKey != "")
	return count, nil
}

// CleanupExpiredSessions deactivates active sessions whose last activity is
// strictly before now-timeout. A session exactly at the cutoff survives.
func (s *Service) CleanupExpiredSessions(ctx context.Context, timeout time.Duration) (int64, error) {
	if timeout <= 0 {
		timeout = internal.DefaultInactivityTimeout
	}
	cutoff := s.now().Add(-timeout)

	var (
		keys  []string
		count int64
	)
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		keys, err = s.repo.ActiveKeysIdleBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("list idle sessions: %w", err)
		}
		count, err = s.repo.Deactivate(ctx, keys)
		return err
	})
	if err != nil {
		s.logger.Error("failed to clean up expired sessions", "error", err)
		return 0, err
	}

	s.dropWebSessions(ctx, 0, keys, ReasonExpired)
	s.logger.Info("cleaned up expired sessions", "count", count, "cutoff", cutoff)
	return count, nil
}

// ListSessions returns the user's sessions, most recently active first.
func (s *Service) ListSessions(ctx context.Context, userID int64, activeOnly bool, currentKey string) ([]View, error) {
	rows, err := s.repo.ListForUser(ctx, userID, activeOnly)
	if err != nil {
		s.logger.Error("failed to list sessions", "user_id", userID, "error", err)
		return nil, err
	}
	views := make([]View, 0, len(rows))
	for _, row := range rows {
		views = append(views, FromDataModel(row).View(currentKey))
	}
	return views, nil
}

// Touch refreshes last activity of an active session owned by userID.
// Unknown or inactive sessions are left alone.
func (s *Service) Touch(ctx context.Context, userID int64, sessionKey string) error {
	if sessionKey == "" {
		return nil
	}
	if _, err := s.repo.TouchActivity(ctx, userID, sessionKey, s.now()); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// IsSessionValid reports whether sessionKey can still authenticate: its
// record must be active and its web session must still exist.
func (s *Service) IsSessionValid(ctx context.Context, sessionKey string) (bool, error) {
	if sessionKey == "" {
		return false, nil
	}
	row, err := s.repo.GetByKey(ctx, sessionKey)
	if err != nil {
		return false, fmt.Errorf("get session: %w", err)
	}
	if row == nil || !row.IsActive {
		return false, nil
	}
	return s.store.Exists(ctx, sessionKey)
}

// Logout revokes the caller's own session.
func (s *Service) Logout(ctx context.Context, userID int64, sessionKey string) error {
	err := s.RevokeSession(ctx, userID, sessionKey)
	if err != nil && internal.IsType(err, internal.ErrorTypeNotFound) {
		// the record may never have been created; still drop the key
		s.dropWebSessions(ctx, userID, []string{sessionKey}, ReasonLogout)
		return nil
	}
	return err
}

// RemoveUser deletes every session record of the user. It joins the caller's
// transaction; web sessions are dropped by the caller after commit.
func (s *Service) RemoveUser(ctx context.Context, userID int64) ([]string, error) {
	keys, err := s.repo.ActiveKeysForUser(ctx, userID, "")
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	if err := s.repo.DeleteForUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("delete sessions: %w", err)
	}
	return keys, nil
}

// DropWebSessions deletes the web sessions returned by RemoveUser once the
// caller's transaction has committed.
func (s *Service) DropWebSessions(ctx context.Context, userID int64, keys []string) {
	s.dropWebSessions(ctx, userID, keys, ReasonDeleted)
}

func (s *Service) dropWebSessions(ctx context.Context, userID int64, keys []string, reason string) {
	if len(keys) == 0 {
		return
	}
	metrics.SessionsRevokedTotal.WithLabelValues(reason).Add(float64(len(keys)))

	if err := s.store.Delete(ctx, keys...); err != nil {
		s.logger.Warn("failed to delete web sessions", "user_id", userID, "count", len(keys), "error", err)
	}

	event := events.NewSessionRevokedEvent(userID, keys, reason)
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}
