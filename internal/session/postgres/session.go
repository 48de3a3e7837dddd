package postgres

import (
	"context"
	"errors"
	"time"

	sessionDatamodel "github.com/frahmantamala/access-management/internal/core/datamodel/session"
	"github.com/frahmantamala/access-management/internal/core/db"
	"github.com/frahmantamala/access-management/internal/session"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SessionRepository implements session.RepositoryAPI using GORM
type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) session.RepositoryAPI {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) conn(ctx context.Context) *gorm.DB {
	return db.GetTxFromContext(ctx, r.db)
}

// Upsert inserts the session or, when the key exists, rebinds it to the new
// owner and metadata and reactivates it. created_at is kept.
func (r *SessionRepository) Upsert(ctx context.Context, row *sessionDatamodel.UserSession) error {
	return r.conn(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id", "ip_address", "user_agent", "device_info", "last_activity", "is_active", "updated_at",
		}),
	}).Create(row).Error
}

func (r *SessionRepository) GetByKey(ctx context.Context, sessionKey string) (*sessionDatamodel.UserSession, error) {
	var row sessionDatamodel.UserSession
	err := r.conn(ctx).Where("session_key = ?", sessionKey).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *SessionRepository) ListForUser(ctx context.Context, userID int64, activeOnly bool) ([]*sessionDatamodel.UserSession, error) {
	var rows []*sessionDatamodel.UserSession
	q := r.conn(ctx).Where("user_id = ?", userID)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	err := q.Order("last_activity DESC").Order("id DESC").Find(&rows).Error
	return rows, err
}

func (r *SessionRepository) ActiveKeysForUser(ctx context.Context, userID int64, exceptKey string) ([]string, error) {
	var keys []string
	q := r.conn(ctx).Model(&sessionDatamodel.UserSession{}).
		Where("user_id = ? AND is_active = ?", userID, true)
	if exceptKey != "" {
		q = q.Where("session_key <> ?", exceptKey)
	}
	err := q.Pluck("session_key", &keys).Error
	return keys, err
}

// ActiveKeysIdleBefore selects active sessions with last_activity strictly
// before cutoff.
func (r *SessionRepository) ActiveKeysIdleBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	var keys []string
	err := r.conn(ctx).Model(&sessionDatamodel.UserSession{}).
		Where("is_active = ? AND last_activity < ?", true, cutoff).
		Pluck("session_key", &keys).Error
	return keys, err
}

func (r *SessionRepository) Deactivate(ctx context.Context, sessionKeys []string) (int64, error) {
	if len(sessionKeys) == 0 {
		return 0, nil
	}
	res := r.conn(ctx).Model(&sessionDatamodel.UserSession{}).
		Where("session_key IN ? AND is_active = ?", sessionKeys, true).
		Updates(map[string]interface{}{
			"is_active":  false,
			"updated_at": time.Now(),
		})
	return res.RowsAffected, res.Error
}

func (r *SessionRepository) TouchActivity(ctx context.Context, userID int64, sessionKey string, at time.Time) (int64, error) {
	res := r.conn(ctx).Model(&sessionDatamodel.UserSession{}).
		Where("session_key = ? AND user_id = ? AND is_active = ?", sessionKey, userID, true).
		Update("last_activity", at)
	return res.RowsAffected, res.Error
}

func (r *SessionRepository) DeleteForUser(ctx context.Context, userID int64) error {
	return r.conn(ctx).Where("user_id = ?", userID).Delete(&sessionDatamodel.UserSession{}).Error
}
