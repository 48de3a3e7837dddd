package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/access-management/internal"
	"github.com/frahmantamala/access-management/internal/adminguard"
	allowlistDatamodel "github.com/frahmantamala/access-management/internal/core/datamodel/allowlist"
	"github.com/frahmantamala/access-management/internal/core/db"
	"gorm.io/gorm"
)

// AllowListRepository implements adminguard.RepositoryAPI using GORM
type AllowListRepository struct {
	db *gorm.DB
}

func NewAllowListRepository(db *gorm.DB) adminguard.RepositoryAPI {
	return &AllowListRepository{db: db}
}

func (r *AllowListRepository) conn(ctx context.Context) *gorm.DB {
	return db.GetTxFromContext(ctx, r.db)
}

// Create reports a concurrent insert of the same address as
// ErrAllowEntryExists.
func (r *AllowListRepository) Create(ctx context.Context, entry *allowlistDatamodel.AdminIPAllowEntry) error {
	err := r.conn(ctx).Create(entry).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return internal.ErrAllowEntryExists.WithDetails(map[string]string{"ip_address": entry.IPAddress})
	}
	return err
}

func (r *AllowListRepository) GetByIP(ctx context.Context, ip string) (*allowlistDatamodel.AdminIPAllowEntry, error) {
	var entry allowlistDatamodel.AdminIPAllowEntry
	err := r.conn(ctx).Where("ip_address = ?", ip).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *AllowListRepository) Delete(ctx context.Context, id int64) error {
	return r.conn(ctx).Delete(&allowlistDatamodel.AdminIPAllowEntry{}, id).Error
}

func (r *AllowListRepository) SetActive(ctx context.Context, id int64, active bool) error {
	return r.conn(ctx).Model(&allowlistDatamodel.AdminIPAllowEntry{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_active":  active,
			"updated_at": time.Now(),
		}).Error
}

func (r *AllowListRepository) List(ctx context.Context, activeOnly bool) ([]*allowlistDatamodel.AdminIPAllowEntry, error) {
	var entries []*allowlistDatamodel.AdminIPAllowEntry
	q := r.conn(ctx)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	err := q.Order("created_at DESC").Order("id DESC").Find(&entries).Error
	return entries, err
}

func (r *AllowListRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.conn(ctx).Model(&allowlistDatamodel.AdminIPAllowEntry{}).
		Where("is_active = ?", true).
		Count(&count).Error
	return count, err
}

func (r *AllowListRepository) ActiveExists(ctx context.Context, ip string) (bool, error) {
	var count int64
	err := r.conn(ctx).Model(&allowlistDatamodel.AdminIPAllowEntry{}).
		Where("ip_address = ? AND is_active = ?", ip, true).
		Count(&count).Error
	return count > 0, err
}
