package allowlist

import "time"

type AdminIPAllowEntry struct {
	ID          int64     `gorm:"primaryKey"`
	IPAddress   string    `gorm:"column:ip_address;not null;uniqueIndex"`
	Description string    `gorm:"column:description;size:255;not null;default:''"`
	IsActive    bool      `gorm:"column:is_active;not null;index"`
	AddedBy     *int64    `gorm:"column:added_by"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (AdminIPAllowEntry) TableName() string {
	return "admin_ip_allowlist"
}
