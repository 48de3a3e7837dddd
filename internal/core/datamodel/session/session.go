package session

import "time"

type UserSession struct {
	ID           int64     `gorm:"primaryKey"`
	SessionKey   string    `gorm:"column:session_key;size:40;not null;uniqueIndex"`
	UserID       int64     `gorm:"column:user_id;not null;index:idx_user_sessions_user_active"`
	IPAddress    *string   `gorm:"column:ip_address"`
	UserAgent    string    `gorm:"column:user_agent;not null;default:''"`
	DeviceInfo   string    `gorm:"column:device_info;size:255;not null;default:''"`
	LastActivity time.Time `gorm:"column:last_activity;not null;index"`
	IsActive     bool      `gorm:"column:is_active;not null;index:idx_user_sessions_user_active"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (UserSession) TableName() string {
	return "user_sessions"
}
