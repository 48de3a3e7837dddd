package session

import (
	"time"

	sessionDatamodel "github.com/frahmantamala/access-management/internal/core/datamodel/session"
)

// Session is one authenticated login of a user on one device.
type Session struct {
	ID           int64     `json:"id"`
	SessionKey   string    `json:"session_key"`
	UserID       int64     `json:"user_id"`
	IPAddress    *string   `json:"ip_address"`
	UserAgent    string    `json:"user_agent"`
	DeviceInfo   string    `json:"device_info"`
	LastActivity time.Time `json:"last_activity"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// View is a session as listed back to its owner.
type View struct {
	SessionKey   string    `json:"session_key"`
	DeviceInfo   string    `json:"device_info"`
	IPAddress    *string   `json:"ip_address"`
	LastActivity time.Time `json:"last_activity"`
	CreatedAt    time.Time `json:"created_at"`
	IsActive     bool      `json:"is_active"`
	IsCurrent    bool      `json:"is_current"`
}

func (s *Session) View(currentKey string) View {
	return View{
		SessionKey:   s.SessionKey,
		DeviceInfo:   s.DeviceInfo,
		IPAddress:    s.IPAddress,
		LastActivity: s.LastActivity,
		CreatedAt:    s.CreatedAt,
		IsActive:     s.IsActive,
		IsCurrent:    currentKey != "" && s.SessionKey == currentKey,
	}
}

func ToDataModel(s *Session) *sessionDatamodel.UserSession {
	return &sessionDatamodel.UserSession{
		ID:           s.ID,
		SessionKey:   s.SessionKey,
		UserID:       s.UserID,
		IPAddress:    s.IPAddress,
		UserAgent:    s.UserAgent,
		DeviceInfo:   s.DeviceInfo,
		LastActivity: s.LastActivity,
		IsActive:     s.IsActive,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

func FromDataModel(s *sessionDatamodel.UserSession) *Session {
	return &Session{
		ID:           s.ID,
		SessionKey:   s.SessionKey,
		UserID:       s.UserID,
		IPAddress:    s.IPAddress,
		UserAgent:    s.UserAgent,
		DeviceInfo:   s.DeviceInfo,
		LastActivity: s.LastActivity,
		IsActive:     s.IsActive,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}
