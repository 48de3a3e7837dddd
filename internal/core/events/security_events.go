package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeSessionRevoked    = "session.revoked"
	EventTypePermissionChanged = "permission.changed"
	EventTypeRoleChanged       = "role.changed"
	EventTypeAllowListChanged  = "allowlist.changed"
	EventTypeAccountDeleted    = "account.deleted"
)

func newBase(eventType string, data map[string]interface{}) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

type SessionRevokedEvent struct {
	BaseEvent
	UserID      int64    `json:"user_id"`
	SessionKeys []string `json:"session_keys"`
	Reason      string   `json:"reason"`
}

func NewSessionRevokedEvent(userID int64, sessionKeys []string, reason string) *SessionRevokedEvent {
	return &SessionRevokedEvent{
		BaseEvent: newBase(EventTypeSessionRevoked, map[string]interface{}{
			"user_id": userID,
			"count":   len(sessionKeys),
			"reason":  reason,
		}),
		UserID:      userID,
		SessionKeys: sessionKeys,
		Reason:      reason,
	}
}

type PermissionChangedEvent struct {
	BaseEvent
	Operation   string   `json:"operation"`
	SubjectKind string   `json:"subject_kind"`
	SubjectID   int64    `json:"subject_id"`
	Permissions []string `json:"permissions"`
	TargetType  string   `json:"target_type"`
	TargetID    string   `json:"target_id"`
}

func NewPermissionChangedEvent(operation, subjectKind string, subjectID int64, permissions []string, targetType, targetID string) *PermissionChangedEvent {
	return &PermissionChangedEvent{
		BaseEvent: newBase(EventTypePermissionChanged, map[string]interface{}{
			"operation":    operation,
			"subject_kind": subjectKind,
			"subject_id":   subjectID,
			"permissions":  permissions,
			"target_type":  targetType,
			"target_id":    targetID,
		}),
		Operation:   operation,
		SubjectKind: subjectKind,
		SubjectID:   subjectID,
		Permissions: permissions,
		TargetType:  targetType,
		TargetID:    targetID,
	}
}

type RoleChangedEvent struct {
	BaseEvent
	Operation string `json:"operation"`
	RoleID    int64  `json:"role_id"`
	UserID    int64  `json:"user_id,omitempty"`
}

func NewRoleChangedEvent(operation string, roleID, userID int64) *RoleChangedEvent {
	return &RoleChangedEvent{
		BaseEvent: newBase(EventTypeRoleChanged, map[string]interface{}{
			"operation": operation,
			"role_id":   roleID,
			"user_id":   userID,
		}),
		Operation: operation,
		RoleID:    roleID,
		UserID:    userID,
	}
}

type AllowListChangedEvent struct {
	BaseEvent
	Operation string `json:"operation"`
	IPAddress string `json:"ip_address"`
	IsActive  bool   `json:"is_active"`
}

func NewAllowListChangedEvent(operation, ip string, isActive bool) *AllowListChangedEvent {
	return &AllowListChangedEvent{
		BaseEvent: newBase(EventTypeAllowListChanged, map[string]interface{}{
			"operation":  operation,
			"ip_address": ip,
			"is_active":  isActive,
		}),
		Operation: operation,
		IPAddress: ip,
		IsActive:  isActive,
	}
}

type AccountDeletedEvent struct {
	BaseEvent
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
}

func NewAccountDeletedEvent(userID int64, email string) *AccountDeletedEvent {
	return &AccountDeletedEvent{
		BaseEvent: newBase(EventTypeAccountDeleted, map[string]interface{}{
			"user_id": userID,
		}),
		UserID: userID,
		Email:  email,
	}
}
