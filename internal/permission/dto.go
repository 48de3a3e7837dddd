package permission

import (
	"github.com/frahmantamala/access-management/internal"
)

type CreateRoleDTO struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

// UpdateRoleDTO leaves a field untouched when it is omitted.
type UpdateRoleDTO struct {
	Name        *string   `json:"name"`
	Permissions *[]string `json:"permissions"`
}

type RoleMemberDTO struct {
	UserID int64 `json:"user_id"`
	RoleID int64 `json:"role_id"`
}

func (dto RoleMemberDTO) Validate() error {
	if dto.UserID <= 0 {
		return internal.NewValidationFieldError("user_id", "user_id is required", internal.ErrCodeValidationFailed)
	}
	if dto.RoleID <= 0 {
		return internal.NewValidationFieldError("role_id", "role_id is required", internal.ErrCodeValidationFailed)
	}
	return nil
}

// GrantDTO names exactly one of user_id or role_id as the subject.
type GrantDTO struct {
	UserID      *int64   `json:"user_id,omitempty"`
	RoleID      *int64   `json:"role_id,omitempty"`
	Permission  string   `json:"permission,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	ContentType string   `json:"content_type"`
	ObjectID    string   `json:"object_id"`
}

func (dto GrantDTO) Subject() (Subject, error) {
	switch {
	case dto.UserID != nil && dto.RoleID != nil:
		return Subject{}, internal.NewValidationFieldError("subject", "specify either user_id or role_id, not both", internal.ErrCodeValidationFailed)
	case dto.UserID != nil:
		return UserSubject(*dto.UserID), nil
	case dto.RoleID != nil:
		return RoleSubject(*dto.RoleID), nil
	default:
		return Subject{}, internal.NewValidationFieldError("subject", "either user_id or role_id is required", internal.ErrCodeValidationFailed)
	}
}

// Codenames returns the single permission or the bulk list.
func (dto GrantDTO) Codenames() []string {
	if len(dto.Permissions) > 0 {
		return dto.Permissions
	}
	if dto.Permission != "" {
		return []string{dto.Permission}
	}
	return nil
}

type CheckResponse struct {
	HasPermission bool `json:"has_permission"`
}

type ObjectPermissionsResponse struct {
	UserID      int64    `json:"user_id"`
	ContentType string   `json:"content_type"`
	ObjectID    string   `json:"object_id"`
	Permissions []string `json:"permissions"`
}

type RolesResponse struct {
	Roles []*Role `json:"roles"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
