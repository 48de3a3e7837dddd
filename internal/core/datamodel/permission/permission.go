package permission

import "time"

const (
	SubjectKindUser = "user"
	SubjectKindRole = "role"
)

// Permission is a lazily registered definition: a codename scoped to a target
// type.
type Permission struct {
	ID         int64     `gorm:"primaryKey"`
	Codename   string    `gorm:"column:codename;not null;uniqueIndex:idx_permissions_codename_type"`
	TargetType string    `gorm:"column:target_type;not null;uniqueIndex:idx_permissions_codename_type"`
	Name       string    `gorm:"column:name;not null"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (Permission) TableName() string {
	return "permissions"
}

// PermissionGrant records one subject holding one permission on one object.
type PermissionGrant struct {
	ID           int64     `gorm:"primaryKey"`
	SubjectKind  string    `gorm:"column:subject_kind;not null;uniqueIndex:idx_permission_grants_unique;index:idx_permission_grants_subject"`
	SubjectID    int64     `gorm:"column:subject_id;not null;uniqueIndex:idx_permission_grants_unique;index:idx_permission_grants_subject"`
	PermissionID int64     `gorm:"column:permission_id;not null;uniqueIndex:idx_permission_grants_unique"`
	TargetType   string    `gorm:"column:target_type;not null;uniqueIndex:idx_permission_grants_unique;index:idx_permission_grants_target"`
	TargetID     string    `gorm:"column:target_id;not null;uniqueIndex:idx_permission_grants_unique;index:idx_permission_grants_target"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (PermissionGrant) TableName() string {
	return "permission_grants"
}

type Role struct {
	ID             int64     `gorm:"primaryKey"`
	Name           string    `gorm:"column:name;not null"`
	NormalizedName string    `gorm:"column:normalized_name;not null;uniqueIndex"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (Role) TableName() string {
	return "roles"
}

type RoleMember struct {
	RoleID    int64     `gorm:"column:role_id;primaryKey;autoIncrement:false"`
	UserID    int64     `gorm:"column:user_id;primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (RoleMember) TableName() string {
	return "role_members"
}

// RolePermission attaches a permission to a role globally, on every object of
// the permission's target type.
type RolePermission struct {
	RoleID       int64 `gorm:"column:role_id;primaryKey;autoIncrement:false"`
	PermissionID int64 `gorm:"column:permission_id;primaryKey;autoIncrement:false"`
}

func (RolePermission) TableName() string {
	return "role_permissions"
}
