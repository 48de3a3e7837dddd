package permission

import (
	"fmt"
	"strings"
	"time"

	permissionDatamodel "github.com/frahmantamala/access-management/internal/core/datamodel/permission"
)

type SubjectKind string

const (
	SubjectUser SubjectKind = permissionDatamodel.SubjectKindUser
	SubjectRole SubjectKind = permissionDatamodel.SubjectKindRole
)

// Subject is the holder of a grant: exactly one user or one role.
type Subject struct {
	Kind SubjectKind
	ID   int64
}

func UserSubject(userID int64) Subject {
	return Subject{Kind: SubjectUser, ID: userID}
}

func RoleSubject(roleID int64) Subject {
	return Subject{Kind: SubjectRole, ID: roleID}
}

func (s Subject) String() string {
	return fmt.Sprintf("%s:%d", s.Kind, s.ID)
}

// Target identifies one domain object by type label and identity.
type Target struct {
	Type string
	ID   string
}

func (t Target) String() string {
	return t.Type + ":" + t.ID
}

// Definition is a permission codename scoped to a target type.
type Definition struct {
	Codename   string `json:"codename"`
	TargetType string `json:"content_type"`
	Name       string `json:"name"`
}

// Qualified returns the "<target_type>.<codename>" form accepted by role
// permission lists.
func (d Definition) Qualified() string {
	return d.TargetType + "." + d.Codename
}

type Role struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Permissions []Definition `json:"permissions"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func NewRole(name string) *Role {
	now := time.Now()
	return &Role{
		Name:      strings.TrimSpace(name),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NormalizeRoleName is the key role-name uniqueness is enforced on.
func NormalizeRoleName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// SplitPermissionName splits "invoice.view" into ("invoice", "view"); a bare
// codename yields an empty target type, meaning every type defining it.
func SplitPermissionName(name string) (targetType, codename string) {
	name = strings.TrimSpace(name)
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

func defaultDefinitionName(codename, targetType string) string {
	return fmt.Sprintf("Can %s %s", codename, targetType)
}

func ToDataModel(r *Role) *permissionDatamodel.Role {
	return &permissionDatamodel.Role{
		ID:             r.ID,
		Name:           r.Name,
		NormalizedName: NormalizeRoleName(r.Name),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func FromDataModel(r *permissionDatamodel.Role) *Role {
	return &Role{
		ID:        r.ID,
		Name:      r.Name,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func DefinitionFromDataModel(p permissionDatamodel.Permission) Definition {
	return Definition{
		Codename:   p.Codename,
		TargetType: p.TargetType,
		Name:       p.Name,
	}
}
