package postgres

import (
	"context"
	"errors"
	"time"

	permissionDatamodel "github.com/frahmantamala/access-management/internal/core/datamodel/permission"
	"github.com/frahmantamala/access-management/internal"
	"github.com/frahmantamala/access-management/internal/core/db"
	"github.com/frahmantamala/access-management/internal/permission"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PermissionRepository implements permission.RepositoryAPI using GORM. Every
// method joins the transaction carried by ctx, if any.
type PermissionRepository struct {
	db *gorm.DB
}

func NewPermissionRepository(db *gorm.DB) permission.RepositoryAPI {
	return &PermissionRepository{db: db}
}

func (r *PermissionRepository) conn(ctx context.Context) *gorm.DB {
	return db.GetTxFromContext(ctx, r.db)
}

// ----------------- DEFINITIONS -----------------

// GetOrCreatePermission inserts the definition unless it already exists and
// returns the stored row. created is true when this call inserted it.
func (r *PermissionRepository) GetOrCreatePermission(ctx context.Context, codename, targetType, name string) (*permissionDatamodel.Permission, bool, error) {
	row := &permissionDatamodel.Permission{
		Codename:   codename,
		TargetType: targetType,
		Name:       name,
		CreatedAt:  time.Now(),
	}
	res := r.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row)
	if res.Error != nil {
		return nil, false, res.Error
	}
	created := res.RowsAffected > 0

	existing, err := r.FindPermission(ctx, codename, targetType)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, gorm.ErrRecordNotFound
	}
	return existing, created, nil
}

func (r *PermissionRepository) FindPermission(ctx context.Context, codename, targetType string) (*permissionDatamodel.Permission, error) {
	var p permissionDatamodel.Permission
	err := r.conn(ctx).
		Where("codename = ? AND target_type = ?", codename, targetType).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// FindPermissionsByCodename matches every target type when targetType is
// empty.
func (r *PermissionRepository) FindPermissionsByCodename(ctx context.Context, codename, targetType string) ([]permissionDatamodel.Permission, error) {
	var perms []permissionDatamodel.Permission
	q := r.conn(ctx).Where("codename = ?", codename)
	if targetType != "" {
		q = q.Where("target_type = ?", targetType)
	}
	err := q.Order("target_type ASC").Find(&perms).Error
	return perms, err
}

func (r *PermissionRepository) ListPermissionsForType(ctx context.Context, targetType string) ([]permissionDatamodel.Permission, error) {
	var perms []permissionDatamodel.Permission
	err := r.conn(ctx).
		Where("target_type = ?", targetType).
		Order("codename ASC").
		Find(&perms).Error
	return perms, err
}

func (r *PermissionRepository) PermissionExists(ctx context.Context, codename string) (bool, error) {
	var count int64
	err := r.conn(ctx).Model(&permissionDatamodel.Permission{}).
		Where("codename = ?", codename).
		Count(&count).Error
	return count > 0, err
}

// ----------------- GRANTS -----------------

// CreateGrant is idempotent: an identical grant already present is kept.
func (r *PermissionRepository) CreateGrant(ctx context.Context, grant *permissionDatamodel.PermissionGrant) error {
	return r.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(grant).Error
}

func (r *PermissionRepository) DeleteGrant(ctx context.Context, kind string, subjectID, permissionID int64, targetType, targetID string) (int64, error) {
	res := r.conn(ctx).
		Where("subject_kind = ? AND subject_id = ? AND permission_id = ? AND target_type = ? AND target_id = ?",
			kind, subjectID, permissionID, targetType, targetID).
		Delete(&permissionDatamodel.PermissionGrant{})
	return res.RowsAffected, res.Error
}

func (r *PermissionRepository) DeleteGrantsForSubject(ctx context.Context, kind string, subjectID int64) error {
	return r.conn(ctx).
		Where("subject_kind = ? AND subject_id = ?", kind, subjectID).
		Delete(&permissionDatamodel.PermissionGrant{}).Error
}

func (r *PermissionRepository) GrantCodenames(ctx context.Context, kind string, subjectIDs []int64, targetType, targetID string) ([]string, error) {
	var codenames []string
	if len(subjectIDs) == 0 {
		return codenames, nil
	}
	err := r.conn(ctx).
		Table("permission_grants AS g").
		Joins("JOIN permissions p ON p.id = g.permission_id").
		Where("g.subject_kind = ? AND g.subject_id IN ? AND g.target_type = ? AND g.target_id = ?",
			kind, subjectIDs, targetType, targetID).
		Distinct().
		Pluck("p.codename", &codenames).Error
	return codenames, err
}

// SubjectIDsWithGrant lists subjects of the given kind holding any grant on
// the target, or only grants of codename when it is set.
func (r *PermissionRepository) SubjectIDsWithGrant(ctx context.Context, kind, targetType, targetID, codename string) ([]int64, error) {
	var ids []int64
	q := r.conn(ctx).
		Table("permission_grants AS g").
		Joins("JOIN permissions p ON p.id = g.permission_id").
		Where("g.subject_kind = ? AND g.target_type = ? AND g.target_id = ?", kind, targetType, targetID)
	if codename != "" {
		q = q.Where("p.codename = ?", codename)
	}
	err := q.Distinct().Order("g.subject_id ASC").Pluck("g.subject_id", &ids).Error
	return ids, err
}

func (r *PermissionRepository) GrantedTargetIDs(ctx context.Context, kind string, subjectIDs []int64, targetType, codename string) ([]string, error) {
	var ids []string
	if len(subjectIDs) == 0 {
		return ids, nil
	}
	err := r.conn(ctx).
		Table("permission_grants AS g").
		Joins("JOIN permissions p ON p.id = g.permission_id").
		Where("g.subject_kind = ? AND g.subject_id IN ? AND g.target_type = ? AND p.codename = ?",
			kind, subjectIDs, targetType, codename).
		Distinct().
		Pluck("g.target_id", &ids).Error
	return ids, err
}

// ----------------- ROLES -----------------

// CreateRole and UpdateRole report a normalized-name collision as
// ErrRoleExists when the connection translates driver errors.
func (r *PermissionRepository) CreateRole(ctx context.Context, role *permissionDatamodel.Role) error {
	return roleConflict(r.conn(ctx).Create(role).Error, role.Name)
}

func (r *PermissionRepository) UpdateRole(ctx context.Context, role *permissionDatamodel.Role) error {
	err := r.conn(ctx).Model(&permissionDatamodel.Role{}).
		Where("id = ?", role.ID).
		Updates(map[string]interface{}{
			"name":            role.Name,
			"normalized_name": role.NormalizedName,
			"updated_at":      time.Now(),
		}).Error
	return roleConflict(err, role.Name)
}

func roleConflict(err error, name string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return internal.ErrRoleExists.WithDetails(map[string]string{"name": name})
	}
	return err
}

func (r *PermissionRepository) DeleteRole(ctx context.Context, roleID int64) error {
	return r.conn(ctx).Delete(&permissionDatamodel.Role{}, roleID).Error
}

func (r *PermissionRepository) GetRoleByID(ctx context.Context, roleID int64) (*permissionDatamodel.Role, error) {
	var role permissionDatamodel.Role
	err := r.conn(ctx).Where("id = ?", roleID).First(&role).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &role, nil
}

func (r *PermissionRepository) GetRoleByNormalizedName(ctx context.Context, normalized string) (*permissionDatamodel.Role, error) {
	var role permissionDatamodel.Role
	err := r.conn(ctx).Where("normalized_name = ?", normalized).First(&role).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &role, nil
}

func (r *PermissionRepository) ListRoles(ctx context.Context) ([]*permissionDatamodel.Role, error) {
	var roles []*permissionDatamodel.Role
	err := r.conn(ctx).Order("name ASC").Find(&roles).Error
	return roles, err
}

func (r *PermissionRepository) ListRolesByIDs(ctx context.Context, roleIDs []int64) ([]*permissionDatamodel.Role, error) {
	var roles []*permissionDatamodel.Role
	if len(roleIDs) == 0 {
		return roles, nil
	}
	err := r.conn(ctx).Where("id IN ?", roleIDs).Order("name ASC").Find(&roles).Error
	return roles, err
}

func (r *PermissionRepository) RoleIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := r.conn(ctx).Model(&permissionDatamodel.RoleMember{}).
		Where("user_id = ?", userID).
		Order("role_id ASC").
		Pluck("role_id", &ids).Error
	return ids, err
}

type rolePermissionRow struct {
	RoleID     int64
	ID         int64
	Codename   string
	TargetType string
	Name       string
	CreatedAt  time.Time
}

func (r *PermissionRepository) RolePermissions(ctx context.Context, roleIDs []int64) (map[int64][]permissionDatamodel.Permission, error) {
	out := make(map[int64][]permissionDatamodel.Permission, len(roleIDs))
	if len(roleIDs) == 0 {
		return out, nil
	}

	var rows []rolePermissionRow
	err := r.conn(ctx).
		Table("role_permissions AS rp").
		Select("rp.role_id, p.id, p.codename, p.target_type, p.name, p.created_at").
		Joins("JOIN permissions p ON p.id = rp.permission_id").
		Where("rp.role_id IN ?", roleIDs).
		Order("p.target_type ASC, p.codename ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		out[row.RoleID] = append(out[row.RoleID], permissionDatamodel.Permission{
			ID:         row.ID,
			Codename:   row.Codename,
			TargetType: row.TargetType,
			Name:       row.Name,
			CreatedAt:  row.CreatedAt,
		})
	}
	return out, nil
}

func (r *PermissionRepository) AddRolePermission(ctx context.Context, roleID, permissionID int64) error {
	return r.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&permissionDatamodel.RolePermission{RoleID: roleID, PermissionID: permissionID}).Error
}

func (r *PermissionRepository) ClearRolePermissions(ctx context.Context, roleID int64) error {
	return r.conn(ctx).Where("role_id = ?", roleID).Delete(&permissionDatamodel.RolePermission{}).Error
}

func (r *PermissionRepository) RoleGlobalCodenames(ctx context.Context, roleIDs []int64, targetType string) ([]string, error) {
	var codenames []string
	if len(roleIDs) == 0 {
		return codenames, nil
	}
	err := r.conn(ctx).
		Table("role_permissions AS rp").
		Joins("JOIN permissions p ON p.id = rp.permission_id").
		Where("rp.role_id IN ? AND p.target_type = ?", roleIDs, targetType).
		Distinct().
		Pluck("p.codename", &codenames).Error
	return codenames, err
}

// ----------------- MEMBERSHIP -----------------

func (r *PermissionRepository) AddMember(ctx context.Context, roleID, userID int64) error {
	return r.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&permissionDatamodel.RoleMember{RoleID: roleID, UserID: userID, CreatedAt: time.Now()}).Error
}

func (r *PermissionRepository) RemoveMember(ctx context.Context, roleID, userID int64) error {
	return r.conn(ctx).
		Where("role_id = ? AND user_id = ?", roleID, userID).
		Delete(&permissionDatamodel.RoleMember{}).Error
}

func (r *PermissionRepository) IsMember(ctx context.Context, roleID, userID int64) (bool, error) {
	var count int64
	err := r.conn(ctx).Model(&permissionDatamodel.RoleMember{}).
		Where("role_id = ? AND user_id = ?", roleID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *PermissionRepository) MemberIDs(ctx context.Context, roleIDs []int64) ([]int64, error) {
	var ids []int64
	if len(roleIDs) == 0 {
		return ids, nil
	}
	err := r.conn(ctx).Model(&permissionDatamodel.RoleMember{}).
		Where("role_id IN ?", roleIDs).
		Distinct().
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *PermissionRepository) DeleteMembersForRole(ctx context.Context, roleID int64) error {
	return r.conn(ctx).Where("role_id = ?", roleID).Delete(&permissionDatamodel.RoleMember{}).Error
}

func (r *PermissionRepository) DeleteMembershipsForUser(ctx context.Context, userID int64) error {
	return r.conn(ctx).Where("user_id = ?", userID).Delete(&permissionDatamodel.RoleMember{}).Error
}
