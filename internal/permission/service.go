package permission

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/frahmantamala/access-management/internal"
	"github.com/frahmantamala/access-management/internal/core/common/validation"
	permissionDatamodel "github.com/frahmantamala/access-management/internal/core/datamodel/permission"
	"github.com/frahmantamala/access-management/internal/core/db"
	"github.com/frahmantamala/access-management/internal/core/events"
	"github.com/frahmantamala/access-management/pkg/metrics"
)

type RepositoryAPI interface {
	// permission definitions
	GetOrCreatePermission(ctx context.Context, codename, targetType, name string) (*permissionDatamodel.Permission, bool, error)
	FindPermission(ctx context.Context, codename, targetType string) (*permissionDatamodel.Permission, error)
	FindPermissionsByCodename(ctx context.Context, codename, targetType string) ([]permissionDatamodel.Permission, error)
	ListPermissionsForType(ctx context.Context, targetType string) ([]permissionDatamodel.Permission, error)
	PermissionExists(ctx context.Context, codename string) (bool, error)

	// object grants
	CreateGrant(ctx context.Context, grant *permissionDatamodel.PermissionGrant) error
	DeleteGrant(ctx context.Context, kind string, subjectID, permissionID int64, targetType, targetID string) (int64, error)
	DeleteGrantsForSubject(ctx context.Context, kind string, subjectID int64) error
	GrantCodenames(ctx context.Context, kind string, subjectIDs []int64, targetType, targetID string) ([]string, error)
	SubjectIDsWithGrant(ctx context.Context, kind string, targetType, targetID, codename string) ([]int64, error)
	GrantedTargetIDs(ctx context.Context, kind string, subjectIDs []int64, targetType, codename string) ([]string, error)

	// roles
	CreateRole(ctx context.Context, role *permissionDatamodel.Role) error
	UpdateRole(ctx context.Context, role *permissionDatamodel.Role) error
	DeleteRole(ctx context.Context, roleID int64) error
	GetRoleByID(ctx context.Context, roleID int64) (*permissionDatamodel.Role, error)
	GetRoleByNormalizedName(ctx context.Context, normalized string) (*permissionDatamodel.Role, error)
	ListRoles(ctx context.Context) ([]*permissionDatamodel.Role, error)
	ListRolesByIDs(ctx context.Context, roleIDs []int64) ([]*permissionDatamodel.Role, error)
	RoleIDsForUser(ctx context.Context, userID int64) ([]int64, error)
	RolePermissions(ctx context.Context, roleIDs []int64) (map[int64][]permissionDatamodel.Permission, error)
	AddRolePermission(ctx context.Context, roleID, permissionID int64) error
	ClearRolePermissions(ctx context.Context, roleID int64) error
	RoleGlobalCodenames(ctx context.Context, roleIDs []int64, targetType string) ([]string, error)

	// membership
	AddMember(ctx context.Context, roleID, userID int64) error
	RemoveMember(ctx context.Context, roleID, userID int64) error
	IsMember(ctx context.Context, roleID, userID int64) (bool, error)
	MemberIDs(ctx context.Context, roleIDs []int64) ([]int64, error)
	DeleteMembersForRole(ctx context.Context, roleID int64) error
	DeleteMembershipsForUser(ctx context.Context, userID int64) error
}

// Service owns every write to grants, roles and memberships. Each mutator
// runs in a single transaction.
type Service struct {
	repo      RepositoryAPI
	tx        db.Transactor
	publisher events.Publisher
	logger    *slog.Logger
}

func NewService(repo RepositoryAPI, tx db.Transactor, publisher events.Publisher, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		repo:      repo,
		tx:        tx,
		publisher: publisher,
		logger:    logger,
	}
}

// ----------------- ROLES -----------------

func (s *Service) CreateRole(ctx context.Context, name string, permissionNames []string) (*Role, error) {
	if err := validation.ValidateRoleName(name); err != nil {
		return nil, err
	}

	role := NewRole(name)
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.GetRoleByNormalizedName(ctx, NormalizeRoleName(name))
		if err != nil {
			return fmt.Errorf("lookup role by name: %w", err)
		}
		if existing != nil {
			return internal.ErrRoleExists.WithDetails(map[string]string{"name": name})
		}

		row := ToDataModel(role)
		if err := s.repo.CreateRole(ctx, row); err != nil {
			return fmt.Errorf("create role: %w", err)
		}
		role.ID = row.ID

		if len(permissionNames) > 0 {
			if err := s.attachRolePermissions(ctx, role.ID, permissionNames); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to create role", "name", name, "error", err)
		return nil, err
	}

	s.logger.Info("role created", "role_id", role.ID, "name", role.Name)
	s.publish(ctx, events.NewRoleChangedEvent("create", role.ID, 0))
	return s.GetRole(ctx, role.ID)
}

// UpdateRole renames the role when name is set and replaces its global
// permissions when permissionNames is set (an empty slice clears them).
func (s *Service) UpdateRole(ctx context.Context, roleID int64, name *string, permissionNames *[]string) (*Role, error) {
	if name != nil {
		if err := validation.ValidateRoleName(*name); err != nil {
			return nil, err
		}
	}

	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		row, err := s.repo.GetRoleByID(ctx, roleID)
		if err != nil {
			return fmt.Errorf("get role: %w", err)
		}
		if row == nil {
			return internal.ErrRoleNotFound
		}

		if name != nil {
			other, err := s.repo.GetRoleByNormalizedName(ctx, NormalizeRoleName(*name))
			if err != nil {
				return fmt.Errorf("lookup role by name: %w", err)
			}
			if other != nil && other.ID != row.ID {
				return internal.ErrRoleExists.WithDetails(map[string]string{"name": *name})
			}
			row.Name = NewRole(*name).Name
			row.NormalizedName = NormalizeRoleName(*name)
			row.UpdatedAt = time.Now()
			if err := s.repo.UpdateRole(ctx, row); err != nil {
				return fmt.Errorf("update role: %w", err)
			}
		}

		if permissionNames != nil {
			if err := s.repo.ClearRolePermissions(ctx, row.ID); err != nil {
				return fmt.Errorf("clear role permissions: %w", err)
			}
			if err := s.attachRolePermissions(ctx, row.ID, *permissionNames); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to update role", "role_id", roleID, "error", err)
		return nil, err
	}

	s.logger.Info("role updated", "role_id", roleID)
	s.publish(ctx, events.NewRoleChangedEvent("update", roleID, 0))
	return s.GetRole(ctx, roleID)
}

// DeleteRole removes the role together with its memberships, global
// permissions and object grants.
func (s *Service) DeleteRole(ctx context.Context, roleID int64) error {
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		row, err := s.repo.GetRoleByID(ctx, roleID)
		if err != nil {
			return fmt.Errorf("get role: %w", err)
		}
		if row == nil {
			return internal.ErrRoleNotFound
		}
		if err := s.repo.DeleteMembersForRole(ctx, roleID); err != nil {
			return fmt.Errorf("delete role members: %w", err)
		}
		if err := s.repo.ClearRolePermissions(ctx, roleID); err != nil {
			return fmt.Errorf("clear role permissions: %w", err)
		}
		if err := s.repo.DeleteGrantsForSubject(ctx, string(SubjectRole), roleID); err != nil {
			return fmt.Errorf("delete role grants: %w", err)
		}
		return s.repo.DeleteRole(ctx, roleID)
	})
	if err != nil {
		s.logger.Error("failed to delete role", "role_id", roleID, "error", err)
		return err
	}

	s.logger.Info("role deleted", "role_id", roleID)
	s.publish(ctx, events.NewRoleChangedEvent("delete", roleID, 0))
	return nil
}

// attachRolePermissions resolves each name to existing definitions; names
// with no definition are skipped.
func (s *Service) attachRolePermissions(ctx context.Context, roleID int64, names []string) error {
	for _, name := range names {
		targetType, codename := SplitPermissionName(name)
		defs, err := s.repo.FindPermissionsByCodename(ctx, codename, targetType)
		if err != nil {
			return fmt.Errorf("find permission %q: %w", name, err)
		}
		if len(defs) == 0 {
			s.logger.Warn("permission not found, skipping", "permission", name, "role_id", roleID)
			continue
		}
		for _, def := range defs {
			if err := s.repo.AddRolePermission(ctx, roleID, def.ID); err != nil {
				return fmt.Errorf("add role permission %q: %w", name, err)
			}
		}
	}
	return nil
}

// ----------------- MEMBERSHIP -----------------

func (s *Service) AddUserToRole(ctx context.Context, userID, roleID int64) error {
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.requireRole(ctx, roleID); err != nil {
			return err
		}
		return s.repo.AddMember(ctx, roleID, userID)
	})
	if err != nil {
		s.logger.Error("failed to add user to role", "user_id", userID, "role_id", roleID, "error", err)
		return err
	}
	s.logger.Info("user added to role", "user_id", userID, "role_id", roleID)
	s.publish(ctx, events.NewRoleChangedEvent("add_member", roleID, userID))
	return nil
}

func (s *Service) RemoveUserFromRole(ctx context.Context, userID, roleID int64) error {
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.requireRole(ctx, roleID); err != nil {
			return err
		}
		return s.repo.RemoveMember(ctx, roleID, userID)
	})
	if err != nil {
		s.logger.Error("failed to remove user from role", "user_id", userID, "role_id", roleID, "error", err)
		return err
	}
	s.logger.Info("user removed from role", "user_id", userID, "role_id", roleID)
	s.publish(ctx, events.NewRoleChangedEvent("remove_member", roleID, userID))
	return nil
}

func (s *Service) requireRole(ctx context.Context, roleID int64) error {
	row, err := s.repo.GetRoleByID(ctx, roleID)
	if err != nil {
		return fmt.Errorf("get role: %w", err)
	}
	if row == nil {
		return internal.ErrRoleNotFound
	}
	return nil
}

// ----------------- GRANTS -----------------

// AssignPermission grants perm on target to subject. Assigning an existing
// grant is a no-op.
func (s *Service) AssignPermission(ctx context.Context, subject Subject, perm string, target Target) error {
	return s.AssignPermissionsBulk(ctx, subject, []string{perm}, target)
}

// AssignPermissionToGroup is AssignPermission for a role subject.
func (s *Service) AssignPermissionToGroup(ctx context.Context, roleID int64, perm string, target Target) error {
	return s.AssignPermission(ctx, RoleSubject(roleID), perm, target)
}

// RevokePermission removes the grant if present; a missing definition or
// grant is not an error.
func (s *Service) RevokePermission(ctx context.Context, subject Subject, perm string, target Target) error {
	return s.RevokePermissionsBulk(ctx, subject, []string{perm}, target)
}

func (s *Service) RevokePermissionFromGroup(ctx context.Context, roleID int64, perm string, target Target) error {
	return s.RevokePermission(ctx, RoleSubject(roleID), perm, target)
}

// AssignPermissionsBulk applies every permission in one transaction: either
// all grants exist afterwards or none of them were written.
func (s *Service) AssignPermissionsBulk(ctx context.Context, subject Subject, perms []string, target Target) error {
	if err := s.validateGrantInput(subject, perms, target); err != nil {
		return err
	}

	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, perm := range perms {
			def, created, err := s.repo.GetOrCreatePermission(ctx, perm, target.Type, defaultDefinitionName(perm, target.Type))
			if err != nil {
				return fmt.Errorf("resolve permission %q: %w", perm, err)
			}
			if created {
				s.logger.Info("created permission", "codename", perm, "content_type", target.Type)
			}

			grant := &permissionDatamodel.PermissionGrant{
				SubjectKind:  string(subject.Kind),
				SubjectID:    subject.ID,
				PermissionID: def.ID,
				TargetType:   target.Type,
				TargetID:     target.ID,
				CreatedAt:    time.Now(),
			}
			if err := s.repo.CreateGrant(ctx, grant); err != nil {
				return fmt.Errorf("grant %q: %w", perm, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to assign permissions",
			"subject", subject.String(), "permissions", perms, "target", target.String(), "error", err)
		return err
	}

	metrics.PermissionChangesTotal.WithLabelValues("assign").Add(float64(len(perms)))
	s.logger.Info("permissions assigned", "subject", subject.String(), "permissions", perms, "target", target.String())
	s.publish(ctx, events.NewPermissionChangedEvent("assign", string(subject.Kind), subject.ID, perms, target.Type, target.ID))
	return nil
}

// RevokePermissionsBulk removes every named grant in one transaction.
func (s *Service) RevokePermissionsBulk(ctx context.Context, subject Subject, perms []string, target Target) error {
	if err := s.validateGrantInput(subject, perms, target); err != nil {
		return err
	}

	var removed int64
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, perm := range perms {
			def, err := s.repo.FindPermission(ctx, perm, target.Type)
			if err != nil {
				return fmt.Errorf("find permission %q: %w", perm, err)
			}
			if def == nil {
				s.logger.Debug("permission doesn't exist, nothing to revoke", "codename", perm, "content_type", target.Type)
				continue
			}
			n, err := s.repo.DeleteGrant(ctx, string(subject.Kind), subject.ID, def.ID, target.Type, target.ID)
			if err != nil {
				return fmt.Errorf("revoke %q: %w", perm, err)
			}
			removed += n
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to revoke permissions",
			"subject", subject.String(), "permissions", perms, "target", target.String(), "error", err)
		return err
	}

	metrics.PermissionChangesTotal.WithLabelValues("revoke").Add(float64(removed))
	s.logger.Info("permissions revoked", "subject", subject.String(), "permissions", perms, "target", target.String(), "removed", removed)
	s.publish(ctx, events.NewPermissionChangedEvent("revoke", string(subject.Kind), subject.ID, perms, target.Type, target.ID))
	return nil
}

func (s *Service) validateGrantInput(subject Subject, perms []string, target Target) error {
	if subject.Kind != SubjectUser && subject.Kind != SubjectRole {
		return internal.NewValidationFieldError("subject", "subject must be a user or a role", internal.ErrCodeValidationFailed)
	}
	if err := validation.ValidatePermissionCodenames(perms); err != nil {
		return err
	}
	if err := validation.ValidateTarget(target.Type, target.ID); err != nil {
		return err
	}
	return nil
}

// ----------------- QUERIES -----------------

// HasPermission is true when subject holds perm on target directly, through
// a role holding perm globally, or through a role granted perm on target.
func (s *Service) HasPermission(ctx context.Context, subject Subject, perm string, target Target) (bool, error) {
	perms, err := s.ListPermissions(ctx, subject, target)
	if err != nil {
		return false, err
	}
	return slices.Contains(perms, perm), nil
}

// ListPermissions returns the sorted union of codenames subject holds on
// target from all three sources.
func (s *Service) ListPermissions(ctx context.Context, subject Subject, target Target) ([]string, error) {
	set := make(map[string]struct{})
	add := func(names []string) {
		for _, n := range names {
			set[n] = struct{}{}
		}
	}

	direct, err := s.repo.GrantCodenames(ctx, string(subject.Kind), []int64{subject.ID}, target.Type, target.ID)
	if err != nil {
		return nil, fmt.Errorf("direct grants: %w", err)
	}
	add(direct)

	var roleIDs []int64
	switch subject.Kind {
	case SubjectUser:
		roleIDs, err = s.repo.RoleIDsForUser(ctx, subject.ID)
		if err != nil {
			return nil, fmt.Errorf("roles for user: %w", err)
		}
		if len(roleIDs) > 0 {
			viaRoles, err := s.repo.GrantCodenames(ctx, string(SubjectRole), roleIDs, target.Type, target.ID)
			if err != nil {
				return nil, fmt.Errorf("role grants: %w", err)
			}
			add(viaRoles)
		}
	case SubjectRole:
		roleIDs = []int64{subject.ID}
	}

	if len(roleIDs) > 0 {
		global, err := s.repo.RoleGlobalCodenames(ctx, roleIDs, target.Type)
		if err != nil {
			return nil, fmt.Errorf("role global permissions: %w", err)
		}
		add(global)
	}

	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Service) GetRole(ctx context.Context, roleID int64) (*Role, error) {
	row, err := s.repo.GetRoleByID(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("get role: %w", err)
	}
	if row == nil {
		return nil, internal.ErrRoleNotFound
	}
	roles, err := s.withPermissions(ctx, []*permissionDatamodel.Role{row})
	if err != nil {
		return nil, err
	}
	return roles[0], nil
}

// GetRoleByName matches case-insensitively.
func (s *Service) GetRoleByName(ctx context.Context, name string) (*Role, error) {
	row, err := s.repo.GetRoleByNormalizedName(ctx, NormalizeRoleName(name))
	if err != nil {
		return nil, fmt.Errorf("get role by name: %w", err)
	}
	if row == nil {
		return nil, internal.ErrRoleNotFound
	}
	roles, err := s.withPermissions(ctx, []*permissionDatamodel.Role{row})
	if err != nil {
		return nil, err
	}
	return roles[0], nil
}

func (s *Service) ListRoles(ctx context.Context) ([]*Role, error) {
	rows, err := s.repo.ListRoles(ctx)
	if err != nil {
		s.logger.Error("failed to list roles", "error", err)
		return nil, err
	}
	return s.withPermissions(ctx, rows)
}

func (s *Service) ListRolesForUser(ctx context.Context, userID int64) ([]*Role, error) {
	ids, err := s.repo.RoleIDsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("roles for user: %w", err)
	}
	if len(ids) == 0 {
		return []*Role{}, nil
	}
	rows, err := s.repo.ListRolesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return s.withPermissions(ctx, rows)
}

func (s *Service) UserInRole(ctx context.Context, userID, roleID int64) (bool, error) {
	return s.repo.IsMember(ctx, roleID, userID)
}

// UsersWithPermission returns ids of users holding perm (any permission when
// perm is empty) on target, directly or through a role's object grant.
func (s *Service) UsersWithPermission(ctx context.Context, target Target, perm string) ([]int64, error) {
	direct, err := s.repo.SubjectIDsWithGrant(ctx, string(SubjectUser), target.Type, target.ID, perm)
	if err != nil {
		return nil, err
	}
	roleIDs, err := s.repo.SubjectIDsWithGrant(ctx, string(SubjectRole), target.Type, target.ID, perm)
	if err != nil {
		return nil, err
	}
	ids := append([]int64{}, direct...)
	if len(roleIDs) > 0 {
		members, err := s.repo.MemberIDs(ctx, roleIDs)
		if err != nil {
			return nil, err
		}
		ids = append(ids, members...)
	}
	slices.Sort(ids)
	return slices.Compact(ids), nil
}

// RolesWithPermission returns roles holding an object grant on target.
func (s *Service) RolesWithPermission(ctx context.Context, target Target, perm string) ([]*Role, error) {
	roleIDs, err := s.repo.SubjectIDsWithGrant(ctx, string(SubjectRole), target.Type, target.ID, perm)
	if err != nil {
		return nil, err
	}
	if len(roleIDs) == 0 {
		return []*Role{}, nil
	}
	rows, err := s.repo.ListRolesByIDs(ctx, roleIDs)
	if err != nil {
		return nil, err
	}
	return s.withPermissions(ctx, rows)
}

// ObjectIDsForUser lists ids of targetType objects on which the user holds
// perm. all is true when a role grants perm globally, in which case every
// object of the type qualifies and ids holds only the explicit grants.
func (s *Service) ObjectIDsForUser(ctx context.Context, userID int64, targetType, perm string) (ids []string, all bool, err error) {
	roleIDs, err := s.repo.RoleIDsForUser(ctx, userID)
	if err != nil {
		return nil, false, err
	}

	ids, err = s.repo.GrantedTargetIDs(ctx, string(SubjectUser), []int64{userID}, targetType, perm)
	if err != nil {
		return nil, false, err
	}
	if len(roleIDs) > 0 {
		viaRoles, err := s.repo.GrantedTargetIDs(ctx, string(SubjectRole), roleIDs, targetType, perm)
		if err != nil {
			return nil, false, err
		}
		ids = append(ids, viaRoles...)

		global, err := s.repo.RoleGlobalCodenames(ctx, roleIDs, targetType)
		if err != nil {
			return nil, false, err
		}
		all = slices.Contains(global, perm)
	}
	slices.Sort(ids)
	return slices.Compact(ids), all, nil
}

func (s *Service) PermissionExists(ctx context.Context, codename string) (bool, error) {
	return s.repo.PermissionExists(ctx, codename)
}

func (s *Service) PermissionsForType(ctx context.Context, targetType string) ([]Definition, error) {
	rows, err := s.repo.ListPermissionsForType(ctx, targetType)
	if err != nil {
		return nil, err
	}
	defs := make([]Definition, 0, len(rows))
	for _, r := range rows {
		defs = append(defs, DefinitionFromDataModel(r))
	}
	return defs, nil
}

// RemoveUser drops every membership and grant the user holds. It joins the
// caller's transaction.
func (s *Service) RemoveUser(ctx context.Context, userID int64) error {
	if err := s.repo.DeleteMembershipsForUser(ctx, userID); err != nil {
		return fmt.Errorf("delete memberships: %w", err)
	}
	if err := s.repo.DeleteGrantsForSubject(ctx, string(SubjectUser), userID); err != nil {
		return fmt.Errorf("delete grants: %w", err)
	}
	return nil
}

func (s *Service) withPermissions(ctx context.Context, rows []*permissionDatamodel.Role) ([]*Role, error) {
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	perms, err := s.repo.RolePermissions(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("role permissions: %w", err)
	}

	roles := make([]*Role, 0, len(rows))
	for _, r := range rows {
		role := FromDataModel(r)
		role.Permissions = make([]Definition, 0, len(perms[r.ID]))
		for _, p := range perms[r.ID] {
			role.Permissions = append(role.Permissions, DefinitionFromDataModel(p))
		}
		roles = append(roles, role)
	}
	return roles, nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}
