package permission

import (
	"context"
	"net/http"
	"strconv"

	"github.com/frahmantamala/access-management/internal"
	"github.com/frahmantamala/access-management/internal/transport"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	CreateRole(ctx context.Context, name string, permissionNames []string) (*Role, error)
	UpdateRole(ctx context.Context, roleID int64, name *string, permissionNames *[]string) (*Role, error)
	DeleteRole(ctx context.Context, roleID int64) error
	GetRole(ctx context.Context, roleID int64) (*Role, error)
	ListRoles(ctx context.Context) ([]*Role, error)
	AddUserToRole(ctx context.Context, userID, roleID int64) error
	RemoveUserFromRole(ctx context.Context, userID, roleID int64) error
	AssignPermissionsBulk(ctx context.Context, subject Subject, perms []string, target Target) error
	RevokePermissionsBulk(ctx context.Context, subject Subject, perms []string, target Target) error
	HasPermission(ctx context.Context, subject Subject, perm string, target Target) (bool, error)
	ListPermissions(ctx context.Context, subject Subject, target Target) ([]string, error)
}

// Subject ids are resolved through the registry under these type labels.
const (
	UserTargetType = "user"
	RoleTargetType = "role"
)

type Handler struct {
	*transport.BaseHandler
	Service  ServiceAPI
	Registry *Registry
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI, registry *Registry) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
		Registry:    registry,
	}
}

// ----------------- ROLES -----------------

func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.Service.ListRoles(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, RolesResponse{Roles: roles})
}

func (h *Handler) GetRole(w http.ResponseWriter, r *http.Request) {
	roleID, err := h.IDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	role, err := h.Service.GetRole(r.Context(), roleID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, role)
}

func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var dto CreateRoleDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	role, err := h.Service.CreateRole(r.Context(), dto.Name, dto.Permissions)
	if err != nil {
		h.Logger.Error("CreateRole: service error", "error", err, "name", dto.Name)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, role)
}

func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	roleID, err := h.IDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	var dto UpdateRoleDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	role, err := h.Service.UpdateRole(r.Context(), roleID, dto.Name, dto.Permissions)
	if err != nil {
		h.Logger.Error("UpdateRole: service error", "error", err, "role_id", roleID)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, role)
}

func (h *Handler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	roleID, err := h.IDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if err := h.Service.DeleteRole(r.Context(), roleID); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AddRoleMember(w http.ResponseWriter, r *http.Request) {
	h.changeMembership(w, r, h.Service.AddUserToRole, "user added to role")
}

func (h *Handler) RemoveRoleMember(w http.ResponseWriter, r *http.Request) {
	h.changeMembership(w, r, h.Service.RemoveUserFromRole, "user removed from role")
}

func (h *Handler) changeMembership(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, userID, roleID int64) error, message string) {
	var dto RoleMemberDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if err := dto.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if err := h.requireUser(r.Context(), dto.UserID); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if err := fn(r.Context(), dto.UserID, dto.RoleID); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, MessageResponse{Message: message})
}

// ----------------- GRANTS -----------------

func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	h.applyGrant(w, r, false, h.Service.AssignPermissionsBulk, "permission assigned")
}

func (h *Handler) AssignBulk(w http.ResponseWriter, r *http.Request) {
	h.applyGrant(w, r, true, h.Service.AssignPermissionsBulk, "permissions assigned")
}

func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	h.applyGrant(w, r, false, h.Service.RevokePermissionsBulk, "permission revoked")
}

func (h *Handler) RevokeBulk(w http.ResponseWriter, r *http.Request) {
	h.applyGrant(w, r, true, h.Service.RevokePermissionsBulk, "permissions revoked")
}

type grantFunc func(ctx context.Context, subject Subject, perms []string, target Target) error

func (h *Handler) applyGrant(w http.ResponseWriter, r *http.Request, bulk bool, fn grantFunc, message string) {
	var dto GrantDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if !bulk && len(dto.Permissions) > 0 {
		h.HandleServiceError(w, internal.NewValidationFieldError("permissions", "use the bulk endpoint for multiple permissions", internal.ErrCodeValidationFailed))
		return
	}

	subject, target, err := h.resolve(r.Context(), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	if err := fn(r.Context(), subject, dto.Codenames(), target); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, MessageResponse{Message: message})
}

func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	var dto GrantDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if dto.Permission == "" {
		h.HandleServiceError(w, internal.NewValidationFieldError("permission", "permission is required", internal.ErrCodeValidationFailed))
		return
	}

	subject, target, err := h.resolve(r.Context(), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	ok, err := h.Service.HasPermission(r.Context(), subject, dto.Permission, target)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, CheckResponse{HasPermission: ok})
}

// UserObjectPermissions handles GET /users/{userID}/objects/{type}/{objectID}.
func (h *Handler) UserObjectPermissions(w http.ResponseWriter, r *http.Request) {
	userID, err := h.IDParam(r, "userID")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if err := h.requireUser(r.Context(), userID); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	target, err := h.Registry.Resolve(r.Context(), chi.URLParam(r, "type"), chi.URLParam(r, "objectID"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	perms, err := h.Service.ListPermissions(r.Context(), UserSubject(userID), target)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ObjectPermissionsResponse{
		UserID:      userID,
		ContentType: target.Type,
		ObjectID:    target.ID,
		Permissions: perms,
	})
}

// resolve checks that both the subject and the target exist.
func (h *Handler) resolve(ctx context.Context, dto GrantDTO) (Subject, Target, error) {
	subject, err := dto.Subject()
	if err != nil {
		return Subject{}, Target{}, err
	}

	if subject.Kind == SubjectRole {
		err = h.requireSubject(ctx, RoleTargetType, subject.ID, internal.ErrRoleNotFound)
	} else {
		err = h.requireUser(ctx, subject.ID)
	}
	if err != nil {
		return Subject{}, Target{}, err
	}

	if dto.ContentType == "" || dto.ObjectID == "" {
		return Subject{}, Target{}, internal.NewValidationFieldError("content_type", "content_type and object_id are required", internal.ErrCodeInvalidTarget)
	}
	target, err := h.Registry.Resolve(ctx, dto.ContentType, dto.ObjectID)
	if err != nil {
		return Subject{}, Target{}, err
	}
	return subject, target, nil
}

func (h *Handler) requireUser(ctx context.Context, userID int64) error {
	return h.requireSubject(ctx, UserTargetType, userID, internal.ErrUserNotFound)
}

func (h *Handler) requireSubject(ctx context.Context, subjectType string, id int64, notFound error) error {
	if _, err := h.Registry.Resolve(ctx, subjectType, strconv.FormatInt(id, 10)); err != nil {
		if internal.IsType(err, internal.ErrorTypeNotFound) {
			return notFound
		}
		return err
	}
	return nil
}
