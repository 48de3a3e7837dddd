package permission_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/frahmantamala/access-management/internal"
	"github.com/frahmantamala/access-management/internal/permission"
	"github.com/frahmantamala/access-management/internal/transport"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type grantCall struct {
	subject permission.Subject
	perms   []string
	target  permission.Target
}

type fakePermissionService struct {
	assigned  []grantCall
	revoked   []grantCall
	checked   string
	has       bool
	listed    []string
	createErr error
}

func (f *fakePermissionService) CreateRole(_ context.Context, name string, _ []string) (*permission.Role, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &permission.Role{ID: 1, Name: name}, nil
}

func (f *fakePermissionService) UpdateRole(_ context.Context, roleID int64, _ *string, _ *[]string) (*permission.Role, error) {
	return &permission.Role{ID: roleID}, nil
}

func (f *fakePermissionService) DeleteRole(context.Context, int64) error { return nil }

func (f *fakePermissionService) GetRole(_ context.Context, roleID int64) (*permission.Role, error) {
	return nil, internal.ErrRoleNotFound
}

func (f *fakePermissionService) ListRoles(context.Context) ([]*permission.Role, error) {
	return nil, nil
}

func (f *fakePermissionService) AddUserToRole(context.Context, int64, int64) error      { return nil }
func (f *fakePermissionService) RemoveUserFromRole(context.Context, int64, int64) error { return nil }

func (f *fakePermissionService) AssignPermissionsBulk(_ context.Context, s permission.Subject, perms []string, t permission.Target) error {
	f.assigned = append(f.assigned, grantCall{s, perms, t})
	return nil
}

func (f *fakePermissionService) RevokePermissionsBulk(_ context.Context, s permission.Subject, perms []string, t permission.Target) error {
	f.revoked = append(f.revoked, grantCall{s, perms, t})
	return nil
}

func (f *fakePermissionService) HasPermission(_ context.Context, _ permission.Subject, perm string, _ permission.Target) (bool, error) {
	f.checked = perm
	return f.has, nil
}

func (f *fakePermissionService) ListPermissions(context.Context, permission.Subject, permission.Target) ([]string, error) {
	return f.listed, nil
}

// idSet resolves only the listed ids.
func idSet(ids ...string) permission.Resolver {
	return func(_ context.Context, id string) (bool, error) {
		for _, known := range ids {
			if known == id {
				return true, nil
			}
		}
		return false, nil
	}
}

type errorBody struct {
	Error struct {
		Type string `json:"type"`
		Code string `json:"code"`
	} `json:"error"`
}

var _ = Describe("Permission Handler", func() {
	var (
		svc    *fakePermissionService
		router chi.Router
	)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(rec, req)
		return rec
	}

	errorCode := func(rec *httptest.ResponseRecorder) string {
		var body errorBody
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		return body.Error.Code
	}

	BeforeEach(func() {
		svc = &fakePermissionService{}

		registry := permission.NewRegistry()
		registry.Register(permission.UserTargetType, idSet("1", "2"))
		registry.Register(permission.RoleTargetType, idSet("10"))
		registry.Register("document", idSet("42"))

		h := permission.NewHandler(transport.NewBaseHandler(quietLogger()), svc, registry)
		router = chi.NewRouter()
		router.Post("/roles", h.CreateRole)
		router.Get("/roles/{id}", h.GetRole)
		router.Post("/roles/members", h.AddRoleMember)
		router.Post("/assign", h.Assign)
		router.Post("/assign-bulk", h.AssignBulk)
		router.Post("/revoke", h.Revoke)
		router.Post("/check", h.Check)
		router.Get("/users/{userID}/objects/{type}/{objectID}", h.UserObjectPermissions)
	})

	Describe("Assign", func() {
		It("resolves the user subject and the target before granting", func() {
			rec := do(http.MethodPost, "/assign", `{"user_id":1,"permission":"view","content_type":"document","object_id":"42"}`)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(svc.assigned).To(HaveLen(1))
			Expect(svc.assigned[0].subject).To(Equal(permission.UserSubject(1)))
			Expect(svc.assigned[0].perms).To(Equal([]string{"view"}))
			Expect(svc.assigned[0].target).To(Equal(permission.Target{Type: "document", ID: "42"}))
		})

		It("grants to a role subject", func() {
			rec := do(http.MethodPost, "/assign", `{"role_id":10,"permission":"view","content_type":"document","object_id":"42"}`)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(svc.assigned[0].subject).To(Equal(permission.RoleSubject(10)))
		})

		It("reports an unknown role as role not found", func() {
			rec := do(http.MethodPost, "/assign", `{"role_id":99,"permission":"view","content_type":"document","object_id":"42"}`)

			Expect(rec.Code).To(Equal(http.StatusNotFound))
			Expect(errorCode(rec)).To(Equal(string(internal.ErrCodeRoleNotFound)))
			Expect(svc.assigned).To(BeEmpty())
		})

		It("reports an unknown user as user not found", func() {
			rec := do(http.MethodPost, "/assign", `{"user_id":99,"permission":"view","content_type":"document","object_id":"42"}`)

			Expect(rec.Code).To(Equal(http.StatusNotFound))
			Expect(errorCode(rec)).To(Equal(string(internal.ErrCodeUserNotFound)))
		})

		It("reports a missing object or unregistered type as target not found", func() {
			rec := do(http.MethodPost, "/assign", `{"user_id":1,"permission":"view","content_type":"document","object_id":"7"}`)
			Expect(rec.Code).To(Equal(http.StatusNotFound))
			Expect(errorCode(rec)).To(Equal(string(internal.ErrCodeTargetNotFound)))

			rec = do(http.MethodPost, "/assign", `{"user_id":1,"permission":"view","content_type":"invoice","object_id":"42"}`)
			Expect(rec.Code).To(Equal(http.StatusNotFound))
			Expect(errorCode(rec)).To(Equal(string(internal.ErrCodeTargetNotFound)))
			Expect(svc.assigned).To(BeEmpty())
		})

		It("rejects a permissions list on the single endpoint", func() {
			rec := do(http.MethodPost, "/assign", `{"user_id":1,"permissions":["view","change"],"content_type":"document","object_id":"42"}`)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(svc.assigned).To(BeEmpty())
		})

		It("rejects naming both a user and a role", func() {
			rec := do(http.MethodPost, "/assign", `{"user_id":1,"role_id":10,"permission":"view","content_type":"document","object_id":"42"}`)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("requires a target", func() {
			rec := do(http.MethodPost, "/assign", `{"user_id":1,"permission":"view"}`)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(errorCode(rec)).To(Equal(string(internal.ErrCodeInvalidTarget)))
		})
	})

	It("passes the whole list through the bulk endpoint", func() {
		rec := do(http.MethodPost, "/assign-bulk", `{"user_id":2,"permissions":["view","change"],"content_type":"document","object_id":"42"}`)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(svc.assigned[0].perms).To(Equal([]string{"view", "change"}))
	})

	It("revokes through the same resolution", func() {
		rec := do(http.MethodPost, "/revoke", `{"user_id":1,"permission":"view","content_type":"document","object_id":"42"}`)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(svc.revoked).To(HaveLen(1))
	})

	Describe("Check", func() {
		It("requires a permission", func() {
			rec := do(http.MethodPost, "/check", `{"user_id":1,"content_type":"document","object_id":"42"}`)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(svc.checked).To(BeEmpty())
		})

		It("answers with the service decision", func() {
			svc.has = true
			rec := do(http.MethodPost, "/check", `{"user_id":1,"permission":"view","content_type":"document","object_id":"42"}`)

			Expect(rec.Code).To(Equal(http.StatusOK))
			var body permission.CheckResponse
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body.HasPermission).To(BeTrue())
			Expect(svc.checked).To(Equal("view"))
		})
	})

	Describe("UserObjectPermissions", func() {
		It("lists the user's permissions on the object", func() {
			svc.listed = []string{"change", "view"}
			rec := do(http.MethodGet, "/users/1/objects/document/42", "")

			Expect(rec.Code).To(Equal(http.StatusOK))
			var body permission.ObjectPermissionsResponse
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body.UserID).To(Equal(int64(1)))
			Expect(body.ContentType).To(Equal("document"))
			Expect(body.ObjectID).To(Equal("42"))
			Expect(body.Permissions).To(Equal([]string{"change", "view"}))
		})

		It("returns 404 for an unknown user or object", func() {
			Expect(do(http.MethodGet, "/users/99/objects/document/42", "").Code).To(Equal(http.StatusNotFound))
			Expect(do(http.MethodGet, "/users/1/objects/document/7", "").Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("roles", func() {
		It("maps a duplicate name to 409", func() {
			svc.createErr = internal.ErrRoleExists
			rec := do(http.MethodPost, "/roles", `{"name":"Editors"}`)

			Expect(rec.Code).To(Equal(http.StatusConflict))
			Expect(errorCode(rec)).To(Equal(string(internal.ErrCodeRoleExists)))
		})

		It("maps a missing role to 404", func() {
			Expect(do(http.MethodGet, "/roles/5", "").Code).To(Equal(http.StatusNotFound))
		})

		It("checks the member exists before changing membership", func() {
			rec := do(http.MethodPost, "/roles/members", `{"user_id":99,"role_id":10}`)

			Expect(rec.Code).To(Equal(http.StatusNotFound))
			Expect(errorCode(rec)).To(Equal(string(internal.ErrCodeUserNotFound)))
		})
	})
})
