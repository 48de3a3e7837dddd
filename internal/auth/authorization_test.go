package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/frahmantamala/access-management/internal"
	"github.com/frahmantamala/access-management/internal/permission"
	"github.com/frahmantamala/access-management/internal/transport"
	"github.com/go-chi/chi"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

type mockChecker struct {
	granted map[string]bool // "<user>:<perm>:<type>:<id>"
	calls   int
}

func (m *mockChecker) HasPermission(_ context.Context, subject permission.Subject, perm string, target permission.Target) (bool, error) {
	m.calls++
	return m.granted[permissionKey(subject.ID, perm, target)], nil
}

func permissionKey(userID int64, perm string, target permission.Target) string {
	return fmt.Sprintf("%d:%s:%s", userID, perm, target)
}

var _ = ginkgo.Describe("Authorization", func() {
	var (
		checker *mockChecker
		authz   *Authorization
	)

	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	serve := func(h http.Handler, path string, current *internal.CurrentUser) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if current != nil {
			req = req.WithContext(internal.ContextWithUser(req.Context(), current))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	ginkgo.BeforeEach(func() {
		checker = &mockChecker{granted: map[string]bool{}}
		authz = NewAuthorization(transport.NewBaseHandler(quietLogger), checker)
	})

	ginkgo.Describe("RequireAdmin", func() {
		ginkgo.It("should admit administrators only", func() {
			h := authz.RequireAdmin(ok)
			gomega.Expect(serve(h, "/admin", &internal.CurrentUser{ID: 1, IsAdmin: true})).To(gomega.Equal(http.StatusOK))
			gomega.Expect(serve(h, "/admin", &internal.CurrentUser{ID: 2})).To(gomega.Equal(http.StatusForbidden))
			gomega.Expect(serve(h, "/admin", nil)).To(gomega.Equal(http.StatusUnauthorized))
		})
	})

	ginkgo.Describe("RequireObjectPermission", func() {
		var router chi.Router

		ginkgo.BeforeEach(func() {
			router = chi.NewRouter()
			router.With(authz.RequireObjectPermission("view", "invoice", "id")).Get("/invoices/{id}", ok)
			checker.granted[permissionKey(2, "view", permission.Target{Type: "invoice", ID: "7"})] = true
		})

		ginkgo.It("should admit a user holding the permission on that object", func() {
			gomega.Expect(serve(router, "/invoices/7", &internal.CurrentUser{ID: 2})).To(gomega.Equal(http.StatusOK))
		})

		ginkgo.It("should deny the same user on another object", func() {
			gomega.Expect(serve(router, "/invoices/8", &internal.CurrentUser{ID: 2})).To(gomega.Equal(http.StatusForbidden))
		})

		ginkgo.It("should let administrators through without a lookup", func() {
			gomega.Expect(serve(router, "/invoices/8", &internal.CurrentUser{ID: 1, IsAdmin: true})).To(gomega.Equal(http.StatusOK))
			gomega.Expect(checker.calls).To(gomega.BeZero())
		})
	})
})
