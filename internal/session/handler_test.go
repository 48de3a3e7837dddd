package session_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/frahmantamala/access-management/internal"
	"github.com/frahmantamala/access-management/internal/session"
	"github.com/frahmantamala/access-management/internal/transport"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeSessionService struct {
	revokedKey string
	exceptKey  string
	revokeErr  error
}

func (f *fakeSessionService) ListSessions(_ context.Context, _ int64, _ bool, currentKey string) ([]session.View, error) {
	return []session.View{{SessionKey: "current", IsCurrent: currentKey == "current"}}, nil
}

func (f *fakeSessionService) RevokeSession(_ context.Context, _ int64, key string) error {
	f.revokedKey = key
	return f.revokeErr
}

func (f *fakeSessionService) RevokeAllSessions(_ context.Context, _ int64, exceptKey string) (int64, error) {
	f.exceptKey = exceptKey
	return 2, nil
}

var _ = Describe("Session Handler", func() {
	var (
		svc    *fakeSessionService
		router chi.Router
	)

	authed := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := internal.ContextWithUser(r.Context(), &internal.CurrentUser{ID: 1, Email: "alice@example.com"})
			ctx = internal.ContextWithSessionKey(ctx, "current")
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}

	BeforeEach(func() {
		svc = &fakeSessionService{}
		h := session.NewHandler(transport.NewBaseHandler(quietLogger()), svc)
		router = chi.NewRouter()
		router.Use(authed)
		router.Get("/security/sessions", h.ListSessions)
		router.Delete("/security/sessions/{key}", h.RevokeSession)
		router.Post("/security/sessions/revoke-all", h.RevokeAll)
	})

	It("marks the current session in the listing", func() {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/security/sessions", nil))

		Expect(rec.Code).To(Equal(http.StatusOK))
		var body session.SessionsResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body.Sessions).To(HaveLen(1))
		Expect(body.Sessions[0].IsCurrent).To(BeTrue())
	})

	It("refuses to revoke the current session", func() {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/security/sessions/current", nil))

		Expect(rec.Code).To(Equal(http.StatusForbidden))
		Expect(rec.Body.String()).To(ContainSubstring(string(internal.ErrCodeCurrentSession)))
		Expect(svc.revokedKey).To(BeEmpty())
	})

	It("revokes another session", func() {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/security/sessions/other", nil))

		Expect(rec.Code).To(Equal(http.StatusNoContent))
		Expect(svc.revokedKey).To(Equal("other"))
	})

	It("maps service errors to status codes", func() {
		svc.revokeErr = internal.ErrSessionNotOwned
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/security/sessions/other", nil))
		Expect(rec.Code).To(Equal(http.StatusForbidden))

		svc.revokeErr = internal.ErrSessionNotFound
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/security/sessions/other", nil))
		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("keeps the current session on revoke-all by default", func() {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/security/sessions/revoke-all", nil))

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(svc.exceptKey).To(Equal("current"))
		Expect(rec.Body.String()).To(ContainSubstring(`"revoked":2`))
	})

	It("revokes the current session too when keep_current is false", func() {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/security/sessions/revoke-all", strings.NewReader(`{"keep_current":false}`))
		router.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(svc.exceptKey).To(BeEmpty())
	})
})
