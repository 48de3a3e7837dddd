package adminguard_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/frahmantamala/access-management/internal/adminguard"
	"github.com/frahmantamala/access-management/internal/transport"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeChecker struct {
	allowed map[string]bool
	err     error
	seen    []string
}

func (f *fakeChecker) IsIPAllowed(_ context.Context, ip string) (bool, error) {
	f.seen = append(f.seen, ip)
	if f.err != nil {
		return false, f.err
	}
	return f.allowed[ip], nil
}

var _ = Describe("Guard", func() {
	var (
		checker *fakeChecker
		handler http.Handler
	)

	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	serve := func(path, remoteAddr, xff string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = remoteAddr
		if xff != "" {
			req.Header.Set("X-Forwarded-For", xff)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	BeforeEach(func() {
		checker = &fakeChecker{allowed: map[string]bool{"10.0.0.1": true}}
		handler = adminguard.NewGuard(transport.NewBaseHandler(quietLogger()), checker, "/admin", true).Middleware(ok)
	})

	It("passes paths outside the admin prefix without a lookup", func() {
		rec := serve("/api/v1/sessions", "192.0.2.1:5555", "")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(checker.seen).To(BeEmpty())
	})

	It("admits an allowed remote address", func() {
		rec := serve("/admin/ip-allowlist", "10.0.0.1:5555", "")
		Expect(rec.Code).To(Equal(http.StatusOK))
	})

	It("denies other addresses with 403", func() {
		rec := serve("/admin/ip-allowlist", "192.0.2.1:5555", "")
		Expect(rec.Code).To(Equal(http.StatusForbidden))
		Expect(rec.Body.String()).To(MatchJSON(`{"code":403,"message":"access denied"}`))
	})

	It("prefers the first forwarded address", func() {
		rec := serve("/admin", "192.0.2.1:5555", " 10.0.0.1 , 192.0.2.50")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(checker.seen).To(Equal([]string{"10.0.0.1"}))
	})

	It("fails closed when the lookup errors", func() {
		checker.err = errors.New("db down")
		rec := serve("/admin/roles", "10.0.0.1:5555", "")
		Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		Expect(rec.Body.String()).To(MatchJSON(`{"code":500,"message":"internal server error"}`))
	})

	It("does nothing when disabled", func() {
		handler = adminguard.NewGuard(transport.NewBaseHandler(quietLogger()), checker, "/admin", false).Middleware(ok)
		rec := serve("/admin/roles", "192.0.2.1:5555", "")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(checker.seen).To(BeEmpty())
	})
})

var _ = Describe("ClientIP", func() {
	It("falls back to RemoteAddr when it has no port", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "198.51.100.4"
		Expect(adminguard.ClientIP(req)).To(Equal("198.51.100.4"))
	})

	It("strips the port from IPv6 remote addresses", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "[2001:db8::1]:443"
		Expect(adminguard.ClientIP(req)).To(Equal("2001:db8::1"))
	})
})
