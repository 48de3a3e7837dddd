package adminguard_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/frahmantamala/access-management/internal"
	"github.com/frahmantamala/access-management/internal/adminguard"
	"github.com/frahmantamala/access-management/internal/transport"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeAllowList struct {
	entries    map[string]*adminguard.Entry
	addedBy    *int64
	activeOnly *bool
}

func (f *fakeAllowList) AddEntry(_ context.Context, ip, description string, addedBy *int64) (*adminguard.Entry, error) {
	if _, ok := f.entries[ip]; ok {
		return nil, internal.ErrAllowEntryExists
	}
	f.addedBy = addedBy
	e := &adminguard.Entry{IPAddress: ip, Description: description, IsActive: true, AddedBy: addedBy}
	f.entries[ip] = e
	return e, nil
}

func (f *fakeAllowList) RemoveEntry(_ context.Context, ip string) error {
	if _, ok := f.entries[ip]; !ok {
		return internal.ErrAllowEntryNotFound
	}
	delete(f.entries, ip)
	return nil
}

func (f *fakeAllowList) ToggleEntry(_ context.Context, ip string, active bool) (*adminguard.Entry, error) {
	e, ok := f.entries[ip]
	if !ok {
		return nil, internal.ErrAllowEntryNotFound
	}
	e.IsActive = active
	return e, nil
}

func (f *fakeAllowList) ListEntries(_ context.Context, activeOnly bool) ([]*adminguard.Entry, error) {
	f.activeOnly = &activeOnly
	out := make([]*adminguard.Entry, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e)
	}
	return out, nil
}

var _ = Describe("AllowList Handler", func() {
	var (
		svc    *fakeAllowList
		router chi.Router
	)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		ctx := internal.ContextWithUser(req.Context(), &internal.CurrentUser{ID: 7, Email: "root@example.com", IsAdmin: true})
		router.ServeHTTP(rec, req.WithContext(ctx))
		return rec
	}

	BeforeEach(func() {
		svc = &fakeAllowList{entries: map[string]*adminguard.Entry{
			"10.0.0.1":    {IPAddress: "10.0.0.1", IsActive: true},
			"2001:db8::1": {IPAddress: "2001:db8::1", IsActive: true},
		}}
		h := adminguard.NewHandler(transport.NewBaseHandler(quietLogger()), svc)
		router = chi.NewRouter()
		router.Get("/ip-allowlist", h.ListEntries)
		router.Post("/ip-allowlist", h.AddEntry)
		router.Delete("/ip-allowlist/{ip}", h.RemoveEntry)
		router.Patch("/ip-allowlist/{ip}", h.ToggleEntry)
	})

	Describe("ListEntries", func() {
		It("lists active entries by default", func() {
			rec := do(http.MethodGet, "/ip-allowlist", "")

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(*svc.activeOnly).To(BeTrue())
			var body adminguard.EntriesResponse
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Entries).To(HaveLen(2))
		})

		It("honours active_only=false", func() {
			Expect(do(http.MethodGet, "/ip-allowlist?active_only=false", "").Code).To(Equal(http.StatusOK))
			Expect(*svc.activeOnly).To(BeFalse())
		})
	})

	Describe("AddEntry", func() {
		It("records the caller as the creator and returns 201", func() {
			rec := do(http.MethodPost, "/ip-allowlist", `{"ip_address":"192.0.2.9","description":"office"}`)

			Expect(rec.Code).To(Equal(http.StatusCreated))
			Expect(svc.addedBy).NotTo(BeNil())
			Expect(*svc.addedBy).To(Equal(int64(7)))
		})

		It("maps a duplicate to 409", func() {
			rec := do(http.MethodPost, "/ip-allowlist", `{"ip_address":"10.0.0.1"}`)

			Expect(rec.Code).To(Equal(http.StatusConflict))
			Expect(rec.Body.String()).To(ContainSubstring(string(internal.ErrCodeAllowEntryExists)))
		})
	})

	Describe("RemoveEntry", func() {
		It("returns 204 for a listed address", func() {
			Expect(do(http.MethodDelete, "/ip-allowlist/10.0.0.1", "").Code).To(Equal(http.StatusNoContent))
			Expect(svc.entries).NotTo(HaveKey("10.0.0.1"))
		})

		It("unescapes IPv6 addresses from the path", func() {
			Expect(do(http.MethodDelete, "/ip-allowlist/2001%3Adb8%3A%3A1", "").Code).To(Equal(http.StatusNoContent))
			Expect(svc.entries).NotTo(HaveKey("2001:db8::1"))
		})

		It("maps an unknown address to 404", func() {
			rec := do(http.MethodDelete, "/ip-allowlist/192.0.2.200", "")

			Expect(rec.Code).To(Equal(http.StatusNotFound))
			Expect(rec.Body.String()).To(ContainSubstring(string(internal.ErrCodeAllowEntryNotFound)))
		})
	})

	Describe("ToggleEntry", func() {
		It("updates the active flag", func() {
			rec := do(http.MethodPatch, "/ip-allowlist/10.0.0.1", `{"is_active":false}`)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(svc.entries["10.0.0.1"].IsActive).To(BeFalse())
		})

		It("requires is_active", func() {
			rec := do(http.MethodPatch, "/ip-allowlist/10.0.0.1", `{}`)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(svc.entries["10.0.0.1"].IsActive).To(BeTrue())
		})

		It("maps an unknown address to 404", func() {
			Expect(do(http.MethodPatch, "/ip-allowlist/192.0.2.200", `{"is_active":true}`).Code).To(Equal(http.StatusNotFound))
		})
	})
})
