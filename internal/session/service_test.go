package session_test

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/access-management/internal"
	"github.com/frahmantamala/access-management/internal/core/db"
	"github.com/frahmantamala/access-management/internal/session"
	sessionPostgres "github.com/frahmantamala/access-management/internal/session/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const chromeOnWindows = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

var _ = Describe("Session Service", func() {
	var (
		ctx     context.Context
		store   *memoryStore
		service *session.Service
		clock   time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		gormDB := newTestDB()
		store = newMemoryStore()
		clock = time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
		service = session.NewService(
			sessionPostgres.NewSessionRepository(gormDB),
			db.NewTransactionManager(gormDB),
			store,
			nil,
			quietLogger(),
		).WithClock(func() time.Time { return clock })
	})

	Describe("CreateSession", func() {
		It("records device, ip and activity", func() {
			store.put("k1", 1)
			s, err := service.CreateSession(ctx, 1, "k1", "10.0.0.1", chromeOnWindows)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.SessionKey).To(Equal("k1"))
			Expect(s.UserID).To(Equal(int64(1)))
			Expect(s.DeviceInfo).To(Equal("Chrome on Windows"))
			Expect(*s.IPAddress).To(Equal("10.0.0.1"))
			Expect(s.IsActive).To(BeTrue())
			Expect(s.LastActivity.Equal(clock)).To(BeTrue())
		})

		It("mints a web session when no key is given", func() {
			s, err := service.CreateSession(ctx, 1, "", "", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(s.SessionKey).NotTo(BeEmpty())
			Expect(s.IPAddress).To(BeNil())
			Expect(s.DeviceInfo).To(Equal("Unknown Browser on Unknown OS"))

			valid, err := service.IsSessionValid(ctx, s.SessionKey)
			Expect(err).NotTo(HaveOccurred())
			Expect(valid).To(BeTrue())
		})

		It("reactivates and rebinds an existing key", func() {
			_, err := service.CreateSession(ctx, 1, "k1", "10.0.0.1", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(service.RevokeSession(ctx, 1, "k1")).To(Succeed())

			clock = clock.Add(time.Hour)
			s, err := service.CreateSession(ctx, 2, "k1", "10.0.0.2", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(s.UserID).To(Equal(int64(2)))
			Expect(s.IsActive).To(BeTrue())
			Expect(*s.IPAddress).To(Equal("10.0.0.2"))

			views, err := service.ListSessions(ctx, 1, false, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(views).To(BeEmpty())
		})
	})

	Describe("RevokeSession", func() {
		BeforeEach(func() {
			store.put("k1", 1)
			_, err := service.CreateSession(ctx, 1, "k1", "", "")
			Expect(err).NotTo(HaveOccurred())
		})

		It("deactivates the session and drops the web session", func() {
			Expect(service.RevokeSession(ctx, 1, "k1")).To(Succeed())

			s, err := service.GetSession(ctx, "k1")
			Expect(err).NotTo(HaveOccurred())
			Expect(s.IsActive).To(BeFalse())

			valid, err := service.IsSessionValid(ctx, "k1")
			Expect(err).NotTo(HaveOccurred())
			Expect(valid).To(BeFalse())
		})

		It("fails with NotFound for unknown keys", func() {
			err := service.RevokeSession(ctx, 1, "missing")
			Expect(errors.Is(err, internal.ErrSessionNotFound)).To(BeTrue())
		})

		It("refuses to revoke another user's session", func() {
			err := service.RevokeSession(ctx, 2, "k1")
			Expect(errors.Is(err, internal.ErrSessionNotOwned)).To(BeTrue())

			s, err := service.GetSession(ctx, "k1")
			Expect(err).NotTo(HaveOccurred())
			Expect(s.IsActive).To(BeTrue())
		})

		It("still succeeds when the web session cannot be deleted", func() {
			store.deleteErr = errStoreDown
			Expect(service.RevokeSession(ctx, 1, "k1")).To(Succeed())

			s, err := service.GetSession(ctx, "k1")
			Expect(err).NotTo(HaveOccurred())
			Expect(s.IsActive).To(BeFalse())
		})

		It("stops authenticating a revoked session whose web session survived", func() {
			store.deleteErr = errStoreDown
			Expect(service.RevokeSession(ctx, 1, "k1")).To(Succeed())

			valid, err := service.IsSessionValid(ctx, "k1")
			Expect(err).NotTo(HaveOccurred())
			Expect(valid).To(BeFalse())
		})
	})

	Describe("RevokeAllSessions", func() {
		BeforeEach(func() {
			for _, k := range []string{"k1", "k2", "k3"} {
				store.put(k, 1)
				_, err := service.CreateSession(ctx, 1, k, "", "")
				Expect(err).NotTo(HaveOccurred())
			}
			store.put("other", 2)
			_, err := service.CreateSession(ctx, 2, "other", "", "")
			Expect(err).NotTo(HaveOccurred())
		})

		It("keeps the excepted session", func() {
			count, err := service.RevokeAllSessions(ctx, 1, "k2")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(2)))

			views, err := service.ListSessions(ctx, 1, true, "k2")
			Expect(err).NotTo(HaveOccurred())
			Expect(views).To(HaveLen(1))
			Expect(views[0].SessionKey).To(Equal("k2"))
			Expect(views[0].IsCurrent).To(BeTrue())

			valid, err := service.IsSessionValid(ctx, "other")
			Expect(err).NotTo(HaveOccurred())
			Expect(valid).To(BeTrue())
		})

		It("revokes everything without an exception and counts only active sessions", func() {
			Expect(service.RevokeSession(ctx, 1, "k1")).To(Succeed())

			count, err := service.RevokeAllSessions(ctx, 1, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(2)))

			count, err = service.RevokeAllSessions(ctx, 1, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(BeZero())
		})
	})

	Describe("CleanupExpiredSessions", func() {
		const timeout = 7 * 24 * time.Hour

		BeforeEach(func() {
			start := clock
			clock = start.Add(-timeout)
			_, err := service.CreateSession(ctx, 1, "at-cutoff", "", "")
			Expect(err).NotTo(HaveOccurred())

			clock = start.Add(-timeout - time.Second)
			_, err = service.CreateSession(ctx, 1, "past-cutoff", "", "")
			Expect(err).NotTo(HaveOccurred())

			clock = start.Add(-time.Minute)
			_, err = service.CreateSession(ctx, 1, "recent", "", "")
			Expect(err).NotTo(HaveOccurred())

			clock = start
		})

		It("expires only sessions idle strictly longer than the timeout", func() {
			count, err := service.CleanupExpiredSessions(ctx, timeout)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(1)))

			expired, err := service.GetSession(ctx, "past-cutoff")
			Expect(err).NotTo(HaveOccurred())
			Expect(expired.IsActive).To(BeFalse())

			boundary, err := service.GetSession(ctx, "at-cutoff")
			Expect(err).NotTo(HaveOccurred())
			Expect(boundary.IsActive).To(BeTrue())
		})

		It("is idempotent", func() {
			_, err := service.CleanupExpiredSessions(ctx, timeout)
			Expect(err).NotTo(HaveOccurred())
			count, err := service.CleanupExpiredSessions(ctx, timeout)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(BeZero())
		})
	})

	Describe("ListSessions and Touch", func() {
		It("orders by last activity and refreshes on touch", func() {
			_, err := service.CreateSession(ctx, 1, "old", "", "")
			Expect(err).NotTo(HaveOccurred())
			clock = clock.Add(time.Minute)
			_, err = service.CreateSession(ctx, 1, "new", "", "")
			Expect(err).NotTo(HaveOccurred())

			views, err := service.ListSessions(ctx, 1, true, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(views[0].SessionKey).To(Equal("new"))

			clock = clock.Add(time.Minute)
			Expect(service.Touch(ctx, 1, "old")).To(Succeed())

			views, err = service.ListSessions(ctx, 1, true, "old")
			Expect(err).NotTo(HaveOccurred())
			Expect(views[0].SessionKey).To(Equal("old"))
			Expect(views[0].IsCurrent).To(BeTrue())
			Expect(views[1].IsCurrent).To(BeFalse())
		})

		It("does not touch sessions of other users", func() {
			_, err := service.CreateSession(ctx, 1, "k1", "", "")
			Expect(err).NotTo(HaveOccurred())
			clock = clock.Add(time.Hour)
			Expect(service.Touch(ctx, 2, "k1")).To(Succeed())

			s, err := service.GetSession(ctx, "k1")
			Expect(err).NotTo(HaveOccurred())
			Expect(s.LastActivity.Equal(clock)).To(BeFalse())
		})

		It("includes inactive sessions when asked", func() {
			_, err := service.CreateSession(ctx, 1, "k1", "", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(service.RevokeSession(ctx, 1, "k1")).To(Succeed())

			active, err := service.ListSessions(ctx, 1, true, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(active).To(BeEmpty())

			all, err := service.ListSessions(ctx, 1, false, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))
		})
	})

	Describe("IsSessionValid", func() {
		It("rejects a live web session that has no record", func() {
			store.put("unrecorded", 1)

			valid, err := service.IsSessionValid(ctx, "unrecorded")
			Expect(err).NotTo(HaveOccurred())
			Expect(valid).To(BeFalse())
		})

		It("rejects sessions deactivated by cleanup even if the web session remains", func() {
			store.put("idle", 1)
			_, err := service.CreateSession(ctx, 1, "idle", "", "")
			Expect(err).NotTo(HaveOccurred())

			store.deleteErr = errStoreDown
			clock = clock.Add(8 * 24 * time.Hour)
			_, err = service.CleanupExpiredSessions(ctx, 7*24*time.Hour)
			Expect(err).NotTo(HaveOccurred())

			valid, err := service.IsSessionValid(ctx, "idle")
			Expect(err).NotTo(HaveOccurred())
			Expect(valid).To(BeFalse())
		})
	})

	Describe("Logout", func() {
		It("drops the key even without a session record", func() {
			store.put("orphan", 1)
			Expect(service.Logout(ctx, 1, "orphan")).To(Succeed())

			valid, err := service.IsSessionValid(ctx, "orphan")
			Expect(err).NotTo(HaveOccurred())
			Expect(valid).To(BeFalse())
		})
	})
})

var _ = Describe("DeviceLabel", func() {
	DescribeTable("labels user agents",
		func(ua, expected string) {
			Expect(session.DeviceLabel(ua)).To(Equal(expected))
		},
		Entry("chrome on windows", chromeOnWindows, "Chrome on Windows"),
		Entry("firefox on linux", "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0", "Firefox on Linux"),
		Entry("safari on mac", "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_2) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15", "Safari on macOS"),
		Entry("edge on windows", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36 Edg/120.0", "Edge on Windows"),
		Entry("android reports linux first", "Mozilla/5.0 (Linux; Android 14) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Mobile Safari/537.36", "Chrome on Linux"),
		Entry("ipad without mac marker", "Mozilla/5.0 (iPad; CPU OS 17_2) AppleWebKit/605.1.15 Version/17.2 Safari/604.1", "Safari on iOS"),
		Entry("empty", "", "Unknown Browser on Unknown OS"),
	)
})
