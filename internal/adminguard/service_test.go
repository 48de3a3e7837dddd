package adminguard_test

import (
	"context"
	"errors"
	"strings"

	"github.com/frahmantamala/access-management/internal"
	"github.com/frahmantamala/access-management/internal/adminguard"
	adminguardPostgres "github.com/frahmantamala/access-management/internal/adminguard/postgres"
	allowlistDatamodel "github.com/frahmantamala/access-management/internal/core/datamodel/allowlist"
	"github.com/frahmantamala/access-management/internal/core/db"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

// staleLookupRepo never finds an existing entry, as when a concurrent add
// commits between the lookup and the insert.
type staleLookupRepo struct {
	adminguard.RepositoryAPI
}

func (staleLookupRepo) GetByIP(context.Context, string) (*allowlistDatamodel.AdminIPAllowEntry, error) {
	return nil, nil
}

var _ = Describe("Allow-list Service", func() {
	var (
		ctx     context.Context
		gormDB  *gorm.DB
		service *adminguard.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		gormDB = newTestDB()
		service = adminguard.NewService(
			adminguardPostgres.NewAllowListRepository(gormDB),
			db.NewTransactionManager(gormDB),
			nil,
			quietLogger(),
		)
	})

	Describe("IsIPAllowed", func() {
		It("admits every address while the list has no active entry", func() {
			ok, err := service.IsIPAllowed(ctx, "203.0.113.9")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			ok, err = service.IsIPAllowed(ctx, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
		})

		It("admits only listed addresses once an entry is active", func() {
			_, err := service.AddEntry(ctx, "10.0.0.1", "office", nil)
			Expect(err).NotTo(HaveOccurred())

			ok, err := service.IsIPAllowed(ctx, "10.0.0.1")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			ok, err = service.IsIPAllowed(ctx, "10.0.0.2")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())

			ok, err = service.IsIPAllowed(ctx, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("returns to fail-open once every entry is inactive", func() {
			_, err := service.AddEntry(ctx, "10.0.0.1", "", nil)
			Expect(err).NotTo(HaveOccurred())
			_, err = service.ToggleEntry(ctx, "10.0.0.1", false)
			Expect(err).NotTo(HaveOccurred())

			ok, err := service.IsIPAllowed(ctx, "192.0.2.1")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
		})

		It("does not admit an inactive entry while another is active", func() {
			_, err := service.AddEntry(ctx, "10.0.0.1", "", nil)
			Expect(err).NotTo(HaveOccurred())
			_, err = service.AddEntry(ctx, "10.0.0.2", "", nil)
			Expect(err).NotTo(HaveOccurred())
			_, err = service.ToggleEntry(ctx, "10.0.0.2", false)
			Expect(err).NotTo(HaveOccurred())

			ok, err := service.IsIPAllowed(ctx, "10.0.0.2")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("compares addresses in canonical form", func() {
			_, err := service.AddEntry(ctx, "2001:DB8:0:0::1", "", nil)
			Expect(err).NotTo(HaveOccurred())

			ok, err := service.IsIPAllowed(ctx, "2001:db8::1")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
		})

		It("matches an IPv4-mapped IPv6 client against its IPv4 entry", func() {
			_, err := service.AddEntry(ctx, "10.0.0.1", "", nil)
			Expect(err).NotTo(HaveOccurred())

			ok, err := service.IsIPAllowed(ctx, "::ffff:10.0.0.1")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
		})
	})

	Describe("AddEntry", func() {
		It("reports a conflict when the unique index catches a concurrent duplicate", func() {
			_, err := service.AddEntry(ctx, "10.0.0.1", "", nil)
			Expect(err).NotTo(HaveOccurred())

			racing := adminguard.NewService(
				staleLookupRepo{adminguardPostgres.NewAllowListRepository(gormDB)},
				db.NewTransactionManager(gormDB),
				nil,
				quietLogger(),
			)
			_, err = racing.AddEntry(ctx, "10.0.0.1", "", nil)
			Expect(errors.Is(err, internal.ErrAllowEntryExists)).To(BeTrue())
		})

		It("stores an active entry with its author", func() {
			author := int64(7)
			entry, err := service.AddEntry(ctx, " 192.168.1.10 ", "vpn", &author)
			Expect(err).NotTo(HaveOccurred())
			Expect(entry.IPAddress).To(Equal("192.168.1.10"))
			Expect(entry.IsActive).To(BeTrue())
			Expect(*entry.AddedBy).To(Equal(author))
		})

		It("rejects malformed addresses", func() {
			_, err := service.AddEntry(ctx, "not-an-ip", "", nil)
			Expect(internal.IsType(err, internal.ErrorTypeValidation)).To(BeTrue())
		})

		It("rejects descriptions over 255 characters", func() {
			_, err := service.AddEntry(ctx, "10.0.0.1", strings.Repeat("x", 256), nil)
			Expect(internal.IsType(err, internal.ErrorTypeValidation)).To(BeTrue())
		})

		It("rejects duplicates with a conflict", func() {
			_, err := service.AddEntry(ctx, "10.0.0.1", "", nil)
			Expect(err).NotTo(HaveOccurred())
			_, err = service.AddEntry(ctx, "10.0.0.1", "", nil)
			Expect(errors.Is(err, internal.ErrAllowEntryExists)).To(BeTrue())
		})
	})

	Describe("RemoveEntry and ToggleEntry", func() {
		It("report unknown addresses as not found", func() {
			Expect(errors.Is(service.RemoveEntry(ctx, "10.9.9.9"), internal.ErrAllowEntryNotFound)).To(BeTrue())
			_, err := service.ToggleEntry(ctx, "10.9.9.9", true)
			Expect(errors.Is(err, internal.ErrAllowEntryNotFound)).To(BeTrue())
		})

		It("removes an entry", func() {
			_, err := service.AddEntry(ctx, "10.0.0.1", "", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(service.RemoveEntry(ctx, "10.0.0.1")).To(Succeed())

			entries, err := service.ListEntries(ctx, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(BeEmpty())
		})
	})

	Describe("ListEntries", func() {
		It("filters inactive entries when asked", func() {
			_, err := service.AddEntry(ctx, "10.0.0.1", "", nil)
			Expect(err).NotTo(HaveOccurred())
			_, err = service.AddEntry(ctx, "10.0.0.2", "", nil)
			Expect(err).NotTo(HaveOccurred())
			_, err = service.ToggleEntry(ctx, "10.0.0.2", false)
			Expect(err).NotTo(HaveOccurred())

			all, err := service.ListEntries(ctx, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(2))

			active, err := service.ListEntries(ctx, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(active).To(HaveLen(1))
			Expect(active[0].IPAddress).To(Equal("10.0.0.1"))
		})
	})
})
