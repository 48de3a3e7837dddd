package permission_test

import (
	"context"
	"errors"

	"github.com/frahmantamala/access-management/internal"
	userDatamodel "github.com/frahmantamala/access-management/internal/core/datamodel/user"
	"github.com/frahmantamala/access-management/internal/permission"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Registry", func() {
	var (
		ctx      context.Context
		registry *permission.Registry
	)

	BeforeEach(func() {
		ctx = context.Background()
		gormDB := newTestDB()
		Expect(gormDB.Create(&userDatamodel.User{Email: "alice@example.com", Name: "Alice", PasswordHash: "x", IsActive: true}).Error).To(Succeed())

		registry = permission.NewRegistry()
		registry.Register("user", permission.TableResolver(gormDB, "users", ""))
		registry.Register("invoice", func(_ context.Context, id string) (bool, error) {
			return id == "42", nil
		})
	})

	It("resolves existing objects", func() {
		target, err := registry.Resolve(ctx, "user", "1")
		Expect(err).NotTo(HaveOccurred())
		Expect(target).To(Equal(permission.Target{Type: "user", ID: "1"}))

		target, err = registry.Resolve(ctx, "invoice", "42")
		Expect(err).NotTo(HaveOccurred())
		Expect(target.String()).To(Equal("invoice:42"))
	})

	It("returns NotFound for missing objects and unknown types", func() {
		_, err := registry.Resolve(ctx, "user", "2")
		Expect(errors.Is(err, internal.ErrTargetNotFound)).To(BeTrue())

		_, err = registry.Resolve(ctx, "report", "1")
		Expect(errors.Is(err, internal.ErrTargetNotFound)).To(BeTrue())
	})

	It("propagates resolver failures", func() {
		registry.Register("broken", func(context.Context, string) (bool, error) {
			return false, errors.New("db down")
		})
		_, err := registry.Resolve(ctx, "broken", "1")
		Expect(err).To(HaveOccurred())
		Expect(internal.IsType(err, internal.ErrorTypeNotFound)).To(BeFalse())
	})

	It("lists registered types in order", func() {
		Expect(registry.Types()).To(Equal([]string{"invoice", "user"}))
	})
})

var _ = Describe("SplitPermissionName", func() {
	It("splits on the last dot", func() {
		typ, code := permission.SplitPermissionName("billing.invoice.view")
		Expect(typ).To(Equal("billing.invoice"))
		Expect(code).To(Equal("view"))
	})

	It("leaves bare codenames untyped", func() {
		typ, code := permission.SplitPermissionName("view")
		Expect(typ).To(BeEmpty())
		Expect(code).To(Equal("view"))
	})
})
