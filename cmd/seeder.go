package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/frahmantamala/access-management/internal"
	"github.com/frahmantamala/access-management/internal/permission"
	"github.com/frahmantamala/access-management/internal/user"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with an administrator, a member and default roles for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		deps, err := initializeDependencies()
		if err != nil {
			log.Fatalf("failed to init dependencies: %v", err)
		}
		defer deps.Close()

		ctx := context.Background()
		password := "password"

		admin := ensureUser(ctx, deps.User, "padil@mail.com", "Padil Admin", password, true)
		member := ensureUser(ctx, deps.User, "fadhil@mail.com", "Fadhil", password, false)

		// members may view and change their own account object
		for _, u := range []*user.User{admin, member} {
			target := permission.Target{Type: permission.UserTargetType, ID: strconv.FormatInt(u.ID, 10)}
			if err := deps.Permission.AssignPermissionsBulk(ctx, permission.UserSubject(u.ID), []string{"view_user", "change_user"}, target); err != nil {
				log.Fatalf("failed to grant self permissions to %s: %v", u.Email, err)
			}
		}

		roles := []struct {
			Name        string
			Permissions []string
			Members     []*user.User
		}{
			{"Administrators", []string{"user.view_user", "user.change_user"}, []*user.User{admin}},
			{"Members", []string{"user.view_user"}, []*user.User{admin, member}},
		}

		for _, r := range roles {
			role, err := deps.Permission.GetRoleByName(ctx, r.Name)
			if err != nil {
				log.Fatalf("failed to lookup role %s: %v", r.Name, err)
			}
			if role == nil {
				role, err = deps.Permission.CreateRole(ctx, r.Name, r.Permissions)
				if err != nil {
					log.Fatalf("failed to create role %s: %v", r.Name, err)
				}
				fmt.Println("Seeded role:", r.Name)
			}
			for _, m := range r.Members {
				if err := deps.Permission.AddUserToRole(ctx, m.ID, role.ID); err != nil {
					log.Fatalf("failed to add %s to role %s: %v", m.Email, r.Name, err)
				}
			}
		}

		fmt.Println("Seed complete")
	},
}

func ensureUser(ctx context.Context, users *user.Service, email, name, password string, isAdmin bool) *user.User {
	u, err := users.Create(ctx, email, name, password, isAdmin)
	if err == nil {
		fmt.Println("Seeded user:", email)
		return u
	}
	if !errors.Is(err, internal.ErrEmailExists) {
		log.Fatalf("failed to create user %s: %v", email, err)
	}

	u, err = users.GetByEmail(ctx, email)
	if err != nil {
		log.Fatalf("failed to lookup user %s: %v", email, err)
	}
	fmt.Println("user already exists:", email)
	return u
}
