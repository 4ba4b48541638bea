package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/William-Pardo/tudojang-sub002/core"
	"github.com/William-Pardo/tudojang-sub002/core/user"
)

func (cli *commandLine) addUserCommand() *cobra.Command {
	var tenantSlug, name, email string
	var isAdmin bool

	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user, or update the password & roles of an existing one (the password is prompted)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" {
				_ = cmd.Help()
				return errHelp
			}
			pwd, err := cli.readPassword()
			if err != nil {
				return err
			}
			usr, err := cli.addUser(tenantSlug, name, email, pwd, isAdmin)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cli.out, "user %s (%s) saved\n", usr.Email, usr.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&tenantSlug, "tenant", "", "the tenant slug (default tenant if empty)")
	cmd.Flags().StringVar(&name, "name", "", "the user's name")
	cmd.Flags().StringVar(&email, "email", "", "the user's email")
	cmd.Flags().BoolVar(&isAdmin, "admin", false, "grant every role")
	return cmd
}

// addUser updates or creates a user.User
func (cli *commandLine) addUser(tenantSlug, name, email, pwd string, isAdmin bool) (user.User, error) {
	ctx := context.Background()
	name = core.CleanString(name)
	email = core.CleanString(email, true /* lower */)

	t, err := cli.tenantBySlug(ctx, tenantSlug)
	if err != nil {
		return user.User{}, errors.Wrap(err, "finding tenant")
	}

	now := time.Now().UTC()
	usr, err := cli.usrRepo.GetUserByEmail(ctx, t.ID, email)
	exists := err == nil
	if err != nil {
		if !core.IsNotFound(err) {
			return user.User{}, err
		}
		if name == "" {
			name = email
		}
		usr = user.User{
			ID:        uuid.NewString(),
			TenantID:  t.ID,
			Email:     email,
			CreatedAt: now,
		}
	}
	if name != "" {
		usr.Name = name
	}
	if isAdmin {
		usr.Roles = user.AllRoles
	}
	usr.IsActive = true
	usr.UpdatedAt = now
	if err := usr.SetPassword(pwd); err != nil {
		return user.User{}, err
	}

	if exists {
		return cli.usrRepo.UpdateUser(ctx, usr)
	}
	return cli.usrRepo.CreateUser(ctx, usr)
}
