package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/William-Pardo/tudojang-sub002/core"
)

func (cli *commandLine) resetPasswordCommand() *cobra.Command {
	var tenantSlug, email string

	cmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "Reset a user's password (the password is prompted)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" {
				_ = cmd.Help()
				return errHelp
			}
			pwd, err := cli.readPassword()
			if err != nil {
				return err
			}
			return cli.resetPassword(tenantSlug, email, pwd)
		},
	}
	cmd.Flags().StringVar(&tenantSlug, "tenant", "", "the tenant slug (default tenant if empty)")
	cmd.Flags().StringVar(&email, "email", "", "the user's email")
	return cmd
}

func (cli *commandLine) resetPassword(tenantSlug, email, pwd string) error {
	ctx := context.Background()
	t, err := cli.tenantBySlug(ctx, tenantSlug)
	if err != nil {
		return errors.Wrap(err, "finding tenant")
	}
	usr, err := cli.usrRepo.GetUserByEmail(ctx, t.ID, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	if _, err := cli.usrRepo.UpdateUser(ctx, usr); err != nil {
		return err
	}
	return nil
}
