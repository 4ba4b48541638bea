package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/William-Pardo/tudojang-sub002/core"
	"github.com/William-Pardo/tudojang-sub002/core/tenant"
	"github.com/William-Pardo/tudojang-sub002/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp        = errors.New("help provided")
	errNoPassword  = errors.New("a password is required")
	errNoSQLEngine = errors.New("the admin commands need a SQL storage engine (postgres or sqlite)")
)

type commandLine struct {
	conf      *core.Config
	db        *sqlx.DB
	usrRepo   user.Repository
	tenantSvc *tenant.Service
	validate  *validator.Validate
	out       io.Writer
}

func (cli *commandLine) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Tudojang administration commands",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}
	root.SetOut(cli.out)
	root.SetErr(cli.out)

	root.AddCommand(
		cli.migrateCommand(),
		cli.addUserCommand(),
		cli.resetPasswordCommand(),
		cli.seedCommand(),
		cli.repairSitesCommand(),
	)
	return root
}

// run executes the command line `args` (program name included).
func (cli *commandLine) run(args []string) error {
	root := cli.rootCommand()
	root.SetArgs(args[1:])
	return root.Execute()
}

// readPassword prompts for a password without echoing it.
func (cli *commandLine) readPassword() (string, error) {
	_, _ = fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	_, _ = fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		return "", errNoPassword
	}
	return string(pwd), nil
}

func (cli *commandLine) tenantBySlug(ctx context.Context, slug string) (tenant.Tenant, error) {
	if slug == "" {
		slug = cli.conf.Tenancy.DefaultTenant
	}
	return cli.tenantSvc.GetBySlug(ctx, slug)
}
