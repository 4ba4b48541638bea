package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/William-Pardo/tudojang-sub002/core"
	"github.com/William-Pardo/tudojang-sub002/core/tenant"
	"github.com/William-Pardo/tudojang-sub002/core/user"
	dummydb "github.com/William-Pardo/tudojang-sub002/storage/database/dummy"
	testutil "github.com/William-Pardo/tudojang-sub002/tests"
)

var (
	usrRepo    user.Repository
	tenantRepo tenant.Repository
	dflTenant  tenant.Tenant
)

func setup(t *testing.T) *commandLine {
	conf := testutil.NewConfig()

	// set up DB & repos
	db, _ := dummydb.Open()
	usrRepo = dummydb.NewUserRepository(db)
	tenantRepo = dummydb.NewTenantRepository(db)
	dflTenant = testutil.CreateTenant(t, tenantRepo, testutil.DefaultTenant, "Club Demo")

	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)

	// start CLI
	return &commandLine{
		conf:      conf,
		usrRepo:   usrRepo,
		tenantSvc: tenant.NewService(tenantRepo, conf),
		validate:  validate,
		out:       new(bytes.Buffer),
	}
}

func mockPassword(pwd string) {
	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte(pwd), nil
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func runCLI(t *testing.T, cli *commandLine, tt cliTest) error {
	t.Helper()
	err := cli.run(append([]string{"admin"}, tt.args...))
	switch {
	case tt.wantErr != nil:
		if errors.Cause(err) != tt.wantErr {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	case tt.wantErrStr != "":
		if err == nil || err.Error() != tt.wantErrStr {
			t.Errorf("cli.run() error = %v, wantErrStr %s", err, tt.wantErrStr)
		}
	case err != nil:
		t.Errorf("cli.run() unexpected error = %v", err)
	}
	return err
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	var ran []string
	migrateFunc = func(db *sqlx.DB, engine, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		ran = append(ran, command)
		return nil
	}

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_ = runCLI(t, cli, tt)
		})
	}
	assert.Equal(t, []string{"up", "up-by-one", "up-to", "down", "down-to", "redo", "reset", "status", "version"}, ran)
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	existing := testutil.CreateUser(t, usrRepo, dflTenant.ID, "Instructor", "profe@test.co", "Old-pwd-123", []string{user.RoleInstructor}, false)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no email", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "--email", "new@test.co"}, extra: extra{}, wantErr: errNoPassword},
		{name: "unknown tenant", args: []string{"adduser", "--email", "new@test.co", "--tenant", "lol"}, extra: extra{pwd: "lol"}, wantErr: tenant.ErrNotFound},
		{name: "create", args: []string{"adduser", "--email", "New@Test.co", "--name", "Nuevo", "--admin"}, extra: extra{pwd: "lol"}},
		{name: "update existing", args: []string{"adduser", "--email", existing.Email}, extra: extra{pwd: "New-pwd-456"}},
	}
	for _, tt := range tests {
		pwd := ""
		if e, ok := tt.extra.(extra); ok {
			pwd = e.pwd
		}
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			_ = runCLI(t, cli, tt)
		})
	}

	created, err := usrRepo.GetUserByEmail(ctx, dflTenant.ID, "new@test.co")
	require.NoError(t, err)
	assert.Equal(t, "Nuevo", created.Name)
	assert.True(t, created.IsActive)
	assert.ElementsMatch(t, user.AllRoles, created.Roles)
	assert.NoError(t, created.CheckPassword("lol"))

	updated, err := usrRepo.GetUserByID(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "Instructor", updated.Name)
	assert.True(t, updated.IsActive)
	assert.Equal(t, []string{user.RoleInstructor}, updated.Roles)
	assert.NoError(t, updated.CheckPassword("New-pwd-456"))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr := testutil.CreateUser(t, usrRepo, dflTenant.ID, "User", "awe@test.co", "mdr", nil, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "--email", "lol"}, wantErr: errNoPassword},
		{name: "user not found", args: []string{"resetpassword", "--email", "lol"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset with email", args: []string{"resetpassword", "--email", usr.Email}, extra: extra{pwd: "lmao"}},
		{name: "reset with tenant & email", args: []string{"resetpassword", "--tenant", dflTenant.Slug, "--email", "AWE@test.co"}, extra: extra{pwd: "rofl"}},
	}
	for _, tt := range tests {
		pwd := ""
		if e, ok := tt.extra.(extra); ok {
			pwd = e.pwd
		}
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			if err := runCLI(t, cli, tt); err == nil {
				refreshedUsr, err := usrRepo.GetUserByID(context.Background(), usr.ID)
				if err != nil {
					t.Fatalf("GetUserByID() failed, %v", err)
				}
				if bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash) {
					t.Error("failed to update new password")
				}
				if err := refreshedUsr.CheckPassword(pwd); err != nil {
					t.Errorf("CheckPassword() error = %v", err)
				}
			}
		})
	}
}

const seedTOML = `
[[tenants]]
slug = "norte"
name = "Club Norte"
primary_color = "#123456"

  [[tenants.sites]]
  name = "Sede Principal"
  address = "Calle 1 # 2-3"

  [[tenants.sites]]
  name = "Sede Sur"

[[tenants]]
slug = "demo"
name = "Club Demo (again)"
`

func Test_commandLine_seed(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "tenants.toml")
	require.NoError(t, os.WriteFile(path, []byte(seedTOML), 0o600))

	badPath := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(badPath, []byte("[[tenants]]\nslug = \"bad slug!\"\nname = \"\"\n"), 0o600))

	tests := []cliTest{
		{name: "no file", args: []string{"seed"}, wantErr: errHelp},
		{name: "invalid tenant", args: []string{"seed", "--file", badPath}, extra: "invalid"},
		{name: "seed", args: []string{"seed", "--file", path}},
		{name: "seed again", args: []string{"seed", "--file", path}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.extra == "invalid" {
				err := cli.run(append([]string{"admin"}, tt.args...))
				assert.Error(t, err)
				return
			}
			_ = runCLI(t, cli, tt)
		})
	}

	norte, err := tenantRepo.GetTenantBySlug(ctx, "norte")
	require.NoError(t, err)
	assert.Equal(t, "Club Norte", norte.Name)
	assert.Equal(t, "#123456", norte.Branding.PrimaryColor)

	sites, err := tenantRepo.QuerySites(ctx, norte.ID)
	require.NoError(t, err)
	assert.Len(t, sites, 2)

	demo, err := tenantRepo.GetTenantBySlug(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, "Club Demo", demo.Name, "existing tenants are left untouched")
}

func Test_commandLine_repairSites(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	keep := testutil.CreateSite(t, tenantRepo, dflTenant.ID, "Sede Centro", base)
	testutil.CreateSite(t, tenantRepo, dflTenant.ID, "sede centro ", base.Add(time.Minute))
	testutil.CreateSite(t, tenantRepo, dflTenant.ID, "  ", base.Add(2*time.Minute))

	tests := []cliTest{
		{name: "unknown tenant", args: []string{"repair-sites", "--tenant", "lol"}, wantErr: tenant.ErrNotFound},
		{name: "repair", args: []string{"repair-sites"}},
		{name: "nothing left to repair", args: []string{"repair-sites", "--tenant", dflTenant.Slug}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_ = runCLI(t, cli, tt)
		})
	}

	sites, err := tenantRepo.QuerySites(ctx, dflTenant.ID)
	require.NoError(t, err)
	if assert.Len(t, sites, 1) {
		assert.Equal(t, keep.ID, sites[0].ID)
	}
}
