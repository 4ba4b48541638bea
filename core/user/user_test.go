package user_test

import (
	"context"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/William-Pardo/tudojang-sub002/core"
	"github.com/William-Pardo/tudojang-sub002/core/user"
	dummydb "github.com/William-Pardo/tudojang-sub002/storage/database/dummy"
	testutil "github.com/William-Pardo/tudojang-sub002/tests"
)

func newValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.RegisterValidators(validate, translator)
	return validate, translator
}

func TestNewUser_Validate(t *testing.T) {
	validate, translator := newValidator()

	tests := []struct {
		name     string
		nu       user.NewUser
		wantTag  string
		wantText string
	}{
		{name: "blank", nu: user.NewUser{}, wantTag: "required", wantText: "this field is required"},
		{name: "bad email", nu: user.NewUser{Name: "Ana", Email: "lol", Password: "Tudojang-2024!x", PasswordConfirm: "Tudojang-2024!x"}, wantTag: "email"},
		{name: "passwords differ", nu: user.NewUser{Name: "Ana", Email: "ana@test.co", Password: "Tudojang-2024!x", PasswordConfirm: "x"}, wantTag: "eqfield"},
		{name: "unknown role", nu: user.NewUser{Name: "Ana", Email: "ana@test.co", Password: "Tudojang-2024!x", PasswordConfirm: "Tudojang-2024!x", Roles: []string{"lol"}}, wantTag: "allroles", wantText: "invalid roles"},
		{name: "too short", nu: user.NewUser{Name: "Ana", Email: "ana@test.co", Password: "Ab1!", PasswordConfirm: "Ab1!"}, wantTag: "pwdminlen"},
		{name: "whitespace", nu: user.NewUser{Name: "Ana", Email: "ana@test.co", Password: "Abc 12345!", PasswordConfirm: "Abc 12345!"}, wantTag: "pwdnospace"},
		{name: "all numeric", nu: user.NewUser{Name: "Ana", Email: "ana@test.co", Password: "123456789", PasswordConfirm: "123456789"}, wantTag: "pwdnotallnum"},
		{name: "too simple", nu: user.NewUser{Name: "Ana", Email: "ana@test.co", Password: "abcdefgh1", PasswordConfirm: "abcdefgh1"}, wantTag: "pwdcplx"},
		{name: "similar to name", nu: user.NewUser{Name: "Ana Gomez", Email: "x@test.co", Password: "AnaGomez1!", PasswordConfirm: "AnaGomez1!"}, wantTag: "pwdtoosim"},
		{name: "common", nu: user.NewUser{Name: "Ana", Email: "ana@test.co", Password: "Colombia1!", PasswordConfirm: "Colombia1!"}, wantTag: "pwdnocommon", wantText: "password is too common"},
		{name: "ok", nu: user.NewUser{Name: " Ana ", Email: " ANA@test.co", Password: "Tudojang-2024!x", PasswordConfirm: "Tudojang-2024!x", Roles: []string{user.RoleInstructor}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nu.Validate(validate)
			if tt.wantTag == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			var vErrs validator.ValidationErrors
			if !errors.As(err, &vErrs) || len(vErrs) == 0 {
				t.Fatalf("Validate() error = %v, want validator.ValidationErrors", err)
			}
			assert.Equal(t, tt.wantTag, vErrs[0].Tag())
			if tt.wantText != "" {
				assert.Equal(t, tt.wantText, vErrs[0].Translate(translator))
			}
		})
	}
}

func TestService(t *testing.T) {
	ctx := context.Background()
	db, _ := dummydb.Open()
	repo := dummydb.NewUserRepository(db)
	svc := user.NewService(repo)
	tenantID := "t1"

	usr, err := svc.Create(ctx, tenantID, user.NewUser{Name: "Ana", Email: "ana@test.co", Password: "Tudojang-2024!x", Roles: []string{user.RoleAdmin}})
	require.NoError(t, err)
	assert.True(t, usr.IsActive)
	assert.True(t, usr.IsAdmin())
	assert.True(t, usr.IsStaff())

	t.Run("email unique per tenant", func(t *testing.T) {
		_, err := svc.Create(ctx, tenantID, user.NewUser{Name: "Ana 2", Email: "ana@test.co", Password: "x"})
		assert.True(t, core.IsValidation(err))
		_, err = svc.Create(ctx, "t2", user.NewUser{Name: "Ana 2", Email: "ana@test.co", Password: "Tudojang-2024!x"})
		assert.NoError(t, err)
	})

	t.Run("login", func(t *testing.T) {
		tests := []struct {
			name    string
			email   string
			pwd     string
			wantErr error
		}{
			{name: "unknown email", email: "lol@test.co", pwd: "Tudojang-2024!x", wantErr: user.ErrInvalidCredentials},
			{name: "wrong password", email: "ana@test.co", pwd: "lol", wantErr: user.ErrInvalidCredentials},
			{name: "ok", email: " ANA@test.co ", pwd: "Tudojang-2024!x"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := svc.Login(ctx, tenantID, tt.email, tt.pwd)
				if errors.Cause(err) != tt.wantErr {
					t.Fatalf("Login() error = %v, wantErr %v", err, tt.wantErr)
				}
				if err == nil {
					assert.Equal(t, usr.ID, got.ID)
					assert.False(t, got.LastLogin.IsZero())
				}
			})
		}
	})

	t.Run("inactive users cannot log in", func(t *testing.T) {
		off := false
		inactive := testutil.CreateUser(t, repo, tenantID, "Luis", "luis@test.co", "Tudojang-2024!x", nil, true)
		_, err := svc.Update(ctx, inactive, user.UpdateUser{Name: inactive.Name, Email: inactive.Email, IsActive: &off})
		require.NoError(t, err)
		_, err = svc.Login(ctx, tenantID, "luis@test.co", "Tudojang-2024!x")
		assert.Equal(t, user.ErrInvalidCredentials, errors.Cause(err))
	})

	t.Run("update", func(t *testing.T) {
		other := testutil.CreateUser(t, repo, tenantID, "Eva", "eva@test.co", "", nil, true)
		_, err := svc.Update(ctx, other, user.UpdateUser{Name: "Eva", Email: "ana@test.co"})
		assert.True(t, core.IsValidation(err), "email taken")

		updated, err := svc.Update(ctx, other, user.UpdateUser{Name: "Eva María", Email: "eva@test.co", Password: "Nuevo-pwd-2024", Roles: []string{user.RoleInstructor}})
		require.NoError(t, err)
		assert.Equal(t, "Eva María", updated.Name)
		assert.True(t, updated.IsInstructor())
		assert.NoError(t, updated.CheckPassword("Nuevo-pwd-2024"))
	})

	t.Run("delete", func(t *testing.T) {
		gone := testutil.CreateUser(t, repo, tenantID, "Gone", "gone@test.co", "", nil, true)
		require.NoError(t, svc.Delete(ctx, tenantID, gone.ID))
		_, err := svc.GetByID(ctx, gone.ID)
		assert.True(t, core.IsNotFound(err))
	})
}

func TestMaxRolePriority(t *testing.T) {
	assert.Equal(t, 0, user.MaxRolePriority(nil))
	assert.Greater(t, user.MaxRolePriority([]string{user.RoleAdminOwner}), user.MaxRolePriority([]string{user.RoleAdmin, user.RoleStudent}))
	assert.Greater(t, user.MaxRolePriority([]string{user.RoleInstructor}), user.MaxRolePriority(user.StudentRoles))
}
