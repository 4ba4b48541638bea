package tests

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	. "github.com/William-Pardo/tudojang-sub002/apps/api/echo"
	"github.com/William-Pardo/tudojang-sub002/core/user"
	testutil "github.com/William-Pardo/tudojang-sub002/tests"
)

func Test_userApi_login(t *testing.T) {
	e := setup(t)
	norte := testutil.CreateTenant(t, e.tenants, "norte", "Club Norte")
	testutil.CreateUser(t, e.users, norte.ID, "Nora", "nora@test.co", "Tudojang-2024!x", nil, true)
	testutil.CreateUser(t, e.users, e.tenant.ID, "Off", "off@test.co", "Tudojang-2024!x", nil, false)

	authFailed := marshalObj(t, httpErr{Error: "authentication failed"})

	tests := []httpTest{
		{
			name:     "blank",
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, echo.Map{"email": "this field is required", "password": "this field is required"}),
		},
		{
			name:     "wrong password",
			body:     marshalObj(t, LoginRequest{Email: "ana@test.co", Password: "lol"}),
			wantCode: http.StatusBadRequest,
			wantData: authFailed,
		},
		{
			name:     "other tenant",
			body:     marshalObj(t, LoginRequest{Email: "nora@test.co", Password: "Tudojang-2024!x"}),
			wantCode: http.StatusBadRequest,
			wantData: authFailed,
		},
		{
			name:     "deactivated",
			body:     marshalObj(t, LoginRequest{Email: "off@test.co", Password: "Tudojang-2024!x"}),
			wantCode: http.StatusBadRequest,
			wantData: authFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path = http.MethodPost, "/v1/users/login"
			checkCodeAndData(t, tt, e.serve(tt))
		})
	}

	t.Run("ok", func(t *testing.T) {
		tt := httpTest{
			method:   http.MethodPost,
			path:     "/v1/users/login",
			body:     marshalObj(t, LoginRequest{Email: " ANA@test.co", Password: "Tudojang-2024!x"}),
			wantCode: http.StatusOK,
		}
		rec := e.serve(tt)
		checkCode(t, tt, rec)
		var resp LoginResponse
		unmarshalBody(t, rec, &resp)
		if assert.NotEmpty(t, resp.Token) {
			// the token works
			rec = e.serve(httpTest{method: http.MethodGet, path: "/v1/users/me", token: resp.Token})
			assert.Equal(t, http.StatusOK, rec.Code)
		}
	})
}

func Test_userApi_me(t *testing.T) {
	e := setup(t)
	norte := testutil.CreateTenant(t, e.tenants, "norte", "Club Norte")
	nora := testutil.CreateUser(t, e.users, norte.ID, "Nora", "nora@test.co", "", []string{user.RoleAdmin}, true)

	tests := []httpTest{
		{name: "no token", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{
			name:     "token of another tenant",
			token:    getToken(t, e.app, nora),
			wantCode: http.StatusUnauthorized,
			wantData: marshalObj(t, httpErr{Error: "user not authenticated"}),
		},
		{name: "ok", token: e.adminToken, wantCode: http.StatusOK, wantData: marshalObj(t, e.admin)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path = http.MethodGet, "/v1/users/me"
			checkCodeAndData(t, tt, e.serve(tt))
		})
	}

	t.Run("token refresh", func(t *testing.T) {
		tt := httpTest{method: http.MethodPost, path: "/v1/users/token-refresh", token: e.instructorToken, wantCode: http.StatusOK}
		rec := e.serve(tt)
		checkCode(t, tt, rec)
		var resp LoginResponse
		unmarshalBody(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
	})
}

func Test_userApi_create(t *testing.T) {
	e := setup(t)
	newUser := func(email string, roles ...string) []byte {
		return marshalObj(t, user.NewUser{
			Name:            "Nuevo",
			Email:           email,
			Password:        "Tudojang-2024!x",
			PasswordConfirm: "Tudojang-2024!x",
			Roles:           roles,
		})
	}

	tests := []httpTest{
		{
			name:     "instructors cannot",
			token:    e.instructorToken,
			body:     newUser("nuevo@test.co"),
			wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "above own role",
			token:    e.adminToken,
			body:     newUser("nuevo@test.co", user.RoleAdminOwner),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, echo.Map{"roles": "not enough rights to set these roles"}),
		},
		{
			name:     "email taken",
			token:    e.adminToken,
			body:     newUser("ivan@test.co"),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, echo.Map{"email": user.ErrEmailExists.Error()}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path = http.MethodPost, "/v1/users/register"
			checkCodeAndData(t, tt, e.serve(tt))
		})
	}

	t.Run("ok", func(t *testing.T) {
		tt := httpTest{method: http.MethodPost, path: "/v1/users/register", token: e.ownerToken, body: newUser("nuevo@test.co", user.RoleAdmin), wantCode: http.StatusCreated}
		rec := e.serve(tt)
		checkCode(t, tt, rec)
		var got user.User
		unmarshalBody(t, rec, &got)
		assert.Equal(t, e.tenant.ID, got.TenantID)
		assert.Equal(t, []string{user.RoleAdmin}, got.Roles)
		assert.True(t, got.IsActive)
	})
}

func Test_userApi_query(t *testing.T) {
	e := setup(t)
	path := func(search string, roles ...string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		for _, r := range roles {
			v.Add("role", r)
		}
		return "/v1/users?" + v.Encode()
	}

	tests := []httpTest{
		{name: "student", path: path(""), token: e.studentToken, wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"})},
		{name: "role", path: path("", user.RoleInstructor), token: e.adminToken, wantCode: http.StatusOK, wantData: marshalObj(t, []user.User{e.instructor})},
		{name: "search", path: path("SARA"), token: e.adminToken, wantCode: http.StatusOK, wantData: marshalObj(t, []user.User{e.student})},
		{name: "none", path: path("lol"), token: e.adminToken, wantCode: http.StatusOK, wantData: []byte(`[]`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodGet
			checkCodeAndData(t, tt, e.serve(tt))
		})
	}
}

func Test_userApi_detail(t *testing.T) {
	e := setup(t)
	norte := testutil.CreateTenant(t, e.tenants, "norte", "Club Norte")
	nora := testutil.CreateUser(t, e.users, norte.ID, "Nora", "nora@test.co", "", nil, true)

	tests := []httpTest{
		{name: "other tenant", method: http.MethodGet, path: "/v1/users/" + nora.ID, wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "not found"})},
		{name: "retrieve", method: http.MethodGet, path: "/v1/users/" + e.instructor.ID, wantCode: http.StatusOK, wantData: marshalObj(t, e.instructor)},
		{name: "delete self", method: http.MethodDelete, path: "/v1/users/" + e.admin.ID, wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.token = e.adminToken
			checkCodeAndData(t, tt, e.serve(tt))
		})
	}

	t.Run("delete", func(t *testing.T) {
		rec := e.serve(httpTest{method: http.MethodDelete, path: "/v1/users/" + e.student.ID, token: e.adminToken})
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = e.serve(httpTest{method: http.MethodGet, path: "/v1/users/" + e.student.ID, token: e.adminToken})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
