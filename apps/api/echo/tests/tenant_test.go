package tests

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	. "github.com/William-Pardo/tudojang-sub002/apps/api/echo"
	"github.com/William-Pardo/tudojang-sub002/core/tenant"
	testutil "github.com/William-Pardo/tudojang-sub002/tests"
)

func Test_tenantApi_retrieve(t *testing.T) {
	e := setup(t)

	t.Run("resolved from the host", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/tenant")
		e.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		var got tenant.Tenant
		unmarshalBody(t, rec, &got)
		assert.Equal(t, e.tenant.ID, got.ID)
		assert.Equal(t, "Club Demo", got.Name)
		assert.Equal(t, "#1f3a93", got.Branding.PrimaryColor)
	})

	t.Run("unknown tenant", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/tenant")
		req.Host = "nadie." + testutil.RootDomain
		e.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "not found"})}, rec)
	})

	t.Run("another tenant", func(t *testing.T) {
		norte := testutil.CreateTenant(t, e.tenants, "norte", "Club Norte")
		req, rec := newRequest(http.MethodGet, "/v1/tenant")
		req.Host = "norte." + testutil.RootDomain + ":8080"
		e.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		var got tenant.Tenant
		unmarshalBody(t, rec, &got)
		assert.Equal(t, norte.ID, got.ID)
	})
}

func pngLogo(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		img.Set(x, x, color.RGBA{R: 0xff, A: 0xff})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("pngLogo() failed: %v", err)
	}
	return buf.Bytes()
}

func Test_tenantApi_branding(t *testing.T) {
	e := setup(t)

	tests := []httpTest{
		{
			name:     "instructors cannot",
			token:    e.instructorToken,
			body:     marshalObj(t, BrandingRequest{PrimaryColor: "#ff0000"}),
			wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "bad colour",
			token:    e.adminToken,
			body:     marshalObj(t, BrandingRequest{PrimaryColor: "rojo"}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, echo.Map{"primary_color": "primary_color must be a hex color (#RRGGBB)"}),
		},
		{
			name:     "bad logo",
			token:    e.adminToken,
			body:     marshalObj(t, BrandingRequest{Logo: []byte("lol")}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, echo.Map{"logo": "logo must be a PNG or JPEG image"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path = http.MethodPut, "/v1/tenant/branding"
			checkCodeAndData(t, tt, e.serve(tt))
		})
	}

	t.Run("ok", func(t *testing.T) {
		logo := pngLogo(t)
		tt := httpTest{
			method:   http.MethodPut,
			path:     "/v1/tenant/branding",
			token:    e.adminToken,
			body:     marshalObj(t, BrandingRequest{PrimaryColor: " #FF0000", SecondaryColor: "#00ff00", Logo: logo}),
			wantCode: http.StatusOK,
		}
		rec := e.serve(tt)
		checkCode(t, tt, rec)
		var got tenant.Tenant
		unmarshalBody(t, rec, &got)
		assert.Equal(t, "#ff0000", got.Branding.PrimaryColor)
		assert.Equal(t, "#00ff00", got.Branding.SecondaryColor)

		stored, err := e.tenants.GetTenantByID(context.Background(), e.tenant.ID)
		if assert.NoError(t, err) {
			assert.Equal(t, logo, stored.Branding.Logo)
			assert.Equal(t, color.RGBA{R: 0xff, A: 0xff}, stored.ReceiptBranding().Primary)
		}
	})
}

func Test_tenantApi_sites(t *testing.T) {
	e := setup(t)
	now := time.Now().UTC()
	centro := testutil.CreateSite(t, e.tenants, e.tenant.ID, "Centro", now.Add(-3*time.Hour))
	ghost := testutil.CreateSite(t, e.tenants, e.tenant.ID, " ", now.Add(-2*time.Hour))
	dup := testutil.CreateSite(t, e.tenants, e.tenant.ID, "CENTRO", now.Add(-time.Hour))

	tests := []httpTest{
		{name: "students cannot list", method: http.MethodGet, token: e.studentToken, wantCode: http.StatusForbidden},
		{name: "instructors cannot create", method: http.MethodPost, token: e.instructorToken, body: []byte(`{"name": "Norte"}`), wantCode: http.StatusForbidden},
		{name: "nameless", method: http.MethodPost, token: e.adminToken, body: []byte(`{"name": " "}`), wantCode: http.StatusBadRequest, wantData: marshalObj(t, echo.Map{"name": "this field is required"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.path = "/v1/sites"
			rec := e.serve(tt)
			if tt.wantData != nil {
				checkCodeAndData(t, tt, rec)
			} else {
				checkCode(t, tt, rec)
			}
		})
	}

	var norte tenant.Site
	t.Run("create", func(t *testing.T) {
		tt := httpTest{method: http.MethodPost, path: "/v1/sites", token: e.adminToken, body: []byte(`{"name": " Sede Norte ", "address": "Calle 100"}`), wantCode: http.StatusCreated}
		rec := e.serve(tt)
		checkCode(t, tt, rec)
		unmarshalBody(t, rec, &norte)
		assert.Equal(t, "Sede Norte", norte.Name)
		assert.Equal(t, e.tenant.ID, norte.TenantID)
	})

	t.Run("repair", func(t *testing.T) {
		rec := e.serve(httpTest{method: http.MethodPost, path: "/v1/sites/repair", token: e.adminToken})
		assert.Equal(t, http.StatusOK, rec.Code)
		var got struct {
			Removed []tenant.Site `json:"eliminadas"`
		}
		unmarshalBody(t, rec, &got)
		ids := make([]string, 0, len(got.Removed))
		for _, s := range got.Removed {
			ids = append(ids, s.ID)
		}
		assert.ElementsMatch(t, []string{ghost.ID, dup.ID}, ids)

		rec = e.serve(httpTest{method: http.MethodGet, path: "/v1/sites", token: e.instructorToken})
		assert.Equal(t, http.StatusOK, rec.Code)
		var sites []tenant.Site
		unmarshalBody(t, rec, &sites)
		ids = ids[:0]
		for _, s := range sites {
			ids = append(ids, s.ID)
		}
		assert.ElementsMatch(t, []string{centro.ID, norte.ID}, ids)

		// nothing left to repair
		rec = e.serve(httpTest{method: http.MethodPost, path: "/v1/sites/repair", token: e.adminToken})
		assert.JSONEq(t, `{"eliminadas": []}`, rec.Body.String())
	})
}
