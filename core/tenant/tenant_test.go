package tenant_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/William-Pardo/tudojang-sub002/core"
	"github.com/William-Pardo/tudojang-sub002/core/receipt"
	"github.com/William-Pardo/tudojang-sub002/core/tenant"
	dummydb "github.com/William-Pardo/tudojang-sub002/storage/database/dummy"
	testutil "github.com/William-Pardo/tudojang-sub002/tests"
)

func setup(t *testing.T) (*tenant.Service, tenant.Repository) {
	t.Helper()
	db, _ := dummydb.Open()
	repo := dummydb.NewTenantRepository(db)
	return tenant.NewService(repo, testutil.NewConfig()), repo
}

func TestService_SlugFromHost(t *testing.T) {
	svc, _ := setup(t)

	tests := []struct {
		host string
		want string
	}{
		{host: "norte.tudojang.test", want: "norte"},
		{host: "Norte.Tudojang.Test:8080", want: "norte"},
		{host: "norte.tudojang.test.", want: "norte"},
		{host: "tudojang.test", want: testutil.DefaultTenant},
		{host: "www.tudojang.test", want: testutil.DefaultTenant},
		{host: "localhost:1323", want: testutil.DefaultTenant},
		{host: "127.0.0.1:1323", want: testutil.DefaultTenant},
		{host: "[::1]:1323", want: testutil.DefaultTenant},
		{host: "", want: testutil.DefaultTenant},
		{host: "sur.example.com", want: "sur"},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			if got := svc.SlugFromHost(tt.host); got != tt.want {
				t.Errorf("SlugFromHost() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestService_Resolve(t *testing.T) {
	ctx := context.Background()
	svc, repo := setup(t)
	demo := testutil.CreateTenant(t, repo, testutil.DefaultTenant, "Club Demo")
	norte := testutil.CreateTenant(t, repo, "norte", "Club Norte")

	got, err := svc.Resolve(ctx, "localhost")
	require.NoError(t, err)
	assert.Equal(t, demo.ID, got.ID)

	got, err = svc.Resolve(ctx, "norte.tudojang.test")
	require.NoError(t, err)
	assert.Equal(t, norte.ID, got.ID)

	_, err = svc.Resolve(ctx, "lol.tudojang.test")
	assert.True(t, core.IsNotFound(err))
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	svc, repo := setup(t)
	testutil.CreateTenant(t, repo, "norte", "Club Norte")

	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)

	tests := []struct {
		name        string
		nt          tenant.NewTenant
		wantInvalid bool
	}{
		{name: "blank", nt: tenant.NewTenant{}, wantInvalid: true},
		{name: "dotted slug", nt: tenant.NewTenant{Slug: "sur.norte", Name: "Sur"}, wantInvalid: true},
		{name: "bad colour", nt: tenant.NewTenant{Slug: "sur", Name: "Sur", PrimaryColor: "red"}, wantInvalid: true},
		{name: "taken slug", nt: tenant.NewTenant{Slug: " NORTE ", Name: "Norte 2"}, wantInvalid: true},
		{name: "ok", nt: tenant.NewTenant{Slug: "Sur", Name: " Club Sur ", PrimaryColor: "#ABCDEF", ContactPhone: "+57 300 123 4567"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nt.Validate(validate)
			if err == nil {
				_, err = svc.Create(ctx, tt.nt, nil)
			}
			if gotInvalid := err != nil; gotInvalid != tt.wantInvalid {
				t.Errorf("Create() error = %v, wantInvalid %v", err, tt.wantInvalid)
			}
		})
	}

	sur, err := svc.GetBySlug(ctx, "SUR")
	require.NoError(t, err)
	assert.Equal(t, "Club Sur", sur.Name)
	assert.Equal(t, "#abcdef", sur.Branding.PrimaryColor)
}

func TestGhostSites(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	centro := tenant.Site{ID: "1", Name: "Sede Centro", CreatedAt: base}
	norte := tenant.Site{ID: "2", Name: "Sede Norte", CreatedAt: base.Add(time.Hour)}
	dup := tenant.Site{ID: "3", Name: " sede centro", CreatedAt: base.Add(2 * time.Hour)}
	blank := tenant.Site{ID: "4", Name: "   ", CreatedAt: base.Add(-time.Hour)}

	tests := []struct {
		name  string
		sites []tenant.Site
		want  []tenant.Site
	}{
		{name: "none"},
		{name: "clean", sites: []tenant.Site{centro, norte}},
		{name: "later duplicate", sites: []tenant.Site{dup, norte, centro}, want: []tenant.Site{dup}},
		{name: "blank", sites: []tenant.Site{centro, blank}, want: []tenant.Site{blank}},
		{name: "both", sites: []tenant.Site{dup, blank, centro, norte}, want: []tenant.Site{blank, dup}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tenant.GhostSites(tt.sites))
		})
	}
}

func TestService_RepairGhostSites(t *testing.T) {
	ctx := context.Background()
	svc, repo := setup(t)
	demo := testutil.CreateTenant(t, repo, testutil.DefaultTenant, "Club Demo")
	other := testutil.CreateTenant(t, repo, "norte", "Club Norte")

	base := time.Now().Add(-time.Hour)
	keep := testutil.CreateSite(t, repo, demo.ID, "Sede Centro", base)
	ghost := testutil.CreateSite(t, repo, demo.ID, "SEDE CENTRO", base.Add(time.Minute))
	otherSite := testutil.CreateSite(t, repo, other.ID, "Sede Centro", base.Add(2*time.Minute))

	removed, err := svc.RepairGhostSites(ctx, demo.ID)
	require.NoError(t, err)
	if assert.Len(t, removed, 1) {
		assert.Equal(t, ghost.ID, removed[0].ID)
	}

	sites, err := svc.Sites(ctx, demo.ID)
	require.NoError(t, err)
	if assert.Len(t, sites, 1) {
		assert.Equal(t, keep.ID, sites[0].ID)
	}
	sites, err = svc.Sites(ctx, other.ID)
	require.NoError(t, err)
	if assert.Len(t, sites, 1) {
		assert.Equal(t, otherSite.ID, sites[0].ID)
	}

	removed, err = svc.RepairGhostSites(ctx, demo.ID)
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestTenant_ReceiptBranding(t *testing.T) {
	tnt := tenant.Tenant{Name: "Club Demo", Branding: tenant.Branding{PrimaryColor: "#102030", SecondaryColor: "lol", Logo: []byte("nope")}}
	b := tnt.ReceiptBranding()
	assert.Equal(t, "Club Demo", b.ClubName)
	assert.Equal(t, uint8(0x10), b.Primary.R)
	assert.Equal(t, receipt.DefaultSecondary, b.Secondary)
	assert.Nil(t, b.Logo)
}
