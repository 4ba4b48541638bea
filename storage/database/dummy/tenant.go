package dummydb

import (
	"context"
	"sort"

	"github.com/William-Pardo/tudojang-sub002/core/tenant"
)

type tenantRepository struct {
	db *DB
}

var _ tenant.Repository = (*tenantRepository)(nil) // interface compliance check

func NewTenantRepository(db *DB) tenant.Repository {
	return &tenantRepository{db: db}
}

func (repo *tenantRepository) CreateTenant(_ context.Context, t tenant.Tenant) (tenant.Tenant, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, other := range repo.db.tenants {
		if other.Slug == t.Slug {
			return tenant.Tenant{}, tenant.ErrSlugExists
		}
	}
	t.Branding.Logo = append([]byte(nil), t.Branding.Logo...)
	repo.db.tenants[t.ID] = &t
	return t, nil
}

func (repo *tenantRepository) GetTenantBySlug(_ context.Context, slug string) (tenant.Tenant, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, t := range repo.db.tenants {
		if t.Slug == slug {
			return *t, nil
		}
	}
	return tenant.Tenant{}, tenant.ErrNotFound
}

func (repo *tenantRepository) GetTenantByID(_ context.Context, id string) (tenant.Tenant, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if t, ok := repo.db.tenants[id]; ok {
		return *t, nil
	}
	return tenant.Tenant{}, tenant.ErrNotFound
}

func (repo *tenantRepository) UpdateBranding(_ context.Context, id string, b tenant.Branding) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	t, ok := repo.db.tenants[id]
	if !ok {
		return tenant.ErrNotFound
	}
	if b.Logo == nil {
		b.Logo = t.Branding.Logo
	}
	t.Branding = b
	return nil
}

func (repo *tenantRepository) CreateSite(_ context.Context, s tenant.Site) (tenant.Site, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.tenants[s.TenantID]; !ok {
		return tenant.Site{}, tenant.ErrNotFound
	}
	repo.db.sites[s.ID] = &s
	return s, nil
}

func (repo *tenantRepository) QuerySites(_ context.Context, tenantID string) ([]tenant.Site, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	sites := make([]tenant.Site, 0)
	for _, s := range repo.db.sites {
		if s.TenantID == tenantID {
			sites = append(sites, *s)
		}
	}
	sort.Slice(sites, func(i, j int) bool {
		if sites[i].CreatedAt.Equal(sites[j].CreatedAt) {
			return sites[i].ID < sites[j].ID
		}
		return sites[i].CreatedAt.Before(sites[j].CreatedAt)
	})
	return sites, nil
}

func (repo *tenantRepository) DeleteSitesByID(_ context.Context, tenantID string, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, id := range ids {
		if s, ok := repo.db.sites[id]; ok && s.TenantID == tenantID {
			delete(repo.db.sites, id)
		}
	}
	return nil
}
