package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/William-Pardo/tudojang-sub002/core/tenant"
)

type tenantRow struct {
	ID             string    `db:"id"`
	Slug           string    `db:"slug"`
	Name           string    `db:"name"`
	PrimaryColor   string    `db:"primary_color"`
	SecondaryColor string    `db:"secondary_color"`
	Logo           []byte    `db:"logo"`
	ContactPhone   string    `db:"contact_phone"`
	ContactEmail   string    `db:"contact_email"`
	CreatedAt      time.Time `db:"created_at"`
}

func (r tenantRow) tenant() tenant.Tenant {
	return tenant.Tenant{
		ID:   r.ID,
		Slug: r.Slug,
		Name: r.Name,
		Branding: tenant.Branding{
			PrimaryColor:   r.PrimaryColor,
			SecondaryColor: r.SecondaryColor,
			Logo:           r.Logo,
		},
		ContactPhone: r.ContactPhone,
		ContactEmail: r.ContactEmail,
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

type siteRow struct {
	ID        string    `db:"id"`
	TenantID  string    `db:"tenant_id"`
	Name      string    `db:"name"`
	Address   string    `db:"address"`
	CreatedAt time.Time `db:"created_at"`
}

func (r siteRow) site() tenant.Site {
	return tenant.Site{ID: r.ID, TenantID: r.TenantID, Name: r.Name, Address: r.Address, CreatedAt: r.CreatedAt.UTC()}
}

const tenantColumns = "id, slug, name, primary_color, secondary_color, logo, contact_phone, contact_email, created_at"

type tenantRepository struct {
	repository
}

var _ tenant.Repository = (*tenantRepository)(nil) // interface compliance check

func NewTenantRepository(db *sqlx.DB) tenant.Repository {
	return &tenantRepository{repository{db: db}}
}

func (repo *tenantRepository) CreateTenant(ctx context.Context, t tenant.Tenant) (tenant.Tenant, error) {
	_, err := repo.exec(ctx,
		"INSERT INTO tenants ("+tenantColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		t.ID, t.Slug, t.Name, t.Branding.PrimaryColor, t.Branding.SecondaryColor, t.Branding.Logo,
		t.ContactPhone, t.ContactEmail, t.CreatedAt.UTC(),
	)
	if err != nil {
		return tenant.Tenant{}, err
	}
	return t, nil
}

func (repo *tenantRepository) GetTenantBySlug(ctx context.Context, slug string) (tenant.Tenant, error) {
	var row tenantRow
	if err := repo.get(ctx, &row, "SELECT "+tenantColumns+" FROM tenants WHERE slug = ?", slug); err != nil {
		return tenant.Tenant{}, notFound(err, tenant.ErrNotFound)
	}
	return row.tenant(), nil
}

func (repo *tenantRepository) GetTenantByID(ctx context.Context, id string) (tenant.Tenant, error) {
	var row tenantRow
	if err := repo.get(ctx, &row, "SELECT "+tenantColumns+" FROM tenants WHERE id = ?", id); err != nil {
		return tenant.Tenant{}, notFound(err, tenant.ErrNotFound)
	}
	return row.tenant(), nil
}

func (repo *tenantRepository) UpdateBranding(ctx context.Context, id string, b tenant.Branding) error {
	query := "UPDATE tenants SET primary_color = ?, secondary_color = ? WHERE id = ?"
	args := []interface{}{b.PrimaryColor, b.SecondaryColor, id}
	if b.Logo != nil {
		query = "UPDATE tenants SET primary_color = ?, secondary_color = ?, logo = ? WHERE id = ?"
		args = []interface{}{b.PrimaryColor, b.SecondaryColor, b.Logo, id}
	}
	n, err := repo.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return tenant.ErrNotFound
	}
	return nil
}

func (repo *tenantRepository) CreateSite(ctx context.Context, s tenant.Site) (tenant.Site, error) {
	_, err := repo.exec(ctx,
		"INSERT INTO sites (id, tenant_id, name, address, created_at) VALUES (?, ?, ?, ?, ?)",
		s.ID, s.TenantID, s.Name, s.Address, s.CreatedAt.UTC(),
	)
	if err != nil {
		return tenant.Site{}, err
	}
	return s, nil
}

func (repo *tenantRepository) QuerySites(ctx context.Context, tenantID string) ([]tenant.Site, error) {
	var rows []siteRow
	err := repo.selectAll(ctx, &rows,
		"SELECT id, tenant_id, name, address, created_at FROM sites WHERE tenant_id = ? ORDER BY created_at, id",
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	sites := make([]tenant.Site, 0, len(rows))
	for _, r := range rows {
		sites = append(sites, r.site())
	}
	return sites, nil
}

func (repo *tenantRepository) DeleteSitesByID(ctx context.Context, tenantID string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In("DELETE FROM sites WHERE tenant_id = ? AND id IN (?)", tenantID, ids)
	if err != nil {
		return err
	}
	_, err = repo.exec(ctx, query, args...)
	return err
}
