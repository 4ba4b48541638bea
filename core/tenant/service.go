package tenant

import (
	"context"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/William-Pardo/tudojang-sub002/core"
)

var (
	// errors
	ErrNotFound     = core.NewNotFoundError("tenant not found")
	ErrSiteNotFound = core.NewNotFoundError("site not found")
	ErrSlugExists   = errors.New("a tenant with this slug already exists")
)

type (
	Repository interface {
		CreateTenant(ctx context.Context, t Tenant) (Tenant, error)
		GetTenantBySlug(ctx context.Context, slug string) (Tenant, error)
		GetTenantByID(ctx context.Context, id string) (Tenant, error)
		UpdateBranding(ctx context.Context, id string, b Branding) error

		CreateSite(ctx context.Context, s Site) (Site, error)
		QuerySites(ctx context.Context, tenantID string) ([]Site, error)
		DeleteSitesByID(ctx context.Context, tenantID string, ids ...string) error
	}

	Service struct {
		repo          Repository
		rootDomain    string
		defaultTenant string
	}
)

func NewService(repo Repository, conf *core.Config) *Service {
	return &Service{
		repo:          repo,
		rootDomain:    conf.Tenancy.RootDomain,
		defaultTenant: conf.Tenancy.DefaultTenant,
	}
}

// SlugFromHost derives the tenant slug from a request host:
// <slug>.<root domain> gives slug, the bare root domain, www, localhost & IPs give the default tenant.
func (svc *Service) SlugFromHost(host string) string {
	host = core.CleanString(host, true /* lower */)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(host, ".")

	if host == "" || host == "localhost" || net.ParseIP(strings.Trim(host, "[]")) != nil {
		return svc.defaultTenant
	}
	if svc.rootDomain != "" {
		if host == svc.rootDomain || host == "www."+svc.rootDomain {
			return svc.defaultTenant
		}
		if sub := strings.TrimSuffix(host, "."+svc.rootDomain); sub != host {
			host = sub
		}
	}
	label := strings.SplitN(host, ".", 2)[0]
	if label == "" || label == "www" {
		return svc.defaultTenant
	}
	return label
}

// Resolve finds the tenant served at `host`.
func (svc *Service) Resolve(ctx context.Context, host string) (Tenant, error) {
	return svc.repo.GetTenantBySlug(ctx, svc.SlugFromHost(host))
}

func (svc *Service) Get(ctx context.Context, id string) (Tenant, error) {
	return svc.repo.GetTenantByID(ctx, id)
}

func (svc *Service) GetBySlug(ctx context.Context, slug string) (Tenant, error) {
	return svc.repo.GetTenantBySlug(ctx, core.CleanString(slug, true /* lower */))
}

func (svc *Service) Create(ctx context.Context, nt NewTenant, logo []byte) (Tenant, error) {
	if _, err := svc.repo.GetTenantBySlug(ctx, nt.Slug); err == nil {
		return Tenant{}, core.NewValidationError(ErrSlugExists, core.FieldError{Field: "slug", Error: ErrSlugExists.Error()})
	} else if !core.IsNotFound(err) {
		return Tenant{}, errors.Wrap(err, "checking slug")
	}
	return svc.repo.CreateTenant(ctx, Tenant{
		ID:   uuid.NewString(),
		Slug: nt.Slug,
		Name: nt.Name,
		Branding: Branding{
			PrimaryColor:   nt.PrimaryColor,
			SecondaryColor: nt.SecondaryColor,
			Logo:           logo,
		},
		ContactPhone: nt.ContactPhone,
		ContactEmail: nt.ContactEmail,
		CreatedAt:    time.Now().UTC(),
	})
}

func (svc *Service) UpdateBranding(ctx context.Context, id string, b Branding) error {
	b.PrimaryColor = core.CleanString(b.PrimaryColor, true /* lower */)
	b.SecondaryColor = core.CleanString(b.SecondaryColor, true /* lower */)
	return svc.repo.UpdateBranding(ctx, id, b)
}

func (svc *Service) CreateSite(ctx context.Context, tenantID string, ns NewSite) (Site, error) {
	return svc.repo.CreateSite(ctx, Site{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Name:      ns.Name,
		Address:   ns.Address,
		CreatedAt: time.Now().UTC(),
	})
}

func (svc *Service) Sites(ctx context.Context, tenantID string) ([]Site, error) {
	return svc.repo.QuerySites(ctx, tenantID)
}

// GhostSites picks the corrupted sites: blank names & later duplicates (case-insensitive) of an older site's name.
func GhostSites(sites []Site) []Site {
	sorted := make([]Site, len(sites))
	copy(sorted, sites)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt) })

	var ghosts []Site
	seen := make(map[string]struct{}, len(sorted))
	for _, s := range sorted {
		name := strings.ToLower(core.CleanString(s.Name))
		if name == "" {
			ghosts = append(ghosts, s)
			continue
		}
		if _, dup := seen[name]; dup {
			ghosts = append(ghosts, s)
			continue
		}
		seen[name] = struct{}{}
	}
	return ghosts
}

// RepairGhostSites deletes the tenant's ghost sites and returns them.
func (svc *Service) RepairGhostSites(ctx context.Context, tenantID string) ([]Site, error) {
	sites, err := svc.repo.QuerySites(ctx, tenantID)
	if err != nil {
		return nil, errors.Wrap(err, "querying sites")
	}
	ghosts := GhostSites(sites)
	if len(ghosts) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(ghosts))
	for _, g := range ghosts {
		ids = append(ids, g.ID)
	}
	if err := svc.repo.DeleteSitesByID(ctx, tenantID, ids...); err != nil {
		return nil, errors.Wrap(err, "deleting ghost sites")
	}
	return ghosts, nil
}
