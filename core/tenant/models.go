package tenant

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/William-Pardo/tudojang-sub002/core"
	"github.com/William-Pardo/tudojang-sub002/core/receipt"
)

// Branding is the look of a tenant's receipts & messages.
type Branding struct {
	PrimaryColor   string `json:"primary_color"`   // #RRGGBB
	SecondaryColor string `json:"secondary_color"` // #RRGGBB
	Logo           []byte `json:"-"`               // PNG | JPEG
}

// Tenant is an academy (club) using the platform, reachable at <Slug>.<root domain>.
type Tenant struct {
	ID           string    `json:"id"`
	Slug         string    `json:"slug"`
	Name         string    `json:"name"`
	Branding     Branding  `json:"branding"`
	ContactPhone string    `json:"contact_phone,omitempty"`
	ContactEmail string    `json:"contact_email,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Site is one of the tenant's training locations (sede).
type Site struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type NewTenant struct {
	Slug           string `json:"slug" toml:"slug" validate:"required,hostname_rfc1123,excludesall=."`
	Name           string `json:"name" toml:"name" validate:"required"`
	PrimaryColor   string `json:"primary_color" toml:"primary_color" validate:"omitempty,hexcolor_"`
	SecondaryColor string `json:"secondary_color" toml:"secondary_color" validate:"omitempty,hexcolor_"`
	ContactPhone   string `json:"contact_phone" toml:"contact_phone" validate:"omitempty,phone"`
	ContactEmail   string `json:"contact_email" toml:"contact_email" validate:"omitempty,email"`
	LogoPath       string `json:"-" toml:"logo"`
}

func (nt *NewTenant) Validate(validate *validator.Validate) error {
	nt.Slug = core.CleanString(nt.Slug, true /* lower */)
	nt.Name = core.CleanString(nt.Name)
	nt.PrimaryColor = core.CleanString(nt.PrimaryColor, true /* lower */)
	nt.SecondaryColor = core.CleanString(nt.SecondaryColor, true /* lower */)
	nt.ContactPhone = core.CleanString(nt.ContactPhone)
	nt.ContactEmail = core.CleanString(nt.ContactEmail, true /* lower */)
	return validate.Struct(nt)
}

type NewSite struct {
	Name    string `json:"name" toml:"name" validate:"required"`
	Address string `json:"address" toml:"address"`
}

func (ns *NewSite) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Address = core.CleanString(ns.Address)
	return validate.Struct(ns)
}

// ReceiptBranding converts the tenant branding for the receipt renderer; bad colours & logos fall back to defaults.
func (t Tenant) ReceiptBranding() receipt.Branding {
	b := receipt.Branding{
		ClubName:  t.Name,
		Primary:   receipt.ParseColor(t.Branding.PrimaryColor, receipt.DefaultPrimary),
		Secondary: receipt.ParseColor(t.Branding.SecondaryColor, receipt.DefaultSecondary),
	}
	if logo, err := receipt.DecodeLogo(t.Branding.Logo); err == nil {
		b.Logo = logo
	}
	return b
}
