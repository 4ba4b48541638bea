package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/William-Pardo/tudojang-sub002/core"
	"github.com/William-Pardo/tudojang-sub002/core/receipt"
	"github.com/William-Pardo/tudojang-sub002/core/tenant"
)

type tenantApi struct {
	svc      *tenant.Service
	validate *validator.Validate
}

func registerTenantAPI(g *echo.Group, jwt echo.MiddlewareFunc, _ *jwtAuth, deps Deps) {
	api := tenantApi{svc: deps.TenantSvc, validate: deps.Validate}

	g.GET("/tenant", api.retrieve)
	g.PUT("/tenant/branding", api.updateBranding, jwt, adminMiddleware())

	sg := g.Group("/sites", jwt)
	sg.GET("", api.querySites, staffMiddleware)
	sg.POST("", api.createSite, adminMiddleware())
	sg.POST("/repair", api.repairSites, adminMiddleware())
}

func (api *tenantApi) retrieve(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, contextTenant(ctx))
}

func (api *tenantApi) updateBranding(ctx echo.Context) error {
	var data BrandingRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BrandingRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	t := contextTenant(ctx)
	b := tenant.Branding{PrimaryColor: data.PrimaryColor, SecondaryColor: data.SecondaryColor, Logo: data.Logo}
	if err := api.svc.UpdateBranding(ctx.Request().Context(), t.ID, b); err != nil {
		return errors.Wrap(err, "updating branding")
	}
	t, err := api.svc.Get(ctx.Request().Context(), t.ID)
	if err != nil {
		return errors.Wrap(err, "getting tenant")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *tenantApi) querySites(ctx echo.Context) error {
	sites, err := api.svc.Sites(ctx.Request().Context(), contextTenant(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "querying sites")
	}
	if sites == nil {
		sites = []tenant.Site{}
	}
	return ctx.JSON(http.StatusOK, sites)
}

func (api *tenantApi) createSite(ctx echo.Context) error {
	var data tenant.NewSite
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSite")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	site, err := api.svc.CreateSite(ctx.Request().Context(), contextTenant(ctx).ID, data)
	if err != nil {
		return errors.Wrap(err, "creating site")
	}
	return ctx.JSON(http.StatusCreated, site)
}

func (api *tenantApi) repairSites(ctx echo.Context) error {
	removed, err := api.svc.RepairGhostSites(ctx.Request().Context(), contextTenant(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "repairing sites")
	}
	if removed == nil {
		removed = []tenant.Site{}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"eliminadas": removed})
}

// BrandingRequest updates the receipt colours & (optionally) the logo, sent base64 encoded.
type BrandingRequest struct {
	PrimaryColor   string `json:"primary_color" validate:"omitempty,hexcolor_"`
	SecondaryColor string `json:"secondary_color" validate:"omitempty,hexcolor_"`
	Logo           []byte `json:"logo"`
}

func (br *BrandingRequest) Validate(validate *validator.Validate) error {
	br.PrimaryColor = core.CleanString(br.PrimaryColor, true /* lower */)
	br.SecondaryColor = core.CleanString(br.SecondaryColor, true /* lower */)
	if err := validate.Struct(br); err != nil {
		return err
	}
	if len(br.Logo) > 0 {
		if _, err := receipt.DecodeLogo(br.Logo); err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "logo", Error: "logo must be a PNG or JPEG image"})
		}
	}
	return nil
}
