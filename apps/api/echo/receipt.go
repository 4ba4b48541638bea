package echoapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/William-Pardo/tudojang-sub002/core"
	"github.com/William-Pardo/tudojang-sub002/core/billing"
	"github.com/William-Pardo/tudojang-sub002/core/notify"
	"github.com/William-Pardo/tudojang-sub002/core/receipt"
	"github.com/William-Pardo/tudojang-sub002/core/student"
)

var errNoReceiptImage = echo.NewHTTPError(http.StatusServiceUnavailable, "no receipt available")

type receiptApi struct {
	billingSvc *billing.Service
	studentSvc *student.Service
	notifySvc  *notify.Service
	renderer   *receipt.Renderer
}

func registerReceiptAPI(g *echo.Group, jwt echo.MiddlewareFunc, _ *jwtAuth, deps Deps) {
	api := receiptApi{
		billingSvc: deps.BillingSvc,
		studentSvc: deps.StudentSvc,
		notifySvc:  deps.NotifySvc,
		renderer:   deps.Renderer,
	}

	rg := g.Group("/receipts/:receiptId", jwt, staffMiddleware)
	rg.GET("", api.retrieve)
	rg.GET("/image", api.image)
	rg.POST("/notify", api.notify)
	rg.GET("/notifications", api.notifications)
}

type (
	ReceiptResponse struct {
		Receipt  receipt.Data `json:"recibo"`
		Message  string       `json:"mensaje"`
		Filename string       `json:"nombreArchivo"`
	}

	NotifyRequest struct {
		Mode string `json:"modo"`
	}
)

// load rebuilds the receipt of a payment; a student deleted since keeps only their id on it.
func (api *receiptApi) load(ctx context.Context, tenantID, receiptID string) (receipt.Data, student.Student, error) {
	p, err := api.billingSvc.GetPayment(ctx, tenantID, receiptID)
	if err != nil {
		if core.IsNotFound(err) {
			return receipt.Data{}, student.Student{}, errHttpNotFound
		}
		return receipt.Data{}, student.Student{}, errors.Wrap(err, "getting payment")
	}
	s, err := api.studentSvc.Get(ctx, tenantID, p.StudentID)
	if err != nil {
		if !core.IsNotFound(err) {
			return receipt.Data{}, student.Student{}, errors.Wrap(err, "getting student")
		}
		s = student.Student{ID: p.StudentID, TenantID: tenantID}
	}
	return receipt.FromPayment(p, s), s, nil
}

func (api *receiptApi) retrieve(ctx echo.Context) error {
	t := contextTenant(ctx)
	d, _, err := api.load(ctx.Request().Context(), t.ID, ctx.Param("receiptId"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ReceiptResponse{
		Receipt:  d,
		Message:  receipt.Message(d, t.Name),
		Filename: receipt.Filename(d),
	})
}

func (api *receiptApi) image(ctx echo.Context) error {
	t := contextTenant(ctx)
	d, _, err := api.load(ctx.Request().Context(), t.ID, ctx.Param("receiptId"))
	if err != nil {
		return err
	}
	img, ok := api.renderer.TryRender(d, t.ReceiptBranding())
	if !ok {
		return errNoReceiptImage
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", receipt.Filename(d)))
	return ctx.Blob(http.StatusOK, "image/png", img)
}

func (api *receiptApi) notify(ctx echo.Context) error {
	var data NotifyRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NotifyRequest")
	}
	mode, err := notify.ParseMode(data.Mode)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "modo", Error: err.Error()})
	}

	t := contextTenant(ctx)
	d, s, err := api.load(ctx.Request().Context(), t.ID, ctx.Param("receiptId"))
	if err != nil {
		return err
	}

	req := notify.Request{
		Mode:        mode,
		TenantID:    t.ID,
		StudentID:   s.ID,
		ReceiptID:   d.ReceiptID,
		Name:        s.Name,
		Phone:       s.ContactPhone(),
		Email:       s.ContactEmail(),
		Subject:     fmt.Sprintf("%s - Recibo %s", t.Name, d.ReceiptID),
		Text:        receipt.Message(d, t.Name),
		Filename:    receipt.Filename(d),
		DownloadURL: fmt.Sprintf("%s://%s/v1/receipts/%s/image", ctx.Scheme(), ctx.Request().Host, d.ReceiptID),
	}
	if mode == notify.ModeSilent {
		// silent messages carry the image, chat links cannot
		if img, ok := api.renderer.TryRender(d, t.ReceiptBranding()); ok {
			req.Image = img
		}
	}
	return ctx.JSON(http.StatusOK, api.notifySvc.Dispatch(ctx.Request().Context(), req))
}

func (api *receiptApi) notifications(ctx echo.Context) error {
	msgs, err := api.notifySvc.History(ctx.Request().Context(), contextTenant(ctx).ID, ctx.Param("receiptId"))
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}
	if msgs == nil {
		msgs = []notify.Message{}
	}
	return ctx.JSON(http.StatusOK, msgs)
}
