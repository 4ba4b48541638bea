package echoapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/William-Pardo/tudojang-sub002/core"
	"github.com/William-Pardo/tudojang-sub002/core/billing"
	"github.com/William-Pardo/tudojang-sub002/core/notify"
	"github.com/William-Pardo/tudojang-sub002/core/student"
	"github.com/William-Pardo/tudojang-sub002/core/tenant"
)

const dateLayout = "2006-01-02"

type billingApi struct {
	svc        *billing.Service
	studentSvc *student.Service
	notifySvc  *notify.Service
	validate   *validator.Validate
	logger     core.Logger
}

func registerBillingAPI(g *echo.Group, jwt echo.MiddlewareFunc, _ *jwtAuth, deps Deps) {
	api := billingApi{
		svc:        deps.BillingSvc,
		studentSvc: deps.StudentSvc,
		notifySvc:  deps.NotifySvc,
		validate:   deps.Validate,
		logger:     deps.Logger,
	}

	sg := g.Group("/store-requests", jwt, staffMiddleware)
	sg.POST("", api.createStoreRequest)
	sg.POST("/:id/approve", api.approveStoreRequest, adminMiddleware())
	sg.POST("/:id/reject", api.rejectStoreRequest, adminMiddleware())

	eg := g.Group("/events", jwt, staffMiddleware)
	eg.POST("", api.createEvent, adminMiddleware())
	eg.POST("/:id/registrations", api.registerForEvent)

	rg := g.Group("/event-registrations", jwt, adminMiddleware())
	rg.POST("/:id/approve", api.approveRegistration)
	rg.POST("/:id/reject", api.rejectRegistration)

	g.GET("/ledger", api.ledger, jwt, adminMiddleware())
}

type (
	// DecisionResponse is an approved/rejected request along with the notice sent to the student.
	DecisionResponse struct {
		Request      interface{}     `json:"solicitud"`
		Notification notify.Delivery `json:"notificacion"`
	}

	RegistrationRequest struct {
		StudentID string `json:"student_id" validate:"required"`
	}
)

func (api *billingApi) createStoreRequest(ctx echo.Context) error {
	var data billing.NewStoreRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStoreRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	req, err := api.svc.CreateStoreRequest(ctx.Request().Context(), contextTenant(ctx).ID, data)
	if err != nil {
		return errors.Wrap(err, "creating store request")
	}
	return ctx.JSON(http.StatusCreated, req)
}

func (api *billingApi) approveStoreRequest(ctx echo.Context) error {
	t := contextTenant(ctx)
	req, err := api.svc.ApproveStoreRequest(ctx.Request().Context(), t.ID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "approving store request")
	}
	d := api.notifyDecision(ctx.Request().Context(), t, req.StudentID, func(name string) string {
		return notify.ChargeApprovedText(t.Name, name, req.ItemName, req.Amount)
	})
	return ctx.JSON(http.StatusOK, DecisionResponse{Request: req, Notification: d})
}

func (api *billingApi) rejectStoreRequest(ctx echo.Context) error {
	t := contextTenant(ctx)
	req, err := api.svc.RejectStoreRequest(ctx.Request().Context(), t.ID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "rejecting store request")
	}
	d := api.notifyDecision(ctx.Request().Context(), t, req.StudentID, func(name string) string {
		return notify.ChargeRejectedText(t.Name, name, req.ItemName)
	})
	return ctx.JSON(http.StatusOK, DecisionResponse{Request: req, Notification: d})
}

func (api *billingApi) createEvent(ctx echo.Context) error {
	var data billing.NewEvent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEvent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	ev, err := api.svc.CreateEvent(ctx.Request().Context(), contextTenant(ctx).ID, data)
	if err != nil {
		return errors.Wrap(err, "creating event")
	}
	return ctx.JSON(http.StatusCreated, ev)
}

func (api *billingApi) registerForEvent(ctx echo.Context) error {
	var data RegistrationRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RegistrationRequest")
	}
	data.StudentID = core.CleanString(data.StudentID)
	if err := api.validate.Struct(data); err != nil {
		return err
	}
	reg, err := api.svc.RegisterForEvent(ctx.Request().Context(), contextTenant(ctx).ID, ctx.Param("id"), data.StudentID)
	if err != nil {
		return errors.Wrap(err, "registering for event")
	}
	return ctx.JSON(http.StatusCreated, reg)
}

func (api *billingApi) approveRegistration(ctx echo.Context) error {
	t := contextTenant(ctx)
	reg, err := api.svc.ApproveEventRegistration(ctx.Request().Context(), t.ID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "approving event registration")
	}
	ev, err := api.svc.GetEvent(ctx.Request().Context(), t.ID, reg.EventID)
	if err != nil {
		return errors.Wrap(err, "getting event")
	}
	d := api.notifyDecision(ctx.Request().Context(), t, reg.StudentID, func(name string) string {
		return notify.ChargeApprovedText(t.Name, name, ev.Name, ev.Price)
	})
	return ctx.JSON(http.StatusOK, DecisionResponse{Request: reg, Notification: d})
}

func (api *billingApi) rejectRegistration(ctx echo.Context) error {
	t := contextTenant(ctx)
	reg, err := api.svc.RejectEventRegistration(ctx.Request().Context(), t.ID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "rejecting event registration")
	}
	ev, err := api.svc.GetEvent(ctx.Request().Context(), t.ID, reg.EventID)
	if err != nil {
		return errors.Wrap(err, "getting event")
	}
	d := api.notifyDecision(ctx.Request().Context(), t, reg.StudentID, func(name string) string {
		return notify.ChargeRejectedText(t.Name, name, ev.Name)
	})
	return ctx.JSON(http.StatusOK, DecisionResponse{Request: reg, Notification: d})
}

// notifyDecision silently tells the student about a decision; failures only show up as a warning.
func (api *billingApi) notifyDecision(ctx context.Context, t tenant.Tenant, studentID string, text func(name string) string) notify.Delivery {
	s, err := api.studentSvc.Get(ctx, t.ID, studentID)
	if err != nil {
		api.logger.Warn("no notification for student "+studentID, err)
		return notify.Delivery{Mode: notify.ModeSilent.String(), Warning: err.Error()}
	}
	return api.notifySvc.Dispatch(ctx, notify.Request{
		Mode:      notify.ModeSilent,
		TenantID:  t.ID,
		StudentID: s.ID,
		Name:      s.Name,
		Phone:     s.ContactPhone(),
		Email:     s.ContactEmail(),
		Subject:   t.Name,
		Text:      text(s.Name),
	})
}

func (api *billingApi) ledger(ctx echo.Context) error {
	filter := billing.LedgerFilter{
		Category: core.CleanString(ctx.QueryParam("categoria")),
		SiteID:   core.CleanString(ctx.QueryParam("sede_id")),
	}
	var err error
	if filter.From, err = parseLedgerDate("desde", ctx.QueryParam("desde"), false); err != nil {
		return err
	}
	if filter.To, err = parseLedgerDate("hasta", ctx.QueryParam("hasta"), true); err != nil {
		return err
	}

	entries, err := api.svc.Ledger(ctx.Request().Context(), contextTenant(ctx).ID, filter)
	if err != nil {
		return errors.Wrap(err, "querying ledger")
	}
	if entries == nil {
		entries = []billing.LedgerEntry{}
	}
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Amount)
	}
	return ctx.JSON(http.StatusOK, echo.Map{"movimientos": entries, "total": total})
}

// parseLedgerDate accepts RFC3339 timestamps or plain dates; a plain `hasta` date covers the whole day.
func parseLedgerDate(field, val string, endOfDay bool) (time.Time, error) {
	if val == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(dateLayout, val); err == nil {
		if endOfDay {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		return t, nil
	}
	return time.Time{}, core.NewValidationError(nil, core.FieldError{Field: field, Error: field + " must be a date (YYYY-MM-DD)"})
}
