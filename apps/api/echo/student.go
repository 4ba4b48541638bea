package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/William-Pardo/tudojang-sub002/core"
	"github.com/William-Pardo/tudojang-sub002/core/billing"
	"github.com/William-Pardo/tudojang-sub002/core/receipt"
	"github.com/William-Pardo/tudojang-sub002/core/student"
)

type studentApi struct {
	svc        *student.Service
	billingSvc *billing.Service
	validate   *validator.Validate
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, _ *jwtAuth, deps Deps) {
	api := studentApi{svc: deps.StudentSvc, billingSvc: deps.BillingSvc, validate: deps.Validate}

	sg := g.Group("/students", jwt, staffMiddleware)
	sg.GET("", api.query)
	sg.POST("", api.create)

	dg := sg.Group("/:id", studentMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy, adminMiddleware())
	dg.POST("/overdue", api.markOverdue, adminMiddleware())
	dg.GET("/debt", api.debt)
	dg.GET("/payments", api.history)
	dg.POST("/payments", api.pay)
	dg.POST("/charges", api.charge, adminMiddleware())
}

func (api *studentApi) query(ctx echo.Context) error {
	params := ctx.QueryParams()
	filter := student.QueryFilter{
		Search: params.Get("search"),
		SiteID: params.Get("site_id"),
		Status: params["status"],
	}
	if v := params.Get("debtor"); v != "" {
		debtor, err := strconv.ParseBool(v)
		if err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "debtor", Error: "debtor must be true or false"})
		}
		filter.Debtor = &debtor
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	students, err := api.svc.Query(ctx.Request().Context(), contextTenant(ctx).ID, filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []student.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) create(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	s, err := api.svc.Create(ctx.Request().Context(), contextTenant(ctx).ID, data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	s, err := contextStudent(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) update(ctx echo.Context) error {
	s, err := contextStudent(ctx)
	if err != nil {
		return err
	}
	var data student.UpdateStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	if err := data.Validate(api.validate, s); err != nil {
		return err
	}
	s, err = api.svc.Update(ctx.Request().Context(), s, data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) destroy(ctx echo.Context) error {
	s, err := contextStudent(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), s.TenantID, s.ID); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *studentApi) markOverdue(ctx echo.Context) error {
	s, err := contextStudent(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.MarkOverdue(ctx.Request().Context(), s.TenantID, s.ID); err != nil {
		return errors.Wrap(err, "marking student overdue")
	}
	s, err = api.svc.Get(ctx.Request().Context(), s.TenantID, s.ID)
	if err != nil {
		return errors.Wrap(err, "getting student")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) debt(ctx echo.Context) error {
	s, err := contextStudent(ctx)
	if err != nil {
		return err
	}
	debt, err := api.billingSvc.AggregateDebt(ctx.Request().Context(), s.TenantID, s.ID)
	if err != nil {
		return errors.Wrap(err, "aggregating debt")
	}
	return ctx.JSON(http.StatusOK, debt)
}

func (api *studentApi) history(ctx echo.Context) error {
	s, err := contextStudent(ctx)
	if err != nil {
		return err
	}
	payments, err := api.billingSvc.History(ctx.Request().Context(), s.TenantID, s.ID)
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	if payments == nil {
		payments = []billing.Payment{}
	}
	return ctx.JSON(http.StatusOK, payments)
}

// pay runs a checkout attempt; the body is the Result, successful or not.
func (api *studentApi) pay(ctx echo.Context) error {
	s, err := contextStudent(ctx)
	if err != nil {
		return err
	}
	var data billing.NewPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}

	attempt := billing.NewAttempt(s.ID)
	if err := attempt.Select(data); err != nil {
		return errors.Wrap(err, "selecting charges")
	}
	res, err := attempt.Run(ctx.Request().Context(), api.billingSvc, s.TenantID)
	if err != nil {
		return errors.Wrap(err, "running payment attempt")
	}
	if !res.Success {
		return ctx.JSON(resultStatus(res.Err), CheckoutResponse{Result: res})
	}

	resp := CheckoutResponse{Result: res}
	if err := attempt.GeneratingReceipt(); err != nil {
		return errors.Wrap(err, "generating receipt")
	}
	if res.Payment != nil {
		rd := receipt.FromPayment(*res.Payment, s)
		resp.Receipt = &rd
		resp.Filename = receipt.Filename(rd)
		resp.ImageURL = "/v1/receipts/" + res.ReceiptID + "/image"
	}
	if err := attempt.Ready(); err != nil {
		return errors.Wrap(err, "finishing payment attempt")
	}
	return ctx.JSON(http.StatusCreated, resp)
}

// resultStatus maps a failed payment to its HTTP status.
func resultStatus(err error) int {
	switch errors.Cause(err) {
	case billing.ErrBalanceChanged, billing.ErrChargeAlreadyPaid:
		return http.StatusConflict
	}
	switch cause := errors.Cause(err).(type) {
	case *core.ValidationError:
		if errors.Cause(cause.Err) == billing.ErrPaymentInProgress {
			return http.StatusConflict
		}
		return http.StatusBadRequest
	case *core.NotFoundError:
		return http.StatusNotFound
	case *core.ExternalServiceError:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (api *studentApi) charge(ctx echo.Context) error {
	s, err := contextStudent(ctx)
	if err != nil {
		return err
	}
	var data billing.ManualCharge
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ManualCharge")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if err := api.billingSvc.AddManualCharge(ctx.Request().Context(), s.TenantID, s.ID, data); err != nil {
		return errors.Wrap(err, "adding manual charge")
	}
	s, err = api.svc.Get(ctx.Request().Context(), s.TenantID, s.ID)
	if err != nil {
		return errors.Wrap(err, "getting student")
	}
	return ctx.JSON(http.StatusOK, s)
}

// CheckoutResponse is the outcome of a payment, with the receipt when it succeeded.
type CheckoutResponse struct {
	billing.Result
	Receipt  *receipt.Data `json:"recibo,omitempty"`
	Filename string        `json:"nombreArchivo,omitempty"`
	ImageURL string        `json:"imagenUrl,omitempty"`
}
