package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/William-Pardo/tudojang-sub002/core"
	"github.com/William-Pardo/tudojang-sub002/core/student"
	"github.com/William-Pardo/tudojang-sub002/core/tenant"
)

const (
	contextTenantKey  = "tenant"
	contextStudentKey = "student"
)

// tenantMiddleware resolves the tenant of the request from its Host.
func tenantMiddleware(svc *tenant.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			t, err := svc.Resolve(ctx.Request().Context(), ctx.Request().Host)
			if err != nil {
				if core.IsNotFound(err) {
					return errHttpNotFound
				}
				return errors.Wrap(err, "resolving tenant")
			}
			ctx.Set(contextTenantKey, t)
			return next(ctx)
		}
	}
}

func contextTenant(ctx echo.Context) tenant.Tenant {
	t, _ := ctx.Get(contextTenantKey).(tenant.Tenant)
	return t
}

func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin && contextHasAnyRole(ctx, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// staffMiddleware lets admins & instructors through.
func staffMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context claims")
		}
		if !claims.IsStaff {
			return errHttpForbidden
		}
		return next(ctx)
	}
}

// studentMiddleware loads the :id student of the tenant into the context.
func studentMiddleware(svc *student.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			s, err := svc.Get(ctx.Request().Context(), contextTenant(ctx).ID, ctx.Param("id"))
			if err != nil {
				if core.IsNotFound(err) {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding student by ID")
			}
			ctx.Set(contextStudentKey, s)
			return next(ctx)
		}
	}
}

func contextStudent(ctx echo.Context) (student.Student, error) {
	s, ok := ctx.Get(contextStudentKey).(student.Student)
	if !ok {
		return student.Student{}, errors.New("student not found in echo.Context")
	}
	return s, nil
}
