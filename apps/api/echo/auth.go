package echoapi

import (
	"context"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/William-Pardo/tudojang-sub002/core"
	"github.com/William-Pardo/tudojang-sub002/core/user"
)

const (
	contextTokenKey = "userToken"
	contextUserKey  = "user"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64    `json:"oriat,omitempty"`
	TenantID     string   `json:"tenant_id"`
	Name         string   `json:"name,omitempty"`
	Email        string   `json:"email,omitempty"`
	IsStudent    bool     `json:"is_student,omitempty"`
	IsStaff      bool     `json:"is_staff,omitempty"`
	IsAdmin      bool     `json:"is_admin,omitempty"`
	Roles        []string `json:"roles,omitempty"`
}

// jwtAuth issues & checks the API tokens.
type jwtAuth struct {
	appName         string
	signingKey      []byte
	expiration      time.Duration
	refreshDuration time.Duration
	config          middleware.JWTConfig
}

func newJWTAuth(conf *core.Config) *jwtAuth {
	a := &jwtAuth{
		appName:         conf.AppName,
		signingKey:      []byte(conf.SecretKey),
		expiration:      conf.Server.JWTExpirationDelta,
		refreshDuration: conf.Server.JWTRefreshExpirationDelta,
	}
	a.config = middleware.JWTConfig{
		SigningKey:    a.signingKey,
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
	return a
}

// middleware authenticates the request & checks the token belongs to the resolved tenant.
func (a *jwtAuth) middleware() echo.MiddlewareFunc {
	jwtMw := middleware.JWTWithConfig(a.config)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return jwtMw(func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if claims.TenantID != contextTenant(ctx).ID {
				return errUnauthorized
			}
			return next(ctx)
		})
	}
}

func (a *jwtAuth) claims(usr user.User, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    a.appName,
			Subject:   usr.ID,
			Audience:  "Tudojang",
			ExpiresAt: now.Add(a.expiration).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		TenantID:     usr.TenantID,
		Name:         usr.Name,
		Email:        usr.Email,
		IsStudent:    usr.IsStudent(),
		IsStaff:      usr.IsStaff(),
		IsAdmin:      usr.IsAdmin(),
		Roles:        usr.Roles,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func (a *jwtAuth) GenerateToken(usr user.User, origIat ...int64) (string, error) {
	method := jwt.GetSigningMethod(a.config.SigningMethod)
	token := jwt.NewWithClaims(method, a.claims(usr, origIat...))

	ss, err := token.SignedString(a.signingKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func (a *jwtAuth) authenticate(ctx context.Context, svc *user.Service, tenantID, email, pwd string) (string, error) {
	usr, err := svc.Login(ctx, tenantID, email, pwd)
	if err != nil {
		if errors.Cause(err) == user.ErrInvalidCredentials {
			return "", errAuthenticationFailed
		}
		return "", errors.Wrap(err, "logging in")
	}
	return a.GenerateToken(usr)
}

func (a *jwtAuth) refreshToken(ctx echo.Context, svc *user.Service) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	usr, err := getContextUser(ctx, svc)
	if err != nil {
		return "", errors.Wrap(err, "getting context user")
	}
	if !usr.IsActive {
		return "", errAccountDeactivated
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(a.refreshDuration)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}
	return a.GenerateToken(usr, claims.OrigIssuedAt)
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextUser(ctx echo.Context, svc *user.Service) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, errors.Wrap(err, "getting context claims")
	}
	usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if core.IsNotFound(err) {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

func contextHasAnyRole(ctx echo.Context, roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return false
	}
	for _, role := range roles {
		for _, r := range claims.Roles {
			if r == role {
				return true
			}
		}
	}
	return false
}
