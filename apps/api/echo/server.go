package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/William-Pardo/tudojang-sub002/core"
	"github.com/William-Pardo/tudojang-sub002/core/billing"
	"github.com/William-Pardo/tudojang-sub002/core/notify"
	"github.com/William-Pardo/tudojang-sub002/core/receipt"
	"github.com/William-Pardo/tudojang-sub002/core/student"
	"github.com/William-Pardo/tudojang-sub002/core/tenant"
	"github.com/William-Pardo/tudojang-sub002/core/user"
)

type (
	// Deps holds the services the API is built on.
	Deps struct {
		Conf           *core.Config
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		TenantSvc      *tenant.Service
		UserSvc        *user.Service
		StudentSvc     *student.Service
		BillingSvc     *billing.Service
		NotifySvc      *notify.Service
		Renderer       *receipt.Renderer
		MetricsHandler http.Handler
		DisableReqLogs bool
	}

	Server struct {
		deps     Deps
		app      *echo.Echo
		auth     *jwtAuth
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps Deps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		auth:     newJWTAuth(deps.Conf),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.SignalShutdown)
	s.app.Debug = conf.Debug && !conf.TestMode

	s.app.GET("/", s.home)
	if s.deps.MetricsHandler != nil {
		s.app.GET("/metrics", echo.WrapHandler(s.deps.MetricsHandler))
	}

	v1 := s.app.Group("/v1", tenantMiddleware(s.deps.TenantSvc))
	jwt := s.auth.middleware()

	registerUserAPI(v1, jwt, s.auth, s.deps)
	registerTenantAPI(v1, jwt, s.auth, s.deps)
	registerStudentAPI(v1, jwt, s.auth, s.deps)
	registerBillingAPI(v1, jwt, s.auth, s.deps)
	registerReceiptAPI(v1, jwt, s.auth, s.deps)
}

// Start listens on the configured address; errors are sent on Errors().
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

// SignalShutdown asks the process to shut down gracefully.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

// GenerateToken signs a token for `usr`, as a login would.
func (s *Server) GenerateToken(usr user.User) (string, error) {
	return s.auth.GenerateToken(usr)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
