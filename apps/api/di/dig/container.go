package dig_container

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/William-Pardo/tudojang-sub002/apps/api/echo"
	"github.com/William-Pardo/tudojang-sub002/core"
	"github.com/William-Pardo/tudojang-sub002/core/billing"
	"github.com/William-Pardo/tudojang-sub002/core/notify"
	"github.com/William-Pardo/tudojang-sub002/core/receipt"
	"github.com/William-Pardo/tudojang-sub002/core/student"
	"github.com/William-Pardo/tudojang-sub002/core/tenant"
	"github.com/William-Pardo/tudojang-sub002/core/user"
	emailsvc "github.com/William-Pardo/tudojang-sub002/services/email"
	logsvc "github.com/William-Pardo/tudojang-sub002/services/logger"
	"github.com/William-Pardo/tudojang-sub002/services/metrics"
	"github.com/William-Pardo/tudojang-sub002/storage/database"
	dummydb "github.com/William-Pardo/tudojang-sub002/storage/database/dummy"
	sqlxrepos "github.com/William-Pardo/tudojang-sub002/storage/database/sqlx"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// Repositories are the storage of the configured engine.
	Repositories struct {
		dig.Out
		Tenants  tenant.Repository
		Users    user.Repository
		Students student.Repository
		Billing  billing.Repository
		Notify   notify.Repository
		DB       io.Closer `name:"db"`
	}

	DBParam struct {
		dig.In
		DB io.Closer `name:"db"`
	}

	ServerParams struct {
		dig.In
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator
		TenantSvc  *tenant.Service
		UserSvc    *user.Service
		StudentSvc *student.Service
		BillingSvc *billing.Service
		NotifySvc  *notify.Service
		Renderer   *receipt.Renderer
		Metrics    *metrics.Recorder
	}
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newLogger(conf *core.Config) *logsvc.RollbarLogger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newRepositories(conf *core.Config, loggerParam DBLoggerParam) Repositories {
	logger := loggerParam.Logger

	if conf.Database.Engine == core.EngineMemory {
		db, _ := dummydb.Open()
		logger.Info("using the in-memory storage, data is lost on exit")
		return Repositories{
			Tenants:  dummydb.NewTenantRepository(db),
			Users:    dummydb.NewUserRepository(db),
			Students: dummydb.NewStudentRepository(db),
			Billing:  dummydb.NewBillingRepository(db),
			Notify:   dummydb.NewNotifyRepository(db),
			DB:       nopCloser{},
		}
	}

	if conf.Database.Engine == core.EnginePostgres {
		if err := database.CreateIfNotExist(conf); err != nil {
			logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
		}
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	if err := database.Migrate(db, conf.Database.Engine); err != nil {
		logger.Fatal(fmt.Sprintf("migrating database: %v", err), err)
	}
	return Repositories{
		Tenants:  sqlxrepos.NewTenantRepository(db),
		Users:    sqlxrepos.NewUserRepository(db),
		Students: sqlxrepos.NewStudentRepository(db),
		Billing:  sqlxrepos.NewBillingRepository(db),
		Notify:   sqlxrepos.NewNotifyRepository(db),
		DB:       db,
	}
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newBillingService(repo billing.Repository, students student.Repository, logger core.Logger, rec *metrics.Recorder) *billing.Service {
	return billing.NewService(repo, students, logger, billing.WithObserver(rec))
}

func newNotifyService(repo notify.Repository, mailSvc core.EmailService, logger core.Logger, conf *core.Config, rec *metrics.Recorder) *notify.Service {
	return notify.NewService(repo, mailSvc, logger, conf, notify.WithObserver(rec))
}

func newServer(p ServerParams) *echoapi.Server {
	var metricsHandler http.Handler
	if p.Metrics != nil {
		metricsHandler = p.Metrics.Handler()
	}
	return echoapi.NewServer(echoapi.Deps{
		Conf:           p.Conf,
		Logger:         p.Logger,
		Validate:       p.Validate,
		Translator:     p.Translator,
		TenantSvc:      p.TenantSvc,
		UserSvc:        p.UserSvc,
		StudentSvc:     p.StudentSvc,
		BillingSvc:     p.BillingSvc,
		NotifySvc:      p.NotifySvc,
		Renderer:       p.Renderer,
		MetricsHandler: metricsHandler,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(func(l *logsvc.RollbarLogger) core.Logger { return l }))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newRepositories))
	must(c.Provide(emailsvc.NewService))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))
	must(c.Provide(metrics.NewRecorder))
	must(c.Provide(receipt.NewRenderer))
	must(c.Provide(tenant.NewService))
	must(c.Provide(user.NewService))
	must(c.Provide(student.NewService))
	must(c.Provide(newBillingService))
	must(c.Provide(newNotifyService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
