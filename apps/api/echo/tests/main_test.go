package tests

import (
	"context"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	. "github.com/William-Pardo/tudojang-sub002/apps/api/echo"
	"github.com/William-Pardo/tudojang-sub002/core"
	"github.com/William-Pardo/tudojang-sub002/core/billing"
	"github.com/William-Pardo/tudojang-sub002/core/notify"
	"github.com/William-Pardo/tudojang-sub002/core/receipt"
	"github.com/William-Pardo/tudojang-sub002/core/student"
	"github.com/William-Pardo/tudojang-sub002/core/tenant"
	"github.com/William-Pardo/tudojang-sub002/core/user"
	emailsvc "github.com/William-Pardo/tudojang-sub002/services/email"
	dummydb "github.com/William-Pardo/tudojang-sub002/storage/database/dummy"
	testutil "github.com/William-Pardo/tudojang-sub002/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

// env is a server running on a fresh in-memory storage, with the default tenant & one user per role.
type env struct {
	app      *Server
	tenants  tenant.Repository
	users    user.Repository
	students student.Repository
	billing  billing.Repository
	billSvc  *billing.Service
	mailSvc  *emailsvc.ConsoleServiceMock
	logger   *testutil.Logger

	tenant tenant.Tenant

	owner, admin, instructor, student user.User
	ownerToken, adminToken            string
	instructorToken, studentToken     string
}

func setup(t *testing.T) *env {
	t.Helper()
	conf := testutil.NewConfig()
	logger := testutil.NewLogger()

	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.RegisterValidators(validate, translator)

	// set up DB & repos
	db, _ := dummydb.Open()
	e := &env{
		tenants:  dummydb.NewTenantRepository(db),
		users:    dummydb.NewUserRepository(db),
		students: dummydb.NewStudentRepository(db),
		billing:  dummydb.NewBillingRepository(db),
		mailSvc:  emailsvc.NewConsoleServiceMock(conf, logger),
		logger:   logger,
	}

	// set up services
	var mu sync.Mutex
	var seq int
	receiptID := func(now time.Time) string {
		mu.Lock()
		defer mu.Unlock()
		seq++
		return fmt.Sprintf("REC-%d-%04d", now.Year(), seq)
	}
	tenantSvc := tenant.NewService(e.tenants, conf)
	studentSvc := student.NewService(e.students)
	e.billSvc = billing.NewService(e.billing, e.students, logger, billing.WithReceiptIDFunc(receiptID))

	// set up server
	e.app = NewServer(Deps{
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		TenantSvc:      tenantSvc,
		UserSvc:        user.NewService(e.users),
		StudentSvc:     studentSvc,
		BillingSvc:     e.billSvc,
		NotifySvc:      notify.NewService(dummydb.NewNotifyRepository(db), e.mailSvc, logger, conf),
		Renderer:       receipt.NewRenderer(logger),
		DisableReqLogs: true,
	})
	t.Cleanup(func() { _ = e.app.Close() })

	e.tenant = testutil.CreateTenant(t, e.tenants, testutil.DefaultTenant, "Club Demo")
	e.owner = testutil.CreateUser(t, e.users, e.tenant.ID, "Olga", "olga@test.co", "Tudojang-2024!x", []string{user.RoleAdminOwner}, true)
	e.admin = testutil.CreateUser(t, e.users, e.tenant.ID, "Ana", "ana@test.co", "Tudojang-2024!x", []string{user.RoleAdmin}, true)
	e.instructor = testutil.CreateUser(t, e.users, e.tenant.ID, "Iván", "ivan@test.co", "Tudojang-2024!x", []string{user.RoleInstructor}, true)
	e.student = testutil.CreateUser(t, e.users, e.tenant.ID, "Sara", "sara@test.co", "Tudojang-2024!x", []string{user.RoleStudent}, true)
	e.ownerToken = getToken(t, e.app, e.owner)
	e.adminToken = getToken(t, e.app, e.admin)
	e.instructorToken = getToken(t, e.app, e.instructor)
	e.studentToken = getToken(t, e.app, e.student)
	return e
}

func (e *env) serve(tt httpTest) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
	e.app.ServeHTTP(rec, req)
	return rec
}

// approvedStoreRequest files & approves a store purchase for the student, raising their balance.
func (e *env) approvedStoreRequest(t *testing.T, studentID, item string, amount decimal.Decimal) billing.StoreRequest {
	t.Helper()
	ctx := context.Background()
	req, err := e.billSvc.CreateStoreRequest(ctx, e.tenant.ID, billing.NewStoreRequest{StudentID: studentID, ItemName: item, Quantity: 1, Amount: amount})
	if err != nil {
		t.Fatalf("approvedStoreRequest() failed: %v", err)
	}
	req, err = e.billSvc.ApproveStoreRequest(ctx, e.tenant.ID, req.ID)
	if err != nil {
		t.Fatalf("approvedStoreRequest() failed: %v", err)
	}
	return req
}
