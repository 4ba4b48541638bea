package billing

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/William-Pardo/tudojang-sub002/core"
	"github.com/William-Pardo/tudojang-sub002/core/student"
)

var (
	// errors
	ErrStoreRequestNotFound = core.NewNotFoundError("store request not found")
	ErrRegistrationNotFound = core.NewNotFoundError("event registration not found")
	ErrEventNotFound        = core.NewNotFoundError("event not found")
	ErrPaymentNotFound      = core.NewNotFoundError("payment not found")
	ErrEmptySelection       = errors.New("select at least one item")
	ErrNegativeAmount       = errors.New("the amount received cannot be negative")
	ErrChargeNotPayable     = errors.New("charge is not an outstanding charge of this student")
	ErrAlreadyDecided       = errors.New("request was already approved or rejected")
	ErrNotManualKind        = errors.New("only monthly fees, late fees and enrollments can be charged manually")
	// ErrBalanceChanged is returned when the student's balance moved between read & write (lost compare-and-set).
	ErrBalanceChanged = errors.New("the student's balance changed while processing the payment, please retry")
	// ErrChargeAlreadyPaid is returned when a selected request got paid between read & write.
	ErrChargeAlreadyPaid = errors.New("a selected charge was already paid, please retry")
	ErrPaymentInProgress = errors.New("a payment for this student is already in progress")
	// ErrReceiptExists is returned by CommitPayment when the receipt id is already used by another payment.
	ErrReceiptExists   = errors.New("receipt id already in use")
	ErrDuplicateCharge = errors.New("the same charge was selected more than once")
)

type (
	Repository interface {
		CreateStoreRequest(ctx context.Context, req StoreRequest) (StoreRequest, error)
		GetStoreRequest(ctx context.Context, tenantID, id string) (StoreRequest, error)
		// QueryUnpaidStoreRequests returns the approved & unpaid requests of the student.
		QueryUnpaidStoreRequests(ctx context.Context, tenantID, studentID string) ([]StoreRequest, error)
		RejectStoreRequest(ctx context.Context, tenantID, id string) error

		CreateEvent(ctx context.Context, ev Event) (Event, error)
		// GetEventsByID fetches all `ids` in one round trip; missing ids are left out.
		GetEventsByID(ctx context.Context, tenantID string, ids ...string) ([]Event, error)
		CreateEventRegistration(ctx context.Context, reg EventRegistration) (EventRegistration, error)
		GetEventRegistration(ctx context.Context, tenantID, id string) (EventRegistration, error)
		// QueryUnpaidEventRegistrations returns the approved & unpaid registrations of the student.
		QueryUnpaidEventRegistrations(ctx context.Context, tenantID, studentID string) ([]EventRegistration, error)
		RejectEventRegistration(ctx context.Context, tenantID, id string) error

		// ApproveCharge approves a pending request & adds its amount to the student's balance, atomically.
		ApproveCharge(ctx context.Context, approval ChargeApproval) error
		// AddToBalance raises the student's balance by `amount` and flags them pending.
		AddToBalance(ctx context.Context, tenantID, studentID string, amount decimal.Decimal, at time.Time) error

		// CommitPayment applies all writes of `batch` in one transaction.
		// It fails with ErrBalanceChanged when the balance is not batch.ExpectedBalance anymore
		// and with ErrChargeAlreadyPaid when a request is already paid; nothing is written then.
		CommitPayment(ctx context.Context, batch PaymentBatch) error
		QueryPayments(ctx context.Context, tenantID, studentID string) ([]Payment, error)
		GetPayment(ctx context.Context, tenantID, receiptID string) (Payment, error)
		QueryLedger(ctx context.Context, tenantID string, filter LedgerFilter) ([]LedgerEntry, error)
	}

	// ReceiptIDFunc generates receipt identifiers.
	ReceiptIDFunc func(now time.Time) string

	// Observer is notified of processed payments (metrics).
	Observer interface {
		PaymentProcessed(success bool, amount decimal.Decimal)
	}

	Service struct {
		repo       Repository
		students   student.Repository
		logger     core.Logger
		observer   Observer
		receiptID  ReceiptIDFunc
		now        func() time.Time
		inflightMu sync.Mutex
		inflight   map[string]struct{}
	}

	Option func(svc *Service)
)

// WithReceiptIDFunc overrides the receipt id generator.
func WithReceiptIDFunc(fn ReceiptIDFunc) Option {
	return func(svc *Service) { svc.receiptID = fn }
}

// WithClock overrides the service clock.
func WithClock(now func() time.Time) Option {
	return func(svc *Service) { svc.now = now }
}

func WithObserver(obs Observer) Option {
	return func(svc *Service) { svc.observer = obs }
}

func NewService(repo Repository, students student.Repository, logger core.Logger, opts ...Option) *Service {
	svc := &Service{
		repo:      repo,
		students:  students,
		logger:    logger,
		receiptID: NewReceiptIDFunc(rand.New(rand.NewSource(time.Now().UnixNano()))),
		now:       func() time.Time { return time.Now().UTC() },
		inflight:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// NewReceiptIDFunc returns a generator of REC-<year>-<4 digits> identifiers drawing from `rnd`.
func NewReceiptIDFunc(rnd *rand.Rand) ReceiptIDFunc {
	var mu sync.Mutex
	return func(now time.Time) string {
		mu.Lock()
		n := rnd.Intn(10000)
		mu.Unlock()
		return fmt.Sprintf("REC-%d-%04d", now.Year(), n)
	}
}

// acquire marks the student as having a payment in flight; false if one already is.
func (svc *Service) acquire(tenantID, studentID string) bool {
	key := tenantID + "/" + studentID
	svc.inflightMu.Lock()
	defer svc.inflightMu.Unlock()
	if _, busy := svc.inflight[key]; busy {
		return false
	}
	svc.inflight[key] = struct{}{}
	return true
}

func (svc *Service) release(tenantID, studentID string) {
	svc.inflightMu.Lock()
	delete(svc.inflight, tenantID+"/"+studentID)
	svc.inflightMu.Unlock()
}

func (svc *Service) History(ctx context.Context, tenantID, studentID string) ([]Payment, error) {
	if _, err := svc.students.GetStudent(ctx, tenantID, studentID); err != nil {
		return nil, err
	}
	return svc.repo.QueryPayments(ctx, tenantID, studentID)
}

func (svc *Service) GetPayment(ctx context.Context, tenantID, receiptID string) (Payment, error) {
	return svc.repo.GetPayment(ctx, tenantID, core.CleanString(receiptID))
}

func (svc *Service) Ledger(ctx context.Context, tenantID string, filter LedgerFilter) ([]LedgerEntry, error) {
	filter.Category = core.CleanString(filter.Category)
	filter.SiteID = core.CleanString(filter.SiteID)
	return svc.repo.QueryLedger(ctx, tenantID, filter)
}
