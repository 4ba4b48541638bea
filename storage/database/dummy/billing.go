package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/William-Pardo/tudojang-sub002/core/billing"
	"github.com/William-Pardo/tudojang-sub002/core/student"
)

type billingRepository struct {
	db *DB
}

var _ billing.Repository = (*billingRepository)(nil) // interface compliance check

func NewBillingRepository(db *DB) billing.Repository {
	return &billingRepository{db: db}
}

func (repo *billingRepository) CreateStoreRequest(_ context.Context, req billing.StoreRequest) (billing.StoreRequest, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.storeRequests[req.ID] = &req
	return req, nil
}

func (repo *billingRepository) GetStoreRequest(_ context.Context, tenantID, id string) (billing.StoreRequest, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	req, ok := repo.db.storeRequests[id]
	if !ok || req.TenantID != tenantID {
		return billing.StoreRequest{}, billing.ErrStoreRequestNotFound
	}
	return *req, nil
}

func (repo *billingRepository) QueryUnpaidStoreRequests(_ context.Context, tenantID, studentID string) ([]billing.StoreRequest, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	reqs := make([]billing.StoreRequest, 0)
	for _, req := range repo.db.storeRequests {
		if req.TenantID == tenantID && req.StudentID == studentID && req.Payable() {
			reqs = append(reqs, *req)
		}
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].CreatedAt.Before(reqs[j].CreatedAt) })
	return reqs, nil
}

func (repo *billingRepository) RejectStoreRequest(_ context.Context, tenantID, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	req, ok := repo.db.storeRequests[id]
	if !ok || req.TenantID != tenantID {
		return billing.ErrStoreRequestNotFound
	}
	if req.Status != billing.RequestPending {
		return billing.ErrAlreadyDecided
	}
	req.Status = billing.RequestRejected
	return nil
}

func (repo *billingRepository) CreateEvent(_ context.Context, ev billing.Event) (billing.Event, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.events[ev.ID] = &ev
	return ev, nil
}

func (repo *billingRepository) GetEventsByID(_ context.Context, tenantID string, ids ...string) ([]billing.Event, error) {
	repo.db.Lock() // stats
	defer repo.db.Unlock()

	repo.db.count("GetEventsByID")
	evs := make([]billing.Event, 0, len(ids))
	for _, id := range ids {
		if ev, ok := repo.db.events[id]; ok && ev.TenantID == tenantID {
			evs = append(evs, *ev)
		}
	}
	return evs, nil
}

func (repo *billingRepository) CreateEventRegistration(_ context.Context, reg billing.EventRegistration) (billing.EventRegistration, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.registrations[reg.ID] = &reg
	return reg, nil
}

func (repo *billingRepository) GetEventRegistration(_ context.Context, tenantID, id string) (billing.EventRegistration, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	reg, ok := repo.db.registrations[id]
	if !ok || reg.TenantID != tenantID {
		return billing.EventRegistration{}, billing.ErrRegistrationNotFound
	}
	return *reg, nil
}

func (repo *billingRepository) QueryUnpaidEventRegistrations(_ context.Context, tenantID, studentID string) ([]billing.EventRegistration, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	regs := make([]billing.EventRegistration, 0)
	for _, reg := range repo.db.registrations {
		if reg.TenantID == tenantID && reg.StudentID == studentID && reg.Payable() {
			regs = append(regs, *reg)
		}
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i].CreatedAt.Before(regs[j].CreatedAt) })
	return regs, nil
}

func (repo *billingRepository) RejectEventRegistration(_ context.Context, tenantID, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	reg, ok := repo.db.registrations[id]
	if !ok || reg.TenantID != tenantID {
		return billing.ErrRegistrationNotFound
	}
	if reg.Status != billing.RequestPending {
		return billing.ErrAlreadyDecided
	}
	reg.Status = billing.RequestRejected
	return nil
}

func (repo *billingRepository) ApproveCharge(_ context.Context, a billing.ChargeApproval) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	s, err := repo.db.getStudent(a.TenantID, a.StudentID)
	if err != nil {
		return err
	}

	var status *billing.RequestStatus
	var approvedAt **time.Time
	switch a.Kind {
	case billing.KindStore:
		req, ok := repo.db.storeRequests[a.RequestID]
		if !ok || req.TenantID != a.TenantID {
			return billing.ErrStoreRequestNotFound
		}
		status, approvedAt = &req.Status, &req.ApprovedAt
	case billing.KindEvent:
		reg, ok := repo.db.registrations[a.RequestID]
		if !ok || reg.TenantID != a.TenantID {
			return billing.ErrRegistrationNotFound
		}
		status, approvedAt = &reg.Status, &reg.ApprovedAt
	case billing.KindSubscription, billing.KindLateFee, billing.KindEnrollment:
		return billing.ErrNotManualKind
	}
	if status == nil {
		return billing.ErrUnknownKind
	}
	if *status != billing.RequestPending {
		return billing.ErrAlreadyDecided
	}

	at := a.ApprovedAt
	*status = billing.RequestApproved
	*approvedAt = &at
	addToBalance(s, a.Amount, at)
	return nil
}

func (repo *billingRepository) AddToBalance(_ context.Context, tenantID, studentID string, amount decimal.Decimal, at time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	s, err := repo.db.getStudent(tenantID, studentID)
	if err != nil {
		return err
	}
	addToBalance(s, amount, at)
	return nil
}

func addToBalance(s *student.Student, amount decimal.Decimal, at time.Time) {
	s.Balance = s.Balance.Add(amount)
	if s.PaymentStatus != student.StatusOverdue {
		s.PaymentStatus = student.StatusForBalance(s.Balance)
	}
	s.UpdatedAt = at
}

func (repo *billingRepository) CommitPayment(_ context.Context, batch billing.PaymentBatch) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	p := batch.Payment
	s, err := repo.db.getStudent(p.TenantID, p.StudentID)
	if err != nil {
		return err
	}

	// check everything before writing anything
	if _, taken := repo.db.payments[p.ReceiptID]; taken {
		return billing.ErrReceiptExists
	}
	if !s.Balance.Equal(batch.ExpectedBalance) {
		return billing.ErrBalanceChanged
	}
	for _, id := range batch.StoreRequestIDs {
		req, ok := repo.db.storeRequests[id]
		if !ok || req.TenantID != p.TenantID || req.StudentID != p.StudentID {
			return billing.ErrStoreRequestNotFound
		}
		if !req.Payable() {
			return billing.ErrChargeAlreadyPaid
		}
	}
	for _, id := range batch.RegistrationIDs {
		reg, ok := repo.db.registrations[id]
		if !ok || reg.TenantID != p.TenantID || reg.StudentID != p.StudentID {
			return billing.ErrRegistrationNotFound
		}
		if !reg.Payable() {
			return billing.ErrChargeAlreadyPaid
		}
	}

	for _, id := range batch.StoreRequestIDs {
		req := repo.db.storeRequests[id]
		req.Paid = true
		req.PaymentStamp = batch.Stamp
	}
	for _, id := range batch.RegistrationIDs {
		reg := repo.db.registrations[id]
		reg.Paid = true
		reg.PaymentStamp = batch.Stamp
	}
	s.Balance = batch.NewBalance
	s.PaymentStatus = batch.NewStatus
	s.UpdatedAt = p.CreatedAt

	p.Items = append([]billing.PaymentItem(nil), p.Items...)
	repo.db.payments[p.ReceiptID] = &p
	repo.db.ledger = append(repo.db.ledger, batch.Ledger)
	return nil
}

func (repo *billingRepository) QueryPayments(_ context.Context, tenantID, studentID string) ([]billing.Payment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	payments := make([]billing.Payment, 0)
	for _, p := range repo.db.payments {
		if p.TenantID == tenantID && p.StudentID == studentID {
			payments = append(payments, copyPayment(p))
		}
	}
	sort.Slice(payments, func(i, j int) bool { return payments[i].CreatedAt.After(payments[j].CreatedAt) })
	return payments, nil
}

func (repo *billingRepository) GetPayment(_ context.Context, tenantID, receiptID string) (billing.Payment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	p, ok := repo.db.payments[receiptID]
	if !ok || p.TenantID != tenantID {
		return billing.Payment{}, billing.ErrPaymentNotFound
	}
	return copyPayment(p), nil
}

func copyPayment(p *billing.Payment) billing.Payment {
	cp := *p
	cp.Items = append([]billing.PaymentItem(nil), p.Items...)
	return cp
}

func (repo *billingRepository) QueryLedger(_ context.Context, tenantID string, filter billing.LedgerFilter) ([]billing.LedgerEntry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	entries := make([]billing.LedgerEntry, 0)
	for _, e := range repo.db.ledger {
		switch {
		case e.TenantID != tenantID,
			filter.Category != "" && e.Category != filter.Category,
			filter.SiteID != "" && e.SiteID != filter.SiteID,
			!filter.From.IsZero() && e.Date.Before(filter.From),
			!filter.To.IsZero() && e.Date.After(filter.To):
			continue
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Date.After(entries[j].Date) })
	return entries, nil
}
