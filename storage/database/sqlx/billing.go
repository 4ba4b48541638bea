package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/William-Pardo/tudojang-sub002/core/billing"
	"github.com/William-Pardo/tudojang-sub002/core/student"
)

type stampRow struct {
	ReceiptID     null.String `db:"receipt_id"`
	PaidAt        null.Time   `db:"paid_at"`
	PaymentMethod null.String `db:"payment_method"`
}

func (r stampRow) stamp() billing.PaymentStamp {
	return billing.PaymentStamp{ReceiptID: r.ReceiptID.String, PaidAt: timePtr(r.PaidAt), Method: r.PaymentMethod.String}
}

type storeRequestRow struct {
	ID         string                `db:"id"`
	TenantID   string                `db:"tenant_id"`
	StudentID  string                `db:"student_id"`
	ItemName   string                `db:"item_name"`
	Quantity   int                   `db:"quantity"`
	Amount     decimal.Decimal       `db:"amount"`
	Status     billing.RequestStatus `db:"status"`
	Paid       bool                  `db:"paid"`
	CreatedAt  time.Time             `db:"created_at"`
	ApprovedAt null.Time             `db:"approved_at"`
	stampRow
}

func (r storeRequestRow) storeRequest() billing.StoreRequest {
	return billing.StoreRequest{
		ID:           r.ID,
		TenantID:     r.TenantID,
		StudentID:    r.StudentID,
		ItemName:     r.ItemName,
		Quantity:     r.Quantity,
		Amount:       r.Amount,
		Status:       r.Status,
		Paid:         r.Paid,
		CreatedAt:    r.CreatedAt.UTC(),
		ApprovedAt:   timePtr(r.ApprovedAt),
		PaymentStamp: r.stamp(),
	}
}

type eventRow struct {
	ID        string          `db:"id"`
	TenantID  string          `db:"tenant_id"`
	Name      string          `db:"name"`
	Price     decimal.Decimal `db:"price"`
	Date      time.Time       `db:"date"`
	CreatedAt time.Time       `db:"created_at"`
}

func (r eventRow) event() billing.Event {
	return billing.Event{ID: r.ID, TenantID: r.TenantID, Name: r.Name, Price: r.Price, Date: r.Date.UTC(), CreatedAt: r.CreatedAt.UTC()}
}

type registrationRow struct {
	ID         string                `db:"id"`
	TenantID   string                `db:"tenant_id"`
	StudentID  string                `db:"student_id"`
	EventID    string                `db:"event_id"`
	Status     billing.RequestStatus `db:"status"`
	Paid       bool                  `db:"paid"`
	CreatedAt  time.Time             `db:"created_at"`
	ApprovedAt null.Time             `db:"approved_at"`
	stampRow
}

func (r registrationRow) registration() billing.EventRegistration {
	return billing.EventRegistration{
		ID:           r.ID,
		TenantID:     r.TenantID,
		StudentID:    r.StudentID,
		EventID:      r.EventID,
		Status:       r.Status,
		Paid:         r.Paid,
		CreatedAt:    r.CreatedAt.UTC(),
		ApprovedAt:   timePtr(r.ApprovedAt),
		PaymentStamp: r.stamp(),
	}
}

type paymentRow struct {
	ReceiptID       string          `db:"receipt_id"`
	TenantID        string          `db:"tenant_id"`
	StudentID       string          `db:"student_id"`
	Amount          decimal.Decimal `db:"amount"`
	Method          string          `db:"method"`
	Concept         string          `db:"concept"`
	Notes           string          `db:"notes"`
	PreviousBalance decimal.Decimal `db:"previous_balance"`
	NewBalance      decimal.Decimal `db:"new_balance"`
	CreatedAt       time.Time       `db:"created_at"`
}

type paymentItemRow struct {
	ReceiptID   string          `db:"receipt_id"`
	Position    int             `db:"position"`
	ChargeID    string          `db:"charge_id"`
	Kind        billing.Kind    `db:"kind"`
	Description string          `db:"description"`
	Amount      decimal.Decimal `db:"amount"`
}

type ledgerRow struct {
	ID          string          `db:"id"`
	TenantID    string          `db:"tenant_id"`
	Type        string          `db:"type"`
	Category    string          `db:"category"`
	Amount      decimal.Decimal `db:"amount"`
	Description string          `db:"description"`
	Date        time.Time       `db:"date"`
	SiteID      null.String     `db:"site_id"`
	ReceiptID   null.String     `db:"receipt_id"`
}

func (r ledgerRow) entry() billing.LedgerEntry {
	return billing.LedgerEntry{
		ID:          r.ID,
		TenantID:    r.TenantID,
		Type:        r.Type,
		Category:    r.Category,
		Amount:      r.Amount,
		Description: r.Description,
		Date:        r.Date.UTC(),
		SiteID:      r.SiteID.String,
		ReceiptID:   r.ReceiptID.String,
	}
}

const (
	stampColumns        = "receipt_id, paid_at, payment_method"
	storeRequestColumns = "id, tenant_id, student_id, item_name, quantity, amount, status, paid, created_at, approved_at, " + stampColumns
	eventColumns        = "id, tenant_id, name, price, date, created_at"
	registrationColumns = "id, tenant_id, student_id, event_id, status, paid, created_at, approved_at, " + stampColumns
	paymentColumns      = "receipt_id, tenant_id, student_id, amount, method, concept, notes, previous_balance, new_balance, created_at"
	ledgerColumns       = "id, tenant_id, type, category, amount, description, date, site_id, receipt_id"
)

type billingRepository struct {
	repository
}

var _ billing.Repository = (*billingRepository)(nil) // interface compliance check

func NewBillingRepository(db *sqlx.DB) billing.Repository {
	return &billingRepository{repository{db: db}}
}

func (repo *billingRepository) CreateStoreRequest(ctx context.Context, req billing.StoreRequest) (billing.StoreRequest, error) {
	_, err := repo.exec(ctx,
		"INSERT INTO store_requests ("+storeRequestColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		req.ID, req.TenantID, req.StudentID, req.ItemName, req.Quantity, req.Amount, req.Status, req.Paid,
		req.CreatedAt.UTC(), nullTime(req.ApprovedAt), nullString(req.ReceiptID), nullTime(req.PaidAt), nullString(req.Method),
	)
	if err != nil {
		return billing.StoreRequest{}, err
	}
	return req, nil
}

func (repo *billingRepository) GetStoreRequest(ctx context.Context, tenantID, id string) (billing.StoreRequest, error) {
	var row storeRequestRow
	err := repo.get(ctx, &row, "SELECT "+storeRequestColumns+" FROM store_requests WHERE id = ? AND tenant_id = ?", id, tenantID)
	if err != nil {
		return billing.StoreRequest{}, notFound(err, billing.ErrStoreRequestNotFound)
	}
	return row.storeRequest(), nil
}

func (repo *billingRepository) QueryUnpaidStoreRequests(ctx context.Context, tenantID, studentID string) ([]billing.StoreRequest, error) {
	var rows []storeRequestRow
	err := repo.selectAll(ctx, &rows,
		"SELECT "+storeRequestColumns+" FROM store_requests WHERE tenant_id = ? AND student_id = ? AND status = ? AND paid = ? ORDER BY created_at",
		tenantID, studentID, billing.RequestApproved, false,
	)
	if err != nil {
		return nil, err
	}
	reqs := make([]billing.StoreRequest, 0, len(rows))
	for _, r := range rows {
		reqs = append(reqs, r.storeRequest())
	}
	return reqs, nil
}

func (repo *billingRepository) RejectStoreRequest(ctx context.Context, tenantID, id string) error {
	return repo.reject(ctx, "store_requests", tenantID, id)
}

func (repo *billingRepository) reject(ctx context.Context, table, tenantID, id string) error {
	n, err := repo.exec(ctx,
		"UPDATE "+table+" SET status = ? WHERE id = ? AND tenant_id = ? AND status = ?",
		billing.RequestRejected, id, tenantID, billing.RequestPending,
	)
	if err != nil {
		return err
	}
	if n == 0 {
		return billing.ErrAlreadyDecided
	}
	return nil
}

func (repo *billingRepository) CreateEvent(ctx context.Context, ev billing.Event) (billing.Event, error) {
	_, err := repo.exec(ctx,
		"INSERT INTO events ("+eventColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		ev.ID, ev.TenantID, ev.Name, ev.Price, ev.Date.UTC(), ev.CreatedAt.UTC(),
	)
	if err != nil {
		return billing.Event{}, err
	}
	return ev, nil
}

func (repo *billingRepository) GetEventsByID(ctx context.Context, tenantID string, ids ...string) ([]billing.Event, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In("SELECT "+eventColumns+" FROM events WHERE tenant_id = ? AND id IN (?)", tenantID, ids)
	if err != nil {
		return nil, err
	}
	var rows []eventRow
	if err := repo.selectAll(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	evs := make([]billing.Event, 0, len(rows))
	for _, r := range rows {
		evs = append(evs, r.event())
	}
	return evs, nil
}

func (repo *billingRepository) CreateEventRegistration(ctx context.Context, reg billing.EventRegistration) (billing.EventRegistration, error) {
	_, err := repo.exec(ctx,
		"INSERT INTO event_registrations ("+registrationColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		reg.ID, reg.TenantID, reg.StudentID, reg.EventID, reg.Status, reg.Paid, reg.CreatedAt.UTC(),
		nullTime(reg.ApprovedAt), nullString(reg.ReceiptID), nullTime(reg.PaidAt), nullString(reg.Method),
	)
	if err != nil {
		return billing.EventRegistration{}, err
	}
	return reg, nil
}

func (repo *billingRepository) GetEventRegistration(ctx context.Context, tenantID, id string) (billing.EventRegistration, error) {
	var row registrationRow
	err := repo.get(ctx, &row, "SELECT "+registrationColumns+" FROM event_registrations WHERE id = ? AND tenant_id = ?", id, tenantID)
	if err != nil {
		return billing.EventRegistration{}, notFound(err, billing.ErrRegistrationNotFound)
	}
	return row.registration(), nil
}

func (repo *billingRepository) QueryUnpaidEventRegistrations(ctx context.Context, tenantID, studentID string) ([]billing.EventRegistration, error) {
	var rows []registrationRow
	err := repo.selectAll(ctx, &rows,
		"SELECT "+registrationColumns+" FROM event_registrations WHERE tenant_id = ? AND student_id = ? AND status = ? AND paid = ? ORDER BY created_at",
		tenantID, studentID, billing.RequestApproved, false,
	)
	if err != nil {
		return nil, err
	}
	regs := make([]billing.EventRegistration, 0, len(rows))
	for _, r := range rows {
		regs = append(regs, r.registration())
	}
	return regs, nil
}

func (repo *billingRepository) RejectEventRegistration(ctx context.Context, tenantID, id string) error {
	return repo.reject(ctx, "event_registrations", tenantID, id)
}

// addToBalance raises the balance; an overdue student stays overdue.
const addToBalanceQuery = `UPDATE students SET balance = balance + ?,
	payment_status = CASE WHEN payment_status = ? THEN payment_status WHEN balance + ? > 0 THEN ? ELSE ? END,
	updated_at = ? WHERE id = ? AND tenant_id = ? AND deleted_at IS NULL`

func addToBalanceArgs(tenantID, studentID string, amount decimal.Decimal, at time.Time) []interface{} {
	return []interface{}{
		amount, student.StatusOverdue, amount, student.StatusPending, student.StatusCurrent,
		at.UTC(), studentID, tenantID,
	}
}

func (repo *billingRepository) ApproveCharge(ctx context.Context, a billing.ChargeApproval) error {
	var table string
	switch a.Kind {
	case billing.KindStore:
		table = "store_requests"
	case billing.KindEvent:
		table = "event_registrations"
	case billing.KindSubscription, billing.KindLateFee, billing.KindEnrollment:
		return billing.ErrNotManualKind
	default:
		return billing.ErrUnknownKind
	}

	return repo.inTx(ctx, func(tx *sqlx.Tx) error {
		n, err := txExec(ctx, tx,
			"UPDATE "+table+" SET status = ?, approved_at = ? WHERE id = ? AND tenant_id = ? AND student_id = ? AND status = ?",
			billing.RequestApproved, a.ApprovedAt.UTC(), a.RequestID, a.TenantID, a.StudentID, billing.RequestPending,
		)
		if err != nil {
			return errors.Wrap(err, "approving request")
		}
		if n == 0 {
			return billing.ErrAlreadyDecided
		}

		n, err = txExec(ctx, tx, addToBalanceQuery, addToBalanceArgs(a.TenantID, a.StudentID, a.Amount, a.ApprovedAt)...)
		if err != nil {
			return errors.Wrap(err, "updating balance")
		}
		if n == 0 {
			return student.ErrNotFound
		}
		return nil
	})
}

func (repo *billingRepository) AddToBalance(ctx context.Context, tenantID, studentID string, amount decimal.Decimal, at time.Time) error {
	n, err := repo.exec(ctx, addToBalanceQuery, addToBalanceArgs(tenantID, studentID, amount, at)...)
	if err != nil {
		return err
	}
	if n == 0 {
		return student.ErrNotFound
	}
	return nil
}

func (repo *billingRepository) CommitPayment(ctx context.Context, batch billing.PaymentBatch) error {
	p := batch.Payment
	return repo.inTx(ctx, func(tx *sqlx.Tx) error {
		var taken bool
		err := tx.GetContext(ctx, &taken, tx.Rebind("SELECT EXISTS (SELECT 1 FROM payments WHERE receipt_id = ?)"), p.ReceiptID)
		if err != nil {
			return errors.Wrap(err, "checking receipt id")
		}
		if taken {
			return billing.ErrReceiptExists
		}

		// compare-and-set on the balance read by the processor
		n, err := txExec(ctx, tx,
			`UPDATE students SET balance = ?, payment_status = ?, updated_at = ?
			WHERE id = ? AND tenant_id = ? AND balance = ? AND deleted_at IS NULL`,
			batch.NewBalance, batch.NewStatus, p.CreatedAt.UTC(), p.StudentID, p.TenantID, batch.ExpectedBalance,
		)
		if err != nil {
			return errors.Wrap(err, "updating balance")
		}
		if n == 0 {
			return billing.ErrBalanceChanged
		}

		if err := markPaid(ctx, tx, "store_requests", p, batch.Stamp, batch.StoreRequestIDs); err != nil {
			return err
		}
		if err := markPaid(ctx, tx, "event_registrations", p, batch.Stamp, batch.RegistrationIDs); err != nil {
			return err
		}

		_, err = txExec(ctx, tx,
			"INSERT INTO payments ("+paymentColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			p.ReceiptID, p.TenantID, p.StudentID, p.Amount, p.Method, p.Concept, p.Notes,
			p.PreviousBalance, p.NewBalance, p.CreatedAt.UTC(),
		)
		if err != nil {
			return errors.Wrap(err, "inserting payment")
		}
		for i, it := range p.Items {
			_, err = txExec(ctx, tx,
				"INSERT INTO payment_items (receipt_id, position, charge_id, kind, description, amount) VALUES (?, ?, ?, ?, ?, ?)",
				p.ReceiptID, i, it.ChargeID, it.Kind, it.Description, it.Amount,
			)
			if err != nil {
				return errors.Wrap(err, "inserting payment item")
			}
		}

		e := batch.Ledger
		_, err = txExec(ctx, tx,
			"INSERT INTO ledger_entries ("+ledgerColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
			e.ID, e.TenantID, e.Type, e.Category, e.Amount, e.Description, e.Date.UTC(), nullString(e.SiteID), nullString(e.ReceiptID),
		)
		return errors.Wrap(err, "inserting ledger entry")
	})
}

func markPaid(ctx context.Context, tx *sqlx.Tx, table string, p billing.Payment, stamp billing.PaymentStamp, ids []string) error {
	for _, id := range ids {
		n, err := txExec(ctx, tx,
			"UPDATE "+table+` SET paid = ?, receipt_id = ?, paid_at = ?, payment_method = ?
			WHERE id = ? AND tenant_id = ? AND student_id = ? AND status = ? AND paid = ?`,
			true, stamp.ReceiptID, nullTime(stamp.PaidAt), stamp.Method,
			id, p.TenantID, p.StudentID, billing.RequestApproved, false,
		)
		if err != nil {
			return errors.Wrapf(err, "marking %s paid", table)
		}
		if n == 0 {
			return billing.ErrChargeAlreadyPaid
		}
	}
	return nil
}

func (repo *billingRepository) paymentItems(ctx context.Context, receiptIDs ...string) (map[string][]billing.PaymentItem, error) {
	byReceipt := make(map[string][]billing.PaymentItem, len(receiptIDs))
	if len(receiptIDs) == 0 {
		return byReceipt, nil
	}
	query, args, err := sqlx.In(
		"SELECT receipt_id, position, charge_id, kind, description, amount FROM payment_items WHERE receipt_id IN (?) ORDER BY receipt_id, position",
		receiptIDs,
	)
	if err != nil {
		return nil, err
	}
	var rows []paymentItemRow
	if err := repo.selectAll(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	for _, r := range rows {
		byReceipt[r.ReceiptID] = append(byReceipt[r.ReceiptID], billing.PaymentItem{
			ChargeID:    r.ChargeID,
			Kind:        r.Kind,
			Description: r.Description,
			Amount:      r.Amount,
		})
	}
	return byReceipt, nil
}

func (r paymentRow) payment(items []billing.PaymentItem) billing.Payment {
	return billing.Payment{
		ReceiptID:       r.ReceiptID,
		TenantID:        r.TenantID,
		StudentID:       r.StudentID,
		Items:           items,
		Amount:          r.Amount,
		Method:          r.Method,
		Concept:         r.Concept,
		Notes:           r.Notes,
		PreviousBalance: r.PreviousBalance,
		NewBalance:      r.NewBalance,
		CreatedAt:       r.CreatedAt.UTC(),
	}
}

func (repo *billingRepository) QueryPayments(ctx context.Context, tenantID, studentID string) ([]billing.Payment, error) {
	var rows []paymentRow
	err := repo.selectAll(ctx, &rows,
		"SELECT "+paymentColumns+" FROM payments WHERE tenant_id = ? AND student_id = ? ORDER BY created_at DESC",
		tenantID, studentID,
	)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ReceiptID)
	}
	items, err := repo.paymentItems(ctx, ids...)
	if err != nil {
		return nil, err
	}
	payments := make([]billing.Payment, 0, len(rows))
	for _, r := range rows {
		payments = append(payments, r.payment(items[r.ReceiptID]))
	}
	return payments, nil
}

func (repo *billingRepository) GetPayment(ctx context.Context, tenantID, receiptID string) (billing.Payment, error) {
	var row paymentRow
	err := repo.get(ctx, &row, "SELECT "+paymentColumns+" FROM payments WHERE receipt_id = ? AND tenant_id = ?", receiptID, tenantID)
	if err != nil {
		return billing.Payment{}, notFound(err, billing.ErrPaymentNotFound)
	}
	items, err := repo.paymentItems(ctx, receiptID)
	if err != nil {
		return billing.Payment{}, err
	}
	return row.payment(items[receiptID]), nil
}

func (repo *billingRepository) QueryLedger(ctx context.Context, tenantID string, filter billing.LedgerFilter) ([]billing.LedgerEntry, error) {
	var w where
	w.add("tenant_id = ?", tenantID)
	if filter.Category != "" {
		w.add("category = ?", filter.Category)
	}
	if filter.SiteID != "" {
		w.add("site_id = ?", filter.SiteID)
	}
	if !filter.From.IsZero() {
		w.add("date >= ?", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		w.add("date <= ?", filter.To.UTC())
	}

	var rows []ledgerRow
	if err := repo.selectAll(ctx, &rows, "SELECT "+ledgerColumns+" FROM ledger_entries"+w.String()+" ORDER BY date DESC", w.args...); err != nil {
		return nil, err
	}
	entries := make([]billing.LedgerEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.entry())
	}
	return entries, nil
}
