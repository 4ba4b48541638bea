package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/William-Pardo/tudojang-sub002/core"
	"github.com/William-Pardo/tudojang-sub002/core/student"
)

// ProcessPayment applies a payment against the selected charges of a student.
//
// All writes (requests marked paid, balance & status, payment record, ledger entry) are committed together;
// the balance is only written if it did not change since it was read.
// It never fails: errors are reported through Result.Success & Result.Message.
func (svc *Service) ProcessPayment(ctx context.Context, tenantID string, np NewPayment) Result {
	res := svc.processPayment(ctx, tenantID, np)
	if svc.observer != nil {
		svc.observer.PaymentProcessed(res.Success, np.Amount)
	}
	return res
}

func (svc *Service) processPayment(ctx context.Context, tenantID string, np NewPayment) Result {
	np.Clean()
	if len(np.Items) == 0 {
		return svc.failure(np, core.NewValidationError(ErrEmptySelection))
	}
	if np.Amount.IsNegative() {
		return svc.failure(np, core.NewValidationError(ErrNegativeAmount, core.FieldError{Field: "monto", Error: ErrNegativeAmount.Error()}))
	}
	for _, it := range np.Items {
		if !it.Kind.Valid() {
			return svc.failure(np, core.NewValidationError(ErrUnknownKind, core.FieldError{Field: "tipo", Error: ErrUnknownKind.Error()}))
		}
		if it.Amount.IsNegative() {
			return svc.failure(np, core.NewValidationError(ErrNegativeAmount, core.FieldError{Field: "items.monto", Error: ErrNegativeAmount.Error()}))
		}
	}

	if !svc.acquire(tenantID, np.StudentID) {
		return svc.failure(np, core.NewValidationError(ErrPaymentInProgress))
	}
	defer svc.release(tenantID, np.StudentID)

	std, err := svc.students.GetStudent(ctx, tenantID, np.StudentID)
	if err != nil {
		return svc.failure(np, errors.Wrap(err, "getting student"))
	}

	items, storeIDs, regIDs, err := svc.resolveSelection(ctx, tenantID, std.ID, np.Items)
	if err != nil {
		return svc.failure(np, err)
	}

	now := svc.now()
	newBalance := core.NonNegative(std.Balance.Sub(np.Amount))

	payment := Payment{
		TenantID:        tenantID,
		StudentID:       std.ID,
		Items:           items,
		Amount:          np.Amount,
		Method:          np.Method,
		Concept:         np.Concept,
		Notes:           np.Notes,
		PreviousBalance: std.Balance,
		NewBalance:      newBalance,
		CreatedAt:       now,
	}
	batch := PaymentBatch{
		Ledger: LedgerEntry{
			ID:          uuid.NewString(),
			TenantID:    tenantID,
			Type:        EntryIncome,
			Category:    PaymentCategory(np.Kinds()...),
			Amount:      np.Amount,
			Description: ledgerDescription(np.Concept, items),
			Date:        now,
			SiteID:      std.SiteID,
		},
		StoreRequestIDs: storeIDs,
		RegistrationIDs: regIDs,
		Stamp:           PaymentStamp{PaidAt: &now, Method: np.Method},
		ExpectedBalance: std.Balance,
		NewBalance:      newBalance,
		NewStatus:       student.StatusForBalance(newBalance),
	}

	// receipt ids are short & random: draw a new one when it is already taken
	var receiptID string
	for attempt := 1; ; attempt++ {
		receiptID = svc.receiptID(now)
		payment.ReceiptID = receiptID
		batch.Payment = payment
		batch.Ledger.ReceiptID = receiptID
		batch.Stamp.ReceiptID = receiptID

		err := svc.repo.CommitPayment(ctx, batch)
		if err == nil {
			break
		}
		switch errors.Cause(err) {
		case ErrBalanceChanged, ErrChargeAlreadyPaid:
			return svc.failure(np, err)
		case ErrReceiptExists:
			if attempt < maxReceiptIDAttempts {
				svc.logger.Warn(fmt.Sprintf("receipt id %s already taken, drawing another one", receiptID))
				continue
			}
		}
		return svc.failure(np, core.NewExternalServiceError("committing payment", err))
	}

	svc.logger.Info(fmt.Sprintf("payment %s applied to student %s: %s received, balance %s -> %s",
		receiptID, std.ID, np.Amount, std.Balance, newBalance))

	return Result{
		Success:    true,
		ReceiptID:  receiptID,
		NewBalance: &newBalance,
		Message:    "Pago registrado exitosamente",
		Payment:    &payment,
	}
}

// maxReceiptIDAttempts bounds the receipt ids drawn for a single payment.
const maxReceiptIDAttempts = 5

// resolveSelection checks the selected charges against the student's outstanding requests
// and returns the payment items with the ids of the requests to mark paid.
func (svc *Service) resolveSelection(
	ctx context.Context,
	tenantID, studentID string,
	selection []SelectedCharge,
) (items []PaymentItem, storeIDs, regIDs []string, err error) {
	var (
		storeReqs map[string]StoreRequest
		regs      map[string]EventRegistration
		events    map[string]Event
	)

	seen := make(map[string]bool, len(selection))
	for _, sel := range selection {
		if seen[sel.ID] {
			msg := fmt.Sprintf("%s %q: %s", sel.Kind, sel.ID, ErrDuplicateCharge)
			return nil, nil, nil, core.NewValidationError(errors.Wrap(ErrDuplicateCharge, sel.ID), core.FieldError{Field: "items", Error: msg})
		}
		seen[sel.ID] = true

		item := PaymentItem{ChargeID: sel.ID, Kind: sel.Kind, Description: sel.Description, Amount: sel.Amount}

		switch sel.Kind {
		case KindStore:
			if storeReqs == nil {
				if storeReqs, err = svc.unpaidStoreRequests(ctx, tenantID, studentID); err != nil {
					return nil, nil, nil, err
				}
			}
			req, ok := storeReqs[sel.ID]
			if !ok {
				return nil, nil, nil, notPayable(sel)
			}
			if item.Description == "" {
				item.Description = req.ItemName
			}
			storeIDs = append(storeIDs, req.ID)
		case KindEvent:
			if regs == nil {
				if regs, events, err = svc.unpaidRegistrations(ctx, tenantID, studentID); err != nil {
					return nil, nil, nil, err
				}
			}
			reg, ok := regs[sel.ID]
			if !ok {
				return nil, nil, nil, notPayable(sel)
			}
			if item.Description == "" {
				item.Description = events[reg.EventID].Name
			}
			regIDs = append(regIDs, reg.ID)
		case KindSubscription, KindLateFee, KindEnrollment:
			if item.Description == "" {
				item.Description = sel.Kind.Label()
			}
		}
		items = append(items, item)
	}
	return items, storeIDs, regIDs, nil
}

func (svc *Service) unpaidStoreRequests(ctx context.Context, tenantID, studentID string) (map[string]StoreRequest, error) {
	reqs, err := svc.repo.QueryUnpaidStoreRequests(ctx, tenantID, studentID)
	if err != nil {
		return nil, core.NewExternalServiceError("store requests", err)
	}
	byID := make(map[string]StoreRequest, len(reqs))
	for _, req := range reqs {
		if req.Payable() {
			byID[req.ID] = req
		}
	}
	return byID, nil
}

func (svc *Service) unpaidRegistrations(ctx context.Context, tenantID, studentID string) (map[string]EventRegistration, map[string]Event, error) {
	regs, err := svc.repo.QueryUnpaidEventRegistrations(ctx, tenantID, studentID)
	if err != nil {
		return nil, nil, core.NewExternalServiceError("event registrations", err)
	}
	events, err := svc.eventsOf(ctx, tenantID, regs)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[string]EventRegistration, len(regs))
	for _, reg := range regs {
		if reg.Payable() {
			byID[reg.ID] = reg
		}
	}
	return byID, events, nil
}

func notPayable(sel SelectedCharge) error {
	msg := fmt.Sprintf("%s %q: %s", sel.Kind, sel.ID, ErrChargeNotPayable)
	return core.NewValidationError(errors.Wrap(ErrChargeNotPayable, sel.ID), core.FieldError{Field: "items", Error: msg})
}

// ledgerDescription concatenates the paid items, prefixed by the payment concept if any.
func ledgerDescription(concept string, items []PaymentItem) string {
	descs := make([]string, 0, len(items))
	for _, it := range items {
		descs = append(descs, it.Description)
	}
	joined := strings.Join(descs, ", ")
	if concept == "" {
		return joined
	}
	return concept + ": " + joined
}

func (svc *Service) failure(np NewPayment, err error) Result {
	if core.IsValidation(err) || core.IsNotFound(err) {
		svc.logger.Warn(fmt.Sprintf("payment for student %s rejected: %v", np.StudentID, err))
	} else {
		svc.logger.Error(fmt.Sprintf("payment for student %s failed: %v", np.StudentID, err), err)
	}
	return Result{Success: false, Message: errorMessage(err), Err: err}
}

func errorMessage(err error) string {
	switch cause := errors.Cause(err).(type) {
	case *core.ValidationError:
		if cause.Err == nil && len(cause.Fields) > 0 {
			return cause.Fields[0].Error
		}
		return errors.Cause(cause.Err).Error()
	case *core.NotFoundError:
		return cause.Error()
	}
	return err.Error()
}
