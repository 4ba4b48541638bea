package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/William-Pardo/tudojang-sub002/core"
)

func (svc *Service) CreateStoreRequest(ctx context.Context, tenantID string, nr NewStoreRequest) (StoreRequest, error) {
	if _, err := svc.students.GetStudent(ctx, tenantID, nr.StudentID); err != nil {
		return StoreRequest{}, errors.Wrap(err, "getting student")
	}
	return svc.repo.CreateStoreRequest(ctx, StoreRequest{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		StudentID: nr.StudentID,
		ItemName:  nr.ItemName,
		Quantity:  nr.Quantity,
		Amount:    nr.Amount,
		Status:    RequestPending,
		CreatedAt: svc.now(),
	})
}

// ApproveStoreRequest approves a pending store request; its amount is added to the student's balance.
func (svc *Service) ApproveStoreRequest(ctx context.Context, tenantID, id string) (StoreRequest, error) {
	req, err := svc.repo.GetStoreRequest(ctx, tenantID, id)
	if err != nil {
		return StoreRequest{}, err
	}
	if req.Status != RequestPending {
		return StoreRequest{}, core.NewValidationError(ErrAlreadyDecided)
	}

	now := svc.now()
	err = svc.repo.ApproveCharge(ctx, ChargeApproval{
		TenantID:   tenantID,
		StudentID:  req.StudentID,
		Kind:       KindStore,
		RequestID:  req.ID,
		Amount:     req.Amount,
		ApprovedAt: now,
	})
	if err != nil {
		return StoreRequest{}, decisionError(err, "approving store request")
	}
	req.Status = RequestApproved
	req.ApprovedAt = &now
	return req, nil
}

func (svc *Service) RejectStoreRequest(ctx context.Context, tenantID, id string) (StoreRequest, error) {
	req, err := svc.repo.GetStoreRequest(ctx, tenantID, id)
	if err != nil {
		return StoreRequest{}, err
	}
	if req.Status != RequestPending {
		return StoreRequest{}, core.NewValidationError(ErrAlreadyDecided)
	}
	if err := svc.repo.RejectStoreRequest(ctx, tenantID, id); err != nil {
		return StoreRequest{}, decisionError(err, "rejecting store request")
	}
	req.Status = RequestRejected
	return req, nil
}

func (svc *Service) CreateEvent(ctx context.Context, tenantID string, ne NewEvent) (Event, error) {
	return svc.repo.CreateEvent(ctx, Event{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Name:      ne.Name,
		Price:     core.NonNegative(ne.Price),
		Date:      ne.Date.UTC(),
		CreatedAt: svc.now(),
	})
}

func (svc *Service) RegisterForEvent(ctx context.Context, tenantID, eventID, studentID string) (EventRegistration, error) {
	if _, err := svc.students.GetStudent(ctx, tenantID, studentID); err != nil {
		return EventRegistration{}, errors.Wrap(err, "getting student")
	}
	evs, err := svc.repo.GetEventsByID(ctx, tenantID, eventID)
	if err != nil {
		return EventRegistration{}, errors.Wrap(err, "getting event")
	}
	if len(evs) == 0 {
		return EventRegistration{}, ErrEventNotFound
	}
	return svc.repo.CreateEventRegistration(ctx, EventRegistration{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		StudentID: studentID,
		EventID:   eventID,
		Status:    RequestPending,
		CreatedAt: svc.now(),
	})
}

// ApproveEventRegistration approves a pending registration; the event price is added to the student's balance.
func (svc *Service) ApproveEventRegistration(ctx context.Context, tenantID, id string) (EventRegistration, error) {
	reg, err := svc.repo.GetEventRegistration(ctx, tenantID, id)
	if err != nil {
		return EventRegistration{}, err
	}
	if reg.Status != RequestPending {
		return EventRegistration{}, core.NewValidationError(ErrAlreadyDecided)
	}
	evs, err := svc.repo.GetEventsByID(ctx, tenantID, reg.EventID)
	if err != nil {
		return EventRegistration{}, errors.Wrap(err, "getting event")
	}
	if len(evs) == 0 {
		return EventRegistration{}, ErrEventNotFound
	}

	now := svc.now()
	err = svc.repo.ApproveCharge(ctx, ChargeApproval{
		TenantID:   tenantID,
		StudentID:  reg.StudentID,
		Kind:       KindEvent,
		RequestID:  reg.ID,
		Amount:     evs[0].Price,
		ApprovedAt: now,
	})
	if err != nil {
		return EventRegistration{}, decisionError(err, "approving event registration")
	}
	reg.Status = RequestApproved
	reg.ApprovedAt = &now
	return reg, nil
}

func (svc *Service) RejectEventRegistration(ctx context.Context, tenantID, id string) (EventRegistration, error) {
	reg, err := svc.repo.GetEventRegistration(ctx, tenantID, id)
	if err != nil {
		return EventRegistration{}, err
	}
	if reg.Status != RequestPending {
		return EventRegistration{}, core.NewValidationError(ErrAlreadyDecided)
	}
	if err := svc.repo.RejectEventRegistration(ctx, tenantID, id); err != nil {
		return EventRegistration{}, decisionError(err, "rejecting event registration")
	}
	reg.Status = RequestRejected
	return reg, nil
}

func (svc *Service) GetEvent(ctx context.Context, tenantID, id string) (Event, error) {
	evs, err := svc.repo.GetEventsByID(ctx, tenantID, id)
	if err != nil {
		return Event{}, errors.Wrap(err, "getting event")
	}
	if len(evs) == 0 {
		return Event{}, ErrEventNotFound
	}
	return evs[0], nil
}

// AddManualCharge raises a student's balance with no tracked request behind it.
func (svc *Service) AddManualCharge(ctx context.Context, tenantID, studentID string, mc ManualCharge) error {
	switch mc.Kind {
	case KindSubscription, KindLateFee, KindEnrollment:
	case KindStore, KindEvent:
		return core.NewValidationError(ErrNotManualKind, core.FieldError{Field: "tipo", Error: ErrNotManualKind.Error()})
	default:
		return core.NewValidationError(ErrUnknownKind, core.FieldError{Field: "tipo", Error: ErrUnknownKind.Error()})
	}
	if !mc.Amount.IsPositive() {
		return core.NewValidationError(nil, core.FieldError{Field: "monto", Error: "monto must be greater than 0"})
	}
	if _, err := svc.students.GetStudent(ctx, tenantID, studentID); err != nil {
		return errors.Wrap(err, "getting student")
	}
	if err := svc.repo.AddToBalance(ctx, tenantID, studentID, mc.Amount, svc.now()); err != nil {
		return errors.Wrap(err, "adding to balance")
	}

	desc := mc.Description
	if desc == "" {
		desc = mc.Kind.Label()
	}
	svc.logger.Info(fmt.Sprintf("manual charge on student %s: %s %s", studentID, desc, mc.Amount))
	return nil
}

// decisionError reports a request decided concurrently as a validation error.
func decisionError(err error, msg string) error {
	if errors.Cause(err) == ErrAlreadyDecided {
		return core.NewValidationError(ErrAlreadyDecided)
	}
	return errors.Wrap(err, msg)
}
