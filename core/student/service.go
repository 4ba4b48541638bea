package student

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/William-Pardo/tudojang-sub002/core"
)

var (
	// errors
	ErrNotFound   = core.NewNotFoundError("student not found")
	ErrNotOverdue = errors.New("only a student owing money can be overdue")
	ErrHasBalance = errors.New("cannot delete a student with an outstanding balance")
)

type (
	Repository interface {
		CreateStudent(ctx context.Context, s Student) (Student, error)
		// GetStudent returns ErrNotFound for missing & soft-deleted students.
		GetStudent(ctx context.Context, tenantID, id string) (Student, error)
		QueryStudents(ctx context.Context, tenantID string, filter QueryFilter, ordering ...core.DBOrdering) ([]Student, error)
		// UpdateStudent saves the contact fields; Balance & PaymentStatus are left untouched.
		UpdateStudent(ctx context.Context, s Student) (Student, error)
		// SetOverdue flags the student overdue if (and only if) they still owe money.
		SetOverdue(ctx context.Context, tenantID, id string, at time.Time) error
		SoftDeleteStudent(ctx context.Context, tenantID, id string, at time.Time) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, tenantID string, ns NewStudent) (Student, error) {
	now := time.Now().UTC()
	s := Student{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		SiteID:        ns.SiteID,
		Name:          ns.Name,
		Email:         ns.Email,
		Phone:         ns.Phone,
		GuardianName:  ns.GuardianName,
		GuardianPhone: ns.GuardianPhone,
		GuardianEmail: ns.GuardianEmail,
		Balance:       core.NonNegative(ns.Balance),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.PaymentStatus = StatusForBalance(s.Balance)
	return svc.repo.CreateStudent(ctx, s)
}

func (svc *Service) Get(ctx context.Context, tenantID, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, tenantID, id)
}

func (svc *Service) Query(ctx context.Context, tenantID string, filter QueryFilter, ordering ...core.DBOrdering) ([]Student, error) {
	filter.Clean()
	return svc.repo.QueryStudents(ctx, tenantID, filter, ordering...)
}

func (svc *Service) Update(ctx context.Context, orig Student, us UpdateStudent) (Student, error) {
	s := orig
	s.Name = us.Name
	s.Email = us.Email
	s.Phone = us.Phone
	s.GuardianName = us.GuardianName
	s.GuardianPhone = us.GuardianPhone
	s.GuardianEmail = us.GuardianEmail
	if us.SiteID != nil {
		s.SiteID = core.CleanString(*us.SiteID)
	}
	s.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateStudent(ctx, s)
}

func (svc *Service) MarkOverdue(ctx context.Context, tenantID, id string) error {
	s, err := svc.repo.GetStudent(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if !s.Balance.IsPositive() {
		return core.NewValidationError(ErrNotOverdue)
	}
	return svc.repo.SetOverdue(ctx, tenantID, id, time.Now().UTC())
}

func (svc *Service) Delete(ctx context.Context, tenantID, id string) error {
	s, err := svc.repo.GetStudent(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if s.Balance.IsPositive() {
		return core.NewValidationError(ErrHasBalance)
	}
	return svc.repo.SoftDeleteStudent(ctx, tenantID, id, time.Now().UTC())
}
