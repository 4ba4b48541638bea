package user

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/William-Pardo/tudojang-sub002/core"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("user not found")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

type (
	Repository interface {
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, tenantID, email string) (User, error)
		// QueryUsers applies AND on the set QueryFilter fields;
		// Search does a case-insensitive match on Name or Email.
		QueryUsers(ctx context.Context, tenantID string, filter QueryFilter) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		SetLastLogin(ctx context.Context, id string, at time.Time) error
		DeleteUsersByID(ctx context.Context, tenantID string, ids ...string) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) checkUniqueness(ctx context.Context, tenantID, email string, excluded ...string) error {
	usr, err := svc.repo.GetUserByEmail(ctx, tenantID, email)
	switch {
	case core.IsNotFound(err):
		return nil
	case err != nil:
		return err
	}
	for _, id := range excluded {
		if usr.ID == id {
			return nil
		}
	}
	return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
}

func (svc *Service) Create(ctx context.Context, tenantID string, nu NewUser) (User, error) {
	if err := svc.checkUniqueness(ctx, tenantID, nu.Email); err != nil {
		return User{}, err
	}
	now := time.Now().UTC()
	usr := User{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Name:      nu.Name,
		Email:     nu.Email,
		IsActive:  true,
		Roles:     nu.Roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

// Login checks the credentials of an active tenant user & stamps its last login.
func (svc *Service) Login(ctx context.Context, tenantID, email, pwd string) (User, error) {
	usr, err := svc.repo.GetUserByEmail(ctx, tenantID, core.CleanString(email, true /* lower */))
	if err != nil {
		if core.IsNotFound(err) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if !usr.IsActive || usr.CheckPassword(pwd) != nil {
		return User{}, ErrInvalidCredentials
	}
	usr.LastLogin = time.Now().UTC()
	if err := svc.repo.SetLastLogin(ctx, usr.ID, usr.LastLogin); err != nil {
		return User{}, errors.Wrap(err, "setting last login")
	}
	return usr, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, tenantID, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, tenantID, core.CleanString(email, true /* lower */))
}

func (svc *Service) Query(ctx context.Context, tenantID string, filter QueryFilter) ([]User, error) {
	filter.Clean()
	return svc.repo.QueryUsers(ctx, tenantID, filter)
}

func (svc *Service) Update(ctx context.Context, orig User, uu UpdateUser) (User, error) {
	if err := svc.checkUniqueness(ctx, orig.TenantID, uu.Email, orig.ID); err != nil {
		return User{}, err
	}
	usr := orig
	usr.Name = uu.Name
	usr.Email = uu.Email
	if uu.Roles != nil {
		usr.Roles = uu.Roles
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, err
		}
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// SetPassword replaces a user's password, skipping the password policy (admin CLI).
func (svc *Service) SetPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, err
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) Delete(ctx context.Context, tenantID string, ids ...string) error {
	return svc.repo.DeleteUsersByID(ctx, tenantID, ids...)
}
