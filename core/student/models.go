package student

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/William-Pardo/tudojang-sub002/core"
)

// PaymentStatus is the student's standing with the academy.
type PaymentStatus int

const (
	StatusCurrent PaymentStatus = iota + 1
	StatusPending
	StatusOverdue
)

var paymentStatusNames = map[PaymentStatus]string{
	StatusCurrent: "al_dia",
	StatusPending: "pendiente",
	StatusOverdue: "vencido",
}

func (s PaymentStatus) String() string {
	if name, ok := paymentStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("PaymentStatus(%d)", int(s))
}

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	for status, name := range paymentStatusNames {
		if name == s {
			return status, nil
		}
	}
	return 0, fmt.Errorf("unknown payment status %q", s)
}

func (s PaymentStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *PaymentStatus) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	status, err := ParsePaymentStatus(name)
	if err != nil {
		return err
	}
	*s = status
	return nil
}

func (s PaymentStatus) Value() (driver.Value, error) {
	return s.String(), nil
}

func (s *PaymentStatus) Scan(src interface{}) error {
	var name string
	switch v := src.(type) {
	case string:
		name = v
	case []byte:
		name = string(v)
	default:
		return fmt.Errorf("cannot scan %T into PaymentStatus", src)
	}
	status, err := ParsePaymentStatus(name)
	if err != nil {
		return err
	}
	*s = status
	return nil
}

// StatusForBalance is the status a balance implies after a balance change: current iff nothing is owed.
func StatusForBalance(balance decimal.Decimal) PaymentStatus {
	if balance.IsPositive() {
		return StatusPending
	}
	return StatusCurrent
}

type Student struct {
	ID            string          `json:"id"`
	TenantID      string          `json:"tenant_id"`
	SiteID        string          `json:"site_id,omitempty"`
	Name          string          `json:"name"`
	Email         string          `json:"email,omitempty"`
	Phone         string          `json:"phone,omitempty"`
	GuardianName  string          `json:"guardian_name,omitempty"`
	GuardianPhone string          `json:"guardian_phone,omitempty"`
	GuardianEmail string          `json:"guardian_email,omitempty"`
	Balance       decimal.Decimal `json:"saldo_deudor"`
	PaymentStatus PaymentStatus   `json:"estado_pago"`
	CreatedAt     time.Time       `json:"created_at"` // UTC
	UpdatedAt     time.Time       `json:"updated_at"` // UTC
	DeletedAt     *time.Time      `json:"-"`
}

func (s Student) IsDeleted() bool { return s.DeletedAt != nil }

// ContactPhone is the number receipts are sent to: the guardian's first.
func (s Student) ContactPhone() string {
	if s.GuardianPhone != "" {
		return s.GuardianPhone
	}
	return s.Phone
}

// ContactEmail is the address receipts are emailed to: the guardian's first.
func (s Student) ContactEmail() string {
	if s.GuardianEmail != "" {
		return s.GuardianEmail
	}
	return s.Email
}

// NewStudent contains information needed to enroll a new Student.
type NewStudent struct {
	Name          string          `json:"name" validate:"required"`
	SiteID        string          `json:"site_id"`
	Email         string          `json:"email" validate:"omitempty,email"`
	Phone         string          `json:"phone" validate:"omitempty,phone"`
	GuardianName  string          `json:"guardian_name"`
	GuardianPhone string          `json:"guardian_phone" validate:"omitempty,phone"`
	GuardianEmail string          `json:"guardian_email" validate:"omitempty,email"`
	Balance       decimal.Decimal `json:"saldo_deudor" validate:"dgte0"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.Phone = core.CleanString(ns.Phone)
	ns.GuardianName = core.CleanString(ns.GuardianName)
	ns.GuardianPhone = core.CleanString(ns.GuardianPhone)
	ns.GuardianEmail = core.CleanString(ns.GuardianEmail, true /* lower */)
	return validate.Struct(ns)
}

// UpdateStudent defines what information may be provided to modify an existing Student.
// The balance is not part of it: only payments, approvals & manual charges move it.
type UpdateStudent struct {
	Name          string  `json:"name"`
	SiteID        *string `json:"site_id"`
	Email         string  `json:"email" validate:"omitempty,email"`
	Phone         string  `json:"phone" validate:"omitempty,phone"`
	GuardianName  string  `json:"guardian_name"`
	GuardianPhone string  `json:"guardian_phone" validate:"omitempty,phone"`
	GuardianEmail string  `json:"guardian_email" validate:"omitempty,email"`
}

func (us *UpdateStudent) Validate(validate *validator.Validate, orig Student) error {
	keep := func(val, orig string, lower ...bool) string {
		if v := core.CleanString(val, lower...); v != "" {
			return v
		}
		return orig
	}
	us.Name = keep(us.Name, orig.Name)
	us.Email = keep(us.Email, orig.Email, true /* lower */)
	us.Phone = keep(us.Phone, orig.Phone)
	us.GuardianName = keep(us.GuardianName, orig.GuardianName)
	us.GuardianPhone = keep(us.GuardianPhone, orig.GuardianPhone)
	us.GuardianEmail = keep(us.GuardianEmail, orig.GuardianEmail, true /* lower */)
	return validate.Struct(us)
}

type QueryFilter struct {
	Search string   `query:"search"`
	SiteID string   `query:"site_id"`
	Status []string `query:"status"`
	Debtor *bool    `query:"debtor"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.SiteID = core.CleanString(qf.SiteID)
}
