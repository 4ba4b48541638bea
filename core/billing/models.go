package billing

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/William-Pardo/tudojang-sub002/core"
	"github.com/William-Pardo/tudojang-sub002/core/student"
)

// RequestStatus is the approval state of a store request or an event registration.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pendiente"
	RequestApproved RequestStatus = "aprobada"
	RequestRejected RequestStatus = "rechazada"
)

func (s RequestStatus) Value() (driver.Value, error) { return string(s), nil }

func (s *RequestStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*s = RequestStatus(v)
	case []byte:
		*s = RequestStatus(v)
	default:
		return fmt.Errorf("cannot scan %T into RequestStatus", src)
	}
	return nil
}

// Payment methods
const (
	MethodCash     = "Efectivo"
	MethodTransfer = "Transferencia"
	MethodCard     = "Tarjeta"
)

// PaymentStamp is what a payment leaves on the requests it covers.
type PaymentStamp struct {
	ReceiptID string     `json:"recibo_id,omitempty"`
	PaidAt    *time.Time `json:"fecha_pago,omitempty"`
	Method    string     `json:"metodo_pago,omitempty"`
}

// StoreRequest is a student's purchase from the academy store.
type StoreRequest struct {
	ID         string          `json:"id"`
	TenantID   string          `json:"tenant_id"`
	StudentID  string          `json:"student_id"`
	ItemName   string          `json:"item_name"`
	Quantity   int             `json:"quantity"`
	Amount     decimal.Decimal `json:"monto"`
	Status     RequestStatus   `json:"status"`
	Paid       bool            `json:"paid"`
	CreatedAt  time.Time       `json:"created_at"`
	ApprovedAt *time.Time      `json:"approved_at,omitempty"`
	PaymentStamp
}

// Payable reports whether the request is an outstanding charge.
func (r StoreRequest) Payable() bool { return r.Status == RequestApproved && !r.Paid }

type Event struct {
	ID        string          `json:"id"`
	TenantID  string          `json:"tenant_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Date      time.Time       `json:"date"`
	CreatedAt time.Time       `json:"created_at"`
}

// EventRegistration is a student's registration to an Event, charged at the event price.
type EventRegistration struct {
	ID         string        `json:"id"`
	TenantID   string        `json:"tenant_id"`
	StudentID  string        `json:"student_id"`
	EventID    string        `json:"event_id"`
	Status     RequestStatus `json:"status"`
	Paid       bool          `json:"paid"`
	CreatedAt  time.Time     `json:"created_at"`
	ApprovedAt *time.Time    `json:"approved_at,omitempty"`
	PaymentStamp
}

func (r EventRegistration) Payable() bool { return r.Status == RequestApproved && !r.Paid }

// PendingCharge is one outstanding line of a student's debt.
type PendingCharge struct {
	ID          string          `json:"id"`
	Kind        Kind            `json:"tipo"`
	Amount      decimal.Decimal `json:"monto"`
	Description string          `json:"descripcion"`
	OriginID    string          `json:"origen_id"`
	GeneratedAt time.Time       `json:"fecha"`
	Synthetic   bool            `json:"sintetico,omitempty"` // computed remainder, not a stored record
}

// Debt is the aggregated view of what a student owes.
type Debt struct {
	StudentID   string          `json:"student_id"`
	Balance     decimal.Decimal `json:"saldo_deudor"`
	Total       decimal.Decimal `json:"total"`
	Items       []PendingCharge `json:"items"`
	Discrepancy decimal.Decimal `json:"discrepancia"` // tracked charges exceeding the balance
}

// SelectedCharge references a PendingCharge picked for payment.
type SelectedCharge struct {
	ID          string          `json:"id" validate:"required"`
	Kind        Kind            `json:"tipo" validate:"required"`
	Amount      decimal.Decimal `json:"monto" validate:"dgte0"`
	Description string          `json:"descripcion"`
}

// NewPayment contains information needed to apply a payment to a student's debt.
type NewPayment struct {
	StudentID string           `json:"-"`
	Items     []SelectedCharge `json:"items" validate:"dive"`
	Amount    decimal.Decimal  `json:"monto" validate:"dgte0"`
	Method    string           `json:"metodo"`
	Concept   string           `json:"concepto"`
	Notes     string           `json:"notas"`
}

func (np *NewPayment) Clean() {
	np.Method = core.CleanString(np.Method)
	if np.Method == "" {
		np.Method = MethodCash
	}
	np.Concept = core.CleanString(np.Concept)
	np.Notes = core.CleanString(np.Notes)
	for i := range np.Items {
		np.Items[i].ID = core.CleanString(np.Items[i].ID)
		np.Items[i].Description = core.CleanString(np.Items[i].Description)
	}
}

func (np *NewPayment) Validate(validate *validator.Validate) error {
	np.Clean()
	return validate.Struct(np)
}

func (np NewPayment) Kinds() []Kind {
	kinds := make([]Kind, 0, len(np.Items))
	for _, it := range np.Items {
		kinds = append(kinds, it.Kind)
	}
	return kinds
}

type PaymentItem struct {
	ChargeID    string          `json:"id"`
	Kind        Kind            `json:"tipo"`
	Description string          `json:"descripcion"`
	Amount      decimal.Decimal `json:"monto"`
}

// Payment is the immutable record of a processed payment.
type Payment struct {
	ReceiptID       string          `json:"recibo_id"`
	TenantID        string          `json:"tenant_id"`
	StudentID       string          `json:"student_id"`
	Items           []PaymentItem   `json:"items"`
	Amount          decimal.Decimal `json:"monto"`
	Method          string          `json:"metodo"`
	Concept         string          `json:"concepto"`
	Notes           string          `json:"notas,omitempty"`
	PreviousBalance decimal.Decimal `json:"saldo_anterior"`
	NewBalance      decimal.Decimal `json:"nuevo_saldo"`
	CreatedAt       time.Time       `json:"fecha"`
}

// Result is the outcome of a payment attempt, failures included.
type Result struct {
	Success    bool             `json:"exito"`
	ReceiptID  string           `json:"reciboId,omitempty"`
	NewBalance *decimal.Decimal `json:"nuevoSaldo,omitempty"`
	Message    string           `json:"mensaje,omitempty"`

	Payment *Payment `json:"-"`
	Err     error    `json:"-"`
}

// Ledger entry types
const (
	EntryIncome  = "ingreso"
	EntryExpense = "egreso"
)

// LedgerEntry is an immutable financial movement of the academy.
type LedgerEntry struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"tenant_id"`
	Type        string          `json:"tipo"`
	Category    string          `json:"categoria"`
	Amount      decimal.Decimal `json:"monto"`
	Description string          `json:"descripcion"`
	Date        time.Time       `json:"fecha"`
	SiteID      string          `json:"sede_id,omitempty"`
	ReceiptID   string          `json:"recibo_id,omitempty"`
}

type LedgerFilter struct {
	Category string    `query:"categoria"`
	From     time.Time `query:"desde"`
	To       time.Time `query:"hasta"`
	SiteID   string    `query:"sede_id"`
}

// NewStoreRequest contains information needed to file a store purchase.
type NewStoreRequest struct {
	StudentID string          `json:"student_id" validate:"required"`
	ItemName  string          `json:"item_name" validate:"required"`
	Quantity  int             `json:"quantity" validate:"omitempty,min=1"`
	Amount    decimal.Decimal `json:"monto" validate:"dgt0"`
}

func (nr *NewStoreRequest) Validate(validate *validator.Validate) error {
	nr.StudentID = core.CleanString(nr.StudentID)
	nr.ItemName = core.CleanString(nr.ItemName)
	if nr.Quantity == 0 {
		nr.Quantity = 1
	}
	return validate.Struct(nr)
}

type NewEvent struct {
	Name  string          `json:"name" validate:"required"`
	Price decimal.Decimal `json:"price" validate:"dgte0"`
	Date  time.Time       `json:"date" validate:"required"`
}

func (ne *NewEvent) Validate(validate *validator.Validate) error {
	ne.Name = core.CleanString(ne.Name)
	return validate.Struct(ne)
}

// ManualCharge raises a student's balance without a tracked request (monthly fee, late fee, enrollment).
type ManualCharge struct {
	Kind        Kind            `json:"tipo" validate:"required"`
	Amount      decimal.Decimal `json:"monto" validate:"dgt0"`
	Description string          `json:"descripcion"`
}

func (mc *ManualCharge) Validate(validate *validator.Validate) error {
	mc.Description = core.CleanString(mc.Description)
	return validate.Struct(mc)
}

// ChargeApproval is the atomic write approving a request & adding its amount to the student's balance.
type ChargeApproval struct {
	TenantID   string
	StudentID  string
	Kind       Kind // KindStore | KindEvent
	RequestID  string
	Amount     decimal.Decimal
	ApprovedAt time.Time
}

// PaymentBatch holds every write of a payment; repositories commit it atomically or not at all.
type PaymentBatch struct {
	Payment         Payment
	Ledger          LedgerEntry
	StoreRequestIDs []string
	RegistrationIDs []string
	Stamp           PaymentStamp
	ExpectedBalance decimal.Decimal // compare-and-set guard on the student's balance
	NewBalance      decimal.Decimal
	NewStatus       student.PaymentStatus
}
