package billing

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/William-Pardo/tudojang-sub002/core"
)

// Kind tags the origin of a charge.
type Kind int

const (
	KindStore Kind = iota + 1
	KindEvent
	KindSubscription
	KindLateFee
	KindEnrollment
)

// Kinds lists every charge kind.
var Kinds = []Kind{KindStore, KindEvent, KindSubscription, KindLateFee, KindEnrollment}

// Ledger categories
const (
	CategoryStore        = "Venta Tienda"
	CategoryEvent        = "Eventos"
	CategorySubscription = "Mensualidades"
	CategoryOther        = "Otros Ingresos"
)

var ErrUnknownKind = errors.New("unknown charge type")

// String returns the wire tag of the kind.
func (k Kind) String() string {
	switch k {
	case KindStore:
		return "Tienda"
	case KindEvent:
		return "Evento"
	case KindSubscription:
		return "Mensualidad"
	case KindLateFee:
		return "Mora"
	case KindEnrollment:
		return "Matricula"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Label is the human readable name of the kind, used as a default charge description.
func (k Kind) Label() string {
	switch k {
	case KindStore:
		return "Compra en tienda"
	case KindEvent:
		return "Inscripción a evento"
	case KindSubscription:
		return "Mensualidad"
	case KindLateFee:
		return "Mora"
	case KindEnrollment:
		return "Matrícula"
	}
	return k.String()
}

// Category is the ledger category a payment of this kind is booked under.
func (k Kind) Category() string {
	switch k {
	case KindStore:
		return CategoryStore
	case KindEvent:
		return CategoryEvent
	case KindSubscription:
		return CategorySubscription
	case KindLateFee, KindEnrollment:
		return CategoryOther
	}
	return CategoryOther
}

// HasOrigin reports whether charges of this kind map to a stored request to be marked paid.
func (k Kind) HasOrigin() bool {
	switch k {
	case KindStore, KindEvent:
		return true
	case KindSubscription, KindLateFee, KindEnrollment:
		return false
	}
	return false
}

func (k Kind) Valid() bool {
	switch k {
	case KindStore, KindEvent, KindSubscription, KindLateFee, KindEnrollment:
		return true
	}
	return false
}

// ParseKind parses a wire tag (case & accent insensitive for "Matrícula").
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(core.CleanString(s)) {
	case "tienda":
		return KindStore, nil
	case "evento":
		return KindEvent, nil
	case "mensualidad":
		return KindSubscription, nil
	case "mora":
		return KindLateFee, nil
	case "matricula", "matrícula":
		return KindEnrollment, nil
	}
	return 0, errors.Wrapf(ErrUnknownKind, "%q", s)
}

func (k Kind) MarshalJSON() ([]byte, error) {
	if !k.Valid() {
		return nil, errors.Wrapf(ErrUnknownKind, "%d", int(k))
	}
	return json.Marshal(k.String())
}

func (k *Kind) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}
	kind, err := ParseKind(tag)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "tipo", Error: err.Error()})
	}
	*k = kind
	return nil
}

func (k Kind) Value() (driver.Value, error) {
	if !k.Valid() {
		return nil, errors.Wrapf(ErrUnknownKind, "%d", int(k))
	}
	return k.String(), nil
}

func (k *Kind) Scan(src interface{}) error {
	var tag string
	switch v := src.(type) {
	case string:
		tag = v
	case []byte:
		tag = string(v)
	default:
		return fmt.Errorf("cannot scan %T into Kind", src)
	}
	kind, err := ParseKind(tag)
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// categoryPriority orders the kinds a payment category is picked from: Store > Event > Subscription > the rest.
var categoryPriority = []Kind{KindStore, KindEvent, KindSubscription}

// PaymentCategory picks the ledger category of a payment from the kinds it covers.
func PaymentCategory(kinds ...Kind) string {
	for _, p := range categoryPriority {
		for _, k := range kinds {
			if k == p {
				return p.Category()
			}
		}
	}
	return CategoryOther
}
