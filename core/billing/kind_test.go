package billing

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/William-Pardo/tudojang-sub002/core"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		tag     string
		want    Kind
		wantErr bool
	}{
		{tag: "Tienda", want: KindStore},
		{tag: " evento ", want: KindEvent},
		{tag: "Mensualidad", want: KindSubscription},
		{tag: "MORA", want: KindLateFee},
		{tag: "Matricula", want: KindEnrollment},
		{tag: "Matrícula", want: KindEnrollment},
		{tag: "Donación", wantErr: true},
		{tag: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got, err := ParseKind(tt.tag)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKind() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && errors.Cause(err) != ErrUnknownKind {
				t.Errorf("ParseKind() error = %v, want cause %v", err, ErrUnknownKind)
			}
			if got != tt.want {
				t.Errorf("ParseKind() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKind_JSON(t *testing.T) {
	var sel SelectedCharge
	err := json.Unmarshal([]byte(`{"id":"x","tipo":"Evento","monto":"60000"}`), &sel)
	assert.NoError(t, err)
	assert.Equal(t, KindEvent, sel.Kind)

	err = json.Unmarshal([]byte(`{"id":"x","tipo":"Donación"}`), &sel)
	assert.True(t, core.IsValidation(err), "got %v", err)

	_, err = json.Marshal(Kind(0))
	assert.Error(t, err)

	b, err := json.Marshal(PendingCharge{Kind: KindLateFee})
	assert.NoError(t, err)
	assert.Contains(t, string(b), `"tipo":"Mora"`)
}

func TestPaymentCategory(t *testing.T) {
	tests := []struct {
		name  string
		kinds []Kind
		want  string
	}{
		{name: "none", want: CategoryOther},
		{name: "late fee", kinds: []Kind{KindLateFee}, want: CategoryOther},
		{name: "enrollment & subscription", kinds: []Kind{KindEnrollment, KindSubscription}, want: CategorySubscription},
		{name: "subscription & event", kinds: []Kind{KindSubscription, KindEvent}, want: CategoryEvent},
		{name: "event & store", kinds: []Kind{KindEvent, KindStore, KindLateFee}, want: CategoryStore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PaymentCategory(tt.kinds...); got != tt.want {
				t.Errorf("PaymentCategory() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKind_HasOrigin(t *testing.T) {
	for _, k := range Kinds {
		assert.Equal(t, k == KindStore || k == KindEvent, k.HasOrigin(), k.String())
	}
	assert.False(t, Kind(9).Valid())
	assert.Equal(t, "Kind(9)", Kind(9).String())
}
