package billing_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/William-Pardo/tudojang-sub002/core/billing"
)

func TestAttempt_lifecycle(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	s := f.student(t, "180000")

	a := billing.NewAttempt(s.ID)
	assert.Equal(t, billing.StateSelecting, a.State())

	// failed attempt, then retried
	require.NoError(t, a.Select(billing.NewPayment{Amount: dec("180000")}))
	res, err := a.Run(ctx, f.svc, f.tenantID)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, billing.StateFailed, a.State())
	assert.Equal(t, res.Message, a.Result().Message)

	if err := a.GeneratingReceipt(); errors.Cause(err) != billing.ErrInvalidTransition {
		t.Errorf("GeneratingReceipt() error = %v, wantErr %v", err, billing.ErrInvalidTransition)
	}
	require.NoError(t, a.Retry())
	assert.Equal(t, billing.StateSelecting, a.State())
	assert.False(t, a.Result().Success)
	assert.Empty(t, a.Result().Message)

	require.NoError(t, a.Select(billing.NewPayment{
		StudentID: "someone else", // the attempt keeps its student
		Items:     []billing.SelectedCharge{{ID: "mensualidad-" + s.ID, Kind: billing.KindSubscription, Amount: dec("180000")}},
		Amount:    dec("180000"),
	}))
	res, err = a.Run(ctx, f.svc, f.tenantID)
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, billing.StateSucceeded, a.State())

	if err := a.Select(billing.NewPayment{}); errors.Cause(err) != billing.ErrInvalidTransition {
		t.Errorf("Select() error = %v, wantErr %v", err, billing.ErrInvalidTransition)
	}
	if err := a.Retry(); errors.Cause(err) != billing.ErrInvalidTransition {
		t.Errorf("Retry() error = %v, wantErr %v", err, billing.ErrInvalidTransition)
	}

	require.NoError(t, a.GeneratingReceipt())
	assert.Equal(t, billing.StateGeneratingReceipt, a.State())
	require.NoError(t, a.Ready())
	assert.Equal(t, billing.StateReady, a.State())
	assert.Equal(t, res.ReceiptID, a.Result().ReceiptID)
}

func TestAttempt_Begin(t *testing.T) {
	a := billing.NewAttempt("s1")
	np, err := a.Begin()
	require.NoError(t, err)
	assert.Equal(t, "s1", np.StudentID)

	tests := []struct {
		name    string
		call    func() error
		wantErr error
	}{
		{name: "begin twice", call: func() error { _, err := a.Begin(); return err }, wantErr: billing.ErrAttemptInProgress},
		{name: "select while processing", call: func() error { return a.Select(billing.NewPayment{}) }, wantErr: billing.ErrInvalidTransition},
		{name: "ready while processing", call: a.Ready, wantErr: billing.ErrInvalidTransition},
		{name: "retry while processing", call: a.Retry, wantErr: billing.ErrInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); errors.Cause(err) != tt.wantErr {
				t.Errorf("error = %v, wantErr %v", err, tt.wantErr)
			}
			assert.Equal(t, billing.StateProcessing, a.State())
		})
	}
}

func TestAttempt_Ready_withoutReceipt(t *testing.T) {
	a := billing.NewAttempt("s1")
	_, err := a.Begin()
	require.NoError(t, err)
	require.NoError(t, a.Finish(billing.Result{Success: true, ReceiptID: "REC-2024-0001"}))
	require.NoError(t, a.Ready())
	assert.Equal(t, billing.StateReady, a.State())
	assert.Equal(t, "ready", a.State().String())
}
