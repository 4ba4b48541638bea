package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"

	"github.com/William-Pardo/tudojang-sub002/core/notify"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()

	r.PaymentProcessed(true, decimal.NewFromInt(180000))
	r.PaymentProcessed(true, decimal.NewFromInt(20000))
	r.PaymentProcessed(false, decimal.NewFromInt(50000))
	r.NotificationDispatched(notify.ModeSilent, true)
	r.NotificationDispatched(notify.ModeDownloadThenChat, false)

	if got := testutil.ToFloat64(r.payments.WithLabelValues("success")); got != 2 {
		t.Errorf("payments(success) = %v; want 2", got)
	}
	if got := testutil.ToFloat64(r.payments.WithLabelValues("failure")); got != 1 {
		t.Errorf("payments(failure) = %v; want 1", got)
	}
	if got := testutil.ToFloat64(r.amount); got != 200000 {
		t.Errorf("amount = %v; want 200000", got)
	}
	if got := testutil.ToFloat64(r.notifications.WithLabelValues("silent", "success")); got != 1 {
		t.Errorf("notifications(silent, success) = %v; want 1", got)
	}
	if got := testutil.ToFloat64(r.notifications.WithLabelValues("chat", "failure")); got != 1 {
		t.Errorf("notifications(chat, failure) = %v; want 1", got)
	}

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d; want 200", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, "tudojang_payments_total") {
		t.Errorf("exposition misses tudojang_payments_total:\n%s", body)
	}
}
