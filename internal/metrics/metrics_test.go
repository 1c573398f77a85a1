package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPaymentMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPaymentMetrics(reg)

	m.ObserveResolution("bank_transfer")
	m.ObserveResolution("")
	m.ObserveTransfer("bank_transfer", OutcomeSuccess)
	m.ObserveTransfer("bank_transfer", OutcomeSuccess)
	m.ObserveCompensation()
	m.ObserveWebhook("card", "", OutcomeDuplicate)

	if got := testutil.ToFloat64(m.resolutions.WithLabelValues("bank_transfer")); got != 1 {
		t.Fatalf("bank_transfer resolutions want 1 got %v", got)
	}
	if got := testutil.ToFloat64(m.resolutions.WithLabelValues("none")); got != 1 {
		t.Fatalf("empty default should be recorded as none, got %v", got)
	}
	if got := testutil.ToFloat64(m.transfers.WithLabelValues("bank_transfer", OutcomeSuccess)); got != 2 {
		t.Fatalf("transfer success want 2 got %v", got)
	}
	if got := testutil.ToFloat64(m.compensations); got != 1 {
		t.Fatalf("compensations want 1 got %v", got)
	}
	if got := testutil.ToFloat64(m.webhookEvents.WithLabelValues("card", "unknown", OutcomeDuplicate)); got != 1 {
		t.Fatalf("webhook duplicate want 1 got %v", got)
	}
}

func TestNilPaymentMetricsIsNoop(t *testing.T) {
	var m *PaymentMetrics
	m.ObserveResolution("card")
	m.ObserveTransfer("card", OutcomeFailed)
	m.ObserveReconcile("void")
}
