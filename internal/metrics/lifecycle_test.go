package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterLifecycle_Idempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := RegisterLifecycle(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := RegisterLifecycle(reg); err != nil {
		t.Fatalf("second register: %v", err)
	}
}

func TestObserveLifecycle(t *testing.T) {
	before := testutil.ToFloat64(LifecycleOps.WithLabelValues("start", "ok"))
	ObserveLifecycle("start", "ok", 120*time.Millisecond)
	after := testutil.ToFloat64(LifecycleOps.WithLabelValues("start", "ok"))
	if after != before+1 {
		t.Fatalf("counter = %v, want %v", after, before+1)
	}
}
