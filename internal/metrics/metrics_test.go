package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric はレジストリから指定名のメトリクスファミリーを取得する。
func findMetric(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("metric %s not found", name)
	return nil
}

// labelValue はメトリクスから指定ラベルの値を返す。
func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func TestNewCollector_ReturnsNonNil(t *testing.T) {
	if c := NewCollector(prometheus.NewRegistry()); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

func TestRecordLogin_CountsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLogin(LoginSucceeded)
	c.RecordLogin(LoginSucceeded)
	c.RecordLogin(LoginRedirected)

	mf := findMetric(t, reg, "authgate_logins_total")
	got := make(map[string]float64)
	for _, m := range mf.GetMetric() {
		got[labelValue(m, "outcome")] = m.GetCounter().GetValue()
	}

	if got[LoginSucceeded] != 2 {
		t.Errorf("succeeded = %v, want 2", got[LoginSucceeded])
	}
	if got[LoginRedirected] != 1 {
		t.Errorf("redirected = %v, want 1", got[LoginRedirected])
	}
}

func TestRecordGateRejection_CountsByCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordGateRejection("unauthenticated")
	c.RecordGateRejection("storage_failure")
	c.RecordGateRejection("unauthenticated")

	mf := findMetric(t, reg, "authgate_gate_rejections_total")
	if len(mf.GetMetric()) != 2 {
		t.Fatalf("expected 2 label sets, got %d", len(mf.GetMetric()))
	}
	for _, m := range mf.GetMetric() {
		code := labelValue(m, "code")
		want := 1.0
		if code == "unauthenticated" {
			want = 2
		}
		if v := m.GetCounter().GetValue(); v != want {
			t.Errorf("%s = %v, want %v", code, v, want)
		}
	}
}

func TestRecordProviderStatus_LabelsStatusCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordProviderStatus(200)
	c.RecordProviderStatus(401)

	mf := findMetric(t, reg, "authgate_provider_http_status_total")
	codes := make(map[string]bool)
	for _, m := range mf.GetMetric() {
		codes[labelValue(m, "status_code")] = true
	}
	if !codes["200"] || !codes["401"] {
		t.Errorf("status codes = %v, want 200 and 401", codes)
	}
}

func TestRecordProviderLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordProviderLatency("exchange_code", 150*time.Millisecond)
	c.RecordProviderLatency("exchange_code", 50*time.Millisecond)

	mf := findMetric(t, reg, "authgate_provider_latency_seconds")
	h := mf.GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Errorf("sample count = %d, want 2", h.GetSampleCount())
	}
	if sum := h.GetSampleSum(); sum < 0.19 || sum > 0.21 {
		t.Errorf("sample sum = %v, want ~0.2", sum)
	}
}

func TestRecordSessionsReaped_AddsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSessionsReaped(3)
	c.RecordSessionsReaped(4)

	mf := findMetric(t, reg, "authgate_sessions_reaped_total")
	if v := mf.GetMetric()[0].GetCounter().GetValue(); v != 7 {
		t.Errorf("sessions_reaped_total = %v, want 7", v)
	}
}

func TestRecordRateLimited_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRateLimited()

	mf := findMetric(t, reg, "authgate_rate_limited_total")
	if v := mf.GetMetric()[0].GetCounter().GetValue(); v != 1 {
		t.Errorf("rate_limited_total = %v, want 1", v)
	}
}

func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	_ = NewCollector(reg2)

	c1.RecordSessionCreated()

	if v := findMetric(t, reg1, "authgate_sessions_created_total").GetMetric()[0].GetCounter().GetValue(); v != 1 {
		t.Errorf("reg1 sessions_created_total = %v, want 1", v)
	}
	if v := findMetric(t, reg2, "authgate_sessions_created_total").GetMetric()[0].GetCounter().GetValue(); v != 0 {
		t.Errorf("reg2 sessions_created_total = %v, want 0", v)
	}
}
