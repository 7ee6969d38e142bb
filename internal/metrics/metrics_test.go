package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordUpstreamFetchSuccess_IncrementsCounter はフェッチ成功カウンタが増加することを検証する。
func TestRecordUpstreamFetchSuccess_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUpstreamFetchSuccess()
	c.RecordUpstreamFetchSuccess()

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "neowatch_upstream_fetch_success_total" {
			found = true
			if len(mf.GetMetric()) != 1 {
				t.Fatalf("expected 1 metric, got %d", len(mf.GetMetric()))
			}
			val := mf.GetMetric()[0].GetCounter().GetValue()
			if val != 2 {
				t.Errorf("upstream_fetch_success_total = %v, want 2", val)
			}
		}
	}
	if !found {
		t.Error("neowatch_upstream_fetch_success_total metric not found")
	}
}

// TestRecordUpstreamFetchFailure_IncrementsCounterWithReason はフェッチ失敗カウンタが理由ラベル付きで増加することを検証する。
func TestRecordUpstreamFetchFailure_IncrementsCounterWithReason(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUpstreamFetchFailure("timeout")
	c.RecordUpstreamFetchFailure("timeout")
	c.RecordUpstreamFetchFailure("rate_limited")

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "neowatch_upstream_fetch_fail_total" {
			found = true
			if len(mf.GetMetric()) != 2 {
				t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
			}
			for _, m := range mf.GetMetric() {
				label := m.GetLabel()[0].GetValue()
				val := m.GetCounter().GetValue()
				switch label {
				case "timeout":
					if val != 2 {
						t.Errorf("upstream_fetch_fail_total{reason=timeout} = %v, want 2", val)
					}
				case "rate_limited":
					if val != 1 {
						t.Errorf("upstream_fetch_fail_total{reason=rate_limited} = %v, want 1", val)
					}
				default:
					t.Errorf("unexpected label value: %s", label)
				}
			}
		}
	}
	if !found {
		t.Error("neowatch_upstream_fetch_fail_total metric not found")
	}
}

// TestRecordCacheHitAndMiss_IncrementsCountersWithTierLabel はキャッシュヒット・ミスが階層ラベル付きで記録されることを検証する。
func TestRecordCacheHitAndMiss_IncrementsCountersWithTierLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCacheHit(TierDaily)
	c.RecordCacheHit(TierDaily)
	c.RecordCacheHit(TierObject)
	c.RecordCacheMiss(TierDaily)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	for _, mf := range metrics {
		switch mf.GetName() {
		case "neowatch_cache_hits_total":
			for _, m := range mf.GetMetric() {
				label := m.GetLabel()[0].GetValue()
				val := m.GetCounter().GetValue()
				switch label {
				case TierDaily:
					if val != 2 {
						t.Errorf("cache_hits_total{tier=daily} = %v, want 2", val)
					}
				case TierObject:
					if val != 1 {
						t.Errorf("cache_hits_total{tier=object} = %v, want 1", val)
					}
				}
			}
		case "neowatch_cache_misses_total":
			if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 1 {
				t.Errorf("cache_misses_total{tier=daily} = %v, want 1", val)
			}
		}
	}
}

// TestRecordHTTPStatus_IncrementsCounterWithLabel はHTTPステータスカウンタがラベル付きで増加することを検証する。
func TestRecordHTTPStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(404)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "neowatch_http_status_total" {
			found = true
			if len(mf.GetMetric()) != 2 {
				t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
			}
			for _, m := range mf.GetMetric() {
				label := m.GetLabel()[0].GetValue()
				val := m.GetCounter().GetValue()
				switch label {
				case "200":
					if val != 2 {
						t.Errorf("http_status_total{status_code=200} = %v, want 2", val)
					}
				case "404":
					if val != 1 {
						t.Errorf("http_status_total{status_code=404} = %v, want 1", val)
					}
				default:
					t.Errorf("unexpected label value: %s", label)
				}
			}
		}
	}
	if !found {
		t.Error("neowatch_http_status_total metric not found")
	}
}

// TestRecordUpstreamFetchLatency_ObservesHistogram はフェッチレイテンシのヒストグラムに値が記録されることを検証する。
func TestRecordUpstreamFetchLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUpstreamFetchLatency(100 * time.Millisecond)
	c.RecordUpstreamFetchLatency(2 * time.Second)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "neowatch_upstream_fetch_latency_seconds" {
			found = true
			h := mf.GetMetric()[0].GetHistogram()
			if h.GetSampleCount() != 2 {
				t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
			}
			// 合計は0.1 + 2.0 = 2.1秒
			if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
				t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
			}
		}
	}
	if !found {
		t.Error("neowatch_upstream_fetch_latency_seconds metric not found")
	}
}

// TestRecordAsteroidsUpserted_IncrementsCounter は天体アップサートカウンタが増加することを検証する。
func TestRecordAsteroidsUpserted_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAsteroidsUpserted(10)
	c.RecordAsteroidsUpserted(5)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "neowatch_asteroids_upserted_total" {
			found = true
			val := mf.GetMetric()[0].GetCounter().GetValue()
			if val != 15 {
				t.Errorf("asteroids_upserted_total = %v, want 15", val)
			}
		}
	}
	if !found {
		t.Error("neowatch_asteroids_upserted_total metric not found")
	}
}

// TestRecordNotificationsCreated_IncrementsCounter は通知作成カウンタが増加することを検証する。
func TestRecordNotificationsCreated_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordNotificationsCreated(3)
	c.RecordNotificationsCreated(1)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "neowatch_notifications_created_total" {
			found = true
			val := mf.GetMetric()[0].GetCounter().GetValue()
			if val != 4 {
				t.Errorf("notifications_created_total = %v, want 4", val)
			}
		}
	}
	if !found {
		t.Error("neowatch_notifications_created_total metric not found")
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	// いくつかのメトリクスを記録
	c.RecordUpstreamFetchSuccess()
	c.RecordUpstreamFetchFailure("error")
	c.RecordCacheHit(TierDaily)
	c.RecordHTTPStatus(200)
	c.RecordUpstreamFetchLatency(500 * time.Millisecond)
	c.RecordAsteroidsUpserted(3)

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	// Prometheus形式のメトリクスが含まれていることを確認
	expectedMetrics := []string{
		"neowatch_upstream_fetch_success_total",
		"neowatch_upstream_fetch_fail_total",
		"neowatch_cache_hits_total",
		"neowatch_http_status_total",
		"neowatch_upstream_fetch_latency_seconds",
		"neowatch_asteroids_upserted_total",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.RecordUpstreamFetchSuccess()
	c2.RecordUpstreamFetchSuccess()
	c2.RecordUpstreamFetchSuccess()

	metrics1, _ := reg1.Gather()
	metrics2, _ := reg2.Gather()

	var val1, val2 float64
	for _, mf := range metrics1 {
		if mf.GetName() == "neowatch_upstream_fetch_success_total" {
			val1 = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	for _, mf := range metrics2 {
		if mf.GetName() == "neowatch_upstream_fetch_success_total" {
			val2 = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}

	if val1 != 1 {
		t.Errorf("reg1 upstream_fetch_success = %v, want 1", val1)
	}
	if val2 != 2 {
		t.Errorf("reg2 upstream_fetch_success = %v, want 2", val2)
	}
}
