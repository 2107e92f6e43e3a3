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

// counterValue は指定メトリクスのカウンタ値を取得する。
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() == name {
			var total float64
			for _, m := range mf.GetMetric() {
				total += m.GetCounter().GetValue()
			}
			return total
		}
	}
	t.Fatalf("%s metric not found", name)
	return 0
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordPostCounters は投稿関連カウンタが増加することを検証する。
func TestRecordPostCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPostDetected()
	c.RecordPostDetected()
	c.RecordPostInjected()
	c.RecordPostSkipped("processed")
	c.RecordPostSkipped("short_content")
	c.RecordScanFailure()

	if got := counterValue(t, reg, "trendman_posts_detected_total"); got != 2 {
		t.Errorf("posts_detected_total = %v, want 2", got)
	}
	if got := counterValue(t, reg, "trendman_posts_injected_total"); got != 1 {
		t.Errorf("posts_injected_total = %v, want 1", got)
	}
	if got := counterValue(t, reg, "trendman_posts_skipped_total"); got != 2 {
		t.Errorf("posts_skipped_total = %v, want 2", got)
	}
	if got := counterValue(t, reg, "trendman_scan_fail_total"); got != 1 {
		t.Errorf("scan_fail_total = %v, want 1", got)
	}
}

// TestRecordTrendCounters はトレンド関連カウンタが増加することを検証する。
func TestRecordTrendCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordTrendCacheHit()
	c.RecordTrendCacheMiss()
	c.RecordTrendCacheMiss()
	c.RecordTrendScanFailure()

	if got := counterValue(t, reg, "trendman_trend_cache_hit_total"); got != 1 {
		t.Errorf("trend_cache_hit_total = %v, want 1", got)
	}
	if got := counterValue(t, reg, "trendman_trend_cache_miss_total"); got != 2 {
		t.Errorf("trend_cache_miss_total = %v, want 2", got)
	}
	if got := counterValue(t, reg, "trendman_trend_scan_fail_total"); got != 1 {
		t.Errorf("trend_scan_fail_total = %v, want 1", got)
	}
}

// TestRecordIdeaSaved_BySource はアイデア保存カウンタが由来種別ごとに増加することを検証する。
func TestRecordIdeaSaved_BySource(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordIdeaSaved("post")
	c.RecordIdeaSaved("trend")
	c.RecordIdeaSaved("post")
	c.RecordSaveFailure()

	if got := counterValue(t, reg, "trendman_ideas_saved_total"); got != 3 {
		t.Errorf("ideas_saved_total = %v, want 3", got)
	}
	if got := counterValue(t, reg, "trendman_save_fail_total"); got != 1 {
		t.Errorf("save_fail_total = %v, want 1", got)
	}
}

// TestRecordScanLatency はレイテンシヒストグラムが記録されることを検証する。
func TestRecordScanLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordScanLatency(150 * time.Millisecond)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	found := false
	for _, mf := range metrics {
		if mf.GetName() == "trendman_scan_latency_seconds" {
			found = true
			if count := mf.GetMetric()[0].GetHistogram().GetSampleCount(); count != 1 {
				t.Errorf("sample count = %d, want 1", count)
			}
		}
	}
	if !found {
		t.Error("trendman_scan_latency_seconds metric not found")
	}
}

// TestMetricsHandler_ExposesMetrics は/metricsハンドラーがメトリクスを公開することを検証する。
func TestMetricsHandler_ExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordPostDetected()

	handler := SetupMetricsRoute(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	body, _ := io.ReadAll(w.Result().Body)
	if !strings.Contains(string(body), "trendman_posts_detected_total") {
		t.Error("公開結果にtrendman_posts_detected_totalが含まれません")
	}
}
