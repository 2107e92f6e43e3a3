// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// スキャナ、トレンドサービス、ワーカーから利用する。
type MetricsCollector interface {
	RecordPostDetected()
	RecordPostInjected()
	RecordPostSkipped(reason string)
	RecordScanFailure()
	RecordScanLatency(duration time.Duration)
	RecordTrendCacheHit()
	RecordTrendCacheMiss()
	RecordTrendScanFailure()
	RecordIdeaSaved(source string)
	RecordSaveFailure()
}

// Collector はPrometheusメトリクスを収集する実装。
// scanner.Recorderインターフェースも満たす。
type Collector struct {
	postDetected   prometheus.Counter
	postInjected   prometheus.Counter
	postSkipped    *prometheus.CounterVec
	scanFail       prometheus.Counter
	scanLatency    prometheus.Histogram
	trendCacheHit  prometheus.Counter
	trendCacheMiss prometheus.Counter
	trendScanFail  prometheus.Counter
	ideaSaved      *prometheus.CounterVec
	saveFail       prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		postDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trendman_posts_detected_total",
			Help: "検出された投稿候補の合計数",
		}),
		postInjected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trendman_posts_injected_total",
			Help: "保存コントロールが注入された投稿の合計数",
		}),
		postSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trendman_posts_skipped_total",
			Help: "スキップされた投稿の合計数（理由別）",
		}, []string{"reason"}),
		scanFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trendman_scan_fail_total",
			Help: "個別投稿の処理失敗の合計数",
		}),
		scanLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trendman_scan_latency_seconds",
			Help:    "ページスキャンのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		trendCacheHit: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trendman_trend_cache_hit_total",
			Help: "トレンド日次キャッシュのヒット合計数",
		}),
		trendCacheMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trendman_trend_cache_miss_total",
			Help: "トレンド日次キャッシュのミス合計数",
		}),
		trendScanFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trendman_trend_scan_fail_total",
			Help: "トレンドスキャン失敗の合計数",
		}),
		ideaSaved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trendman_ideas_saved_total",
			Help: "保存されたアイデアの合計数（由来種別ごと）",
		}, []string{"source"}),
		saveFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trendman_save_fail_total",
			Help: "保存アクション失敗の合計数",
		}),
	}

	reg.MustRegister(
		c.postDetected,
		c.postInjected,
		c.postSkipped,
		c.scanFail,
		c.scanLatency,
		c.trendCacheHit,
		c.trendCacheMiss,
		c.trendScanFail,
		c.ideaSaved,
		c.saveFail,
	)

	return c
}

// RecordPostDetected は投稿候補の検出を記録する。
func (c *Collector) RecordPostDetected() {
	c.postDetected.Inc()
}

// RecordPostInjected はコントロール注入を記録する。
func (c *Collector) RecordPostInjected() {
	c.postInjected.Inc()
}

// RecordPostSkipped は投稿のスキップを理由付きで記録する。
func (c *Collector) RecordPostSkipped(reason string) {
	c.postSkipped.WithLabelValues(reason).Inc()
}

// RecordScanFailure は個別投稿の処理失敗を記録する。
func (c *Collector) RecordScanFailure() {
	c.scanFail.Inc()
}

// RecordScanLatency はページスキャンのレイテンシを記録する。
func (c *Collector) RecordScanLatency(duration time.Duration) {
	c.scanLatency.Observe(duration.Seconds())
}

// RecordTrendCacheHit はトレンドキャッシュのヒットを記録する。
func (c *Collector) RecordTrendCacheHit() {
	c.trendCacheHit.Inc()
}

// RecordTrendCacheMiss はトレンドキャッシュのミスを記録する。
func (c *Collector) RecordTrendCacheMiss() {
	c.trendCacheMiss.Inc()
}

// RecordTrendScanFailure はトレンドスキャンの失敗を記録する。
func (c *Collector) RecordTrendScanFailure() {
	c.trendScanFail.Inc()
}

// RecordIdeaSaved はアイデアの保存を由来種別付きで記録する。
func (c *Collector) RecordIdeaSaved(source string) {
	c.ideaSaved.WithLabelValues(source).Inc()
}

// RecordSaveFailure は保存アクションの失敗を記録する。
func (c *Collector) RecordSaveFailure() {
	c.saveFail.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
