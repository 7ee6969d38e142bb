// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordUpstreamFetchSuccess()
	RecordUpstreamFetchFailure(reason string)
	RecordUpstreamFetchLatency(duration time.Duration)
	RecordCacheHit(tier string)
	RecordCacheMiss(tier string)
	RecordHTTPStatus(statusCode int)
	RecordAsteroidsUpserted(count int)
	RecordNotificationsCreated(count int)
}

// キャッシュ階層のラベル値。
const (
	TierDaily  = "daily"
	TierObject = "object"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	upstreamFetchSuccess prometheus.Counter
	upstreamFetchFail    *prometheus.CounterVec
	upstreamLatency      prometheus.Histogram
	cacheHits            *prometheus.CounterVec
	cacheMisses          *prometheus.CounterVec
	httpStatus           *prometheus.CounterVec
	asteroidsUpserted    prometheus.Counter
	notificationsCreated prometheus.Counter
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		upstreamFetchSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "neowatch_upstream_fetch_success_total",
			Help: "NASA APIフェッチ成功の合計数",
		}),
		upstreamFetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "neowatch_upstream_fetch_fail_total",
			Help: "NASA APIフェッチ失敗の合計数（理由別）",
		}, []string{"reason"}),
		upstreamLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "neowatch_upstream_fetch_latency_seconds",
			Help:    "NASA APIフェッチのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "neowatch_cache_hits_total",
			Help: "キャッシュヒットの合計数（階層別）",
		}, []string{"tier"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "neowatch_cache_misses_total",
			Help: "キャッシュミスの合計数（階層別）",
		}, []string{"tier"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "neowatch_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		asteroidsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "neowatch_asteroids_upserted_total",
			Help: "アップサートされた天体の合計数",
		}),
		notificationsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "neowatch_notifications_created_total",
			Help: "作成された通知の合計数",
		}),
	}

	reg.MustRegister(
		c.upstreamFetchSuccess,
		c.upstreamFetchFail,
		c.upstreamLatency,
		c.cacheHits,
		c.cacheMisses,
		c.httpStatus,
		c.asteroidsUpserted,
		c.notificationsCreated,
	)

	return c
}

// RecordUpstreamFetchSuccess は上流APIフェッチ成功を記録する。
func (c *Collector) RecordUpstreamFetchSuccess() {
	c.upstreamFetchSuccess.Inc()
}

// RecordUpstreamFetchFailure は上流APIフェッチ失敗を理由付きで記録する。
func (c *Collector) RecordUpstreamFetchFailure(reason string) {
	c.upstreamFetchFail.WithLabelValues(reason).Inc()
}

// RecordUpstreamFetchLatency は上流APIフェッチのレイテンシを記録する。
func (c *Collector) RecordUpstreamFetchLatency(duration time.Duration) {
	c.upstreamLatency.Observe(duration.Seconds())
}

// RecordCacheHit は指定階層のキャッシュヒットを記録する。
func (c *Collector) RecordCacheHit(tier string) {
	c.cacheHits.WithLabelValues(tier).Inc()
}

// RecordCacheMiss は指定階層のキャッシュミスを記録する。
func (c *Collector) RecordCacheMiss(tier string) {
	c.cacheMisses.WithLabelValues(tier).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordAsteroidsUpserted はアップサートされた天体数を記録する。
func (c *Collector) RecordAsteroidsUpserted(count int) {
	c.asteroidsUpserted.Add(float64(count))
}

// RecordNotificationsCreated は作成された通知数を記録する。
func (c *Collector) RecordNotificationsCreated(count int) {
	c.notificationsCreated.Add(float64(count))
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
