// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 調停ロジックやオーケストレータから利用する。
type MetricsCollector interface {
	RecordReconcileCreate()
	RecordReconcileUpdate()
	RecordReconcileFailure(code string)
	RecordUpstreamLatency(duration time.Duration)
	RecordWebhookDelivery(outcome string)
	RecordSweepRun(pairCount int)
	RecordCacheRefresh()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	reconcileCreate prometheus.Counter
	reconcileUpdate prometheus.Counter
	reconcileFail   *prometheus.CounterVec
	upstreamLatency prometheus.Histogram
	webhookTotal    *prometheus.CounterVec
	sweepRuns       prometheus.Counter
	sweepPairs      prometheus.Counter
	cacheRefresh    prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		reconcileCreate: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "classcal_reconcile_create_total",
			Help: "カレンダーイベント作成の合計数",
		}),
		reconcileUpdate: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "classcal_reconcile_update_total",
			Help: "カレンダーイベント更新の合計数",
		}),
		reconcileFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classcal_reconcile_fail_total",
			Help: "エラーコード別のペア調停失敗数",
		}, []string{"code"}),
		upstreamLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "classcal_reconcile_latency_seconds",
			Help:    "ペア調停1回のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classcal_webhook_total",
			Help: "結果別のWebhook配信数",
		}, []string{"outcome"}),
		sweepRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "classcal_sweep_runs_total",
			Help: "スイープ実行の合計数",
		}),
		sweepPairs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "classcal_sweep_pairs_total",
			Help: "スイープで処理したペアの合計数",
		}),
		cacheRefresh: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "classcal_assignment_cache_refresh_total",
			Help: "課題キャッシュの上流再取得数",
		}),
	}

	reg.MustRegister(
		c.reconcileCreate,
		c.reconcileUpdate,
		c.reconcileFail,
		c.upstreamLatency,
		c.webhookTotal,
		c.sweepRuns,
		c.sweepPairs,
		c.cacheRefresh,
	)

	return c
}

// RecordReconcileCreate はイベント作成を記録する。
func (c *Collector) RecordReconcileCreate() {
	c.reconcileCreate.Inc()
}

// RecordReconcileUpdate はイベント更新を記録する。
func (c *Collector) RecordReconcileUpdate() {
	c.reconcileUpdate.Inc()
}

// RecordReconcileFailure はペア調停の失敗をエラーコード別に記録する。
func (c *Collector) RecordReconcileFailure(code string) {
	c.reconcileFail.WithLabelValues(code).Inc()
}

// RecordUpstreamLatency はペア調停1回のレイテンシを記録する。
func (c *Collector) RecordUpstreamLatency(duration time.Duration) {
	c.upstreamLatency.Observe(duration.Seconds())
}

// RecordWebhookDelivery はWebhook配信を結果別に記録する。
func (c *Collector) RecordWebhookDelivery(outcome string) {
	c.webhookTotal.WithLabelValues(outcome).Inc()
}

// RecordSweepRun はスイープ実行と処理ペア数を記録する。
func (c *Collector) RecordSweepRun(pairCount int) {
	c.sweepRuns.Inc()
	c.sweepPairs.Add(float64(pairCount))
}

// RecordCacheRefresh は課題キャッシュの上流再取得を記録する。
func (c *Collector) RecordCacheRefresh() {
	c.cacheRefresh.Inc()
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
