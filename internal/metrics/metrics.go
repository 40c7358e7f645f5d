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
// APIクライアント、正規化層、状態コンテナから利用する。
type MetricsCollector interface {
	RecordAPIRequest(method string, statusCode int)
	RecordAPILatency(duration time.Duration)
	RecordShapeMismatch(resource string)
	RecordAuthExpired()
	RecordCartMutation(op string)
	SetActiveSessions(n int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	apiRequests    *prometheus.CounterVec
	apiLatency     prometheus.Histogram
	shapeMismatch  *prometheus.CounterVec
	authExpired    prometheus.Counter
	cartMutations  *prometheus.CounterVec
	activeSessions prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_api_requests_total",
			Help: "バックエンドAPI呼び出し数（メソッド・ステータスコード別）",
		}, []string{"method", "status_code"}),
		apiLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "storefront_api_latency_seconds",
			Help:    "バックエンドAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		shapeMismatch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_shape_mismatch_total",
			Help: "想定外のレスポンス形状を受け取った回数（リソース別）",
		}, []string{"resource"}),
		authExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_auth_expired_total",
			Help: "バックエンドが401を返した回数",
		}),
		cartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_cart_mutations_total",
			Help: "カート操作の回数（操作種別ごと）",
		}, []string{"op"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "storefront_active_sessions",
			Help: "現在保持しているセッション数",
		}),
	}

	reg.MustRegister(
		c.apiRequests,
		c.apiLatency,
		c.shapeMismatch,
		c.authExpired,
		c.cartMutations,
		c.activeSessions,
	)

	return c
}

// RecordAPIRequest はAPI呼び出しをメソッドとステータスコードで記録する。
// 通信エラーでステータスが得られない場合はstatusCode=0を渡す。
func (c *Collector) RecordAPIRequest(method string, statusCode int) {
	c.apiRequests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
}

// RecordAPILatency はAPI呼び出しのレイテンシを記録する。
func (c *Collector) RecordAPILatency(duration time.Duration) {
	c.apiLatency.Observe(duration.Seconds())
}

// RecordShapeMismatch はレスポンス形状の不一致を記録する。
func (c *Collector) RecordShapeMismatch(resource string) {
	c.shapeMismatch.WithLabelValues(resource).Inc()
}

// RecordAuthExpired は認証切れを記録する。
func (c *Collector) RecordAuthExpired() {
	c.authExpired.Inc()
}

// RecordCartMutation はカート操作を記録する。
func (c *Collector) RecordCartMutation(op string) {
	c.cartMutations.WithLabelValues(op).Inc()
}

// SetActiveSessions は保持中のセッション数を設定する。
func (c *Collector) SetActiveSessions(n int) {
	c.activeSessions.Set(float64(n))
}

// Nop は何も記録しないMetricsCollector。テストや計測不要な構成で使う。
type Nop struct{}

func (Nop) RecordAPIRequest(string, int)   {}
func (Nop) RecordAPILatency(time.Duration) {}
func (Nop) RecordShapeMismatch(string)     {}
func (Nop) RecordAuthExpired()             {}
func (Nop) RecordCartMutation(string)      {}
func (Nop) SetActiveSessions(int)          {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
