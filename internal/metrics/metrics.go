// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ログイン結果のラベル値
const (
	LoginSucceeded  = "succeeded"
	LoginRedirected = "redirected"
	LoginFailed     = "failed"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 認証サービス、ミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordLogin(outcome string)
	RecordSessionCreated()
	RecordGateRejection(code string)
	RecordProviderStatus(statusCode int)
	RecordProviderLatency(operation string, duration time.Duration)
	RecordRateLimited()
	RecordSessionsReaped(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	logins          *prometheus.CounterVec
	sessionsCreated prometheus.Counter
	gateRejections  *prometheus.CounterVec
	providerStatus  *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	rateLimited     prometheus.Counter
	sessionsReaped  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_logins_total",
			Help: "OAuthコールバックの結果別の合計数",
		}, []string{"outcome"}),
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authgate_sessions_created_total",
			Help: "作成されたセッションの合計数",
		}),
		gateRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_gate_rejections_total",
			Help: "Auth Gateが拒否したリクエスト数",
		}, []string{"code"}),
		providerStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_provider_http_status_total",
			Help: "IdPのHTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "authgate_provider_latency_seconds",
			Help:    "IdP呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authgate_rate_limited_total",
			Help: "レート制限で拒否したリクエスト数",
		}),
		sessionsReaped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authgate_sessions_reaped_total",
			Help: "ワーカーが削除した期限切れセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.logins,
		c.sessionsCreated,
		c.gateRejections,
		c.providerStatus,
		c.providerLatency,
		c.rateLimited,
		c.sessionsReaped,
	)

	return c
}

// RecordLogin はOAuthコールバックの結果を記録する。
func (c *Collector) RecordLogin(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}

// RecordSessionCreated はセッション作成を記録する。
func (c *Collector) RecordSessionCreated() {
	c.sessionsCreated.Inc()
}

// RecordGateRejection はAuth Gateによる拒否をエラーコード別に記録する。
func (c *Collector) RecordGateRejection(code string) {
	c.gateRejections.WithLabelValues(code).Inc()
}

// RecordProviderStatus はIdPのHTTPステータスコードを記録する。
func (c *Collector) RecordProviderStatus(statusCode int) {
	c.providerStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordProviderLatency はIdP呼び出しのレイテンシを記録する。
func (c *Collector) RecordProviderLatency(operation string, duration time.Duration) {
	c.providerLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRateLimited はレート制限による拒否を記録する。
func (c *Collector) RecordRateLimited() {
	c.rateLimited.Inc()
}

// RecordSessionsReaped は削除した期限切れセッション数を記録する。
func (c *Collector) RecordSessionsReaped(count int64) {
	c.sessionsReaped.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないMetricsCollector。メトリクスを使わない構成やテストで使用する。
type Nop struct{}

func (Nop) RecordLogin(string)                          {}
func (Nop) RecordSessionCreated()                       {}
func (Nop) RecordGateRejection(string)                  {}
func (Nop) RecordProviderStatus(int)                    {}
func (Nop) RecordProviderLatency(string, time.Duration) {}
func (Nop) RecordRateLimited()                          {}
func (Nop) RecordSessionsReaped(int64)                  {}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
