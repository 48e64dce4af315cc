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
// 認証フロー、ミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordLoginSuccess()
	RecordLoginFailure(reason string)
	RecordTokenIssued(kind string)
	RecordRefreshTokenUpserted()
	RecordCookieDecodeError(cookieName string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordRefreshTokensPurged(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginSuccess       prometheus.Counter
	loginFailure       *prometheus.CounterVec
	tokensIssued       *prometheus.CounterVec
	refreshUpserts     prometheus.Counter
	cookieDecodeErrors *prometheus.CounterVec
	httpStatus         *prometheus.CounterVec
	requestLatency     prometheus.Histogram
	refreshPurged      prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogman_login_success_total",
			Help: "OAuthログイン成功の合計数",
		}),
		loginFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogman_login_failure_total",
			Help: "OAuthログイン失敗の合計数（理由別）",
		}, []string{"reason"}),
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogman_tokens_issued_total",
			Help: "発行したトークンの合計数（種別別）",
		}, []string{"kind"}),
		refreshUpserts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogman_refresh_token_upserts_total",
			Help: "リフレッシュトークンの保存回数",
		}),
		cookieDecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogman_cookie_decode_errors_total",
			Help: "復号できなかったCookieの数",
		}, []string{"cookie"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "blogman_request_latency_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		refreshPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogman_refresh_tokens_purged_total",
			Help: "期限切れで削除したリフレッシュトークンの合計数",
		}),
	}

	reg.MustRegister(
		c.loginSuccess,
		c.loginFailure,
		c.tokensIssued,
		c.refreshUpserts,
		c.cookieDecodeErrors,
		c.httpStatus,
		c.requestLatency,
		c.refreshPurged,
	)

	return c
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess() {
	c.loginSuccess.Inc()
}

// RecordLoginFailure はログイン失敗を理由付きで記録する。
func (c *Collector) RecordLoginFailure(reason string) {
	c.loginFailure.WithLabelValues(reason).Inc()
}

// RecordTokenIssued はトークン発行を記録する。kindは "access" または "refresh"。
func (c *Collector) RecordTokenIssued(kind string) {
	c.tokensIssued.WithLabelValues(kind).Inc()
}

// RecordRefreshTokenUpserted はリフレッシュトークンの保存を記録する。
func (c *Collector) RecordRefreshTokenUpserted() {
	c.refreshUpserts.Inc()
}

// RecordCookieDecodeError はCookieの復号失敗を記録する。
func (c *Collector) RecordCookieDecodeError(cookieName string) {
	c.cookieDecodeErrors.WithLabelValues(cookieName).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストの処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordRefreshTokensPurged は削除した期限切れトークン数を記録する。
func (c *Collector) RecordRefreshTokensPurged(count int64) {
	c.refreshPurged.Add(float64(count))
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordLoginSuccess()                {}
func (Nop) RecordLoginFailure(string)          {}
func (Nop) RecordTokenIssued(string)           {}
func (Nop) RecordRefreshTokenUpserted()        {}
func (Nop) RecordCookieDecodeError(string)     {}
func (Nop) RecordHTTPStatus(int)               {}
func (Nop) RecordRequestLatency(time.Duration) {}
func (Nop) RecordRefreshTokensPurged(int64)    {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)

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
