// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層・ワーカー・HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordContentEvent(kind, action string)
	RecordLogin(newUser bool)
	RecordSessionsCleaned(count int64)
	RecordHTTPRequest(method, route string, statusCode int, duration time.Duration)
}

// コンテンツ種別とアクションのラベル値
const (
	KindPost    = "post"
	KindComment = "comment"
	KindReply   = "reply"

	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	contentEvents   *prometheus.CounterVec
	logins          *prometheus.CounterVec
	sessionsCleaned prometheus.Counter
	httpRequests    *prometheus.CounterVec
	httpLatency     *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		contentEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "threadboard_content_events_total",
			Help: "投稿・コメントの作成/更新/削除の合計数",
		}, []string{"kind", "action"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "threadboard_logins_total",
			Help: "ログイン成功の合計数（新規ユーザーかどうか別）",
		}, []string{"new_user"}),
		sessionsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "threadboard_sessions_cleaned_total",
			Help: "削除された期限切れセッションの合計数",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "threadboard_http_requests_total",
			Help: "HTTPリクエスト数（メソッド・ルート・ステータス別）",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "threadboard_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		c.contentEvents,
		c.logins,
		c.sessionsCleaned,
		c.httpRequests,
		c.httpLatency,
	)

	return c
}

// RecordContentEvent は投稿・コメントの変更を記録する。
func (c *Collector) RecordContentEvent(kind, action string) {
	c.contentEvents.WithLabelValues(kind, action).Inc()
}

// RecordLogin はログイン成功を記録する。
func (c *Collector) RecordLogin(newUser bool) {
	c.logins.WithLabelValues(strconv.FormatBool(newUser)).Inc()
}

// RecordSessionsCleaned は削除したセッション数を記録する。
func (c *Collector) RecordSessionsCleaned(count int64) {
	c.sessionsCleaned.Add(float64(count))
}

// RecordHTTPRequest はHTTPリクエストの結果と処理時間を記録する。
func (c *Collector) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// NopCollector は何も記録しないMetricsCollector。テストやメトリクス無効時に使用する。
type NopCollector struct{}

func (NopCollector) RecordContentEvent(string, string)                    {}
func (NopCollector) RecordLogin(bool)                                     {}
func (NopCollector) RecordSessionsCleaned(int64)                          {}
func (NopCollector) RecordHTTPRequest(string, string, int, time.Duration) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// statusRecorder はステータスコードを記録するResponseWriterラッパー。
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// NewHTTPMiddleware はリクエストごとにRecordHTTPRequestを呼び出すミドルウェアを返す。
// ルートラベルにはchiのルートパターン（/api/posts/{id} など）を使い、
// 未マッチのリクエストは "unmatched" として集計する。
func NewHTTPMiddleware(collector MetricsCollector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			collector.RecordHTTPRequest(r.Method, route, rec.status, time.Since(start))
		})
	}
}
