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
// 認証サービスとフィードサービスから利用する。
type MetricsCollector interface {
	RecordSignUp()
	RecordLogin()
	RecordSignOut()
	RecordPostCreated()
	RecordOrphanedPost()
	RecordProfileResolutionFailure()
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	signups            prometheus.Counter
	logins             prometheus.Counter
	signouts           prometheus.Counter
	postsCreated       prometheus.Counter
	orphanedPosts      prometheus.Counter
	profileResolveFail prometheus.Counter
	httpStatus         *prometheus.CounterVec
	requestLatency     prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bitsconnect_signups_total",
			Help: "サインアップ成功の合計数",
		}),
		logins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bitsconnect_logins_total",
			Help: "ログイン成功の合計数",
		}),
		signouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bitsconnect_signouts_total",
			Help: "ログアウトの合計数",
		}),
		postsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bitsconnect_posts_created_total",
			Help: "作成された投稿の合計数",
		}),
		orphanedPosts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bitsconnect_orphaned_posts_total",
			Help: "投稿者プロフィールを解決できなかった投稿の観測数",
		}),
		profileResolveFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bitsconnect_profile_resolution_failures_total",
			Help: "プロフィール解決失敗の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bitsconnect_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bitsconnect_request_latency_seconds",
			Help:    "HTTPリクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.signups,
		c.logins,
		c.signouts,
		c.postsCreated,
		c.orphanedPosts,
		c.profileResolveFail,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordSignUp はサインアップ成功を記録する。
func (c *Collector) RecordSignUp() {
	c.signups.Inc()
}

// RecordLogin はログイン成功を記録する。
func (c *Collector) RecordLogin() {
	c.logins.Inc()
}

// RecordSignOut はログアウトを記録する。
func (c *Collector) RecordSignOut() {
	c.signouts.Inc()
}

// RecordPostCreated は投稿作成を記録する。
func (c *Collector) RecordPostCreated() {
	c.postsCreated.Inc()
}

// RecordOrphanedPost は投稿者プロフィール欠落の投稿の観測を記録する。
func (c *Collector) RecordOrphanedPost() {
	c.orphanedPosts.Inc()
}

// RecordProfileResolutionFailure はプロフィール解決失敗を記録する。
func (c *Collector) RecordProfileResolutionFailure() {
	c.profileResolveFail.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理のレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
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
