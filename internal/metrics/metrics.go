// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 認証サービスとレジャーサービスから利用する。
type MetricsCollector interface {
	RecordLoginSuccess()
	RecordLoginFailure()
	RecordAllocation(shares int64)
	RecordInsufficientSupply()
	RecordAllocationConflict()
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginSuccess       prometheus.Counter
	loginFail          prometheus.Counter
	sharesAllocated    prometheus.Counter
	allocations        prometheus.Counter
	insufficientSupply prometheus.Counter
	allocationConflict prometheus.Counter
	httpStatus         *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fastcapital_login_success_total",
			Help: "ログイン成功の合計数",
		}),
		loginFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fastcapital_login_fail_total",
			Help: "ログイン失敗の合計数",
		}),
		sharesAllocated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fastcapital_shares_allocated_total",
			Help: "引き当てられた株式数の合計",
		}),
		allocations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fastcapital_allocations_total",
			Help: "成功した購入引き当ての合計数",
		}),
		insufficientSupply: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fastcapital_insufficient_supply_total",
			Help: "残数不足で拒否された購入の合計数",
		}),
		allocationConflict: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fastcapital_allocation_conflict_total",
			Help: "直列化失敗によるリトライの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fastcapital_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.loginSuccess,
		c.loginFail,
		c.sharesAllocated,
		c.allocations,
		c.insufficientSupply,
		c.allocationConflict,
		c.httpStatus,
	)

	return c
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess() {
	c.loginSuccess.Inc()
}

// RecordLoginFailure はログイン失敗を記録する。
func (c *Collector) RecordLoginFailure() {
	c.loginFail.Inc()
}

// RecordAllocation は成功した購入引き当てを記録する。
func (c *Collector) RecordAllocation(shares int64) {
	c.allocations.Inc()
	c.sharesAllocated.Add(float64(shares))
}

// RecordInsufficientSupply は残数不足による拒否を記録する。
func (c *Collector) RecordInsufficientSupply() {
	c.insufficientSupply.Inc()
}

// RecordAllocationConflict は直列化失敗によるリトライを記録する。
func (c *Collector) RecordAllocationConflict() {
	c.allocationConflict.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
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
