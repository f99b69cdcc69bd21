// Package metrics 提供 Prometheus 指标集合与 /metrics 处理器
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "paymentrisk"

// Metrics 指标集合，所有方法允许 nil 接收者
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 按风险等级统计评分数量
	PaymentsScored  *prometheus.CounterVec
	ScoringDuration prometheus.Histogram
	// 幂等重放次数
	Replays prometheus.Counter
	// 外部分类服务降级次数
	ClassifierFallbacks prometheus.Counter
	// 后台任务结果（kind=event/notification, result=ok/failed）
	BackgroundTasks *prometheus.CounterVec
	// 旁路写入失败（审计等）
	SideEffectFailures *prometheus.CounterVec
}

// New 创建指标实例并注册到独立 registry
func New(serviceName string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		PaymentsScored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "payments_scored_total",
			Help:      "Payments scored, by risk tier",
		}, []string{"tier"}),
		ScoringDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "scoring_duration_seconds",
			Help:      "End-to-end scoring pipeline latency",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		Replays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "idempotent_replays_total",
			Help:      "Submissions answered from an existing alert",
		}),
		ClassifierFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "classifier_fallbacks_total",
			Help:      "Scorings that used the local fallback instead of the classifier",
		}),
		BackgroundTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "background_tasks_total",
			Help:      "Background side-effect tasks, by kind and result",
		}, []string{"kind", "result"}),
		SideEffectFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "side_effect_failures_total",
			Help:      "Swallowed failures of advisory side effects",
		}, []string{"kind"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PaymentsScored,
		m.ScoringDuration,
		m.Replays,
		m.ClassifierFallbacks,
		m.BackgroundTasks,
		m.SideEffectFailures,
	)
	return m
}

// Registry 返回底层 registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回 Prometheus 抓取端点
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) RecordHTTPRequest(method, path string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

func (m *Metrics) RecordScored(tier string, d time.Duration) {
	if m == nil {
		return
	}
	m.PaymentsScored.WithLabelValues(tier).Inc()
	m.ScoringDuration.Observe(d.Seconds())
}

func (m *Metrics) RecordReplay() {
	if m == nil {
		return
	}
	m.Replays.Inc()
}

func (m *Metrics) RecordClassifierFallback() {
	if m == nil {
		return
	}
	m.ClassifierFallbacks.Inc()
}

func (m *Metrics) RecordBackgroundTask(kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.BackgroundTasks.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) RecordSideEffectFailure(kind string) {
	if m == nil {
		return
	}
	m.SideEffectFailures.WithLabelValues(kind).Inc()
}
