package http

import (
	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/paymentrisk/pkg/metrics"
	"github.com/wyfcoding/paymentrisk/pkg/middleware"
)

// NewRouter 组装 gin 引擎：恢复、日志、指标、CORS，业务路由与 /metrics
func NewRouter(h *RiskHandler, m *metrics.Metrics, metricsPath string, apiMiddleware ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.GinRecoveryMiddleware(),
		middleware.GinLoggingMiddleware(),
		middleware.GinMetricsMiddleware(m),
		middleware.GinCORSMiddleware(),
	)

	if m != nil {
		if metricsPath == "" {
			metricsPath = "/metrics"
		}
		r.GET(metricsPath, gin.WrapH(m.Handler()))
	}
	h.RegisterRoutes(r, apiMiddleware...)
	return r
}
