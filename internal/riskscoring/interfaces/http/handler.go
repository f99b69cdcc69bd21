// Package http 付款风险评分的 gin 接口层
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/paymentrisk/internal/riskscoring/application"
	"github.com/wyfcoding/paymentrisk/internal/riskscoring/domain"
	"github.com/wyfcoding/paymentrisk/pkg/logger"
	"github.com/wyfcoding/paymentrisk/pkg/response"
)

// 机器可读错误码
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeVendorNotRegistered = "VENDOR_NOT_REGISTERED"
	CodePersistence         = "PERSISTENCE_FAILURE"
	CodeNotFound            = "NOT_FOUND"
	CodeConflict            = "STATUS_CONFLICT"
	CodeNotReady            = "NOT_READY"
	CodeInternal            = "INTERNAL_ERROR"
)

// ReadinessCheck 就绪探针的单项检查
type ReadinessCheck func(ctx context.Context) error

// RiskHandler 处理付款评分、告警与供应商画像请求
type RiskHandler struct {
	scoring *application.ScoringService
	alerts  *application.AlertService
	vendors *application.VendorQuery
	checks  map[string]ReadinessCheck
}

// NewRiskHandler 创建 HTTP 处理器
func NewRiskHandler(
	scoring *application.ScoringService,
	alerts *application.AlertService,
	vendors *application.VendorQuery,
	checks map[string]ReadinessCheck,
) *RiskHandler {
	RegisterValidators()
	return &RiskHandler{scoring: scoring, alerts: alerts, vendors: vendors, checks: checks}
}

// RegisterRoutes 注册业务路由与探针；apiMiddleware 只作用于 /api/v1
func (h *RiskHandler) RegisterRoutes(r gin.IRouter, apiMiddleware ...gin.HandlerFunc) {
	api := r.Group("/api/v1", apiMiddleware...)
	{
		api.POST("/payments", h.SubmitPayment)
		api.GET("/alerts/:id", h.GetAlert)
		api.PUT("/alerts/:id/status", h.UpdateAlertStatus)
		api.GET("/alerts/:id/audit", h.GetAuditTrail)
		api.GET("/vendors/:id/risk-profile", h.GetVendorRiskProfile)
	}

	sys := r.Group("/sys")
	{
		sys.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "UP"}) })
		sys.GET("/ready", h.Ready)
	}
}

// SubmitPayment 提交付款并返回评分告警
func (h *RiskHandler) SubmitPayment(c *gin.Context) {
	var req SubmitPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), CodeValidation)
		return
	}

	res, err := h.scoring.SubmitPayment(c.Request.Context(), req.toDomain())
	if err != nil {
		h.writeError(c, "submit payment", err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	response.SuccessWithStatus(c, status, toSubmitResponse(res))
}

// GetAlert 查询单个告警
func (h *RiskHandler) GetAlert(c *gin.Context) {
	alert, err := h.alerts.GetAlert(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, "get alert", err)
		return
	}
	response.Success(c, toAlertDTO(alert))
}

// UpdateAlertStatus 告警状态流转
func (h *RiskHandler) UpdateAlertStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), CodeValidation)
		return
	}

	alert, err := h.alerts.UpdateStatus(c.Request.Context(), application.UpdateAlertStatusCommand{
		AlertID: c.Param("id"),
		Status:  req.Status,
		Actor:   req.Actor,
	})
	if err != nil {
		h.writeError(c, "update alert status", err)
		return
	}
	response.Success(c, toAlertDTO(alert))
}

// GetAuditTrail 查询告警审计轨迹
func (h *RiskHandler) GetAuditTrail(c *gin.Context) {
	trail, err := h.alerts.AuditTrail(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, "get audit trail", err)
		return
	}
	response.Success(c, toAuditTrailResponse(trail))
}

// GetVendorRiskProfile 查询供应商风险画像
func (h *RiskHandler) GetVendorRiskProfile(c *gin.Context) {
	profile, err := h.vendors.RiskProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrVendorNotRegistered) {
			response.ErrorWithStatus(c, http.StatusNotFound, err.Error(), CodeNotFound)
			return
		}
		h.writeError(c, "get vendor risk profile", err)
		return
	}
	response.Success(c, toProfileResponse(profile))
}

// Ready 逐项执行就绪检查
func (h *RiskHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"status": "NOT_READY", "error": CodeNotReady, "checks": failed})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "READY"})
}

// writeError 统一错误到状态码的映射
func (h *RiskHandler) writeError(c *gin.Context, op string, err error) {
	var ve *domain.ValidationError
	var pe *domain.PersistenceError
	switch {
	case errors.As(err, &ve):
		response.ErrorWithStatus(c, http.StatusBadRequest, ve.Error(), CodeValidation)
	case errors.Is(err, domain.ErrVendorNotRegistered):
		response.ErrorWithStatus(c, http.StatusUnprocessableEntity, err.Error(), CodeVendorNotRegistered)
	case errors.Is(err, domain.ErrAlertNotFound):
		response.ErrorWithStatus(c, http.StatusNotFound, err.Error(), CodeNotFound)
	case errors.Is(err, domain.ErrStaleStatus):
		response.ErrorWithStatus(c, http.StatusConflict, err.Error(), CodeConflict)
	case errors.As(err, &pe):
		logger.Error(c.Request.Context(), "Request failed on persistence", "op", op, "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, "persistence failure", CodePersistence)
	default:
		logger.Error(c.Request.Context(), "Request failed", "op", op, "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, "internal error", CodeInternal)
	}
}
