package application

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/wyfcoding/paymentrisk/internal/riskscoring/domain"
	"github.com/wyfcoding/paymentrisk/pkg/logger"
	"github.com/wyfcoding/paymentrisk/pkg/metrics"
)

// CriticalNotifyScore 达到该分数发送高危通知
const CriticalNotifyScore = 90

// AlertIDGenerator 告警 ID 生成端口
type AlertIDGenerator interface {
	NextAlertID(at time.Time) string
}

// Dispatcher 持久化告警与供应商聚合，并触发审计、事件与通知
type Dispatcher struct {
	repo      domain.Repository
	audit     domain.AuditLog
	publisher domain.EventPublisher
	notifier  domain.Notifier
	locator   domain.Locator
	ids       AlertIDGenerator
	runner    *BackgroundRunner
	metrics   *metrics.Metrics
}

// NewDispatcher 创建分发器
func NewDispatcher(
	repo domain.Repository,
	audit domain.AuditLog,
	publisher domain.EventPublisher,
	notifier domain.Notifier,
	locator domain.Locator,
	ids AlertIDGenerator,
	runner *BackgroundRunner,
	m *metrics.Metrics,
) *Dispatcher {
	return &Dispatcher{
		repo:      repo,
		audit:     audit,
		publisher: publisher,
		notifier:  notifier,
		locator:   locator,
		ids:       ids,
		runner:    runner,
		metrics:   m,
	}
}

// BuildAlert 由评估结果生成待持久化的告警
func (d *Dispatcher) BuildAlert(req *domain.PaymentRequest, sc *ScoringContext, a *domain.RiskAssessment, now time.Time) *domain.Alert {
	loc := d.locator.Locate(sc.Vendor, req.District)
	return &domain.Alert{
		ID:                  d.ids.NextAlertID(now),
		SubmissionKey:       req.SubmissionKey,
		Scheme:              sc.SchemeKey,
		Vendor:              sc.Vendor.Name,
		VendorID:            sc.Vendor.ID,
		Amount:              req.Amount,
		Beneficiary:         req.Beneficiary,
		Description:         req.Description,
		District:            loc.District,
		Latitude:            loc.Latitude,
		Longitude:           loc.Longitude,
		RiskScore:           a.Score,
		RiskLevel:           a.Level(),
		Reasons:             a.Reasons,
		IsAnomaly:           a.IsAnomaly(),
		ClassifierAvailable: a.ClassifierAvailable,
		Status:              domain.StatusNew,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// Persist 在同一事务中写入告警并更新供应商聚合。
// 幂等键冲突时原样返回 domain.ErrDuplicateSubmission。
func (d *Dispatcher) Persist(ctx context.Context, alert *domain.Alert, vendor *domain.Vendor) (*domain.Vendor, error) {
	flagged := 0
	if alert.IsAnomaly {
		flagged = 1
	}
	upd := domain.VendorAggregateUpdate{
		VendorID:     vendor.ID,
		AmountDelta:  alert.Amount,
		FlaggedDelta: flagged,
	}

	var updated *domain.Vendor
	err := d.repo.WithTx(ctx, func(ctx context.Context) error {
		if err := d.repo.CreateAlert(ctx, alert); err != nil {
			return err
		}
		avg, _, err := d.repo.AverageRiskByVendor(ctx, vendor.ID)
		if err != nil {
			return err
		}
		updated, err = d.repo.ApplyVendorAggregates(ctx, upd, int(math.Round(avg)))
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateSubmission) {
			return nil, domain.ErrDuplicateSubmission
		}
		return nil, domain.Persistence("persist alert", err)
	}
	return updated, nil
}

// AfterCommit 提交后的旁路动作：审计同步写入但失败被吞掉，事件与通知交给后台执行
func (d *Dispatcher) AfterCommit(ctx context.Context, alert *domain.Alert, before, after *domain.Vendor) {
	d.appendCreatedAudit(ctx, alert, before, after)

	if d.publisher != nil {
		event := alert.Event()
		d.runner.Go(ctx, TaskEvent, alert.ID, func(ctx context.Context) error {
			return d.publisher.Publish(ctx, event)
		})
	}

	if d.notifier != nil && alert.RiskScore >= CriticalNotifyScore {
		snapshot := *alert
		d.runner.Go(ctx, TaskNotification, alert.ID, func(ctx context.Context) error {
			return d.notifier.NotifyCritical(ctx, &snapshot)
		})
	}
}

func (d *Dispatcher) appendCreatedAudit(ctx context.Context, alert *domain.Alert, before, after *domain.Vendor) {
	if d.audit == nil {
		return
	}
	if after == nil {
		after = before
	}
	entry := &domain.AuditEntry{
		ID:          uuid.NewString(),
		EventType:   domain.AuditAlertCreated,
		Actor:       domain.SystemActor,
		Target:      domain.AlertTarget(alert.ID),
		BeforeState: domain.MustJSON(before.Snapshot()),
		AfterState:  domain.MustJSON(after.Snapshot()),
		Metadata: domain.MustJSON(map[string]any{
			"riskScore": alert.RiskScore,
			"riskLevel": alert.RiskLevel,
			"amount":    alert.Amount,
			"vendorId":  alert.VendorID,
			"reasons":   alert.Reasons,
		}),
		Severity:  domain.SeverityForScore(alert.RiskScore),
		Timestamp: alert.CreatedAt,
	}
	if err := d.audit.Append(ctx, entry); err != nil {
		d.metrics.RecordSideEffectFailure("audit")
		logger.Warn(ctx, "failed to append audit entry", "alert_id", alert.ID, "error", err)
	}
}
