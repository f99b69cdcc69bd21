package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/wyfcoding/paymentrisk/internal/riskscoring/domain"
	"github.com/wyfcoding/paymentrisk/pkg/logger"
	"github.com/wyfcoding/paymentrisk/pkg/metrics"
)

// UpdateAlertStatusCommand 告警状态流转命令
type UpdateAlertStatusCommand struct {
	AlertID string
	Status  string
	Actor   string
}

// AuditTrail 告警审计记录及链完整性
type AuditTrail struct {
	Entries []*domain.AuditEntry
	Intact  bool
	// 首个断裂位置，完整时为 -1
	BrokenAt int
}

// AlertService 告警查询与状态流转
type AlertService struct {
	repo    domain.Repository
	audit   domain.AuditLog
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewAlertService 创建告警服务
func NewAlertService(repo domain.Repository, audit domain.AuditLog, m *metrics.Metrics, now func() time.Time) *AlertService {
	if now == nil {
		now = time.Now
	}
	return &AlertService{repo: repo, audit: audit, metrics: m, now: now}
}

// GetAlert 按 ID 查询告警
func (s *AlertService) GetAlert(ctx context.Context, id string) (*domain.Alert, error) {
	alert, err := s.repo.GetAlert(ctx, id)
	if err != nil {
		return nil, domain.Persistence("get alert", err)
	}
	if alert == nil {
		return nil, domain.ErrAlertNotFound
	}
	return alert, nil
}

// UpdateStatus 校验流转规则后更新状态，并写入状态变更审计
func (s *AlertService) UpdateStatus(ctx context.Context, cmd UpdateAlertStatusCommand) (*domain.Alert, error) {
	to, ok := domain.ParseAlertStatus(cmd.Status)
	if !ok {
		return nil, domain.NewValidationError("status", "unknown status %q", cmd.Status)
	}

	alert, err := s.GetAlert(ctx, cmd.AlertID)
	if err != nil {
		return nil, err
	}
	from := alert.Status
	if !from.CanTransition(to) {
		return nil, domain.NewValidationError("status", "cannot transition from %s to %s", from, to)
	}

	now := s.now()
	if err := s.repo.UpdateAlertStatus(ctx, alert.ID, from, to, now); err != nil {
		if errors.Is(err, domain.ErrStaleStatus) {
			return nil, err
		}
		return nil, domain.Persistence("update alert status", err)
	}
	alert.Status = to
	alert.UpdatedAt = now

	actor := cmd.Actor
	if actor == "" {
		actor = domain.SystemActor
	}
	entry := &domain.AuditEntry{
		ID:          uuid.NewString(),
		EventType:   domain.AuditAlertStatusChanged,
		Actor:       actor,
		Target:      domain.AlertTarget(alert.ID),
		BeforeState: domain.MustJSON(map[string]string{"status": string(from)}),
		AfterState:  domain.MustJSON(map[string]string{"status": string(to)}),
		Severity:    domain.SeverityInfo,
		Timestamp:   now,
	}
	if s.audit != nil {
		if err := s.audit.Append(ctx, entry); err != nil {
			s.metrics.RecordSideEffectFailure("audit")
			logger.Warn(ctx, "failed to append audit entry", "alert_id", alert.ID, "error", err)
		}
	}

	logger.Info(ctx, "alert status changed", "alert_id", alert.ID, "from", from, "to", to, "actor", actor)
	return alert, nil
}

// AuditTrail 返回告警的审计记录并校验哈希链
func (s *AlertService) AuditTrail(ctx context.Context, alertID string) (*AuditTrail, error) {
	if _, err := s.GetAlert(ctx, alertID); err != nil {
		return nil, err
	}
	entries, err := s.audit.ListByTarget(ctx, domain.AlertTarget(alertID))
	if err != nil {
		return nil, domain.Persistence("list audit entries", err)
	}
	trail := &AuditTrail{Entries: entries, Intact: true, BrokenAt: -1}
	for i, e := range entries {
		if !e.Verify() {
			trail.Intact = false
			trail.BrokenAt = i
			break
		}
	}
	return trail, nil
}
