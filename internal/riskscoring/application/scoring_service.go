package application

import (
	"context"
	"errors"
	"time"

	"github.com/wyfcoding/paymentrisk/internal/riskscoring/domain"
	"github.com/wyfcoding/paymentrisk/pkg/logger"
	"github.com/wyfcoding/paymentrisk/pkg/metrics"
)

// SubmitResult 提交结果；Replayed 表示命中幂等键，返回的是已有告警
type SubmitResult struct {
	Alert     *domain.Alert
	IsAnomaly bool
	Replayed  bool
}

// ScoringDeps 评分服务依赖
type ScoringDeps struct {
	Repo       domain.Repository
	Audit      domain.AuditLog
	Classifier domain.Classifier
	Publisher  domain.EventPublisher
	Notifier   domain.Notifier
	Locator    domain.Locator
	// 可选，设置后按供应商串行化评分
	Locker  domain.VendorLocker
	IDs     AlertIDGenerator
	Runner  *BackgroundRunner
	Metrics *metrics.Metrics
	// 时段规则使用的时区，默认 UTC
	Location *time.Location
	// 测试可注入时钟
	Now func() time.Time
}

// ScoringService 付款风险评分流水线
type ScoringService struct {
	repo       domain.Repository
	classifier domain.Classifier
	locker     domain.VendorLocker
	loader     *ContextLoader
	composer   *Composer
	dispatcher *Dispatcher
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewScoringService 创建评分服务
func NewScoringService(deps ScoringDeps) *ScoringService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	runner := deps.Runner
	if runner == nil {
		runner = NewBackgroundRunner(0, deps.Metrics, nil)
	}
	return &ScoringService{
		repo:       deps.Repo,
		classifier: deps.Classifier,
		locker:     deps.Locker,
		loader:     NewContextLoader(deps.Repo),
		composer:   NewComposer(deps.Location),
		dispatcher: NewDispatcher(deps.Repo, deps.Audit, deps.Publisher, deps.Notifier, deps.Locator, deps.IDs, runner, deps.Metrics),
		metrics:    deps.Metrics,
		now:        now,
	}
}

// SubmitPayment 校验、评分并持久化一笔付款申请。
// 返回的错误为 *domain.ValidationError、domain.ErrVendorNotRegistered 或 *domain.PersistenceError。
func (s *ScoringService) SubmitPayment(ctx context.Context, req domain.PaymentRequest) (*SubmitResult, error) {
	start := time.Now()
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if req.SubmissionKey != "" {
		if res, err := s.replay(ctx, req.SubmissionKey); res != nil || err != nil {
			return res, err
		}
	}

	vendor, err := s.loader.ResolveVendor(ctx, req.Vendor)
	if err != nil {
		return nil, err
	}

	if s.locker != nil {
		release, err := s.locker.Lock(ctx, vendor.ID)
		if err != nil {
			return nil, domain.Persistence("acquire vendor lock", err)
		}
		defer release()
	}

	now := s.now()
	sc, err := s.loader.Load(ctx, vendor, &req, now)
	if err != nil {
		return nil, err
	}

	schemeName := req.Scheme
	if sc.Scheme != nil {
		schemeName = sc.Scheme.Name
	}
	behavior := domain.CheckPaymentBehavior(vendor, req.Amount, sc.LastPayment, now)
	cls := s.classifier.Classify(ctx, domain.ClassificationRequest{
		Amount:               req.Amount,
		Scheme:               schemeName,
		Vendor:               vendor.Name,
		PaymentBehavior:      domain.ParsePaymentBehavior(string(vendor.PaymentBehavior)),
		DaysSinceLastPayment: behavior.DaysSinceLast,
	})
	if !cls.Available {
		s.metrics.RecordClassifierFallback()
	}

	assessment := s.composer.Compose(&req, sc, behavior, cls, now)
	alert := s.dispatcher.BuildAlert(&req, sc, assessment, now)

	updated, err := s.dispatcher.Persist(ctx, alert, vendor)
	if errors.Is(err, domain.ErrDuplicateSubmission) {
		// 并发请求抢先写入了同一幂等键
		logger.Info(ctx, "submission key claimed concurrently, replaying winner", "submission_key", req.SubmissionKey)
		res, rerr := s.replay(ctx, req.SubmissionKey)
		if rerr != nil {
			return nil, rerr
		}
		if res == nil {
			return nil, domain.Persistence("reload duplicate submission", err)
		}
		return res, nil
	}
	if err != nil {
		return nil, err
	}

	s.dispatcher.AfterCommit(ctx, alert, vendor, updated)

	s.metrics.RecordScored(string(alert.RiskLevel), time.Since(start))
	logger.Info(ctx, "payment scored",
		"alert_id", alert.ID,
		"vendor_id", vendor.ID,
		"risk_score", alert.RiskScore,
		"risk_level", alert.RiskLevel,
		"is_anomaly", alert.IsAnomaly,
		"classifier_available", alert.ClassifierAvailable,
	)
	return &SubmitResult{Alert: alert, IsAnomaly: alert.IsAnomaly}, nil
}

func (s *ScoringService) replay(ctx context.Context, key string) (*SubmitResult, error) {
	existing, err := s.repo.FindAlertBySubmissionKey(ctx, key)
	if err != nil {
		return nil, domain.Persistence("find alert by submission key", err)
	}
	if existing == nil {
		return nil, nil
	}
	s.metrics.RecordReplay()
	return &SubmitResult{Alert: existing, IsAnomaly: existing.IsAnomaly, Replayed: true}, nil
}

// Ready 检查分类服务是否可达，用于就绪探针
func (s *ScoringService) Ready(ctx context.Context) error {
	return s.classifier.Ping(ctx)
}
