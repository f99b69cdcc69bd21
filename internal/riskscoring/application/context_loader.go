package application

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/wyfcoding/paymentrisk/internal/riskscoring/domain"
)

// ScoringContext 评分所需的全部只读数据，加载完成后各检测器只读取它
type ScoringContext struct {
	Vendor *domain.Vendor
	// 登记的计划，未登记时为 nil
	Scheme *domain.Scheme
	// 告警中记录的计划标识
	SchemeKey   string
	SchemeSpent decimal.Decimal

	LastPayment      *time.Time
	PriorScores      []int
	RecentAlerts     []*domain.Alert
	RecentCount      int64
	BeneficiaryCount int64
}

// ContextLoader 解析供应商并并发读取历史数据
type ContextLoader struct {
	repo domain.Repository
}

// NewContextLoader 创建上下文加载器
func NewContextLoader(repo domain.Repository) *ContextLoader {
	return &ContextLoader{repo: repo}
}

// ResolveVendor 先按 ID 再按名称查找供应商
func (l *ContextLoader) ResolveVendor(ctx context.Context, idOrName string) (*domain.Vendor, error) {
	v, err := l.repo.FindVendor(ctx, idOrName)
	if err != nil {
		return nil, domain.Persistence("find vendor", err)
	}
	if v == nil {
		return nil, domain.ErrVendorNotRegistered
	}
	return v, nil
}

// Load 并发执行全部历史读取，任一失败即整体失败
func (l *ContextLoader) Load(ctx context.Context, vendor *domain.Vendor, req *domain.PaymentRequest, now time.Time) (*ScoringContext, error) {
	sc := &ScoringContext{Vendor: vendor, SchemeKey: req.Scheme, SchemeSpent: decimal.Zero}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		latest, err := l.repo.LatestAlertByVendor(gctx, vendor.ID)
		if err != nil {
			return domain.Persistence("load latest alert", err)
		}
		if latest != nil {
			ts := latest.CreatedAt
			sc.LastPayment = &ts
		}
		return nil
	})

	g.Go(func() error {
		history, err := l.repo.ListAlertsByVendor(gctx, vendor.ID)
		if err != nil {
			return domain.Persistence("load vendor history", err)
		}
		scores := make([]int, 0, len(history))
		for _, a := range history {
			scores = append(scores, a.RiskScore)
		}
		sc.PriorScores = scores
		return nil
	})

	since := now.Add(-domain.FrequencyWindow)
	g.Go(func() error {
		recent, err := l.repo.ListAlertsByVendorSince(gctx, vendor.ID, since)
		if err != nil {
			return domain.Persistence("load recent alerts", err)
		}
		sc.RecentAlerts = recent
		return nil
	})
	g.Go(func() error {
		n, err := l.repo.CountAlertsByVendorSince(gctx, vendor.ID, since)
		if err != nil {
			return domain.Persistence("count recent alerts", err)
		}
		sc.RecentCount = n
		return nil
	})

	g.Go(func() error {
		scheme, err := l.repo.FindScheme(gctx, req.Scheme)
		if err != nil {
			return domain.Persistence("find scheme", err)
		}
		if scheme == nil {
			return nil
		}
		spent, err := l.repo.SumAmountByScheme(gctx, scheme.Key())
		if err != nil {
			return domain.Persistence("sum scheme spend", err)
		}
		sc.Scheme = scheme
		sc.SchemeKey = scheme.Key()
		sc.SchemeSpent = spent
		return nil
	})

	if req.Beneficiary != "" {
		g.Go(func() error {
			n, err := l.repo.CountAlertsByBeneficiarySince(gctx, req.Beneficiary, now.Add(-domain.BeneficiaryWindow))
			if err != nil {
				return domain.Persistence("count beneficiary payments", err)
			}
			sc.BeneficiaryCount = n
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sc, nil
}
