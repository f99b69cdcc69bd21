package application

import (
	"time"

	"github.com/wyfcoding/paymentrisk/internal/riskscoring/domain"
)

// Composer 按固定顺序叠加各检测器结论：付款节奏、首位数字、历史聚合、预算
type Composer struct {
	location *time.Location
}

// NewComposer 创建评分合成器，location 用于时段规则
func NewComposer(location *time.Location) *Composer {
	if location == nil {
		location = time.UTC
	}
	return &Composer{location: location}
}

// Compose 以分类结果为基础分生成最终评估
func (c *Composer) Compose(req *domain.PaymentRequest, sc *ScoringContext, behavior domain.BehaviorResult, cls domain.Classification, now time.Time) *domain.RiskAssessment {
	a := domain.NewRiskAssessment(cls)

	a.ApplyAll(behavior.Findings)

	if f, ok := domain.CheckBenford(req.Amount); ok {
		a.Apply(f)
	}

	a.ApplyAll(domain.CheckHistory(domain.HistoryInput{
		Amount:           req.Amount,
		SchemeKey:        sc.SchemeKey,
		PriorScores:      sc.PriorScores,
		RecentAlerts:     sc.RecentAlerts,
		RecentCount:      sc.RecentCount,
		Beneficiary:      req.Beneficiary,
		BeneficiaryCount: sc.BeneficiaryCount,
		LocalNow:         now.In(c.location),
	}))

	if f, ok := domain.CheckBudget(sc.Scheme, sc.SchemeSpent, req.Amount); ok {
		a.Apply(f)
	}
	return a
}
