package application

import (
	"context"
	"time"

	"github.com/wyfcoding/paymentrisk/internal/riskscoring/domain"
)

// VendorQuery 供应商风险画像查询
type VendorQuery struct {
	repo domain.Repository
	now  func() time.Time
}

// NewVendorQuery 创建供应商查询
func NewVendorQuery(repo domain.Repository, now func() time.Time) *VendorQuery {
	if now == nil {
		now = time.Now
	}
	return &VendorQuery{repo: repo, now: now}
}

// RiskProfile 按 ID 或名称生成供应商风险画像
func (q *VendorQuery) RiskProfile(ctx context.Context, idOrName string) (*domain.VendorRiskProfile, error) {
	vendor, err := q.repo.FindVendor(ctx, idOrName)
	if err != nil {
		return nil, domain.Persistence("find vendor", err)
	}
	if vendor == nil {
		return nil, domain.ErrVendorNotRegistered
	}
	alerts, err := q.repo.ListAlertsByVendor(ctx, vendor.ID)
	if err != nil {
		return nil, domain.Persistence("list vendor alerts", err)
	}
	return domain.BuildVendorRiskProfile(vendor, alerts, q.now()), nil
}
