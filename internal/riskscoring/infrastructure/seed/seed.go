// Package seed 预置计划与供应商数据，内存模式启动与 riskctl seed 共用
package seed

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/paymentrisk/internal/riskscoring/domain"
	"github.com/wyfcoding/paymentrisk/pkg/logger"
)

// Result 本次写入的数量，已存在的记录不计
type Result struct {
	Schemes int
	Vendors int
}

func budget(v int64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromInt(v))
}

// Schemes 默认计划
func Schemes() []*domain.Scheme {
	return []*domain.Scheme{
		{ID: "SCH-001", Name: "Building and Construction Authority", Ministry: "National Development", BudgetAllocated: budget(500_000_000), Status: "ACTIVE"},
		{ID: "SCH-002", Name: "Civil Aviation Authority of Singapore", Ministry: "Transport", BudgetAllocated: budget(800_000_000), Status: "ACTIVE"},
		{ID: "SCH-003", Name: "Ministry of Culture, Community and Youth", Ministry: "Culture", BudgetAllocated: budget(400_000_000), Status: "ACTIVE"},
		{ID: "SCH-004", Name: "Agri-food and Veterinary Authority", Ministry: "National Development", BudgetAllocated: budget(300_000_000), Status: "ACTIVE"},
	}
}

// Vendors 默认供应商；未申报付款节奏的按 IRREGULAR 处理
func Vendors() []*domain.Vendor {
	return []*domain.Vendor{
		{ID: "VEN-991", Name: "Agro Tech Supplies", GSTIN: "09AAACA1234A1Z5", RiskScore: 12, TotalVolume: decimal.NewFromInt(8_500_000), AccountStatus: domain.AccountActive, PaymentBehavior: domain.BehaviorIrregular},
		{ID: "VEN-882", Name: "Rural Infra Builders", GSTIN: "09BBBCB5678B1Z2", RiskScore: 88, TotalVolume: decimal.NewFromInt(12_000_000), FlaggedTransactions: 14, AccountStatus: domain.AccountUnderWatch, PaymentBehavior: domain.BehaviorIrregular},
		{ID: "VEN-773", Name: "Direct Beneficiary Transfer", GSTIN: "NA", TotalVolume: decimal.NewFromInt(500_000_000), FlaggedTransactions: 2, AccountStatus: domain.AccountActive, PaymentBehavior: domain.BehaviorIrregular},
		{ID: "VEN-664", Name: "MediCorp Supplies", GSTIN: "09CCCDC9876C1Z3", RiskScore: 45, TotalVolume: decimal.NewFromInt(4_500_000), FlaggedTransactions: 1, AccountStatus: domain.AccountActive, PaymentBehavior: domain.BehaviorIrregular},
	}
}

// Apply 写入缺失的计划与供应商，已存在的保持不变
func Apply(ctx context.Context, repo domain.Repository) (Result, error) {
	var res Result
	for _, s := range Schemes() {
		existing, err := repo.FindScheme(ctx, s.ID)
		if err != nil {
			return res, fmt.Errorf("find scheme %s: %w", s.ID, err)
		}
		if existing != nil {
			continue
		}
		if err := repo.SaveScheme(ctx, s); err != nil {
			return res, fmt.Errorf("save scheme %s: %w", s.ID, err)
		}
		res.Schemes++
	}
	for _, v := range Vendors() {
		existing, err := repo.FindVendor(ctx, v.ID)
		if err != nil {
			return res, fmt.Errorf("find vendor %s: %w", v.ID, err)
		}
		if existing != nil {
			continue
		}
		if err := repo.SaveVendor(ctx, v); err != nil {
			return res, fmt.Errorf("save vendor %s: %w", v.ID, err)
		}
		res.Vendors++
	}
	logger.Info(ctx, "seed data applied", "schemes", res.Schemes, "vendors", res.Vendors)
	return res, nil
}
