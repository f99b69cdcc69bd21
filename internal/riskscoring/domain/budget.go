package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CheckBudget 计划累计支出加本笔超过预算上限时加 50 分
func CheckBudget(s *Scheme, spent, amount decimal.Decimal) (Finding, bool) {
	if s == nil || !s.BudgetAllocated.Valid || !s.BudgetAllocated.Decimal.IsPositive() {
		return Finding{}, false
	}
	total := spent.Add(amount)
	if !total.GreaterThan(s.BudgetAllocated.Decimal) {
		return Finding{}, false
	}
	return Finding{
		Detector: DetectorBudget,
		Points:   50,
		Reason: fmt.Sprintf("Scheme budget exceeded: %s > %s",
			formatAmount(total), formatAmount(s.BudgetAllocated.Decimal)),
	}, true
}
