package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	vendorAvgMinAlerts    = 3
	vendorAvgThreshold    = 60.0
	frequencyThreshold    = 5
	beneficiaryThreshold  = 5
	businessHourStart     = 6
	businessHourEnd       = 22
	duplicateTolerancePct = 5
)

const (
	// FrequencyWindow 频率与重复检测的时间窗
	FrequencyWindow = 24 * time.Hour
	// BeneficiaryWindow 受益人集中度的时间窗
	BeneficiaryWindow = 30 * 24 * time.Hour
)

// HistoryInput 历史聚合检测的输入，全部来自上下文加载阶段
type HistoryInput struct {
	Amount    decimal.Decimal
	SchemeKey string
	// 供应商全部历史告警分数
	PriorScores []int
	// 供应商最近 24 小时的告警
	RecentAlerts []*Alert
	// 供应商最近 24 小时付款笔数
	RecentCount int64
	Beneficiary string
	// 受益人最近 30 天收款笔数
	BeneficiaryCount int64
	// 已换算到业务时区的当前时间
	LocalNow time.Time
}

// CheckHistory 依次执行供应商均分、频率、重复、受益人集中度与时段检测
func CheckHistory(in HistoryInput) []Finding {
	var findings []Finding

	if len(in.PriorScores) >= vendorAvgMinAlerts {
		sum := 0
		for _, s := range in.PriorScores {
			sum += s
		}
		avg := float64(sum) / float64(len(in.PriorScores))
		if avg > vendorAvgThreshold {
			findings = append(findings, Finding{
				Detector: DetectorVendorAvg,
				Points:   20,
				Reason:   fmt.Sprintf("Vendor historical average risk %.1f exceeds %.0f across %d alerts", avg, vendorAvgThreshold, len(in.PriorScores)),
			})
		}
	}

	if in.RecentCount >= frequencyThreshold {
		findings = append(findings, Finding{
			Detector: DetectorFrequency,
			Points:   25,
			Reason:   fmt.Sprintf("High transaction frequency: %d payments to vendor in the last 24 hours", in.RecentCount),
		})
	}

	if dup := findDuplicate(in.RecentAlerts, in.SchemeKey, in.Amount); dup != nil {
		findings = append(findings, Finding{
			Detector: DetectorDuplicate,
			Points:   40,
			Reason:   fmt.Sprintf("Possible duplicate of alert %s: same vendor and scheme, amount ₹%s within %d%% in the last 24 hours", dup.ID, formatAmount(dup.Amount), duplicateTolerancePct),
		})
	}

	if in.Beneficiary != "" && in.BeneficiaryCount >= beneficiaryThreshold {
		findings = append(findings, Finding{
			Detector: DetectorBeneficiary,
			Points:   20,
			Reason:   fmt.Sprintf("Beneficiary %q received %d payments in the last 30 days", in.Beneficiary, in.BeneficiaryCount),
		})
	}

	findings = append(findings, temporalFindings(in.LocalNow)...)
	return findings
}

// findDuplicate 同计划且金额在 ±5% 以内的最近告警
func findDuplicate(recent []*Alert, schemeKey string, amount decimal.Decimal) *Alert {
	tolerance := amount.Mul(decimal.NewFromInt(duplicateTolerancePct)).Div(decimal.NewFromInt(100))
	low, high := amount.Sub(tolerance), amount.Add(tolerance)
	for _, a := range recent {
		if a.Scheme != schemeKey {
			continue
		}
		if a.Amount.GreaterThanOrEqual(low) && a.Amount.LessThanOrEqual(high) {
			return a
		}
	}
	return nil
}

func temporalFindings(local time.Time) []Finding {
	var findings []Finding
	if h := local.Hour(); h < businessHourStart || h >= businessHourEnd {
		findings = append(findings, Finding{
			Detector: DetectorTimeOfDay,
			Points:   15,
			Reason:   fmt.Sprintf("Transaction outside business hours (%s local time)", local.Format("15:04")),
		})
	}
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		findings = append(findings, Finding{
			Detector: DetectorWeekend,
			Points:   10,
			Reason:   fmt.Sprintf("Transaction on a weekend (%s)", wd),
		})
	}
	return findings
}
