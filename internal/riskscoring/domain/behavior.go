package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

const (
	regularIntervalDays   = 30
	quarterlyIntervalDays = 90
	milestoneMinDays      = 7
	milestoneLongGapDays  = 180
)

// BehaviorResult 付款节奏校验结果
type BehaviorResult struct {
	Findings []Finding
	// 距上次付款的天数（向上取整），首付款为 nil
	DaysSinceLast *int
	// 按申报节奏推算的下一次付款日
	ExpectedNextPayment *time.Time
}

// Violated 是否存在违规
func (r BehaviorResult) Violated() bool {
	return len(r.Findings) > 0
}

// DaysBetween 两个时间点之间的整天数，不足一天按一天计
func DaysBetween(a, b time.Time) int {
	d := b.Sub(a)
	if d < 0 {
		d = -d
	}
	return int(math.Ceil(d.Hours() / 24))
}

// CheckPaymentBehavior 校验单笔上限与付款间隔
func CheckPaymentBehavior(v *Vendor, amount decimal.Decimal, lastPayment *time.Time, now time.Time) BehaviorResult {
	var res BehaviorResult

	if v.MaxAmount.Valid && v.MaxAmount.Decimal.IsPositive() && amount.GreaterThan(v.MaxAmount.Decimal) {
		res.Findings = append(res.Findings, Finding{
			Detector: DetectorVendorLimit,
			Points:   30,
			Reason: fmt.Sprintf("Amount ₹%s exceeds vendor max limit of ₹%s",
				formatAmount(amount), formatAmount(v.MaxAmount.Decimal)),
		})
	}

	behavior := ParsePaymentBehavior(string(v.PaymentBehavior))
	res.ExpectedNextPayment = expectedNext(behavior, now)
	if lastPayment == nil {
		return res
	}

	days := DaysBetween(*lastPayment, now)
	res.DaysSinceLast = &days
	tolerance := v.TimingToleranceDays

	switch behavior {
	case BehaviorRegular:
		res.Findings = append(res.Findings, intervalFindings("Payment", days, regularIntervalDays, tolerance, 15)...)
	case BehaviorQuarterly:
		res.Findings = append(res.Findings, intervalFindings("Quarterly payment", days, quarterlyIntervalDays, tolerance, 20)...)
	case BehaviorMilestone:
		if days < milestoneMinDays {
			res.Findings = append(res.Findings, Finding{
				Detector: DetectorBehavior,
				Points:   25,
				Reason:   fmt.Sprintf("Milestone payment too frequent: %d days since last payment (minimum %d days expected)", days, milestoneMinDays),
			})
		}
		if days > milestoneLongGapDays {
			res.Findings = append(res.Findings, Finding{
				Detector: DetectorBehavior,
				Points:   5,
				Reason:   fmt.Sprintf("Very long gap since last milestone payment: %d days (possible new project)", days),
			})
		}
	case BehaviorIrregular:
		// 同日以实际间隔不足 24 小时判定，向上取整的天数在此处不适用
		if elapsed := now.Sub(*lastPayment); elapsed < 24*time.Hour && elapsed > -24*time.Hour {
			res.Findings = append(res.Findings, Finding{
				Detector: DetectorBehavior,
				Points:   20,
				Reason:   "Multiple payments on same day (irregular pattern)",
			})
		} else if days < 3 {
			res.Findings = append(res.Findings, Finding{
				Detector: DetectorBehavior,
				Points:   10,
				Reason:   fmt.Sprintf("Very frequent payments: %d days since last payment", days),
			})
		}
	}
	return res
}

func intervalFindings(label string, days, expected, tolerance, earlyPoints int) []Finding {
	minDays, maxDays := expected-tolerance, expected+tolerance
	switch {
	case days < minDays:
		return []Finding{{
			Detector: DetectorBehavior,
			Points:   earlyPoints,
			Reason:   fmt.Sprintf("%s too early: %d days since last payment (expected %d-%d days)", label, days, minDays, maxDays),
		}}
	case days > maxDays:
		return []Finding{{
			Detector: DetectorBehavior,
			Points:   10,
			Reason:   fmt.Sprintf("%s delayed: %d days since last payment (expected %d-%d days)", label, days, minDays, maxDays),
		}}
	}
	return nil
}

func expectedNext(b PaymentBehavior, now time.Time) *time.Time {
	var t time.Time
	switch b {
	case BehaviorRegular:
		t = now.AddDate(0, 0, regularIntervalDays)
	case BehaviorQuarterly:
		t = now.AddDate(0, 0, quarterlyIntervalDays)
	default:
		return nil
	}
	return &t
}

// formatAmount 千分位格式化金额
func formatAmount(d decimal.Decimal) string {
	if d.IsInteger() {
		return humanize.Comma(d.IntPart())
	}
	f, _ := d.Round(2).Float64()
	return humanize.CommafWithDigits(f, 2)
}
