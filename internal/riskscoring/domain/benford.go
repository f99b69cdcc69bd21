package domain

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// BenfordExpected 首位数字 1-9 的期望频率
var BenfordExpected = [10]float64{
	0,
	0.301, 0.176, 0.125, 0.097, 0.079,
	0.067, 0.058, 0.051, 0.046,
}

const (
	// benfordMinAmount 小于该金额不做单笔检查
	benfordMinAmount = 100
	// benfordMinSamples 批量分析所需最少样本
	benfordMinSamples = 10
	// BenfordChiSquareCritical 8 自由度、95% 置信度的卡方临界值
	BenfordChiSquareCritical = 15.51
	benfordDeviationLimit    = 0.5
)

// LeadingDigit 金额整数部分的首位数字，无效时返回 0
func LeadingDigit(amount decimal.Decimal) int {
	s := amount.Abs().Floor().String()
	if s == "" || s[0] < '1' || s[0] > '9' {
		return 0
	}
	return int(s[0] - '0')
}

// CheckBenford 单笔检查：金额不小于 100 且首位为 7-9 时加 10 分
func CheckBenford(amount decimal.Decimal) (Finding, bool) {
	if amount.LessThan(decimal.NewFromInt(benfordMinAmount)) {
		return Finding{}, false
	}
	digit := LeadingDigit(amount)
	if digit < 7 {
		return Finding{}, false
	}
	return Finding{
		Detector: DetectorBenford,
		Points:   10,
		Reason:   fmt.Sprintf("Amount starts with %d (Benford's Law: unlikely first digit)", digit),
	}, true
}

// BenfordReport 批量首位数字分布分析
type BenfordReport struct {
	SampleSize       int        `json:"sampleSize"`
	Compliant        bool       `json:"compliant"`
	ChiSquare        float64    `json:"chiSquare"`
	SuspiciousDigits []int      `json:"suspiciousDigits"`
	Observed         [9]int     `json:"observed"`
	Expected         [9]float64 `json:"expected"`
}

// AnalyzeAmounts 对不少于 10 个金额计算卡方统计量；样本不足视为合规
func AnalyzeAmounts(amounts []decimal.Decimal) BenfordReport {
	report := BenfordReport{SampleSize: len(amounts), Compliant: true, SuspiciousDigits: []int{}}
	if len(amounts) < benfordMinSamples {
		return report
	}

	for _, a := range amounts {
		if d := LeadingDigit(a); d > 0 {
			report.Observed[d-1]++
		}
	}

	n := float64(len(amounts))
	for digit := 1; digit <= 9; digit++ {
		observed := float64(report.Observed[digit-1])
		expected := n * BenfordExpected[digit]
		report.Expected[digit-1] = expected
		report.ChiSquare += math.Pow(observed-expected, 2) / expected
		if math.Abs(observed-expected)/expected > benfordDeviationLimit {
			report.SuspiciousDigits = append(report.SuspiciousDigits, digit)
		}
	}
	report.Compliant = report.ChiSquare < BenfordChiSquareCritical
	return report
}
