package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RiskTrend 风险趋势
type RiskTrend string

const (
	TrendIncreasing RiskTrend = "increasing"
	TrendDecreasing RiskTrend = "decreasing"
	TrendStable     RiskTrend = "stable"
)

const (
	profileFlaggedScore   = 70
	trendWindow           = 10
	trendDelta            = 10.0
	roundAmountMin        = 10_000
	roundAmountPatternMin = 3
	profileRecentLimit    = 5
)

// VendorRiskProfile 供应商风险画像
type VendorRiskProfile struct {
	Vendor              *Vendor         `json:"-"`
	TotalTransactions   int             `json:"totalTransactions"`
	TotalVolume         decimal.Decimal `json:"totalVolume"`
	AverageRiskScore    float64         `json:"averageRiskScore"`
	FlaggedTransactions int             `json:"flaggedTransactions"`
	RiskTrend           RiskTrend       `json:"riskTrend"`
	SuspiciousPatterns  []string        `json:"suspiciousPatterns"`
	Benford             BenfordReport   `json:"benford"`
	RecentAlerts        []*Alert        `json:"-"`
}

// BuildVendorRiskProfile 基于供应商告警（按时间倒序）生成画像
func BuildVendorRiskProfile(v *Vendor, alerts []*Alert, now time.Time) *VendorRiskProfile {
	p := &VendorRiskProfile{
		Vendor:             v,
		TotalTransactions:  len(alerts),
		TotalVolume:        decimal.Zero,
		RiskTrend:          TrendStable,
		SuspiciousPatterns: []string{},
	}

	amounts := make([]decimal.Decimal, 0, len(alerts))
	scoreSum, roundCount, last24h := 0, 0, 0
	threshold := decimal.NewFromInt(roundAmountMin)
	thousand := decimal.NewFromInt(1000)
	for _, a := range alerts {
		amounts = append(amounts, a.Amount)
		p.TotalVolume = p.TotalVolume.Add(a.Amount)
		scoreSum += a.RiskScore
		if a.RiskScore > profileFlaggedScore {
			p.FlaggedTransactions++
		}
		if a.Amount.GreaterThan(threshold) && a.Amount.Mod(thousand).IsZero() {
			roundCount++
		}
		if now.Sub(a.CreatedAt) <= FrequencyWindow {
			last24h++
		}
	}
	if len(alerts) > 0 {
		p.AverageRiskScore = float64(scoreSum) / float64(len(alerts))
	}
	p.RiskTrend = trendOf(alerts)

	if roundCount > roundAmountPatternMin {
		p.SuspiciousPatterns = append(p.SuspiciousPatterns,
			fmt.Sprintf("Frequent round-number amounts (%d transactions)", roundCount))
	}
	if last24h >= frequencyThreshold {
		p.SuspiciousPatterns = append(p.SuspiciousPatterns,
			fmt.Sprintf("High transaction frequency (%d in last 24 hours)", last24h))
	}
	if p.AverageRiskScore > vendorAvgThreshold {
		p.SuspiciousPatterns = append(p.SuspiciousPatterns,
			fmt.Sprintf("Consistently high risk scores (average %.1f)", p.AverageRiskScore))
	}

	p.Benford = AnalyzeAmounts(amounts)
	if !p.Benford.Compliant {
		p.SuspiciousPatterns = append(p.SuspiciousPatterns,
			fmt.Sprintf("Leading-digit distribution deviates from Benford's Law (chi-square %.2f)", p.Benford.ChiSquare))
	}

	recent := alerts
	if len(recent) > profileRecentLimit {
		recent = recent[:profileRecentLimit]
	}
	p.RecentAlerts = recent
	return p
}

// trendOf 比较最近 10 笔与之前 10 笔的平均分
func trendOf(alerts []*Alert) RiskTrend {
	if len(alerts) <= trendWindow {
		return TrendStable
	}
	recent := alerts[:trendWindow]
	end := 2 * trendWindow
	if end > len(alerts) {
		end = len(alerts)
	}
	older := alerts[trendWindow:end]

	diff := meanScore(recent) - meanScore(older)
	switch {
	case diff > trendDelta:
		return TrendIncreasing
	case diff < -trendDelta:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

func meanScore(alerts []*Alert) float64 {
	if len(alerts) == 0 {
		return 0
	}
	sum := 0
	for _, a := range alerts {
		sum += a.RiskScore
	}
	return float64(sum) / float64(len(alerts))
}
