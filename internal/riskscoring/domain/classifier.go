package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

const (
	// FallbackBaseScore 分类服务不可用时的基础分
	FallbackBaseScore = 15
	// FallbackHighValueScore 大额交易的降级基础分
	FallbackHighValueScore = 60

	ReasonClassifierUnavailable = "classifier unavailable"
	ReasonHighValue             = "high value transaction above 500,000"
)

// HighValueThreshold 降级评分的大额阈值
var HighValueThreshold = decimal.NewFromInt(500_000)

// ClassificationRequest 发往外部分类服务的特征
type ClassificationRequest struct {
	Amount          decimal.Decimal
	Scheme          string
	Vendor          string
	PaymentBehavior PaymentBehavior
	// 距上次付款天数，首付款为 nil
	DaysSinceLastPayment *int
}

// Classification 分类结果；Available=false 表示使用了本地降级
type Classification struct {
	Score     int
	Reasons   []string
	IsAnomaly bool
	Available bool
}

// Classifier 外部风险分类端口。实现必须在超时或失败时返回降级结果而非错误。
type Classifier interface {
	Classify(ctx context.Context, req ClassificationRequest) Classification
	Ping(ctx context.Context) error
}

// FallbackClassification 本地确定性降级结果
func FallbackClassification(amount decimal.Decimal) Classification {
	if amount.GreaterThan(HighValueThreshold) {
		return Classification{
			Score:   FallbackHighValueScore,
			Reasons: []string{ReasonClassifierUnavailable, ReasonHighValue},
		}
	}
	return Classification{
		Score:   FallbackBaseScore,
		Reasons: []string{ReasonClassifierUnavailable},
	}
}
