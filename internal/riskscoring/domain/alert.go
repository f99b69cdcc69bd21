package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RiskLevel 风险等级
type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskMedium   RiskLevel = "Medium"
	RiskHigh     RiskLevel = "High"
	RiskCritical RiskLevel = "Critical"
)

// LevelFor 分数映射到等级（下界包含）
func LevelFor(score int) RiskLevel {
	switch {
	case score >= 80:
		return RiskCritical
	case score >= 60:
		return RiskHigh
	case score >= 40:
		return RiskMedium
	default:
		return RiskLow
	}
}

// AlertStatus 告警处理状态
type AlertStatus string

const (
	StatusNew           AlertStatus = "New"
	StatusInvestigating AlertStatus = "Investigating"
	StatusVerified      AlertStatus = "Verified"
	StatusDismissed     AlertStatus = "Dismissed"
	StatusClosed        AlertStatus = "Closed"
)

var allowedTransitions = map[AlertStatus][]AlertStatus{
	StatusNew:           {StatusInvestigating, StatusDismissed},
	StatusInvestigating: {StatusVerified, StatusDismissed},
	StatusVerified:      {StatusClosed},
	StatusDismissed:     {StatusClosed},
}

// CanTransition 状态流转是否合法
func (s AlertStatus) CanTransition(to AlertStatus) bool {
	for _, next := range allowedTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseAlertStatus 解析状态，非法值返回 false
func ParseAlertStatus(s string) (AlertStatus, bool) {
	switch st := AlertStatus(s); st {
	case StatusNew, StatusInvestigating, StatusVerified, StatusDismissed, StatusClosed:
		return st, true
	}
	return "", false
}

// Alert 一次评分的持久化结果
type Alert struct {
	ID            string
	SubmissionKey string
	// 计划标识：命中登记计划时为计划 ID，否则为原始输入
	Scheme              string
	Vendor              string
	VendorID            string
	Amount              decimal.Decimal
	Beneficiary         string
	Description         string
	District            string
	Latitude            float64
	Longitude           float64
	RiskScore           int
	RiskLevel           RiskLevel
	Reasons             []string
	IsAnomaly           bool
	ClassifierAvailable bool
	Status              AlertStatus
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// AlertEvent 发布到消息主题的告警事件
type AlertEvent struct {
	AlertID   string          `json:"alertId"`
	RiskScore int             `json:"riskScore"`
	RiskLevel RiskLevel       `json:"riskLevel"`
	Amount    decimal.Decimal `json:"amount"`
	Vendor    string          `json:"vendor"`
	Timestamp time.Time       `json:"timestamp"`
}

// Event 由告警生成事件
func (a *Alert) Event() AlertEvent {
	return AlertEvent{
		AlertID:   a.ID,
		RiskScore: a.RiskScore,
		RiskLevel: a.RiskLevel,
		Amount:    a.Amount,
		Vendor:    a.Vendor,
		Timestamp: a.CreatedAt,
	}
}
