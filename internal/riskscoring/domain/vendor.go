package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentBehavior 供应商申报的付款节奏
type PaymentBehavior string

const (
	BehaviorRegular   PaymentBehavior = "REGULAR"
	BehaviorQuarterly PaymentBehavior = "QUARTERLY"
	BehaviorMilestone PaymentBehavior = "MILESTONE"
	BehaviorIrregular PaymentBehavior = "IRREGULAR"
)

// ParsePaymentBehavior 未知或为空时按 IRREGULAR 处理
func ParsePaymentBehavior(s string) PaymentBehavior {
	switch b := PaymentBehavior(s); b {
	case BehaviorRegular, BehaviorQuarterly, BehaviorMilestone, BehaviorIrregular:
		return b
	default:
		return BehaviorIrregular
	}
}

// AccountStatus 供应商账户状态
type AccountStatus string

const (
	AccountActive     AccountStatus = "ACTIVE"
	AccountFrozen     AccountStatus = "FROZEN"
	AccountUnderWatch AccountStatus = "UNDER_WATCH"
)

// Vendor 已注册供应商
type Vendor struct {
	ID                  string
	Name                string
	GSTIN               string
	AccountStatus       AccountStatus
	PaymentBehavior     PaymentBehavior
	MaxAmount           decimal.NullDecimal
	TimingToleranceDays int
	TotalVolume         decimal.Decimal
	FlaggedTransactions int
	// 该供应商全部告警的平均风险分
	RiskScore        int
	Latitude         *float64
	Longitude        *float64
	OperatingSchemes []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasCoordinates 是否登记了坐标
func (v *Vendor) HasCoordinates() bool {
	return v.Latitude != nil && v.Longitude != nil
}

// VendorSnapshot 审计用的供应商聚合快照
type VendorSnapshot struct {
	RiskScore           int    `json:"riskScore"`
	TotalVolume         string `json:"totalVolume"`
	FlaggedTransactions int    `json:"flaggedTransactions"`
	AccountStatus       string `json:"accountStatus"`
}

// Snapshot 生成快照
func (v *Vendor) Snapshot() VendorSnapshot {
	return VendorSnapshot{
		RiskScore:           v.RiskScore,
		TotalVolume:         v.TotalVolume.String(),
		FlaggedTransactions: v.FlaggedTransactions,
		AccountStatus:       string(v.AccountStatus),
	}
}

// VendorAggregateUpdate 评分后对供应商聚合字段的增量
type VendorAggregateUpdate struct {
	VendorID     string
	AmountDelta  decimal.Decimal
	FlaggedDelta int
}

// Scheme 政府计划
type Scheme struct {
	ID       string
	Name     string
	Ministry string
	// 预算上限，未设置表示不检查
	BudgetAllocated decimal.NullDecimal
	Status          string
}

// Key 告警中引用该计划的标识
func (s *Scheme) Key() string {
	return s.ID
}
