package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Repository 告警、供应商与计划的存储端口。
// 查询类方法未命中时返回 (nil, nil)。
type Repository interface {
	// WithTx 在同一事务中执行 fn，fn 内的仓储调用共享该事务
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	FindAlertBySubmissionKey(ctx context.Context, key string) (*Alert, error)
	GetAlert(ctx context.Context, id string) (*Alert, error)
	LatestAlertByVendor(ctx context.Context, vendorID string) (*Alert, error)
	// ListAlertsByVendor 按创建时间倒序
	ListAlertsByVendor(ctx context.Context, vendorID string) ([]*Alert, error)
	ListAlertsByVendorSince(ctx context.Context, vendorID string, since time.Time) ([]*Alert, error)
	CountAlertsByVendorSince(ctx context.Context, vendorID string, since time.Time) (int64, error)
	CountAlertsByBeneficiarySince(ctx context.Context, beneficiary string, since time.Time) (int64, error)
	SumAmountByScheme(ctx context.Context, schemeKey string) (decimal.Decimal, error)
	// AverageRiskByVendor 供应商全部告警的平均分与数量
	AverageRiskByVendor(ctx context.Context, vendorID string) (float64, int64, error)

	// CreateAlert 幂等键冲突时返回 ErrDuplicateSubmission
	CreateAlert(ctx context.Context, alert *Alert) error
	// UpdateAlertStatus 仅当当前状态为 from 时更新，否则返回 ErrStaleStatus
	UpdateAlertStatus(ctx context.Context, id string, from, to AlertStatus, at time.Time) error

	// FindVendor 先按 ID，再按名称查找
	FindVendor(ctx context.Context, idOrName string) (*Vendor, error)
	SaveVendor(ctx context.Context, vendor *Vendor) error
	// ApplyVendorAggregates 原子累加成交额与标记数，并写入新的平均分
	ApplyVendorAggregates(ctx context.Context, upd VendorAggregateUpdate, riskScore int) (*Vendor, error)

	// FindScheme 先按 ID，再按名称查找
	FindScheme(ctx context.Context, idOrName string) (*Scheme, error)
	SaveScheme(ctx context.Context, scheme *Scheme) error
}

// AuditLog 仅追加的审计日志
type AuditLog interface {
	// Append 将条目接到链尾，负责计算 PrevHash 与 Hash
	Append(ctx context.Context, entry *AuditEntry) error
	ListByTarget(ctx context.Context, target string) ([]*AuditEntry, error)
}

// EventPublisher 告警事件发布端口
type EventPublisher interface {
	Publish(ctx context.Context, event AlertEvent) error
	Close() error
}

// Notifier 高危告警通知端口
type Notifier interface {
	NotifyCritical(ctx context.Context, alert *Alert) error
}

// VendorLocker 按供应商串行化评分，返回释放函数
type VendorLocker interface {
	Lock(ctx context.Context, vendorID string) (func(), error)
}

// Location 告警定位结果
type Location struct {
	District  string
	Latitude  float64
	Longitude float64
}

// Locator 根据供应商坐标或区县解析位置
type Locator interface {
	Locate(vendor *Vendor, district string) Location
}
