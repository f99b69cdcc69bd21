package mysql

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/paymentrisk/internal/riskscoring/domain"
)

// AlertModel 告警写模型
type AlertModel struct {
	ID                  string          `gorm:"column:id;type:varchar(48);primaryKey;comment:告警ID"`
	SubmissionKey       *string         `gorm:"column:submission_key;type:varchar(100);uniqueIndex;comment:幂等键"`
	Scheme              string          `gorm:"column:scheme;type:varchar(200);index;not null;comment:计划标识"`
	Vendor              string          `gorm:"column:vendor;type:varchar(200);not null;comment:供应商名称"`
	VendorID            string          `gorm:"column:vendor_id;type:varchar(48);index:idx_alert_vendor_created,priority:1;not null;comment:供应商ID"`
	Amount              decimal.Decimal `gorm:"column:amount;type:decimal(20,2);not null;comment:金额"`
	Beneficiary         string          `gorm:"column:beneficiary;type:varchar(200);index;comment:受益人"`
	Description         string          `gorm:"column:description;type:varchar(500);comment:描述"`
	District            string          `gorm:"column:district;type:varchar(100);comment:区县"`
	Latitude            float64         `gorm:"column:latitude;comment:纬度"`
	Longitude           float64         `gorm:"column:longitude;comment:经度"`
	RiskScore           int             `gorm:"column:risk_score;not null;comment:风险分"`
	RiskLevel           string          `gorm:"column:risk_level;type:varchar(16);not null;comment:风险等级"`
	Reasons             string          `gorm:"column:reasons;type:text;comment:原因(JSON数组)"`
	IsAnomaly           bool            `gorm:"column:is_anomaly;not null;default:false;comment:是否异常"`
	ClassifierAvailable bool            `gorm:"column:classifier_available;not null;default:false;comment:分类服务是否可用"`
	Status              string          `gorm:"column:status;type:varchar(20);not null;comment:处理状态"`
	CreatedAt           time.Time       `gorm:"column:created_at;index:idx_alert_vendor_created,priority:2;comment:创建时间"`
	UpdatedAt           time.Time       `gorm:"column:updated_at;comment:更新时间"`
}

func (AlertModel) TableName() string { return "risk_alerts" }

// VendorModel 供应商写模型
type VendorModel struct {
	ID                  string              `gorm:"column:id;type:varchar(48);primaryKey;comment:供应商ID"`
	Name                string              `gorm:"column:name;type:varchar(200);uniqueIndex;not null;comment:名称"`
	GSTIN               string              `gorm:"column:gstin;type:varchar(15);comment:税号"`
	AccountStatus       string              `gorm:"column:account_status;type:varchar(20);not null;comment:账户状态"`
	PaymentBehavior     string              `gorm:"column:payment_behavior;type:varchar(20);not null;comment:付款节奏"`
	MaxAmount           decimal.NullDecimal `gorm:"column:max_amount;type:decimal(20,2);comment:单笔上限"`
	TimingToleranceDays int                 `gorm:"column:timing_tolerance_days;not null;default:0;comment:时间容差(天)"`
	TotalVolume         decimal.Decimal     `gorm:"column:total_volume;type:decimal(24,2);not null;default:0;comment:累计金额"`
	FlaggedTransactions int                 `gorm:"column:flagged_transactions;not null;default:0;comment:被标记笔数"`
	RiskScore           int                 `gorm:"column:risk_score;not null;default:0;comment:平均风险分"`
	Latitude            *float64            `gorm:"column:latitude;comment:纬度"`
	Longitude           *float64            `gorm:"column:longitude;comment:经度"`
	OperatingSchemes    string              `gorm:"column:operating_schemes;type:text;comment:参与计划(JSON数组)"`
	CreatedAt           time.Time           `gorm:"column:created_at"`
	UpdatedAt           time.Time           `gorm:"column:updated_at"`
}

func (VendorModel) TableName() string { return "vendors" }

// SchemeModel 政府计划
type SchemeModel struct {
	ID              string              `gorm:"column:id;type:varchar(48);primaryKey;comment:计划ID"`
	Name            string              `gorm:"column:name;type:varchar(200);uniqueIndex;not null;comment:名称"`
	Ministry        string              `gorm:"column:ministry;type:varchar(200);comment:主管部委"`
	BudgetAllocated decimal.NullDecimal `gorm:"column:budget_allocated;type:decimal(24,2);comment:预算"`
	Status          string              `gorm:"column:status;type:varchar(20);comment:状态"`
	CreatedAt       time.Time           `gorm:"column:created_at"`
	UpdatedAt       time.Time           `gorm:"column:updated_at"`
}

func (SchemeModel) TableName() string { return "schemes" }

// AuditModel 审计链条目，Seq 决定链顺序
type AuditModel struct {
	Seq         uint64    `gorm:"column:seq;primaryKey;autoIncrement"`
	EntryID     string    `gorm:"column:entry_id;type:varchar(64);uniqueIndex;not null;comment:条目ID"`
	EventType   string    `gorm:"column:event_type;type:varchar(40);not null;comment:事件类型"`
	Actor       string    `gorm:"column:actor;type:varchar(200);not null;comment:操作人"`
	Target      string    `gorm:"column:target;type:varchar(100);index;not null;comment:目标"`
	BeforeState string    `gorm:"column:before_state;type:text;comment:变更前"`
	AfterState  string    `gorm:"column:after_state;type:text;comment:变更后"`
	Metadata    string    `gorm:"column:metadata;type:text;comment:附加信息"`
	Severity    string    `gorm:"column:severity;type:varchar(16);not null;comment:严重程度"`
	Timestamp   time.Time `gorm:"column:timestamp;not null;comment:发生时间"`
	PrevHash    string    `gorm:"column:prev_hash;type:char(64);comment:前一条哈希"`
	Hash        string    `gorm:"column:hash;type:char(64);not null;comment:本条哈希"`
}

func (AuditModel) TableName() string { return "audit_logs" }

// AuditHeadModel 审计链头，单行，追加时行锁串行化
type AuditHeadModel struct {
	ID   uint   `gorm:"column:id;primaryKey"`
	Hash string `gorm:"column:hash;type:char(64)"`
}

func (AuditHeadModel) TableName() string { return "audit_chain_head" }

func toAlertModel(a *domain.Alert) *AlertModel {
	m := &AlertModel{
		ID:                  a.ID,
		Scheme:              a.Scheme,
		Vendor:              a.Vendor,
		VendorID:            a.VendorID,
		Amount:              a.Amount,
		Beneficiary:         a.Beneficiary,
		Description:         a.Description,
		District:            a.District,
		Latitude:            a.Latitude,
		Longitude:           a.Longitude,
		RiskScore:           a.RiskScore,
		RiskLevel:           string(a.RiskLevel),
		Reasons:             encodeStrings(a.Reasons),
		IsAnomaly:           a.IsAnomaly,
		ClassifierAvailable: a.ClassifierAvailable,
		Status:              string(a.Status),
		CreatedAt:           a.CreatedAt,
		UpdatedAt:           a.UpdatedAt,
	}
	if a.SubmissionKey != "" {
		key := a.SubmissionKey
		m.SubmissionKey = &key
	}
	return m
}

func toAlert(m *AlertModel) *domain.Alert {
	a := &domain.Alert{
		ID:                  m.ID,
		Scheme:              m.Scheme,
		Vendor:              m.Vendor,
		VendorID:            m.VendorID,
		Amount:              m.Amount,
		Beneficiary:         m.Beneficiary,
		Description:         m.Description,
		District:            m.District,
		Latitude:            m.Latitude,
		Longitude:           m.Longitude,
		RiskScore:           m.RiskScore,
		RiskLevel:           domain.RiskLevel(m.RiskLevel),
		Reasons:             decodeStrings(m.Reasons),
		IsAnomaly:           m.IsAnomaly,
		ClassifierAvailable: m.ClassifierAvailable,
		Status:              domain.AlertStatus(m.Status),
		CreatedAt:           m.CreatedAt.UTC(),
		UpdatedAt:           m.UpdatedAt.UTC(),
	}
	if m.SubmissionKey != nil {
		a.SubmissionKey = *m.SubmissionKey
	}
	return a
}

func toVendorModel(v *domain.Vendor) *VendorModel {
	return &VendorModel{
		ID:                  v.ID,
		Name:                v.Name,
		GSTIN:               v.GSTIN,
		AccountStatus:       string(v.AccountStatus),
		PaymentBehavior:     string(v.PaymentBehavior),
		MaxAmount:           v.MaxAmount,
		TimingToleranceDays: v.TimingToleranceDays,
		TotalVolume:         v.TotalVolume,
		FlaggedTransactions: v.FlaggedTransactions,
		RiskScore:           v.RiskScore,
		Latitude:            v.Latitude,
		Longitude:           v.Longitude,
		OperatingSchemes:    encodeStrings(v.OperatingSchemes),
		CreatedAt:           v.CreatedAt,
		UpdatedAt:           v.UpdatedAt,
	}
}

func toVendor(m *VendorModel) *domain.Vendor {
	return &domain.Vendor{
		ID:                  m.ID,
		Name:                m.Name,
		GSTIN:               m.GSTIN,
		AccountStatus:       domain.AccountStatus(m.AccountStatus),
		PaymentBehavior:     domain.ParsePaymentBehavior(m.PaymentBehavior),
		MaxAmount:           m.MaxAmount,
		TimingToleranceDays: m.TimingToleranceDays,
		TotalVolume:         m.TotalVolume,
		FlaggedTransactions: m.FlaggedTransactions,
		RiskScore:           m.RiskScore,
		Latitude:            m.Latitude,
		Longitude:           m.Longitude,
		OperatingSchemes:    decodeStrings(m.OperatingSchemes),
		CreatedAt:           m.CreatedAt.UTC(),
		UpdatedAt:           m.UpdatedAt.UTC(),
	}
}

func toSchemeModel(s *domain.Scheme) *SchemeModel {
	return &SchemeModel{
		ID:              s.ID,
		Name:            s.Name,
		Ministry:        s.Ministry,
		BudgetAllocated: s.BudgetAllocated,
		Status:          s.Status,
	}
}

func toScheme(m *SchemeModel) *domain.Scheme {
	return &domain.Scheme{
		ID:              m.ID,
		Name:            m.Name,
		Ministry:        m.Ministry,
		BudgetAllocated: m.BudgetAllocated,
		Status:          m.Status,
	}
}

func toAuditModel(e *domain.AuditEntry) *AuditModel {
	return &AuditModel{
		EntryID:     e.ID,
		EventType:   string(e.EventType),
		Actor:       e.Actor,
		Target:      e.Target,
		BeforeState: string(e.BeforeState),
		AfterState:  string(e.AfterState),
		Metadata:    string(e.Metadata),
		Severity:    string(e.Severity),
		Timestamp:   e.Timestamp,
		PrevHash:    e.PrevHash,
		Hash:        e.Hash,
	}
}

func toAuditEntry(m *AuditModel) *domain.AuditEntry {
	return &domain.AuditEntry{
		ID:          m.EntryID,
		EventType:   domain.AuditEventType(m.EventType),
		Actor:       m.Actor,
		Target:      m.Target,
		BeforeState: rawOrNil(m.BeforeState),
		AfterState:  rawOrNil(m.AfterState),
		Metadata:    rawOrNil(m.Metadata),
		Severity:    domain.AuditSeverity(m.Severity),
		Timestamp:   m.Timestamp.UTC(),
		PrevHash:    m.PrevHash,
		Hash:        m.Hash,
	}
}

func encodeStrings(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeStrings(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

func rawOrNil(s string) json.RawMessage {
	if s == "" {
		return nil
	}
	return json.RawMessage(s)
}
