package http

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/paymentrisk/internal/riskscoring/application"
	"github.com/wyfcoding/paymentrisk/internal/riskscoring/domain"
)

// SubmitPaymentRequest 付款提交请求体
type SubmitPaymentRequest struct {
	Amount        decimal.Decimal `json:"amount" binding:"dgt0"`
	Scheme        string          `json:"scheme" binding:"required,max=200"`
	Vendor        string          `json:"vendor" binding:"required,max=200"`
	Beneficiary   string          `json:"beneficiary" binding:"max=200"`
	Description   string          `json:"description" binding:"max=500"`
	District      string          `json:"district" binding:"max=100"`
	SubmissionKey string          `json:"submissionKey" binding:"max=100"`
}

func (r *SubmitPaymentRequest) toDomain() domain.PaymentRequest {
	return domain.PaymentRequest{
		Amount:        r.Amount,
		Scheme:        r.Scheme,
		Vendor:        r.Vendor,
		Beneficiary:   r.Beneficiary,
		Description:   r.Description,
		District:      r.District,
		SubmissionKey: r.SubmissionKey,
	}
}

// UpdateStatusRequest 状态流转请求体
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Actor  string `json:"actor" binding:"max=200"`
}

// AlertDTO 告警响应
type AlertDTO struct {
	ID                  string          `json:"id"`
	SubmissionKey       string          `json:"submissionKey,omitempty"`
	Scheme              string          `json:"scheme"`
	Vendor              string          `json:"vendor"`
	VendorID            string          `json:"vendorId"`
	Amount              decimal.Decimal `json:"amount"`
	Beneficiary         string          `json:"beneficiary,omitempty"`
	Description         string          `json:"description,omitempty"`
	District            string          `json:"district"`
	Latitude            float64         `json:"latitude"`
	Longitude           float64         `json:"longitude"`
	RiskScore           int             `json:"riskScore"`
	RiskLevel           string          `json:"riskLevel"`
	Reasons             []string        `json:"reasons"`
	IsAnomaly           bool            `json:"isAnomaly"`
	ClassifierAvailable bool            `json:"classifierAvailable"`
	Status              string          `json:"status"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

func toAlertDTO(a *domain.Alert) *AlertDTO {
	if a == nil {
		return nil
	}
	reasons := a.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	return &AlertDTO{
		ID:                  a.ID,
		SubmissionKey:       a.SubmissionKey,
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
		Reasons:             reasons,
		IsAnomaly:           a.IsAnomaly,
		ClassifierAvailable: a.ClassifierAvailable,
		Status:              string(a.Status),
		CreatedAt:           a.CreatedAt,
		UpdatedAt:           a.UpdatedAt,
	}
}

// SubmitPaymentResponse 提交结果
type SubmitPaymentResponse struct {
	Alert     *AlertDTO `json:"alert"`
	IsAnomaly bool      `json:"isAnomaly"`
	Replayed  bool      `json:"replayed"`
}

func toSubmitResponse(res *application.SubmitResult) SubmitPaymentResponse {
	return SubmitPaymentResponse{
		Alert:     toAlertDTO(res.Alert),
		IsAnomaly: res.IsAnomaly,
		Replayed:  res.Replayed,
	}
}

// AuditEntryDTO 审计条目
type AuditEntryDTO struct {
	ID          string          `json:"id"`
	EventType   string          `json:"eventType"`
	Actor       string          `json:"actor"`
	Target      string          `json:"target"`
	BeforeState json.RawMessage `json:"beforeState,omitempty"`
	AfterState  json.RawMessage `json:"afterState,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	Severity    string          `json:"severity"`
	Timestamp   time.Time       `json:"timestamp"`
	PrevHash    string          `json:"prevHash"`
	Hash        string          `json:"hash"`
}

// AuditTrailResponse 审计轨迹
type AuditTrailResponse struct {
	Entries  []AuditEntryDTO `json:"entries"`
	Intact   bool            `json:"intact"`
	BrokenAt int             `json:"brokenAt"`
}

func toAuditTrailResponse(t *application.AuditTrail) AuditTrailResponse {
	out := AuditTrailResponse{Entries: make([]AuditEntryDTO, 0, len(t.Entries)), Intact: t.Intact, BrokenAt: t.BrokenAt}
	for _, e := range t.Entries {
		out.Entries = append(out.Entries, AuditEntryDTO{
			ID:          e.ID,
			EventType:   string(e.EventType),
			Actor:       e.Actor,
			Target:      e.Target,
			BeforeState: e.BeforeState,
			AfterState:  e.AfterState,
			Metadata:    e.Metadata,
			Severity:    string(e.Severity),
			Timestamp:   e.Timestamp,
			PrevHash:    e.PrevHash,
			Hash:        e.Hash,
		})
	}
	return out
}

// VendorRiskProfileResponse 供应商风险画像
type VendorRiskProfileResponse struct {
	VendorID      string `json:"vendorId"`
	VendorName    string `json:"vendorName"`
	AccountStatus string `json:"accountStatus"`
	*domain.VendorRiskProfile
	RecentAlerts []*AlertDTO `json:"recentAlerts"`
}

func toProfileResponse(p *domain.VendorRiskProfile) VendorRiskProfileResponse {
	resp := VendorRiskProfileResponse{VendorRiskProfile: p, RecentAlerts: make([]*AlertDTO, 0, len(p.RecentAlerts))}
	if p.Vendor != nil {
		resp.VendorID = p.Vendor.ID
		resp.VendorName = p.Vendor.Name
		resp.AccountStatus = string(p.Vendor.AccountStatus)
	}
	for _, a := range p.RecentAlerts {
		resp.RecentAlerts = append(resp.RecentAlerts, toAlertDTO(a))
	}
	return resp
}
