package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MaxPaymentAmount 单笔金额上限
var MaxPaymentAmount = decimal.New(1, 10)

// AmountScale 金额小数位，与存储列 decimal(20,2) 一致
const AmountScale = 2

// PaymentRequest 待评分的付款申请
type PaymentRequest struct {
	Amount        decimal.Decimal
	Scheme        string
	Vendor        string
	Beneficiary   string
	Description   string
	District      string
	SubmissionKey string
}

// Normalize 去除字符串字段首尾空白
func (p *PaymentRequest) Normalize() {
	p.Scheme = strings.TrimSpace(p.Scheme)
	p.Vendor = strings.TrimSpace(p.Vendor)
	p.Beneficiary = strings.TrimSpace(p.Beneficiary)
	p.Description = strings.TrimSpace(p.Description)
	p.District = strings.TrimSpace(p.District)
	p.SubmissionKey = strings.TrimSpace(p.SubmissionKey)
}

// Validate 校验申请，首个不合法字段返回 *ValidationError
func (p *PaymentRequest) Validate() error {
	if !p.Amount.IsPositive() {
		return NewValidationError("amount", "must be a positive number")
	}
	if !p.Amount.Equal(p.Amount.Round(AmountScale)) {
		return NewValidationError("amount", "must have at most %d decimal places", AmountScale)
	}
	if p.Amount.GreaterThan(MaxPaymentAmount) {
		return NewValidationError("amount", "must not exceed %s", MaxPaymentAmount.String())
	}
	if p.Scheme == "" {
		return NewValidationError("scheme", "is required")
	}
	if p.Vendor == "" {
		return NewValidationError("vendor", "is required")
	}

	limits := []struct {
		field string
		value string
		max   int
	}{
		{"scheme", p.Scheme, 200},
		{"vendor", p.Vendor, 200},
		{"beneficiary", p.Beneficiary, 200},
		{"description", p.Description, 500},
		{"district", p.District, 100},
		{"submissionKey", p.SubmissionKey, 100},
	}
	for _, l := range limits {
		if len([]rune(l.value)) > l.max {
			return NewValidationError(l.field, "must be at most %d characters", l.max)
		}
	}
	return nil
}
