package mysql

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/paymentrisk/internal/riskscoring/domain"
)

func TestEmptySubmissionKeyStoredAsNull(t *testing.T) {
	// 多条无幂等键的告警不能在唯一索引上冲突
	m := toAlertModel(&domain.Alert{ID: "ALT-2026-1", Amount: decimal.NewFromInt(5)})
	if m.SubmissionKey != nil {
		t.Fatalf("submission key = %q, want NULL", *m.SubmissionKey)
	}
	if m.Reasons != "[]" {
		t.Fatalf("reasons = %q", m.Reasons)
	}

	keyed := toAlertModel(&domain.Alert{ID: "ALT-2026-2", SubmissionKey: "k-1"})
	if keyed.SubmissionKey == nil || *keyed.SubmissionKey != "k-1" {
		t.Fatal("submission key lost")
	}
	if back := toAlert(keyed); back.SubmissionKey != "k-1" {
		t.Fatalf("round trip key = %q", back.SubmissionKey)
	}
}

func TestAuditModelPreservesHash(t *testing.T) {
	e := &domain.AuditEntry{
		ID:          "e-1",
		EventType:   domain.AuditAlertCreated,
		Actor:       domain.SystemActor,
		Target:      domain.AlertTarget("ALT-2026-1"),
		BeforeState: []byte(`{"riskScore":0}`),
		AfterState:  []byte(`{"riskScore":40}`),
		Severity:    domain.SeverityInfo,
		Timestamp:   time.Date(2026, 1, 14, 6, 30, 0, 123_000_000, time.UTC),
	}
	e.Seal("")

	local := toAuditModel(e)
	local.Timestamp = local.Timestamp.In(time.FixedZone("IST", 19800))
	back := toAuditEntry(local)
	if !back.Verify() {
		t.Fatal("hash no longer verifies after storage round trip")
	}
	if back.Metadata != nil {
		t.Fatalf("empty metadata should read back as nil, got %q", back.Metadata)
	}
}

func TestVendorModelBehaviorFallback(t *testing.T) {
	v := toVendor(&VendorModel{ID: "VEN-1", PaymentBehavior: "WEEKLY", OperatingSchemes: `["SCH-001"]`})
	if v.PaymentBehavior != domain.BehaviorIrregular {
		t.Fatalf("behavior = %s", v.PaymentBehavior)
	}
	if len(v.OperatingSchemes) != 1 || v.OperatingSchemes[0] != "SCH-001" {
		t.Fatalf("schemes = %v", v.OperatingSchemes)
	}
}
