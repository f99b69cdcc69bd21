package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/paymentrisk/internal/riskscoring/domain"
)

func TestAlertStatusLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedAlert(t, &domain.Alert{ID: "ALT-2026-1", VendorID: "VEN-REG", Amount: decimal.NewFromInt(10), CreatedAt: testNow})
	svc := NewAlertService(h.repo, h.audit, nil, func() time.Time { return testNow.Add(time.Hour) })

	cases := []struct {
		name    string
		status  string
		wantErr bool
	}{
		{"unknown status", "Escalated", true},
		{"skip ahead", "Closed", true},
		{"start investigation", "Investigating", false},
		{"verify", "Verified", false},
		{"reopen", "New", true},
		{"close", "Closed", false},
	}
	for _, tc := range cases {
		_, err := svc.UpdateStatus(ctx, UpdateAlertStatusCommand{AlertID: "ALT-2026-1", Status: tc.status, Actor: "auditor@cag"})
		var ve *domain.ValidationError
		if tc.wantErr != errors.As(err, &ve) {
			t.Fatalf("%s: err = %v", tc.name, err)
		}
	}

	a, err := svc.GetAlert(ctx, "ALT-2026-1")
	if err != nil || a.Status != domain.StatusClosed {
		t.Fatalf("alert = %+v err = %v", a, err)
	}

	trail, err := svc.AuditTrail(ctx, "ALT-2026-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(trail.Entries) != 3 || !trail.Intact {
		t.Fatalf("trail = %d entries intact=%v", len(trail.Entries), trail.Intact)
	}
	for _, e := range trail.Entries {
		if e.EventType != domain.AuditAlertStatusChanged || e.Actor != "auditor@cag" {
			t.Fatalf("unexpected entry %+v", e)
		}
	}
}

func TestAlertServiceNotFound(t *testing.T) {
	h := newHarness(t)
	svc := NewAlertService(h.repo, h.audit, nil, nil)
	if _, err := svc.GetAlert(context.Background(), "missing"); !errors.Is(err, domain.ErrAlertNotFound) {
		t.Fatalf("err = %v", err)
	}
	_, err := svc.UpdateStatus(context.Background(), UpdateAlertStatusCommand{AlertID: "missing", Status: "Investigating"})
	if !errors.Is(err, domain.ErrAlertNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestVendorRiskProfileQuery(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		h.seedAlert(t, &domain.Alert{
			ID:        "P-" + string(rune('a'+i)),
			VendorID:  "VEN-REG",
			Amount:    decimal.NewFromInt(int64(20_000 + i*1000)),
			RiskScore: 80,
			CreatedAt: testNow.Add(-time.Duration(i) * time.Hour),
		})
	}
	q := NewVendorQuery(h.repo, func() time.Time { return testNow })

	p, err := q.RiskProfile(ctx, "Sharma Constructions")
	if err != nil {
		t.Fatal(err)
	}
	if p.TotalTransactions != 6 || p.FlaggedTransactions != 6 || p.AverageRiskScore != 80 {
		t.Fatalf("profile = %+v", p)
	}
	if len(p.RecentAlerts) != 5 || p.RecentAlerts[0].ID != "P-a" {
		t.Fatalf("recent alerts wrong: %d", len(p.RecentAlerts))
	}
	if _, err := q.RiskProfile(ctx, "nobody"); !errors.Is(err, domain.ErrVendorNotRegistered) {
		t.Fatalf("err = %v", err)
	}
}
