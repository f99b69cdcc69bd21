package application

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/paymentrisk/internal/riskscoring/domain"
)

func hasReason(a *domain.Alert, sub string) bool {
	for _, r := range a.Reasons {
		if strings.Contains(r, sub) {
			return true
		}
	}
	return false
}

func TestSubmitHighValueWithClassifierDown(t *testing.T) {
	h := newHarness(t)
	h.classifier.down = true

	res, err := h.svc.SubmitPayment(context.Background(), payment(5_000_000, "SCH-002", "VEN-REG"))
	if err != nil {
		t.Fatal(err)
	}
	a := res.Alert
	if a.RiskScore != 60 || a.RiskLevel != domain.RiskHigh || res.IsAnomaly {
		t.Fatalf("got score=%d level=%s anomaly=%v, want 60 High false", a.RiskScore, a.RiskLevel, res.IsAnomaly)
	}
	if a.ClassifierAvailable {
		t.Fatal("alert should record classifier as unavailable")
	}
	if !hasReason(a, domain.ReasonClassifierUnavailable) || !hasReason(a, "high value") {
		t.Fatalf("reasons = %v", a.Reasons)
	}
}

func TestSubmitVendorAverageEscalation(t *testing.T) {
	h := newHarness(t)
	for i, score := range []int{70, 80, 75, 75} {
		h.seedAlert(t, &domain.Alert{
			ID:        "PRIOR-" + string(rune('A'+i)),
			VendorID:  "VEN-IRR",
			Scheme:    "SCH-002",
			Amount:    decimal.NewFromInt(1000),
			RiskScore: score,
			CreatedAt: testNow.AddDate(0, 0, -10-i),
		})
	}

	res, err := h.svc.SubmitPayment(context.Background(), payment(20_000, "SCH-002", "VEN-IRR"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Alert.RiskScore != 30 {
		t.Fatalf("score = %d, want 10 + 20 (reasons %v)", res.Alert.RiskScore, res.Alert.Reasons)
	}
	if !hasReason(res.Alert, "historical average") {
		t.Fatalf("missing escalation reason: %v", res.Alert.Reasons)
	}
}

func TestSubmitIdempotentReplay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := payment(45_000, "SCH-002", "VEN-IRR")
	req.SubmissionKey = "sub-001"

	first, err := h.svc.SubmitPayment(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	req.Amount = decimal.NewFromInt(99_999)
	second, err := h.svc.SubmitPayment(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	h.runner.Wait()

	if first.Replayed || !second.Replayed {
		t.Fatalf("replayed flags = %v, %v", first.Replayed, second.Replayed)
	}
	if second.Alert.ID != first.Alert.ID || second.Alert.RiskScore != first.Alert.RiskScore {
		t.Fatalf("replay returned %s/%d, want %s/%d", second.Alert.ID, second.Alert.RiskScore, first.Alert.ID, first.Alert.RiskScore)
	}
	if n := h.repo.AlertCount(); n != 1 {
		t.Fatalf("alert count = %d, want 1", n)
	}
	if calls := h.classifier.calls; calls != 1 {
		t.Fatalf("classifier called %d times, want 1", calls)
	}
	if h.publisher.count() != 1 || len(h.audit.Entries()) != 1 {
		t.Fatalf("replay must not trigger side effects: events=%d audits=%d", h.publisher.count(), len(h.audit.Entries()))
	}
}

func TestSubmitConcurrentSameKey(t *testing.T) {
	h := newHarness(t)
	req := payment(12_000, "SCH-002", "VEN-IRR")
	req.SubmissionKey = "race-key"

	const n = 8
	ids := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := h.svc.SubmitPayment(context.Background(), req)
			errs[i] = err
			if err == nil {
				ids[i] = res.Alert.ID
			}
		}(i)
	}
	wg.Wait()
	h.runner.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("request %d failed: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("request %d got alert %s, want %s", i, ids[i], ids[0])
		}
	}
	if c := h.repo.AlertCount(); c != 1 {
		t.Fatalf("alert count = %d, want 1", c)
	}
}

func TestSubmitRejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.SubmitPayment(ctx, payment(1000, "SCH-002", "VEN-UNKNOWN"))
	if !errors.Is(err, domain.ErrVendorNotRegistered) {
		t.Fatalf("err = %v, want ErrVendorNotRegistered", err)
	}

	_, err = h.svc.SubmitPayment(ctx, payment(0, "SCH-002", "VEN-REG"))
	var ve *domain.ValidationError
	if !errors.As(err, &ve) || ve.Field != "amount" {
		t.Fatalf("err = %v, want amount ValidationError", err)
	}

	_, err = h.svc.SubmitPayment(ctx, payment(1000, "   ", "VEN-REG"))
	if !errors.As(err, &ve) || ve.Field != "scheme" {
		t.Fatalf("err = %v, want scheme ValidationError", err)
	}

	if h.repo.AlertCount() != 0 || h.classifier.calls != 0 {
		t.Fatalf("rejected requests must not score or persist")
	}
}

func TestSubmitPersistenceFailureRollsBack(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.repo.FailOn("ApplyVendorAggregates", errors.New("connection reset"))

	_, err := h.svc.SubmitPayment(ctx, payment(1000, "SCH-002", "VEN-REG"))
	var pe *domain.PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want PersistenceError", err)
	}
	h.runner.Wait()

	if h.repo.AlertCount() != 0 {
		t.Fatal("alert committed despite failed vendor update")
	}
	v, _ := h.repo.FindVendor(ctx, "VEN-REG")
	if !v.TotalVolume.IsZero() {
		t.Fatalf("vendor volume = %s, want 0", v.TotalVolume)
	}
	if h.publisher.count() != 0 || len(h.audit.Entries()) != 0 {
		t.Fatal("side effects ran for a failed submission")
	}
}

func TestSubmitReadFailureIsPersistenceError(t *testing.T) {
	h := newHarness(t)
	h.repo.FailOn("ListAlertsByVendorSince", errors.New("timeout"))

	_, err := h.svc.SubmitPayment(context.Background(), payment(1000, "SCH-002", "VEN-REG"))
	var pe *domain.PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want PersistenceError", err)
	}
}

func TestSubmitSideEffectFailuresAreSwallowed(t *testing.T) {
	h := newHarness(t)
	h.classifier.result = domain.Classification{Score: 95, Available: true}
	h.audit.FailWith(errors.New("audit store down"))
	h.publisher.err = errors.New("broker unavailable")
	h.notifier.err = errors.New("smtp refused")

	res, err := h.svc.SubmitPayment(context.Background(), payment(1000, "SCH-002", "VEN-REG"))
	if err != nil {
		t.Fatalf("side-effect failure surfaced: %v", err)
	}
	if res.Alert.RiskScore != 95 {
		t.Fatalf("score = %d", res.Alert.RiskScore)
	}
	h.runner.Wait()

	failed := map[string]bool{}
	for len(h.outcomes) > 0 {
		out := <-h.outcomes
		if out.Err != nil {
			failed[out.Kind] = true
		}
	}
	if !failed[TaskEvent] || !failed[TaskNotification] {
		t.Fatalf("observer did not receive both failures: %v", failed)
	}
	if h.repo.AlertCount() != 1 {
		t.Fatal("alert should still be committed")
	}
}

func TestSubmitScoreIsCappedAndCriticalNotified(t *testing.T) {
	h := newHarness(t)
	h.classifier.result = domain.Classification{Score: 95, Reasons: []string{"model: extreme"}, Available: true}
	h.seedAlert(t, &domain.Alert{ID: "OTHER-1", VendorID: "VEN-X", Scheme: "SCH-001", Amount: decimal.NewFromInt(900_000), CreatedAt: testNow.AddDate(0, -1, 0)})

	res, err := h.svc.SubmitPayment(context.Background(), payment(950_000, "SCH-001", "VEN-REG"))
	if err != nil {
		t.Fatal(err)
	}
	h.runner.Wait()

	a := res.Alert
	if a.RiskScore != domain.MaxRiskScore || a.RiskLevel != domain.RiskCritical || !a.IsAnomaly {
		t.Fatalf("got %d %s %v", a.RiskScore, a.RiskLevel, a.IsAnomaly)
	}
	if h.notifier.count() != 1 || h.publisher.count() != 1 {
		t.Fatalf("notifications=%d events=%d, want 1/1", h.notifier.count(), h.publisher.count())
	}

	entries := h.audit.Entries()
	if len(entries) != 1 || entries[0].Severity != domain.SeverityCritical || entries[0].EventType != domain.AuditAlertCreated {
		t.Fatalf("audit entries = %+v", entries)
	}

	v, _ := h.repo.FindVendor(context.Background(), "VEN-REG")
	if v.FlaggedTransactions != 1 || !v.TotalVolume.Equal(decimal.NewFromInt(950_000)) || v.RiskScore != 100 {
		t.Fatalf("vendor aggregates = flagged %d volume %s score %d", v.FlaggedTransactions, v.TotalVolume, v.RiskScore)
	}
}

func TestSubmitBudgetCeiling(t *testing.T) {
	h := newHarness(t)
	h.seedAlert(t, &domain.Alert{ID: "OTHER-1", VendorID: "VEN-X", Scheme: "SCH-001", Amount: decimal.NewFromInt(900_000), CreatedAt: testNow.AddDate(0, -1, 0)})

	res, err := h.svc.SubmitPayment(context.Background(), payment(200_000, "PM Awas Yojana", "Gupta Traders"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Alert.Scheme != "SCH-001" || res.Alert.VendorID != "VEN-IRR" {
		t.Fatalf("scheme/vendor not resolved by name: %s %s", res.Alert.Scheme, res.Alert.VendorID)
	}
	if res.Alert.RiskScore != 60 || !hasReason(res.Alert, "1,100,000 > 1,000,000") {
		t.Fatalf("score %d reasons %v", res.Alert.RiskScore, res.Alert.Reasons)
	}
	if h.classifier.last.Scheme != "PM Awas Yojana" {
		t.Fatalf("classifier got scheme %q, want name", h.classifier.last.Scheme)
	}
}

func TestSubmitUnknownSchemeSkipsBudget(t *testing.T) {
	h := newHarness(t)
	res, err := h.svc.SubmitPayment(context.Background(), payment(2_000_000, "Gram Sadak Yojana", "VEN-IRR"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Alert.Scheme != "Gram Sadak Yojana" || res.Alert.RiskScore != 10 {
		t.Fatalf("scheme %q score %d", res.Alert.Scheme, res.Alert.RiskScore)
	}
}

func TestSubmitRegularCadence(t *testing.T) {
	h := newHarness(t)
	h.seedAlert(t, &domain.Alert{ID: "PREV", VendorID: "VEN-REG", Scheme: "SCH-002", Amount: decimal.NewFromInt(1000), RiskScore: 10, CreatedAt: testNow.AddDate(0, 0, -10)})

	res, err := h.svc.SubmitPayment(context.Background(), payment(1000, "SCH-002", "VEN-REG"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Alert.RiskScore != 25 || !hasReason(res.Alert, "too early") {
		t.Fatalf("score %d reasons %v", res.Alert.RiskScore, res.Alert.Reasons)
	}
	if d := h.classifier.last.DaysSinceLastPayment; d == nil || *d != 10 {
		t.Fatalf("classifier days since last = %v", d)
	}
	if h.classifier.last.PaymentBehavior != domain.BehaviorRegular {
		t.Fatalf("classifier behavior = %s", h.classifier.last.PaymentBehavior)
	}
}

func TestSubmitDuplicateWithinDay(t *testing.T) {
	h := newHarness(t)
	h.seedAlert(t, &domain.Alert{ID: "PREV", VendorID: "VEN-IRR", Scheme: "SCH-002", Amount: decimal.NewFromInt(100_000), RiskScore: 10, CreatedAt: testNow.Add(-5 * time.Hour)})

	res, err := h.svc.SubmitPayment(context.Background(), payment(102_000, "SCH-002", "VEN-IRR"))
	if err != nil {
		t.Fatal(err)
	}
	// 10 基础 + 20 同日 + 40 疑似重复
	if res.Alert.RiskScore != 70 || !res.IsAnomaly || res.Alert.RiskLevel != domain.RiskHigh {
		t.Fatalf("score %d anomaly %v level %s reasons %v", res.Alert.RiskScore, res.IsAnomaly, res.Alert.RiskLevel, res.Alert.Reasons)
	}
	if !hasReason(res.Alert, "PREV") {
		t.Fatalf("duplicate reason should cite PREV: %v", res.Alert.Reasons)
	}
}

func TestSubmitSerializesPerVendor(t *testing.T) {
	h := newHarness(t)
	locker := &recordingLocker{}
	h.build(locker)

	if _, err := h.svc.SubmitPayment(context.Background(), payment(1000, "SCH-002", "Sharma Constructions")); err != nil {
		t.Fatal(err)
	}
	if len(locker.locked) != 1 || locker.locked[0] != "VEN-REG" || locker.held != 0 {
		t.Fatalf("locker = %+v", locker)
	}
}
