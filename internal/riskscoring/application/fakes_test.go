package application

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/paymentrisk/internal/riskscoring/domain"
	"github.com/wyfcoding/paymentrisk/internal/riskscoring/infrastructure/persistence/memory"
)

// 2026-01-14 是周三，06:30 UTC 即印度时间 12:00
var (
	testNow = time.Date(2026, time.January, 14, 6, 30, 0, 0, time.UTC)
	ist     = time.FixedZone("IST", 5*3600+1800)
)

type fakeClassifier struct {
	mu     sync.Mutex
	result domain.Classification
	down   bool
	calls  int32
	last   domain.ClassificationRequest
}

func (f *fakeClassifier) Classify(_ context.Context, req domain.ClassificationRequest) domain.Classification {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = req
	if f.down {
		return domain.FallbackClassification(req.Amount)
	}
	return f.result
}

func (f *fakeClassifier) Ping(context.Context) error {
	if f.down {
		return fmt.Errorf("classifier down")
	}
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.AlertEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, e domain.AlertEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type fakeNotifier struct {
	mu     sync.Mutex
	alerts []string
	err    error
}

func (n *fakeNotifier) NotifyCritical(_ context.Context, a *domain.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.alerts = append(n.alerts, a.ID)
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alerts)
}

type fixedLocator struct{}

func (fixedLocator) Locate(v *domain.Vendor, district string) domain.Location {
	if v.HasCoordinates() {
		return domain.Location{District: district, Latitude: *v.Latitude, Longitude: *v.Longitude}
	}
	return domain.Location{District: "New Delhi", Latitude: 28.6139, Longitude: 77.209}
}

type seqIDs struct{ n int64 }

func (s *seqIDs) NextAlertID(at time.Time) string {
	return fmt.Sprintf("ALT-%d-%d", at.Year(), atomic.AddInt64(&s.n, 1))
}

type recordingLocker struct {
	mu     sync.Mutex
	locked []string
	held   int
}

func (l *recordingLocker) Lock(_ context.Context, vendorID string) (func(), error) {
	l.mu.Lock()
	l.locked = append(l.locked, vendorID)
	l.held++
	l.mu.Unlock()
	return func() {
		l.mu.Lock()
		l.held--
		l.mu.Unlock()
	}, nil
}

type harness struct {
	repo       *memory.Repository
	audit      *memory.AuditLog
	classifier *fakeClassifier
	publisher  *fakePublisher
	notifier   *fakeNotifier
	runner     *BackgroundRunner
	outcomes   chan TaskOutcome
	svc        *ScoringService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		repo:       memory.NewRepository(),
		audit:      memory.NewAuditLog(),
		classifier: &fakeClassifier{result: domain.Classification{Score: 10, Reasons: []string{"model: normal"}, Available: true}},
		publisher:  &fakePublisher{},
		notifier:   &fakeNotifier{},
		outcomes:   make(chan TaskOutcome, 64),
	}
	h.runner = NewBackgroundRunner(time.Second, nil, h.outcomes)
	h.build(nil)

	ctx := context.Background()
	vendors := []*domain.Vendor{
		{ID: "VEN-REG", Name: "Sharma Constructions", PaymentBehavior: domain.BehaviorRegular, TotalVolume: decimal.Zero, AccountStatus: domain.AccountActive},
		{ID: "VEN-IRR", Name: "Gupta Traders", PaymentBehavior: domain.BehaviorIrregular, TotalVolume: decimal.Zero, AccountStatus: domain.AccountActive},
	}
	for _, v := range vendors {
		if err := h.repo.SaveVendor(ctx, v); err != nil {
			t.Fatal(err)
		}
	}
	schemes := []*domain.Scheme{
		{ID: "SCH-001", Name: "PM Awas Yojana", BudgetAllocated: decimal.NewNullDecimal(decimal.NewFromInt(1_000_000))},
		{ID: "SCH-002", Name: "Jal Jeevan Mission"},
	}
	for _, s := range schemes {
		if err := h.repo.SaveScheme(ctx, s); err != nil {
			t.Fatal(err)
		}
	}
	return h
}

func (h *harness) build(locker domain.VendorLocker) {
	h.svc = NewScoringService(ScoringDeps{
		Repo:       h.repo,
		Audit:      h.audit,
		Classifier: h.classifier,
		Publisher:  h.publisher,
		Notifier:   h.notifier,
		Locator:    fixedLocator{},
		Locker:     locker,
		IDs:        &seqIDs{},
		Runner:     h.runner,
		Location:   ist,
		Now:        func() time.Time { return testNow },
	})
}

func (h *harness) seedAlert(t *testing.T, a *domain.Alert) {
	t.Helper()
	if a.Status == "" {
		a.Status = domain.StatusNew
	}
	if err := h.repo.CreateAlert(context.Background(), a); err != nil {
		t.Fatal(err)
	}
}

func payment(amount int64, scheme, vendor string) domain.PaymentRequest {
	return domain.PaymentRequest{Amount: decimal.NewFromInt(amount), Scheme: scheme, Vendor: vendor}
}
