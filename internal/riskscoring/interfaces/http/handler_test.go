package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/paymentrisk/internal/riskscoring/application"
	"github.com/wyfcoding/paymentrisk/internal/riskscoring/domain"
	"github.com/wyfcoding/paymentrisk/internal/riskscoring/infrastructure/geo"
	"github.com/wyfcoding/paymentrisk/internal/riskscoring/infrastructure/persistence/memory"
	"github.com/wyfcoding/paymentrisk/pkg/metrics"
	"github.com/wyfcoding/paymentrisk/pkg/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// 周三 12:00 印度时间
var (
	testNow = time.Date(2026, time.January, 14, 6, 30, 0, 0, time.UTC)
	ist     = time.FixedZone("IST", 5*3600+1800)
)

type stubClassifier struct{}

func (stubClassifier) Classify(context.Context, domain.ClassificationRequest) domain.Classification {
	return domain.Classification{Score: 10, Reasons: []string{"model: normal"}, Available: true}
}

func (stubClassifier) Ping(context.Context) error { return nil }

type env struct {
	repo   *memory.Repository
	router *gin.Engine
	ready  error
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	e := &env{repo: memory.NewRepository()}
	audit := memory.NewAuditLog()

	if err := e.repo.SaveVendor(ctx, &domain.Vendor{
		ID: "VEN-REG", Name: "Sharma Constructions",
		PaymentBehavior: domain.BehaviorRegular, AccountStatus: domain.AccountActive,
	}); err != nil {
		t.Fatal(err)
	}
	if err := e.repo.SaveScheme(ctx, &domain.Scheme{ID: "SCH-001", Name: "PM Awas Yojana"}); err != nil {
		t.Fatal(err)
	}

	ids, err := utils.NewIDGenerator(1)
	if err != nil {
		t.Fatal(err)
	}
	m := metrics.New("riskscoring_test")
	now := func() time.Time { return testNow }
	runner := application.NewBackgroundRunner(time.Second, m, nil)
	t.Cleanup(runner.Wait)

	scoring := application.NewScoringService(application.ScoringDeps{
		Repo:       e.repo,
		Audit:      audit,
		Classifier: stubClassifier{},
		Locator:    geo.NewTableLocator([]geo.District{{Name: "Lucknow", Latitude: 26.8467, Longitude: 80.9462}}, nil, 1),
		IDs:        ids,
		Runner:     runner,
		Metrics:    m,
		Location:   ist,
		Now:        now,
	})
	h := NewRiskHandler(
		scoring,
		application.NewAlertService(e.repo, audit, m, now),
		application.NewVendorQuery(e.repo, now),
		map[string]ReadinessCheck{"database": func(context.Context) error { return e.ready }},
	)
	e.router = NewRouter(h, m, "")
	return e
}

func (e *env) do(t *testing.T, method, path, body string) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var out envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return rec.Code, out
}

func TestSubmitPaymentStatuses(t *testing.T) {
	e := newEnv(t)

	cases := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"zero amount", `{"amount": 0, "scheme": "PM Awas Yojana", "vendor": "VEN-REG"}`, http.StatusBadRequest, CodeValidation},
		{"negative amount", `{"amount": -5, "scheme": "PM Awas Yojana", "vendor": "VEN-REG"}`, http.StatusBadRequest, CodeValidation},
		{"missing vendor", `{"amount": 100, "scheme": "PM Awas Yojana"}`, http.StatusBadRequest, CodeValidation},
		{"malformed json", `{"amount": `, http.StatusBadRequest, CodeValidation},
		{"sub-paisa amount", `{"amount": "100.125", "scheme": "PM Awas Yojana", "vendor": "VEN-REG"}`, http.StatusBadRequest, CodeValidation},
		{"above ceiling", `{"amount": 20000000000, "scheme": "PM Awas Yojana", "vendor": "VEN-REG"}`, http.StatusBadRequest, CodeValidation},
		{"unknown vendor", `{"amount": 100, "scheme": "PM Awas Yojana", "vendor": "Nobody Pvt Ltd"}`, http.StatusUnprocessableEntity, CodeVendorNotRegistered},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := e.do(t, http.MethodPost, "/api/v1/payments", tc.body)
			if status != tc.status || body.Error != tc.code {
				t.Fatalf("status=%d error=%q message=%q", status, body.Error, body.Message)
			}
		})
	}
}

func TestSubmitPaymentCreatesThenReplays(t *testing.T) {
	e := newEnv(t)
	payload := `{"amount": "25000.50", "scheme": "PM Awas Yojana", "vendor": "Sharma Constructions", "district": "lucknow", "submissionKey": "req-1"}`

	status, body := e.do(t, http.MethodPost, "/api/v1/payments", payload)
	if status != http.StatusCreated {
		t.Fatalf("status = %d (%s)", status, body.Message)
	}
	var first SubmitPaymentResponse
	if err := json.Unmarshal(body.Data, &first); err != nil {
		t.Fatal(err)
	}
	if first.Replayed || first.Alert.RiskScore != 10 || first.Alert.District != "Lucknow" || first.Alert.Scheme != "SCH-001" {
		t.Fatalf("first = %+v", first.Alert)
	}
	if !first.Alert.Amount.Equal(decimal.RequireFromString("25000.5")) || !strings.HasPrefix(first.Alert.ID, "ALT-2026-") {
		t.Fatalf("alert = %+v", first.Alert)
	}

	status, body = e.do(t, http.MethodPost, "/api/v1/payments", payload)
	var second SubmitPaymentResponse
	_ = json.Unmarshal(body.Data, &second)
	if status != http.StatusOK || !second.Replayed || second.Alert.ID != first.Alert.ID {
		t.Fatalf("replay status=%d body=%+v", status, second)
	}
	if e.repo.AlertCount() != 1 {
		t.Fatalf("alerts = %d", e.repo.AlertCount())
	}
}

func TestSubmitPaymentPersistenceFailure(t *testing.T) {
	e := newEnv(t)
	e.repo.FailOn("CreateAlert", errors.New("connection reset"))

	status, body := e.do(t, http.MethodPost, "/api/v1/payments", `{"amount": 100, "scheme": "X", "vendor": "VEN-REG"}`)
	if status != http.StatusInternalServerError || body.Error != CodePersistence {
		t.Fatalf("status=%d error=%s", status, body.Error)
	}
	if strings.Contains(body.Message, "connection reset") {
		t.Fatal("store error leaked to client")
	}
}

func TestAlertEndpoints(t *testing.T) {
	e := newEnv(t)
	_, body := e.do(t, http.MethodPost, "/api/v1/payments", `{"amount": 1200, "scheme": "PM Awas Yojana", "vendor": "VEN-REG"}`)
	var created SubmitPaymentResponse
	if err := json.Unmarshal(body.Data, &created); err != nil {
		t.Fatal(err)
	}
	id := created.Alert.ID

	if status, _ := e.do(t, http.MethodGet, "/api/v1/alerts/"+id, ""); status != http.StatusOK {
		t.Fatalf("get status = %d", status)
	}
	if status, body := e.do(t, http.MethodGet, "/api/v1/alerts/ALT-0000-1", ""); status != http.StatusNotFound || body.Error != CodeNotFound {
		t.Fatalf("missing status = %d", status)
	}

	steps := []struct {
		status string
		want   int
	}{
		{"Closed", http.StatusBadRequest},
		{"Investigating", http.StatusOK},
		{"Verified", http.StatusOK},
	}
	for _, s := range steps {
		status, body := e.do(t, http.MethodPut, "/api/v1/alerts/"+id+"/status", `{"status": "`+s.status+`", "actor": "auditor"}`)
		if status != s.want {
			t.Fatalf("%s: status = %d (%s)", s.status, status, body.Message)
		}
	}

	status, body := e.do(t, http.MethodGet, "/api/v1/alerts/"+id+"/audit", "")
	if status != http.StatusOK {
		t.Fatalf("audit status = %d", status)
	}
	var trail AuditTrailResponse
	if err := json.Unmarshal(body.Data, &trail); err != nil {
		t.Fatal(err)
	}
	if len(trail.Entries) != 3 || !trail.Intact || trail.Entries[0].EventType != string(domain.AuditAlertCreated) {
		t.Fatalf("trail = %+v", trail)
	}
}

func TestVendorRiskProfileEndpoint(t *testing.T) {
	e := newEnv(t)
	for _, amt := range []string{"1200", "3400", "5600"} {
		if status, body := e.do(t, http.MethodPost, "/api/v1/payments", `{"amount": `+amt+`, "scheme": "PM Awas Yojana", "vendor": "VEN-REG"}`); status != http.StatusCreated {
			t.Fatalf("seed payment: %d %s", status, body.Message)
		}
	}

	status, body := e.do(t, http.MethodGet, "/api/v1/vendors/Sharma%20Constructions/risk-profile", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	var profile struct {
		VendorID          string      `json:"vendorId"`
		TotalTransactions int         `json:"totalTransactions"`
		RecentAlerts      []*AlertDTO `json:"recentAlerts"`
	}
	if err := json.Unmarshal(body.Data, &profile); err != nil {
		t.Fatal(err)
	}
	if profile.VendorID != "VEN-REG" || profile.TotalTransactions != 3 || len(profile.RecentAlerts) != 3 {
		t.Fatalf("profile = %+v", profile)
	}

	if status, _ := e.do(t, http.MethodGet, "/api/v1/vendors/VEN-404/risk-profile", ""); status != http.StatusNotFound {
		t.Fatalf("unknown vendor status = %d", status)
	}
}

func TestProbesAndMetrics(t *testing.T) {
	e := newEnv(t)

	if status, _ := e.do(t, http.MethodGet, "/sys/health", ""); status != http.StatusOK {
		t.Fatalf("health = %d", status)
	}
	if status, _ := e.do(t, http.MethodGet, "/sys/ready", ""); status != http.StatusOK {
		t.Fatalf("ready = %d", status)
	}
	e.ready = errors.New("db unreachable")
	if status, _ := e.do(t, http.MethodGet, "/sys/ready", ""); status != http.StatusServiceUnavailable {
		t.Fatalf("ready with failing check = %d", status)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "riskscoring_test") {
		t.Fatalf("metrics status = %d", rec.Code)
	}
}
