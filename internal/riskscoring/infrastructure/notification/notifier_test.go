package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/paymentrisk/internal/riskscoring/domain"
)

func criticalAlert() *domain.Alert {
	return &domain.Alert{
		ID:        "ALT-2026-42",
		Vendor:    "Gupta Traders",
		VendorID:  "VEN-IRR",
		Scheme:    "SCH-001",
		Amount:    decimal.NewFromInt(2_500_000),
		RiskScore: 95,
		RiskLevel: domain.RiskCritical,
		Reasons:   []string{"amount exceeds vendor maximum"},
		District:  "Lucknow",
		CreatedAt: time.Date(2026, 1, 14, 6, 30, 0, 0, time.UTC),
	}
}

func TestNotifierWebhook(t *testing.T) {
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewCriticalAlertNotifier(NewWebhookSender(time.Second), []string{srv.URL})
	if err := n.NotifyCritical(context.Background(), criticalAlert()); err != nil {
		t.Fatal(err)
	}
	text := body["text"]
	for _, want := range []string{"[CRITICAL]", "ALT-2026-42", "INR 2,500,000", "amount exceeds vendor maximum"} {
		if !strings.Contains(text, want) {
			t.Fatalf("webhook text missing %q:\n%s", want, text)
		}
	}
}

func TestNotifierWebhookFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	n := NewCriticalAlertNotifier(NewWebhookSender(time.Second), []string{srv.URL})
	if err := n.NotifyCritical(context.Background(), criticalAlert()); err == nil {
		t.Fatal("expected error for 503")
	}
}

type recordingProducer struct {
	keys []string
}

func (p *recordingProducer) SendMessage(_ context.Context, _, key string, _ any) error {
	p.keys = append(p.keys, key)
	if key == "broken@cag.gov.in" {
		return errors.New("partition unavailable")
	}
	return nil
}

func TestNotifierSendsToEveryRecipient(t *testing.T) {
	p := &recordingProducer{}
	n := NewCriticalAlertNotifier(NewKafkaSender(p, "risk_notifications"),
		[]string{"cvo@cag.gov.in", "broken@cag.gov.in", "audit@cag.gov.in"})

	err := n.NotifyCritical(context.Background(), criticalAlert())
	if err == nil || !strings.Contains(err.Error(), "broken@cag.gov.in") {
		t.Fatalf("err = %v", err)
	}
	if len(p.keys) != 3 {
		t.Fatalf("sent %d messages, want 3", len(p.keys))
	}

	if NewCriticalAlertNotifier(LogSender{}, nil).recipients[0] != DefaultRecipient {
		t.Fatal("default recipient not applied")
	}
}

func TestSMTPSenderMessage(t *testing.T) {
	var gotAddr string
	var gotMsg []byte
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.gov", Port: 587, From: "alerts@example.gov"})
	s.sendMail = func(addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		gotAddr, gotMsg = addr, msg
		return nil
	}

	if err := s.Send(context.Background(), "cvo@cag.gov.in", "subject line", "line one\nline two"); err != nil {
		t.Fatal(err)
	}
	if gotAddr != "smtp.example.gov:587" {
		t.Fatalf("addr = %s", gotAddr)
	}
	msg := string(gotMsg)
	if !strings.Contains(msg, "Subject: subject line\r\n") || !strings.Contains(msg, "line one\r\nline two") {
		t.Fatalf("message = %q", msg)
	}
}
