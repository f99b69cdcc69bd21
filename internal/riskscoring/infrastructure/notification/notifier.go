package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/wyfcoding/paymentrisk/internal/riskscoring/domain"
)

// DefaultRecipient 未配置接收者时的默认目标
const DefaultRecipient = "risk-operations"

// CriticalAlertNotifier 实现 domain.Notifier，向每个接收者发送一份高危告警
type CriticalAlertNotifier struct {
	sender     Sender
	recipients []string
}

// NewCriticalAlertNotifier 创建通知器
func NewCriticalAlertNotifier(sender Sender, recipients []string) *CriticalAlertNotifier {
	if len(recipients) == 0 {
		recipients = []string{DefaultRecipient}
	}
	return &CriticalAlertNotifier{sender: sender, recipients: recipients}
}

// NotifyCritical 逐个接收者发送，失败汇总返回
func (n *CriticalAlertNotifier) NotifyCritical(ctx context.Context, alert *domain.Alert) error {
	subject := fmt.Sprintf("[%s] Suspicious payment %s scored %d", strings.ToUpper(string(alert.RiskLevel)), alert.ID, alert.RiskScore)
	content := renderAlert(alert)

	var errs []error
	for _, to := range n.recipients {
		if err := n.sender.Send(ctx, to, subject, content); err != nil {
			errs = append(errs, fmt.Errorf("notify %s: %w", to, err))
		}
	}
	return errors.Join(errs...)
}

func renderAlert(a *domain.Alert) string {
	amount, _ := a.Amount.Round(2).Float64()
	var b strings.Builder
	fmt.Fprintf(&b, "Alert: %s\n", a.ID)
	fmt.Fprintf(&b, "Vendor: %s (%s)\n", a.Vendor, a.VendorID)
	fmt.Fprintf(&b, "Scheme: %s\n", a.Scheme)
	fmt.Fprintf(&b, "Amount: INR %s\n", humanize.CommafWithDigits(amount, 2))
	fmt.Fprintf(&b, "Risk: %d (%s)\n", a.RiskScore, a.RiskLevel)
	if a.District != "" {
		fmt.Fprintf(&b, "District: %s\n", a.District)
	}
	if len(a.Reasons) > 0 {
		b.WriteString("Reasons:\n")
		for _, r := range a.Reasons {
			b.WriteString("  - " + r + "\n")
		}
	}
	fmt.Fprintf(&b, "Raised at: %s", a.CreatedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	return b.String()
}
