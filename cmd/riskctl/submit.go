package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	httpapi "github.com/wyfcoding/paymentrisk/internal/riskscoring/interfaces/http"
	"github.com/wyfcoding/paymentrisk/pkg/utils"
)

type apiEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func submitCmd() *cobra.Command {
	var (
		server  string
		amount  string
		req     httpapi.SubmitPaymentRequest
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a payment to a running scoring service",
		Example: `  riskctl submit --amount 250000 --scheme SCH-001 --vendor "Agro Tech Supplies" --district Lucknow`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			amt, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", amount, err)
			}
			req.Amount = amt
			if req.SubmissionKey == "" {
				req.SubmissionKey = utils.NewUUID()
			}

			var env apiEnvelope
			resp, err := resty.New().SetTimeout(timeout).R().
				SetContext(cmd.Context()).
				SetBody(req).
				SetResult(&env).
				SetError(&env).
				Post(server + "/api/v1/payments")
			if err != nil {
				return fmt.Errorf("submit payment: %w", err)
			}
			if resp.IsError() {
				return fmt.Errorf("server returned %d %s: %s", resp.StatusCode(), env.Error, env.Message)
			}

			var out httpapi.SubmitPaymentResponse
			if err := json.Unmarshal(env.Data, &out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			a := out.Alert
			fmt.Fprintf(cmd.OutOrStdout(), "%s  score=%d level=%s anomaly=%t replayed=%t\n", a.ID, a.RiskScore, a.RiskLevel, out.IsAnomaly, out.Replayed)
			for _, r := range a.Reasons {
				fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", r)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&server, "server", "http://localhost:8080", "Scoring service base URL")
	f.DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")
	f.StringVarP(&amount, "amount", "a", "", "Payment amount")
	f.StringVarP(&req.Scheme, "scheme", "s", "", "Scheme ID or name")
	f.StringVar(&req.Vendor, "vendor", "", "Vendor ID or name")
	f.StringVar(&req.Beneficiary, "beneficiary", "", "Beneficiary identifier")
	f.StringVar(&req.Description, "description", "", "Free text description")
	f.StringVar(&req.District, "district", "", "District name")
	f.StringVar(&req.SubmissionKey, "key", "", "Idempotency key, generated when empty")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("scheme")
	_ = cmd.MarkFlagRequired("vendor")
	return cmd
}
