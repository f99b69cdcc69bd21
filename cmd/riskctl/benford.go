package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/wyfcoding/paymentrisk/internal/riskscoring/domain"
)

func benfordCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "benford <amount>...",
		Short: "Check a batch of amounts against Benford's law",
		Long: `Compares the leading-digit distribution of the given amounts with
Benford's law using a chi-square test. Fewer than 10 amounts are
reported as compliant.

Examples:
  riskctl benford 1200 3400 1875.50 ...
  riskctl benford --json $(cat amounts.txt)`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amounts, err := parseAmounts(args)
			if err != nil {
				return err
			}
			report := domain.AnalyzeAmounts(amounts)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printBenford(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Output as JSON")
	return cmd
}

func parseAmounts(args []string) ([]decimal.Decimal, error) {
	amounts := make([]decimal.Decimal, 0, len(args))
	for _, a := range args {
		d, err := decimal.NewFromString(a)
		if err != nil {
			return nil, fmt.Errorf("invalid amount %q: %w", a, err)
		}
		if !d.IsPositive() {
			return nil, fmt.Errorf("amount %q must be positive", a)
		}
		amounts = append(amounts, d)
	}
	return amounts, nil
}

func printBenford(w io.Writer, r domain.BenfordReport) {
	fmt.Fprintf(w, "Samples:    %s\n", humanize.Comma(int64(r.SampleSize)))
	fmt.Fprintf(w, "Chi-square: %.3f\n", r.ChiSquare)
	fmt.Fprintf(w, "Compliant:  %t\n", r.Compliant)
	if len(r.SuspiciousDigits) > 0 {
		fmt.Fprintf(w, "Suspicious: %v\n", r.SuspiciousDigits)
	}
	fmt.Fprintln(w, "\nDigit  Observed  Expected")
	for i := 0; i < 9; i++ {
		fmt.Fprintf(w, "%5d  %8d  %8.0f\n", i+1, r.Observed[i], math.Round(r.Expected[i]))
	}
}
