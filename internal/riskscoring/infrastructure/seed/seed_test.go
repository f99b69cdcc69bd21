package seed

import (
	"context"
	"testing"

	"github.com/wyfcoding/paymentrisk/internal/riskscoring/domain"
	"github.com/wyfcoding/paymentrisk/internal/riskscoring/infrastructure/persistence/memory"
)

func TestApplyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository()

	if err := repo.SaveVendor(ctx, &domain.Vendor{ID: "VEN-991", Name: "Agro Tech Supplies", RiskScore: 70, AccountStatus: domain.AccountFrozen}); err != nil {
		t.Fatal(err)
	}

	res, err := Apply(ctx, repo)
	if err != nil {
		t.Fatal(err)
	}
	if res.Schemes != 4 || res.Vendors != 3 {
		t.Fatalf("first apply = %+v", res)
	}

	res, err = Apply(ctx, repo)
	if err != nil {
		t.Fatal(err)
	}
	if res != (Result{}) {
		t.Fatalf("second apply = %+v", res)
	}

	v, err := repo.FindVendor(ctx, "VEN-991")
	if err != nil || v == nil {
		t.Fatalf("vendor = %v, %v", v, err)
	}
	if v.RiskScore != 70 || v.AccountStatus != domain.AccountFrozen {
		t.Fatalf("existing vendor overwritten: %+v", v)
	}

	s, err := repo.FindScheme(ctx, "Civil Aviation Authority of Singapore")
	if err != nil || s == nil || s.ID != "SCH-002" {
		t.Fatalf("scheme by name = %v, %v", s, err)
	}
	if !s.BudgetAllocated.Valid || s.BudgetAllocated.Decimal.IntPart() != 800_000_000 {
		t.Fatalf("budget = %v", s.BudgetAllocated)
	}
}
