package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/paymentrisk/internal/riskscoring/domain"
	"github.com/wyfcoding/paymentrisk/internal/riskscoring/infrastructure/persistence/memory"
	pkgcache "github.com/wyfcoding/paymentrisk/pkg/cache"
)

func TestSchemeCachingRepository(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository()
	scheme := &domain.Scheme{
		ID:              "SCH-001",
		Name:            "PM Awas Yojana",
		BudgetAllocated: decimal.NewNullDecimal(decimal.NewFromInt(1_000_000)),
	}
	if err := repo.SaveScheme(ctx, scheme); err != nil {
		t.Fatal(err)
	}

	local, err := pkgcache.NewLocalCache(time.Minute, 8)
	if err != nil {
		t.Fatal(err)
	}
	defer local.Close()
	cached := NewSchemeCachingRepository(repo, local)

	first, err := cached.FindScheme(ctx, "PM Awas Yojana")
	if err != nil || first == nil {
		t.Fatalf("first lookup: %v %v", first, err)
	}

	// 缓存命中时不再访问底层仓储
	repo.FailOn("FindScheme", errors.New("db down"))
	second, err := cached.FindScheme(ctx, "PM Awas Yojana")
	if err != nil || second.ID != "SCH-001" || !second.BudgetAllocated.Decimal.Equal(decimal.NewFromInt(1_000_000)) {
		t.Fatalf("cached lookup: %+v %v", second, err)
	}
	if _, err := cached.FindScheme(ctx, "SCH-001"); err == nil {
		t.Fatal("uncached key should reach the repository")
	}
	repo.FailOn("FindScheme", nil)

	missing, err := cached.FindScheme(ctx, "Unknown Scheme")
	if err != nil || missing != nil {
		t.Fatalf("missing scheme: %v %v", missing, err)
	}

	scheme.Status = "CLOSED"
	if err := cached.SaveScheme(ctx, scheme); err != nil {
		t.Fatal(err)
	}
	fresh, _ := cached.FindScheme(ctx, "PM Awas Yojana")
	if fresh.Status != "CLOSED" {
		t.Fatalf("stale cache after save: %+v", fresh)
	}
}

// foldingRepo 按 MySQL 默认排序规则，名称查询不区分大小写
type foldingRepo struct {
	*memory.Repository
	names []string
}

func (r foldingRepo) FindScheme(ctx context.Context, idOrName string) (*domain.Scheme, error) {
	for _, n := range r.names {
		if strings.EqualFold(n, idOrName) {
			return r.Repository.FindScheme(ctx, n)
		}
	}
	return r.Repository.FindScheme(ctx, idOrName)
}

func TestSchemeCacheInvalidatesEveryLookupSpelling(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository()
	budget := func(v int64) decimal.NullDecimal { return decimal.NewNullDecimal(decimal.NewFromInt(v)) }
	scheme := &domain.Scheme{ID: "SCH-002", Name: "PM-KISAN", BudgetAllocated: budget(1_000_000)}
	if err := repo.SaveScheme(ctx, scheme); err != nil {
		t.Fatal(err)
	}

	local, err := pkgcache.NewLocalCache(time.Minute, 8)
	if err != nil {
		t.Fatal(err)
	}
	defer local.Close()
	cached := NewSchemeCachingRepository(foldingRepo{Repository: repo, names: []string{"PM-KISAN"}}, local)

	spellings := []string{"pm-kisan", "PM-KISAN", "Pm-Kisan", "SCH-002"}
	for _, s := range spellings {
		got, err := cached.FindScheme(ctx, s)
		if err != nil || got == nil || got.ID != "SCH-002" {
			t.Fatalf("lookup %q: %+v %v", s, got, err)
		}
	}

	scheme.BudgetAllocated = budget(2_000_000)
	if err := cached.SaveScheme(ctx, scheme); err != nil {
		t.Fatal(err)
	}
	for _, s := range spellings {
		got, _ := cached.FindScheme(ctx, s)
		if got == nil || !got.BudgetAllocated.Decimal.Equal(decimal.NewFromInt(2_000_000)) {
			t.Fatalf("stale budget for %q: %+v", s, got)
		}
	}

	// 改名后旧名称不再命中
	scheme.Name = "PM-KISAN 2.0"
	if err := cached.SaveScheme(ctx, scheme); err != nil {
		t.Fatal(err)
	}
	if got, _ := cached.FindScheme(ctx, "PM-KISAN 2.0"); got == nil {
		t.Fatal("renamed scheme not found")
	}
	if got, err := cached.FindScheme(ctx, "pm-kisan"); err != nil || got != nil {
		t.Fatalf("old name still resolves: %+v %v", got, err)
	}
}

type stubLocker struct {
	key string
	ttl time.Duration
	err error
}

func (s *stubLocker) Lock(_ context.Context, key string, ttl time.Duration) (func(), error) {
	s.key, s.ttl = key, ttl
	if s.err != nil {
		return nil, s.err
	}
	return func() {}, nil
}

func TestVendorLocker(t *testing.T) {
	stub := &stubLocker{}
	l := NewVendorLocker(stub, 0)
	release, err := l.Lock(context.Background(), "VEN-REG")
	if err != nil {
		t.Fatal(err)
	}
	release()
	if stub.key != "riskscoring:vendor-lock:VEN-REG" || stub.ttl != 10*time.Second {
		t.Fatalf("key=%s ttl=%s", stub.key, stub.ttl)
	}

	stub.err = pkgcache.ErrLockNotAcquired
	if _, err := l.Lock(context.Background(), "VEN-REG"); !errors.Is(err, pkgcache.ErrLockNotAcquired) {
		t.Fatalf("err = %v", err)
	}
}
