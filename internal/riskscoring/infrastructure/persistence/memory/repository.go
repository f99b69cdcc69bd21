// Package memory 提供仓储端口的内存实现，用于本地开发与测试
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/paymentrisk/internal/riskscoring/domain"
)

type txKey struct{}

// Repository domain.Repository 的内存实现。
// 事务通过快照实现：fn 返回错误时整体恢复到事务开始前的状态。
type Repository struct {
	txMu sync.Mutex

	mu      sync.RWMutex
	alerts  map[string]*domain.Alert
	seq     map[string]int
	nextSeq int
	byKey   map[string]string
	vendors map[string]*domain.Vendor
	schemes map[string]*domain.Scheme
	faults  map[string]error
}

// NewRepository 创建空仓储
func NewRepository() *Repository {
	return &Repository{
		alerts:  make(map[string]*domain.Alert),
		seq:     make(map[string]int),
		byKey:   make(map[string]string),
		vendors: make(map[string]*domain.Vendor),
		schemes: make(map[string]*domain.Scheme),
		faults:  make(map[string]error),
	}
}

// FailOn 让指定方法返回 err，传入 nil 清除
func (r *Repository) FailOn(method string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.faults, method)
		return
	}
	r.faults[method] = err
}

func (r *Repository) fault(method string) error {
	return r.faults[method]
}

type snapshot struct {
	alerts  map[string]*domain.Alert
	seq     map[string]int
	nextSeq int
	byKey   map[string]string
	vendors map[string]*domain.Vendor
}

func (r *Repository) snapshot() snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := snapshot{
		alerts:  make(map[string]*domain.Alert, len(r.alerts)),
		seq:     make(map[string]int, len(r.seq)),
		nextSeq: r.nextSeq,
		byKey:   make(map[string]string, len(r.byKey)),
		vendors: make(map[string]*domain.Vendor, len(r.vendors)),
	}
	for k, v := range r.alerts {
		cp := *v
		s.alerts[k] = &cp
	}
	for k, v := range r.seq {
		s.seq[k] = v
	}
	for k, v := range r.byKey {
		s.byKey[k] = v
	}
	for k, v := range r.vendors {
		cp := *v
		s.vendors[k] = &cp
	}
	return s
}

func (r *Repository) restore(s snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts, r.seq, r.nextSeq, r.byKey, r.vendors = s.alerts, s.seq, s.nextSeq, s.byKey, s.vendors
}

// WithTx 串行执行事务，嵌套调用复用外层事务
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	r.txMu.Lock()
	defer r.txMu.Unlock()

	snap := r.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		r.restore(snap)
		return err
	}
	return nil
}

func (r *Repository) FindAlertBySubmissionKey(_ context.Context, key string) (*domain.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.fault("FindAlertBySubmissionKey"); err != nil {
		return nil, err
	}
	id, ok := r.byKey[key]
	if !ok {
		return nil, nil
	}
	return copyAlert(r.alerts[id]), nil
}

func (r *Repository) GetAlert(_ context.Context, id string) (*domain.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.fault("GetAlert"); err != nil {
		return nil, err
	}
	a, ok := r.alerts[id]
	if !ok {
		return nil, nil
	}
	return copyAlert(a), nil
}

func (r *Repository) LatestAlertByVendor(_ context.Context, vendorID string) (*domain.Alert, error) {
	if err := r.faultLocked("LatestAlertByVendor"); err != nil {
		return nil, err
	}
	alerts := r.vendorAlerts(vendorID, time.Time{})
	if len(alerts) == 0 {
		return nil, nil
	}
	return alerts[0], nil
}

func (r *Repository) ListAlertsByVendor(_ context.Context, vendorID string) ([]*domain.Alert, error) {
	if err := r.faultLocked("ListAlertsByVendor"); err != nil {
		return nil, err
	}
	return r.vendorAlerts(vendorID, time.Time{}), nil
}

func (r *Repository) ListAlertsByVendorSince(_ context.Context, vendorID string, since time.Time) ([]*domain.Alert, error) {
	if err := r.faultLocked("ListAlertsByVendorSince"); err != nil {
		return nil, err
	}
	return r.vendorAlerts(vendorID, since), nil
}

func (r *Repository) CountAlertsByVendorSince(_ context.Context, vendorID string, since time.Time) (int64, error) {
	if err := r.faultLocked("CountAlertsByVendorSince"); err != nil {
		return 0, err
	}
	return int64(len(r.vendorAlerts(vendorID, since))), nil
}

func (r *Repository) CountAlertsByBeneficiarySince(_ context.Context, beneficiary string, since time.Time) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.fault("CountAlertsByBeneficiarySince"); err != nil {
		return 0, err
	}
	var n int64
	for _, a := range r.alerts {
		if a.Beneficiary == beneficiary && !a.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *Repository) SumAmountByScheme(_ context.Context, schemeKey string) (decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.fault("SumAmountByScheme"); err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, a := range r.alerts {
		if a.Scheme == schemeKey {
			sum = sum.Add(a.Amount)
		}
	}
	return sum, nil
}

func (r *Repository) AverageRiskByVendor(_ context.Context, vendorID string) (float64, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.fault("AverageRiskByVendor"); err != nil {
		return 0, 0, err
	}
	var sum, n int64
	for _, a := range r.alerts {
		if a.VendorID == vendorID {
			sum += int64(a.RiskScore)
			n++
		}
	}
	if n == 0 {
		return 0, 0, nil
	}
	return float64(sum) / float64(n), n, nil
}

func (r *Repository) CreateAlert(_ context.Context, alert *domain.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fault("CreateAlert"); err != nil {
		return err
	}
	if _, exists := r.alerts[alert.ID]; exists {
		return fmt.Errorf("alert %s already exists", alert.ID)
	}
	if alert.SubmissionKey != "" {
		if _, taken := r.byKey[alert.SubmissionKey]; taken {
			return domain.ErrDuplicateSubmission
		}
		r.byKey[alert.SubmissionKey] = alert.ID
	}
	r.alerts[alert.ID] = copyAlert(alert)
	r.nextSeq++
	r.seq[alert.ID] = r.nextSeq
	return nil
}

func (r *Repository) UpdateAlertStatus(_ context.Context, id string, from, to domain.AlertStatus, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fault("UpdateAlertStatus"); err != nil {
		return err
	}
	a, ok := r.alerts[id]
	if !ok {
		return domain.ErrAlertNotFound
	}
	if a.Status != from {
		return domain.ErrStaleStatus
	}
	a.Status = to
	a.UpdatedAt = at
	return nil
}

func (r *Repository) FindVendor(_ context.Context, idOrName string) (*domain.Vendor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.fault("FindVendor"); err != nil {
		return nil, err
	}
	if v, ok := r.vendors[idOrName]; ok {
		cp := *v
		return &cp, nil
	}
	for _, v := range r.vendors {
		if v.Name == idOrName {
			cp := *v
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *Repository) SaveVendor(_ context.Context, vendor *domain.Vendor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fault("SaveVendor"); err != nil {
		return err
	}
	cp := *vendor
	r.vendors[vendor.ID] = &cp
	return nil
}

func (r *Repository) ApplyVendorAggregates(_ context.Context, upd domain.VendorAggregateUpdate, riskScore int) (*domain.Vendor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fault("ApplyVendorAggregates"); err != nil {
		return nil, err
	}
	v, ok := r.vendors[upd.VendorID]
	if !ok {
		return nil, fmt.Errorf("vendor %s not found", upd.VendorID)
	}
	v.TotalVolume = v.TotalVolume.Add(upd.AmountDelta)
	v.FlaggedTransactions += upd.FlaggedDelta
	v.RiskScore = riskScore
	cp := *v
	return &cp, nil
}

func (r *Repository) FindScheme(_ context.Context, idOrName string) (*domain.Scheme, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.fault("FindScheme"); err != nil {
		return nil, err
	}
	if s, ok := r.schemes[idOrName]; ok {
		cp := *s
		return &cp, nil
	}
	for _, s := range r.schemes {
		if s.Name == idOrName {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *Repository) SaveScheme(_ context.Context, scheme *domain.Scheme) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fault("SaveScheme"); err != nil {
		return err
	}
	cp := *scheme
	r.schemes[scheme.ID] = &cp
	return nil
}

// AlertCount 当前告警总数
func (r *Repository) AlertCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.alerts)
}

func (r *Repository) faultLocked(method string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fault(method)
}

// vendorAlerts 按创建时间倒序，同一时刻按写入顺序倒序
func (r *Repository) vendorAlerts(vendorID string, since time.Time) []*domain.Alert {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Alert
	for _, a := range r.alerts {
		if a.VendorID != vendorID || a.CreatedAt.Before(since) {
			continue
		}
		out = append(out, copyAlert(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return r.seq[out[i].ID] > r.seq[out[j].ID]
	})
	return out
}

func copyAlert(a *domain.Alert) *domain.Alert {
	cp := *a
	cp.Reasons = append([]string(nil), a.Reasons...)
	return &cp
}
