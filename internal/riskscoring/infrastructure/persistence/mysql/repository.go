// Package mysql 基于 GORM 的仓储实现，支持 MySQL 与 PostgreSQL
package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/wyfcoding/paymentrisk/internal/riskscoring/domain"
	"github.com/wyfcoding/paymentrisk/pkg/db"
)

// AutoMigrate 建表或补齐列
func AutoMigrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(&AlertModel{}, &VendorModel{}, &SchemeModel{}, &AuditModel{}, &AuditHeadModel{})
}

// riskRepository domain.Repository 的 GORM 实现
type riskRepository struct {
	db *gorm.DB
}

// NewRepository 创建仓储
func NewRepository(gdb *gorm.DB) domain.Repository {
	return &riskRepository{db: gdb}
}

func (r *riskRepository) conn(ctx context.Context) *gorm.DB {
	return db.Conn(ctx, r.db)
}

func (r *riskRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.WithTx(ctx, r.db, fn)
}

func (r *riskRepository) FindAlertBySubmissionKey(ctx context.Context, key string) (*domain.Alert, error) {
	return r.firstAlert(ctx, "submission_key = ?", key)
}

func (r *riskRepository) GetAlert(ctx context.Context, id string) (*domain.Alert, error) {
	return r.firstAlert(ctx, "id = ?", id)
}

func (r *riskRepository) LatestAlertByVendor(ctx context.Context, vendorID string) (*domain.Alert, error) {
	var m AlertModel
	err := r.conn(ctx).Where("vendor_id = ?", vendorID).
		Order("created_at DESC").Order("id DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toAlert(&m), nil
}

func (r *riskRepository) ListAlertsByVendor(ctx context.Context, vendorID string) ([]*domain.Alert, error) {
	return r.listAlerts(ctx, vendorID, time.Time{})
}

func (r *riskRepository) ListAlertsByVendorSince(ctx context.Context, vendorID string, since time.Time) ([]*domain.Alert, error) {
	return r.listAlerts(ctx, vendorID, since)
}

func (r *riskRepository) CountAlertsByVendorSince(ctx context.Context, vendorID string, since time.Time) (int64, error) {
	var n int64
	err := r.conn(ctx).Model(&AlertModel{}).
		Where("vendor_id = ? AND created_at >= ?", vendorID, since).
		Count(&n).Error
	return n, err
}

func (r *riskRepository) CountAlertsByBeneficiarySince(ctx context.Context, beneficiary string, since time.Time) (int64, error) {
	var n int64
	err := r.conn(ctx).Model(&AlertModel{}).
		Where("beneficiary = ? AND created_at >= ?", beneficiary, since).
		Count(&n).Error
	return n, err
}

func (r *riskRepository) SumAmountByScheme(ctx context.Context, schemeKey string) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := r.conn(ctx).Model(&AlertModel{}).
		Select("SUM(amount)").
		Where("scheme = ?", schemeKey).
		Scan(&sum).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

func (r *riskRepository) AverageRiskByVendor(ctx context.Context, vendorID string) (float64, int64, error) {
	var row struct {
		Avg   *float64
		Total int64
	}
	err := r.conn(ctx).Model(&AlertModel{}).
		Select("AVG(risk_score) AS avg, COUNT(*) AS total").
		Where("vendor_id = ?", vendorID).
		Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	if row.Avg == nil {
		return 0, 0, nil
	}
	return *row.Avg, row.Total, nil
}

func (r *riskRepository) CreateAlert(ctx context.Context, alert *domain.Alert) error {
	if err := r.conn(ctx).Create(toAlertModel(alert)).Error; err != nil {
		if db.IsDuplicateKey(err) && alert.SubmissionKey != "" {
			return domain.ErrDuplicateSubmission
		}
		return err
	}
	return nil
}

func (r *riskRepository) UpdateAlertStatus(ctx context.Context, id string, from, to domain.AlertStatus, at time.Time) error {
	res := r.conn(ctx).Model(&AlertModel{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(map[string]any{"status": string(to), "updated_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	existing, err := r.GetAlert(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return domain.ErrAlertNotFound
	}
	return domain.ErrStaleStatus
}

func (r *riskRepository) FindVendor(ctx context.Context, idOrName string) (*domain.Vendor, error) {
	var m VendorModel
	err := r.conn(ctx).Where("id = ?", idOrName).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = r.conn(ctx).Where("name = ?", idOrName).First(&m).Error
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toVendor(&m), nil
}

func (r *riskRepository) SaveVendor(ctx context.Context, vendor *domain.Vendor) error {
	return r.conn(ctx).Save(toVendorModel(vendor)).Error
}

// ApplyVendorAggregates 以 SQL 表达式原地累加，避免读改写竞争
func (r *riskRepository) ApplyVendorAggregates(ctx context.Context, upd domain.VendorAggregateUpdate, riskScore int) (*domain.Vendor, error) {
	res := r.conn(ctx).Model(&VendorModel{}).
		Where("id = ?", upd.VendorID).
		Updates(map[string]any{
			"total_volume":         gorm.Expr("total_volume + ?", upd.AmountDelta),
			"flagged_transactions": gorm.Expr("flagged_transactions + ?", upd.FlaggedDelta),
			"risk_score":           riskScore,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("vendor %s not found", upd.VendorID)
	}
	var m VendorModel
	if err := r.conn(ctx).Where("id = ?", upd.VendorID).First(&m).Error; err != nil {
		return nil, err
	}
	return toVendor(&m), nil
}

func (r *riskRepository) FindScheme(ctx context.Context, idOrName string) (*domain.Scheme, error) {
	var m SchemeModel
	err := r.conn(ctx).Where("id = ?", idOrName).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = r.conn(ctx).Where("name = ?", idOrName).First(&m).Error
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toScheme(&m), nil
}

func (r *riskRepository) SaveScheme(ctx context.Context, scheme *domain.Scheme) error {
	return r.conn(ctx).Save(toSchemeModel(scheme)).Error
}

func (r *riskRepository) firstAlert(ctx context.Context, query string, arg any) (*domain.Alert, error) {
	var m AlertModel
	if err := r.conn(ctx).Where(query, arg).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toAlert(&m), nil
}

// listAlerts 按创建时间倒序；告警 ID 随时间递增，作为同一时刻的次序
func (r *riskRepository) listAlerts(ctx context.Context, vendorID string, since time.Time) ([]*domain.Alert, error) {
	q := r.conn(ctx).Where("vendor_id = ?", vendorID)
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since)
	}
	var models []*AlertModel
	if err := q.Order("created_at DESC").Order("id DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	alerts := make([]*domain.Alert, len(models))
	for i, m := range models {
		alerts[i] = toAlert(m)
	}
	return alerts, nil
}
