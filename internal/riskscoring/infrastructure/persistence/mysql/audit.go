package mysql

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wyfcoding/paymentrisk/internal/riskscoring/domain"
	"github.com/wyfcoding/paymentrisk/pkg/db"
)

const auditHeadID = 1

// auditLog domain.AuditLog 的 GORM 实现。
// 链头保存在单行表中，追加时以 SELECT ... FOR UPDATE 锁住链头。
type auditLog struct {
	db *gorm.DB
}

// NewAuditLog 创建审计日志
func NewAuditLog(gdb *gorm.DB) domain.AuditLog {
	return &auditLog{db: gdb}
}

func (l *auditLog) Append(ctx context.Context, entry *domain.AuditEntry) error {
	return db.WithTx(ctx, l.db, func(ctx context.Context) error {
		tx := db.Conn(ctx, l.db)

		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&AuditHeadModel{ID: auditHeadID}).Error; err != nil {
			return err
		}
		var head AuditHeadModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", auditHeadID).
			First(&head).Error; err != nil {
			return err
		}

		entry.Timestamp = entry.Timestamp.UTC().Truncate(time.Millisecond)
		entry.Seal(head.Hash)
		if err := tx.Create(toAuditModel(entry)).Error; err != nil {
			return err
		}
		return tx.Model(&AuditHeadModel{}).
			Where("id = ?", auditHeadID).
			Update("hash", entry.Hash).Error
	})
}

func (l *auditLog) ListByTarget(ctx context.Context, target string) ([]*domain.AuditEntry, error) {
	var models []*AuditModel
	if err := db.Conn(ctx, l.db).Where("target = ?", target).Order("seq ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	entries := make([]*domain.AuditEntry, len(models))
	for i, m := range models {
		entries[i] = toAuditEntry(m)
	}
	return entries, nil
}
