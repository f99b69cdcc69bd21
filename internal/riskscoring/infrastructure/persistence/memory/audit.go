package memory

import (
	"context"
	"sync"
	"time"

	"github.com/wyfcoding/paymentrisk/internal/riskscoring/domain"
)

// AuditLog domain.AuditLog 的内存实现
type AuditLog struct {
	mu      sync.Mutex
	entries []*domain.AuditEntry
	failErr error
}

// NewAuditLog 创建空审计日志
func NewAuditLog() *AuditLog {
	return &AuditLog{}
}

// FailWith 让后续 Append 返回 err，传入 nil 恢复
func (l *AuditLog) FailWith(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failErr = err
}

func (l *AuditLog) Append(_ context.Context, entry *domain.AuditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failErr != nil {
		return l.failErr
	}
	prev := ""
	if n := len(l.entries); n > 0 {
		prev = l.entries[n-1].Hash
	}
	entry.Timestamp = entry.Timestamp.UTC().Truncate(time.Millisecond)
	entry.Seal(prev)
	cp := *entry
	l.entries = append(l.entries, &cp)
	return nil
}

func (l *AuditLog) ListByTarget(_ context.Context, target string) ([]*domain.AuditEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*domain.AuditEntry
	for _, e := range l.entries {
		if e.Target == target {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Entries 按写入顺序返回全部条目
func (l *AuditLog) Entries() []*domain.AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*domain.AuditEntry, len(l.entries))
	for i, e := range l.entries {
		cp := *e
		out[i] = &cp
	}
	return out
}
