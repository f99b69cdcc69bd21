// Package cache 基于 Redis 与 bigcache 的仓储辅助组件
package cache

import (
	"context"
	"fmt"
	"time"

	pkgcache "github.com/wyfcoding/paymentrisk/pkg/cache"
)

const vendorLockPrefix = "riskscoring:vendor-lock:"

// Locker 最小化的分布式锁接口，由 pkg/cache.RedisCache 实现
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

var _ Locker = (*pkgcache.RedisCache)(nil)

// VendorLocker 以 Redis SET NX 串行化同一供应商的评分
type VendorLocker struct {
	locker Locker
	ttl    time.Duration
}

// NewVendorLocker 创建供应商锁，ttl 同时是等待上限
func NewVendorLocker(locker Locker, ttl time.Duration) *VendorLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &VendorLocker{locker: locker, ttl: ttl}
}

func (l *VendorLocker) Lock(ctx context.Context, vendorID string) (func(), error) {
	release, err := l.locker.Lock(ctx, vendorLockPrefix+vendorID, l.ttl)
	if err != nil {
		return nil, fmt.Errorf("lock vendor %s: %w", vendorID, err)
	}
	return release, nil
}
