package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/allegro/bigcache/v3"
)

// LocalCache 基于 bigcache 的进程内 JSON 缓存
type LocalCache struct {
	bc *bigcache.BigCache
}

// NewLocalCache 创建本地缓存，ttl 为条目存活时间，maxMB 为内存上限
func NewLocalCache(ttl time.Duration, maxMB int) (*LocalCache, error) {
	cfg := bigcache.DefaultConfig(ttl)
	cfg.HardMaxCacheSize = maxMB
	cfg.Verbose = false
	bc, err := bigcache.New(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	return &LocalCache{bc: bc}, nil
}

// GetJSON 读取并反序列化；未命中返回 false
func (lc *LocalCache) GetJSON(key string, dest any) (bool, error) {
	data, err := lc.bc.Get(key)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(data, dest)
}

// SetJSON 序列化后写入
func (lc *LocalCache) SetJSON(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return lc.bc.Set(key, data)
}

// Delete 删除条目
func (lc *LocalCache) Delete(key string) error {
	err := lc.bc.Delete(key)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil
	}
	return err
}

// Close 关闭缓存
func (lc *LocalCache) Close() error {
	return lc.bc.Close()
}
