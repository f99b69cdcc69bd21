package cache

import (
	"context"
	"strings"

	"github.com/wyfcoding/paymentrisk/internal/riskscoring/domain"
	"github.com/wyfcoding/paymentrisk/pkg/logger"
)

const (
	// 计划记录按 ID 只存一份
	schemeIDPrefix = "scheme:id:"
	// 调用方传入的 ID 或名称指向计划 ID
	schemeAliasPrefix = "scheme:alias:"
)

// JSONCache 进程内 JSON 缓存，由 pkg/cache.LocalCache 实现
type JSONCache interface {
	GetJSON(key string, dest any) (bool, error)
	SetJSON(key string, value any) error
	Delete(key string) error
}

// SchemeCachingRepository 为计划查询加一层读穿缓存，其余方法直接委托
type SchemeCachingRepository struct {
	domain.Repository
	cache JSONCache
}

// NewSchemeCachingRepository 包装仓储
func NewSchemeCachingRepository(repo domain.Repository, cache JSONCache) *SchemeCachingRepository {
	return &SchemeCachingRepository{Repository: repo, cache: cache}
}

// FindScheme 只缓存命中结果，未登记的计划每次回源。
// 查询串经别名映射到计划 ID，SaveScheme 失效 ID 键后所有别名随之失效。
func (r *SchemeCachingRepository) FindScheme(ctx context.Context, idOrName string) (*domain.Scheme, error) {
	if scheme := r.cached(ctx, idOrName); scheme != nil {
		return scheme, nil
	}

	scheme, err := r.Repository.FindScheme(ctx, idOrName)
	if err != nil || scheme == nil {
		return scheme, err
	}
	if err := r.cache.SetJSON(schemeIDPrefix+scheme.ID, scheme); err != nil {
		logger.Warn(ctx, "scheme cache write failed", "key", scheme.ID, "error", err)
		return scheme, nil
	}
	if err := r.cache.SetJSON(schemeAliasPrefix+idOrName, scheme.ID); err != nil {
		logger.Warn(ctx, "scheme cache write failed", "key", idOrName, "error", err)
	}
	return scheme, nil
}

func (r *SchemeCachingRepository) cached(ctx context.Context, idOrName string) *domain.Scheme {
	var id string
	ok, err := r.cache.GetJSON(schemeAliasPrefix+idOrName, &id)
	if err != nil {
		logger.Warn(ctx, "scheme cache read failed", "key", idOrName, "error", err)
	}
	if !ok || err != nil {
		return nil
	}

	var scheme domain.Scheme
	ok, err = r.cache.GetJSON(schemeIDPrefix+id, &scheme)
	if err != nil {
		logger.Warn(ctx, "scheme cache read failed", "key", id, "error", err)
	}
	if !ok || err != nil {
		return nil
	}
	// 改名后旧名称不再指向该计划
	if scheme.ID != idOrName && !strings.EqualFold(scheme.Name, idOrName) {
		_ = r.cache.Delete(schemeAliasPrefix + idOrName)
		return nil
	}
	return &scheme
}

// SaveScheme 写库后失效该计划的缓存记录
func (r *SchemeCachingRepository) SaveScheme(ctx context.Context, scheme *domain.Scheme) error {
	if err := r.Repository.SaveScheme(ctx, scheme); err != nil {
		return err
	}
	_ = r.cache.Delete(schemeIDPrefix + scheme.ID)
	return nil
}
