// Package catalog 提供实体目录的加载与进程内缓存
package catalog

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"story-crossref-api/internal/domain/entity"
	"story-crossref-api/internal/domain/repository"
	"story-crossref-api/pkg/errors"
	"story-crossref-api/pkg/logger"
)

// Loader 目录加载器
// 目录在进程生命周期内缓存，显式 Reload 前允许读到旧数据；
// 单一类型加载失败只降级该类型，不影响其他类型
type Loader struct {
	repo repository.CatalogRepository

	mu      sync.RWMutex
	current *entity.Catalog

	sf singleflight.Group
}

// NewLoader 创建目录加载器
func NewLoader(repo repository.CatalogRepository) *Loader {
	return &Loader{repo: repo}
}

// Current 返回当前目录，首次调用时触发加载
// 并发的首次调用通过 singleflight 合并为一次加载
func (l *Loader) Current(ctx context.Context) (*entity.Catalog, error) {
	l.mu.RLock()
	cached := l.current
	l.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	v, err, _ := l.sf.Do("catalog", func() (interface{}, error) {
		return l.load(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*entity.Catalog), nil
}

// Reload 强制重新加载目录并替换缓存
func (l *Loader) Reload(ctx context.Context) (*entity.Catalog, error) {
	v, err, _ := l.sf.Do("catalog-reload", func() (interface{}, error) {
		return l.load(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*entity.Catalog), nil
}

// load 逐类型加载目录；全部类型都失败时才整体报错
func (l *Loader) load(ctx context.Context) (*entity.Catalog, error) {
	cat := entity.NewCatalog()
	loaded := 0

	for _, t := range entity.AllEntityTypes() {
		entries, err := l.repo.ListByType(ctx, t)
		if err != nil {
			// 单类型失败只降级该类型的检测
			logger.Warn(ctx, "catalog type load failed, skipping type",
				"entity_type", string(t), "error", err.Error())
			continue
		}
		for _, e := range entries {
			e.Type = t
		}
		cat.Entries[t] = entries
		loaded++
	}

	if loaded == 0 {
		return nil, errors.ErrCatalogLoadFailed.WithDetail("no entity type could be loaded")
	}

	l.mu.Lock()
	l.current = cat
	l.mu.Unlock()

	logger.Info(ctx, "catalog loaded", "types", loaded, "entities", cat.Size())
	return cat, nil
}
