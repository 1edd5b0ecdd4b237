// Package crossref 提供提及检测与交叉引用索引
package crossref

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"story-crossref-api/internal/domain/entity"
	"story-crossref-api/internal/domain/repository"
	"story-crossref-api/pkg/errors"
	"story-crossref-api/pkg/logger"
	"story-crossref-api/pkg/tracer"

	"go.opentelemetry.io/otel/attribute"
)

// ResultCache 查询结果缓存端口（短 TTL 读穿缓存，可为 nil）
type ResultCache interface {
	GetOrLoad(ctx context.Context, key string, ttl time.Duration, loader func() (interface{}, error)) ([]byte, error)
	Invalidate(ctx context.Context, keys ...string) error
}

// 热门榜默认参数
const (
	defaultTrendingWindow = 7 * 24 * time.Hour
	maxTrendingWindow     = 90 * 24 * time.Hour
)

// Service 交叉引用服务：对外提供反向链接查询与手工重建入口
type Service struct {
	indexer  *Indexer
	hooks    *HookRunner
	stories  repository.StoryRepository
	mentions repository.MentionRepository
	catalog  repository.CatalogRepository

	cache    ResultCache
	cacheTTL time.Duration
}

// NewService 创建交叉引用服务；cache 可为 nil 表示不启用结果缓存
func NewService(
	indexer *Indexer,
	hooks *HookRunner,
	stories repository.StoryRepository,
	mentions repository.MentionRepository,
	catalogEntities repository.CatalogRepository,
	cache ResultCache,
	cacheTTL time.Duration,
) *Service {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &Service{
		indexer:  indexer,
		hooks:    hooks,
		stories:  stories,
		mentions: mentions,
		catalog:  catalogEntities,
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

// requireEntity 校验目录中确实存在该实体，未知实体返回 404
func (s *Service) requireEntity(ctx context.Context, entityType entity.EntityType, entityID string) error {
	e, err := s.catalog.GetByID(ctx, entityType, entityID)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to load catalog entity")
	}
	if e == nil {
		return errors.ErrEntityNotFound.WithDetail(fmt.Sprintf("%s/%s", entityType, entityID))
	}
	return nil
}

// Backlinks 查询实体的反向链接（只含已发布故事，按发布时间倒序）
func (s *Service) Backlinks(ctx context.Context, entityType entity.EntityType, entityID string, limit int) ([]*entity.Backlink, error) {
	ctx, span := tracer.Start(ctx, "crossref.Service.Backlinks")
	span.SetAttributes(
		attribute.String("entity.type", string(entityType)),
		attribute.String("entity.id", entityID),
	)
	defer span.End()

	if err := s.requireEntity(ctx, entityType, entityID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	if s.cache == nil {
		return s.mentions.Backlinks(ctx, entityType, entityID, limit)
	}

	key := fmt.Sprintf("crossref:backlinks:%s:%s:%d", entityType, entityID, limit)
	raw, err := s.cache.GetOrLoad(ctx, key, s.cacheTTL, func() (interface{}, error) {
		return s.mentions.Backlinks(ctx, entityType, entityID, limit)
	})
	if err != nil {
		// 缓存故障时直接回源
		return s.mentions.Backlinks(ctx, entityType, entityID, limit)
	}

	var links []*entity.Backlink
	if err := json.Unmarshal(raw, &links); err != nil {
		return nil, fmt.Errorf("failed to decode cached backlinks: %w", err)
	}
	return links, nil
}

// LatestBacklink 返回实体最近一次被已发布故事提及的反向链接，无则 (nil, nil)
func (s *Service) LatestBacklink(ctx context.Context, entityType entity.EntityType, entityID string) (*entity.Backlink, error) {
	links, err := s.Backlinks(ctx, entityType, entityID, 1)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, nil
	}
	return links[0], nil
}

// Stats 聚合实体的提及统计；无符合条件的提及时返回零值对象
func (s *Service) Stats(ctx context.Context, entityType entity.EntityType, entityID string) (*entity.MentionStats, error) {
	ctx, span := tracer.Start(ctx, "crossref.Service.Stats")
	span.SetAttributes(
		attribute.String("entity.type", string(entityType)),
		attribute.String("entity.id", entityID),
	)
	defer span.End()

	if err := s.requireEntity(ctx, entityType, entityID); err != nil {
		return nil, err
	}

	if s.cache == nil {
		return s.mentions.Stats(ctx, entityType, entityID)
	}

	key := fmt.Sprintf("crossref:stats:%s:%s", entityType, entityID)
	raw, err := s.cache.GetOrLoad(ctx, key, s.cacheTTL, func() (interface{}, error) {
		return s.mentions.Stats(ctx, entityType, entityID)
	})
	if err != nil {
		return s.mentions.Stats(ctx, entityType, entityID)
	}

	var stats entity.MentionStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, fmt.Errorf("failed to decode cached stats: %w", err)
	}
	return &stats, nil
}

// Trending 返回近期发布窗口内被提及最多的实体
// window<=0 时取默认 7 天，limit 夹在 [1,50]，默认 10
func (s *Service) Trending(ctx context.Context, window time.Duration, limit int) ([]*entity.TrendingEntity, error) {
	ctx, span := tracer.Start(ctx, "crossref.Service.Trending")
	defer span.End()

	if window <= 0 {
		window = defaultTrendingWindow
	}
	if window > maxTrendingWindow {
		window = maxTrendingWindow
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}
	span.SetAttributes(
		attribute.String("trending.window", window.String()),
		attribute.Int("trending.limit", limit),
	)

	since := time.Now().Add(-window)
	if s.cache == nil {
		return s.mentions.Trending(ctx, since, limit)
	}

	key := fmt.Sprintf("crossref:trending:%s:%d", window, limit)
	raw, err := s.cache.GetOrLoad(ctx, key, s.cacheTTL, func() (interface{}, error) {
		return s.mentions.Trending(ctx, since, limit)
	})
	if err != nil {
		return s.mentions.Trending(ctx, since, limit)
	}

	var trending []*entity.TrendingEntity
	if err := json.Unmarshal(raw, &trending); err != nil {
		return nil, fmt.Errorf("failed to decode cached trending: %w", err)
	}
	return trending, nil
}

// StoryMentions 返回故事的原始提及（不过滤故事状态），按位置升序
func (s *Service) StoryMentions(ctx context.Context, storyID string) ([]*entity.Mention, error) {
	story, err := s.stories.GetByID(ctx, storyID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to load story")
	}
	if story == nil {
		return nil, errors.ErrStoryNotFound
	}
	return s.mentions.ListByStory(ctx, storyID)
}

// Reprocess 手工重建单个故事的提及（管理/维护入口，不看故事状态）
// content 为空时使用库中存储的正文
func (s *Service) Reprocess(ctx context.Context, storyID, content string) (int, error) {
	ctx, span := tracer.Start(ctx, "crossref.Service.Reprocess")
	span.SetAttributes(attribute.String("story.id", storyID))
	defer span.End()

	story, err := s.stories.GetByID(ctx, storyID)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeDatabaseError, "failed to load story")
	}
	if story == nil {
		return 0, errors.ErrStoryNotFound
	}

	if content == "" {
		content = story.Content
	}

	// 重建前后的提及共同决定哪些实体的统计缓存失效
	var before []*entity.Mention
	if s.cache != nil {
		before, _ = s.mentions.ListByStory(ctx, storyID)
	}

	count, err := s.indexer.Reindex(ctx, storyID, content, "reprocess")
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		after, _ := s.mentions.ListByStory(ctx, storyID)
		s.invalidateStatsCaches(ctx, append(before, after...))
	}
	return count, nil
}

// invalidateStatsCaches 使受影响实体的统计缓存键失效
// 反向链接键带 limit 维度，靠短 TTL 自然过期
func (s *Service) invalidateStatsCaches(ctx context.Context, mentions []*entity.Mention) {
	seen := make(map[string]bool, len(mentions))
	keys := make([]string, 0, len(mentions))
	for _, m := range mentions {
		key := fmt.Sprintf("crossref:stats:%s:%s", m.EntityType, m.EntityID)
		if seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return
	}
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		logger.Warn(ctx, "failed to invalidate stats caches", "error", err.Error())
	}
}

// ContentUpdated 内容站在故事正文变更后调用
// 仅当故事当前处于已发布状态时刷新反向链接，其余状态为 no-op
func (s *Service) ContentUpdated(ctx context.Context, storyID, content string) error {
	story, err := s.stories.GetByID(ctx, storyID)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to load story")
	}
	if story == nil {
		return errors.ErrStoryNotFound
	}

	if content == "" {
		content = story.Content
	}
	s.hooks.FireUpdated(ctx, storyID, content, story.Status)
	return nil
}
