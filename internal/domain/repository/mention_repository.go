// Package repository 定义数据访问层接口
package repository

import (
	"context"
	"time"

	"story-crossref-api/internal/domain/entity"
)

// MentionRepository 提及存储
// 唯一的写入原语是整组替换（delete-then-insert），不提供单条更新
type MentionRepository interface {
	// ReplaceForStory 原子替换指定故事的全部提及：
	// 同一事务内先删后插，读者只会看到替换前或替换后的完整集合
	ReplaceForStory(ctx context.Context, storyID string, mentions []*entity.Mention) error
	// DeleteForStory 删除指定故事的全部提及
	DeleteForStory(ctx context.Context, storyID string) error
	// DeleteAll 清空提及表（全量重建的第一步）
	DeleteAll(ctx context.Context) error
	// ListByStory 按 position 升序返回故事的原始提及，不过滤故事状态
	ListByStory(ctx context.Context, storyID string) ([]*entity.Mention, error)
	// Backlinks 返回指向实体的反向链接，只含已发布故事，按发布时间倒序
	Backlinks(ctx context.Context, entityType entity.EntityType, entityID string, limit int) ([]*entity.Backlink, error)
	// Stats 聚合实体在已发布故事中的提及统计；无数据时返回零值对象
	Stats(ctx context.Context, entityType entity.EntityType, entityID string) (*entity.MentionStats, error)
	// Trending 返回 since 之后发布的故事中被提及最多的实体，按提及次数倒序
	Trending(ctx context.Context, since time.Time, limit int) ([]*entity.TrendingEntity, error)
}
