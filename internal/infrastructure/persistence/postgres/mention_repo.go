package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"story-crossref-api/internal/domain/entity"
	"story-crossref-api/internal/domain/repository"
)

// MentionRepository 提及仓储实现
type MentionRepository struct {
	client *Client
}

// NewMentionRepository 创建提及仓储
func NewMentionRepository(client *Client) *MentionRepository {
	return &MentionRepository{client: client}
}

// ReplaceForStory 原子替换故事的提及集合
// 同一事务内先删后插；advisory lock 按 story_id 串行化并发替换，
// 避免两次替换的 delete/insert 交错产生混合集合
func (r *MentionRepository) ReplaceForStory(ctx context.Context, storyID string, mentions []*entity.Mention) error {
	ctx, span := tracer.Start(ctx, "postgres.MentionRepository.ReplaceForStory")
	defer span.End()

	replace := func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", storyID).Error; err != nil {
			return fmt.Errorf("failed to acquire story lock: %w", err)
		}
		if err := tx.Where("story_id = ?", storyID).Delete(&entity.Mention{}).Error; err != nil {
			return fmt.Errorf("failed to delete old mentions: %w", err)
		}
		if len(mentions) > 0 {
			if err := tx.CreateInBatches(mentions, 200).Error; err != nil {
				return fmt.Errorf("failed to insert mentions: %w", err)
			}
		}
		return nil
	}

	var err error
	if tx, ok := ctx.Value(repository.TxKey{}).(*gorm.DB); ok {
		err = replace(tx)
	} else {
		err = r.client.db.WithContext(ctx).Transaction(replace)
	}
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to replace mentions for story %s: %w", storyID, err)
	}
	return nil
}

// DeleteForStory 删除故事的全部提及
func (r *MentionRepository) DeleteForStory(ctx context.Context, storyID string) error {
	ctx, span := tracer.Start(ctx, "postgres.MentionRepository.DeleteForStory")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Where("story_id = ?", storyID).Delete(&entity.Mention{}).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete mentions for story %s: %w", storyID, err)
	}
	return nil
}

// DeleteAll 清空提及表
func (r *MentionRepository) DeleteAll(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "postgres.MentionRepository.DeleteAll")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Where("1 = 1").Delete(&entity.Mention{}).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete all mentions: %w", err)
	}
	return nil
}

// ListByStory 按正文位置升序返回故事的提及
func (r *MentionRepository) ListByStory(ctx context.Context, storyID string) ([]*entity.Mention, error) {
	ctx, span := tracer.Start(ctx, "postgres.MentionRepository.ListByStory")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var mentions []*entity.Mention
	if err := db.Where("story_id = ?", storyID).
		Order("position ASC").
		Find(&mentions).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list mentions for story %s: %w", storyID, err)
	}
	return mentions, nil
}

// Backlinks 返回引用实体的反向链接，只含已发布故事，按发布时间倒序
func (r *MentionRepository) Backlinks(ctx context.Context, entityType entity.EntityType, entityID string, limit int) ([]*entity.Backlink, error) {
	ctx, span := tracer.Start(ctx, "postgres.MentionRepository.Backlinks")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var backlinks []*entity.Backlink
	err := db.Table("story_mentions").
		Select("story_mentions.*, stories.slug AS story_slug, stories.title AS story_title, stories.published_at AS story_published_at").
		Joins("JOIN stories ON stories.id = story_mentions.story_id").
		Where("story_mentions.entity_type = ? AND story_mentions.entity_id = ?", entityType, entityID).
		Where("stories.status = ?", entity.StoryStatusPublished).
		Order("stories.published_at DESC").
		Limit(limit).
		Find(&backlinks).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list backlinks for %s/%s: %w", entityType, entityID, err)
	}
	return backlinks, nil
}

// Trending 返回 since 之后发布的故事中被提及最多的实体
func (r *MentionRepository) Trending(ctx context.Context, since time.Time, limit int) ([]*entity.TrendingEntity, error) {
	ctx, span := tracer.Start(ctx, "postgres.MentionRepository.Trending")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var trending []*entity.TrendingEntity
	err := db.Table("story_mentions").
		Select("story_mentions.entity_type, story_mentions.entity_id, story_mentions.entity_name, "+
			"COUNT(*) AS mention_count, "+
			"MAX(stories.published_at) AS last_mentioned_at").
		Joins("JOIN stories ON stories.id = story_mentions.story_id").
		Where("stories.status = ?", entity.StoryStatusPublished).
		Where("stories.published_at >= ?", since).
		Group("story_mentions.entity_type, story_mentions.entity_id, story_mentions.entity_name").
		Order("mention_count DESC, story_mentions.entity_name ASC").
		Limit(limit).
		Scan(&trending).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to aggregate trending entities: %w", err)
	}
	return trending, nil
}

// Stats 聚合实体在已发布故事中的提及统计
func (r *MentionRepository) Stats(ctx context.Context, entityType entity.EntityType, entityID string) (*entity.MentionStats, error) {
	ctx, span := tracer.Start(ctx, "postgres.MentionRepository.Stats")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var stats entity.MentionStats
	err := db.Table("story_mentions").
		Select("COUNT(*) AS total_mentions, "+
			"MIN(stories.published_at) AS first_mentioned_at, "+
			"MAX(stories.published_at) AS last_mentioned_at, "+
			"COALESCE(AVG(story_mentions.confidence_score), 0) AS avg_confidence").
		Joins("JOIN stories ON stories.id = story_mentions.story_id").
		Where("story_mentions.entity_type = ? AND story_mentions.entity_id = ?", entityType, entityID).
		Where("stories.status = ?", entity.StoryStatusPublished).
		Scan(&stats).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to aggregate stats for %s/%s: %w", entityType, entityID, err)
	}
	return &stats, nil
}
