package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"story-crossref-api/internal/domain/entity"
	"story-crossref-api/internal/domain/repository"
)

// StoryRepository 故事仓储实现
// stories 表由内容站拥有，这里只读正文、只写状态与发布时间
type StoryRepository struct {
	client *Client
}

// NewStoryRepository 创建故事仓储
func NewStoryRepository(client *Client) *StoryRepository {
	return &StoryRepository{client: client}
}

// GetByID 获取故事，不存在时返回 (nil, nil)
func (r *StoryRepository) GetByID(ctx context.Context, id string) (*entity.Story, error) {
	ctx, span := tracer.Start(ctx, "postgres.StoryRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var story entity.Story
	if err := db.First(&story, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get story: %w", err)
	}
	return &story, nil
}

// ListPublished 分页列出已发布故事，按 id 升序保证遍历稳定
func (r *StoryRepository) ListPublished(ctx context.Context, p repository.Pagination) ([]*entity.Story, error) {
	ctx, span := tracer.Start(ctx, "postgres.StoryRepository.ListPublished")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var stories []*entity.Story
	if err := db.Where("status = ?", entity.StoryStatusPublished).
		Order("id ASC").
		Offset(p.Offset()).
		Limit(p.Limit()).
		Find(&stories).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list published stories: %w", err)
	}
	return stories, nil
}

// UpdateStatus 更新故事状态，publishedAt 非 nil 时一并写入发布时间
func (r *StoryRepository) UpdateStatus(ctx context.Context, id string, status entity.StoryStatus, publishedAt *time.Time) error {
	ctx, span := tracer.Start(ctx, "postgres.StoryRepository.UpdateStatus")
	defer span.End()

	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	if publishedAt != nil {
		updates["published_at"] = *publishedAt
	}

	db := getDB(ctx, r.client.db)
	result := db.Model(&entity.Story{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		span.RecordError(result.Error)
		return fmt.Errorf("failed to update story status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("story %s not found", id)
	}
	return nil
}
