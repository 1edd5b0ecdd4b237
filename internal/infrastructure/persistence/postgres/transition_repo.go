package postgres

import (
	"context"
	"fmt"

	"story-crossref-api/internal/domain/entity"
)

// TransitionRepository 工作流转换日志仓储实现
// 只追加：不暴露更新和删除
type TransitionRepository struct {
	client *Client
}

// NewTransitionRepository 创建转换日志仓储
func NewTransitionRepository(client *Client) *TransitionRepository {
	return &TransitionRepository{client: client}
}

// Append 追加一条转换记录
func (r *TransitionRepository) Append(ctx context.Context, t *entity.WorkflowTransition) error {
	ctx, span := tracer.Start(ctx, "postgres.TransitionRepository.Append")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(t).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to append transition: %w", err)
	}
	return nil
}

// ListByStory 按插入顺序返回故事的完整审计轨迹
func (r *TransitionRepository) ListByStory(ctx context.Context, storyID string) ([]*entity.WorkflowTransition, error) {
	ctx, span := tracer.Start(ctx, "postgres.TransitionRepository.ListByStory")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var transitions []*entity.WorkflowTransition
	if err := db.Where("story_id = ?", storyID).
		Order("created_at ASC, id ASC").
		Find(&transitions).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list transitions for story %s: %w", storyID, err)
	}
	return transitions, nil
}
