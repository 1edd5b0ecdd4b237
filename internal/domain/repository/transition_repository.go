// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"story-crossref-api/internal/domain/entity"
)

// TransitionRepository 工作流转换日志存储
// 只追加：接口刻意不提供更新和删除
type TransitionRepository interface {
	// Append 追加一条转换记录
	Append(ctx context.Context, t *entity.WorkflowTransition) error
	// ListByStory 按插入顺序返回故事的完整审计轨迹
	ListByStory(ctx context.Context, storyID string) ([]*entity.WorkflowTransition, error)
}
