// Package repository 定义数据访问层接口
package repository

import (
	"context"
	"time"

	"story-crossref-api/internal/domain/entity"
)

// StoryRepository 故事数据访问
// stories 表由内容站拥有，本服务读取正文与状态，仅写状态和发布时间
type StoryRepository interface {
	// GetByID 获取故事，不存在时返回 (nil, nil)
	GetByID(ctx context.Context, id string) (*entity.Story, error)
	// ListPublished 分页列出已发布故事（全量重建用），按 id 升序保证遍历稳定
	ListPublished(ctx context.Context, p Pagination) ([]*entity.Story, error)
	// UpdateStatus 更新故事状态；publishedAt 非 nil 时一并写入发布时间
	UpdateStatus(ctx context.Context, id string, status entity.StoryStatus, publishedAt *time.Time) error
}
