// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"story-crossref-api/internal/domain/entity"
)

// CatalogRepository 实体目录数据源
// 目录表（people/places/businesses/streets 等）由内容站维护，本服务只读
type CatalogRepository interface {
	// ListByType 列出指定类型的全部目录实体
	ListByType(ctx context.Context, entityType entity.EntityType) ([]*entity.CatalogEntity, error)
	// GetByID 根据类型与 ID 获取单个目录实体，不存在时返回 (nil, nil)
	GetByID(ctx context.Context, entityType entity.EntityType, id string) (*entity.CatalogEntity, error)
}
