package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"story-crossref-api/internal/domain/entity"
)

// catalogTables 实体类型到目录表名的映射
// 目录表由内容站维护，本服务只读
var catalogTables = map[entity.EntityType]string{
	entity.EntityTypePerson:       "people",
	entity.EntityTypePlace:        "places",
	entity.EntityTypeBusiness:     "businesses",
	entity.EntityTypeStreet:       "streets",
	entity.EntityTypeLake:         "lakes",
	entity.EntityTypeOrganization: "organizations",
}

// CatalogRepository 实体目录仓储实现
type CatalogRepository struct {
	client *Client
}

// NewCatalogRepository 创建目录仓储
func NewCatalogRepository(client *Client) *CatalogRepository {
	return &CatalogRepository{client: client}
}

func (r *CatalogRepository) tableFor(entityType entity.EntityType) (string, error) {
	table, ok := catalogTables[entityType]
	if !ok {
		return "", fmt.Errorf("unknown entity type: %s", entityType)
	}
	return table, nil
}

// ListByType 列出指定类型的全部目录实体
func (r *CatalogRepository) ListByType(ctx context.Context, entityType entity.EntityType) ([]*entity.CatalogEntity, error) {
	ctx, span := tracer.Start(ctx, "postgres.CatalogRepository.ListByType")
	defer span.End()

	table, err := r.tableFor(entityType)
	if err != nil {
		return nil, err
	}

	db := getDB(ctx, r.client.db)
	var entries []*entity.CatalogEntity
	if err := db.Table(table).Find(&entries).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list %s catalog: %w", entityType, err)
	}
	for _, e := range entries {
		e.Type = entityType
	}
	return entries, nil
}

// GetByID 根据类型与 ID 获取目录实体，不存在时返回 (nil, nil)
func (r *CatalogRepository) GetByID(ctx context.Context, entityType entity.EntityType, id string) (*entity.CatalogEntity, error) {
	ctx, span := tracer.Start(ctx, "postgres.CatalogRepository.GetByID")
	defer span.End()

	table, err := r.tableFor(entityType)
	if err != nil {
		return nil, err
	}

	db := getDB(ctx, r.client.db)
	var e entity.CatalogEntity
	if err := db.Table(table).Where("id = ?", id).First(&e).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get %s %s: %w", entityType, id, err)
	}
	e.Type = entityType
	return &e, nil
}
