// Package entity 定义领域实体
package entity

import (
	"github.com/lib/pq"
)

// EntityType 目录实体类型
type EntityType string

const (
	EntityTypePerson       EntityType = "person"
	EntityTypePlace        EntityType = "place"
	EntityTypeBusiness     EntityType = "business"
	EntityTypeStreet       EntityType = "street"
	EntityTypeLake         EntityType = "lake"
	EntityTypeOrganization EntityType = "organization"
)

// AllEntityTypes 按稳定顺序列出全部实体类型
func AllEntityTypes() []EntityType {
	return []EntityType{
		EntityTypePerson,
		EntityTypePlace,
		EntityTypeBusiness,
		EntityTypeStreet,
		EntityTypeLake,
		EntityTypeOrganization,
	}
}

// ParseEntityType 解析实体类型字符串
func ParseEntityType(s string) (EntityType, bool) {
	t := EntityType(s)
	for _, known := range AllEntityTypes() {
		if t == known {
			return t, true
		}
	}
	return "", false
}

// CatalogEntity 目录实体：可以被故事正文引用的命名对象
type CatalogEntity struct {
	ID      string         `json:"id" gorm:"type:uuid;primaryKey"`
	Type    EntityType     `json:"type" gorm:"-"`
	Name    string         `json:"name" gorm:"type:varchar(255);not null"`
	Aliases pq.StringArray `json:"aliases,omitempty" gorm:"type:text[]"`
}

// MatchTerms 返回参与匹配的候选词集合：规范名 + 别名，过滤过短项
func (e *CatalogEntity) MatchTerms(minLen int) []string {
	terms := make([]string, 0, 1+len(e.Aliases))
	if len([]rune(e.Name)) >= minLen {
		terms = append(terms, e.Name)
	}
	for _, alias := range e.Aliases {
		if len([]rune(alias)) >= minLen {
			terms = append(terms, alias)
		}
	}
	return terms
}

// Catalog 全量实体目录，按类型分组
type Catalog struct {
	Entries map[EntityType][]*CatalogEntity
}

// NewCatalog 创建空目录
func NewCatalog() *Catalog {
	return &Catalog{Entries: make(map[EntityType][]*CatalogEntity)}
}

// ByType 获取指定类型的实体列表
func (c *Catalog) ByType(t EntityType) []*CatalogEntity {
	return c.Entries[t]
}

// Size 返回目录中的实体总数
func (c *Catalog) Size() int {
	n := 0
	for _, list := range c.Entries {
		n += len(list)
	}
	return n
}
