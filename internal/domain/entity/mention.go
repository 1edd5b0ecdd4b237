// Package entity 定义领域实体
package entity

import (
	"time"
)

// Mention 提及：某实体在某故事正文中被检测到的一次引用
// 同一 (story_id, entity_type, entity_id) 处理后至多保留一条，
// 整组记录只通过 delete-then-insert 替换，不支持单条修改
type Mention struct {
	ID              string     `json:"id" gorm:"type:uuid;primaryKey"`
	StoryID         string     `json:"story_id" gorm:"type:uuid;index;not null"`
	EntityType      EntityType `json:"entity_type" gorm:"type:varchar(32);not null"`
	EntityID        string     `json:"entity_id" gorm:"type:uuid;not null"`
	EntityName      string     `json:"entity_name" gorm:"type:varchar(255);not null"`
	Context         string     `json:"context" gorm:"type:text"`
	Position        int        `json:"position" gorm:"not null"`
	ConfidenceScore float64    `json:"confidence_score" gorm:"not null"`
	CreatedAt       time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (Mention) TableName() string {
	return "story_mentions"
}

// Backlink 反向链接：从实体视角看的提及，连带已发布故事信息
type Backlink struct {
	Mention
	StorySlug        string    `json:"story_slug"`
	StoryTitle       string    `json:"story_title"`
	StoryPublishedAt time.Time `json:"story_published_at"`
}

// TrendingEntity 热门实体：近期发布窗口内按提及次数排名的聚合行
type TrendingEntity struct {
	EntityType      EntityType `json:"entity_type" gorm:"column:entity_type"`
	EntityID        string     `json:"entity_id" gorm:"column:entity_id"`
	EntityName      string     `json:"entity_name" gorm:"column:entity_name"`
	MentionCount    int64      `json:"mention_count" gorm:"column:mention_count"`
	LastMentionedAt time.Time  `json:"last_mentioned_at" gorm:"column:last_mentioned_at"`
}

// MentionStats 实体被提及的聚合统计，只统计已发布故事
type MentionStats struct {
	TotalMentions    int        `json:"total_mentions"`
	FirstMentionedAt *time.Time `json:"first_mentioned_at,omitempty"`
	LastMentionedAt  *time.Time `json:"last_mentioned_at,omitempty"`
	AvgConfidence    float64    `json:"avg_confidence"`
}
