// Package entity 定义领域实体
package entity

import (
	"time"
)

// StoryStatus 故事发布状态
type StoryStatus string

const (
	StoryStatusDraft     StoryStatus = "draft"
	StoryStatusReview    StoryStatus = "review"
	StoryStatusApproved  StoryStatus = "approved"
	StoryStatusPublished StoryStatus = "published"
)

// ParseStoryStatus 解析状态字符串
func ParseStoryStatus(s string) (StoryStatus, bool) {
	switch StoryStatus(s) {
	case StoryStatusDraft, StoryStatusReview, StoryStatusApproved, StoryStatusPublished:
		return StoryStatus(s), true
	}
	return "", false
}

// Story 故事（内容站的叙事页面，本服务只读写状态与发布时间）
type Story struct {
	ID          string      `json:"id" gorm:"type:uuid;primaryKey"`
	Slug        string      `json:"slug" gorm:"type:varchar(255);uniqueIndex"`
	Title       string      `json:"title" gorm:"type:varchar(255)"`
	Status      StoryStatus `json:"status" gorm:"type:varchar(32);default:'draft'"`
	Content     string      `json:"content,omitempty" gorm:"type:text"`
	PublishedAt *time.Time  `json:"published_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time   `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Story) TableName() string {
	return "stories"
}

// IsPublished 是否处于已发布状态
func (s *Story) IsPublished() bool {
	return s.Status == StoryStatusPublished
}
