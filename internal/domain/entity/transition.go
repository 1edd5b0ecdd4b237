// Package entity 定义领域实体
package entity

import (
	"time"
)

// WorkflowTransition 工作流转换日志记录，只追加，构成审计轨迹
type WorkflowTransition struct {
	ID         string      `json:"id" gorm:"type:uuid;primaryKey"`
	StoryID    string      `json:"story_id" gorm:"type:uuid;index;not null"`
	FromStatus StoryStatus `json:"from_status" gorm:"type:varchar(32);not null"`
	ToStatus   StoryStatus `json:"to_status" gorm:"type:varchar(32);not null"`
	ActorID    string      `json:"actor_id" gorm:"type:varchar(128);not null"`
	Reason     string      `json:"reason,omitempty" gorm:"type:text"`
	CreatedAt  time.Time   `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (WorkflowTransition) TableName() string {
	return "workflow_transitions"
}
