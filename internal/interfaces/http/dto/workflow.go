package dto

import (
	"story-crossref-api/internal/application/workflow"
	"story-crossref-api/internal/domain/entity"
)

// TransitionRequest 状态转换请求
type TransitionRequest struct {
	ToStatus string `json:"to_status" binding:"required"`
	Reason   string `json:"reason"`
}

// PublishRequest 发布请求
type PublishRequest struct {
	Reason string `json:"reason"`
}

// TransitionResponse 状态转换响应
type TransitionResponse struct {
	Success        bool   `json:"success"`
	PreviousStatus string `json:"previous_status,omitempty"`
	CurrentStatus  string `json:"current_status,omitempty"`
	Message        string `json:"message,omitempty"`
}

// ToTransitionResponse 转换结果转 DTO
func ToTransitionResponse(r *workflow.TransitionResult) TransitionResponse {
	return TransitionResponse{
		Success:        r.Success,
		PreviousStatus: string(r.PreviousStatus),
		CurrentStatus:  string(r.CurrentStatus),
		Message:        r.Message,
	}
}

// TransitionLogEntry 审计日志条目
type TransitionLogEntry struct {
	ID         string `json:"id"`
	StoryID    string `json:"story_id"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	ActorID    string `json:"actor_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// ToTransitionLog 审计轨迹转 DTO
func ToTransitionLog(items []*entity.WorkflowTransition) []TransitionLogEntry {
	out := make([]TransitionLogEntry, 0, len(items))
	for _, t := range items {
		out = append(out, TransitionLogEntry{
			ID:         t.ID,
			StoryID:    t.StoryID,
			FromStatus: string(t.FromStatus),
			ToStatus:   string(t.ToStatus),
			ActorID:    t.ActorID,
			Reason:     t.Reason,
			CreatedAt:  t.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return out
}

// EdgeEntry 允许的转换边
type EdgeEntry struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ToEdgeList 转换表转 DTO
func ToEdgeList(edges []workflow.Edge) []EdgeEntry {
	out := make([]EdgeEntry, 0, len(edges))
	for _, e := range edges {
		out = append(out, EdgeEntry{From: string(e.From), To: string(e.To)})
	}
	return out
}
