package dto

import (
	"time"

	"story-crossref-api/internal/domain/entity"
)

// MentionResponse 提及条目
type MentionResponse struct {
	ID              string  `json:"id"`
	StoryID         string  `json:"story_id"`
	EntityType      string  `json:"entity_type"`
	EntityID        string  `json:"entity_id"`
	EntityName      string  `json:"entity_name"`
	Context         string  `json:"context"`
	Position        int     `json:"position"`
	ConfidenceScore float64 `json:"confidence_score"`
}

// ToMentionResponse 提及转 DTO
func ToMentionResponse(m *entity.Mention) MentionResponse {
	return MentionResponse{
		ID:              m.ID,
		StoryID:         m.StoryID,
		EntityType:      string(m.EntityType),
		EntityID:        m.EntityID,
		EntityName:      m.EntityName,
		Context:         m.Context,
		Position:        m.Position,
		ConfidenceScore: m.ConfidenceScore,
	}
}

// ToMentionList 提及列表转 DTO
func ToMentionList(items []*entity.Mention) []MentionResponse {
	out := make([]MentionResponse, 0, len(items))
	for _, m := range items {
		out = append(out, ToMentionResponse(m))
	}
	return out
}

// BacklinkResponse 反向链接条目
type BacklinkResponse struct {
	MentionResponse
	StorySlug        string    `json:"story_slug"`
	StoryTitle       string    `json:"story_title"`
	StoryPublishedAt time.Time `json:"story_published_at"`
}

// ToBacklinkResponse 反向链接转 DTO
func ToBacklinkResponse(b *entity.Backlink) BacklinkResponse {
	return BacklinkResponse{
		MentionResponse:  ToMentionResponse(&b.Mention),
		StorySlug:        b.StorySlug,
		StoryTitle:       b.StoryTitle,
		StoryPublishedAt: b.StoryPublishedAt,
	}
}

// ToBacklinkList 反向链接列表转 DTO
func ToBacklinkList(items []*entity.Backlink) []BacklinkResponse {
	out := make([]BacklinkResponse, 0, len(items))
	for _, b := range items {
		out = append(out, ToBacklinkResponse(b))
	}
	return out
}

// TrendingEntry 热门实体榜单项
type TrendingEntry struct {
	EntityType      string    `json:"entity_type"`
	EntityID        string    `json:"entity_id"`
	EntityName      string    `json:"entity_name"`
	MentionCount    int64     `json:"mention_count"`
	LastMentionedAt time.Time `json:"last_mentioned_at"`
}

// ToTrendingList 热门实体列表转 DTO
func ToTrendingList(items []*entity.TrendingEntity) []TrendingEntry {
	out := make([]TrendingEntry, 0, len(items))
	for _, t := range items {
		out = append(out, TrendingEntry{
			EntityType:      string(t.EntityType),
			EntityID:        t.EntityID,
			EntityName:      t.EntityName,
			MentionCount:    t.MentionCount,
			LastMentionedAt: t.LastMentionedAt,
		})
	}
	return out
}

// ReprocessRequest 手工重建请求；content 为空时使用库中存储的正文
type ReprocessRequest struct {
	Content string `json:"content"`
}

// ReprocessResponse 手工重建响应
type ReprocessResponse struct {
	StoryID      string `json:"story_id"`
	MentionCount int    `json:"mention_count"`
}

// ContentUpdatedRequest 正文变更通知请求
type ContentUpdatedRequest struct {
	Content string `json:"content"`
}

// CatalogReloadResponse 目录重载响应
type CatalogReloadResponse struct {
	Types    int `json:"types"`
	Entities int `json:"entities"`
}
