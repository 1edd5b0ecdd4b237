package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"story-crossref-api/internal/application/crossref"
	"story-crossref-api/internal/interfaces/http/dto"
	"story-crossref-api/pkg/logger"
)

// CrossrefHandler 交叉引用处理器
type CrossrefHandler struct {
	svc *crossref.Service
}

// NewCrossrefHandler 创建交叉引用处理器
func NewCrossrefHandler(svc *crossref.Service) *CrossrefHandler {
	return &CrossrefHandler{svc: svc}
}

// Backlinks 查询实体的反向链接
// GET /v1/entities/:type/:eid/backlinks
func (h *CrossrefHandler) Backlinks(c *gin.Context) {
	ctx := c.Request.Context()
	entityType, entityID, ok := dto.BindEntityRef(c)
	if !ok {
		dto.BadRequest(c, "invalid entity type: "+c.Param("type"))
		return
	}

	limit := dto.BindLimit(c, 20)
	links, err := h.svc.Backlinks(ctx, entityType, entityID, limit)
	if err != nil {
		logger.Error(ctx, "failed to query backlinks", err,
			"entity_type", string(entityType), "entity_id", entityID)
		respondError(c, err, "failed to query backlinks")
		return
	}
	dto.Success(c, dto.ToBacklinkList(links))
}

// LatestBacklink 查询实体最近一次被提及的反向链接
// GET /v1/entities/:type/:eid/backlinks/latest
func (h *CrossrefHandler) LatestBacklink(c *gin.Context) {
	ctx := c.Request.Context()
	entityType, entityID, ok := dto.BindEntityRef(c)
	if !ok {
		dto.BadRequest(c, "invalid entity type: "+c.Param("type"))
		return
	}

	link, err := h.svc.LatestBacklink(ctx, entityType, entityID)
	if err != nil {
		respondError(c, err, "failed to query latest backlink")
		return
	}
	if link == nil {
		dto.NotFound(c, "entity has no published mentions")
		return
	}
	dto.Success(c, dto.ToBacklinkResponse(link))
}

// Stats 查询实体的提及统计
// GET /v1/entities/:type/:eid/stats
func (h *CrossrefHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	entityType, entityID, ok := dto.BindEntityRef(c)
	if !ok {
		dto.BadRequest(c, "invalid entity type: "+c.Param("type"))
		return
	}

	stats, err := h.svc.Stats(ctx, entityType, entityID)
	if err != nil {
		respondError(c, err, "failed to aggregate stats")
		return
	}
	dto.Success(c, stats)
}

// Trending 查询近期发布窗口内被提及最多的实体
// GET /v1/trending/entities?window=168h&limit=10
func (h *CrossrefHandler) Trending(c *gin.Context) {
	ctx := c.Request.Context()

	var window time.Duration
	if raw := c.Query("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			dto.BadRequest(c, "invalid window: "+raw)
			return
		}
		window = parsed
	}

	limit := dto.BindLimit(c, 10)
	trending, err := h.svc.Trending(ctx, window, limit)
	if err != nil {
		logger.Error(ctx, "failed to query trending entities", err)
		respondError(c, err, "failed to query trending entities")
		return
	}
	dto.Success(c, dto.ToTrendingList(trending))
}

// StoryMentions 查询故事的原始提及
// GET /v1/stories/:sid/mentions
func (h *CrossrefHandler) StoryMentions(c *gin.Context) {
	ctx := c.Request.Context()
	storyID := dto.BindStoryID(c)

	mentions, err := h.svc.StoryMentions(ctx, storyID)
	if err != nil {
		respondError(c, err, "failed to list mentions")
		return
	}
	dto.Success(c, dto.ToMentionList(mentions))
}

// Reprocess 手工重建单个故事的提及
// POST /v1/stories/:sid/reprocess
func (h *CrossrefHandler) Reprocess(c *gin.Context) {
	ctx := c.Request.Context()
	storyID := dto.BindStoryID(c)

	var req dto.ReprocessRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	count, err := h.svc.Reprocess(ctx, storyID, req.Content)
	if err != nil {
		logger.Error(ctx, "failed to reprocess story", err, "story_id", storyID)
		respondError(c, err, "failed to reprocess story")
		return
	}
	dto.Success(c, dto.ReprocessResponse{
		StoryID:      storyID,
		MentionCount: count,
	})
}

// ContentUpdated 内容站正文变更回调
// POST /v1/stories/:sid/events/content-updated
func (h *CrossrefHandler) ContentUpdated(c *gin.Context) {
	ctx := c.Request.Context()
	storyID := dto.BindStoryID(c)

	var req dto.ContentUpdatedRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	if err := h.svc.ContentUpdated(ctx, storyID, req.Content); err != nil {
		respondError(c, err, "failed to handle content update")
		return
	}
	dto.Accepted(c, gin.H{"story_id": storyID})
}
