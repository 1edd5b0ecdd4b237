package handler

import (
	"fmt"
	"math"

	"github.com/gin-gonic/gin"

	"story-crossref-api/internal/application/workflow"
	"story-crossref-api/internal/domain/entity"
	"story-crossref-api/internal/interfaces/http/dto"
	"story-crossref-api/pkg/errors"
	"story-crossref-api/pkg/logger"
)

// WorkflowHandler 发布工作流处理器
type WorkflowHandler struct {
	svc *workflow.Service
}

// NewWorkflowHandler 创建工作流处理器
func NewWorkflowHandler(svc *workflow.Service) *WorkflowHandler {
	return &WorkflowHandler{svc: svc}
}

// Transition 执行状态转换
// POST /v1/stories/:sid/workflow/transition
func (h *WorkflowHandler) Transition(c *gin.Context) {
	ctx := c.Request.Context()
	storyID := dto.BindStoryID(c)

	var req dto.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	to, ok := entity.ParseStoryStatus(req.ToStatus)
	if !ok {
		dto.BadRequest(c, "unknown target status: "+req.ToStatus)
		return
	}

	result, err := h.svc.Transition(ctx, storyID, to, c.GetString("actor_id"), req.Reason)
	if err != nil {
		h.respondTransitionError(c, result, err)
		return
	}
	dto.Success(c, dto.ToTransitionResponse(result))
}

// Publish 便捷发布入口
// POST /v1/stories/:sid/workflow/publish
func (h *WorkflowHandler) Publish(c *gin.Context) {
	ctx := c.Request.Context()
	storyID := dto.BindStoryID(c)

	var req dto.PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := h.svc.Publish(ctx, storyID, c.GetString("actor_id"), req.Reason)
	if err != nil {
		h.respondTransitionError(c, result, err)
		return
	}
	dto.Success(c, dto.ToTransitionResponse(result))
}

// respondTransitionError 转换失败响应；闸门拒绝时附带 Retry-After 头
func (h *WorkflowHandler) respondTransitionError(c *gin.Context, result *workflow.TransitionResult, err error) {
	if errors.HasCode(err, errors.CodePublishRateLimited) && result != nil {
		seconds := int(math.Ceil(result.RetryAfter.Seconds()))
		c.Header("Retry-After", fmt.Sprintf("%d", seconds))
	}
	if !errors.IsAppError(err) {
		logger.Error(c.Request.Context(), "workflow transition failed", err)
	}
	respondError(c, err, "failed to execute transition")
}

// History 返回故事的审计轨迹
// GET /v1/stories/:sid/workflow/history
func (h *WorkflowHandler) History(c *gin.Context) {
	ctx := c.Request.Context()
	storyID := dto.BindStoryID(c)

	items, err := h.svc.History(ctx, storyID)
	if err != nil {
		respondError(c, err, "failed to load transition history")
		return
	}
	dto.Success(c, dto.ToTransitionLog(items))
}

// CanPublish 发布预检，不占用配额
// GET /v1/workflow/can-publish
func (h *WorkflowHandler) CanPublish(c *gin.Context) {
	status, err := h.svc.CanPublish(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to check publish gate")
		return
	}
	dto.Success(c, status)
}

// Edges 返回当前生效的转换表
// GET /v1/workflow/transitions
func (h *WorkflowHandler) Edges(c *gin.Context) {
	dto.Success(c, dto.ToEdgeList(h.svc.AllowedEdges()))
}
