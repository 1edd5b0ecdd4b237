// Package workflow 提供故事发布工作流状态机
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"story-crossref-api/internal/domain/entity"
	"story-crossref-api/internal/domain/repository"
	"story-crossref-api/pkg/errors"
	"story-crossref-api/pkg/logger"
	"story-crossref-api/pkg/metrics"
	"story-crossref-api/pkg/tracer"

	"go.opentelemetry.io/otel/attribute"
)

// HookDispatcher 工作流钩子分发端口
// 钩子在状态转换提交后同步执行，失败被内部吞掉，不影响转换结果
type HookDispatcher interface {
	FirePublished(ctx context.Context, storyID, content string)
	FireUnpublished(ctx context.Context, storyID string)
}

// Edge 允许的状态转换边
type Edge struct {
	From entity.StoryStatus `json:"from"`
	To   entity.StoryStatus `json:"to"`
}

// baseEdges 基础转换表
// draft -> published 是被硬性禁止的捷径：发布必须经过 review 和 approved
var baseEdges = []Edge{
	{From: entity.StoryStatusDraft, To: entity.StoryStatusReview},
	{From: entity.StoryStatusReview, To: entity.StoryStatusApproved},
	{From: entity.StoryStatusReview, To: entity.StoryStatusDraft},
	{From: entity.StoryStatusApproved, To: entity.StoryStatusPublished},
}

// retractionEdge 撤回边，由配置开关控制
var retractionEdge = Edge{From: entity.StoryStatusPublished, To: entity.StoryStatusReview}

// TransitionResult 转换结果
type TransitionResult struct {
	Success        bool               `json:"success"`
	PreviousStatus entity.StoryStatus `json:"previous_status,omitempty"`
	CurrentStatus  entity.StoryStatus `json:"current_status,omitempty"`
	Message        string             `json:"message,omitempty"`
	RetryAfter     time.Duration      `json:"-"`
}

// GateStatus 发布闸门状态
type GateStatus struct {
	Allowed           bool    `json:"allowed"`
	RetryAfterSeconds float64 `json:"retry_after_seconds,omitempty"`
}

// Service 工作流服务
type Service struct {
	stories     repository.StoryRepository
	transitions repository.TransitionRepository
	tx          repository.Transactor
	gate        PublishGate
	hooks       HookDispatcher

	allowRetraction bool
	edges           map[entity.StoryStatus]map[entity.StoryStatus]bool
}

// NewService 创建工作流服务
func NewService(
	stories repository.StoryRepository,
	transitions repository.TransitionRepository,
	tx repository.Transactor,
	gate PublishGate,
	hooks HookDispatcher,
	allowRetraction bool,
) *Service {
	s := &Service{
		stories:         stories,
		transitions:     transitions,
		tx:              tx,
		gate:            gate,
		hooks:           hooks,
		allowRetraction: allowRetraction,
	}

	s.edges = make(map[entity.StoryStatus]map[entity.StoryStatus]bool)
	for _, e := range s.AllowedEdges() {
		if s.edges[e.From] == nil {
			s.edges[e.From] = make(map[entity.StoryStatus]bool)
		}
		s.edges[e.From][e.To] = true
	}
	return s
}

// AllowedEdges 返回当前生效的转换表（客户端校验提示用）
func (s *Service) AllowedEdges() []Edge {
	edges := make([]Edge, len(baseEdges))
	copy(edges, baseEdges)
	if s.allowRetraction {
		edges = append(edges, retractionEdge)
	}
	return edges
}

// Transition 执行状态转换
// 校验失败和闸门拒绝都不会改动故事状态，也不会留下转换记录；
// 成功时钩子已在返回前同步执行完毕，提及与已发布内容保持一致
func (s *Service) Transition(ctx context.Context, storyID string, to entity.StoryStatus, actorID, reason string) (*TransitionResult, error) {
	ctx, span := tracer.Start(ctx, "workflow.Service.Transition")
	span.SetAttributes(
		attribute.String("story.id", storyID),
		attribute.String("workflow.to", string(to)),
	)
	defer span.End()

	story, err := s.stories.GetByID(ctx, storyID)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to load story")
	}
	if story == nil {
		return nil, errors.ErrStoryNotFound.WithDetail(storyID)
	}

	from := story.Status
	span.SetAttributes(attribute.String("workflow.from", string(from)))

	if !s.edges[from][to] {
		metrics.WorkflowTransitionsTotal.WithLabelValues(string(from), string(to), "rejected").Inc()
		detail := fmt.Sprintf("story %s: %s -> %s", storyID, from, to)
		if from == entity.StoryStatusPublished && to == entity.StoryStatusReview && !s.allowRetraction {
			return nil, errors.ErrRetractionDisabled.WithDetail(detail)
		}
		return nil, errors.ErrInvalidTransition.WithDetail(detail)
	}

	// 发布边先过滑动窗口闸门，拒绝时不产生任何副作用
	if to == entity.StoryStatusPublished {
		allowed, retryAfter, err := s.gate.Allow(ctx)
		if err != nil {
			span.RecordError(err)
			return nil, errors.Wrap(err, errors.CodeCacheError, "publish gate unavailable")
		}
		if !allowed {
			metrics.PublishGateDenied.Inc()
			metrics.WorkflowTransitionsTotal.WithLabelValues(string(from), string(to), "rejected").Inc()
			result := &TransitionResult{
				Success:        false,
				PreviousStatus: from,
				CurrentStatus:  from,
				Message:        "publish rate limit exceeded",
				RetryAfter:     retryAfter,
			}
			return result, errors.ErrPublishRateLimited.WithDetail(
				fmt.Sprintf("retry after %.0fs", retryAfter.Seconds()))
		}
	}

	now := time.Now()
	var publishedAt *time.Time
	if to == entity.StoryStatusPublished {
		publishedAt = &now
	}

	// 状态更新与审计记录在同一事务内提交
	err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.stories.UpdateStatus(txCtx, storyID, to, publishedAt); err != nil {
			return err
		}
		return s.transitions.Append(txCtx, &entity.WorkflowTransition{
			ID:         uuid.New().String(),
			StoryID:    storyID,
			FromStatus: from,
			ToStatus:   to,
			ActorID:    actorID,
			Reason:     reason,
			CreatedAt:  now,
		})
	})
	if err != nil {
		span.RecordError(err)
		metrics.WorkflowTransitionsTotal.WithLabelValues(string(from), string(to), "error").Inc()
		// 提交失败时退还已占用的发布配额，失败的发布不烧窗口
		if to == entity.StoryStatusPublished {
			if rerr := s.gate.Refund(ctx); rerr != nil {
				logger.Warn(ctx, "failed to refund publish gate slot", "error", rerr.Error())
			}
		}
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to commit transition")
	}

	metrics.WorkflowTransitionsTotal.WithLabelValues(string(from), string(to), "success").Inc()
	logger.Info(ctx, "workflow transition committed",
		"story_id", storyID, "from", string(from), "to", string(to), "actor_id", actorID)

	// 钩子同步执行：成功返回即保证提及与当前内容一致；
	// 钩子自身的失败被记录但不回滚已提交的转换
	switch {
	case to == entity.StoryStatusPublished:
		s.hooks.FirePublished(ctx, storyID, story.Content)
	case to == entity.StoryStatusDraft, from == entity.StoryStatusPublished:
		s.hooks.FireUnpublished(ctx, storyID)
	}

	return &TransitionResult{
		Success:        true,
		PreviousStatus: from,
		CurrentStatus:  to,
	}, nil
}

// Publish 便捷发布入口，等价于 Transition(..., published, ...)
func (s *Service) Publish(ctx context.Context, storyID, actorID, reason string) (*TransitionResult, error) {
	return s.Transition(ctx, storyID, entity.StoryStatusPublished, actorID, reason)
}

// CanPublish 暴露闸门状态供 UI 预检，不占用配额
func (s *Service) CanPublish(ctx context.Context) (*GateStatus, error) {
	allowed, retryAfter, err := s.gate.Status(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeCacheError, "publish gate unavailable")
	}
	return &GateStatus{
		Allowed:           allowed,
		RetryAfterSeconds: retryAfter.Seconds(),
	}, nil
}

// History 返回故事的完整审计轨迹（插入顺序）
func (s *Service) History(ctx context.Context, storyID string) ([]*entity.WorkflowTransition, error) {
	story, err := s.stories.GetByID(ctx, storyID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to load story")
	}
	if story == nil {
		return nil, errors.ErrStoryNotFound.WithDetail(storyID)
	}
	return s.transitions.ListByStory(ctx, storyID)
}
