// Package crossref 提供提及检测与交叉引用索引
package crossref

import (
	"context"

	"story-crossref-api/internal/domain/entity"
	"story-crossref-api/pkg/logger"
)

// Hook 工作流事件钩子
// 多个钩子可以注册到同一事件；钩子失败只记录日志，
// 既不回滚已提交的状态转换，也不影响其他钩子的执行
type Hook interface {
	// Name 钩子名称，用于日志定位
	Name() string
	// OnPublished 故事发布后触发
	OnPublished(ctx context.Context, storyID, content string) error
	// OnUnpublished 故事下线后触发
	OnUnpublished(ctx context.Context, storyID string) error
	// OnUpdated 故事内容更新后触发
	OnUpdated(ctx context.Context, storyID, content string, status entity.StoryStatus) error
}

// HookRunner 钩子调度器，按注册顺序运行全部钩子并隔离各自的失败
type HookRunner struct {
	hooks []Hook
}

// NewHookRunner 创建钩子调度器
func NewHookRunner(hooks ...Hook) *HookRunner {
	return &HookRunner{hooks: hooks}
}

// Register 注册钩子
func (r *HookRunner) Register(h Hook) {
	r.hooks = append(r.hooks, h)
}

// FirePublished 分发发布事件
func (r *HookRunner) FirePublished(ctx context.Context, storyID, content string) {
	for _, h := range r.hooks {
		if err := h.OnPublished(ctx, storyID, content); err != nil {
			logger.Error(ctx, "publish hook failed", err,
				"hook", h.Name(), "story_id", storyID)
		}
	}
}

// FireUnpublished 分发下线事件
func (r *HookRunner) FireUnpublished(ctx context.Context, storyID string) {
	for _, h := range r.hooks {
		if err := h.OnUnpublished(ctx, storyID); err != nil {
			logger.Error(ctx, "unpublish hook failed", err,
				"hook", h.Name(), "story_id", storyID)
		}
	}
}

// FireUpdated 分发内容更新事件
func (r *HookRunner) FireUpdated(ctx context.Context, storyID, content string, status entity.StoryStatus) {
	for _, h := range r.hooks {
		if err := h.OnUpdated(ctx, storyID, content, status); err != nil {
			logger.Error(ctx, "update hook failed", err,
				"hook", h.Name(), "story_id", storyID)
		}
	}
}

// MentionIndexHook 提及索引钩子：保持反向链接与已发布内容一致
type MentionIndexHook struct {
	indexer *Indexer
}

// NewMentionIndexHook 创建提及索引钩子
func NewMentionIndexHook(indexer *Indexer) *MentionIndexHook {
	return &MentionIndexHook{indexer: indexer}
}

// Name 钩子名称
func (h *MentionIndexHook) Name() string {
	return "mention-index"
}

// OnPublished 检测正文并替换提及集合
func (h *MentionIndexHook) OnPublished(ctx context.Context, storyID, content string) error {
	count, err := h.indexer.Reindex(ctx, storyID, content, "publish")
	if err != nil {
		return err
	}
	logger.Info(ctx, "mentions indexed on publish", "story_id", storyID, "mentions", count)
	return nil
}

// OnUnpublished 删除故事的全部提及
func (h *MentionIndexHook) OnUnpublished(ctx context.Context, storyID string) error {
	return h.indexer.Remove(ctx, storyID)
}

// OnUpdated 仅当故事处于已发布状态时刷新提及
func (h *MentionIndexHook) OnUpdated(ctx context.Context, storyID, content string, status entity.StoryStatus) error {
	if status != entity.StoryStatusPublished {
		return nil
	}
	count, err := h.indexer.Reindex(ctx, storyID, content, "update")
	if err != nil {
		return err
	}
	logger.Info(ctx, "mentions refreshed on update", "story_id", storyID, "mentions", count)
	return nil
}
