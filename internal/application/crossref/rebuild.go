// Package crossref 提供提及检测与交叉引用索引
package crossref

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"story-crossref-api/internal/domain/repository"
	"story-crossref-api/pkg/errors"
	"story-crossref-api/pkg/logger"
	"story-crossref-api/pkg/metrics"
	"story-crossref-api/pkg/tracer"

	"go.opentelemetry.io/otel/attribute"
)

// RebuildSummary 全量重建结果摘要
// 单故事失败只记录并跳过（PartialProcessing），不会中止整体重建
type RebuildSummary struct {
	Processed       int      `json:"processed"`
	IndexedMentions int      `json:"indexed_mentions"`
	Failed          int      `json:"failed"`
	FailedStoryIDs  []string `json:"failed_story_ids,omitempty"`
	DurationMS      int64    `json:"duration_ms"`
}

// Rebuilder 全量重建器
// 先清空整个提及表，再遍历全部已发布故事逐一重建；
// 每个故事的替换独立原子，重复执行结果幂等
type Rebuilder struct {
	indexer  *Indexer
	mentions repository.MentionRepository
	stories  repository.StoryRepository

	workers  int
	pageSize int

	mu      sync.Mutex
	running bool
}

// NewRebuilder 创建全量重建器
func NewRebuilder(indexer *Indexer, mentions repository.MentionRepository, stories repository.StoryRepository, workers, pageSize int) *Rebuilder {
	if workers < 1 {
		workers = 1
	}
	if pageSize < 1 {
		pageSize = 100
	}
	return &Rebuilder{
		indexer:  indexer,
		mentions: mentions,
		stories:  stories,
		workers:  workers,
		pageSize: pageSize,
	}
}

// RebuildAll 执行全量重建
// 取消语义：ctx 取消后不再开始新的故事，已开始的故事完成其原子替换
func (r *Rebuilder) RebuildAll(ctx context.Context) (*RebuildSummary, error) {
	ctx, span := tracer.Start(ctx, "crossref.Rebuilder.RebuildAll")
	defer span.End()

	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil, errors.ErrRebuildInProgress
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	start := time.Now()
	logger.Info(ctx, "full crossref rebuild started", "workers", r.workers)

	if err := r.mentions.DeleteAll(ctx); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to clear mentions: %w", err)
	}

	summary := &RebuildSummary{}
	var sumMu sync.Mutex

	for page := 1; ; page++ {
		stories, err := r.stories.ListPublished(ctx, repository.NewPagination(page, r.pageSize))
		if err != nil {
			span.RecordError(err)
			return summary, fmt.Errorf("failed to list published stories (page %d): %w", page, err)
		}
		if len(stories) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.workers)

		for _, story := range stories {
			story := story
			g.Go(func() error {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}

				count, err := r.indexer.Reindex(gctx, story.ID, story.Content, "rebuild")

				sumMu.Lock()
				defer sumMu.Unlock()
				summary.Processed++
				if err != nil {
					// 单故事失败记录并跳过
					summary.Failed++
					summary.FailedStoryIDs = append(summary.FailedStoryIDs, story.ID)
					metrics.RebuildStoriesTotal.WithLabelValues("failed").Inc()
					logger.Warn(ctx, "story skipped during rebuild",
						"story_id", story.ID, "error", err.Error())
					return nil
				}
				summary.IndexedMentions += count
				metrics.RebuildStoriesTotal.WithLabelValues("ok").Inc()
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			// 只有取消会走到这里，单故事失败不会向上传播
			summary.DurationMS = time.Since(start).Milliseconds()
			return summary, err
		}

		if len(stories) < r.pageSize {
			break
		}
	}

	summary.DurationMS = time.Since(start).Milliseconds()
	metrics.RebuildDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.Int("rebuild.processed", summary.Processed),
		attribute.Int("rebuild.failed", summary.Failed),
	)
	logger.Info(ctx, "full crossref rebuild finished",
		"processed", summary.Processed,
		"indexed_mentions", summary.IndexedMentions,
		"failed", summary.Failed,
		"duration_ms", summary.DurationMS,
	)
	return summary, nil
}
