// Package crossref 提供提及检测与交叉引用索引
package crossref

import (
	"context"
	"fmt"
	"time"

	"story-crossref-api/internal/domain/entity"
	"story-crossref-api/internal/domain/repository"
	"story-crossref-api/pkg/metrics"
	"story-crossref-api/pkg/tracer"

	"go.opentelemetry.io/otel/attribute"
)

// CatalogProvider 目录提供方
type CatalogProvider interface {
	// Current 返回当前缓存的实体目录
	Current(ctx context.Context) (*entity.Catalog, error)
}

// Indexer 提及索引器：检测正文并整组替换故事的提及集合
type Indexer struct {
	detector *Detector
	catalog  CatalogProvider
	mentions repository.MentionRepository
}

// NewIndexer 创建索引器
func NewIndexer(detector *Detector, catalog CatalogProvider, mentions repository.MentionRepository) *Indexer {
	return &Indexer{
		detector: detector,
		catalog:  catalog,
		mentions: mentions,
	}
}

// Reindex 对单个故事执行检测并原子替换其提及集合，返回写入的提及数
func (ix *Indexer) Reindex(ctx context.Context, storyID, content, trigger string) (int, error) {
	ctx, span := tracer.Start(ctx, "crossref.Indexer.Reindex")
	span.SetAttributes(
		attribute.String("story.id", storyID),
		attribute.String("crossref.trigger", trigger),
	)
	defer span.End()

	metrics.DetectionTotal.WithLabelValues(trigger).Inc()

	cat, err := ix.catalog.Current(ctx)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to load catalog: %w", err)
	}

	mentions := ix.detector.Detect(ctx, storyID, content, cat)

	start := time.Now()
	if err := ix.mentions.ReplaceForStory(ctx, storyID, mentions); err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to replace mentions for story %s: %w", storyID, err)
	}
	metrics.ReplaceMentionsDuration.Observe(time.Since(start).Seconds())

	return len(mentions), nil
}

// Remove 删除故事的全部提及（下线清理）
func (ix *Indexer) Remove(ctx context.Context, storyID string) error {
	ctx, span := tracer.Start(ctx, "crossref.Indexer.Remove")
	span.SetAttributes(attribute.String("story.id", storyID))
	defer span.End()

	if err := ix.mentions.DeleteForStory(ctx, storyID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete mentions for story %s: %w", storyID, err)
	}
	return nil
}
