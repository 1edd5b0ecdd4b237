// Package main 交叉引用全量重建任务入口
// 一次性执行：清空提及表并重建全部已发布故事的索引，结束后退出
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"story-crossref-api/internal/config"
	"story-crossref-api/internal/wire"
	"story-crossref-api/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(
		cfg.Observability.Logging.Level,
		cfg.Observability.Logging.Format,
	)

	// SIGINT/SIGTERM 触发协作式取消：不再开始新的故事，已开始的完成其原子替换
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logger.FromContext(ctx)
	log.Info("starting reindexer", "env", cfg.App.Env)

	rebuilder, cleanup, err := wire.InitializeRebuilder(cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize rebuilder", err)
	}
	defer cleanup()

	summary, err := rebuilder.RebuildAll(ctx)
	if err != nil {
		if summary != nil {
			log.Warn("rebuild interrupted",
				"processed", summary.Processed,
				"indexed_mentions", summary.IndexedMentions,
				"failed", summary.Failed,
				"error", err.Error(),
			)
		}
		logger.Fatal(ctx, "rebuild failed", err)
	}

	log.Info("rebuild complete",
		"processed", summary.Processed,
		"indexed_mentions", summary.IndexedMentions,
		"failed", summary.Failed,
		"duration_ms", summary.DurationMS,
	)

	if summary.Failed > 0 {
		// 部分失败：正常退出但用非零状态提示重试
		os.Exit(2)
	}
}
