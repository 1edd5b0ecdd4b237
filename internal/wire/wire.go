// Package wire 提供依赖装配
// 依赖图足够小，手工构造即可，不引入代码生成
package wire

import (
	"fmt"

	"story-crossref-api/internal/application/catalog"
	"story-crossref-api/internal/application/crossref"
	"story-crossref-api/internal/application/workflow"
	"story-crossref-api/internal/config"
	"story-crossref-api/internal/domain/entity"
	"story-crossref-api/internal/infrastructure/persistence/postgres"
	"story-crossref-api/internal/infrastructure/persistence/redis"
	"story-crossref-api/internal/interfaces/http/handler"
	"story-crossref-api/internal/interfaces/http/middleware"
	"story-crossref-api/internal/interfaces/http/router"
)

// DataLayer 数据层依赖容器
type DataLayer struct {
	PgClient       *postgres.Client
	TxManager      *postgres.TxManager
	CatalogRepo    *postgres.CatalogRepository
	MentionRepo    *postgres.MentionRepository
	StoryRepo      *postgres.StoryRepository
	TransitionRepo *postgres.TransitionRepository

	// Redis 组件在 cache.redis.enabled=false 时为 nil
	RedisClient *redis.Client
	Cache       *redis.Cache
	RateLimiter *redis.RateLimiter
}

// AppLayer 应用层依赖容器
type AppLayer struct {
	Catalog   *catalog.Loader
	Detector  *crossref.Detector
	Indexer   *crossref.Indexer
	Hooks     *crossref.HookRunner
	Crossref  *crossref.Service
	Rebuilder *crossref.Rebuilder
	Gate      workflow.PublishGate
	Workflow  *workflow.Service
}

// InitializeDataLayer 构建数据层
func InitializeDataLayer(cfg *config.Config) (*DataLayer, func(), error) {
	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init postgres: %w", err)
	}

	dl := &DataLayer{
		PgClient:       pgClient,
		TxManager:      postgres.NewTxManager(pgClient),
		CatalogRepo:    postgres.NewCatalogRepository(pgClient),
		MentionRepo:    postgres.NewMentionRepository(pgClient),
		StoryRepo:      postgres.NewStoryRepository(pgClient),
		TransitionRepo: postgres.NewTransitionRepository(pgClient),
	}

	cleanup := func() {
		_ = pgClient.Close()
	}

	if cfg.Cache.Redis.Enabled {
		redisClient, err := redis.NewClient(&cfg.Cache.Redis)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to init redis: %w", err)
		}
		dl.RedisClient = redisClient
		dl.Cache = redis.NewCache(redisClient)
		dl.RateLimiter = redis.NewRateLimiter(redisClient)

		cleanup = func() {
			_ = redisClient.Close()
			_ = pgClient.Close()
		}
	}

	return dl, cleanup, nil
}

// InitializeAppLayer 构建应用层
func InitializeAppLayer(cfg *config.Config, dl *DataLayer) *AppLayer {
	catalogLoader := catalog.NewLoader(dl.CatalogRepo)

	detector := crossref.NewDetector(crossref.DetectorConfig{
		ContextRadius: cfg.Crossref.ContextRadius,
		MinTermLength: cfg.Crossref.MinTermLength,
		CueWords:      cueWordsByType(cfg.Crossref.CueWords),
	})

	indexer := crossref.NewIndexer(detector, catalogLoader, dl.MentionRepo)
	hooks := crossref.NewHookRunner(crossref.NewMentionIndexHook(indexer))

	// Redis 缓存未启用时 ResultCache 为 nil，查询直接回源
	var cache crossref.ResultCache
	if dl.Cache != nil {
		cache = dl.Cache
	}

	crossrefSvc := crossref.NewService(indexer, hooks, dl.StoryRepo, dl.MentionRepo,
		dl.CatalogRepo, cache, cfg.Cache.Redis.ResultTTL)

	rebuilder := crossref.NewRebuilder(indexer, dl.MentionRepo, dl.StoryRepo,
		cfg.Crossref.RebuildWorkers, cfg.Crossref.RebuildPageSize)

	// Redis 可用时闸门走集群共享窗口，否则退化为进程内窗口
	var gate workflow.PublishGate
	if dl.RedisClient != nil {
		gate = redis.NewPublishGate(dl.RedisClient, cfg.Workflow.PublishLimit, cfg.Workflow.PublishWindow)
	} else {
		gate = workflow.NewMemoryGate(cfg.Workflow.PublishLimit, cfg.Workflow.PublishWindow)
	}

	workflowSvc := workflow.NewService(dl.StoryRepo, dl.TransitionRepo, dl.TxManager,
		gate, hooks, cfg.Workflow.AllowRetraction)

	return &AppLayer{
		Catalog:   catalogLoader,
		Detector:  detector,
		Indexer:   indexer,
		Hooks:     hooks,
		Crossref:  crossrefSvc,
		Rebuilder: rebuilder,
		Gate:      gate,
		Workflow:  workflowSvc,
	}
}

// InitializeApp 构建完整 HTTP 应用
func InitializeApp(cfg *config.Config) (*router.Router, func(), error) {
	dl, cleanup, err := InitializeDataLayer(cfg)
	if err != nil {
		return nil, nil, err
	}
	app := InitializeAppLayer(cfg, dl)

	deps := router.Deps{
		Health:   handler.NewHealthHandler(dl.PgClient, dl.RedisClient),
		Workflow: handler.NewWorkflowHandler(app.Workflow),
		Crossref: handler.NewCrossrefHandler(app.Crossref),
		Admin:    handler.NewAdminHandler(app.Rebuilder, app.Catalog),
	}
	if dl.RateLimiter != nil {
		deps.Limiter = dl.RateLimiter
	}

	return router.New(cfg, deps), cleanup, nil
}

// InitializeRebuilder 构建一次性全量重建任务（cmd/reindexer 用）
func InitializeRebuilder(cfg *config.Config) (*crossref.Rebuilder, func(), error) {
	dl, cleanup, err := InitializeDataLayer(cfg)
	if err != nil {
		return nil, nil, err
	}
	app := InitializeAppLayer(cfg, dl)
	return app.Rebuilder, cleanup, nil
}

// cueWordsByType 配置中的线索词表键转为实体类型
func cueWordsByType(raw map[string][]string) map[entity.EntityType][]string {
	out := make(map[entity.EntityType][]string, len(raw))
	for k, words := range raw {
		t, ok := entity.ParseEntityType(k)
		if !ok {
			continue
		}
		out[t] = words
	}
	return out
}

// 确保 RateLimiter 满足中间件接口
var _ middleware.RateLimiter = (*redis.RateLimiter)(nil)
