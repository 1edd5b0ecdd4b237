package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRoutes 配置路由
func (r *Router) setupRoutes() {
	// 系统端点
	r.engine.GET("/health", r.deps.Health.Health)
	r.engine.GET("/ready", r.deps.Health.Ready)
	r.engine.GET("/live", r.deps.Health.Live)

	// Prometheus 指标端点
	if r.cfg.Observability.Metrics.Enabled {
		r.engine.GET(r.cfg.Observability.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	// API v1 路由组
	v1 := r.engine.Group("/v1")
	{
		// 故事相关路由
		stories := v1.Group("/stories")
		{
			stories.POST("/:sid/workflow/transition", r.deps.Workflow.Transition)
			stories.POST("/:sid/workflow/publish", r.deps.Workflow.Publish)
			stories.GET("/:sid/workflow/history", r.deps.Workflow.History)

			stories.GET("/:sid/mentions", r.deps.Crossref.StoryMentions)
			stories.POST("/:sid/reprocess", r.deps.Crossref.Reprocess)
			stories.POST("/:sid/events/content-updated", r.deps.Crossref.ContentUpdated)
		}

		// 工作流全局路由
		wf := v1.Group("/workflow")
		{
			wf.GET("/can-publish", r.deps.Workflow.CanPublish)
			wf.GET("/transitions", r.deps.Workflow.Edges)
		}

		// 实体反向链接路由
		entities := v1.Group("/entities")
		{
			entities.GET("/:type/:eid/backlinks", r.deps.Crossref.Backlinks)
			entities.GET("/:type/:eid/backlinks/latest", r.deps.Crossref.LatestBacklink)
			entities.GET("/:type/:eid/stats", r.deps.Crossref.Stats)
		}

		// 热门榜单路由；不放在 /entities 下，避免与 :type 通配段冲突
		v1.GET("/trending/entities", r.deps.Crossref.Trending)

		// 管理路由
		admin := v1.Group("/admin")
		{
			admin.POST("/crossref/rebuild", r.deps.Admin.RebuildCrossref)
			admin.POST("/catalog/reload", r.deps.Admin.ReloadCatalog)
		}
	}
}
