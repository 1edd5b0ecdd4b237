// Package middleware 提供 HTTP 中间件
package middleware

import (
	"story-crossref-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	// ActorIDHeader 操作者 ID 头，由内容站网关注入
	ActorIDHeader = "X-Actor-ID"
)

// Actor 操作者提取中间件
// 审计日志需要 actor_id；认证鉴权由上游网关完成，这里只透传身份
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := c.GetHeader(ActorIDHeader)
		if actorID == "" {
			actorID = "anonymous"
		}

		c.Set("actor_id", actorID)

		ctx := logger.WithContext(c.Request.Context(), logger.ActorIDKey, actorID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
