// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"story-crossref-api/internal/domain/entity"
)

// BindStoryID 从路径参数绑定故事 ID
func BindStoryID(c *gin.Context) string {
	return c.Param("sid")
}

// BindEntityRef 从路径参数绑定实体类型与 ID；类型非法时返回 false
func BindEntityRef(c *gin.Context) (entity.EntityType, string, bool) {
	t, ok := entity.ParseEntityType(c.Param("type"))
	if !ok {
		return "", "", false
	}
	return t, c.Param("eid"), true
}

// BindLimit 绑定 limit 查询参数，缺省或非法时返回默认值
func BindLimit(c *gin.Context, def int) int {
	return parseIntWithDefault(c.Query("limit"), def)
}

func parseIntWithDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}
