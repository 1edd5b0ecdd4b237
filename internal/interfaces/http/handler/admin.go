package handler

import (
	"github.com/gin-gonic/gin"

	"story-crossref-api/internal/application/catalog"
	"story-crossref-api/internal/application/crossref"
	"story-crossref-api/internal/interfaces/http/dto"
	"story-crossref-api/pkg/errors"
	"story-crossref-api/pkg/logger"
)

// AdminHandler 管理接口处理器
type AdminHandler struct {
	rebuilder *crossref.Rebuilder
	catalog   *catalog.Loader
}

// NewAdminHandler 创建管理接口处理器
func NewAdminHandler(rebuilder *crossref.Rebuilder, catalogLoader *catalog.Loader) *AdminHandler {
	return &AdminHandler{
		rebuilder: rebuilder,
		catalog:   catalogLoader,
	}
}

// RebuildCrossref 全量重建交叉引用索引
// POST /v1/admin/crossref/rebuild
// 同步执行并返回摘要；已有重建在进行时返回 409
func (h *AdminHandler) RebuildCrossref(c *gin.Context) {
	ctx := c.Request.Context()

	summary, err := h.rebuilder.RebuildAll(ctx)
	if err != nil {
		if errors.HasCode(err, errors.CodeConflict) {
			dto.Conflict(c, "rebuild already in progress")
			return
		}
		logger.Error(ctx, "full rebuild failed", err)
		respondError(c, err, "full rebuild failed")
		return
	}
	dto.Success(c, summary)
}

// ReloadCatalog 显式重载实体目录
// POST /v1/admin/catalog/reload
func (h *AdminHandler) ReloadCatalog(c *gin.Context) {
	ctx := c.Request.Context()

	cat, err := h.catalog.Reload(ctx)
	if err != nil {
		logger.Error(ctx, "catalog reload failed", err)
		respondError(c, err, "catalog reload failed")
		return
	}
	dto.Success(c, dto.CatalogReloadResponse{
		Types:    len(cat.Entries),
		Entities: cat.Size(),
	})
}
