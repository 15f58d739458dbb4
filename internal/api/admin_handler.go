package api

import (
	"cloud-drive/internal/interfaces"
	"cloud-drive/pkg/response"

	"github.com/gin-gonic/gin"
)

// AdminHandler 缓存诊断, 仅管理员可用
type AdminHandler struct {
	cache interfaces.Cache
}

func NewAdminHandler(c interfaces.Cache) *AdminHandler {
	return &AdminHandler{cache: c}
}

// CacheInfo 查询某个键是否存在及剩余TTL
func (h *AdminHandler) CacheInfo(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		response.BadRequest(c, "key is required")
		return
	}

	ctx := c.Request.Context()
	response.OK(c, "", gin.H{
		"key":    key,
		"exists": h.cache.Exists(ctx, key),
		"ttl":    h.cache.TTL(ctx, key),
	})
}

// ClearCache 清空缓存
func (h *AdminHandler) ClearCache(c *gin.Context) {
	if !h.cache.ClearAll(c.Request.Context()) {
		response.Error(c, "Failed to clear cache")
		return
	}
	response.OK(c, "Cache cleared", nil)
}
