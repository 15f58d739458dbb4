package api

import (
	"cloud-drive/internal/service"
	"cloud-drive/pkg/logger"
	"cloud-drive/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type FileShareHandler struct {
	fileService *service.FileService
	errorWriter
}

func NewFileShareHandler(fileService *service.FileService, debug bool) *FileShareHandler {
	return &FileShareHandler{fileService: fileService, errorWriter: errorWriter{debug: debug}}
}

// ShareFile 生成公开分享链接
func (h *FileShareHandler) ShareFile(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	link, err := h.fileService.Share(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.write(c, err, "Failed to share file")
		return
	}

	logger.L.Info("File shared", zap.String("fileID", c.Param("id")), zap.String("userID", userID))
	response.OK(c, "File shared successfully", gin.H{
		"shareLink": link.Link,
		"shareId":   link.ShareID,
	})
}

// UnshareFile 取消分享
func (h *FileShareHandler) UnshareFile(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	file, err := h.fileService.Unshare(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.write(c, err, "Failed to unshare file")
		return
	}

	logger.L.Info("File unshared", zap.String("fileID", file.ID), zap.String("userID", userID))
	response.OK(c, "File unshared successfully", gin.H{"file": file})
}

// GetSharedFile 无需登录
func (h *FileShareHandler) GetSharedFile(c *gin.Context) {
	file, err := h.fileService.GetShared(c.Request.Context(), c.Param("shareId"))
	if err != nil {
		h.write(c, err, "Failed to get shared file")
		return
	}

	response.OK(c, "", gin.H{"file": file})
}
