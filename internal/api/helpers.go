package api

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"cloud-drive/internal/middleware"
	"cloud-drive/internal/service"
	"cloud-drive/pkg/logger"
	"cloud-drive/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func getUserIDFromContext(c *gin.Context) (string, bool) {
	userIDValue, exists := c.Get(middleware.ContextUserID)
	if !exists {
		response.Unauthorized(c, "User not authenticated")
		return "", false
	}
	userID, ok := userIDValue.(string)
	if !ok || userID == "" {
		logger.L.Error("Invalid userID type in context", zap.Any("userIDValue", userIDValue))
		response.Error(c, "Invalid user ID in context")
		return "", false
	}
	return userID, true
}

// 业务错误对应的状态码
var errorStatus = []struct {
	err    error
	status int
}{
	{service.ErrNotFound, http.StatusNotFound},
	{service.ErrFolderNotFound, http.StatusNotFound},
	{service.ErrSharedNotFound, http.StatusNotFound},
	{service.ErrUserNotFound, http.StatusNotFound},
	{service.ErrForbidden, http.StatusForbidden},
	{service.ErrInvalidToken, http.StatusForbidden},
	{service.ErrNoRefreshToken, http.StatusUnauthorized},
	{service.ErrNotInTrash, http.StatusBadRequest},
	{service.ErrFolderNameRequired, http.StatusBadRequest},
	{service.ErrFolderExists, http.StatusBadRequest},
	{service.ErrNoFile, http.StatusBadRequest},
	{service.ErrFileTooLarge, http.StatusBadRequest},
	{service.ErrInvalidAvatar, http.StatusBadRequest},
	{service.ErrInvalidCredentials, http.StatusBadRequest},
	{service.ErrUserExists, http.StatusBadRequest},
}

// errorWriter 把service错误转换为统一响应
// 非生产环境下500响应带上原始错误信息
type errorWriter struct {
	debug bool
}

func (w errorWriter) write(c *gin.Context, err error, fallback string) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			response.Fail(c, e.status, e.err.Error())
			return
		}
	}

	logger.L.Error(fallback, zap.String("path", c.FullPath()), zap.Error(err))
	_ = c.Error(err)

	message := fallback
	if w.debug {
		message = fallback + ": " + err.Error()
	}
	response.Error(c, message)
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}

// multipart表单中除文件外的额外开销
const multipartOverhead = 1 << 20

// formFile 读取上传字段, maxSize>0 时限制请求体大小
// 缺少字段返回 http.ErrMissingFile, 超限返回 service.ErrFileTooLarge
func formFile(c *gin.Context, field string, maxSize int64) (*multipart.FileHeader, error) {
	if maxSize > 0 {
		if c.Request.ContentLength > maxSize+multipartOverhead {
			return nil, service.ErrFileTooLarge
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize+multipartOverhead)
	}

	header, err := c.FormFile(field)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, service.ErrFileTooLarge
		}
		logger.L.Debug("Form file not found", zap.String("field", field), zap.Error(err))
		return nil, http.ErrMissingFile
	}
	if maxSize > 0 && header.Size > maxSize {
		return nil, service.ErrFileTooLarge
	}
	return header, nil
}

func tooLargeMessage(maxSize int64) string {
	return fmt.Sprintf("File too large, max size is %s", formatSize(maxSize))
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%d MB", n>>20)
	case n >= 1<<10:
		return fmt.Sprintf("%d KB", n>>10)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}
