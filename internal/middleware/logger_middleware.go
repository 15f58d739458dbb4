package middleware

import (
	"net/http"
	"time"

	"cloud-drive/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	RequestIDHeader  = "X-Request-ID"
	ContextRequestID = "requestID"
)

// GinZapLogger 请求日志, 每个请求带上request id
// quietPaths 中的路径(健康检查、指标)只在debug级别记录
func GinZapLogger(quietPaths ...string) gin.HandlerFunc {
	quiet := make(map[string]struct{}, len(quietPaths))
	for _, p := range quietPaths {
		quiet[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(ContextRequestID, requestID)
		c.Header(RequestIDHeader, requestID)

		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		fields := []zap.Field{
			zap.String("requestID", requestID),
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Int("bytes", c.Writer.Size()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if q := c.Request.URL.RawQuery; q != "" {
			fields = append(fields, zap.String("query", q))
		}
		if userID := c.GetString(ContextUserID); userID != "" {
			fields = append(fields, zap.String("userID", userID))
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate).String(); errs != "" {
			fields = append(fields, zap.String("error", errs))
		}

		_, isQuiet := quiet[c.Request.URL.Path]
		switch {
		case status >= http.StatusInternalServerError:
			logger.L.Error("Request", fields...)
		case status >= http.StatusBadRequest:
			logger.L.Warn("Request", fields...)
		case isQuiet:
			logger.L.Debug("Request", fields...)
		default:
			logger.L.Info("Request", fields...)
		}
	}
}
