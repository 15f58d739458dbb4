package middleware

import (
	"context"
	"strings"

	"cloud-drive/internal/model"
	"cloud-drive/pkg/logger"
	"cloud-drive/pkg/response"
	"cloud-drive/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 上下文中的键
const (
	ContextUserID = "userID"
	ContextUser   = "user"
)

// UserResolver 按ID获取用户, 不存在时返回nil, nil
// service.AuthService实现
type UserResolver interface {
	ResolveUser(ctx context.Context, id string) (*model.User, error)
}

// 验证JWT中间件
func AuthMiddleware(tokens *utils.TokenManager, users UserResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")

		// 通常Authorization格式为: "Bearer token"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			response.Unauthorized(c, "Not authorized, no token")
			c.Abort()
			return
		}

		// 解析token
		claims, err := tokens.ParseAccessToken(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Unauthorized(c, "Not authorized, token failed")
			c.Abort()
			return
		}

		// 获取用户信息
		user, err := users.ResolveUser(c.Request.Context(), claims.UserID)
		if err != nil {
			logger.L.Error("Failed to resolve user", zap.String("userID", claims.UserID), zap.Error(err))
			response.Error(c, "")
			c.Abort()
			return
		}
		if user == nil {
			response.Unauthorized(c, "User not found")
			c.Abort()
			return
		}

		// 将用户ID存储在上下文中
		c.Set(ContextUserID, user.ID)
		c.Set(ContextUser, user)

		c.Next()
	}
}

// RequireRole 必须在AuthMiddleware之后使用
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			response.Unauthorized(c, "")
			c.Abort()
			return
		}
		for _, role := range roles {
			if user.Role == role {
				c.Next()
				return
			}
		}
		response.Forbidden(c, "Access Denied. Insufficient permissions.")
		c.Abort()
	}
}

// CurrentUser 取出AuthMiddleware写入的用户
func CurrentUser(c *gin.Context) (*model.User, bool) {
	v, exists := c.Get(ContextUser)
	if !exists {
		return nil, false
	}
	user, ok := v.(*model.User)
	return user, ok && user != nil
}
