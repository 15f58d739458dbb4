package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
)

// CORS 只允许前端域名跨域, 并允许携带cookie
func CORS(allowedOrigins ...string) gin.HandlerFunc {
	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           600,
	})

	return func(ctx *gin.Context) {
		preflight := ctx.Request.Method == http.MethodOptions &&
			ctx.GetHeader("Access-Control-Request-Method") != ""

		// 预检请求由cors直接写出响应
		c.HandlerFunc(ctx.Writer, ctx.Request)
		if preflight {
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}
