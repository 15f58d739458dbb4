package api

import (
	"context"
	"net/http"
	"time"

	"cloud-drive/internal/cache"
	"cloud-drive/internal/middleware"
	"cloud-drive/internal/model"
	"cloud-drive/internal/oauth"
	"cloud-drive/internal/service"
	"cloud-drive/pkg/db"
	"cloud-drive/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// RouterDeps 组装路由所需的全部依赖
type RouterDeps struct {
	DB          *gorm.DB
	Cache       *cache.Cache
	Tokens      *utils.TokenManager
	AuthService *service.AuthService
	FileService *service.FileService
	// 未配置Google登录时为nil
	Google *oauth.GoogleProvider

	FrontendURL string
	Production  bool
	// 本地存储目录, 非空时挂载/uploads
	UploadsDir string
}

// NewRouter 创建Gin引擎并注册所有路由
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.GinZapLogger("/healthz", "/metrics"), gin.Recovery(), middleware.Metrics(), middleware.CORS(deps.FrontendURL))
	r.MaxMultipartMemory = 8 << 20

	debug := !deps.Production
	authHandler := NewAuthHandler(deps.AuthService, deps.Google, AuthHandlerOptions{
		FrontendURL:  deps.FrontendURL,
		CookieMaxAge: int(deps.Tokens.RefreshTTL().Seconds()),
		Production:   deps.Production,
	})
	fileHandler := NewFileHandler(deps.FileService, debug)
	shareHandler := NewFileShareHandler(deps.FileService, debug)
	profileHandler := NewProfileHandler(deps.AuthService, deps.FileService.MaxUploadSize(), debug)
	adminHandler := NewAdminHandler(deps.Cache)

	r.GET("/healthz", healthz(deps.DB, deps.Cache))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if deps.UploadsDir != "" {
		r.Static("/uploads", deps.UploadsDir)
	}

	protect := middleware.AuthMiddleware(deps.Tokens, deps.AuthService)

	api := r.Group("/api")

	// 公开路由
	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/logout", authHandler.Logout)
		auth.POST("/refresh-token", authHandler.RefreshToken)
		auth.GET("/google", authHandler.GoogleLogin)
		auth.GET("/google/callback", authHandler.GoogleCallback)
	}

	files := api.Group("/files")
	files.GET("/shared/:shareId", shareHandler.GetSharedFile)

	// 受保护的路由
	owned := files.Group("", protect)
	{
		owned.POST("/upload", fileHandler.UploadFile)
		owned.GET("", fileHandler.GetUserFiles)
		owned.GET("/search", fileHandler.SearchFiles)
		owned.GET("/preview/:id", fileHandler.PreviewFile)
		owned.GET("/download/:id", fileHandler.DownloadFile)
		owned.POST("/folder", fileHandler.CreateFolder)
		owned.POST("/share/:id", shareHandler.ShareFile)
		owned.DELETE("/share/:id", shareHandler.UnshareFile)
		owned.PATCH("/star/:id", fileHandler.ToggleStar)
		owned.PATCH("/trash/:id", fileHandler.MoveToTrash)
		owned.PATCH("/restore/:id", fileHandler.RestoreFromTrash)
		owned.DELETE("/permanent/:id", fileHandler.PermanentDelete)
		owned.DELETE("/:id", fileHandler.DeleteFile)
	}

	profile := api.Group("/profile", protect)
	{
		profile.GET("/me", profileHandler.Me)
		profile.PATCH("/update", profileHandler.Update)
	}

	admin := api.Group("/admin", protect, middleware.RequireRole(model.RoleAdmin))
	{
		admin.GET("/cache", adminHandler.CacheInfo)
		admin.DELETE("/cache", adminHandler.ClearCache)
	}

	return r
}

func healthz(conn *gorm.DB, c *cache.Cache) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		dbStatus := "ok"
		if err := db.Ping(reqCtx, conn); err != nil {
			status = http.StatusServiceUnavailable
			dbStatus = err.Error()
		}

		// 缓存故障只降级, 不影响健康状态
		cacheStatus := "disabled"
		if c.Enabled() {
			cacheStatus = "ok"
			if err := c.Ping(reqCtx); err != nil {
				cacheStatus = err.Error()
			}
		}

		ctx.JSON(status, gin.H{"database": dbStatus, "cache": cacheStatus})
	}
}
