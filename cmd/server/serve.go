package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud-drive/internal/api"
	"cloud-drive/internal/cache"
	"cloud-drive/internal/oauth"
	"cloud-drive/internal/repository"
	"cloud-drive/internal/service"
	"cloud-drive/internal/storage"
	"cloud-drive/pkg/config"
	"cloud-drive/pkg/db"
	"cloud-drive/pkg/logger"
	"cloud-drive/pkg/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// 同时进行中的OAuth授权数量上限
const oauthStateCapacity = 4096

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

func newCache(cfg *config.Config) *cache.Cache {
	if !cfg.Redis.Enabled {
		logger.L.Info("Redis disabled, using in-memory cache")
		return cache.New(cache.NewMemoryStore(time.Minute))
	}

	c := cache.New(cache.NewRedisStore(cache.RedisOptions{
		Addr:        cfg.Redis.Addr(),
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: cfg.Redis.DialTimeout,
		MaxRetries:  cfg.Redis.MaxRetries,
	}))
	// 连接失败不阻止启动, 缓存操作会自动降级
	if err := c.Ping(context.Background()); err != nil {
		logger.L.Warn("Redis unavailable, cache will degrade", zap.String("addr", cfg.Redis.Addr()), zap.Error(err))
	} else {
		logger.L.Info("Connected to redis", zap.String("addr", cfg.Redis.Addr()))
	}
	return c
}

func serve(ctx context.Context, cfg *config.Config) error {
	// 初始化数据库连接
	conn, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close(conn)
	if err := db.Migrate(conn); err != nil {
		return err
	}

	c := newCache(cfg)
	defer c.Close()

	objects, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	var uploadsDir string
	if local, ok := objects.(*storage.LocalStorage); ok {
		uploadsDir = local.BasePath()
	}

	var google *oauth.GoogleProvider
	if cfg.GoogleEnabled() {
		google = oauth.NewGoogleProvider(oauth.GoogleOptions{
			ClientID:     cfg.OAuth.GoogleClientID,
			ClientSecret: cfg.OAuth.GoogleClientSecret,
			CallbackURL:  cfg.OAuth.GoogleCallbackURL,
		}, oauth.NewStateStore(oauthStateCapacity, cfg.OAuth.StateTTL))
	} else {
		logger.L.Info("Google OAuth not configured")
	}

	tokens := utils.NewTokenManager(cfg.JWT.Secret, cfg.JWT.RefreshSecret, cfg.JWT.Expiration, cfg.JWT.RefreshTTL)
	authService := service.NewAuthService(repository.NewUserRepository(conn), tokens, c, objects)
	fileService := service.NewFileService(repository.NewFileRepository(conn), objects, c, service.FileOptions{
		FrontendURL:       cfg.App.FrontendURL,
		MaxUploadSize:     cfg.Files.MaxUploadSize,
		FolderDeleteDepth: cfg.Files.FolderDeleteDepth,
		DefaultPageSize:   cfg.Files.DefaultPageSize,
		MaxPageSize:       cfg.Files.MaxPageSize,
	})

	router := api.NewRouter(api.RouterDeps{
		DB:          conn,
		Cache:       c,
		Tokens:      tokens,
		AuthService: authService,
		FileService: fileService,
		Google:      google,
		FrontendURL: cfg.App.FrontendURL,
		Production:  cfg.IsProduction(),
		UploadsDir:  uploadsDir,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.L.Info("Server starting", zap.String("addr", srv.Addr), zap.String("storage", cfg.Storage.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.L.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.L.Info("Server stopped")
	return nil
}
