package main

import (
	"fmt"
	"os"

	"cloud-drive/pkg/config"
	"cloud-drive/pkg/db"
	"cloud-drive/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "cloud-drive",
	Short:         "Cloud drive backend server",
	SilenceUsage:  true,
	SilenceErrors: true,
	// 不带子命令时等同于serve
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		conn, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return err
		}
		defer db.Close(conn)

		return db.Migrate(conn)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default ./config/config.yaml)")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

// setup 加载配置并初始化日志
func setup() (*config.Config, error) {
	// .env 文件可选
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.InitLogger(logger.Options{
		Level:          cfg.Log.Level,
		ProductionMode: cfg.Log.ProductionMode,
		File:           cfg.Log.File,
		MaxSizeMB:      cfg.Log.MaxSizeMB,
		MaxBackups:     cfg.Log.MaxBackups,
		MaxAgeDays:     cfg.Log.MaxAgeDays,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.L.Info("Configuration loaded", zap.String("env", cfg.App.Env))
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
