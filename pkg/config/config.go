package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Files    FilesConfig    `mapstructure:"files"`
	OAuth    OAuthConfig    `mapstructure:"oauth"`
	Log      LogConfig      `mapstructure:"log"`
}

type AppConfig struct {
	// development / production
	Env         string `mapstructure:"env"`
	FrontendURL string `mapstructure:"frontend_url"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// mysql / postgres / sqlite
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type JWTConfig struct {
	Secret        string        `mapstructure:"secret"`
	RefreshSecret string        `mapstructure:"refresh_secret"`
	Expiration    time.Duration `mapstructure:"expiration"`
	RefreshTTL    time.Duration `mapstructure:"refresh_ttl"`
}

type RedisConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
}

// Addr 返回 host:port 形式的地址
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type StorageConfig struct {
	// local / s3
	Driver    string `mapstructure:"driver"`
	LocalPath string `mapstructure:"local_path"`
	PublicURL string `mapstructure:"public_url"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type FilesConfig struct {
	MaxUploadSize     int64 `mapstructure:"max_upload_size"`
	FolderDeleteDepth int   `mapstructure:"folder_delete_depth"`
	DefaultPageSize   int   `mapstructure:"default_page_size"`
	MaxPageSize       int   `mapstructure:"max_page_size"`
}

type OAuthConfig struct {
	GoogleClientID     string        `mapstructure:"google_client_id"`
	GoogleClientSecret string        `mapstructure:"google_client_secret"`
	GoogleCallbackURL  string        `mapstructure:"google_callback_url"`
	StateTTL           time.Duration `mapstructure:"state_ttl"`
}

type LogConfig struct {
	Level          string `mapstructure:"level"`
	ProductionMode bool   `mapstructure:"production_mode"`
	File           string `mapstructure:"file"`
	MaxSizeMB      int    `mapstructure:"max_size_mb"`
	MaxBackups     int    `mapstructure:"max_backups"`
	MaxAgeDays     int    `mapstructure:"max_age_days"`
}

// IsProduction 判断是否生产环境
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Env, "production")
}

// GoogleEnabled 判断是否配置了Google登录
func (c *Config) GoogleEnabled() bool {
	return c.OAuth.GoogleClientID != "" && c.OAuth.GoogleClientSecret != ""
}

// 环境变量到配置键的映射
var envBindings = map[string]string{
	"app.env":                    "APP_ENV",
	"app.frontend_url":           "FRONTEND_URL",
	"server.port":                "PORT",
	"database.driver":            "DATABASE_DRIVER",
	"database.dsn":               "DATABASE_DSN",
	"jwt.secret":                 "JWT_SECRET",
	"jwt.refresh_secret":         "JWT_REFRESH_SECRET",
	"jwt.expiration":             "JWT_ACCESS_TTL",
	"jwt.refresh_ttl":            "JWT_REFRESH_TTL",
	"redis.enabled":              "REDIS_ENABLED",
	"redis.host":                 "REDIS_HOST",
	"redis.port":                 "REDIS_PORT",
	"redis.password":             "REDIS_PASSWORD",
	"redis.db":                   "REDIS_DB",
	"storage.driver":             "STORAGE_DRIVER",
	"storage.local_path":         "STORAGE_LOCAL_PATH",
	"storage.public_url":         "STORAGE_PUBLIC_URL",
	"storage.endpoint":           "STORAGE_ENDPOINT",
	"storage.access_key":         "STORAGE_ACCESS_KEY",
	"storage.secret_key":         "STORAGE_SECRET_KEY",
	"storage.bucket":             "STORAGE_BUCKET",
	"storage.region":             "STORAGE_REGION",
	"storage.use_ssl":            "STORAGE_USE_SSL",
	"files.max_upload_size":      "MAX_UPLOAD_SIZE",
	"files.folder_delete_depth":  "FOLDER_DELETE_DEPTH",
	"oauth.google_client_id":     "GOOGLE_CLIENT_ID",
	"oauth.google_client_secret": "GOOGLE_CLIENT_SECRET",
	"oauth.google_callback_url":  "GOOGLE_CALLBACK_URL",
	"log.level":                  "LOG_LEVEL",
	"log.file":                   "LOG_FILE",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.frontend_url", "http://localhost:3000")

	v.SetDefault("server.port", 5000)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.driver", "mysql")

	v.SetDefault("jwt.expiration", 15*time.Minute)
	v.SetDefault("jwt.refresh_ttl", 7*24*time.Hour)

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.max_retries", 3)

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local_path", "uploads")
	v.SetDefault("storage.public_url", "http://localhost:5000/uploads")

	v.SetDefault("files.max_upload_size", int64(50*1024*1024))
	v.SetDefault("files.folder_delete_depth", 1)
	v.SetDefault("files.default_page_size", 10)
	v.SetDefault("files.max_page_size", 100)

	v.SetDefault("oauth.google_callback_url", "http://localhost:5000/api/auth/google/callback")
	v.SetDefault("oauth.state_ttl", 10*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
}

// Load 读取配置文件(可选)并叠加环境变量
// path 为空时在 ./config 目录下查找 config.yaml, 找不到文件不算错误
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Log.ProductionMode = cfg.Log.ProductionMode || cfg.IsProduction()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查必填项
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret (JWT_SECRET) is required")
	}
	if c.JWT.RefreshSecret == "" {
		return errors.New("jwt.refresh_secret (JWT_REFRESH_SECRET) is required")
	}
	if c.JWT.Secret == c.JWT.RefreshSecret {
		return errors.New("jwt.secret and jwt.refresh_secret must differ")
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn (DATABASE_DSN) is required")
	}
	switch c.Storage.Driver {
	case "local":
	case "s3":
		if c.Storage.Endpoint == "" || c.Storage.Bucket == "" {
			return errors.New("storage.endpoint and storage.bucket are required for the s3 driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Files.FolderDeleteDepth < 1 {
		return errors.New("files.folder_delete_depth must be >= 1")
	}
	return nil
}
