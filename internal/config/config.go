package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用配置，来源于环境变量与 .env 文件
type Config struct {
	Port    string `mapstructure:"PORT"`
	AppEnv  string `mapstructure:"APP_ENV"`
	SiteURL string `mapstructure:"SITE_URL"`

	DBDriver    string `mapstructure:"DB_DRIVER"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	SeedGroups  bool   `mapstructure:"SEED_GROUPS"`

	SessionSecret string `mapstructure:"SESSION_SECRET"`

	PageSize      int           `mapstructure:"PAGE_SIZE"`
	IndexCacheTTL time.Duration `mapstructure:"INDEX_CACHE_TTL"`
	CacheBackend  string        `mapstructure:"CACHE_BACKEND"`
	CacheSize     int           `mapstructure:"CACHE_SIZE"`
	RedisURL      string        `mapstructure:"REDIS_URL"`

	StorageBackend string `mapstructure:"STORAGE_BACKEND"`
	MediaRoot      string `mapstructure:"MEDIA_ROOT"`
	ImgurClientID  string `mapstructure:"IMGUR_CLIENT_ID"`
	MaxUploadMB    int64  `mapstructure:"MAX_UPLOAD_MB"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
}

var keys = map[string]any{
	"PORT":            "8080",
	"APP_ENV":         "development",
	"SITE_URL":        "http://localhost:8080",
	"DB_DRIVER":       "sqlite",
	"DATABASE_URL":    "inkwell.db",
	"SEED_GROUPS":     true,
	"SESSION_SECRET":  "secret_key_change_me",
	"PAGE_SIZE":       10,
	"INDEX_CACHE_TTL": 20 * time.Second,
	"CACHE_BACKEND":   "memory",
	"CACHE_SIZE":      500,
	"REDIS_URL":       "localhost:6379",
	"STORAGE_BACKEND": "local",
	"MEDIA_ROOT":      "media",
	"IMGUR_CLIENT_ID": "",
	"MAX_UPLOAD_MB":   5,
	"LOG_LEVEL":       "info",
	"LOG_FORMAT":      "console",
}

// Load 读取 .env（若存在）后从环境变量装载配置
func Load() (*Config, error) {
	// .env is optional; real environment wins over it.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	for k, def := range keys {
		v.SetDefault(k, def)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	return &cfg, nil
}

// Default 返回全部使用默认值的配置，测试与 CLI 使用
func Default() *Config {
	v := viper.New()
	for k, def := range keys {
		v.SetDefault(k, def)
	}
	var cfg Config
	_ = v.Unmarshal(&cfg)
	cfg.normalize()
	return &cfg
}

func (c *Config) normalize() {
	if c.PageSize < 1 {
		c.PageSize = 10
	}
	if c.CacheSize < 1 {
		c.CacheSize = 500
	}
	if c.MaxUploadMB < 1 {
		c.MaxUploadMB = 5
	}
	c.SiteURL = strings.TrimRight(c.SiteURL, "/")
}

// IsProduction reports whether the app runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// MaxUploadBytes 上传图片大小上限
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB * 1024 * 1024
}
