package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/xxxsen/common/logger"
)

const EnvironmentProduction = "production"

type Config struct {
	Port        int              `json:"port"`
	Environment string           `json:"environment"`
	JWTSecret   string           `json:"jwt_secret"`
	Database    DatabaseConfig   `json:"database"`
	GuestToken  GuestTokenConfig `json:"guest_token"`
	Redis       RedisConfig      `json:"redis"`
	RateLimit   RateLimitConfig  `json:"rate_limit"`
	Cache       CacheConfig      `json:"cache"`
	Reconcile   ReconcileConfig  `json:"reconcile"`
	CORSOrigins []string         `json:"cors_origins"`
	LogConfig   logger.LogConfig `json:"log_config"`
	FileStore   FileStoreConfig  `json:"file_store"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type GuestTokenConfig struct {
	Secret           string `json:"secret"`
	TTLSeconds       int64  `json:"ttl_seconds"`
	InviteTTLSeconds int64  `json:"invite_ttl_seconds"`
}

// RedisConfig is optional. Without an address the tag store and password
// throttle stay in process.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type RateLimitConfig struct {
	PasswordAttempts      int     `json:"password_attempts"`
	PasswordWindowSeconds int     `json:"password_window_seconds"`
	CommentRPS            float64 `json:"comment_rps"`
	CommentBurst          int     `json:"comment_burst"`
}

type CacheConfig struct {
	Size              int   `json:"size"`
	TTLSeconds        int64 `json:"ttl_seconds"`
	MaxStaleSeconds   int64 `json:"max_stale_seconds"`
	TagRetentionHours int64 `json:"tag_retention_hours"`
}

type ReconcileConfig struct {
	Schedule  string `json:"schedule"`
	BatchSize int    `json:"batch_size"`
}

type FileStoreConfig struct {
	Type      string   `json:"type"`
	Dir       string   `json:"dir"`
	PublicURL string   `json:"public_url"`
	S3        S3Config `json:"s3"`
}

type S3Config struct {
	Endpoint  string `json:"endpoint"`
	SecretID  string `json:"secret_id"`
	SecretKey string `json:"secret_key"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	Prefix    string `json:"prefix"`
	PublicURL string `json:"public_url"`
	UseSSL    bool   `json:"use_ssl"`
}

func (cfg *Config) IsProduction() bool {
	return cfg.Environment == EnvironmentProduction
}

// Load reads the JSON config at path, applies TRIBUTE_* environment
// overrides (a .env file in the working directory is honored) and fills
// defaults.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	_ = godotenv.Load()
	applyEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix("TRIBUTE")
	v.AutomaticEnv()

	setString := func(key string, dst *string) {
		if s := v.GetString(key); s != "" {
			*dst = s
		}
	}
	setInt := func(key string, dst *int) {
		if v.GetString(key) != "" {
			*dst = v.GetInt(key)
		}
	}
	setString("ENVIRONMENT", &cfg.Environment)
	setInt("PORT", &cfg.Port)
	setString("JWT_SECRET", &cfg.JWTSecret)
	setString("DATABASE_DSN", &cfg.Database.DSN)
	setString("GUEST_TOKEN_SECRET", &cfg.GuestToken.Secret)
	setString("REDIS_ADDR", &cfg.Redis.Addr)
	setString("REDIS_PASSWORD", &cfg.Redis.Password)
	setInt("REDIS_DB", &cfg.Redis.DB)
	if origins := v.GetString("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = strings.Split(origins, ",")
	}
}

func (cfg *Config) validate() error {
	if cfg.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if cfg.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	if cfg.GuestToken.Secret == "" {
		return fmt.Errorf("guest_token.secret is required")
	}
	if cfg.GuestToken.Secret == cfg.JWTSecret {
		return fmt.Errorf("guest_token.secret must differ from jwt_secret")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.GuestToken.TTLSeconds <= 0 {
		cfg.GuestToken.TTLSeconds = 7 * 24 * 3600
	}
	if cfg.GuestToken.InviteTTLSeconds <= 0 {
		cfg.GuestToken.InviteTTLSeconds = 30 * 24 * 3600
	}
	if cfg.RateLimit.PasswordAttempts <= 0 {
		cfg.RateLimit.PasswordAttempts = 5
	}
	if cfg.RateLimit.PasswordWindowSeconds <= 0 {
		cfg.RateLimit.PasswordWindowSeconds = 300
	}
	if cfg.RateLimit.CommentRPS <= 0 {
		cfg.RateLimit.CommentRPS = 0.2
	}
	if cfg.RateLimit.CommentBurst <= 0 {
		cfg.RateLimit.CommentBurst = 3
	}
	if cfg.Cache.Size <= 0 {
		cfg.Cache.Size = 4096
	}
	if cfg.Cache.TTLSeconds <= 0 {
		cfg.Cache.TTLSeconds = 600
	}
	if cfg.Cache.MaxStaleSeconds <= 0 {
		cfg.Cache.MaxStaleSeconds = 60
	}
	if cfg.Cache.TagRetentionHours <= 0 {
		cfg.Cache.TagRetentionHours = 24
	}
	if cfg.Reconcile.Schedule == "" {
		cfg.Reconcile.Schedule = "@every 1m"
	}
	if cfg.Reconcile.BatchSize <= 0 {
		cfg.Reconcile.BatchSize = 200
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	switch cfg.FileStore.Type {
	case "local":
		if cfg.FileStore.Dir == "" {
			return fmt.Errorf("file_store.dir is required for local store")
		}
	case "s3":
		if cfg.FileStore.S3.Endpoint == "" || cfg.FileStore.S3.Bucket == "" || cfg.FileStore.S3.SecretID == "" || cfg.FileStore.S3.SecretKey == "" {
			return fmt.Errorf("file_store.s3 endpoint/bucket/secret_id/secret_key are required for s3 store")
		}
		if cfg.FileStore.S3.Region == "" {
			cfg.FileStore.S3.Region = "cn"
		}
	default:
		return fmt.Errorf("file_store.type must be local or s3")
	}
	return nil
}
