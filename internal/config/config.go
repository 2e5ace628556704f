package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	pkglogger "github.com/remembrance/memorial-backend/pkg/logger"
	"gopkg.in/yaml.v3"
)

// Config is the resolved application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	JWT      JWTConfig      `yaml:"jwt"`
	CORS     CORSConfig     `yaml:"cors"`
	Storage  StorageConfig  `yaml:"storage"`
	Jobs     JobsConfig     `yaml:"jobs"`
	Export   ExportConfig   `yaml:"export"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Cache    CacheConfig    `yaml:"cache"`
	Limits   LimitsConfig   `yaml:"limits"`
}

// ServerConfig HTTP server settings
type ServerConfig struct {
	Port int    `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release, test
	Env  string `yaml:"env"`
}

// DatabaseConfig MySQL settings
type DatabaseConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	DBName          string `yaml:"dbname"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime"` // seconds
}

// GetDSN returns the MySQL DSN. Timestamps are read and written in UTC.
func (d DatabaseConfig) GetDSN() string {
	m := mysqldriver.NewConfig()
	m.User = d.User
	m.Passwd = d.Password
	m.Net = "tcp"
	m.Addr = fmt.Sprintf("%s:%d", d.Host, d.Port)
	m.DBName = d.DBName
	m.ParseTime = true
	m.Loc = time.UTC
	m.Params = map[string]string{"charset": "utf8mb4"}
	return m.FormatDSN()
}

// RedisConfig Redis settings
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// JWTConfig token verification settings
type JWTConfig struct {
	Secret     string `yaml:"secret"`
	ExpiresIn  int    `yaml:"expires_in"` // seconds
	CookieName string `yaml:"cookie_name"`
}

// CORSConfig CORS settings
type CORSConfig struct {
	AllowOrigins string `yaml:"allow_origins"` // comma separated
}

// StorageConfig S3-compatible object storage settings
type StorageConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Bucket          string `yaml:"bucket"`
	BasePath        string `yaml:"base_path"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
	PublicURL       string `yaml:"public_url"`
	MaxUploadBytes  int64  `yaml:"max_upload_bytes"`
	MaxImageWidth   int    `yaml:"max_image_width"`
	MaxImagePixels  int64  `yaml:"max_image_pixels"` // width*height checked before decoding
}

// JobsConfig scheduled job settings
type JobsConfig struct {
	CronKey       string        `yaml:"cron_key"`
	SweepInterval time.Duration `yaml:"sweep_interval"` // 0 disables the in-process scheduler
	SweepLockTTL  time.Duration `yaml:"sweep_lock_ttl"`
}

// ExportConfig archive export settings
type ExportConfig struct {
	FetchTimeout  time.Duration `yaml:"fetch_timeout"`
	MaxImageBytes int64         `yaml:"max_image_bytes"`
	// AllowedImageHosts limits URL fetches, together with the storage.public_url host.
	// When both are empty any public address is fetched and private networks are refused.
	AllowedImageHosts []string `yaml:"allowed_image_hosts"`
}

// TracingConfig OpenTelemetry settings
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"` // host:port of the OTLP/HTTP collector
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// CacheConfig in-process cache settings
type CacheConfig struct {
	ObituarySize int           `yaml:"obituary_size"` // 0 selects the default of 1000, a negative size disables the cache
	ObituaryTTL  time.Duration `yaml:"obituary_ttl"`
}

// LimitsConfig per-caller write limits, enforced only when Redis is configured
type LimitsConfig struct {
	SubmissionsPerMinute int `yaml:"submissions_per_minute"`
	CommentsPerMinute    int `yaml:"comments_per_minute"`
}

// IsDevelopment reports whether the server runs in a local/dev environment
func (c *Config) IsDevelopment() bool {
	switch c.Server.Env {
	case "", "local", "dev", "development":
		return true
	}
	return false
}

// Load reads the YAML file at path, applies environment overrides and defaults
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyEnv(cfg)
	applyDefaults(cfg)

	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt.secret (or JWT_SECRET) is required")
	}
	if cfg.Server.Env == "production" && cfg.Jobs.CronKey == "" {
		return nil, fmt.Errorf("jobs.cron_key (or CRON_KEY) is required in production")
	}
	return cfg, nil
}

// applyEnv overrides secrets and deployment-specific values from the environment
func applyEnv(cfg *Config) {
	setString(&cfg.Server.Env, "APP_ENV")
	setInt(&cfg.Server.Port, "PORT")
	setString(&cfg.Database.Host, "DB_HOST")
	setInt(&cfg.Database.Port, "DB_PORT")
	setString(&cfg.Database.User, "DB_USER")
	setString(&cfg.Database.Password, "DB_PASSWORD")
	setString(&cfg.Database.DBName, "DB_NAME")
	setString(&cfg.Redis.Host, "REDIS_HOST")
	setInt(&cfg.Redis.Port, "REDIS_PORT")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.JWT.Secret, "JWT_SECRET")
	setString(&cfg.CORS.AllowOrigins, "CORS_ALLOW_ORIGINS")
	setString(&cfg.Storage.AccessKeyID, "S3_ACCESS_KEY_ID")
	setString(&cfg.Storage.SecretAccessKey, "S3_SECRET_ACCESS_KEY")
	setString(&cfg.Jobs.CronKey, "CRON_KEY")
	setString(&cfg.Tracing.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8082
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 3306
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 10
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 50
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 300
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 10
	}
	if cfg.JWT.ExpiresIn == 0 {
		cfg.JWT.ExpiresIn = 900
	}
	if cfg.JWT.CookieName == "" {
		cfg.JWT.CookieName = "memorial_jwt"
	}
	if cfg.Jobs.SweepLockTTL == 0 {
		cfg.Jobs.SweepLockTTL = 10 * time.Minute
	}
	if cfg.Storage.MaxUploadBytes == 0 {
		cfg.Storage.MaxUploadBytes = 10 << 20
	}
	if cfg.Storage.MaxImageWidth == 0 {
		cfg.Storage.MaxImageWidth = 2048
	}
	if cfg.Storage.MaxImagePixels == 0 {
		cfg.Storage.MaxImagePixels = 40_000_000
	}
	if cfg.Export.FetchTimeout == 0 {
		cfg.Export.FetchTimeout = 30 * time.Second
	}
	if cfg.Export.MaxImageBytes == 0 {
		cfg.Export.MaxImageBytes = 20 << 20
	}
	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = 1
	}
	if cfg.Cache.ObituarySize == 0 {
		cfg.Cache.ObituarySize = 1000
	}
	if cfg.Cache.ObituaryTTL == 0 {
		cfg.Cache.ObituaryTTL = time.Minute
	}
	if cfg.Limits.SubmissionsPerMinute == 0 {
		cfg.Limits.SubmissionsPerMinute = 5
	}
	if cfg.Limits.CommentsPerMinute == 0 {
		cfg.Limits.CommentsPerMinute = 10
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// LogResolved prints the resolved non-secret settings
func LogResolved(cfg *Config) {
	pkglogger.GetLogger().Info().
		Str("env", cfg.Server.Env).
		Int("port", cfg.Server.Port).
		Str("db_host", cfg.Database.Host).
		Str("db_name", cfg.Database.DBName).
		Str("redis_host", cfg.Redis.Host).
		Bool("storage_enabled", cfg.Storage.Enabled).
		Bool("cron_key_set", cfg.Jobs.CronKey != "").
		Dur("sweep_interval", cfg.Jobs.SweepInterval).
		Bool("tracing_enabled", cfg.Tracing.Enabled).
		Msg("config resolved")
}
