package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	domain "github.com/example/catalog-service/domain/catalog"
	"github.com/example/catalog-service/modules/api"
	"github.com/example/catalog-service/modules/auth"
	"github.com/example/catalog-service/modules/cache"
	"github.com/example/catalog-service/modules/catalog"
	"github.com/example/catalog-service/modules/media"
	"github.com/example/catalog-service/modules/search"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the application configuration. Values are layered: built-in
// defaults, then the YAML file, then .env, then the process environment.
type Config struct {
	HTTPPort int            `yaml:"http_port"`
	Database DatabaseConfig `yaml:"database"`
	Cache    CacheConfig    `yaml:"cache"`
	NATS     NATSConfig     `yaml:"nats"`
	Media    MediaConfig    `yaml:"media"`
	Search   SearchConfig   `yaml:"search"`
	JWT      JWTConfig      `yaml:"jwt"`
	Log      LogConfig      `yaml:"log"`
}

type DatabaseConfig struct {
	Driver  string        `yaml:"driver"`
	DSN     string        `yaml:"dsn"`
	Timeout time.Duration `yaml:"timeout"`
	LogSQL  bool          `yaml:"log_sql"`
}

type CacheConfig struct {
	Backend             string        `yaml:"backend"`
	RedisAddr           string        `yaml:"redis_addr"`
	RedisPassword       string        `yaml:"redis_password"`
	RedisDB             int           `yaml:"redis_db"`
	Prefix              string        `yaml:"prefix"`
	ListingTTL          time.Duration `yaml:"listing_ttl"`
	CategoryTTL         time.Duration `yaml:"category_ttl"`
	OpTimeout           time.Duration `yaml:"op_timeout"`
	InvalidationTimeout time.Duration `yaml:"invalidation_timeout"`
	MaxLimit            int           `yaml:"max_limit"`
	JanitorInterval     time.Duration `yaml:"janitor_interval"`
	MaxMemoryMB         int           `yaml:"max_memory_mb"`
}

type NATSConfig struct {
	Port         int    `yaml:"port"`
	JetStreamDir string `yaml:"jetstream_dir"`
}

type MediaConfig struct {
	Bucket      string `yaml:"bucket"`
	PublicURL   string `yaml:"public_url"`
	MaxFileSize int    `yaml:"max_file_size"`
}

type SearchConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Issuer string        `yaml:"issuer"`
	TTL    time.Duration `yaml:"ttl"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	cacheDefaults := cache.DefaultConfig()
	searchDefaults := search.DefaultSyncerConfig()
	jwtDefaults := auth.DefaultJWTConfig()
	return Config{
		HTTPPort: 3000,
		Database: DatabaseConfig{
			Driver:  "sqlite",
			DSN:     "./catalog.db?_foreign_keys=on&_busy_timeout=5000",
			Timeout: 5 * time.Second,
		},
		Cache: CacheConfig{
			Backend:             cacheDefaults.Backend,
			RedisAddr:           cacheDefaults.Redis.Addr,
			Prefix:              cacheDefaults.Prefix,
			ListingTTL:          cacheDefaults.TTL.Listing,
			CategoryTTL:         cacheDefaults.TTL.Category,
			OpTimeout:           cacheDefaults.Advisory.OpTimeout,
			InvalidationTimeout: cacheDefaults.InvalidationTimeout,
			MaxLimit:            catalog.DefaultMaxLimit,
			JanitorInterval:     cacheDefaults.Janitor.Interval,
		},
		NATS: NATSConfig{
			Port:         4222,
			JetStreamDir: "/tmp/catalog-service",
		},
		Media: MediaConfig{
			Bucket:      media.DefaultConfig().Bucket,
			PublicURL:   media.DefaultConfig().PublicURL,
			MaxFileSize: media.DefaultMaxFileSize,
		},
		Search: SearchConfig{
			Workers:   searchDefaults.NumWorkers,
			QueueSize: searchDefaults.QueueSize,
		},
		JWT: JWTConfig{
			Secret: jwtDefaults.SecretKey,
			Issuer: jwtDefaults.Issuer,
			TTL:    jwtDefaults.TokenDuration,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig builds the configuration. path may be empty, in which case
// CONFIG_FILE is consulted. The returned warnings describe environment
// values that were ignored.
func LoadConfig(path string) (*Config, []string, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := DefaultConfig()
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	env := &envLoader{}
	env.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, env.warnings, err
	}
	return &cfg, env.warnings, nil
}

// Validate rejects configurations the application cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("http_port %d out of range", c.HTTPPort))
	}
	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		errs = append(errs, fmt.Errorf("unsupported database driver %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database dsn is required"))
	}
	if c.Cache.Backend != "redis" && c.Cache.Backend != "memory" {
		errs = append(errs, fmt.Errorf("unsupported cache backend %q", c.Cache.Backend))
	}
	if c.Cache.ListingTTL <= 0 || c.Cache.CategoryTTL <= 0 {
		errs = append(errs, errors.New("cache TTLs must be positive"))
	}
	if c.Cache.MaxLimit < 1 {
		errs = append(errs, errors.New("cache max_limit must be positive"))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt secret is required"))
	}
	if c.JWT.TTL <= 0 {
		errs = append(errs, errors.New("jwt ttl must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) dbConfig() domain.DBConfig {
	return domain.DBConfig{
		Driver:  c.Database.Driver,
		DSN:     c.Database.DSN,
		Timeout: c.Database.Timeout,
		LogSQL:  c.Database.LogSQL,
	}
}

func (c *Config) cacheConfig() cache.Config {
	cfg := cache.DefaultConfig()
	cfg.Backend = c.Cache.Backend
	cfg.Redis = cache.RedisConfig{
		Addr:     c.Cache.RedisAddr,
		Password: c.Cache.RedisPassword,
		DB:       c.Cache.RedisDB,
	}
	cfg.Prefix = c.Cache.Prefix
	cfg.TTL = cache.TTLConfig{Listing: c.Cache.ListingTTL, Category: c.Cache.CategoryTTL}
	cfg.Advisory.OpTimeout = c.Cache.OpTimeout
	cfg.InvalidationTimeout = c.Cache.InvalidationTimeout
	cfg.Janitor = cache.JanitorConfig{
		Interval:       c.Cache.JanitorInterval,
		MaxMemoryBytes: int64(c.Cache.MaxMemoryMB) * 1024 * 1024,
	}
	return cfg
}

func (c *Config) mediaConfig() media.Config {
	return media.Config{
		NATSURL:     fmt.Sprintf("nats://127.0.0.1:%d", c.NATS.Port),
		Bucket:      c.Media.Bucket,
		PublicURL:   c.Media.PublicURL,
		MaxFileSize: c.Media.MaxFileSize,
	}
}

func (c *Config) catalogConfig() catalog.ModuleConfig {
	syncer := search.DefaultSyncerConfig()
	syncer.NumWorkers = c.Search.Workers
	syncer.QueueSize = c.Search.QueueSize
	return catalog.ModuleConfig{
		DB:       c.dbConfig(),
		MaxLimit: c.Cache.MaxLimit,
		Search:   syncer,
	}
}

func (c *Config) apiConfig() api.Config {
	return api.Config{
		Port:        c.HTTPPort,
		MaxFileSize: int64(c.Media.MaxFileSize),
	}
}

func (c *Config) jwtConfig() auth.JWTConfig {
	return auth.JWTConfig{
		SecretKey:     c.JWT.Secret,
		TokenDuration: c.JWT.TTL,
		Issuer:        c.JWT.Issuer,
	}
}

// envLoader overlays environment variables and remembers the ones it had
// to ignore.
type envLoader struct {
	warnings []string
}

func (l *envLoader) apply(cfg *Config) {
	cfg.HTTPPort = l.getEnvInt("HTTP_PORT", cfg.HTTPPort)

	cfg.Database.Driver = l.getEnv("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = l.getEnv("DB_DSN", cfg.Database.DSN)
	cfg.Database.Timeout = l.getEnvDuration("DB_TIMEOUT", cfg.Database.Timeout)
	cfg.Database.LogSQL = l.getEnvBool("DB_LOG_SQL", cfg.Database.LogSQL)

	cfg.Cache.Backend = l.getEnv("CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.RedisAddr = l.getEnv("REDIS_ADDR", cfg.Cache.RedisAddr)
	cfg.Cache.RedisPassword = l.getEnv("REDIS_PASSWORD", cfg.Cache.RedisPassword)
	cfg.Cache.RedisDB = l.getEnvInt("REDIS_DB", cfg.Cache.RedisDB)
	cfg.Cache.Prefix = l.getEnv("CACHE_PREFIX", cfg.Cache.Prefix)
	cfg.Cache.ListingTTL = l.getEnvDuration("CACHE_LISTING_TTL", cfg.Cache.ListingTTL)
	cfg.Cache.CategoryTTL = l.getEnvDuration("CACHE_CATEGORY_TTL", cfg.Cache.CategoryTTL)
	cfg.Cache.OpTimeout = l.getEnvDuration("CACHE_OP_TIMEOUT", cfg.Cache.OpTimeout)
	cfg.Cache.InvalidationTimeout = l.getEnvDuration("CACHE_INVALIDATION_TIMEOUT", cfg.Cache.InvalidationTimeout)
	cfg.Cache.MaxLimit = l.getEnvInt("CACHE_MAX_LIMIT", cfg.Cache.MaxLimit)
	cfg.Cache.JanitorInterval = l.getEnvDuration("CACHE_JANITOR_INTERVAL", cfg.Cache.JanitorInterval)
	cfg.Cache.MaxMemoryMB = l.getEnvInt("CACHE_MAX_MEMORY_MB", cfg.Cache.MaxMemoryMB)

	cfg.NATS.Port = l.getEnvInt("NATS_PORT", cfg.NATS.Port)
	cfg.NATS.JetStreamDir = l.getEnv("JETSTREAM_DIR", cfg.NATS.JetStreamDir)

	cfg.Media.Bucket = l.getEnv("MEDIA_BUCKET", cfg.Media.Bucket)
	cfg.Media.PublicURL = l.getEnv("MEDIA_PUBLIC_URL", cfg.Media.PublicURL)
	cfg.Media.MaxFileSize = l.getEnvInt("MEDIA_MAX_FILE_SIZE", cfg.Media.MaxFileSize)

	cfg.Search.Workers = l.getEnvInt("SEARCH_WORKERS", cfg.Search.Workers)
	cfg.Search.QueueSize = l.getEnvInt("SEARCH_QUEUE_SIZE", cfg.Search.QueueSize)

	cfg.JWT.Secret = l.getEnv("JWT_SECRET", cfg.JWT.Secret)
	cfg.JWT.Issuer = l.getEnv("JWT_ISSUER", cfg.JWT.Issuer)
	cfg.JWT.TTL = l.getEnvDuration("JWT_TTL", cfg.JWT.TTL)

	cfg.Log.Level = l.getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = l.getEnv("LOG_FORMAT", cfg.Log.Format)
}

func (l *envLoader) warn(key, value string, defaultValue any) {
	l.warnings = append(l.warnings,
		fmt.Sprintf("invalid value for %s: %q, using default: %v", key, value, defaultValue))
}

// getEnv returns environment variable value or default.
func (l *envLoader) getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns environment variable as int or default.
func (l *envLoader) getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		l.warn(key, value, defaultValue)
	}
	return defaultValue
}

// getEnvDuration returns environment variable as a positive duration or
// default.
func (l *envLoader) getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
		l.warn(key, value, defaultValue)
	}
	return defaultValue
}

// getEnvBool returns environment variable as bool or default.
func (l *envLoader) getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
		l.warn(key, value, defaultValue)
	}
	return defaultValue
}
