package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Storage and lock drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
	DriverLocal    = "local"
	DriverRedis    = "redis"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	StorageDriver string
	SeedFile      string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Log      LogConfig
	Lock     LockConfig
	Catalog  CatalogConfig
	Events   EventsConfig
	CORS     CORSConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type LogConfig struct {
	Level  string
	Format string
}

// LockConfig selects the per-document lock implementation.
type LockConfig struct {
	Driver  string
	Timeout time.Duration
	TTL     time.Duration
}

// CatalogConfig governs requirement catalog behaviour and caching.
type CatalogConfig struct {
	CacheEnabled             bool
	CacheTTL                 time.Duration
	ContinuingEnrollmentType string
}

// EventsConfig tunes the domain event dispatcher.
type EventsConfig struct {
	Workers        int
	Buffer         int
	Retries        int
	RetryDelay     time.Duration
	Channel        string
	PublishToRedis bool
}

// CORSConfig lists the browser origins allowed to call the API. An empty
// list allows any origin without credentials.
type CORSConfig struct {
	AllowedOrigins []string
	MaxAge         time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.StorageDriver = strings.ToLower(v.GetString("STORAGE_DRIVER"))
	cfg.SeedFile = v.GetString("STORAGE_SEED_FILE")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET")}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Lock = LockConfig{
		Driver:  strings.ToLower(v.GetString("LOCK_DRIVER")),
		Timeout: parseDuration(v.GetString("LOCK_TIMEOUT"), 5*time.Second),
		TTL:     parseDuration(v.GetString("LOCK_TTL"), 30*time.Second),
	}

	cfg.Catalog = CatalogConfig{
		CacheEnabled:             v.GetBool("CATALOG_CACHE_ENABLED"),
		CacheTTL:                 parseDuration(v.GetString("CATALOG_CACHE_TTL"), 10*time.Minute),
		ContinuingEnrollmentType: v.GetString("CONTINUING_ENROLLMENT_TYPE"),
	}

	cfg.Events = EventsConfig{
		Workers:        v.GetInt("EVENTS_WORKERS"),
		Buffer:         v.GetInt("EVENTS_BUFFER"),
		Retries:        v.GetInt("EVENTS_RETRIES"),
		RetryDelay:     parseDuration(v.GetString("EVENTS_RETRY_DELAY"), time.Second),
		Channel:        v.GetString("EVENTS_CHANNEL"),
		PublishToRedis: v.GetBool("EVENTS_PUBLISH_REDIS"),
	}

	cfg.CORS = CORSConfig{
		AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		MaxAge:         parseDuration(v.GetString("CORS_MAX_AGE"), 10*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("STORAGE_DRIVER", DriverPostgres)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "enrollment_docs")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("LOCK_DRIVER", DriverLocal)
	v.SetDefault("LOCK_TIMEOUT", "5s")
	v.SetDefault("LOCK_TTL", "30s")

	v.SetDefault("CATALOG_CACHE_ENABLED", false)
	v.SetDefault("CATALOG_CACHE_TTL", "10m")
	v.SetDefault("CONTINUING_ENROLLMENT_TYPE", "Continuing Student")

	v.SetDefault("EVENTS_WORKERS", 2)
	v.SetDefault("EVENTS_BUFFER", 64)
	v.SetDefault("EVENTS_RETRIES", 3)
	v.SetDefault("EVENTS_RETRY_DELAY", "1s")
	v.SetDefault("EVENTS_CHANNEL", "enrollment.document.events")
	v.SetDefault("EVENTS_PUBLISH_REDIS", false)

	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.SetDefault("CORS_MAX_AGE", "10m")
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}
