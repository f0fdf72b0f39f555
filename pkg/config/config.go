package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Simulation SimulationConfig
	Variables  VariableCacheConfig
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
	Secret     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SimulationConfig governs the job pipeline: queue sizing, the poller that
// re-selects pending work, and the reclaim policy for jobs stuck in
// PROCESSING after a crash.
type SimulationConfig struct {
	WorkerConcurrency int
	QueueBuffer       int
	QueueRetries      int
	QueueRetryDelay   time.Duration
	PollInterval      time.Duration
	PollBatchSize     int
	PreviewLimit      int
	ProcessingTimeout time.Duration
}

// VariableCacheConfig tunes the read-through cache for scenario variables.
type VariableCacheConfig struct {
	Enabled  bool
	CacheTTL time.Duration
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
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

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

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Simulation = SimulationConfig{
		WorkerConcurrency: v.GetInt("SIM_WORKER_CONCURRENCY"),
		QueueBuffer:       v.GetInt("SIM_QUEUE_BUFFER"),
		QueueRetries:      v.GetInt("SIM_QUEUE_RETRIES"),
		QueueRetryDelay:   parseDuration(v.GetString("SIM_QUEUE_RETRY_DELAY"), 5*time.Second),
		PollInterval:      parseDuration(v.GetString("SIM_POLL_INTERVAL"), 30*time.Second),
		PollBatchSize:     v.GetInt("SIM_POLL_BATCH_SIZE"),
		PreviewLimit:      v.GetInt("SIM_PREVIEW_LIMIT"),
		ProcessingTimeout: parseDuration(v.GetString("SIM_PROCESSING_TIMEOUT"), 10*time.Minute),
	}

	cfg.Variables = VariableCacheConfig{
		Enabled:  v.GetBool("ENABLE_VARIABLE_CACHE"),
		CacheTTL: parseDuration(v.GetString("VARIABLE_CACHE_TTL"), 15*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "simlab")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SIM_WORKER_CONCURRENCY", 4)
	v.SetDefault("SIM_QUEUE_BUFFER", 64)
	v.SetDefault("SIM_QUEUE_RETRIES", 3)
	v.SetDefault("SIM_QUEUE_RETRY_DELAY", "5s")
	v.SetDefault("SIM_POLL_INTERVAL", "30s")
	v.SetDefault("SIM_POLL_BATCH_SIZE", 25)
	v.SetDefault("SIM_PREVIEW_LIMIT", 5)
	v.SetDefault("SIM_PROCESSING_TIMEOUT", "10m")

	v.SetDefault("ENABLE_VARIABLE_CACHE", true)
	v.SetDefault("VARIABLE_CACHE_TTL", "15m")
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

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
