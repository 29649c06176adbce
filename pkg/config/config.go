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

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Scheduler SchedulerConfig
	Exports   ExportsConfig
	Cache     CacheConfig
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

// SchedulerConfig tunes the generation engine. Weights are fixed for the
// duration of one generation run.
type SchedulerConfig struct {
	ProposalTTL time.Duration
	LockTimeout time.Duration
	YearMin     int
	YearMax     int

	WeightFairness  float64
	WeightRecency   float64
	WeightPref      float64
	WeightFrequency float64
	WeightSibling   float64
	WeightBag       float64

	// ConsecutiveMonthJobs lists job names (lowercase) that a person may not
	// serve in two calendar months in a row.
	ConsecutiveMonthJobs []string
	// DayExclusivePairs lists "jobA:jobB" name pairs that exclude each other
	// on the same service date. Empty means every job pair excludes.
	DayExclusivePairs []string
}

// ExportsConfig configures asynchronous schedule export generation.
type ExportsConfig struct {
	Enabled           bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	ResultTTL         time.Duration
	CleanupInterval   time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

// CacheConfig governs the read-side redis cache.
type CacheConfig struct {
	Enabled     bool
	DefaultTTL  time.Duration
	FairnessTTL time.Duration
	ScheduleTTL time.Duration
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

	cfg.Scheduler = SchedulerConfig{
		ProposalTTL:          parseDuration(v.GetString("SCHEDULER_PROPOSAL_TTL"), 30*time.Minute),
		LockTimeout:          parseDuration(v.GetString("SCHEDULER_LOCK_TIMEOUT"), 10*time.Second),
		YearMin:              v.GetInt("SCHEDULER_YEAR_MIN"),
		YearMax:              v.GetInt("SCHEDULER_YEAR_MAX"),
		WeightFairness:       v.GetFloat64("SCHEDULER_WEIGHT_FAIRNESS"),
		WeightRecency:        v.GetFloat64("SCHEDULER_WEIGHT_RECENCY"),
		WeightPref:           v.GetFloat64("SCHEDULER_WEIGHT_PREFERENCE"),
		WeightFrequency:      v.GetFloat64("SCHEDULER_WEIGHT_FREQUENCY"),
		WeightSibling:        v.GetFloat64("SCHEDULER_WEIGHT_SIBLING"),
		WeightBag:            v.GetFloat64("SCHEDULER_WEIGHT_ROTATION"),
		ConsecutiveMonthJobs: splitAndTrim(v.GetString("SCHEDULER_CONSECUTIVE_MONTH_JOBS")),
		DayExclusivePairs:    splitAndTrim(v.GetString("SCHEDULER_DAY_EXCLUSIVE_PAIRS")),
	}

	cfg.Exports = ExportsConfig{
		Enabled:           v.GetBool("ENABLE_EXPORTS"),
		StorageDir:        v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		ResultTTL:         parseDuration(v.GetString("EXPORTS_RESULT_TTL"), 24*time.Hour),
		CleanupInterval:   parseDuration(v.GetString("EXPORTS_CLEANUP_INTERVAL"), time.Hour),
		WorkerConcurrency: v.GetInt("EXPORTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("EXPORTS_WORKER_RETRIES"),
	}

	cfg.Cache = CacheConfig{
		Enabled:     v.GetBool("ENABLE_CACHE"),
		DefaultTTL:  parseDuration(v.GetString("CACHE_DEFAULT_TTL"), 10*time.Minute),
		FairnessTTL: parseDuration(v.GetString("CACHE_FAIRNESS_TTL"), 15*time.Minute),
		ScheduleTTL: parseDuration(v.GetString("CACHE_SCHEDULE_TTL"), 5*time.Minute),
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
	v.SetDefault("DB_NAME", "turnos")
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

	v.SetDefault("SCHEDULER_PROPOSAL_TTL", "30m")
	v.SetDefault("SCHEDULER_LOCK_TIMEOUT", "10s")
	v.SetDefault("SCHEDULER_YEAR_MIN", 2020)
	v.SetDefault("SCHEDULER_YEAR_MAX", 2100)
	v.SetDefault("SCHEDULER_WEIGHT_FAIRNESS", 0.70)
	v.SetDefault("SCHEDULER_WEIGHT_RECENCY", 0.20)
	v.SetDefault("SCHEDULER_WEIGHT_PREFERENCE", 0.10)
	v.SetDefault("SCHEDULER_WEIGHT_FREQUENCY", 0.10)
	v.SetDefault("SCHEDULER_WEIGHT_SIBLING", 0.15)
	v.SetDefault("SCHEDULER_WEIGHT_ROTATION", 0.30)
	v.SetDefault("SCHEDULER_CONSECUTIVE_MONTH_JOBS", "monaguillos,lectores")
	v.SetDefault("SCHEDULER_DAY_EXCLUSIVE_PAIRS", "")

	v.SetDefault("ENABLE_EXPORTS", true)
	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("EXPORTS_RESULT_TTL", "24h")
	v.SetDefault("EXPORTS_CLEANUP_INTERVAL", "1h")
	v.SetDefault("EXPORTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("EXPORTS_WORKER_RETRIES", 3)

	v.SetDefault("ENABLE_CACHE", true)
	v.SetDefault("CACHE_DEFAULT_TTL", "10m")
	v.SetDefault("CACHE_FAIRNESS_TTL", "15m")
	v.SetDefault("CACHE_SCHEDULE_TTL", "5m")
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
