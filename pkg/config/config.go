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
	Env  string
	Port int

	Database DatabaseConfig
	Redis    RedisConfig
	Log      LogConfig
	Source   SourceConfig
	Updater  UpdaterConfig
	Telegram TelegramConfig
	Cache    CacheConfig
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

type LogConfig struct {
	Level  string
	Format string
}

// SourceConfig points at the third-party pages the updater polls.
type SourceConfig struct {
	ScheduleURL  string
	BellURL      string
	CanteenURL   string
	FetchTimeout time.Duration
	UserAgent    string
}

// UpdaterConfig tunes the ingestion tick and notification fan-out.
type UpdaterConfig struct {
	Interval    time.Duration
	NotifyDelay time.Duration
}

// TelegramConfig configures the Telegram front end.
type TelegramConfig struct {
	Enabled bool
	Token   string
}

// CacheConfig toggles Redis caching of formatted schedule text.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
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

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Source = SourceConfig{
		ScheduleURL:  v.GetString("SCHEDULE_URL"),
		BellURL:      v.GetString("BELL_URL"),
		CanteenURL:   v.GetString("CANTEEN_URL"),
		FetchTimeout: parseDuration(v.GetString("FETCH_TIMEOUT"), 15*time.Second),
		UserAgent:    v.GetString("FETCH_USER_AGENT"),
	}

	cfg.Updater = UpdaterConfig{
		Interval:    parseDuration(v.GetString("UPDATE_INTERVAL"), 3*time.Minute),
		NotifyDelay: parseDuration(v.GetString("NOTIFY_DELAY"), 50*time.Millisecond),
	}

	cfg.Telegram = TelegramConfig{
		Enabled: v.GetBool("ENABLE_TELEGRAM"),
		Token:   v.GetString("TG_BOT_TOKEN"),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_CACHE"),
		TTL:     parseDuration(v.GetString("CACHE_TTL"), 5*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "collegebot")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SCHEDULE_URL", "https://www.novkrp.ru/raspisanie.htm")
	v.SetDefault("BELL_URL", "")
	v.SetDefault("CANTEEN_URL", "")
	v.SetDefault("FETCH_TIMEOUT", "15s")
	v.SetDefault("FETCH_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0")

	v.SetDefault("UPDATE_INTERVAL", "3m")
	v.SetDefault("NOTIFY_DELAY", "50ms")

	v.SetDefault("ENABLE_TELEGRAM", false)
	v.SetDefault("TG_BOT_TOKEN", "")

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("CACHE_TTL", "5m")
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
