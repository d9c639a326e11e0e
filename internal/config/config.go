// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// RedisConfig — параметры подключения к Redis (свечи, лог ордеров).
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// DatabaseConfig — параметры подключения к Postgres (снапшоты стратегий).
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
	Enabled         bool
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// ExchangeConfig — параметры подключения к upstream-бирже.
type ExchangeConfig struct {
	RestBaseURL   string
	WSBaseURL     string
	RateLimitGap  time.Duration
	RequestTimeout time.Duration
}

// EngineConfig — параметры движка рыночных данных (§4.5–4.6, §9).
type EngineConfig struct {
	MaxBaseCandles      int
	DerivedCandlesCap   int
	ShardKeepAlive      time.Duration
	ReconnectBackoff    time.Duration
	PersistThrottle     time.Duration
	HistoricalPageLimit int
	HistoricalPages     int
}

// SupervisorConfig — параметры супервизора стратегий (§4.9).
type SupervisorConfig struct {
	PersistInterval time.Duration
	SnapshotsFile   string
	LogsFile        string
}

// WebhookConfig — параметры исходящего вебхука ордеров (§4.10).
type WebhookConfig struct {
	URL string
}

// Config — корневая конфигурация процесса.
type Config struct {
	Environment string
	LogLevel    string
	LogFile     string
	DebugMode   bool

	Redis      RedisConfig
	Database   DatabaseConfig
	Exchange   ExchangeConfig
	Engine     EngineConfig
	Supervisor SupervisorConfig
	Webhook    WebhookConfig
}

// Load читает .env (если найден) и переменные окружения процесса,
// применяя значения по умолчанию для всего, что не задано.
func Load(envPath string) *Config {
	if err := godotenv.Load(envPath); err != nil {
		fmt.Printf("⚠️  .env не найден по пути %q, используем переменные окружения\n", envPath)
	}

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "production"),
		LogLevel:    getEnv("LOG_LEVEL", "INFO"),
		LogFile:     getEnv("LOG_FILE", "logs/engine.log"),
		DebugMode:   getEnvBool("DEBUG_MODE", false),

		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},

		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", "trading_signals"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			MaxConnLifetime: getEnvDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			Enabled:         getEnvBool("DB_ENABLED", true),
		},

		Exchange: ExchangeConfig{
			RestBaseURL:    getEnv("EXCHANGE_REST_BASE_URL", "https://fapi.binance.com"),
			WSBaseURL:      getEnv("EXCHANGE_WS_BASE_URL", "wss://fstream.binance.com/ws"),
			RateLimitGap:   getEnvDuration("EXCHANGE_RATE_LIMIT_GAP", 100*time.Millisecond),
			RequestTimeout: getEnvDuration("EXCHANGE_REQUEST_TIMEOUT", 10*time.Second),
		},

		Engine: EngineConfig{
			MaxBaseCandles:      getEnvInt("ENGINE_MAX_BASE_CANDLES", 5000),
			DerivedCandlesCap:   getEnvInt("ENGINE_DERIVED_CANDLES_CAP", 1000),
			ShardKeepAlive:      getEnvDuration("ENGINE_SHARD_KEEPALIVE", 60*time.Second),
			ReconnectBackoff:    getEnvDuration("ENGINE_RECONNECT_BACKOFF", 5*time.Second),
			PersistThrottle:     getEnvDuration("ENGINE_PERSIST_THROTTLE", 60*time.Second),
			HistoricalPageLimit: getEnvInt("ENGINE_HISTORICAL_PAGE_LIMIT", 1500),
			HistoricalPages:     getEnvInt("ENGINE_HISTORICAL_PAGES", 3),
		},

		Supervisor: SupervisorConfig{
			PersistInterval: getEnvDuration("SUPERVISOR_PERSIST_INTERVAL", 5*time.Second),
			SnapshotsFile:   getEnv("SUPERVISOR_SNAPSHOTS_KEY", "strategies"),
			LogsFile:        getEnv("SUPERVISOR_LOGS_KEY", "logs"),
		},

		Webhook: WebhookConfig{
			URL: getEnv("WEBHOOK_URL", ""),
		},
	}

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
