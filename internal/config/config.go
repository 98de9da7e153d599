package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	LogLevel    string
	LogFormat   string
	NodeID      int64

	OtelEnabled       bool
	OTLPEndpoint      string
	OTLPProtocol      string
	OtelSamplingRatio float64
	MetricsAddr       string
	MetricsEnabled    bool

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBAutoMigrate     bool
	DBLogLevel        string
	DBSlowQueryMS     int

	Attachments AttachmentConfig
	Counter     CounterConfig
}

type AttachmentConfig struct {
	Backend    string
	Dir        string
	S3Bucket   string
	S3Region   string
	S3Prefix   string
	S3Endpoint string
}

type CounterConfig struct {
	Backend   string
	RedisAddr string
	RedisDB   int
	RedisPass string
}

const (
	AttachmentBackendLocal = "local"
	AttachmentBackendS3    = "s3"

	CounterBackendDB    = "db"
	CounterBackendRedis = "redis"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewContractRulesHolder),
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:           getenv("APP_SERVICE", "contractdesk"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		LogLevel:          strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogFormat:         strings.ToLower(getenv("LOG_FORMAT", "json")),
		NodeID:            getenvInt64("SNOWFLAKE_NODE", 1),
		OtelEnabled:       getenvBool("OTEL_ENABLED", false),
		OTLPEndpoint:      getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTLPProtocol:      strings.ToLower(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")),
		OtelSamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		MetricsAddr:       getenv("METRICS_ADDR", ":9090"),
		MetricsEnabled:    getenvBool("METRICS_ENABLED", true),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "contractdesk"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "contractdesk.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 1800),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 300),
		DBAutoMigrate:     getenvBool("DATABASE_AUTO_MIGRATE", true),
		DBLogLevel:        strings.ToLower(getenv("DATABASE_LOG_LEVEL", "warn")),
		DBSlowQueryMS:     getenvInt("DATABASE_SLOW_QUERY_MS", 200),
		Attachments: AttachmentConfig{
			Backend:    strings.ToLower(getenv("ATTACHMENT_STORAGE", AttachmentBackendLocal)),
			Dir:        getenv("ATTACHMENT_DIR", "./uploads"),
			S3Bucket:   strings.TrimSpace(getenv("S3_BUCKET", "")),
			S3Region:   strings.TrimSpace(getenv("S3_REGION", "eu-central-1")),
			S3Prefix:   strings.Trim(getenv("S3_PREFIX", ""), "/"),
			S3Endpoint: strings.TrimSpace(getenv("S3_ENDPOINT", "")),
		},
		Counter: CounterConfig{
			Backend:   strings.ToLower(getenv("CONTRACT_COUNTER_BACKEND", CounterBackendDB)),
			RedisAddr: getenv("REDIS_ADDR", "localhost:6379"),
			RedisDB:   getenvInt("REDIS_DB", 0),
			RedisPass: getenv("REDIS_PASSWORD", ""),
		},
	}
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt(key string, def int) int {
	return int(getenvInt64(key, int64(def)))
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}
