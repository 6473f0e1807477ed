package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/custrisk-backend/internal/clients/kafka"
	"github.com/yungbote/custrisk-backend/internal/clients/redis"
	"github.com/yungbote/custrisk-backend/internal/data/db"
	"github.com/yungbote/custrisk-backend/internal/observability"
	"github.com/yungbote/custrisk-backend/internal/oracle"
	"github.com/yungbote/custrisk-backend/internal/platform/envutil"
)

const defaultDatabaseURL = "sqlite://custrisk.db"

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	// Addr starts a dedicated listener; empty mounts /metrics on the API router.
	Addr string `yaml:"addr"`
}

type Config struct {
	LogMode  string                   `yaml:"log_mode"`
	HTTP     HTTPConfig               `yaml:"http"`
	Database db.Config                `yaml:"database"`
	Oracle   oracle.Config            `yaml:"oracle"`
	Redis    redis.Config             `yaml:"redis"`
	Kafka    kafka.Config             `yaml:"kafka"`
	Metrics  MetricsConfig            `yaml:"metrics"`
	Otel     observability.OtelConfig `yaml:"otel"`
}

func DefaultConfig() Config {
	return Config{
		LogMode: "development",
		HTTP: HTTPConfig{
			Addr:            ":8000",
			ShutdownTimeout: 15 * time.Second,
		},
		Database: db.Config{URL: defaultDatabaseURL},
		Oracle: oracle.Config{
			Type:      oracle.TypeSoftmax,
			ModelPath: "config/model.yaml",
			Timeout:   5 * time.Second,
		},
		Redis: redis.Config{KeyPrefix: "custrisk", TTL: 30 * time.Second},
		Kafka: kafka.Config{Topic: "custrisk.events", Timeout: 5 * time.Second},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Otel: observability.OtelConfig{
			ServiceName: "custrisk-backend",
			SampleRatio: 0.1,
		},
	}
}

// LoadConfig layers defaults, the YAML file named by CONFIG_PATH, then environment overrides.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if path := envutil.String("CONFIG_PATH", ""); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.LogMode = envutil.String("LOG_MODE", cfg.LogMode)

	cfg.HTTP.Addr = envutil.String("HTTP_ADDR", cfg.HTTP.Addr)
	if port := envutil.String("PORT", ""); port != "" && os.Getenv("HTTP_ADDR") == "" {
		cfg.HTTP.Addr = ":" + strings.TrimPrefix(port, ":")
	}
	cfg.HTTP.ShutdownTimeout = envutil.Duration("SHUTDOWN_TIMEOUT", cfg.HTTP.ShutdownTimeout)
	if origins := envutil.List("CORS_ORIGINS"); len(origins) > 0 {
		cfg.HTTP.CORSOrigins = origins
	}

	// Discrete Postgres settings replace the default local store unless DATABASE_URL is set.
	if host := envutil.String("POSTGRES_HOST", ""); host != "" {
		cfg.Database.URL = ""
		cfg.Database.Host = host
		cfg.Database.Port = envutil.String("POSTGRES_PORT", defaultString(cfg.Database.Port, "5432"))
		cfg.Database.User = envutil.String("POSTGRES_USER", defaultString(cfg.Database.User, "postgres"))
		cfg.Database.Password = envutil.String("POSTGRES_PASSWORD", cfg.Database.Password)
		cfg.Database.Name = envutil.String("POSTGRES_NAME", defaultString(cfg.Database.Name, "custrisk"))
		cfg.Database.SSLMode = envutil.String("POSTGRES_SSLMODE", cfg.Database.SSLMode)
	}
	cfg.Database.URL = envutil.String("DATABASE_URL", cfg.Database.URL)
	cfg.Database.MaxOpenConns = envutil.Int("DB_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.MaxIdleConns = envutil.Int("DB_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns)

	cfg.Oracle.Type = strings.ToLower(envutil.String("ORACLE_TYPE", cfg.Oracle.Type))
	cfg.Oracle.ModelPath = envutil.String("MODEL_PATH", cfg.Oracle.ModelPath)
	cfg.Oracle.BaseURL = envutil.String("ORACLE_URL", cfg.Oracle.BaseURL)
	cfg.Oracle.APIKey = envutil.String("ORACLE_API_KEY", cfg.Oracle.APIKey)
	cfg.Oracle.Timeout = envutil.Duration("ORACLE_TIMEOUT", cfg.Oracle.Timeout)

	cfg.Redis.Addr = envutil.String("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = envutil.String("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = envutil.Int("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.TTL = envutil.Duration("STATS_CACHE_TTL", cfg.Redis.TTL)

	if brokers := envutil.List("KAFKA_BROKERS"); len(brokers) > 0 {
		cfg.Kafka.Brokers = brokers
	}
	cfg.Kafka.Topic = envutil.String("KAFKA_TOPIC", cfg.Kafka.Topic)

	cfg.Metrics.Enabled = envutil.Bool("METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.Addr = envutil.String("METRICS_ADDR", cfg.Metrics.Addr)

	cfg.Otel.Enabled = envutil.Bool("OTEL_ENABLED", cfg.Otel.Enabled)
	cfg.Otel.ServiceName = envutil.String("OTEL_SERVICE_NAME", cfg.Otel.ServiceName)
	cfg.Otel.Environment = envutil.String("OTEL_ENVIRONMENT", cfg.Otel.Environment)
	cfg.Otel.Version = envutil.String("OTEL_SERVICE_VERSION", cfg.Otel.Version)
	cfg.Otel.Endpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Otel.Endpoint)
	cfg.Otel.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", cfg.Otel.Insecure)
	if raw := envutil.String("OTEL_EXPORTER_OTLP_HEADERS", ""); raw != "" {
		cfg.Otel.Headers = observability.ParseHeaders(raw)
	}
	if ratio := envutil.String("OTEL_SAMPLE_RATIO", ""); ratio != "" {
		if v, err := strconv.ParseFloat(ratio, 64); err == nil {
			cfg.Otel.SampleRatio = v
		}
	}
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("http.shutdown_timeout must be positive"))
	}
	if _, _, err := c.Database.Resolve(); err != nil {
		errs = append(errs, err)
	}
	switch c.Oracle.Type {
	case oracle.TypeSoftmax:
		if strings.TrimSpace(c.Oracle.ModelPath) == "" {
			errs = append(errs, errors.New("oracle.model_path is required for the softmax oracle"))
		}
	case oracle.TypeRemote:
		if strings.TrimSpace(c.Oracle.BaseURL) == "" {
			errs = append(errs, errors.New("oracle.base_url is required for the remote oracle"))
		}
	case oracle.TypeStub:
	default:
		errs = append(errs, fmt.Errorf("oracle.type %q must be one of softmax, remote, stub", c.Oracle.Type))
	}
	if c.Oracle.Timeout <= 0 {
		errs = append(errs, errors.New("oracle.timeout must be positive"))
	}
	if c.Redis.TTL < 0 {
		errs = append(errs, errors.New("redis.ttl must not be negative"))
	}
	if c.Otel.SampleRatio < 0 || c.Otel.SampleRatio > 1 {
		errs = append(errs, errors.New("otel.sample_ratio must be within [0,1]"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func defaultString(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
