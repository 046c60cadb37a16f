// Package config resolves checkout-service settings in priority order:
// defaults, then an optional YAML file, then environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ServiceName string
	LogLevel    string
	LogFormat   string

	HTTPPort int
	GRPCPort int

	// GatewayURL is the direct-invoke endpoint; ProxyURL is the backend proxy.
	GatewayURL          string
	ProxyURL            string
	SessionURL          string
	DirectInvokeEnabled bool
	RequestTimeout      time.Duration
	QuoteSingleUse      bool

	BreakerFailures int
	BreakerTimeout  time.Duration

	TokenTTL time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MongoURI      string
	MongoDatabase string

	DBHost         string
	DBPort         int
	DBUser         string
	DBPassword     string
	DBName         string
	MigrationsPath string

	KafkaBrokers       []string
	KafkaTopic         string
	OutboxPollInterval time.Duration
	AbandonAfter       time.Duration

	ShutdownTimeout time.Duration
}

// configFile mirrors the YAML schema.
type configFile struct {
	Service struct {
		Name      string `yaml:"name"`
		HTTPPort  int    `yaml:"http_port"`
		GRPCPort  int    `yaml:"grpc_port"`
		LogLevel  string `yaml:"log_level"`
		LogFormat string `yaml:"log_format"`
	} `yaml:"service"`
	Gateway struct {
		URL                 string        `yaml:"url"`
		ProxyURL            string        `yaml:"proxy_url"`
		SessionURL          string        `yaml:"session_url"`
		DirectInvokeEnabled *bool         `yaml:"direct_invoke_enabled"`
		RequestTimeout      time.Duration `yaml:"request_timeout"`
		QuoteSingleUse      *bool         `yaml:"quote_single_use"`
		Breaker             struct {
			ConsecutiveFailures int           `yaml:"consecutive_failures"`
			OpenTimeout         time.Duration `yaml:"open_timeout"`
		} `yaml:"breaker"`
	} `yaml:"gateway"`
	Tokens struct {
		SessionTTL time.Duration `yaml:"session_ttl"`
	} `yaml:"tokens"`
	Dependencies struct {
		RedisAddr     string `yaml:"redis_addr"`
		RedisPassword string `yaml:"redis_password"`
		RedisDB       int    `yaml:"redis_db"`
		MongoURI      string `yaml:"mongo_uri"`
		MongoDatabase string `yaml:"mongo_database"`
		Postgres      struct {
			Host           string `yaml:"host"`
			Port           int    `yaml:"port"`
			User           string `yaml:"user"`
			Password       string `yaml:"password"`
			DBName         string `yaml:"dbname"`
			MigrationsPath string `yaml:"migrations_path"`
		} `yaml:"postgres"`
		KafkaBrokers []string `yaml:"kafka_brokers"`
		KafkaTopic   string   `yaml:"kafka_topic"`
	} `yaml:"dependencies"`
	Outbox struct {
		PollInterval time.Duration `yaml:"poll_interval"`
		AbandonAfter time.Duration `yaml:"abandon_after"`
	} `yaml:"outbox"`
}

func Default() Config {
	return Config{
		ServiceName:        "checkout-service",
		LogLevel:           "info",
		LogFormat:          "json",
		HTTPPort:           8086,
		GRPCPort:           50056,
		ProxyURL:           "http://localhost:8080/api/gateway",
		RequestTimeout:     15 * time.Second,
		BreakerFailures:    5,
		BreakerTimeout:     30 * time.Second,
		TokenTTL:           30 * time.Minute,
		MongoDatabase:      "checkout",
		DBHost:             "localhost",
		DBPort:             5432,
		DBUser:             "postgres",
		DBPassword:         "postgres",
		DBName:             "ecommerce",
		MigrationsPath:     "./internal/repository/migrations",
		KafkaTopic:         "checkout-attempts",
		OutboxPollInterval: time.Second,
		AbandonAfter:       15 * time.Minute,
		ShutdownTimeout:    10 * time.Second,
	}
}

// LoadDotEnv loads .env files that exist. Variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load resolves the configuration. A missing file at path is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := applyFile(&cfg, raw); err != nil {
				return Config{}, err
			}
		case !errors.Is(err, fs.ErrNotExist):
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.ProxyURL == "" {
		return errors.New("missing PROXY_URL")
	}
	if c.DirectInvokeEnabled && c.GatewayURL == "" {
		return errors.New("DIRECT_INVOKE_ENABLED requires GATEWAY_URL")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("invalid request timeout %s", c.RequestTimeout)
	}
	return nil
}

func applyFile(cfg *Config, raw []byte) error {
	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setString(&cfg.ServiceName, f.Service.Name)
	setString(&cfg.LogLevel, f.Service.LogLevel)
	setString(&cfg.LogFormat, f.Service.LogFormat)
	setInt(&cfg.HTTPPort, f.Service.HTTPPort)
	setInt(&cfg.GRPCPort, f.Service.GRPCPort)

	setString(&cfg.GatewayURL, f.Gateway.URL)
	setString(&cfg.ProxyURL, f.Gateway.ProxyURL)
	setString(&cfg.SessionURL, f.Gateway.SessionURL)
	if f.Gateway.DirectInvokeEnabled != nil {
		cfg.DirectInvokeEnabled = *f.Gateway.DirectInvokeEnabled
	}
	if f.Gateway.QuoteSingleUse != nil {
		cfg.QuoteSingleUse = *f.Gateway.QuoteSingleUse
	}
	setDuration(&cfg.RequestTimeout, f.Gateway.RequestTimeout)
	setInt(&cfg.BreakerFailures, f.Gateway.Breaker.ConsecutiveFailures)
	setDuration(&cfg.BreakerTimeout, f.Gateway.Breaker.OpenTimeout)
	setDuration(&cfg.TokenTTL, f.Tokens.SessionTTL)

	deps := f.Dependencies
	setString(&cfg.RedisAddr, deps.RedisAddr)
	setString(&cfg.RedisPassword, deps.RedisPassword)
	setInt(&cfg.RedisDB, deps.RedisDB)
	setString(&cfg.MongoURI, deps.MongoURI)
	setString(&cfg.MongoDatabase, deps.MongoDatabase)
	setString(&cfg.DBHost, deps.Postgres.Host)
	setInt(&cfg.DBPort, deps.Postgres.Port)
	setString(&cfg.DBUser, deps.Postgres.User)
	setString(&cfg.DBPassword, deps.Postgres.Password)
	setString(&cfg.DBName, deps.Postgres.DBName)
	setString(&cfg.MigrationsPath, deps.Postgres.MigrationsPath)
	if len(deps.KafkaBrokers) > 0 {
		cfg.KafkaBrokers = deps.KafkaBrokers
	}
	setString(&cfg.KafkaTopic, deps.KafkaTopic)

	setDuration(&cfg.OutboxPollInterval, f.Outbox.PollInterval)
	setDuration(&cfg.AbandonAfter, f.Outbox.AbandonAfter)
	return nil
}

func applyEnv(cfg *Config) {
	cfg.ServiceName = getEnv("SERVICE_NAME", cfg.ServiceName)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)

	cfg.GatewayURL = getEnv("GATEWAY_URL", cfg.GatewayURL)
	cfg.ProxyURL = getEnv("PROXY_URL", cfg.ProxyURL)
	cfg.SessionURL = getEnv("SESSION_URL", cfg.SessionURL)
	cfg.DirectInvokeEnabled = envBool("DIRECT_INVOKE_ENABLED", cfg.DirectInvokeEnabled)
	cfg.RequestTimeout = envDuration("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.QuoteSingleUse = envBool("QUOTE_SINGLE_USE", cfg.QuoteSingleUse)
	cfg.BreakerFailures = envInt("BREAKER_CONSECUTIVE_FAILURES", cfg.BreakerFailures)
	cfg.BreakerTimeout = envDuration("BREAKER_OPEN_TIMEOUT", cfg.BreakerTimeout)
	cfg.TokenTTL = envDuration("TOKEN_SESSION_TTL", cfg.TokenTTL)

	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = envInt("REDIS_DB", cfg.RedisDB)
	cfg.MongoURI = getEnv("MONGO_URI", cfg.MongoURI)
	cfg.MongoDatabase = getEnv("MONGO_DATABASE", cfg.MongoDatabase)

	cfg.DBHost = getEnv("DB_HOST", cfg.DBHost)
	cfg.DBPort = envInt("DB_PORT", cfg.DBPort)
	cfg.DBUser = getEnv("DB_USER", cfg.DBUser)
	cfg.DBPassword = getEnv("DB_PASSWORD", cfg.DBPassword)
	cfg.DBName = getEnv("DB_NAME", cfg.DBName)
	cfg.MigrationsPath = getEnv("MIGRATIONS_PATH", cfg.MigrationsPath)

	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaTopic = getEnv("KAFKA_TOPIC", cfg.KafkaTopic)
	cfg.OutboxPollInterval = envDuration("OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval)
	cfg.AbandonAfter = envDuration("ATTEMPT_ABANDON_AFTER", cfg.AbandonAfter)
	cfg.ShutdownTimeout = envDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return v
}

// envDuration accepts Go durations ("90s") or plain seconds ("90").
func envDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func envCSV(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	var parts []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
