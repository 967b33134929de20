package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// Activation token length bounds. The floor keeps 64 bits of entropy, the
// ceiling is the activation_token column width.
const (
	MinActivationTokenLength = 16
	MaxActivationTokenLength = 64
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Mail     MailConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	LockEnabled bool
	LockTTLSec  int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines credential and activation token parameters.
type AuthConfig struct {
	BcryptCost            int
	ActivationTokenLength int
}

// MailConfig describes the SMTP relay used for activation emails.
// An empty Host selects the logging mailer.
type MailConfig struct {
	Host               string
	Port               int
	Username           string
	Password           string
	TLSPolicy          string
	From               string
	ActivationURL      string
	SendTimeoutSeconds int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "registration-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "3000"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:        getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:    os.Getenv("REDIS_PASSWORD"),
			DB:          redisDB,
			LockEnabled: getEnvAsBool("REDIS_REGISTRATION_LOCK", true),
			LockTTLSec:  getEnvAsInt("REDIS_REGISTRATION_LOCK_TTL_SECONDS", 30),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 10),
			ActivationTokenLength: getEnvAsInt("AUTH_ACTIVATION_TOKEN_LENGTH", MinActivationTokenLength),
		},
		Mail: MailConfig{
			Host:               os.Getenv("MAIL_HOST"),
			Port:               getEnvAsInt("MAIL_PORT", 587),
			Username:           os.Getenv("MAIL_USERNAME"),
			Password:           os.Getenv("MAIL_PASSWORD"),
			TLSPolicy:          getEnv("MAIL_TLS_POLICY", "opportunistic"),
			From:               getEnv("MAIL_FROM", "My App <info@myapp.com>"),
			ActivationURL:      getEnv("MAIL_ACTIVATION_URL", "http://localhost:8080/#/login?token="),
			SendTimeoutSeconds: getEnvAsInt("MAIL_SEND_TIMEOUT_SECONDS", 10),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the registration workflow cannot run with.
func (c *Config) Validate() error {
	if c.Auth.ActivationTokenLength < MinActivationTokenLength || c.Auth.ActivationTokenLength > MaxActivationTokenLength {
		return fmt.Errorf("AUTH_ACTIVATION_TOKEN_LENGTH must be within [%d, %d]", MinActivationTokenLength, MaxActivationTokenLength)
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("AUTH_BCRYPT_COST must be within [%d, %d]", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.Mail.SendTimeoutSeconds <= 0 {
		return errors.New("MAIL_SEND_TIMEOUT_SECONDS must be positive")
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// LockTTL bounds how long a registration may hold the per-email lock.
func (r RedisConfig) LockTTL() time.Duration {
	if r.LockTTLSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(r.LockTTLSec) * time.Second
}

// SendTimeout bounds a single activation email delivery.
func (m MailConfig) SendTimeout() time.Duration {
	return time.Duration(m.SendTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
