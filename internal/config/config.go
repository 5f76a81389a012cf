package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env string

	DBUser  string
	DBPass  string
	DBHost  string
	DBPort  string
	DBName  string
	SSLMode string

	RedisHost string
	RedisPort string

	NatsHost string
	NatsPort string

	ApiPort    string
	ApiEnabled string
	JWTSecret  string

	ReconcileInterval time.Duration
	ReconcileEnabled  bool
}

// New loads and validates configuration from environment variables.
// The HTTP API is optional: if CREDITBOOK_API_ENABLED != "true",
// ApiAddr() returns an error and the HTTP server simply won't start.
func New() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:               os.Getenv("CREDITBOOK_ENV"),
		DBUser:            os.Getenv("CREDITBOOK_POSTGRES_USER"),
		DBPass:            os.Getenv("CREDITBOOK_POSTGRES_PASSWORD"),
		DBHost:            os.Getenv("CREDITBOOK_POSTGRES_HOST"),
		DBPort:            os.Getenv("CREDITBOOK_POSTGRES_PORT"),
		DBName:            os.Getenv("CREDITBOOK_POSTGRES_DB"),
		SSLMode:           os.Getenv("CREDITBOOK_POSTGRES_SSLMODE"),
		RedisHost:         os.Getenv("CREDITBOOK_REDIS_HOST"),
		RedisPort:         os.Getenv("CREDITBOOK_REDIS_PORT"),
		NatsHost:          os.Getenv("CREDITBOOK_NATS_HOST"),
		NatsPort:          os.Getenv("CREDITBOOK_NATS_PORT"),
		ApiPort:           os.Getenv("CREDITBOOK_API_PORT"),
		ApiEnabled:        os.Getenv("CREDITBOOK_API_ENABLED"),
		JWTSecret:         os.Getenv("CREDITBOOK_JWT_SECRET"),
		ReconcileInterval: getEnvDuration("CREDITBOOK_RECONCILE_INTERVAL", 5*time.Minute),
		ReconcileEnabled:  getEnvBool("CREDITBOOK_RECONCILE_ENABLED", true),
	}

	// Required: database
	if cfg.DBUser == "" || cfg.DBHost == "" || cfg.DBName == "" || cfg.SSLMode == "" {
		return nil, fmt.Errorf("missing required env for database: CREDITBOOK_POSTGRES_USER/HOST/DB/SSLMODE")
	}

	// Required: redis
	if cfg.RedisHost == "" || cfg.RedisPort == "" {
		return nil, fmt.Errorf("missing required env for redis: CREDITBOOK_REDIS_HOST/PORT")
	}

	// Required: nats (change feed and command topics)
	if cfg.NatsHost == "" || cfg.NatsPort == "" {
		return nil, fmt.Errorf("missing required env for nats: CREDITBOOK_NATS_HOST/PORT")
	}

	if cfg.ApiEnabled == "true" && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("CREDITBOOK_JWT_SECRET is required when CREDITBOOK_API_ENABLED=true")
	}

	return cfg, nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPass, c.DBHost, c.DBPort, c.DBName, c.SSLMode)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

func (c *Config) NatsAddr() string {
	return fmt.Sprintf("nats://%s:%s", c.NatsHost, c.NatsPort)
}

// ApiAddr returns the HTTP listen address if the API is enabled.
// Callers should skip starting the HTTP server on error.
func (c *Config) ApiAddr() (string, error) {
	if c.ApiEnabled == "true" {
		if c.ApiPort == "" {
			return "", fmt.Errorf("CREDITBOOK_API_PORT is required when CREDITBOOK_API_ENABLED=true")
		}
		return ":" + c.ApiPort, nil
	}
	return "", fmt.Errorf("HTTP API is disabled (CREDITBOOK_API_ENABLED != true)")
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}
