package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/yeremiapane/table-orders/services"
	"github.com/yeremiapane/table-orders/utils"
)

type Config struct {
	Port    string
	GinMode string

	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBDSN      string

	JWTSecret string
	TokenTTL  time.Duration

	AdminEmail    string
	AdminPassword string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AMQPURL string

	SagaMode      services.SagaMode
	ReadyEstimate time.Duration
	AuditInterval time.Duration

	CORSOrigin     string
	RateLimitRPS   float64
	RateLimitBurst int
}

// LoadEnv reads a .env file if present. A missing file is not an error.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		utils.InfoLogger.Println("Warning: .env file not found")
	}
}

// Load builds the configuration from the environment, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		DBDriver:       strings.ToLower(getEnv("DB_DRIVER", "mysql")),
		DBHost:         getEnv("DB_HOST", "127.0.0.1"),
		DBUser:         getEnv("DB_USER", "root"),
		DBPassword:     os.Getenv("DB_PASSWORD"),
		DBName:         getEnv("DB_NAME", "table_orders"),
		DBDSN:          os.Getenv("DB_DSN"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		TokenTTL:       services.DefaultTokenTTL,
		AdminEmail:     os.Getenv("ADMIN_EMAIL"),
		AdminPassword:  os.Getenv("ADMIN_PASSWORD"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		AMQPURL:        os.Getenv("AMQP_URL"),
		SagaMode:       services.SagaMode(strings.ToLower(getEnv("SAGA_MODE", string(services.SagaTransactional)))),
		CORSOrigin:     getEnv("CORS_ORIGIN", "*"),
		ReadyEstimate:  services.DefaultReadyEstimate,
		AuditInterval:  services.DefaultAuditInterval,
		RateLimitRPS:   10,
		RateLimitBurst: 20,
	}

	switch cfg.DBDriver {
	case "mysql":
		cfg.DBPort = getEnv("DB_PORT", "3306")
	case "postgres":
		cfg.DBPort = getEnv("DB_PORT", "5432")
	case "sqlite":
		if cfg.DBDSN == "" {
			cfg.DBDSN = getEnv("DB_NAME", "table_orders.db")
		}
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	switch cfg.SagaMode {
	case services.SagaTransactional, services.SagaCompensating:
	default:
		return nil, fmt.Errorf("unsupported SAGA_MODE %q", cfg.SagaMode)
	}

	var err error
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = getInt("RATE_LIMIT_BURST", cfg.RateLimitBurst); err != nil {
		return nil, err
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if cfg.RateLimitRPS, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_RPS %q: %w", v, err)
		}
	}
	if cfg.ReadyEstimate, err = getDuration("ORDER_READY_ESTIMATE", cfg.ReadyEstimate); err != nil {
		return nil, err
	}
	if cfg.TokenTTL, err = getDuration("TOKEN_TTL", cfg.TokenTTL); err != nil {
		return nil, err
	}
	// 0 disables the background audit
	if cfg.AuditInterval, err = getDuration("AUDIT_INTERVAL", cfg.AuditInterval); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return d, nil
}
