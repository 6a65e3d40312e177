package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds configuration for the billing gateway.
type Config struct {
	HTTPPort  string
	JWTSecret []byte
	Database  DatabaseConfig
	Redis     RedisConfig
	Billing   BillingConfig
	Recharge  RechargeConfig
	Queue     QueueConfig
}

// DatabaseConfig holds database connection settings. An empty DSN
// selects the in-memory store (standalone mode).
type DatabaseConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// RedisConfig holds Redis connection settings. Redis is optional; when
// disabled the usage queue stays in memory and spend tracking is a
// no-op.
type RedisConfig struct {
	Enabled      bool
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
}

// BillingConfig holds metering settings.
type BillingConfig struct {
	// RatePer10kChars is the charge per 10000 characters of usage.
	RatePer10kChars decimal.Decimal
	// InitialBalance is granted to newly registered accounts.
	InitialBalance decimal.Decimal
}

// RechargeConfig holds order lifecycle settings.
type RechargeConfig struct {
	OrderTTL      time.Duration
	SweepInterval time.Duration
}

// QueueConfig holds usage queue settings.
type QueueConfig struct {
	BatchSize    int
	BatchTimeout time.Duration
}

// Load reads configuration from environment variables, applying
// defaults for anything unset.
func Load() (*Config, error) {
	secret := getEnvString("JWT_SECRET", "")
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET must be set")
	}

	rate, err := getEnvDecimal("BILLING_RATE_PER_10K_CHARS", decimal.NewFromInt(1))
	if err != nil {
		return nil, err
	}
	initial, err := getEnvDecimal("BILLING_INITIAL_BALANCE", decimal.Zero)
	if err != nil {
		return nil, err
	}

	return &Config{
		HTTPPort:  getEnvString("HTTP_PORT", "8080"),
		JWTSecret: []byte(secret),
		Database: DatabaseConfig{
			DSN:             getEnvString("DATABASE_DSN", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", time.Minute),
		},
		Redis: RedisConfig{
			Enabled:      getEnvBool("REDIS_ENABLED", false),
			Address:      getEnvString("REDIS_ADDRESS", "localhost:6379"),
			Password:     getEnvString("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
		},
		Billing: BillingConfig{
			RatePer10kChars: rate,
			InitialBalance:  initial,
		},
		Recharge: RechargeConfig{
			OrderTTL:      getEnvDuration("RECHARGE_ORDER_TTL", 5*time.Minute),
			SweepInterval: getEnvDuration("RECHARGE_SWEEP_INTERVAL", 30*time.Second),
		},
		Queue: QueueConfig{
			BatchSize:    getEnvInt("USAGE_QUEUE_BATCH_SIZE", 100),
			BatchTimeout: getEnvDuration("USAGE_QUEUE_BATCH_TIMEOUT", 5*time.Second),
		},
	}, nil
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return intVal
}

func getEnvBool(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	boolVal, err := strconv.ParseBool(val)
	if err != nil {
		return defaultValue
	}
	return boolVal
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}
	return duration
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue, nil
	}

	d, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal in %s: %w", key, err)
	}
	return d, nil
}
