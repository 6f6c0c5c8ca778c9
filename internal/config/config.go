// Package config loads pipedemo's configuration from the environment
// (and an optional .env file), in the teacher's getEnv/getEnvInt style.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds pipedemo's tunables: default block parameters plus the
// admin server's surface.
type Config struct {
	Admin   AdminConfig
	Pipe    PipeConfig
	Limiter LimiterConfig
}

// AdminConfig configures the introspection HTTP server.
type AdminConfig struct {
	Port           string
	Env            string
	AllowedOrigins []string
}

// PipeConfig holds the default block parameters pipedemo's stages use.
type PipeConfig struct {
	ActionParallelism int
	BatchSize         int
	BatchCapacity     int
	BatchFlushPeriod  time.Duration
	ForkParallelism   int
}

// LimiterConfig configures pipedemo's PipelineLimiter and optional
// KeyedRateLimiter. RateLimitPerSec of 0 disables the rate limiter.
type LimiterConfig struct {
	MaxWork          int
	RateLimitPerSec  float64
	RateLimitBurst   int
	RateLimitIdleTTL time.Duration
}

// Load reads configuration from the environment, loading a .env file
// first if one is present in the working directory (a missing .env is
// not an error).
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Admin: AdminConfig{
			Port:           getEnv("ADMIN_PORT", "8080"),
			Env:            getEnv("ENV", "development"),
			AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Pipe: PipeConfig{
			ActionParallelism: getEnvInt("PIPE_ACTION_PARALLELISM", 4),
			BatchSize:         getEnvInt("PIPE_BATCH_SIZE", 50),
			BatchCapacity:     getEnvInt("PIPE_BATCH_CAPACITY", 0),
			BatchFlushPeriod:  getEnvDuration("PIPE_BATCH_FLUSH_PERIOD", 2*time.Second),
			ForkParallelism:   getEnvInt("PIPE_FORK_PARALLELISM", 2),
		},
		Limiter: LimiterConfig{
			MaxWork:          getEnvInt("LIMITER_MAX_WORK", 100),
			RateLimitPerSec:  getEnvFloat("LIMITER_RATE_PER_SEC", 0),
			RateLimitBurst:   getEnvInt("LIMITER_RATE_BURST", 1),
			RateLimitIdleTTL: getEnvDuration("LIMITER_RATE_IDLE_TTL", 5*time.Minute),
		},
	}
}

// Helper functions to read environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		// Simple split by comma for now
		// In production, you might want to use a proper CSV parser
		result := []string{}
		current := ""
		for _, char := range value {
			if char == ',' {
				if current != "" {
					result = append(result, current)
					current = ""
				}
			} else {
				current += string(char)
			}
		}
		if current != "" {
			result = append(result, current)
		}
		return result
	}
	return defaultValue
}
