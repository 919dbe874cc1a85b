package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends
const (
	BackendNeo4j  = "neo4j"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds all application configuration
type Config struct {
	// App
	Port     string
	Env      string
	LogLevel string

	// Entity store
	StoreBackend string

	// Neo4j
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string

	// Spatial index used by the in-memory store (memory or redis)
	SpatialBackend string

	// Redis (spatial index and user cache)
	RedisAddr    string
	RedisDB      int
	UserCacheTTL time.Duration

	// Session tokens
	JWTSecret string
	JWTIssuer string
	TokenTTL  time.Duration

	// HTTP edge
	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string

	// Bulk friend/like import fan-out
	ImportConcurrency int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		Env:               getEnv("ENV", "development"),
		LogLevel:          getEnv("LOG_LEVEL", ""),
		StoreBackend:      strings.ToLower(getEnv("STORE_BACKEND", BackendNeo4j)),
		Neo4jURI:          getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:         getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:     getEnv("NEO4J_PASSWORD", "password"),
		Neo4jDatabase:     getEnv("NEO4J_DATABASE", ""),
		SpatialBackend:    strings.ToLower(getEnv("SPATIAL_BACKEND", BackendMemory)),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		UserCacheTTL:      getEnvDuration("USER_CACHE_TTL", 5*time.Minute),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		JWTIssuer:         getEnv("JWT_ISSUER", "diarymap"),
		TokenTTL:          getEnvDuration("TOKEN_TTL", 24*time.Hour),
		RateLimitRPS:      getEnvFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:    getEnvInt("RATE_LIMIT_BURST", 20),
		CORSOrigins:       getEnvList("CORS_ORIGINS", []string{"*"}),
		ImportConcurrency: getEnvInt("IMPORT_CONCURRENCY", 8),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendNeo4j:
		if c.Neo4jURI == "" {
			return fmt.Errorf("NEO4J_URI is required")
		}
		if c.Neo4jUser == "" {
			return fmt.Errorf("NEO4J_USER is required")
		}
		if c.Neo4jPassword == "" {
			return fmt.Errorf("NEO4J_PASSWORD is required")
		}
	case BackendMemory:
		switch c.SpatialBackend {
		case BackendMemory:
		case BackendRedis:
			if c.RedisAddr == "" {
				return fmt.Errorf("REDIS_ADDR is required when SPATIAL_BACKEND=redis")
			}
		default:
			return fmt.Errorf("SPATIAL_BACKEND must be %q or %q, got %q", BackendMemory, BackendRedis, c.SpatialBackend)
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendNeo4j, BackendMemory, c.StoreBackend)
	}

	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if c.ImportConcurrency < 1 {
		return fmt.Errorf("IMPORT_CONCURRENCY must be at least 1")
	}
	// Redis is optional for the neo4j backend; without it the user cache is disabled
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// CacheEnabled reports whether user lookups should go through Redis.
func (c *Config) CacheEnabled() bool {
	return c.RedisAddr != "" && c.UserCacheTTL > 0
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var result float64
		if _, err := fmt.Sscanf(value, "%f", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
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

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
