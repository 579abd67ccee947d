package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	DatabaseURL  string
	NATSURL      string
	RedisAddr    string
	Workers      int
	IngestBuffer int
	WorkMem      string
	Sites        []string
	Models       []string
}

// Load loads the configuration from environment variables and .env file
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	cfg := &Config{
		DatabaseURL:  databaseURL,
		NATSURL:      envOrDefault("NATS_URL", "nats://nats:4222"),
		RedisAddr:    envOrDefault("REDIS_ADDR", "redis:6379"),
		WorkMem:      envOrDefault("WORK_MEM", "64MB"),
		Sites:        splitList(os.Getenv("SITES")),
		Models:       splitList(os.Getenv("MODELS")),
		Workers:      4,
		IngestBuffer: 2048,
	}

	if v := os.Getenv("WORKERS"); v != "" {
		workers, err := strconv.Atoi(v)
		if err != nil || workers < 1 {
			return nil, fmt.Errorf("WORKERS must be a positive integer, got %q", v)
		}
		cfg.Workers = workers
	}

	if v := os.Getenv("INGEST_BUFFER"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size < 1 {
			return nil, fmt.Errorf("INGEST_BUFFER must be a positive integer, got %q", v)
		}
		cfg.IngestBuffer = size
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
