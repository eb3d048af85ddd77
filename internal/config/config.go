package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config contains runtime configuration required by the service.
type Config struct {
	Addr      string
	DBURL     string
	RedisAddr string
	RedisDB   int
	APIKeys   map[string]string // apiKey -> callerID
	LogLevel  string

	// Rate limiter: fixed-window admissions per key.
	RateLimit          int64
	RateLimitWindowSec int

	// Queue and worker pool.
	QueueName   string
	MaxAttempts int
	WorkerCount int
}

// Load reads required values from environment variables. A .env file in the
// working directory is applied first when present so local runs need no
// exported environment.
// API_KEYS format: "caller1:key1,caller2:key2"
func Load() (Config, error) {
	_ = godotenv.Load()

	dbURL := strings.TrimSpace(os.Getenv("DB_URL"))
	if dbURL == "" {
		return Config{}, errors.New("DB_URL required")
	}

	redisAddr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	apiKeys, err := parseAPIKeys(os.Getenv("API_KEYS"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Addr:      envOr("ADDR", ":8080"),
		DBURL:     dbURL,
		RedisAddr: redisAddr,
		APIKeys:   apiKeys,
		LogLevel:  envOr("LOG_LEVEL", "info"),
		QueueName: envOr("QUEUE_NAME", "telemetry:events"),
	}

	if cfg.RedisDB, err = envInt("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	limit, err := envInt("RATE_LIMIT", 1000)
	if err != nil {
		return Config{}, err
	}
	cfg.RateLimit = int64(limit)
	if cfg.RateLimitWindowSec, err = envInt("RATE_LIMIT_WINDOW_SECONDS", 3600); err != nil {
		return Config{}, err
	}
	if cfg.MaxAttempts, err = envInt("MAX_ATTEMPTS", 3); err != nil {
		return Config{}, err
	}
	if cfg.WorkerCount, err = envInt("WORKER_COUNT", 4); err != nil {
		return Config{}, err
	}

	if cfg.RateLimit <= 0 || cfg.RateLimitWindowSec <= 0 {
		return Config{}, errors.New("RATE_LIMIT and RATE_LIMIT_WINDOW_SECONDS must be positive")
	}
	if cfg.MaxAttempts <= 0 || cfg.WorkerCount <= 0 {
		return Config{}, errors.New("MAX_ATTEMPTS and WORKER_COUNT must be positive")
	}

	return cfg, nil
}

func envOr(name, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return fallback
}

func envInt(name string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", name, err)
	}
	return n, nil
}

func parseAPIKeys(raw string) (map[string]string, error) {
	apiKeys := map[string]string{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return apiKeys, nil
	}
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		parts := strings.SplitN(p, ":", 2)
		if len(parts) != 2 {
			return nil, errors.New(`API_KEYS must be "caller:key,caller:key"`)
		}
		caller := strings.TrimSpace(parts[0])
		key := strings.TrimSpace(parts[1])
		if caller == "" || key == "" {
			return nil, errors.New(`API_KEYS must be "caller:key,caller:key"`)
		}
		apiKeys[key] = caller
	}
	return apiKeys, nil
}
