package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable; grouped settings live in their own structs.
type Config struct {
	Env          string // application environment (e.g. "dev", "prod")
	Port         string // HTTP port to listen on
	DBUser       string // database username
	DBPass       string // database password (optional)
	DBHost       string // database host address
	DBPort       string // database port number
	DBName       string // database name
	JWTSecret    string // secret used to verify access tokens
	OTLPEndpoint string // OTLP/HTTP traces endpoint; empty disables export

	Rabbit    RabbitConfig
	Notify    NotifyConfig
	LockRetry LockRetryConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
}

// RabbitConfig points the notification publisher at a broker.
type RabbitConfig struct {
	URL        string // amqp:// URL; empty disables publishing
	Exchange   string // durable direct exchange
	EmailQueue string // queue (and routing key) of the email channel

	BreakerFailures uint32        // consecutive publish failures that open the breaker
	BreakerOpenFor  time.Duration // how long an open breaker rejects publishes
}

// NotifyConfig sizes the asynchronous notification dispatcher.
type NotifyConfig struct {
	Buffer int     // pending notifications held before new ones are dropped
	Rate   float64 // publishes per second
}

// LockRetryConfig bounds the retry of a unit of work that lost the event lock.
type LockRetryConfig struct {
	MaxTries   uint
	Initial    time.Duration
	MaxElapsed time.Duration
}

// RateLimitConfig configures the Redis token bucket.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string // ip | user | route | ip_user | ip_route | user_route | ip_user_route
	Prefix         string
}

// CacheConfig configures the Redis response cache on public listings.
type CacheConfig struct {
	Enabled      bool
	TTL          time.Duration
	Prefix       string
	MaxBodyBytes int
}

// Load reads .env (when present) and the process environment. Missing
// required variables are reported together in one error.
func Load() (Config, error) {
	// a missing .env is fine; real deployments set the environment directly
	_ = godotenv.Load()

	var missing []string
	must := func(key string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg := Config{
		Env:          envStr("APP_ENV", "dev"),
		Port:         envStr("APP_PORT", "8080"),
		DBUser:       must("DB_USER"),
		DBPass:       os.Getenv("DB_PASS"), // empty allowed
		DBHost:       must("DB_HOST"),
		DBPort:       envStr("DB_PORT", "3306"),
		DBName:       must("DB_NAME"),
		JWTSecret:    must("JWT_SECRET"),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Rabbit:       loadRabbit(),
		Notify: NotifyConfig{
			Buffer: envInt("NOTIFY_BUFFER", 256),
			Rate:   envFloat("NOTIFY_RATE", 50),
		},
		LockRetry: LockRetryConfig{
			MaxTries:   uint(envInt("LOCK_RETRY_MAX_TRIES", 4)),
			Initial:    envDur("LOCK_RETRY_INITIAL", 25*time.Millisecond),
			MaxElapsed: envDur("LOCK_RETRY_MAX_ELAPSED", 500*time.Millisecond),
		},
		RateLimit: loadRateLimit(),
		Cache: CacheConfig{
			Enabled:      envBool("CACHE_ENABLED", true),
			TTL:          envDur("CACHE_TTL", 30*time.Second),
			Prefix:       envStr("CACHE_PREFIX", "cache"),
			MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
		},
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	if cfg.LockRetry.MaxTries < 1 {
		return Config{}, errors.New("LOCK_RETRY_MAX_TRIES must be at least 1")
	}
	if cfg.Notify.Buffer < 1 {
		cfg.Notify.Buffer = 1
	}
	return cfg, nil
}

// LoadRabbit reads only the broker settings, for processes that never
// touch the database. RABBITMQ_URL is required here.
func LoadRabbit() (RabbitConfig, error) {
	_ = godotenv.Load()
	rc := loadRabbit()
	if rc.URL == "" {
		return rc, errors.New("missing required env vars: RABBITMQ_URL")
	}
	return rc, nil
}

func loadRabbit() RabbitConfig {
	rc := RabbitConfig{
		URL:             os.Getenv("RABBITMQ_URL"),
		Exchange:        envStr("RABBITMQ_EXCHANGE", "notifications"),
		EmailQueue:      envStr("RABBITMQ_EMAIL_QUEUE", "email"),
		BreakerFailures: uint32(envInt("RABBITMQ_BREAKER_FAILURES", 5)),
		BreakerOpenFor:  envDur("RABBITMQ_BREAKER_OPEN_FOR", 30*time.Second),
	}
	if rc.BreakerFailures < 1 {
		rc.BreakerFailures = 1
	}
	return rc
}

func loadRateLimit() RateLimitConfig {
	rl := RateLimitConfig{
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Capacity:       envInt("RATE_LIMIT_CAPACITY", 60),
		RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
		TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "ip_user_route"),
		Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
	}
	if rl.Capacity < 1 {
		rl.Capacity = 1
	}
	if rl.RefillTokens < 1 {
		rl.RefillTokens = 1
	}
	if rl.RefillInterval <= 0 {
		rl.RefillInterval = time.Second
	}
	// keep idle buckets around long enough to refill completely
	if minTTL := 5 * rl.RefillInterval; rl.TTL < minTTL {
		rl.TTL = minTTL
	}
	return rl
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if b, err := strconv.ParseBool(strings.ToLower(v)); err == nil {
		return b
	}
	switch strings.ToLower(v) {
	case "yes", "on":
		return true
	case "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	if n, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return n
	}
	return d
}

func envFloat(k string, d float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(k), 64); err == nil {
		return f
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	if dur, err := time.ParseDuration(os.Getenv(k)); err == nil {
		return dur
	}
	return d
}
