package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/campus/internal/auth/service"
	"github.com/aussiebroadwan/campus/pkg/httpx"
)

// Revocation backends.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Config struct {
	Issuer         string // issuer claim for tokens (default: campus-auth)
	RSABits        int    // RSA modulus for generated keys (default: 2048, min: 2048)
	KeyID          string // Optional: kid for the signing key (default: random)
	PrivateKeyFile string // Optional: PEM private key shared by all instances

	Session service.SessionConfig

	DatabaseFile string // SQLite user directory (default: ./campus.db)
	PepperFile   string // argon2 pepper, generated if missing (default: ./pepper)

	RevocationBackend   string // redis or memory (default: redis)
	RevocationNamespace string // Redis key prefix (default: campus)
	RedisAddr           string
	RedisUsername       string
	RedisPassword       string
	RedisDB             int

	BootstrapAdminEmail    string // Optional: first admin, created once
	BootstrapAdminPassword string

	Env                  string        // dev, staging, prod (default: dev)
	LogLevel             string        // debug, info, warn, error (default: info)
	LogFormat            string        // json or text (default: json)
	Port                 int           // HTTP port (default: 8080)
	ShutdownGracePeriod  time.Duration // (default: 10s)
	HousekeepingInterval time.Duration // memory backend prune interval (default: 1m)

	RateLimits httpx.RateLimits
}

// LoadConfig reads the process environment.
func LoadConfig() (Config, error) {
	return LoadConfigFrom(os.LookupEnv)
}

// LoadConfigFrom reads configuration through lookup, usually os.LookupEnv.
func LoadConfigFrom(lookup func(string) (string, bool)) (Config, error) {
	env := envReader(lookup)
	defaults := service.DefaultSessionConfig()

	cfg := Config{
		Issuer:         env.getEnvOrDefault("AUTH_ISSUER", "campus-auth"),
		RSABits:        env.getEnvIntOrDefault("AUTH_RSA_BITS", 2048),
		KeyID:          env.getEnvOrDefault("AUTH_KEY_ID", ""),
		PrivateKeyFile: env.getEnvOrDefault("AUTH_PRIVATE_KEY_FILE", ""),

		Session: service.SessionConfig{
			AccessTTL:         env.getEnvDurationOrDefault("AUTH_ACCESS_TTL", defaults.AccessTTL),
			RefreshTTL:        env.getEnvDurationOrDefault("AUTH_REFRESH_TTL", defaults.RefreshTTL),
			RefreshGrace:      env.getEnvDurationOrDefault("AUTH_REFRESH_GRACE", defaults.RefreshGrace),
			StoreTimeout:      env.getEnvDurationOrDefault("AUTH_STORE_TIMEOUT", defaults.StoreTimeout),
			RevocationRetries: env.getEnvIntOrDefault("AUTH_REVOCATION_RETRIES", defaults.RevocationRetries),
		},

		DatabaseFile: env.getEnvOrDefault("AUTH_DATABASE_FILE", "campus.db"),
		PepperFile:   env.getEnvOrDefault("AUTH_PEPPER_FILE", "pepper"),

		RevocationBackend:   strings.ToLower(env.getEnvOrDefault("AUTH_REVOCATION_BACKEND", BackendRedis)),
		RevocationNamespace: env.getEnvOrDefault("AUTH_REVOCATION_NAMESPACE", "campus"),
		RedisAddr:           env.getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisUsername:       env.getEnvOrDefault("REDIS_USERNAME", ""),
		RedisPassword:       env.getEnvOrDefault("REDIS_PASSWORD", ""),
		RedisDB:             env.getEnvIntOrDefault("REDIS_DB", 0),

		BootstrapAdminEmail:    env.getEnvOrDefault("AUTH_BOOTSTRAP_ADMIN_EMAIL", ""),
		BootstrapAdminPassword: env.getEnvOrDefault("AUTH_BOOTSTRAP_ADMIN_PASSWORD", ""),

		Env:                  env.getEnvOrDefault("ENV", "dev"),
		LogLevel:             env.getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            env.getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 env.getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  env.getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: env.getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", time.Minute),

		RateLimits: httpx.RateLimitsFromEnv(lookup, httpx.DefaultRateLimits()),
	}

	proxies, err := httpx.ParseTrustedProxies(env.getEnvOrDefault("AUTH_TRUSTED_PROXIES", ""))
	if err != nil {
		return cfg, errors.Join(fmt.Errorf("AUTH_TRUSTED_PROXIES: %w", err), cfg.Validate())
	}
	cfg.RateLimits.TrustedProxies = proxies

	return cfg, cfg.Validate()
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	if c.RevocationBackend != BackendRedis && c.RevocationBackend != BackendMemory {
		errs = append(errs, fmt.Errorf("AUTH_REVOCATION_BACKEND must be %q or %q, got %q", BackendRedis, BackendMemory, c.RevocationBackend))
	}
	if c.RevocationBackend == BackendRedis && c.RedisAddr == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required for the redis backend"))
	}
	if c.PrivateKeyFile == "" && c.RSABits < 2048 {
		errs = append(errs, fmt.Errorf("AUTH_RSA_BITS must be at least 2048, got %d", c.RSABits))
	}
	if c.Session.AccessTTL <= 0 || c.Session.RefreshTTL <= 0 {
		errs = append(errs, errors.New("AUTH_ACCESS_TTL and AUTH_REFRESH_TTL must be positive"))
	}
	if c.Session.RefreshGrace < 0 {
		errs = append(errs, errors.New("AUTH_REFRESH_GRACE must not be negative"))
	}
	if c.Session.StoreTimeout <= 0 {
		errs = append(errs, errors.New("AUTH_STORE_TIMEOUT must be positive"))
	}
	if c.Session.RevocationRetries < 0 {
		errs = append(errs, errors.New("AUTH_REVOCATION_RETRIES must not be negative"))
	}
	if c.BootstrapAdminEmail != "" && c.BootstrapAdminPassword == "" {
		errs = append(errs, errors.New("AUTH_BOOTSTRAP_ADMIN_PASSWORD is required with AUTH_BOOTSTRAP_ADMIN_EMAIL"))
	}

	return errors.Join(errs...)
}

type envReader func(string) (string, bool)

func (env envReader) getEnvOrDefault(key, defaultValue string) string {
	if value, ok := env(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func (env envReader) getEnvIntOrDefault(key string, defaultValue int) int {
	value, ok := env(key)
	if !ok || value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func (env envReader) getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value, ok := env(key)
	if !ok || value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are minutes.
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
