package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultSessionSecret is rejected in production.
const DefaultSessionSecret = "change-this-secret"

// Config holds steno-caption configuration.
type Config struct {
	AppEnv   string // APP_ENV
	AppHost  string // APP_HOST
	HTTPPort string // APP_PORT or HTTP_PORT or PORT
	LogLevel string // LOG_LEVEL

	// WebSocket
	WSReadBufferSize  int
	WSWriteBufferSize int
	WSMaxMessageSize  int64
	WSPingInterval    time.Duration
	WSPingTimeout     time.Duration
	WSAllowedOrigins  []string // empty allows any origin
	SubscriberBuffer  int

	// Viewer session
	SessionSecret   string
	SessionLifetime time.Duration
	SecureCookie    bool

	// Jobs
	JobTTL             time.Duration // 0 disables eviction
	SweepSchedule      string        // robfig/cron spec
	RequireWriterToken bool

	// Failed PIN attempt throttling per (client IP, job)
	PINAttemptRate  float64 // tokens per second; 0 disables
	PINAttemptBurst int

	// Proxies whose X-Forwarded-For is honored; empty trusts none
	TrustedProxies []string
}

// Load loads config from environment (.env if present).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		AppHost:            getEnv("APP_HOST", "0.0.0.0"),
		HTTPPort:           firstEnv("APP_PORT", "HTTP_PORT", "PORT", "5000"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		WSReadBufferSize:   getInt("WS_READ_BUFFER_SIZE", 4096),
		WSWriteBufferSize:  getInt("WS_WRITE_BUFFER_SIZE", 4096),
		WSMaxMessageSize:   int64(getInt("WS_MAX_MESSAGE_SIZE", 1<<20)),
		WSPingInterval:     getDuration("WS_PING_INTERVAL", 25*time.Second),
		WSPingTimeout:      getDuration("WS_PING_TIMEOUT", 60*time.Second),
		WSAllowedOrigins:   splitList(getEnv("WS_ALLOWED_ORIGINS", "")),
		SubscriberBuffer:   getInt("SUBSCRIBER_BUFFER", 64),
		SessionSecret:      getEnv("SESSION_SECRET", getEnv("SECRET_KEY", DefaultSessionSecret)),
		SessionLifetime:    getDuration("SESSION_LIFETIME", 24*time.Hour),
		SecureCookie:       getBool("SESSION_COOKIE_SECURE", false),
		JobTTL:             getDuration("JOB_TTL", 12*time.Hour),
		SweepSchedule:      getEnv("SWEEP_SCHEDULE", "@every 1m"),
		RequireWriterToken: getBool("REQUIRE_WRITER_TOKEN", false),
		PINAttemptRate:     getFloat("PIN_ATTEMPT_RATE", 0.5),
		PINAttemptBurst:    getInt("PIN_ATTEMPT_BURST", 10),
		TrustedProxies:     splitList(getEnv("TRUSTED_PROXIES", "")),
	}
	return cfg, nil
}

// Validate checks required fields and production safety.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return errors.New("config: APP_PORT is required")
	}
	if c.SessionSecret == "" {
		return errors.New("config: SESSION_SECRET is required")
	}
	if c.AppEnv == "production" && c.SessionSecret == DefaultSessionSecret {
		return errors.New("config: in production SESSION_SECRET must be set")
	}
	if c.SessionLifetime <= 0 {
		return errors.New("config: SESSION_LIFETIME must be positive")
	}
	if c.WSPingInterval <= 0 || c.WSPingTimeout <= c.WSPingInterval {
		return errors.New("config: WS_PING_TIMEOUT must exceed WS_PING_INTERVAL")
	}
	if c.JobTTL < 0 {
		return errors.New("config: JOB_TTL must not be negative")
	}
	if c.SubscriberBuffer < 1 {
		return errors.New("config: SUBSCRIBER_BUFFER must be at least 1")
	}
	if c.PINAttemptRate > 0 && c.PINAttemptBurst < 1 {
		return errors.New("config: PIN_ATTEMPT_BURST must be at least 1")
	}
	return nil
}

// Addr returns listen address for HTTP server.
func (c *Config) Addr() string {
	return c.AppHost + ":" + c.HTTPPort
}

func firstEnv(keysAndDef ...string) string {
	if len(keysAndDef) == 0 {
		return ""
	}
	def := keysAndDef[len(keysAndDef)-1]
	keys := keysAndDef[:len(keysAndDef)-1]
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return def
}

func getBool(key string, def bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
