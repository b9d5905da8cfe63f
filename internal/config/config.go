// Package config loads the chat core configuration from the environment.
//
// Two decoding styles coexist. Server, logging, web and tracing settings use
// lenient lookups: a malformed value silently keeps the default. The store and
// chat-limit groups are decoded with envconfig, where a malformed value is a
// startup error. Every group is validated afterwards and all problems are
// reported at once.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/samber/lo"
)

// CORSConfig lists the browser origins allowed to call the API. Empty means
// any origin.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig controls Strict-Transport-Security.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// StoreConfig selects the backing database.
type StoreConfig struct {
	// sqlite|postgres|pq
	Driver string `envconfig:"DB_DRIVER" default:"sqlite"`
	Path   string `envconfig:"DB_PATH" default:"chat.db"`
	// Required unless Driver is sqlite.
	DatabaseURL string `envconfig:"DATABASE_URL"`
	// 0 keeps the driver default.
	MaxOpenConns int  `envconfig:"DB_MAX_OPEN_CONNS"`
	SeedDemo     bool `envconfig:"SEED_DEMO"`
}

// LimitsConfig bounds stored chat names and message bodies, in runes.
type LimitsConfig struct {
	ChatNameMax     int `envconfig:"CHAT_NAME_MAX" default:"60"`
	MessageMaxRunes int `envconfig:"MESSAGE_MAX_RUNES" default:"4000"`
}

// OTELConfig configures trace export over OTLP/gRPC.
type OTELConfig struct {
	Enabled     bool
	Endpoint    string // host:port of the collector
	Insecure    bool   // plaintext gRPC
	ServiceName string
	SampleRatio float64 // parent-based ratio in [0,1]
}

// Config is the full runtime configuration.
type Config struct {
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test

	LogLevel       string
	LogPretty      bool
	SwaggerEnabled bool
	APIBasePath    string

	Store  StoreConfig
	Limits LimitsConfig

	// HS256 secret for member tokens; empty trusts the X-Member-ID header.
	JWTSecret string

	RateRPS   float64
	RateBurst int

	CORS     CORSConfig
	Security SecurityConfig

	// Lifetime of a stored Idempotency-Key.
	IdempotencyTTL time.Duration

	OTEL OTELConfig
}

var (
	logLevels = []string{"debug", "info", "warn", "error", "fatal", "panic"}
	ginModes  = []string{"debug", "release", "test"}
	drivers   = []string{"sqlite", "postgres", "pq"}
)

// MustLoad is Load for callers that cannot continue without a configuration.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads, normalizes and validates the configuration.
func Load() (Config, error) {
	cfg := Config{
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", time.Minute),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		JWTSecret: getenv("JWT_SECRET", ""),

		RateRPS:   getfloat("RATE_RPS", 5),
		RateBurst: getint("RATE_BURST", 10),

		CORS: CORSConfig{AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", ""))},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-chat-core"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1),
		},
	}

	if err := envconfig.Process("", &cfg.Store); err != nil {
		return cfg, fmt.Errorf("store config: %w", err)
	}
	if err := envconfig.Process("", &cfg.Limits); err != nil {
		return cfg, fmt.Errorf("chat limits: %w", err)
	}

	cfg.normalize()
	return cfg, cfg.validate()
}

func (c *Config) normalize() {
	if c.LogLevel == "warning" {
		c.LogLevel = "warn"
	}
	if !lo.Contains(ginModes, c.GinMode) {
		c.GinMode = "release"
	}
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
}

func (c Config) validate() error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	check(lo.Contains(logLevels, c.LogLevel), "LOG_LEVEL must be one of: "+strings.Join(logLevels, ", "))
	check(strings.TrimSpace(c.Port) != "", "PORT must not be empty")
	check(c.ReadTimeout > 0 && c.ReadHeaderTimeout > 0 && c.WriteTimeout > 0 && c.IdleTimeout > 0,
		"timeouts must be positive durations")
	check(c.MaxHeaderBytes > 0, "MAX_HEADER_BYTES must be > 0")

	switch c.Store.Driver {
	case "sqlite":
		check(strings.TrimSpace(c.Store.Path) != "", "DB_PATH must not be empty")
	case "postgres", "pq":
		check(strings.TrimSpace(c.Store.DatabaseURL) != "", "DATABASE_URL is required for postgres drivers")
	default:
		check(false, "DB_DRIVER must be one of: "+strings.Join(drivers, ", "))
	}
	check(c.Store.MaxOpenConns >= 0, "DB_MAX_OPEN_CONNS must be >= 0")
	check(c.Limits.ChatNameMax >= 1, "CHAT_NAME_MAX must be >= 1")
	check(c.Limits.MessageMaxRunes >= 1, "MESSAGE_MAX_RUNES must be >= 1")

	check(c.RateRPS >= 0, "RATE_RPS must be >= 0")
	check(c.RateBurst >= 1, "RATE_BURST must be >= 1")
	check(c.Security.HSTSMaxAge >= 0, "HSTS_MAX_AGE must be >= 0")
	check(c.IdempotencyTTL > 0, "IDEMPOTENCY_TTL must be > 0")
	check(c.OTEL.SampleRatio >= 0 && c.OTEL.SampleRatio <= 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")

	return errors.Join(errs...)
}

// lenient returns parse(value of k), or def when k is unset, empty or
// malformed.
func lenient[T any](k string, def T, parse func(string) (T, error)) T {
	v, ok := os.LookupEnv(k)
	if !ok || v == "" {
		return def
	}
	out, err := parse(v)
	if err != nil {
		return def
	}
	return out
}

func getenv(k, def string) string {
	return lenient(k, def, func(s string) (string, error) { return s, nil })
}

func getint(k string, def int) int { return lenient(k, def, strconv.Atoi) }

func getdur(k string, def time.Duration) time.Duration { return lenient(k, def, time.ParseDuration) }

func getfloat(k string, def float64) float64 {
	return lenient(k, def, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

// getbool accepts 1/0, true/false, yes/no, y/n and on/off in any case.
func getbool(k string, def bool) bool {
	return lenient(k, def, func(s string) (bool, error) {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "1", "true", "yes", "y", "on":
			return true, nil
		case "0", "false", "no", "n", "off":
			return false, nil
		}
		return false, strconv.ErrSyntax
	})
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeBasePath returns p with exactly one leading slash and no trailing
// slash; blank input yields "/".
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}
