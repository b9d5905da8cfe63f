package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestMain(m *testing.M) {
	for _, k := range []string{
		"PORT", "LOG_LEVEL", "JWT_SECRET",
		"DB_DRIVER", "DB_PATH", "DATABASE_URL", "DB_MAX_OPEN_CONNS", "SEED_DEMO",
		"CHAT_NAME_MAX", "MESSAGE_MAX_RUNES",
	} {
		_ = os.Unsetenv(k)
	}
	os.Exit(m.Run())
}

func setenv(t *testing.T, env map[string]string) {
	t.Helper()
	for k, v := range env {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	checks := []struct {
		name      string
		got, want any
	}{
		{"port", cfg.Port, "8080"},
		{"base path", cfg.APIBasePath, "/api/v1"},
		{"store", cfg.Store, StoreConfig{Driver: "sqlite", Path: "chat.db"}},
		{"limits", cfg.Limits, LimitsConfig{ChatNameMax: 60, MessageMaxRunes: 4000}},
		{"jwt", cfg.JWTSecret, ""},
		{"service name", cfg.OTEL.ServiceName, "go-chat-core"},
	}
	for _, c := range checks {
		if !reflect.DeepEqual(c.got, c.want) {
			t.Fatalf("%s = %#v, want %#v", c.name, c.got, c.want)
		}
	}
}

func TestLoad_Overrides(t *testing.T) {
	setenv(t, map[string]string{
		"PORT":                        "8088",
		"READ_TIMEOUT":                "2s",
		"READ_HEADER_TIMEOUT":         "1s",
		"WRITE_TIMEOUT":               "3s",
		"IDLE_TIMEOUT":                "4s",
		"MAX_HEADER_BYTES":            "8192",
		"GIN_MODE":                    "weird",
		"LOG_LEVEL":                   "warning",
		"LOG_PRETTY":                  "yes",
		"SWAGGER_ENABLED":             "on",
		"API_BASE_PATH":               "api/v1/",
		"DB_DRIVER":                   "Postgres",
		"DATABASE_URL":                "postgres://chat@db/chat",
		"DB_MAX_OPEN_CONNS":           "8",
		"SEED_DEMO":                   "true",
		"JWT_SECRET":                  "s3cret",
		"CHAT_NAME_MAX":               "40",
		"MESSAGE_MAX_RUNES":           "500",
		"RATE_RPS":                    "x",
		"RATE_BURST":                  "nope",
		"CORS_ALLOWED_ORIGINS":        " https://a.com , , http://b ",
		"ENABLE_HSTS":                 "TRUE",
		"HSTS_MAX_AGE":                "24h",
		"IDEMPOTENCY_TTL":             "48h",
		"OTEL_ENABLED":                "1",
		"OTEL_EXPORTER_OTLP_ENDPOINT": "otel:4317",
		"OTEL_EXPORTER_OTLP_INSECURE": "0",
		"OTEL_SERVICE_NAME":           "svc",
		"OTEL_TRACES_SAMPLER_ARG":     "0.75",
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	checks := []struct {
		name      string
		got, want any
	}{
		{"port", cfg.Port, "8088"},
		{"timeouts", []time.Duration{cfg.ReadTimeout, cfg.ReadHeaderTimeout, cfg.WriteTimeout, cfg.IdleTimeout}, []time.Duration{2 * time.Second, time.Second, 3 * time.Second, 4 * time.Second}},
		{"max header bytes", cfg.MaxHeaderBytes, 8192},
		{"gin mode normalized", cfg.GinMode, "release"},
		{"log level normalized", cfg.LogLevel, "warn"},
		{"log pretty", cfg.LogPretty, true},
		{"swagger", cfg.SwaggerEnabled, true},
		{"base path normalized", cfg.APIBasePath, "/api/v1"},
		{"store", cfg.Store, StoreConfig{Driver: "postgres", Path: "chat.db", DatabaseURL: "postgres://chat@db/chat", MaxOpenConns: 8, SeedDemo: true}},
		{"limits", cfg.Limits, LimitsConfig{ChatNameMax: 40, MessageMaxRunes: 500}},
		{"jwt", cfg.JWTSecret, "s3cret"},
		{"rps falls back", cfg.RateRPS, 5.0},
		{"burst falls back", cfg.RateBurst, 10},
		{"cors origins", cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}},
		{"hsts", cfg.Security.EnableHSTS, true},
		{"hsts max age", cfg.Security.HSTSMaxAge, 24 * time.Hour},
		{"idempotency ttl", cfg.IdempotencyTTL, 48 * time.Hour},
		{"otel", cfg.OTEL, OTELConfig{Enabled: true, Endpoint: "otel:4317", ServiceName: "svc", SampleRatio: 0.75}},
	}
	for _, c := range checks {
		if !reflect.DeepEqual(c.got, c.want) {
			t.Fatalf("%s = %#v, want %#v", c.name, c.got, c.want)
		}
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"log level", map[string]string{"LOG_LEVEL": "verbose"}, "LOG_LEVEL"},
		{"blank port", map[string]string{"PORT": "   "}, "PORT must not be empty"},
		{"zero timeout", map[string]string{"READ_TIMEOUT": "0s"}, "timeouts must be positive"},
		{"header bytes", map[string]string{"MAX_HEADER_BYTES": "0"}, "MAX_HEADER_BYTES"},
		{"blank sqlite path", map[string]string{"DB_PATH": "   "}, "DB_PATH must not be empty"},
		{"unknown driver", map[string]string{"DB_DRIVER": "mysql"}, "DB_DRIVER"},
		{"pq without url", map[string]string{"DB_DRIVER": "pq"}, "DATABASE_URL"},
		{"postgres without url", map[string]string{"DB_DRIVER": "postgres"}, "DATABASE_URL"},
		{"negative pool", map[string]string{"DB_MAX_OPEN_CONNS": "-2"}, "DB_MAX_OPEN_CONNS"},
		{"malformed pool", map[string]string{"DB_MAX_OPEN_CONNS": "lots"}, "DB_MAX_OPEN_CONNS"},
		{"malformed seed flag", map[string]string{"SEED_DEMO": "maybe"}, "SEED_DEMO"},
		{"malformed limit", map[string]string{"CHAT_NAME_MAX": "abc"}, "CHAT_NAME_MAX"},
		{"chat name max", map[string]string{"CHAT_NAME_MAX": "0"}, "CHAT_NAME_MAX"},
		{"message max runes", map[string]string{"MESSAGE_MAX_RUNES": "0"}, "MESSAGE_MAX_RUNES"},
		{"negative rps", map[string]string{"RATE_RPS": "-1"}, "RATE_RPS"},
		{"zero burst", map[string]string{"RATE_BURST": "0"}, "RATE_BURST"},
		{"negative hsts", map[string]string{"HSTS_MAX_AGE": "-1s"}, "HSTS_MAX_AGE"},
		{"zero idempotency ttl", map[string]string{"IDEMPOTENCY_TTL": "0s"}, "IDEMPOTENCY_TTL"},
		{"sample ratio", map[string]string{"OTEL_TRACES_SAMPLER_ARG": "1.5"}, "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setenv(t, tc.env)
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Load error = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestLoad_ReportsEveryProblem(t *testing.T) {
	setenv(t, map[string]string{"RATE_BURST": "0", "IDEMPOTENCY_TTL": "0s", "DB_DRIVER": "mysql"})
	_, err := Load()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"RATE_BURST", "IDEMPOTENCY_TTL", "DB_DRIVER"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestMustLoad(t *testing.T) {
	if cfg := MustLoad(); cfg.APIBasePath == "" {
		t.Fatal("MustLoad returned an empty config")
	}

	t.Setenv("LOG_LEVEL", "verbose")
	defer func() {
		if recover() == nil {
			t.Fatal("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

func TestEnvHelpers(t *testing.T) {
	setenv(t, map[string]string{
		"X_EMPTY": "",
		"X_STR":   "val",
		"X_FLOAT": "3.14",
		"X_INT":   "42",
		"X_DUR":   "150ms",
		"X_BAD":   "zzz",
	})

	if getenv("X_EMPTY", "d") != "d" || getenv("X_STR", "d") != "val" {
		t.Fatal("getenv")
	}
	if getfloat("X_FLOAT", 0) != 3.14 || getfloat("X_BAD", 1.5) != 1.5 {
		t.Fatal("getfloat")
	}
	if getint("X_INT", 0) != 42 || getint("X_BAD", 7) != 7 {
		t.Fatal("getint")
	}
	if getdur("X_DUR", time.Second) != 150*time.Millisecond || getdur("X_BAD", 2*time.Second) != 2*time.Second {
		t.Fatal("getdur")
	}
}

func TestGetbool(t *testing.T) {
	cases := map[string]bool{
		"1": true, "true": true, "TRUE": true, " yes ": true, "Y": true, "on": true,
		"0": false, "false": false, "FALSE": false, " no ": false, "N": false, "Off": false,
	}
	for v, want := range cases {
		t.Setenv("X_BOOL", v)
		if got := getbool("X_BOOL", !want); got != want {
			t.Fatalf("getbool(%q) = %v, want %v", v, got, want)
		}
	}

	t.Setenv("X_BOOL", "")
	if !getbool("X_BOOL", true) || getbool("X_BOOL", false) {
		t.Fatal("empty value should return the default")
	}
}

func TestSplitCSVAndBasePath(t *testing.T) {
	if splitCSV("") != nil {
		t.Fatal("splitCSV(\"\") should be nil")
	}
	if got := splitCSV(" a, ,b ,  c  ,"); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("splitCSV = %#v", got)
	}

	for in, want := range map[string]string{"": "/", "v1": "/v1", "/v1/": "/v1", " / ": "/"} {
		if got := normalizeBasePath(in); got != want {
			t.Fatalf("normalizeBasePath(%q) = %q, want %q", in, got, want)
		}
	}
}
