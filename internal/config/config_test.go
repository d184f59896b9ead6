package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "dev-secret")
	t.Setenv("AI_PROVIDER", "")
	t.Setenv("APP_ENV", "")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Provider != "gemini" {
		t.Fatalf("expected provider gemini, got %s", cfg.Provider)
	}
	if cfg.Port != "8080" || cfg.MinTokensRequired != 750 || cfg.TokensPerMinute != 50 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.AbandonAfter != 60*time.Minute || cfg.PistonMinInterval != 250*time.Millisecond {
		t.Fatalf("unexpected duration defaults: abandon=%s piston=%s", cfg.AbandonAfter, cfg.PistonMinInterval)
	}
	if cfg.SweepSchedule != "*/10 * * * *" || cfg.SweepBatchSize != 100 {
		t.Fatalf("unexpected sweep defaults: %q %d", cfg.SweepSchedule, cfg.SweepBatchSize)
	}
	if cfg.MaxWhiteboardBytes != 4<<20 {
		t.Fatalf("expected 4 MiB whiteboard limit, got %d", cfg.MaxWhiteboardBytes)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "http://localhost:5173" {
		t.Fatalf("unexpected cors origins %v", cfg.CORSOrigins)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "9090")
	t.Setenv("MIN_TOKENS_REQUIRED", "1000")
	t.Setenv("ABANDON_AFTER", "45m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("GEMINI_API_KEY", "key")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "9090" || cfg.MinTokensRequired != 1000 || cfg.AbandonAfter != 45*time.Minute {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.GeminiAPIKey != "key" {
		t.Fatalf("expected GEMINI_API_KEY to be read")
	}
	if strings.Join(cfg.CORSOrigins, "|") != "https://a.example|https://b.example" {
		t.Fatalf("unexpected cors origins %v", cfg.CORSOrigins)
	}
}

func TestLoadConfig_ConfigFile(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("sweep_schedule: \"0 * * * *\"\ntokens_per_minute: 60\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.SweepSchedule != "0 * * * *" || cfg.TokensPerMinute != 60 {
		t.Fatalf("config file not applied: %q %d", cfg.SweepSchedule, cfg.TokensPerMinute)
	}
}

func TestLoadConfig_Rejections(t *testing.T) {
	cases := map[string]map[string]string{
		"unsupported provider": {"AI_PROVIDER": "unknown"},
		"missing jwt secret":   {"JWT_SECRET": ""},
		"short release secret": {"APP_ENV": "release", "GEMINI_API_KEY": "key"},
		"release without key":  {"APP_ENV": "release", "JWT_SECRET": strings.Repeat("s", 32), "GEMINI_API_KEY": ""},
		"zero rate":            {"TOKENS_PER_MINUTE": "0"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			setRequired(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := LoadConfig(); err == nil {
				t.Fatal("expected LoadConfig to fail")
			}
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	cfg := &Config{PostgresHost: "db", PostgresUser: "u", PostgresPassword: "p", PostgresDB: "d", PostgresPort: "5432", PostgresSSLMode: "disable"}
	if got := cfg.PostgresDSN(); got != "host=db user=u password=p dbname=d port=5432 sslmode=disable" {
		t.Fatalf("unexpected dsn %q", got)
	}
	cfg.DatabaseDSN = "postgres://x"
	if cfg.PostgresDSN() != "postgres://x" {
		t.Fatal("expected DATABASE_DSN to win")
	}
}
