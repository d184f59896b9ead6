package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the whole service configuration. Every key can come from the environment;
// CONFIG_FILE optionally points at a YAML file with the same keys in lower case.
type Config struct {
	Env  string `mapstructure:"app_env"`
	Port string `mapstructure:"port"`

	DatabaseDSN      string `mapstructure:"database_dsn"`
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"`
	PostgresDB       string `mapstructure:"postgres_db"`
	PostgresPort     string `mapstructure:"postgres_port"`
	PostgresSSLMode  string `mapstructure:"postgres_sslmode"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`

	MongoURI            string `mapstructure:"mongo_uri"`
	QuestionsDB         string `mapstructure:"questions_db_name"`
	QuestionsCollection string `mapstructure:"questions_collection"`

	Provider      string   `mapstructure:"ai_provider"`
	GeminiAPIKey  string   `mapstructure:"gemini_api_key"`
	GeminiModel   string   `mapstructure:"gemini_model"`
	JWTSecret     string   `mapstructure:"jwt_secret"`
	InternalKey   string   `mapstructure:"internal_api_key"`
	CORSOrigins   []string `mapstructure:"-"`
	RawCORSOrigin string   `mapstructure:"cors_allowed_origins"`

	PistonURL         string        `mapstructure:"piston_url"`
	PistonMinInterval time.Duration `mapstructure:"piston_min_interval"`

	MinTokensRequired int64         `mapstructure:"min_tokens_required"`
	TokensPerMinute   int64         `mapstructure:"tokens_per_minute"`
	AbandonAfter      time.Duration `mapstructure:"abandon_after"`
	SweepSchedule     string        `mapstructure:"sweep_schedule"`
	SweepEnabled      bool          `mapstructure:"sweep_enabled"`
	SweepBatchSize    int           `mapstructure:"sweep_batch_size"`
	XPPerMinute       int64         `mapstructure:"xp_per_minute"`
	MaxXPPerInterview int64         `mapstructure:"max_xp_per_interview"`

	UserCacheTTL        time.Duration `mapstructure:"user_cache_ttl"`
	QuestionCacheTTL    time.Duration `mapstructure:"question_cache_ttl"`
	LeaderboardCacheTTL time.Duration `mapstructure:"leaderboard_cache_ttl"`
	FeedbackTimeout     time.Duration `mapstructure:"feedback_timeout"`

	MaxWhiteboardBytes int   `mapstructure:"max_whiteboard_bytes"`
	MaxBodyBytes       int64 `mapstructure:"max_body_bytes"`

	LogLevel      string `mapstructure:"log_level"`
	LogFile       string `mapstructure:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`
	LogMaxAgeDays int    `mapstructure:"log_max_age_days"`
}

var defaults = map[string]any{
	"app_env":               "development",
	"port":                  "8080",
	"postgres_host":         "localhost",
	"postgres_user":         "postgres",
	"postgres_password":     "postgres",
	"postgres_db":           "postgres",
	"postgres_port":         "5432",
	"postgres_sslmode":      "disable",
	"redis_addr":            "localhost:6379",
	"mongo_uri":             "mongodb://localhost:27017",
	"questions_db_name":     "questionbank",
	"questions_collection":  "questions",
	"ai_provider":           "gemini",
	"gemini_model":          "gemini-2.5-flash",
	"cors_allowed_origins":  "http://localhost:5173",
	"piston_url":            "https://emkc.org/api/v2/piston",
	"piston_min_interval":   "250ms",
	"min_tokens_required":   750,
	"tokens_per_minute":     50,
	"abandon_after":         "60m",
	"sweep_schedule":        "*/10 * * * *",
	"sweep_enabled":         true,
	"sweep_batch_size":      100,
	"xp_per_minute":         10,
	"max_xp_per_interview":  600,
	"user_cache_ttl":        "5m",
	"question_cache_ttl":    "1h",
	"leaderboard_cache_ttl": "1m",
	"feedback_timeout":      "90s",
	"max_whiteboard_bytes":  4 << 20,
	"max_body_bytes":        8 << 20,
	"log_level":             "info",
	"log_max_size_mb":       100,
	"log_max_backups":       5,
	"log_max_age_days":      14,
}

// LoadConfig reads configuration from the environment and the optional CONFIG_FILE.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
		// Unmarshal only sees env values for keys viper already knows about.
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return nil, err
		}
	}
	for _, key := range []string{"database_dsn", "redis_password", "gemini_api_key", "jwt_secret", "internal_api_key", "log_file"} {
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return nil, err
		}
	}

	if err := v.BindEnv("config_file", "CONFIG_FILE"); err != nil {
		return nil, err
	}
	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.CORSOrigins = splitList(cfg.RawCORSOrigin)

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Release reports whether strict production checks apply.
func (c *Config) Release() bool {
	return c.Env == "release" || c.Env == "production"
}

// PostgresDSN returns DATABASE_DSN, or a DSN built from the POSTGRES_* parts.
func (c *Config) PostgresDSN() string {
	if c.DatabaseDSN != "" {
		return c.DatabaseDSN
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresPort, c.PostgresSSLMode)
}

func validateConfig(config *Config) error {
	if config.Provider != "gemini" {
		return errors.New("unsupported AI provider: " + config.Provider + ". Currently supported: gemini")
	}
	if config.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if config.Release() {
		if len(config.JWTSecret) < 32 {
			return fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(config.JWTSecret))
		}
		if config.GeminiAPIKey == "" {
			return errors.New("GEMINI_API_KEY is required in release mode")
		}
	}
	if config.MinTokensRequired <= 0 {
		return errors.New("MIN_TOKENS_REQUIRED must be positive")
	}
	if config.TokensPerMinute <= 0 {
		return errors.New("TOKENS_PER_MINUTE must be positive")
	}
	if config.AbandonAfter <= 0 {
		return errors.New("ABANDON_AFTER must be positive")
	}
	if config.SweepBatchSize <= 0 {
		return errors.New("SWEEP_BATCH_SIZE must be positive")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
