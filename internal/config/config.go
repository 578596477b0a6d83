// Package config provides application configuration with multi-source
// priority.
//
// Sources (highest to lowest):
//  1. Environment variables (VISITROME_* and the explicit secret binds)
//  2. Config file (./config.yaml)
//  3. Defaults
//
// Security: sensitive values (separator token, database password, WhatsApp
// access token) are masked in MarshalJSON and String.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sentinel errors for configuration validation.
var (
	ErrMissingSeparatorToken = errors.New("missing separator token")
	ErrMissingModelName      = errors.New("missing model name")
	ErrMissingEmbedderModel  = errors.New("missing embedder model")
	ErrInvalidTopK           = errors.New("invalid top_k")
	ErrNoKnowledgeDomains    = errors.New("no knowledge domains configured")
	ErrInvalidHistoryLimit   = errors.New("invalid history limit")
	ErrInvalidPostgresPort   = errors.New("invalid PostgreSQL port")
	ErrInvalidPoolSize       = errors.New("invalid pool size")
	ErrInvalidLLMTimeout     = errors.New("invalid llm timeout")
	ErrInvalidLogLevel       = errors.New("invalid log level")
)

// Default knowledge domains, matching the ingestion pipeline's collections.
const (
	DomainHotels = "hotels"
	DomainTours  = "tours"
)

// WhatsAppConfig holds the outbound messaging credentials. All fields empty
// means the webhook transport is disabled and only /chat is served.
type WhatsAppConfig struct {
	AccessToken   string `mapstructure:"access_token" json:"access_token"` // SENSITIVE: masked in MarshalJSON
	PhoneNumberID string `mapstructure:"phone_number_id" json:"phone_number_id"`
	VerifyToken   string `mapstructure:"verify_token" json:"verify_token"` // SENSITIVE: masked in MarshalJSON
	GraphVersion  string `mapstructure:"graph_version" json:"graph_version"`
}

// Enabled reports whether outbound messaging is configured.
func (w WhatsAppConfig) Enabled() bool {
	return w.AccessToken != "" && w.PhoneNumberID != ""
}

// Config stores the application configuration.
type Config struct {
	// AI configuration
	ModelName     string `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`

	// LLM call policy
	LLMTimeout time.Duration `mapstructure:"llm_timeout" json:"llm_timeout"`

	// Retrieval configuration
	Domains      []string `mapstructure:"domains" json:"domains"`
	TopK         int      `mapstructure:"top_k" json:"top_k"`
	HistoryLimit int      `mapstructure:"history_limit" json:"history_limit"`

	// SeparatorToken is the shared secret splitting user text from the
	// conversation id in composite queries.
	SeparatorToken string `mapstructure:"separator_token" json:"separator_token"` // SENSITIVE: masked in MarshalJSON

	// UATMode carries the user-acceptance-test flag into every run's state.
	UATMode bool `mapstructure:"uat_mode" json:"uat_mode"`

	// Storage configuration
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`
	PoolMaxConns     int    `mapstructure:"pool_max_conns" json:"pool_max_conns"`

	// HTTP configuration
	HTTPAddr string `mapstructure:"http_addr" json:"http_addr"`

	// Logging configuration. LogLevel is one of debug, info, warn, error;
	// LogJSON selects JSON records over plain text.
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`

	// WhatsApp outbound transport
	WhatsApp WhatsAppConfig `mapstructure:"whatsapp" json:"whatsapp"`
}

// Load loads configuration with priority: env > config file > defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No config file is fine; defaults plus env apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model_name", "googleai/gemini-2.5-flash")
	v.SetDefault("embedder_model", "text-embedding-004")
	v.SetDefault("llm_timeout", "30s")

	v.SetDefault("domains", []string{DomainHotels, DomainTours})
	v.SetDefault("top_k", 3)
	v.SetDefault("history_limit", 10)

	v.SetDefault("uat_mode", true)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "visitrome")
	v.SetDefault("postgres_password", "visitrome_dev_password")
	v.SetDefault("postgres_db_name", "visitrome")
	v.SetDefault("postgres_ssl_mode", "disable")
	v.SetDefault("pool_max_conns", 4)

	v.SetDefault("http_addr", ":8080")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", true)

	v.SetDefault("whatsapp.graph_version", "v18.0")
}

// bindEnvVariables binds environment overrides. Secrets are bound explicitly
// so their variable names are visible in one place.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("separator_token", "VISITROME_SEPARATOR_TOKEN")
	mustBind("postgres_password", "VISITROME_POSTGRES_PASSWORD")
	mustBind("whatsapp.access_token", "WHATSAPP_ACCESS_TOKEN")
	mustBind("whatsapp.verify_token", "WHATSAPP_VERIFY_TOKEN")
	mustBind("whatsapp.phone_number_id", "WHATSAPP_PHONE_NUMBER_ID")

	mustBind("model_name", "VISITROME_MODEL_NAME")
	mustBind("embedder_model", "VISITROME_EMBEDDER_MODEL")
	mustBind("postgres_host", "VISITROME_POSTGRES_HOST")
	mustBind("postgres_port", "VISITROME_POSTGRES_PORT")
	mustBind("postgres_user", "VISITROME_POSTGRES_USER")
	mustBind("postgres_db_name", "VISITROME_POSTGRES_DB_NAME")
	mustBind("http_addr", "VISITROME_HTTP_ADDR")
	mustBind("uat_mode", "VISITROME_UAT_MODE")
	mustBind("log_level", "VISITROME_LOG_LEVEL")
	mustBind("log_json", "VISITROME_LOG_JSON")
}

// Validate checks the configuration and fails fast on the first problem.
func (c *Config) Validate() error {
	if c.SeparatorToken == "" {
		return fmt.Errorf("%w: set VISITROME_SEPARATOR_TOKEN", ErrMissingSeparatorToken)
	}
	if c.ModelName == "" {
		return ErrMissingModelName
	}
	if c.EmbedderModel == "" {
		return ErrMissingEmbedderModel
	}
	if c.LLMTimeout <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidLLMTimeout, c.LLMTimeout)
	}
	if c.TopK < 1 || c.TopK > 50 {
		return fmt.Errorf("%w: %d (want 1-50)", ErrInvalidTopK, c.TopK)
	}
	if len(c.Domains) == 0 {
		return ErrNoKnowledgeDomains
	}
	if c.HistoryLimit < 1 || c.HistoryLimit > 100 {
		return fmt.Errorf("%w: %d (want 1-100)", ErrInvalidHistoryLimit, c.HistoryLimit)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PoolMaxConns < 1 || c.PoolMaxConns > 16 {
		return fmt.Errorf("%w: %d (want 1-16)", ErrInvalidPoolSize, c.PoolMaxConns)
	}
	if _, err := parseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// SlogLevel maps the configured level name to its slog level. Validate has
// already rejected unknown names, so the error path only guards misuse.
func (c *Config) SlogLevel() slog.Level {
	level, err := parseLogLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLogLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: %q (want debug, info, warn, or error)", ErrInvalidLogLevel, name)
	}
}

// PostgresURL returns the postgres:// connection URL, used by both the
// migration runner and the pool.
func (c *Config) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.PostgresUser),
		url.QueryEscape(c.PostgresPassword),
		c.PostgresHost,
		c.PostgresPort,
		c.PostgresDBName,
		c.PostgresSSLMode,
	)
}

const maskedValue = "████████"

// maskSecret hides a secret for logging. Short secrets are fully masked;
// longer ones keep two characters on each side for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON masks sensitive fields. Update this method when adding new
// secret fields.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.SeparatorToken = maskSecret(a.SeparatorToken)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	a.WhatsApp.AccessToken = maskSecret(a.WhatsApp.AccessToken)
	a.WhatsApp.VerifyToken = maskSecret(a.WhatsApp.VerifyToken)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer so accidental prints never leak secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
