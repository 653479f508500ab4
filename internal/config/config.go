package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/boddenberg/hr-admin-bfa-go/internal/validation"
)

// PathEnvVar overrides the YAML config file location.
const PathEnvVar = "HRDASH_CONFIG"

// DefaultPaths are searched in order when PathEnvVar is unset.
var DefaultPaths = []string{"config.yaml", "config.yml"}

// Config holds all application configuration.
// Precedence: environment > YAML file > defaults.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Log        LogConfig        `koanf:"log"`
	HTTP       HTTPConfig       `koanf:"http"`
	Resilience ResilienceConfig `koanf:"resilience"`
	OTel       OTelConfig       `koanf:"otel"`
	Supabase   SupabaseConfig   `koanf:"supabase"`
	Auth       AuthConfig       `koanf:"auth"`
	Session    SessionConfig    `koanf:"session"`
	CORS       CORSConfig       `koanf:"cors"`
	RateLimit  RateLimitConfig  `koanf:"ratelimit"`
}

type ServerConfig struct {
	Port int `koanf:"port" validate:"min=1,max=65535"`
}

type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
}

type HTTPConfig struct {
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

type ResilienceConfig struct {
	MaxRetries     int           `koanf:"max_retries" validate:"min=0"`
	InitialBackoff time.Duration `koanf:"initial_backoff"`
	MaxConcurrency int           `koanf:"max_concurrency" validate:"min=1"`
}

// OTelConfig: an empty endpoint disables trace export.
type OTelConfig struct {
	Endpoint string `koanf:"endpoint"`
	Insecure bool   `koanf:"insecure"`
}

type SupabaseConfig struct {
	URL     string `koanf:"url" validate:"required,url"`
	AnonKey string `koanf:"anon_key" validate:"required"`
	// JWTSecret enables signature checks on recovered access tokens.
	// When empty, claims are parsed without verification.
	JWTSecret string `koanf:"jwt_secret"`
}

// AuthConfig tunes the auth bootstrap and user-data loader.
type AuthConfig struct {
	BootstrapMaxAttempts int           `koanf:"bootstrap_max_attempts" validate:"min=1"`
	BootstrapRetryDelay  time.Duration `koanf:"bootstrap_retry_delay" validate:"gte=0"`
	SlowLoadingAfter     time.Duration `koanf:"slow_loading_after" validate:"gt=0"`
	SettleTimeout        time.Duration `koanf:"settle_timeout" validate:"gt=0"`
	UserDataRate         float64       `koanf:"user_data_rate" validate:"gt=0"`
	UserDataBurst        int           `koanf:"user_data_burst" validate:"min=1"`
	RefreshMargin        time.Duration `koanf:"refresh_margin" validate:"gte=0"`
	AutoRefreshInterval  time.Duration `koanf:"auto_refresh_interval" validate:"gt=0"`
}

// SessionConfig covers the browser session cookie and token persistence.
// An empty StorePath keeps tokens in memory only.
type SessionConfig struct {
	CookieName       string        `koanf:"cookie_name" validate:"required"`
	CookieSecure     bool          `koanf:"cookie_secure"`
	IdleTTL          time.Duration `koanf:"idle_ttl" validate:"gt=0"`
	StorePath        string        `koanf:"store_path"`
	EncryptionSecret string        `koanf:"encryption_secret" validate:"required_with=StorePath"`
}

type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

type RateLimitConfig struct {
	LoginPerMinute int `koanf:"login_per_minute" validate:"min=1"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Log:    LogConfig{Level: "info"},
		HTTP:   HTTPConfig{Timeout: 10 * time.Second},
		Resilience: ResilienceConfig{
			MaxRetries:     3,
			InitialBackoff: 100 * time.Millisecond,
			MaxConcurrency: 50,
		},
		Auth: AuthConfig{
			BootstrapMaxAttempts: 2,
			BootstrapRetryDelay:  2 * time.Second,
			SlowLoadingAfter:     5 * time.Second,
			SettleTimeout:        5 * time.Second,
			UserDataRate:         5,
			UserDataBurst:        5,
			RefreshMargin:        60 * time.Second,
			AutoRefreshInterval:  30 * time.Second,
		},
		Session: SessionConfig{
			CookieName: "hrdash_sid",
			IdleTTL:    30 * time.Minute,
		},
		CORS:      CORSConfig{AllowedOrigins: []string{"http://localhost:5173"}},
		RateLimit: RateLimitConfig{LoginPerMinute: 10},
	}
}

// envKeys maps environment variables to koanf paths. Unlisted variables
// are ignored.
var envKeys = map[string]string{
	"PORT":                        "server.port",
	"LOG_LEVEL":                   "log.level",
	"HTTP_TIMEOUT":                "http.timeout",
	"MAX_RETRIES":                 "resilience.max_retries",
	"INITIAL_BACKOFF":             "resilience.initial_backoff",
	"MAX_CONCURRENCY":             "resilience.max_concurrency",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "otel.endpoint",
	"OTEL_EXPORTER_OTLP_INSECURE": "otel.insecure",
	"SUPABASE_URL":                "supabase.url",
	"SUPABASE_ANON_KEY":           "supabase.anon_key",
	"SUPABASE_JWT_SECRET":         "supabase.jwt_secret",
	"AUTH_BOOTSTRAP_MAX_ATTEMPTS": "auth.bootstrap_max_attempts",
	"AUTH_BOOTSTRAP_RETRY_DELAY":  "auth.bootstrap_retry_delay",
	"AUTH_SLOW_LOADING_AFTER":     "auth.slow_loading_after",
	"AUTH_SETTLE_TIMEOUT":         "auth.settle_timeout",
	"AUTH_USER_DATA_RATE":         "auth.user_data_rate",
	"AUTH_USER_DATA_BURST":        "auth.user_data_burst",
	"AUTH_REFRESH_MARGIN":         "auth.refresh_margin",
	"AUTH_AUTO_REFRESH_INTERVAL":  "auth.auto_refresh_interval",
	"SESSION_COOKIE_NAME":         "session.cookie_name",
	"SESSION_COOKIE_SECURE":       "session.cookie_secure",
	"SESSION_IDLE_TTL":            "session.idle_ttl",
	"SESSION_STORE_PATH":          "session.store_path",
	"SESSION_ENCRYPTION_SECRET":   "session.encryption_secret",
	"CORS_ALLOWED_ORIGINS":        "cors.allowed_origins",
	"RATELIMIT_LOGIN_PER_MINUTE":  "ratelimit.login_per_minute",
}

func envTransform(key string) string {
	return envKeys[key]
}

// Load builds the configuration from defaults, the optional YAML file and
// the environment, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	// CORS_ALLOWED_ORIGINS arrives as a comma-separated string
	if s, ok := k.Get("cors.allowed_origins").(string); ok {
		if err := k.Set("cors.allowed_origins", splitList(s)); err != nil {
			return nil, fmt.Errorf("set cors origins: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validation.Get().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func findFile() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func splitList(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
