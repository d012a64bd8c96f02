package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for ekaya-sales.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:""` // Empty keeps the environment default
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	Auth      AuthConfig      `yaml:"auth"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	LLM       LLMConfig       `yaml:"llm"`
	Storage   StorageConfig   `yaml:"storage"`
	WorkQueue WorkQueueConfig `yaml:"workqueue"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	MCP       MCPConfig       `yaml:"mcp"`

	// CredentialsKey encrypts secrets stored in the database (the AI API key in system settings).
	// Generate with: openssl rand -base64 32
	CredentialsKey string `yaml:"-" env:"CREDENTIALS_KEY"` // Secret - not in YAML
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	// JWTSecret signs locally issued access tokens (HS256).
	JWTSecret string `yaml:"-" env:"AUTH_JWT_SECRET"`
	// SessionSecret signs browser session cookies.
	SessionSecret string `yaml:"-" env:"AUTH_SESSION_SECRET"`
	// TokenTTL is the lifetime of issued access tokens.
	TokenTTL time.Duration `yaml:"token_ttl" env:"AUTH_TOKEN_TTL" env-default:"12h"`
	// Issuer is the iss claim of locally issued tokens.
	Issuer string `yaml:"issuer" env:"AUTH_ISSUER" env-default:"ekaya-sales"`
	// SecureCookies marks cookies Secure (HTTPS only).
	SecureCookies bool `yaml:"secure_cookies" env:"AUTH_SECURE_COOKIES" env-default:"false"`

	// JWKSEndpointsStr is a comma-separated list of issuer=jwks_url pairs for SSO tokens.
	// Format: "issuer1=url1,issuer2=url2"
	JWKSEndpointsStr string `yaml:"jwks_endpoints" env:"JWKS_ENDPOINTS" env-default:""`

	// JWKSEndpoints is the parsed map from JWKSEndpointsStr (not from config file).
	JWKSEndpoints map[string]string `yaml:"-"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"ekaya"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"ekaya_sales"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	// StatementTimeout caps each statement; zero keeps the server default.
	StatementTimeout time.Duration `yaml:"statement_timeout" env:"PGSTATEMENT_TIMEOUT" env-default:"60s"`
}

// RedisConfig holds optional Redis configuration. An empty host disables Redis.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// Enabled reports whether Redis is configured.
func (c *RedisConfig) Enabled() bool {
	return c.Host != ""
}

// LLMConfig holds server-level AI defaults. System settings stored in the
// database take precedence for model, temperature, token limits and API key.
type LLMConfig struct {
	// Provider selects the completion API: "openai" or "anthropic".
	Provider        string        `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`
	BaseURL         string        `yaml:"base_url" env:"LLM_BASE_URL" env-default:"https://api.openai.com/v1"`
	DefaultModel    string        `yaml:"default_model" env:"LLM_DEFAULT_MODEL" env-default:"gpt-4o"`
	TestModel       string        `yaml:"test_model" env:"LLM_TEST_MODEL" env-default:"gpt-4o-mini"`
	Temperature     float64       `yaml:"temperature" env:"LLM_TEMPERATURE" env-default:"0.7"`
	MaxTokens       int           `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"4000"`
	RequestTimeout  time.Duration `yaml:"request_timeout" env:"LLM_REQUEST_TIMEOUT" env-default:"120s"`
	OpenAIAPIKey    string        `yaml:"-" env:"OPENAI_API_KEY"`
	AnthropicAPIKey string        `yaml:"-" env:"ANTHROPIC_API_KEY"`
}

// APIKey returns the environment API key for the configured provider.
func (c *LLMConfig) APIKey() string {
	if c.Provider == "anthropic" {
		return c.AnthropicAPIKey
	}
	return c.OpenAIAPIKey
}

// StorageConfig holds local file storage locations.
type StorageConfig struct {
	UploadDir string `yaml:"upload_dir" env:"STORAGE_UPLOAD_DIR" env-default:"data/uploads"`
	ExportDir string `yaml:"export_dir" env:"STORAGE_EXPORT_DIR" env-default:"data/exports"`
}

// WorkQueueConfig controls the background task queue.
type WorkQueueConfig struct {
	MaxConcurrentLLM int           `yaml:"max_concurrent_llm" env:"WORKQUEUE_MAX_CONCURRENT_LLM" env-default:"4"`
	MaxRetries       int           `yaml:"max_retries" env:"WORKQUEUE_MAX_RETRIES" env-default:"3"`
	RetryStep        time.Duration `yaml:"retry_step" env:"WORKQUEUE_RETRY_STEP" env-default:"60s"`
	PruneAfter       time.Duration `yaml:"prune_after" env:"WORKQUEUE_PRUNE_AFTER" env-default:"1h"`
}

// TelemetryConfig configures OpenTelemetry tracing. Empty endpoint disables export.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT" env-default:""`
	Insecure     bool   `yaml:"insecure" env:"OTEL_EXPORTER_OTLP_INSECURE" env-default:"false"`
}

// MCPConfig controls the MCP tool endpoint.
type MCPConfig struct {
	Enabled bool `yaml:"enabled" env:"MCP_ENABLED" env-default:"true"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// A missing config.yaml is not an error; defaults and environment variables apply.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	cfg.Auth.JWKSEndpoints = parseJWKSEndpoints(cfg.Auth.JWKSEndpointsStr)
	cfg.Database.Host = ResolveHostForDocker(cfg.Database.Host)
	cfg.Redis.Host = ResolveHostForDocker(cfg.Redis.Host)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Auto-derive BaseURL from Port if not explicitly set
	if cfg.BaseURL == "" {
		scheme := "http"
		if cfg.TLSCertPath != "" {
			scheme = "https"
		}
		cfg.BaseURL = (&url.URL{
			Scheme: scheme,
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

// IsLocal reports whether the service runs in the local development environment.
func (c *Config) IsLocal() bool {
	return c.Env == "local" || c.Env == "test"
}

func (c *Config) validate() error {
	if err := c.validateTLS(); err != nil {
		return fmt.Errorf("invalid TLS configuration: %w", err)
	}

	switch c.LLM.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("invalid llm.provider %q: must be openai or anthropic", c.LLM.Provider)
	}

	if !c.IsLocal() {
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("AUTH_JWT_SECRET is required outside local environments")
		}
		if c.Auth.SessionSecret == "" {
			return fmt.Errorf("AUTH_SESSION_SECRET is required outside local environments")
		}
	}

	return nil
}

// validateTLS ensures TLS configuration is valid if provided.
// Both cert and key must be provided together, and files must exist.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}

	return nil
}

// parseJWKSEndpoints parses the JWKS endpoints string into a map.
// Format: "issuer1=url1,issuer2=url2"
func parseJWKSEndpoints(value string) map[string]string {
	endpoints := make(map[string]string)
	if value == "" {
		return endpoints
	}

	for _, pair := range strings.Split(value, ",") {
		issuer, jwksURL, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		endpoints[strings.TrimSpace(issuer)] = strings.TrimSpace(jwksURL)
	}
	return endpoints
}

// ConnectionString returns a PostgreSQL keyword/value connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// URL returns the connection settings as a postgres:// URL.
func (c *DatabaseConfig) URL() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}
