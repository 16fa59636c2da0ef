package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds all configuration for the auth server.
// Keys match the environment variable names; a YAML file may use the same keys.
type ServerConfig struct {
	AppName         string `mapstructure:"APP_NAME"`
	HTTPPort        string `mapstructure:"HTTP_PORT"`
	LogLevel        string `mapstructure:"LOG_LEVEL"`
	LogPretty       bool   `mapstructure:"LOG_PRETTY"`
	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`
	// RedisURL selects the Redis backed challenge and lockout stores.
	// Empty means in-process stores.
	RedisURL string `mapstructure:"REDIS_URL"`

	// Generic OAuth2 provider.
	OAuthClientID     string   `mapstructure:"OAUTH_ID"`
	OAuthClientSecret string   `mapstructure:"OAUTH_SECRET"`
	OAuthAuthURL      string   `mapstructure:"OAUTH_URL"`
	OAuthTokenURL     string   `mapstructure:"OAUTH_TOKEN_URL"`
	OAuthUserURL      string   `mapstructure:"OAUTH_USER_URL"`
	OAuthRedirectURI  string   `mapstructure:"OAUTH_REDIRECT_URI"`
	OAuthScopes       []string `mapstructure:"OAUTH_SCOPES"`

	GitHubClientID     string `mapstructure:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `mapstructure:"GITHUB_CLIENT_SECRET"`
	GitHubRedirectURI  string `mapstructure:"GITHUB_REDIRECT_URI"`

	OAuthHTTPTimeout time.Duration `mapstructure:"OAUTH_HTTP_TIMEOUT"`

	LockoutAttempts int           `mapstructure:"LOCKOUT_ATTEMPTS"`
	LockoutTime     time.Duration `mapstructure:"LOCKOUT_TIME"`
	CheckpointTTL   time.Duration `mapstructure:"CHECKPOINT_TTL"`

	SessionLifetime time.Duration `mapstructure:"SESSION_LIFETIME"`
	SessionCookie   string        `mapstructure:"SESSION_COOKIE"`
	SecureCookies   bool          `mapstructure:"SECURE_COOKIES"`
}

var keys = []string{
	"APP_NAME", "HTTP_PORT", "LOG_LEVEL", "LOG_PRETTY", "OTEL_SERVICE_NAME",
	"MONGO_URI", "MONGO_DB_NAME", "REDIS_URL",
	"OAUTH_ID", "OAUTH_SECRET", "OAUTH_URL", "OAUTH_TOKEN_URL", "OAUTH_USER_URL",
	"OAUTH_REDIRECT_URI", "OAUTH_SCOPES",
	"GITHUB_CLIENT_ID", "GITHUB_CLIENT_SECRET", "GITHUB_REDIRECT_URI",
	"OAUTH_HTTP_TIMEOUT", "LOCKOUT_ATTEMPTS", "LOCKOUT_TIME", "CHECKPOINT_TTL",
	"SESSION_LIFETIME", "SESSION_COOKIE", "SECURE_COOKIES",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "Shadow Panel")
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
	v.SetDefault("OTEL_SERVICE_NAME", "shadow-auth")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DB_NAME", "shadow_auth")
	v.SetDefault("OAUTH_SCOPES", []string{})
	v.SetDefault("OAUTH_HTTP_TIMEOUT", "10s")
	v.SetDefault("LOCKOUT_ATTEMPTS", 3)
	v.SetDefault("LOCKOUT_TIME", "120s")
	v.SetDefault("CHECKPOINT_TTL", "5m")
	v.SetDefault("SESSION_LIFETIME", "720h")
	v.SetDefault("SESSION_COOKIE", "panel_session")
	v.SetDefault("SECURE_COOKIES", true)
}

// LoadConfig reads configuration from auth.yaml (if present), the environment
// and defaults, in increasing order of precedence for env over file.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("auth")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/shadow-auth/")
	v.AddConfigPath("$HOME/.shadow-auth")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return load(v)
}

func load(v *viper.Viper) (*ServerConfig, error) {
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// AutomaticEnv only applies to keys viper already knows about during Unmarshal.
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", key, err)
		}
	}
	setDefaults(v)

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the values that would otherwise fail late at request time.
func (c *ServerConfig) Validate() error {
	if c.LockoutAttempts <= 0 {
		return fmt.Errorf("LOCKOUT_ATTEMPTS must be positive, got %d", c.LockoutAttempts)
	}
	if c.LockoutTime <= 0 {
		return errors.New("LOCKOUT_TIME must be positive")
	}
	if c.CheckpointTTL <= 0 {
		return errors.New("CHECKPOINT_TTL must be positive")
	}
	if c.SessionLifetime <= 0 {
		return errors.New("SESSION_LIFETIME must be positive")
	}
	if c.OAuthHTTPTimeout <= 0 {
		return errors.New("OAUTH_HTTP_TIMEOUT must be positive")
	}
	if c.GenericOAuthEnabled() && !strings.Contains(c.OAuthUserURL, "{{TOKEN}}") {
		return errors.New("OAUTH_USER_URL must contain the {{TOKEN}} placeholder")
	}
	return nil
}

// GenericOAuthEnabled reports whether the configurable OAuth2 provider has
// enough configuration to be offered.
func (c *ServerConfig) GenericOAuthEnabled() bool {
	return c.OAuthClientID != "" && c.OAuthAuthURL != "" && c.OAuthTokenURL != "" && c.OAuthUserURL != ""
}

// GitHubEnabled reports whether GitHub login is configured.
func (c *ServerConfig) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}
