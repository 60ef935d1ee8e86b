package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ripplefeed/ripple/backend/internal/feed"
)

const (
	envPrefix           = "RIPPLE"
	defaultHTTPAddress  = "0.0.0.0:8080"
	defaultDatabasePath = "ripple.db"
	defaultLogLevel     = "info"
	defaultCookieName   = "app_session"
	defaultTokenIssuer  = "ripple-auth"
	defaultTokenAud     = "ripple-api"
	defaultTokenTTL     = 30 * time.Minute
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress       string
	GatewaySigningKey string
	GatewayCookieName string
	TokenIssuer       string
	TokenAudience     string
	TokenTTL          time.Duration
	DatabasePath      string
	LogLevel          string
	FeedPageSize      int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("gateway.cookie_name", defaultCookieName)
	configViper.SetDefault("token.issuer", defaultTokenIssuer)
	configViper.SetDefault("token.audience", defaultTokenAud)
	configViper.SetDefault("token.ttl", defaultTokenTTL)
	configViper.SetDefault("feed.page_size", feed.DefaultPageSize)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:       configViper.GetString("http.address"),
		GatewaySigningKey: configViper.GetString("gateway.signing_secret"),
		GatewayCookieName: configViper.GetString("gateway.cookie_name"),
		TokenIssuer:       configViper.GetString("token.issuer"),
		TokenAudience:     configViper.GetString("token.audience"),
		TokenTTL:          configViper.GetDuration("token.ttl"),
		DatabasePath:      configViper.GetString("database.path"),
		LogLevel:          configViper.GetString("log.level"),
		FeedPageSize:      configViper.GetInt("feed.page_size"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.GatewaySigningKey) == "" {
		return fmt.Errorf("gateway.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.GatewayCookieName) == "" {
		return fmt.Errorf("gateway.cookie_name is required")
	}
	if c.FeedPageSize <= 0 {
		return fmt.Errorf("feed.page_size must be positive")
	}
	return nil
}
