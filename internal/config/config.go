package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix            = "SERVIX"
	defaultHTTPAddress   = "0.0.0.0:8080"
	defaultDatabasePath  = "servix.db"
	defaultLogLevel      = "info"
	defaultUploadDir     = "uploads"
	defaultAccessTTLMin  = 15
	defaultRefreshTTLHrs = 168
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress    string
	DatabasePath   string
	LogLevel       string
	AccessSecret   string
	RefreshSecret  string
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	AllowedOrigins []string
	UploadDir      string
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
	configViper.SetDefault("uploads.dir", defaultUploadDir)
	configViper.SetDefault("auth.access_ttl_minutes", defaultAccessTTLMin)
	configViper.SetDefault("auth.refresh_ttl_hours", defaultRefreshTTLHrs)
	configViper.SetDefault("cors.allowed_origins", []string{"*"})
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:    configViper.GetString("http.address"),
		DatabasePath:   configViper.GetString("database.path"),
		LogLevel:       configViper.GetString("log.level"),
		AccessSecret:   configViper.GetString("auth.access_secret"),
		RefreshSecret:  configViper.GetString("auth.refresh_secret"),
		AccessTTL:      time.Duration(configViper.GetInt("auth.access_ttl_minutes")) * time.Minute,
		RefreshTTL:     time.Duration(configViper.GetInt("auth.refresh_ttl_hours")) * time.Hour,
		AllowedOrigins: configViper.GetStringSlice("cors.allowed_origins"),
		UploadDir:      configViper.GetString("uploads.dir"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.AccessSecret) == "" {
		return fmt.Errorf("auth.access_secret is required")
	}
	if strings.TrimSpace(c.RefreshSecret) == "" {
		return fmt.Errorf("auth.refresh_secret is required")
	}
	if c.AccessSecret == c.RefreshSecret {
		return fmt.Errorf("auth.access_secret and auth.refresh_secret must differ")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	return nil
}
