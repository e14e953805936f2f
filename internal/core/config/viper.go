package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration using viper.
// CLI flags (applied by the caller) > environment > config file > defaults.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	d := Default()

	v.SetDefault("rules.file", d.RulesFile)
	v.SetDefault("store.url", d.StoreURL)
	v.SetDefault("engine.action_timeout", d.Engine.ActionTimeout.String())
	v.SetDefault("engine.dry_run", d.Engine.DryRun)
	v.SetDefault("imap.host", d.IMAP.Host)
	v.SetDefault("imap.port", d.IMAP.Port)
	v.SetDefault("imap.security", d.IMAP.Security)
	v.SetDefault("imap.username", d.IMAP.Username)
	v.SetDefault("imap.mailbox", d.IMAP.Mailbox)
	v.SetDefault("imap.fetch_limit", d.IMAP.FetchLimit)
	v.SetDefault("imap.timeout", d.IMAP.Timeout.String())

	// MAILRULES_IMAP_HOST -> imap.host
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &Config{
		RulesFile: v.GetString("rules.file"),
		StoreURL:  v.GetString("store.url"),
		Engine: EngineConfig{
			ActionTimeout: v.GetDuration("engine.action_timeout"),
			DryRun:        v.GetBool("engine.dry_run"),
		},
		IMAP: IMAPConfig{
			Host:       v.GetString("imap.host"),
			Port:       v.GetInt("imap.port"),
			Security:   strings.ToLower(v.GetString("imap.security")),
			Username:   v.GetString("imap.username"),
			Password:   IMAPPassword(),
			Mailbox:    v.GetString("imap.mailbox"),
			FetchLimit: v.GetInt("imap.fetch_limit"),
			Timeout:    v.GetDuration("imap.timeout"),
		},
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks ranges and enumerations. IMAP host and credentials are
// checked by the commands that need them (see ValidateIMAP).
func Validate(cfg *Config) error {
	if cfg.RulesFile == "" {
		return fmt.Errorf("rules.file must not be empty")
	}
	if cfg.StoreURL == "" {
		return fmt.Errorf("store.url must not be empty")
	}
	if cfg.Engine.ActionTimeout < 0 {
		return fmt.Errorf("engine.action_timeout must not be negative, got %v", cfg.Engine.ActionTimeout)
	}
	if cfg.IMAP.Port <= 0 || cfg.IMAP.Port > 65535 {
		return fmt.Errorf("imap.port must be between 1 and 65535, got %d", cfg.IMAP.Port)
	}
	switch cfg.IMAP.Security {
	case SecurityTLS, SecurityStartTLS, SecurityNone:
	default:
		return fmt.Errorf("imap.security must be one of tls, starttls, none, got %q", cfg.IMAP.Security)
	}
	if cfg.IMAP.FetchLimit <= 0 {
		return fmt.Errorf("imap.fetch_limit must be positive, got %d", cfg.IMAP.FetchLimit)
	}
	if cfg.IMAP.Timeout < 0 {
		return fmt.Errorf("imap.timeout must not be negative, got %v", cfg.IMAP.Timeout)
	}
	if cfg.IMAP.Mailbox == "" {
		return fmt.Errorf("imap.mailbox must not be empty")
	}
	return nil
}

// ValidateIMAP checks the settings required to connect to the IMAP server.
func ValidateIMAP(cfg IMAPConfig) error {
	if cfg.Host == "" {
		return fmt.Errorf("imap.host is required")
	}
	if cfg.Username == "" {
		return fmt.Errorf("imap.username is required")
	}
	if cfg.Password == "" {
		return fmt.Errorf("IMAP password is required (set %s)", PasswordEnv)
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets.
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.InConfig("imap.password") || v.InConfig("password") {
		return fmt.Errorf("IMAP password not allowed in config files (use %s environment variable)", PasswordEnv)
	}
	return nil
}
