// Package config provides configuration management for the mailrules CLI.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable read by mailrules.
const EnvPrefix = "MAILRULES"

// PasswordEnv holds the IMAP password. Passwords are never read from
// config files.
const PasswordEnv = EnvPrefix + "_IMAP_PASSWORD"

// IMAP connection security modes.
const (
	SecurityTLS      = "tls"
	SecurityStartTLS = "starttls"
	SecurityNone     = "none"
)

// Config is the complete mailrules configuration.
type Config struct {
	RulesFile string
	StoreURL  string
	Engine    EngineConfig
	IMAP      IMAPConfig
}

// EngineConfig controls a rule engine run.
type EngineConfig struct {
	ActionTimeout time.Duration // per mutation call; 0 disables
	DryRun        bool
}

// IMAPConfig describes the mailbox used as inbox source and mutation backend.
type IMAPConfig struct {
	Host       string
	Port       int
	Security   string
	Username   string
	Password   string `json:"-"`
	Mailbox    string
	FetchLimit int
	Timeout    time.Duration
}

// Address returns host:port.
func (c IMAPConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Default returns configuration with default values.
func Default() *Config {
	return &Config{
		RulesFile: "rules.json",
		StoreURL:  "sqlite://mailrules.db",
		Engine: EngineConfig{
			ActionTimeout: 30 * time.Second,
		},
		IMAP: IMAPConfig{
			Port:       993,
			Security:   SecurityTLS,
			Mailbox:    "INBOX",
			FetchLimit: 100,
			Timeout:    30 * time.Second,
		},
	}
}

// LoadEnvFiles loads KEY=VALUE pairs from .env style files into the process
// environment. Variables already set win. Missing files are skipped.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// IMAPPassword reads the IMAP password from the environment.
func IMAPPassword() string {
	return os.Getenv(PasswordEnv)
}
