package config

import (
	"testing"
)

// TestAcceptanceCriteria covers the secret-handling and precedence guarantees.
func TestAcceptanceCriteria(t *testing.T) {
	t.Run("AC1: IMAP password accessible only via environment", func(t *testing.T) {
		t.Setenv(PasswordEnv, "from-env")

		if IMAPPassword() != "from-env" {
			t.Fatalf("AC1 FAIL: IMAPPassword() = %q", IMAPPassword())
		}
		cfg, err := LoadConfig("")
		if err != nil {
			t.Fatalf("AC1 FAIL: LoadConfig error: %v", err)
		}
		if cfg.IMAP.Password != "from-env" {
			t.Fatal("AC1 FAIL: password not loaded from environment")
		}
	})

	t.Run("AC2: config file with password rejected with clear error", func(t *testing.T) {
		path := writeConfig(t, "config.yaml", `imap:
  host: "imap.example.com"
  password: "should_be_rejected"
`)
		_, err := LoadConfig(path)
		if err == nil {
			t.Fatal("AC2 FAIL: expected error for password in config file")
		}
		want := "IMAP password not allowed in config files (use MAILRULES_IMAP_PASSWORD environment variable)"
		if err.Error() != want {
			t.Fatalf("AC2 FAIL: wrong error message: %v", err)
		}
	})

	t.Run("AC3: password in environment is not mistaken for a config file secret", func(t *testing.T) {
		t.Setenv(PasswordEnv, "from-env")
		path := writeConfig(t, "config.json", `{"imap": {"host": "imap.example.com"}}`)

		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("AC3 FAIL: LoadConfig error: %v", err)
		}
		if cfg.IMAP.Host != "imap.example.com" {
			t.Fatalf("AC3 FAIL: expected host from JSON config, got %s", cfg.IMAP.Host)
		}
	})
}
