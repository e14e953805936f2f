package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/solatis/mailrules/internal/core/config"
	"github.com/solatis/mailrules/internal/core/db"
	"github.com/solatis/mailrules/internal/core/logging"
	"github.com/spf13/cobra"
)

const Version = "0.1.0"

var (
	configFile string
	dbURL      string
	logLevel   string
	logFormat  string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:   "mailrules",
	Short: "Rule-based inbox processing",
	Long: `mailrules fetches messages from an IMAP inbox into a local store and applies
user-defined rules (conditions on sender, subject, body and receive date) that
move messages between folders and mark them read or unread.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadEnvFiles(envFile)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml, toml or json)")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "database connection URL (sqlite://path or postgres://...)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (json, text)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
}

// Execute runs the root command and prints the error, if any, to stderr.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

// runtime is the shared state every subcommand builds first.
type runtime struct {
	cfg *config.Config
	log zerolog.Logger
}

// setup loads configuration, applies global flag overrides and builds the
// logger. Logs go to stderr; stdout carries command output.
func setup(cmd *cobra.Command) (*runtime, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dbURL != "" {
		cfg.StoreURL = dbURL
	}

	log, err := logging.New(cmd.ErrOrStderr(), logLevel, logFormat)
	if err != nil {
		return nil, err
	}
	return &runtime{cfg: cfg, log: log}, nil
}

// openStore opens the configured database and wraps it in a Store.
// The returned close function closes the database.
func (rt *runtime) openStore(ctx context.Context) (*db.Store, func(), error) {
	database, err := db.Open(ctx, rt.cfg.StoreURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	statuses, err := db.MigrateStatus(ctx, database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to check migrations: %w", err)
	}
	for _, s := range statuses {
		if !s.Applied {
			database.Close()
			return nil, nil, fmt.Errorf("migration %s not applied - run 'mailrules migrate' first", s.ID)
		}
	}

	store, err := db.NewStore(database, rt.log)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to load queries: %w", err)
	}
	return store, func() { database.Close() }, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
