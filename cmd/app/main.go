// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"fincas-assistant/internal/config"
	"fincas-assistant/internal/infra/logging"
)

// Set at build time with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

var (
	configPath string
	devMode    bool

	cfg    *config.Config
	logger *zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "app",
	Short: "Property management assistant for Telegram",
	Long: `app runs the Telegram assistant that answers owners' questions with
documents from the property management database, and the indexer that keeps
their embeddings up to date.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.LoadConfig(configPath, devMode)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		logger = logging.New(cfg.Log, cfg.IsDevelopment())
		logger.Debug().Str("command", cmd.Name()).Str("version", version).Msg("config loaded")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config file (optional)")
	rootCmd.PersistentFlags().BoolVar(&devMode, "dev", false, "development mode: console logs, relaxed secrets")
	rootCmd.Version = version + " (" + commit + ")"

	rootCmd.AddCommand(serveCmd, pollCmd, indexCmd, askCmd, migrateCmd, whoisCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// ignoreCanceled treats a shutdown-triggered cancellation as a clean exit.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
