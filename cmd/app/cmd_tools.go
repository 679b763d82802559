// File: cmd/app/cmd_tools.go
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	pg "fincas-assistant/internal/infra/db/postgres"
	"fincas-assistant/internal/infra/logging"
	"fincas-assistant/internal/usecase"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one question from the command line",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(false); err != nil {
			return err
		}
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		d, err := buildDeps(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer d.Close()
		aiSvc, err := buildAI(ctx, cfg.AI)
		if err != nil {
			return err
		}
		answer, err := d.assistant(aiSvc).Answer(ctx, strings.Join(args, " "), "cli")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), answer)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := pg.Migrate(cfg.Database.URL)
		if err != nil {
			return err
		}
		logger.Info().Uint("version", v).Msg("database migrated")
		return nil
	},
}

var whoisCmd = &cobra.Command{
	Use:   "whois <phone>",
	Short: "Look up a registered user by mobile phone",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		d, err := buildDeps(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer d.Close()

		u, err := usecase.NewUserUseCase(d.users, logging.Component(logger, "users")).IdentifyByPhone(ctx, args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(u)
	},
}
