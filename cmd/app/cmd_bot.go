// File: cmd/app/cmd_bot.go
package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"fincas-assistant/internal/application"
	"fincas-assistant/internal/config"
	tele "fincas-assistant/internal/infra/adapters/telegram"
	pg "fincas-assistant/internal/infra/db/postgres"
	infrahttp "fincas-assistant/internal/infra/http"
	"fincas-assistant/internal/infra/i18n"
	"fincas-assistant/internal/infra/logging"
	"fincas-assistant/internal/infra/metrics"
	"fincas-assistant/internal/infra/sched"
	"fincas-assistant/internal/infra/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot behind a Telegram webhook",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBot(cmd.Context(), "webhook")
	},
}

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Run the bot with long polling",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBot(cmd.Context(), "polling")
	},
}

// metricsPorts lists the /metrics listeners of a bot process. Polling
// deployments also answer on the indexer port, where /reindex runs report.
func metricsPorts(c *config.Config, mode string) []int {
	ports := []int{c.Metrics.Port}
	if (mode == "polling" || c.Indexer.Interval > 0) && c.Indexer.MetricsPort != c.Metrics.Port {
		ports = append(ports, c.Indexer.MetricsPort)
	}
	return ports
}

func runBot(parent context.Context, mode string) error {
	cfg.Bot.Mode = mode
	if err := cfg.Validate(true); err != nil {
		return err
	}
	ctx, stop := signalContext(parent)
	defer stop()

	metrics.SetBuildInfo(version, commit, mode)
	log := logging.Component(logger, "bot")

	d, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	aiSvc, err := buildAI(ctx, cfg.AI)
	if err != nil {
		return err
	}
	auth, err := d.auth()
	if err != nil {
		return err
	}
	tr, err := i18n.Load(cfg.Bot.Language)
	if err != nil {
		return err
	}
	indexer := d.indexer(aiSvc)

	facade := application.NewBotFacade(auth, d.assistant(aiSvc), indexer, d.sessions, nil, tr, logging.Component(logger, "facade"))
	facade.MaxQuestionLength = cfg.RAG.MaxQuestionLength

	pool := worker.NewPool(cfg.Bot.Workers, cfg.Bot.Workers*16, logging.Component(logger, "worker"))
	bot, err := tele.NewRealTelegramBotAdapter(&cfg.Bot, facade, tr, d.limiter, pool, logging.Component(logger, "telegram"))
	if err != nil {
		return err
	}
	facade.Notifier = bot

	pool.Start(ctx)
	defer pool.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pg.ReportPoolStats(gctx, d.pool, poolStatsEvery)
		return nil
	})
	for _, port := range metricsPorts(cfg, mode) {
		g.Go(func() error {
			return infrahttp.NewMetricsServer(port, logger).Run(gctx)
		})
	}
	if cfg.Indexer.Interval > 0 {
		g.Go(func() error {
			return ignoreCanceled(sched.NewIndexWorker(cfg.Indexer.Interval, indexer, logging.Component(logger, "index_worker")).Run(gctx))
		})
	}

	switch mode {
	case "webhook":
		srv := infrahttp.NewServer(infrahttp.Options{
			Port:         cfg.Bot.Port,
			WebhookPath:  bot.WebhookPath(),
			Webhook:      bot.WebhookHandler(),
			Checkers:     d.checkers,
			ServeMetrics: true,
		}, logger)
		g.Go(func() error { return srv.Run(gctx) })
		g.Go(func() error {
			setCtx, cancel := context.WithTimeout(gctx, 30*time.Second)
			defer cancel()
			return bot.SetWebhook(setCtx)
		})
	default:
		g.Go(func() error { return ignoreCanceled(bot.StartPolling(gctx)) })
	}

	menuCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := bot.SetMenuCommands(menuCtx); err != nil {
		log.Warn().Err(err).Msg("set menu commands")
	}
	cancel()

	log.Info().Str("mode", mode).Str("version", version).Msg("bot started")
	err = g.Wait()
	log.Info().Err(err).Msg("bot stopped")
	return err
}
