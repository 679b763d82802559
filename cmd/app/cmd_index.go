// File: cmd/app/cmd_index.go
package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	pg "fincas-assistant/internal/infra/db/postgres"
	infrahttp "fincas-assistant/internal/infra/http"
	"fincas-assistant/internal/infra/logging"
	"fincas-assistant/internal/infra/metrics"
	"fincas-assistant/internal/infra/sched"
)

var (
	indexEvery   time.Duration
	indexMetrics bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Embed documents into the vector table",
	Long: `index loads every document, embeds the valid ones in batches and upserts
them into the embeddings table. With --every it keeps running and reindexes on
that interval.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(false); err != nil {
			return err
		}
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		metrics.SetBuildInfo(version, commit, "indexer")
		d, err := buildDeps(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer d.Close()
		aiSvc, err := buildAI(ctx, cfg.AI)
		if err != nil {
			return err
		}
		indexer := d.indexer(aiSvc)

		g, gctx := errgroup.WithContext(ctx)
		if indexMetrics {
			g.Go(func() error {
				return infrahttp.NewMetricsServer(cfg.Indexer.MetricsPort, logger).Run(gctx)
			})
			g.Go(func() error {
				pg.ReportPoolStats(gctx, d.pool, poolStatsEvery)
				return nil
			})
		}

		if indexEvery > 0 {
			g.Go(func() error {
				return ignoreCanceled(sched.NewIndexWorker(indexEvery, indexer, logging.Component(logger, "index_worker")).Run(gctx))
			})
			return g.Wait()
		}

		rep, runErr := indexer.Run(gctx)
		stop()
		if err := g.Wait(); err != nil && runErr == nil {
			runErr = err
		}
		if runErr != nil {
			return runErr
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	},
}

func init() {
	indexCmd.Flags().DurationVar(&indexEvery, "every", 0, "reindex on this interval instead of running once")
	indexCmd.Flags().BoolVar(&indexMetrics, "metrics", true, "serve /metrics on indexer.metrics_port while running")
}
