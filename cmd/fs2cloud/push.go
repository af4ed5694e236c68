package main

import (
	"context"

	"github.com/kenneth/fs2cloud/internal/metrics"
	"github.com/kenneth/fs2cloud/internal/pusher"
	"github.com/kenneth/fs2cloud/internal/workerpool"
	"github.com/spf13/cobra"
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upload every pending file to the configured store",
	Long:  "Read, encrypt and upload every Pending chunk recorded by a prior crawl, then every Pending aggregate archive. Safe to re-run after a partial failure: only Pending rows are retried.",
	RunE:  runPush,
}

func runPush(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireRootAndPGP(); err != nil {
		return err
	}
	watchConfigChanges(ctx)

	shutdownTracing, err := initTracing(ctx, cfg, "fs2cloud-push")
	if err != nil {
		return err
	}
	defer shutdownTracing(ctx)

	cat, err := openCatalog(cfg)
	if err != nil {
		return err
	}
	defer cat.Close()

	encryptor, closeEncryptor, err := buildEncryptor(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeEncryptor(ctx)

	m := metrics.NewMetrics()
	logHardwareInfo(cfg, m)

	st, err := buildStore(cfg, encryptor, m)
	if err != nil {
		return err
	}

	if cfg.Metrics.Addr != "" {
		m.StartSystemMetricsCollector()
		adminShutdown := runAdminServer(ctx, cfg, m, cat.Ping)
		defer adminShutdown()
	}

	aud, err := buildAudit(cfg)
	if err != nil {
		return err
	}
	if aud != nil {
		defer aud.Close()
	}

	collector := metrics.NewCollector("push", logger)
	defer collector.Close()

	pool := workerpool.New(cfg.Workers, cfg.QueueSize, logger)

	push := pusher.New(cat, cfg.Root, st, pool, collector, m, aud, logger)
	runErr := push.Run(ctx)
	pool.Close()

	if runErr != nil {
		return runErr
	}
	logger.Info("push complete")
	return nil
}
