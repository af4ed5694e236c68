package main

import (
	"context"

	"github.com/kenneth/fs2cloud/internal/planner"
	"github.com/spf13/cobra"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Walk the configured root and populate the catalog",
	Long:  "Walk the local root tree, classifying each file as chunked or aggregated, and record the result in the catalog. Safe to re-run: unchanged files produce no new rows.",
	RunE:  runCrawl,
}

func runCrawl(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireRootAndPGP(); err != nil {
		return err
	}
	watchConfigChanges(ctx)

	cat, err := openCatalog(cfg)
	if err != nil {
		return err
	}
	defer cat.Close()

	p := planner.New(cat, planner.Config{
		ChunkSize:        cfg.Chunks.Size,
		AggregateMinSize: cfg.Aggregate.MinSize,
		AggregateSize:    cfg.Aggregate.Size,
		Ignore:           cfg.Ignore,
	}, logger)

	if err := p.Crawl(cfg.Root); err != nil {
		return err
	}
	logger.WithField("root", cfg.Root).Info("crawl complete")
	return nil
}
