package main

import (
	"context"

	"github.com/kenneth/fs2cloud/internal/fsview"
	"github.com/kenneth/fs2cloud/internal/metrics"
	"github.com/spf13/cobra"
)

var mountPoint string

var mountCmd = &cobra.Command{
	Use:   "mount",
	Short: "Mount the catalog as a read-only FUSE filesystem",
	Long:  "Serve the catalog at --mountpoint: directory listing, attributes and random-access reads through the underlying store, including aggregate member extraction. Blocks until unmounted.",
	RunE:  runMount,
}

func init() {
	mountCmd.Flags().StringVar(&mountPoint, "mountpoint", "", "local directory to mount at (required)")
	mountCmd.MarkFlagRequired("mountpoint")
}

func runMount(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	watchConfigChanges(ctx)

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

	var m *metrics.Metrics
	if cfg.Metrics.Addr != "" {
		m = metrics.NewMetrics()
	}

	st, err := buildStore(cfg, encryptor, m)
	if err != nil {
		return err
	}

	if m != nil {
		m.StartSystemMetricsCollector()
		shutdown := runAdminServer(ctx, cfg, m, cat.Ping)
		defer shutdown()
	}

	view := fsview.New(cat, st, logger)
	logger.WithField("mountpoint", mountPoint).Info("mounting")
	return view.Mount(mountPoint)
}
