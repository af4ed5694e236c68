package main

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/kenneth/fs2cloud/internal/adminserver"
	"github.com/kenneth/fs2cloud/internal/audit"
	"github.com/kenneth/fs2cloud/internal/catalog"
	"github.com/kenneth/fs2cloud/internal/config"
	"github.com/kenneth/fs2cloud/internal/crypto"
	"github.com/kenneth/fs2cloud/internal/metrics"
	"github.com/kenneth/fs2cloud/internal/store"
	"github.com/kenneth/fs2cloud/internal/tracing"
)

// loadConfig reads and validates the configuration at cfgPath, the
// --config flag every subcommand shares.
func loadConfig() (*config.Config, error) {
	if cfgPath == "" {
		return nil, fmt.Errorf("config error: --config is required")
	}
	return config.Load(cfgPath)
}

// watchConfigChanges logs (but does not hot-apply) configuration file
// writes when --watch-config is set; crawl/push/mount run long enough for
// an operator to notice a change was picked up on the next restart.
func watchConfigChanges(ctx context.Context) {
	if !watchFlag || cfgPath == "" {
		return
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.WithError(err).Warn("watch-config: failed to start watcher")
		return
	}
	if err := watcher.Add(cfgPath); err != nil {
		logger.WithError(err).Warn("watch-config: failed to watch file")
		watcher.Close()
		return
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					logger.WithField("path", cfgPath).Warn("configuration file changed; restart to apply")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.WithError(err).Warn("watch-config: watcher error")
			}
		}
	}()
}

// openCatalog opens the sqlite-backed catalog named by cfg.Database.
func openCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	return catalog.Open(cfg.Database, logger)
}

// buildEncryptor constructs the PGP Encryptor (optionally KMIP-wrapped)
// described by cfg.PGP, returning its closer.
func buildEncryptor(ctx context.Context, cfg *config.Config) (crypto.Encryptor, func(context.Context) error, error) {
	return crypto.Build(ctx, cfg.PGP)
}

// buildStore assembles the backend/encrypt/cache store stack described by
// cfg.Store and cfg.Cache. m may be nil for commands without a metrics
// surface.
func buildStore(cfg *config.Config, encryptor crypto.Encryptor, m *metrics.Metrics) (store.Store, error) {
	return store.Build(cfg.Store, cfg.Cache, encryptor, m, logger)
}

// buildAudit constructs the optional audit trail described by cfg.Audit;
// it returns nil when auditing is disabled.
func buildAudit(cfg *config.Config) (audit.Logger, error) {
	return audit.NewLoggerFromConfig(cfg.Audit)
}

// logHardwareInfo reports the AES acceleration state once at startup and
// mirrors it onto the metrics surface.
func logHardwareInfo(cfg *config.Config, m *metrics.Metrics) {
	info := crypto.GetAccelerationInfo(cfg.Hardware)
	logger.WithField("arch", info.Architecture).WithField("aes_hardware", info.Supported).
		WithField("active", info.Active).Debug("hardware acceleration")
	if m != nil {
		m.SetHardwareAccelerationStatus("aes", info.Active)
	}
}

// initTracing installs the configured span exporter and returns its
// shutdown func.
func initTracing(ctx context.Context, cfg *config.Config, serviceName string) (tracing.Shutdown, error) {
	return tracing.Init(ctx, tracing.Config{Exporter: cfg.Tracing.Exporter, Endpoint: cfg.Tracing.Endpoint}, serviceName)
}

// runAdminServer starts the optional /healthz, /readyz and /metrics server
// in the background and returns a func that shuts it down.
func runAdminServer(ctx context.Context, cfg *config.Config, m *metrics.Metrics, readyCheck func(context.Context) error) func() {
	srvCtx, cancel := context.WithCancel(ctx)
	srv := adminserver.New(cfg.Metrics.Addr, m, readyCheck, logger)
	go func() {
		if err := srv.Run(srvCtx); err != nil {
			logger.WithError(err).Error("admin server exited")
		}
	}()
	return cancel
}
