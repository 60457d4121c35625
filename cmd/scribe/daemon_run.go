package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"scribe/internal/config"
	"scribe/internal/daemon"
	"scribe/internal/export"
	"scribe/internal/fetch"
	"scribe/internal/ipc"
	"scribe/internal/logging"
	"scribe/internal/modelcache"
	"scribe/internal/preflight"
	"scribe/internal/queue"
	s3storage "scribe/internal/storage/s3"
	"scribe/internal/transcode"
	"scribe/internal/transcription"
	"scribe/internal/workflow"
)

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(cmd.Context(), ctx)
		},
	}
}

// runDaemonProcess wires the full pipeline the same way scribed does and
// blocks until interrupted.
func runDaemonProcess(cmdCtx context.Context, ctx *commandContext) error {
	if ctx == nil {
		return fmt.Errorf("command context is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	for _, result := range preflight.RunAll(signalCtx, cfg) {
		if result.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail))
			continue
		}
		logger.Warn("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail))
	}

	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open queue store: %w", err)
	}
	defer store.Close()

	// Jobs left mid-stage by a previous crash restart at their stage boundary.
	if reset, err := store.ResetStuckProcessing(signalCtx); err != nil {
		logger.Warn("reset stuck jobs", logging.Error(err))
	} else if reset > 0 {
		logger.Info("reset stuck jobs from previous run", logging.Int64("count", reset))
	}

	models := modelcache.NewManager(cfg, logger)
	objects := buildObjectStore(signalCtx, cfg, logger)

	workflowManager := workflow.NewManager(cfg, store, logger)
	workflowManager.ConfigureStages(buildStages(cfg, store, models, objects, logger))

	d, err := daemon.New(cfg, store, logger, workflowManager, models)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	socketPath := ctx.socketPath()
	if socketPath == "" {
		socketPath = filepath.Join(cfg.Paths.LogDir, ipc.SocketFileName)
	}
	ipcServer, err := ipc.NewServer(signalCtx, socketPath, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Warn("daemon start", logging.Error(err))
	}

	<-signalCtx.Done()
	logger.Info("scribe daemon shutting down")
	return nil
}

func buildStages(cfg *config.Config, store *queue.Store, models *modelcache.Manager, objects s3storage.ObjectStore, logger *slog.Logger) workflow.StageSet {
	return workflow.StageSet{
		Fetcher:     fetch.NewFetcher(cfg, store, objects, logger),
		Converter:   transcode.NewConverter(cfg, store, logger),
		Transcriber: transcription.NewTranscriber(cfg, store, models, logger),
		Exporter:    export.NewExporter(cfg, store, objects, logger),
	}
}

func buildObjectStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) s3storage.ObjectStore {
	if cfg == nil || !cfg.Storage.Enabled {
		return nil
	}
	client, err := s3storage.NewClient(ctx, cfg)
	if err != nil {
		logger.Error("object storage unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "Check the [storage] section and AWS credentials"))
		return nil
	}
	return client
}
