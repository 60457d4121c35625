package main

import (
	"context"
	"log/slog"
	"path/filepath"

	"scribe/internal/config"
	"scribe/internal/export"
	"scribe/internal/fetch"
	"scribe/internal/ipc"
	"scribe/internal/logging"
	"scribe/internal/modelcache"
	"scribe/internal/queue"
	s3storage "scribe/internal/storage/s3"
	"scribe/internal/transcode"
	"scribe/internal/transcription"
	"scribe/internal/workflow"
)

// buildStages assembles the pipeline handlers. The object store is nil when
// storage is disabled; fetch and export degrade to local-only behavior.
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

func buildSocketPath(cfg *config.Config) string {
	if cfg == nil {
		return filepath.Join("", ipc.SocketFileName)
	}
	return filepath.Join(cfg.Paths.LogDir, ipc.SocketFileName)
}
