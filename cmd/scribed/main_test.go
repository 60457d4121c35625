package main

import (
	"context"
	"path/filepath"
	"testing"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/modelcache"
)

func TestBuildStagesWiresFullPipeline(t *testing.T) {
	cfg := config.Default()
	base := t.TempDir()
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.ResultsDir = filepath.Join(base, "results")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.ModelCache.Dir = filepath.Join(base, "models")

	logger := logging.NewNop()
	models := modelcache.NewManager(&cfg, logger)
	set := buildStages(&cfg, nil, models, nil, logger)

	if set.Fetcher == nil || set.Converter == nil || set.Transcriber == nil || set.Exporter == nil {
		t.Fatalf("expected all four stages to be wired, got %+v", set)
	}
}

func TestBuildObjectStoreDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Enabled = false

	if store := buildObjectStore(context.Background(), &cfg, logging.NewNop()); store != nil {
		t.Fatalf("expected nil object store when storage disabled, got %T", store)
	}
	if store := buildObjectStore(context.Background(), nil, logging.NewNop()); store != nil {
		t.Fatalf("expected nil object store for nil config, got %T", store)
	}
}

func TestBuildSocketPath(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "logs")

	expected := filepath.Join(cfg.Paths.LogDir, "scribe.sock")
	if got := buildSocketPath(&cfg); got != expected {
		t.Fatalf("expected socket path %q, got %q", expected, got)
	}

	if got := buildSocketPath(nil); got != filepath.Join("", "scribe.sock") {
		t.Fatalf("unexpected default socket path %q", got)
	}
}
