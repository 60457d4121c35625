// Package fetch stages job source media into the local staging directory.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/media/ffprobe"
	"scribe/internal/queue"
	"scribe/internal/services"
	"scribe/internal/stage"
	s3storage "scribe/internal/storage/s3"
)

type mediaProber func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Fetcher downloads S3 sources and validates local ones before conversion.
type Fetcher struct {
	cfg     *config.Config
	store   *queue.Store
	objects s3storage.ObjectStore
	logger  *slog.Logger
	probe   mediaProber
}

// NewFetcher constructs the fetch stage. objects may be nil when S3 storage
// is not configured; S3 jobs then fail preparation with a configuration error.
func NewFetcher(cfg *config.Config, store *queue.Store, objects s3storage.ObjectStore, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		cfg:     cfg,
		store:   store,
		objects: objects,
		logger:  logging.NewComponentLogger(logger, "fetcher"),
		probe:   ffprobe.Inspect,
	}
}

// WithProber overrides media inspection. Used by tests.
func (f *Fetcher) WithProber(probe mediaProber) {
	if probe != nil {
		f.probe = probe
	}
}

// Prepare validates the job source and primes progress fields.
func (f *Fetcher) Prepare(ctx context.Context, job *queue.Job) error {
	if f == nil || f.cfg == nil || f.store == nil {
		return services.Wrap(services.ErrConfiguration, "fetch", "prepare", "Fetch stage is not configured", nil)
	}
	if job == nil {
		return services.Wrap(services.ErrValidation, "fetch", "prepare", "Queue job is nil", nil)
	}

	switch job.Origin {
	case queue.OriginS3:
		if strings.TrimSpace(job.SourceKey) == "" {
			return services.Wrap(services.ErrValidation, "fetch", "prepare", "S3 job has no source key", nil)
		}
		if f.objects == nil {
			return services.Wrap(services.ErrConfiguration, "fetch", "prepare", "S3 storage is not configured", nil)
		}
	case queue.OriginLocal:
		if strings.TrimSpace(job.SourcePath) == "" {
			return services.Wrap(services.ErrValidation, "fetch", "prepare", "Local job has no source path", nil)
		}
	default:
		return services.Wrap(services.ErrValidation, "fetch", "prepare", fmt.Sprintf("Unknown job origin %q", job.Origin), nil)
	}

	job.InitProgress("Fetching", "Staging source media")
	return nil
}

// Execute stages the source file for conversion.
func (f *Fetcher) Execute(ctx context.Context, job *queue.Job) error {
	if job == nil {
		return services.Wrap(services.ErrValidation, "fetch", "execute", "Queue job is nil", nil)
	}

	switch job.Origin {
	case queue.OriginS3:
		return f.fetchFromS3(ctx, job)
	case queue.OriginLocal:
		return f.validateLocal(ctx, job)
	default:
		return services.Wrap(services.ErrValidation, "fetch", "execute", fmt.Sprintf("Unknown job origin %q", job.Origin), nil)
	}
}

func (f *Fetcher) fetchFromS3(ctx context.Context, job *queue.Job) error {
	if f.objects == nil {
		return services.Wrap(services.ErrConfiguration, "fetch", "download", "S3 storage is not configured", nil)
	}

	exists, err := f.objects.Exists(ctx, job.SourceKey)
	if err != nil {
		return services.Wrap(services.ErrTransient, "fetch", "head", "Failed to check source object", err)
	}
	if !exists {
		return services.Wrap(services.ErrNotFound, "fetch", "head", fmt.Sprintf("Object %q not found in bucket", job.SourceKey), nil)
	}

	// Staged under a random name, so repeated fetches of the same key never
	// collide inside a reused staging root.
	destDir := filepath.Join(job.StagingRoot(f.cfg.Paths.StagingDir), "source")
	dest := filepath.Join(destDir, uuid.NewString()+filepath.Ext(job.SourceKey))
	job.SetProgress("Fetching", fmt.Sprintf("Downloading %s", job.SourceKey), 10)
	if err := f.store.Update(ctx, job); err != nil {
		return services.Wrap(services.ErrTransient, "fetch", "persist progress", "Failed to persist fetch progress", err)
	}

	if err := f.objects.Download(ctx, job.SourceKey, dest); err != nil {
		return services.Wrap(services.ErrTransient, "fetch", "download", fmt.Sprintf("Failed to download %q", job.SourceKey), err)
	}

	info, err := os.Stat(dest)
	if err != nil {
		return services.Wrap(services.ErrTransient, "fetch", "verify", "Downloaded file missing", err)
	}
	if info.Size() == 0 {
		return services.Wrap(services.ErrValidation, "fetch", "verify", "Downloaded file is empty", nil)
	}

	job.SourcePath = dest
	job.SetProgressComplete("Fetching", "Source media staged")
	f.logger.Info("source downloaded",
		logging.String(logging.FieldEventType, "fetch_complete"),
		logging.String("source_key", job.SourceKey),
		logging.Int64("bytes", info.Size()),
	)
	return nil
}

func (f *Fetcher) validateLocal(ctx context.Context, job *queue.Job) error {
	info, err := os.Stat(job.SourcePath)
	if err != nil {
		if os.IsNotExist(err) {
			return services.Wrap(services.ErrNotFound, "fetch", "stat", fmt.Sprintf("Source file %q not found", job.SourcePath), nil)
		}
		return services.Wrap(services.ErrTransient, "fetch", "stat", "Failed to inspect source file", err)
	}
	if info.IsDir() {
		return services.Wrap(services.ErrValidation, "fetch", "stat", fmt.Sprintf("Source path %q is a directory", job.SourcePath), nil)
	}
	if info.Size() == 0 {
		return services.Wrap(services.ErrValidation, "fetch", "stat", "Source file is empty", nil)
	}

	probe, err := f.probe(ctx, f.cfg.FFprobeBinary(), job.SourcePath)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "fetch", "probe", "ffprobe failed to inspect source", err)
	}
	if probe.AudioStreamCount() == 0 {
		return services.Wrap(services.ErrValidation, "fetch", "probe", "Source contains no audio stream", nil)
	}

	job.SetProgressComplete("Fetching", "Source media validated")
	return nil
}

// HealthCheck reports readiness for the fetch stage.
func (f *Fetcher) HealthCheck(ctx context.Context) stage.Health {
	const name = "fetcher"
	if f == nil || f.cfg == nil || f.store == nil {
		return stage.Unhealthy(name, "stage not configured")
	}
	if f.cfg.Storage.Enabled && f.objects == nil {
		return stage.Unhealthy(name, "s3 storage enabled but client unavailable")
	}
	return stage.Healthy(name)
}
