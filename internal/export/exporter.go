// Package export assembles the final result payload for completed
// transcriptions and cleans up per-job staging files.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"scribe/internal/config"
	"scribe/internal/fileutil"
	"scribe/internal/language"
	"scribe/internal/logging"
	"scribe/internal/queue"
	"scribe/internal/services"
	"scribe/internal/services/whisperx"
	"scribe/internal/stage"
	s3storage "scribe/internal/storage/s3"
)

// ResultFileName is the payload file written into each job's results directory.
const ResultFileName = "result.json"

// TranscriptFileName is the SRT copy kept alongside the result payload.
const TranscriptFileName = "transcript.srt"

// ResultPayload is the shape consumers receive for a finished job.
type ResultPayload struct {
	Text             string             `json:"text"`
	Segments         []whisperx.Segment `json:"segments"`
	DetectedLanguage string             `json:"detected_language"`
	UsedLanguage     string             `json:"used_language"`
	ModelUsed        string             `json:"model_used"`
	ComputeType      string             `json:"compute_type"`
	DeviceUsed       string             `json:"device_used"`
	ProcessedFile    string             `json:"processed_file"`
}

// Exporter persists result payloads and optionally uploads them to S3.
type Exporter struct {
	cfg     *config.Config
	store   *queue.Store
	objects s3storage.ObjectStore
	logger  *slog.Logger
}

// NewExporter constructs the export stage. objects may be nil when result
// upload is not configured.
func NewExporter(cfg *config.Config, store *queue.Store, objects s3storage.ObjectStore, logger *slog.Logger) *Exporter {
	return &Exporter{
		cfg:     cfg,
		store:   store,
		objects: objects,
		logger:  logging.NewComponentLogger(logger, "exporter"),
	}
}

// Prepare confirms the transcript exists and primes progress fields.
func (e *Exporter) Prepare(ctx context.Context, job *queue.Job) error {
	if e == nil || e.cfg == nil || e.store == nil {
		return services.Wrap(services.ErrConfiguration, "export", "prepare", "Export stage is not configured", nil)
	}
	if job == nil {
		return services.Wrap(services.ErrValidation, "export", "prepare", "Queue job is nil", nil)
	}
	if strings.TrimSpace(job.TranscriptJSON) == "" {
		return services.Wrap(services.ErrValidation, "export", "prepare", "Job has no transcript", nil)
	}
	if _, err := os.Stat(job.TranscriptJSON); err != nil {
		return services.Wrap(services.ErrValidation, "export", "prepare", fmt.Sprintf("Transcript %q is unavailable", job.TranscriptJSON), err)
	}
	if e.cfg.Storage.UploadResults && e.objects == nil {
		return services.Wrap(services.ErrConfiguration, "export", "prepare", "Result upload enabled but S3 storage is not configured", nil)
	}

	job.InitProgress("Exporting", "Assembling result payload")
	return nil
}

// Execute writes the result payload, uploads it when configured, and removes
// the job's staging directory.
func (e *Exporter) Execute(ctx context.Context, job *queue.Job) error {
	if job == nil {
		return services.Wrap(services.ErrValidation, "export", "execute", "Queue job is nil", nil)
	}

	payload, err := e.buildPayload(job)
	if err != nil {
		return err
	}

	resultDir := filepath.Join(e.cfg.Paths.ResultsDir, fmt.Sprintf("job-%d", job.ID))
	if err := os.MkdirAll(resultDir, 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "export", "mkdir", "Failed to create results directory", err)
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrValidation, "export", "encode", "Failed to encode result payload", err)
	}
	resultPath := filepath.Join(resultDir, ResultFileName)
	if err := os.WriteFile(resultPath, data, 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "export", "write", "Failed to write result payload", err)
	}

	srtPath := ""
	if strings.TrimSpace(job.TranscriptSRT) != "" {
		if _, err := os.Stat(job.TranscriptSRT); err == nil {
			srtPath = filepath.Join(resultDir, TranscriptFileName)
			if err := fileutil.CopyFile(job.TranscriptSRT, srtPath); err != nil {
				return services.Wrap(services.ErrTransient, "export", "copy srt", "Failed to copy transcript", err)
			}
		}
	}

	job.ResultPath = resultPath
	job.ResultJSON = string(data)
	job.SetProgress("Exporting", "Result written", 70)
	if err := e.store.Update(ctx, job); err != nil {
		return services.Wrap(services.ErrTransient, "export", "persist progress", "Failed to persist export progress", err)
	}

	if e.cfg.Storage.UploadResults {
		if err := e.uploadResults(ctx, job, resultPath, srtPath); err != nil {
			return err
		}
	}

	e.cleanupStaging(job)

	job.SetProgressComplete("Exporting", "Result exported")
	e.logger.Info("result exported",
		logging.String(logging.FieldEventType, "export_complete"),
		logging.String("result_path", resultPath),
		logging.String("detected_language", payload.DetectedLanguage),
		logging.Int("segments", len(payload.Segments)),
	)
	return nil
}

// buildPayload assembles the consumer-facing result from the transcript JSON
// and the job's recorded settings.
func (e *Exporter) buildPayload(job *queue.Job) (ResultPayload, error) {
	segments, err := whisperx.LoadSegments(job.TranscriptJSON)
	if err != nil {
		return ResultPayload{}, services.Wrap(services.ErrValidation, "export", "load transcript", "Failed to parse transcript JSON", err)
	}

	parts := make([]string, 0, len(segments))
	for _, segment := range segments {
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}

	// used_language reports the language transcription actually ran with.
	// In auto-detect mode that is the detected language; when the caller
	// pinned a language the detection field stays empty.
	used := language.Normalize(job.Language)
	if used == "" {
		used = language.Normalize(e.cfg.Transcription.Language)
	}
	detected := language.Normalize(job.DetectedLanguage)
	if used == "" {
		used = detected
		if used == "" {
			used = language.AutoDetect
		}
	} else {
		detected = ""
	}

	model := strings.TrimSpace(job.Model)
	if model == "" {
		model = e.cfg.Transcription.Model
	}

	computeType := e.cfg.Transcription.ComputeType
	if computeType == "" {
		computeType = whisperx.DefaultComputeType
	}
	device := whisperx.CPUDevice
	if e.cfg.Transcription.CUDAEnabled {
		device = whisperx.CUDADevice
	}

	return ResultPayload{
		Text:             strings.Join(parts, " "),
		Segments:         segments,
		DetectedLanguage: detected,
		UsedLanguage:     used,
		ModelUsed:        model,
		ComputeType:      computeType,
		DeviceUsed:       device,
		ProcessedFile:    job.SourceName(),
	}, nil
}

func (e *Exporter) uploadResults(ctx context.Context, job *queue.Job, resultPath, srtPath string) error {
	if e.objects == nil {
		return services.Wrap(services.ErrConfiguration, "export", "upload", "Result upload enabled but S3 storage is not configured", nil)
	}

	prefix := strings.Trim(e.cfg.Storage.ResultsPrefix, "/")
	base := fmt.Sprintf("job-%d", job.ID)
	resultKey := path.Join(prefix, base, ResultFileName)
	if err := e.objects.Upload(ctx, resultPath, resultKey); err != nil {
		return services.Wrap(services.ErrTransient, "export", "upload", fmt.Sprintf("Failed to upload %q", resultKey), err)
	}
	if srtPath != "" {
		srtKey := path.Join(prefix, base, TranscriptFileName)
		if err := e.objects.Upload(ctx, srtPath, srtKey); err != nil {
			return services.Wrap(services.ErrTransient, "export", "upload", fmt.Sprintf("Failed to upload %q", srtKey), err)
		}
	}
	return nil
}

// cleanupStaging removes the per-job staging directory. Best effort: a
// leftover staging tree never fails an otherwise exported job.
func (e *Exporter) cleanupStaging(job *queue.Job) {
	root := job.StagingRoot(e.cfg.Paths.StagingDir)
	if strings.TrimSpace(root) == "" || root == string(filepath.Separator) {
		return
	}
	if err := os.RemoveAll(root); err != nil {
		e.logger.Warn("failed to remove staging directory",
			logging.String("staging_root", root),
			logging.Error(err),
		)
	}
}

// HealthCheck reports readiness for the export stage.
func (e *Exporter) HealthCheck(ctx context.Context) stage.Health {
	const name = "exporter"
	if e == nil || e.cfg == nil || e.store == nil {
		return stage.Unhealthy(name, "stage not configured")
	}
	if e.cfg.Storage.UploadResults && e.objects == nil {
		return stage.Unhealthy(name, "result upload enabled but s3 client unavailable")
	}
	return stage.Healthy(name)
}
