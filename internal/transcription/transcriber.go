// Package transcription runs WhisperX over staged audio and records the
// transcript artifacts on the job.
package transcription

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"scribe/internal/config"
	"scribe/internal/language"
	"scribe/internal/logging"
	"scribe/internal/modelcache"
	"scribe/internal/queue"
	"scribe/internal/services"
	"scribe/internal/services/whisperx"
	"scribe/internal/stage"
)

// modelEnsurer is the slice of the model cache manager this stage needs.
type modelEnsurer interface {
	Ensure(ctx context.Context, model string) error
	Path(model string) string
}

// transcribeService is the slice of the WhisperX service this stage needs.
type transcribeService interface {
	Transcribe(ctx context.Context, source, outputDir string, opts whisperx.Options) (whisperx.Result, error)
}

// Transcriber invokes WhisperX for each converted job.
type Transcriber struct {
	cfg        *config.Config
	store      *queue.Store
	models     modelEnsurer
	logger     *slog.Logger
	newService func(whisperx.Config) transcribeService
}

// NewTranscriber constructs the transcription stage.
func NewTranscriber(cfg *config.Config, store *queue.Store, models *modelcache.Manager, logger *slog.Logger) *Transcriber {
	return &Transcriber{
		cfg:    cfg,
		store:  store,
		models: models,
		logger: logging.NewComponentLogger(logger, "transcriber"),
		newService: func(wxCfg whisperx.Config) transcribeService {
			return whisperx.NewService(wxCfg)
		},
	}
}

// WithServiceFactory overrides WhisperX service construction. Used by tests.
func (t *Transcriber) WithServiceFactory(factory func(whisperx.Config) transcribeService) {
	if factory != nil {
		t.newService = factory
	}
}

// WithModelEnsurer overrides model cache access. Used by tests.
func (t *Transcriber) WithModelEnsurer(models modelEnsurer) {
	if models != nil {
		t.models = models
	}
}

// Prepare confirms the converted audio exists and primes progress fields.
func (t *Transcriber) Prepare(ctx context.Context, job *queue.Job) error {
	if t == nil || t.cfg == nil || t.store == nil || t.models == nil {
		return services.Wrap(services.ErrConfiguration, "transcription", "prepare", "Transcription stage is not configured", nil)
	}
	if job == nil {
		return services.Wrap(services.ErrValidation, "transcription", "prepare", "Queue job is nil", nil)
	}
	if strings.TrimSpace(job.AudioPath) == "" {
		return services.Wrap(services.ErrValidation, "transcription", "prepare", "Job has no converted audio path", nil)
	}
	if _, err := os.Stat(job.AudioPath); err != nil {
		return services.Wrap(services.ErrValidation, "transcription", "prepare", fmt.Sprintf("Converted audio %q is unavailable", job.AudioPath), err)
	}

	job.InitProgress("Transcribing", "Preparing WhisperX run")
	return nil
}

// Execute ensures the model snapshot is cached and runs WhisperX.
func (t *Transcriber) Execute(ctx context.Context, job *queue.Job) error {
	if job == nil {
		return services.Wrap(services.ErrValidation, "transcription", "execute", "Queue job is nil", nil)
	}

	model := t.resolveModel(job)
	if err := t.models.Ensure(ctx, model); err != nil {
		return err
	}

	lang := t.resolveLanguage(job)
	outputDir := filepath.Join(job.StagingRoot(t.cfg.Paths.StagingDir), "transcript")

	job.SetProgress("Transcribing", fmt.Sprintf("Running WhisperX (%s)", model), 20)
	if err := t.store.Update(ctx, job); err != nil {
		return services.Wrap(services.ErrTransient, "transcription", "persist progress", "Failed to persist transcription progress", err)
	}

	svc := t.newService(whisperx.Config{
		Model:       model,
		ComputeType: t.cfg.Transcription.ComputeType,
		BatchSize:   t.cfg.Transcription.BatchSize,
		CUDAEnabled: t.cfg.Transcription.CUDAEnabled,
		VADMethod:   t.cfg.Transcription.VADMethod,
		HFToken:     t.cfg.Transcription.HFToken,
		ModelDir:    t.models.Path(model),
		HubCacheDir: t.cfg.ModelCache.HubCacheDir,
	})

	result, err := svc.Transcribe(ctx, job.AudioPath, outputDir, whisperx.Options{
		Language: lang,
		Align:    job.Align,
	})
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "transcription", "whisperx", "WhisperX transcription failed", err)
	}

	job.Model = model
	job.TranscriptJSON = result.JSONPath
	job.TranscriptSRT = result.SRTPath
	job.DetectedLanguage = result.DetectedLanguage
	job.SetProgressComplete("Transcribing", "Transcript ready")
	t.logger.Info("transcription finished",
		logging.String(logging.FieldEventType, "transcribe_complete"),
		logging.String("model", model),
		logging.String("detected_language", result.DetectedLanguage),
		logging.Int("text_chars", len(result.Text)),
	)
	return nil
}

// resolveModel picks the per-job model override, the configured default, or
// the WhisperX default, in that order.
func (t *Transcriber) resolveModel(job *queue.Job) string {
	if model := strings.TrimSpace(job.Model); model != "" {
		return model
	}
	if model := strings.TrimSpace(t.cfg.Transcription.Model); model != "" {
		return model
	}
	return whisperx.DefaultModel
}

// resolveLanguage picks the per-job language hint or the configured default.
// Empty and "-" both mean auto-detect.
func (t *Transcriber) resolveLanguage(job *queue.Job) string {
	if lang := language.Normalize(job.Language); lang != "" {
		return lang
	}
	return language.Normalize(t.cfg.Transcription.Language)
}

// HealthCheck reports readiness for the transcription stage.
func (t *Transcriber) HealthCheck(ctx context.Context) stage.Health {
	const name = "transcriber"
	if t == nil || t.cfg == nil || t.store == nil || t.models == nil {
		return stage.Unhealthy(name, "stage not configured")
	}
	if _, err := exec.LookPath(t.cfg.UVXBinary()); err != nil {
		return stage.Unhealthy(name, "uvx not found in PATH")
	}
	return stage.Healthy(name)
}
