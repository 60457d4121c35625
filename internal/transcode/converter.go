// Package transcode converts staged source media into mono 16kHz WAV audio
// ready for transcription.
package transcode

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/media/ffprobe"
	"scribe/internal/queue"
	"scribe/internal/services"
	"scribe/internal/stage"
)

// AudioFileName is the staged audio artifact produced for each job.
const AudioFileName = "audio.wav"

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

type mediaProber func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Converter strips video and resamples the audio stream with ffmpeg.
type Converter struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger
	run    commandRunner
	probe  mediaProber
}

// NewConverter constructs the conversion stage.
func NewConverter(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Converter {
	return &Converter{
		cfg:    cfg,
		store:  store,
		logger: logging.NewComponentLogger(logger, "converter"),
		run:    runCommand,
		probe:  ffprobe.Inspect,
	}
}

// WithCommandRunner overrides process execution. Used by tests.
func (c *Converter) WithCommandRunner(run commandRunner) {
	if run != nil {
		c.run = run
	}
}

// WithProber overrides media inspection. Used by tests.
func (c *Converter) WithProber(probe mediaProber) {
	if probe != nil {
		c.probe = probe
	}
}

// Prepare confirms the staged source exists and primes progress fields.
func (c *Converter) Prepare(ctx context.Context, job *queue.Job) error {
	if c == nil || c.cfg == nil || c.store == nil {
		return services.Wrap(services.ErrConfiguration, "transcode", "prepare", "Conversion stage is not configured", nil)
	}
	if job == nil {
		return services.Wrap(services.ErrValidation, "transcode", "prepare", "Queue job is nil", nil)
	}
	if strings.TrimSpace(job.SourcePath) == "" {
		return services.Wrap(services.ErrValidation, "transcode", "prepare", "Job has no staged source path", nil)
	}
	if _, err := os.Stat(job.SourcePath); err != nil {
		return services.Wrap(services.ErrValidation, "transcode", "prepare", fmt.Sprintf("Staged source %q is unavailable", job.SourcePath), err)
	}

	job.InitProgress("Converting", "Preparing audio conversion")
	return nil
}

// Execute probes the source and converts its first audio stream to WAV.
func (c *Converter) Execute(ctx context.Context, job *queue.Job) error {
	if job == nil {
		return services.Wrap(services.ErrValidation, "transcode", "execute", "Queue job is nil", nil)
	}

	probe, err := c.probe(ctx, c.cfg.FFprobeBinary(), job.SourcePath)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "transcode", "probe", "ffprobe failed to inspect source", err)
	}
	audio, ok := probe.FirstAudioStream()
	if !ok {
		return services.Wrap(services.ErrValidation, "transcode", "probe", "Source contains no audio stream", nil)
	}

	if strings.EqualFold(filepath.Ext(job.SourcePath), ".wav") {
		job.AudioPath = job.SourcePath
		job.SetProgressComplete("Converting", "WAV source used as-is")
		c.logger.Info("wav source passed through",
			logging.String(logging.FieldEventType, "convert_passthrough"),
			logging.String("source", filepath.Base(job.SourcePath)),
		)
		return nil
	}

	dest := filepath.Join(job.StagingRoot(c.cfg.Paths.StagingDir), AudioFileName)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "transcode", "mkdir", "Failed to create staging directory", err)
	}

	job.SetProgress("Converting", fmt.Sprintf("Converting %s", filepath.Base(job.SourcePath)), 25)
	if err := c.store.Update(ctx, job); err != nil {
		return services.Wrap(services.ErrTransient, "transcode", "persist progress", "Failed to persist conversion progress", err)
	}

	args := buildConvertArgs(job.SourcePath, audio.Index, dest)
	if output, err := c.run(ctx, c.cfg.FFmpegBinary(), args...); err != nil {
		detail := strings.TrimSpace(string(output))
		if detail == "" {
			detail = err.Error()
		}
		return services.Wrap(services.ErrExternalTool, "transcode", "ffmpeg", fmt.Sprintf("Audio conversion failed: %s", detail), err)
	}

	info, err := os.Stat(dest)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "transcode", "verify", "Converted audio file missing", err)
	}
	if info.Size() == 0 {
		return services.Wrap(services.ErrExternalTool, "transcode", "verify", "Converted audio file is empty", nil)
	}

	job.AudioPath = dest
	job.SetProgressComplete("Converting", "Audio ready for transcription")
	c.logger.Info("audio converted",
		logging.String(logging.FieldEventType, "convert_complete"),
		logging.String("source", filepath.Base(job.SourcePath)),
		logging.Float64("duration_seconds", probe.DurationSeconds()),
		logging.Int64("bytes", info.Size()),
	)
	return nil
}

// buildConvertArgs produces the ffmpeg invocation that strips video and
// subtitle streams and resamples the mapped audio track to mono 16kHz
// 24-bit PCM.
func buildConvertArgs(source string, audioIndex int, dest string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-map", fmt.Sprintf("0:%d", audioIndex),
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s24le",
		dest,
	}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.CombinedOutput()
}

// ExtractAudio probes source and converts its first audio stream into a mono
// 16kHz WAV at dest. Callers outside the queue pipeline use it for one-shot
// conversions.
func ExtractAudio(ctx context.Context, cfg *config.Config, source, dest string) error {
	if cfg == nil {
		return services.Wrap(services.ErrConfiguration, "transcode", "extract", "Configuration is required", nil)
	}

	probe, err := ffprobe.Inspect(ctx, cfg.FFprobeBinary(), source)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "transcode", "probe", "ffprobe failed to inspect source", err)
	}
	audio, ok := probe.FirstAudioStream()
	if !ok {
		return services.Wrap(services.ErrValidation, "transcode", "probe", "Source contains no audio stream", nil)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "transcode", "mkdir", "Failed to create output directory", err)
	}

	args := buildConvertArgs(source, audio.Index, dest)
	if output, err := runCommand(ctx, cfg.FFmpegBinary(), args...); err != nil {
		detail := strings.TrimSpace(string(output))
		if detail == "" {
			detail = err.Error()
		}
		return services.Wrap(services.ErrExternalTool, "transcode", "ffmpeg", fmt.Sprintf("Audio conversion failed: %s", detail), err)
	}
	return nil
}

// HealthCheck reports readiness for the conversion stage.
func (c *Converter) HealthCheck(ctx context.Context) stage.Health {
	const name = "converter"
	if c == nil || c.cfg == nil || c.store == nil {
		return stage.Unhealthy(name, "stage not configured")
	}
	if _, err := exec.LookPath(c.cfg.FFmpegBinary()); err != nil {
		return stage.Unhealthy(name, "ffmpeg not found in PATH")
	}
	if _, err := exec.LookPath(c.cfg.FFprobeBinary()); err != nil {
		return stage.Unhealthy(name, "ffprobe not found in PATH")
	}
	return stage.Healthy(name)
}
