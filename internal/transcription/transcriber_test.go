package transcription

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"scribe/internal/logging"
	"scribe/internal/services"
	"scribe/internal/services/whisperx"
	"scribe/internal/testsupport"
)

type fakeEnsurer struct {
	ensured []string
	err     error
	root    string
}

func (f *fakeEnsurer) Ensure(ctx context.Context, model string) error {
	f.ensured = append(f.ensured, model)
	return f.err
}

func (f *fakeEnsurer) Path(model string) string {
	return filepath.Join(f.root, model)
}

type fakeService struct {
	gotSource string
	gotDir    string
	gotOpts   whisperx.Options
	result    whisperx.Result
	err       error
}

func (f *fakeService) Transcribe(ctx context.Context, source, outputDir string, opts whisperx.Options) (whisperx.Result, error) {
	f.gotSource = source
	f.gotDir = outputDir
	f.gotOpts = opts
	return f.result, f.err
}

func TestTranscriberRunsWhisperX(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Transcription.Model = "small"
	cfg.Transcription.ComputeType = "float32"
	cfg.Transcription.BatchSize = 4
	store := testsupport.MustOpenStore(t, cfg)

	audio := filepath.Join(t.TempDir(), "audio.wav")
	if err := os.WriteFile(audio, []byte("RIFF"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	job := testsupport.NewLocalJob(t, store, audio)
	job.AudioPath = audio
	job.Language = "-"

	ensurer := &fakeEnsurer{root: t.TempDir()}
	svc := &fakeService{result: whisperx.Result{
		Text:             "Hello world.",
		DetectedLanguage: "en",
		JSONPath:         filepath.Join(t.TempDir(), "audio.json"),
		SRTPath:          filepath.Join(t.TempDir(), "audio.srt"),
	}}

	var gotCfg whisperx.Config
	tr := NewTranscriber(cfg, store, nil, logging.NewNop())
	tr.WithModelEnsurer(ensurer)
	tr.WithServiceFactory(func(wxCfg whisperx.Config) transcribeService {
		gotCfg = wxCfg
		return svc
	})

	ctx := context.Background()
	if err := tr.Prepare(ctx, job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := tr.Execute(ctx, job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if len(ensurer.ensured) != 1 || ensurer.ensured[0] != "small" {
		t.Fatalf("ensured models = %v, want [small]", ensurer.ensured)
	}
	if gotCfg.Model != "small" {
		t.Fatalf("service model = %q, want small", gotCfg.Model)
	}
	if gotCfg.ModelDir != ensurer.Path("small") {
		t.Fatalf("service model dir = %q, want %q", gotCfg.ModelDir, ensurer.Path("small"))
	}
	if gotCfg.BatchSize != 4 || gotCfg.ComputeType != "float32" {
		t.Fatalf("service config = %+v", gotCfg)
	}
	if svc.gotSource != audio {
		t.Fatalf("transcribed %q, want %q", svc.gotSource, audio)
	}
	if svc.gotOpts.Language != "" {
		t.Fatalf("language hint = %q, want auto-detect", svc.gotOpts.Language)
	}
	if job.Model != "small" {
		t.Fatalf("job.Model = %q", job.Model)
	}
	if job.DetectedLanguage != "en" {
		t.Fatalf("job.DetectedLanguage = %q", job.DetectedLanguage)
	}
	if job.TranscriptJSON == "" || job.TranscriptSRT == "" {
		t.Fatalf("transcript paths not recorded: %+v", job)
	}
	if job.ProgressPercent != 100 {
		t.Fatalf("progress = %v, want 100", job.ProgressPercent)
	}
}

func TestTranscriberHonorsJobOverrides(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Transcription.Model = "small"
	store := testsupport.MustOpenStore(t, cfg)

	audio := filepath.Join(t.TempDir(), "audio.wav")
	if err := os.WriteFile(audio, []byte("RIFF"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	job := testsupport.NewLocalJob(t, store, audio)
	job.AudioPath = audio
	job.Model = "large-v3"
	job.Language = "de"
	job.Align = true

	ensurer := &fakeEnsurer{root: t.TempDir()}
	svc := &fakeService{result: whisperx.Result{DetectedLanguage: "de"}}

	tr := NewTranscriber(cfg, store, nil, logging.NewNop())
	tr.WithModelEnsurer(ensurer)
	tr.WithServiceFactory(func(wxCfg whisperx.Config) transcribeService { return svc })

	if err := tr.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(ensurer.ensured) != 1 || ensurer.ensured[0] != "large-v3" {
		t.Fatalf("ensured models = %v, want [large-v3]", ensurer.ensured)
	}
	if svc.gotOpts.Language != "de" {
		t.Fatalf("language hint = %q, want de", svc.gotOpts.Language)
	}
	if !svc.gotOpts.Align {
		t.Fatal("expected alignment to be requested")
	}
}

func TestTranscriberEnsureFailurePropagates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	audio := filepath.Join(t.TempDir(), "audio.wav")
	if err := os.WriteFile(audio, []byte("RIFF"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	job := testsupport.NewLocalJob(t, store, audio)
	job.AudioPath = audio

	ensureErr := services.Wrap(services.ErrValidation, "modelcache", "verify", "snapshot incomplete", nil)
	ensurer := &fakeEnsurer{root: t.TempDir(), err: ensureErr}

	tr := NewTranscriber(cfg, store, nil, logging.NewNop())
	tr.WithModelEnsurer(ensurer)
	tr.WithServiceFactory(func(wxCfg whisperx.Config) transcribeService {
		t.Fatal("service should not be built when ensure fails")
		return nil
	})

	err := tr.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("Execute error = %v, want validation error", err)
	}
}

func TestTranscriberPrepareRequiresAudio(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewLocalJob(t, store, filepath.Join(t.TempDir(), "source.mkv"))

	tr := NewTranscriber(cfg, store, nil, logging.NewNop())
	tr.WithModelEnsurer(&fakeEnsurer{root: t.TempDir()})

	if err := tr.Prepare(context.Background(), job); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("Prepare error = %v, want validation error", err)
	}
}
