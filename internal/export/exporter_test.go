package export

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/queue"
	"scribe/internal/services"
	"scribe/internal/testsupport"
)

type fakeObjectStore struct {
	uploads map[string]string
}

func (f *fakeObjectStore) Download(ctx context.Context, key, destPath string) error {
	return errors.New("not implemented")
}

func (f *fakeObjectStore) Upload(ctx context.Context, sourcePath, key string) error {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return err
	}
	if f.uploads == nil {
		f.uploads = make(map[string]string)
	}
	f.uploads[key] = string(data)
	return nil
}

func (f *fakeObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := f.uploads[key]
	return ok, nil
}

const transcriptJSON = `{
  "segments": [
    {"text": " Hello there.", "start": 0.0, "end": 1.2},
    {"text": "General Kenobi.", "start": 1.4, "end": 2.6}
  ],
  "language": "en"
}`

func stageTranscribedJob(t *testing.T, cfg *config.Config, store *queue.Store) *queue.Job {
	t.Helper()

	source := filepath.Join(t.TempDir(), "interview.mp3")
	if err := os.WriteFile(source, []byte("media"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	job := testsupport.NewLocalJob(t, store, source)

	transcriptDir := filepath.Join(job.StagingRoot(cfg.Paths.StagingDir), "transcript")
	if err := os.MkdirAll(transcriptDir, 0o755); err != nil {
		t.Fatalf("mkdir transcript: %v", err)
	}
	jsonPath := filepath.Join(transcriptDir, "audio.json")
	if err := os.WriteFile(jsonPath, []byte(transcriptJSON), 0o644); err != nil {
		t.Fatalf("write transcript json: %v", err)
	}
	srtPath := filepath.Join(transcriptDir, "audio.srt")
	if err := os.WriteFile(srtPath, []byte("1\n00:00:00,000 --> 00:00:01,200\nHello there.\n"), 0o644); err != nil {
		t.Fatalf("write transcript srt: %v", err)
	}

	job.TranscriptJSON = jsonPath
	job.TranscriptSRT = srtPath
	job.DetectedLanguage = "en"
	job.Model = "large-v3"
	return job
}

func TestExporterWritesResultPayload(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Transcription.ComputeType = "float32"
	store := testsupport.MustOpenStore(t, cfg)
	job := stageTranscribedJob(t, cfg, store)

	exporter := NewExporter(cfg, store, nil, logging.NewNop())

	ctx := context.Background()
	if err := exporter.Prepare(ctx, job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := exporter.Execute(ctx, job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if job.ResultPath == "" {
		t.Fatal("expected ResultPath to be set")
	}
	data, err := os.ReadFile(job.ResultPath)
	if err != nil {
		t.Fatalf("read result payload: %v", err)
	}

	var payload ResultPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("parse result payload: %v", err)
	}
	if payload.Text != "Hello there. General Kenobi." {
		t.Fatalf("payload text = %q", payload.Text)
	}
	if len(payload.Segments) != 2 {
		t.Fatalf("payload segments = %d, want 2", len(payload.Segments))
	}
	if payload.DetectedLanguage != "en" {
		t.Fatalf("payload detected language = %q", payload.DetectedLanguage)
	}
	if payload.UsedLanguage != "en" {
		t.Fatalf("payload used language = %q, want detected language in auto mode", payload.UsedLanguage)
	}
	if payload.ModelUsed != "large-v3" {
		t.Fatalf("payload model = %q", payload.ModelUsed)
	}
	if payload.DeviceUsed != "cpu" {
		t.Fatalf("payload device = %q", payload.DeviceUsed)
	}
	if payload.ProcessedFile == "" {
		t.Fatal("payload processed file is empty")
	}

	srtCopy := filepath.Join(filepath.Dir(job.ResultPath), TranscriptFileName)
	if _, err := os.Stat(srtCopy); err != nil {
		t.Fatalf("transcript copy missing: %v", err)
	}

	if _, err := os.Stat(job.StagingRoot(cfg.Paths.StagingDir)); !os.IsNotExist(err) {
		t.Fatal("staging directory should be removed after export")
	}
	if job.ResultJSON == "" {
		t.Fatal("expected ResultJSON to carry the payload")
	}
	if job.ProgressPercent != 100 {
		t.Fatalf("progress = %v, want 100", job.ProgressPercent)
	}
}

func TestExporterPinnedLanguageSuppressesDetection(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := stageTranscribedJob(t, cfg, store)
	job.Language = "de"

	exporter := NewExporter(cfg, store, nil, logging.NewNop())
	if err := exporter.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	data, err := os.ReadFile(job.ResultPath)
	if err != nil {
		t.Fatalf("read result payload: %v", err)
	}
	var payload ResultPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("parse result payload: %v", err)
	}
	if payload.UsedLanguage != "de" {
		t.Fatalf("payload used language = %q, want requested language", payload.UsedLanguage)
	}
	if payload.DetectedLanguage != "" {
		t.Fatalf("payload detected language = %q, want empty when language was requested", payload.DetectedLanguage)
	}
}

func TestExporterUploadsResults(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Storage.Enabled = true
	cfg.Storage.UploadResults = true
	cfg.Storage.ResultsPrefix = "results/"
	store := testsupport.MustOpenStore(t, cfg)
	job := stageTranscribedJob(t, cfg, store)

	objects := &fakeObjectStore{}
	exporter := NewExporter(cfg, store, objects, logging.NewNop())

	if err := exporter.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	resultKey := ""
	srtKey := ""
	for key := range objects.uploads {
		switch filepath.Base(key) {
		case ResultFileName:
			resultKey = key
		case TranscriptFileName:
			srtKey = key
		}
	}
	if resultKey == "" || srtKey == "" {
		t.Fatalf("uploads = %v, want result and transcript keys", objects.uploads)
	}
	for _, key := range []string{resultKey, srtKey} {
		if filepath.Dir(filepath.Dir(key)) != "results" {
			t.Fatalf("upload key %q not under results prefix", key)
		}
	}
}

func TestExporterPrepareRequiresTranscript(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewLocalJob(t, store, filepath.Join(t.TempDir(), "interview.mp3"))

	exporter := NewExporter(cfg, store, nil, logging.NewNop())
	if err := exporter.Prepare(context.Background(), job); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("Prepare error = %v, want validation error", err)
	}
}

func TestExporterPrepareRejectsUploadWithoutClient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Storage.UploadResults = true
	store := testsupport.MustOpenStore(t, cfg)
	job := stageTranscribedJob(t, cfg, store)

	exporter := NewExporter(cfg, store, nil, logging.NewNop())
	if err := exporter.Prepare(context.Background(), job); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("Prepare error = %v, want configuration error", err)
	}
}
