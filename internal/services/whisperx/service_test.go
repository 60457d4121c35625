package whisperx_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"scribe/internal/services/whisperx"
)

func writeOutput(t *testing.T, outputDir, base, payload string) {
	t.Helper()
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		t.Fatalf("mkdir output: %v", err)
	}
	if err := os.WriteFile(filepath.Join(outputDir, base+".json"), []byte(payload), 0o644); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if err := os.WriteFile(filepath.Join(outputDir, base+".srt"), []byte("1\n00:00:00,000 --> 00:00:01,000\nhello\n"), 0o644); err != nil {
		t.Fatalf("write srt: %v", err)
	}
}

func TestTranscribeBuildsArgsAndParsesOutput(t *testing.T) {
	base := t.TempDir()
	source := filepath.Join(base, "audio.wav")
	if err := os.WriteFile(source, []byte("fake"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	outputDir := filepath.Join(base, "out")

	svc := whisperx.NewService(whisperx.Config{
		Model:       "small",
		ComputeType: "float32",
		BatchSize:   4,
		ModelDir:    filepath.Join(base, "models"),
	})

	var gotName string
	var gotArgs []string
	svc.WithCommandRunner(func(_ context.Context, name string, args ...string) error {
		gotName = name
		gotArgs = args
		writeOutput(t, outputDir, "audio", `{"segments":[{"text":" Hello","start":0,"end":1},{"text":"world. ","start":1,"end":2}],"language":"en"}`)
		return nil
	})

	result, err := svc.Transcribe(context.Background(), source, outputDir, whisperx.Options{Language: "en"})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	if gotName != whisperx.UVXCommand {
		t.Fatalf("expected uvx command, got %s", gotName)
	}
	expectArg := func(flag, value string) {
		t.Helper()
		for i, arg := range gotArgs {
			if arg == flag {
				if value == "" {
					return
				}
				if i+1 < len(gotArgs) && gotArgs[i+1] == value {
					return
				}
				t.Fatalf("flag %s has wrong value in %v", flag, gotArgs)
			}
		}
		t.Fatalf("flag %s missing from %v", flag, gotArgs)
	}
	expectArg("--model", "small")
	expectArg("--batch_size", "4")
	expectArg("--compute_type", "float32")
	expectArg("--device", "cpu")
	expectArg("--language", "en")
	expectArg("--vad_method", "silero")
	expectArg("--model_dir", filepath.Join(base, "models"))
	expectArg("--no_align", "")

	if result.Text != "Hello world." {
		t.Fatalf("unexpected transcript text: %q", result.Text)
	}
	if result.DetectedLanguage != "en" {
		t.Fatalf("unexpected detected language: %q", result.DetectedLanguage)
	}
	if result.JSONPath == "" || result.SRTPath == "" {
		t.Fatalf("expected output paths, got %#v", result)
	}
}

func TestTranscribeAlignOmitsNoAlign(t *testing.T) {
	base := t.TempDir()
	source := filepath.Join(base, "audio.wav")
	if err := os.WriteFile(source, []byte("fake"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	outputDir := filepath.Join(base, "out")

	svc := whisperx.NewService(whisperx.Config{})
	var gotArgs []string
	svc.WithCommandRunner(func(_ context.Context, _ string, args ...string) error {
		gotArgs = args
		writeOutput(t, outputDir, "audio", `{"segments":[],"language":"de"}`)
		return nil
	})

	if _, err := svc.Transcribe(context.Background(), source, outputDir, whisperx.Options{Align: true}); err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	for _, arg := range gotArgs {
		if arg == "--no_align" {
			t.Fatal("did not expect --no_align when alignment requested")
		}
		if arg == "--language" {
			t.Fatal("did not expect --language for auto-detection")
		}
	}
}

func TestLoadSegments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")
	payload := `{"segments":[{"text":"one","start":0,"end":1,"words":[{"word":"one","start":0,"end":1}]}]}`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write json: %v", err)
	}

	segments, err := whisperx.LoadSegments(path)
	if err != nil {
		t.Fatalf("LoadSegments failed: %v", err)
	}
	if len(segments) != 1 || segments[0].Text != "one" || len(segments[0].Words) != 1 {
		t.Fatalf("unexpected segments: %#v", segments)
	}
}
