package transcode

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"scribe/internal/logging"
	"scribe/internal/media/ffprobe"
	"scribe/internal/services"
	"scribe/internal/testsupport"
)

func writeSourceFile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "episode.mkv")
	if err := os.WriteFile(path, []byte("not media"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func audioProbe(index int) ffprobe.Result {
	return ffprobe.Result{
		Streams: []ffprobe.Stream{
			{Index: 0, CodecType: "video", CodecName: "h264"},
			{Index: index, CodecType: "audio", CodecName: "aac", Channels: 2},
		},
		Format: ffprobe.Format{Duration: "12.5"},
	}
}

func expectArg(t *testing.T, args []string, flag, value string) {
	t.Helper()
	for i, arg := range args {
		if arg == flag {
			if i+1 >= len(args) {
				t.Fatalf("flag %s has no value in %v", flag, args)
			}
			if args[i+1] != value {
				t.Fatalf("flag %s = %q, want %q", flag, args[i+1], value)
			}
			return
		}
	}
	t.Fatalf("flag %s missing from %v", flag, args)
}

func TestConverterExecuteBuildsFFmpegInvocation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	source := writeSourceFile(t, t.TempDir())
	job := testsupport.NewLocalJob(t, store, source)

	conv := NewConverter(cfg, store, logging.NewNop())
	conv.WithProber(func(ctx context.Context, binary, path string) (ffprobe.Result, error) {
		if path != source {
			t.Fatalf("probed %q, want %q", path, source)
		}
		return audioProbe(1), nil
	})

	var gotName string
	var gotArgs []string
	conv.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotName = name
		gotArgs = args
		dest := args[len(args)-1]
		if err := os.WriteFile(dest, []byte("RIFF"), 0o644); err != nil {
			return nil, err
		}
		return nil, nil
	})

	ctx := context.Background()
	if err := conv.Prepare(ctx, job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := conv.Execute(ctx, job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if gotName != cfg.FFmpegBinary() {
		t.Fatalf("ran %q, want %q", gotName, cfg.FFmpegBinary())
	}
	expectArg(t, gotArgs, "-map", "0:1")
	expectArg(t, gotArgs, "-ac", "1")
	expectArg(t, gotArgs, "-ar", "16000")
	expectArg(t, gotArgs, "-c:a", "pcm_s24le")

	dest := gotArgs[len(gotArgs)-1]
	if filepath.Base(dest) != AudioFileName {
		t.Fatalf("output file = %q, want %q", filepath.Base(dest), AudioFileName)
	}
	if job.AudioPath != dest {
		t.Fatalf("job.AudioPath = %q, want %q", job.AudioPath, dest)
	}
	if job.ProgressPercent != 100 {
		t.Fatalf("progress = %v, want 100", job.ProgressPercent)
	}
}

func TestConverterExecutePassesThroughWAVSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	source := filepath.Join(t.TempDir(), "voicemail.wav")
	if err := os.WriteFile(source, []byte("RIFF"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	job := testsupport.NewLocalJob(t, store, source)

	conv := NewConverter(cfg, store, logging.NewNop())
	conv.WithProber(func(ctx context.Context, binary, path string) (ffprobe.Result, error) {
		return ffprobe.Result{
			Streams: []ffprobe.Stream{{Index: 0, CodecType: "audio", CodecName: "pcm_s16le"}},
		}, nil
	})
	conv.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		t.Fatal("ffmpeg should not run for WAV sources")
		return nil, nil
	})

	if err := conv.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if job.AudioPath != source {
		t.Fatalf("job.AudioPath = %q, want %q", job.AudioPath, source)
	}
}

func TestConverterExecuteRejectsSourceWithoutAudio(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	source := writeSourceFile(t, t.TempDir())
	job := testsupport.NewLocalJob(t, store, source)

	conv := NewConverter(cfg, store, logging.NewNop())
	conv.WithProber(func(ctx context.Context, binary, path string) (ffprobe.Result, error) {
		return ffprobe.Result{
			Streams: []ffprobe.Stream{{Index: 0, CodecType: "video"}},
		}, nil
	})
	conv.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		t.Fatal("ffmpeg should not run without an audio stream")
		return nil, nil
	})

	err := conv.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("Execute error = %v, want validation error", err)
	}
}

func TestConverterExecuteSurfacesFFmpegFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	source := writeSourceFile(t, t.TempDir())
	job := testsupport.NewLocalJob(t, store, source)

	conv := NewConverter(cfg, store, logging.NewNop())
	conv.WithProber(func(ctx context.Context, binary, path string) (ffprobe.Result, error) {
		return audioProbe(1), nil
	})
	conv.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("conversion blew up"), errors.New("exit status 1")
	})

	err := conv.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("Execute error = %v, want external tool error", err)
	}
}

func TestConverterPrepareRequiresStagedSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewLocalJob(t, store, filepath.Join(t.TempDir(), "missing.mkv"))

	conv := NewConverter(cfg, store, logging.NewNop())
	if err := conv.Prepare(context.Background(), job); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("Prepare error = %v, want validation error", err)
	}
}
