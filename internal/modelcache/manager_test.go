package modelcache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"scribe/internal/logging"
	"scribe/internal/services"
	"scribe/internal/testsupport"
)

func newHubServer(t *testing.T, wantAuth string, files map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/models/", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != wantAuth {
			t.Errorf("listing auth header = %q, want %q", got, wantAuth)
		}
		fmt.Fprint(w, `{"siblings":[`)
		first := true
		for name := range files {
			if !first {
				fmt.Fprint(w, ",")
			}
			first = false
			fmt.Fprintf(w, `{"rfilename":%q}`, name)
		}
		fmt.Fprint(w, `]}`)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != wantAuth {
			t.Errorf("download auth header = %q, want %q", got, wantAuth)
		}
		name := filepath.Base(r.URL.Path)
		content, ok := files[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, content)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestFetchPopulatesSnapshot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Transcription.HFToken = "hf_test_token"
	files := map[string]string{
		"model.bin":      "checkpoint bytes",
		"config.json":    `{"model_type":"whisper"}`,
		"tokenizer.json": `{}`,
		"vocabulary.txt": "a\nb\n",
	}
	server := newHubServer(t, "Bearer hf_test_token", files)

	mgr := NewManager(cfg, logging.NewNop())
	mgr.WithBaseURL(server.URL)

	if err := mgr.Ensure(context.Background(), "large-v3"); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	dir := mgr.Path("large-v3")
	for name, content := range files {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if string(data) != content {
			t.Fatalf("%s content = %q, want %q", name, data, content)
		}
	}
	if err := mgr.Verify("large-v3"); err != nil {
		t.Fatalf("Verify after fetch: %v", err)
	}
}

func TestFetchWithoutTokenSendsNoAuthHeader(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Transcription.HFToken = ""
	server := newHubServer(t, "", map[string]string{"model.bin": "bytes"})

	mgr := NewManager(cfg, logging.NewNop())
	mgr.WithBaseURL(server.URL)

	if err := mgr.Fetch(context.Background(), "tiny"); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
}

func TestListRepoFilesDiscardsTraversalNames(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"siblings":[`+
			`{"rfilename":"model.bin"},`+
			`{"rfilename":"weights/../../escape.bin"},`+
			`{"rfilename":"../sibling.bin"},`+
			`{"rfilename":"/etc/passwd"},`+
			`{"rfilename":"weights/shard-0.bin"}`+
			`]}`)
	}))
	t.Cleanup(server.Close)

	mgr := NewManager(cfg, logging.NewNop())
	mgr.WithBaseURL(server.URL)

	files, err := mgr.listRepoFiles(context.Background(), "Systran/faster-whisper-large-v3")
	if err != nil {
		t.Fatalf("listRepoFiles: %v", err)
	}
	want := map[string]bool{"model.bin": true, "weights/shard-0.bin": true}
	if len(files) != len(want) {
		t.Fatalf("files = %v, want only local names", files)
	}
	for _, name := range files {
		if !want[name] {
			t.Fatalf("unexpected listing name %q", name)
		}
	}
}

func TestVerifyRejectsIncompleteSnapshot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	mgr := NewManager(cfg, logging.NewNop())

	if err := mgr.Verify("large-v3"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("Verify absent model = %v, want not-found error", err)
	}

	dir := mgr.Path("large-v3")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := mgr.Verify("large-v3"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("Verify without checkpoint = %v, want validation error", err)
	}

	if err := os.WriteFile(filepath.Join(dir, SnapshotFileName), nil, 0o644); err != nil {
		t.Fatalf("write checkpoint: %v", err)
	}
	if err := mgr.Verify("large-v3"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("Verify empty checkpoint = %v, want validation error", err)
	}

	if err := os.WriteFile(filepath.Join(dir, SnapshotFileName), []byte("weights"), 0o644); err != nil {
		t.Fatalf("write checkpoint: %v", err)
	}
	if err := mgr.Verify("large-v3"); err != nil {
		t.Fatalf("Verify populated snapshot: %v", err)
	}
}

func TestEnsureSkipsFetchWhenCached(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	mgr := NewManager(cfg, logging.NewNop())
	mgr.WithBaseURL("http://127.0.0.1:0")

	dir := mgr.Path("small")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, SnapshotFileName), []byte("weights"), 0o644); err != nil {
		t.Fatalf("write checkpoint: %v", err)
	}

	// With an unreachable hub endpoint, Ensure only succeeds if it never
	// attempts a fetch.
	if err := mgr.Ensure(context.Background(), "small"); err != nil {
		t.Fatalf("Ensure cached model: %v", err)
	}
}

func TestListReportsCompleteness(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	mgr := NewManager(cfg, logging.NewNop())

	complete := mgr.Path("base")
	if err := os.MkdirAll(complete, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(complete, SnapshotFileName), []byte("weights"), 0o644); err != nil {
		t.Fatalf("write checkpoint: %v", err)
	}
	if err := os.MkdirAll(mgr.Path("tiny"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	models, err := mgr.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("List returned %d entries, want 2", len(models))
	}
	if models[0].Name != "base" || !models[0].Complete {
		t.Fatalf("first entry = %+v, want complete base", models[0])
	}
	if models[1].Name != "tiny" || models[1].Complete {
		t.Fatalf("second entry = %+v, want incomplete tiny", models[1])
	}
}

func TestRemoveDeletesSnapshot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	mgr := NewManager(cfg, logging.NewNop())

	dir := mgr.Path("base")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := mgr.Remove("base"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("model directory still present after Remove")
	}

	if err := mgr.Remove("base"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("Remove absent model = %v, want not-found error", err)
	}
	if err := mgr.Remove("../escape"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("Remove traversal name = %v, want validation error", err)
	}
}

func TestRepoResolvesKnownModels(t *testing.T) {
	repo, err := Repo("large-v3")
	if err != nil {
		t.Fatalf("Repo: %v", err)
	}
	if repo != "Systran/faster-whisper-large-v3" {
		t.Fatalf("repo = %q", repo)
	}
	if _, err := Repo("imaginary-model"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("Repo unknown model = %v, want validation error", err)
	}
}
