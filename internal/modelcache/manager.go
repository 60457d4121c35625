// Package modelcache maintains the local faster-whisper snapshot cache used by
// the transcription stage. A cached model lives at <cache dir>/<model name> and
// is considered usable only when it contains a non-empty model.bin.
package modelcache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/services"
)

// SnapshotFileName is the checkpoint file every usable snapshot must contain.
const SnapshotFileName = "model.bin"

const defaultHubBaseURL = "https://huggingface.co"

// repoByModel maps the WhisperX model names accepted in job submissions to
// their faster-whisper checkpoint repositories on the Hugging Face hub.
var repoByModel = map[string]string{
	"tiny":            "Systran/faster-whisper-tiny",
	"tiny.en":         "Systran/faster-whisper-tiny.en",
	"base":            "Systran/faster-whisper-base",
	"base.en":         "Systran/faster-whisper-base.en",
	"small":           "Systran/faster-whisper-small",
	"small.en":        "Systran/faster-whisper-small.en",
	"medium":          "Systran/faster-whisper-medium",
	"medium.en":       "Systran/faster-whisper-medium.en",
	"large-v1":        "Systran/faster-whisper-large-v1",
	"large-v2":        "Systran/faster-whisper-large-v2",
	"large-v3":        "Systran/faster-whisper-large-v3",
	"large":           "Systran/faster-whisper-large-v3",
	"distil-large-v3": "Systran/faster-distil-whisper-large-v3",
}

// CachedModel describes one entry in the snapshot cache directory.
type CachedModel struct {
	Name      string
	Path      string
	SizeBytes int64
	Complete  bool
}

// Manager downloads, verifies, and removes model snapshots.
type Manager struct {
	cfg     *config.Config
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// NewManager constructs a cache manager rooted at the configured cache
// directory. The download timeout covers a full snapshot fetch.
func NewManager(cfg *config.Config, logger *slog.Logger) *Manager {
	timeout := time.Duration(cfg.ModelCache.DownloadTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Manager{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		logger:  logging.NewComponentLogger(logger, "modelcache"),
		baseURL: defaultHubBaseURL,
	}
}

// WithBaseURL points the manager at an alternate hub endpoint. Used by tests.
func (m *Manager) WithBaseURL(baseURL string) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed != "" {
		m.baseURL = trimmed
	}
}

// Repo resolves a model name to its checkpoint repository.
func Repo(model string) (string, error) {
	repo, ok := repoByModel[strings.TrimSpace(model)]
	if !ok {
		return "", services.Wrap(services.ErrValidation, "modelcache", "resolve", fmt.Sprintf("Unknown model %q", model), nil)
	}
	return repo, nil
}

// KnownModels returns the model names the cache can fetch, sorted.
func KnownModels() []string {
	names := make([]string, 0, len(repoByModel))
	for name := range repoByModel {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Path returns the cache directory for the named model.
func (m *Manager) Path(model string) string {
	return filepath.Join(m.cfg.ModelCache.Dir, strings.TrimSpace(model))
}

// Verify confirms the cached snapshot is usable: the model directory exists
// and model.bin is present and non-empty.
func (m *Manager) Verify(model string) error {
	dir := m.Path(model)
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return services.Wrap(services.ErrNotFound, "modelcache", "verify", fmt.Sprintf("Model %q is not cached", model), nil)
		}
		return services.Wrap(services.ErrTransient, "modelcache", "verify", "Failed to inspect model cache", err)
	}
	if !info.IsDir() {
		return services.Wrap(services.ErrValidation, "modelcache", "verify", fmt.Sprintf("Cache entry %q is not a directory", dir), nil)
	}

	checkpoint, err := os.Stat(filepath.Join(dir, SnapshotFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return services.Wrap(services.ErrValidation, "modelcache", "verify", fmt.Sprintf("Model %q snapshot is missing %s", model, SnapshotFileName), nil)
		}
		return services.Wrap(services.ErrTransient, "modelcache", "verify", "Failed to inspect model checkpoint", err)
	}
	if checkpoint.Size() == 0 {
		return services.Wrap(services.ErrValidation, "modelcache", "verify", fmt.Sprintf("Model %q checkpoint %s is empty", model, SnapshotFileName), nil)
	}
	return nil
}

// Ensure makes the named snapshot available, fetching it when absent or
// incomplete, and fails if the fetched snapshot still does not verify.
func (m *Manager) Ensure(ctx context.Context, model string) error {
	if err := m.Verify(model); err == nil {
		return nil
	}
	if err := m.Fetch(ctx, model); err != nil {
		return err
	}
	return m.Verify(model)
}

// Fetch downloads every file of the model's checkpoint repository into the
// cache directory, overwriting any partial snapshot.
func (m *Manager) Fetch(ctx context.Context, model string) error {
	repo, err := Repo(model)
	if err != nil {
		return err
	}

	files, err := m.listRepoFiles(ctx, repo)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return services.Wrap(services.ErrExternalTool, "modelcache", "list", fmt.Sprintf("Repository %q lists no files", repo), nil)
	}

	dir := m.Path(model)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "modelcache", "mkdir", "Failed to create model cache directory", err)
	}

	start := time.Now()
	var total int64
	for _, name := range files {
		written, err := m.downloadFile(ctx, repo, name, dir)
		if err != nil {
			return err
		}
		total += written
	}

	m.logger.Info("model snapshot downloaded",
		logging.String(logging.FieldEventType, "model_fetched"),
		logging.String("model", model),
		logging.String("repo", repo),
		logging.Int("files", len(files)),
		logging.Int64("bytes", total),
		logging.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// List scans the cache directory and reports every model entry found there.
func (m *Manager) List() ([]CachedModel, error) {
	entries, err := os.ReadDir(m.cfg.ModelCache.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrTransient, "modelcache", "list", "Failed to read model cache directory", err)
	}

	models := make([]CachedModel, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		dir := m.Path(name)
		cached := CachedModel{Name: name, Path: dir}
		cached.SizeBytes = directorySize(dir)
		cached.Complete = m.Verify(name) == nil
		models = append(models, cached)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })
	return models, nil
}

// Remove deletes a cached snapshot.
func (m *Manager) Remove(model string) error {
	name := strings.TrimSpace(model)
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return services.Wrap(services.ErrValidation, "modelcache", "remove", fmt.Sprintf("Invalid model name %q", model), nil)
	}
	dir := m.Path(name)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return services.Wrap(services.ErrNotFound, "modelcache", "remove", fmt.Sprintf("Model %q is not cached", model), nil)
		}
		return services.Wrap(services.ErrTransient, "modelcache", "remove", "Failed to inspect model cache", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return services.Wrap(services.ErrTransient, "modelcache", "remove", fmt.Sprintf("Failed to remove model %q", model), err)
	}
	return nil
}

func (m *Manager) listRepoFiles(ctx context.Context, repo string) ([]string, error) {
	url := fmt.Sprintf("%s/api/models/%s", m.baseURL, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "modelcache", "list", "Failed to build repository request", err)
	}
	m.authorize(req)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "modelcache", "list", "Failed to contact Hugging Face", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, services.Wrap(services.ErrConfiguration, "modelcache", "list", fmt.Sprintf("Hugging Face rejected credentials for %q (%s)", repo, resp.Status), nil)
	case http.StatusNotFound:
		return nil, services.Wrap(services.ErrNotFound, "modelcache", "list", fmt.Sprintf("Repository %q not found", repo), nil)
	default:
		return nil, services.Wrap(services.ErrTransient, "modelcache", "list", fmt.Sprintf("Unexpected Hugging Face response: %s", resp.Status), nil)
	}

	var payload struct {
		Siblings []struct {
			RFilename string `json:"rfilename"`
		} `json:"siblings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, services.Wrap(services.ErrTransient, "modelcache", "list", "Failed to parse repository listing", err)
	}

	files := make([]string, 0, len(payload.Siblings))
	for _, sibling := range payload.Siblings {
		name := strings.TrimSpace(sibling.RFilename)
		if name == "" || strings.HasPrefix(name, ".") {
			continue
		}
		// Listing names become paths under the snapshot dir; anything
		// that would resolve outside it is discarded.
		if !filepath.IsLocal(filepath.FromSlash(name)) {
			continue
		}
		files = append(files, name)
	}
	return files, nil
}

func (m *Manager) downloadFile(ctx context.Context, repo, name, dir string) (int64, error) {
	url := fmt.Sprintf("%s/%s/resolve/main/%s", m.baseURL, repo, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "modelcache", "download", "Failed to build download request", err)
	}
	m.authorize(req)

	resp, err := m.client.Do(req)
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "modelcache", "download", fmt.Sprintf("Failed to download %s", name), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, services.Wrap(services.ErrTransient, "modelcache", "download", fmt.Sprintf("Unexpected response for %s: %s", name, resp.Status), nil)
	}

	dest := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, services.Wrap(services.ErrTransient, "modelcache", "download", "Failed to create snapshot subdirectory", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".partial-*")
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "modelcache", "download", "Failed to create temp file", err)
	}
	written, err := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if err != nil || closeErr != nil {
		os.Remove(tmp.Name())
		if err == nil {
			err = closeErr
		}
		return 0, services.Wrap(services.ErrTransient, "modelcache", "download", fmt.Sprintf("Failed to write %s", name), err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return 0, services.Wrap(services.ErrTransient, "modelcache", "download", fmt.Sprintf("Failed to finalize %s", name), err)
	}
	return written, nil
}

func (m *Manager) authorize(req *http.Request) {
	if token := strings.TrimSpace(m.cfg.Transcription.HFToken); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func directorySize(dir string) int64 {
	var total int64
	filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}
