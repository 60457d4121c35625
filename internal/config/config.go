package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration for daemon operation.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	ResultsDir string `toml:"results_dir"`
	LogDir     string `toml:"log_dir"`
}

// Transcription contains WhisperX invocation settings.
type Transcription struct {
	Model       string `toml:"model"`
	Language    string `toml:"language"`
	ComputeType string `toml:"compute_type"`
	BatchSize   int    `toml:"batch_size"`
	CUDAEnabled bool   `toml:"cuda_enabled"`
	Align       bool   `toml:"align"`
	VADMethod   string `toml:"vad_method"`
	HFToken     string `toml:"hf_token"`
}

// ModelCache contains settings for the local model snapshot cache.
type ModelCache struct {
	Dir             string `toml:"dir"`
	HubCacheDir     string `toml:"hub_cache_dir"`
	DownloadTimeout int    `toml:"download_timeout"`
}

// Storage contains S3 object storage settings for job input and results.
type Storage struct {
	Enabled       bool   `toml:"enabled"`
	Bucket        string `toml:"bucket"`
	Region        string `toml:"region"`
	ResultsPrefix string `toml:"results_prefix"`
	UploadResults bool   `toml:"upload_results"`
}

// API contains the HTTP job intake configuration.
type API struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	JobQueued      bool   `toml:"job_queued"`
	JobCompleted   bool   `toml:"job_completed"`
	Errors         bool   `toml:"errors"`
}

// Workflow contains daemon timing and heartbeat intervals, in seconds.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for scribe.
//
// Sections by subsystem:
//   - Paths: staging/results/log directories
//   - Transcription: WhisperX model and invocation flags
//   - ModelCache: model snapshot cache location and download timeout
//   - Storage: S3 bucket for job input and result upload
//   - API: HTTP job intake bind address and token
//   - Notifications: ntfy push notification settings
//   - Workflow: polling intervals and heartbeat timeouts
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Transcription Transcription `toml:"transcription"`
	ModelCache    ModelCache    `toml:"model_cache"`
	Storage       Storage       `toml:"storage"`
	API           API           `toml:"api"`
	Notifications Notifications `toml:"notifications"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/scribe/config.toml")
}

// Load locates, parses, and validates a configuration file. Environment
// overrides are applied after the file is decoded. The returned config has
// all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// applyEnvOverrides layers the container-facing environment variables over
// whatever the config file provided. These match the variables the deployment
// images have always honored.
func (c *Config) applyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv("WHISPER_MODEL")); v != "" {
		c.Transcription.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("WHISPER_MODEL_CACHE")); v != "" {
		c.ModelCache.Dir = v
	}
	if v := strings.TrimSpace(os.Getenv("WHISPER_LANGUAGE")); v != "" {
		c.Transcription.Language = v
	}
	if v := strings.TrimSpace(os.Getenv("HF_HUB_CACHE")); v != "" {
		c.ModelCache.HubCacheDir = v
	}
	if v := strings.TrimSpace(os.Getenv("HF_TOKEN")); v != "" {
		c.Transcription.HFToken = v
	}
	if v := strings.TrimSpace(os.Getenv("S3_BUCKET_NAME")); v != "" {
		c.Storage.Bucket = v
		c.Storage.Enabled = true
	}
	if v := strings.TrimSpace(os.Getenv("AWS_REGION")); v != "" {
		c.Storage.Region = v
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/scribe/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("scribe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.ResultsDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.ModelCache.Dir) != "" {
		if err := os.MkdirAll(c.ModelCache.Dir, 0o755); err != nil {
			return fmt.Errorf("create model cache directory %q: %w", c.ModelCache.Dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name used for audio conversion.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for media validation.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// UVXBinary returns the uvx executable name used to launch WhisperX.
func (c *Config) UVXBinary() string {
	return "uvx"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file at the given path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
