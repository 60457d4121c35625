package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeModelCache(); err != nil {
		return err
	}
	c.normalizeTranscription()
	c.normalizeStorage()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		c.Paths.StagingDir = defaultStagingDir
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ResultsDir) == "" {
		c.Paths.ResultsDir = defaultResultsDir
	}
	if c.Paths.ResultsDir, err = expandPath(c.Paths.ResultsDir); err != nil {
		return fmt.Errorf("paths.results_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	c.API.Token = strings.TrimSpace(c.API.Token)
	return nil
}

func (c *Config) normalizeModelCache() error {
	var err error
	if strings.TrimSpace(c.ModelCache.Dir) == "" {
		c.ModelCache.Dir = defaultModelCacheDir
	}
	if c.ModelCache.Dir, err = expandPath(c.ModelCache.Dir); err != nil {
		return fmt.Errorf("model_cache.dir: %w", err)
	}
	if trimmed := strings.TrimSpace(c.ModelCache.HubCacheDir); trimmed != "" {
		if c.ModelCache.HubCacheDir, err = expandPath(trimmed); err != nil {
			return fmt.Errorf("model_cache.hub_cache_dir: %w", err)
		}
	} else {
		c.ModelCache.HubCacheDir = ""
	}
	if c.ModelCache.DownloadTimeout <= 0 {
		c.ModelCache.DownloadTimeout = defaultModelDownloadTimeout
	}
	return nil
}

func (c *Config) normalizeTranscription() {
	c.Transcription.Model = strings.TrimSpace(c.Transcription.Model)
	if c.Transcription.Model == "" {
		c.Transcription.Model = defaultModel
	}
	c.Transcription.ComputeType = strings.TrimSpace(c.Transcription.ComputeType)
	if c.Transcription.ComputeType == "" {
		c.Transcription.ComputeType = defaultComputeType
	}
	if c.Transcription.BatchSize <= 0 {
		c.Transcription.BatchSize = defaultBatchSize
	}
	c.Transcription.VADMethod = strings.ToLower(strings.TrimSpace(c.Transcription.VADMethod))
	if c.Transcription.VADMethod == "" {
		c.Transcription.VADMethod = defaultVADMethod
	}
	// "-" is the auto-detect sentinel the job API has always accepted.
	c.Transcription.Language = strings.TrimSpace(c.Transcription.Language)
	if c.Transcription.Language == "-" {
		c.Transcription.Language = ""
	}
	c.Transcription.HFToken = strings.TrimSpace(c.Transcription.HFToken)
}

func (c *Config) normalizeStorage() {
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	c.Storage.Region = strings.TrimSpace(c.Storage.Region)
	if c.Storage.Region == "" {
		c.Storage.Region = defaultAWSRegion
	}
	c.Storage.ResultsPrefix = strings.TrimSpace(c.Storage.ResultsPrefix)
	if c.Storage.ResultsPrefix == "" {
		c.Storage.ResultsPrefix = defaultResultsPrefix
	}
	if !strings.HasSuffix(c.Storage.ResultsPrefix, "/") {
		c.Storage.ResultsPrefix += "/"
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = 5
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = 10
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		c.Workflow.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		c.Workflow.HeartbeatTimeout = defaultHeartbeatTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
