package config

import (
	"errors"
	"fmt"
	"strings"
)

var validComputeTypes = map[string]struct{}{
	"float32": {},
	"float16": {},
	"int8":    {},
}

var validVADMethods = map[string]struct{}{
	"silero":   {},
	"pyannote": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTranscription() error {
	if c.Transcription.Model == "" {
		return errors.New("transcription.model must be set")
	}
	if _, ok := validComputeTypes[c.Transcription.ComputeType]; !ok {
		return fmt.Errorf("transcription.compute_type %q is not supported (float32, float16, int8)", c.Transcription.ComputeType)
	}
	if _, ok := validVADMethods[c.Transcription.VADMethod]; !ok {
		return fmt.Errorf("transcription.vad_method %q is not supported (silero, pyannote)", c.Transcription.VADMethod)
	}
	if c.Transcription.VADMethod == "pyannote" && c.Transcription.HFToken == "" {
		return errors.New("transcription.hf_token (or HF_TOKEN) must be set when vad_method is pyannote")
	}
	if c.Transcription.BatchSize <= 0 {
		return errors.New("transcription.batch_size must be positive")
	}
	return nil
}

func (c *Config) validateStorage() error {
	if !c.Storage.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Storage.Bucket) == "" {
		return errors.New("storage.bucket (or S3_BUCKET_NAME) must be set when storage.enabled is true")
	}
	if strings.TrimSpace(c.Storage.Region) == "" {
		return errors.New("storage.region must be set when storage.enabled is true")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
		"model_cache.download_timeout":  c.ModelCache.DownloadTimeout,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		return errors.New("workflow.heartbeat_timeout must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive (seconds)", key)
		}
	}
	return nil
}
