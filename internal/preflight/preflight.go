package preflight

import (
	"context"

	"scribe/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir))
	results = append(results, CheckDirectoryAccess("Results directory", cfg.Paths.ResultsDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	if cfg.ModelCache.Dir != "" {
		results = append(results, CheckDirectoryAccess("Model cache", cfg.ModelCache.Dir))
	}

	results = append(results, CheckDiskSpace("Staging disk space", cfg.Paths.StagingDir, minimumStagingBytes))

	if cfg.Transcription.HFToken != "" {
		results = append(results, CheckHuggingFace(ctx, cfg.Transcription.HFToken))
	}

	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}
