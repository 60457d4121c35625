package queue

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Status represents the lifecycle of a queued transcription job.
type Status string

const (
	StatusPending      Status = "pending"
	StatusFetching     Status = "fetching"
	StatusFetched      Status = "fetched"
	StatusConverting   Status = "converting"
	StatusConverted    Status = "converted"
	StatusTranscribing Status = "transcribing"
	StatusTranscribed  Status = "transcribed"
	StatusExporting    Status = "exporting"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusReview       Status = "review"
)

// Origin identifies where a job's source media comes from.
type Origin string

const (
	OriginS3    Origin = "s3"
	OriginLocal Origin = "local"
)

// UserStopReason is the review reason set when a user explicitly stops a job.
const UserStopReason = "Stop requested by user"

var allStatuses = []Status{
	StatusPending,
	StatusFetching,
	StatusFetched,
	StatusConverting,
	StatusConverted,
	StatusTranscribing,
	StatusTranscribed,
	StatusExporting,
	StatusCompleted,
	StatusFailed,
	StatusReview,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusFetching:     {},
	StatusConverting:   {},
	StatusTranscribing: {},
	StatusExporting:    {},
}

type statusTransition struct {
	from Status
	to   Status
}

var stageRollbackTransitions = []statusTransition{
	{from: StatusFetching, to: StatusPending},
	{from: StatusConverting, to: StatusFetched},
	{from: StatusTranscribing, to: StatusConverted},
	{from: StatusExporting, to: StatusTranscribed},
}

func processingRollbackTransitions() []statusTransition {
	return stageRollbackTransitions
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalJobs        int
	Error            string
}

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Failed     int
	Review     int
	Completed  int
}

// Job represents a transcription job persisted in SQLite.
type Job struct {
	ID               int64
	Origin           Origin
	SourceKey        string
	SourcePath       string
	Title            string
	Status           Status
	Model            string
	Language         string
	Align            bool
	AudioPath        string
	TranscriptJSON   string
	TranscriptSRT    string
	ResultPath       string
	ResultJSON       string
	DetectedLanguage string
	JobLogPath       string
	ErrorMessage     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ProgressStage    string
	ProgressPercent  float64
	ProgressMessage  string
	LastHeartbeat    *time.Time
	NeedsReview      bool
	ReviewReason     string
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// ParseOrigin converts a string into a known Origin.
func ParseOrigin(value string) (Origin, bool) {
	switch Origin(strings.ToLower(strings.TrimSpace(value))) {
	case OriginS3:
		return OriginS3, true
	case OriginLocal:
		return OriginLocal, true
	default:
		return "", false
	}
}

// IsProcessing returns true when the status reflects an in-flight operation.
func (j Job) IsProcessing() bool {
	_, ok := processingStatuses[j.Status]
	return ok
}

// IsProcessingStatus reports whether a status reflects an in-flight operation.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminal reports whether a status is an end state.
func IsTerminal(status Status) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusReview:
		return true
	default:
		return false
	}
}

// IsUserStopReason reports whether a review reason represents a user-initiated stop.
func IsUserStopReason(reason string) bool {
	return strings.EqualFold(strings.TrimSpace(reason), UserStopReason)
}

// InitProgress resets progress fields for a new stage.
// If ProgressStage is currently empty, it is set to the provided stage value;
// otherwise the existing stage is preserved (to support resume scenarios).
func (j *Job) InitProgress(stage, message string) {
	if j.ProgressStage == "" {
		j.ProgressStage = stage
	}
	j.ProgressMessage = message
	j.ProgressPercent = 0
	j.ErrorMessage = ""
}

// SetProgress updates all three progress fields atomically.
func (j *Job) SetProgress(stage, message string, percent float64) {
	j.ProgressStage = stage
	j.ProgressMessage = message
	j.ProgressPercent = percent
}

// SetProgressComplete sets progress to 100% with the given stage and message.
func (j *Job) SetProgressComplete(stage, message string) {
	j.SetProgress(stage, message, 100)
}

// SetFailed marks the job as failed with the given error message.
// Clears heartbeat and sets progress fields appropriately.
func (j *Job) SetFailed(message string) {
	j.Status = StatusFailed
	j.ErrorMessage = message
	j.ProgressPercent = 0
	j.ProgressMessage = message
	j.LastHeartbeat = nil
	j.ProgressStage = "Failed"
}

// SetReview parks the job for operator attention with the given reason.
func (j *Job) SetReview(reason string) {
	j.Status = StatusReview
	j.NeedsReview = true
	j.ReviewReason = reason
	j.ErrorMessage = reason
	j.ProgressPercent = 0
	j.ProgressMessage = reason
	j.LastHeartbeat = nil
}

// StagingRoot returns the per-job working directory under stagingDir.
func (j Job) StagingRoot(stagingDir string) string {
	if stagingDir == "" {
		return ""
	}
	return filepath.Join(stagingDir, fmt.Sprintf("job-%d", j.ID))
}

// SourceName returns a displayable name for the job's input.
func (j Job) SourceName() string {
	if j.Title != "" {
		return j.Title
	}
	if j.Origin == OriginS3 {
		return j.SourceKey
	}
	return j.SourcePath
}
