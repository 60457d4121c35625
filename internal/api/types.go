package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a queue entry in a transport-friendly format.
type Job struct {
	ID               int64       `json:"id"`
	Title            string      `json:"title"`
	Origin           string      `json:"origin"`
	SourceKey        string      `json:"sourceKey,omitempty"`
	SourcePath       string      `json:"sourcePath,omitempty"`
	Status           string      `json:"status"`
	Model            string      `json:"model,omitempty"`
	Language         string      `json:"language,omitempty"`
	Align            bool        `json:"align"`
	Progress         JobProgress `json:"progress"`
	DetectedLanguage string      `json:"detectedLanguage,omitempty"`
	ResultPath       string      `json:"resultPath,omitempty"`
	ErrorMessage     string      `json:"errorMessage,omitempty"`
	NeedsReview      bool        `json:"needsReview"`
	ReviewReason     string      `json:"reviewReason,omitempty"`
	CreatedAt        string      `json:"createdAt,omitempty"`
	UpdatedAt        string      `json:"updatedAt,omitempty"`
}

// JobProgress captures stage progress information for a queue entry.
type JobProgress struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

// SubmitRequest is the job submission envelope. The input wrapper matches
// the serverless worker payload this service grew out of.
type SubmitRequest struct {
	Input SubmitInput `json:"input"`
}

// SubmitInput carries the job parameters.
type SubmitInput struct {
	FileName  string `json:"file_name"`
	ModelSize string `json:"model_size,omitempty"`
	Language  string `json:"language,omitempty"`
	Align     bool   `json:"align,omitempty"`
	Origin    string `json:"origin,omitempty"`
}

// SubmitResponse wraps the queued job.
type SubmitResponse struct {
	Job Job `json:"job"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	QueueStats  map[string]int `json:"queueStats"`
	LastError   string         `json:"lastError,omitempty"`
	LastJob     *Job           `json:"lastJob,omitempty"`
	StageHealth []StageHealth  `json:"stageHealth"`
}

// StageHealth mirrors readiness reporting for workflow stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	QueueDBPath  string             `json:"queueDbPath"`
	LockFilePath string             `json:"lockFilePath"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// QueueStatsResponse provides a normalized queue stats payload.
type QueueStatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// QueueListResponse wraps a collection of queue items for API responses.
type QueueListResponse struct {
	Jobs []Job `json:"jobs"`
}

// JobResponse wraps a single queue item.
type JobResponse struct {
	Job Job `json:"job"`
}
