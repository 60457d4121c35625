package api

import (
	"sort"
	"time"

	"scribe/internal/queue"
	"scribe/internal/stage"
	"scribe/internal/workflow"
)

// FromJob converts a queue job into its API representation.
func FromJob(job *queue.Job) Job {
	if job == nil {
		return Job{}
	}
	return Job{
		ID:         job.ID,
		Title:      job.Title,
		Origin:     string(job.Origin),
		SourceKey:  job.SourceKey,
		SourcePath: job.SourcePath,
		Status:     string(job.Status),
		Model:      job.Model,
		Language:   job.Language,
		Align:      job.Align,
		Progress: JobProgress{
			Stage:   job.ProgressStage,
			Percent: job.ProgressPercent,
			Message: job.ProgressMessage,
		},
		DetectedLanguage: job.DetectedLanguage,
		ResultPath:       job.ResultPath,
		ErrorMessage:     job.ErrorMessage,
		NeedsReview:      job.NeedsReview,
		ReviewReason:     job.ReviewReason,
		CreatedAt:        FormatTime(job.CreatedAt),
		UpdatedAt:        FormatTime(job.UpdatedAt),
	}
}

// FromJobs converts a slice of queue jobs.
func FromJobs(jobs []*queue.Job) []Job {
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromJob(job))
	}
	return out
}

// FromStatusSummary converts workflow status into its API representation.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	status := WorkflowStatus{
		Running:     summary.Running,
		LastError:   summary.LastError,
		QueueStats:  QueueStatsMap(summary.QueueStats),
		StageHealth: StageHealthSlice(summary.StageHealth),
	}
	if summary.LastJob != nil {
		job := FromJob(summary.LastJob)
		status.LastJob = &job
	}
	return status
}

// QueueStatsMap normalizes queue stats keyed by status string.
func QueueStatsMap(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(stats))
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// StageHealthSlice flattens stage health into a sorted slice.
func StageHealthSlice(health map[string]stage.Health) []StageHealth {
	out := make([]StageHealth, 0, len(health))
	for _, item := range health {
		out = append(out, StageHealth{
			Name:   item.Name,
			Ready:  item.Ready,
			Detail: item.Detail,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// FormatTime renders timestamps with the API date format.
func FormatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(dateTimeFormat)
}
