// Package api defines wire-format types and converters for the IPC and HTTP
// API layer. It translates internal queue models into transport-friendly DTOs
// so clients never couple to internal types.
//
// # Key Types
//
// Job: transport representation of a queue entry with progress, language
// detection results, and review state.
//
// SubmitRequest: the job submission envelope. Submissions arrive wrapped in
// an "input" object carrying file_name, model_size, language, and align.
//
// WorkflowStatus: daemon running state, queue stats, stage health, and the
// most recently processed job.
//
// DaemonStatus: aggregated runtime information including dependencies.
//
// # Converters
//
// FromJob: queue.Job -> Job. FromStatusSummary: workflow.StatusSummary ->
// WorkflowStatus. Timestamps are formatted with FormatTime in UTC.
package api
