package api

import (
	"errors"
	"testing"
	"time"

	"scribe/internal/queue"
	"scribe/internal/services"
	"scribe/internal/stage"
	"scribe/internal/workflow"
)

func TestFromJobMapsFields(t *testing.T) {
	created := time.Date(2026, time.March, 4, 12, 30, 0, 0, time.UTC)
	job := &queue.Job{
		ID:               7,
		Origin:           queue.OriginS3,
		SourceKey:        "audio/interview.mp3",
		Title:            "Interview",
		Status:           queue.StatusTranscribing,
		Model:            "large-v3",
		Language:         "de",
		Align:            true,
		ProgressStage:    "Transcribing",
		ProgressPercent:  40,
		ProgressMessage:  "Running WhisperX",
		DetectedLanguage: "de",
		CreatedAt:        created,
		UpdatedAt:        created.Add(time.Minute),
	}

	dto := FromJob(job)
	if dto.ID != 7 || dto.Title != "Interview" {
		t.Fatalf("unexpected identity fields: %+v", dto)
	}
	if dto.Origin != "s3" || dto.SourceKey != "audio/interview.mp3" {
		t.Fatalf("unexpected source fields: %+v", dto)
	}
	if dto.Status != "transcribing" || dto.Model != "large-v3" || !dto.Align {
		t.Fatalf("unexpected job options: %+v", dto)
	}
	if dto.Progress.Stage != "Transcribing" || dto.Progress.Percent != 40 {
		t.Fatalf("unexpected progress: %+v", dto.Progress)
	}
	if dto.CreatedAt != "2026-03-04T12:30:00.000Z" {
		t.Fatalf("unexpected created timestamp: %s", dto.CreatedAt)
	}
	if dto.UpdatedAt != "2026-03-04T12:31:00.000Z" {
		t.Fatalf("unexpected updated timestamp: %s", dto.UpdatedAt)
	}
}

func TestFromJobNilIsZero(t *testing.T) {
	dto := FromJob(nil)
	if dto.ID != 0 || dto.Status != "" {
		t.Fatalf("expected zero value, got %+v", dto)
	}
}

func TestFromStatusSummary(t *testing.T) {
	job := &queue.Job{ID: 3, Status: queue.StatusCompleted}
	summary := workflow.StatusSummary{
		Running:   true,
		LastError: "boom",
		LastJob:   job,
		QueueStats: map[queue.Status]int{
			queue.StatusPending:   2,
			queue.StatusCompleted: 5,
		},
		StageHealth: map[string]stage.Health{
			"transcriber": {Name: "transcriber", Ready: true},
			"converter":   {Name: "converter", Ready: false, Detail: "ffmpeg missing"},
		},
	}

	status := FromStatusSummary(summary)
	if !status.Running || status.LastError != "boom" {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.LastJob == nil || status.LastJob.ID != 3 {
		t.Fatalf("expected last job to survive conversion: %+v", status.LastJob)
	}
	if status.QueueStats["pending"] != 2 || status.QueueStats["completed"] != 5 {
		t.Fatalf("unexpected queue stats: %+v", status.QueueStats)
	}
	if len(status.StageHealth) != 2 || status.StageHealth[0].Name != "converter" {
		t.Fatalf("expected sorted stage health, got %+v", status.StageHealth)
	}
	if status.StageHealth[0].Ready || status.StageHealth[0].Detail != "ffmpeg missing" {
		t.Fatalf("unexpected converter health: %+v", status.StageHealth[0])
	}
}

func TestFormatTimeZero(t *testing.T) {
	if got := FormatTime(time.Time{}); got != "" {
		t.Fatalf("expected empty string for zero time, got %q", got)
	}
}

func TestSubmitRequestValidate(t *testing.T) {
	req := SubmitRequest{Input: SubmitInput{FileName: "audio/file.mp3"}}
	if err := req.Validate(); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	empty := SubmitRequest{}
	err := empty.Validate()
	if err == nil {
		t.Fatal("expected validation error for missing file_name")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}

	badOrigin := SubmitRequest{Input: SubmitInput{FileName: "a.wav", Origin: "ftp"}}
	if err := badOrigin.Validate(); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for unknown origin, got %v", err)
	}
}

func TestSubmitRequestDefaults(t *testing.T) {
	req := SubmitRequest{Input: SubmitInput{FileName: "a.wav", ModelSize: " small ", Language: "de"}}
	if req.Origin() != queue.OriginS3 {
		t.Fatalf("expected s3 default origin, got %s", req.Origin())
	}
	opts := req.JobOptions()
	if opts.Model != "small" || opts.Language != "de" || opts.Align {
		t.Fatalf("unexpected job options: %+v", opts)
	}

	local := SubmitRequest{Input: SubmitInput{FileName: "/tmp/a.wav", Origin: "local"}}
	if local.Origin() != queue.OriginLocal {
		t.Fatalf("expected local origin, got %s", local.Origin())
	}
}
