package queue_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"scribe/internal/queue"
	"scribe/internal/testsupport"
)

func TestOpenAppliesMigrations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job, err := store.NewS3Job(ctx, "audio/meeting.mp3", queue.JobOptions{Model: "small", Language: "en"})
	if err != nil {
		t.Fatalf("NewS3Job failed: %v", err)
	}
	if job.ID == 0 {
		t.Fatal("expected job ID to be assigned")
	}
	if job.Status != queue.StatusPending {
		t.Fatalf("expected pending status, got %s", job.Status)
	}
	if job.Title != "Meeting" {
		t.Fatalf("expected inferred title, got %q", job.Title)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.SourceKey != "audio/meeting.mp3" {
		t.Fatalf("unexpected fetched job: %#v", fetched)
	}
	if fetched.Model != "small" || fetched.Language != "en" {
		t.Fatalf("expected job options persisted, got %#v", fetched)
	}

	found, err := store.FindBySourceKey(ctx, "audio/meeting.mp3")
	if err != nil {
		t.Fatalf("FindBySourceKey failed: %v", err)
	}
	if found == nil || found.ID != job.ID {
		t.Fatalf("expected to find inserted job, got %#v", found)
	}
}

func TestLocalJobRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job, err := store.NewLocalJob(ctx, "/tmp/input/lecture.wav", queue.JobOptions{Align: true})
	if err != nil {
		t.Fatalf("NewLocalJob failed: %v", err)
	}
	if job.Origin != queue.OriginLocal {
		t.Fatalf("expected local origin, got %s", job.Origin)
	}
	if !job.Align {
		t.Fatal("expected align flag persisted")
	}

	job.Status = queue.StatusTranscribed
	job.AudioPath = "/tmp/staging/1/audio.wav"
	job.DetectedLanguage = "de"
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	updated, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if updated.Status != queue.StatusTranscribed || updated.DetectedLanguage != "de" {
		t.Fatalf("unexpected updated job: %#v", updated)
	}
}

func TestResetStuckProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	cases := []struct {
		name          string
		initialStatus queue.Status
		expected      queue.Status
	}{
		{"fetching", queue.StatusFetching, queue.StatusPending},
		{"converting", queue.StatusConverting, queue.StatusFetched},
		{"transcribing", queue.StatusTranscribing, queue.StatusConverted},
		{"exporting", queue.StatusExporting, queue.StatusTranscribed},
	}
	var ids []int64
	for i, tc := range cases {
		job, err := store.NewS3Job(ctx, fmt.Sprintf("audio/reset-%d.mp3", i), queue.JobOptions{})
		if err != nil {
			t.Fatalf("NewS3Job failed: %v", err)
		}
		job.Status = tc.initialStatus
		job.ProgressStage = tc.name
		if err := store.Update(ctx, job); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		ids = append(ids, job.ID)
	}

	count, err := store.ResetStuckProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetStuckProcessing failed: %v", err)
	}
	if int(count) != len(cases) {
		t.Fatalf("expected %d jobs reset, got %d", len(cases), count)
	}

	for idx, tc := range cases {
		updated, err := store.GetByID(ctx, ids[idx])
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if updated.Status != tc.expected {
			t.Fatalf("%s: expected status %s, got %s", tc.name, tc.expected, updated.Status)
		}
	}
}

func TestReclaimStaleProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	stale, err := store.NewS3Job(ctx, "audio/stale.mp3", queue.JobOptions{})
	if err != nil {
		t.Fatalf("NewS3Job failed: %v", err)
	}
	stale.Status = queue.StatusTranscribing
	old := time.Now().UTC().Add(-10 * time.Minute)
	stale.LastHeartbeat = &old
	if err := store.Update(ctx, stale); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	fresh, err := store.NewS3Job(ctx, "audio/fresh.mp3", queue.JobOptions{})
	if err != nil {
		t.Fatalf("NewS3Job failed: %v", err)
	}
	fresh.Status = queue.StatusTranscribing
	now := time.Now().UTC()
	fresh.LastHeartbeat = &now
	if err := store.Update(ctx, fresh); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	count, err := store.ReclaimStaleProcessing(ctx, time.Now().UTC().Add(-5*time.Minute))
	if err != nil {
		t.Fatalf("ReclaimStaleProcessing failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 job reclaimed, got %d", count)
	}

	reclaimed, err := store.GetByID(ctx, stale.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if reclaimed.Status != queue.StatusConverted {
		t.Fatalf("expected converted status after reclaim, got %s", reclaimed.Status)
	}
	if reclaimed.LastHeartbeat != nil {
		t.Fatal("expected heartbeat cleared")
	}

	untouched, err := store.GetByID(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if untouched.Status != queue.StatusTranscribing {
		t.Fatalf("expected fresh job untouched, got %s", untouched.Status)
	}
}

func TestRetryFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewS3Job(t, store, "audio/fail.mp3")
	job.SetFailed("external tool error")
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	count, err := store.RetryFailed(ctx, job.ID)
	if err != nil {
		t.Fatalf("RetryFailed failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 job retried, got %d", count)
	}

	retried, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if retried.Status != queue.StatusPending {
		t.Fatalf("expected pending status, got %s", retried.Status)
	}
	if retried.ErrorMessage != "" {
		t.Fatalf("expected error message cleared, got %q", retried.ErrorMessage)
	}
}

func TestListFiltersAndOrdering(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first := testsupport.NewS3Job(t, store, "audio/a.mp3")
	second := testsupport.NewS3Job(t, store, "audio/b.mp3")
	second.Status = queue.StatusCompleted
	if err := store.Update(ctx, second); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 || all[0].ID != first.ID {
		t.Fatalf("unexpected list result: %#v", all)
	}

	completed, err := store.List(ctx, queue.StatusCompleted)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(completed) != 1 || completed[0].ID != second.ID {
		t.Fatalf("unexpected filtered result: %#v", completed)
	}
}

func TestHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	pending := testsupport.NewS3Job(t, store, "audio/p.mp3")
	_ = pending

	working := testsupport.NewS3Job(t, store, "audio/w.mp3")
	working.Status = queue.StatusTranscribing
	if err := store.Update(ctx, working); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	done := testsupport.NewS3Job(t, store, "audio/d.mp3")
	done.Status = queue.StatusCompleted
	if err := store.Update(ctx, done); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Total != 3 || health.Pending != 1 || health.Processing != 1 || health.Completed != 1 {
		t.Fatalf("unexpected health summary: %#v", health)
	}
}

func TestCheckHealthReportsSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	health, err := store.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.TableExists {
		t.Fatalf("unexpected database health: %#v", health)
	}
	if len(health.MissingColumns) != 0 {
		t.Fatalf("expected no missing columns, got %v", health.MissingColumns)
	}
	present := make(map[string]bool, len(health.ColumnsPresent))
	for _, col := range health.ColumnsPresent {
		present[col] = true
	}
	for _, col := range []string{"needs_review", "review_reason", "last_heartbeat"} {
		if !present[col] {
			t.Fatalf("expected column %q to be reported present, got %v", col, health.ColumnsPresent)
		}
	}
	if !health.IntegrityCheck {
		t.Fatal("expected integrity check to pass")
	}
}
