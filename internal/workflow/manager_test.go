package workflow_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"scribe/internal/logging"
	"scribe/internal/notifications"
	"scribe/internal/queue"
	"scribe/internal/services"
	"scribe/internal/stage"
	"scribe/internal/testsupport"
	"scribe/internal/workflow"
)

type stubStage struct {
	name        string
	prepareHook func(*queue.Job)
	executeHook func(*queue.Job)
	prepareErr  error
	executeErr  error
	health      stage.Health
}

func newStubStage(name string) *stubStage {
	return &stubStage{name: name, health: stage.Healthy(name)}
}

func (s *stubStage) Prepare(_ context.Context, job *queue.Job) error {
	if s.prepareHook != nil {
		s.prepareHook(job)
	}
	return s.prepareErr
}

func (s *stubStage) Execute(_ context.Context, job *queue.Job) error {
	if s.executeHook != nil {
		s.executeHook(job)
	}
	return s.executeErr
}

func (s *stubStage) HealthCheck(context.Context) stage.Health {
	return s.health
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingNotifier) count(event notifications.Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, e := range r.events {
		if e == event {
			total++
		}
	}
	return total
}

func fullStageSet() workflow.StageSet {
	return workflow.StageSet{
		Fetcher:     newStubStage("fetcher"),
		Converter:   newStubStage("converter"),
		Transcriber: newStubStage("transcriber"),
		Exporter:    newStubStage("exporter"),
	}
}

func TestManagerProcessesJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.QueuePollInterval = 0
	store := testsupport.MustOpenStore(t, cfg)

	notifier := &recordingNotifier{}
	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), notifier)
	mgr.ConfigureStages(fullStageSet())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { mgr.Stop() })

	job, err := store.NewLocalJob(ctx, "/tmp/input/sample.mp3", queue.JobOptions{})
	if err != nil {
		t.Fatalf("NewLocalJob failed: %v", err)
	}

	deadline := time.After(60 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for completion")
		default:
		}
		updated, err := store.GetByID(ctx, job.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if updated.Status == queue.StatusCompleted {
			break
		}
		time.Sleep(25 * time.Millisecond)
	}

	if notifier.count(notifications.EventQueueStarted) != 1 {
		t.Fatalf("expected one queue start notification, got %d", notifier.count(notifications.EventQueueStarted))
	}
	deadline = time.After(10 * time.Second)
	for notifier.count(notifications.EventQueueCompleted) == 0 {
		select {
		case <-deadline:
			t.Fatal("expected queue completion notification")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func TestManagerStatusIncludesStageHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	handler := newStubStage("fetcher")
	handler.health = stage.Unhealthy(handler.name, "dependency missing")

	mgr := workflow.NewManager(cfg, store, logging.NewNop())
	mgr.ConfigureStages(workflow.StageSet{Fetcher: handler})

	status := mgr.Status(context.Background())
	health, ok := status.StageHealth[handler.name]
	if !ok {
		t.Fatalf("expected stage health entry for %s", handler.name)
	}
	if health.Ready {
		t.Fatalf("expected not ready health, got %+v", health)
	}
	if health.Detail != handler.health.Detail {
		t.Fatalf("expected detail %q, got %q", handler.health.Detail, health.Detail)
	}
}

func TestManagerValidationFailureParksJobForReview(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.QueuePollInterval = 0
	store := testsupport.MustOpenStore(t, cfg)

	set := fullStageSet()
	failing := newStubStage("converter")
	failing.executeErr = services.Wrap(services.ErrValidation, "converter", "probe", "no audio stream", nil)
	set.Converter = failing

	mgr := workflow.NewManager(cfg, store, logging.NewNop())
	mgr.ConfigureStages(set)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { mgr.Stop() })

	job, err := store.NewLocalJob(ctx, "/tmp/input/bad.mp3", queue.JobOptions{})
	if err != nil {
		t.Fatalf("NewLocalJob failed: %v", err)
	}
	job.Status = queue.StatusFetched
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	deadline := time.After(30 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for review status")
		default:
		}
		updated, err := store.GetByID(ctx, job.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if updated.Status == queue.StatusReview {
			if !updated.NeedsReview {
				t.Fatal("expected needs review flag set")
			}
			if updated.ReviewReason == "" {
				t.Fatal("expected review reason populated")
			}
			break
		}
		time.Sleep(25 * time.Millisecond)
	}
}

func TestManagerFailureRemovesStagingDirectory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.QueuePollInterval = 0
	store := testsupport.MustOpenStore(t, cfg)

	set := fullStageSet()
	failing := newStubStage("transcriber")
	failing.executeErr = fmt.Errorf("model crashed")
	set.Transcriber = failing

	mgr := workflow.NewManager(cfg, store, logging.NewNop())
	mgr.ConfigureStages(set)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { mgr.Stop() })

	job, err := store.NewLocalJob(ctx, "/tmp/input/sample.mp3", queue.JobOptions{})
	if err != nil {
		t.Fatalf("NewLocalJob failed: %v", err)
	}
	stagingRoot := job.StagingRoot(cfg.Paths.StagingDir)
	if err := os.MkdirAll(stagingRoot, 0o755); err != nil {
		t.Fatalf("mkdir staging root: %v", err)
	}
	if err := os.WriteFile(filepath.Join(stagingRoot, "audio.wav"), []byte("pcm"), 0o644); err != nil {
		t.Fatalf("write staged file: %v", err)
	}
	job.Status = queue.StatusConverted
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	deadline := time.After(30 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for staging cleanup after failure")
		default:
		}
		updated, err := store.GetByID(ctx, job.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if updated.Status == queue.StatusFailed {
			if _, statErr := os.Stat(stagingRoot); os.IsNotExist(statErr) {
				return
			}
		}
		time.Sleep(25 * time.Millisecond)
	}
}

func TestManagerFailureDefaultsToFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.QueuePollInterval = 0
	store := testsupport.MustOpenStore(t, cfg)

	set := fullStageSet()
	failing := newStubStage("transcriber")
	failing.executeErr = fmt.Errorf("boom")
	set.Transcriber = failing

	mgr := workflow.NewManager(cfg, store, logging.NewNop())
	mgr.ConfigureStages(set)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { mgr.Stop() })

	job, err := store.NewLocalJob(ctx, "/tmp/input/sample.mp3", queue.JobOptions{})
	if err != nil {
		t.Fatalf("NewLocalJob failed: %v", err)
	}
	job.Status = queue.StatusConverted
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	deadline := time.After(30 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for failed status")
		default:
		}
		updated, err := store.GetByID(ctx, job.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if updated.Status == queue.StatusFailed {
			if updated.ProgressStage != "Failed" {
				t.Fatalf("expected progress stage 'Failed', got %s", updated.ProgressStage)
			}
			if updated.ErrorMessage == "" {
				t.Fatal("expected error message to be populated")
			}
			break
		}
		time.Sleep(25 * time.Millisecond)
	}
}
