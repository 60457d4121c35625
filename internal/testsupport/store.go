package testsupport

import (
	"context"
	"testing"

	"scribe/internal/config"
	"scribe/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewLocalJob creates a job for a local file using the provided store.
func NewLocalJob(t testing.TB, store *queue.Store, path string) *queue.Job {
	t.Helper()

	job, err := store.NewLocalJob(context.Background(), path, queue.JobOptions{})
	if err != nil {
		t.Fatalf("store.NewLocalJob: %v", err)
	}
	return job
}

// NewS3Job creates a job for an S3 object key using the provided store.
func NewS3Job(t testing.TB, store *queue.Store, key string) *queue.Job {
	t.Helper()

	job, err := store.NewS3Job(context.Background(), key, queue.JobOptions{})
	if err != nil {
		t.Fatalf("store.NewS3Job: %v", err)
	}
	return job
}
