package main

import (
	"testing"

	"scribe/internal/api"
)

func TestFormatStatusLabel(t *testing.T) {
	cases := map[string]string{
		"pending":      "Pending",
		"transcribing": "Transcribing",
		"needs_review": "Needs Review",
		"  failed  ":   "Failed",
		"":             "",
	}
	for input, want := range cases {
		if got := formatStatusLabel(input); got != want {
			t.Errorf("formatStatusLabel(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestBuildQueueStatusRowsSorted(t *testing.T) {
	rows := buildQueueStatusRows(map[string]int{
		"pending":   3,
		"completed": 1,
		"failed":    2,
	})
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "Completed" || rows[1][0] != "Failed" || rows[2][0] != "Pending" {
		t.Fatalf("unexpected row order: %v", rows)
	}
	if rows[2][1] != "3" {
		t.Fatalf("expected pending count 3, got %s", rows[2][1])
	}
}

func TestBuildQueueListRowsSortsNewestFirst(t *testing.T) {
	jobs := []api.Job{
		{ID: 1, Title: "Older", Status: "pending", CreatedAt: "2026-08-01T10:00:00.000Z"},
		{ID: 2, Title: "Newer", Status: "completed", CreatedAt: "2026-08-02T10:00:00.000Z"},
	}
	rows := buildQueueListRows(jobs)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][1] != "Newer" {
		t.Fatalf("expected newest job first, got %v", rows[0])
	}
	if rows[0][5] != "2026-08-02 10:00" {
		t.Fatalf("unexpected created column: %q", rows[0][5])
	}
}

func TestJobDisplayTitleFallbacks(t *testing.T) {
	if got := jobDisplayTitle(api.Job{Title: "Named"}); got != "Named" {
		t.Fatalf("expected Named, got %q", got)
	}
	if got := jobDisplayTitle(api.Job{SourceKey: "audio/key.mp3"}); got != "audio/key.mp3" {
		t.Fatalf("expected source key, got %q", got)
	}
	if got := jobDisplayTitle(api.Job{SourcePath: "/data/media/file.wav"}); got != "file.wav" {
		t.Fatalf("expected base name, got %q", got)
	}
	if got := jobDisplayTitle(api.Job{}); got != "Unknown" {
		t.Fatalf("expected Unknown, got %q", got)
	}
}

func TestParsePositiveIDs(t *testing.T) {
	ids, err := parsePositiveIDs([]string{"1", " 42 "})
	if err != nil {
		t.Fatalf("parse ids: %v", err)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 42 {
		t.Fatalf("unexpected ids: %v", ids)
	}

	if _, err := parsePositiveIDs([]string{"0"}); err == nil {
		t.Fatal("expected error for zero id")
	}
	if _, err := parsePositiveIDs([]string{"abc"}); err == nil {
		t.Fatal("expected error for non-numeric id")
	}
}
