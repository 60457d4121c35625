package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRenderStatusLinePlain(t *testing.T) {
	line := renderStatusLine("Workflow", statusOK, "running", false)
	if !strings.Contains(line, "Workflow:") {
		t.Fatalf("missing label: %q", line)
	}
	if !strings.Contains(line, "[OK] running") {
		t.Fatalf("missing status text: %q", line)
	}
	if strings.Contains(line, ansiGreen) {
		t.Fatalf("unexpected color codes: %q", line)
	}
}

func TestRenderStatusLineColorized(t *testing.T) {
	line := renderStatusLine("Workflow", statusError, "stopped", true)
	if !strings.HasPrefix(line, ansiRed) {
		t.Fatalf("expected red prefix: %q", line)
	}
	if !strings.HasSuffix(line, ansiReset) {
		t.Fatalf("expected reset suffix: %q", line)
	}
}

func TestRenderSectionHeader(t *testing.T) {
	lines := renderSectionHeader("Queue", false)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0] != "== Queue ==" {
		t.Fatalf("unexpected header: %q", lines[0])
	}
	if len(lines[1]) != len(lines[0]) {
		t.Fatalf("rule length mismatch: %q vs %q", lines[0], lines[1])
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(&bytes.Buffer{}) {
		t.Fatal("buffers must not colorize")
	}
}

func TestStatusKindForReady(t *testing.T) {
	if statusKindForReady(true) != statusOK {
		t.Fatal("ready should map to OK")
	}
	if statusKindForReady(false) != statusError {
		t.Fatal("not ready should map to ERROR")
	}
}
