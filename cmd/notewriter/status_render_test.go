package main

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"notewriter/internal/batch"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Results DB", statusError, "missing", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Results DB:", "[ERROR] missing")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Completion API", statusOK, "Ready", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestShouldColorizeNonTerminal(t *testing.T) {
	if shouldColorize(&bytes.Buffer{}) {
		t.Fatal("buffers are never terminals")
	}
}

func TestRenderBatchSummary(t *testing.T) {
	out := renderBatchSummary(batch.Summary{
		RunID:     "run-1",
		Total:     3,
		Tagged:    1,
		Untagged:  2,
		Refusals:  1,
		Failed:    2,
		TagCounts: map[string]int{"other": 1, "factual_error": 1},
		Duration:  1500 * time.Millisecond,
	})
	requireContains(t, out, "Run run-1: 3 posts in 1.5s")
	requireContains(t, out, "No note needed")
	requireContains(t, out, "Failed")
	if strings.Index(out, "factual_error") > strings.Index(out, "other") {
		t.Fatalf("expected tags sorted, got:\n%s", out)
	}
}
