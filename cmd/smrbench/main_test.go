package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRunProducesSummary(t *testing.T) {
	var buf bytes.Buffer
	summary, err := run(&buf, 4, 8, 500, 50, 100)
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if !strings.Contains(summary, "threads=4") {
		t.Fatalf("expected summary to mention threads=4, got %q", summary)
	}
	if !strings.Contains(summary, "retirement-list-empty=true") {
		t.Fatalf("expected settled retirement list, got %q", summary)
	}
}

func TestRunRejectsInvalidThreads(t *testing.T) {
	var buf bytes.Buffer
	if _, err := run(&buf, 0, 8, 10, 50, 10); err == nil {
		t.Fatal("expected error for threads < 1")
	}
}

func TestRunRejectsInvalidReadPct(t *testing.T) {
	var buf bytes.Buffer
	if _, err := run(&buf, 2, 8, 10, 150, 10); err == nil {
		t.Fatal("expected error for read-pct out of range")
	}
}
