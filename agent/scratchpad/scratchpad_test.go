package scratchpad

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewWritesInitFirst(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := New(dir, "what moved the market today?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()

	entries := s.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Type != "init" {
		t.Fatalf("first entry must be init, got %s", entries[0].Type)
	}
	if entries[0].Query != "what moved the market today?" {
		t.Fatalf("init query mismatch: %q", entries[0].Query)
	}

	replayed, err := Replay(s.Path())
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(replayed) != 1 || replayed[0].Type != "init" {
		t.Fatalf("persisted log does not start with init: %+v", replayed)
	}
}

func TestNewRejectsEmptyQuery(t *testing.T) {
	t.Parallel()

	if _, err := New(t.TempDir(), "   "); err != ErrEmptyQuery {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestToolSummariesMatchResultsInOrder(t *testing.T) {
	t.Parallel()

	s, err := New(t.TempDir(), "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()

	if s.HasToolResults() {
		t.Fatal("fresh scratchpad must have no tool results")
	}

	if err := s.AddThinking("need prices first"); err != nil {
		t.Fatalf("add thinking: %v", err)
	}
	if err := s.AddToolResult("search", map[string]any{"query": "AAPL price"}, "AAPL 189.12", "AAPL quote fetched"); err != nil {
		t.Fatalf("add tool result: %v", err)
	}
	if err := s.AddToolResult("search", map[string]any{"query": "AAPL news"}, "long payload...", "AAPL news fetched"); err != nil {
		t.Fatalf("add tool result: %v", err)
	}

	if !s.HasToolResults() {
		t.Fatal("expected tool results")
	}

	summaries := s.ToolSummaries()
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	if summaries[0] != "AAPL quote fetched" || summaries[1] != "AAPL news fetched" {
		t.Fatalf("summaries out of order: %v", summaries)
	}

	contexts := s.FullContexts()
	if len(contexts) != 2 {
		t.Fatalf("expected 2 contexts, got %d", len(contexts))
	}
	if contexts[0].Result != "AAPL 189.12" {
		t.Fatalf("unexpected first context: %+v", contexts[0])
	}
}

func TestBackingFileUniquePerRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	clock := func() func() time.Time {
		ts := time.Unix(1700000000, 0)
		return func() time.Time {
			ts = ts.Add(time.Millisecond)
			return ts
		}
	}()

	a, err := New(dir, "same query", WithClock(clock))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer a.Close()
	b, err := New(dir, "same query", WithClock(clock))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer b.Close()

	if a.Path() == b.Path() {
		t.Fatalf("two runs share a backing file: %s", a.Path())
	}
}

func TestReplayToleratesTrailingPartialLine(t *testing.T) {
	t.Parallel()

	s, err := New(t.TempDir(), "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.AddToolResult("search", nil, "ok", "done"); err != nil {
		t.Fatalf("add tool result: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Simulate a crash mid-append.
	f, err := os.OpenFile(s.Path(), os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, err := f.WriteString(`{"type":"tool_result","timest`); err != nil {
		t.Fatalf("write partial: %v", err)
	}
	f.Close()

	entries, err := Replay(s.Path())
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 intact entries, got %d", len(entries))
	}
	if entries[0].Type != "init" || entries[1].Type != "tool_result" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestAppendAfterCloseFails(t *testing.T) {
	t.Parallel()

	s, err := New(t.TempDir(), "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.AddThinking("late"); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestRunFileNameEncodesQueryHash(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := New(dir, "alpha")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()

	base := filepath.Base(s.Path())
	if !strings.HasSuffix(base, ".jsonl") || !strings.Contains(base, "_") {
		t.Fatalf("unexpected file name: %s", base)
	}
}
