package scratchpad

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	ErrEmptyQuery = errors.New("scratchpad query is empty")
	ErrClosed     = errors.New("scratchpad is closed")
)

const (
	entryInit       = "init"
	entryThinking   = "thinking"
	entryToolResult = "tool_result"
)

// Entry is one record of a run's append-only log. Type is one of
// "init", "thinking", "tool_result"; the other fields are type-specific.
type Entry struct {
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Query     string         `json:"query,omitempty"`
	Text      string         `json:"text,omitempty"`
	Tool      string         `json:"tool,omitempty"`
	Args      map[string]any `json:"args,omitempty"`
	Result    string         `json:"result,omitempty"`
	Summary   string         `json:"summary,omitempty"`
}

// ToolContext is the full record of one tool invocation, reloaded only
// at final-answer time.
type ToolContext struct {
	Tool   string
	Args   map[string]any
	Result string
}

// Scratchpad is the append-only memory log for one run. Entries are
// written through to a JSONL file before each append returns, so a crash
// mid-run leaves a truncated but internally consistent log. It is owned
// by exactly one run and is not safe for concurrent use.
type Scratchpad struct {
	path    string
	file    *os.File
	query   string
	entries []Entry
	now     func() time.Time
}

// Option customizes a Scratchpad.
type Option func(*Scratchpad)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Scratchpad) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates the backing file under dir and writes the init entry before
// returning. The file name is derived from the creation time and a hash
// of the query, unique per run.
func New(dir, query string, opts ...Option) (*Scratchpad, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create scratchpad dir: %w", err)
	}

	s := &Scratchpad{
		query: query,
		now:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	started := s.now().UTC()
	s.path = filepath.Join(dir, runFileName(started, query))

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create scratchpad file: %w", err)
	}
	s.file = f

	if err := s.append(Entry{Type: entryInit, Timestamp: started, Query: query}); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func runFileName(started time.Time, query string) string {
	h := fnv.New64a()
	h.Write([]byte(query))
	return fmt.Sprintf("%d_%x.jsonl", started.UnixNano(), h.Sum64())
}

// Path returns the backing file location.
func (s *Scratchpad) Path() string {
	return s.path
}

// Query returns the run query recorded in the init entry.
func (s *Scratchpad) Query() string {
	return s.query
}

// AddThinking appends a reasoning fragment.
func (s *Scratchpad) AddThinking(text string) error {
	return s.append(Entry{Type: entryThinking, Timestamp: s.now().UTC(), Text: text})
}

// AddToolResult appends one tool invocation, success or failure. Result
// holds the full payload, summary its short distilled description.
func (s *Scratchpad) AddToolResult(tool string, args map[string]any, result, summary string) error {
	return s.append(Entry{
		Type:      entryToolResult,
		Timestamp: s.now().UTC(),
		Tool:      tool,
		Args:      args,
		Result:    result,
		Summary:   summary,
	})
}

// HasToolResults reports whether any tool result has been recorded.
func (s *Scratchpad) HasToolResults() bool {
	for _, e := range s.entries {
		if e.Type == entryToolResult {
			return true
		}
	}
	return false
}

// ToolSummaries returns the summary line of every tool result in append
// order. Cost is proportional to the number of tool calls, not to their
// payload size; this is the view fed back into loop iterations.
func (s *Scratchpad) ToolSummaries() []string {
	var out []string
	for _, e := range s.entries {
		if e.Type == entryToolResult {
			out = append(out, e.Summary)
		}
	}
	return out
}

// FullContexts returns the uncompacted record of every tool invocation in
// append order. Payload-proportional; used exactly once, at answer time.
func (s *Scratchpad) FullContexts() []ToolContext {
	var out []ToolContext
	for _, e := range s.entries {
		if e.Type == entryToolResult {
			out = append(out, ToolContext{Tool: e.Tool, Args: e.Args, Result: e.Result})
		}
	}
	return out
}

// Entries returns a copy of everything appended so far.
func (s *Scratchpad) Entries() []Entry {
	return append([]Entry(nil), s.entries...)
}

// Close releases the backing file. The log remains on disk for audit.
func (s *Scratchpad) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func (s *Scratchpad) append(e Entry) error {
	if s.file == nil {
		return ErrClosed
	}
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal scratchpad entry: %w", err)
	}
	if _, err := s.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append scratchpad entry: %w", err)
	}
	s.entries = append(s.entries, e)
	return nil
}

// Replay reads a persisted scratchpad back for audit or diagnostics. A
// trailing partial or corrupt line (a crash artifact) is dropped without
// invalidating the entries before it.
func Replay(path string) ([]Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scratchpad: %w", err)
	}

	var entries []Entry
	for _, line := range strings.Split(string(raw), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			break
		}
		entries = append(entries, e)
	}
	return entries, nil
}
